package sync_test

import (
	"context"
	"errors"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nhle/managemyhealth/internal/model"
	"github.com/nhle/managemyhealth/internal/portal"
	"github.com/nhle/managemyhealth/internal/store"
	"github.com/nhle/managemyhealth/internal/sync"
	"github.com/nhle/managemyhealth/tests/testutil"
)

type fakeFetcher struct {
	mu       gosync.Mutex
	appt     *model.Appointment
	msg      *model.Message
	apptErr  error
	msgErr   error
	calls    int
	active   atomic.Int32
	overlaps atomic.Int32
	delay    time.Duration
}

func (f *fakeFetcher) GetAppointments(ctx context.Context) (*model.Appointment, error) {
	if f.active.Add(1) > 1 {
		f.overlaps.Add(1)
	}
	defer f.active.Add(-1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.appt, f.apptErr
}

func (f *fakeFetcher) GetMessages(ctx context.Context) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.msg, f.msgErr
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func setup(t *testing.T) (store.Store, string) {
	t.Helper()
	s := testutil.NewTestStore(t)
	e, err := s.UpsertEntry(context.Background(), model.Entry{
		UniqueID: "pat@example.com",
		Email:    "pat@example.com",
		Title:    "pat@example.com",
	})
	if err != nil {
		t.Fatalf("upsert entry: %v", err)
	}
	return s, e.ID
}

func sampleRecords() (*model.Appointment, *model.Message) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, model.PortalZone)
	appt := &model.Appointment{
		Start:        start,
		End:          start.Add(30 * time.Minute),
		ProviderName: "Dr. Smith",
		Reason:       "Checkup",
		LocationName: "City Clinic",
	}
	msg := &model.Message{
		Subject:    "Results",
		SenderName: "Dr. Jones",
		ReceivedAt: start.Add(-24 * time.Hour),
	}
	return appt, msg
}

func TestRunOncePersistsSnapshot(t *testing.T) {
	s, id := setup(t)
	appt, msg := sampleRecords()
	f := &fakeFetcher{appt: appt, msg: msg}

	p := sync.New(s, time.Hour)
	p.RegisterEntry(id, f)

	res := p.RunOnce(context.Background(), id)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Notifications) != 2 {
		t.Fatalf("notifications = %+v, want 2", res.Notifications)
	}
	if res.Notifications[0].Message != "Next appointment: Fri 1 Mar 09:00 with Dr. Smith" {
		t.Errorf("appointment notification = %q", res.Notifications[0].Message)
	}
	if res.Notifications[1].Message != "New message from Dr. Jones: Results" {
		t.Errorf("message notification = %q", res.Notifications[1].Message)
	}

	snap, err := s.GetSnapshot(context.Background(), id)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if !snap.Appointment.SameSlot(appt) || !snap.Message.SameMessage(msg) {
		t.Errorf("snapshot = %+v", snap)
	}

	st, ok := p.Status(id)
	if !ok || st.State != sync.SyncIdle || st.LastSync.IsZero() {
		t.Errorf("status = %+v", st)
	}

	// Unchanged records produce no new notifications.
	res = p.RunOnce(context.Background(), id)
	if res.Err != nil || len(res.Notifications) != 0 {
		t.Errorf("second cycle = %+v", res)
	}

	unread, err := s.GetUnreadNotifications(context.Background())
	if err != nil {
		t.Fatalf("get unread: %v", err)
	}
	if len(unread) != 2 {
		t.Errorf("unread = %d, want 2", len(unread))
	}
}

func TestRunOncePastAppointmentDoesNotNotify(t *testing.T) {
	s, id := setup(t)
	appt, _ := sampleRecords()
	appt.Past = true

	p := sync.New(s, time.Hour)
	p.RegisterEntry(id, &fakeFetcher{appt: appt})

	res := p.RunOnce(context.Background(), id)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Notifications) != 0 {
		t.Errorf("notifications = %+v", res.Notifications)
	}
	if res.Snapshot.Appointment == nil || res.Snapshot.Message != nil {
		t.Errorf("snapshot = %+v", res.Snapshot)
	}
}

func TestRunOnceFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantState sync.SyncState
		wantAuth  bool
	}{
		{
			name:      "authentication",
			err:       &portal.Error{Kind: portal.KindAuthentication, Op: "login", StatusCode: 401},
			wantState: sync.SyncAuthFailed,
			wantAuth:  true,
		},
		{
			name:      "communication",
			err:       &portal.Error{Kind: portal.KindCommunication, Op: "get appointments", StatusCode: 503},
			wantState: sync.SyncError,
		},
		{
			name:      "generic",
			err:       errors.New("boom"),
			wantState: sync.SyncError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, id := setup(t)
			appt, msg := sampleRecords()
			f := &fakeFetcher{appt: appt, msg: msg}

			p := sync.New(s, time.Hour)
			p.RegisterEntry(id, f)
			if res := p.RunOnce(context.Background(), id); res.Err != nil {
				t.Fatalf("first cycle: %v", res.Err)
			}

			f.mu.Lock()
			f.apptErr = tt.err
			f.mu.Unlock()

			res := p.RunOnce(context.Background(), id)
			if res.Err == nil || res.Snapshot != nil {
				t.Fatalf("result = %+v, want failure", res)
			}
			if res.AuthFailed != tt.wantAuth {
				t.Errorf("AuthFailed = %v, want %v", res.AuthFailed, tt.wantAuth)
			}
			if got := portal.KindOf(res.Err); got != portal.KindOf(tt.err) {
				t.Errorf("kind = %v, want %v", got, portal.KindOf(tt.err))
			}

			st, _ := p.Status(id)
			if st.State != tt.wantState {
				t.Errorf("state = %v, want %v", st.State, tt.wantState)
			}

			// Last good snapshot is retained.
			snap, err := s.GetSnapshot(context.Background(), id)
			if err != nil {
				t.Fatalf("get snapshot: %v", err)
			}
			if !snap.Message.SameMessage(msg) {
				t.Errorf("snapshot message = %+v", snap.Message)
			}
		})
	}
}

func TestRunOnceMessageFailureKeepsAppointment(t *testing.T) {
	s, id := setup(t)
	appt, msg := sampleRecords()
	f := &fakeFetcher{appt: appt, msg: msg}

	p := sync.New(s, time.Hour)
	p.RegisterEntry(id, f)
	if res := p.RunOnce(context.Background(), id); res.Err != nil {
		t.Fatalf("first cycle: %v", res.Err)
	}

	next := *appt
	next.Start = appt.Start.Add(48 * time.Hour)
	next.End = appt.End.Add(48 * time.Hour)

	f.mu.Lock()
	f.appt = &next
	f.msgErr = &portal.Error{Kind: portal.KindCommunication, Op: "get messages", StatusCode: 503}
	f.mu.Unlock()

	res := p.RunOnce(context.Background(), id)
	if !portal.IsCommunicationError(res.Err) {
		t.Fatalf("err = %v, want communication error", res.Err)
	}
	if res.AuthFailed {
		t.Error("AuthFailed set for a mailbox outage")
	}
	if res.Snapshot == nil || !res.Snapshot.Appointment.SameSlot(&next) {
		t.Fatalf("snapshot = %+v, want new appointment", res.Snapshot)
	}
	if len(res.Notifications) != 1 {
		t.Errorf("notifications = %+v, want appointment change only", res.Notifications)
	}

	stored, err := s.GetSnapshot(context.Background(), id)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if !stored.Appointment.SameSlot(&next) || !stored.Message.SameMessage(msg) {
		t.Errorf("stored = %+v, want new appointment and previous message", stored)
	}
	if st, _ := p.Status(id); st.State != sync.SyncError {
		t.Errorf("state = %v, want error", st.State)
	}
}

func TestRunOnceMessageAuthFailureSuspends(t *testing.T) {
	s, id := setup(t)
	appt, _ := sampleRecords()
	f := &fakeFetcher{
		appt:   appt,
		msgErr: &portal.Error{Kind: portal.KindAuthentication, Op: "get messages", StatusCode: 401},
	}

	p := sync.New(s, time.Hour)
	p.RegisterEntry(id, f)

	res := p.RunOnce(context.Background(), id)
	if !res.AuthFailed || res.Snapshot != nil {
		t.Fatalf("result = %+v, want auth failure without snapshot", res)
	}
	if _, err := s.GetSnapshot(context.Background(), id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("snapshot saved after auth failure: %v", err)
	}
}

func TestAuthFailureSuspendsUntilReauthenticate(t *testing.T) {
	s, id := setup(t)
	bad := &fakeFetcher{apptErr: &portal.Error{Kind: portal.KindAuthentication, Op: "login"}}

	p := sync.New(s, time.Hour)
	p.RegisterEntry(id, bad)

	if res := p.RunOnce(context.Background(), id); !res.AuthFailed {
		t.Fatalf("result = %+v, want auth failure", res)
	}
	res := p.RunOnce(context.Background(), id)
	if !res.AuthFailed || res.Err != nil {
		t.Errorf("suspended result = %+v", res)
	}
	if got := bad.callCount(); got != 1 {
		t.Errorf("calls while suspended = %d, want 1", got)
	}

	appt, msg := sampleRecords()
	good := &fakeFetcher{appt: appt, msg: msg}
	if err := p.Reauthenticate(id, good); err != nil {
		t.Fatalf("reauthenticate: %v", err)
	}
	if st, _ := p.Status(id); st.State != sync.SyncIdle {
		t.Errorf("state after reauthenticate = %v", st.State)
	}

	res = p.RunOnce(context.Background(), id)
	if res.Err != nil || res.Snapshot == nil {
		t.Fatalf("result = %+v", res)
	}
	if good.callCount() != 1 {
		t.Errorf("new fetcher calls = %d", good.callCount())
	}
}

func TestStartRunsImmediatelyAndOnRefresh(t *testing.T) {
	s, id := setup(t)
	appt, msg := sampleRecords()
	f := &fakeFetcher{appt: appt, msg: msg}

	p := sync.New(s, time.Hour)
	p.RegisterEntry(id, f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	waitResult := func() sync.Result {
		t.Helper()
		select {
		case res := <-p.Results():
			return res
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for result")
			return sync.Result{}
		}
	}

	if res := waitResult(); res.EntryID != id || res.Err != nil {
		t.Fatalf("initial result = %+v", res)
	}

	if err := p.Refresh(id); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if res := waitResult(); res.Err != nil {
		t.Fatalf("refresh result = %+v", res)
	}
	if got := f.callCount(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestUnknownEntry(t *testing.T) {
	p := sync.New(testutil.NewTestStore(t), 0)

	if err := p.Refresh("nope"); !errors.Is(err, sync.ErrUnknownEntry) {
		t.Errorf("Refresh err = %v", err)
	}
	if err := p.Reauthenticate("nope", &fakeFetcher{}); !errors.Is(err, sync.ErrUnknownEntry) {
		t.Errorf("Reauthenticate err = %v", err)
	}
	if res := p.RunOnce(context.Background(), "nope"); !errors.Is(res.Err, sync.ErrUnknownEntry) {
		t.Errorf("RunOnce err = %v", res.Err)
	}
}

func TestCyclesDoNotOverlap(t *testing.T) {
	s, id := setup(t)
	appt, msg := sampleRecords()
	f := &fakeFetcher{appt: appt, msg: msg, delay: 20 * time.Millisecond}

	p := sync.New(s, time.Hour)
	p.RegisterEntry(id, f)

	var wg gosync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.RunOnce(context.Background(), id)
		}()
	}
	wg.Wait()

	if got := f.overlaps.Load(); got != 0 {
		t.Errorf("overlapping cycles = %d", got)
	}
	if got := f.callCount(); got != 4 {
		t.Errorf("calls = %d, want 4", got)
	}
}
