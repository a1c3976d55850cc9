package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	gosync "sync"
	"time"

	"github.com/nhle/managemyhealth/internal/model"
	"github.com/nhle/managemyhealth/internal/portal"
	"github.com/nhle/managemyhealth/internal/store"
)

// SyncState represents the current state of an entry's poll cycle.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError

	// SyncAuthFailed means the portal rejected the stored credentials.
	// Polling for the entry is suspended until Reauthenticate is called.
	SyncAuthFailed
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	case SyncAuthFailed:
		return "auth_failed"
	default:
		return "idle"
	}
}

// SyncStatus holds the sync state for a single entry.
type SyncStatus struct {
	EntryID  string
	State    SyncState
	LastSync time.Time
	Error    error
}

// Result is delivered on the results channel after every cycle.
type Result struct {
	EntryID string

	// Snapshot is the stored state; nil when nothing could be saved. A
	// mailbox failure still carries the fresh appointment alongside Err.
	Snapshot *model.Snapshot

	// Notifications lists changes detected against the previous snapshot.
	Notifications []model.Notification

	Err        error
	AuthFailed bool
}

// Fetcher retrieves the records for one account. *portal.Client
// satisfies it.
type Fetcher interface {
	GetAppointments(ctx context.Context) (*model.Appointment, error)
	GetMessages(ctx context.Context) (*model.Message, error)
}

// DefaultInterval is used when the poller is created with a non-positive
// interval.
const DefaultInterval = 30 * time.Minute

// cycleTimeout bounds a whole cycle, login and fallback calls included.
const cycleTimeout = 90 * time.Second

// ErrUnknownEntry is returned for entry IDs that were never registered.
var ErrUnknownEntry = errors.New("unknown entry")

type entryRunner struct {
	// cycleMu serializes cycles so they never overlap for one session.
	cycleMu gosync.Mutex

	id         string
	fetcher    Fetcher
	authFailed bool
	triggerCh  chan struct{}
}

// Poller runs a background refresh loop per registered entry and persists
// each successful cycle as the entry's snapshot.
type Poller struct {
	store    store.Store
	interval time.Duration

	mu       gosync.Mutex
	entries  map[string]*entryRunner
	order    []string
	statuses map[string]*SyncStatus
	resultCh chan Result
	stopCh   chan struct{}
	ctx      context.Context
	running  bool
	wg       gosync.WaitGroup
}

// New creates a Poller that persists through s and polls every interval.
func New(s store.Store, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		store:    s,
		interval: interval,
		entries:  make(map[string]*entryRunner),
		statuses: make(map[string]*SyncStatus),
		resultCh: make(chan Result, 16),
	}
}

// RegisterEntry adds an entry and the fetcher that serves it. Registering
// while running starts the entry's loop immediately. Registering an ID
// twice replaces its fetcher.
func (p *Poller) RegisterEntry(entryID string, f Fetcher) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.entries[entryID]; ok {
		r.fetcher = f
		r.authFailed = false
		return
	}

	r := &entryRunner{
		id:        entryID,
		fetcher:   f,
		triggerCh: make(chan struct{}, 1),
	}
	p.entries[entryID] = r
	p.order = append(p.order, entryID)
	p.statuses[entryID] = &SyncStatus{EntryID: entryID, State: SyncIdle}

	if p.running {
		p.startRunner(r)
	}
}

// Start launches one polling goroutine per registered entry. Each runs a
// cycle immediately and then once per interval until ctx is cancelled or
// Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.ctx = ctx
	p.stopCh = make(chan struct{})

	for _, id := range p.order {
		p.startRunner(p.entries[id])
	}
}

// startRunner must be called with p.mu held.
func (p *Poller) startRunner(r *entryRunner) {
	ctx, stopCh := p.ctx, p.stopCh
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.pollEntry(ctx, stopCh, r)
	}()
}

// Stop halts all polling goroutines and waits for in-flight cycles.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
}

// Refresh requests an immediate cycle for an entry. It never blocks; a
// request made while one is already pending is coalesced.
func (p *Poller) Refresh(entryID string) error {
	p.mu.Lock()
	r, ok := p.entries[entryID]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("refreshing entry %s: %w", entryID, ErrUnknownEntry)
	}

	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
	return nil
}

// Reauthenticate swaps in a fetcher built from new credentials, clears an
// auth failure and triggers a cycle.
func (p *Poller) Reauthenticate(entryID string, f Fetcher) error {
	p.mu.Lock()
	r, ok := p.entries[entryID]
	if ok {
		r.fetcher = f
		r.authFailed = false
		if st := p.statuses[entryID]; st.State == SyncAuthFailed {
			st.State = SyncIdle
			st.Error = nil
		}
	}
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("reauthenticating entry %s: %w", entryID, ErrUnknownEntry)
	}
	return p.Refresh(entryID)
}

// Statuses returns the current sync status of all entries in registration
// order.
func (p *Poller) Statuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.order))
	for _, id := range p.order {
		statuses = append(statuses, *p.statuses[id])
	}
	return statuses
}

// Status returns the sync status of one entry.
func (p *Poller) Status(entryID string) (SyncStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.statuses[entryID]
	if !ok {
		return SyncStatus{}, false
	}
	return *st, true
}

// Results returns the channel cycle results are delivered on. Results are
// dropped when nobody drains it.
func (p *Poller) Results() <-chan Result {
	return p.resultCh
}

// pollEntry runs the polling loop for a single entry.
func (p *Poller) pollEntry(ctx context.Context, stopCh <-chan struct{}, r *entryRunner) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Do an initial fetch immediately
	p.RunOnce(ctx, r.id)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			p.RunOnce(ctx, r.id)
		case <-r.triggerCh:
			p.RunOnce(ctx, r.id)
		}
	}
}

// RunOnce performs a single cycle for an entry on the calling goroutine
// and returns its result. Entries in the auth-failed state are skipped.
func (p *Poller) RunOnce(ctx context.Context, entryID string) Result {
	p.mu.Lock()
	r, ok := p.entries[entryID]
	p.mu.Unlock()
	if !ok {
		return Result{EntryID: entryID, Err: fmt.Errorf("entry %s: %w", entryID, ErrUnknownEntry)}
	}

	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()

	p.mu.Lock()
	fetcher, skip := r.fetcher, r.authFailed
	p.mu.Unlock()

	if skip {
		return Result{EntryID: entryID, AuthFailed: true}
	}

	p.setStatus(entryID, SyncRunning, nil)

	cctx, cancel := context.WithTimeout(ctx, cycleTimeout)
	defer cancel()

	appt, err := fetcher.GetAppointments(cctx)
	if err != nil {
		res := p.fail(entryID, fmt.Errorf("fetching appointments: %w", err))
		p.sendResult(res)
		return res
	}
	if appt == nil {
		log.Printf("sync: found no appointments on refresh for %s", entryID)
	}

	prev, err := p.store.GetSnapshot(ctx, entryID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("sync: loading previous snapshot for %s: %v", entryID, err)
	}

	// A mailbox failure keeps the fresh appointment and the last message,
	// unless the credentials were rejected.
	msg, msgErr := fetcher.GetMessages(cctx)
	if msgErr != nil {
		msgErr = fmt.Errorf("fetching messages: %w", msgErr)
		if portal.IsAuthError(msgErr) {
			res := p.fail(entryID, msgErr)
			p.sendResult(res)
			return res
		}
		msg = nil
		if prev != nil {
			msg = prev.Message
		}
	}

	snap := &model.Snapshot{
		EntryID:     entryID,
		Appointment: appt,
		Message:     msg,
		FetchedAt:   time.Now(),
	}
	if err := p.store.SaveSnapshot(ctx, *snap); err != nil {
		p.setStatus(entryID, SyncError, err)
		res := Result{EntryID: entryID, Err: err}
		p.sendResult(res)
		return res
	}

	notes := detectChanges(entryID, prev, snap)
	for _, n := range notes {
		if err := p.store.CreateNotification(ctx, n); err != nil {
			log.Printf("sync: creating notification for %s: %v", entryID, err)
		}
	}

	res := Result{EntryID: entryID, Snapshot: snap, Notifications: notes}
	if msgErr != nil {
		failed := p.fail(entryID, msgErr)
		res.Err = failed.Err
	} else {
		p.setStatus(entryID, SyncIdle, nil)
	}
	p.sendResult(res)
	return res
}

// fail records a failed cycle. Authentication failures suspend the entry.
func (p *Poller) fail(entryID string, err error) Result {
	res := Result{EntryID: entryID, Err: err}

	switch portal.KindOf(err) {
	case portal.KindAuthentication:
		p.mu.Lock()
		if r, ok := p.entries[entryID]; ok {
			r.authFailed = true
		}
		p.mu.Unlock()
		p.setStatus(entryID, SyncAuthFailed, err)
		res.AuthFailed = true
		log.Printf("sync: credentials rejected for %s, polling suspended: %v", entryID, err)
	case portal.KindCommunication:
		p.setStatus(entryID, SyncError, err)
		log.Printf("sync: portal unreachable for %s, retrying next cycle: %v", entryID, err)
	default:
		p.setStatus(entryID, SyncError, err)
		log.Printf("sync: unexpected failure for %s: %+v", entryID, err)
	}

	return res
}

// detectChanges compares a new snapshot against the previous one and
// returns a notification for each record that changed.
func detectChanges(entryID string, prev, next *model.Snapshot) []model.Notification {
	var (
		prevAppt *model.Appointment
		prevMsg  *model.Message
		notes    []model.Notification
	)
	if prev != nil {
		prevAppt = prev.Appointment
		prevMsg = prev.Message
	}
	now := time.Now()

	if a := next.Appointment; a != nil && !a.Past && !a.SameSlot(prevAppt) {
		provider := a.ProviderName
		if provider == "" {
			provider = "your provider"
		}
		notes = append(notes, model.Notification{
			EntryID: entryID,
			Kind:    model.NotificationAppointment,
			Message: fmt.Sprintf("Next appointment: %s with %s",
				a.Start.Format("Mon 2 Jan 15:04"), provider),
			CreatedAt: now,
		})
	}

	if m := next.Message; m != nil && !m.SameMessage(prevMsg) {
		sender := m.SenderName
		if sender == "" {
			sender = "your practice"
		}
		notes = append(notes, model.Notification{
			EntryID:   entryID,
			Kind:      model.NotificationMessage,
			Message:   fmt.Sprintf("New message from %s: %s", sender, m.Subject),
			CreatedAt: now,
		})
	}

	return notes
}

// setStatus updates the sync status for an entry.
func (p *Poller) setStatus(entryID string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[entryID]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// sendResult sends a Result on the result channel without blocking.
func (p *Poller) sendResult(res Result) {
	select {
	case p.resultCh <- res:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}
