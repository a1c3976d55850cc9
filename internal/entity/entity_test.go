package entity

import (
	"testing"
	"time"

	"github.com/nhle/managemyhealth/internal/model"
)

func snapshot() *model.Snapshot {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, model.PortalZone)
	return &model.Snapshot{
		EntryID: "e1",
		Appointment: &model.Appointment{
			Start:        start,
			End:          start.Add(30 * time.Minute),
			ProviderName: "Dr. Smith",
			Reason:       "Checkup",
			LocationName: "City Clinic",
		},
		Message: &model.Message{
			Subject:    "Results",
			Body:       "All clear",
			SenderName: "Dr. Jones",
			ReceivedAt: time.Date(2024, 2, 28, 14, 5, 0, 0, model.PortalZone),
		},
	}
}

func TestAppointmentSensor(t *testing.T) {
	s := AppointmentSensor(snapshot())

	if s.State != "2024-03-01T09:00:00+13:00" {
		t.Errorf("state = %q", s.State)
	}
	want := map[string]string{
		"Duration":      "30 mins",
		"Reason":        "Checkup",
		"Location Name": "City Clinic",
		"Provider Name": "Dr. Smith",
	}
	for k, v := range want {
		if s.Attributes[k] != v {
			t.Errorf("attribute %q = %q, want %q", k, s.Attributes[k], v)
		}
	}
	if s.UniqueID != "mmh_appointment" || s.DeviceClass != "timestamp" || s.Icon != "mdi:doctor" {
		t.Errorf("metadata = %+v", s)
	}
	if s.Attribution != Attribution {
		t.Errorf("attribution = %q", s.Attribution)
	}
}

func TestAppointmentSensorPastHasNoDetail(t *testing.T) {
	snap := snapshot()
	snap.Appointment.Past = true

	s := AppointmentSensor(snap)
	if !s.Available() {
		t.Fatal("expected a state for a past appointment")
	}
	if len(s.Attributes) != 0 {
		t.Errorf("attributes = %v, want none", s.Attributes)
	}
}

func TestSensorsWithoutData(t *testing.T) {
	for _, snap := range []*model.Snapshot{nil, {EntryID: "e1"}} {
		for _, s := range States(snap) {
			if s.Available() || len(s.Attributes) != 0 {
				t.Errorf("%s = %+v, want empty", s.UniqueID, s)
			}
		}
	}
}

func TestMailboxSensor(t *testing.T) {
	s := MailboxSensor(snapshot())

	if s.State != "Results" {
		t.Errorf("state = %q", s.State)
	}
	if s.Attributes["From"] != "Dr. Jones" || s.Attributes["Message"] != "All clear" {
		t.Errorf("attributes = %v", s.Attributes)
	}
	if s.Attributes["Date"] != "2024-02-28T14:05:00+13:00" {
		t.Errorf("date = %q", s.Attributes["Date"])
	}
	if s.UniqueID != "mmh_mailbox" {
		t.Errorf("unique id = %q", s.UniqueID)
	}
}

func TestNextEvent(t *testing.T) {
	ev := NextEvent(snapshot())
	if ev == nil {
		t.Fatal("expected event")
	}
	if ev.Summary != "Appointment with Dr. Smith" || ev.Description != "Checkup" || ev.Location != "City Clinic" {
		t.Errorf("event = %+v", ev)
	}

	snap := snapshot()
	snap.Appointment.ProviderName = ""
	if ev := NextEvent(snap); ev.Summary != CalendarName {
		t.Errorf("summary = %q, want %q", ev.Summary, CalendarName)
	}

	if NextEvent(&model.Snapshot{}) != nil {
		t.Error("expected nil event without appointment")
	}
}

func TestEvents(t *testing.T) {
	snap := snapshot()
	start := snap.Appointment.Start
	end := snap.Appointment.End

	tests := []struct {
		name     string
		from, to time.Time
		want     int
	}{
		{"window covers event", start.Add(-time.Hour), end.Add(time.Hour), 1},
		{"window overlaps start", start.Add(-time.Hour), start.Add(time.Minute), 1},
		{"window overlaps end", end.Add(-time.Minute), end.Add(time.Hour), 1},
		{"window ends at start", start.Add(-time.Hour), start, 0},
		{"window starts at end", end, end.Add(time.Hour), 0},
		{"inverted window", end.Add(time.Hour), start.Add(-time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Events(snap, tt.from, tt.to); len(got) != tt.want {
				t.Errorf("len(Events) = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestDeviceFor(t *testing.T) {
	d := DeviceFor("e1")
	if d.ConfigurationURL != ConfigurationURL || d.Identifier != "managemyhealth_e1" {
		t.Errorf("device = %+v", d)
	}
}
