package entity

import (
	"time"

	"github.com/nhle/managemyhealth/internal/model"
)

// CalendarName is shown when an appointment has no provider.
const CalendarName = "Health Appointment"

// Event is a calendar event derived from an appointment.
type Event struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
}

// NextEvent returns the appointment held in snap as an event, or nil.
func NextEvent(snap *model.Snapshot) *Event {
	if snap == nil || snap.Appointment == nil {
		return nil
	}

	a := snap.Appointment
	summary := CalendarName
	if a.ProviderName != "" {
		summary = "Appointment with " + a.ProviderName
	}
	return &Event{
		Start:       a.Start,
		End:         a.End,
		Summary:     summary,
		Description: a.Reason,
		Location:    a.LocationName,
	}
}

// Events returns the events overlapping [from, to).
func Events(snap *model.Snapshot, from, to time.Time) []Event {
	ev := NextEvent(snap)
	if ev == nil || !to.After(from) {
		return nil
	}
	if ev.Start.Before(to) && ev.End.After(from) {
		return []Event{*ev}
	}
	return nil
}
