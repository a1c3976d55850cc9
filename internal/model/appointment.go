package model

import (
	"encoding/json"
	"time"
)

// PortalZone is the fixed offset the portal uses for all wall-clock
// timestamps it returns. Timestamps carry no zone designator on the wire.
var PortalZone = time.FixedZone("NZDT", 13*60*60)

// DefaultAppointmentDuration is applied when the portal does not report a
// duration (past appointments never do).
const DefaultAppointmentDuration = 15 * time.Minute

// Appointment is the normalized representation of a single portal
// appointment. End is always after Start.
type Appointment struct {
	// Start is the booked time slot in PortalZone.
	Start time.Time `json:"start"`

	// End is Start plus the booked duration.
	End time.Time `json:"end"`

	// ProviderName is the clinician the appointment is booked with.
	ProviderName string `json:"provider_name"`

	// Reason is the patient-supplied reason for the visit.
	Reason string `json:"reason"`

	// LocationName is the practice or clinic name.
	LocationName string `json:"location_name"`

	// Past is set when the record came from the past-appointments fallback.
	Past bool `json:"past"`

	// Raw holds the original JSON object returned by the portal.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// Duration returns the length of the appointment.
func (a Appointment) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

// SameSlot reports whether two appointments describe the same booking.
func (a *Appointment) SameSlot(other *Appointment) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.Start.Equal(other.Start) && a.ProviderName == other.ProviderName
}
