package portal

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nhle/managemyhealth/internal/model"
)

// slotLayout is the portal's zone-less timestamp format. Fractional
// seconds (as in MessageReceivedOn) are accepted by time.Parse without
// being named in the layout.
const slotLayout = "2006-01-02T15:04:05"

const (
	statusCancelled  = "cancelled"
	approvalRejected = "rejected"
)

// parsePortalTime interprets a portal timestamp as wall-clock time in
// model.PortalZone. Timestamps that already carry an offset are honoured
// and converted.
func parsePortalTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	t, err := time.ParseInLocation(slotLayout, s, model.PortalZone)
	if err == nil {
		return t, nil
	}

	if t, rfcErr := time.Parse(time.RFC3339Nano, s); rfcErr == nil {
		return t.In(model.PortalZone), nil
	}

	return time.Time{}, fmt.Errorf("parsing portal timestamp %q: %w", s, err)
}

// replyPrefix matches one leading "Re:" in any case, with optional
// whitespace around the colon.
var replyPrefix = regexp.MustCompile(`(?i)^\s*re\s*:\s*`)

// stripReplyPrefix removes every leading reply prefix from a subject,
// so "Re : Re: Results" becomes "Results".
func stripReplyPrefix(subject string) string {
	for replyPrefix.MatchString(subject) {
		subject = replyPrefix.ReplaceAllString(subject, "")
	}
	return strings.TrimSpace(subject)
}

// hasSlot reports whether the record carries the required time slot.
func (r appointmentRecord) hasSlot() bool {
	return strings.TrimSpace(r.AppFromTimeSlot) != ""
}

// eligible reports whether a future appointment may be selected.
func (r appointmentRecord) eligible() bool {
	if strings.EqualFold(strings.TrimSpace(string(r.AppStatus)), statusCancelled) {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(string(r.IsApproved)), approvalRejected) {
		return false
	}
	return r.hasSlot()
}

// toAppointment normalizes the record. A missing or non-positive duration
// falls back to model.DefaultAppointmentDuration so End is always after
// Start.
func (r appointmentRecord) toAppointment(raw json.RawMessage) (*model.Appointment, error) {
	start, err := parsePortalTime(r.AppFromTimeSlot)
	if err != nil {
		return nil, err
	}

	duration := model.DefaultAppointmentDuration
	if r.Duration.Set && r.Duration.Value > 0 {
		duration = time.Duration(r.Duration.Value) * time.Minute
	}

	return &model.Appointment{
		Start:        start,
		End:          start.Add(duration),
		ProviderName: strings.TrimSpace(r.ProviderName),
		Reason:       strings.TrimSpace(r.ReasonToVisit),
		LocationName: strings.TrimSpace(r.BusinessName),
		Raw:          append(json.RawMessage(nil), raw...),
	}, nil
}

// toMessage normalizes the record.
func (r messageRecord) toMessage(raw json.RawMessage) (*model.Message, error) {
	received, err := parsePortalTime(r.MessageReceivedOn)
	if err != nil {
		return nil, err
	}

	return &model.Message{
		Subject:    stripReplyPrefix(r.Subject),
		Body:       r.MessageBody,
		SenderName: strings.TrimSpace(r.FromName),
		ReceivedAt: received,
		Raw:        append(json.RawMessage(nil), raw...),
	}, nil
}
