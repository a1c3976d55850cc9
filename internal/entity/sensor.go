package entity

import (
	"fmt"
	"time"

	"github.com/nhle/managemyhealth/internal/model"
)

const (
	AppointmentUniqueID = "mmh_appointment"
	MailboxUniqueID     = "mmh_mailbox"
)

// AppointmentSensor renders the next appointment. The state is the start
// time in RFC 3339, empty when there is no appointment. Past appointments
// carry no detail attributes because the portal does not report them.
func AppointmentSensor(snap *model.Snapshot) State {
	s := State{
		UniqueID:    AppointmentUniqueID,
		Name:        "Next Appointment",
		Icon:        icon,
		DeviceClass: "timestamp",
		Attributes:  map[string]string{},
		Attribution: Attribution,
	}
	if snap == nil || snap.Appointment == nil {
		return s
	}

	a := snap.Appointment
	s.State = a.Start.Format(time.RFC3339)
	if !a.Past {
		s.Attributes["Duration"] = fmt.Sprintf("%d mins", int(a.Duration().Minutes()))
		s.Attributes["Reason"] = a.Reason
		s.Attributes["Location Name"] = a.LocationName
		s.Attributes["Provider Name"] = a.ProviderName
	}
	return s
}

// MailboxSensor renders the most recent inbox message with its subject as
// the state.
func MailboxSensor(snap *model.Snapshot) State {
	s := State{
		UniqueID:    MailboxUniqueID,
		Name:        "Mailbox",
		Icon:        icon,
		Attributes:  map[string]string{},
		Attribution: Attribution,
	}
	if snap == nil || snap.Message == nil {
		return s
	}

	m := snap.Message
	s.State = m.Subject
	s.Attributes["Message"] = m.Body
	s.Attributes["From"] = m.SenderName
	s.Attributes["Date"] = m.ReceivedAt.Format(time.RFC3339)
	return s
}
