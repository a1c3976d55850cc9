package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/nhle/managemyhealth/internal/model"
)

const (
	pathAppointments     = "/api/Appointments/GetPatientAppointments"
	pathPastAppointments = "/api/Appointments/GetPastAppointmentsPaging"
	pathMessages         = "/api/Inbox/GetReceivedMessages"
)

// Page window used for the paged endpoints.
const (
	pageStart = "0"
	pageEnd   = "20"
)

// GetAppointments returns the soonest upcoming appointment.
//
// The portal orders results by appointment date, so the first record that
// is not cancelled, not rejected and carries a time slot is selected; no
// local sorting is done. When no such record exists the past-appointments
// endpoint is consulted instead. A nil appointment with a nil error means
// the portal had nothing usable.
func (c *Client) GetAppointments(ctx context.Context) (*model.Appointment, error) {
	const op = "get appointments"

	var records []json.RawMessage
	err := c.post(
		ctx, op, pathAppointments,
		newPagedRequest("userid", ""),
		&records,
	)
	if err != nil {
		return nil, err
	}

	for i, raw := range records {
		var rec appointmentRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, genericError(op, fmt.Errorf("decoding appointment %d: %w", i, err))
		}

		if !rec.eligible() {
			continue
		}

		appt, err := rec.toAppointment(raw)
		if err != nil {
			return nil, genericError(op, err)
		}
		return appt, nil
	}

	log.Printf("found %d appointments but none upcoming, checking past appointments", len(records))
	return c.GetAppointmentsPast(ctx)
}

// GetAppointmentsPast returns the most relevant past appointment from the
// first page of history, with a fixed 15 minute duration.
//
// Only the first record is considered: if it lacks a time slot the result
// is nil without scanning further. An empty page is reported as an error
// wrapping ErrNoPastAppointments.
func (c *Client) GetAppointmentsPast(ctx context.Context) (*model.Appointment, error) {
	const op = "get past appointments"

	var records []json.RawMessage
	err := c.post(
		ctx, op, pathPastAppointments,
		newPagedRequest(
			"UserId", "",
			"strindx", pageStart,
			"EndIndx", pageEnd,
		),
		&records,
	)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, genericError(op, ErrNoPastAppointments)
	}

	var rec appointmentRecord
	if err := json.Unmarshal(records[0], &rec); err != nil {
		return nil, genericError(op, fmt.Errorf("decoding appointment 0: %w", err))
	}

	if !rec.hasSlot() {
		log.Printf("latest past appointment has no time slot")
		return nil, nil
	}

	// Past records do not carry a duration.
	rec.Duration = flexInt{}

	appt, err := rec.toAppointment(records[0])
	if err != nil {
		return nil, genericError(op, err)
	}
	appt.Past = true
	return appt, nil
}
