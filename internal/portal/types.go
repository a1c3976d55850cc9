package portal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// requestParam is one key/value pair in the portal's generic request
// envelope.
type requestParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// pagedRequest is the request envelope shared by the appointment and
// inbox endpoints. The server resolves the user from the bearer token, so
// the user id parameter is always sent empty.
type pagedRequest struct {
	RequestPage   string         `json:"requestPage"`
	RequestParams []requestParam `json:"RequestParams"`
}

// newPagedRequest builds a request envelope from alternating key/value
// strings.
func newPagedRequest(kv ...string) pagedRequest {
	params := make([]requestParam, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		params = append(params, requestParam{Key: kv[i], Value: kv[i+1]})
	}
	return pagedRequest{RequestParams: params}
}

// appointmentRecord is a single element of the GetPatientAppointments and
// GetPastAppointmentsPaging responses. Past records omit Duration.
type appointmentRecord struct {
	AppFromTimeSlot string     `json:"AppFromTimeSlot"`
	Duration        flexInt    `json:"Duration"`
	ProviderName    string     `json:"Providername"`
	ReasonToVisit   string     `json:"reasontovisit"`
	BusinessName    string     `json:"BusinessName"`
	AppStatus       flexString `json:"appstatus"`
	IsApproved      flexString `json:"IsApproved"`
}

// messageRecord is a single element of the GetReceivedMessages response.
type messageRecord struct {
	Subject           string `json:"Subject"`
	MessageBody       string `json:"MessageBody"`
	FromName          string `json:"FromName"`
	MessageReceivedOn string `json:"MessageReceivedOn"`
}

// flexString accepts a JSON string, number, boolean or null. The portal is
// not consistent about the types of its status fields.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

// flexInt accepts a JSON number, a numeric string or null. Set reports
// whether a value was present.
type flexInt struct {
	Value int
	Set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = flexInt{}
		return nil
	}

	raw := strings.Trim(string(data), `"`)
	if raw == "" {
		*f = flexInt{}
		return nil
	}

	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", data)
	}
	*f = flexInt{Value: int(n), Set: true}
	return nil
}
