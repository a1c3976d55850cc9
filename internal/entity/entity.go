// Package entity turns poll snapshots into the sensor and calendar
// entities a home-automation host displays.
package entity

import "github.com/nhle/managemyhealth/internal/model"

const (
	// Attribution is attached to every entity state.
	Attribution = "Data provided by ManageMyHealth"

	// ConfigurationURL links to the patient dashboard on the portal.
	ConfigurationURL = "https://app.managemyhealth.co.nz/dashboards/dashboard"

	Manufacturer = "ManageMyHealth"
	icon         = "mdi:doctor"
)

// Device groups the entities of one configured account.
type Device struct {
	Identifier       string `json:"identifier"`
	Name             string `json:"name"`
	Manufacturer     string `json:"manufacturer"`
	ConfigurationURL string `json:"configuration_url"`
	SuggestedArea    string `json:"suggested_area"`
	EntryType        string `json:"entry_type"`
}

// DeviceFor returns the service device for an entry.
func DeviceFor(entryID string) Device {
	return Device{
		Identifier:       "managemyhealth_" + entryID,
		Name:             Manufacturer,
		Manufacturer:     Manufacturer,
		ConfigurationURL: ConfigurationURL,
		SuggestedArea:    "Health",
		EntryType:        "service",
	}
}

// State is the rendered value of a single sensor entity.
type State struct {
	UniqueID    string            `json:"unique_id"`
	Name        string            `json:"name"`
	Icon        string            `json:"icon"`
	DeviceClass string            `json:"device_class,omitempty"`
	State       string            `json:"state"`
	Attributes  map[string]string `json:"attributes"`
	Attribution string            `json:"attribution"`
}

// Available reports whether the sensor has a value.
func (s State) Available() bool {
	return s.State != ""
}

// States returns every sensor state for a snapshot in display order.
func States(snap *model.Snapshot) []State {
	return []State{AppointmentSensor(snap), MailboxSensor(snap)}
}
