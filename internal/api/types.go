package api

import (
	"time"

	"github.com/nhle/managemyhealth/internal/entity"
	"github.com/nhle/managemyhealth/internal/model"
)

type EntryResponse struct {
	ID       string        `json:"id"`
	Email    string        `json:"email"`
	Title    string        `json:"title"`
	Status   string        `json:"status"`
	LastSync *time.Time    `json:"last_sync,omitempty"`
	Error    string        `json:"error,omitempty"`
	Device   entity.Device `json:"device"`
}

type StatesResponse struct {
	EntryID   string         `json:"entry_id"`
	FetchedAt *time.Time     `json:"fetched_at,omitempty"`
	States    []entity.State `json:"states"`
}

type CalendarResponse struct {
	EntryID string         `json:"entry_id"`
	Start   time.Time      `json:"start"`
	End     time.Time      `json:"end"`
	Events  []entity.Event `json:"events"`
}

type NotificationsResponse struct {
	Notifications []model.Notification `json:"notifications"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
