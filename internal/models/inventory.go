package models

import (
	"encoding/json"
	"time"
)

// Recording types tracked in the inventory.
const (
	TypeMeeting = "meeting"
	TypePhone   = "phone"
	TypeWebinar = "webinar"
)

// Inventory lifecycle statuses. Transitions are monotonic
// (found → downloaded/failed) except for the operator reset failed → found.
const (
	StatusFound      = "found"
	StatusDownloaded = "downloaded"
	StatusFailed     = "failed"
	StatusSkipped    = "skipped"
)

// InventoryRecord is one discovered recording file, unique per
// (recording_type, recording_id, file_type). RawData is a replayable snapshot
// of the source API objects; the download phase never re-queries the API.
type InventoryRecord struct {
	ID            int64           `json:"id"`
	RecordingType string          `json:"recording_type"`
	RecordingID   string          `json:"recording_id"`
	MeetingID     string          `json:"meeting_id,omitempty"`
	UserEmail     string          `json:"user_email"`
	Topic         string          `json:"topic,omitempty"`
	StartTime     time.Time       `json:"start_time"`
	Duration      int             `json:"duration"`
	FileType      string          `json:"file_type"`
	FileSize      int64           `json:"file_size"`
	DownloadURL   string          `json:"download_url"`
	Status        string          `json:"status"`
	FoundAt       time.Time       `json:"found_at"`
	DownloadedAt  *time.Time      `json:"downloaded_at,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	RawData       json.RawMessage `json:"raw_data"`
}

// TypeSummary is the per-type discovery report row.
type TypeSummary struct {
	RecordingType string
	Count         int64
	Earliest      time.Time
	Latest        time.Time
}

// AuditCount is one row of the completeness audit window report.
type AuditCount struct {
	RecordingType string
	UserEmail     string
	Count         int64
}

// StatusCount is one row of the inventory status breakdown.
type StatusCount struct {
	Status string
	Count  int64
}

// YearCount is one row of the inventory year distribution.
type YearCount struct {
	Year          int
	RecordingType string
	Count         int64
}
