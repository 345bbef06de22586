package models

import (
	"encoding/json"
	"time"
)

// MeetingRecording is the durable record of a downloaded meeting or webinar
// recording file. DataType distinguishes the two when the meeting table is used;
// webinar rows live in their own table. Unprocessed carries the full fallback
// bag (source objects plus placement info) for fields not mapped to a column.
type MeetingRecording struct {
	MeetingID      string          `json:"meeting_id"`
	RecordingID    string          `json:"recording_id"`
	Topic          string          `json:"topic,omitempty"`
	HostID         string          `json:"host_id,omitempty"`
	HostEmail      string          `json:"host_email"`
	StartTime      time.Time       `json:"start_time"`
	Duration       int             `json:"duration"`
	FileType       string          `json:"file_type"`
	FileSize       int64           `json:"file_size"`
	RecordingType  string          `json:"recording_type,omitempty"`
	DownloadURL    string          `json:"download_url"`
	TranscriptURL  string          `json:"transcript_url,omitempty"`
	Path           string          `json:"path"`
	TranscriptPath string          `json:"transcript_path,omitempty"`
	DataType       string          `json:"data_type"`
	Unprocessed    json.RawMessage `json:"unprocessed"`
}

// PhoneCallRecording is the durable record of a downloaded phone call recording.
type PhoneCallRecording struct {
	RecordingID  string          `json:"recording_id"`
	CallID       string          `json:"call_id,omitempty"`
	CallerNumber string          `json:"caller_number,omitempty"`
	CalleeNumber string          `json:"callee_number,omitempty"`
	CallerName   string          `json:"caller_name,omitempty"`
	CalleeName   string          `json:"callee_name,omitempty"`
	Direction    string          `json:"direction,omitempty"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      time.Time       `json:"end_time"`
	Duration     int             `json:"duration"`
	FileType     string          `json:"file_type"`
	FileSize     int64           `json:"file_size"`
	DownloadURL  string          `json:"download_url"`
	Path         string          `json:"path"`
	OwnerID      string          `json:"owner_id,omitempty"`
	OwnerEmail   string          `json:"owner_email"`
	Unprocessed  json.RawMessage `json:"unprocessed"`
}
