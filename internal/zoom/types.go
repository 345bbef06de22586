package zoom

import (
	"encoding/json"
	"time"
)

// User is one account user from the users listing.
type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

// Meeting is a cloud-recorded meeting or webinar with its recording files.
// The verbatim payload is retained so inventory snapshots and the unprocessed
// fallback column keep fields not mapped to a struct field.
type Meeting struct {
	UUID                  string          `json:"uuid"`
	ID                    int64           `json:"id"`
	Topic                 string          `json:"topic"`
	HostID                string          `json:"host_id"`
	StartTime             time.Time       `json:"start_time"`
	Duration              int             `json:"duration"`
	RecordingPlayPasscode string          `json:"recording_play_passcode,omitempty"`
	RecordingFiles        []RecordingFile `json:"recording_files"`

	raw json.RawMessage
}

// UnmarshalJSON decodes the meeting and captures the verbatim payload.
func (m *Meeting) UnmarshalJSON(b []byte) error {
	type alias Meeting
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*m = Meeting(a)
	m.raw = append(json.RawMessage(nil), b...)
	return nil
}

// Raw returns the verbatim API payload, or a re-marshal for locally built values.
func (m *Meeting) Raw() json.RawMessage {
	if m.raw != nil {
		return m.raw
	}
	b, _ := json.Marshal(m)
	return b
}

// RecordingFile is one downloadable artifact of a meeting or webinar recording.
type RecordingFile struct {
	ID            string `json:"id"`
	MeetingID     string `json:"meeting_id,omitempty"`
	FileType      string `json:"file_type"`
	FileExtension string `json:"file_extension,omitempty"`
	FileSize      int64  `json:"file_size"`
	DownloadURL   string `json:"download_url"`
	Status        string `json:"status"`
	RecordingType string `json:"recording_type,omitempty"`

	raw json.RawMessage
}

// UnmarshalJSON decodes the file descriptor and captures the verbatim payload.
func (f *RecordingFile) UnmarshalJSON(b []byte) error {
	type alias RecordingFile
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*f = RecordingFile(a)
	f.raw = append(json.RawMessage(nil), b...)
	return nil
}

// Raw returns the verbatim API payload, or a re-marshal for locally built values.
func (f *RecordingFile) Raw() json.RawMessage {
	if f.raw != nil {
		return f.raw
	}
	b, _ := json.Marshal(f)
	return b
}

// PhoneRecording is one phone call recording from the phone recordings listing.
type PhoneRecording struct {
	ID           string    `json:"id"`
	CallID       string    `json:"call_id,omitempty"`
	CallerNumber string    `json:"caller_number,omitempty"`
	CalleeNumber string    `json:"callee_number,omitempty"`
	CallerName   string    `json:"caller_name,omitempty"`
	CalleeName   string    `json:"callee_name,omitempty"`
	Direction    string    `json:"direction,omitempty"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Duration     int       `json:"duration"`
	FileType     string    `json:"file_type,omitempty"`
	FileSize     int64     `json:"file_size"`
	DownloadURL  string    `json:"download_url"`
	OwnerID      string    `json:"owner_id,omitempty"`

	raw json.RawMessage
}

// UnmarshalJSON decodes the recording and captures the verbatim payload.
func (p *PhoneRecording) UnmarshalJSON(b []byte) error {
	type alias PhoneRecording
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*p = PhoneRecording(a)
	p.raw = append(json.RawMessage(nil), b...)
	return nil
}

// Raw returns the verbatim API payload, or a re-marshal for locally built values.
func (p *PhoneRecording) Raw() json.RawMessage {
	if p.raw != nil {
		return p.raw
	}
	b, _ := json.Marshal(p)
	return b
}

// UsersPage is one page of the users listing.
type UsersPage struct {
	Users         []User `json:"users"`
	NextPageToken string `json:"next_page_token"`
}

// MeetingsPage is one page of a user's meeting recordings.
type MeetingsPage struct {
	Meetings      []Meeting `json:"meetings"`
	NextPageToken string    `json:"next_page_token"`
}

// WebinarsPage is one page of a user's webinar recordings.
type WebinarsPage struct {
	Webinars      []Meeting `json:"webinars"`
	NextPageToken string    `json:"next_page_token"`
}

// PhonePage is one page of a user's phone recordings.
type PhonePage struct {
	Recordings    []PhoneRecording `json:"recordings"`
	NextPageToken string           `json:"next_page_token"`
}
