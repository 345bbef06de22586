package discovery

import (
	"encoding/json"

	"github.com/zoomvault/backup/internal/models"
	"github.com/zoomvault/backup/internal/zoom"
)

// Snapshots store the verbatim API objects in the inventory so the download
// phase can re-derive paths and metadata without re-querying the API.

type meetingSnapshotData struct {
	Meeting  json.RawMessage `json:"meeting,omitempty"`
	Webinar  json.RawMessage `json:"webinar,omitempty"`
	FileInfo json.RawMessage `json:"file_info"`
}

type phoneSnapshotData struct {
	Recording json.RawMessage `json:"recording"`
}

func meetingSnapshot(recordingType string, m *zoom.Meeting, f *zoom.RecordingFile) (json.RawMessage, error) {
	snap := meetingSnapshotData{FileInfo: f.Raw()}
	if recordingType == models.TypeWebinar {
		snap.Webinar = m.Raw()
	} else {
		snap.Meeting = m.Raw()
	}
	return json.Marshal(snap)
}

func phoneSnapshot(rec *zoom.PhoneRecording) (json.RawMessage, error) {
	return json.Marshal(phoneSnapshotData{Recording: rec.Raw()})
}
