package download

import (
	"encoding/json"

	"github.com/zoomvault/backup/internal/models"
	"github.com/zoomvault/backup/internal/zoom"
)

// Fallback bags preserve everything the metadata columns do not: the verbatim
// source objects plus where the artifact landed.

func meetingFallback(dataType, userEmail, path string, m *zoom.Meeting, f *zoom.RecordingFile) json.RawMessage {
	bag := map[string]any{
		"file_info":       f.Raw(),
		"user_email":      userEmail,
		"path":            path,
		"transcript_path": nil,
		"data_type":       dataType,
	}
	if dataType == models.TypeWebinar {
		bag["webinar"] = m.Raw()
	} else {
		bag["meeting"] = m.Raw()
	}
	b, err := json.Marshal(bag)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

func phoneFallback(userEmail, path string, rec *zoom.PhoneRecording) json.RawMessage {
	b, err := json.Marshal(map[string]any{
		"recording":  rec.Raw(),
		"user_email": userEmail,
		"path":       path,
		"data_type":  models.TypePhone,
	})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
