package download

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zoomvault/backup/internal/zoom"
)

// Directory names per recording type under the backup root.
const (
	dirMeetings = "meetings"
	dirPhone    = "phone"
	dirWebinars = "webinars"
)

// resolveExtension picks the on-disk extension for a recording file: the
// explicit file_extension when present, else the configured mapping of
// file_type, else the raw file_type, else "unknown".
func resolveExtension(f *zoom.RecordingFile, extensions map[string]string) string {
	if f.FileExtension != "" {
		return strings.ToLower(f.FileExtension)
	}
	fileType := strings.ToLower(f.FileType)
	if ext, ok := extensions[fileType]; ok {
		return ext
	}
	if fileType != "" {
		return fileType
	}
	return "unknown"
}

// meetingFilename derives the deterministic filename for a meeting or webinar
// recording file: {parent_id}_{file_id}.{ext}.
func meetingFilename(parentID int64, fileID, ext string) string {
	parent := "unknown"
	if parentID != 0 {
		parent = strconv.FormatInt(parentID, 10)
	}
	if fileID == "" {
		fileID = "unknown"
	}
	return fmt.Sprintf("%s_%s.%s", parent, fileID, ext)
}

// phoneFilename derives the deterministic filename for a phone call recording:
// call_{id}_{start}.mp3 with the start time flattened for the filesystem.
func phoneFilename(id string, start time.Time) string {
	if id == "" {
		id = "unknown"
	}
	return fmt.Sprintf("call_%s_%s.mp3", id, sanitizeStartTime(start))
}

// sanitizeStartTime renders an instant the way the RFC3339 form looks after
// replacing ":" with "-", "T" with "_" and dropping the trailing "Z".
func sanitizeStartTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02_15-04-05")
}

// userDir returns (and creates) {root}/{dataType}/{userEmail}.
func userDir(root, dataType, userEmail string) (string, error) {
	dir := filepath.Join(root, dataType, userEmail)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	return dir, nil
}

// addPasscode appends the playback passcode as the pwd query parameter,
// preserving existing parameters. Passcode-protected recordings reject
// downloads without it.
func addPasscode(downloadURL, passcode string) (string, error) {
	if passcode == "" {
		return downloadURL, nil
	}
	u, err := url.Parse(downloadURL)
	if err != nil {
		return "", fmt.Errorf("parse download url: %w", err)
	}
	q := u.Query()
	q.Set("pwd", passcode)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
