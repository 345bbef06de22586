package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/zoomvault/backup/internal/models"
	"github.com/zoomvault/backup/internal/zoom"
)

// fakeAPI serves canned pages per user and can fail whole users.
type fakeAPI struct {
	meetings map[string][]zoom.MeetingsPage
	webinars map[string][]zoom.WebinarsPage
	phone    map[string][]zoom.PhonePage
	failFor  map[string]bool
}

func (f *fakeAPI) ListMeetingRecordings(ctx context.Context, email string, from, to time.Time, pageSize int, cursor string) (*zoom.MeetingsPage, error) {
	if f.failFor[email] {
		return nil, errors.New("api unavailable")
	}
	return pickPage(f.meetings[email], cursor)
}

func (f *fakeAPI) ListWebinarRecordings(ctx context.Context, email string, from, to time.Time, pageSize int, cursor string) (*zoom.WebinarsPage, error) {
	return pickPage(f.webinars[email], cursor)
}

func (f *fakeAPI) ListPhoneRecordings(ctx context.Context, email string, from, to time.Time, pageSize int, cursor string) (*zoom.PhonePage, error) {
	return pickPage(f.phone[email], cursor)
}

// pickPage returns the page whose position matches the cursor: "" is page 0,
// "page-N" is page N.
func pickPage[P any](pages []P, cursor string) (*P, error) {
	idx := 0
	if cursor != "" {
		if _, err := fmt.Sscanf(cursor, "page-%d", &idx); err != nil {
			return nil, fmt.Errorf("bad cursor %q", cursor)
		}
	}
	if idx >= len(pages) {
		return nil, nil
	}
	return &pages[idx], nil
}

// fakeInventory keeps rows in memory with the real uniqueness rule.
type fakeInventory struct {
	rows map[string]models.InventoryRecord
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{rows: make(map[string]models.InventoryRecord)}
}

func (f *fakeInventory) InsertFile(ctx context.Context, rec *models.InventoryRecord) (bool, error) {
	key := rec.RecordingType + "|" + rec.RecordingID + "|" + rec.FileType
	if _, ok := f.rows[key]; ok {
		return false, nil
	}
	f.rows[key] = *rec
	return true, nil
}

func (f *fakeInventory) TypeSummary(ctx context.Context) ([]models.TypeSummary, error) {
	return nil, nil
}

func (f *fakeInventory) AuditWindowCounts(ctx context.Context, from, to time.Time) ([]models.AuditCount, error) {
	return nil, nil
}

func (f *fakeInventory) row(t *testing.T, recType, recID, fileType string) models.InventoryRecord {
	t.Helper()
	rec, ok := f.rows[recType+"|"+recID+"|"+fileType]
	if !ok {
		t.Fatalf("no inventory row for %s/%s/%s", recType, recID, fileType)
	}
	return rec
}

func meetingFromJSON(t *testing.T, payload string) zoom.Meeting {
	t.Helper()
	var m zoom.Meeting
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		t.Fatalf("bad test meeting: %v", err)
	}
	return m
}

func testOptions() Options {
	return Options{
		StartDate:          time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		MonthsPerRange:     3,
		PageSizeRecordings: 300,
		PageSizePhone:      100,
	}
}

// newTestEngine pins the clock so the walk covers exactly one window.
func newTestEngine(api API, inv Inventory, opts Options) *Engine {
	e := NewEngine(api, inv, opts, nil)
	e.now = func() time.Time { return time.Date(2021, 3, 15, 10, 0, 0, 0, time.UTC) }
	return e
}

func TestDiscoverMeetingsCatalogsCompletedFiles(t *testing.T) {
	meeting := meetingFromJSON(t, `{
		"uuid":"uuid-1","id":42,"topic":"Standup","host_id":"h1",
		"start_time":"2021-01-05T10:00:00Z","duration":30,
		"recording_files":[
			{"id":"f1","file_type":"MP4","file_size":1024,"download_url":"https://example.com/f1","status":"completed"},
			{"id":"f2","file_type":"TRANSCRIPT","file_size":10,"download_url":"https://example.com/f2","status":"completed"},
			{"id":"f3","file_type":"M4A","file_size":99,"download_url":"https://example.com/f3","status":"processing"},
			{"id":"f4","file_type":"CHAT","file_size":5,"download_url":"","status":"completed"}
		]}`)

	api := &fakeAPI{meetings: map[string][]zoom.MeetingsPage{
		"a@example.com": {{Meetings: []zoom.Meeting{meeting}}},
	}}
	inv := newFakeInventory()

	if err := newTestEngine(api, inv, testOptions()).Run(context.Background(), []string{"a@example.com"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(inv.rows) != 2 {
		t.Fatalf("inventory rows = %d, want 2 (incomplete and url-less files filtered)", len(inv.rows))
	}

	row := inv.row(t, models.TypeMeeting, "f1", "MP4")
	if row.UserEmail != "a@example.com" || row.MeetingID != "uuid-1" || row.Topic != "Standup" {
		t.Errorf("row = %+v", row)
	}
	if row.FileSize != 1024 || row.DownloadURL != "https://example.com/f1" {
		t.Errorf("row file fields = %+v", row)
	}

	var snap struct {
		Meeting  json.RawMessage `json:"meeting"`
		FileInfo json.RawMessage `json:"file_info"`
	}
	if err := json.Unmarshal(row.RawData, &snap); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Meeting == nil || snap.FileInfo == nil {
		t.Errorf("snapshot missing parts: %s", row.RawData)
	}
}

func TestDiscoveryIsIdempotent(t *testing.T) {
	meeting := meetingFromJSON(t, `{
		"uuid":"uuid-1","id":42,"start_time":"2021-01-05T10:00:00Z",
		"recording_files":[{"id":"f1","file_type":"MP4","download_url":"https://example.com/f1","status":"completed"}]}`)

	api := &fakeAPI{meetings: map[string][]zoom.MeetingsPage{
		"a@example.com": {{Meetings: []zoom.Meeting{meeting}}},
	}}
	inv := newFakeInventory()
	e := newTestEngine(api, inv, testOptions())

	for i := 0; i < 2; i++ {
		if err := e.Run(context.Background(), []string{"a@example.com"}); err != nil {
			t.Fatalf("Run #%d: %v", i+1, err)
		}
	}
	if len(inv.rows) != 1 {
		t.Errorf("inventory rows = %d after re-run, want 1", len(inv.rows))
	}
}

func TestDiscoveryFollowsPagination(t *testing.T) {
	page := func(id string, token string) zoom.MeetingsPage {
		m := meetingFromJSON(t, fmt.Sprintf(`{
			"uuid":"uuid-%s","id":42,"start_time":"2021-01-05T10:00:00Z",
			"recording_files":[{"id":"%s","file_type":"MP4","download_url":"https://example.com/%s","status":"completed"}]}`,
			id, id, id))
		return zoom.MeetingsPage{Meetings: []zoom.Meeting{m}, NextPageToken: token}
	}

	api := &fakeAPI{meetings: map[string][]zoom.MeetingsPage{
		"a@example.com": {page("f1", "page-1"), page("f2", "")},
	}}
	inv := newFakeInventory()

	if err := newTestEngine(api, inv, testOptions()).Run(context.Background(), []string{"a@example.com"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(inv.rows) != 2 {
		t.Errorf("inventory rows = %d, want one per page", len(inv.rows))
	}
}

func TestDiscoveryFailedUserIsSkipped(t *testing.T) {
	meeting := meetingFromJSON(t, `{
		"uuid":"uuid-1","id":42,"start_time":"2021-01-05T10:00:00Z",
		"recording_files":[{"id":"f1","file_type":"MP4","download_url":"https://example.com/f1","status":"completed"}]}`)

	api := &fakeAPI{
		meetings: map[string][]zoom.MeetingsPage{
			"b@example.com": {{Meetings: []zoom.Meeting{meeting}}},
		},
		failFor: map[string]bool{"a@example.com": true},
	}
	inv := newFakeInventory()

	err := newTestEngine(api, inv, testOptions()).Run(context.Background(), []string{"a@example.com", "b@example.com"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(inv.rows) != 1 {
		t.Errorf("inventory rows = %d, want the healthy user's row", len(inv.rows))
	}
	inv.row(t, models.TypeMeeting, "f1", "MP4")
}

func TestDiscoverWebinarsToggle(t *testing.T) {
	webinar := meetingFromJSON(t, `{
		"uuid":"web-1","id":77,"start_time":"2021-02-01T10:00:00Z",
		"recording_files":[{"id":"w1","file_type":"MP4","download_url":"https://example.com/w1","status":"completed"}]}`)

	api := &fakeAPI{webinars: map[string][]zoom.WebinarsPage{
		"a@example.com": {{Webinars: []zoom.Meeting{webinar}}},
	}}

	inv := newFakeInventory()
	opts := testOptions()
	opts.IncludeWebinars = true
	if err := newTestEngine(api, inv, opts).Run(context.Background(), []string{"a@example.com"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	row := inv.row(t, models.TypeWebinar, "w1", "MP4")
	if row.MeetingID != "web-1" {
		t.Errorf("webinar row = %+v", row)
	}

	inv = newFakeInventory()
	opts.IncludeWebinars = false
	if err := newTestEngine(api, inv, opts).Run(context.Background(), []string{"a@example.com"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(inv.rows) != 0 {
		t.Errorf("inventory rows = %d with webinars disabled, want 0", len(inv.rows))
	}
}

func TestDiscoverPhone(t *testing.T) {
	var recs []zoom.PhoneRecording
	if err := json.Unmarshal([]byte(`[
		{"id":"r1","call_id":"c1","start_time":"2021-02-01T08:00:00Z","duration":120,"file_size":2048,"download_url":"https://example.com/r1"},
		{"id":"r2","call_id":"c2","start_time":"2021-02-02T08:00:00Z","duration":60,"file_size":512,"download_url":""}
	]`), &recs); err != nil {
		t.Fatalf("bad test recordings: %v", err)
	}

	api := &fakeAPI{phone: map[string][]zoom.PhonePage{
		"a@example.com": {{Recordings: recs}},
	}}
	inv := newFakeInventory()

	if err := newTestEngine(api, inv, testOptions()).Run(context.Background(), []string{"a@example.com"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(inv.rows) != 1 {
		t.Fatalf("inventory rows = %d, want url-less recording filtered", len(inv.rows))
	}
	row := inv.row(t, models.TypePhone, "r1", "mp3")
	if row.FileSize != 2048 || row.Duration != 120 {
		t.Errorf("phone row = %+v", row)
	}
	var snap struct {
		Recording json.RawMessage `json:"recording"`
	}
	if err := json.Unmarshal(row.RawData, &snap); err != nil || snap.Recording == nil {
		t.Errorf("phone snapshot = %s (err %v)", row.RawData, err)
	}
}
