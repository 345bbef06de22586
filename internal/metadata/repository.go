// Package metadata persists the durable per-type records of downloaded
// artifacts. Writes are insert-if-absent: a row is created exactly once per
// natural key and never overwritten.
package metadata

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zoomvault/backup/internal/models"
)

// Repository handles metadata persistence for meeting, phone and webinar recordings.
type Repository struct {
	pool         *pgxpool.Pool
	meetingTable string
	phoneTable   string
	webinarTable string
}

// NewRepository creates a metadata repository for the given schema version.
func NewRepository(pool *pgxpool.Pool, version string) *Repository {
	return &Repository{
		pool:         pool,
		meetingTable: "zoom_recordings_" + version,
		phoneTable:   "zoom_phone_recordings_" + version,
		webinarTable: "zoom_webinar_recordings_" + version,
	}
}

// EnsureSchema creates the three metadata tables if absent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	meetingDDL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id SERIAL PRIMARY KEY,
			meeting_id VARCHAR(128),
			recording_id VARCHAR(128),
			topic TEXT,
			host_id VARCHAR(128),
			host_email VARCHAR(320),
			start_time TIMESTAMPTZ,
			duration INTEGER,
			file_type VARCHAR(32),
			file_size BIGINT,
			recording_type VARCHAR(64),
			download_url TEXT,
			transcript_url TEXT,
			path TEXT,
			transcript_path TEXT,
			downloaded_at TIMESTAMPTZ DEFAULT NOW(),
			data_type VARCHAR(20) DEFAULT 'meeting',
			unprocessed JSON DEFAULT '{}',
			UNIQUE(recording_id, file_type)
		);`, r.meetingTable)

	phoneDDL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id SERIAL PRIMARY KEY,
			recording_id VARCHAR(128) UNIQUE,
			call_id VARCHAR(128),
			caller_number VARCHAR(32),
			callee_number VARCHAR(32),
			caller_name VARCHAR(255),
			callee_name VARCHAR(255),
			direction VARCHAR(16),
			start_time TIMESTAMPTZ,
			end_time TIMESTAMPTZ,
			duration INTEGER,
			file_type VARCHAR(32),
			file_size BIGINT,
			download_url TEXT,
			path TEXT,
			owner_id VARCHAR(128),
			owner_email VARCHAR(320),
			downloaded_at TIMESTAMPTZ DEFAULT NOW(),
			unprocessed JSON DEFAULT '{}'
		);`, r.phoneTable)

	webinarDDL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id SERIAL PRIMARY KEY,
			webinar_id VARCHAR(128),
			recording_id VARCHAR(128),
			topic TEXT,
			host_id VARCHAR(128),
			host_email VARCHAR(320),
			start_time TIMESTAMPTZ,
			duration INTEGER,
			file_type VARCHAR(32),
			file_size BIGINT,
			recording_type VARCHAR(64),
			download_url TEXT,
			transcript_url TEXT,
			path TEXT,
			transcript_path TEXT,
			downloaded_at TIMESTAMPTZ DEFAULT NOW(),
			unprocessed JSON DEFAULT '{}',
			UNIQUE(recording_id, file_type)
		);`, r.webinarTable)

	for _, ddl := range []string{meetingDDL, phoneDDL, webinarDDL} {
		if _, err := r.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create metadata schema: %w", err)
		}
	}
	return nil
}

// SaveMeeting writes a meeting recording metadata row, ignoring duplicates.
func (r *Repository) SaveMeeting(ctx context.Context, rec *models.MeetingRecording) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (meeting_id, recording_id, topic, host_id, host_email, start_time,
			duration, file_type, file_size, recording_type, download_url,
			transcript_url, path, transcript_path, data_type, unprocessed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (recording_id, file_type) DO NOTHING`, r.meetingTable)

	_, err := r.pool.Exec(ctx, q,
		rec.MeetingID, rec.RecordingID, rec.Topic, rec.HostID, rec.HostEmail,
		timeOrNil(rec.StartTime), rec.Duration, rec.FileType, rec.FileSize, rec.RecordingType,
		rec.DownloadURL, nullIfEmpty(rec.TranscriptURL), rec.Path,
		nullIfEmpty(rec.TranscriptPath), rec.DataType, rec.Unprocessed)
	if err != nil {
		return fmt.Errorf("save meeting metadata: %w", err)
	}
	return nil
}

// SaveWebinar writes a webinar recording metadata row, ignoring duplicates.
// MeetingID on the record carries the webinar UUID.
func (r *Repository) SaveWebinar(ctx context.Context, rec *models.MeetingRecording) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (webinar_id, recording_id, topic, host_id, host_email, start_time,
			duration, file_type, file_size, recording_type, download_url,
			transcript_url, path, transcript_path, unprocessed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (recording_id, file_type) DO NOTHING`, r.webinarTable)

	_, err := r.pool.Exec(ctx, q,
		rec.MeetingID, rec.RecordingID, rec.Topic, rec.HostID, rec.HostEmail,
		timeOrNil(rec.StartTime), rec.Duration, rec.FileType, rec.FileSize, rec.RecordingType,
		rec.DownloadURL, nullIfEmpty(rec.TranscriptURL), rec.Path,
		nullIfEmpty(rec.TranscriptPath), rec.Unprocessed)
	if err != nil {
		return fmt.Errorf("save webinar metadata: %w", err)
	}
	return nil
}

// SavePhone writes a phone recording metadata row, ignoring duplicates.
func (r *Repository) SavePhone(ctx context.Context, rec *models.PhoneCallRecording) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (recording_id, call_id, caller_number, callee_number,
			caller_name, callee_name, direction, start_time, end_time, duration,
			file_type, file_size, download_url, path, owner_id, owner_email, unprocessed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (recording_id) DO NOTHING`, r.phoneTable)

	_, err := r.pool.Exec(ctx, q,
		rec.RecordingID, rec.CallID, rec.CallerNumber, rec.CalleeNumber,
		rec.CallerName, rec.CalleeName, rec.Direction,
		timeOrNil(rec.StartTime), timeOrNil(rec.EndTime), rec.Duration,
		rec.FileType, rec.FileSize, rec.DownloadURL, rec.Path,
		rec.OwnerID, rec.OwnerEmail, rec.Unprocessed)
	if err != nil {
		return fmt.Errorf("save phone metadata: %w", err)
	}
	return nil
}

// DownloadCounts reports the number of persisted metadata rows per recording type.
func (r *Repository) DownloadCounts(ctx context.Context) (map[string]int64, error) {
	tables := map[string]string{
		models.TypeMeeting: r.meetingTable,
		models.TypePhone:   r.phoneTable,
		models.TypeWebinar: r.webinarTable,
	}
	counts := make(map[string]int64, len(tables))
	for dataType, table := range tables {
		var n int64
		q := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)
		if err := r.pool.QueryRow(ctx, q).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s rows: %w", table, err)
		}
		counts[dataType] = n
	}
	return counts, nil
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
