// Package inventory persists the recording inventory: every file found during
// discovery, its lifecycle status and error state. Tables carry a version
// suffix so a schema change starts a fresh inventory instead of migrating.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zoomvault/backup/internal/models"
)

// Repository handles inventory persistence.
type Repository struct {
	pool  *pgxpool.Pool
	table string
}

// NewRepository creates an inventory repository for the given schema version.
func NewRepository(pool *pgxpool.Pool, version string) *Repository {
	return &Repository{
		pool:  pool,
		table: "zoom_recording_inventory_" + version,
	}
}

// EnsureSchema creates the inventory table and its indexes if absent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id SERIAL PRIMARY KEY,
			recording_type VARCHAR(20) NOT NULL,
			recording_id VARCHAR(128) NOT NULL,
			meeting_id VARCHAR(128),
			user_email VARCHAR(320),
			topic TEXT,
			start_time TIMESTAMPTZ,
			duration INTEGER,
			file_type VARCHAR(32),
			file_size BIGINT,
			download_url TEXT,
			status VARCHAR(20) DEFAULT 'found',
			found_at TIMESTAMPTZ DEFAULT NOW(),
			downloaded_at TIMESTAMPTZ,
			error_message TEXT,
			raw_data JSON,
			UNIQUE(recording_type, recording_id, file_type)
		);
		CREATE INDEX IF NOT EXISTS idx_inventory_user_email ON %[1]s(user_email);
		CREATE INDEX IF NOT EXISTS idx_inventory_start_time ON %[1]s(start_time);
		CREATE INDEX IF NOT EXISTS idx_inventory_status ON %[1]s(status);
	`, r.table)
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create inventory schema: %w", err)
	}
	return nil
}

// InsertFile inserts a discovered file as status=found. Duplicate
// (recording_type, recording_id, file_type) keys are ignored, which makes
// re-running discovery idempotent. Reports whether a new row was inserted.
func (r *Repository) InsertFile(ctx context.Context, rec *models.InventoryRecord) (bool, error) {
	q := fmt.Sprintf(`
		INSERT INTO %s (recording_type, recording_id, meeting_id, user_email, topic,
			start_time, duration, file_type, file_size, download_url, raw_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (recording_type, recording_id, file_type) DO NOTHING`, r.table)

	tag, err := r.pool.Exec(ctx, q,
		rec.RecordingType,
		rec.RecordingID,
		nullString(rec.MeetingID),
		rec.UserEmail,
		nullString(rec.Topic),
		nullTime(rec.StartTime),
		rec.Duration,
		rec.FileType,
		rec.FileSize,
		rec.DownloadURL,
		rec.RawData,
	)
	if err != nil {
		return false, fmt.Errorf("insert inventory row: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListFound returns all rows awaiting download, newest first.
func (r *Repository) ListFound(ctx context.Context) ([]models.InventoryRecord, error) {
	q := fmt.Sprintf(`
		SELECT id, recording_type, recording_id, COALESCE(meeting_id,''), COALESCE(user_email,''),
			COALESCE(topic,''), COALESCE(start_time,'epoch'::timestamptz), COALESCE(duration,0),
			COALESCE(file_type,''), COALESCE(file_size,0), COALESCE(download_url,''), raw_data
		FROM %s
		WHERE status = 'found'
		ORDER BY start_time DESC`, r.table)

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list found recordings: %w", err)
	}
	defer rows.Close()

	var list []models.InventoryRecord
	for rows.Next() {
		var rec models.InventoryRecord
		if err := rows.Scan(&rec.ID, &rec.RecordingType, &rec.RecordingID, &rec.MeetingID,
			&rec.UserEmail, &rec.Topic, &rec.StartTime, &rec.Duration, &rec.FileType,
			&rec.FileSize, &rec.DownloadURL, &rec.RawData); err != nil {
			return nil, fmt.Errorf("scan inventory row: %w", err)
		}
		rec.Status = models.StatusFound
		list = append(list, rec)
	}
	return list, rows.Err()
}

// UpdateStatus records the outcome of a download attempt.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status string, downloadedAt *time.Time, errorMessage string) error {
	q := fmt.Sprintf(`UPDATE %s SET status = $1, downloaded_at = $2, error_message = $3 WHERE id = $4`, r.table)
	if _, err := r.pool.Exec(ctx, q, status, downloadedAt, nullString(errorMessage), id); err != nil {
		return fmt.Errorf("update inventory status: %w", err)
	}
	return nil
}

// ResetFailed moves every failed row back to found, clearing error state, and
// returns the number of rows reset. This is the operator retry path.
func (r *Repository) ResetFailed(ctx context.Context) (int64, error) {
	q := fmt.Sprintf(`
		UPDATE %s SET status = 'found', error_message = NULL, downloaded_at = NULL
		WHERE status = 'failed'`, r.table)
	tag, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("reset failed recordings: %w", err)
	}
	return tag.RowsAffected(), nil
}

// TypeSummary reports count and time bounds per recording type.
func (r *Repository) TypeSummary(ctx context.Context) ([]models.TypeSummary, error) {
	q := fmt.Sprintf(`
		SELECT recording_type, COUNT(*),
			COALESCE(MIN(start_time),'epoch'::timestamptz),
			COALESCE(MAX(start_time),'epoch'::timestamptz)
		FROM %s GROUP BY recording_type`, r.table)

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("type summary: %w", err)
	}
	defer rows.Close()

	var out []models.TypeSummary
	for rows.Next() {
		var s models.TypeSummary
		if err := rows.Scan(&s.RecordingType, &s.Count, &s.Earliest, &s.Latest); err != nil {
			return nil, fmt.Errorf("scan type summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AuditWindowCounts reports per (type, user) counts inside the completeness
// audit window, ordered by user.
func (r *Repository) AuditWindowCounts(ctx context.Context, from, to time.Time) ([]models.AuditCount, error) {
	q := fmt.Sprintf(`
		SELECT recording_type, COALESCE(user_email,''), COUNT(*)
		FROM %s
		WHERE start_time >= $1 AND start_time < $2
		GROUP BY recording_type, user_email
		ORDER BY user_email`, r.table)

	rows, err := r.pool.Query(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("audit window counts: %w", err)
	}
	defer rows.Close()

	var out []models.AuditCount
	for rows.Next() {
		var c models.AuditCount
		if err := rows.Scan(&c.RecordingType, &c.UserEmail, &c.Count); err != nil {
			return nil, fmt.Errorf("scan audit count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// StatusCounts reports how many inventory rows sit in each status.
func (r *Repository) StatusCounts(ctx context.Context) ([]models.StatusCount, error) {
	q := fmt.Sprintf(`SELECT status, COUNT(*) FROM %s GROUP BY status`, r.table)
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()

	var out []models.StatusCount
	for rows.Next() {
		var c models.StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// YearDistribution reports inventory rows per (year, recording_type).
func (r *Repository) YearDistribution(ctx context.Context) ([]models.YearCount, error) {
	q := fmt.Sprintf(`
		SELECT COALESCE(EXTRACT(YEAR FROM start_time),0)::int, recording_type, COUNT(*)
		FROM %s
		GROUP BY EXTRACT(YEAR FROM start_time), recording_type
		ORDER BY 1, 2`, r.table)

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("year distribution: %w", err)
	}
	defer rows.Close()

	var out []models.YearCount
	for rows.Next() {
		var c models.YearCount
		if err := rows.Scan(&c.Year, &c.RecordingType, &c.Count); err != nil {
			return nil, fmt.Errorf("scan year count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
