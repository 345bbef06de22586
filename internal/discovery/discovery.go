// Package discovery walks every user's meeting, webinar and phone recordings
// and catalogs each downloadable file in the inventory as "found". It never
// downloads anything; the download phase works purely off the inventory.
package discovery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zoomvault/backup/internal/models"
	"github.com/zoomvault/backup/internal/zoom"
)

// API lists recordings from the remote service.
type API interface {
	ListMeetingRecordings(ctx context.Context, userEmail string, from, to time.Time, pageSize int, cursor string) (*zoom.MeetingsPage, error)
	ListWebinarRecordings(ctx context.Context, userEmail string, from, to time.Time, pageSize int, cursor string) (*zoom.WebinarsPage, error)
	ListPhoneRecordings(ctx context.Context, userEmail string, from, to time.Time, pageSize int, cursor string) (*zoom.PhonePage, error)
}

// Inventory records discovered files and answers the post-run reports.
type Inventory interface {
	InsertFile(ctx context.Context, rec *models.InventoryRecord) (bool, error)
	TypeSummary(ctx context.Context) ([]models.TypeSummary, error)
	AuditWindowCounts(ctx context.Context, from, to time.Time) ([]models.AuditCount, error)
}

// Options tunes the discovery walk.
type Options struct {
	StartDate          time.Time
	MonthsPerRange     int
	PageSizeRecordings int
	PageSizePhone      int
	IncludeWebinars    bool
	AuditFrom          time.Time
	AuditTo            time.Time
}

// Engine is the discovery phase.
type Engine struct {
	api    API
	inv    Inventory
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates a discovery engine.
func NewEngine(api API, inv Inventory, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{api: api, inv: inv, opts: opts, logger: logger, now: time.Now}
}

// Run discovers recordings for every user. A failure for one user is logged
// and discovery proceeds to the next; Run only fails on context cancellation.
func (e *Engine) Run(ctx context.Context, userEmails []string) error {
	e.logger.Info("starting recording discovery phase", zap.Int("users", len(userEmails)))

	for i, email := range userEmails {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.logger.Info("discovering recordings",
			zap.String("user", email),
			zap.Int("index", i+1),
			zap.Int("total", len(userEmails)))

		if err := e.discoverUser(ctx, email); err != nil {
			e.logger.Error("discovery failed for user, skipping", zap.String("user", email), zap.Error(err))
			continue
		}
	}

	e.reportResults(ctx)
	return nil
}

func (e *Engine) discoverUser(ctx context.Context, email string) error {
	if err := e.discoverMeetings(ctx, email); err != nil {
		return err
	}
	if e.opts.IncludeWebinars {
		if err := e.discoverWebinars(ctx, email); err != nil {
			return err
		}
	}
	return e.discoverPhone(ctx, email)
}

// discoverMeetings walks the backup range in month windows, paginating each.
func (e *Engine) discoverMeetings(ctx context.Context, email string) error {
	end := e.now().UTC().Truncate(24 * time.Hour)
	totalFound := 0

	for _, rng := range DateRanges(e.opts.StartDate, end, e.opts.MonthsPerRange) {
		cursor := ""
		rangeFound := 0

		for {
			page, err := e.api.ListMeetingRecordings(ctx, email, rng.From, rng.To, e.opts.PageSizeRecordings, cursor)
			if err != nil {
				return err
			}
			if page == nil {
				break
			}

			for i := range page.Meetings {
				n, err := e.catalogMeetingFiles(ctx, email, models.TypeMeeting, &page.Meetings[i])
				if err != nil {
					e.logger.Error("error inserting meeting recording inventory", zap.Error(err))
					continue
				}
				rangeFound += n
			}

			cursor = page.NextPageToken
			if cursor == "" {
				break
			}
		}

		totalFound += rangeFound
		if rangeFound > 0 {
			e.logger.Debug("found meeting recordings in range",
				zap.String("user", email),
				zap.Time("from", rng.From), zap.Time("to", rng.To),
				zap.Int("found", rangeFound))
		}
	}

	if totalFound > 0 {
		e.logger.Info("discovered meeting recordings", zap.String("user", email), zap.Int("count", totalFound))
	}
	return nil
}

func (e *Engine) discoverWebinars(ctx context.Context, email string) error {
	end := e.now().UTC().Truncate(24 * time.Hour)
	totalFound := 0

	for _, rng := range DateRanges(e.opts.StartDate, end, e.opts.MonthsPerRange) {
		cursor := ""
		for {
			page, err := e.api.ListWebinarRecordings(ctx, email, rng.From, rng.To, e.opts.PageSizeRecordings, cursor)
			if err != nil {
				return err
			}
			if page == nil {
				break
			}

			for i := range page.Webinars {
				n, err := e.catalogMeetingFiles(ctx, email, models.TypeWebinar, &page.Webinars[i])
				if err != nil {
					e.logger.Error("error inserting webinar recording inventory", zap.Error(err))
					continue
				}
				totalFound += n
			}

			cursor = page.NextPageToken
			if cursor == "" {
				break
			}
		}
	}

	if totalFound > 0 {
		e.logger.Info("discovered webinar recordings", zap.String("user", email), zap.Int("count", totalFound))
	}
	return nil
}

// catalogMeetingFiles inserts every acceptable file of a meeting or webinar:
// a file needs a download URL and completed processing status.
func (e *Engine) catalogMeetingFiles(ctx context.Context, email, recordingType string, m *zoom.Meeting) (int, error) {
	found := 0
	for i := range m.RecordingFiles {
		f := &m.RecordingFiles[i]
		if f.DownloadURL == "" || f.Status != "completed" {
			continue
		}

		snap, err := meetingSnapshot(recordingType, m, f)
		if err != nil {
			return found, fmt.Errorf("build snapshot: %w", err)
		}

		inserted, err := e.inv.InsertFile(ctx, &models.InventoryRecord{
			RecordingType: recordingType,
			RecordingID:   f.ID,
			MeetingID:     m.UUID,
			UserEmail:     email,
			Topic:         m.Topic,
			StartTime:     m.StartTime,
			Duration:      m.Duration,
			FileType:      f.FileType,
			FileSize:      f.FileSize,
			DownloadURL:   f.DownloadURL,
			RawData:       snap,
		})
		if err != nil {
			return found, err
		}
		if inserted {
			found++
		}
	}
	return found, nil
}

// discoverPhone paginates the whole range directly; phone volume is low
// enough that windowing is unnecessary.
func (e *Engine) discoverPhone(ctx context.Context, email string) error {
	end := e.now().UTC().Truncate(24 * time.Hour)
	cursor := ""
	totalFound := 0

	for {
		page, err := e.api.ListPhoneRecordings(ctx, email, e.opts.StartDate, end, e.opts.PageSizePhone, cursor)
		if err != nil {
			return err
		}
		if page == nil {
			break
		}

		for i := range page.Recordings {
			rec := &page.Recordings[i]
			if rec.DownloadURL == "" {
				continue
			}

			snap, err := phoneSnapshot(rec)
			if err != nil {
				e.logger.Error("error inserting phone recording inventory", zap.Error(err))
				continue
			}

			inserted, err := e.inv.InsertFile(ctx, &models.InventoryRecord{
				RecordingType: models.TypePhone,
				RecordingID:   rec.ID,
				UserEmail:     email,
				StartTime:     rec.StartTime,
				Duration:      rec.Duration,
				FileType:      "mp3",
				FileSize:      rec.FileSize,
				DownloadURL:   rec.DownloadURL,
				RawData:       snap,
			})
			if err != nil {
				e.logger.Error("error inserting phone recording inventory", zap.Error(err))
				continue
			}
			if inserted {
				totalFound++
			}
		}

		cursor = page.NextPageToken
		if cursor == "" {
			break
		}
	}

	if totalFound > 0 {
		e.logger.Info("discovered phone recordings", zap.String("user", email), zap.Int("count", totalFound))
	}
	return nil
}

// reportResults logs the per-type summary and the audit window completeness check.
func (e *Engine) reportResults(ctx context.Context) {
	summary, err := e.inv.TypeSummary(ctx)
	if err != nil {
		e.logger.Error("discovery summary query failed", zap.Error(err))
		return
	}
	e.logger.Info("discovery results")
	for _, s := range summary {
		e.logger.Info("discovered recordings",
			zap.String("type", s.RecordingType),
			zap.Int64("count", s.Count),
			zap.Time("earliest", s.Earliest),
			zap.Time("latest", s.Latest))
	}

	if !e.opts.AuditTo.After(e.opts.AuditFrom) {
		return
	}
	counts, err := e.inv.AuditWindowCounts(ctx, e.opts.AuditFrom, e.opts.AuditTo)
	if err != nil {
		e.logger.Error("audit window query failed", zap.Error(err))
		return
	}
	if len(counts) == 0 {
		e.logger.Warn("no recordings found in audit window",
			zap.Time("from", e.opts.AuditFrom), zap.Time("to", e.opts.AuditTo))
		return
	}
	for _, c := range counts {
		e.logger.Info("audit window recordings",
			zap.String("user", c.UserEmail),
			zap.String("type", c.RecordingType),
			zap.Int64("count", c.Count))
	}
}
