// Package download is the second phase of a backup run: it replays inventory
// snapshots, fetches each recording file to local disk, writes the per-type
// metadata row, and transitions the inventory status. No step re-queries the
// discovery API; the snapshot is the source of truth.
package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/zoomvault/backup/internal/models"
	"github.com/zoomvault/backup/internal/zoom"
)

// Inventory reads pending rows and records outcomes.
type Inventory interface {
	ListFound(ctx context.Context) ([]models.InventoryRecord, error)
	UpdateStatus(ctx context.Context, id int64, status string, downloadedAt *time.Time, errorMessage string) error
}

// Metadata persists the durable per-type records.
type Metadata interface {
	SaveMeeting(ctx context.Context, rec *models.MeetingRecording) error
	SaveWebinar(ctx context.Context, rec *models.MeetingRecording) error
	SavePhone(ctx context.Context, rec *models.PhoneCallRecording) error
}

// Mirror optionally copies a confirmed local file to off-site storage.
type Mirror interface {
	MirrorFile(ctx context.Context, localPath, dataType, userEmail, filename string) error
}

// Options tunes the download phase.
type Options struct {
	RootDir             string // {base_dir}_{version}
	Retries             int
	RetryDelay          time.Duration
	Timeout             time.Duration
	Extensions          map[string]string
	Refresh401Threshold int // consecutive 401s before a proactive token refresh
}

// Report aggregates the outcome of one download batch. StatusWriteFailed counts
// records whose artifacts landed but whose inventory row could not be marked
// downloaded; those rows stay found and are retried on the next run.
type Report struct {
	Succeeded         int
	Failed            int
	StatusWriteFailed int
	Total401s         int
}

// Engine is the download phase.
type Engine struct {
	inv    Inventory
	meta   Metadata
	tokens zoom.TokenSource
	mirror Mirror // nil disables mirroring
	http   *http.Client
	opts   Options
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration)
	now    func() time.Time

	consecutive401s int
	total401s       int
}

// NewEngine creates a download engine. mirror may be nil.
func NewEngine(inv Inventory, meta Metadata, tokens zoom.TokenSource, mirror Mirror, opts Options, logger *zap.Logger) *Engine {
	if opts.Retries < 1 {
		opts.Retries = 1
	}
	if opts.Refresh401Threshold < 1 {
		opts.Refresh401Threshold = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		inv:    inv,
		meta:   meta,
		tokens: tokens,
		mirror: mirror,
		http:   &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		logger: logger,
		sleep:  sleepCtx,
		now:    time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run processes every found inventory row. A failing record is marked failed
// and the batch continues; Run only returns an error when listing the work or
// the context fails.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	e.logger.Info("starting download phase")

	recordings, err := e.inv.ListFound(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list pending downloads: %w", err)
	}
	e.logger.Info("recordings to download", zap.Int("count", len(recordings)))

	var report Report
	for i := range recordings {
		if err := ctx.Err(); err != nil {
			report.Total401s = e.total401s
			return report, err
		}
		rec := &recordings[i]

		e.logger.Info("downloading recording",
			zap.Int("index", i+1),
			zap.Int("total", len(recordings)),
			zap.String("type", rec.RecordingType),
			zap.String("recording_id", rec.RecordingID),
			zap.String("file_type", rec.FileType))

		if err := e.processRecord(ctx, rec); err != nil {
			e.logger.Error("recording download failed",
				zap.String("recording_id", rec.RecordingID), zap.Error(err))
			if uerr := e.inv.UpdateStatus(ctx, rec.ID, models.StatusFailed, nil, err.Error()); uerr != nil {
				e.logger.Error("failed to record failure", zap.Int64("inventory_id", rec.ID), zap.Error(uerr))
			}
			report.Failed++
			continue
		}

		now := e.now()
		if err := e.inv.UpdateStatus(ctx, rec.ID, models.StatusDownloaded, &now, ""); err != nil {
			e.logger.Error("failed to record success", zap.Int64("inventory_id", rec.ID), zap.Error(err))
			report.StatusWriteFailed++
			continue
		}
		report.Succeeded++
	}

	report.Total401s = e.total401s
	e.logger.Info("download phase completed",
		zap.Int("successful", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("status_write_failures", report.StatusWriteFailed),
		zap.Int("total_401s", report.Total401s))
	return report, nil
}

// snapshot mirrors the raw_data layout written by discovery.
type snapshot struct {
	Meeting   *zoom.Meeting        `json:"meeting"`
	Webinar   *zoom.Meeting        `json:"webinar"`
	Recording *zoom.PhoneRecording `json:"recording"`
	FileInfo  *zoom.RecordingFile  `json:"file_info"`
}

func (e *Engine) processRecord(ctx context.Context, rec *models.InventoryRecord) error {
	var snap snapshot
	if err := json.Unmarshal(rec.RawData, &snap); err != nil {
		return fmt.Errorf("replay snapshot: %w", err)
	}

	switch rec.RecordingType {
	case models.TypeMeeting:
		if snap.Meeting == nil || snap.FileInfo == nil {
			return fmt.Errorf("snapshot missing meeting or file_info")
		}
		return e.processMeetingLike(ctx, rec.UserEmail, models.TypeMeeting, dirMeetings, snap.Meeting, snap.FileInfo)
	case models.TypeWebinar:
		if snap.Webinar == nil || snap.FileInfo == nil {
			return fmt.Errorf("snapshot missing webinar or file_info")
		}
		return e.processMeetingLike(ctx, rec.UserEmail, models.TypeWebinar, dirWebinars, snap.Webinar, snap.FileInfo)
	case models.TypePhone:
		if snap.Recording == nil {
			return fmt.Errorf("snapshot missing recording")
		}
		return e.processPhone(ctx, rec.UserEmail, snap.Recording)
	default:
		return fmt.Errorf("unknown recording type: %s", rec.RecordingType)
	}
}

func (e *Engine) processMeetingLike(ctx context.Context, userEmail, dataType, dir string, m *zoom.Meeting, f *zoom.RecordingFile) error {
	targetDir, err := userDir(e.opts.RootDir, dir, userEmail)
	if err != nil {
		return err
	}
	ext := resolveExtension(f, e.opts.Extensions)
	filename := meetingFilename(m.ID, f.ID, ext)
	filePath := filepath.Join(targetDir, filename)

	if _, err := os.Stat(filePath); err == nil {
		e.logger.Debug("file already exists", zap.String("path", filePath))
	} else {
		downloadURL, err := addPasscode(f.DownloadURL, m.RecordingPlayPasscode)
		if err != nil {
			return err
		}
		desc := fmt.Sprintf("%s recording (%s)", dataType, f.FileType)
		if err := e.fetchWithTokenRefresh(ctx, downloadURL, filePath, desc); err != nil {
			return err
		}
	}

	if e.mirror != nil {
		if err := e.mirror.MirrorFile(ctx, filePath, dir, userEmail, filename); err != nil {
			e.logger.Warn("mirror upload failed", zap.String("path", filePath), zap.Error(err))
		}
	}

	row := &models.MeetingRecording{
		MeetingID:     m.UUID,
		RecordingID:   f.ID,
		Topic:         m.Topic,
		HostID:        m.HostID,
		HostEmail:     userEmail,
		StartTime:     m.StartTime,
		Duration:      m.Duration,
		FileType:      f.FileType,
		FileSize:      f.FileSize,
		RecordingType: f.RecordingType,
		DownloadURL:   f.DownloadURL,
		Path:          filePath,
		DataType:      dataType,
		Unprocessed:   meetingFallback(dataType, userEmail, filePath, m, f),
	}
	if dataType == models.TypeWebinar {
		return e.meta.SaveWebinar(ctx, row)
	}
	return e.meta.SaveMeeting(ctx, row)
}

func (e *Engine) processPhone(ctx context.Context, userEmail string, rec *zoom.PhoneRecording) error {
	targetDir, err := userDir(e.opts.RootDir, dirPhone, userEmail)
	if err != nil {
		return err
	}
	filename := phoneFilename(rec.ID, rec.StartTime)
	filePath := filepath.Join(targetDir, filename)

	if _, err := os.Stat(filePath); err == nil {
		e.logger.Debug("file already exists", zap.String("path", filePath))
	} else {
		if err := e.fetchWithTokenRefresh(ctx, rec.DownloadURL, filePath, "phone recording"); err != nil {
			return err
		}
	}

	if e.mirror != nil {
		if err := e.mirror.MirrorFile(ctx, filePath, dirPhone, userEmail, filename); err != nil {
			e.logger.Warn("mirror upload failed", zap.String("path", filePath), zap.Error(err))
		}
	}

	fileType := rec.FileType
	if fileType == "" {
		fileType = "mp3"
	}
	row := &models.PhoneCallRecording{
		RecordingID:  rec.ID,
		CallID:       rec.CallID,
		CallerNumber: rec.CallerNumber,
		CalleeNumber: rec.CalleeNumber,
		CallerName:   rec.CallerName,
		CalleeName:   rec.CalleeName,
		Direction:    rec.Direction,
		StartTime:    rec.StartTime,
		EndTime:      rec.EndTime,
		Duration:     rec.Duration,
		FileType:     fileType,
		FileSize:     rec.FileSize,
		DownloadURL:  rec.DownloadURL,
		Path:         filePath,
		OwnerID:      rec.OwnerID,
		OwnerEmail:   userEmail,
		Unprocessed:  phoneFallback(userEmail, filePath, rec),
	}
	return e.meta.SavePhone(ctx, row)
}

// errUnauthorized marks a download rejected with HTTP 401.
var errUnauthorized = errors.New("unauthorized")

// fetchWithTokenRefresh downloads to dest, tracking consecutive 401s across
// calls. At the threshold the token is force-refreshed, the counter reset, and
// the download retried once. Any success resets the counter.
func (e *Engine) fetchWithTokenRefresh(ctx context.Context, url, dest, desc string) error {
	token, err := e.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}

	err = e.downloadFile(ctx, url, token, dest, desc)
	if err == nil {
		e.consecutive401s = 0
		return nil
	}
	if !errors.Is(err, errUnauthorized) {
		return err
	}

	e.consecutive401s++
	e.total401s++
	e.logger.Warn("401 during download",
		zap.Int("consecutive", e.consecutive401s),
		zap.Int("total", e.total401s))

	if e.consecutive401s < e.opts.Refresh401Threshold {
		return err
	}

	e.logger.Warn("refreshing token after consecutive 401 errors", zap.Int("consecutive", e.consecutive401s))
	token, refreshErr := e.tokens.Refresh(ctx)
	if refreshErr != nil {
		return fmt.Errorf("refresh token: %w", refreshErr)
	}
	e.consecutive401s = 0

	e.logger.Info("retrying download with refreshed token", zap.String("description", desc))
	if err := e.downloadFile(ctx, url, token, dest, desc); err != nil {
		if errors.Is(err, errUnauthorized) {
			e.consecutive401s++
			e.total401s++
		}
		return err
	}
	return nil
}

// downloadFile streams url to dest with fixed-delay retries. A 401 response
// aborts the loop immediately so the caller can refresh the token.
func (e *Engine) downloadFile(ctx context.Context, url, token, dest, desc string) error {
	var lastErr error
	for attempt := 0; attempt < e.opts.Retries; attempt++ {
		if attempt > 0 {
			e.sleep(ctx, e.opts.RetryDelay)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := e.downloadOnce(ctx, url, token, dest)
		if err == nil {
			return nil
		}
		if errors.Is(err, errUnauthorized) {
			return err
		}
		lastErr = err
		e.logger.Warn("download attempt failed",
			zap.String("description", desc),
			zap.Int("attempt", attempt+1),
			zap.Int("retries", e.opts.Retries),
			zap.Error(err))
	}
	return fmt.Errorf("download %s failed after %d attempts: %w", desc, e.opts.Retries, lastErr)
}

func (e *Engine) downloadOnce(ctx context.Context, url, token, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return errUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	// Write via a temp file so an interrupted transfer never leaves a partial
	// file that a later run would skip as already downloaded.
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".partial-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("finalize file: %w", err)
	}

	e.logger.Info("downloaded file",
		zap.String("file", filepath.Base(dest)),
		zap.Int64("bytes", written))
	return nil
}
