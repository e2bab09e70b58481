package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/miltos211/iCloudImmichCleanSync/internal/core/domain"
	"github.com/miltos211/iCloudImmichCleanSync/internal/core/ports"
	"github.com/miltos211/iCloudImmichCleanSync/pkg/logger"
)

// ErrSyncInProgress is returned when a second run is started while one is
// still active. The engine mutates the store without row-level locking,
// so concurrent runs must never interleave.
var ErrSyncInProgress = errors.New("a sync run is already in progress")

// SyncService drives the dedup + upload pipeline. Processing is strictly
// sequential per asset: exported originals can be very large, and
// sequential uploads keep server-side ordering predictable.
type SyncService struct {
	store    ports.AssetStore
	provider ports.LibraryProvider
	client   ports.RemoteClient
	log      *logger.Logger

	scratchRoot string
	chunkSize   int
	maxRetries  int

	running atomic.Bool
}

// SyncConfig carries engine tuning
type SyncConfig struct {
	ScratchRoot string // transient exports live under here, one subdir per run
	ChunkSize   int    // ids per existence check, server cap is 500
	MaxRetries  int    // failed attempts before an asset is parked
}

// NewSyncService creates the engine
func NewSyncService(store ports.AssetStore, provider ports.LibraryProvider, client ports.RemoteClient, log *logger.Logger, cfg SyncConfig) *SyncService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 500
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}
	return &SyncService{
		store:       store,
		provider:    provider,
		client:      client,
		log:         log.With("service", "sync"),
		scratchRoot: cfg.ScratchRoot,
		chunkSize:   cfg.ChunkSize,
		maxRetries:  cfg.MaxRetries,
	}
}

// RunRequest selects what a run does
type RunRequest struct {
	// CheckOnly stops after the dedup pass: reconcile local state against
	// the server without transferring data.
	CheckOnly bool
	// DryRun reports the eligible workload without touching the network
	// past connection validation.
	DryRun bool
	// Progress receives snapshots between units of work. Optional.
	Progress domain.ProgressFunc
}

// RunSummary reports what a run did
type RunSummary struct {
	Eligible  int // records selected at the start of the run
	Deduped   int // confirmed already on the server, no upload needed
	Uploaded  int
	Failed    int
	Cancelled bool
}

// Run executes a full sync pass: validate connection, dedup in chunks,
// then export+upload the remainder sequentially. State is persisted
// after every chunk and every record so progress survives a crash or
// cancellation. Cancellation is cooperative, observed between chunks and
// records; committed state is always retained.
func (s *SyncService) Run(ctx context.Context, req RunRequest) (*RunSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer s.running.Store(false)

	progress := req.Progress
	if progress == nil {
		progress = func(domain.ProgressEvent) {}
	}

	progress(domain.ProgressEvent{Stage: domain.StageValidate, Total: 1})
	if err := s.client.ValidateConnection(ctx); err != nil {
		return nil, fmt.Errorf("connection validation failed: %w", err)
	}
	progress(domain.ProgressEvent{Stage: domain.StageValidate, Current: 1, Total: 1})

	eligible, err := s.store.Eligible(ctx, s.maxRetries)
	if err != nil {
		return nil, err
	}
	summary := &RunSummary{Eligible: len(eligible)}

	if len(eligible) == 0 {
		s.log.Info("nothing to upload")
		return summary, nil
	}
	if req.DryRun {
		s.log.Info("dry run", "eligible", len(eligible))
		return summary, nil
	}

	cancelled, err := s.dedupPass(ctx, eligible, summary, progress)
	if err != nil {
		return nil, err
	}
	if cancelled || req.CheckOnly {
		summary.Cancelled = cancelled
		return summary, nil
	}

	worklist, err := s.store.Eligible(ctx, s.maxRetries)
	if err != nil {
		return nil, err
	}
	if len(worklist) == 0 {
		s.log.Info("nothing to upload")
		return summary, nil
	}

	if err := s.uploadPass(ctx, worklist, summary, progress); err != nil {
		return nil, err
	}
	return summary, nil
}

// DedupOnly runs connection validation and the dedup pass without
// uploading anything
func (s *SyncService) DedupOnly(ctx context.Context, progress domain.ProgressFunc) (*RunSummary, error) {
	return s.Run(ctx, RunRequest{CheckOnly: true, Progress: progress})
}

// dedupPass asks the server, in fixed-size chunks, which eligible assets
// it already has, and marks the matches completed. Progress is persisted
// after each chunk. A chunk whose check fails is skipped: those assets
// stay pending and fall through to upload, where a duplicate upload is
// an acceptable fallback.
func (s *SyncService) dedupPass(ctx context.Context, records []domain.AssetRecord, summary *RunSummary, progress domain.ProgressFunc) (bool, error) {
	total := (len(records) + s.chunkSize - 1) / s.chunkSize

	for i := 0; i < len(records); i += s.chunkSize {
		select {
		case <-ctx.Done():
			s.log.Warn("cancelled during duplicate check")
			return true, nil
		default:
		}

		end := i + s.chunkSize
		if end > len(records) {
			end = len(records)
		}
		ids := make([]string, 0, end-i)
		for _, r := range records[i:end] {
			ids = append(ids, r.ID)
		}

		chunk := i/s.chunkSize + 1
		progress(domain.ProgressEvent{Stage: domain.StageDedup, Current: chunk, Total: total})

		existing, err := s.client.CheckExisting(ctx, ids, domain.DeviceID)
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			s.log.Warn("duplicate check failed for chunk, assets fall through to upload", "chunk", chunk, "error", err)
			continue
		}
		if len(existing) == 0 {
			continue
		}

		if err := s.store.MarkExisting(ctx, existing, time.Now()); err != nil {
			// Persistence failures are fatal: progress can no longer be
			// trusted.
			return false, err
		}
		summary.Deduped += len(existing)
		s.log.Debug("marked existing", "chunk", chunk, "count", len(existing))
	}
	return false, nil
}

// uploadPass exports and uploads each record in order, persisting the
// outcome after every record. Scratch files live in a run-scoped
// directory keyed by a fresh token, so retries across runs can never
// clobber a file mid-upload; the directory is removed wholesale when the
// run ends.
func (s *SyncService) uploadPass(ctx context.Context, worklist []domain.AssetRecord, summary *RunSummary, progress domain.ProgressFunc) error {
	runDir := filepath.Join(s.scratchRoot, uuid.NewString())
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(runDir); err != nil {
			s.log.Warn("failed to remove scratch directory", "dir", runDir, "error", err)
		}
	}()

	for i, record := range worklist {
		select {
		case <-ctx.Done():
			s.log.Warn("cancelled, stopping before next asset", "processed", i, "total", len(worklist))
			summary.Cancelled = true
			return nil
		default:
		}

		progress(domain.ProgressEvent{
			Stage:   domain.StageUpload,
			Current: i + 1,
			Total:   len(worklist),
			Detail:  recordLabel(record),
		})

		if err := s.processRecord(ctx, runDir, record, summary); err != nil {
			return err
		}
	}
	return nil
}

// processRecord runs export+upload for one asset. Export/upload failures
// are recorded on the record and are not fatal; store failures and
// library permission loss are.
func (s *SyncService) processRecord(ctx context.Context, runDir string, record domain.AssetRecord, summary *RunSummary) error {
	exported, err := s.provider.ExportAsset(ctx, record.ID, runDir)
	if err != nil {
		if errors.Is(err, domain.ErrPermissionDenied) {
			return fmt.Errorf("library access lost: %w", err)
		}
		if ctx.Err() != nil {
			summary.Cancelled = true
			return nil
		}
		return s.recordFailure(ctx, record, summary, fmt.Errorf("export: %w", err))
	}

	start := time.Now()
	remoteID, err := s.client.Upload(ctx, exported.Path, record.ID, exported.Metadata, domain.DeviceID)
	if err != nil {
		if ctx.Err() != nil {
			summary.Cancelled = true
			return nil
		}
		// The scratch file stays behind; the run directory sweep picks
		// it up when the run ends.
		return s.recordFailure(ctx, record, summary, fmt.Errorf("upload: %w", err))
	}
	uploadDuration := time.Since(start).Seconds()

	if err := s.store.MarkCompleted(ctx, record.ID, remoteID, exported.Metadata.FileSize, uploadDuration, time.Now()); err != nil {
		return err
	}
	summary.Uploaded++

	if err := os.Remove(exported.Path); err != nil {
		s.log.Warn("failed to delete scratch file", "path", exported.Path, "error", err)
	}
	s.log.Info("uploaded", "asset", recordLabel(record), "remote_id", remoteID, "size", exported.Metadata.FileSize)
	return nil
}

func (s *SyncService) recordFailure(ctx context.Context, record domain.AssetRecord, summary *RunSummary, cause error) error {
	s.log.Warn("asset failed", "asset", recordLabel(record), "retry", record.RetryCount+1, "error", cause)
	if err := s.store.MarkFailed(ctx, record.ID, cause.Error()); err != nil {
		return err
	}
	summary.Failed++
	return nil
}

func recordLabel(record domain.AssetRecord) string {
	if record.OriginalFilename != "" {
		return record.OriginalFilename
	}
	return record.ID
}
