package ports

import (
	"context"
	"time"

	"github.com/miltos211/iCloudImmichCleanSync/internal/core/domain"
)

// RemoteClient defines the port for the asset-storage server
type RemoteClient interface {
	// ValidateConnection issues an authenticated identity check.
	// Returns domain.ErrAuth (wrapped) on 401/403; any other failure means
	// the connection is unusable and the run must abort.
	ValidateConnection(ctx context.Context) error

	// CheckExisting returns the subset of ids already present on the
	// server, matched by deviceID + asset id. Callers must not pass more
	// ids than the server-side batch limit (500).
	CheckExisting(ctx context.Context, ids []string, deviceID string) ([]string, error)

	// Upload streams the file plus metadata as a multipart request and
	// returns the server-assigned asset id.
	Upload(ctx context.Context, filePath string, assetID string, meta domain.ExportMetadata, deviceID string) (string, error)
}

// LibraryProvider defines the port for the native photo-library access
// layer. Consumed, never implemented, by the engine.
type LibraryProvider interface {
	// ListAssets enumerates assets matching the filter, sorted by
	// creation time ascending.
	ListAssets(ctx context.Context, filter domain.ListFilter) ([]domain.AssetSummary, error)

	// ExportAsset materializes the original-quality file for id into
	// outputDir. Live photos export only their still-image component.
	// Returns domain.ErrAssetNotFound or domain.ErrPermissionDenied
	// (wrapped) for those failure classes.
	ExportAsset(ctx context.Context, id string, outputDir string) (*domain.ExportedFile, error)
}

// AssetStore defines the port for durable per-asset sync state
type AssetStore interface {
	// ReplaceAll atomically deletes every record and inserts the given
	// ones. A failed insert must leave the previous catalog intact.
	ReplaceAll(ctx context.Context, records []domain.AssetRecord) error

	// Eligible returns records with status pending, or failed with
	// retry_count < maxRetries, ordered by creation date ascending.
	Eligible(ctx context.Context, maxRetries int) ([]domain.AssetRecord, error)

	// MarkExisting marks ids as completed with the dedup sentinel
	// remote id and processedAt = at.
	MarkExisting(ctx context.Context, ids []string, at time.Time) error

	// MarkCompleted records a successful upload.
	MarkCompleted(ctx context.Context, id string, remoteID string, fileSize int64, uploadDuration float64, at time.Time) error

	// MarkFailed records a failed attempt and increments the retry count.
	MarkFailed(ctx context.Context, id string, message string) error

	// ResetFailed returns failed records to pending with a zeroed retry
	// count, reporting how many were reset.
	ResetFailed(ctx context.Context) (int64, error)

	// Failed returns all failed records ordered by creation date.
	Failed(ctx context.Context) ([]domain.AssetRecord, error)

	// Stats returns per-status record counts.
	Stats(ctx context.Context) (domain.SyncStats, error)

	// SetMeta and GetMeta store informational run metadata. GetMeta
	// returns "" for a missing key.
	SetMeta(ctx context.Context, key, value string) error
	GetMeta(ctx context.Context, key string) (string, error)
}
