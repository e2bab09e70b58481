package domain

import "time"

// SyncStatus is the lifecycle state of a tracked asset
type SyncStatus string

const (
	StatusPending   SyncStatus = "pending"
	StatusCompleted SyncStatus = "completed"
	StatusFailed    SyncStatus = "failed"
)

// MediaKind distinguishes photos from videos
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// RemoteIDExisting is the sentinel remote id recorded when the server
// confirms an asset is already present but never told us its own id
// (duplicate-check path, no upload performed).
const RemoteIDExisting = "existing"

// DeviceID identifies this tool's uploads to the server's deduplication
// logic. Earlier tooling uploaded under the same id, so changing it would
// break cross-tool duplicate detection.
const DeviceID = "photo-sync-script"

// AssetRecord is one local media item tracked through the sync lifecycle.
// The local store is a disposable projection of the library: a catalog
// refresh deletes and recreates every record.
type AssetRecord struct {
	ID               string     `gorm:"primaryKey"`
	OriginalFilename string     // placeholder until the asset is exported
	MediaKind        MediaKind  `gorm:"type:text"`
	CreationDate     time.Time  `gorm:"index"`
	Status           SyncStatus `gorm:"type:text;index;index:idx_assets_retry,priority:1"`
	RemoteID         string
	ErrorMessage     string
	RetryCount       int `gorm:"index:idx_assets_retry,priority:2"`
	ProcessedAt      *time.Time
	FileSize         int64
	UploadDuration   float64 // seconds
}

// TableName keeps the table name compatible with the original state db
func (AssetRecord) TableName() string {
	return "assets"
}

// Eligible reports whether the record is a candidate for the next sync
// pass: pending, or failed with retries left
func (a AssetRecord) Eligible(maxRetries int) bool {
	if a.Status == StatusPending {
		return true
	}
	return a.Status == StatusFailed && a.RetryCount < maxRetries
}

// AssetSummary is one row of the library provider's asset listing
type AssetSummary struct {
	ID               string    `json:"id"`
	Kind             MediaKind `json:"type"`
	CreationDate     time.Time `json:"creation_date"`
	OriginalFilename string    `json:"original_filename"`
	IsScreenshot     bool      `json:"is_screenshot"`
	IsLivePhoto      bool      `json:"is_live_photo"`
}

// ListFilter selects which assets the library provider enumerates.
// ScreenshotsOnly and ExcludeScreenshots are mutually exclusive.
type ListFilter struct {
	Kind               MediaKind // empty = all kinds
	ScreenshotsOnly    bool
	ExcludeScreenshots bool
}

// Dimensions are pixel dimensions of an exported asset
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Location is a GPS coordinate pair attached to an asset
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ExportMetadata is the full metadata record returned by the library
// provider for an exported asset
type ExportMetadata struct {
	OriginalFilename string     `json:"original_filename"`
	CreationDate     time.Time  `json:"creation_date"`
	ModificationDate time.Time  `json:"modification_date"`
	FileSize         int64      `json:"file_size"`
	MediaType        MediaKind  `json:"media_type"`
	Dimensions       Dimensions `json:"dimensions"`
	Format           string     `json:"format"`
	Duration         float64    `json:"duration,omitempty"` // seconds, videos only
	IsFavorite       bool       `json:"is_favorite"`
	IsHidden         bool       `json:"is_hidden"`
	IsLivePhoto      bool       `json:"is_live_photo"`
	// Always null: live photos export only their still-image component.
	// Kept in the record so the export result states that explicitly
	// rather than implying a missing file.
	LivePhotoVideoComplement *string   `json:"live_photo_video_complement"`
	Location                 *Location `json:"location,omitempty"`
	CameraMake               string    `json:"camera_make,omitempty"`
	CameraModel              string    `json:"camera_model,omitempty"`
}

// ExportedFile is the result of materializing an asset to local disk
type ExportedFile struct {
	Path     string
	Metadata ExportMetadata
}

// SyncStats are per-status record counts for the whole store
type SyncStats struct {
	Total     int64
	Pending   int64
	Completed int64
	Failed    int64
}
