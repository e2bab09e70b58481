package domain

// SyncStage names the phase a progress event belongs to
type SyncStage string

const (
	StageValidate SyncStage = "validate"
	StageRefresh  SyncStage = "refresh"
	StageDedup    SyncStage = "dedup"
	StageUpload   SyncStage = "upload"
)

// ProgressEvent is one snapshot of engine progress, pushed to the
// presentation layer across the goroutine boundary. Current/Total count
// chunks during dedup and assets during upload.
type ProgressEvent struct {
	Stage   SyncStage
	Current int
	Total   int
	Detail  string // filename or asset id being worked on
}

// ProgressFunc receives progress snapshots. Implementations must be
// non-blocking; the engine calls it between units of work.
type ProgressFunc func(ProgressEvent)
