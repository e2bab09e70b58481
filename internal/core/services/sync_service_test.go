package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/miltos211/iCloudImmichCleanSync/internal/core/domain"
	"github.com/miltos211/iCloudImmichCleanSync/internal/core/ports/mocks"
	"github.com/miltos211/iCloudImmichCleanSync/pkg/logger"
)

func newTestEngine(t *testing.T, store *mocks.MockAssetStore, provider *mocks.MockLibraryProvider, client *mocks.MockRemoteClient) *SyncService {
	t.Helper()
	return NewSyncService(store, provider, client, logger.Nop(), SyncConfig{
		ScratchRoot: t.TempDir(),
		ChunkSize:   500,
		MaxRetries:  3,
	})
}

// seedPending inserts n pending records with ascending creation dates,
// ids a1..an
func seedPending(t *testing.T, store *mocks.MockAssetStore, n int) []string {
	t.Helper()
	base := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	records := make([]domain.AssetRecord, n)
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("a%d", i+1)
		ids[i] = id
		records[i] = domain.AssetRecord{
			ID:           id,
			MediaKind:    domain.MediaImage,
			CreationDate: base.Add(time.Duration(i) * time.Minute),
			Status:       domain.StatusPending,
		}
	}
	if err := store.ReplaceAll(context.Background(), records); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return ids
}

func TestSyncService_Run_UploadsAllPending(t *testing.T) {
	store := mocks.NewMockAssetStore()
	provider := mocks.NewMockLibraryProvider()
	client := mocks.NewMockRemoteClient()
	seedPending(t, store, 3)

	engine := newTestEngine(t, store, provider, client)
	summary, err := engine.Run(context.Background(), RunRequest{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Eligible != 3 || summary.Uploaded != 3 || summary.Deduped != 0 || summary.Failed != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	for _, id := range []string{"a1", "a2", "a3"} {
		r := store.Get(id)
		if r == nil || r.Status != domain.StatusCompleted {
			t.Errorf("record %s not completed: %+v", id, r)
			continue
		}
		if r.RemoteID != "remote-"+id {
			t.Errorf("record %s remote id = %q", id, r.RemoteID)
		}
		if r.ProcessedAt == nil {
			t.Errorf("record %s missing processed timestamp", id)
		}
	}
	for _, tag := range client.UploadTags {
		if tag != domain.DeviceID {
			t.Errorf("upload used device tag %q, want %q", tag, domain.DeviceID)
		}
	}
}

func TestSyncService_Run_UploadsInCreationOrder(t *testing.T) {
	store := mocks.NewMockAssetStore()
	provider := mocks.NewMockLibraryProvider()
	client := mocks.NewMockRemoteClient()

	// Inserted newest-first; uploads must still run oldest-first
	base := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	records := []domain.AssetRecord{
		{ID: "new", CreationDate: base.Add(2 * time.Hour), Status: domain.StatusPending},
		{ID: "old", CreationDate: base, Status: domain.StatusPending},
		{ID: "mid", CreationDate: base.Add(time.Hour), Status: domain.StatusPending},
	}
	if err := store.ReplaceAll(context.Background(), records); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	engine := newTestEngine(t, store, provider, client)
	if _, err := engine.Run(context.Background(), RunRequest{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"old", "mid", "new"}
	if len(client.Uploads) != len(want) {
		t.Fatalf("uploaded %d assets, want %d", len(client.Uploads), len(want))
	}
	for i, id := range want {
		if client.Uploads[i] != id {
			t.Errorf("upload[%d] = %q, want %q", i, client.Uploads[i], id)
		}
	}
}

func TestSyncService_Run_DedupChunking(t *testing.T) {
	store := mocks.NewMockAssetStore()
	provider := mocks.NewMockLibraryProvider()
	client := mocks.NewMockRemoteClient()
	ids := seedPending(t, store, 1200)
	for _, id := range ids {
		client.Existing[id] = true
	}

	engine := newTestEngine(t, store, provider, client)
	summary, err := engine.Run(context.Background(), RunRequest{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	sizes := client.ChunkSizes()
	want := []int{500, 500, 200}
	if len(sizes) != len(want) {
		t.Fatalf("got %d chunks %v, want %v", len(sizes), sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("chunk %d size = %d, want %d", i, sizes[i], want[i])
		}
	}

	if summary.Deduped != 1200 || summary.Uploaded != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if client.UploadCount() != 0 {
		t.Errorf("uploaded %d assets, want 0", client.UploadCount())
	}
	r := store.Get("a7")
	if r == nil || r.Status != domain.StatusCompleted || r.RemoteID != domain.RemoteIDExisting {
		t.Errorf("deduped record not marked with sentinel: %+v", r)
	}
	for _, tag := range client.CheckTags {
		if tag != domain.DeviceID {
			t.Errorf("dedup used device tag %q, want %q", tag, domain.DeviceID)
		}
	}
}

func TestSyncService_Run_MixedOutcomes(t *testing.T) {
	store := mocks.NewMockAssetStore()
	provider := mocks.NewMockLibraryProvider()
	client := mocks.NewMockRemoteClient()
	seedPending(t, store, 3)

	client.Existing["a2"] = true
	client.UploadErrs["a3"] = errors.New("read: connection reset by peer")

	engine := newTestEngine(t, store, provider, client)
	summary, err := engine.Run(context.Background(), RunRequest{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Uploaded != 1 || summary.Deduped != 1 || summary.Failed != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	a1 := store.Get("a1")
	if a1.Status != domain.StatusCompleted || a1.RemoteID != "remote-a1" {
		t.Errorf("a1: %+v", a1)
	}
	a2 := store.Get("a2")
	if a2.Status != domain.StatusCompleted || a2.RemoteID != domain.RemoteIDExisting {
		t.Errorf("a2: %+v", a2)
	}
	a3 := store.Get("a3")
	if a3.Status != domain.StatusFailed || a3.RetryCount != 1 {
		t.Errorf("a3: %+v", a3)
	}
	if !strings.Contains(a3.ErrorMessage, "upload") {
		t.Errorf("a3 error message = %q", a3.ErrorMessage)
	}
	if a3.ProcessedAt != nil {
		t.Errorf("failed record should not carry a processed timestamp")
	}
}

func TestSyncService_Run_ValidationFailureAborts(t *testing.T) {
	store := mocks.NewMockAssetStore()
	provider := mocks.NewMockLibraryProvider()
	client := mocks.NewMockRemoteClient()
	seedPending(t, store, 2)
	client.ValidateErr = fmt.Errorf("%w: bad api key", domain.ErrAuth)

	engine := newTestEngine(t, store, provider, client)
	_, err := engine.Run(context.Background(), RunRequest{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, domain.ErrAuth) {
		t.Errorf("error = %v, want auth error", err)
	}

	if len(client.CheckCalls) != 0 || client.UploadCount() != 0 {
		t.Error("no work should run after failed validation")
	}
	if r := store.Get("a1"); r.Status != domain.StatusPending {
		t.Errorf("a1 mutated: %+v", r)
	}
}

func TestSyncService_Run_DryRun(t *testing.T) {
	store := mocks.NewMockAssetStore()
	provider := mocks.NewMockLibraryProvider()
	client := mocks.NewMockRemoteClient()
	seedPending(t, store, 5)

	engine := newTestEngine(t, store, provider, client)
	summary, err := engine.Run(context.Background(), RunRequest{DryRun: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Eligible != 5 {
		t.Errorf("eligible = %d, want 5", summary.Eligible)
	}
	if client.ValidateCalls != 1 {
		t.Errorf("validate calls = %d, want 1", client.ValidateCalls)
	}
	if len(client.CheckCalls) != 0 || client.UploadCount() != 0 {
		t.Error("dry run must not touch the network past validation")
	}
	if r := store.Get("a1"); r.Status != domain.StatusPending {
		t.Errorf("a1 mutated: %+v", r)
	}
}

func TestSyncService_Run_CheckOnly(t *testing.T) {
	store := mocks.NewMockAssetStore()
	provider := mocks.NewMockLibraryProvider()
	client := mocks.NewMockRemoteClient()
	seedPending(t, store, 4)
	client.Existing["a1"] = true
	client.Existing["a4"] = true

	engine := newTestEngine(t, store, provider, client)
	summary, err := engine.DedupOnly(context.Background(), nil)
	if err != nil {
		t.Fatalf("DedupOnly failed: %v", err)
	}

	if summary.Deduped != 2 || summary.Uploaded != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if client.UploadCount() != 0 {
		t.Error("check-only run must not upload")
	}
	if r := store.Get("a2"); r.Status != domain.StatusPending {
		t.Errorf("a2 should stay pending: %+v", r)
	}
}

func TestSyncService_Run_EmptyWorklist(t *testing.T) {
	store := mocks.NewMockAssetStore()
	provider := mocks.NewMockLibraryProvider()
	client := mocks.NewMockRemoteClient()

	engine := newTestEngine(t, store, provider, client)
	summary, err := engine.Run(context.Background(), RunRequest{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Eligible != 0 {
		t.Errorf("eligible = %d, want 0", summary.Eligible)
	}
	if client.ValidateCalls != 1 {
		t.Errorf("validation should still run, calls = %d", client.ValidateCalls)
	}
	if len(client.CheckCalls) != 0 || client.UploadCount() != 0 {
		t.Error("no work expected for an empty catalog")
	}
}

func TestSyncService_Run_ChunkFailureFallsThroughToUpload(t *testing.T) {
	store := mocks.NewMockAssetStore()
	provider := mocks.NewMockLibraryProvider()
	client := mocks.NewMockRemoteClient()
	seedPending(t, store, 3)

	// The server has a1, but every existence check fails; a1 must fall
	// through and be uploaded anyway rather than stall the run.
	client.Existing["a1"] = true
	client.CheckErr = errors.New("502 bad gateway")

	engine := newTestEngine(t, store, provider, client)
	summary, err := engine.Run(context.Background(), RunRequest{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Deduped != 0 {
		t.Errorf("deduped = %d, want 0", summary.Deduped)
	}
	if summary.Uploaded != 3 {
		t.Errorf("uploaded = %d, want 3", summary.Uploaded)
	}
}

func TestSyncService_Run_RetryBounds(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		retryCount int
		attempted  bool
	}{
		{"below cap", 3, 2, true},
		{"at cap", 3, 3, false},
		{"cap one", 1, 0, true},
		{"cap one exhausted", 1, 1, false},
		{"cap zero parks immediately", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewMockAssetStore()
			provider := mocks.NewMockLibraryProvider()
			client := mocks.NewMockRemoteClient()

			records := []domain.AssetRecord{{
				ID:           "f1",
				CreationDate: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
				Status:       domain.StatusFailed,
				RetryCount:   tt.retryCount,
				ErrorMessage: "upload: timeout",
			}}
			if err := store.ReplaceAll(context.Background(), records); err != nil {
				t.Fatalf("seed failed: %v", err)
			}

			engine := NewSyncService(store, provider, client, logger.Nop(), SyncConfig{
				ScratchRoot: t.TempDir(),
				ChunkSize:   500,
				MaxRetries:  tt.maxRetries,
			})
			summary, err := engine.Run(context.Background(), RunRequest{})
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}

			attempted := client.UploadCount() == 1
			if attempted != tt.attempted {
				t.Errorf("attempted = %t, want %t (summary %+v)", attempted, tt.attempted, summary)
			}
		})
	}
}

func TestSyncService_Run_CancellationStopsBetweenAssets(t *testing.T) {
	store := mocks.NewMockAssetStore()
	provider := mocks.NewMockLibraryProvider()
	client := mocks.NewMockRemoteClient()
	seedPending(t, store, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.UploadHook = func(id string) {
		if id == "a2" {
			cancel()
		}
	}

	engine := newTestEngine(t, store, provider, client)
	summary, err := engine.Run(ctx, RunRequest{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !summary.Cancelled {
		t.Error("summary should report cancellation")
	}
	if summary.Uploaded != 2 {
		t.Errorf("uploaded = %d, want 2", summary.Uploaded)
	}
	// Committed work is retained, the rest stays pending
	if r := store.Get("a2"); r.Status != domain.StatusCompleted {
		t.Errorf("a2: %+v", r)
	}
	for _, id := range []string{"a3", "a4", "a5"} {
		if r := store.Get(id); r.Status != domain.StatusPending {
			t.Errorf("%s should stay pending: %+v", id, r)
		}
	}
}

func TestSyncService_Run_ResumeAfterCancellation(t *testing.T) {
	store := mocks.NewMockAssetStore()
	provider := mocks.NewMockLibraryProvider()
	client := mocks.NewMockRemoteClient()
	seedPending(t, store, 3)

	ctx, cancel := context.WithCancel(context.Background())
	client.UploadHook = func(id string) {
		if id == "a1" {
			cancel()
		}
	}

	engine := newTestEngine(t, store, provider, client)
	if _, err := engine.Run(ctx, RunRequest{}); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	client.UploadHook = nil
	summary, err := engine.Run(context.Background(), RunRequest{})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if summary.Eligible != 2 || summary.Uploaded != 2 {
		t.Errorf("resume summary: %+v", summary)
	}
	if n := client.UploadCount(); n != 3 {
		t.Errorf("total uploads = %d, want 3 (no re-upload of a1)", n)
	}
}

func TestSyncService_Run_Idempotent(t *testing.T) {
	store := mocks.NewMockAssetStore()
	provider := mocks.NewMockLibraryProvider()
	client := mocks.NewMockRemoteClient()
	seedPending(t, store, 3)

	engine := newTestEngine(t, store, provider, client)
	if _, err := engine.Run(context.Background(), RunRequest{}); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	summary, err := engine.Run(context.Background(), RunRequest{})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if summary.Eligible != 0 || summary.Uploaded != 0 {
		t.Errorf("second run did work: %+v", summary)
	}
	if n := client.UploadCount(); n != 3 {
		t.Errorf("total uploads = %d, want 3", n)
	}
}

func TestSyncService_Run_PermissionLossIsFatal(t *testing.T) {
	store := mocks.NewMockAssetStore()
	provider := mocks.NewMockLibraryProvider()
	client := mocks.NewMockRemoteClient()
	seedPending(t, store, 3)
	provider.ExportErrs["a2"] = fmt.Errorf("helper: %w", domain.ErrPermissionDenied)

	engine := newTestEngine(t, store, provider, client)
	_, err := engine.Run(context.Background(), RunRequest{})
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("error = %v, want permission denied", err)
	}

	// a1 committed before the loss; a2 is not counted as a retry
	if r := store.Get("a1"); r.Status != domain.StatusCompleted {
		t.Errorf("a1: %+v", r)
	}
	a2 := store.Get("a2")
	if a2.Status != domain.StatusPending || a2.RetryCount != 0 {
		t.Errorf("a2 should be untouched by a permission failure: %+v", a2)
	}
}

func TestSyncService_Run_ExportFailureIsRecorded(t *testing.T) {
	store := mocks.NewMockAssetStore()
	provider := mocks.NewMockLibraryProvider()
	client := mocks.NewMockRemoteClient()
	seedPending(t, store, 2)
	provider.ExportErrs["a1"] = fmt.Errorf("asset: %w", domain.ErrAssetNotFound)

	engine := newTestEngine(t, store, provider, client)
	summary, err := engine.Run(context.Background(), RunRequest{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Failed != 1 || summary.Uploaded != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	a1 := store.Get("a1")
	if a1.Status != domain.StatusFailed || !strings.Contains(a1.ErrorMessage, "export") {
		t.Errorf("a1: %+v", a1)
	}
}

func TestSyncService_Run_StoreFailureIsFatal(t *testing.T) {
	store := mocks.NewMockAssetStore()
	provider := mocks.NewMockLibraryProvider()
	client := mocks.NewMockRemoteClient()
	seedPending(t, store, 2)
	client.Existing["a1"] = true
	store.FailNextWrite = true

	engine := newTestEngine(t, store, provider, client)
	_, err := engine.Run(context.Background(), RunRequest{})
	if err == nil {
		t.Fatal("expected a fatal error from the failed persistence write")
	}
	if client.UploadCount() != 0 {
		t.Error("run must stop before uploading when persistence fails")
	}
}

func TestSyncService_Run_NonReentrant(t *testing.T) {
	store := mocks.NewMockAssetStore()
	provider := mocks.NewMockLibraryProvider()
	client := mocks.NewMockRemoteClient()
	seedPending(t, store, 1)

	gate := make(chan struct{})
	entered := make(chan struct{})
	client.ValidateHook = func() {
		close(entered)
		<-gate
	}

	engine := newTestEngine(t, store, provider, client)
	done := make(chan error, 1)
	go func() {
		_, err := engine.Run(context.Background(), RunRequest{})
		done <- err
	}()

	<-entered
	_, err := engine.Run(context.Background(), RunRequest{})
	if !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("second run error = %v, want ErrSyncInProgress", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// The slot frees once the run ends
	client.ValidateHook = nil
	if _, err := engine.Run(context.Background(), RunRequest{}); err != nil {
		t.Errorf("run after release failed: %v", err)
	}
}

func TestSyncService_Run_ProgressEvents(t *testing.T) {
	store := mocks.NewMockAssetStore()
	provider := mocks.NewMockLibraryProvider()
	client := mocks.NewMockRemoteClient()
	seedPending(t, store, 2)

	var stages []domain.SyncStage
	progress := func(ev domain.ProgressEvent) {
		stages = append(stages, ev.Stage)
	}

	engine := newTestEngine(t, store, provider, client)
	if _, err := engine.Run(context.Background(), RunRequest{Progress: progress}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	seen := map[domain.SyncStage]bool{}
	for _, s := range stages {
		seen[s] = true
	}
	for _, want := range []domain.SyncStage{domain.StageValidate, domain.StageDedup, domain.StageUpload} {
		if !seen[want] {
			t.Errorf("no progress event for stage %q", want)
		}
	}
}
