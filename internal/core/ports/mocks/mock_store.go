package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/miltos211/iCloudImmichCleanSync/internal/core/domain"
)

// MockAssetStore is an in-memory implementation of the AssetStore port
// for testing. It honors the same selection ordering as the real store.
type MockAssetStore struct {
	mu      sync.Mutex
	records map[string]*domain.AssetRecord
	meta    map[string]string

	// FailNextWrite makes the next mutating call return an error, to
	// exercise the fatal persistence path.
	FailNextWrite bool
}

// NewMockAssetStore creates an empty mock store
func NewMockAssetStore() *MockAssetStore {
	return &MockAssetStore{
		records: make(map[string]*domain.AssetRecord),
		meta:    make(map[string]string),
	}
}

func (m *MockAssetStore) failWrite() error {
	if m.FailNextWrite {
		m.FailNextWrite = false
		return fmt.Errorf("simulated store write failure")
	}
	return nil
}

// ReplaceAll swaps the whole catalog
func (m *MockAssetStore) ReplaceAll(ctx context.Context, records []domain.AssetRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failWrite(); err != nil {
		return err
	}

	m.records = make(map[string]*domain.AssetRecord, len(records))
	for i := range records {
		r := records[i]
		m.records[r.ID] = &r
	}
	return nil
}

// Eligible returns pending or retryable-failed records sorted by
// creation date
func (m *MockAssetStore) Eligible(ctx context.Context, maxRetries int) ([]domain.AssetRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.AssetRecord
	for _, r := range m.records {
		if r.Eligible(maxRetries) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreationDate.Before(out[j].CreationDate)
	})
	return out, nil
}

// MarkExisting flips ids to completed with the dedup sentinel
func (m *MockAssetStore) MarkExisting(ctx context.Context, ids []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failWrite(); err != nil {
		return err
	}

	for _, id := range ids {
		r, ok := m.records[id]
		if !ok {
			continue
		}
		r.Status = domain.StatusCompleted
		r.RemoteID = domain.RemoteIDExisting
		t := at
		r.ProcessedAt = &t
	}
	return nil
}

// MarkCompleted records a successful upload
func (m *MockAssetStore) MarkCompleted(ctx context.Context, id string, remoteID string, fileSize int64, uploadDuration float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failWrite(); err != nil {
		return err
	}

	r, ok := m.records[id]
	if !ok {
		return fmt.Errorf("record not found: %s", id)
	}
	r.Status = domain.StatusCompleted
	r.RemoteID = remoteID
	r.FileSize = fileSize
	r.UploadDuration = uploadDuration
	t := at
	r.ProcessedAt = &t
	r.ErrorMessage = ""
	return nil
}

// MarkFailed records a failed attempt
func (m *MockAssetStore) MarkFailed(ctx context.Context, id string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failWrite(); err != nil {
		return err
	}

	r, ok := m.records[id]
	if !ok {
		return fmt.Errorf("record not found: %s", id)
	}
	r.Status = domain.StatusFailed
	r.ErrorMessage = message
	r.RetryCount++
	return nil
}

// ResetFailed returns failed records to pending
func (m *MockAssetStore) ResetFailed(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, r := range m.records {
		if r.Status == domain.StatusFailed {
			r.Status = domain.StatusPending
			r.RetryCount = 0
			r.ErrorMessage = ""
			n++
		}
	}
	return n, nil
}

// Failed returns failed records sorted by creation date
func (m *MockAssetStore) Failed(ctx context.Context) ([]domain.AssetRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.AssetRecord
	for _, r := range m.records {
		if r.Status == domain.StatusFailed {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreationDate.Before(out[j].CreationDate)
	})
	return out, nil
}

// Stats counts records per status
func (m *MockAssetStore) Stats(ctx context.Context) (domain.SyncStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats domain.SyncStats
	for _, r := range m.records {
		stats.Total++
		switch r.Status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusCompleted:
			stats.Completed++
		case domain.StatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// SetMeta stores a metadata value
func (m *MockAssetStore) SetMeta(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failWrite(); err != nil {
		return err
	}
	m.meta[key] = value
	return nil
}

// GetMeta reads a metadata value
func (m *MockAssetStore) GetMeta(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta[key], nil
}

// Get returns a copy of the record for assertions, or nil
func (m *MockAssetStore) Get(id string) *domain.AssetRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return nil
	}
	copy := *r
	return &copy
}

// Count returns the number of stored records
func (m *MockAssetStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
