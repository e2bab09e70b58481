package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/miltos211/iCloudImmichCleanSync/internal/core/domain"
)

// MockRemoteClient is a scripted implementation of the RemoteClient port
// for testing
type MockRemoteClient struct {
	mu sync.Mutex

	// ValidateErr fails ValidateConnection.
	ValidateErr error
	// ValidateHook, when set, runs inside ValidateConnection. Lets tests
	// block the engine mid-run.
	ValidateHook func()

	// Existing is the set of asset ids the fake server already has.
	Existing map[string]bool
	// CheckErr fails every CheckExisting call.
	CheckErr error

	// UploadErrs fails Upload for specific asset ids.
	UploadErrs map[string]error
	// RemoteIDs maps asset ids to server-assigned ids; default "remote-<id>".
	RemoteIDs map[string]string
	// UploadHook runs after each successful upload, with the asset id.
	UploadHook func(id string)

	ValidateCalls int
	CheckCalls    [][]string // ids per CheckExisting call, in order
	CheckTags     []string   // deviceID per CheckExisting call
	Uploads       []string   // asset ids uploaded, in order
	UploadTags    []string   // deviceID per upload
}

// NewMockRemoteClient creates an empty mock client
func NewMockRemoteClient() *MockRemoteClient {
	return &MockRemoteClient{
		Existing:   make(map[string]bool),
		UploadErrs: make(map[string]error),
		RemoteIDs:  make(map[string]string),
	}
}

// ValidateConnection returns the scripted result
func (m *MockRemoteClient) ValidateConnection(ctx context.Context) error {
	m.mu.Lock()
	m.ValidateCalls++
	hook := m.ValidateHook
	err := m.ValidateErr
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

// CheckExisting returns the scripted subset of ids
func (m *MockRemoteClient) CheckExisting(ctx context.Context, ids []string, deviceID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recorded := make([]string, len(ids))
	copy(recorded, ids)
	m.CheckCalls = append(m.CheckCalls, recorded)
	m.CheckTags = append(m.CheckTags, deviceID)

	if m.CheckErr != nil {
		return nil, m.CheckErr
	}

	var existing []string
	for _, id := range ids {
		if m.Existing[id] {
			existing = append(existing, id)
		}
	}
	return existing, nil
}

// Upload returns the scripted remote id or error for the asset
func (m *MockRemoteClient) Upload(ctx context.Context, filePath string, assetID string, meta domain.ExportMetadata, deviceID string) (string, error) {
	m.mu.Lock()
	if err, ok := m.UploadErrs[assetID]; ok {
		m.mu.Unlock()
		return "", err
	}
	m.Uploads = append(m.Uploads, assetID)
	m.UploadTags = append(m.UploadTags, deviceID)
	remoteID, ok := m.RemoteIDs[assetID]
	if !ok {
		remoteID = fmt.Sprintf("remote-%s", assetID)
	}
	hook := m.UploadHook
	m.mu.Unlock()

	if hook != nil {
		hook(assetID)
	}
	return remoteID, nil
}

// UploadCount returns how many uploads succeeded
func (m *MockRemoteClient) UploadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Uploads)
}

// ChunkSizes returns the size of each CheckExisting call in order
func (m *MockRemoteClient) ChunkSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	sizes := make([]int, len(m.CheckCalls))
	for i, c := range m.CheckCalls {
		sizes[i] = len(c)
	}
	return sizes
}
