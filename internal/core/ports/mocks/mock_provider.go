package mocks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/miltos211/iCloudImmichCleanSync/internal/core/domain"
)

// MockLibraryProvider is a scripted implementation of the LibraryProvider
// port for testing
type MockLibraryProvider struct {
	mu sync.Mutex

	// Assets returned by ListAssets. Filters are applied the way the
	// real helper applies them.
	Assets []domain.AssetSummary

	// ListErr, when set, fails every ListAssets call.
	ListErr error

	// ExportErrs fails ExportAsset for specific asset ids.
	ExportErrs map[string]error

	// Metadata overrides per asset id; otherwise a minimal record is
	// synthesized.
	Metadata map[string]domain.ExportMetadata

	// ListCalls records the filters passed to ListAssets.
	ListCalls []domain.ListFilter

	// ExportCalls records the asset ids exported, in order.
	ExportCalls []string
}

// NewMockLibraryProvider creates an empty mock provider
func NewMockLibraryProvider() *MockLibraryProvider {
	return &MockLibraryProvider{
		ExportErrs: make(map[string]error),
		Metadata:   make(map[string]domain.ExportMetadata),
	}
}

// ListAssets returns the scripted assets after applying filter
func (m *MockLibraryProvider) ListAssets(ctx context.Context, filter domain.ListFilter) ([]domain.AssetSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListCalls = append(m.ListCalls, filter)
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	var out []domain.AssetSummary
	for _, a := range m.Assets {
		if filter.Kind != "" && a.Kind != filter.Kind {
			continue
		}
		if filter.ScreenshotsOnly && !a.IsScreenshot {
			continue
		}
		if filter.ExcludeScreenshots && a.IsScreenshot {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// ExportAsset writes a small placeholder file into outputDir and returns
// it, unless an error is scripted for the id
func (m *MockLibraryProvider) ExportAsset(ctx context.Context, id string, outputDir string) (*domain.ExportedFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ExportCalls = append(m.ExportCalls, id)
	if err, ok := m.ExportErrs[id]; ok {
		return nil, err
	}

	meta, ok := m.Metadata[id]
	if !ok {
		meta = domain.ExportMetadata{
			OriginalFilename: id + ".jpg",
			MediaType:        domain.MediaImage,
			FileSize:         4,
		}
	}

	path := filepath.Join(outputDir, meta.OriginalFilename)
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		return nil, fmt.Errorf("mock export write failed: %w", err)
	}
	return &domain.ExportedFile{Path: path, Metadata: meta}, nil
}
