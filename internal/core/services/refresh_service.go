package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/miltos211/iCloudImmichCleanSync/internal/core/domain"
	"github.com/miltos211/iCloudImmichCleanSync/internal/core/ports"
	"github.com/miltos211/iCloudImmichCleanSync/pkg/logger"
)

// RefreshService rebuilds the local catalog from the library provider.
// The store is a disposable projection: every refresh deletes and
// recreates all records.
type RefreshService struct {
	store    ports.AssetStore
	provider ports.LibraryProvider
	log      *logger.Logger
}

// NewRefreshService creates a refresh service
func NewRefreshService(store ports.AssetStore, provider ports.LibraryProvider, log *logger.Logger) *RefreshService {
	return &RefreshService{
		store:    store,
		provider: provider,
		log:      log.With("service", "refresh"),
	}
}

// RefreshRequest selects which parts of the library enter the catalog
type RefreshRequest struct {
	Images             bool
	Videos             bool
	IncludeScreenshots bool
	ScreenshotsOnly    bool
}

// RefreshResponse summarizes the rebuilt catalog
type RefreshResponse struct {
	Total  int
	Images int
	Videos int
}

// Execute rebuilds the catalog. Any provider error aborts before the
// store is touched; the delete+insert itself is one transaction inside
// the store, so a partial catalog is never committed.
func (s *RefreshService) Execute(ctx context.Context, req RefreshRequest) (*RefreshResponse, error) {
	selectors := buildSelectors(req)

	seen := make(map[string]struct{})
	var records []domain.AssetRecord
	resp := &RefreshResponse{}

	for _, filter := range selectors {
		assets, err := s.provider.ListAssets(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("asset listing failed: %w", err)
		}
		for _, a := range assets {
			if _, dup := seen[a.ID]; dup {
				continue
			}
			seen[a.ID] = struct{}{}
			records = append(records, domain.AssetRecord{
				ID:               a.ID,
				OriginalFilename: a.OriginalFilename,
				MediaKind:        a.Kind,
				CreationDate:     a.CreationDate,
				Status:           domain.StatusPending,
			})
			switch a.Kind {
			case domain.MediaVideo:
				resp.Videos++
			default:
				resp.Images++
			}
		}
	}
	resp.Total = len(records)

	if err := s.store.ReplaceAll(ctx, records); err != nil {
		return nil, fmt.Errorf("catalog replace failed: %w", err)
	}

	if err := s.store.SetMeta(ctx, "started_at", time.Now().Format(time.RFC3339)); err != nil {
		return nil, err
	}
	if err := s.store.SetMeta(ctx, "total_assets", strconv.Itoa(resp.Total)); err != nil {
		return nil, err
	}

	s.log.Info("catalog refreshed", "total", resp.Total, "images", resp.Images, "videos", resp.Videos)
	return resp, nil
}

// buildSelectors maps the request onto mutually exclusive provider
// filters. Screenshots are a subset of images, so the image selector
// either includes them or excludes them; there is never a second call
// that would double-count the category.
func buildSelectors(req RefreshRequest) []domain.ListFilter {
	if req.ScreenshotsOnly {
		return []domain.ListFilter{{Kind: domain.MediaImage, ScreenshotsOnly: true}}
	}

	var selectors []domain.ListFilter
	if req.Images {
		selectors = append(selectors, domain.ListFilter{
			Kind:               domain.MediaImage,
			ExcludeScreenshots: !req.IncludeScreenshots,
		})
	}
	if req.Videos {
		selectors = append(selectors, domain.ListFilter{Kind: domain.MediaVideo})
	}
	return selectors
}
