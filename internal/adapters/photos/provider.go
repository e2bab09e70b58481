// Package photos adapts the platform helper binary into the engine's
// LibraryProvider port. The helper owns all native photo-library access
// and speaks JSON over stdout.
package photos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/miltos211/iCloudImmichCleanSync/internal/core/domain"
	"github.com/miltos211/iCloudImmichCleanSync/pkg/logger"
)

// Helper error codes, part of the binary's JSON error contract
const (
	codeAssetNotFound    = 2
	codePermissionDenied = 13
)

// CLIProvider runs the helper binary for each provider operation
type CLIProvider struct {
	binary  string
	timeout time.Duration
	log     *logger.Logger
}

// NewCLIProvider builds a provider around the helper at binary. timeout
// bounds each invocation; exports of large originals can be slow when the
// library has to fetch them from remote storage first.
func NewCLIProvider(log *logger.Logger, binary string, timeout time.Duration) *CLIProvider {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &CLIProvider{
		binary:  binary,
		timeout: timeout,
		log:     log.With("adapter", "photos"),
	}
}

// ListAssets enumerates library assets matching filter, sorted by
// creation time ascending (the helper guarantees the ordering)
func (p *CLIProvider) ListAssets(ctx context.Context, filter domain.ListFilter) ([]domain.AssetSummary, error) {
	out, err := p.run(ctx, listArgs(filter))
	if err != nil {
		return nil, err
	}

	var assets []domain.AssetSummary
	if err := json.Unmarshal(out, &assets); err != nil {
		return nil, fmt.Errorf("invalid asset listing from helper: %w", err)
	}
	return assets, nil
}

func listArgs(filter domain.ListFilter) []string {
	args := []string{"list-assets"}
	if filter.Kind != "" {
		args = append(args, "--type", string(filter.Kind))
	}
	switch {
	case filter.ScreenshotsOnly:
		args = append(args, "--screenshots-only")
	case filter.ExcludeScreenshots:
		args = append(args, "--no-screenshots")
	}
	return args
}

type exportResult struct {
	Success   bool                  `json:"success"`
	FilePath  string                `json:"file_path"`
	Metadata  domain.ExportMetadata `json:"metadata"`
	Error     string                `json:"error"`
	ErrorCode int                   `json:"error_code"`
}

// ExportAsset materializes the original-quality file for id into
// outputDir. Live photos yield only their still component; the returned
// metadata says so explicitly.
func (p *CLIProvider) ExportAsset(ctx context.Context, id string, outputDir string) (*domain.ExportedFile, error) {
	out, err := p.run(ctx, []string{"export-asset", id, outputDir})
	if err != nil {
		return nil, err
	}

	var result exportResult
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("invalid export result from helper: %w", err)
	}
	if !result.Success {
		return nil, helperError(result.Error, result.ErrorCode)
	}
	if result.FilePath == "" {
		return nil, fmt.Errorf("helper reported success without a file path")
	}

	return &domain.ExportedFile{
		Path:     result.FilePath,
		Metadata: result.Metadata,
	}, nil
}

func (p *CLIProvider) run(ctx context.Context, args []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.log.Debug("invoking helper", "args", args)

	cmd := exec.CommandContext(ctx, p.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("helper timed out after %s", p.timeout)
		}
		// On failure the helper still emits a JSON error document on
		// stdout; prefer its message over the raw exit status.
		if herr := decodeHelperError(stdout.Bytes()); herr != nil {
			return nil, herr
		}
		return nil, fmt.Errorf("helper failed: %w (stderr: %s)", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

func decodeHelperError(out []byte) error {
	var result exportResult
	if err := json.Unmarshal(out, &result); err != nil || result.Success || result.Error == "" {
		return nil
	}
	return helperError(result.Error, result.ErrorCode)
}

func helperError(msg string, code int) error {
	switch code {
	case codeAssetNotFound:
		return fmt.Errorf("%s: %w", msg, domain.ErrAssetNotFound)
	case codePermissionDenied:
		return fmt.Errorf("%s: %w", msg, domain.ErrPermissionDenied)
	default:
		return fmt.Errorf("export failed: %s", msg)
	}
}
