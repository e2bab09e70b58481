// Package immich is a typed HTTP client for the Immich asset API:
// connection validation, bulk existence checks and multipart uploads.
package immich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/miltos211/iCloudImmichCleanSync/internal/core/domain"
	"github.com/miltos211/iCloudImmichCleanSync/pkg/httpx"
	"github.com/miltos211/iCloudImmichCleanSync/pkg/logger"
)

// MaxExistBatch is the server-side cap on ids per existence check.
// Larger batches are rejected or mishandled, so the client refuses them
// outright instead of silently truncating.
const MaxExistBatch = 500

// Config carries connection settings for the client
type Config struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration // validate + existence checks
	UploadTimeout  time.Duration // whole multipart upload
	UploadAttempts int           // in-call attempts for transient failures
}

// Client talks to one Immich server
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cfg     Config
	log     *logger.Logger
}

// New builds a client. The base URL is normalized: surrounding
// whitespace, a trailing slash and a trailing /api suffix are stripped,
// since users paste both forms.
func New(log *logger.Logger, cfg Config) (*Client, error) {
	base := normalizeBaseURL(cfg.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 5 * time.Minute
	}
	if cfg.UploadAttempts <= 0 {
		cfg.UploadAttempts = 3
	}

	return &Client{
		baseURL: base,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		http:    &http.Client{},
		cfg:     cfg,
		log:     log.With("client", "immich"),
	}, nil
}

func normalizeBaseURL(raw string) string {
	u := strings.TrimSpace(raw)
	u = strings.TrimRight(u, "/")
	u = strings.TrimSuffix(u, "/api")
	return strings.TrimRight(u, "/")
}

// ValidateConnection checks the API key against the server. Returns a
// wrapped domain.ErrAuth on 401/403; any other failure means the server
// is unusable for this run.
func (c *Client) ValidateConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/api-keys/me", nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("API key check failed (status %d): %w", resp.StatusCode, domain.ErrAuth)
	default:
		return fmt.Errorf("server unusable: unexpected status %d", resp.StatusCode)
	}
}

type existRequest struct {
	DeviceAssetIDs []string `json:"deviceAssetIds"`
	DeviceID       string   `json:"deviceId"`
}

type existResponse struct {
	ExistingIDs []string `json:"existingIds"`
}

// CheckExisting asks the server which of ids it already has for
// deviceID. ids must not exceed MaxExistBatch.
func (c *Client) CheckExisting(ctx context.Context, ids []string, deviceID string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxExistBatch {
		return nil, fmt.Errorf("existence check batch too large: %d > %d", len(ids), MaxExistBatch)
	}

	body, err := json.Marshal(existRequest{DeviceAssetIDs: ids, DeviceID: deviceID})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/assets/exist", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("existence check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.ServerError{StatusCode: resp.StatusCode, Body: readSnippet(resp.Body)}
	}

	var parsed existResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode existence response: %w", err)
	}
	return parsed.ExistingIDs, nil
}

type uploadResponse struct {
	ID string `json:"id"`
}

// Upload streams filePath plus metadata fields as a multipart request.
// Transient server failures (408/429/5xx) are retried in-call with
// backoff; anything else surfaces immediately.
func (c *Client) Upload(ctx context.Context, filePath string, assetID string, meta domain.ExportMetadata, deviceID string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.UploadAttempts; attempt++ {
		if attempt > 0 {
			delay := httpx.BackoffDelay(attempt-1, time.Second, 30*time.Second)
			c.log.Warn("retrying upload", "asset", assetID, "attempt", attempt+1, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		id, err := c.uploadOnce(ctx, filePath, assetID, meta, deviceID)
		if err == nil {
			return id, nil
		}
		lastErr = err
		if !httpx.IsRetryableError(err) {
			return "", err
		}
	}
	return "", lastErr
}

func (c *Client) uploadOnce(ctx context.Context, filePath string, assetID string, meta domain.ExportMetadata, deviceID string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open export for upload: %w", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.UploadTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadBody(writer, f, assetID, meta, deviceID))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/assets", pr)
	if err != nil {
		return "", err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &domain.ServerError{StatusCode: resp.StatusCode, Body: readSnippet(resp.Body)}
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("upload response carried no asset id")
	}
	return parsed.ID, nil
}

func writeUploadBody(writer *multipart.Writer, f *os.File, assetID string, meta domain.ExportMetadata, deviceID string) error {
	fields := map[string]string{
		"deviceAssetId":  assetID,
		"deviceId":       deviceID,
		"fileCreatedAt":  meta.CreationDate.UTC().Format(time.RFC3339),
		"fileModifiedAt": modifiedAt(meta).UTC().Format(time.RFC3339),
		"isFavorite":     strconv.FormatBool(meta.IsFavorite),
	}
	if meta.Duration > 0 {
		fields["duration"] = strconv.FormatFloat(meta.Duration, 'f', -1, 64)
	}
	if meta.Location != nil {
		fields["latitude"] = strconv.FormatFloat(meta.Location.Latitude, 'f', -1, 64)
		fields["longitude"] = strconv.FormatFloat(meta.Location.Longitude, 'f', -1, 64)
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return err
		}
	}

	part, err := createFilePart(writer, uploadFilename(f, meta))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	return writer.Close()
}

func modifiedAt(meta domain.ExportMetadata) time.Time {
	if meta.ModificationDate.IsZero() {
		return meta.CreationDate
	}
	return meta.ModificationDate
}

func uploadFilename(f *os.File, meta domain.ExportMetadata) string {
	if meta.OriginalFilename != "" {
		return meta.OriginalFilename
	}
	return filepath.Base(f.Name())
}

// createFilePart builds the assetData part with an inferred MIME type
// instead of multipart's default application/octet-stream
func createFilePart(writer *multipart.Writer, filename string) (io.Writer, error) {
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="assetData"; filename="%s"`, escapeQuotes(filename)))
	header.Set("Content-Type", contentType)
	return writer.CreatePart(header)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func readSnippet(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(data))
}
