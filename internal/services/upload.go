package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/apostle/internal/shared"
)

// CloudinaryBaseURL is the hosted image service's API root.
const CloudinaryBaseURL = "https://api.cloudinary.com/v1_1"

// Uploader sends category artwork to the hosted image service.
//
// It uses its own HTTP client so admin credentials never leave for a third party.
type Uploader struct {
	endpoint   string
	preset     string
	attempts   uint
	backOff    func() backoff.BackOff
	httpClient *http.Client
	logger     *log.Logger
}

// NewUploader creates an uploader from configuration.
//
// Returns [shared.ErrMissingConfig] when the cloud name or preset is unset or still a placeholder.
func NewUploader(cfg shared.UploadConfig, client *http.Client) (*Uploader, error) {
	if isPlaceholder(cfg.CloudName) || isPlaceholder(cfg.Preset) {
		return nil, fmt.Errorf("%w: upload.cloud_name and upload.preset must be set", shared.ErrMissingConfig)
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	return &Uploader{
		endpoint:   fmt.Sprintf("%s/%s/image/upload", CloudinaryBaseURL, cfg.CloudName),
		preset:     cfg.Preset,
		attempts:   uint(attempts),
		backOff:    func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		httpClient: client,
		logger:     log.New(io.Discard),
	}, nil
}

func isPlaceholder(v string) bool {
	return v == "" || strings.HasPrefix(v, "your_")
}

// SetLogger sets the logger used to report retries.
func (u *Uploader) SetLogger(l *log.Logger) {
	if l != nil {
		u.logger = l
	}
}

// UploadFile uploads the image at path and returns its public URL.
func (u *Uploader) UploadFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return u.Upload(ctx, filepath.Base(path), data)
}

// Upload sends an image and returns its public URL. Network failures and 5xx/429
// answers are retried with exponential backoff; other rejections are final.
func (u *Uploader) Upload(ctx context.Context, name string, data []byte) (string, error) {
	attempt := 0
	op := func() (string, error) {
		attempt++
		return u.post(ctx, name, data)
	}
	notify := func(err error, wait time.Duration) {
		u.logger.Warn("image upload failed, retrying", "attempt", attempt, "wait", wait, "error", err)
	}

	secureURL, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(u.backOff()),
		backoff.WithMaxTries(u.attempts),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrUploadFailed, err)
	}
	return secureURL, nil
}

func (u *Uploader) post(ctx context.Context, name string, data []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return "", backoff.Permanent(err)
	}
	if _, err := part.Write(data); err != nil {
		return "", backoff.Permanent(err)
	}
	if err := w.WriteField("upload_preset", u.preset); err != nil {
		return "", backoff.Permanent(err)
	}
	if err := w.Close(); err != nil {
		return "", backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &body)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, uploadMessage(raw)))
	}

	var result struct {
		SecureURL string `json:"secure_url"`
	}
	if err := json.Unmarshal(raw, &result); err != nil || result.SecureURL == "" {
		return "", backoff.Permanent(fmt.Errorf("response has no secure_url"))
	}
	return result.SecureURL, nil
}

// uploadMessage extracts {"error":{"message":...}} from a rejection.
func uploadMessage(raw []byte) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
