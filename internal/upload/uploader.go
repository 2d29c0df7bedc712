package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"tabcap/internal/domain"
)

// TokenSource supplies a live bearer token. Requested fresh for every
// attempt so a token expiring mid-retry does not sink the upload.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Config controls the upload endpoint and retry behavior.
type Config struct {
	BaseURL string
	// MaxRetries is the number of attempts after the first.
	MaxRetries int
	// RetryDelay is the first backoff step, doubled per retry.
	RetryDelay time.Duration
}

// Uploader ships finished recordings to the storage service as one
// multipart request: the media file plus a JSON metadata field.
type Uploader struct {
	cfg    Config
	tokens TokenSource
	http   *http.Client
}

func NewUploader(cfg Config, tokens TokenSource) *Uploader {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &Uploader{
		cfg:    cfg,
		tokens: tokens,
		http:   &http.Client{Timeout: 10 * time.Minute},
	}
}

type uploadMetadata struct {
	ID         string    `json:"id"`
	TabTitle   string    `json:"tabTitle"`
	TabURL     string    `json:"tabUrl"`
	DurationMs int64     `json:"durationMs"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mimeType"`
	RecordedAt time.Time `json:"recordedAt"`
}

type uploadReply struct {
	Success    bool   `json:"success"`
	StorageKey string `json:"storageKey"`
	Error      string `json:"error"`
}

// Upload ships the recording's audio artifact, or the video artifact
// for recordings captured without audio. Transient failures (network,
// 5xx) are retried with exponential backoff; rejections are not.
func (u *Uploader) Upload(ctx context.Context, artifact domain.RecordingArtifact) (domain.UploadResult, error) {
	blob := artifact.Video
	if artifact.Audio != nil {
		blob = *artifact.Audio
	}
	if blob.Path == "" {
		return domain.UploadResult{}, domain.NewError(domain.ErrorCodeUpload, "recording has no uploadable artifact")
	}

	metadata, err := json.Marshal(uploadMetadata{
		ID:         artifact.ID,
		TabTitle:   artifact.TabTitle,
		TabURL:     artifact.TabURL,
		DurationMs: artifact.DurationMs,
		Size:       blob.Size,
		MimeType:   blob.MimeType,
		RecordedAt: artifact.RecordedAt,
	})
	if err != nil {
		return domain.UploadResult{}, domain.WrapError(domain.ErrorCodeUpload, "failed to encode metadata", err)
	}

	delay := u.cfg.RetryDelay
	var lastErr error
	for attempt := 0; attempt <= u.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.UploadResult{}, domain.WrapError(domain.ErrorCodeUpload, "upload canceled", ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}

		token, err := u.tokens.Token(ctx)
		if err != nil {
			return domain.UploadResult{}, err
		}

		key, err := u.send(ctx, token, blob, metadata)
		if err == nil {
			return domain.UploadResult{StorageKey: key, UploadedAt: time.Now()}, nil
		}
		if !isTransient(err) {
			return domain.UploadResult{}, err
		}
		lastErr = err
	}
	return domain.UploadResult{}, domain.WrapError(domain.ErrorCodeUpload, "upload failed after retries", lastErr)
}

func (u *Uploader) send(ctx context.Context, token string, blob domain.BlobHandle, metadata []byte) (string, error) {
	file, err := os.Open(blob.Path)
	if err != nil {
		return "", domain.WrapError(domain.ErrorCodeUpload, "failed to open recording artifact", err)
	}
	defer file.Close()

	// The artifact streams through a pipe; buffering a long meeting in
	// memory is exactly what the chunked recorder avoids.
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(form, blob, file, metadata))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.cfg.BaseURL+"/recordings", pr)
	if err != nil {
		return "", domain.WrapError(domain.ErrorCodeUpload, "failed to build upload request", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := u.http.Do(req)
	if err != nil {
		return "", &transientError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &transientError{err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", domain.NewError(domain.ErrorCodeAuth, "upload not authorized, sign in again")
	case resp.StatusCode >= 500:
		return "", &transientError{err: fmt.Errorf("storage service replied %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", domain.NewError(domain.ErrorCodeUpload,
			fmt.Sprintf("storage service replied %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var reply uploadReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", domain.WrapError(domain.ErrorCodeUpload, "failed to decode upload reply", err)
	}
	if !reply.Success {
		message := reply.Error
		if message == "" {
			message = "upload rejected"
		}
		return "", domain.NewError(domain.ErrorCodeUpload, message)
	}
	if reply.StorageKey == "" {
		return "", domain.NewError(domain.ErrorCodeUpload, "upload reply missing storage key")
	}
	return reply.StorageKey, nil
}

func writeForm(form *multipart.Writer, blob domain.BlobHandle, file io.Reader, metadata []byte) error {
	part, err := form.CreateFormFile("recording", blob.Filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := form.WriteField("metadata", string(metadata)); err != nil {
		return err
	}
	return form.Close()
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var transient *transientError
	return errors.As(err, &transient)
}
