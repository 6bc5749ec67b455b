// Package upload sends attachments to the chat server's upload endpoint.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"chat-client/internal/models"
)

// MaxFileSize is the largest attachment accepted.
const MaxFileSize = 5 * 1024 * 1024

const formField = "file"

var (
	ErrFileTooLarge = errors.New("file exceeds 5MB limit")
	ErrUploadFailed = errors.New("upload failed")
)

type Client struct {
	url  string
	http *http.Client
	log  *zap.Logger
}

// NewClient returns an uploader for url. A nil httpClient gets a client
// with a 30s timeout.
func NewClient(url string, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{url: url, http: httpClient, log: log}
}

// Upload posts the file at path and returns where the server stored it.
func (c *Client) Upload(ctx context.Context, path string) (models.FileDescriptor, error) {
	ctx, span := otel.Tracer("chat-client/upload").Start(ctx, "upload.file")
	defer span.End()

	fd, err := c.upload(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Warn("upload failed", zap.String("path", path), zap.Error(err))
		return models.FileDescriptor{}, err
	}
	span.SetAttributes(attribute.String("file.name", fd.FileName), attribute.Int64("file.size", fd.FileSize))
	c.log.Info("file uploaded", zap.String("file", fd.FileName), zap.Int64("size", fd.FileSize))
	return fd, nil
}

func (c *Client) upload(ctx context.Context, path string) (models.FileDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.FileDescriptor{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return models.FileDescriptor{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > MaxFileSize {
		return models.FileDescriptor{}, ErrFileTooLarge
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile(formField, filepath.Base(path))
	if err != nil {
		return models.FileDescriptor{}, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return models.FileDescriptor{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := form.Close(); err != nil {
		return models.FileDescriptor{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return models.FileDescriptor{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return models.FileDescriptor{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.FileDescriptor{}, fmt.Errorf("%w: status %d", ErrUploadFailed, resp.StatusCode)
	}

	var fd models.FileDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&fd); err != nil {
		return models.FileDescriptor{}, fmt.Errorf("%w: decode reply: %v", ErrUploadFailed, err)
	}
	if fd.FileURL == "" {
		return models.FileDescriptor{}, fmt.Errorf("%w: reply has no file url", ErrUploadFailed)
	}
	return fd, nil
}
