package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"threadmart/internal/config"
)

// Asset is an image hosted on the external media store. StorageID is the
// host-side identifier needed to delete the asset later.
type Asset struct {
	URL       string `json:"url"`
	StorageID string `json:"public_id"`
}

// MediaStore uploads and deletes images on a third-party media host.
type MediaStore interface {
	Upload(ctx context.Context, filename string, r io.Reader) (Asset, error)
	Delete(ctx context.Context, storageID string) error
}

// HTTPMediaStore talks to the media host's upload/delete HTTP API.
type HTTPMediaStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPMediaStore creates a media store client for the host in cfg.
func NewHTTPMediaStore(cfg config.MediaConfig) *HTTPMediaStore {
	return &HTTPMediaStore{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Upload streams one file to the media host and returns the stored asset.
func (s *HTTPMediaStore) Upload(ctx context.Context, filename string, r io.Reader) (Asset, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return Asset{}, fmt.Errorf("failed to read upload file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Asset{}, fmt.Errorf("failed to finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/upload", &buf)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return Asset{}, fmt.Errorf("media upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Asset{}, fmt.Errorf("media upload failed with status %d", resp.StatusCode)
	}

	var asset Asset
	if err := json.NewDecoder(resp.Body).Decode(&asset); err != nil {
		return Asset{}, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if asset.URL == "" || asset.StorageID == "" {
		return Asset{}, fmt.Errorf("media host returned an incomplete asset")
	}

	return asset, nil
}

// Delete removes one asset from the media host. Deleting an unknown asset
// is treated as success so image cleanup stays idempotent.
func (s *HTTPMediaStore) Delete(ctx context.Context, storageID string) error {
	endpoint := s.baseURL + "/assets/" + url.PathEscape(storageID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("media delete failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("media delete failed with status %d", resp.StatusCode)
	}

	return nil
}
