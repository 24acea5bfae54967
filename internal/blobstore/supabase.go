package blobstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// SupabaseConfig addresses one Supabase Storage bucket.
type SupabaseConfig struct {
	BaseURL        string
	ServiceRoleKey string
	Bucket         string
	Timeout        time.Duration
}

// SupabaseStore talks to the Supabase Storage REST API.
type SupabaseStore struct {
	client *resty.Client
	bucket string
	base   string
	origin *url.URL
	log    *zap.Logger
}

type supabaseError struct {
	StatusCode string `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

func NewSupabaseStore(cfg SupabaseConfig, log *zap.Logger) (*SupabaseStore, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("supabase url is required")
	}
	origin, err := url.Parse(base)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("supabase url %q is not absolute", base)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+cfg.ServiceRoleKey).
		SetHeader("apikey", cfg.ServiceRoleKey)

	return &SupabaseStore{
		client: client,
		bucket: cfg.Bucket,
		base:   base,
		origin: origin,
		log:    log.Named("blobstore.supabase"),
	}, nil
}

func (s *SupabaseStore) objectPath(key string) string {
	return "/storage/v1/object/" + url.PathEscape(s.bucket) + "/" + url.PathEscape(key)
}

// PublicURL is the address the bucket serves key from.
func (s *SupabaseStore) PublicURL(key string) string {
	return s.base + "/storage/v1/object/public/" + url.PathEscape(s.bucket) + "/" + url.PathEscape(key)
}

func (s *SupabaseStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}

	var apiErr supabaseError
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "true").
		SetHeader("Cache-Control", "max-age=3600").
		SetBody(data).
		SetError(&apiErr).
		Post(s.objectPath(key))
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("upload %s: status %d: %s", key, resp.StatusCode(), apiErr.text())
	}

	return s.PublicURL(key), nil
}

func (s *SupabaseStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}

	var apiErr supabaseError
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string][]string{"prefixes": {key}}).
		SetError(&apiErr).
		Delete("/storage/v1/object/" + url.PathEscape(s.bucket))
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	if resp.IsError() {
		return fmt.Errorf("delete %s: status %d: %s", key, resp.StatusCode(), apiErr.text())
	}
	return nil
}

// Fetch downloads an object by its public URL. Only URLs on the configured Supabase origin are fetched;
// requests carry the service role key.
func (s *SupabaseStore) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", rawURL, err)
	}
	if !strings.EqualFold(u.Scheme, s.origin.Scheme) || !strings.EqualFold(u.Host, s.origin.Host) {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, ErrNotPublicURL)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("fetch %s: %w", rawURL, ErrNotFound)
	case resp.IsError():
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode())
	}
	return resp.Body(), nil
}

func (e supabaseError) text() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Error != "" {
		return e.Error
	}
	return "unknown error"
}

var _ Store = (*SupabaseStore)(nil)
