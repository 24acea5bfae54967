package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSupabaseStoreUpload(t *testing.T) {
	var gotPath, gotUpsert, gotAuth, gotKey, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUpsert = r.Header.Get("x-upsert")
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("apikey")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Key":"qr-codes/MCA-001.png"}`))
	}))
	defer srv.Close()

	store, err := NewSupabaseStore(SupabaseConfig{BaseURL: srv.URL + "/", ServiceRoleKey: "secret", Bucket: "qr-codes"}, zap.NewNop())
	require.NoError(t, err)

	url, err := store.Upload(context.Background(), "MCA-001.png", []byte("png"), "image/png")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/storage/v1/object/public/qr-codes/MCA-001.png", url)
	assert.Equal(t, "/storage/v1/object/qr-codes/MCA-001.png", gotPath)
	assert.Equal(t, "true", gotUpsert)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, []byte("png"), gotBody)
}

func TestSupabaseStoreUploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"statusCode":"400","error":"Bad Request","message":"bucket not found"}`))
	}))
	defer srv.Close()

	store, err := NewSupabaseStore(SupabaseConfig{BaseURL: srv.URL, Bucket: "qr-codes"}, zap.NewNop())
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), "MCA-001.png", []byte("png"), "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket not found")
}

func TestSupabaseStoreDelete(t *testing.T) {
	var gotMethod, gotPath string
	var body map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	store, err := NewSupabaseStore(SupabaseConfig{BaseURL: srv.URL, Bucket: "qr-codes"}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), "MCA-001.png"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/storage/v1/object/qr-codes", gotPath)
	assert.Equal(t, []string{"MCA-001.png"}, body["prefixes"])
}

func TestSupabaseStoreFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/storage/v1/object/public/qr-codes/missing.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer srv.Close()

	store, err := NewSupabaseStore(SupabaseConfig{BaseURL: srv.URL, Bucket: "qr-codes"}, zap.NewNop())
	require.NoError(t, err)

	data, err := store.Fetch(context.Background(), store.PublicURL("MCA-001.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)

	_, err = store.Fetch(context.Background(), store.PublicURL("missing.png"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSupabaseStoreFetchRejectsForeignHost(t *testing.T) {
	var foreignHits atomic.Int32
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foreignHits.Add(1)
		_, _ = w.Write([]byte("leaked " + r.Header.Get("Authorization")))
	}))
	defer foreign.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer srv.Close()

	store, err := NewSupabaseStore(SupabaseConfig{BaseURL: srv.URL, ServiceRoleKey: "secret", Bucket: "qr-codes"}, zap.NewNop())
	require.NoError(t, err)

	_, err = store.Fetch(context.Background(), foreign.URL+"/storage/v1/object/public/qr-codes/MCA-001.png")
	assert.ErrorIs(t, err, ErrNotPublicURL)
	assert.Zero(t, foreignHits.Load())

	_, err = store.Fetch(context.Background(), "/storage/v1/object/public/qr-codes/MCA-001.png")
	assert.ErrorIs(t, err, ErrNotPublicURL)
	assert.Zero(t, foreignHits.Load())
}

func TestNewSupabaseStoreRequiresAbsoluteURL(t *testing.T) {
	_, err := NewSupabaseStore(SupabaseConfig{BaseURL: "supabase.local", Bucket: "qr-codes"}, zap.NewNop())
	assert.Error(t, err)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	url, err := store.Upload(ctx, "MCA-001.png", []byte("a"), "image/png")
	require.NoError(t, err)
	_, err = store.Upload(ctx, "MCA-001.png", []byte("b"), "image/png")
	require.NoError(t, err)

	data, err := store.Fetch(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), data)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Delete(ctx, "MCA-001.png"))
	_, err = store.Fetch(ctx, url)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Fetch(ctx, "https://elsewhere/x.png")
	assert.ErrorIs(t, err, ErrNotPublicURL)
}

func TestMemoryStoreInjectedFailures(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	store.FailUpload("MCA-002.png", boom)
	_, err := store.Upload(ctx, "MCA-002.png", []byte("x"), "image/png")
	assert.ErrorIs(t, err, boom)

	store.Heal("MCA-002.png")
	_, err = store.Upload(ctx, "MCA-002.png", []byte("x"), "image/png")
	assert.NoError(t, err)

	store.FailDelete("MCA-002.png", nil)
	assert.Error(t, store.Delete(ctx, "MCA-002.png"))
}

type flakyStore struct {
	*MemoryStore
	failures int
	calls    int
}

func (f *flakyStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("temporary")
	}
	return f.MemoryStore.Upload(ctx, key, data, contentType)
}

func TestWithRetryRecoversFromTransientFailures(t *testing.T) {
	inner := &flakyStore{MemoryStore: NewMemoryStore(), failures: 2}
	store := WithRetry(inner, 3, time.Millisecond, zap.NewNop())

	url, err := store.Upload(context.Background(), "MCA-001.png", []byte("x"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, MemoryURL("MCA-001.png"), url)
	assert.Equal(t, 3, inner.calls)
}

func TestWithRetryGivesUp(t *testing.T) {
	inner := &flakyStore{MemoryStore: NewMemoryStore(), failures: 10}
	store := WithRetry(inner, 2, time.Millisecond, zap.NewNop())

	_, err := store.Upload(context.Background(), "MCA-001.png", []byte("x"), "image/png")
	assert.EqualError(t, err, "temporary")
	assert.Equal(t, 2, inner.calls)
}
