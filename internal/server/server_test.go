package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/labinventory/internal/blobstore"
	"github.com/smallbiznis/labinventory/internal/clock"
	"github.com/smallbiznis/labinventory/internal/config"
	"github.com/smallbiznis/labinventory/internal/lock"
	"github.com/smallbiznis/labinventory/internal/observability"
	obsmetrics "github.com/smallbiznis/labinventory/internal/observability/metrics"
	"github.com/smallbiznis/labinventory/internal/providers/pdf"
	"github.com/smallbiznis/labinventory/internal/qrcode"
	systemdomain "github.com/smallbiznis/labinventory/internal/system/domain"
	"github.com/smallbiznis/labinventory/internal/system/repository"
	"github.com/smallbiznis/labinventory/internal/system/service"
	pkgdb "github.com/smallbiznis/labinventory/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	engine *gin.Engine
	store  *blobstore.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := pkgdb.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&systemdomain.System{}))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	encoder, err := qrcode.NewEncoder("#000000", "#FFFFFF")
	require.NoError(t, err)
	store := blobstore.NewMemoryStore()

	cfg := config.Config{
		BaseURL: "https://inventory.example.edu",
		QR:      config.QRConfig{Workers: 2, RepairBatch: 10},
	}
	systems := service.New(service.Params{
		DB:      conn,
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    repository.Provide(),
		Clock:   clock.NewFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)),
		Config:  cfg,
		Labs:    config.NewStaticLabsHolder("MCA", "BCA"),
		Locker:  lock.NewLocalLocker(lock.Options{}),
		Store:   store,
		Encoder: encoder,
		PDF:     pdf.New(),
		Metrics: obsmetrics.NewNoop(),
	})

	httpMetrics, err := obsmetrics.NewHTTPMetricsWith(prometheus.NewRegistry())
	require.NoError(t, err)
	engine := NewEngine(observability.Config{Environment: "test"}, httpMetrics)
	NewServer(ServerParams{Gin: engine, Cfg: cfg, Systems: systems})

	return &testServer{engine: engine, store: store}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequestWithContext(context.Background(), method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (ts *testServer) create(t *testing.T, lab string, n int, description string) []map[string]any {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/systems", map[string]any{
		"labName":         lab,
		"numberOfSystems": n,
		"description":     description,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[[]map[string]any](t, rec)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateSystems(t *testing.T) {
	ts := newTestServer(t)

	items := ts.create(t, "MCA", 2, "i5, 8GB")
	require.Len(t, items, 2)
	assert.Equal(t, "MCA-001", items[0]["idCode"])
	assert.Equal(t, "MCA-002", items[1]["idCode"])
	assert.IsType(t, "", items[0]["id"])
	assert.Equal(t, "memory://MCA-001.png", items[0]["qrImageUrl"])
	assert.Equal(t, "https://inventory.example.edu/system/"+items[0]["id"].(string), items[0]["systemUrl"])
}

func TestCreateSystemsValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/systems", map[string]any{"labName": "XYZ", "numberOfSystems": 500})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "validation_error", body.Error.Type)
	var fields []string
	for _, e := range body.Error.Errors {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"labName", "numberOfSystems"}, fields)

	rec = ts.do(t, http.MethodPost, "/api/systems", map[string]any{"numberOfSystems": 2})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decode[errorResponse](t, rec)
	require.Len(t, body.Error.Errors, 1)
	assert.Equal(t, "labName", body.Error.Errors[0].Field)
	assert.Equal(t, "required", body.Error.Errors[0].Code)

	rec = ts.do(t, http.MethodPost, "/api/systems", `{"labName":"MCA","numberOfSystems":"lots"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSystem(t *testing.T) {
	ts := newTestServer(t)
	items := ts.create(t, "BCA", 1, "")

	rec := ts.do(t, http.MethodGet, "/api/systems/"+items[0]["id"].(string), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]any](t, rec)
	assert.Equal(t, "BCA-001", got["idCode"])
	assert.Equal(t, config.DefaultDescription, got["description"])

	rec = ts.do(t, http.MethodGet, "/api/systems/12345", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/systems/not-a-number", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSystemsFilters(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t, "MCA", 2, "Ryzen")
	ts.create(t, "BCA", 1, "Core")

	rec := ts.do(t, http.MethodGet, "/api/systems?lab=MCA", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)

	rec = ts.do(t, http.MethodGet, "/api/systems?q=core", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = ts.do(t, http.MethodGet, "/api/systems?qrStatus=broken", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateSystem(t *testing.T) {
	ts := newTestServer(t)
	items := ts.create(t, "MCA", 1, "old")
	id := items[0]["id"].(string)

	rec := ts.do(t, http.MethodPut, "/api/systems/"+id, map[string]any{"labName": "BCA", "description": "new"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[map[string]any](t, rec)
	assert.Equal(t, "MCA-001", got["idCode"])
	assert.Equal(t, "BCA", got["labName"])
	assert.Contains(t, got["qrPayload"], `"description":"new"`)

	rec = ts.do(t, http.MethodPut, "/api/systems/"+id, map[string]any{"labName": "NOPE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/systems/999", map[string]any{"description": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSystem(t *testing.T) {
	ts := newTestServer(t)
	items := ts.create(t, "MCA", 1, "")
	id := items[0]["id"].(string)
	ts.store.FailDelete("MCA-001.png", nil)

	rec := ts.do(t, http.MethodDelete, "/api/systems/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"System deleted successfully"}`, rec.Body.String())

	rec = ts.do(t, http.MethodDelete, "/api/systems/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBulkDeleteSystems(t *testing.T) {
	ts := newTestServer(t)
	items := ts.create(t, "BCA", 3, "")

	rec := ts.do(t, http.MethodPost, "/api/systems/bulk-delete", map[string]any{
		"ids": []string{items[0]["id"].(string), items[1]["id"].(string), "424242"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"deletedCount":2,"message":"2 system(s) deleted successfully"}`, rec.Body.String())

	for _, body := range []any{map[string]any{"ids": []string{}}, `{"ids":"abc"}`, `{}`} {
		rec = ts.do(t, http.MethodPost, "/api/systems/bulk-delete", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		resp := decode[errorResponse](t, rec)
		require.NotEmpty(t, resp.Error.Errors)
		assert.Equal(t, "ids", resp.Error.Errors[0].Field)
	}
}

func TestStatsAndLabs(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t, "MCA", 2, "A")

	rec := ts.do(t, http.MethodGet, "/api/systems/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, stats["totalSystems"])
	assert.Equal(t, map[string]any{"MCA": float64(2), "BCA": float64(0)}, stats["departmentCounts"])
	assert.Contains(t, stats, "configStats")
	assert.Contains(t, stats, "lastUpdated")

	rec = ts.do(t, http.MethodGet, "/api/labs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"labs":["MCA","BCA"]}`, rec.Body.String())
}

func TestExportCSV(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t, "MCA", 1, `quad "core", 8GB`)

	rec := ts.do(t, http.MethodGet, "/api/systems/export/csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	assert.Regexp(t, `^attachment; filename="systems-export-\d+\.csv"$`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), `"quad ""core"", 8GB"`)
}

func TestExportQRArchive(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/systems/export/qr/MCA", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.create(t, "MCA", 2, "")
	rec = ts.do(t, http.MethodGet, "/api/systems/export/qr/MCA", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="MCA-qr-codes.zip"`, rec.Header().Get("Content-Disposition"))

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	assert.Len(t, zr.File, 3)
}

func TestRepairEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.store.FailUpload("MCA-001.png", nil)
	items := ts.create(t, "MCA", 1, "")
	assert.Nil(t, items[0]["qrImageUrl"])

	ts.store.Heal("MCA-001.png")
	rec := ts.do(t, http.MethodPost, "/api/systems/"+items[0]["id"].(string)+"/qr", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "memory://MCA-001.png", decode[map[string]any](t, rec)["qrImageUrl"])

	rec = ts.do(t, http.MethodPost, "/api/systems/qr/repair", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"attempted":0,"repaired":0}`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/systems/qr/repair?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[errorResponse](t, rec).Error.Type)
}
