package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/coresight/coresight/internal/alerting"
	"github.com/coresight/coresight/internal/evaluator"
	"github.com/coresight/coresight/internal/ingest"
	"github.com/coresight/coresight/internal/models"
	"github.com/coresight/coresight/internal/store"
	"github.com/coresight/coresight/internal/telemetry"
	"github.com/coresight/coresight/internal/tracker"
)

const (
	ingestPassword = "agent-secret"
	adminPassword  = "admin-secret"
)

type testServer struct {
	*Server
	db *store.SQLiteStore
	tr *tracker.Tracker
}

func newTestServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "coresight.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := DefaultServerConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "unused.db")
	cfg.IngestPasswordHash = mustHash(t, ingestPassword)
	cfg.AdminPasswordHash = mustHash(t, adminPassword)
	if mutate != nil {
		mutate(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	alerts := alerting.NewManager(st, cfg.AlertCooldown(), nil, logger, nil)
	thresholds, err := evaluator.NewSource(cfg.Thresholds, "", logger)
	require.NoError(t, err)
	tr := tracker.New(st, alerts, logger, nil)

	srv := New(cfg, Deps{
		Store:      st,
		Ingest:     ingest.New(st, alerts, thresholds, ingest.Config{AutoRegister: cfg.AutoRegister}, logger, nil),
		Alerts:     alerts,
		Dispatcher: alerting.NewDispatcher(st, logger, nil),
		Tracker:    tr,
		Metrics:    telemetry.New(),
	}, logger)
	return &testServer{Server: srv, db: st, tr: tr}
}

func mustHash(t *testing.T, pw string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func (ts *testServer) createEntity(t *testing.T, name string) *models.Entity {
	t.Helper()
	e := &models.Entity{ID: uuid.NewString(), Name: name, Address: name, MonitorType: models.MonitorServer}
	require.NoError(t, ts.db.CreateEntity(context.Background(), e))
	return e
}

func (ts *testServer) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			r = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, r)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) postMetrics(t *testing.T, body any) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, http.MethodPost, "/metrics", body, http.Header{"X-Client-Password": {ingestPassword}})
}

func (ts *testServer) admin(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.SetBasicAuth("admin", adminPassword)
	return ts.do(t, method, path, body, http.Header{"Authorization": req.Header["Authorization"]})
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func report(host string, cpu, mem, disk float64) map[string]any {
	return map[string]any{
		"hostname": host,
		"cpu":      map[string]any{"usage": cpu, "cores": 4},
		"memory":   map[string]any{"usage": mem, "total": 8 << 30, "used": 4 << 30},
		"disk":     map[string]any{"usage": disk, "total": 100 << 30, "used": 10 << 30},
		"network":  map[string]any{"in_bytes_per_sec": 2048, "out_bytes_per_sec": 1024},
	}
}

func TestIngestStoresSampleAndRaisesAlert(t *testing.T) {
	ts := newTestServer(t, nil)
	e := ts.createEntity(t, "web1")

	rec := ts.postMetrics(t, report("web1", 92, 40, 10))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[models.IngestResponse](t, rec)
	assert.Equal(t, "Metrics stored successfully", resp.Message)
	assert.Equal(t, e.ID, resp.EntityID)
	require.Len(t, resp.AlertIDs, 1)

	rec = ts.admin(t, http.MethodGet, "/api/v1/alerts?entity_id="+e.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Alerts []models.Alert `json:"alerts"`
	}](t, rec)
	require.Len(t, body.Alerts, 1)
	assert.Equal(t, models.AlertTypeCPU, body.Alerts[0].Type)
	assert.Equal(t, models.SeverityCritical, body.Alerts[0].Severity)
	assert.Equal(t, "High cpu usage detected (92%)", body.Alerts[0].Message)

	// Within the cooldown the same breach creates nothing new.
	rec = ts.postMetrics(t, report("web1", 95, 40, 10))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[models.IngestResponse](t, rec).AlertIDs)
}

func TestIngestMissingHostname(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.postMetrics(t, report("", 10, 10, 10))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "hostname is required", decode[errorBody](t, rec).Error)

	rec = ts.postMetrics(t, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decode[errorBody](t, rec).Error)
}

func TestIngestRequiresPassword(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createEntity(t, "web1")

	rec := ts.do(t, http.MethodPost, "/metrics", report("web1", 1, 1, 1), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/metrics", report("web1", 1, 1, 1), http.Header{"X-Client-Password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIngestUnknownHost(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.postMetrics(t, report("ghost", 1, 1, 1))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown host", decode[errorBody](t, rec).Error)
}

func TestIngestAutoRegister(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.AutoRegister = true })

	rec := ts.postMetrics(t, report("new-host", 1, 1, 1))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	e, err := ts.db.FindEntityByHost(context.Background(), "new-host")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, decode[models.IngestResponse](t, rec).EntityID, e.ID)
}

func TestIngestRateLimited(t *testing.T) {
	ts := newTestServer(t, func(c *Config) {
		c.IngestRate = 0.001
		c.IngestBurst = 2
	})
	ts.createEntity(t, "web1")

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, ts.postMetrics(t, report("web1", 1, 1, 1)).Code)
	}
	rec := ts.postMetrics(t, report("web1", 1, 1, 1))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestLastHour(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createEntity(t, "web1")

	rec := ts.admin(t, http.MethodGet, "/metrics/web1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.admin(t, http.MethodGet, "/metrics/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusOK, ts.postMetrics(t, report("web1", 12.5, 50, 10)).Code)

	rec = ts.admin(t, http.MethodGet, "/metrics/web1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	series := decode[struct {
		CPUUsage []struct {
			Value float64 `json:"value"`
		} `json:"cpu_usage"`
		Summary map[string]any `json:"summary"`
	}](t, rec)
	require.Len(t, series.CPUUsage, 1)
	assert.Equal(t, 12.5, series.CPUUsage[0].Value)
	assert.Equal(t, 8.0, series.Summary["memory_total_gb"])
	assert.Equal(t, 10.0, series.Summary["disk_used_gb"])
}

func TestResolveAlertIsIdempotent(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createEntity(t, "web1")
	rec := ts.postMetrics(t, report("web1", 1, 1, 95))
	require.Equal(t, http.StatusOK, rec.Code)
	ids := decode[models.IngestResponse](t, rec).AlertIDs
	require.Len(t, ids, 1)

	path := "/api/v1/alerts/" + jsonNumber(ids[0]) + "/resolve"
	assert.Equal(t, http.StatusOK, ts.admin(t, http.MethodPost, path, nil).Code)
	assert.Equal(t, http.StatusOK, ts.admin(t, http.MethodPost, path, nil).Code)
	assert.Equal(t, http.StatusOK, ts.admin(t, http.MethodPost, "/api/v1/alerts/9999/resolve", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.admin(t, http.MethodPost, "/api/v1/alerts/abc/resolve", nil).Code)

	rec = ts.admin(t, http.MethodGet, "/api/v1/alerts", nil)
	assert.JSONEq(t, `{"alerts":[],"count":0}`, rec.Body.String())
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestListAlertsRejectsBadLimit(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.admin(t, http.MethodGet, "/api/v1/alerts?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEntityStatus(t *testing.T) {
	ts := newTestServer(t, nil)
	e := ts.createEntity(t, "web1")
	path := "/api/v1/entities/" + e.ID + "/status"

	assert.Equal(t, http.StatusNotFound, ts.admin(t, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.admin(t, http.MethodGet, "/api/v1/entities/nope/status", nil).Code)

	_, err := ts.tr.Record(context.Background(), models.ProbeResult{EntityID: e.ID, CheckedAt: time.Now(), Reachable: true})
	require.NoError(t, err)

	rec := ts.admin(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusOnline, decode[models.StatusRecord](t, rec).Status)
}

func TestEntityUptimeAndLogs(t *testing.T) {
	ts := newTestServer(t, nil)
	e := ts.createEntity(t, "web1")
	base := "/api/v1/entities/" + e.ID

	rec := ts.admin(t, http.MethodGet, base+"/uptime", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	up := decode[models.UptimeReport](t, rec)
	assert.Equal(t, 100.0, up.UptimePct)
	assert.Equal(t, "24h", up.Window)

	now := time.Now()
	for i, up := range []bool{true, false, true} {
		_, err := ts.tr.Record(context.Background(), models.ProbeResult{
			EntityID: e.ID, CheckedAt: now.Add(time.Duration(i-3) * time.Minute), Reachable: up, ResponseTimeMs: 40,
		})
		require.NoError(t, err)
	}

	rec = ts.admin(t, http.MethodGet, base+"/uptime?range=7d", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 66.67, decode[models.UptimeReport](t, rec).UptimePct)

	assert.Equal(t, http.StatusBadRequest, ts.admin(t, http.MethodGet, base+"/uptime?range=2w", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.admin(t, http.MethodGet, base+"/uptime?hours=0", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.admin(t, http.MethodGet, "/api/v1/entities/nope/uptime", nil).Code)

	rec = ts.admin(t, http.MethodGet, base+"/logs?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode[struct {
		Logs []models.ProbeResult `json:"logs"`
	}](t, rec)
	require.Len(t, logs.Logs, 2)
	assert.True(t, logs.Logs[0].CheckedAt.After(logs.Logs[1].CheckedAt))
}

func TestEntityHistory(t *testing.T) {
	ts := newTestServer(t, nil)
	e := ts.createEntity(t, "web1")
	base := "/api/v1/entities/" + e.ID + "/history"

	now := time.Now().UTC()
	for _, at := range []time.Time{now.Add(-10 * time.Minute), now.Add(-5 * time.Minute)} {
		_, err := ts.db.AppendSample(context.Background(), e.ID, &models.Sample{
			RecordedAt: at, CPUUsagePct: 20, MemoryUsagePct: 30, DiskUsagePct: 40,
		})
		require.NoError(t, err)
	}

	rec := ts.admin(t, http.MethodGet, base+"?range=1h", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[historyResponse](t, rec)
	assert.Equal(t, "1h", resp.Range)
	assert.Equal(t, "1m0s", resp.Bucket)
	require.Len(t, resp.Points, 2)
	assert.Equal(t, 20.0, resp.Points[0].CPUUsage)

	since := now.Add(-time.Hour).Format(time.RFC3339)
	rec = ts.admin(t, http.MethodGet, base+"?since="+since+"&bucket=1h", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode[historyResponse](t, rec).Points)

	assert.Equal(t, http.StatusBadRequest, ts.admin(t, http.MethodGet, base+"?range=2w", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.admin(t, http.MethodGet, base+"?since=yesterday", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.admin(t, http.MethodGet, base+"?since="+since+"&bucket=1ms", nil).Code)
	until := now.Add(-2 * time.Hour).Format(time.RFC3339)
	assert.Equal(t, http.StatusBadRequest, ts.admin(t, http.MethodGet, base+"?since="+since+"&until="+until, nil).Code)
}

func TestAdminRequiresBasicAuth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/admin/entities", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = ts.do(t, http.MethodGet, "/api/v1/admin/entities", nil, http.Header{"Authorization": req.Header["Authorization"]})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminEntityLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.admin(t, http.MethodPost, "/api/v1/admin/entities", map[string]any{"name": "db1", "monitor_type": "server"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "address is required", decode[errorBody](t, rec).Error)

	rec = ts.admin(t, http.MethodPost, "/api/v1/admin/entities", map[string]any{"name": "db1", "address": "10.0.0.5", "monitor_type": "printer"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "monitor_type is invalid", decode[errorBody](t, rec).Error)

	rec = ts.admin(t, http.MethodPost, "/api/v1/admin/entities", map[string]any{
		"name": "shop", "address": "shop.example.com", "monitor_type": "website",
		"config": map[string]any{"check_interval_seconds": 30, "expected_status": 200},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Entity](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 30, created.Config.CheckIntervalSeconds)

	rec = ts.admin(t, http.MethodGet, "/api/v1/admin/entities", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Entities []models.Entity `json:"entities"`
	}](t, rec)
	require.Len(t, list.Entities, 1)

	rec = ts.admin(t, http.MethodGet, "/api/v1/admin/entities/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[struct {
		Entity models.Entity `json:"entity"`
	}](t, rec)
	assert.Equal(t, "shop", got.Entity.Name)

	assert.Equal(t, http.StatusOK, ts.admin(t, http.MethodDelete, "/api/v1/admin/entities/"+created.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.admin(t, http.MethodGet, "/api/v1/admin/entities/"+created.ID, nil).Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = ts.admin(t, http.MethodGet, "/debug/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	require.NoError(t, ts.db.Close())
	rec = ts.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadRoutesRequireAdminAuth(t *testing.T) {
	ts := newTestServer(t, nil)
	e := ts.createEntity(t, "web1")

	routes := []struct {
		method, path string
	}{
		{http.MethodGet, "/metrics/web1"},
		{http.MethodGet, "/api/v1/alerts"},
		{http.MethodPost, "/api/v1/alerts/1/resolve"},
		{http.MethodGet, "/api/v1/fleet/status"},
		{http.MethodGet, "/api/v1/entities/" + e.ID + "/status"},
		{http.MethodGet, "/api/v1/entities/" + e.ID + "/uptime"},
		{http.MethodGet, "/api/v1/entities/" + e.ID + "/logs"},
		{http.MethodGet, "/api/v1/entities/" + e.ID + "/history"},
		{http.MethodGet, "/api/v1/entities/" + e.ID + "/processes"},
		{http.MethodGet, "/debug/metrics"},
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("admin", "wrong")
	wrong := http.Header{"Authorization": req.Header["Authorization"]}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rec := ts.do(t, rt.method, rt.path, nil, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

			rec = ts.do(t, rt.method, rt.path, nil, wrong)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			rec = ts.admin(t, rt.method, rt.path, nil)
			assert.NotEqual(t, http.StatusUnauthorized, rec.Code)
		})
	}

	// The agent password opens nothing but the push endpoint.
	rec := ts.do(t, http.MethodGet, "/api/v1/alerts", nil, http.Header{"X-Client-Password": {ingestPassword}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFleetStatus(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.admin(t, http.MethodGet, "/api/v1/fleet/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entities":[],"count":0,"online":0}`, rec.Body.String())

	db := ts.createEntity(t, "db1")
	web := ts.createEntity(t, "web1")
	require.Equal(t, http.StatusOK, ts.postMetrics(t, report("db1", 33, 44, 55)).Code)
	_, err := ts.tr.Record(context.Background(), models.ProbeResult{EntityID: web.ID, CheckedAt: time.Now(), Reachable: true})
	require.NoError(t, err)

	rec = ts.admin(t, http.MethodGet, "/api/v1/fleet/status", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[struct {
		Entities []models.EntityStatus `json:"entities"`
		Count    int                   `json:"count"`
		Online   int                   `json:"online"`
	}](t, rec)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, 1, body.Online)

	require.Len(t, body.Entities, 2)
	assert.Equal(t, db.ID, body.Entities[0].Entity.ID)
	require.NotNil(t, body.Entities[0].Latest)
	assert.Equal(t, 33.0, body.Entities[0].Latest.CPUUsagePct)
	assert.Nil(t, body.Entities[0].Status)

	assert.Equal(t, web.ID, body.Entities[1].Entity.ID)
	require.NotNil(t, body.Entities[1].Status)
	assert.Equal(t, models.StatusOnline, body.Entities[1].Status.Status)
	assert.Nil(t, body.Entities[1].Latest)
}

func TestEntityProcesses(t *testing.T) {
	ts := newTestServer(t, nil)
	e := ts.createEntity(t, "db1")
	path := "/api/v1/entities/" + e.ID + "/processes"

	rec := ts.admin(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entity_id":"`+e.ID+`","captured_at":null,"processes":[]}`, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, ts.admin(t, http.MethodGet, "/api/v1/entities/nope/processes", nil).Code)

	for _, procs := range [][]map[string]any{
		{{"pid": 1, "name": "init"}, {"pid": 99, "name": "postgres", "cpu_percent": 70.5}},
		{{"pid": 12, "name": "nginx", "cpu_percent": 3.5, "memory_percent": 1.25, "username": "www-data"}},
	} {
		body := report("db1", 10, 10, 10)
		body["processes"] = procs
		require.Equal(t, http.StatusOK, ts.postMetrics(t, body).Code)
	}

	rec = ts.admin(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[struct {
		EntityID   string                 `json:"entity_id"`
		CapturedAt *time.Time             `json:"captured_at"`
		Processes  []models.ProcessReport `json:"processes"`
	}](t, rec)
	assert.Equal(t, e.ID, got.EntityID)
	require.NotNil(t, got.CapturedAt)
	assert.WithinDuration(t, time.Now(), *got.CapturedAt, 5*time.Second)
	assert.Equal(t, []models.ProcessReport{
		{PID: 12, Name: "nginx", CPUPercent: 3.5, MemPercent: 1.25, Username: "www-data"},
	}, got.Processes)
}
