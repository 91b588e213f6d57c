package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"smart-industry/internal/broadcast"
	"smart-industry/internal/domain"
	"smart-industry/internal/metrics"
	"smart-industry/internal/repository"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const testToken = "test-token"

type fakeProcessor struct {
	verdict *domain.RiskVerdict
	err     error
	got     map[string]any
}

func (p *fakeProcessor) Process(_ context.Context, raw map[string]any) (*domain.RiskVerdict, error) {
	p.got = raw
	return p.verdict, p.err
}

type fakeVerdicts struct {
	latest map[string]*domain.RiskVerdict
	recent []domain.RiskVerdict
}

func (f *fakeVerdicts) GetLatestVerdict(_ context.Context, workerID string) (*domain.RiskVerdict, error) {
	if v, ok := f.latest[workerID]; ok {
		return v, nil
	}
	return nil, errors.New("verdict not cached")
}

func (f *fakeVerdicts) RecentVerdicts(_ context.Context, count int64, unsafeOnly bool) ([]domain.RiskVerdict, error) {
	out := []domain.RiskVerdict{}
	for _, v := range f.recent {
		if unsafeOnly && !v.Unsafe() {
			continue
		}
		out = append(out, v)
		if int64(len(out)) == count {
			break
		}
	}
	return out, nil
}

type testEnv struct {
	handler   http.Handler
	store     *repository.MemoryStore
	processor *fakeProcessor
	verdicts  *fakeVerdicts
	manager   *broadcast.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	m := metrics.New()

	env := &testEnv{
		store:     repository.NewMemoryStore(),
		processor: &fakeProcessor{},
		verdicts:  &fakeVerdicts{latest: map[string]*domain.RiskVerdict{}},
		manager:   broadcast.NewManager(time.Second, m, logger),
	}

	r := NewRouter(logger)
	r.RegisterIngestRoutes(NewIngestHandler(env.processor, testToken, 1<<10, m, logger))
	r.RegisterBroadcastRoutes(NewBroadcastHandler(env.manager, broadcast.ServeOptions{PingInterval: time.Second}, testToken, logger))
	r.RegisterWorkerRoutes(NewWorkerHandler(env.store, logger))
	r.RegisterSensorDataRoutes(NewSensorDataHandler(env.store, env.verdicts, logger))
	r.RegisterOpsRoutes(m.Handler())
	env.handler = WithCORS(r)
	return env
}

func (e *testEnv) do(method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSubmitData_Unauthorized(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/submit_data", `{"device_id":"d1"}`, map[string]string{"X-SENSOR-TOKEN": "wrong"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, map[string]any{"status": "Unauthorized"}, decode(t, rec))
	assert.Nil(t, env.processor.got)
}

func TestSubmitData_ValidationError(t *testing.T) {
	env := newTestEnv(t)
	env.processor.err = domain.NewMissingFieldError("co")

	rec := env.do(http.MethodPost, "/submit_data", `{"device_id":"d1"}`, map[string]string{"X-SENSOR-TOKEN": testToken})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing key: co", decode(t, rec)["error"])
}

func TestSubmitData_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/submit_data", `{"device_id":`, map[string]string{"X-SENSOR-TOKEN": testToken})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, env.processor.got)
}

func TestSubmitData_InternalError(t *testing.T) {
	env := newTestEnv(t)
	env.processor.err = errors.Join(domain.ErrClassification, errors.New("model unavailable"))

	rec := env.do(http.MethodPost, "/submit_data", `{"device_id":"d1"}`, map[string]string{"X-SENSOR-TOKEN": testToken})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "model unavailable")
}

func TestSubmitData_Success(t *testing.T) {
	env := newTestEnv(t)
	env.processor.verdict = &domain.RiskVerdict{
		WorkerID:   "w1",
		ModelLabel: domain.RiskLow,
		FuzzyLabel: domain.RiskHigh,
		Final:      domain.FinalUnsafe,
		Flags:      []domain.ExceedanceFlag{{Metric: domain.FlagPM25, Value: 60, Limit: 35}},
		Alert:      "Alert for w1: Risk - Unsafe",
	}

	rec := env.do(http.MethodPost, "/submit_data", `{"device_id":"d1","pm2_5":60}`, map[string]string{"X-SENSOR-TOKEN": testToken})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Unsafe", body["final_risk"])
	assert.Equal(t, "Low", body["model_prediction"])
	assert.Equal(t, "High", body["fuzzy_risk"])
	assert.Equal(t, []any{"PM2.5 60 > 35"}, body["flags"])
	assert.Equal(t, "Alert for w1: Risk - Unsafe", body["message"])
	assert.Equal(t, "d1", env.processor.got["device_id"])
}

func TestAssignAndGetAssignedUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/get_assigned_user/dev-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev-1", decode(t, rec)["user_id"])

	rec = env.do(http.MethodPost, "/assign_user", `{"device_id":"dev-1","user_id":"w7"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User assigned successfully", decode(t, rec)["message"])

	rec = env.do(http.MethodGet, "/get_assigned_user/dev-1", "", nil)
	assert.Equal(t, "w7", decode(t, rec)["user_id"])

	rec = env.do(http.MethodPost, "/assign_user", `{"device_id":"dev-1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	long := strings.Repeat("w", domain.MaxIDLength+1)
	rec = env.do(http.MethodPost, "/assign_user", `{"device_id":"dev-1","user_id":"`+long+`"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(http.MethodGet, "/get_assigned_user/dev-1", "", nil)
	assert.Equal(t, "w7", decode(t, rec)["user_id"])
}

func TestGetWorker(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/worker/w1", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", decode(t, rec)["error"])

	require.NoError(t, env.store.CreateWorker(context.Background(), domain.NewPlaceholderProfile("w1")))

	rec = env.do(http.MethodGet, "/worker/w1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "w1", body["worker_id"])
	assert.Equal(t, "Auto Worker", body["name"])

	rec = env.do(http.MethodGet, "/api/workers", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func appendSample(t *testing.T, store *repository.MemoryStore, device, worker string, pm25 float64) {
	t.Helper()
	_, err := store.AppendSample(context.Background(), &domain.SensorSample{
		DeviceID:  device,
		WorkerID:  worker,
		Timestamp: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		PM25:      pm25,
	})
	require.NoError(t, err)
}

func TestLatest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/latest", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No sensor data found", decode(t, rec)["error"])

	appendSample(t, env.store, "d1", "w1", 12)
	appendSample(t, env.store, "d2", "w2", 60)
	env.verdicts.latest["w2"] = &domain.RiskVerdict{WorkerID: "w2", Final: domain.FinalUnsafe}

	rec = env.do(http.MethodGet, "/api/latest", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "d2", body["device_id"])
	assert.Equal(t, 60.0, body["pm25"])
	verdict, ok := body["verdict"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Unsafe", verdict["risk_level"])
}

func TestListSensorData(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 5; i++ {
		appendSample(t, env.store, "d1", "w1", float64(i))
	}

	rec := env.do(http.MethodGet, "/api/sensor_data?limit=3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 3)
	assert.Equal(t, 4.0, list[0]["pm25"])
}

func TestAlerts(t *testing.T) {
	env := newTestEnv(t)
	env.verdicts.recent = []domain.RiskVerdict{
		{WorkerID: "w3", Final: domain.FinalUnsafe},
		{WorkerID: "w2", Final: domain.FinalSafe},
		{WorkerID: "w1", Final: domain.FinalUnsafe},
	}

	rec := env.do(http.MethodGet, "/api/alerts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "w3", list[0]["user_id"])

	rec = env.do(http.MethodGet, "/api/alerts?all=true", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 3)
}

func TestAlerts_NoCache(t *testing.T) {
	h := NewSensorDataHandler(repository.NewMemoryStore(), nil, zap.NewNop())
	rec := httptest.NewRecorder()
	h.Alerts(rec, httptest.NewRequest(http.MethodGet, "/api/alerts", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestExportSensorData(t *testing.T) {
	env := newTestEnv(t)
	appendSample(t, env.store, "d1", "w1", 42.5)

	rec := env.do(http.MethodGet, "/api/sensor_data/export", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "sensor_data_")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sensorDataSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, SensorDataExportHeader, rows[0])
	assert.Equal(t, "d1", rows[1][1])
	assert.Equal(t, "2025-03-01 10:00:00", rows[1][3])
	assert.Equal(t, "42.5", rows[1][9])
}

func TestBroadcast(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/broadcast", `{"message":"evacuate"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/broadcast", `{"message":"evacuate","target_role":"supervisor"}`, map[string]string{"X-SENSOR-TOKEN": testToken})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Broadcast sent", body["status"])
	assert.Equal(t, "supervisor", body["sent_to"])

	rec = env.do(http.MethodPost, "/broadcast", `{}`, map[string]string{"X-SENSOR-TOKEN": testToken})
	assert.Equal(t, "all", decode(t, rec)["sent_to"])
}

func TestWebSocketSubscribeAndBroadcast(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/supervisor"
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	var ack map[string]string
	require.NoError(t, client.ReadJSON(&ack))
	assert.Equal(t, "connected", ack["status"])
	assert.Equal(t, "supervisor", ack["role"])

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/broadcast", strings.NewReader(`{"type":"drill","message":"fire drill"}`))
	require.NoError(t, err)
	req.Header.Set("X-SENSOR-TOKEN", testToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var msg map[string]any
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, client.ReadJSON(&msg))
	assert.Equal(t, "drill", msg["type"])
	assert.Equal(t, "fire drill", msg["message"])
	assert.NotEmpty(t, msg["timestamp"])
}

func TestCORSAndOps(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodOptions, "/submit_data", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = env.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = env.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "smart_industry_")
}
