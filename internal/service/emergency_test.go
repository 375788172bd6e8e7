package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wisefido-emergency/internal/cache"
	"wisefido-emergency/internal/config"
	httpapi "wisefido-emergency/internal/http"
	"wisefido-emergency/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Monitor.TickInterval = 20 * time.Millisecond
	cfg.Monitor.CountdownSeconds = 300
	cfg.Monitor.Workers = 2
	cfg.Monitor.Seed = 42
	cfg.SnapshotTTL = 30 * time.Second
	return cfg
}

func TestNewEmergencyService_Defaults(t *testing.T) {
	svc, err := NewEmergencyService(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)

	assert.Len(t, svc.Monitor().ListPatients(), 4)

	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/patients")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res httpapi.Result[[]models.Patient]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, httpapi.ResultSuccess, res.Code)
	assert.Len(t, res.Result, 4)
}

func TestNewEmergencyService_BadPatientsFile(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.PatientsFile = "/nonexistent/patients.yaml"

	_, err := NewEmergencyService(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewEmergencyService_RedisSnapshots(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisEnabled = true
	cfg.Redis.Addr = mr.Addr()

	svc, err := NewEmergencyService(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer svc.closeAdapters()

	report := svc.Monitor().Tick(context.Background())
	require.Equal(t, 4, report.Processed)

	for _, p := range svc.Monitor().ListPatients() {
		assert.True(t, mr.Exists(cache.SnapshotKey(p.ID)), "snapshot for %s", p.ID)
	}

	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/api/v1/cache/snapshots")
	require.NoError(t, err)
	defer resp.Body.Close()
	var res httpapi.Result[[]models.Snapshot]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	require.Len(t, res.Result, 4)
	assert.Equal(t, "P001", res.Result[0].Patient.ID)
}

func TestNewEmergencyService_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig()
	cfg.RedisEnabled = true
	cfg.Redis.Addr = addr

	_, err := NewEmergencyService(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping redis")
}

func TestEmergencyService_Run(t *testing.T) {
	svc, err := NewEmergencyService(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		return svc.Monitor().Stats().Ticks >= 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, svc.Monitor().Running())

	require.Eventually(t, func() bool { return svc.server.Addr() != nil }, 2*time.Second, 10*time.Millisecond)
	resp, err := http.Get("http://" + svc.server.Addr().String() + "/healthz")
	require.NoError(t, err)
	var health httpapi.Result[httpapi.HealthStatus]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.True(t, health.Result.Running)
	assert.Equal(t, 4, health.Result.Patients)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
	assert.False(t, svc.Monitor().Running())
}
