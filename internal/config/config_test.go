package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, ":8090", cfg.HTTP.Addr)
	assert.Equal(t, time.Second, cfg.Monitor.TickInterval)
	assert.Equal(t, 300, cfg.Monitor.CountdownSeconds)
	assert.Equal(t, int64(0), cfg.Monitor.Seed)
	assert.Equal(t, 4, cfg.Monitor.Workers)
	assert.Equal(t, "", cfg.Monitor.PatientsFile)

	assert.False(t, cfg.RedisEnabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 30*time.Second, cfg.SnapshotTTL)

	assert.False(t, cfg.DBEnabled)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "emergency", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "vitals/+/reading", cfg.MQTT.Topic)
	assert.Equal(t, 5*time.Second, cfg.MQTT.StaleAfter)

	assert.Equal(t, "", cfg.Notify.WebhookURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	// 设置环境变量
	os.Setenv("HTTP_ADDR", ":9999")
	os.Setenv("TICK_INTERVAL_MS", "250")
	os.Setenv("COUNTDOWN_SECONDS", "60")
	os.Setenv("SIM_SEED", "42")
	os.Setenv("TICK_WORKERS", "8")
	os.Setenv("PATIENTS_FILE", "/etc/emergency/patients.yaml")
	os.Setenv("REDIS_ENABLED", "true")
	os.Setenv("REDIS_ADDR", "test-redis:6380")
	os.Setenv("REDIS_DB", "3")
	os.Setenv("SNAPSHOT_TTL", "1m")
	os.Setenv("DB_ENABLED", "true")
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_PORT", "6543")
	os.Setenv("MQTT_ENABLED", "true")
	os.Setenv("MQTT_STALE_AFTER", "10s")
	os.Setenv("NOTIFY_WEBHOOK_URL", "http://pager.local/hook")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Monitor.TickInterval)
	assert.Equal(t, 60, cfg.Monitor.CountdownSeconds)
	assert.Equal(t, int64(42), cfg.Monitor.Seed)
	assert.Equal(t, 8, cfg.Monitor.Workers)
	assert.Equal(t, "/etc/emergency/patients.yaml", cfg.Monitor.PatientsFile)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, time.Minute, cfg.SnapshotTTL)
	assert.True(t, cfg.DBEnabled)
	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, 10*time.Second, cfg.MQTT.StaleAfter)
	assert.Equal(t, "http://pager.local/hook", cfg.Notify.WebhookURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	// 清理环境变量
	os.Clearenv()
}

func TestLoad_InvalidValues(t *testing.T) {
	os.Clearenv()
	defer os.Clearenv()

	os.Setenv("SIM_SEED", "not-a-number")
	_, err := Load()
	assert.Error(t, err)

	os.Clearenv()
	os.Setenv("TICK_INTERVAL_MS", "-5")
	_, err = Load()
	assert.Error(t, err)

	os.Clearenv()
	os.Setenv("TICK_WORKERS", "0")
	_, err = Load()
	assert.Error(t, err)
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, 7, parseInt("7", 1))
	assert.Equal(t, 1, parseInt("x", 1))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Second))
	assert.Equal(t, time.Second, parseDuration("bogus", time.Second))
	assert.Equal(t, time.Second, parseDuration("-2s", time.Second))
}

func TestGetDSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 1, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=d sslmode=disable", c.GetDSN())
}
