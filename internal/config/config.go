package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig 传感器接入配置
type MQTTConfig struct {
	Enabled    bool
	Broker     string        // 如 "tcp://localhost:1883"
	ClientID   string
	Username   string        // 可选
	Password   string        // 可选
	Topic      string        // 订阅主题，+ 位置为患者 ID
	QoS        byte
	StaleAfter time.Duration // 超过该时间的读数视为过期，改用模拟器
}

// Config wisefido-emergency 配置
type Config struct {
	HTTP struct {
		Addr string
	}

	Monitor struct {
		TickInterval     time.Duration // 默认 1s
		CountdownSeconds int           // 默认 300
		Seed             int64         // 0 表示按时间取种子
		Workers          int           // 默认 4
		PatientsFile     string        // 患者登记 YAML，空则使用内置演示患者
	}

	RedisEnabled bool
	Redis        RedisConfig
	SnapshotTTL  time.Duration

	DBEnabled bool
	Database  DatabaseConfig

	MQTT MQTTConfig

	Notify struct {
		WebhookURL string // 空表示不推送
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8090")

	cfg.Monitor.TickInterval = time.Duration(parseInt(getEnv("TICK_INTERVAL_MS", "1000"), 1000)) * time.Millisecond
	cfg.Monitor.CountdownSeconds = parseInt(getEnv("COUNTDOWN_SECONDS", "300"), 300)
	cfg.Monitor.Workers = parseInt(getEnv("TICK_WORKERS", "4"), 4)
	cfg.Monitor.PatientsFile = getEnv("PATIENTS_FILE", "")
	seed, err := strconv.ParseInt(getEnv("SIM_SEED", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SIM_SEED: %w", err)
	}
	cfg.Monitor.Seed = seed

	cfg.RedisEnabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)
	cfg.SnapshotTTL = parseDuration(getEnv("SNAPSHOT_TTL", "30s"), 30*time.Second)

	cfg.DBEnabled = getEnv("DB_ENABLED", "false") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "emergency")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 2

	// MQTT 传感器接入（默认禁用，使用模拟器）
	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wisefido-emergency")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "vitals/+/reading")
	cfg.MQTT.QoS = 1
	cfg.MQTT.StaleAfter = parseDuration(getEnv("MQTT_STALE_AFTER", "5s"), 5*time.Second)

	cfg.Notify.WebhookURL = getEnv("NOTIFY_WEBHOOK_URL", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if cfg.Monitor.TickInterval <= 0 {
		return nil, fmt.Errorf("TICK_INTERVAL_MS must be positive")
	}
	if cfg.Monitor.CountdownSeconds <= 0 {
		return nil, fmt.Errorf("COUNTDOWN_SECONDS must be positive")
	}
	if cfg.Monitor.Workers <= 0 {
		return nil, fmt.Errorf("TICK_WORKERS must be positive")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
