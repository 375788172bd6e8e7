// Package service 组装监护、适配器与 HTTP 服务
package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"wisefido-emergency/internal/cache"
	"wisefido-emergency/internal/config"
	"wisefido-emergency/internal/database"
	"wisefido-emergency/internal/generator"
	httpapi "wisefido-emergency/internal/http"
	"wisefido-emergency/internal/monitor"
	"wisefido-emergency/internal/mqtt"
	"wisefido-emergency/internal/notify"
	"wisefido-emergency/internal/registry"
	"wisefido-emergency/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// EmergencyService 急救监护服务（整合各层）
type EmergencyService struct {
	config *config.Config
	logger *zap.Logger

	monitor  *monitor.Monitor
	registry *prometheus.Registry
	handler  http.Handler
	server   *Server

	// 可选适配器
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	feed        *mqtt.FeedSource
}

// NewEmergencyService 创建服务；已启用的外部依赖在此连接并校验
func NewEmergencyService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*EmergencyService, error) {
	s := &EmergencyService{config: cfg, logger: logger}

	// 1. 患者登记
	patients, err := registry.Load(cfg.Monitor.PatientsFile)
	if err != nil {
		return nil, err
	}

	// 2. 读数来源：模拟器，可选 MQTT 传感器优先
	var gen *generator.Generator
	if cfg.Monitor.Seed != 0 {
		gen = generator.NewSeededGenerator(cfg.Monitor.Seed)
	} else {
		gen = generator.NewGenerator(nil, nil)
	}
	var source generator.ReadingSource = gen
	if cfg.MQTT.Enabled {
		client, err := mqtt.NewClient(&cfg.MQTT, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect mqtt: %w", err)
		}
		s.mqttClient = client
		s.feed = mqtt.NewFeedSource(gen, cfg.MQTT.StaleAfter, logger)
		source = s.feed
	}

	// 3. 监护核心
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.monitor = monitor.New(monitor.Config{
		CountdownSeconds: cfg.Monitor.CountdownSeconds,
		Workers:          cfg.Monitor.Workers,
		Registerer:       s.registry,
	}, source, logger)
	for _, p := range patients {
		if err := s.monitor.RegisterPatient(p); err != nil {
			s.closeAdapters()
			return nil, fmt.Errorf("failed to register patient: %w", err)
		}
	}

	// 4. 适配器
	notifiers := []notify.Notifier{notify.NewLogNotifier(logger)}
	var cached *cache.SnapshotCache

	if cfg.RedisEnabled {
		s.redisClient = cache.NewRedisClient(&cfg.Redis)
		if err := cache.Ping(ctx, s.redisClient); err != nil {
			s.closeAdapters()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		snapshots := cache.NewSnapshotCache(cache.NewRedisKVStore(s.redisClient), cfg.SnapshotTTL, logger)
		publisher := cache.NewStreamPublisher(s.redisClient, logger)
		s.monitor.AddObserver(NewSnapshotWriter(snapshots, logger))
		s.monitor.AddObserver(NewTransitionStreamer(publisher, logger))
		notifiers = append(notifiers, notify.NewStreamNotifier(publisher))
		cached = snapshots
	}

	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Notify.WebhookURL, 3, logger))
	}

	var history httpapi.EscalationHistory
	if cfg.DBEnabled {
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			s.closeAdapters()
			return nil, err
		}
		s.db = db
		repo := repository.NewEscalationEventsRepository(db, logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			s.closeAdapters()
			return nil, err
		}
		s.monitor.AddObserver(NewEscalationRecorder(repo, logger))
		history = repo
	}

	s.monitor.AddObserver(NewNotificationDispatcher(notify.NewMulti(logger, notifiers...), logger))

	// 5. HTTP
	router := httpapi.NewRouter(logger)
	router.RegisterPatientRoutes(httpapi.NewPatientHandler(s.monitor, history, logger))
	if cached != nil {
		router.RegisterCacheRoutes(httpapi.NewCacheHandler(cached, logger))
	}
	router.RegisterMetrics(s.registry)
	s.handler = router
	s.server = NewServer(cfg.HTTP.Addr, router, logger)

	logger.Info("Emergency service created",
		zap.Int("patients", len(patients)),
		zap.Bool("redis", cfg.RedisEnabled),
		zap.Bool("database", cfg.DBEnabled),
		zap.Bool("mqtt", cfg.MQTT.Enabled),
		zap.Bool("webhook", cfg.Notify.WebhookURL != ""),
	)
	return s, nil
}

// Monitor 监护实例
func (s *EmergencyService) Monitor() *monitor.Monitor {
	return s.monitor
}

// Handler HTTP 处理器
func (s *EmergencyService) Handler() http.Handler {
	return s.handler
}

// Run 启动监护与 HTTP 服务，阻塞到 ctx 取消或任一组件出错
func (s *EmergencyService) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if s.feed != nil {
		g.Go(func() error {
			return s.feed.Start(gctx, s.mqttClient, s.config.MQTT.Topic, s.config.MQTT.QoS)
		})
	}

	g.Go(func() error {
		if err := s.monitor.Start(s.config.Monitor.TickInterval); err != nil {
			return err
		}
		<-gctx.Done()
		s.monitor.Stop()
		return nil
	})

	g.Go(s.server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return s.server.Stop(shutdownCtx)
	})

	err := g.Wait()
	s.closeAdapters()
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (s *EmergencyService) closeAdapters() {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis", zap.Error(err))
		}
	}
	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}
}
