// Package scheduler 周期驱动：每个 tick 对所有患者执行 生成 → 存储 → 分级 → 升级 → 日志
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"wisefido-emergency/internal/classifier"
	"wisefido-emergency/internal/escalation"
	"wisefido-emergency/internal/eventlog"
	"wisefido-emergency/internal/generator"
	"wisefido-emergency/internal/models"
	"wisefido-emergency/internal/store"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrAlreadyRunning 调度器已启动
var ErrAlreadyRunning = errors.New("scheduler already running")

// DefaultCountdownInterval 倒计时步长
const DefaultCountdownInterval = time.Second

// Roster 提供当前登记的患者（按登记顺序）
type Roster interface {
	ListPatients() []models.Patient
}

// Outcome 单个患者一次流水线的结果
type Outcome struct {
	Patient        models.Patient
	Classification classifier.Classification
	Result         escalation.Result
	Snapshot       models.Snapshot
}

// Observer 流水线结果订阅者（缓存、流、持久化、通知等适配器）
type Observer interface {
	OnPatientProcessed(ctx context.Context, out Outcome)
}

// TickReport 一次 tick 的统计
type TickReport struct {
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Latency   time.Duration `json:"latency"`
	At        time.Time     `json:"at"`
}

// Options 调度器选项
type Options struct {
	Workers           int              // 并发处理的患者数，默认 4
	CountdownInterval time.Duration    // 默认 1s
	Now               func() time.Time // 默认 time.Now
}

// Scheduler 调度器
type Scheduler struct {
	roster     Roster
	source     generator.ReadingSource
	store      *store.PatientStateStore
	classifier *classifier.Classifier
	engine     *escalation.Engine
	events     *eventlog.Logger
	metrics    *Metrics
	logger     *zap.Logger

	workers           int
	countdownInterval time.Duration
	now               func() time.Time

	obsMu     sync.RWMutex
	observers []Observer

	prevMu sync.Mutex
	prev   map[string]classifier.Classification // 上一次的各体征严重程度

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler 创建调度器
func NewScheduler(
	roster Roster,
	source generator.ReadingSource,
	st *store.PatientStateStore,
	engine *escalation.Engine,
	events *eventlog.Logger,
	metrics *Metrics,
	opts Options,
	logger *zap.Logger,
) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.CountdownInterval <= 0 {
		opts.CountdownInterval = DefaultCountdownInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Scheduler{
		roster:            roster,
		source:            source,
		store:             st,
		classifier:        classifier.New(classifier.Default()),
		engine:            engine,
		events:            events,
		metrics:           metrics,
		logger:            logger,
		workers:           opts.Workers,
		countdownInterval: opts.CountdownInterval,
		now:               opts.Now,
		prev:              make(map[string]classifier.Classification),
	}
}

// AddObserver 注册结果订阅者
func (s *Scheduler) AddObserver(o Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

// Metrics 调度器指标
func (s *Scheduler) Metrics() *Metrics {
	return s.metrics
}

// Tick 对所有患者执行一次流水线
// 单个患者失败（错误或 panic）只记录日志并计数，不影响其他患者
func (s *Scheduler) Tick(ctx context.Context) TickReport {
	started := time.Now()
	patients := s.roster.ListPatients()

	var processed, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.workers)

	for _, p := range patients {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := s.processPatient(ctx, p); err != nil {
				failed.Add(1)
				s.logger.Error("Failed to process patient",
					zap.String("patient_id", p.ID),
					zap.Error(err),
				)
				s.events.RecordSystemEvent(models.EventPipelineFailure,
					fmt.Sprintf("Pipeline failed for %s: %v", p.ID, err),
					models.SeverityWarning,
				)
				// 继续处理其他患者
				return nil
			}
			processed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report := TickReport{
		Processed: int(processed.Load()),
		Failed:    int(failed.Load()),
		Latency:   time.Since(started),
		At:        s.now(),
	}
	s.metrics.observeTick(report)

	s.logger.Debug("Tick completed",
		zap.Int("processed", report.Processed),
		zap.Int("failed", report.Failed),
		zap.Duration("latency", report.Latency),
	)
	return report
}

// processPatient 单个患者的流水线，各阶段严格有序
func (s *Scheduler) processPatient(ctx context.Context, p models.Patient) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	reading, err := s.source.Generate(p)
	if err != nil {
		return fmt.Errorf("generate reading: %w", err)
	}

	if !s.store.Update(p.ID, reading) {
		return fmt.Errorf("store update: %w", escalation.ErrUnknownPatient)
	}

	cls := s.classifier.Classify(reading)

	override := ""
	if reading.Regime == models.RegimeCritical {
		override = escalation.OverrideCritical
	}

	now := s.now()
	res, err := s.engine.Evaluate(p.ID, reading, override, now)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	s.record(p, reading, cls, res)

	if len(s.snapshotObservers()) == 0 {
		return nil
	}
	out := Outcome{
		Patient:        p,
		Classification: cls,
		Result:         res,
		Snapshot:       s.snapshot(p),
	}
	for _, o := range s.snapshotObservers() {
		o.OnPatientProcessed(ctx, out)
	}
	return nil
}

// record 写入事件日志与指标
func (s *Scheduler) record(p models.Patient, reading models.VitalReading, cls classifier.Classification, res escalation.Result) {
	if cls.Malformed {
		s.logger.Warn("Malformed reading, treated as normal",
			zap.String("patient_id", p.ID),
			zap.Int("heart_rate", reading.HeartRate),
			zap.Int("spo2", reading.SpO2),
			zap.Float64("temperature", reading.Temperature),
		)
		s.events.RecordSystemEvent(models.EventAnomaly,
			fmt.Sprintf("Malformed reading for %s ignored", p.ID),
			models.SeverityWarning,
		)
	} else {
		s.recordVitalChanges(p.ID, reading, cls)
	}

	s.metrics.EscalationLevel.WithLabelValues(p.ID).Set(float64(res.Level))

	tr := res.Transition
	if tr == nil {
		return
	}

	if tr.Escalated() {
		s.metrics.TransitionsTotal.WithLabelValues("up").Inc()
		s.events.RecordSystemEvent(models.EventEscalation,
			fmt.Sprintf("%s escalated %s → %s", displayName(p), tr.From, tr.To),
			tr.To.Severity(),
		)
		s.logger.Warn("Patient escalated",
			zap.String("patient_id", p.ID),
			zap.Int("from", int(tr.From)),
			zap.Int("to", int(tr.To)),
		)
	} else {
		s.metrics.TransitionsTotal.WithLabelValues("down").Inc()
		s.events.RecordSystemEvent(models.EventDeescalation,
			fmt.Sprintf("%s de-escalated %s → %s", displayName(p), tr.From, tr.To),
			models.SeverityNormal,
		)
		s.logger.Info("Patient de-escalated",
			zap.String("patient_id", p.ID),
			zap.Int("from", int(tr.From)),
			zap.Int("to", int(tr.To)),
		)
	}

	if len(tr.Notifications) > 0 {
		roles := make([]string, 0, len(tr.Notifications))
		for _, n := range tr.Notifications {
			roles = append(roles, n.Role)
		}
		s.metrics.NotificationsTotal.WithLabelValues(tr.To.String()).Add(float64(len(tr.Notifications)))
		s.events.RecordSystemEvent(models.EventNotification,
			fmt.Sprintf("Notified %s for %s", strings.Join(roles, ", "), displayName(p)),
			tr.To.Severity(),
		)
	}
}

// recordVitalChanges 各体征严重程度与上一次不同时写入患者日志
func (s *Scheduler) recordVitalChanges(patientID string, reading models.VitalReading, cls classifier.Classification) {
	s.prevMu.Lock()
	prev, seen := s.prev[patientID]
	s.prev[patientID] = cls
	s.prevMu.Unlock()

	type vitalValue struct {
		vital models.Vital
		label string
		value float64
		unit  string
	}
	vitals := []vitalValue{
		{models.VitalHeartRate, "Heart rate", float64(reading.HeartRate), " bpm"},
		{models.VitalSpO2, "SpO2", float64(reading.SpO2), "%"},
		{models.VitalTemperature, "Temperature", reading.Temperature, "°C"},
	}

	for _, v := range vitals {
		before := models.SeverityNormal
		if seen {
			before = prev.VitalSeverity(v.vital)
		}
		after := cls.VitalSeverity(v.vital)
		if before == after {
			continue
		}
		msg := fmt.Sprintf("%s %s → %s (%g%s)", v.label, before, after, v.value, v.unit)
		s.events.RecordPatientEvent(patientID, models.EventVitalChange, v.vital, msg, v.value, after)
	}
}

// TickCountdowns 倒计时前进一步，到期的记为 critical 系统事件
func (s *Scheduler) TickCountdowns() []escalation.Expiry {
	expired := s.engine.TickCountdowns(s.now())
	for _, e := range expired {
		s.metrics.CountdownsExpired.Inc()
		s.events.RecordSystemEvent(models.EventCountdownExpired,
			fmt.Sprintf("Response countdown expired for %s at %s", e.PatientID, e.Level),
			models.SeverityCritical,
		)
		s.logger.Warn("Response countdown expired",
			zap.String("patient_id", e.PatientID),
			zap.Int("level", int(e.Level)),
		)
	}
	return expired
}

// Run 阻塞运行直到 ctx 取消
// 立即执行一次 tick，之后按 interval 周期执行；倒计时使用独立的定时器
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid tick interval: %s", interval)
	}

	s.logger.Info("Scheduler started",
		zap.Duration("interval", interval),
		zap.Int("workers", s.workers),
	)
	s.events.RecordSystemEvent(models.EventSchedulerStarted,
		fmt.Sprintf("Monitoring started (interval %s)", interval),
		models.SeverityNormal,
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	countdown := time.NewTicker(s.countdownInterval)
	defer countdown.Stop()

	// 进行中的 tick 不受取消影响
	tickCtx := context.WithoutCancel(ctx)
	s.Tick(tickCtx)

	for {
		select {
		case <-ctx.Done():
			s.events.RecordSystemEvent(models.EventSchedulerStopped, "Monitoring stopped", models.SeverityNormal)
			s.logger.Info("Scheduler stopped")
			return nil
		case <-ticker.C:
			// Stop 与 ticker 同时就绪时 select 随机选择，取消后不再开始新的 tick
			if ctx.Err() != nil {
				continue
			}
			s.Tick(tickCtx)
		case <-countdown.C:
			if ctx.Err() != nil {
				continue
			}
			s.TickCountdowns()
		}
	}
}

// Start 后台启动周期执行
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid tick interval: %s", interval)
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		if err := s.Run(ctx, interval); err != nil {
			s.logger.Error("Scheduler exited", zap.Error(err))
		}
	}()
	return nil
}

// Stop 停止周期执行并等待进行中的 tick 完成；未启动时为空操作
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running 是否正在周期执行
func (s *Scheduler) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) snapshotObservers() []Observer {
	s.obsMu.RLock()
	defer s.obsMu.RUnlock()
	return s.observers
}

func (s *Scheduler) snapshot(p models.Patient) models.Snapshot {
	snap := models.Snapshot{Patient: p}
	if data, ok := s.store.Snapshot(p.ID); ok {
		snap.Reading = data.Reading
		snap.History = data.History
	}
	if st, ok := s.engine.State(p.ID); ok {
		snap.Escalation = st
	}
	return snap
}

func displayName(p models.Patient) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
