// Package monitor 对外接口：患者登记、快照、确认、日志查询、启停
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wisefido-emergency/internal/escalation"
	"wisefido-emergency/internal/eventlog"
	"wisefido-emergency/internal/generator"
	"wisefido-emergency/internal/models"
	"wisefido-emergency/internal/scheduler"
	"wisefido-emergency/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	// ErrPatientExists 患者 ID 重复
	ErrPatientExists = errors.New("patient already registered")
	// ErrInvalidPatient 患者信息不完整
	ErrInvalidPatient = errors.New("invalid patient")
	// ErrUnknownPatient 患者未登记
	ErrUnknownPatient = escalation.ErrUnknownPatient
)

// Config 监护配置
type Config struct {
	HistoryCapacity   int
	LogCapacity       int
	CountdownSeconds  int
	Workers           int
	CountdownInterval time.Duration
	Registerer        prometheus.Registerer // nil 表示不导出 Prometheus 指标
	Now               func() time.Time
}

// Monitor 组合 store、引擎、事件日志与调度器
type Monitor struct {
	mu       sync.RWMutex
	patients []models.Patient
	index    map[string]int

	store     *store.PatientStateStore
	engine    *escalation.Engine
	events    *eventlog.Logger
	scheduler *scheduler.Scheduler
	now       func() time.Time
	logger    *zap.Logger
}

// New 创建监护实例；source 为读数来源（模拟器或传感器）
func New(cfg Config, source generator.ReadingSource, logger *zap.Logger) *Monitor {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	m := &Monitor{
		index:  make(map[string]int),
		store:  store.NewPatientStateStore(cfg.HistoryCapacity, logger),
		engine: escalation.NewEngine(cfg.CountdownSeconds, logger),
		events: eventlog.NewLogger(cfg.LogCapacity, cfg.Now),
		now:    cfg.Now,
		logger: logger,
	}
	m.scheduler = scheduler.NewScheduler(
		m,
		source,
		m.store,
		m.engine,
		m.events,
		scheduler.NewMetrics(cfg.Registerer),
		scheduler.Options{
			Workers:           cfg.Workers,
			CountdownInterval: cfg.CountdownInterval,
			Now:               cfg.Now,
		},
		logger,
	)
	return m
}

// RegisterPatient 登记患者
func (m *Monitor) RegisterPatient(p models.Patient) error {
	if p.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidPatient)
	}

	m.mu.Lock()
	if _, ok := m.index[p.ID]; ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPatientExists, p.ID)
	}
	// 先初始化状态再对调度器可见
	m.store.Register(p.ID)
	m.engine.Register(p.ID, m.now())
	m.events.RegisterPatient(p.ID)
	m.index[p.ID] = len(m.patients)
	m.patients = append(m.patients, p)
	m.mu.Unlock()

	if !generator.KnownProfile(p.ConditionProfile) {
		m.logger.Warn("Unknown condition profile, using Cardiac",
			zap.String("patient_id", p.ID),
			zap.String("condition_profile", p.ConditionProfile),
		)
	}
	m.events.RecordSystemEvent(models.EventPatientRegistered,
		fmt.Sprintf("Registered %s (%s, %s)", p.ID, p.ConditionProfile, p.Location),
		models.SeverityNormal,
	)
	m.logger.Info("Patient registered",
		zap.String("patient_id", p.ID),
		zap.String("condition_profile", p.ConditionProfile),
	)
	return nil
}

// ListPatients 按登记顺序返回患者
func (m *Monitor) ListPatients() []models.Patient {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Patient(nil), m.patients...)
}

// Patient 查找患者
func (m *Monitor) Patient(patientID string) (models.Patient, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[patientID]
	if !ok {
		return models.Patient{}, false
	}
	return m.patients[i], true
}

// Snapshot 患者快照：最新读数、历史、升级状态
func (m *Monitor) Snapshot(patientID string) (models.Snapshot, error) {
	p, ok := m.Patient(patientID)
	if !ok {
		return models.Snapshot{}, fmt.Errorf("snapshot %s: %w", patientID, ErrUnknownPatient)
	}
	return m.snapshot(p), nil
}

// SnapshotAll 全部患者快照（按登记顺序）
func (m *Monitor) SnapshotAll() []models.Snapshot {
	patients := m.ListPatients()
	out := make([]models.Snapshot, 0, len(patients))
	for _, p := range patients {
		out = append(out, m.snapshot(p))
	}
	return out
}

// Acknowledge 确认患者当前升级
func (m *Monitor) Acknowledge(patientID string) error {
	changed, err := m.engine.Acknowledge(patientID, m.now())
	if err != nil {
		return err
	}
	if changed {
		st, _ := m.engine.State(patientID)
		m.events.RecordSystemEvent(models.EventAcknowledged,
			fmt.Sprintf("Escalation for %s acknowledged at %s", patientID, st.Level),
			models.SeverityNormal,
		)
	}
	return nil
}

// SystemLog 系统日志（按写入顺序）
func (m *Monitor) SystemLog() []models.EventLogEntry {
	return m.events.SystemLog()
}

// PatientLog 患者体征变化日志（按写入顺序）
func (m *Monitor) PatientLog(patientID string) ([]models.EventLogEntry, error) {
	if _, ok := m.Patient(patientID); !ok {
		return nil, fmt.Errorf("patient log %s: %w", patientID, ErrUnknownPatient)
	}
	return m.events.PatientLog(patientID), nil
}

// PatientLogAll 全部患者的体征变化日志（按写入顺序合并）
func (m *Monitor) PatientLogAll() []models.EventLogEntry {
	return m.events.PatientLogAll()
}

// Start 后台周期执行
func (m *Monitor) Start(interval time.Duration) error {
	return m.scheduler.Start(interval)
}

// Stop 停止周期执行
func (m *Monitor) Stop() {
	m.scheduler.Stop()
}

// Run 阻塞运行直到 ctx 取消
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	return m.scheduler.Run(ctx, interval)
}

// Tick 手动执行一次 tick
func (m *Monitor) Tick(ctx context.Context) scheduler.TickReport {
	return m.scheduler.Tick(ctx)
}

// TickCountdowns 手动推进一次倒计时
func (m *Monitor) TickCountdowns() []escalation.Expiry {
	return m.scheduler.TickCountdowns()
}

// AddObserver 订阅流水线结果
func (m *Monitor) AddObserver(o scheduler.Observer) {
	m.scheduler.AddObserver(o)
}

// Stats 调度器统计
func (m *Monitor) Stats() scheduler.Snapshot {
	return m.scheduler.Metrics().GetSnapshot()
}

// Running 是否正在周期执行
func (m *Monitor) Running() bool {
	return m.scheduler.Running()
}

func (m *Monitor) snapshot(p models.Patient) models.Snapshot {
	snap := models.Snapshot{Patient: p}
	if data, ok := m.store.Snapshot(p.ID); ok {
		snap.Reading = data.Reading
		snap.History = data.History
	}
	if st, ok := m.engine.State(p.ID); ok {
		snap.Escalation = st
	}
	return snap
}
