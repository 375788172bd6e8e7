// Package escalation 多级升级状态机：级别计算、通知、处置流程、倒计时、确认
package escalation

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"wisefido-emergency/internal/classifier"
	"wisefido-emergency/internal/models"

	"go.uber.org/zap"
)

// ErrUnknownPatient 患者未注册
var ErrUnknownPatient = errors.New("unknown patient")

// DefaultCountdownSeconds 进入 Critical 及以上级别后的响应倒计时
const DefaultCountdownSeconds = 300

// MaxTimelineEntries 每个患者保留的时间线条目数
const MaxTimelineEntries = 50

// OverrideCritical 状态覆盖：级别至少为 Critical
const OverrideCritical = "critical"

// Result 一次评估的结果
type Result struct {
	PatientID  string
	Level      models.Level
	Alerts     []models.AlertFact
	Protocol   *models.Protocol
	Transition *models.Transition // 级别未变化时为 nil
	Malformed  bool               // 读数异常，按 Normal 处理
}

// Expiry 倒计时到期
type Expiry struct {
	PatientID string
	Level     models.Level
	At        time.Time
}

type patientState struct {
	mu    sync.Mutex
	state models.EscalationState
}

// Engine 升级引擎（每个患者独立状态）
type Engine struct {
	mu               sync.RWMutex
	states           map[string]*patientState
	classifier       *classifier.Classifier
	countdownSeconds int
	logger           *zap.Logger
}

// NewEngine 创建升级引擎，countdownSeconds <= 0 时使用默认 300 秒
func NewEngine(countdownSeconds int, logger *zap.Logger) *Engine {
	if countdownSeconds <= 0 {
		countdownSeconds = DefaultCountdownSeconds
	}
	return &Engine{
		states:           make(map[string]*patientState),
		classifier:       classifier.New(classifier.Escalation()),
		countdownSeconds: countdownSeconds,
		logger:           logger,
	}
}

// Register 初始化患者状态：Level 0，无处置流程，未确认
func (e *Engine) Register(patientID string, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.states[patientID]; ok {
		return
	}
	e.states[patientID] = &patientState{state: models.EscalationState{
		Level:     models.LevelNormal,
		UpdatedAt: now,
	}}
}

// Evaluate 根据读数更新患者的升级状态
func (e *Engine) Evaluate(patientID string, reading models.VitalReading, override string, now time.Time) (Result, error) {
	ps := e.patient(patientID)
	if ps == nil {
		return Result{}, fmt.Errorf("evaluate %s: %w", patientID, ErrUnknownPatient)
	}

	cls := e.classifier.Classify(reading)
	level := ComputeLevel(cls.Alerts)
	if override == OverrideCritical && level < models.LevelCritical {
		level = models.LevelCritical
	}

	var protocol *models.Protocol
	if !cls.Malformed {
		protocol = SelectProtocol(reading, cls.Alerts)
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	st := &ps.state
	from := st.Level
	result := Result{
		PatientID: patientID,
		Level:     level,
		Alerts:    cls.Alerts,
		Protocol:  protocol,
		Malformed: cls.Malformed,
	}

	if level != from {
		tr := &models.Transition{
			PatientID: patientID,
			From:      from,
			To:        level,
			Alerts:    append([]models.AlertFact(nil), cls.Alerts...),
			Protocol:  protocol,
			At:        now,
		}

		kind := models.TimelineDeescalate
		if level > from {
			kind = models.TimelineEscalate
			st.Acknowledged = false
			tr.Notifications = e.buildNotifications(patientID, level, cls.Alerts, now)
		}
		appendTimeline(st, models.TimelineEntry{
			Kind:    kind,
			From:    from,
			Level:   level,
			At:      now,
			Message: fmt.Sprintf("%s → %s", from, level),
		})

		if level >= models.LevelCritical {
			c := e.countdownSeconds
			st.Countdown = &c
		} else {
			st.Countdown = nil
		}
		st.Level = level
		result.Transition = tr
	}

	st.ActiveAlerts = append([]models.AlertFact(nil), cls.Alerts...)
	st.Protocol = protocol
	st.UpdatedAt = now

	return result, nil
}

// TickCountdowns 所有倒计时减 1 秒，返回本次到期的患者
// 到期后倒计时清空并写入时间线，级别不变
func (e *Engine) TickCountdowns(now time.Time) []Expiry {
	e.mu.RLock()
	ids := make([]string, 0, len(e.states))
	for id := range e.states {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	var expired []Expiry
	for _, id := range ids {
		ps := e.patient(id)
		if ps == nil {
			continue
		}
		ps.mu.Lock()
		st := &ps.state
		if st.Countdown != nil {
			remaining := *st.Countdown - 1
			if remaining <= 0 {
				st.Countdown = nil
				appendTimeline(st, models.TimelineEntry{
					Kind:    models.TimelineCountdownExpired,
					From:    st.Level,
					Level:   st.Level,
					At:      now,
					Message: fmt.Sprintf("response countdown expired at %s", st.Level),
				})
				expired = append(expired, Expiry{PatientID: id, Level: st.Level, At: now})
			} else {
				st.Countdown = &remaining
			}
		}
		ps.mu.Unlock()
	}
	return expired
}

// Acknowledge 确认当前升级；重复确认不再写时间线
// 返回值表示本次是否改变了状态
func (e *Engine) Acknowledge(patientID string, now time.Time) (bool, error) {
	ps := e.patient(patientID)
	if ps == nil {
		return false, fmt.Errorf("acknowledge %s: %w", patientID, ErrUnknownPatient)
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	st := &ps.state
	if st.Acknowledged {
		return false, nil
	}
	st.Acknowledged = true
	appendTimeline(st, models.TimelineEntry{
		Kind:    models.TimelineAcknowledge,
		From:    st.Level,
		Level:   st.Level,
		At:      now,
		Message: fmt.Sprintf("acknowledged at %s", st.Level),
	})
	e.logger.Info("Escalation acknowledged",
		zap.String("patient_id", patientID),
		zap.Int("level", int(st.Level)),
	)
	return true, nil
}

// State 读取患者升级状态的拷贝
func (e *Engine) State(patientID string) (models.EscalationState, bool) {
	ps := e.patient(patientID)
	if ps == nil {
		return models.EscalationState{}, false
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.state.Clone(), true
}

func (e *Engine) patient(patientID string) *patientState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.states[patientID]
}

func (e *Engine) buildNotifications(patientID string, level models.Level, alerts []models.AlertFact, now time.Time) []models.Notification {
	roles := responders[level]
	msg := fmt.Sprintf("Patient %s escalated to %s", patientID, level)
	if len(alerts) > 0 {
		parts := make([]string, 0, len(alerts))
		for _, a := range alerts {
			parts = append(parts, a.Message)
		}
		msg += ": " + strings.Join(parts, "; ")
	}

	out := make([]models.Notification, 0, len(roles))
	for _, role := range roles {
		out = append(out, models.Notification{
			PatientID: patientID,
			Role:      role,
			Level:     level,
			Message:   msg,
			SentAt:    now,
		})
	}
	return out
}

func appendTimeline(st *models.EscalationState, entry models.TimelineEntry) {
	st.Timeline = append(st.Timeline, entry)
	if over := len(st.Timeline) - MaxTimelineEntries; over > 0 {
		st.Timeline = append([]models.TimelineEntry(nil), st.Timeline[over:]...)
	}
}
