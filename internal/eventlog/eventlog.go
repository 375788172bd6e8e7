// Package eventlog 有界事件日志：系统日志 + 每个患者独立的体征变化日志
package eventlog

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"wisefido-emergency/internal/models"

	"github.com/google/uuid"
)

// DefaultCapacity 每个日志保留的条目数
const DefaultCapacity = 50

type record struct {
	seq   uint64
	entry models.EventLogEntry
}

// boundedLog 追加写，超出容量时淘汰最旧条目
type boundedLog struct {
	mu       sync.Mutex
	capacity int
	records  []record
}

func (l *boundedLog) append(r record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
	if over := len(l.records) - l.capacity; over > 0 {
		l.records = append([]record(nil), l.records[over:]...)
	}
}

func (l *boundedLog) snapshot() []record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]record(nil), l.records...)
}

func entries(records []record) []models.EventLogEntry {
	out := make([]models.EventLogEntry, 0, len(records))
	for _, r := range records {
		out = append(out, r.entry)
	}
	return out
}

// Logger 事件日志：系统日志一个，患者日志按患者 ID 各一个，互不挤占容量
type Logger struct {
	capacity int
	system   *boundedLog

	mu       sync.RWMutex
	patients map[string]*boundedLog

	seq atomic.Uint64
	now func() time.Time
}

// NewLogger 创建事件日志；capacity <= 0 使用默认 50，now 为 nil 使用 time.Now
func NewLogger(capacity int, now func() time.Time) *Logger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if now == nil {
		now = time.Now
	}
	return &Logger{
		capacity: capacity,
		system:   &boundedLog{capacity: capacity},
		patients: make(map[string]*boundedLog),
		now:      now,
	}
}

// RegisterPatient 预先创建患者日志（可选，首次写入时也会创建）
func (l *Logger) RegisterPatient(patientID string) {
	l.patientLog(patientID, true)
}

func (l *Logger) patientLog(patientID string, create bool) *boundedLog {
	l.mu.RLock()
	pl, ok := l.patients[patientID]
	l.mu.RUnlock()
	if ok || !create {
		return pl
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if pl, ok = l.patients[patientID]; !ok {
		pl = &boundedLog{capacity: l.capacity}
		l.patients[patientID] = pl
	}
	return pl
}

// RecordSystemEvent 记录系统事件
func (l *Logger) RecordSystemEvent(eventType, message string, severity models.Severity) models.EventLogEntry {
	entry := models.EventLogEntry{
		ID:       uuid.New().String(),
		Time:     l.now(),
		Type:     eventType,
		Message:  message,
		Severity: severity,
	}
	l.system.append(record{seq: l.seq.Add(1), entry: entry})
	return entry
}

// RecordPatientEvent 记录患者体征事件
func (l *Logger) RecordPatientEvent(patientID, eventType string, vital models.Vital, message string, value float64, severity models.Severity) models.EventLogEntry {
	v := value
	entry := models.EventLogEntry{
		ID:        uuid.New().String(),
		Time:      l.now(),
		Type:      eventType,
		Message:   message,
		Severity:  severity,
		PatientID: patientID,
		Vital:     vital,
		Value:     &v,
	}
	l.patientLog(patientID, true).append(record{seq: l.seq.Add(1), entry: entry})
	return entry
}

// SystemLog 系统日志（按写入顺序）
func (l *Logger) SystemLog() []models.EventLogEntry {
	return entries(l.system.snapshot())
}

// PatientLog 指定患者的体征日志（按写入顺序）
func (l *Logger) PatientLog(patientID string) []models.EventLogEntry {
	pl := l.patientLog(patientID, false)
	if pl == nil {
		return []models.EventLogEntry{}
	}
	return entries(pl.snapshot())
}

// PatientLogAll 合并全部患者日志，按全局写入顺序
func (l *Logger) PatientLogAll() []models.EventLogEntry {
	l.mu.RLock()
	logs := make([]*boundedLog, 0, len(l.patients))
	for _, pl := range l.patients {
		logs = append(logs, pl)
	}
	l.mu.RUnlock()

	var all []record
	for _, pl := range logs {
		all = append(all, pl.snapshot()...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	return entries(all)
}
