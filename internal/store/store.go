// Package store 患者最新读数与历史数据
package store

import (
	"sync"

	"wisefido-emergency/internal/models"

	"go.uber.org/zap"
)

type patientSlot struct {
	mu      sync.Mutex
	reading *models.VitalReading
	history *historyBuffer
}

// PatientStateStore 每个患者一把锁；读数替换与历史追加在同一临界区内完成
type PatientStateStore struct {
	mu       sync.RWMutex
	patients map[string]*patientSlot
	capacity int
	logger   *zap.Logger
}

// NewPatientStateStore 创建存储，capacity <= 0 时使用默认 60
func NewPatientStateStore(capacity int, logger *zap.Logger) *PatientStateStore {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &PatientStateStore{
		patients: make(map[string]*patientSlot),
		capacity: capacity,
		logger:   logger,
	}
}

// Register 为患者分配空槽位（重复注册不会清空已有数据）
func (s *PatientStateStore) Register(patientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patients[patientID]; ok {
		return
	}
	s.patients[patientID] = &patientSlot{history: newHistoryBuffer(s.capacity)}
}

// Update 替换最新读数并追加历史；未注册的患者忽略并返回 false
func (s *PatientStateStore) Update(patientID string, reading models.VitalReading) bool {
	slot := s.slot(patientID)
	if slot == nil {
		s.logger.Warn("Update for unknown patient ignored",
			zap.String("patient_id", patientID),
		)
		return false
	}

	r := reading.Clone()
	slot.mu.Lock()
	slot.reading = &r
	slot.history.push(r)
	slot.mu.Unlock()
	return true
}

// Snapshot 读取单个患者的数据拷贝
func (s *PatientStateStore) Snapshot(patientID string) (models.PatientData, bool) {
	slot := s.slot(patientID)
	if slot == nil {
		return models.PatientData{}, false
	}
	return slot.snapshot(), true
}

// SnapshotAll 读取全部患者的数据拷贝
func (s *PatientStateStore) SnapshotAll() map[string]models.PatientData {
	s.mu.RLock()
	slots := make(map[string]*patientSlot, len(s.patients))
	for id, slot := range s.patients {
		slots[id] = slot
	}
	s.mu.RUnlock()

	out := make(map[string]models.PatientData, len(slots))
	for id, slot := range slots {
		out[id] = slot.snapshot()
	}
	return out
}

func (s *PatientStateStore) slot(patientID string) *patientSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patients[patientID]
}

func (p *patientSlot) snapshot() models.PatientData {
	p.mu.Lock()
	defer p.mu.Unlock()
	data := models.PatientData{History: p.history.snapshot()}
	if p.reading != nil {
		r := p.reading.Clone()
		data.Reading = &r
	}
	return data
}
