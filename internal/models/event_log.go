package models

import "time"

// 系统事件类型
const (
	EventPatientRegistered = "patient_registered"
	EventEscalation        = "escalation"
	EventDeescalation      = "deescalation"
	EventNotification      = "notification"
	EventAcknowledged      = "acknowledged"
	EventCountdownExpired  = "countdown_expired"
	EventAnomaly           = "anomaly"
	EventPipelineFailure   = "pipeline_failure"
	EventSchedulerStarted  = "scheduler_started"
	EventSchedulerStopped  = "scheduler_stopped"
	EventVitalChange       = "vital_change"
)

// EventLogEntry 日志条目（写入后不可变）
type EventLogEntry struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity,omitempty"`
	PatientID string    `json:"patient_id,omitempty"`
	Vital     Vital     `json:"vital,omitempty"`
	Value     *float64  `json:"value,omitempty"`
}

// Snapshot 患者某一时刻的只读快照
type Snapshot struct {
	Patient    Patient         `json:"patient"`
	Reading    *VitalReading   `json:"reading,omitempty"`
	History    History         `json:"history"`
	Escalation EscalationState `json:"escalation"`
}
