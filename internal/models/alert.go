package models

import "fmt"

// Severity 严重程度（封闭集合）
type Severity string

const (
	SeverityNormal    Severity = "normal"
	SeverityWarning   Severity = "warning"
	SeverityCritical  Severity = "critical"
	SeverityEmergency Severity = "emergency"
)

// Rank 用于比较严重程度，normal=0 ... emergency=3
func (s Severity) Rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	case SeverityEmergency:
		return 3
	default:
		return 0
	}
}

// Worse 返回两者中更严重的一个
func Worse(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Vital 生命体征项
type Vital string

const (
	VitalHeartRate   Vital = "heart_rate"
	VitalSpO2        Vital = "spo2"
	VitalTemperature Vital = "temperature"
)

// AlertKind 告警类型（封闭集合）
type AlertKind string

const (
	AlertTachycardia  AlertKind = "tachycardia"
	AlertBradycardia  AlertKind = "bradycardia"
	AlertHypoxemia    AlertKind = "hypoxemia"
	AlertHyperthermia AlertKind = "hyperthermia"
	AlertHypothermia  AlertKind = "hypothermia"
)

// AlertFact 由单次读数推导出的告警事实，不单独持久化
type AlertFact struct {
	Kind     AlertKind `json:"kind"`
	Vital    Vital     `json:"vital"`
	Value    float64   `json:"value"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// NewAlertFact 构建告警事实并生成展示文本
func NewAlertFact(kind AlertKind, vital Vital, value float64, severity Severity) AlertFact {
	return AlertFact{
		Kind:     kind,
		Vital:    vital,
		Value:    value,
		Severity: severity,
		Message:  alertMessage(kind, value, severity),
	}
}

func alertMessage(kind AlertKind, value float64, severity Severity) string {
	switch kind {
	case AlertTachycardia:
		return fmt.Sprintf("%s tachycardia: heart rate %.0f bpm", severity, value)
	case AlertBradycardia:
		return fmt.Sprintf("%s bradycardia: heart rate %.0f bpm", severity, value)
	case AlertHypoxemia:
		return fmt.Sprintf("%s hypoxemia: SpO2 %.0f%%", severity, value)
	case AlertHyperthermia:
		return fmt.Sprintf("%s hyperthermia: temperature %.1f°C", severity, value)
	case AlertHypothermia:
		return fmt.Sprintf("%s hypothermia: temperature %.1f°C", severity, value)
	default:
		return fmt.Sprintf("%s %s: %v", severity, kind, value)
	}
}
