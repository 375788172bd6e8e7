package escalation

import "wisefido-emergency/internal/models"

// 处置流程 ID
const (
	ProtocolCardiac     = "cardiac"
	ProtocolRespiratory = "respiratory"
	ProtocolSepsis      = "sepsis"
)

var protocols = map[string]models.Protocol{
	ProtocolCardiac: {
		ID:   ProtocolCardiac,
		Name: "Cardiac Emergency",
		Steps: []string{
			"Attach 12-lead ECG and continuous monitoring",
			"Establish IV access",
			"Prepare defibrillator at bedside",
			"Administer antiarrhythmics per physician order",
		},
	},
	ProtocolRespiratory: {
		ID:   ProtocolRespiratory,
		Name: "Respiratory Distress",
		Steps: []string{
			"Apply supplemental oxygen",
			"Position patient upright",
			"Obtain arterial blood gas",
			"Prepare airway support equipment",
		},
	},
	ProtocolSepsis: {
		ID:   ProtocolSepsis,
		Name: "Sepsis Bundle",
		Steps: []string{
			"Draw blood cultures",
			"Measure serum lactate",
			"Start broad-spectrum antibiotics",
			"Begin fluid resuscitation",
		},
	},
}

// responders 各级别需要通知的角色
var responders = map[models.Level][]string{
	models.LevelAlert:     {"nurse"},
	models.LevelWarning:   {"charge nurse", "on-call physician"},
	models.LevelCritical:  {"attending", "ICU team", "specialist"},
	models.LevelEmergency: {"code team", "anesthesiologist", "all staff"},
}

// Responders 返回级别对应的通知角色（拷贝）
func Responders(level models.Level) []string {
	return append([]string(nil), responders[level]...)
}

// ProtocolByID 查找处置流程（拷贝）
func ProtocolByID(id string) (*models.Protocol, bool) {
	p, ok := protocols[id]
	if !ok {
		return nil, false
	}
	p.Steps = append([]string(nil), p.Steps...)
	return &p, true
}

// SelectProtocol 按优先级选择处置流程
// 心率异常 → cardiac；低氧 → respiratory；HR>100 且体温>38.0 → sepsis；否则无
func SelectProtocol(reading models.VitalReading, alerts []models.AlertFact) *models.Protocol {
	var cardiac, respiratory bool
	for _, a := range alerts {
		switch a.Kind {
		case models.AlertTachycardia, models.AlertBradycardia:
			cardiac = true
		case models.AlertHypoxemia:
			respiratory = true
		}
	}

	var id string
	switch {
	case cardiac:
		id = ProtocolCardiac
	case respiratory:
		id = ProtocolRespiratory
	case reading.HeartRate > 100 && reading.Temperature > 38.0:
		id = ProtocolSepsis
	default:
		return nil
	}
	p, _ := ProtocolByID(id)
	return p
}

// ComputeLevel 由告警计算级别
// 任一 emergency 或 ≥2 个 critical → 4；1 个 critical → 3；≥2 个 warning → 2；1 个 warning → 1
func ComputeLevel(alerts []models.AlertFact) models.Level {
	var critical, warning int
	for _, a := range alerts {
		switch a.Severity {
		case models.SeverityEmergency:
			return models.LevelEmergency
		case models.SeverityCritical:
			critical++
		case models.SeverityWarning:
			warning++
		}
	}
	switch {
	case critical >= 2:
		return models.LevelEmergency
	case critical == 1:
		return models.LevelCritical
	case warning >= 2:
		return models.LevelWarning
	case warning == 1:
		return models.LevelAlert
	default:
		return models.LevelNormal
	}
}
