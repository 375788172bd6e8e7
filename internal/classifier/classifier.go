// Package classifier 阈值分级（纯函数，无状态）
package classifier

import "wisefido-emergency/internal/models"

// Classification 单次读数的分级结果
type Classification struct {
	Status      models.Severity    `json:"status"` // 各体征中最严重的
	HeartRate   models.Severity    `json:"heart_rate"`
	SpO2        models.Severity    `json:"spo2"`
	Temperature models.Severity    `json:"temperature"`
	Alerts      []models.AlertFact `json:"alerts"`
	Malformed   bool               `json:"malformed,omitempty"`
}

// VitalSeverity 按体征取严重程度
func (c Classification) VitalSeverity(v models.Vital) models.Severity {
	switch v {
	case models.VitalHeartRate:
		return c.HeartRate
	case models.VitalSpO2:
		return c.SpO2
	case models.VitalTemperature:
		return c.Temperature
	}
	return models.SeverityNormal
}

// Classifier 按阈值表分级
type Classifier struct {
	table Table
}

// New 创建分级器，table 为空时使用 Default()
func New(table Table) *Classifier {
	if len(table) == 0 {
		table = Default()
	}
	return &Classifier{table: table}
}

// Classify 使用通用阈值表分级
func Classify(reading models.VitalReading) Classification {
	return New(Default()).Classify(reading)
}

// Classify 对读数分级
// 数据异常（缺失或越界）时不产生告警，Status=normal，Malformed=true
func (c *Classifier) Classify(reading models.VitalReading) Classification {
	out := Classification{
		Status:      models.SeverityNormal,
		HeartRate:   models.SeverityNormal,
		SpO2:        models.SeverityNormal,
		Temperature: models.SeverityNormal,
	}
	if reading.Malformed() {
		out.Malformed = true
		return out
	}

	for _, rule := range c.table {
		value := vitalValue(reading, rule.Vital)
		sev := rule.match(value)
		if sev == models.SeverityNormal {
			continue
		}
		out.Alerts = append(out.Alerts, models.NewAlertFact(rule.Kind, rule.Vital, value, sev))
		switch rule.Vital {
		case models.VitalHeartRate:
			out.HeartRate = models.Worse(out.HeartRate, sev)
		case models.VitalSpO2:
			out.SpO2 = models.Worse(out.SpO2, sev)
		case models.VitalTemperature:
			out.Temperature = models.Worse(out.Temperature, sev)
		}
		out.Status = models.Worse(out.Status, sev)
	}
	return out
}

func vitalValue(r models.VitalReading, v models.Vital) float64 {
	switch v {
	case models.VitalHeartRate:
		return float64(r.HeartRate)
	case models.VitalSpO2:
		return float64(r.SpO2)
	case models.VitalTemperature:
		return r.Temperature
	}
	return 0
}
