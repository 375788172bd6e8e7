package classifier

import "wisefido-emergency/internal/models"

// Limit 单个阈值：越过 Value 即判定为 Severity
type Limit struct {
	Severity models.Severity
	Value    float64
}

// Rule 一条阈值规则
// Above=true 表示数值大于阈值触发，否则小于阈值触发
// Limits 按严重程度从高到低排列，命中第一个即停止
type Rule struct {
	Kind   models.AlertKind
	Vital  models.Vital
	Above  bool
	Limits []Limit
}

// Table 阈值表
type Table []Rule

// Default 通用阈值表（体征面板使用）
func Default() Table {
	return Table{
		{Kind: models.AlertTachycardia, Vital: models.VitalHeartRate, Above: true, Limits: []Limit{
			{models.SeverityCritical, 130}, {models.SeverityWarning, 110},
		}},
		{Kind: models.AlertBradycardia, Vital: models.VitalHeartRate, Limits: []Limit{
			{models.SeverityCritical, 40}, {models.SeverityWarning, 50},
		}},
		{Kind: models.AlertHypoxemia, Vital: models.VitalSpO2, Limits: []Limit{
			{models.SeverityCritical, 90}, {models.SeverityWarning, 94},
		}},
		{Kind: models.AlertHyperthermia, Vital: models.VitalTemperature, Above: true, Limits: []Limit{
			{models.SeverityCritical, 39}, {models.SeverityWarning, 38.5},
		}},
		{Kind: models.AlertHypothermia, Vital: models.VitalTemperature, Limits: []Limit{
			{models.SeverityCritical, 35}, {models.SeverityWarning, 35.5},
		}},
	}
}

// Escalation 升级引擎使用的更严格阈值表（含 emergency 档）
func Escalation() Table {
	return Table{
		{Kind: models.AlertTachycardia, Vital: models.VitalHeartRate, Above: true, Limits: []Limit{
			{models.SeverityEmergency, 160}, {models.SeverityCritical, 130}, {models.SeverityWarning, 110},
		}},
		{Kind: models.AlertBradycardia, Vital: models.VitalHeartRate, Limits: []Limit{
			{models.SeverityCritical, 45}, {models.SeverityWarning, 55},
		}},
		{Kind: models.AlertHypoxemia, Vital: models.VitalSpO2, Limits: []Limit{
			{models.SeverityEmergency, 85}, {models.SeverityCritical, 90}, {models.SeverityWarning, 94},
		}},
		{Kind: models.AlertHyperthermia, Vital: models.VitalTemperature, Above: true, Limits: []Limit{
			{models.SeverityCritical, 39.0}, {models.SeverityWarning, 38.0},
		}},
		{Kind: models.AlertHypothermia, Vital: models.VitalTemperature, Limits: []Limit{
			{models.SeverityCritical, 35.0}, {models.SeverityWarning, 36.0},
		}},
	}
}

// match 返回命中的严重程度；未命中返回 normal
func (r Rule) match(value float64) models.Severity {
	for _, l := range r.Limits {
		if (r.Above && value > l.Value) || (!r.Above && value < l.Value) {
			return l.Severity
		}
	}
	return models.SeverityNormal
}
