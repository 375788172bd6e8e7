package models

import (
	"math"
	"time"
)

// 病情模板名称
const (
	ProfileCardiac     = "Cardiac"
	ProfileTrauma      = "Trauma"
	ProfileRespiratory = "Respiratory"
	ProfileStroke      = "Stroke"
)

// Patient 患者登记信息（启动时创建，会话内不可变）
type Patient struct {
	ID               string `json:"id" yaml:"id"`
	Name             string `json:"name" yaml:"name"`
	ConditionProfile string `json:"condition_profile" yaml:"condition_profile"`
	Location         string `json:"location" yaml:"location"`
}

// Regime 模拟器本次采样所处的区间
type Regime string

const (
	RegimeNormal   Regime = "normal"
	RegimeWarning  Regime = "warning"
	RegimeCritical Regime = "critical"
)

// VitalReading 单次生命体征读数
type VitalReading struct {
	HeartRate   int       `json:"heart_rate"`  // bpm
	SpO2        int       `json:"spo2"`        // %
	Temperature float64   `json:"temperature"` // °C
	Timestamp   time.Time `json:"timestamp"`

	// 仅模拟器设置：区间与附带的告警标签（如 "High Heart Rate"）
	Regime Regime   `json:"regime,omitempty"`
	Flags  []string `json:"flags,omitempty"`
}

// 生理范围（模拟输出必须落在该范围内）
const (
	MinHeartRate   = 50
	MaxHeartRate   = 180
	MinSpO2        = 80
	MaxSpO2        = 100
	MinTemperature = 35.0
	MaxTemperature = 41.0
)

// Malformed 判断读数是否无法用于分级（缺失或明显错误的数值）
func (r VitalReading) Malformed() bool {
	if r.HeartRate <= 0 || r.SpO2 <= 0 || r.SpO2 > 100 {
		return true
	}
	if math.IsNaN(r.Temperature) || math.IsInf(r.Temperature, 0) || r.Temperature <= 0 {
		return true
	}
	return false
}

// Clone 返回深拷贝
func (r VitalReading) Clone() VitalReading {
	out := r
	if r.Flags != nil {
		out.Flags = append([]string(nil), r.Flags...)
	}
	return out
}

// History 历史数据（四个等长序列，按时间先后排列）
type History struct {
	Timestamps  []time.Time `json:"timestamps"`
	HeartRate   []int       `json:"heart_rate"`
	SpO2        []int       `json:"spo2"`
	Temperature []float64   `json:"temperature"`
}

// Len 历史长度
func (h History) Len() int {
	return len(h.Timestamps)
}

// PatientData 存储层快照：最新读数 + 历史
type PatientData struct {
	Reading *VitalReading `json:"reading,omitempty"`
	History History       `json:"history"`
}
