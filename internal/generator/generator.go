// Package generator 提供生命体征模拟数据源
//
// 每个 tick 为每个患者生成一条读数，按病情模板（Cardiac/Trauma/Respiratory/Stroke）偏置。
// 区间选择：一次均匀随机数 r ∈ [0,1)
//   - r > 1-criticalChance → critical
//   - r > 0.85            → warning
//   - 其他                 → normal
//
// 输出总是裁剪到生理范围内。随机源可注入，便于测试断言。
package generator

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"wisefido-emergency/internal/models"
)

// ErrNoReading 数据源当前没有可用读数
var ErrNoReading = errors.New("no reading available")

// ReadingSource 读数来源（模拟器或真实传感器）
type ReadingSource interface {
	Generate(patient models.Patient) (models.VitalReading, error)
}

// RandomSource 随机源（*rand.Rand 满足该接口）
type RandomSource interface {
	Float64() float64
	Intn(n int) int
}

const warningCutoff = 0.85

// 模拟器附带的告警标签
const (
	FlagHighHeartRate     = "High Heart Rate"
	FlagLowSpO2           = "Low SpO2"
	FlagElevatedHeartRate = "Elevated Heart Rate"
)

// Generator 生命体征模拟器（无副作用，不保存患者状态）
type Generator struct {
	mu  sync.Mutex // *rand.Rand 非并发安全
	rng RandomSource
	now func() time.Time
}

// NewGenerator 创建模拟器
// rng 为 nil 时使用当前时间作为种子；now 为 nil 时使用 time.Now
func NewGenerator(rng RandomSource, now func() time.Time) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{rng: rng, now: now}
}

// NewSeededGenerator 使用固定种子创建模拟器（输出可复现）
func NewSeededGenerator(seed int64) *Generator {
	return NewGenerator(rand.New(rand.NewSource(seed)), nil)
}

// Generate 为患者生成一条读数
func (g *Generator) Generate(patient models.Patient) (models.VitalReading, error) {
	profile := ProfileFor(patient.ConditionProfile)

	g.mu.Lock()
	defer g.mu.Unlock()

	r := g.rng.Float64()

	var reading models.VitalReading
	switch {
	case r > 1-profile.CriticalChance:
		reading = models.VitalReading{
			HeartRate:   profile.BaseHR + g.between(40, 60),
			SpO2:        profile.BaseSpO2 + g.between(-8, -4),
			Temperature: profile.BaseTemp + g.spread(2.0, 2.8),
			Regime:      models.RegimeCritical,
			Flags:       []string{FlagHighHeartRate, FlagLowSpO2},
		}
	case r > warningCutoff:
		reading = models.VitalReading{
			HeartRate:   profile.BaseHR + g.between(25, 40),
			SpO2:        profile.BaseSpO2 + g.between(-3, 0),
			Temperature: profile.BaseTemp + g.spread(1.0, 1.5),
			Regime:      models.RegimeWarning,
			Flags:       []string{FlagElevatedHeartRate},
		}
	default:
		reading = models.VitalReading{
			HeartRate:   profile.BaseHR + g.between(-10, 10),
			SpO2:        profile.BaseSpO2 + g.between(-2, 2),
			Temperature: profile.BaseTemp + g.spread(-0.3, 0.3),
			Regime:      models.RegimeNormal,
		}
	}

	reading.Timestamp = g.now()
	return clampReading(reading), nil
}

// between 闭区间 [lo, hi] 内的整数
func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

// spread [lo, hi) 内的浮点数
func (g *Generator) spread(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func clampReading(r models.VitalReading) models.VitalReading {
	r.HeartRate = clampInt(r.HeartRate, models.MinHeartRate, models.MaxHeartRate)
	r.SpO2 = clampInt(r.SpO2, models.MinSpO2, models.MaxSpO2)
	r.Temperature = clampFloat(round1(r.Temperature), models.MinTemperature, models.MaxTemperature)
	return r
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
