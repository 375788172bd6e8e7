package generator

import (
	"math/rand"
	"testing"
	"time"

	"wisefido-emergency/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRandom 先返回预设的 Float64 值，之后交给内部随机源
type scriptedRandom struct {
	floats []float64
	inner  *rand.Rand
}

func (s *scriptedRandom) Float64() float64 {
	if len(s.floats) > 0 {
		v := s.floats[0]
		s.floats = s.floats[1:]
		return v
	}
	return s.inner.Float64()
}

func (s *scriptedRandom) Intn(n int) int {
	return s.inner.Intn(n)
}

func fixedClock() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func TestGenerate_CriticalRegimeCardiac(t *testing.T) {
	patient := models.Patient{ID: "p-1", ConditionProfile: models.ProfileCardiac}

	for seed := int64(0); seed < 500; seed++ {
		g := NewGenerator(&scriptedRandom{floats: []float64{0.97}, inner: rand.New(rand.NewSource(seed))}, fixedClock)

		reading, err := g.Generate(patient)
		require.NoError(t, err)

		assert.Equal(t, models.RegimeCritical, reading.Regime)
		assert.GreaterOrEqual(t, reading.HeartRate, 135)
		assert.LessOrEqual(t, reading.HeartRate, 155)
		assert.GreaterOrEqual(t, reading.SpO2, 86)
		assert.LessOrEqual(t, reading.SpO2, 90)
		assert.GreaterOrEqual(t, reading.Temperature, 39.0)
		assert.LessOrEqual(t, reading.Temperature, 39.8)
		assert.Equal(t, []string{FlagHighHeartRate, FlagLowSpO2}, reading.Flags)
		assert.Equal(t, fixedClock(), reading.Timestamp)
	}
}

func TestGenerate_RegimeBoundaries(t *testing.T) {
	patient := models.Patient{ID: "p-1", ConditionProfile: models.ProfileCardiac}

	tests := []struct {
		name   string
		r      float64
		regime models.Regime
	}{
		{"zero", 0.0, models.RegimeNormal},
		{"at warning cutoff", 0.85, models.RegimeNormal},
		{"just above warning cutoff", 0.851, models.RegimeWarning},
		{"at critical cutoff", 0.92, models.RegimeWarning},
		{"just above critical cutoff", 0.921, models.RegimeCritical},
		{"top", 0.999, models.RegimeCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(&scriptedRandom{floats: []float64{tt.r}, inner: rand.New(rand.NewSource(1))}, fixedClock)
			reading, err := g.Generate(patient)
			require.NoError(t, err)
			assert.Equal(t, tt.regime, reading.Regime)
		})
	}
}

func TestGenerate_WarningRegimeRanges(t *testing.T) {
	patient := models.Patient{ID: "p-2", ConditionProfile: models.ProfileStroke}

	for seed := int64(0); seed < 200; seed++ {
		g := NewGenerator(&scriptedRandom{floats: []float64{0.9}, inner: rand.New(rand.NewSource(seed))}, fixedClock)
		reading, err := g.Generate(patient)
		require.NoError(t, err)

		assert.Equal(t, models.RegimeWarning, reading.Regime)
		assert.GreaterOrEqual(t, reading.HeartRate, 85+25)
		assert.LessOrEqual(t, reading.HeartRate, 85+40)
		assert.GreaterOrEqual(t, reading.SpO2, 96-3)
		assert.LessOrEqual(t, reading.SpO2, 96)
		assert.GreaterOrEqual(t, reading.Temperature, 38.0)
		assert.LessOrEqual(t, reading.Temperature, 38.5)
		assert.Equal(t, []string{FlagElevatedHeartRate}, reading.Flags)
	}
}

func TestGenerate_AlwaysWithinPhysiologicalBounds(t *testing.T) {
	g := NewSeededGenerator(42)
	names := []string{models.ProfileCardiac, models.ProfileTrauma, models.ProfileRespiratory, models.ProfileStroke, "Unknown"}

	for _, name := range names {
		patient := models.Patient{ID: name, ConditionProfile: name}
		for i := 0; i < 5000; i++ {
			reading, err := g.Generate(patient)
			require.NoError(t, err)
			require.GreaterOrEqual(t, reading.HeartRate, models.MinHeartRate)
			require.LessOrEqual(t, reading.HeartRate, models.MaxHeartRate)
			require.GreaterOrEqual(t, reading.SpO2, models.MinSpO2)
			require.LessOrEqual(t, reading.SpO2, models.MaxSpO2)
			require.GreaterOrEqual(t, reading.Temperature, models.MinTemperature)
			require.LessOrEqual(t, reading.Temperature, models.MaxTemperature)
		}
	}
}

func TestGenerate_SameSeedSameOutput(t *testing.T) {
	patient := models.Patient{ID: "p-1", ConditionProfile: models.ProfileTrauma}
	a := NewGenerator(rand.New(rand.NewSource(7)), fixedClock)
	b := NewGenerator(rand.New(rand.NewSource(7)), fixedClock)

	for i := 0; i < 50; i++ {
		ra, _ := a.Generate(patient)
		rb, _ := b.Generate(patient)
		assert.Equal(t, ra, rb)
	}
}

func TestClampReading(t *testing.T) {
	out := clampReading(models.VitalReading{HeartRate: 250, SpO2: 70, Temperature: 44.44})
	assert.Equal(t, models.MaxHeartRate, out.HeartRate)
	assert.Equal(t, models.MinSpO2, out.SpO2)
	assert.Equal(t, models.MaxTemperature, out.Temperature)

	out = clampReading(models.VitalReading{HeartRate: 10, SpO2: 120, Temperature: 30})
	assert.Equal(t, models.MinHeartRate, out.HeartRate)
	assert.Equal(t, models.MaxSpO2, out.SpO2)
	assert.Equal(t, models.MinTemperature, out.Temperature)
}

func TestProfileFor_UnknownDefaultsToCardiac(t *testing.T) {
	p := ProfileFor("Oncology")
	assert.Equal(t, models.ProfileCardiac, p.Name)
	assert.Equal(t, 95, p.BaseHR)
	assert.Equal(t, 94, p.BaseSpO2)
	assert.InDelta(t, 0.08, p.CriticalChance, 1e-9)
	assert.False(t, KnownProfile("Oncology"))
	assert.True(t, KnownProfile(models.ProfileStroke))
}
