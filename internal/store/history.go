package store

import (
	"time"

	"wisefido-emergency/internal/models"
)

// DefaultHistoryCapacity 每个患者保留的历史点数
const DefaultHistoryCapacity = 60

// historyBuffer 环形缓冲：四个序列共用同一写指针，长度始终一致
type historyBuffer struct {
	capacity    int
	start       int // 最旧元素位置
	size        int
	timestamps  []time.Time
	heartRate   []int
	spo2        []int
	temperature []float64
}

func newHistoryBuffer(capacity int) *historyBuffer {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &historyBuffer{
		capacity:    capacity,
		timestamps:  make([]time.Time, capacity),
		heartRate:   make([]int, capacity),
		spo2:        make([]int, capacity),
		temperature: make([]float64, capacity),
	}
}

// push 追加一条记录，满时淘汰最旧的
func (h *historyBuffer) push(r models.VitalReading) {
	var idx int
	if h.size < h.capacity {
		idx = (h.start + h.size) % h.capacity
		h.size++
	} else {
		idx = h.start
		h.start = (h.start + 1) % h.capacity
	}
	h.timestamps[idx] = r.Timestamp
	h.heartRate[idx] = r.HeartRate
	h.spo2[idx] = r.SpO2
	h.temperature[idx] = r.Temperature
}

// snapshot 按时间顺序拷贝出历史
func (h *historyBuffer) snapshot() models.History {
	out := models.History{
		Timestamps:  make([]time.Time, h.size),
		HeartRate:   make([]int, h.size),
		SpO2:        make([]int, h.size),
		Temperature: make([]float64, h.size),
	}
	for i := 0; i < h.size; i++ {
		idx := (h.start + i) % h.capacity
		out.Timestamps[i] = h.timestamps[idx]
		out.HeartRate[i] = h.heartRate[idx]
		out.SpO2[i] = h.spo2[idx]
		out.Temperature[i] = h.temperature[idx]
	}
	return out
}
