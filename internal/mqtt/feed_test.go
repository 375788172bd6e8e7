package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wisefido-emergency/internal/generator"
	"wisefido-emergency/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var received = time.Unix(1750000000, 0)

type fakeSubscriber struct {
	mu           sync.Mutex
	handlers     map[string]MessageHandler
	unsubscribed []string
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = map[string]MessageHandler{}
	}
	f.handlers[topic] = handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, topics...)
	return nil
}

func (f *fakeSubscriber) handler(topic string) MessageHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[topic]
}

type constantSource struct{ reading models.VitalReading }

func (c constantSource) Generate(models.Patient) (models.VitalReading, error) {
	return c.reading, nil
}

func newFeed(fallback generator.ReadingSource) *FeedSource {
	f := NewFeedSource(fallback, 5*time.Second, zap.NewNop())
	f.now = func() time.Time { return received }
	return f
}

func TestHandleMessage_StoresLatestReading(t *testing.T) {
	f := newFeed(nil)

	err := f.HandleMessage("vitals/P001/reading", []byte(`{"heart_rate":128,"spo2":91,"temperature":38.2,"timestamp":1750000000}`))
	require.NoError(t, err)

	r, err := f.Generate(models.Patient{ID: "P001"})
	require.NoError(t, err)
	assert.Equal(t, 128, r.HeartRate)
	assert.Equal(t, 91, r.SpO2)
	assert.Equal(t, 38.2, r.Temperature)
	assert.Equal(t, received, r.Timestamp)
	assert.Empty(t, r.Regime)
}

func TestHandleMessage_MissingTimestampUsesReceiveTime(t *testing.T) {
	f := newFeed(nil)
	require.NoError(t, f.HandleMessage("vitals/P001/reading", []byte(`{"heart_rate":80,"spo2":97,"temperature":36.9}`)))

	r, err := f.Generate(models.Patient{ID: "P001"})
	require.NoError(t, err)
	assert.Equal(t, received, r.Timestamp)
}

func TestHandleMessage_IgnoresOutOfOrder(t *testing.T) {
	f := newFeed(nil)
	require.NoError(t, f.HandleMessage("vitals/P001/reading", []byte(`{"heart_rate":100,"spo2":97,"temperature":36.9,"timestamp":1750000000}`)))
	require.NoError(t, f.HandleMessage("vitals/P001/reading", []byte(`{"heart_rate":60,"spo2":97,"temperature":36.9,"timestamp":1749999990}`)))

	r, _ := f.Generate(models.Patient{ID: "P001"})
	assert.Equal(t, 100, r.HeartRate)
}

func TestHandleMessage_Errors(t *testing.T) {
	f := newFeed(nil)
	assert.Error(t, f.HandleMessage("vitals/reading", []byte(`{}`)))
	assert.Error(t, f.HandleMessage("vitals//reading", []byte(`{}`)))
	assert.Error(t, f.HandleMessage("vitals/P001/reading", []byte(`not json`)))
}

func TestGenerate_StaleOrMissingUsesFallback(t *testing.T) {
	fallback := constantSource{reading: models.VitalReading{HeartRate: 77, SpO2: 98, Temperature: 36.7, Regime: models.RegimeNormal}}
	f := newFeed(fallback)

	// 缺失
	r, err := f.Generate(models.Patient{ID: "P009"})
	require.NoError(t, err)
	assert.Equal(t, 77, r.HeartRate)

	// 过期
	require.NoError(t, f.HandleMessage("vitals/P001/reading", []byte(`{"heart_rate":120,"spo2":95,"temperature":37.0,"timestamp":1749999990}`)))
	r, err = f.Generate(models.Patient{ID: "P001"})
	require.NoError(t, err)
	assert.Equal(t, 77, r.HeartRate)
}

func TestGenerate_NoFallback(t *testing.T) {
	f := newFeed(nil)
	_, err := f.Generate(models.Patient{ID: "P001"})
	assert.True(t, errors.Is(err, generator.ErrNoReading))
}

func TestStart_SubscribesAndUnsubscribes(t *testing.T) {
	f := newFeed(nil)
	sub := &fakeSubscriber{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.Start(ctx, sub, "vitals/+/reading", 1) }()

	require.Eventually(t, func() bool { return sub.handler("vitals/+/reading") != nil }, time.Second, time.Millisecond)
	require.NoError(t, sub.handler("vitals/+/reading")("vitals/P002/reading", []byte(`{"heart_rate":90,"spo2":96,"temperature":37.1}`)))

	r, err := f.Generate(models.Patient{ID: "P002"})
	require.NoError(t, err)
	assert.Equal(t, 90, r.HeartRate)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"vitals/+/reading"}, sub.unsubscribed)
}

func TestHandleMessage_FutureTimestampCappedAtReceiveTime(t *testing.T) {
	fallback := constantSource{reading: models.VitalReading{HeartRate: 77, SpO2: 98, Temperature: 36.7}}
	f := newFeed(fallback)
	clock := received
	f.now = func() time.Time { return clock }

	// 设备时钟超前一小时
	require.NoError(t, f.HandleMessage("vitals/P001/reading", []byte(`{"heart_rate":100,"spo2":97,"temperature":36.9,"timestamp":1750003600}`)))
	r, err := f.Generate(models.Patient{ID: "P001"})
	require.NoError(t, err)
	assert.Equal(t, received, r.Timestamp)

	// 之后正常时间戳的消息仍会被接收
	clock = received.Add(time.Second)
	require.NoError(t, f.HandleMessage("vitals/P001/reading", []byte(`{"heart_rate":110,"spo2":96,"temperature":37.0,"timestamp":1750000001}`)))
	r, err = f.Generate(models.Patient{ID: "P001"})
	require.NoError(t, err)
	assert.Equal(t, 110, r.HeartRate)

	// 没有新消息时照常过期
	clock = received.Add(time.Minute)
	r, err = f.Generate(models.Patient{ID: "P001"})
	require.NoError(t, err)
	assert.Equal(t, 77, r.HeartRate)
}
