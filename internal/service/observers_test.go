package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"wisefido-emergency/internal/escalation"
	"wisefido-emergency/internal/models"
	"wisefido-emergency/internal/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSnapshotStore struct {
	snaps []models.Snapshot
	err   error
}

func (f *fakeSnapshotStore) PutSnapshot(ctx context.Context, snap models.Snapshot) error {
	f.snaps = append(f.snaps, snap)
	return f.err
}

type fakeTransitionPublisher struct {
	published []*models.Transition
}

func (f *fakeTransitionPublisher) PublishTransition(ctx context.Context, tr *models.Transition) error {
	f.published = append(f.published, tr)
	return nil
}

type fakeEventWriter struct {
	events []*models.EscalationEvent
	err    error
}

func (f *fakeEventWriter) CreateEscalationEvent(ctx context.Context, event *models.EscalationEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type fakeNotifier struct {
	batches [][]models.Notification
	err     error
}

func (f *fakeNotifier) Notify(ctx context.Context, notifications []models.Notification) error {
	f.batches = append(f.batches, notifications)
	return f.err
}

func quietOutcome() scheduler.Outcome {
	p := models.Patient{ID: "P001", Name: "Ada"}
	return scheduler.Outcome{
		Patient:  p,
		Result:   escalation.Result{PatientID: "P001", Level: models.LevelNormal},
		Snapshot: models.Snapshot{Patient: p},
	}
}

func escalatedOutcome() scheduler.Outcome {
	out := quietOutcome()
	at := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	out.Result.Level = models.LevelCritical
	out.Result.Transition = &models.Transition{
		PatientID: "P001",
		From:      models.LevelNormal,
		To:        models.LevelCritical,
		Notifications: []models.Notification{
			{PatientID: "P001", Role: "attending", Level: models.LevelCritical, SentAt: at},
		},
		At: at,
	}
	return out
}

func TestSnapshotWriter(t *testing.T) {
	store := &fakeSnapshotStore{}
	w := NewSnapshotWriter(store, zap.NewNop())

	w.OnPatientProcessed(context.Background(), quietOutcome())
	require.Len(t, store.snaps, 1)
	assert.Equal(t, "P001", store.snaps[0].Patient.ID)
}

func TestSnapshotWriter_LogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := &fakeSnapshotStore{err: errors.New("redis down")}
	w := NewSnapshotWriter(store, zap.New(core))

	w.OnPatientProcessed(context.Background(), quietOutcome())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Failed to cache snapshot", logs.All()[0].Message)
}

func TestTransitionStreamer_OnlyOnTransition(t *testing.T) {
	pub := &fakeTransitionPublisher{}
	s := NewTransitionStreamer(pub, zap.NewNop())

	s.OnPatientProcessed(context.Background(), quietOutcome())
	assert.Empty(t, pub.published)

	s.OnPatientProcessed(context.Background(), escalatedOutcome())
	require.Len(t, pub.published, 1)
	assert.Equal(t, models.LevelCritical, pub.published[0].To)
}

func TestEscalationRecorder(t *testing.T) {
	writer := &fakeEventWriter{}
	r := NewEscalationRecorder(writer, zap.NewNop())

	r.OnPatientProcessed(context.Background(), quietOutcome())
	assert.Empty(t, writer.events)

	r.OnPatientProcessed(context.Background(), escalatedOutcome())
	require.Len(t, writer.events, 1)
	assert.Equal(t, "up", writer.events[0].Direction)
	assert.Equal(t, `["attending"]`, writer.events[0].NotifiedRoles)
}

func TestEscalationRecorder_LogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	writer := &fakeEventWriter{err: errors.New("insert failed")}
	r := NewEscalationRecorder(writer, zap.New(core))

	r.OnPatientProcessed(context.Background(), escalatedOutcome())
	assert.Equal(t, 1, logs.FilterMessage("Failed to persist escalation event").Len())
}

func TestNotificationDispatcher(t *testing.T) {
	n := &fakeNotifier{}
	d := NewNotificationDispatcher(n, zap.NewNop())

	d.OnPatientProcessed(context.Background(), quietOutcome())
	assert.Empty(t, n.batches)

	// 降级不带通知
	down := escalatedOutcome()
	down.Result.Transition.From, down.Result.Transition.To = models.LevelCritical, models.LevelAlert
	down.Result.Transition.Notifications = nil
	d.OnPatientProcessed(context.Background(), down)
	assert.Empty(t, n.batches)

	d.OnPatientProcessed(context.Background(), escalatedOutcome())
	require.Len(t, n.batches, 1)
	assert.Equal(t, "attending", n.batches[0][0].Role)
}

func TestNotificationDispatcher_LogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	n := &fakeNotifier{err: errors.New("pager down")}
	d := NewNotificationDispatcher(n, zap.New(core))

	d.OnPatientProcessed(context.Background(), escalatedOutcome())
	assert.Equal(t, 1, logs.FilterMessage("Notification delivery incomplete").Len())
}
