package service

import (
	"context"
	"time"

	"wisefido-emergency/internal/models"
	"wisefido-emergency/internal/notify"
	"wisefido-emergency/internal/repository"
	"wisefido-emergency/internal/scheduler"

	"go.uber.org/zap"
)

// 单个适配器处理一条结果的超时
const observerTimeout = 2 * time.Second

// SnapshotStore 快照缓存（cache.SnapshotCache 实现）
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, snap models.Snapshot) error
}

// TransitionPublisher 级别变化发布（cache.StreamPublisher 实现）
type TransitionPublisher interface {
	PublishTransition(ctx context.Context, tr *models.Transition) error
}

// EscalationEventWriter 升级事件持久化（repository.EscalationEventsRepository 实现）
type EscalationEventWriter interface {
	CreateEscalationEvent(ctx context.Context, event *models.EscalationEvent) error
}

// SnapshotWriter 每次处理后刷新患者快照缓存
type SnapshotWriter struct {
	store  SnapshotStore
	logger *zap.Logger
}

func NewSnapshotWriter(store SnapshotStore, logger *zap.Logger) *SnapshotWriter {
	return &SnapshotWriter{store: store, logger: logger}
}

func (w *SnapshotWriter) OnPatientProcessed(ctx context.Context, out scheduler.Outcome) {
	ctx, cancel := context.WithTimeout(ctx, observerTimeout)
	defer cancel()
	if err := w.store.PutSnapshot(ctx, out.Snapshot); err != nil {
		w.logger.Warn("Failed to cache snapshot",
			zap.String("patient_id", out.Patient.ID),
			zap.Error(err),
		)
	}
}

// TransitionStreamer 级别变化写入事件流
type TransitionStreamer struct {
	publisher TransitionPublisher
	logger    *zap.Logger
}

func NewTransitionStreamer(publisher TransitionPublisher, logger *zap.Logger) *TransitionStreamer {
	return &TransitionStreamer{publisher: publisher, logger: logger}
}

func (s *TransitionStreamer) OnPatientProcessed(ctx context.Context, out scheduler.Outcome) {
	tr := out.Result.Transition
	if tr == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, observerTimeout)
	defer cancel()
	if err := s.publisher.PublishTransition(ctx, tr); err != nil {
		s.logger.Error("Failed to publish transition",
			zap.String("patient_id", tr.PatientID),
			zap.Error(err),
		)
	}
}

// EscalationRecorder 级别变化写入数据库
type EscalationRecorder struct {
	writer EscalationEventWriter
	logger *zap.Logger
}

func NewEscalationRecorder(writer EscalationEventWriter, logger *zap.Logger) *EscalationRecorder {
	return &EscalationRecorder{writer: writer, logger: logger}
}

func (r *EscalationRecorder) OnPatientProcessed(ctx context.Context, out scheduler.Outcome) {
	tr := out.Result.Transition
	if tr == nil {
		return
	}
	event, err := repository.BuildEscalationEvent(tr)
	if err != nil {
		r.logger.Error("Failed to build escalation event", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, observerTimeout)
	defer cancel()
	if err := r.writer.CreateEscalationEvent(ctx, event); err != nil {
		r.logger.Error("Failed to persist escalation event",
			zap.String("patient_id", tr.PatientID),
			zap.Error(err),
		)
	}
}

// NotificationDispatcher 升级产生的通知交给 Notifier 投递
type NotificationDispatcher struct {
	notifier notify.Notifier
	logger   *zap.Logger
}

func NewNotificationDispatcher(notifier notify.Notifier, logger *zap.Logger) *NotificationDispatcher {
	return &NotificationDispatcher{notifier: notifier, logger: logger}
}

func (d *NotificationDispatcher) OnPatientProcessed(ctx context.Context, out scheduler.Outcome) {
	tr := out.Result.Transition
	if tr == nil || len(tr.Notifications) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, observerTimeout)
	defer cancel()
	if err := d.notifier.Notify(ctx, tr.Notifications); err != nil {
		d.logger.Error("Notification delivery incomplete",
			zap.String("patient_id", tr.PatientID),
			zap.Int("level", int(tr.To)),
			zap.Error(err),
		)
	}
}
