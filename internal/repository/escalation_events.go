package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"wisefido-emergency/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const schemaEscalationEvents = `
	CREATE TABLE IF NOT EXISTS escalation_events (
		event_id       UUID PRIMARY KEY,
		patient_id     VARCHAR(64) NOT NULL,
		from_level     SMALLINT NOT NULL,
		to_level       SMALLINT NOT NULL,
		direction      VARCHAR(8) NOT NULL,
		protocol_id    VARCHAR(32),
		alerts         JSONB NOT NULL DEFAULT '[]',
		notified_roles JSONB NOT NULL DEFAULT '[]',
		triggered_at   TIMESTAMPTZ NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_escalation_events_patient
		ON escalation_events (patient_id, triggered_at DESC);
`

// EscalationEventsRepository 升级事件仓库
type EscalationEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEscalationEventsRepository 创建升级事件仓库
func NewEscalationEventsRepository(db *sql.DB, logger *zap.Logger) *EscalationEventsRepository {
	return &EscalationEventsRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema 建表（幂等）
func (r *EscalationEventsRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaEscalationEvents); err != nil {
		return fmt.Errorf("failed to ensure escalation_events schema: %w", err)
	}
	return nil
}

// BuildEscalationEvent 由级别变化构建升级事件
func BuildEscalationEvent(tr *models.Transition) (*models.EscalationEvent, error) {
	if tr == nil {
		return nil, fmt.Errorf("transition is required")
	}

	// 序列化 alerts
	alerts := tr.Alerts
	if alerts == nil {
		alerts = []models.AlertFact{}
	}
	alertsJSON, err := json.Marshal(alerts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alerts: %w", err)
	}

	// 序列化 notified_roles（默认空数组）
	roles := make([]string, 0, len(tr.Notifications))
	for _, n := range tr.Notifications {
		roles = append(roles, n.Role)
	}
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notified roles: %w", err)
	}

	direction := "down"
	if tr.Escalated() {
		direction = "up"
	}

	var protocolID *string
	if tr.Protocol != nil {
		id := tr.Protocol.ID
		protocolID = &id
	}

	return &models.EscalationEvent{
		EventID:       uuid.New().String(),
		PatientID:     tr.PatientID,
		FromLevel:     int(tr.From),
		ToLevel:       int(tr.To),
		Direction:     direction,
		ProtocolID:    protocolID,
		Alerts:        string(alertsJSON),
		NotifiedRoles: string(rolesJSON),
		TriggeredAt:   tr.At,
		CreatedAt:     time.Now(),
	}, nil
}

// CreateEscalationEvent 写入升级事件
func (r *EscalationEventsRepository) CreateEscalationEvent(ctx context.Context, event *models.EscalationEvent) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	if event.PatientID == "" {
		return fmt.Errorf("patient_id is required")
	}
	if event.EventID == "" {
		return fmt.Errorf("event_id is required")
	}

	query := `
		INSERT INTO escalation_events (
			event_id,
			patient_id,
			from_level,
			to_level,
			direction,
			protocol_id,
			alerts,
			notified_roles,
			triggered_at,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		event.EventID,
		event.PatientID,
		event.FromLevel,
		event.ToLevel,
		event.Direction,
		event.ProtocolID,
		event.Alerts,
		event.NotifiedRoles,
		event.TriggeredAt,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create escalation event: %w", err)
	}

	r.logger.Debug("Escalation event created",
		zap.String("event_id", event.EventID),
		zap.String("patient_id", event.PatientID),
		zap.Int("to_level", event.ToLevel),
	)
	return nil
}

// ListRecentEscalationEvents 查询患者最近的升级事件（按触发时间倒序）
func (r *EscalationEventsRepository) ListRecentEscalationEvents(ctx context.Context, patientID string, limit int) ([]models.EscalationEvent, error) {
	if patientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT
			event_id,
			patient_id,
			from_level,
			to_level,
			direction,
			protocol_id,
			alerts,
			notified_roles,
			triggered_at,
			created_at
		FROM escalation_events
		WHERE patient_id = $1
		ORDER BY triggered_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalation events: %w", err)
	}
	defer rows.Close()

	var events []models.EscalationEvent
	for rows.Next() {
		var event models.EscalationEvent
		var protocolID sql.NullString
		var alerts, notifiedRoles []byte

		if err := rows.Scan(
			&event.EventID,
			&event.PatientID,
			&event.FromLevel,
			&event.ToLevel,
			&event.Direction,
			&protocolID,
			&alerts,
			&notifiedRoles,
			&event.TriggeredAt,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan escalation event: %w", err)
		}

		// 处理可空字段
		if protocolID.Valid {
			id := protocolID.String
			event.ProtocolID = &id
		}
		event.Alerts = string(alerts)
		event.NotifiedRoles = string(notifiedRoles)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate escalation events: %w", err)
	}

	return events, nil
}
