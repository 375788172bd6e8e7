package models

import "time"

// Level 升级级别 0..4
type Level int

const (
	LevelNormal    Level = 0
	LevelAlert     Level = 1
	LevelWarning   Level = 2
	LevelCritical  Level = 3
	LevelEmergency Level = 4
)

// String 级别名称
func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "Normal"
	case LevelAlert:
		return "Alert"
	case LevelWarning:
		return "Warning"
	case LevelCritical:
		return "Critical"
	case LevelEmergency:
		return "Emergency"
	default:
		return "Unknown"
	}
}

// Severity 级别对应的日志严重程度
func (l Level) Severity() Severity {
	switch {
	case l >= LevelEmergency:
		return SeverityEmergency
	case l >= LevelCritical:
		return SeverityCritical
	case l >= LevelAlert:
		return SeverityWarning
	default:
		return SeverityNormal
	}
}

// Protocol 临床处置流程（有序步骤）
type Protocol struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Steps []string `json:"steps"`
}

// TimelineKind 时间线条目类型
type TimelineKind string

const (
	TimelineEscalate         TimelineKind = "escalate"
	TimelineDeescalate       TimelineKind = "deescalate"
	TimelineAcknowledge      TimelineKind = "acknowledge"
	TimelineCountdownExpired TimelineKind = "countdown_expired"
)

// TimelineEntry 升级时间线条目
type TimelineEntry struct {
	Kind    TimelineKind `json:"kind"`
	From    Level        `json:"from"`
	Level   Level        `json:"level"`
	At      time.Time    `json:"at"`
	Message string       `json:"message"`
}

// EscalationState 单个患者的升级状态
type EscalationState struct {
	Level        Level           `json:"level"`
	ActiveAlerts []AlertFact     `json:"active_alerts"`
	Protocol     *Protocol       `json:"protocol,omitempty"`
	Countdown    *int            `json:"countdown,omitempty"` // 秒，仅 level >= 3 时非空
	Acknowledged bool            `json:"acknowledged"`
	Timeline     []TimelineEntry `json:"timeline"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Clone 深拷贝，读者不能持有内部可变存储的引用
func (s EscalationState) Clone() EscalationState {
	out := s
	out.ActiveAlerts = append([]AlertFact(nil), s.ActiveAlerts...)
	out.Timeline = append([]TimelineEntry(nil), s.Timeline...)
	if s.Protocol != nil {
		p := *s.Protocol
		p.Steps = append([]string(nil), s.Protocol.Steps...)
		out.Protocol = &p
	}
	if s.Countdown != nil {
		c := *s.Countdown
		out.Countdown = &c
	}
	return out
}

// Notification 升级通知（每个责任角色一条）
type Notification struct {
	PatientID string    `json:"patient_id"`
	Role      string    `json:"role"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sent_at"`
}

// Transition 一次级别变化
type Transition struct {
	PatientID     string         `json:"patient_id"`
	From          Level          `json:"from"`
	To            Level          `json:"to"`
	Alerts        []AlertFact    `json:"alerts"`
	Protocol      *Protocol      `json:"protocol,omitempty"`
	Notifications []Notification `json:"notifications,omitempty"`
	At            time.Time      `json:"at"`
}

// Escalated 是否为升级（级别升高）
func (t Transition) Escalated() bool {
	return t.To > t.From
}

// EscalationEvent 升级事件（对应 escalation_events 表）
type EscalationEvent struct {
	EventID       string    `json:"event_id" db:"event_id"`
	PatientID     string    `json:"patient_id" db:"patient_id"`
	FromLevel     int       `json:"from_level" db:"from_level"`
	ToLevel       int       `json:"to_level" db:"to_level"`
	Direction     string    `json:"direction" db:"direction"` // up, down
	ProtocolID    *string   `json:"protocol_id,omitempty" db:"protocol_id"`
	Alerts        string    `json:"alerts" db:"alerts"`                 // JSONB
	NotifiedRoles string    `json:"notified_roles" db:"notified_roles"` // JSONB
	TriggeredAt   time.Time `json:"triggered_at" db:"triggered_at"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
