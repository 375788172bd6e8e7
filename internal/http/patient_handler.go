package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"wisefido-emergency/internal/models"
	"wisefido-emergency/internal/monitor"
	"wisefido-emergency/internal/scheduler"

	"go.uber.org/zap"
)

// Monitor 处理器依赖的监护接口（monitor.Monitor 实现）
type Monitor interface {
	RegisterPatient(p models.Patient) error
	ListPatients() []models.Patient
	Snapshot(patientID string) (models.Snapshot, error)
	SnapshotAll() []models.Snapshot
	Acknowledge(patientID string) error
	SystemLog() []models.EventLogEntry
	PatientLog(patientID string) ([]models.EventLogEntry, error)
	PatientLogAll() []models.EventLogEntry
	Stats() scheduler.Snapshot
	Running() bool
}

// EscalationHistory 持久化的升级事件查询（可选）
type EscalationHistory interface {
	ListRecentEscalationEvents(ctx context.Context, patientID string, limit int) ([]models.EscalationEvent, error)
}

// PatientHandler 患者、快照、确认与日志接口
type PatientHandler struct {
	monitor Monitor
	history EscalationHistory
	logger  *zap.Logger
}

// NewPatientHandler history 可为 nil（未启用数据库）
func NewPatientHandler(m Monitor, history EscalationHistory, logger *zap.Logger) *PatientHandler {
	return &PatientHandler{monitor: m, history: history, logger: logger}
}

// HealthStatus GET /healthz 响应
type HealthStatus struct {
	Status   string             `json:"status"`
	Running  bool               `json:"running"`
	Patients int                `json:"patients"`
	Stats    scheduler.Snapshot `json:"stats"`
}

// GET /api/v1/patients
func (h *PatientHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	patients := h.monitor.ListPatients()
	if patients == nil {
		patients = []models.Patient{}
	}
	writeJSON(w, http.StatusOK, Ok(patients))
}

// POST /api/v1/patients
// body: {id, name, condition_profile, location}
func (h *PatientHandler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	var p models.Patient
	if err := decodeBody(w, r, &p); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	p.ID = strings.TrimSpace(p.ID)

	if err := h.monitor.RegisterPatient(p); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(p))
}

// GET /api/v1/patients/{id}
func (h *PatientHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.monitor.Snapshot(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(snap))
}

// GET /api/v1/snapshots
func (h *PatientHandler) SnapshotAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.monitor.SnapshotAll()))
}

// POST /api/v1/patients/{id}/acknowledge
func (h *PatientHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.monitor.Acknowledge(id); err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := h.monitor.Snapshot(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(snap.Escalation))
}

// GET /api/v1/patients/{id}/log
func (h *PatientHandler) GetPatientLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.monitor.PatientLog(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []models.EventLogEntry{}
	}
	writeJSON(w, http.StatusOK, Ok(entries))
}

// GET /api/v1/patients/{id}/escalations?limit=50
func (h *PatientHandler) GetEscalations(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, Fail("escalation history is not enabled"))
		return
	}
	id := r.PathValue("id")
	if _, err := h.monitor.Snapshot(id); err != nil {
		h.writeError(w, err)
		return
	}

	limit := queryLimit(r, 50)
	events, err := h.history.ListRecentEscalationEvents(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("Failed to list escalation events", zap.String("patient_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list escalation events"))
		return
	}
	if events == nil {
		events = []models.EscalationEvent{}
	}
	writeJSON(w, http.StatusOK, Ok(events))
}

// GET /api/v1/logs/system
func (h *PatientHandler) GetSystemLog(w http.ResponseWriter, r *http.Request) {
	entries := h.monitor.SystemLog()
	if entries == nil {
		entries = []models.EventLogEntry{}
	}
	writeJSON(w, http.StatusOK, Ok(entries))
}

// GET /api/v1/logs/patients
func (h *PatientHandler) GetAllPatientLogs(w http.ResponseWriter, r *http.Request) {
	entries := h.monitor.PatientLogAll()
	if entries == nil {
		entries = []models.EventLogEntry{}
	}
	writeJSON(w, http.StatusOK, Ok(entries))
}

// GET /healthz
func (h *PatientHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(HealthStatus{
		Status:   "ok",
		Running:  h.monitor.Running(),
		Patients: len(h.monitor.ListPatients()),
		Stats:    h.monitor.Stats(),
	}))
}

func (h *PatientHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, monitor.ErrUnknownPatient):
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
	case errors.Is(err, monitor.ErrPatientExists):
		writeJSON(w, http.StatusConflict, Fail(err.Error()))
	case errors.Is(err, monitor.ErrInvalidPatient):
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
	default:
		h.logger.Error("Request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
	}
}
