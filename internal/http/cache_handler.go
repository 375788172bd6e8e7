package httpapi

import (
	"context"
	"errors"
	"net/http"

	"wisefido-emergency/internal/cache"
	"wisefido-emergency/internal/models"

	"go.uber.org/zap"
)

// SnapshotReader 读取 Redis 中的快照缓存（cache.SnapshotCache 实现）
type SnapshotReader interface {
	CachedPatientIDs(ctx context.Context) ([]string, error)
	GetSnapshot(ctx context.Context, patientID string) (*models.Snapshot, error)
}

// CacheHandler 快照缓存查询（与其他实例共享的看板视图）
type CacheHandler struct {
	reader SnapshotReader
	logger *zap.Logger
}

func NewCacheHandler(reader SnapshotReader, logger *zap.Logger) *CacheHandler {
	return &CacheHandler{reader: reader, logger: logger}
}

// GET /api/v1/cache/snapshots
func (h *CacheHandler) ListCachedSnapshots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ids, err := h.reader.CachedPatientIDs(ctx)
	if err != nil {
		// Redis 不可用时返回空列表，不让看板报错
		h.logger.Warn("Failed to scan cached snapshots, returning empty list", zap.Error(err))
		writeJSON(w, http.StatusOK, Ok([]models.Snapshot{}))
		return
	}

	out := make([]models.Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := h.reader.GetSnapshot(ctx, id)
		if err != nil {
			// 扫描与读取之间过期
			if !errors.Is(err, cache.ErrCacheMiss) {
				h.logger.Warn("Failed to read cached snapshot", zap.String("patient_id", id), zap.Error(err))
			}
			continue
		}
		out = append(out, *snap)
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

// GET /api/v1/cache/snapshots/{id}
func (h *CacheHandler) GetCachedSnapshot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, err := h.reader.GetSnapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			writeJSON(w, http.StatusNotFound, Fail("snapshot not cached: "+id))
			return
		}
		h.logger.Error("Failed to read cached snapshot", zap.String("patient_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to read cached snapshot"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(snap))
}
