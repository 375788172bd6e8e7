package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"wisefido-emergency/internal/models"

	"go.uber.org/zap"
)

const (
	snapshotKeyPrefix = "emergency:patient:"
	snapshotKeySuffix = ":snapshot"
)

// SnapshotKey 患者快照缓存键
func SnapshotKey(patientID string) string {
	return snapshotKeyPrefix + patientID + snapshotKeySuffix
}

// SnapshotCache 患者快照缓存（供外部看板读取）
type SnapshotCache struct {
	kv     KVStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewSnapshotCache 创建快照缓存
func NewSnapshotCache(kv KVStore, ttl time.Duration, logger *zap.Logger) *SnapshotCache {
	return &SnapshotCache{
		kv:     kv,
		ttl:    ttl,
		logger: logger,
	}
}

// PutSnapshot 写入快照（设置 TTL）
func (c *SnapshotCache) PutSnapshot(ctx context.Context, snap models.Snapshot) error {
	if snap.Patient.ID == "" {
		return fmt.Errorf("patient_id is required")
	}

	jsonData, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := c.kv.Set(ctx, SnapshotKey(snap.Patient.ID), string(jsonData), c.ttl); err != nil {
		return fmt.Errorf("failed to set snapshot cache: %w", err)
	}
	return nil
}

// GetSnapshot 读取快照；不存在或已过期返回 ErrCacheMiss
func (c *SnapshotCache) GetSnapshot(ctx context.Context, patientID string) (*models.Snapshot, error) {
	val, err := c.kv.Get(ctx, SnapshotKey(patientID))
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get snapshot cache: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// CachedPatientIDs 缓存中存在快照的患者 ID（排序后返回）
func (c *SnapshotCache) CachedPatientIDs(ctx context.Context) ([]string, error) {
	keys, err := c.kv.ScanKeys(ctx, snapshotKeyPrefix+"*"+snapshotKeySuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot keys: %w", err)
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		id := strings.TrimSuffix(strings.TrimPrefix(k, snapshotKeyPrefix), snapshotKeySuffix)
		if id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
