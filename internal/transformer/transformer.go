package transformer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smart-industry/internal/domain"
	"smart-industry/internal/metrics"
	"smart-industry/internal/repository"

	"go.uber.org/zap"
)

// Reading 校验并解析出所属 worker 的一次上报
type Reading struct {
	Sample  *domain.SensorSample
	Profile *domain.WorkerProfile
}

// Transformer 上报数据标准化 + worker 解析
type Transformer struct {
	workers     repository.WorkersRepository
	assignments repository.DeviceAssignmentsRepository
	samples     repository.SensorDataRepository
	metrics     *metrics.Metrics
	logger      *zap.Logger

	now func() time.Time
}

// NewTransformer 创建 Transformer
func NewTransformer(
	store repository.Store,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Transformer {
	return &Transformer{
		workers:     store,
		assignments: store,
		samples:     store,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

// Ingest 校验 -> 解析 worker（必要时自动创建）-> 写入 sensor_data
// 校验失败时不产生任何副作用；写入失败只记录日志
func (t *Transformer) Ingest(ctx context.Context, raw map[string]any) (*Reading, error) {
	sample, err := Normalize(raw, t.now())
	if err != nil {
		return nil, err
	}

	profile, err := t.Resolve(ctx, sample.DeviceID)
	if err != nil {
		return nil, err
	}

	sample = sample.WithWorker(profile.WorkerID)
	t.persist(ctx, sample)

	return &Reading{Sample: sample, Profile: profile}, nil
}

// ResolveWorkerID 设备当前分配的 worker；未分配时使用设备 ID
func (t *Transformer) ResolveWorkerID(ctx context.Context, deviceID string) (string, error) {
	workerID, err := t.assignments.GetAssignedWorker(ctx, deviceID)
	if err == nil {
		return workerID, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return deviceID, nil
	}
	return "", fmt.Errorf("%w: lookup device assignment %s: %v", domain.ErrResolution, deviceID, err)
}

// Resolve 获取设备对应的 worker 档案（get-or-create）
func (t *Transformer) Resolve(ctx context.Context, deviceID string) (*domain.WorkerProfile, error) {
	workerID, err := t.ResolveWorkerID(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	profile, err := t.workers.GetWorker(ctx, workerID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: load worker %s: %v", domain.ErrResolution, workerID, err)
	}

	return t.createPlaceholder(ctx, deviceID, workerID)
}

// createPlaceholder 未知 worker 首次上报时创建默认档案
func (t *Transformer) createPlaceholder(ctx context.Context, deviceID, workerID string) (*domain.WorkerProfile, error) {
	t.logger.Info("No worker profile found, creating placeholder",
		zap.String("device_id", deviceID),
		zap.String("worker_id", workerID),
	)

	if err := t.workers.CreateWorker(ctx, domain.NewPlaceholderProfile(workerID)); err != nil {
		return nil, fmt.Errorf("%w: create placeholder worker %s: %v", domain.ErrResolution, workerID, err)
	}

	// 重新读取：并发创建时以已存在的记录为准
	profile, err := t.workers.GetWorker(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("%w: reload worker %s: %v", domain.ErrResolution, workerID, err)
	}
	return profile, nil
}

func (t *Transformer) persist(ctx context.Context, sample *domain.SensorSample) {
	if _, err := t.samples.AppendSample(ctx, sample); err != nil {
		t.metrics.IncPersistFailure()
		t.logger.Warn("Failed to persist sensor sample",
			zap.String("device_id", sample.DeviceID),
			zap.String("worker_id", sample.WorkerID),
			zap.Error(err),
		)
	}
}
