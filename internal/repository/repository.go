package repository

import (
	"context"
	"errors"

	"smart-industry/internal/domain"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("not found")

// WorkersRepository worker 档案 Repository 接口
type WorkersRepository interface {
	GetWorker(ctx context.Context, workerID string) (*domain.WorkerProfile, error)
	// CreateWorker 已存在时不覆盖（并发首次上报时只保留第一份）
	CreateWorker(ctx context.Context, profile *domain.WorkerProfile) error
	ListWorkers(ctx context.Context) ([]*domain.WorkerProfile, error)
}

// DeviceAssignmentsRepository 设备分配 Repository 接口
type DeviceAssignmentsRepository interface {
	// GetAssignedWorker 未分配或分配为空时返回 ErrNotFound
	GetAssignedWorker(ctx context.Context, deviceID string) (string, error)
	// AssignDevice last-write-wins，不保留历史
	AssignDevice(ctx context.Context, deviceID, workerID string) error
}

// SensorDataRepository 传感器数据 Repository 接口（只追加）
type SensorDataRepository interface {
	AppendSample(ctx context.Context, sample *domain.SensorSample) (int64, error)
	ListLatest(ctx context.Context, limit int) ([]*domain.SensorSample, error)
	Latest(ctx context.Context) (*domain.SensorSample, error)
}

// Store 服务使用的全部存储接口
type Store interface {
	WorkersRepository
	DeviceAssignmentsRepository
	SensorDataRepository
}
