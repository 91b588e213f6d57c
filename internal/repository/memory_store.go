package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"smart-industry/internal/domain"
)

// MemoryStore: DB 未启用（DB_ENABLED=false）或测试时使用
// - 语义与 PostgreSQL 实现一致（ErrNotFound / upsert / 只追加）
// - 进程重启后数据丢失
type MemoryStore struct {
	mu sync.RWMutex

	workers     map[string]domain.WorkerProfile
	assignments map[string]domain.DeviceAssignment
	samples     []domain.SensorSample
	nextID      int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workers:     map[string]domain.WorkerProfile{},
		assignments: map[string]domain.DeviceAssignment{},
	}
}

var _ Store = (*MemoryStore)(nil)

// ---- workers ----

func (m *MemoryStore) GetWorker(_ context.Context, workerID string) (*domain.WorkerProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.workers[workerID]
	if !ok {
		return nil, ErrNotFound
	}
	return &w, nil
}

func (m *MemoryStore) CreateWorker(_ context.Context, profile *domain.WorkerProfile) error {
	if profile == nil || profile.WorkerID == "" {
		return fmt.Errorf("worker_id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.workers[profile.WorkerID]; exists {
		return nil
	}
	m.workers[profile.WorkerID] = *profile
	return nil
}

func (m *MemoryStore) ListWorkers(_ context.Context) ([]*domain.WorkerProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.WorkerProfile, 0, len(m.workers))
	for _, w := range m.workers {
		w := w
		out = append(out, &w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	return out, nil
}

// ---- device assignments ----

func (m *MemoryStore) GetAssignedWorker(_ context.Context, deviceID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assignments[deviceID]
	if !ok || a.WorkerID == "" {
		return "", ErrNotFound
	}
	return a.WorkerID, nil
}

func (m *MemoryStore) AssignDevice(_ context.Context, deviceID, workerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.assignments[deviceID] = domain.DeviceAssignment{
		DeviceID:   deviceID,
		WorkerID:   workerID,
		AssignedAt: time.Now(),
	}
	return nil
}

// ---- sensor data ----

func (m *MemoryStore) AppendSample(_ context.Context, sample *domain.SensorSample) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	s := *sample
	s.ID = m.nextID
	s.Raw = nil
	m.samples = append(m.samples, s)
	return s.ID, nil
}

func (m *MemoryStore) ListLatest(_ context.Context, limit int) ([]*domain.SensorSample, error) {
	if limit <= 0 {
		limit = 100
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.SensorSample, 0, limit)
	for i := len(m.samples) - 1; i >= 0 && len(out) < limit; i-- {
		s := m.samples[i]
		out = append(out, &s)
	}
	return out, nil
}

func (m *MemoryStore) Latest(_ context.Context) (*domain.SensorSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.samples) == 0 {
		return nil, ErrNotFound
	}
	s := m.samples[len(m.samples)-1]
	return &s, nil
}
