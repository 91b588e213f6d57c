package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"smart-industry/internal/domain"
)

// PostgresWorkersRepository workers 表实现
type PostgresWorkersRepository struct {
	db *sql.DB
}

// NewPostgresWorkersRepository 创建 workers Repository
func NewPostgresWorkersRepository(db *sql.DB) *PostgresWorkersRepository {
	return &PostgresWorkersRepository{db: db}
}

// 确保实现了接口
var _ WorkersRepository = (*PostgresWorkersRepository)(nil)

const workerColumns = `
	worker_id,
	name,
	age,
	COALESCE(health_condition, ''),
	COALESCE(work_environment, ''),
	COALESCE(email, ''),
	COALESCE(phone_number, '')
`

func scanWorker(row interface{ Scan(...any) error }) (*domain.WorkerProfile, error) {
	var w domain.WorkerProfile
	if err := row.Scan(
		&w.WorkerID,
		&w.Name,
		&w.Age,
		&w.HealthCondition,
		&w.WorkEnvironment,
		&w.Email,
		&w.PhoneNumber,
	); err != nil {
		return nil, err
	}
	return &w, nil
}

// GetWorker 按 worker_id 查询
func (r *PostgresWorkersRepository) GetWorker(ctx context.Context, workerID string) (*domain.WorkerProfile, error) {
	query := `SELECT ` + workerColumns + ` FROM workers WHERE worker_id = $1`

	w, err := scanWorker(r.db.QueryRowContext(ctx, query, workerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query worker: %w", err)
	}
	return w, nil
}

// CreateWorker 插入 worker，worker_id 冲突时忽略
func (r *PostgresWorkersRepository) CreateWorker(ctx context.Context, profile *domain.WorkerProfile) error {
	if profile == nil || profile.WorkerID == "" {
		return fmt.Errorf("worker_id is required")
	}

	query := `
		INSERT INTO workers (worker_id, name, age, health_condition, work_environment, email, phone_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (worker_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		profile.WorkerID,
		profile.Name,
		profile.Age,
		profile.HealthCondition,
		profile.WorkEnvironment,
		profile.Email,
		profile.PhoneNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to insert worker: %w", err)
	}
	return nil
}

// ListWorkers 查询全部 worker
func (r *PostgresWorkersRepository) ListWorkers(ctx context.Context) ([]*domain.WorkerProfile, error) {
	query := `SELECT ` + workerColumns + ` FROM workers ORDER BY worker_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workers: %w", err)
	}
	defer rows.Close()

	var out []*domain.WorkerProfile
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workers: %w", err)
	}
	return out, nil
}
