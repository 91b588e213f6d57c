package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresDeviceAssignmentsRepository device_assignments 表实现
type PostgresDeviceAssignmentsRepository struct {
	db *sql.DB
}

// NewPostgresDeviceAssignmentsRepository 创建设备分配 Repository
func NewPostgresDeviceAssignmentsRepository(db *sql.DB) *PostgresDeviceAssignmentsRepository {
	return &PostgresDeviceAssignmentsRepository{db: db}
}

var _ DeviceAssignmentsRepository = (*PostgresDeviceAssignmentsRepository)(nil)

// GetAssignedWorker 查询设备当前分配的 worker
func (r *PostgresDeviceAssignmentsRepository) GetAssignedWorker(ctx context.Context, deviceID string) (string, error) {
	var workerID sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT assigned_user_id FROM device_assignments WHERE device_id = $1`,
		deviceID,
	).Scan(&workerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to query device assignment: %w", err)
	}
	if !workerID.Valid || workerID.String == "" {
		return "", ErrNotFound
	}
	return workerID.String, nil
}

// AssignDevice upsert 设备分配
func (r *PostgresDeviceAssignmentsRepository) AssignDevice(ctx context.Context, deviceID, workerID string) error {
	query := `
		INSERT INTO device_assignments (device_id, assigned_user_id, assigned_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (device_id) DO UPDATE SET
			assigned_user_id = EXCLUDED.assigned_user_id,
			assigned_at = EXCLUDED.assigned_at
	`
	if _, err := r.db.ExecContext(ctx, query, deviceID, workerID); err != nil {
		return fmt.Errorf("failed to upsert device assignment: %w", err)
	}
	return nil
}
