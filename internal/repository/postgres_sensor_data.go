package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"smart-industry/internal/domain"
)

// PostgresSensorDataRepository sensor_data 表实现（只追加，不去重）
type PostgresSensorDataRepository struct {
	db *sql.DB
}

// NewPostgresSensorDataRepository 创建传感器数据 Repository
func NewPostgresSensorDataRepository(db *sql.DB) *PostgresSensorDataRepository {
	return &PostgresSensorDataRepository{db: db}
}

var _ SensorDataRepository = (*PostgresSensorDataRepository)(nil)

const sensorDataColumns = `
	id,
	device_id,
	user_id,
	timestamp,
	temperature,
	humidity,
	voc,
	co,
	pm1,
	pm25,
	pm10,
	extra
`

// AppendSample 追加一条采集记录，返回自增 id
func (r *PostgresSensorDataRepository) AppendSample(ctx context.Context, s *domain.SensorSample) (int64, error) {
	extra := []byte("{}")
	if len(s.Extra) > 0 {
		b, err := json.Marshal(s.Extra)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal extra fields: %w", err)
		}
		extra = b
	}

	query := `
		INSERT INTO sensor_data (device_id, user_id, timestamp, temperature, humidity, voc, co, pm1, pm25, pm10, extra)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		s.DeviceID,
		s.WorkerID,
		s.Timestamp,
		s.Temperature,
		s.Humidity,
		s.VOC,
		s.CO,
		s.PM1,
		s.PM25,
		s.PM10,
		extra,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sensor data: %w", err)
	}
	return id, nil
}

// ListLatest 按 id 倒序返回最近 limit 条
func (r *PostgresSensorDataRepository) ListLatest(ctx context.Context, limit int) ([]*domain.SensorSample, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + sensorDataColumns + ` FROM sensor_data ORDER BY id DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor data: %w", err)
	}
	defer rows.Close()

	var out []*domain.SensorSample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sensor data: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sensor data: %w", err)
	}
	return out, nil
}

// Latest 最新一条采集记录
func (r *PostgresSensorDataRepository) Latest(ctx context.Context) (*domain.SensorSample, error) {
	query := `SELECT ` + sensorDataColumns + ` FROM sensor_data ORDER BY id DESC LIMIT 1`

	s, err := scanSample(r.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query latest sensor data: %w", err)
	}
	return s, nil
}

func scanSample(row interface{ Scan(...any) error }) (*domain.SensorSample, error) {
	var (
		s     domain.SensorSample
		extra []byte
	)
	if err := row.Scan(
		&s.ID,
		&s.DeviceID,
		&s.WorkerID,
		&s.Timestamp,
		&s.Temperature,
		&s.Humidity,
		&s.VOC,
		&s.CO,
		&s.PM1,
		&s.PM25,
		&s.PM10,
		&extra,
	); err != nil {
		return nil, err
	}
	if len(extra) > 0 {
		// extra 只做透传，解析失败不影响主记录
		_ = json.Unmarshal(extra, &s.Extra)
	}
	return &s, nil
}
