package repository

import "database/sql"

// PostgresStore 组合三个 PostgreSQL Repository
type PostgresStore struct {
	*PostgresWorkersRepository
	*PostgresDeviceAssignmentsRepository
	*PostgresSensorDataRepository
}

// NewPostgresStore 基于同一个连接池创建 Store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		PostgresWorkersRepository:           NewPostgresWorkersRepository(db),
		PostgresDeviceAssignmentsRepository: NewPostgresDeviceAssignmentsRepository(db),
		PostgresSensorDataRepository:        NewPostgresSensorDataRepository(db),
	}
}

var _ Store = (*PostgresStore)(nil)
