package domain

import "time"

// 自动创建 worker 时的默认值
const (
	PlaceholderName            = "Auto Worker"
	PlaceholderAge             = 25
	PlaceholderHealthCondition = "Healthy"
	PlaceholderWorkEnvironment = "Normal"
)

// MaxIDLength worker_id / device_id 最大长度（与表结构 VARCHAR(64) 一致）
const MaxIDLength = 64

// WorkerProfile worker 身份与风险相关属性（对应 workers 表）
type WorkerProfile struct {
	WorkerID        string `json:"worker_id"`
	Name            string `json:"name"`
	Age             int    `json:"age"`
	HealthCondition string `json:"health_condition"`
	WorkEnvironment string `json:"work_environment"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"phone_number"`
}

// NewPlaceholderProfile 未知设备首次上报时创建的默认 worker
// 创建后即为正常 worker，不是哨兵值
func NewPlaceholderProfile(workerID string) *WorkerProfile {
	return &WorkerProfile{
		WorkerID:        workerID,
		Name:            PlaceholderName,
		Age:             PlaceholderAge,
		HealthCondition: PlaceholderHealthCondition,
		WorkEnvironment: PlaceholderWorkEnvironment,
	}
}

// DeviceAssignment 设备与 worker 的分配关系（last-write-wins）
type DeviceAssignment struct {
	DeviceID   string    `json:"device_id"`
	WorkerID   string    `json:"user_id"`
	AssignedAt time.Time `json:"assigned_at"`
}
