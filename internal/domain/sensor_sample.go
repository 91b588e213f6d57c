package domain

import "time"

// 传感器指标逻辑名（与线上字段名无关）
const (
	MetricTemperature = "temperature"
	MetricHumidity    = "humidity"
	MetricVOC         = "voc"
	MetricCO          = "co"
	MetricPM1         = "pm1"
	MetricPM25        = "pm2_5"
	MetricPM10        = "pm10"
)

// FeatureOrder 分类器输入特征的固定顺序
var FeatureOrder = []string{
	MetricTemperature,
	MetricHumidity,
	MetricVOC,
	MetricCO,
	MetricPM1,
	MetricPM25,
	MetricPM10,
}

// SensorSample 一次采集事件（对应 sensor_data 表）
// 创建后不可修改
type SensorSample struct {
	ID          int64     `json:"id,omitempty"`
	DeviceID    string    `json:"device_id"`
	WorkerID    string    `json:"user_id"` // 由设备分配关系解析得到
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	VOC         float64   `json:"voc"`
	CO          float64   `json:"co"`
	PM1         float64   `json:"pm1"`
	PM25        float64   `json:"pm25"`
	PM10        float64   `json:"pm10"`

	// Raw 原始上报内容（用于推送 sensor_data，保持设备原字段）
	Raw map[string]any `json:"-"`
	// Extra 必填字段之外的字段，只透传不解析
	Extra map[string]any `json:"-"`
}

// Features 按 FeatureOrder 返回分类器输入
func (s *SensorSample) Features() []float64 {
	return []float64{
		s.Temperature,
		s.Humidity,
		s.VOC,
		s.CO,
		s.PM1,
		s.PM25,
		s.PM10,
	}
}

// WithWorker 返回绑定了 worker 的副本
func (s SensorSample) WithWorker(workerID string) *SensorSample {
	s.WorkerID = workerID
	return &s
}
