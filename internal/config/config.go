package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"smart-industry/common/config"

	"github.com/joho/godotenv"
)

// Config smart-industry 风险评估服务配置
type Config struct {
	HTTP struct {
		Addr string
	}

	DBEnabled bool
	Database  config.DatabaseConfig

	RedisEnabled bool
	Redis        config.RedisConfig

	MQTTEnabled bool
	MQTT        config.MQTTConfig

	SMTP   config.SMTPConfig
	Twilio config.TwilioConfig

	// 采集接口配置
	Ingest struct {
		SensorToken  string // X-SENSOR-TOKEN 共享密钥
		SensorTopic  string // MQTT 采集主题，如 "sensors/+/data"
		MaxBodyBytes int64  // 单个请求体上限
	}

	// 风险评估配置
	Risk struct {
		ModelPath string  // 决策树模型 JSON 路径，为空时使用规则分类器
		PM10Limit float64 // PM10 阈值，0 表示不启用
	}

	// 实时推送配置
	Broadcast struct {
		WriteTimeout time.Duration // 单个连接发送超时
		PingInterval time.Duration // WebSocket 心跳间隔
	}

	// 通知配置
	Notify struct {
		Timeout time.Duration // 单个渠道发送超时
	}

	// Redis 缓存配置
	Cache struct {
		LatestKeyPrefix string        // 最新评估结果缓存键前缀，如 "risk:worker:"
		LatestSuffix    string        // 最新评估结果缓存键后缀，如 ":latest"
		LatestTTL       time.Duration // 最新评估结果 TTL
		VerdictStream   string        // 评估结果 stream 名称
		StreamMaxLen    int64         // stream 近似最大长度
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（.env 文件存在时先加载）
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":5001")

	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "industry_data"
	cfg.Database.SSLMode = "disable"
	cfg.Database.LoadFromEnv("DB")

	cfg.RedisEnabled = getEnv("REDIS_ENABLED", "true") == "true"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTTEnabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "smart-industry"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.SMTP.Host = "smtp.gmail.com"
	cfg.SMTP.Port = 587
	cfg.SMTP.LoadFromEnv()

	cfg.Twilio.BaseURL = "https://api.twilio.com"
	cfg.Twilio.LoadFromEnv()

	cfg.Ingest.SensorToken = getEnv("SENSOR_TOKEN", "s3nsor_@uth_2025")
	cfg.Ingest.SensorTopic = getEnv("SENSOR_TOPIC", "sensors/+/data")
	cfg.Ingest.MaxBodyBytes = int64(parseInt(getEnv("INGEST_MAX_BODY_BYTES", "65536"), 65536))

	cfg.Risk.ModelPath = getEnv("MODEL_PATH", "")
	cfg.Risk.PM10Limit = parseFloat(getEnv("THRESHOLD_PM10", "0"), 0)

	cfg.Broadcast.WriteTimeout = config.ParseDuration(os.Getenv("BROADCAST_WRITE_TIMEOUT"), 2*time.Second)
	cfg.Broadcast.PingInterval = config.ParseDuration(os.Getenv("BROADCAST_PING_INTERVAL"), 30*time.Second)

	cfg.Notify.Timeout = config.ParseDuration(os.Getenv("NOTIFY_TIMEOUT"), 15*time.Second)

	cfg.Cache.LatestKeyPrefix = getEnv("CACHE_LATEST_PREFIX", "risk:worker:")
	cfg.Cache.LatestSuffix = ":latest"
	cfg.Cache.LatestTTL = config.ParseDuration(os.Getenv("CACHE_LATEST_TTL"), 10*time.Minute)
	cfg.Cache.VerdictStream = getEnv("CACHE_VERDICT_STREAM", "risk:verdict:stream")
	cfg.Cache.StreamMaxLen = int64(parseInt(getEnv("CACHE_STREAM_MAXLEN", "10000"), 10000))

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}
