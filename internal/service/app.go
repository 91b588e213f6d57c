package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"smart-industry/common/database"
	mqttcommon "smart-industry/common/mqtt"
	rediscommon "smart-industry/common/redis"
	"smart-industry/internal/broadcast"
	"smart-industry/internal/config"
	"smart-industry/internal/consumer"
	"smart-industry/internal/evaluator"
	httpapi "smart-industry/internal/http"
	"smart-industry/internal/metrics"
	"smart-industry/internal/notifier"
	"smart-industry/internal/repository"
	"smart-industry/internal/transformer"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// App 风险评估服务（整合各层）
type App struct {
	config  *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	db          *sql.DB       // nil 表示使用内存存储
	redisClient *redis.Client // nil 表示未启用 Redis
	mqttClient  *mqttcommon.Client

	store        repository.Store
	broadcaster  *broadcast.Manager
	dispatcher   *notifier.Dispatcher
	ingest       *IngestService
	mqttConsumer *consumer.MQTTConsumer
	handler      http.Handler
	server       *Server
}

// NewApp 按配置创建所有组件
// 启用的外部依赖（PostgreSQL、Redis、MQTT）连接失败或模型加载失败时返回错误
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		config:  cfg,
		logger:  logger,
		metrics: metrics.New(),
	}

	// 1. 存储
	if cfg.DBEnabled {
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.store = repository.NewPostgresStore(db)
	} else {
		logger.Warn("Database disabled, using in-memory store")
		a.store = repository.NewMemoryStore()
	}

	// 2. Redis 缓存
	var cache *consumer.CacheManager
	var verdictCache VerdictCache
	if cfg.RedisEnabled {
		a.redisClient = rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(ctx, a.redisClient); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		cache = consumer.NewCacheManager(cfg, a.redisClient, logger)
		verdictCache = cache
	}

	// 3. 分类器
	classifier, err := loadClassifier(cfg.Risk.ModelPath, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	eval := evaluator.NewEvaluator(classifier, evaluator.ThresholdEngine{PM10Limit: cfg.Risk.PM10Limit}, a.metrics, logger)

	// 4. 推送与通知
	a.broadcaster = broadcast.NewManager(cfg.Broadcast.WriteTimeout, a.metrics, logger)
	a.dispatcher = newDispatcher(cfg, a.metrics, logger)

	// 5. 流水线
	trans := transformer.NewTransformer(a.store, a.metrics, logger)
	a.ingest = NewIngestService(trans, eval, a.broadcaster, verdictCache, a.dispatcher, a.metrics, logger)

	// 6. MQTT 采集
	if cfg.MQTTEnabled {
		client, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.mqttClient = client
		a.mqttConsumer = consumer.NewMQTTConsumer(cfg, client, a.ingest, a.metrics, logger)
	}

	// 7. HTTP
	a.handler = a.buildHandler(cache)
	a.server = NewServer(cfg.HTTP.Addr, a.handler, logger)

	return a, nil
}

func (a *App) buildHandler(cache *consumer.CacheManager) http.Handler {
	cfg := a.config

	var reader httpapi.VerdictReader
	if cache != nil {
		reader = cache
	}

	r := httpapi.NewRouter(a.logger)
	r.RegisterIngestRoutes(httpapi.NewIngestHandler(a.ingest, cfg.Ingest.SensorToken, cfg.Ingest.MaxBodyBytes, a.metrics, a.logger))
	r.RegisterBroadcastRoutes(httpapi.NewBroadcastHandler(a.broadcaster, broadcast.ServeOptions{
		PingInterval: cfg.Broadcast.PingInterval,
		WriteTimeout: cfg.Broadcast.WriteTimeout,
	}, cfg.Ingest.SensorToken, a.logger))
	r.RegisterWorkerRoutes(httpapi.NewWorkerHandler(a.store, a.logger))
	r.RegisterSensorDataRoutes(httpapi.NewSensorDataHandler(a.store, reader, a.logger))
	r.RegisterOpsRoutes(a.metrics.Handler())

	return httpapi.WithCORS(r)
}

func loadClassifier(modelPath string, logger *zap.Logger) (evaluator.Classifier, error) {
	if modelPath == "" {
		logger.Info("No model path configured, using rule classifier")
		return evaluator.RuleClassifier{}, nil
	}
	c, err := evaluator.LoadTreeClassifier(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier model: %w", err)
	}
	logger.Info("Loaded tree classifier", zap.String("model_path", modelPath))
	return c, nil
}

func newDispatcher(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *notifier.Dispatcher {
	var email notifier.EmailSender
	if cfg.SMTP.Enabled() {
		email = notifier.NewSMTPSender(cfg.SMTP)
	} else {
		logger.Warn("SMTP not configured, email notifications disabled")
	}

	var sms notifier.SMSSender
	if cfg.Twilio.Enabled() {
		sms = notifier.NewTwilioSender(cfg.Twilio)
	} else {
		logger.Warn("Twilio not configured, SMS notifications disabled")
	}

	return notifier.NewDispatcher(email, sms, cfg.Notify.Timeout, m, logger)
}

// Handler HTTP 处理器（测试用）
func (a *App) Handler() http.Handler {
	return a.handler
}

// Ingest 上报处理流水线
func (a *App) Ingest() *IngestService {
	return a.ingest
}

// Start 启动 HTTP 服务与 MQTT 消费者，阻塞直到 ctx 取消或任一组件出错
func (a *App) Start(ctx context.Context) error {
	a.logger.Info("Starting smart-industry service",
		zap.Bool("db_enabled", a.db != nil),
		zap.Bool("redis_enabled", a.redisClient != nil),
		zap.Bool("mqtt_enabled", a.mqttConsumer != nil),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(a.server.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Stop(shutdownCtx)
	})

	if a.mqttConsumer != nil {
		g.Go(func() error {
			defer a.mqttConsumer.Stop()
			return a.mqttConsumer.Start(ctx)
		})
	}

	return g.Wait()
}

// Close 等待通知发送完成并关闭外部连接
func (a *App) Close() {
	a.logger.Info("Stopping smart-industry service")

	if a.dispatcher != nil {
		a.dispatcher.Wait()
	}

	if a.mqttClient != nil {
		a.mqttClient.Disconnect()
	}

	if err := rediscommon.Close(a.redisClient); err != nil {
		a.logger.Error("Failed to close redis", zap.Error(err))
	}

	if err := database.Close(a.db); err != nil {
		a.logger.Error("Failed to close database", zap.Error(err))
	}
}
