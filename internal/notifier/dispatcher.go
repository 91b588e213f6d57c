package notifier

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"smart-industry/internal/domain"
	"smart-industry/internal/metrics"

	"go.uber.org/zap"
)

// DefaultTimeout 单个渠道发送超时
const DefaultTimeout = 15 * time.Second

// 渠道名（日志与指标标签）
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// EmailSender 邮件发送
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender 短信发送
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Dispatcher 不安全评估结果的邮件/短信通知
// 每个渠道在独立 goroutine 中发送，失败只记录日志；不重试、不排队
type Dispatcher struct {
	email   EmailSender // nil 表示未配置
	sms     SMSSender   // nil 表示未配置
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger

	wg sync.WaitGroup
}

// NewDispatcher 创建通知分发器
func NewDispatcher(email EmailSender, sms SMSSender, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		email:   email,
		sms:     sms,
		timeout: timeout,
		metrics: m,
		logger:  logger,
	}
}

// Notify 只处理 Unsafe 结果；立即返回，不等待发送完成
func (d *Dispatcher) Notify(verdict *domain.RiskVerdict, profile *domain.WorkerProfile) {
	if verdict == nil || profile == nil || !verdict.Unsafe() {
		return
	}

	subject := Subject(verdict)
	body := Body(verdict, profile)

	if d.email != nil {
		d.dispatch(ChannelEmail, profile.Email, verdict.WorkerID, func(ctx context.Context) error {
			return d.email.SendEmail(ctx, profile.Email, subject, body)
		})
	} else {
		d.skip(ChannelEmail, verdict.WorkerID, "channel not configured")
	}

	if d.sms != nil {
		d.dispatch(ChannelSMS, profile.PhoneNumber, verdict.WorkerID, func(ctx context.Context) error {
			return d.sms.SendSMS(ctx, profile.PhoneNumber, subject)
		})
	} else {
		d.skip(ChannelSMS, verdict.WorkerID, "channel not configured")
	}
}

// Wait 等待已发出的通知完成（关闭服务时使用）
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(channel, to, workerID string, send func(ctx context.Context) error) {
	if strings.TrimSpace(to) == "" {
		d.skip(channel, workerID, "no address provided")
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.safeSend(ctx, send); err != nil {
			d.metrics.IncNotification(channel, "failed")
			d.logger.Warn("Failed to send notification",
				zap.String("channel", channel),
				zap.String("worker_id", workerID),
				zap.Error(fmt.Errorf("%w: %v", domain.ErrNotification, err)),
			)
			return
		}

		d.metrics.IncNotification(channel, "sent")
		d.logger.Info("Notification sent",
			zap.String("channel", channel),
			zap.String("worker_id", workerID),
		)
	}()
}

func (d *Dispatcher) safeSend(ctx context.Context, send func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return send(ctx)
}

func (d *Dispatcher) skip(channel, workerID, reason string) {
	d.metrics.IncNotification(channel, "skipped")
	d.logger.Info("Skipping notification",
		zap.String("channel", channel),
		zap.String("worker_id", workerID),
		zap.String("reason", reason),
	)
}
