package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"smart-industry/internal/domain"
	"smart-industry/internal/metrics"

	"go.uber.org/zap"
)

// DefaultWriteTimeout 单个连接发送超时
const DefaultWriteTimeout = 2 * time.Second

// ErrInvalidRole 角色为空
var ErrInvalidRole = errors.New("role is required")

// roleSet 单个角色的订阅集合
// 注册、注销、推送在同一角色上互斥；不同角色互不阻塞
type roleSet struct {
	mu   sync.Mutex
	subs map[Conn]*Subscription
}

// Manager 按角色管理实时订阅者并推送消息
// 不缓存消息：推送时不处于 Open 的订阅者收不到，也不会补发
type Manager struct {
	mu    sync.RWMutex
	roles map[string]*roleSet

	writeTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// PublishResult 一次推送的结果
type PublishResult struct {
	Delivered int
	Failed    int
}

// NewManager 创建订阅管理器
func NewManager(writeTimeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Manager {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Manager{
		roles:        map[string]*roleSet{},
		writeTimeout: writeTimeout,
		metrics:      m,
		logger:       logger,
	}
}

func (m *Manager) roleSet(role string, create bool) *roleSet {
	m.mu.RLock()
	rs := m.roles[role]
	m.mu.RUnlock()
	if rs != nil || !create {
		return rs
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if rs = m.roles[role]; rs == nil {
		rs = &roleSet{subs: map[Conn]*Subscription{}}
		m.roles[role] = rs
	}
	return rs
}

// Subscribe 在 role 下注册连接并发送确认 {status:"connected", role}
// 同一连接重复注册同一角色时返回已有的订阅
func (m *Manager) Subscribe(ctx context.Context, conn Conn, role string) (*Subscription, error) {
	if role == "" {
		return nil, ErrInvalidRole
	}

	rs := m.roleSet(role, true)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if existing, ok := rs.subs[conn]; ok {
		return existing, nil
	}

	sub := newSubscription(conn, role)

	ack, _ := json.Marshal(map[string]string{"status": "connected", "role": role})
	if err := m.send(ctx, conn, ack); err != nil {
		sub.close()
		return nil, fmt.Errorf("%w: send ack to %s subscriber: %v", domain.ErrDelivery, role, err)
	}

	sub.open()
	rs.subs[conn] = sub
	m.metrics.SetSubscribers(role, len(rs.subs))

	m.logger.Info("Subscriber connected",
		zap.String("role", role),
		zap.Int("active_connections", len(rs.subs)),
	)
	return sub, nil
}

// Unsubscribe 注销订阅（传输层检测到断开时调用），可重复调用
func (m *Manager) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	rs := m.roleSet(sub.role, false)
	if rs == nil {
		sub.close()
		return
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	sub.close()
	if rs.subs[sub.conn] != sub {
		return
	}
	delete(rs.subs, sub.conn)
	m.metrics.SetSubscribers(sub.role, len(rs.subs))

	m.logger.Info("Subscriber disconnected",
		zap.String("role", sub.role),
		zap.Int("active_connections", len(rs.subs)),
	)
}

// Publish 推送给 targetRole 的全部订阅者；targetRole 为空时推送给所有角色
// 单个连接发送失败时立即关闭并移除该连接，不影响其他连接
func (m *Manager) Publish(ctx context.Context, message any, targetRole string) (PublishResult, error) {
	payload, err := encode(message)
	if err != nil {
		return PublishResult{}, err
	}

	var targets []string
	if targetRole != "" {
		targets = []string{targetRole}
	} else {
		targets = m.Roles()
	}

	var result PublishResult
	for _, role := range targets {
		rs := m.roleSet(role, false)
		if rs == nil {
			continue
		}
		delivered, failed := m.publishRole(ctx, rs, role, payload)
		result.Delivered += delivered
		result.Failed += failed
	}

	m.logger.Debug("Broadcasted message",
		zap.String("target_role", roleLabel(targetRole)),
		zap.Int("delivered", result.Delivered),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (m *Manager) publishRole(ctx context.Context, rs *roleSet, role string, payload []byte) (int, int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if len(rs.subs) == 0 {
		return 0, 0
	}

	type outcome struct {
		sub *Subscription
		err error
	}
	results := make(chan outcome, len(rs.subs))

	var wg sync.WaitGroup
	for _, sub := range rs.subs {
		wg.Add(1)
		go func(sub *Subscription) {
			defer wg.Done()
			results <- outcome{sub: sub, err: m.send(ctx, sub.conn, payload)}
		}(sub)
	}
	wg.Wait()
	close(results)

	delivered, failed := 0, 0
	for r := range results {
		if r.err == nil {
			delivered++
			continue
		}
		failed++
		m.dropLocked(rs, r.sub, r.err)
	}
	if failed > 0 {
		m.metrics.SetSubscribers(role, len(rs.subs))
	}
	return delivered, failed
}

// dropLocked 发送失败：Open -> Closed，移除并关闭连接（调用方持有 rs.mu）
func (m *Manager) dropLocked(rs *roleSet, sub *Subscription, cause error) {
	sub.close()
	delete(rs.subs, sub.conn)
	m.metrics.IncDeliveryFailure(sub.role)

	if err := sub.conn.Close(); err != nil {
		m.logger.Debug("Failed to close subscriber connection", zap.Error(err))
	}
	m.logger.Warn("Dropped subscriber after failed send",
		zap.String("role", sub.role),
		zap.Error(fmt.Errorf("%w: %v", domain.ErrDelivery, cause)),
	)
}

// send 只受 writeTimeout 限制；发布方取消 ctx 不算作订阅者发送失败
func (m *Manager) send(ctx context.Context, conn Conn, payload []byte) error {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.writeTimeout)
	defer cancel()
	return conn.Send(sendCtx, payload)
}

// Roles 当前存在订阅集合的角色（排序后）
func (m *Manager) Roles() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	roles := make([]string, 0, len(m.roles))
	for r := range m.roles {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

// Count 角色下的在线订阅数
func (m *Manager) Count(role string) int {
	rs := m.roleSet(role, false)
	if rs == nil {
		return 0
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.subs)
}

func encode(message any) ([]byte, error) {
	switch v := message.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal broadcast message: %w", err)
		}
		return b, nil
	}
}

func roleLabel(role string) string {
	if role == "" {
		return "all"
	}
	return role
}
