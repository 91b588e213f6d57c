package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	maxIncomingMessageSize = 4096
	pongWaitFactor         = 2
)

// WSConn gorilla/websocket 连接适配（写操作串行化）
type WSConn struct {
	conn *websocket.Conn

	mu        sync.Mutex
	closeOnce sync.Once
}

// NewWSConn 包装已升级的 WebSocket 连接
func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn}
}

var _ Conn = (*WSConn)(nil)

// Send 发送文本帧，超时时间取 ctx 的 deadline
func (c *WSConn) Send(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultWriteTimeout)
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Ping 发送心跳
func (c *WSConn) Ping(timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout))
}

// Close 关闭底层连接，可重复调用
func (c *WSConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

// ServeOptions WebSocket 会话参数
type ServeOptions struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
}

// Serve 在 role 下注册连接并阻塞到连接断开
// 客户端发来的消息只用于保活，不做处理
func (m *Manager) Serve(ctx context.Context, ws *websocket.Conn, role string, opts ServeOptions) error {
	conn := NewWSConn(ws)
	defer conn.Close()

	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = m.writeTimeout
	}

	sub, err := m.Subscribe(ctx, conn, role)
	if err != nil {
		return err
	}
	defer m.Unsubscribe(sub)

	pongWait := opts.PingInterval * pongWaitFactor
	ws.SetReadLimit(maxIncomingMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := conn.Ping(opts.WriteTimeout); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Debug("WebSocket read error", zap.String("role", role), zap.Error(err))
			}
			return nil
		}
		// 收到任意消息视为连接存活
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	}
}
