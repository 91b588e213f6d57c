package broadcast

import (
	"context"
	"sync/atomic"
)

// Conn 订阅者底层连接（WebSocket 或测试替身）
// Send 必须遵守 ctx 的 deadline；同一连接可能注册在多个角色下，实现需保证并发写安全
type Conn interface {
	Send(ctx context.Context, msg []byte) error
	Close() error
}

// State 订阅状态：Connecting -> Open -> Closed
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Subscription 一个连接在某个角色下的注册
// 同一 (conn, role) 只存在一个 Subscription
type Subscription struct {
	conn  Conn
	role  string
	state atomic.Int32
}

func newSubscription(conn Conn, role string) *Subscription {
	s := &Subscription{conn: conn, role: role}
	s.state.Store(int32(StateConnecting))
	return s
}

// Role 注册的角色
func (s *Subscription) Role() string { return s.role }

// State 当前状态
func (s *Subscription) State() State { return State(s.state.Load()) }

// open Connecting -> Open
func (s *Subscription) open() bool {
	return s.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen))
}

// close 任意状态 -> Closed；返回是否由本次调用完成转换
func (s *Subscription) close() bool {
	return State(s.state.Swap(int32(StateClosed))) != StateClosed
}
