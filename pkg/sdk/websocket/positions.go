// Package websocket 提供 indexer 仓位推送流客户端
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var wsLog = logrus.WithField("module", "position_stream")

// PositionChangeHandler 仓位变更事件处理器。
// 推送只是刷新刺激：消费方（风险监控）收到后自行向 indexer 拉全量快照，
// 推送内容本身不用于增量合并。
type PositionChangeHandler func(owner string)

// positionEvent indexer 推送的仓位变更消息
type positionEvent struct {
	Type  string `json:"type"` // "position_change"
	Owner string `json:"owner"`
}

// PositionStream 仓位变更 WebSocket 客户端（可选组件，断开只降级为纯轮询）
type PositionStream struct {
	url     string
	owner   string
	handler PositionChangeHandler

	mu      sync.Mutex
	conn    *websocket.Conn
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// NewPositionStream 创建仓位推送流客户端
func NewPositionStream(url, owner string, handler PositionChangeHandler) *PositionStream {
	return &PositionStream{
		url:     url,
		owner:   owner,
		handler: handler,
	}
}

// Start 连接并开始监听。已在运行时返回错误。
func (s *PositionStream) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("position stream 已在运行")
	}
	s.running = true
	streamCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.run(streamCtx)
	return nil
}

// Stop 关闭连接。重复调用安全。
func (s *PositionStream) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	conn := s.conn
	done := s.doneCh
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
}

// run 连接 + 读取循环，断线指数退避重连
func (s *PositionStream) run(ctx context.Context) {
	defer close(s.doneCh)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.connectAndRead(ctx); err != nil {
			wsLog.Warnf("⚠️ position stream 断开: %v, %s 后重连", err, backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *PositionStream) connectAndRead(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	// 订阅本地址的仓位变更
	sub := map[string]string{"type": "subscribe", "channel": "positions", "owner": s.owner}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	wsLog.Infof("position stream 已连接: owner=%s", s.owner)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ev positionEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			wsLog.Debugf("忽略无法解析的消息: %v", err)
			continue
		}
		if ev.Type == "position_change" && s.handler != nil {
			s.handler(ev.Owner)
		}
	}
}
