package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"drag-trade-go/order"
)

// StreamHandlers 用户数据流的业务回调。
// 流是 at-most-once 的：每次（重）连成功都会触发 OnReconnect，
// 订阅方应在其中重新拉取开放订单，弥补断线期间丢失的事件。
type StreamHandlers struct {
	OnOrderEvent     func(order.StreamEvent)
	OnBalanceChanged func()
	OnReconnect      func()
	OnFatalError     func(error)
}

// UserStream 管理用户数据流 WebSocket：listenKey 申请与续期、
// 断线退避重连、消息分发。每个会话一条长连接。
type UserStream struct {
	WSEndpoint string
	lkClient   *ListenKeyClient
	handlers   StreamHandlers
	log        *zap.Logger

	Dialer       *websocket.Dialer
	maxRetries   int
	retryBackoff time.Duration

	mu        sync.Mutex
	listenKey string
	conn      *websocket.Conn
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewUserStream 创建用户数据流客户端。log 可为 nil。
func NewUserStream(wsEndpoint string, lk *ListenKeyClient, handlers StreamHandlers, log *zap.Logger) *UserStream {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserStream{
		WSEndpoint:   wsEndpoint,
		lkClient:     lk,
		handlers:     handlers,
		log:          log,
		Dialer:       websocket.DefaultDialer,
		maxRetries:   5,
		retryBackoff: 3 * time.Second,
	}
}

// Start 申请 listenKey 并启动后台读取与续期。
func (s *UserStream) Start(ctx context.Context) error {
	key, err := s.lkClient.NewListenKey(ctx)
	if err != nil {
		return fmt.Errorf("new listenKey: %w", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.listenKey = key
	s.ctx = runCtx
	s.cancel = cancel
	s.mu.Unlock()

	s.log.Info("user stream starting", zap.String("endpoint", s.WSEndpoint))
	go s.runKeepalive(runCtx)
	go s.runWS(runCtx)
	return nil
}

// Stop 关闭连接并停止后台循环。
func (s *UserStream) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	key := s.listenKey
	s.mu.Unlock()

	if key != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.lkClient.Close(ctx, key)
	}
}

// runKeepalive 每 25 分钟续期 listenKey（有效期 60 分钟）。
func (s *UserStream) runKeepalive(ctx context.Context) {
	ticker := time.NewTicker(25 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			key := s.listenKey
			s.mu.Unlock()
			if err := s.lkClient.KeepAlive(ctx, key); err != nil {
				s.log.Warn("listenKey keepalive failed", zap.Error(err))
			}
		}
	}
}

// runWS 连接并读取消息，断线后退避重连；连续失败超过上限视为致命。
func (s *UserStream) runWS(ctx context.Context) {
	retries := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.mu.Lock()
		wsURL := fmt.Sprintf("%s/ws/%s", s.WSEndpoint, s.listenKey)
		s.mu.Unlock()

		conn, _, err := s.Dialer.Dial(wsURL, nil)
		if err != nil {
			retries++
			if retries > s.maxRetries {
				fatal := fmt.Errorf("user stream reconnect failed after %d retries: %w", s.maxRetries, err)
				s.log.Error("user stream fatal", zap.Error(fatal))
				if s.handlers.OnFatalError != nil {
					s.handlers.OnFatalError(fatal)
				}
				return
			}
			backoff := time.Duration(retries) * s.retryBackoff
			s.log.Warn("user stream dial failed",
				zap.Int("attempt", retries), zap.Int("max", s.maxRetries),
				zap.Duration("backoff", backoff), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}
		retries = 0

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		s.log.Info("user stream connected")

		// 连接（含重连）成功：先让订阅方对账再消费实时事件
		if s.handlers.OnReconnect != nil {
			s.handlers.OnReconnect()
		}

		s.readLoop(ctx, conn)

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}
}

func (s *UserStream) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.log.Warn("user stream read error", zap.Error(err))
			return
		}
		s.dispatch(raw)
	}
}

func (s *UserStream) dispatch(raw []byte) {
	msg, err := ParseUserStreamMessage(raw)
	if err != nil {
		s.log.Warn("user stream parse error", zap.Error(err))
		return
	}
	if msg.OrderEvent != nil && s.handlers.OnOrderEvent != nil {
		s.handlers.OnOrderEvent(*msg.OrderEvent)
	}
	if msg.BalanceChanged && s.handlers.OnBalanceChanged != nil {
		s.handlers.OnBalanceChanged()
	}
}
