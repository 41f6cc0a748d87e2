package stream

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quotebot/internal/domain/model"
)

// State 会话状态
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateReceiving
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateReceiving:
		return "receiving"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	ErrSessionClosed  = errors.New("stream session closed")
	ErrAlreadyRunning = errors.New("stream session already running")
)

const DefaultURL = "wss://streamer.finance.yahoo.com/"

const deliverRetry = 5 * time.Millisecond

type Options struct {
	URL     string
	Symbols []string

	Dialer       *websocket.Dialer
	DialTimeout  time.Duration // 默认 10s
	ReadTimeout  time.Duration // 默认 60s，收到任何消息或 pong 后顺延
	PingInterval time.Duration // 默认 25s
	WriteTimeout time.Duration // 默认 5s

	BackoffInitial time.Duration // 默认 500ms
	BackoffMax     time.Duration // 默认 10s
	BackoffJitter  float64       // 0~1，默认 0.5

	Buffer int // Updates 缓冲，默认 1024

	// OnState 状态变化回调，在状态锁外调用
	OnState func(from, to State)
}

func (o *Options) applyDefaults() {
	if strings.TrimSpace(o.URL) == "" {
		o.URL = DefaultURL
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 500 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 10 * time.Second
	}
	if o.BackoffJitter <= 0 || o.BackoffJitter > 1 {
		o.BackoffJitter = 0.5
	}
	if o.Buffer <= 0 {
		o.Buffer = 1024
	}
}

// control 客户端控制消息
type control struct {
	Subscribe   []string `json:"subscribe,omitempty"`
	Unsubscribe []string `json:"unsubscribe,omitempty"`
}

// Session 推送行情会话：断线自动重连，重连后重放完整订阅集合
type Session struct {
	opts Options

	mu      sync.Mutex // 保护 symbols、conn、state 以及数据帧写入
	symbols []string
	conn    *websocket.Conn
	state   State

	// sendMu 串行化 updates 写入与 done 关闭，Shutdown 之后不会再有帧投递
	sendMu  sync.Mutex
	updates chan *model.Quote
	done    chan struct{}

	closeOnce sync.Once
	running   atomic.Bool
}

func NewSession(opts Options) *Session {
	opts.applyDefaults()
	s := &Session{
		opts:    opts,
		state:   StateDisconnected,
		updates: make(chan *model.Quote, opts.Buffer),
		done:    make(chan struct{}),
	}
	s.symbols = mergeSymbols(nil, opts.Symbols)
	return s
}

// Updates 报价增量，按接收顺序投递；Run 退出时关闭
func (s *Session) Updates() <-chan *model.Quote { return s.updates }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Symbols 当前订阅集合的副本
func (s *Session) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.symbols)
}

// Run 连接并持续接收，直到 ctx 取消或 Shutdown
// 传输错误只触发重连，不会返回
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(s.updates)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-runCtx.Done():
		}
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opts.BackoffInitial
	bo.MaxInterval = s.opts.BackoffMax
	bo.RandomizationFactor = s.opts.BackoffJitter
	bo.Multiplier = 2
	bo.Reset()

	for {
		if s.stopped(runCtx) {
			return s.exit(ctx)
		}

		s.setState(StateConnecting)
		log.Info().Str("url", s.opts.URL).Msg("stream connecting")

		conn, err := s.connect(runCtx)
		if err != nil {
			if s.stopped(runCtx) {
				return s.exit(ctx)
			}
			wait := bo.NextBackOff()
			log.Error().Err(err).Dur("backoff", wait).Msg("stream dial failed")
			s.setState(StateReconnecting)
			if !s.sleep(runCtx, wait) {
				return s.exit(ctx)
			}
			continue
		}

		log.Info().Strs("symbols", s.Symbols()).Msg("stream subscribed")

		connectedAt := time.Now()
		received, err := s.readLoop(runCtx, conn)
		s.dropConn(conn)

		if s.stopped(runCtx) {
			return s.exit(ctx)
		}

		// 连接收到过数据或保持足够久才重置退避，接入即断的服务端按指数退避重连
		if received || time.Since(connectedAt) >= s.opts.BackoffMax {
			bo.Reset()
		}

		wait := bo.NextBackOff()
		log.Warn().Err(err).Dur("backoff", wait).Msg("stream disconnected, reconnecting")
		s.setState(StateReconnecting)
		if !s.sleep(runCtx, wait) {
			return s.exit(ctx)
		}
	}
}

// Subscribe 加入订阅集合；已连接时立即发送完整订阅消息
// 未连接时只修改本地集合，下次连接时统一发送
func (s *Session) Subscribe(symbols ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return ErrSessionClosed
	}
	next := mergeSymbols(s.symbols, symbols)
	if len(next) == len(s.symbols) {
		return nil
	}
	s.symbols = next

	if !s.connectedLocked() {
		return nil
	}
	return s.writeLocked(control{Subscribe: slices.Clone(s.symbols)})
}

// Unsubscribe 从订阅集合移除；已连接时发送剩余集合和被移除的代码
func (s *Session) Unsubscribe(symbols ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return ErrSessionClosed
	}

	var removed []string
	for _, sym := range cleanSymbols(symbols) {
		if i := slices.Index(s.symbols, sym); i >= 0 {
			s.symbols = slices.Delete(s.symbols, i, i+1)
			removed = append(removed, sym)
		}
	}
	if len(removed) == 0 || !s.connectedLocked() {
		return nil
	}
	return s.writeLocked(control{Subscribe: slices.Clone(s.symbols), Unsubscribe: removed})
}

// Shutdown 关闭连接并进入 Closed，可重复调用
func (s *Session) Shutdown() error {
	s.closeOnce.Do(func() {
		s.sendMu.Lock()
		close(s.done)
		s.sendMu.Unlock()

		s.mu.Lock()
		from, changed := s.swapStateLocked(StateClosed)
		conn := s.conn
		s.conn = nil
		s.mu.Unlock()

		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
				time.Now().Add(s.opts.WriteTimeout))
			_ = conn.Close()
		}
		if changed {
			s.notify(from, StateClosed)
		}
		log.Info().Msg("stream session closed")
	})
	return nil
}

func (s *Session) connect(ctx context.Context) (*websocket.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, s.opts.DialTimeout)
	conn, _, err := s.opts.Dialer.DialContext(dctx, s.opts.URL, nil)
	cancel()
	if err != nil {
		return nil, err
	}

	// 订阅消息与状态切换在同一临界区内完成，
	// 避免 Subscribe 在两者之间插入一条重复消息
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		_ = conn.Close()
		return nil, ErrSessionClosed
	}
	s.conn = conn
	if len(s.symbols) > 0 {
		if err := s.writeLocked(control{Subscribe: slices.Clone(s.symbols)}); err != nil {
			s.conn = nil
			s.mu.Unlock()
			_ = conn.Close()
			return nil, fmt.Errorf("send subscribe: %w", err)
		}
	}
	from, changed := s.swapStateLocked(StateSubscribed)
	s.mu.Unlock()

	if changed {
		s.notify(from, StateSubscribed)
	}
	return conn, nil
}

// readLoop 返回连接期间是否收到过消息
func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn) (bool, error) {
	_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.opts.PingInterval)
	defer pingTicker.Stop()

	var received atomic.Bool
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
			if !received.Swap(true) {
				s.setState(StateReceiving)
			}
			s.handleMessage(ctx, b)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			// 关闭连接让读协程退出，等它结束后才能关闭 updates
			_ = conn.Close()
			<-errCh
			return received.Load(), ctx.Err()
		case err := <-errCh:
			return received.Load(), err
		case <-pingTicker.C:
			_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(s.opts.WriteTimeout))
		}
	}
}

func (s *Session) handleMessage(ctx context.Context, b []byte) {
	frame, err := DecodeMessage(b)
	if err != nil {
		log.Warn().Err(err).Int("bytes", len(b)).Msg("stream frame dropped")
		return
	}
	if frame.QuoteType == model.QuoteTypeHeartbeat {
		return
	}
	s.deliver(ctx, frame.Quote())
}

// deliver 只在 sendMu 内做非阻塞写入，缓冲满时等待消费方腾出空间后重试
func (s *Session) deliver(ctx context.Context, q *model.Quote) {
	var retry *time.Ticker
	for {
		if sent, closed := s.trySend(q); sent || closed {
			break
		}
		if retry == nil {
			retry = time.NewTicker(deliverRetry)
			defer retry.Stop()
		}
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-retry.C:
		}
	}
}

func (s *Session) trySend(q *model.Quote) (sent, closed bool) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	select {
	case <-s.done:
		return false, true
	default:
	}
	select {
	case s.updates <- q:
		return true, false
	default:
		return false, false
	}
}

func (s *Session) dropConn(conn *websocket.Conn) {
	_ = conn.Close()
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
}

func (s *Session) exit(parent context.Context) error {
	s.setState(StateClosed)
	select {
	case <-s.done:
		return nil
	default:
	}
	return parent.Err()
}

func (s *Session) stopped(ctx context.Context) bool {
	select {
	case <-s.done:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Session) connectedLocked() bool {
	return s.conn != nil && (s.state == StateSubscribed || s.state == StateReceiving)
}

func (s *Session) writeLocked(msg control) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	return s.conn.WriteJSON(msg)
}

func (s *Session) setState(to State) {
	s.mu.Lock()
	from, changed := s.swapStateLocked(to)
	s.mu.Unlock()
	if changed {
		s.notify(from, to)
	}
}

// swapStateLocked Closed 为终态，之后的切换全部忽略
func (s *Session) swapStateLocked(to State) (State, bool) {
	from := s.state
	if from == to || from == StateClosed {
		return from, false
	}
	s.state = to
	return from, true
}

func (s *Session) notify(from, to State) {
	log.Debug().Stringer("from", from).Stringer("to", to).Msg("stream state")
	if s.opts.OnState != nil {
		s.opts.OnState(from, to)
	}
}

func cleanSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mergeSymbols(base, add []string) []string {
	out := slices.Clone(base)
	for _, s := range cleanSymbols(add) {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
