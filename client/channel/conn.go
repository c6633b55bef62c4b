package channel

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	"github.com/traPtitech/callsignal/signaling"
)

const writeWait = 10 * time.Second

// Channel 中継サーバーとの単一のWebSocketチャンネル
type Channel struct {
	config    *Config
	url       string
	readyType signaling.MessageType
	decode    func([]byte) (signaling.Message, error)
	reconnect bool
	handlers  Handlers
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	conn         *websocket.Conn
	done         chan struct{}
	ready        bool
	closed       bool
	reconnecting bool
	pending      [][]byte

	writeMu sync.Mutex
}

func newChannel(config *Config, u string, readyType signaling.MessageType, decode func([]byte) (signaling.Message, error), reconnect bool, h Handlers, logger *zap.Logger) *Channel {
	ctx, cancel := context.WithCancel(context.Background())
	return &Channel{
		config:    config,
		url:       u,
		readyType: readyType,
		decode:    decode,
		reconnect: reconnect,
		handlers:  h,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// URL 接続先URLを返します。トークンは含まれません
func (ch *Channel) URL() string {
	return ch.url
}

// Ready 接続が完了しているかどうか
func (ch *Channel) Ready() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.ready
}

// Connect チャンネルを開き、接続完了通知を受信するまで待ちます
//
// 待ち時間はConfig.OpenTimeoutで制限され、失敗した場合は*ConnectionErrorを返します。
// 再接続するチャンネルではエラーを返した後もバックグラウンドで接続を試み続けます
func (ch *Channel) Connect(ctx context.Context) error {
	ch.mu.Lock()
	closed, connected := ch.closed, ch.conn != nil
	ch.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if connected {
		return nil
	}

	conn, err := ch.open(ctx)
	if err == nil {
		err = ch.attach(conn)
	}
	if err != nil && !errors.Is(err, ErrClosed) && ch.reconnect {
		ch.logger.Warn("failed to connect, retrying in background", zap.Error(err))
		ch.startReconnect()
	}
	return err
}

func (ch *Channel) open(ctx context.Context) (*websocket.Conn, error) {
	token, ok := ch.config.Token.GetAccessToken()
	if !ok {
		return nil, &ConnectionError{URL: ch.url, Err: ErrNoToken}
	}

	ctx, cancel := context.WithTimeout(ctx, ch.config.OpenTimeout)
	defer cancel()

	conn, _, err := ch.config.Dialer.DialContext(ctx, withToken(ch.url, token), nil)
	if err != nil {
		return nil, &ConnectionError{URL: ch.url, Err: err}
	}

	deadline, _ := ctx.Deadline()
	_ = conn.SetReadDeadline(deadline)
	_, data, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, &ConnectionError{URL: ch.url, Err: err}
	}
	m, err := ch.decode(data)
	if err != nil {
		_ = conn.Close()
		return nil, &ConnectionError{URL: ch.url, Err: err}
	}
	if m.Type() != ch.readyType {
		_ = conn.Close()
		if e, ok := m.(*signaling.Error); ok {
			return nil, &ConnectionError{URL: ch.url, Err: e}
		}
		return nil, &ConnectionError{URL: ch.url, Err: ErrUnexpectedMessage}
	}
	_ = conn.SetReadDeadline(time.Time{})
	return conn, nil
}

func (ch *Channel) attach(conn *websocket.Conn) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		_ = conn.Close()
		return ErrClosed
	}
	if ch.conn != nil {
		_ = conn.Close()
		return nil
	}

	// 送れなかったメッセージは次の接続まで残します
	for i, b := range ch.pending {
		if err := ch.write(conn, b); err != nil {
			ch.pending = ch.pending[i:]
			_ = conn.Close()
			return &ConnectionError{URL: ch.url, Err: err}
		}
	}
	ch.pending = nil
	ch.conn = conn
	ch.done = make(chan struct{})
	ch.ready = true
	ch.reconnecting = false

	go ch.readLoop(conn, ch.done)
	go ch.keepalive(conn, ch.done)
	return nil
}

// Send implements Sender interface.
func (ch *Channel) Send(m signaling.Message) error {
	b, err := signaling.Encode(m)
	if err != nil {
		return err
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return ErrClosed
	}
	if !ch.ready {
		if len(ch.pending) >= ch.config.MaxPending {
			return ErrBufferIsFull
		}
		ch.pending = append(ch.pending, b)
		return nil
	}
	return ch.write(ch.conn, b)
}

func (ch *Channel) write(conn *websocket.Conn, b []byte) error {
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (ch *Channel) readLoop(conn *websocket.Conn, done chan struct{}) {
	if ch.handlers.OnReady != nil {
		ch.handlers.OnReady()
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			ch.disconnected(conn, done, err)
			return
		}
		m, err := ch.decode(data)
		if err != nil {
			ch.logger.Warn("failed to decode message", zap.Error(err))
			continue
		}
		if ch.handlers.OnMessage != nil {
			ch.handlers.OnMessage(m)
		}
	}
}

func (ch *Channel) keepalive(conn *websocket.Conn, done chan struct{}) {
	t := jitterbug.New(ch.config.PingPeriod, &jitterbug.Norm{Stdev: ch.config.PingPeriod / 10})
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			ch.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			ch.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (ch *Channel) disconnected(conn *websocket.Conn, done chan struct{}, cause error) {
	ch.mu.Lock()
	if ch.conn != conn {
		ch.mu.Unlock()
		return
	}
	ch.conn = nil
	ch.ready = false
	close(done)
	closed := ch.closed
	ch.mu.Unlock()

	_ = conn.Close()
	if closed {
		return
	}

	ch.logger.Info("channel disconnected", zap.Error(cause))
	if ch.handlers.OnClose != nil {
		ch.handlers.OnClose(&ConnectionError{URL: ch.url, Err: cause})
	}
	if ch.reconnect {
		ch.startReconnect()
	}
}

// startReconnect 再接続ループが動いていなければ開始します
func (ch *Channel) startReconnect() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed || ch.reconnecting {
		return
	}
	ch.reconnecting = true
	go ch.reconnectLoop()
}

// reconnectLoop 接続できるかCloseされるまで再接続を試みます
//
// reconnectingはattachが接続と同時に下ろします
func (ch *Channel) reconnectLoop() {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = ch.config.ReconnectDelay
	b.MaxInterval = ch.config.MaxReconnectDelay
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0.2
	b.Reset()

	for {
		wait := b.NextBackOff()
		t := time.NewTimer(wait)
		select {
		case <-ch.ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}

		conn, err := ch.open(ch.ctx)
		if err != nil {
			ch.logger.Warn("failed to reconnect", zap.Error(err))
			continue
		}
		if err := ch.attach(conn); err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			ch.logger.Warn("failed to reconnect", zap.Error(err))
			continue
		}
		ch.logger.Info("channel reconnected")
		return
	}
}

// Close implements Conn interface.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return nil
	}
	ch.closed = true
	conn, done := ch.conn, ch.done
	ch.conn = nil
	ch.ready = false
	ch.pending = nil
	if done != nil && conn != nil {
		close(done)
	}
	ch.mu.Unlock()

	ch.cancel()
	if conn == nil {
		return nil
	}
	ch.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	ch.writeMu.Unlock()
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func withToken(u, token string) string {
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "token=" + url.QueryEscape(token)
}
