package ws

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/leandro-lugaresi/hub"
	"go.uber.org/zap"

	"github.com/traPtitech/callsignal/router/extension/ctxkey"
	"github.com/traPtitech/callsignal/signaling"
	"github.com/traPtitech/callsignal/utils/random"
)

var (
	// ErrAlreadyClosed 既に閉じられています
	ErrAlreadyClosed = errors.New("already closed")
	// ErrBufferIsFull 送信バッファが溢れました
	ErrBufferIsFull = errors.New("buffer is full")
)

// Options ストリーマー設定
type Options struct {
	// Name ロガー名
	Name string
	// ConnectedEvent 接続時にhubへ発行するトピック
	ConnectedEvent string
	// DisconnectedEvent 切断時にhubへ発行するトピック
	DisconnectedEvent string
	// MaxMessageSize 受信メッセージの最大サイズ
	MaxMessageSize int64
}

// Streamer WebSocketストリーマー
type Streamer struct {
	hub      *hub.Hub
	handler  Handler
	opts     Options
	logger   *zap.Logger
	sessions map[*session]struct{}
	closed   bool
	mu       sync.RWMutex
}

// NewStreamer WebSocketストリーマーを生成します
func NewStreamer(hub *hub.Hub, handler Handler, logger *zap.Logger, opts Options) *Streamer {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = DefaultMaxMessageSize
	}
	if len(opts.Name) == 0 {
		opts.Name = "ws"
	}
	return &Streamer{
		hub:      hub,
		handler:  handler,
		opts:     opts,
		logger:   logger.Named(opts.Name),
		sessions: make(map[*session]struct{}),
		closed:   false,
	}
}

func (s *Streamer) register(session *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session] = struct{}{}
}

func (s *Streamer) unregister(session *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, session)
}

// IterateSessions 全セッションをイテレートします
func (s *Streamer) IterateSessions(f func(session Session)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for session := range s.sessions {
		f(session)
	}
}

// SessionCount 接続中のセッション数を返します
func (s *Streamer) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// WriteMessage 対象のセッションにメッセージを書き込み、書き込めたセッション数を返します
func (s *Streamer) WriteMessage(m signaling.Message, targetFunc TargetFunc) int {
	data, err := signaling.Encode(m)
	if err != nil {
		s.logger.Error("failed to encode message", zap.Error(err), zap.String("type", string(m.Type())))
		return 0
	}
	msg := &rawMessage{t: websocket.TextMessage, data: data}

	delivered := 0
	s.mu.RLock()
	for session := range s.sessions {
		if !targetFunc(session) {
			continue
		}
		if err := session.writeMessage(msg); err != nil {
			if err == ErrBufferIsFull {
				s.logger.Warn("Discard a message because the session's buffer is full.",
					zap.String("type", string(m.Type())),
					zap.Stringer("userID", session.userID),
					zap.String("roomID", session.roomID))
			}
			continue
		}
		delivered++
	}
	s.mu.RUnlock()
	return delivered
}

// ServeHTTP http.Handlerインターフェイスの実装
//
// リクエストのcontextにはctxkey.UserIDとctxkey.UserNameが必須です
func (s *Streamer) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	if s.closed {
		http.Error(rw, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		s.mu.RUnlock()
		return
	}
	s.mu.RUnlock()

	userID, ok := r.Context().Value(ctxkey.UserID).(signaling.UserID)
	if !ok {
		http.Error(rw, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	userName, _ := r.Context().Value(ctxkey.UserName).(string)
	roomID, _ := r.Context().Value(ctxkey.RoomID).(string)

	conn, err := upgrader.Upgrade(rw, r, rw.Header())
	if err != nil {
		return
	}

	session := &session{
		key:      random.AlphaNumeric(20),
		userID:   userID,
		userName: userName,
		roomID:   roomID,
		req:      r,
		conn:     conn,
		open:     true,
		streamer: s,
		send:     make(chan *rawMessage, messageBufferSize),
	}

	s.register(session)
	s.publish(s.opts.ConnectedEvent, session)

	go session.writeLoop()
	s.handler.OnConnect(session)
	session.readLoop()

	s.unregister(session)
	s.handler.OnDisconnect(session)
	s.publish(s.opts.DisconnectedEvent, session)
	session.close()
}

func (s *Streamer) publish(topic string, session *session) {
	if len(topic) == 0 {
		return
	}
	fields := hub.Fields{
		"user_id": session.userID,
		"req":     session.req,
	}
	if len(session.roomID) > 0 {
		fields["room_id"] = session.roomID
	}
	s.hub.Publish(hub.Message{Name: topic, Fields: fields})
}

// Close ストリーマーを停止します
func (s *Streamer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrAlreadyClosed
	}
	s.closed = true

	m := &rawMessage{
		t:    websocket.CloseMessage,
		data: websocket.FormatCloseMessage(websocket.CloseServiceRestart, "Server is stopping..."),
	}
	for session := range s.sessions {
		_ = session.writeMessage(m)
		session.close()
	}
	s.sessions = make(map[*session]struct{})
	return nil
}
