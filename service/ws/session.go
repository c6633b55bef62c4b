package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/traPtitech/callsignal/signaling"
)

// Session WebSocketセッション
type Session interface {
	// Key このセッションのキー
	Key() string
	// UserID このセッションのUserID
	UserID() signaling.UserID
	// UserName このセッションのユーザー表示名
	UserName() string
	// RoomID このセッションの通話ルームID。プレゼンスチャンネルの場合は空
	RoomID() string
	// Query 接続時のURLクエリパラメータを取得します
	Query(key string) string
	// Send このセッションにメッセージを送信します
	Send(m signaling.Message) error
	// Close このセッションを閉じます
	Close()
}

type session struct {
	key      string
	userID   signaling.UserID
	userName string
	roomID   string
	sync.RWMutex

	req      *http.Request
	conn     *websocket.Conn
	open     bool
	streamer *Streamer
	send     chan *rawMessage
}

func (s *session) readLoop() {
	s.conn.SetReadLimit(s.streamer.opts.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		t, m, err := s.conn.ReadMessage()
		if err != nil {
			break
		}

		if t == websocket.TextMessage {
			s.streamer.handler.OnMessage(s, m)
		}

		if t == websocket.BinaryMessage {
			// unsupported
			_ = s.writeMessage(&rawMessage{t: websocket.CloseMessage, data: websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "binary message is not supported.")})
			break
		}
	}
}

func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				return
			}

			if err := s.write(msg.t, msg.data); err != nil {
				return
			}

			if msg.t == websocket.CloseMessage {
				return
			}

		case <-ticker.C:
			_ = s.write(websocket.PingMessage, []byte{})
		}
	}
}

func (s *session) writeMessage(msg *rawMessage) error {
	s.RLock()
	defer s.RUnlock()
	if !s.open {
		return ErrAlreadyClosed
	}

	select {
	case s.send <- msg:
	default:
		return ErrBufferIsFull
	}
	return nil
}

func (s *session) write(messageType int, data []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

func (s *session) close() {
	s.Lock()
	defer s.Unlock()
	if s.open {
		s.open = false
		s.conn.Close()
		close(s.send)
	}
}

// Key implements Session interface.
func (s *session) Key() string {
	return s.key
}

// UserID implements Session interface.
func (s *session) UserID() signaling.UserID {
	return s.userID
}

// UserName implements Session interface.
func (s *session) UserName() string {
	return s.userName
}

// RoomID implements Session interface.
func (s *session) RoomID() string {
	return s.roomID
}

// Query implements Session interface.
func (s *session) Query(key string) string {
	return s.req.URL.Query().Get(key)
}

// Send implements Session interface.
func (s *session) Send(m signaling.Message) error {
	data, err := signaling.Encode(m)
	if err != nil {
		return err
	}
	return s.writeMessage(&rawMessage{t: websocket.TextMessage, data: data})
}

// Close implements Session interface.
func (s *session) Close() {
	_ = s.writeMessage(&rawMessage{
		t:    websocket.CloseMessage,
		data: websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	})
}
