package call

import (
	"sync"

	"github.com/traPtitech/callsignal/client/channel"
	"github.com/traPtitech/callsignal/client/media"
	"github.com/traPtitech/callsignal/client/negotiation"
	"github.com/traPtitech/callsignal/signaling"
)

// roomSession 1つの通話ルームに対する接続とその資源
type roomSession struct {
	roomID string
	engine *negotiation.Engine

	mu     sync.Mutex
	conn   channel.Conn
	stream *media.Stream
}

// Send implements channel.Sender interface.
func (s *roomSession) Send(m signaling.Message) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return channel.ErrClosed
	}
	return conn.Send(m)
}

func (s *roomSession) setConn(conn channel.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
}

func (s *roomSession) setStream(stream *media.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream = stream
}

// release ローカルトラックを止め、全ピア接続と通話ルームチャンネルを閉じます
func (s *roomSession) release(leave *signaling.LeaveCall) {
	s.mu.Lock()
	conn, stream := s.conn, s.stream
	s.conn, s.stream = nil, nil
	s.mu.Unlock()

	if stream != nil {
		stream.Stop()
	}
	s.engine.Close()
	if conn != nil {
		if leave != nil {
			_ = conn.Send(leave)
		}
		_ = conn.Close()
	}
}
