package callroom

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/leandro-lugaresi/hub"
	"go.uber.org/zap"

	"github.com/traPtitech/callsignal/event"
	"github.com/traPtitech/callsignal/service/ws"
	"github.com/traPtitech/callsignal/signaling"
)

// Relay 通話ルームチャンネルの中継サーバー
type Relay struct {
	manager  *Manager
	streamer *ws.Streamer
	logger   *zap.Logger
}

// NewRelay 通話ルームチャンネルの中継サーバーを生成します
func NewRelay(hub *hub.Hub, manager *Manager, logger *zap.Logger, maxMessageSize int64) *Relay {
	r := &Relay{
		manager: manager,
		logger:  logger.Named("callroom"),
	}
	r.streamer = ws.NewStreamer(hub, r, logger, ws.Options{
		Name:              "callroom.ws",
		ConnectedEvent:    event.RoomWSConnected,
		DisconnectedEvent: event.RoomWSDisconnected,
		MaxMessageSize:    maxMessageSize,
	})
	return r
}

// ServeHTTP http.Handlerインターフェイスの実装
func (r *Relay) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	r.streamer.ServeHTTP(rw, req)
}

// Close 全セッションを切断して停止します
func (r *Relay) Close() error {
	return r.streamer.Close()
}

// OnConnect implements ws.Handler interface.
func (r *Relay) OnConnect(s ws.Session) {
	_ = s.Send(&signaling.RoomConnected{RoomID: s.RoomID(), UserID: s.UserID()})
}

// OnMessage implements ws.Handler interface.
func (r *Relay) OnMessage(s ws.Session, data []byte) {
	m, err := signaling.DecodeRoom(data)
	if err != nil {
		r.sendError(s, err.Error())
		return
	}

	switch v := m.(type) {
	case *signaling.JoinCall:
		r.join(s)
	case *signaling.LeaveCall:
		r.leave(s)
	case *signaling.Offer:
		v.FromUserID = s.UserID()
		r.forward(s, v.ToUserID, v)
	case *signaling.Answer:
		v.FromUserID = s.UserID()
		r.forward(s, v.ToUserID, v)
	case *signaling.ICECandidate:
		v.FromUserID = s.UserID()
		r.forward(s, v.ToUserID, v)
	default:
		r.sendError(s, fmt.Sprintf("unexpected message type: %s", m.Type()))
	}
}

// OnDisconnect implements ws.Handler interface.
func (r *Relay) OnDisconnect(s ws.Session) {
	r.leave(s)
}

func (r *Relay) join(s ws.Session) {
	others, joined, err := r.manager.Join(s.RoomID(), JoinParams{
		UserID:     s.UserID(),
		UserName:   s.UserName(),
		SessionKey: s.Key(),
		Kind:       signaling.RoomKind(s.Query("kind")),
		Name:       s.Query("name"),
	})
	if err != nil {
		if errors.Is(err, ErrOccupied) {
			r.sendError(s, "you have already joined this room from another connection")
			return
		}
		r.logger.Error("failed to join room", zap.Error(err), zap.String("roomID", s.RoomID()))
		r.sendError(s, "internal error")
		return
	}

	// 参加者一覧を先に返してから既存参加者に通知する
	_ = s.Send(&signaling.JoinAck{RoomID: s.RoomID(), Participants: others})
	if !joined {
		return
	}
	r.logger.Debug("user joined",
		zap.String("roomID", s.RoomID()),
		zap.Stringer("userID", s.UserID()),
		zap.Int("others", len(others)))
	r.streamer.WriteMessage(
		&signaling.UserJoined{FromUserID: s.UserID(), UserName: s.UserName()},
		ws.And(r.targetMembers(s.RoomID()), ws.Not(ws.TargetUsers(s.UserID()))),
	)
}

func (r *Relay) leave(s ws.Session) {
	left, err := r.manager.Leave(s.RoomID(), s.UserID(), s.Key())
	if err != nil || !left {
		return
	}
	r.logger.Debug("user left",
		zap.String("roomID", s.RoomID()),
		zap.Stringer("userID", s.UserID()))
	r.streamer.WriteMessage(
		&signaling.UserLeft{FromUserID: s.UserID()},
		r.targetMembers(s.RoomID()),
	)
}

func (r *Relay) forward(s ws.Session, to signaling.UserID, m signaling.RoomMessage) {
	if !r.manager.IsJoined(s.RoomID(), s.UserID(), s.Key()) {
		r.sendError(s, "send join_call before signaling")
		return
	}
	if to == s.UserID() {
		r.sendError(s, "cannot send signaling to yourself")
		return
	}

	n := r.streamer.WriteMessage(m, ws.And(r.targetMembers(s.RoomID()), ws.TargetUsers(to)))
	if n == 0 {
		r.logger.Debug("signaling target is not in the room",
			zap.String("type", string(m.Type())),
			zap.String("roomID", s.RoomID()),
			zap.Stringer("from", s.UserID()),
			zap.Stringer("to", to))
		r.sendError(s, fmt.Sprintf("user %d is not in this room", to))
	}
}

// targetMembers ルームにjoin_call済みのセッションを対象にします
func (r *Relay) targetMembers(roomID string) ws.TargetFunc {
	return ws.And(ws.TargetRoom(roomID), func(s ws.Session) bool {
		return r.manager.IsJoined(roomID, s.UserID(), s.Key())
	})
}

func (r *Relay) sendError(s ws.Session, message string) {
	_ = s.Send(&signaling.Error{Message: message})
}
