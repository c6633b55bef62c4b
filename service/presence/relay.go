package presence

import (
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/leandro-lugaresi/hub"
	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	"github.com/traPtitech/callsignal/event"
	"github.com/traPtitech/callsignal/service/ws"
	"github.com/traPtitech/callsignal/signaling"
)

const (
	// DefaultInvitationTTL 応答待ちの招待が失効するまでの時間
	DefaultInvitationTTL = 60 * time.Second

	reasonCancelled  = "cancelled"
	reasonCallerLeft = "caller_offline"
	reasonCalleeLeft = "callee_offline"
	reasonRoomClosed = "room_closed"
	reasonExpired    = "expired"
)

// Config プレゼンスチャンネル設定
type Config struct {
	// InvitationTTL 応答待ちの招待が失効するまでの時間
	InvitationTTL time.Duration
	// MaxMessageSize 受信メッセージの最大サイズ
	MaxMessageSize int64
}

// Relay プレゼンスチャンネルの中継サーバー
type Relay struct {
	hub         *hub.Hub
	streamer    *ws.Streamer
	invitations *invitations
	ttl         time.Duration
	logger      *zap.Logger

	sub       hub.Subscription
	closer    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewRelay プレゼンスチャンネルの中継サーバーを生成し起動します
func NewRelay(h *hub.Hub, logger *zap.Logger, config Config) *Relay {
	if config.InvitationTTL <= 0 {
		config.InvitationTTL = DefaultInvitationTTL
	}
	r := &Relay{
		hub:         h,
		invitations: newInvitations(),
		ttl:         config.InvitationTTL,
		logger:      logger.Named("presence"),
		sub:         h.Subscribe(16, event.RoomClosed, event.PresenceDisconnected),
		closer:      make(chan struct{}),
	}
	r.streamer = ws.NewStreamer(h, r, logger, ws.Options{
		Name:              "presence.ws",
		ConnectedEvent:    event.PresenceConnected,
		DisconnectedEvent: event.PresenceDisconnected,
		MaxMessageSize:    config.MaxMessageSize,
	})

	r.wg.Add(2)
	go r.eventLoop()
	go r.sweepLoop()
	return r
}

// ServeHTTP http.Handlerインターフェイスの実装
func (r *Relay) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	r.streamer.ServeHTTP(rw, req)
}

// PendingInvitations 応答待ちの招待を送信日時順で返します
func (r *Relay) PendingInvitations() []Invitation {
	list := r.invitations.list()
	slices.SortFunc(list, func(a, b Invitation) int {
		return a.SentAt.Compare(b.SentAt)
	})
	return list
}

// Close 全セッションを切断して停止します
func (r *Relay) Close() error {
	r.closeOnce.Do(func() {
		close(r.closer)
		r.hub.Unsubscribe(r.sub)
	})
	r.wg.Wait()
	return r.streamer.Close()
}

// OnConnect implements ws.Handler interface.
func (r *Relay) OnConnect(s ws.Session) {
	_ = s.Send(&signaling.PresenceConnected{UserID: s.UserID()})
}

// OnMessage implements ws.Handler interface.
func (r *Relay) OnMessage(s ws.Session, data []byte) {
	m, err := signaling.DecodePresence(data)
	if err != nil {
		r.sendError(s, err.Error())
		return
	}

	switch v := m.(type) {
	case *signaling.CallInvitation:
		r.invite(s, v)
	case *signaling.CallResponse:
		r.respond(s, v)
	case *signaling.CallCancelled:
		r.cancel(s, v)
	default:
		r.sendError(s, fmt.Sprintf("unexpected message type: %s", m.Type()))
	}
}

// OnDisconnect implements ws.Handler interface.
func (r *Relay) OnDisconnect(_ ws.Session) {}

func (r *Relay) invite(s ws.Session, m *signaling.CallInvitation) {
	if m.ToUserID == s.UserID() {
		r.logger.Warn("ignored invitation", zap.Error(&InvalidInvitationError{
			RoomID: m.RoomID,
			From:   s.UserID(),
			To:     m.ToUserID,
			Reason: "self invitation",
		}))
		return
	}
	if m.ToUserID <= 0 {
		r.sendError(s, "to_user_id is required")
		return
	}
	if err := signaling.ValidateRoomID(m.RoomID); err != nil {
		r.sendError(s, fmt.Sprintf("invalid room_id: %v", err))
		return
	}
	if !m.CallType.Valid() {
		r.sendError(s, fmt.Sprintf("invalid call_type: %s", m.CallType))
		return
	}

	m.FromUserID = s.UserID()
	m.FromUserName = s.UserName()
	if n := r.streamer.WriteMessage(m, ws.TargetUsers(m.ToUserID)); n == 0 {
		r.sendError(s, fmt.Sprintf("user %d is offline", m.ToUserID))
		return
	}

	r.invitations.put(&Invitation{
		RoomID:   m.RoomID,
		From:     m.FromUserID,
		To:       m.ToUserID,
		CallType: m.CallType,
		SentAt:   time.Now(),
	})
	r.hub.Publish(hub.Message{
		Name: event.CallInvitationSent,
		Fields: hub.Fields{
			"room_id":      m.RoomID,
			"from_user_id": m.FromUserID,
			"to_user_id":   m.ToUserID,
			"call_type":    m.CallType,
		},
	})
}

func (r *Relay) respond(s ws.Session, m *signaling.CallResponse) {
	inv, ok := r.invitations.take(m.RoomID, m.ToUserID, s.UserID())
	if !ok {
		r.logger.Warn("ignored call response", zap.Error(&InvalidInvitationError{
			RoomID: m.RoomID,
			From:   m.ToUserID,
			To:     s.UserID(),
			Reason: "no pending invitation",
		}))
		return
	}

	m.FromUserID = s.UserID()
	m.UserName = s.UserName()
	r.streamer.WriteMessage(m, ws.TargetUsers(inv.From))
	r.hub.Publish(hub.Message{
		Name: event.CallInvitationResponded,
		Fields: hub.Fields{
			"room_id":      inv.RoomID,
			"from_user_id": inv.From,
			"to_user_id":   inv.To,
			"accepted":     m.Accepted,
		},
	})
}

func (r *Relay) cancel(s ws.Session, m *signaling.CallCancelled) {
	inv, ok := r.invitations.take(m.RoomID, s.UserID(), m.ToUserID)
	if !ok {
		r.logger.Warn("ignored call cancellation", zap.Error(&InvalidInvitationError{
			RoomID: m.RoomID,
			From:   s.UserID(),
			To:     m.ToUserID,
			Reason: "no pending invitation",
		}))
		return
	}
	r.notifyCancelled(inv, reasonCancelled, inv.To)
}

// notifyCancelled 招待の取り消しを指定したユーザーに通知します
func (r *Relay) notifyCancelled(inv *Invitation, reason string, notify ...signaling.UserID) {
	r.streamer.WriteMessage(&signaling.CallCancelled{
		RoomID:     inv.RoomID,
		FromUserID: inv.From,
		ToUserID:   inv.To,
	}, ws.TargetUsers(notify...))
	r.hub.Publish(hub.Message{
		Name: event.CallInvitationCancelled,
		Fields: hub.Fields{
			"room_id":      inv.RoomID,
			"from_user_id": inv.From,
			"to_user_id":   inv.To,
			"reason":       reason,
		},
	})
}

func (r *Relay) eventLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.closer:
			return
		case e, ok := <-r.sub.Receiver:
			if !ok {
				return
			}
			switch e.Topic() {
			case event.RoomClosed:
				roomID, _ := e.Fields["room_id"].(string)
				r.onRoomClosed(roomID)
			case event.PresenceDisconnected:
				userID, _ := e.Fields["user_id"].(signaling.UserID)
				if !r.isConnected(userID) {
					r.onUserOffline(userID)
				}
			}
		}
	}
}

// isConnected 指定したユーザーのセッションが残っているかどうか
func (r *Relay) isConnected(userID signaling.UserID) bool {
	connected := false
	r.streamer.IterateSessions(func(s ws.Session) {
		if s.UserID() == userID {
			connected = true
		}
	})
	return connected
}

// onRoomClosed 全員が退出したルームへの招待を取り消します
func (r *Relay) onRoomClosed(roomID string) {
	for _, inv := range r.invitations.takeIf(func(inv *Invitation) bool { return inv.RoomID == roomID }) {
		r.notifyCancelled(inv, reasonRoomClosed, inv.From, inv.To)
	}
}

// onUserOffline オフラインになったユーザーが関わる招待を取り消します
func (r *Relay) onUserOffline(userID signaling.UserID) {
	for _, inv := range r.invitations.takeIf(func(inv *Invitation) bool { return inv.From == userID || inv.To == userID }) {
		if inv.From == userID {
			r.notifyCancelled(inv, reasonCallerLeft, inv.To)
		} else {
			r.notifyCancelled(inv, reasonCalleeLeft, inv.From)
		}
	}
}

func (r *Relay) sweepLoop() {
	defer r.wg.Done()
	interval := r.ttl / 4
	t := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 10})
	defer t.Stop()
	for {
		select {
		case <-r.closer:
			return
		case now := <-t.C:
			r.expire(now)
		}
	}
}

// expire 有効期限が切れた招待を取り消します
func (r *Relay) expire(now time.Time) {
	for _, inv := range r.invitations.takeIf(func(inv *Invitation) bool { return now.Sub(inv.SentAt) >= r.ttl }) {
		r.logger.Debug("invitation expired",
			zap.String("roomID", inv.RoomID),
			zap.Stringer("from", inv.From),
			zap.Stringer("to", inv.To))
		r.notifyCancelled(inv, reasonExpired, inv.From, inv.To)
	}
}

func (r *Relay) sendError(s ws.Session, message string) {
	_ = s.Send(&signaling.Error{Message: message})
}
