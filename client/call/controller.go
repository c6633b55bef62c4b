package call

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/traPtitech/callsignal/client/channel"
	"github.com/traPtitech/callsignal/client/media"
	"github.com/traPtitech/callsignal/client/negotiation"
	"github.com/traPtitech/callsignal/signaling"
)

// Config Controllerの依存と設定
type Config struct {
	// Self 自分のユーザーID
	Self signaling.UserID
	// SelfName 自分のユーザー名
	SelfName string
	// Presence プレゼンスチャンネル
	Presence channel.Sender
	// Rooms 通話ルームチャンネルの接続口
	Rooms channel.RoomDialer
	// Media ローカルメディアの取得元
	Media media.Source
	// Peers ピア接続の生成元
	Peers negotiation.PeerFactory
	// Constraints 取得するメディアの条件 (default: 音声と映像)
	Constraints *media.Constraints
}

// Controller 通話セッションの状態を一元管理します
//
// 同時に開ける通話ルームは1つだけです
type Controller struct {
	self        signaling.UserID
	selfName    string
	presence    channel.Sender
	rooms       channel.RoomDialer
	source      media.Source
	factory     negotiation.PeerFactory
	constraints media.Constraints
	logger      *zap.Logger

	mu        sync.Mutex
	state     State
	session   *roomSession
	listeners []func(State)
}

// NewController Controllerを生成します
func NewController(config Config, logger *zap.Logger) *Controller {
	constraints := media.Constraints{Audio: true, Video: true}
	if config.Constraints != nil {
		constraints = *config.Constraints
	}
	return &Controller{
		self:        config.Self,
		selfName:    config.SelfName,
		presence:    config.Presence,
		rooms:       config.Rooms,
		source:      config.Media,
		factory:     config.Peers,
		constraints: constraints,
		logger:      logger.Named("call").With(zap.Int64("self", int64(config.Self))),
		state:       newState(),
	}
}

// State 現在の状態のコピーを返します
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// OnChange 状態が変化するたびに呼ばれるリスナーを登録します
//
// リスナーはロックを保持していない状態で呼ばれます
func (c *Controller) OnChange(f func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, f)
}

// StartCall 通話ルームを開いてローカルメディアを取得し、通話に参加します
//
// 既に開いている通話ルームは先に閉じられます
func (c *Controller) StartCall(ctx context.Context, roomID string) error {
	return c.open(ctx, roomID, StatusCalling)
}

// JoinCall StartCallと同じですが、準備中の状態はringingになります
func (c *Controller) JoinCall(ctx context.Context, roomID string) error {
	return c.open(ctx, roomID, StatusRinging)
}

// SendCallInvitation プレゼンスチャンネルで通話招待を送ります
func (c *Controller) SendCallInvitation(roomID string, to signaling.UserID, callType signaling.CallType) error {
	if err := c.validateInvitation(roomID, to); err != nil {
		c.logger.Warn("invalid call invitation", zap.Error(err))
		return err
	}
	if len(callType) == 0 {
		callType = signaling.CallTypeVideo
	}

	if err := c.presence.Send(&signaling.CallInvitation{RoomID: roomID, ToUserID: to, CallType: callType}); err != nil {
		return err
	}

	c.update(func(s *State) {
		s.Outgoing = &Invitation{RoomID: roomID, FromUserID: c.self, FromUserName: c.selfName, ToUserID: to, CallType: callType}
		if s.Status == StatusIdle || s.Status == StatusFailed {
			s.Status = StatusCalling
			s.Err = nil
		}
	})
	return nil
}

func (c *Controller) validateInvitation(roomID string, to signaling.UserID) error {
	switch {
	case to == c.self:
		return &InvalidInvitationError{Target: to, Reason: "cannot invite yourself"}
	case to <= 0:
		return &InvalidInvitationError{Target: to, Reason: "invalid user id"}
	}
	if err := signaling.ValidateRoomID(roomID); err != nil {
		return &InvalidInvitationError{Target: to, Reason: err.Error()}
	}
	return nil
}

// CancelInvitation 発信中の招待を取り消します
func (c *Controller) CancelInvitation() error {
	c.mu.Lock()
	inv := c.state.Outgoing
	c.mu.Unlock()
	if inv == nil {
		return ErrNoOutgoingCall
	}

	if err := c.presence.Send(&signaling.CallCancelled{RoomID: inv.RoomID, ToUserID: inv.ToUserID}); err != nil {
		return err
	}
	c.clearOutgoing(inv.RoomID)
	return nil
}

// AcceptCall 着信を承諾し、招待された通話ルームに参加します
func (c *Controller) AcceptCall(ctx context.Context) error {
	inv, err := c.takeIncoming()
	if err != nil {
		return err
	}

	if err := c.presence.Send(&signaling.CallResponse{RoomID: inv.RoomID, Accepted: true, ToUserID: inv.FromUserID}); err != nil {
		c.update(func(s *State) {
			if c.session == nil {
				s.Status = StatusFailed
				s.Err = err
			}
		})
		return err
	}
	return c.open(ctx, inv.RoomID, StatusRinging)
}

// RejectCall 着信を拒否します
func (c *Controller) RejectCall() error {
	inv, err := c.takeIncoming()
	if err != nil {
		return err
	}

	err = c.presence.Send(&signaling.CallResponse{RoomID: inv.RoomID, Accepted: false, ToUserID: inv.FromUserID})
	c.update(func(s *State) {
		if c.session == nil && s.Status == StatusRinging {
			s.Status = StatusIdle
		}
	})
	return err
}

func (c *Controller) takeIncoming() (*Invitation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inv := c.state.Incoming
	if inv == nil {
		return nil, ErrNoIncomingCall
	}
	c.state.Incoming = nil
	return inv, nil
}

// EndCall 通話を終了し、全ての資源を解放して待機状態に戻ります
//
// どの状態からでも呼べ、何度呼んでも安全です
func (c *Controller) EndCall() {
	c.mu.Lock()
	s := c.session
	c.session = nil
	outgoing := c.state.Outgoing
	c.state = newState()
	c.mu.Unlock()

	if s != nil {
		s.release(&signaling.LeaveCall{FromUserID: c.self})
		c.logger.Info("call ended", zap.String("roomID", s.roomID))
	}
	if outgoing != nil {
		if err := c.presence.Send(&signaling.CallCancelled{RoomID: outgoing.RoomID, ToUserID: outgoing.ToUserID}); err != nil {
			c.logger.Warn("failed to cancel invitation", zap.Error(err))
		}
	}
	c.notify()
}

// ToggleAudio マイクの有効/無効を切り替え、切り替え後に有効かどうかを返します
func (c *Controller) ToggleAudio() bool {
	return c.toggle(media.KindAudio)
}

// ToggleVideo カメラの有効/無効を切り替え、切り替え後に有効かどうかを返します
func (c *Controller) ToggleVideo() bool {
	return c.toggle(media.KindVideo)
}

func (c *Controller) toggle(kind media.Kind) bool {
	c.mu.Lock()
	stream := c.state.LocalStream
	if stream == nil {
		c.mu.Unlock()
		return false
	}
	tracks := stream.AudioTracks()
	if kind == media.KindVideo {
		tracks = stream.VideoTracks()
	}
	if len(tracks) == 0 {
		c.mu.Unlock()
		return false
	}

	enabled := !tracks[0].Enabled()
	for _, t := range tracks {
		t.SetEnabled(enabled)
	}
	if kind == media.KindAudio {
		c.state.AudioMuted = !enabled
	} else {
		c.state.VideoMuted = !enabled
	}
	c.mu.Unlock()

	c.notify()
	return enabled
}

// open 通話ルームを開く一連の処理
//
// 通話ルームチャンネルを開き、ローカルメディアを取得してからjoin_callを送ります
func (c *Controller) open(ctx context.Context, roomID string, status Status) error {
	if err := signaling.ValidateRoomID(roomID); err != nil {
		return err
	}

	s := &roomSession{roomID: roomID}
	l := c.logger.With(zap.String("roomID", roomID))
	s.engine = negotiation.NewEngine(c.self, c.factory, s, negotiation.Handlers{
		OnStateChange: func(userID signaling.UserID, state negotiation.PeerState) {
			c.handlePeerState(s, userID, state)
		},
		OnRemoteStream: func(userID signaling.UserID, streamID string) {
			c.handleRemoteStream(s, userID, streamID)
		},
	}, l)

	c.mu.Lock()
	prev := c.session
	c.session = s
	c.state.Status = status
	c.state.RoomID = roomID
	c.state.LocalStream = nil
	c.state.RemoteStreams = map[signaling.UserID]string{}
	c.state.Peers = map[signaling.UserID]negotiation.PeerState{}
	c.state.Participants = nil
	c.state.AudioMuted = false
	c.state.VideoMuted = false
	c.state.Err = nil
	c.mu.Unlock()
	if prev != nil {
		prev.release(&signaling.LeaveCall{FromUserID: c.self})
	}
	c.notify()

	conn, err := c.rooms.DialRoom(ctx, roomID, channel.RoomOptions{}, channel.Handlers{
		OnMessage: func(m signaling.Message) {
			c.handleRoom(s, m)
		},
		OnClose: func(err error) {
			c.handleRoomClosed(s, err)
		},
	})
	if err != nil {
		return c.abort(s, err)
	}
	s.setConn(conn)
	if !c.isCurrent(s) {
		s.release(nil)
		return ErrCallEnded
	}

	stream, err := c.source.Acquire(ctx, c.constraints)
	if err != nil {
		return c.abort(s, err)
	}
	s.setStream(stream)
	s.engine.SetLocalTracks(lo.Map(stream.Tracks(), func(t *media.Track, _ int) webrtc.TrackLocal {
		return t.Local()
	}))

	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		s.release(nil)
		return ErrCallEnded
	}
	c.state.LocalStream = stream
	c.state.Status = StatusConnected
	c.mu.Unlock()
	c.notify()

	if err := s.Send(&signaling.JoinCall{FromUserID: c.self, UserName: c.selfName}); err != nil {
		return c.abort(s, err)
	}
	l.Info("joined call")
	return nil
}

// abort 準備中の通話ルームの資源を解放し、failedにします
func (c *Controller) abort(s *roomSession, err error) error {
	s.release(nil)
	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return err
	}
	c.session = nil
	c.state.Status = StatusFailed
	c.state.RoomID = ""
	c.state.LocalStream = nil
	c.state.RemoteStreams = map[signaling.UserID]string{}
	c.state.Peers = map[signaling.UserID]negotiation.PeerState{}
	c.state.Participants = nil
	c.state.Err = err
	c.mu.Unlock()

	c.logger.Warn("failed to open call", zap.String("roomID", s.roomID), zap.Error(err))
	c.notify()
	return err
}

func (c *Controller) isCurrent(s *roomSession) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session == s
}

// update 状態を更新し、リスナーに通知します
func (c *Controller) update(f func(s *State)) {
	c.mu.Lock()
	f(&c.state)
	c.mu.Unlock()
	c.notify()
}

// updateSession sが現在の通話ルームである場合のみ状態を更新します
func (c *Controller) updateSession(s *roomSession, f func(st *State)) {
	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return
	}
	f(&c.state)
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	c.mu.Lock()
	state := c.state.clone()
	listeners := c.listeners
	c.mu.Unlock()

	for _, f := range listeners {
		f(state)
	}
}
