package negotiation

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/traPtitech/callsignal/client/channel"
	"github.com/traPtitech/callsignal/signaling"
)

const (
	opOffer     = "offer"
	opAnswer    = "answer"
	opCandidate = "ice_candidate"
	opCreate    = "create"
)

// Handlers エンジンのイベントハンドラ
//
// ロックを保持していない状態で呼ばれます
type Handlers struct {
	// OnStateChange ピア接続の状態が変化した時に呼ばれます
	OnStateChange func(userID signaling.UserID, state PeerState)
	// OnRemoteStream リモートストリームが追加された時にそのIDで、削除された時に空文字列で呼ばれます
	OnRemoteStream func(userID signaling.UserID, streamID string)
}

// Peer 相手ユーザーごとのピア接続
type Peer struct {
	userID       signaling.UserID
	pc           PeerConnection
	state        PeerState
	remoteStream string
}

// Engine 通話中の全ピア接続を管理し、オファー/アンサー/ICEを交換します
type Engine struct {
	self     signaling.UserID
	factory  PeerFactory
	sender   channel.Sender
	handlers Handlers
	logger   *zap.Logger

	mu     sync.Mutex
	peers  map[signaling.UserID]*Peer
	tracks []webrtc.TrackLocal
	closed bool
}

// NewEngine Engineを生成します
//
// senderには通話ルームチャンネルを渡します
func NewEngine(self signaling.UserID, factory PeerFactory, sender channel.Sender, h Handlers, logger *zap.Logger) *Engine {
	return &Engine{
		self:     self,
		factory:  factory,
		sender:   sender,
		handlers: h,
		logger:   logger.Named("negotiation"),
		peers:    map[signaling.UserID]*Peer{},
	}
}

// SetLocalTracks 以降に生成するピア接続に追加するローカルトラックを設定します
func (e *Engine) SetLocalTracks(tracks []webrtc.TrackLocal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracks = tracks
}

// HandleUserJoined 新しい参加者へのピア接続を生成し、オファーを送ります
//
// 中継サーバーのuser_joinedは相手の参加完了を意味するので待たずに送ります
func (e *Engine) HandleUserJoined(userID signaling.UserID) error {
	if userID == e.self {
		return nil
	}
	p, err := e.newPeer(userID)
	if err != nil {
		return err
	}

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return e.fail(p, opOffer, err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return e.fail(p, opOffer, err)
	}
	if err := e.sender.Send(&signaling.Offer{FromUserID: e.self, ToUserID: userID, SDP: fromSessionDescription(offer)}); err != nil {
		return e.fail(p, opOffer, err)
	}
	return nil
}

// HandleOffer オファーを受け取り、アンサーを返します。ピア接続が無ければ生成します
func (e *Engine) HandleOffer(from signaling.UserID, sdp signaling.SessionDescription) error {
	if from == e.self {
		return nil
	}
	p, ok := e.getPeer(from)
	if !ok {
		var err error
		if p, err = e.newPeer(from); err != nil {
			return err
		}
	}

	if err := p.pc.SetRemoteDescription(toSessionDescription(sdp)); err != nil {
		return e.fail(p, opAnswer, err)
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return e.fail(p, opAnswer, err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return e.fail(p, opAnswer, err)
	}
	if err := e.sender.Send(&signaling.Answer{FromUserID: e.self, ToUserID: from, SDP: fromSessionDescription(answer)}); err != nil {
		return e.fail(p, opAnswer, err)
	}
	return nil
}

// HandleAnswer アンサーを既存のピア接続に設定します。ピア接続が無い場合は何もしません
func (e *Engine) HandleAnswer(from signaling.UserID, sdp signaling.SessionDescription) error {
	p, ok := e.getPeer(from)
	if !ok {
		e.logger.Warn("answer from unknown peer", zap.Stringer("userID", from))
		return nil
	}
	if err := p.pc.SetRemoteDescription(toSessionDescription(sdp)); err != nil {
		return e.fail(p, opAnswer, err)
	}
	return nil
}

// HandleICECandidate ICE候補を追加します
//
// リモートSDPが未設定の場合は破棄します
func (e *Engine) HandleICECandidate(from signaling.UserID, c signaling.ICECandidateInit) error {
	p, ok := e.getPeer(from)
	if !ok || p.pc.RemoteDescription() == nil {
		e.logger.Debug("ice candidate discarded", zap.Stringer("userID", from))
		return nil
	}
	if err := p.pc.AddICECandidate(toICECandidateInit(c)); err != nil {
		return &Error{Peer: from, Op: opCandidate, Err: err}
	}
	return nil
}

// HandleUserLeft 退出したユーザーのピア接続を閉じて破棄します
func (e *Engine) HandleUserLeft(userID signaling.UserID) {
	e.RemovePeer(userID)
}

// RemovePeer ピア接続を閉じて破棄します。存在しない場合は何もしません
func (e *Engine) RemovePeer(userID signaling.UserID) {
	e.mu.Lock()
	p, ok := e.peers[userID]
	if ok {
		delete(e.peers, userID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	if err := p.pc.Close(); err != nil {
		e.logger.Warn("failed to close peer connection", zap.Stringer("userID", userID), zap.Error(err))
	}
	if len(p.remoteStream) > 0 && e.handlers.OnRemoteStream != nil {
		e.handlers.OnRemoteStream(userID, "")
	}
}

// PeerStates 全ピア接続の状態を返します
func (e *Engine) PeerStates() map[signaling.UserID]PeerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	states := make(map[signaling.UserID]PeerState, len(e.peers))
	for id, p := range e.peers {
		states[id] = p.state
	}
	return states
}

// RemoteStreams 相手ユーザーごとのリモートストリームIDを返します
func (e *Engine) RemoteStreams() map[signaling.UserID]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	streams := map[signaling.UserID]string{}
	for id, p := range e.peers {
		if len(p.remoteStream) > 0 {
			streams[id] = p.remoteStream
		}
	}
	return streams
}

// PeerCount ピア接続数を返します
func (e *Engine) PeerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.peers)
}

// Close 全ピア接続を閉じます
func (e *Engine) Close() {
	e.mu.Lock()
	peers := e.peers
	e.peers = map[signaling.UserID]*Peer{}
	e.closed = true
	e.mu.Unlock()

	for id, p := range peers {
		if err := p.pc.Close(); err != nil {
			e.logger.Warn("failed to close peer connection", zap.Stringer("userID", id), zap.Error(err))
		}
	}
}

func (e *Engine) getPeer(userID signaling.UserID) (*Peer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.peers[userID]
	return p, ok
}

func (e *Engine) newPeer(userID signaling.UserID) (*Peer, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	tracks := e.tracks
	e.mu.Unlock()

	pc, err := e.factory.NewPeerConnection()
	if err != nil {
		return nil, &Error{Peer: userID, Op: opCreate, Err: err}
	}
	p := &Peer{userID: userID, pc: pc, state: PeerStateNew}

	if len(tracks) > 0 {
		for _, t := range tracks {
			if _, err := pc.AddTrack(t); err != nil {
				_ = pc.Close()
				return nil, &Error{Peer: userID, Op: opCreate, Err: err}
			}
		}
	} else {
		for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
			if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}); err != nil {
				_ = pc.Close()
				return nil, &Error{Peer: userID, Op: opCreate, Err: err}
			}
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || !e.isCurrent(p) {
			return
		}
		if err := e.sender.Send(&signaling.ICECandidate{FromUserID: e.self, ToUserID: userID, Candidate: fromICECandidateInit(c.ToJSON())}); err != nil {
			e.logger.Warn("failed to send ice candidate", zap.Stringer("userID", userID), zap.Error(err))
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		e.setState(p, peerStateOf(s))
	})
	pc.OnRemoteTrack(func(streamID string) {
		e.setRemoteStream(p, streamID)
	})

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		_ = pc.Close()
		return nil, ErrEngineClosed
	}
	old := e.peers[userID]
	e.peers[userID] = p
	e.mu.Unlock()

	if old != nil {
		_ = old.pc.Close()
	}
	return p, nil
}

func (e *Engine) isCurrent(p *Peer) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peers[p.userID] == p
}

func (e *Engine) setState(p *Peer, state PeerState) {
	e.mu.Lock()
	if e.peers[p.userID] != p || p.state == state {
		e.mu.Unlock()
		return
	}
	p.state = state
	e.mu.Unlock()

	if state == PeerStateFailed {
		e.logger.Warn("peer connection failed", zap.Stringer("userID", p.userID))
	}
	if e.handlers.OnStateChange != nil {
		e.handlers.OnStateChange(p.userID, state)
	}
}

func (e *Engine) setRemoteStream(p *Peer, streamID string) {
	e.mu.Lock()
	if e.peers[p.userID] != p || len(p.remoteStream) > 0 {
		e.mu.Unlock()
		return
	}
	p.remoteStream = streamID
	e.mu.Unlock()

	if e.handlers.OnRemoteStream != nil {
		e.handlers.OnRemoteStream(p.userID, streamID)
	}
}

// fail ピア接続をfailedにし、エラーを返します。エントリは残ります
func (e *Engine) fail(p *Peer, op string, err error) error {
	e.setState(p, PeerStateFailed)
	return &Error{Peer: p.userID, Op: op, Err: err}
}
