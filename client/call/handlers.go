package call

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/traPtitech/callsignal/client/negotiation"
	"github.com/traPtitech/callsignal/signaling"
)

// HandlePresence プレゼンスチャンネルで受信したメッセージを処理します
func (c *Controller) HandlePresence(m signaling.Message) {
	switch m := m.(type) {
	case *signaling.PresenceConnected:
		c.logger.Debug("presence connected")

	case *signaling.CallInvitation:
		c.update(func(s *State) {
			s.Incoming = &Invitation{
				RoomID:       m.RoomID,
				FromUserID:   m.FromUserID,
				FromUserName: m.FromUserName,
				ToUserID:     c.self,
				CallType:     m.CallType,
			}
			if c.session == nil {
				s.Status = StatusRinging
				s.Err = nil
			}
		})
		c.logger.Info("incoming call", zap.String("roomID", m.RoomID), zap.Int64("from", int64(m.FromUserID)))

	case *signaling.CallResponse:
		c.mu.Lock()
		matched := c.state.Outgoing != nil && c.state.Outgoing.RoomID == m.RoomID
		opened := c.session != nil
		c.mu.Unlock()
		if !matched {
			c.logger.Debug("call response without invitation", zap.String("roomID", m.RoomID))
			return
		}

		if !m.Accepted {
			c.logger.Info("call rejected", zap.String("roomID", m.RoomID), zap.Int64("by", int64(m.FromUserID)))
			c.clearOutgoing(m.RoomID)
			return
		}
		c.update(func(s *State) {
			if s.Outgoing != nil && s.Outgoing.RoomID == m.RoomID {
				s.Outgoing = nil
			}
		})
		if !opened {
			go func() {
				if err := c.StartCall(context.Background(), m.RoomID); err != nil {
					c.logger.Warn("failed to join accepted call", zap.String("roomID", m.RoomID), zap.Error(err))
				}
			}()
		}

	case *signaling.CallCancelled:
		c.update(func(s *State) {
			if s.Incoming != nil && s.Incoming.RoomID == m.RoomID {
				s.Incoming = nil
				if c.session == nil && s.Status == StatusRinging {
					s.Status = StatusIdle
				}
			}
			if s.Outgoing != nil && s.Outgoing.RoomID == m.RoomID {
				s.Outgoing = nil
				if c.session == nil && s.Status == StatusCalling {
					s.Status = StatusIdle
				}
			}
		})

	case *signaling.Error:
		c.logger.Warn("presence error", zap.String("message", m.Message))
	}
}

// clearOutgoing 発信中の招待を消し、通話ルームを開いていなければ待機状態に戻します
func (c *Controller) clearOutgoing(roomID string) {
	c.update(func(s *State) {
		if s.Outgoing == nil || s.Outgoing.RoomID != roomID {
			return
		}
		s.Outgoing = nil
		if c.session == nil && s.Status == StatusCalling {
			s.Status = StatusIdle
		}
	})
}

// handleRoom 通話ルームチャンネルで受信したメッセージを処理します
func (c *Controller) handleRoom(s *roomSession, m signaling.Message) {
	if !c.isCurrent(s) {
		return
	}
	if rm, ok := m.(signaling.RoomMessage); ok && signaling.Sender(rm) == c.self {
		return
	}

	var err error
	switch m := m.(type) {
	case *signaling.JoinAck:
		c.updateSession(s, func(st *State) {
			st.Participants = slices.Clone(m.Participants)
		})

	case *signaling.UserJoined:
		c.updateSession(s, func(st *State) {
			st.Participants = slices.DeleteFunc(st.Participants, func(p signaling.Participant) bool { return p.UserID == m.FromUserID })
			st.Participants = append(st.Participants, signaling.Participant{UserID: m.FromUserID, UserName: m.UserName})
		})
		err = s.engine.HandleUserJoined(m.FromUserID)

	case *signaling.UserLeft:
		s.engine.HandleUserLeft(m.FromUserID)
		c.updateSession(s, func(st *State) {
			st.Participants = slices.DeleteFunc(st.Participants, func(p signaling.Participant) bool { return p.UserID == m.FromUserID })
			delete(st.Peers, m.FromUserID)
			delete(st.RemoteStreams, m.FromUserID)
		})

	case *signaling.Offer:
		err = s.engine.HandleOffer(m.FromUserID, m.SDP)
	case *signaling.Answer:
		err = s.engine.HandleAnswer(m.FromUserID, m.SDP)
	case *signaling.ICECandidate:
		err = s.engine.HandleICECandidate(m.FromUserID, m.Candidate)

	case *signaling.Error:
		c.logger.Warn("room error", zap.String("roomID", s.roomID), zap.String("message", m.Message))
	}

	if err != nil {
		c.logger.Warn("negotiation failed", zap.String("roomID", s.roomID), zap.Error(err))
		var ne *negotiation.Error
		if errors.As(err, &ne) {
			c.updateSession(s, func(st *State) {
				st.Status = StatusFailed
				st.Err = err
			})
		}
	}
}

// handleRoomClosed 通話ルームチャンネルが予期せず閉じられた場合はEndCallと同じ扱いにします
func (c *Controller) handleRoomClosed(s *roomSession, err error) {
	if !c.isCurrent(s) {
		return
	}
	c.logger.Warn("room channel closed", zap.String("roomID", s.roomID), zap.Error(err))

	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return
	}
	c.session = nil
	c.state = newState()
	c.mu.Unlock()

	s.release(nil)
	c.notify()
}

func (c *Controller) handlePeerState(s *roomSession, userID signaling.UserID, state negotiation.PeerState) {
	c.updateSession(s, func(st *State) {
		st.Peers[userID] = state
		if state == negotiation.PeerStateFailed {
			st.Status = StatusFailed
			if st.Err == nil {
				st.Err = &negotiation.Error{Peer: userID, Op: "connection", Err: negotiation.ErrPeerFailed}
			}
		}
	})
}

func (c *Controller) handleRemoteStream(s *roomSession, userID signaling.UserID, streamID string) {
	c.updateSession(s, func(st *State) {
		if len(streamID) == 0 {
			delete(st.RemoteStreams, userID)
		} else {
			st.RemoteStreams[userID] = streamID
		}
	})
}
