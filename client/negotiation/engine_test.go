package negotiation_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/traPtitech/callsignal/client/channel/mock_channel"
	"github.com/traPtitech/callsignal/client/media"
	"github.com/traPtitech/callsignal/client/negotiation"
	"github.com/traPtitech/callsignal/client/negotiation/mock_negotiation"
	"github.com/traPtitech/callsignal/signaling"
)

type peerCallbacks struct {
	onICE   func(*webrtc.ICECandidate)
	onState func(webrtc.PeerConnectionState)
	onTrack func(string)
}

// expectPeer ファクトリがピア接続を1つ生成することを期待します
func expectPeer(ctrl *gomock.Controller, factory *mock_negotiation.MockPeerFactory, tracks int) (*mock_negotiation.MockPeerConnection, *peerCallbacks) {
	pc := mock_negotiation.NewMockPeerConnection(ctrl)
	cb := &peerCallbacks{}
	factory.EXPECT().
		NewPeerConnection().
		Return(pc, nil).
		Times(1)
	if tracks > 0 {
		pc.EXPECT().
			AddTrack(gomock.Any()).
			Return(nil, nil).
			Times(tracks)
	} else {
		pc.EXPECT().
			AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}).
			Return(nil, nil).
			Times(1)
		pc.EXPECT().
			AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}).
			Return(nil, nil).
			Times(1)
	}
	pc.EXPECT().
		OnICECandidate(gomock.Any()).
		Do(func(f func(*webrtc.ICECandidate)) { cb.onICE = f }).
		Times(1)
	pc.EXPECT().
		OnConnectionStateChange(gomock.Any()).
		Do(func(f func(webrtc.PeerConnectionState)) { cb.onState = f }).
		Times(1)
	pc.EXPECT().
		OnRemoteTrack(gomock.Any()).
		Do(func(f func(string)) { cb.onTrack = f }).
		Times(1)
	return pc, cb
}

// events エンジンのイベントを記録します
type events struct {
	mu      sync.Mutex
	states  []negotiation.PeerState
	streams []string
}

func (ev *events) handlers() negotiation.Handlers {
	return negotiation.Handlers{
		OnStateChange: func(_ signaling.UserID, state negotiation.PeerState) {
			ev.mu.Lock()
			defer ev.mu.Unlock()
			ev.states = append(ev.states, state)
		},
		OnRemoteStream: func(_ signaling.UserID, streamID string) {
			ev.mu.Lock()
			defer ev.mu.Unlock()
			ev.streams = append(ev.streams, streamID)
		},
	}
}

type engineEnv struct {
	ctrl    *gomock.Controller
	factory *mock_negotiation.MockPeerFactory
	sender  *mock_channel.MockSender
	events  *events
	engine  *negotiation.Engine
}

func setupEngine(t *testing.T) *engineEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	env := &engineEnv{
		ctrl:    ctrl,
		factory: mock_negotiation.NewMockPeerFactory(ctrl),
		sender:  mock_channel.NewMockSender(ctrl),
		events:  &events{},
	}
	env.engine = negotiation.NewEngine(1, env.factory, env.sender, env.events.handlers(), zap.NewNop())
	return env
}

var (
	testOffer  = webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}
	testAnswer = webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}
)

func TestEngine_HandleUserJoined(t *testing.T) {
	t.Parallel()

	t.Run("offer to newcomer", func(t *testing.T) {
		t.Parallel()
		env := setupEngine(t)
		pc, _ := expectPeer(env.ctrl, env.factory, 0)
		pc.EXPECT().CreateOffer(nil).Return(testOffer, nil).Times(1)
		pc.EXPECT().SetLocalDescription(testOffer).Return(nil).Times(1)
		env.sender.EXPECT().
			Send(&signaling.Offer{FromUserID: 1, ToUserID: 2, SDP: signaling.SessionDescription{Type: "offer", SDP: "v=0 offer"}}).
			Do(func(m signaling.Message) {
				b, err := signaling.Encode(m)
				require.NoError(t, err)
				assert.Contains(t, string(b), `"from_user_id":1`)
				assert.Contains(t, string(b), `"to_user_id":2`)
			}).
			Return(nil).
			Times(1)

		require.NoError(t, env.engine.HandleUserJoined(2))
		assert.Equal(t, map[signaling.UserID]negotiation.PeerState{2: negotiation.PeerStateNew}, env.engine.PeerStates())
	})

	t.Run("local tracks are attached", func(t *testing.T) {
		t.Parallel()
		env := setupEngine(t)
		stream, err := media.NewStaticSource().Acquire(context.Background(), media.Constraints{Audio: true, Video: true})
		require.NoError(t, err)
		env.engine.SetLocalTracks([]webrtc.TrackLocal{stream.Tracks()[0].Local(), stream.Tracks()[1].Local()})

		pc, _ := expectPeer(env.ctrl, env.factory, 2)
		pc.EXPECT().CreateOffer(nil).Return(testOffer, nil).Times(1)
		pc.EXPECT().SetLocalDescription(testOffer).Return(nil).Times(1)
		env.sender.EXPECT().Send(gomock.Any()).Return(nil).Times(1)

		require.NoError(t, env.engine.HandleUserJoined(2))
	})

	t.Run("self", func(t *testing.T) {
		t.Parallel()
		env := setupEngine(t)

		require.NoError(t, env.engine.HandleUserJoined(1))
		assert.Equal(t, 0, env.engine.PeerCount())
	})

	t.Run("offer failure", func(t *testing.T) {
		t.Parallel()
		env := setupEngine(t)
		pc, _ := expectPeer(env.ctrl, env.factory, 0)
		pc.EXPECT().CreateOffer(nil).Return(webrtc.SessionDescription{}, errors.New("boom")).Times(1)

		err := env.engine.HandleUserJoined(2)
		var ne *negotiation.Error
		if assert.ErrorAs(t, err, &ne) {
			assert.Equal(t, signaling.UserID(2), ne.Peer)
			assert.Equal(t, "offer", ne.Op)
		}
		assert.Equal(t, map[signaling.UserID]negotiation.PeerState{2: negotiation.PeerStateFailed}, env.engine.PeerStates())
		assert.Equal(t, []negotiation.PeerState{negotiation.PeerStateFailed}, env.events.states)
	})

	t.Run("factory failure", func(t *testing.T) {
		t.Parallel()
		env := setupEngine(t)
		env.factory.EXPECT().NewPeerConnection().Return(nil, errors.New("boom")).Times(1)

		var ne *negotiation.Error
		assert.ErrorAs(t, env.engine.HandleUserJoined(2), &ne)
		assert.Equal(t, 0, env.engine.PeerCount())
	})
}

func TestEngine_HandleOffer(t *testing.T) {
	t.Parallel()

	t.Run("answer", func(t *testing.T) {
		t.Parallel()
		env := setupEngine(t)
		pc, _ := expectPeer(env.ctrl, env.factory, 0)
		gomock.InOrder(
			pc.EXPECT().SetRemoteDescription(testOffer).Return(nil),
			pc.EXPECT().CreateAnswer(nil).Return(testAnswer, nil),
			pc.EXPECT().SetLocalDescription(testAnswer).Return(nil),
			env.sender.EXPECT().
				Send(&signaling.Answer{FromUserID: 1, ToUserID: 2, SDP: signaling.SessionDescription{Type: "answer", SDP: "v=0 answer"}}).
				Return(nil),
		)

		require.NoError(t, env.engine.HandleOffer(2, signaling.SessionDescription{Type: "offer", SDP: "v=0 offer"}))
		assert.Equal(t, 1, env.engine.PeerCount())
	})

	t.Run("set remote description failure", func(t *testing.T) {
		t.Parallel()
		env := setupEngine(t)
		pc, _ := expectPeer(env.ctrl, env.factory, 0)
		pc.EXPECT().SetRemoteDescription(gomock.Any()).Return(errors.New("bad sdp")).Times(1)

		err := env.engine.HandleOffer(2, signaling.SessionDescription{Type: "offer", SDP: "broken"})
		var ne *negotiation.Error
		if assert.ErrorAs(t, err, &ne) {
			assert.Equal(t, "answer", ne.Op)
		}
		assert.Equal(t, negotiation.PeerStateFailed, env.engine.PeerStates()[2])
	})
}

func TestEngine_HandleAnswer(t *testing.T) {
	t.Parallel()

	t.Run("no peer", func(t *testing.T) {
		t.Parallel()
		env := setupEngine(t)

		assert.NoError(t, env.engine.HandleAnswer(2, signaling.SessionDescription{Type: "answer", SDP: "v=0"}))
		assert.Equal(t, 0, env.engine.PeerCount())
	})

	t.Run("existing peer", func(t *testing.T) {
		t.Parallel()
		env := setupEngine(t)
		pc, _ := expectPeer(env.ctrl, env.factory, 0)
		pc.EXPECT().CreateOffer(nil).Return(testOffer, nil)
		pc.EXPECT().SetLocalDescription(testOffer).Return(nil)
		env.sender.EXPECT().Send(gomock.Any()).Return(nil)
		pc.EXPECT().SetRemoteDescription(testAnswer).Return(nil).Times(1)

		require.NoError(t, env.engine.HandleUserJoined(2))
		assert.NoError(t, env.engine.HandleAnswer(2, signaling.SessionDescription{Type: "answer", SDP: "v=0 answer"}))
	})
}

func TestEngine_HandleICECandidate(t *testing.T) {
	t.Parallel()

	mid := "0"
	var index uint16
	candidate := signaling.ICECandidateInit{Candidate: "candidate:1 1 udp 1 127.0.0.1 5000 typ host", SDPMid: &mid, SDPMLineIndex: &index}

	t.Run("no peer", func(t *testing.T) {
		t.Parallel()
		env := setupEngine(t)

		assert.NoError(t, env.engine.HandleICECandidate(2, candidate))
	})

	t.Run("before remote description", func(t *testing.T) {
		t.Parallel()
		env := setupEngine(t)
		pc, _ := expectPeer(env.ctrl, env.factory, 0)
		pc.EXPECT().CreateOffer(nil).Return(testOffer, nil)
		pc.EXPECT().SetLocalDescription(testOffer).Return(nil)
		env.sender.EXPECT().Send(gomock.Any()).Return(nil)
		require.NoError(t, env.engine.HandleUserJoined(2))

		pc.EXPECT().RemoteDescription().Return(nil).Times(1)
		pc.EXPECT().AddICECandidate(gomock.Any()).Times(0)
		assert.NoError(t, env.engine.HandleICECandidate(2, candidate))
	})

	t.Run("after remote description", func(t *testing.T) {
		t.Parallel()
		env := setupEngine(t)
		pc, _ := expectPeer(env.ctrl, env.factory, 0)
		pc.EXPECT().SetRemoteDescription(testOffer).Return(nil)
		pc.EXPECT().CreateAnswer(nil).Return(testAnswer, nil)
		pc.EXPECT().SetLocalDescription(testAnswer).Return(nil)
		env.sender.EXPECT().Send(gomock.Any()).Return(nil)
		require.NoError(t, env.engine.HandleOffer(2, signaling.SessionDescription{Type: "offer", SDP: "v=0 offer"}))

		pc.EXPECT().RemoteDescription().Return(&testOffer).Times(1)
		pc.EXPECT().
			AddICECandidate(webrtc.ICECandidateInit{Candidate: candidate.Candidate, SDPMid: &mid, SDPMLineIndex: &index}).
			Return(nil).
			Times(1)
		assert.NoError(t, env.engine.HandleICECandidate(2, candidate))
	})

	t.Run("local candidates are sent", func(t *testing.T) {
		t.Parallel()
		env := setupEngine(t)
		pc, cb := expectPeer(env.ctrl, env.factory, 0)
		pc.EXPECT().CreateOffer(nil).Return(testOffer, nil)
		pc.EXPECT().SetLocalDescription(testOffer).Return(nil)
		env.sender.EXPECT().Send(gomock.Any()).Return(nil)
		require.NoError(t, env.engine.HandleUserJoined(2))

		env.sender.EXPECT().
			Send(gomock.Any()).
			Do(func(m signaling.Message) {
				c, ok := m.(*signaling.ICECandidate)
				if assert.True(t, ok) {
					assert.Equal(t, signaling.UserID(1), c.FromUserID)
					assert.Equal(t, signaling.UserID(2), c.ToUserID)
					assert.NotEmpty(t, c.Candidate.Candidate)
				}
			}).
			Return(nil).
			Times(1)
		cb.onICE(nil)
		cb.onICE(&webrtc.ICECandidate{
			Foundation: "1",
			Priority:   1,
			Address:    "127.0.0.1",
			Protocol:   webrtc.ICEProtocolUDP,
			Port:       5000,
			Typ:        webrtc.ICECandidateTypeHost,
			Component:  1,
		})
	})
}

func TestEngine_HandleUserLeft(t *testing.T) {
	t.Parallel()

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()
		env := setupEngine(t)

		env.engine.HandleUserLeft(2)
		assert.Equal(t, 0, env.engine.PeerCount())
		assert.Empty(t, env.events.streams)
	})

	t.Run("close and remove", func(t *testing.T) {
		t.Parallel()
		env := setupEngine(t)
		pc, cb := expectPeer(env.ctrl, env.factory, 0)
		pc.EXPECT().CreateOffer(nil).Return(testOffer, nil)
		pc.EXPECT().SetLocalDescription(testOffer).Return(nil)
		env.sender.EXPECT().Send(gomock.Any()).Return(nil)
		require.NoError(t, env.engine.HandleUserJoined(2))

		cb.onTrack("stream-b")
		assert.Equal(t, map[signaling.UserID]string{2: "stream-b"}, env.engine.RemoteStreams())

		pc.EXPECT().Close().Return(nil).Times(1)
		env.engine.HandleUserLeft(2)
		assert.Equal(t, 0, env.engine.PeerCount())
		assert.Empty(t, env.engine.RemoteStreams())
		assert.Equal(t, []string{"stream-b", ""}, env.events.streams)

		// 閉じた後のコールバックは無視される
		cb.onState(webrtc.PeerConnectionStateClosed)
		assert.Empty(t, env.events.states)
	})
}

func TestEngine_PeerEvents(t *testing.T) {
	t.Parallel()

	env := setupEngine(t)
	pc, cb := expectPeer(env.ctrl, env.factory, 0)
	pc.EXPECT().CreateOffer(nil).Return(testOffer, nil)
	pc.EXPECT().SetLocalDescription(testOffer).Return(nil)
	env.sender.EXPECT().Send(gomock.Any()).Return(nil)
	require.NoError(t, env.engine.HandleUserJoined(2))

	cb.onState(webrtc.PeerConnectionStateConnecting)
	cb.onState(webrtc.PeerConnectionStateConnected)
	cb.onState(webrtc.PeerConnectionStateConnected)
	assert.Equal(t, negotiation.PeerStateConnected, env.engine.PeerStates()[2])

	cb.onState(webrtc.PeerConnectionStateFailed)
	assert.Equal(t, negotiation.PeerStateFailed, env.engine.PeerStates()[2])
	assert.Equal(t, 1, env.engine.PeerCount())
	assert.Equal(t, []negotiation.PeerState{
		negotiation.PeerStateConnecting,
		negotiation.PeerStateConnected,
		negotiation.PeerStateFailed,
	}, env.events.states)

	cb.onTrack("first")
	cb.onTrack("second")
	assert.Equal(t, map[signaling.UserID]string{2: "first"}, env.engine.RemoteStreams())
	assert.Equal(t, []string{"first"}, env.events.streams)
}

func TestEngine_Close(t *testing.T) {
	t.Parallel()

	env := setupEngine(t)
	for _, id := range []signaling.UserID{2, 3} {
		pc, _ := expectPeer(env.ctrl, env.factory, 0)
		pc.EXPECT().CreateOffer(nil).Return(testOffer, nil)
		pc.EXPECT().SetLocalDescription(testOffer).Return(nil)
		pc.EXPECT().Close().Return(nil).Times(1)
		env.sender.EXPECT().Send(gomock.Any()).Return(nil)
		require.NoError(t, env.engine.HandleUserJoined(id))
	}
	assert.Equal(t, 2, env.engine.PeerCount())

	env.engine.Close()
	assert.Equal(t, 0, env.engine.PeerCount())
	assert.ErrorIs(t, env.engine.HandleUserJoined(4), negotiation.ErrEngineClosed)
}
