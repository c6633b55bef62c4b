package call_test

import (
	"context"
	"testing"
	"time"

	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/traPtitech/callsignal/client/call"
	"github.com/traPtitech/callsignal/client/channel"
	"github.com/traPtitech/callsignal/client/media"
	"github.com/traPtitech/callsignal/client/negotiation"
	"github.com/traPtitech/callsignal/signaling"
	"github.com/traPtitech/callsignal/testutils/relaytest"
)

const scenarioTimeout = 20 * time.Second

type party struct {
	id       signaling.UserID
	c        *call.Controller
	presence *channel.Channel
	source   *media.StaticSource
}

// newParty 中継サーバーに接続した通話クライアントを生成します
func newParty(t *testing.T, srv *relaytest.Server, id signaling.UserID, name string) *party {
	t.Helper()
	client := channel.NewClient(channel.Config{
		BaseURL: srv.WSURL(),
		Token:   channel.StaticToken(srv.Token(t, id, name)),
	}, zap.NewNop())
	factory, err := negotiation.NewPionFactory(negotiation.PionConfig{IncludeLoopback: true})
	require.NoError(t, err)

	p := &party{id: id, source: media.NewStaticSource()}
	p.presence = client.Presence(channel.Handlers{
		OnMessage: func(m signaling.Message) { p.c.HandlePresence(m) },
	})
	p.c = call.NewController(call.Config{
		Self:     id,
		SelfName: name,
		Presence: p.presence,
		Rooms:    client,
		Media:    p.source,
		Peers:    factory,
	}, zap.NewNop())
	require.NoError(t, p.presence.Connect(context.Background()))
	t.Cleanup(func() {
		p.c.EndCall()
		_ = p.presence.Close()
	})
	return p
}

// feed ローカルトラックにサンプルを流し続けます
func (p *party) feed(ctx context.Context) {
	stream := p.c.State().LocalStream
	if stream == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			for _, t := range stream.Tracks() {
				if err := t.WriteSample(pionmedia.Sample{Data: []byte{0x10, 0x00, 0x00, 0x00}, Duration: 20 * time.Millisecond}); err != nil {
					return
				}
			}
		}
	}()
}

func (p *party) eventually(t *testing.T, cond func(s call.State) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(p.c.State()) }, scenarioTimeout, 20*time.Millisecond)
}

func TestScenario_InviteAcceptAndHangUp(t *testing.T) {
	t.Parallel()
	if testing.Short() {
		t.Skip("skipping peer connection test in short mode")
	}

	srv := relaytest.NewServer(t)
	alice := newParty(t, srv, 1, "alice")
	bob := newParty(t, srv, 2, "bob")
	roomID := signaling.NewRoomID(alice.id, time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, alice.c.StartCall(ctx, roomID))
	require.NoError(t, alice.c.SendCallInvitation(roomID, bob.id, signaling.CallTypeVideo))
	alice.feed(ctx)

	bob.eventually(t, func(s call.State) bool {
		return s.Status == call.StatusRinging && s.Incoming != nil
	})
	inv := bob.c.State().Incoming
	assert.Equal(t, roomID, inv.RoomID)
	assert.Equal(t, alice.id, inv.FromUserID)
	assert.Equal(t, "alice", inv.FromUserName)

	require.NoError(t, bob.c.AcceptCall(ctx))
	bob.feed(ctx)
	assert.Equal(t, []signaling.Participant{{UserID: alice.id, UserName: "alice"}}, waitParticipants(t, bob))

	alice.eventually(t, func(s call.State) bool {
		return s.Outgoing == nil && len(s.Participants) == 1
	})

	// 双方のピア接続が確立し、相手のストリームを受信する
	for _, p := range []struct {
		self  *party
		other signaling.UserID
	}{{alice, bob.id}, {bob, alice.id}} {
		p.self.eventually(t, func(s call.State) bool {
			return s.Peers[p.other] == negotiation.PeerStateConnected && len(s.RemoteStreams[p.other]) > 0
		})
		assert.Equal(t, call.StatusConnected, p.self.c.State().Status)
	}

	bob.c.EndCall()
	assert.Equal(t, call.StatusIdle, bob.c.State().Status)
	assert.Equal(t, 0, bob.source.ActiveTrackCount())

	alice.eventually(t, func(s call.State) bool {
		return len(s.Participants) == 0 && len(s.RemoteStreams) == 0 && len(s.Peers) == 0
	})
	assert.Equal(t, call.StatusConnected, alice.c.State().Status)

	alice.c.EndCall()
	assert.Equal(t, 0, alice.source.ActiveTrackCount())
	require.Eventually(t, func() bool {
		_, ok := srv.Rooms.GetRoom(roomID)
		return !ok
	}, scenarioTimeout, 20*time.Millisecond)
}

func waitParticipants(t *testing.T, p *party) []signaling.Participant {
	t.Helper()
	p.eventually(t, func(s call.State) bool { return len(s.Participants) > 0 })
	return p.c.State().Participants
}

func TestScenario_Reject(t *testing.T) {
	t.Parallel()

	srv := relaytest.NewServer(t)
	alice := newParty(t, srv, 1, "alice")
	bob := newParty(t, srv, 2, "bob")
	roomID := signaling.NewRoomID(alice.id, time.Now())

	require.NoError(t, alice.c.SendCallInvitation(roomID, bob.id, signaling.CallTypeAudio))
	assert.Equal(t, call.StatusCalling, alice.c.State().Status)

	bob.eventually(t, func(s call.State) bool { return s.Incoming != nil })
	assert.Equal(t, signaling.CallTypeAudio, bob.c.State().Incoming.CallType)
	require.NoError(t, bob.c.RejectCall())
	assert.Equal(t, call.StatusIdle, bob.c.State().Status)

	alice.eventually(t, func(s call.State) bool {
		return s.Status == call.StatusIdle && s.Outgoing == nil
	})
	assert.Equal(t, 0, alice.source.ActiveTrackCount())
	assert.Equal(t, 0, bob.source.ActiveTrackCount())
	_, ok := srv.Rooms.GetRoom(roomID)
	assert.False(t, ok)
}

func TestScenario_Cancel(t *testing.T) {
	t.Parallel()

	srv := relaytest.NewServer(t)
	alice := newParty(t, srv, 1, "alice")
	bob := newParty(t, srv, 2, "bob")
	roomID := signaling.NewRoomID(alice.id, time.Now())

	require.NoError(t, alice.c.SendCallInvitation(roomID, bob.id, ""))
	bob.eventually(t, func(s call.State) bool { return s.Status == call.StatusRinging })

	require.NoError(t, alice.c.CancelInvitation())
	assert.Equal(t, call.StatusIdle, alice.c.State().Status)
	bob.eventually(t, func(s call.State) bool {
		return s.Status == call.StatusIdle && s.Incoming == nil
	})
}

func TestScenario_InviteSelf(t *testing.T) {
	t.Parallel()

	srv := relaytest.NewServer(t)
	alice := newParty(t, srv, 1, "alice")

	err := alice.c.SendCallInvitation(signaling.NewRoomID(alice.id, time.Now()), alice.id, "")
	var ie *call.InvalidInvitationError
	assert.ErrorAs(t, err, &ie)
	assert.Equal(t, call.StatusIdle, alice.c.State().Status)
}
