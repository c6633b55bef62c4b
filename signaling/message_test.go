package signaling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePresence(t *testing.T) {
	t.Parallel()

	t.Run("call_invitation from browser client", func(t *testing.T) {
		t.Parallel()
		raw := `{"type":"call_invitation","room_id":"call_42_1000","call_type":"video","from_user_id":42,"user_name":"alice","to_user_id":7}`

		m, err := DecodePresence([]byte(raw))
		require.NoError(t, err)

		inv, ok := m.(*CallInvitation)
		require.True(t, ok)
		assert.Equal(t, "call_42_1000", inv.RoomID)
		assert.EqualValues(t, 42, inv.FromUserID)
		assert.Equal(t, "alice", inv.FromUserName)
		assert.Equal(t, CallTypeVideo, inv.CallType)
		assert.EqualValues(t, 7, inv.ToUserID)
	})

	t.Run("call_invitation defaults to video", func(t *testing.T) {
		t.Parallel()
		m, err := DecodePresence([]byte(`{"type":"call_invitation","room_id":"r","from_user_name":"bob"}`))
		require.NoError(t, err)
		inv := m.(*CallInvitation)
		assert.Equal(t, CallTypeVideo, inv.CallType)
		assert.Equal(t, "bob", inv.FromUserName)
	})

	t.Run("call_response keeps accepted=false", func(t *testing.T) {
		t.Parallel()
		m, err := DecodePresence([]byte(`{"type":"call_response","room_id":"r","accepted":false,"to_user_id":42}`))
		require.NoError(t, err)
		res := m.(*CallResponse)
		assert.False(t, res.Accepted)
		assert.EqualValues(t, 42, res.ToUserID)
	})

	t.Run("call_response without accepted", func(t *testing.T) {
		t.Parallel()
		_, err := DecodePresence([]byte(`{"type":"call_response","room_id":"r"}`))
		assert.ErrorIs(t, err, ErrInvalidMessage)
	})

	t.Run("room message on presence channel", func(t *testing.T) {
		t.Parallel()
		_, err := DecodePresence([]byte(`{"type":"offer","offer":{"type":"offer","sdp":"v=0"}}`))
		assert.ErrorIs(t, err, ErrUnknownMessageType)
	})

	t.Run("broken json", func(t *testing.T) {
		t.Parallel()
		_, err := DecodePresence([]byte(`{"type":`))
		assert.ErrorIs(t, err, ErrInvalidMessage)
	})

	t.Run("missing type", func(t *testing.T) {
		t.Parallel()
		_, err := DecodePresence([]byte(`{"room_id":"r"}`))
		assert.ErrorIs(t, err, ErrInvalidMessage)
	})
}

func TestDecodeRoom(t *testing.T) {
	t.Parallel()

	t.Run("offer", func(t *testing.T) {
		t.Parallel()
		m, err := DecodeRoom([]byte(`{"type":"offer","from_user_id":1,"to_user_id":2,"offer":{"type":"offer","sdp":"v=0"}}`))
		require.NoError(t, err)
		o := m.(*Offer)
		assert.EqualValues(t, 1, o.FromUserID)
		assert.EqualValues(t, 2, o.ToUserID)
		assert.Equal(t, "v=0", o.SDP.SDP)
		assert.EqualValues(t, 1, Sender(m))
	})

	t.Run("ice_candidate", func(t *testing.T) {
		t.Parallel()
		m, err := DecodeRoom([]byte(`{"type":"ice_candidate","from_user_id":3,"candidate":{"candidate":"candidate:1 1 udp 1 127.0.0.1 5000 typ host","sdpMid":"0","sdpMLineIndex":0}}`))
		require.NoError(t, err)
		c := m.(*ICECandidate)
		require.NotNil(t, c.Candidate.SDPMid)
		assert.Equal(t, "0", *c.Candidate.SDPMid)
		require.NotNil(t, c.Candidate.SDPMLineIndex)
		assert.EqualValues(t, 0, *c.Candidate.SDPMLineIndex)
	})

	t.Run("answer without sdp", func(t *testing.T) {
		t.Parallel()
		_, err := DecodeRoom([]byte(`{"type":"answer","from_user_id":1}`))
		assert.ErrorIs(t, err, ErrInvalidMessage)
	})

	t.Run("presence message on room channel", func(t *testing.T) {
		t.Parallel()
		_, err := DecodeRoom([]byte(`{"type":"call_invitation","room_id":"r"}`))
		assert.ErrorIs(t, err, ErrUnknownMessageType)
	})

	t.Run("error is shared", func(t *testing.T) {
		t.Parallel()
		m, err := DecodeRoom([]byte(`{"type":"error","message":"not joined"}`))
		require.NoError(t, err)
		assert.Equal(t, "not joined", m.(*Error).Error())
		assert.EqualValues(t, 0, Sender(m))
	})
}

func TestEncode(t *testing.T) {
	t.Parallel()

	t.Run("call_response", func(t *testing.T) {
		t.Parallel()
		b, err := Encode(&CallResponse{RoomID: "r", Accepted: false, ToUserID: 42})
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"call_response","room_id":"r","accepted":false,"to_user_id":42}`, string(b))
	})

	t.Run("call_invitation carries both name fields", func(t *testing.T) {
		t.Parallel()
		b, err := Encode(&CallInvitation{RoomID: "r", FromUserID: 1, FromUserName: "alice", CallType: CallTypeAudio, ToUserID: 2})
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"call_invitation","room_id":"r","from_user_id":1,"from_user_name":"alice","user_name":"alice","call_type":"audio","to_user_id":2}`, string(b))
	})

	t.Run("join_ack", func(t *testing.T) {
		t.Parallel()
		b := MustEncode(&JoinAck{RoomID: "r", Participants: []Participant{{UserID: 1, UserName: "alice"}}})
		assert.JSONEq(t, `{"type":"join_ack","room_id":"r","participants":[{"user_id":1,"user_name":"alice"}]}`, string(b))
	})
}

func TestNewRoomID(t *testing.T) {
	t.Parallel()

	id := NewRoomID(42, time.UnixMilli(1000))
	assert.Equal(t, "call_42_1000", id)
	assert.NoError(t, ValidateRoomID(id))
}

func TestValidateRoomID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		roomID  string
		wantErr bool
	}{
		{"empty", "", true},
		{"slash", "call/42", true},
		{"space", "call 42", true},
		{"too long", string(make([]byte, 129)), true},
		{"success", "call_42_1000", false},
		{"hyphen", "team-meeting", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := ValidateRoomID(tt.roomID); (err != nil) != tt.wantErr {
				t.Errorf("ValidateRoomID() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
