package validator

import (
	"testing"

	vd "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
)

func TestRoomIDRule(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		value string
		ok    bool
	}{
		{"generated", "call_1_1700000000000", true},
		{"hyphen", "team-room", true},
		{"empty", "", false},
		{"slash", "room/1", false},
		{"dot", "../room", false},
		{"space", "room 1", false},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := vd.Validate(tt.value, RoomIDRuleRequired...)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestICEServerURLsRule(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, vd.Validate([]string{"stun:stun.l.google.com:19302", "turn:turn.example.com:3478?transport=udp", "turns:turn.example.com:5349"}, ICEServerURLsRule...))
	})
	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, vd.Validate([]string{}, ICEServerURLsRule...))
	})
	t.Run("http", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, vd.Validate([]string{"http://example.com"}, ICEServerURLsRule...))
	})
}

func TestServerOriginRule(t *testing.T) {
	t.Parallel()

	assert.NoError(t, vd.Validate("https://call.example.com", ServerOriginRule...))
	assert.Error(t, vd.Validate("", ServerOriginRule...))
}
