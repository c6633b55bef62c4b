package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/traPtitech/callsignal/signaling"
)

type stubSession struct {
	key    string
	userID signaling.UserID
	roomID string
}

func (s *stubSession) Key() string                  { return s.key }
func (s *stubSession) UserID() signaling.UserID     { return s.userID }
func (s *stubSession) UserName() string             { return "" }
func (s *stubSession) RoomID() string               { return s.roomID }
func (s *stubSession) Query(string) string          { return "" }
func (s *stubSession) Send(signaling.Message) error { return nil }
func (s *stubSession) Close()                       {}

func TestTargetFuncs(t *testing.T) {
	t.Parallel()

	s1 := &stubSession{key: "a", userID: 1, roomID: "room1"}
	s2 := &stubSession{key: "b", userID: 2, roomID: "room1"}
	s3 := &stubSession{key: "c", userID: 3, roomID: "room2"}
	all := []*stubSession{s1, s2, s3}

	match := func(f TargetFunc) []string {
		var res []string
		for _, s := range all {
			if f(s) {
				res = append(res, s.key)
			}
		}
		return res
	}

	cases := []struct {
		name string
		f    TargetFunc
		want []string
	}{
		{"all", TargetAll(), []string{"a", "b", "c"}},
		{"none", TargetNone(), nil},
		{"users", TargetUsers(2, 3), []string{"b", "c"}},
		{"room", TargetRoom("room1"), []string{"a", "b"}},
		{"session", TargetSession("b"), []string{"b"}},
		{"or", Or(TargetUsers(1), TargetRoom("room2")), []string{"a", "c"}},
		{"and", And(TargetRoom("room1"), TargetUsers(2, 3)), []string{"b"}},
		{"not", Not(TargetRoom("room1")), []string{"c"}},
		{"room except self", And(TargetRoom("room1"), Not(TargetUsers(1))), []string{"b"}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, match(tt.f))
		})
	}
}
