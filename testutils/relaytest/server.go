package relaytest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/leandro-lugaresi/hub"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/traPtitech/callsignal/router/extension/ctxkey"
	"github.com/traPtitech/callsignal/service/callroom"
	"github.com/traPtitech/callsignal/service/presence"
	"github.com/traPtitech/callsignal/signaling"
	"github.com/traPtitech/callsignal/utils/jwt"
)

const (
	// PresencePath プレゼンスチャンネルのパス
	PresencePath = "/api/ws/videocall/notifications/"
	// RoomPathPrefix 通話ルームチャンネルのパスの接頭辞
	RoomPathPrefix = "/api/ws/videocall/"
)

// Server プレゼンスと通話ルームの中継サーバーを持つテストサーバー
type Server struct {
	*httptest.Server
	Hub      *hub.Hub
	Signer   *jwt.Signer
	Rooms    *callroom.Manager
	Presence *presence.Relay
	CallRoom *callroom.Relay
}

// NewServer テスト用の中継サーバーを起動します
//
// トークンはクエリパラメータ token で受け取ります
func NewServer(t *testing.T) *Server {
	t.Helper()
	signer, err := jwt.NewTemporarySigner()
	require.NoError(t, err)

	h := hub.New()
	rooms := callroom.NewManager(h)
	s := &Server{
		Hub:      h,
		Signer:   signer,
		Rooms:    rooms,
		Presence: presence.NewRelay(h, zap.NewNop(), presence.Config{}),
		CallRoom: callroom.NewRelay(h, rooms, zap.NewNop(), 0),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(func() {
		s.Server.Close()
		_ = s.Presence.Close()
		_ = s.CallRoom.Close()
	})
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	claims, err := s.Signer.VerifyUserToken(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	ctx := context.WithValue(r.Context(), ctxkey.UserID, signaling.UserID(claims.UserID))
	ctx = context.WithValue(ctx, ctxkey.UserName, claims.Name)

	switch {
	case strings.TrimSuffix(r.URL.Path, "/")+"/" == PresencePath:
		s.Presence.ServeHTTP(w, r.WithContext(ctx))
	case strings.HasPrefix(r.URL.Path, RoomPathPrefix):
		roomID := strings.Trim(strings.TrimPrefix(r.URL.Path, RoomPathPrefix), "/")
		if signaling.ValidateRoomID(roomID) != nil {
			http.Error(w, "invalid room id", http.StatusBadRequest)
			return
		}
		ctx = context.WithValue(ctx, ctxkey.RoomID, roomID)
		s.CallRoom.ServeHTTP(w, r.WithContext(ctx))
	default:
		http.NotFound(w, r)
	}
}

// WSURL WebSocket接続用のベースURLを返します
func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

// Token ユーザーのトークンを発行します
func (s *Server) Token(t *testing.T, userID signaling.UserID, name string) string {
	t.Helper()
	token, err := s.Signer.IssueUserToken(int64(userID), name, time.Hour)
	require.NoError(t, err)
	return token
}
