package testutils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/traPtitech/callsignal/router/extension/ctxkey"
	"github.com/traPtitech/callsignal/signaling"
)

const wsReadTimeout = 3 * time.Second

// NewWSServer 認証済みユーザーとしてhandlerを呼び出すテストサーバーを起動します
//
// クエリパラメータ uid, uname, room がそれぞれ ctxkey.UserID, ctxkey.UserName, ctxkey.RoomID に入ります
func NewWSServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ctx := r.Context()
		if uid, err := strconv.ParseInt(q.Get("uid"), 10, 64); err == nil {
			ctx = context.WithValue(ctx, ctxkey.UserID, signaling.UserID(uid))
		}
		ctx = context.WithValue(ctx, ctxkey.UserName, q.Get("uname"))
		ctx = context.WithValue(ctx, ctxkey.RoomID, q.Get("room"))
		handler.ServeHTTP(w, r.WithContext(ctx))
	}))
	t.Cleanup(s.Close)
	return s
}

// WSClient テスト用WebSocketクライアント
type WSClient struct {
	t    *testing.T
	Conn *websocket.Conn
}

// DialWS テストサーバーにユーザーとして接続します
func DialWS(t *testing.T, s *httptest.Server, userID signaling.UserID, userName, roomID string, extra url.Values) *WSClient {
	t.Helper()
	q := url.Values{}
	for k, v := range extra {
		q[k] = v
	}
	q.Set("uid", userID.String())
	q.Set("uname", userName)
	q.Set("room", roomID)

	u := "ws" + strings.TrimPrefix(s.URL, "http") + "/?" + q.Encode()
	conn, res, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	_ = res.Body.Close()

	c := &WSClient{t: t, Conn: conn}
	t.Cleanup(func() { _ = conn.Close() })
	return c
}

// Send メッセージをJSONで送信します
func (c *WSClient) Send(v any) {
	c.t.Helper()
	require.NoError(c.t, c.Conn.WriteJSON(v))
}

// SendRaw 生のテキストメッセージを送信します
func (c *WSClient) SendRaw(data string) {
	c.t.Helper()
	require.NoError(c.t, c.Conn.WriteMessage(websocket.TextMessage, []byte(data)))
}

// Next 次のメッセージを受信します
func (c *WSClient) Next() map[string]any {
	c.t.Helper()
	_ = c.Conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	_, data, err := c.Conn.ReadMessage()
	require.NoError(c.t, err)
	var m map[string]any
	require.NoError(c.t, json.Unmarshal(data, &m))
	return m
}

// Expect 次のメッセージが指定したtypeであることを確認して返します
func (c *WSClient) Expect(typ signaling.MessageType) map[string]any {
	c.t.Helper()
	m := c.Next()
	require.Equal(c.t, string(typ), m["type"], "unexpected message: %v", m)
	return m
}

// ExpectNone 指定時間内にメッセージが届かないことを確認します
//
// タイムアウト後の接続は読み込めなくなるため、最後の確認にのみ使えます
func (c *WSClient) ExpectNone(d time.Duration) {
	c.t.Helper()
	_ = c.Conn.SetReadDeadline(time.Now().Add(d))
	_, data, err := c.Conn.ReadMessage()
	require.Error(c.t, err, "unexpected message: %s", data)
}

// ExpectClosed サーバーから切断されることを確認します
func (c *WSClient) ExpectClosed() {
	c.t.Helper()
	_ = c.Conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Eventually 条件が満たされるまで待ちます
func Eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, wsReadTimeout, 10*time.Millisecond)
}
