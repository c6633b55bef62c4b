package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	messageBufferSize = 256

	// DefaultMaxMessageSize 受信メッセージの最大サイズ。SDPが収まる大きさにしてある
	DefaultMaxMessageSize = 1 << 16 // 64KiB
)

var upgrader = &websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type rawMessage struct {
	t    int
	data []byte
}
