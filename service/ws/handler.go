package ws

// Handler チャンネルごとのセッションイベントハンドラ
type Handler interface {
	// OnConnect セッションが確立した直後に呼ばれます
	OnConnect(s Session)
	// OnMessage テキストメッセージを受信した時に呼ばれます
	OnMessage(s Session, data []byte)
	// OnDisconnect セッションが切断された時に呼ばれます
	OnDisconnect(s Session)
}
