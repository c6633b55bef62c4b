package channel

import (
	"errors"
	"fmt"
)

var (
	// ErrNoToken アクセストークンがありません
	ErrNoToken = errors.New("no access token")
	// ErrClosed チャンネルは既に閉じられています
	ErrClosed = errors.New("channel closed")
	// ErrBufferIsFull 送信待ちバッファが一杯です
	ErrBufferIsFull = errors.New("pending buffer is full")
	// ErrUnexpectedMessage 接続完了通知以外のメッセージを受信しました
	ErrUnexpectedMessage = errors.New("unexpected message")
)

// ConnectionError チャンネルの接続に失敗した、または予期せず切断されたことを表すエラー
type ConnectionError struct {
	URL string
	Err error
}

// Error implements error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("channel connection error (%s): %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
