package negotiation

import (
	"errors"
	"fmt"

	"github.com/traPtitech/callsignal/signaling"
)

var (
	// ErrPeerFailed ピア接続がfailedになりました
	ErrPeerFailed = errors.New("peer connection failed")
	// ErrEngineClosed エンジンは既に閉じられています
	ErrEngineClosed = errors.New("engine closed")
)

// Error オファー/アンサー/ICEの交換に失敗したことを表すエラー
type Error struct {
	Peer signaling.UserID
	Op   string
	Err  error
}

// Error implements error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("negotiation with %d failed (%s): %v", e.Peer, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
