package call

import (
	"errors"
	"fmt"

	"github.com/traPtitech/callsignal/signaling"
)

var (
	// ErrNoIncomingCall 応答できる着信がありません
	ErrNoIncomingCall = errors.New("no incoming call")
	// ErrNoOutgoingCall 取り消せる発信中の招待がありません
	ErrNoOutgoingCall = errors.New("no outgoing invitation")
	// ErrCallEnded 通話の準備中にEndCallされました
	ErrCallEnded = errors.New("call ended")
)

// InvalidInvitationError 招待の内容が不正なことを表すエラー
type InvalidInvitationError struct {
	Target signaling.UserID
	Reason string
}

// Error implements error interface.
func (e *InvalidInvitationError) Error() string {
	return fmt.Sprintf("invalid invitation to %d: %s", e.Target, e.Reason)
}
