package signaling

import (
	"fmt"
	"time"

	vd "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/traPtitech/callsignal/utils/validator"
)

// NewRoomID 発信者と時刻から通話ごとに一意なルームIDを生成します
func NewRoomID(userID UserID, now time.Time) string {
	return fmt.Sprintf("call_%d_%d", userID, now.UnixMilli())
}

// ValidateRoomID ルームIDを検証します
func ValidateRoomID(roomID string) error {
	return vd.Validate(roomID, validator.RoomIDRuleRequired...)
}
