package ws

import (
	"github.com/samber/lo"

	"github.com/traPtitech/callsignal/signaling"
)

// TargetFunc メッセージ送信対象関数
type TargetFunc func(s Session) bool

// TargetAll 全セッションを対象に送信します
func TargetAll() TargetFunc {
	return func(_ Session) bool {
		return true
	}
}

// TargetUsers 指定したユーザーを対象に送信します
func TargetUsers(userID ...signaling.UserID) TargetFunc {
	return func(s Session) bool {
		return lo.Contains(userID, s.UserID())
	}
}

// TargetRoom 指定した通話ルームのセッションを対象に送信します
func TargetRoom(roomID string) TargetFunc {
	return func(s Session) bool {
		return s.RoomID() == roomID
	}
}

// TargetSession 指定したキーのセッションを対象に送信します
func TargetSession(key string) TargetFunc {
	return func(s Session) bool {
		return s.Key() == key
	}
}

// TargetNone いずれのセッションにも送信しません
func TargetNone() TargetFunc {
	return func(_ Session) bool {
		return false
	}
}

// Or いずれかのTargetFuncの条件に該当する対象に送信します
func Or(funcs ...TargetFunc) TargetFunc {
	return func(s Session) bool {
		for _, f := range funcs {
			if f(s) {
				return true
			}
		}
		return false
	}
}

// And すべてのTargetFuncの条件に該当する対象に送信します
func And(funcs ...TargetFunc) TargetFunc {
	return func(s Session) bool {
		for _, f := range funcs {
			if !f(s) {
				return false
			}
		}
		return true
	}
}

// Not TargetFuncの条件に該当しない対象に送信します
func Not(f TargetFunc) TargetFunc {
	return func(s Session) bool {
		return !f(s)
	}
}
