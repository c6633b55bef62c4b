package media

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied デバイスの使用が許可されていません
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNoDevice 要求された種類のデバイスが存在しません
	ErrNoDevice = errors.New("no device found")
	// ErrTrackStopped 停止済みのトラックです
	ErrTrackStopped = errors.New("track stopped")
)

// AccessError ローカルメディアを取得できなかったことを表すエラー
type AccessError struct {
	Kind Kind
	Err  error
}

// Error implements error interface.
func (e *AccessError) Error() string {
	if len(e.Kind) == 0 {
		return fmt.Sprintf("media access error: %v", e.Err)
	}
	return fmt.Sprintf("media access error (%s): %v", e.Kind, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}
