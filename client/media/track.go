package media

import (
	"sync"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

// Kind トラック種別
type Kind string

const (
	// KindAudio 音声
	KindAudio Kind = "audio"
	// KindVideo 映像
	KindVideo Kind = "video"
)

func (k Kind) codec() webrtc.RTPCodecCapability {
	if k == KindAudio {
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	}
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
}

// Track ローカルメディアトラック
type Track struct {
	kind  Kind
	local *webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	enabled bool
	stopped bool
	onStop  func()
}

func newTrack(kind Kind, streamID string, onStop func()) (*Track, error) {
	local, err := webrtc.NewTrackLocalStaticSample(kind.codec(), string(kind), streamID)
	if err != nil {
		return nil, err
	}
	return &Track{
		kind:    kind,
		local:   local,
		enabled: true,
		onStop:  onStop,
	}, nil
}

// Kind トラック種別を返します
func (t *Track) Kind() Kind {
	return t.kind
}

// Local PeerConnectionに追加するトラックを返します
func (t *Track) Local() webrtc.TrackLocal {
	return t.local
}

// Enabled トラックが有効かどうか
func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled && !t.stopped
}

// SetEnabled トラックの有効/無効を切り替えます
func (t *Track) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// Stopped トラックが停止済みかどうか
func (t *Track) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Stop トラックを停止します。複数回呼んでも安全です
func (t *Track) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	onStop := t.onStop
	t.mu.Unlock()

	if onStop != nil {
		onStop()
	}
}

// WriteSample サンプルを送出します。無効化中のサンプルは捨てられます
func (t *Track) WriteSample(s pionmedia.Sample) error {
	t.mu.Lock()
	stopped, enabled := t.stopped, t.enabled
	t.mu.Unlock()

	if stopped {
		return ErrTrackStopped
	}
	if !enabled {
		return nil
	}
	return t.local.WriteSample(s)
}
