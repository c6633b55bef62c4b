package media

import (
	"context"
	"sync"

	"github.com/traPtitech/callsignal/utils/random"
)

// StaticSource 利用可能なデバイスが固定されたメディアソース
//
// 実デバイスを持たない環境(CLI, テスト)で使います
type StaticSource struct {
	// HasAudio マイクが存在するか
	HasAudio bool
	// HasVideo カメラが存在するか
	HasVideo bool
	// Denied デバイスの使用が拒否されるか
	Denied bool

	mu     sync.Mutex
	active int
}

// NewStaticSource 音声と映像の両デバイスを持つStaticSourceを返します
func NewStaticSource() *StaticSource {
	return &StaticSource{HasAudio: true, HasVideo: true}
}

// Acquire implements Source interface.
func (s *StaticSource) Acquire(ctx context.Context, c Constraints) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Denied {
		return nil, &AccessError{Err: ErrPermissionDenied}
	}
	if c.Audio && !s.HasAudio {
		return nil, &AccessError{Kind: KindAudio, Err: ErrNoDevice}
	}
	if c.Video && !s.HasVideo {
		return nil, &AccessError{Kind: KindVideo, Err: ErrNoDevice}
	}

	stream := &Stream{id: random.AlphaNumeric(16)}
	for _, kind := range []Kind{KindAudio, KindVideo} {
		if (kind == KindAudio && !c.Audio) || (kind == KindVideo && !c.Video) {
			continue
		}
		t, err := newTrack(kind, stream.id, s.release)
		if err != nil {
			stream.Stop()
			return nil, &AccessError{Kind: kind, Err: err}
		}
		s.mu.Lock()
		s.active++
		s.mu.Unlock()
		stream.tracks = append(stream.tracks, t)
	}
	return stream, nil
}

func (s *StaticSource) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active--
}

// ActiveTrackCount 停止されていないトラック数を返します
func (s *StaticSource) ActiveTrackCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
