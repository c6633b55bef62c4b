package media

import (
	"context"

	"github.com/samber/lo"
)

// Constraints 取得するメディアの条件
type Constraints struct {
	Audio bool
	Video bool
}

// Source ローカルメディアの取得元
type Source interface {
	// Acquire ローカルメディアを取得します。
	// 取得できなかった場合は*AccessErrorを返します
	Acquire(ctx context.Context, c Constraints) (*Stream, error)
}

// Stream ローカルメディアストリーム
type Stream struct {
	id     string
	tracks []*Track
}

// ID ストリームIDを返します
func (s *Stream) ID() string {
	return s.id
}

// Tracks 全トラックを返します
func (s *Stream) Tracks() []*Track {
	return s.tracks
}

// AudioTracks 音声トラックを返します
func (s *Stream) AudioTracks() []*Track {
	return s.tracksOf(KindAudio)
}

// VideoTracks 映像トラックを返します
func (s *Stream) VideoTracks() []*Track {
	return s.tracksOf(KindVideo)
}

func (s *Stream) tracksOf(kind Kind) []*Track {
	return lo.Filter(s.tracks, func(t *Track, _ int) bool { return t.kind == kind })
}

// Stop 全トラックを停止します
func (s *Stream) Stop() {
	for _, t := range s.tracks {
		t.Stop()
	}
}
