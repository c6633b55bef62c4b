package negotiation

import (
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/traPtitech/callsignal/signaling"
)

// PionConfig PionFactoryの設定
type PionConfig struct {
	// ICEServers ICEサーバー。空の場合はホスト候補のみで接続します
	ICEServers []signaling.ICEServer
	// IncludeLoopback ループバックアドレスを候補に含めるか
	IncludeLoopback bool
	// DisconnectedTimeout disconnectedになるまでの時間 (default: 5s)
	DisconnectedTimeout time.Duration
	// FailedTimeout disconnectedからfailedになるまでの時間 (default: 25s)
	FailedTimeout time.Duration
}

// PionFactory pionでPeerConnectionを生成するPeerFactory
type PionFactory struct {
	api    *webrtc.API
	config webrtc.Configuration
}

// NewPionFactory 既定のコーデックとインターセプタを登録したPionFactoryを生成します
func NewPionFactory(config PionConfig) (*PionFactory, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, err
	}

	if config.DisconnectedTimeout <= 0 {
		config.DisconnectedTimeout = 5 * time.Second
	}
	if config.FailedTimeout <= 0 {
		config.FailedTimeout = 25 * time.Second
	}
	se := webrtc.SettingEngine{}
	se.SetIncludeLoopbackCandidate(config.IncludeLoopback)
	se.SetICETimeouts(config.DisconnectedTimeout, config.FailedTimeout, 2*time.Second)

	servers := make([]webrtc.ICEServer, 0, len(config.ICEServers))
	for _, s := range config.ICEServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	return &PionFactory{
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(m),
			webrtc.WithInterceptorRegistry(ir),
			webrtc.WithSettingEngine(se),
		),
		config: webrtc.Configuration{ICEServers: servers},
	}, nil
}

// NewPeerConnection implements PeerFactory interface.
func (f *PionFactory) NewPeerConnection() (PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, err
	}
	return &pionPeer{PeerConnection: pc}, nil
}

type pionPeer struct {
	*webrtc.PeerConnection
}

func (p *pionPeer) OnRemoteTrack(f func(streamID string)) {
	p.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		f(track.StreamID())
		// 受信バッファを溢れさせないよう読み捨てる
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := track.Read(buf); err != nil {
					return
				}
			}
		}()
	})
}
