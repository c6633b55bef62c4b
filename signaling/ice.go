package signaling

import (
	vd "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/traPtitech/callsignal/utils/validator"
)

// ICEServer ICEサーバー設定
type ICEServer struct {
	URLs       []string `json:"urls" mapstructure:"urls" yaml:"urls"`
	Username   string   `json:"username,omitempty" mapstructure:"username" yaml:"username"`
	Credential string   `json:"credential,omitempty" mapstructure:"credential" yaml:"credential"`
}

// ICECandidatePoolSize 事前に収集するICE候補数
const ICECandidatePoolSize = 10

// DefaultICEServers 既定のSTUNサーバー
//
// TURNサーバーは含まれないので、必要に応じて設定で追加すること
func DefaultICEServers() []ICEServer {
	return []ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
		{URLs: []string{"stun:stun1.l.google.com:19302"}},
		{URLs: []string{"stun:stun2.l.google.com:19302"}},
		{URLs: []string{"stun:stun3.l.google.com:19302"}},
		{URLs: []string{"stun:stun4.l.google.com:19302"}},
	}
}

// Validate implements validation.Validatable interface.
func (s ICEServer) Validate() error {
	return vd.ValidateStruct(&s,
		vd.Field(&s.URLs, validator.ICEServerURLsRule...),
	)
}
