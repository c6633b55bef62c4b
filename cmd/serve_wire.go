//go:build wireinject
// +build wireinject

package cmd

import (
	"github.com/google/wire"
	"github.com/leandro-lugaresi/hub"
	"go.uber.org/zap"

	"github.com/traPtitech/callsignal/router"
	"github.com/traPtitech/callsignal/service"
	"github.com/traPtitech/callsignal/service/callroom"
	"github.com/traPtitech/callsignal/service/presence"
)

func newServer(hub *hub.Hub, logger *zap.Logger, c *Config) (*Server, error) {
	wire.Build(
		presence.NewRelay,
		presence.NewOnlineCounter,
		callroom.NewManager,
		router.Setup,
		provideCallRoomRelay,
		providePresenceConfig,
		provideSigner,
		provideRouterServices,
		provideRouterConfig,
		wire.Struct(new(service.Services), "*"),
		wire.Struct(new(Server), "*"),
	)
	return nil, nil
}
