package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/leandro-lugaresi/hub"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/traPtitech/callsignal/service"
)

// serveCommand サーバー起動コマンド
func serveCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:   "serve",
		Short: "Serve callsignal relay",
		Run: func(cmd *cobra.Command, args []string) {
			// Logger
			logger := getLogger()
			defer logger.Sync()

			logger.Info(fmt.Sprintf("callsignal %s (revision %s)", Version, Revision))

			// Message Hub
			hub := hub.New()

			// サーバー作成
			server, err := newServer(hub, logger, &c)
			if err != nil {
				logger.Fatal("failed to create server", zap.Error(err))
			}

			go func() {
				if err := server.Start(fmt.Sprintf(":%d", c.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("failed to start the server", zap.Error(err))
				}
				logger.Info("shutting down the server")
			}()

			logger.Info("callsignal started", zap.Int("port", c.Port))
			waitSIGINT()
			logger.Info("callsignal shutting down...")

			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.ShutdownTimeout)*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				logger.Warn("abnormal shutdown", zap.Error(err))
			}
			logger.Info("callsignal shutdown")
		},
	}

	flags := cmd.Flags()
	flags.Int("port", 3000, "listen port")
	bindPFlag(flags, "port")

	return &cmd
}

type Server struct {
	L      *zap.Logger
	SS     *service.Services
	Router *echo.Echo
	Hub    *hub.Hub
}

func (s *Server) Start(address string) error {
	return s.Router.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		err := s.Router.Shutdown(ctx)
		s.L.Info("Router shutdown")
		return err
	})
	eg.Go(func() error {
		err := s.SS.Presence.Close()
		s.L.Info("Presence WebSocket shutdown")
		return err
	})
	eg.Go(func() error {
		err := s.SS.CallRoom.Close()
		s.L.Info("Call room WebSocket shutdown")
		return err
	})
	err := eg.Wait()
	s.SS.OnlineCounter.Close()
	s.Hub.Close()
	return err
}
