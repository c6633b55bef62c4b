package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/traPtitech/callsignal/client/api"
	"github.com/traPtitech/callsignal/client/call"
	"github.com/traPtitech/callsignal/client/channel"
	"github.com/traPtitech/callsignal/client/media"
	"github.com/traPtitech/callsignal/client/negotiation"
	"github.com/traPtitech/callsignal/signaling"
)

// 無音のOpusフレーム
var silentFrame = []byte{0xf8, 0xff, 0xfe}

const sampleDuration = 20 * time.Millisecond

type dialOptions struct {
	callUser  int64
	roomID    string
	accept    bool
	audioOnly bool
	duration  time.Duration
}

// dialCommand 中継サーバーに接続して通話を行うコマンド
func dialCommand() *cobra.Command {
	var opts dialOptions

	cmd := cobra.Command{
		Use:   "dial",
		Short: "Connect to a relay server and make or answer a call",
		Run: func(_ *cobra.Command, _ []string) {
			logger := getCLILogger()
			defer logger.Sync()

			if len(c.Client.Token) == 0 {
				logger.Fatal("client.token is required")
			}
			if opts.callUser > 0 && len(opts.roomID) > 0 {
				logger.Fatal("--call and --room are mutually exclusive")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := runDial(ctx, logger, opts); err != nil {
				logger.Fatal("dial failed", zap.Error(err))
			}
		},
	}

	flags := cmd.Flags()
	flags.String("server", "", "relay server url (http://host:port)")
	bindPFlagAs(flags, "client.server", "server")
	flags.String("token", "", "access token")
	bindPFlagAs(flags, "client.token", "token")
	flags.Bool("loopback", false, "include loopback addresses in ICE candidates")
	bindPFlagAs(flags, "client.loopback", "loopback")
	flags.Int64Var(&opts.callUser, "call", 0, "user id to invite")
	flags.StringVar(&opts.roomID, "room", "", "room id to join")
	flags.BoolVar(&opts.accept, "accept", false, "accept incoming calls automatically")
	flags.BoolVar(&opts.audioOnly, "audio-only", false, "do not send video")
	flags.DurationVar(&opts.duration, "duration", 0, "hang up after the duration (0: until interrupted)")

	return &cmd
}

func runDial(ctx context.Context, logger *zap.Logger, opts dialOptions) error {
	openCtx, cancel := context.WithTimeout(ctx, time.Duration(c.Client.OpenTimeout)*time.Second)
	defer cancel()

	rest := api.NewClient(c.Client.Server, c.Client.Token)
	me, err := rest.Me(openCtx)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	ice, err := rest.ICEServers(openCtx)
	if err != nil {
		return fmt.Errorf("failed to get ice servers: %w", err)
	}
	wsURL, err := api.WebSocketURL(c.Client.Server)
	if err != nil {
		return err
	}
	logger.Info("authenticated", zap.Stringer("userId", me.UserID), zap.String("name", me.Name))

	factory, err := negotiation.NewPionFactory(negotiation.PionConfig{
		ICEServers:      ice.ICEServers,
		IncludeLoopback: c.Client.Loopback,
	})
	if err != nil {
		return err
	}
	client := channel.NewClient(channel.Config{
		BaseURL:     wsURL,
		Token:       channel.StaticToken(c.Client.Token),
		OpenTimeout: time.Duration(c.Client.OpenTimeout) * time.Second,
	}, logger)

	var ctrl *call.Controller
	presence := client.Presence(channel.Handlers{
		OnReady:   func() { logger.Info("presence connected") },
		OnMessage: func(m signaling.Message) { ctrl.HandlePresence(m) },
		OnClose:   func(err error) { logger.Warn("presence disconnected", zap.Error(err)) },
	})
	ctrl = call.NewController(call.Config{
		Self:        me.UserID,
		SelfName:    me.Name,
		Presence:    presence,
		Rooms:       client,
		Media:       media.NewStaticSource(),
		Peers:       factory,
		Constraints: &media.Constraints{Audio: true, Video: !opts.audioOnly},
	}, logger)

	failed := make(chan error, 1)
	ctrl.OnChange(stateLogger(logger))
	ctrl.OnChange(func(s call.State) {
		if s.Status == call.StatusFailed && s.Err != nil {
			select {
			case failed <- s.Err:
			default:
			}
		}
	})
	if opts.accept {
		ctrl.OnChange(autoAccepter(ctx, ctrl, logger))
	}

	defer func() {
		ctrl.EndCall()
		_ = presence.Close()
	}()
	if err := presence.Connect(openCtx); err != nil {
		// 招待は再接続後に送られます
		logger.Warn("presence channel is unavailable, reconnecting in background", zap.Error(err))
	}

	switch {
	case len(opts.roomID) > 0:
		if err := ctrl.JoinCall(openCtx, opts.roomID); err != nil {
			return err
		}
	case opts.callUser > 0:
		roomID := signaling.NewRoomID(me.UserID, time.Now())
		if err := ctrl.StartCall(openCtx, roomID); err != nil {
			return err
		}
		callType := signaling.CallTypeVideo
		if opts.audioOnly {
			callType = signaling.CallTypeAudio
		}
		if err := ctrl.SendCallInvitation(roomID, signaling.UserID(opts.callUser), callType); err != nil {
			return err
		}
		logger.Info("invitation sent", zap.String("roomId", roomID), zap.Int64("to", opts.callUser))
	default:
		logger.Info("waiting for invitations")
	}

	runCtx := ctx
	if opts.duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}
	eg, egCtx := errgroup.WithContext(runCtx)
	eg.Go(func() error {
		feedSilence(egCtx, ctrl)
		return nil
	})
	eg.Go(func() error {
		select {
		case <-egCtx.Done():
			return nil
		case err := <-failed:
			return err
		}
	})
	return eg.Wait()
}

// stateLogger 状態が変化した時にログを出力するリスナーを返します
func stateLogger(logger *zap.Logger) func(call.State) {
	var (
		mu   sync.Mutex
		last call.Status
	)
	return func(s call.State) {
		mu.Lock()
		changed := s.Status != last
		last = s.Status
		mu.Unlock()
		if !changed {
			return
		}
		fields := []zap.Field{
			zap.String("status", string(s.Status)),
			zap.String("roomId", s.RoomID),
			zap.Int("participants", len(s.Participants)),
		}
		if s.Incoming != nil {
			fields = append(fields, zap.String("from", s.Incoming.FromUserName))
		}
		if s.Err != nil {
			fields = append(fields, zap.Error(s.Err))
		}
		logger.Info("call state changed", fields...)
	}
}

// autoAccepter 着信を自動で応答するリスナーを返します
func autoAccepter(ctx context.Context, ctrl *call.Controller, logger *zap.Logger) func(call.State) {
	var (
		mu       sync.Mutex
		accepted = map[string]struct{}{}
	)
	return func(s call.State) {
		if s.Status != call.StatusRinging || s.Incoming == nil || len(s.RoomID) > 0 {
			return
		}
		roomID := s.Incoming.RoomID
		mu.Lock()
		if _, ok := accepted[roomID]; ok {
			mu.Unlock()
			return
		}
		accepted[roomID] = struct{}{}
		mu.Unlock()

		go func() {
			if err := ctrl.AcceptCall(ctx); err != nil && !errors.Is(err, call.ErrNoIncomingCall) {
				logger.Warn("failed to accept call", zap.String("roomId", roomID), zap.Error(err))
			}
		}()
	}
}

// feedSilence ローカルトラックに無音サンプルを流し続けます
func feedSilence(ctx context.Context, ctrl *call.Controller) {
	ticker := time.NewTicker(sampleDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		stream := ctrl.State().LocalStream
		if stream == nil {
			continue
		}
		for _, t := range stream.Tracks() {
			// 停止済みのトラックは次の通話で置き換えられる
			_ = t.WriteSample(pionmedia.Sample{Data: silentFrame, Duration: sampleDuration})
		}
	}
}
