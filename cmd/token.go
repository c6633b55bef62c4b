package cmd

import (
	"fmt"
	"time"

	vd "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/traPtitech/callsignal/utils/validator"
)

// tokenCommand シグナリング用アクセストークン発行コマンド
func tokenCommand() *cobra.Command {
	var (
		userID int64
		name   string
		ttl    time.Duration
	)

	cmd := cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user",
		Run: func(_ *cobra.Command, _ []string) {
			logger := getCLILogger()
			defer logger.Sync()

			if err := vd.Validate(userID, vd.Required, vd.Min(int64(1))); err != nil {
				logger.Fatal("invalid user id", zap.Error(err))
			}
			if err := vd.Validate(name, validator.DisplayNameRule...); err != nil {
				logger.Fatal("invalid name", zap.Error(err))
			}
			if len(c.JWT.Keys.Private) == 0 {
				logger.Fatal("jwt.keys.private is required to issue tokens")
			}
			signer, err := c.getSigner(logger)
			if err != nil {
				logger.Fatal("failed to setup signer", zap.Error(err))
			}
			if ttl <= 0 {
				ttl = time.Duration(c.JWT.TokenExp) * time.Second
			}

			token, err := signer.IssueUserToken(userID, name, ttl)
			if err != nil {
				logger.Fatal("failed to issue token", zap.Error(err))
			}
			fmt.Println(token)
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&userID, "user-id", 0, "user id")
	flags.StringVar(&name, "name", "", "user name")
	flags.DurationVar(&ttl, "ttl", 0, "token lifetime (default: jwt.tokenExp)")
	_ = cmd.MarkFlagRequired("user-id")

	return &cmd
}
