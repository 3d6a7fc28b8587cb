package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"contact-chat-lab/internal/auth"
	"contact-chat-lab/internal/hub"
	"contact-chat-lab/internal/middleware"
	"contact-chat-lab/internal/server"
	"contact-chat-lab/internal/store"
)

var (
	fakeDelay      time.Duration
	fakeCreateRate int
)

func init() {
	rootCmd.AddCommand(fakeAPICmd)
	fakeAPICmd.Flags().DurationVar(&fakeDelay, "delay", 0, "hold every chat response this long")
	fakeAPICmd.Flags().IntVar(&fakeCreateRate, "create-rate", 10, "token creations allowed per client IP per minute (0 disables)")
}

var fakeAPICmd = &cobra.Command{
	Use:   "fakeapi",
	Short: "Run an in-memory chat API for local testing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		gin.SetMode(cfg.GinMode)

		tokenCfg := auth.TokenConfig{}
		if cfg.FakeAPISecret != "" {
			tokenCfg = auth.DefaultTokenConfig(cfg.FakeAPISecret)
			operator, err := auth.CreateToken(auth.Grant{Subject: "operator"}, tokenCfg)
			if err != nil {
				return fmt.Errorf("issue operator token: %w", err)
			}
			fmt.Println("operator token:", operator)
		}

		deps := server.FakeAPIDeps{
			Store:         store.New(),
			Hub:           hub.New(),
			TokenConfig:   tokenCfg,
			ResponseDelay: fakeDelay,
		}
		if fakeCreateRate > 0 {
			deps.CreateLimiter = middleware.NewRateLimiter(fakeCreateRate, time.Minute)
			defer deps.CreateLimiter.Stop()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		defer deps.Hub.CloseAll()

		slog.Info("fake chat api starting", "addr", cfg.FakeAPIAddr(), "auth", tokenCfg.Secret != "", "delay", fakeDelay)
		return server.Run(ctx, server.NewHTTPServer(cfg.FakeAPIAddr(), server.NewFakeAPIRouter(deps)))
	},
}
