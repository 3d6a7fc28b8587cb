package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"contact-chat-lab/internal/console"
	"contact-chat-lab/internal/feed"
	"contact-chat-lab/internal/hub"
	"contact-chat-lab/internal/server"
)

var serveNoFeed bool

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveNoFeed, "no-feed", false, "do not open the chat websocket")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web console",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	gin.SetMode(cfg.GinMode)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := console.NewMetrics(reg)

	c, err := newConsole(cfg, metrics)
	if err != nil {
		return err
	}

	liveHub := hub.New()
	router := server.NewRouter(server.Deps{
		Console:    c,
		Hub:        liveHub,
		Gatherer:   reg,
		APIBaseURL: cfg.APIBaseURL,
		WSBaseURL:  cfg.WSBaseURL,
	})
	srv := server.NewHTTPServer(cfg.Addr(), router)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("chatlab console starting",
		"addr", cfg.Addr(),
		"api", cfg.APIBaseURL,
		"ws", cfg.WSBaseURL,
		"discard_stale", cfg.DiscardStale,
		"ws_reconnect", cfg.WSReconnect,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer liveHub.CloseAll()
		return server.Run(ctx, srv)
	})
	if !serveNoFeed {
		conn := feed.New(cfg.WSBaseURL, c, feedOptions(cfg, metrics)...)
		g.Go(func() error {
			<-ctx.Done()
			return conn.Close()
		})
		g.Go(func() error {
			// A dead feed is reported in the status log; the console keeps serving.
			if err := conn.Run(ctx); err != nil {
				slog.Warn("feed stopped", "url", conn.URL(), "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("chatlab console stopped")
	return nil
}
