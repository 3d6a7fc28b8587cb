package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"contact-chat-lab/internal/config"
	"contact-chat-lab/internal/console"
	"contact-chat-lab/internal/feed"
)

var feedURL string

func init() {
	rootCmd.AddCommand(feedCmd)
	feedCmd.Flags().StringVar(&feedURL, "url", "", "websocket endpoint (env WS_BASE_URL)")
}

// echoHandler prints each feed event and forwards it.
type echoHandler struct {
	next feed.Handler
	out  io.Writer
	c    *console.Console
}

func (h echoHandler) echo() {
	if log := h.c.Snapshot().StatusLog; len(log) > 0 {
		fmt.Fprintln(h.out, log[0])
	}
}

func (h echoHandler) OnOpen() {
	h.next.OnOpen()
	h.echo()
}

func (h echoHandler) OnFrame(data string) {
	h.next.OnFrame(data)
	if feedLog := h.c.Snapshot().WSFeed; len(feedLog) > 0 {
		fmt.Fprintln(h.out, feedLog[0])
	}
}

func (h echoHandler) OnClose() {
	h.next.OnClose()
	h.echo()
}

func (h echoHandler) OnError(err error) {
	h.next.OnError(err)
	h.echo()
}

func feedOptions(cfg config.Config, metrics *console.Metrics) []feed.Option {
	opts := []feed.Option{feed.WithStateHook(metrics.ObserveFeedState)}
	if cfg.WSReconnect {
		opts = append(opts, feed.WithReconnect(feed.DefaultReconnectPolicy()))
	}
	return opts
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Watch the chat websocket and print frames until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c, err := newConsole(cfg, nil)
		if err != nil {
			return err
		}
		url := cfg.WSBaseURL
		if feedURL != "" {
			url = feedURL
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		conn := feed.New(url, echoHandler{next: c, out: os.Stdout, c: c}, feedOptions(cfg, nil)...)
		go func() {
			<-ctx.Done()
			_ = conn.Close()
		}()
		return conn.Run(ctx)
	},
}
