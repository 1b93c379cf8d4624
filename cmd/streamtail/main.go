// streamtail connects to a jetconsole realtime endpoint and prints routed
// events to the console.
// Usage: go run ./cmd/streamtail --config configs/streamtail.example.yaml
//
// The access token is usually supplied via the environment:
//
//	JETCONSOLE_TOKEN - access token referenced as ${JETCONSOLE_TOKEN} in the config
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/natsops/jetconsole/internal/auth"
	"github.com/natsops/jetconsole/internal/config"
	"github.com/natsops/jetconsole/internal/connection"
	"github.com/natsops/jetconsole/internal/subscription"
	"github.com/natsops/jetconsole/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/streamtail.example.yaml", "path to config file")
	all := flag.Bool("all", false, "also subscribe to the wildcard channel")
	statsEvery := flag.Duration("stats", 30*time.Second, "interval for stats log lines (0 disables)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting streamtail",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	source := auth.NewMemorySource(cfg.Console.Token)

	mgrCfg := connection.DefaultManagerConfig()
	mgrCfg.URL = cfg.Console.WSURL
	mgrCfg.ReconnectBaseDelay = cfg.Connection.ReconnectBaseDelay
	mgrCfg.MaxReconnectAttempts = cfg.Connection.MaxReconnectAttempts
	mgrCfg.HandshakeTimeout = cfg.Connection.HandshakeTimeout
	mgrCfg.PingTimeout = cfg.Connection.PingTimeout
	mgrCfg.WriteTimeout = cfg.Connection.WriteTimeout
	mgrCfg.BufferSize = cfg.Connection.BufferSize

	mgr := connection.NewManager(mgrCfg, source, logger)
	defer mgr.Close()

	print := func(data json.RawMessage, channel string) {
		logger.Info("event", "channel", channel, "data", string(data))
	}

	for _, ch := range cfg.Console.Channels {
		mgr.Subscribe(ch, print)
	}
	if *all {
		mgr.Subscribe(subscription.Wildcard, print)
	}

	mgr.Connect()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		if *statsEvery <= 0 {
			return nil
		}
		ticker := time.NewTicker(*statsEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				stats := mgr.Stats()
				logger.Info("stats",
					"state", stats.State,
					"channels", stats.SubscribedChannels,
					"frames_received", stats.Router.FramesReceived,
					"frames_routed", stats.Router.FramesRouted,
					"parse_errors", stats.Router.ParseErrors,
				)
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("streamtail exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("streamtail stopped")
}
