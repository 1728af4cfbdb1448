// loom-relay - the HTTP relay between Loom clients and the Groq API.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loomchat/loom/internal/config"
	"github.com/loomchat/loom/internal/relay"
	"github.com/loomchat/loom/internal/upstream"
)

var Version = "0.1.0"

func main() {
	var (
		port       = flag.Int("port", 0, "listen port (overrides config and PORT)")
		configPath = flag.String("config", "", "path to config file")
		watch      = flag.Bool("watch", false, "log when the config file changes on disk")
		version    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("loom-relay %s\n", Version)
		return
	}

	if err := run(*port, *configPath, *watch); err != nil {
		log.Fatalf("RELAY_FATAL | err=%v", err)
	}
}

func run(port int, configPath string, watch bool) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Relay.Port = port
	}

	up := upstream.NewClient(cfg.Upstream.APIKey).
		WithModel(cfg.Upstream.Model).
		WithLabels(cfg.Upstream.ModelLabel, cfg.Upstream.ProviderLabel).
		WithSampling(cfg.Upstream.Temperature, cfg.Upstream.MaxTokens).
		WithTimeout(cfg.UpstreamTimeout())
	if cfg.Upstream.BaseURL != "" {
		up = up.WithBaseURL(cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.FrontendOrigin != "" {
		up = up.WithSite(cfg.Upstream.FrontendOrigin, "loom")
	}

	if !up.IsConfigured() {
		log.Printf("RELAY_UNCONFIGURED | set GROQ_API_KEY to enable chat requests")
	}

	srv := relay.NewServer(cfg.Relay.Port, up)
	if len(cfg.Relay.AllowedOrigins) > 0 {
		cors := relay.DefaultCORSConfig()
		cors.AllowedOrigins = cfg.Relay.AllowedOrigins
		srv = srv.WithCORS(cors)
	}

	if watch {
		if watchPath := watchTarget(configPath); watchPath != "" {
			watcher, werr := config.Watch(watchPath, func(updated *config.Config) {
				log.Printf("CONFIG_CHANGED | model=%s port=%d (restart to apply)",
					updated.Upstream.Model, updated.Relay.Port)
			})
			if werr != nil {
				log.Printf("CONFIG_WATCH_UNAVAILABLE | err=%v", werr)
			} else {
				defer watcher.Close()
			}
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("RELAY_SHUTDOWN | signal=%s", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

// watchTarget picks the config file to watch: the --config path when one was
// given, otherwise the default location.
func watchTarget(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if path, err := config.Path(); err == nil {
		return path
	}
	return ""
}
