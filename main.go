// Loom - a terminal chat client for the Loom relay.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/loomchat/loom/internal/cli"
	"github.com/loomchat/loom/internal/client"
	"github.com/loomchat/loom/internal/config"
	"github.com/loomchat/loom/internal/session"
	"github.com/loomchat/loom/internal/storage"
	"github.com/loomchat/loom/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

func main() {
	var (
		plain      = flag.Bool("plain", false, "use the plain terminal loop instead of the full-screen view")
		relayURL   = flag.String("relay", "", "relay base URL (overrides config)")
		configPath = flag.String("config", "", "path to config file")
		version    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("loom %s (%s)\n", Version, GitCommit)
		return
	}

	if err := run(*plain, *relayURL, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "loom: %v\n", err)
		os.Exit(1)
	}
}

func run(plain bool, relayURL, configPath string) error {
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
	if relayURL != "" {
		cfg.Client.RelayURL = relayURL
	}

	dbPath, err := cfg.StoragePath()
	if err != nil {
		return err
	}
	store, err := storage.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	sess := session.New(store)
	relay := client.New(cfg.Client.RelayURL).WithTimeout(cfg.ClientTimeout())

	if plain || !cli.IsTTY() {
		return cli.NewREPL(cfg, sess, relay).Run()
	}

	m := chat.New(cfg, sess, relay)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
