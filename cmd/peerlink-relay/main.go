// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/peerlink/lib/config"
	"github.com/bureau-foundation/peerlink/lib/version"
	"github.com/bureau-foundation/peerlink/signaling"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		listenAddr string
		logFormat  string
		verbose    bool
	)

	flagSet := pflag.NewFlagSet("peerlink-relay", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to peerlink.yaml (default: $PEERLINK_CONFIG, else built-in defaults)")
	flagSet.StringVarP(&listenAddr, "listen", "l", "", "TCP address to listen on (overrides relay.listen)")
	flagSet.StringVar(&logFormat, "log-format", "", "log output format: text or json (overrides log.format)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("peerlink-relay")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Relay.Listen = listenAddr
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := cfg.Log.NewLogger(os.Stderr, verbose)

	relay := signaling.NewRelay(logger)
	server := &http.Server{
		Addr:              cfg.Relay.Listen,
		Handler:           relay,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("signaling relay listening", "address", cfg.Relay.Listen, "version", version.Info())
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", cfg.Relay.Listen, err)
	case <-ctx.Done():
	}

	logger.Info("shutting down signaling relay")
	relay.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// loadConfig reads --config, then $PEERLINK_CONFIG, and falls back to
// the built-in defaults when neither is set.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv(config.EnvVar) != "" {
		return config.Load()
	}
	return config.Default(), nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `peerlink-relay - WebSocket signaling relay for peerlink

Peers connect to ws://<listen>/?peer=<id> and exchange JSON envelopes
{"from", "to", "signal"}. The relay stamps "from" with the sending
socket's id and forwards each envelope to the socket registered as "to".

Usage:
  peerlink-relay [flags]

Examples:
  # Listen on the default :8765
  peerlink-relay

  # Listen on loopback only, JSON logs
  peerlink-relay --listen 127.0.0.1:9000 --log-format json

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
