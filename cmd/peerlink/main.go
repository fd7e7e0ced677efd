// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/peerlink/lib/config"
	"github.com/bureau-foundation/peerlink/lib/event"
	"github.com/bureau-foundation/peerlink/lib/message"
	"github.com/bureau-foundation/peerlink/lib/peercrypt"
	"github.com/bureau-foundation/peerlink/lib/version"
	"github.com/bureau-foundation/peerlink/peer"
	"github.com/bureau-foundation/peerlink/session"
	"github.com/bureau-foundation/peerlink/signaling"
	"github.com/bureau-foundation/peerlink/transport"
)

var _ session.Signaler = (*signaling.Client)(nil)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath     string
		peerID         string
		remotePeer     string
		signalingURL   string
		iceServers     []string
		connectTimeout string
		noEncrypt      bool
		logFormat      string
		verbose        bool
	)

	flagSet := pflag.NewFlagSet("peerlink", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to peerlink.yaml (default: $PEERLINK_CONFIG, else built-in defaults)")
	flagSet.StringVar(&peerID, "id", "", "local peer id on the relay (overrides peer.id)")
	flagSet.StringVar(&remotePeer, "peer", "", "peer id to dial as initiator; omit to wait for offers")
	flagSet.StringVar(&signalingURL, "signaling", "", "relay WebSocket URL (overrides signaling.server)")
	flagSet.StringSliceVar(&iceServers, "ice", nil, "STUN/TURN URL, repeatable (overrides ice_servers)")
	flagSet.StringVar(&connectTimeout, "connect-timeout", "", "give up on a connecting peer after this duration (overrides peer.connect_timeout)")
	flagSet.BoolVar(&noEncrypt, "no-encrypt", false, "send message content in plaintext")
	flagSet.StringVar(&logFormat, "log-format", "", "log output format: text or json (overrides log.format)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("peerlink")
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
	if peerID != "" {
		cfg.Peer.ID = peerID
	}
	if signalingURL != "" {
		cfg.Signaling.Server = signalingURL
	}
	if len(iceServers) > 0 {
		cfg.ICEServers = []transport.ICEServer{{URLs: iceServers}}
	}
	if connectTimeout != "" {
		cfg.Peer.ConnectTimeout = connectTimeout
	}
	if noEncrypt {
		cfg.Encryption.Enabled = false
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if cfg.Peer.ID == "" {
		return errors.New("a peer id is required: pass --id or set peer.id in the config file")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	timeout, err := cfg.ConnectTimeout()
	if err != nil {
		return err
	}

	logger := cfg.Log.NewLogger(os.Stderr, verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	crypto, err := peercrypt.New()
	if err != nil {
		return err
	}

	client, err := signaling.Dial(ctx, cfg.Signaling.Server, cfg.Peer.ID, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	peers := peer.NewManager(transport.NewWebRTCFactory(logger), peer.Options{
		SignalingServer: cfg.Signaling.Server,
		ICEServers:      cfg.ICEServers,
		Encryption:      peer.EncryptionOptions{Enabled: cfg.Encryption.Enabled},
		ConnectTimeout:  timeout,
	}, logger)
	chat := session.New(crypto, peers, session.Options{
		LocalID:  cfg.Peer.ID,
		Encrypt:  cfg.Encryption.Enabled,
		Signaler: client,
	}, logger)
	defer chat.Close()

	output := &lineWriter{writer: os.Stdout, colors: newPalette(term.IsTerminal(int(os.Stdout.Fd())))}
	for _, name := range event.Names {
		chat.AddListener(name, func(ev peer.Event) {
			if line, ok := describeEvent(ev); ok {
				output.println(line)
			}
		})
	}

	output.println(fmt.Sprintf("* %s ready, key fingerprint %s, encryption %s",
		cfg.Peer.ID, peercrypt.Fingerprint(chat.PublicKey()), onOff(cfg.Encryption.Enabled)))

	relayDone := make(chan error, 1)
	go func() {
		relayDone <- client.Run(ctx, func(envelope signaling.Envelope) {
			if err := chat.HandleRemoteSignal(ctx, envelope.From, envelope.Signal); err != nil {
				logger.Warn("handling remote signal failed", "peer", envelope.From, "type", envelope.Signal.Type, "error", err)
			}
		})
	}()

	if remotePeer != "" {
		if err := chat.Connect(ctx, remotePeer); err != nil {
			return err
		}
	}

	inputDone := make(chan error, 1)
	go func() { inputDone <- readInput(ctx, os.Stdin, chat, output, logger) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-inputDone:
		return err
	case err := <-relayDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("signaling connection lost: %w", err)
		}
		return nil
	}
}

// readInput processes stdin lines until EOF or /quit.
func readInput(ctx context.Context, input io.Reader, chat *session.Session, output *lineWriter, logger *slog.Logger) error {
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		parsed := parseLine(scanner.Text())
		switch parsed.kind {
		case commandNone:
		case commandQuit:
			return nil
		case commandPeers:
			connected := chat.Peers().ConnectedPeers()
			if len(connected) == 0 {
				output.println("* no connected peers")
			} else {
				output.println("* connected: " + strings.Join(connected, ", "))
			}
		case commandConnect:
			if err := chat.Connect(ctx, parsed.target); err != nil {
				output.println(fmt.Sprintf("! %v", err))
			}
		case commandDirect:
			send(ctx, chat, output, parsed.target, parsed.text)
		case commandBroadcast:
			connected := chat.Peers().ConnectedPeers()
			if len(connected) == 0 {
				output.println("* no connected peers")
			}
			for _, target := range connected {
				send(ctx, chat, output, target, parsed.text)
			}
		default:
			output.println(fmt.Sprintf("! unrecognized input %q (try /peers, /connect <id>, @<id> <text>, /quit)", parsed.text))
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("reading stdin failed", "error", err)
		return err
	}
	return nil
}

func send(ctx context.Context, chat *session.Session, output *lineWriter, target, text string) {
	if _, err := chat.Send(ctx, target, message.KindText, text, nil); err != nil {
		output.println(fmt.Sprintf("! sending to %s: %v", target, err))
	}
}

// lineWriter serializes output lines from event listeners running on
// transport goroutines and the stdin loop.
type lineWriter struct {
	mu     sync.Mutex
	writer io.Writer
	colors palette
}

func (w *lineWriter) println(line string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.writer, w.colors.paint(line))
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
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
	fmt.Fprintf(os.Stderr, `peerlink - encrypted peer-to-peer chat over WebRTC

Registers with a peerlink-relay, exchanges public keys with each peer
once its data channel opens, and relays stdin lines to connected peers.

Usage:
  peerlink --id <id> [--peer <id>] [flags]

Input:
  <text>            send to every connected peer
  @<id> <text>      send to one peer
  /peers            list connected peers
  /connect <id>     dial another peer
  /quit             exit

Examples:
  # Terminal 1: wait for offers as bob
  peerlink --id bob --signaling ws://localhost:8765/

  # Terminal 2: dial bob as alice
  peerlink --id alice --peer bob --signaling ws://localhost:8765/

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
