// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/peerlink/lib/event"
	"github.com/bureau-foundation/peerlink/lib/peercrypt"
	"github.com/bureau-foundation/peerlink/peer"
)

type commandKind int

const (
	commandNone commandKind = iota
	commandBroadcast
	commandDirect
	commandPeers
	commandConnect
	commandQuit
	commandUnknown
)

// command is one parsed stdin line.
type command struct {
	kind   commandKind
	target string
	text   string
}

func parseLine(line string) command {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return command{kind: commandNone}
	case line == "/quit" || line == "/exit":
		return command{kind: commandQuit}
	case line == "/peers":
		return command{kind: commandPeers}
	case strings.HasPrefix(line, "/connect"):
		target := strings.TrimSpace(strings.TrimPrefix(line, "/connect"))
		if target == "" {
			return command{kind: commandUnknown, text: line}
		}
		return command{kind: commandConnect, target: target}
	case strings.HasPrefix(line, "/"):
		return command{kind: commandUnknown, text: line}
	case strings.HasPrefix(line, "@"):
		target, text, found := strings.Cut(line[1:], " ")
		text = strings.TrimSpace(text)
		if !found || target == "" || text == "" {
			return command{kind: commandUnknown, text: line}
		}
		return command{kind: commandDirect, target: target, text: text}
	default:
		return command{kind: commandBroadcast, text: line}
	}
}

// describeEvent renders a session event as one line of terminal output.
// It returns false for events the chat does not display.
func describeEvent(ev peer.Event) (string, bool) {
	switch ev.Name {
	case event.PeerConnected:
		return fmt.Sprintf("* connected to %s", ev.PeerID), true
	case event.PeerDisconnected:
		return fmt.Sprintf("* %s disconnected", ev.PeerID), true
	case event.PublicKeyUpdated:
		return fmt.Sprintf("* %s key fingerprint %s", ev.PeerID, peercrypt.Fingerprint(ev.PublicKey)), true
	case event.MessageReceived:
		if ev.Message == nil {
			return "", false
		}
		return fmt.Sprintf("[%s] %s", ev.PeerID, ev.Message.Content), true
	case event.EncryptionError:
		return fmt.Sprintf("! encryption error with %s: %v", ev.PeerID, ev.Err), true
	case event.ConnectionError:
		return fmt.Sprintf("! connection error with %s: %v", ev.PeerID, ev.Err), true
	}
	return "", false
}

// palette colors output lines by their prefix when stdout is a terminal.
type palette struct {
	enabled bool
	notice  lipgloss.Style
	failure lipgloss.Style
	sender  lipgloss.Style
}

func newPalette(enabled bool) palette {
	return palette{
		enabled: enabled,
		notice:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		failure: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		sender:  lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
	}
}

func (p palette) paint(line string) string {
	if !p.enabled {
		return line
	}
	switch {
	case strings.HasPrefix(line, "* "):
		return p.notice.Render(line)
	case strings.HasPrefix(line, "! "):
		return p.failure.Render(line)
	case strings.HasPrefix(line, "["):
		if end := strings.Index(line, "]"); end > 0 {
			return p.sender.Render(line[:end+1]) + line[end+1:]
		}
	}
	return line
}
