// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"github.com/pion/webrtc/v4"
)

// DefaultSTUNServer is used when a caller configures no ICE servers.
const DefaultSTUNServer = "stun:stun.l.google.com:19302"

// ICEServer is one STUN or TURN server entry. Order matters: ICE
// gathering consults servers in sequence.
type ICEServer struct {
	URLs       []string `json:"urls" yaml:"urls"`
	Username   string   `json:"username,omitempty" yaml:"username,omitempty"`
	Credential string   `json:"credential,omitempty" yaml:"credential,omitempty"`
}

// DefaultICEServers returns the single public STUN server used when a
// caller supplies none.
func DefaultICEServers() []ICEServer {
	return []ICEServer{{URLs: []string{DefaultSTUNServer}}}
}

// pionICEServers converts servers to pion configuration entries.
func pionICEServers(servers []ICEServer) []webrtc.ICEServer {
	if len(servers) == 0 {
		return nil
	}
	converted := make([]webrtc.ICEServer, 0, len(servers))
	for _, server := range servers {
		entry := webrtc.ICEServer{
			URLs:     append([]string(nil), server.URLs...),
			Username: server.Username,
		}
		if server.Credential != "" {
			entry.Credential = server.Credential
		}
		converted = append(converted, entry)
	}
	return converted
}
