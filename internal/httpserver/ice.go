package httpserver

import (
	"net/http"
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/meshtalk/call-relay/internal/turnrest"
)

// handleICEServers returns the ICE server list clients should use for their
// peer connections. With TURN REST configured, per-request ephemeral
// credentials replace any static TURN credentials; a connId query parameter
// scopes the credential to a signaling connection so coturn logs line up.
func (s *Server) handleICEServers(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.ICEConfigError(); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		return
	}

	servers := s.cfg.ICEServers
	resp := map[string]any{"iceServers": servers}

	if s.opts.TURNREST != nil {
		var (
			creds turnrest.Credentials
			err   error
		)
		if connID := r.URL.Query().Get("connId"); connID != "" {
			creds, err = s.opts.TURNREST.Issue(connID)
			if err != nil {
				WriteJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid connId"})
				return
			}
		} else {
			creds, err = s.opts.TURNREST.IssueRandom()
			if err != nil {
				WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "credential issuance failed"})
				return
			}
		}
		resp["iceServers"] = withTURNRESTCredentials(servers, creds.Username, creds.Credential)
		resp["expiresAt"] = creds.ExpiryUnix
		if realm := s.cfg.TURNREST.Realm; realm != "" {
			resp["realm"] = realm
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}

func withTURNRESTCredentials(servers []webrtc.ICEServer, username, credential string) []webrtc.ICEServer {
	if len(servers) == 0 {
		// Preserve empty (non-nil) slices so JSON responses consistently
		// encode as `[]` rather than `null`.
		return servers
	}
	out := make([]webrtc.ICEServer, len(servers))
	for i, server := range servers {
		out[i] = server
		if hasTURNURL(server) {
			out[i].Username = username
			out[i].Credential = credential
		}
	}
	return out
}

func hasTURNURL(server webrtc.ICEServer) bool {
	for _, raw := range server.URLs {
		url := strings.ToLower(strings.TrimSpace(raw))
		if strings.HasPrefix(url, "turn:") || strings.HasPrefix(url, "turns:") {
			return true
		}
	}
	return false
}
