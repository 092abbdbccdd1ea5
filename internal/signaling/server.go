package signaling

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meshtalk/call-relay/internal/auth"
	"github.com/meshtalk/call-relay/internal/config"
	"github.com/meshtalk/call-relay/internal/directory"
	"github.com/meshtalk/call-relay/internal/metrics"
	"github.com/meshtalk/call-relay/internal/origin"
	"github.com/meshtalk/call-relay/internal/ratelimit"
)

// Server is the HTTP handler for the signaling WebSocket endpoint.
//
// It enforces origin checks, authentication (api_key/jwt, via query string or
// a first auth frame), message size and rate limits, and keepalive before
// frames reach the hub.
type Server struct {
	cfg      config.Config
	log      *slog.Logger
	metrics  *metrics.Metrics
	hub      *Hub
	verifier auth.Verifier
	upgrader websocket.Upgrader
	clock    ratelimit.Clock
}

func NewServer(cfg config.Config, log *slog.Logger, m *metrics.Metrics) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}

	var (
		verifier auth.Verifier
		resolver directory.IdentityResolver = directory.ClaimedIdentity{}
	)
	switch cfg.AuthMode {
	case config.AuthModeNone:
		// No verifier; every connection is admitted and identity is claimed.
	case config.AuthModeJWT:
		v := auth.NewJWTVerifier(cfg.JWTSecret)
		verifier = v
		resolver = directory.SubjectResolver{ExtractSubject: v.VerifyAndExtractSubject}
	default:
		v, err := auth.NewVerifier(cfg)
		if err != nil {
			return nil, err
		}
		verifier = v
	}

	hub := NewHub(HubConfig{
		MaxConnections: cfg.MaxConnections,
		Resolver:       resolver,
		Logger:         log,
		Metrics:        m,
	})

	return &Server{
		cfg:      cfg,
		log:      log,
		metrics:  m,
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return origin.Allowed(r.Header.Get("Origin"), r.Host, cfg.AllowedOrigins)
			},
		},
		clock: ratelimit.RealClock{},
	}, nil
}

// Hub exposes the connection hub, for readiness probes and tests.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	credential, ok := s.authenticate(conn, r)
	if !ok {
		return
	}

	c := newClient(conn, credential, s.cfg.SendQueueMaxBytes, s.cfg.SignalingWSPingInterval)
	if err := s.hub.add(c); err != nil {
		writeClose(conn, websocket.CloseTryAgainLater, "too many connections")
		return
	}
	defer func() {
		s.hub.remove(c)
		c.close()
		s.log.Info("ws_disconnected", "conn_id", c.id)
	}()

	go c.writeLoop()
	go c.pingLoop()

	if frame, err := readyFrame(c.id); err == nil {
		c.send(frame)
	}
	s.log.Info("ws_connected", "conn_id", c.id, "remote_addr", r.RemoteAddr)

	rate := int64(s.cfg.MaxSignalingMessagesPerSecond)
	limiter := ratelimit.NewTokenBucket(s.clock, rate, rate)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.SignalingWSIdleTimeout))
	})

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.SignalingWSIdleTimeout))

		msgType, msgReader, err := conn.NextReader()
		if err != nil {
			if isTimeout(err) {
				writeClose(conn, websocket.CloseNormalClosure, "idle timeout")
			}
			return
		}
		if msgType != websocket.TextMessage {
			writeClose(conn, websocket.CloseUnsupportedData, "expected text message")
			return
		}

		data, err := readLimited(msgReader, s.cfg.MaxSignalingMessageBytes)
		if err != nil {
			if errors.Is(err, errMessageTooLarge) {
				writeClose(conn, websocket.CloseMessageTooBig, "message too large")
				return
			}
			writeClose(conn, websocket.CloseInternalServerErr, "failed to read message")
			return
		}

		if !limiter.Allow(1) {
			s.metrics.Inc(metrics.RateLimited)
			writeClose(conn, websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}

		msg, err := parseClientMessage(data)
		if err != nil {
			// Malformed frames fail only that relay attempt, never the
			// connection.
			s.metrics.Inc(metrics.RelayMalformed)
			s.log.Debug("message_dropped", "conn_id", c.id, "error", err)
			continue
		}

		s.hub.handle(c, msg)
	}
}

// authenticate resolves the connection's credential: query string first,
// otherwise a single auth frame within the auth timeout. On failure a close
// frame has already been written.
func (s *Server) authenticate(conn *websocket.Conn, r *http.Request) (string, bool) {
	if s.cfg.AuthMode == config.AuthModeNone {
		return "", true
	}

	cred, err := auth.CredentialFromQuery(s.cfg.AuthMode, r.URL.Query())
	if err == nil {
		if err := s.verifier.Verify(cred); err != nil {
			s.metrics.Inc(metrics.AuthFailure)
			writeClose(conn, websocket.ClosePolicyViolation, "invalid credentials")
			return "", false
		}
		return cred, true
	}
	if !errors.Is(err, auth.ErrMissingCredentials) {
		writeClose(conn, websocket.CloseInternalServerErr, "invalid auth configuration")
		return "", false
	}

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.SignalingAuthTimeout))

	msgType, msgReader, err := conn.NextReader()
	if err != nil {
		if isTimeout(err) {
			s.metrics.Inc(metrics.AuthFailure)
			writeClose(conn, websocket.ClosePolicyViolation, "authentication timeout")
		}
		return "", false
	}
	if msgType != websocket.TextMessage {
		writeClose(conn, websocket.CloseUnsupportedData, "expected text message")
		return "", false
	}

	data, err := readLimited(msgReader, s.cfg.MaxSignalingMessageBytes)
	if err != nil {
		writeClose(conn, websocket.ClosePolicyViolation, "authentication required")
		return "", false
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Type != string(messageTypeAuth) {
		s.metrics.Inc(metrics.AuthFailure)
		writeClose(conn, websocket.ClosePolicyViolation, "authentication required")
		return "", false
	}

	var authMsg auth.WireAuthMessage
	if err := json.Unmarshal(data, &authMsg); err != nil {
		writeClose(conn, websocket.CloseUnsupportedData, "invalid auth message")
		return "", false
	}

	cred, err = auth.CredentialFromAuthMessage(s.cfg.AuthMode, authMsg)
	if err != nil {
		s.metrics.Inc(metrics.AuthFailure)
		writeClose(conn, websocket.ClosePolicyViolation, "missing credentials")
		return "", false
	}
	if err := s.verifier.Verify(cred); err != nil {
		s.metrics.Inc(metrics.AuthFailure)
		writeClose(conn, websocket.ClosePolicyViolation, "invalid credentials")
		return "", false
	}

	_ = conn.SetReadDeadline(time.Time{})
	return cred, true
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

var errMessageTooLarge = errors.New("message too large")

func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return nil, errMessageTooLarge
	}
	b, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > max {
		return nil, errMessageTooLarge
	}
	return b, nil
}
