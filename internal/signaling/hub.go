package signaling

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/meshtalk/call-relay/internal/directory"
	"github.com/meshtalk/call-relay/internal/metrics"
	"github.com/meshtalk/call-relay/internal/presence"
)

var ErrTooManyConnections = errors.New("too many connections")

// HubConfig wires the hub's collaborators. Nil Resolver, Contacts, Logger,
// Metrics and Now fall back to claimed identity, an open directory, the
// default logger, a fresh registry and the real clock.
type HubConfig struct {
	MaxConnections int

	Resolver directory.IdentityResolver
	Contacts directory.ContactDirectory

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Hub owns the set of live connections and the presence registry, and routes
// every client frame. Registry mutations happen only here (identify and
// disconnect); relay dispatch only reads.
type Hub struct {
	log      *slog.Logger
	metrics  *metrics.Metrics
	registry *presence.Registry
	resolver directory.IdentityResolver
	contacts directory.ContactDirectory
	now      func() time.Time

	maxConns int

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(cfg HubConfig) *Hub {
	h := &Hub{
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
		resolver: cfg.Resolver,
		contacts: cfg.Contacts,
		now:      cfg.Now,
		maxConns: cfg.MaxConnections,
		clients:  make(map[*client]struct{}),
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	if h.metrics == nil {
		h.metrics = metrics.New()
	}
	if h.resolver == nil {
		h.resolver = directory.ClaimedIdentity{}
	}
	if h.contacts == nil {
		h.contacts = directory.OpenDirectory{}
	}
	if h.now == nil {
		h.now = time.Now
	}
	h.registry = presence.NewRegistry(presence.SinkFunc(h.presenceChanged))
	return h
}

// Registry exposes the presence registry for read-side collaborators.
func (h *Hub) Registry() *presence.Registry { return h.registry }

func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) error {
	h.mu.Lock()
	if h.maxConns > 0 && len(h.clients) >= h.maxConns {
		h.mu.Unlock()
		h.metrics.Inc(metrics.TooManyConns)
		return ErrTooManyConnections
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.metrics.Inc(metrics.WSConnections)
	return nil
}

// remove unbinds the connection. The registry removal is guarded by handle
// identity, so a stale disconnect racing a reconnect cannot evict the newer
// connection's entry.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, present := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if !present {
		return
	}

	h.metrics.Inc(metrics.WSDisconnects)
	if userID := c.currentUserID(); userID != "" {
		h.registry.RemoveIfCurrent(userID, c)
	}
}

// presenceChanged fans a user-status frame out to every open connection,
// identified or not.
func (h *Hub) presenceChanged(userID string, online bool) {
	if online {
		h.metrics.Inc(metrics.PresenceOnline)
	} else {
		h.metrics.Inc(metrics.PresenceOffline)
	}

	frame, err := userStatusFrame(userID, online)
	if err != nil {
		return
	}

	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if !c.send(frame) {
			h.metrics.Inc(metrics.SendQueueDropped)
		}
	}
	h.log.Debug("presence_changed", "user_id", userID, "online", online)
}

// handle dispatches one decoded client frame. Every failure mode here is a
// drop: nothing is reported back to the sender.
func (h *Hub) handle(c *client, msg clientMessage) {
	switch msg.Type {
	case messageTypeAuth:
		// Authentication is finished before frames reach the hub; a repeat
		// auth frame is ignored.
		return

	case messageTypeUserOnline:
		userID, err := h.resolver.ResolveIdentity(c.credential, msg.UserID)
		if err != nil {
			h.metrics.Inc(metrics.AuthFailure)
			h.log.Warn("identity_rejected", "conn_id", c.id, "claimed_user_id", msg.UserID)
			return
		}
		c.setUserID(userID)
		h.registry.SetOnline(userID, c)
		h.log.Info("user_online", "conn_id", c.id, "user_id", userID)

	case messageTypeCallUser:
		h.relay(c, msg.To, func() ([]byte, error) { return incomingCallFrame(msg.From, msg.Signal) }, true)

	case messageTypeAcceptCall:
		h.relay(c, msg.To, func() ([]byte, error) { return callAcceptedFrame(msg.Signal) }, false)

	case messageTypeRejectCall:
		h.relay(c, msg.To, callRejectedFrame, false)

	case messageTypeEndCall:
		h.relay(c, msg.To, callEndedFrame, false)

	case messageTypeICECandidate:
		h.relay(c, msg.To, func() ([]byte, error) { return iceCandidateFrame(msg.Candidate) }, false)

	case messageTypeSendMessage:
		timestamp := h.now().UTC().Format(time.RFC3339)
		h.relay(c, msg.RecipientID, func() ([]byte, error) {
			return receiveMessageFrame(msg.ConversationID, msg.SenderID, msg.Content, timestamp)
		}, true)

	case messageTypeTyping:
		h.relay(c, msg.RecipientID, func() ([]byte, error) { return userTypingFrame(msg.UserID, *msg.IsTyping) }, false)
	}
}

// relay is the single lookup-then-forward path. checkContacts applies the
// advisory contact directory; a deny degrades to the same silent drop as an
// offline target. The lookup is not transactional with a concurrent
// disconnect: a target that vanishes between lookup and enqueue just loses
// the frame.
func (h *Hub) relay(sender *client, targetUserID string, build func() ([]byte, error), checkContacts bool) {
	senderUserID := sender.currentUserID()
	if senderUserID == "" {
		h.metrics.Inc(metrics.RelayUnidentified)
		return
	}

	if checkContacts && !h.contacts.MayContact(senderUserID, targetUserID) {
		h.metrics.Inc(metrics.RelayUnreachable)
		h.log.Debug("relay_denied", "from", senderUserID, "to", targetUserID)
		return
	}

	conn, ok := h.registry.Lookup(targetUserID)
	if !ok {
		h.metrics.Inc(metrics.RelayUnreachable)
		h.log.Debug("relay_target_offline", "from", senderUserID, "to", targetUserID)
		return
	}
	target, ok := conn.(*client)
	if !ok {
		h.metrics.Inc(metrics.RelayUnreachable)
		return
	}

	frame, err := build()
	if err != nil {
		h.metrics.Inc(metrics.RelayMalformed)
		return
	}
	if !target.send(frame) {
		h.metrics.Inc(metrics.SendQueueDropped)
		return
	}
	h.metrics.Inc(metrics.RelayForwarded)
}
