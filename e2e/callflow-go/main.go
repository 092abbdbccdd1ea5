// Command callflow-go is a local end-to-end probe for a running relay.
//
// It connects two WebSocket clients, identifies them as two users, and walks
// the full call flow: call-user -> incoming-call, accept-call ->
// call-accepted, ice-candidate both ways, end-call -> call-ended. Exit code 0
// means every expected frame arrived.
//
// Usage:
//
//	RELAY_WS_URL=ws://127.0.0.1:8080/ws go run ./e2e/callflow-go
//
// Set API_KEY when the relay runs with AUTH_MODE=api_key.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type frame struct {
	Type      string          `json:"type"`
	ConnID    string          `json:"connId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Status    string          `json:"status,omitempty"`
	To        string          `json:"to,omitempty"`
	From      string          `json:"from,omitempty"`
	Signal    json.RawMessage `json:"signal,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	APIKey    string          `json:"apiKey,omitempty"`
}

func main() {
	wsURL := envOrDefault("RELAY_WS_URL", "ws://127.0.0.1:8080/ws")
	apiKey := os.Getenv("API_KEY")

	alice := dial(wsURL, apiKey, "alice")
	defer alice.Close()
	bob := dial(wsURL, apiKey, "bob")
	defer bob.Close()

	// Both ends see bob come online; drain presence frames until then.
	awaitFrame(alice, func(f frame) bool {
		return f.Type == "user-status" && f.UserID == "bob" && f.Status == "online"
	}, "alice sees bob online")

	send(alice, frame{Type: "call-user", To: "bob", From: "alice", Signal: json.RawMessage(`{"sdp":"probe-offer"}`)})
	awaitFrame(bob, func(f frame) bool {
		return f.Type == "incoming-call" && f.From == "alice"
	}, "bob receives incoming-call")

	send(bob, frame{Type: "accept-call", To: "alice", Signal: json.RawMessage(`{"sdp":"probe-answer"}`)})
	awaitFrame(alice, func(f frame) bool {
		return f.Type == "call-accepted"
	}, "alice receives call-accepted")

	send(alice, frame{Type: "ice-candidate", To: "bob", Candidate: json.RawMessage(`{"candidate":"probe-candidate"}`)})
	awaitFrame(bob, func(f frame) bool {
		return f.Type == "ice-candidate"
	}, "bob receives ice-candidate")

	send(alice, frame{Type: "end-call", To: "bob"})
	awaitFrame(bob, func(f frame) bool {
		return f.Type == "call-ended"
	}, "bob receives call-ended")

	fmt.Println("callflow ok")
}

func dial(wsURL, apiKey, userID string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		fail("dial %s: %v", wsURL, err)
	}
	if apiKey != "" {
		send(conn, frame{Type: "auth", APIKey: apiKey})
	}
	awaitFrame(conn, func(f frame) bool { return f.Type == "ready" }, userID+" ready")
	send(conn, frame{Type: "user-online", UserID: userID})
	return conn
}

func send(conn *websocket.Conn, f frame) {
	if err := conn.WriteJSON(f); err != nil {
		fail("write %s: %v", f.Type, err)
	}
}

func awaitFrame(conn *websocket.Conn, match func(frame) bool, what string) frame {
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			fail("%s: %v", what, err)
		}
		if match(f) {
			fmt.Printf("ok: %s\n", what)
			return f
		}
		if time.Now().After(deadline) {
			fail("%s: timed out", what)
		}
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
