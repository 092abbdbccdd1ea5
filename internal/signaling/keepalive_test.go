package signaling

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocket_IdleTimeoutClosesWithoutPong(t *testing.T) {
	cfg := testConfig()
	cfg.SignalingWSIdleTimeout = 500 * time.Millisecond
	cfg.SignalingWSPingInterval = 50 * time.Millisecond
	ts, _ := startServer(t, cfg)

	conn := dialWS(t, ts, "")

	pingSeen := make(chan struct{}, 1)
	conn.SetPingHandler(func(string) error {
		select {
		case pingSeen <- struct{}{}:
		default:
		}
		// Intentionally do not respond with pong.
		return nil
	})

	errCh := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				errCh <- err
				return
			}
		}
	}()

	select {
	case <-pingSeen:
	case err := <-errCh:
		t.Fatalf("connection closed before receiving ping: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for server ping")
	}

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected server to close the websocket")
		}
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			t.Fatalf("expected close normal closure, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for server to close idle websocket")
	}
}

func TestWebSocket_PongKeepsConnectionOpenBeyondIdleTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.SignalingWSIdleTimeout = 500 * time.Millisecond
	cfg.SignalingWSPingInterval = 50 * time.Millisecond
	ts, _ := startServer(t, cfg)

	conn := dialWS(t, ts, "")

	pingSeen := make(chan struct{}, 1)
	conn.SetPingHandler(func(appData string) error {
		select {
		case pingSeen <- struct{}{}:
		default:
		}
		// Respond with pong so the server extends the read deadline.
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	errCh := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				errCh <- err
				return
			}
		}
	}()

	select {
	case <-pingSeen:
	case err := <-errCh:
		t.Fatalf("connection closed before receiving ping: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for server ping")
	}

	// Wait longer than the idle timeout. The read goroutine keeps answering
	// pings with pongs.
	time.Sleep(cfg.SignalingWSIdleTimeout + 2*cfg.SignalingWSPingInterval)

	select {
	case err := <-errCh:
		t.Fatalf("unexpected close before idle timeout elapsed: %v", err)
	default:
	}

	_ = conn.Close()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for read goroutine to exit")
	}
}
