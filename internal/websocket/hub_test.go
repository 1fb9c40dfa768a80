package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// dialPair upgrades one connection through a throwaway server and returns
// both ends.
func dialPair(t *testing.T, srv *httptest.Server, serverConns chan *websocket.Conn) (client, server *websocket.Conn) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-serverConns:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for the server side of the connection")
	}
	return client, server
}

func TestBroadcast_DropsDeadConnections(t *testing.T) {
	serverConns := make(chan *websocket.Conn, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	defer srv.Close()

	_, dead := dialPair(t, srv, serverConns)
	liveClient, live := dialPair(t, srv, serverConns)

	dead.Close()

	h := NewHub(nil, nil, zap.NewNop())
	h.connections = []*websocket.Conn{dead, live}

	h.broadcast([]byte("hello"))

	h.mu.RLock()
	remaining := len(h.connections)
	h.mu.RUnlock()
	if remaining != 1 {
		t.Fatalf("Expected the dead connection dropped, got %d connections", remaining)
	}

	// The surviving peer still gets the message.
	liveClient.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := liveClient.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if string(msg) != "hello" {
		t.Errorf("Expected %q, got %q", "hello", string(msg))
	}
}

func TestBroadcast_CancelsSubscriptionWhenEmpty(t *testing.T) {
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	defer srv.Close()

	_, dead := dialPair(t, srv, serverConns)
	dead.Close()

	cancelled := false
	h := NewHub(nil, nil, zap.NewNop())
	h.connections = []*websocket.Conn{dead}
	h.cancel = func() { cancelled = true }

	h.broadcast([]byte("hello"))

	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.connections) != 0 {
		t.Errorf("Expected no connections left, got %d", len(h.connections))
	}
	if !cancelled || h.cancel != nil {
		t.Error("Expected the subscription cancelled once the last connection dropped")
	}
}
