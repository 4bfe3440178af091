package server_test

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/wsrelay/internal/server"
	"github.com/gorilla/websocket"
)

const readTimeout = 2 * time.Second

// quietLogger discards relay logs so test output stays readable.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startRelay runs a relay behind an httptest server and returns it with its
// WebSocket URL. Both are torn down when the test ends.
func startRelay(t *testing.T, cfg *server.Config) (*server.Relay, *httptest.Server, string) {
	t.Helper()

	relay := server.NewRelay(cfg, quietLogger())
	relay.Start()

	testServer := httptest.NewServer(server.SetupRoutes(relay))
	t.Cleanup(testServer.Close)
	t.Cleanup(func() {
		if err := relay.Shutdown(2 * time.Second); err != nil {
			t.Logf("relay shutdown: %v", err)
		}
	})

	return relay, testServer, "ws" + strings.TrimPrefix(testServer.URL, "http") + "/"
}

// connect dials the relay and waits until the hub counts the new connection.
func connect(t *testing.T, relay *server.Relay, url string) *websocket.Conn {
	t.Helper()

	want := relay.Hub().Stats().ActiveConnections + 1
	conn := dial(t, url, nil)
	waitForConnections(t, relay, want)
	return conn
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(url, header)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// waitForConnections polls hub stats until the active count equals want.
func waitForConnections(t *testing.T, relay *server.Relay, want int) {
	t.Helper()

	deadline := time.Now().Add(readTimeout)
	for time.Now().Before(deadline) {
		if relay.Hub().Stats().ActiveConnections == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d active connections, got %d", want, relay.Hub().Stats().ActiveConnections)
}

func sendText(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		t.Fatalf("Failed to send %q: %v", text, err)
	}
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	messageType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	if messageType != websocket.TextMessage {
		t.Fatalf("Expected text frame, got type %d", messageType)
	}
	return string(data)
}

// expectTexts reads len(want) messages and compares them in order.
func expectTexts(t *testing.T, conn *websocket.Conn, want ...string) {
	t.Helper()
	for i, expected := range want {
		if got := readText(t, conn); got != expected {
			t.Fatalf("Message %d: expected %q, got %q", i, expected, got)
		}
	}
}

func expectNoMessage(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	if _, data, err := conn.ReadMessage(); err == nil {
		t.Fatalf("Expected no message, got %q", data)
	}
}

// expectClosed reads until the connection reports an error.
func expectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				t.Fatal("Connection was not closed by the server")
			}
			return
		}
	}
}

// waitForLogged polls hub stats until the log holds at least want messages.
func waitForLogged(t *testing.T, relay *server.Relay, want int) {
	t.Helper()

	deadline := time.Now().Add(readTimeout)
	for time.Now().Before(deadline) {
		if relay.Hub().Stats().LoggedMessages >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Expected at least %d logged messages, got %d", want, relay.Hub().Stats().LoggedMessages)
}
