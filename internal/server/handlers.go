// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, stats, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// WebSocketHandler accepts relay connections on any path. A plain HTTP
// request to "/" gets the health response; other paths are not found.
func (r *Relay) WebSocketHandler(w http.ResponseWriter, req *http.Request) {
	if !websocket.IsWebSocketUpgrade(req) {
		if req.URL.Path != "/" {
			http.NotFound(w, req)
			return
		}
		HealthHandler(w, req)
		return
	}
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	r.serveWebSocket(w, req)
}

// HealthHandler responds with a plain text liveness message.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Relay server is running!")
}

// StatsHandler reports the hub's connection and log counts as JSON.
func (r *Relay) StatsHandler(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(r.hub.Stats()); err != nil {
		r.logger.Warn("error writing stats response", "err", err)
	}
}

// TestPageHandler serves a minimal page for trying the relay from a browser.
// It connects back to the host that served it.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>Relay Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; }
        .status { margin: 10px 0; padding: 5px; }
        .connected { background-color: #d4edda; }
        .disconnected { background-color: #f8d7da; }
    </style>
</head>
<body>
    <h1>Relay Test</h1>
    <div id="status" class="status disconnected">Disconnected</div>
    <input type="text" id="input" placeholder="Type a message..." disabled>
    <button id="send" disabled>Send</button>
    <div id="log"></div>
    <script>
        const log = document.getElementById('log');
        const input = document.getElementById('input');
        const send = document.getElementById('send');
        const status = document.getElementById('status');
        const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
        const ws = new WebSocket(scheme + location.host + '/');

        function append(text) {
            const line = document.createElement('div');
            line.textContent = text;
            log.appendChild(line);
            log.scrollTop = log.scrollHeight;
        }

        function setConnected(connected) {
            status.textContent = connected ? 'Connected' : 'Disconnected';
            status.className = 'status ' + (connected ? 'connected' : 'disconnected');
            input.disabled = !connected;
            send.disabled = !connected;
        }

        ws.onopen = () => setConnected(true);
        ws.onclose = () => setConnected(false);
        ws.onmessage = (event) => append(event.data);

        function sendMessage() {
            if (input.value && ws.readyState === WebSocket.OPEN) {
                ws.send(input.value);
                input.value = '';
            }
        }
        send.onclick = sendMessage;
        input.addEventListener('keypress', (e) => { if (e.key === 'Enter') sendMessage(); });
    </script>
</body>
</html>`
