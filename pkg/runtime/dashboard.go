// ruled/pkg/runtime/dashboard.go

package runtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ruled/pkg/logging"
)

// Dashboard serves engine diagnostics: a stats endpoint and a websocket
// feed broadcasting the same stats on an interval.
type Dashboard struct {
	engine         *Engine
	port           int
	clients        map[*websocket.Conn]bool
	clientsMutex   sync.Mutex
	updateInterval time.Duration
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now. In production, this should be more restrictive.
	},
}

func NewDashboard(engine *Engine, port int, updateInterval time.Duration) *Dashboard {
	return &Dashboard{
		engine:         engine,
		port:           port,
		clients:        make(map[*websocket.Conn]bool),
		updateInterval: updateInterval,
	}
}

func (d *Dashboard) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", d.handleHome)
	mux.HandleFunc("/stats", d.handleStats)
	mux.HandleFunc("/events", d.handleWebSocket)

	go d.broadcastUpdates()

	addr := fmt.Sprintf(":%d", d.port)
	logging.Logger.Info().Str("addr", addr).Msg("Dashboard starting")
	return http.ListenAndServe(addr, mux)
}

func (d *Dashboard) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>ruled dashboard</title></head>
<body>
<h1>ruled dashboard</h1>
<p>Stats: <a href="/stats">/stats</a> &mdash; live feed on <code>/events</code>.</p>
</body>
</html>`)
}

func (d *Dashboard) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(d.engine.Stats()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Logger.Error().Err(err).Msg("Error upgrading to WebSocket")
		return
	}
	defer conn.Close()

	d.clientsMutex.Lock()
	d.clients[conn] = true
	d.clientsMutex.Unlock()

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}

	d.clientsMutex.Lock()
	delete(d.clients, conn)
	d.clientsMutex.Unlock()
}

func (d *Dashboard) broadcastUpdates() {
	ticker := time.NewTicker(d.updateInterval)
	defer ticker.Stop()

	for range ticker.C {
		payload, err := json.Marshal(d.engine.Stats())
		if err != nil {
			logging.Logger.Error().Err(err).Msg("Failed to marshal dashboard stats")
			continue
		}

		d.clientsMutex.Lock()
		for conn := range d.clients {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				conn.Close()
				delete(d.clients, conn)
			}
		}
		d.clientsMutex.Unlock()
	}
}
