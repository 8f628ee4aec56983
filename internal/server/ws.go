package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func registerWSRoute(mux *http.ServeMux, hub *Hub, controls ControlHooks) {
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("ws upgrade", "component", "hub", "err", err)
			return
		}
		defer func() { _ = conn.Close() }()

		// Subscribe before the greeting so nothing between the status
		// snapshot and the first event is lost.
		ch := hub.Subscribe()
		defer hub.Unsubscribe(ch)

		greeting, err := json.Marshal(ConnectionEvent{
			Event:     newEvent("connection", hub.now()),
			Status:    controls.status(),
			Connected: true,
		})
		if err != nil {
			return
		}
		if err := write(conn, websocket.TextMessage, greeting); err != nil {
			return
		}

		closed := make(chan struct{})
		go readUntilClosed(conn, closed)

		ping := time.NewTicker(pingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-closed:
				return
			case <-ping.C:
				if err := write(conn, websocket.PingMessage, nil); err != nil {
					return
				}
			case msg := <-ch:
				if err := write(conn, websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}
	})
}

// readUntilClosed drains the socket. The UI never sends, so reading only
// serves pongs and notices the close.
func readUntilClosed(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func write(conn *websocket.Conn, kind int, payload []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(kind, payload)
}
