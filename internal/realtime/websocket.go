package realtime

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Gee2424/HubFreelance-sub001/internal/data"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// EventMessageInserted is the type of WebSocket frames carrying a new
// message.
const EventMessageInserted = "message.inserted"

// Frame is the JSON envelope written to WebSocket clients.
type Frame struct {
	Type    string       `json:"type"`
	Message data.Message `json:"message"`
}

// ServeWebSocket copies sub onto conn until either side goes away. It
// closes both before returning.
func ServeWebSocket(conn *websocket.Conn, sub *Subscription) {
	defer sub.Close()
	defer conn.Close()

	done := make(chan struct{})
	go readPump(conn, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription ended"))
				return
			}
			if err := conn.WriteJSON(Frame{Type: EventMessageInserted, Message: msg}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and signals done when the connection
// closes. Clients only listen on this endpoint.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}
