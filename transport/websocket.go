package transport

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"chat-relay/domain"
	"chat-relay/runtime"
)

// createUpgrader creates a WebSocket upgrader restricted to the allowed origins.
func createUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowedMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients send no Origin header.
			return origin == "" || allowedMap[origin]
		},
	}
}

// HandleWebSocket handles GET /ws. It attaches a session to the hub, then
// runs the read pump on this goroutine and the write pump on a second one.
// The transport close is the authoritative disconnect: an application-level
// "disconnect" frame is accepted but teardown always goes through the read
// error path, idempotently.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := createUpgrader(h.allowedOrigins)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	session := h.chat.Connect()
	defer h.chat.Disconnect(session.ID())

	h.log.Info(fmt.Sprintf("Connection established: %s", session.ID()))

	// Write pump: drains the session sink into the socket.
	go h.writePump(conn, session)

	// Read pump: feeds client intents into the hub until the socket dies.
	ctx := r.Context()
	for {
		var frame ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			h.log.Info(fmt.Sprintf("Connection closed: %s", session.ID()))
			return
		}

		switch frame.Type {
		case "join":
			h.chat.Join(ctx, session.ID(), domain.Identity(frame.Username))
		case "send":
			h.chat.Post(ctx, session.ID(), frame.Content)
		case "disconnect":
			// Fire-and-forget client emission: the socket close that
			// follows is what actually drives the teardown.
			h.log.Debug("Client announced disconnect", "connection", session.ID())
		default:
			h.log.Debug("Unknown frame type", "type", frame.Type)
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, session *runtime.Session) {
	events := session.Sink().Events()
	closed := session.Sink().Closed()

	for {
		select {
		case <-closed:
			// Flush whatever was already queued before the disconnect.
			for {
				select {
				case evt := <-events:
					if frame, ok := toServerFrame(evt); ok {
						_ = conn.WriteJSON(frame)
					}
				default:
					return
				}
			}
		case evt := <-events:
			frame, ok := toServerFrame(evt)
			if !ok {
				continue
			}
			if err := conn.WriteJSON(frame); err != nil {
				// The read pump sees the same failure and tears down.
				h.log.Debug("Write failed", "connection", session.ID(), "error", err)
				return
			}
		}
	}
}
