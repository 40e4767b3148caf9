package transport

import (
	"time"

	"github.com/samber/lo"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

// ClientFrame is a client -> server WebSocket frame.
// Types: "join" (username set), "send" (content set), "disconnect".
type ClientFrame struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Content  string `json:"content,omitempty"`
}

// ServerFrame is a server -> client WebSocket frame.
// Types: "welcome", "message", "error".
type ServerFrame struct {
	Type    string       `json:"type"`
	Text    string       `json:"text,omitempty"`
	Reason  string       `json:"reason,omitempty"`
	Message *WireMessage `json:"message,omitempty"`
}

// WireMessage is the JSON shape of a persisted message, shared by the
// broadcast frames and the history endpoint.
type WireMessage struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func toWireMessage(message domain.Message) WireMessage {
	return WireMessage{
		ID:        message.ID.String(),
		Author:    string(message.Author),
		Content:   message.Content,
		CreatedAt: message.CreatedAt,
	}
}

func toWireMessages(messages []domain.Message) []WireMessage {
	return lo.Map(messages, func(item domain.Message, _ int) WireMessage {
		return toWireMessage(item)
	})
}

// toServerFrame maps a domain event to its wire shape. Unknown events map
// to a zero frame the caller must skip.
func toServerFrame(e event.DomainEvent) (ServerFrame, bool) {
	switch evt := e.(type) {
	case event.Welcome:
		return ServerFrame{Type: "welcome", Text: evt.Text}, true
	case event.MessagePosted:
		message := WireMessage{
			ID:        evt.ID.String(),
			Author:    string(evt.Author),
			Content:   evt.Content,
			CreatedAt: evt.At,
		}
		return ServerFrame{Type: "message", Message: &message}, true
	case event.SendRejected:
		return ServerFrame{Type: "error", Reason: evt.Reason}, true
	default:
		return ServerFrame{}, false
	}
}
