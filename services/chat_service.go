package services

import (
	"context"
	"time"

	"chat-relay/domain"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/sink"
)

type IChatService interface {
	Connect() *runtime.Session
	Join(ctx context.Context, conn domain.ConnectionID, identity domain.Identity)
	Post(ctx context.Context, conn domain.ConnectionID, content string)
	Disconnect(conn domain.ConnectionID)
	History(ctx context.Context) ([]domain.Message, error)
	Since(ctx context.Context, t time.Time) ([]domain.Message, error)
}

// ChatService is the facade the transport talks to: session lifecycle and
// send intents go to the hub, history pulls go straight to the repository.
// The two paths are deliberately independent, clients reconcile them by
// message id.
type ChatService struct {
	hub         *runtime.RelayHub
	messages    repositories.IMessageRepository
	sinkFactory func() *sink.SessionSink
}

func NewChatService(hub *runtime.RelayHub, messages repositories.IMessageRepository,
	sinkFactory func() *sink.SessionSink) *ChatService {
	return &ChatService{hub: hub, messages: messages, sinkFactory: sinkFactory}
}

// Connect creates a session in Connecting state and attaches it to the
// hub's live set. Broadcasts reach the connection from this point on.
func (s *ChatService) Connect() *runtime.Session {
	session := runtime.NewSession(domain.NewConnectionID(), s.sinkFactory())
	s.hub.Attach(session)
	return session
}

func (s *ChatService) Join(ctx context.Context, conn domain.ConnectionID, identity domain.Identity) {
	s.hub.OnJoin(ctx, conn, identity)
}

func (s *ChatService) Post(ctx context.Context, conn domain.ConnectionID, content string) {
	s.hub.OnSend(ctx, conn, content)
}

func (s *ChatService) Disconnect(conn domain.ConnectionID) {
	s.hub.OnDisconnect(conn)
}

func (s *ChatService) History(_ context.Context) ([]domain.Message, error) {
	return s.messages.ListOrdered()
}

func (s *ChatService) Since(_ context.Context, t time.Time) ([]domain.Message, error) {
	return s.messages.Since(t)
}
