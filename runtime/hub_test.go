package runtime

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime/workers"
	"chat-relay/sink"
)

func newTestHub(t *testing.T, messages repositories.IMessageRepository, bufferSize int) *RelayHub {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	supervisor := workers.NewSupervisor(logger, 20*time.Millisecond)
	return NewRelayHub(logger, supervisor, NewIdentityRegistry(), messages,
		observability.NewMonitor(), bufferSize, 2000, 200*time.Millisecond, time.Minute)
}

func attachSession(hub *RelayHub) *Session {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	session := NewSession(domain.NewConnectionID(), sink.NewSessionSink(logger, 16, 200*time.Millisecond))
	hub.Attach(session)
	return session
}

func receiveEvent(t *testing.T, s *sink.SessionSink) event.DomainEvent {
	t.Helper()
	select {
	case evt := <-s.Events():
		return evt
	case <-time.After(1 * time.Second):
		t.Fatal("no event received in time")
		return nil
	}
}

func requireNoEvent(t *testing.T, s *sink.SessionSink) {
	t.Helper()
	select {
	case evt := <-s.Events():
		t.Fatalf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_OnJoin_Welcomes_Joiner_Only(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t, nil, 8)

	// Given two attached connections
	alice := attachSession(hub)
	bob := attachSession(hub)

	// When alice joins
	hub.OnJoin(context.Background(), alice.ID(), "alice")

	// Then the welcome reaches alice only
	evt := receiveEvent(t, alice.Sink())
	welcome, ok := evt.(event.Welcome)
	req.True(ok)
	req.Equal("Welcome alice", welcome.Text)

	requireNoEvent(t, bob.Sink())
	req.Equal(domain.Joined, alice.State())
	req.Equal(domain.Connecting, bob.State())
}

func TestHub_OnJoin_Empty_Identity_Is_NoOp(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t, nil, 8)
	alice := attachSession(hub)

	// When a join arrives without an identity
	hub.OnJoin(context.Background(), alice.ID(), "")

	// Then nothing changed
	req.Equal(domain.Connecting, alice.State())
	requireNoEvent(t, alice.Sink())
}

func TestHub_OnJoin_Unknown_Connection_Is_NoOp(t *testing.T) {
	hub := newTestHub(t, nil, 8)
	hub.OnJoin(context.Background(), domain.NewConnectionID(), "ghost")
}

func TestHub_OnSend_Requires_Joined_Identity(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t, nil, 8)

	// Given an attached connection that never joined
	alice := attachSession(hub)

	// When it tries to send
	hub.OnSend(context.Background(), alice.ID(), "hello")

	// Then nothing is dispatched and nothing is echoed back
	req.Empty(hub.commands)
	requireNoEvent(t, alice.Sink())
}

func TestHub_OnSend_Drops_Blank_And_Oversized_Content(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t, nil, 8)
	hub.maxContentLength = 10

	alice := attachSession(hub)
	hub.OnJoin(context.Background(), alice.ID(), "alice")
	receiveEvent(t, alice.Sink()) // drain the welcome

	hub.OnSend(context.Background(), alice.ID(), "   ")
	hub.OnSend(context.Background(), alice.ID(), strings.Repeat("x", 11))

	req.Empty(hub.commands)
}

func TestHub_OnSend_Dispatches_Command(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t, nil, 8)

	alice := attachSession(hub)
	hub.OnJoin(context.Background(), alice.ID(), "alice")

	// When a joined connection sends
	hub.OnSend(context.Background(), alice.ID(), "hello world")

	// Then the intent reaches the relay pipeline with the registered author
	req.Len(hub.commands, 1)
	cmd := (<-hub.commands).(domain.PostMessageCommand)
	req.Equal(alice.ID(), cmd.Conn)
	req.Equal(domain.Identity("alice"), cmd.Author)
	req.Equal("hello world", cmd.Content)
	req.False(cmd.SubmittedAt.IsZero())
}

func TestHub_OnSend_Backpressure_Rejects_To_Sender(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t, nil, 1)

	alice := attachSession(hub)
	hub.OnJoin(context.Background(), alice.ID(), "alice")
	receiveEvent(t, alice.Sink())

	// Given a full command channel with no worker draining it
	hub.OnSend(context.Background(), alice.ID(), "first")

	// When another send arrives
	hub.OnSend(context.Background(), alice.ID(), "second")

	// Then the sender is told the send failed, nobody else is
	evt := receiveEvent(t, alice.Sink())
	rejected, ok := evt.(event.SendRejected)
	req.True(ok)
	req.Equal("could not send", rejected.Reason)
}

func TestHub_OnDisconnect_Removes_Session(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t, nil, 8)

	alice := attachSession(hub)
	hub.OnJoin(context.Background(), alice.ID(), "alice")

	// When the connection drops
	hub.OnDisconnect(alice.ID())

	// Then the session left the live set and is terminal
	_, ok := hub.Session(alice.ID())
	req.False(ok)
	req.Equal(domain.Disconnected, alice.State())

	// And a second disconnect is harmless
	hub.OnDisconnect(alice.ID())
}

func TestHub_Pipeline_Broadcast_Reaches_Everyone(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMessages := mocks.NewMockIMessageRepository(ctrl)
	mockMessages.EXPECT().
		Append(domain.Identity("alice"), "hi all").
		DoAndReturn(func(author domain.Identity, content string) (domain.Message, error) {
			return domain.Message{
				ID:        uuid.New(),
				Author:    author,
				Content:   content,
				CreatedAt: time.Now().UTC(),
			}, nil
		}).
		Times(1)

	hub := newTestHub(t, mockMessages, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Start(ctx) }()

	alice := attachSession(hub)
	bob := attachSession(hub)
	hub.OnJoin(ctx, alice.ID(), "alice")
	hub.OnJoin(ctx, bob.ID(), "bob")
	receiveEvent(t, alice.Sink())
	receiveEvent(t, bob.Sink())

	// When alice sends a message
	hub.OnSend(ctx, alice.ID(), "hi all")

	// Then both connections receive the same authoritative echo
	for _, s := range []*sink.SessionSink{alice.Sink(), bob.Sink()} {
		evt := receiveEvent(t, s)
		posted, ok := evt.(event.MessagePosted)
		req.True(ok)
		req.Equal(domain.Identity("alice"), posted.Author)
		req.Equal("hi all", posted.Content)
		req.NotEqual(uuid.Nil, posted.ID)
	}
}

func TestHub_Pipeline_Broadcast_Order_Follows_Append_Order(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMessages := mocks.NewMockIMessageRepository(ctrl)
	mockMessages.EXPECT().
		Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(author domain.Identity, content string) (domain.Message, error) {
			return domain.Message{
				ID:        uuid.New(),
				Author:    author,
				Content:   content,
				CreatedAt: time.Now().UTC(),
			}, nil
		}).
		Times(3)

	hub := newTestHub(t, mockMessages, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Start(ctx) }()

	alice := attachSession(hub)
	hub.OnJoin(ctx, alice.ID(), "alice")
	receiveEvent(t, alice.Sink())

	// When several sends are submitted in order
	hub.OnSend(ctx, alice.ID(), "one")
	hub.OnSend(ctx, alice.ID(), "two")
	hub.OnSend(ctx, alice.ID(), "three")

	// Then the broadcasts arrive in the same order, each exactly once
	var got []string
	for i := 0; i < 3; i++ {
		posted := receiveEvent(t, alice.Sink()).(event.MessagePosted)
		got = append(got, posted.Content)
	}
	req.Equal([]string{"one", "two", "three"}, got)
	requireNoEvent(t, alice.Sink())
}

func TestHub_Pipeline_Persistence_Failure_Notifies_Sender_Only(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMessages := mocks.NewMockIMessageRepository(ctrl)
	mockMessages.EXPECT().
		Append(gomock.Any(), gomock.Any()).
		Return(domain.Message{}, errors.ErrPersistence).
		Times(1)

	hub := newTestHub(t, mockMessages, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Start(ctx) }()

	alice := attachSession(hub)
	bob := attachSession(hub)
	hub.OnJoin(ctx, alice.ID(), "alice")
	hub.OnJoin(ctx, bob.ID(), "bob")
	receiveEvent(t, alice.Sink())
	receiveEvent(t, bob.Sink())

	// When the store refuses the append
	hub.OnSend(ctx, alice.ID(), "doomed")

	// Then alice alone learns about the failure
	evt := receiveEvent(t, alice.Sink())
	rejected, ok := evt.(event.SendRejected)
	req.True(ok)
	req.Equal("could not send", rejected.Reason)

	requireNoEvent(t, bob.Sink())
}

func TestHub_Pipeline_Disconnected_Then_Others_Still_Receive(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMessages := mocks.NewMockIMessageRepository(ctrl)
	mockMessages.EXPECT().
		Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(author domain.Identity, content string) (domain.Message, error) {
			return domain.Message{ID: uuid.New(), Author: author, Content: content, CreatedAt: time.Now().UTC()}, nil
		}).
		Times(1)

	hub := newTestHub(t, mockMessages, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Start(ctx) }()

	alice := attachSession(hub)
	bob := attachSession(hub)
	hub.OnJoin(ctx, alice.ID(), "alice")
	hub.OnJoin(ctx, bob.ID(), "bob")
	receiveEvent(t, alice.Sink())
	receiveEvent(t, bob.Sink())

	// Given bob drops mid-conversation
	hub.OnDisconnect(bob.ID())

	// When alice sends
	hub.OnSend(ctx, alice.ID(), "still here")

	// Then alice receives her echo and the relay keeps running
	posted := receiveEvent(t, alice.Sink()).(event.MessagePosted)
	req.Equal("still here", posted.Content)
}
