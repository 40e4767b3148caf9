package repositories

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions(t.TempDir()).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func Test_Append_Assigns_ID_And_Timestamp(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), discardLogger())

	before := time.Now().UTC()
	message, err := repo.Append("alice", "hello")
	req.NoError(err)

	// The server owns the identity of the record
	req.NotEmpty(message.ID)
	req.Equal(domain.Identity("alice"), message.Author)
	req.Equal("hello", message.Content)
	req.False(message.CreatedAt.Before(before))
}

func Test_Append_And_List_Preserves_Order(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), discardLogger())

	// Given appends in quick succession, possibly same-nanosecond
	for i := 1; i <= 10; i++ {
		_, err := repo.Append("alice", fmt.Sprintf("message %d", i))
		req.NoError(err)
	}

	// When fetching the history
	messages, err := repo.ListOrdered()
	req.NoError(err)

	// Then the order is exactly the append order, oldest first
	req.Len(messages, 10)
	for i, message := range messages {
		req.Equal(fmt.Sprintf("message %d", i+1), message.Content)
	}
}

func Test_List_Read_Your_Writes(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), discardLogger())

	stored, err := repo.Append("bob", "just written")
	req.NoError(err)

	// A fetch right after the append already sees it
	messages, err := repo.ListOrdered()
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal(stored.ID, messages[0].ID)
	req.Equal(stored.Content, messages[0].Content)
	req.True(stored.CreatedAt.Equal(messages[0].CreatedAt))
}

func Test_List_Empty_Store(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), discardLogger())

	messages, err := repo.ListOrdered()
	req.NoError(err)
	req.Empty(messages)
}

func Test_Since_Returns_Strictly_Later_Messages(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), discardLogger())

	first, err := repo.Append("alice", "old")
	req.NoError(err)
	time.Sleep(2 * time.Millisecond)
	second, err := repo.Append("bob", "new")
	req.NoError(err)

	// When refetching from the first message's timestamp
	messages, err := repo.Since(first.CreatedAt)
	req.NoError(err)

	// Then the first message itself is excluded
	req.Len(messages, 1)
	req.Equal(second.ID, messages[0].ID)

	// And a cutoff past the last message returns nothing
	messages, err = repo.Since(second.CreatedAt)
	req.NoError(err)
	req.Empty(messages)
}

func Test_Messages_Survive_Reopen(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()

	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	req.NoError(err)

	repo := NewMessageRepository(db, discardLogger())
	_, err = repo.Append("alice", "durable")
	req.NoError(err)
	req.NoError(db.Close())

	// When the store reopens, the history is still there in order
	db, err = badger.Open(opts)
	req.NoError(err)
	defer db.Close()

	repo = NewMessageRepository(db, discardLogger())
	messages, err := repo.ListOrdered()
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("durable", messages[0].Content)
}
