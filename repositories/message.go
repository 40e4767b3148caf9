//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"chat-relay/domain"
	"chat-relay/errors"
)

type IMessageRepository interface {
	Append(author domain.Identity, content string) (domain.Message, error)
	ListOrdered() ([]domain.Message, error)
	Since(t time.Time) ([]domain.Message, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
	seq atomic.Uint64
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// diskMessage is the stored shape of a message record.
type diskMessage struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Content string `json:"content"`
	At      int64  `json:"created_at"`
}

const messagePrefix = "msg:"

// key formats as "msg:{timestamp_padded}:{seq_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Break same-nanosecond ties by insertion order via the process-local sequence.
//  3. Keep keys unique across restarts with the UUID suffix.
func key(at time.Time, seq uint64, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s%019d:%012d:%s", messagePrefix, at.UnixNano(), seq, id))
}

// Append assigns the ID and the authoritative timestamp atomically with the
// insert. Store failures surface as ErrPersistence so callers can fail the
// send without broadcasting anything.
func (m *MessageRepository) Append(author domain.Identity, content string) (domain.Message, error) {
	message := domain.Message{
		ID:        uuid.New(),
		Author:    author,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	seq := m.seq.Add(1)
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(message.CreatedAt, seq, message.ID), bytes)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return message, nil
}

// ListOrdered returns the whole history, oldest first. Thanks to the padded
// timestamp in the key, a forward prefix scan is already in time order.
// Reads see every append committed before the call (read-your-writes).
func (m *MessageRepository) ListOrdered() ([]domain.Message, error) {
	return m.scanFrom([]byte(messagePrefix))
}

// Since returns only messages strictly later than t, for incremental
// refetches by clients that already hold a history snapshot.
func (m *MessageRepository) Since(t time.Time) ([]domain.Message, error) {
	seekKey := []byte(fmt.Sprintf("%s%019d", messagePrefix, t.UnixNano()+1))
	return m.scanFrom(seekKey)
}

func (m *MessageRepository) scanFrom(seekKey []byte) ([]domain.Message, error) {
	var raw [][]byte
	prefix := []byte(messagePrefix)

	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, b := range raw {
		var record diskMessage
		if err := json.Unmarshal(b, &record); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
		}
		message, err := toMessage(record)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:      message.ID.String(),
		Author:  string(message.Author),
		Content: message.Content,
		At:      message.CreatedAt.UnixNano(),
	}
}

func toMessage(record diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(record.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        parsedID,
		Author:    domain.Identity(record.Author),
		Content:   record.Content,
		CreatedAt: time.Unix(0, record.At).UTC(),
	}, nil
}
