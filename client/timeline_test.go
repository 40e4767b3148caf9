package client

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
)

func message(author domain.Identity, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		Author:    author,
		Content:   content,
		CreatedAt: at,
	}
}

func TestTimeline_Optimistic_Echo_Collapses_To_One_Entry(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice")

	// Given an optimistic entry shown right after submit
	timeline.AppendLocal("hello")
	req.Equal(1, timeline.Len())
	req.True(timeline.Snapshot()[0].Pending)

	// When the authoritative echo comes back
	changed := timeline.Apply(message("alice", "hello", time.Now()))

	// Then the pending entry became the confirmed one, no duplicate
	req.True(changed)
	req.Equal(1, timeline.Len())

	entries := timeline.Snapshot()
	req.False(entries[0].Pending)
	req.Equal("hello", entries[0].Message.Content)
	req.NotEqual(uuid.Nil, entries[0].Message.ID)
}

func TestTimeline_Duplicate_Broadcast_Is_Suppressed(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice")

	echo := message("bob", "hi", time.Now())

	req.True(timeline.Apply(echo))
	req.False(timeline.Apply(echo))
	req.Equal(1, timeline.Len())
}

func TestTimeline_Other_Senders_Do_Not_Consume_Pending(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice")

	// Given alice has an unconfirmed send
	timeline.AppendLocal("hello")

	// When bob happens to broadcast the identical content
	req.True(timeline.Apply(message("bob", "hello", time.Now())))

	// Then alice's entry is still pending
	entries := timeline.Snapshot()
	req.Equal(2, timeline.Len())
	req.False(entries[0].Pending)
	req.Equal(domain.Identity("bob"), entries[0].Message.Author)
	req.True(entries[1].Pending)
}

func TestTimeline_Pending_Confirmed_In_Submission_Order(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice")

	timeline.AppendLocal("first")
	timeline.AppendLocal("second")

	at := time.Now()
	req.True(timeline.Apply(message("alice", "first", at)))
	req.True(timeline.Apply(message("alice", "second", at.Add(time.Millisecond))))

	entries := timeline.Snapshot()
	req.Equal(2, timeline.Len())
	req.False(entries[0].Pending)
	req.False(entries[1].Pending)
	req.Equal("first", entries[0].Message.Content)
	req.Equal("second", entries[1].Message.Content)
}

func TestTimeline_History_And_Push_Race(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice")
	at := time.Now()

	older := message("bob", "earlier", at)
	racing := message("clara", "racing", at.Add(time.Second))

	// Given a broadcast lands before the history fetch resolves
	req.True(timeline.Apply(racing))

	// When the snapshot arrives containing that same message
	timeline.MergeHistory([]domain.Message{older, racing})

	// Then the duplicate stays single and order is chronological
	entries := timeline.Snapshot()
	req.Equal(2, timeline.Len())
	req.Equal("earlier", entries[0].Message.Content)
	req.Equal("racing", entries[1].Message.Content)
}

func TestTimeline_History_Carries_Own_Send(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice")

	// Given alice submitted a send, and it was persisted before her
	// history fetch resolved
	timeline.AppendLocal("hi")
	persisted := message("alice", "hi", time.Now())

	// When the snapshot delivers the persisted copy first
	timeline.MergeHistory([]domain.Message{persisted})

	// Then the pending entry collapsed into it
	req.Equal(1, timeline.Len())
	req.False(timeline.Snapshot()[0].Pending)

	// And the late live echo of the same id changes nothing
	req.False(timeline.Apply(persisted))
	req.Equal(1, timeline.Len())
}

func TestTimeline_Duplicate_Echo_Keeps_Second_Pending_Send(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice")
	at := time.Now()

	// Given two identical sends, the first already confirmed
	timeline.AppendLocal("hi")
	timeline.AppendLocal("hi")
	first := message("alice", "hi", at)
	req.True(timeline.Apply(first))

	// When the first echo is redelivered
	req.False(timeline.Apply(first))

	// Then the second send is still pending, waiting for its own echo
	req.Equal(2, timeline.Len())
	req.True(timeline.Snapshot()[1].Pending)

	req.True(timeline.Apply(message("alice", "hi", at.Add(time.Millisecond))))
	req.Equal(2, timeline.Len())
	req.False(timeline.Snapshot()[1].Pending)
}

func TestTimeline_Live_Message_During_History_Gap(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice")
	at := time.Now()

	// Given a live message newer than the whole snapshot
	live := message("bob", "fresh", at.Add(time.Minute))
	req.True(timeline.Apply(live))

	// When the older history backfills afterwards
	timeline.MergeHistory([]domain.Message{
		message("clara", "one", at),
		message("clara", "two", at.Add(time.Second)),
	})

	entries := timeline.Snapshot()
	req.Equal(3, timeline.Len())
	req.Equal("one", entries[0].Message.Content)
	req.Equal("two", entries[1].Message.Content)
	req.Equal("fresh", entries[2].Message.Content)
}
