package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/convoplex/chatroom-platform/internal/model"
)

// Both implementations must satisfy the same contract, so every test runs
// against each of them.
func stores(t *testing.T) map[string]ChatroomStore {
	t.Helper()

	sqlite, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]ChatroomStore{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestCreateAndListChatrooms(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, err := s.CreateChatroom(ctx, 1, "first")
			require.NoError(t, err)
			require.NotZero(t, first.ID)
			require.Equal(t, int64(1), first.UserID)

			_, err = s.CreateChatroom(ctx, 2, "other user")
			require.NoError(t, err)

			second, err := s.CreateChatroom(ctx, 1, "second")
			require.NoError(t, err)

			// A later turn makes the older room the most recent.
			require.NoError(t, s.TouchLastUpdated(ctx, first.ID, time.Now().Add(time.Minute)))

			listed, err := s.ListChatrooms(ctx, 1)
			require.NoError(t, err)
			require.Len(t, listed, 2)
			require.Equal(t, first.ID, listed[0].ID)
			require.Equal(t, second.ID, listed[1].ID)
		})
	}
}

func TestGetChatroomDetails_Ownership(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			c, err := s.CreateChatroom(ctx, 1, "mine")
			require.NoError(t, err)

			_, err = s.GetChatroomDetails(ctx, c.ID, 2)
			require.ErrorIs(t, err, ErrNotFound)

			_, err = s.GetChatroomDetails(ctx, c.ID+1000, 1)
			require.ErrorIs(t, err, ErrNotFound)

			details, err := s.GetChatroomDetails(ctx, c.ID, 1)
			require.NoError(t, err)
			require.Equal(t, "mine", details.Title)
			require.Empty(t, details.Messages)
		})
	}
}

func TestMessageOrderingAlternatesTurns(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			c, err := s.CreateChatroom(ctx, 1, "chat")
			require.NoError(t, err)

			const turns = 4
			for i := 0; i < turns; i++ {
				_, err := s.AppendMessage(ctx, c.ID, fmt.Sprintf("question %d", i), model.AuthorUser)
				require.NoError(t, err)
				_, err = s.AppendMessage(ctx, c.ID, fmt.Sprintf("answer %d", i), model.AuthorSystem)
				require.NoError(t, err)
			}

			details, err := s.GetChatroomDetails(ctx, c.ID, 1)
			require.NoError(t, err)
			require.Len(t, details.Messages, 2*turns)

			for i, msg := range details.Messages {
				if i%2 == 0 {
					require.Equal(t, model.AuthorUser, msg.Author, "message %d", i)
					require.Equal(t, fmt.Sprintf("question %d", i/2), msg.Text)
				} else {
					require.Equal(t, model.AuthorSystem, msg.Author, "message %d", i)
					require.Equal(t, fmt.Sprintf("answer %d", i/2), msg.Text)
				}
			}
		})
	}
}

func TestAppendMessage_MissingChatroom(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.AppendMessage(context.Background(), 999, "hello", model.AuthorUser)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTouchLastUpdated_NeverMovesBackwards(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			c, err := s.CreateChatroom(ctx, 1, "chat")
			require.NoError(t, err)

			later := time.Now().UTC().Add(time.Hour)
			require.NoError(t, s.TouchLastUpdated(ctx, c.ID, later))

			earlier := later.Add(-30 * time.Minute)
			require.NoError(t, s.TouchLastUpdated(ctx, c.ID, earlier))

			details, err := s.GetChatroomDetails(ctx, c.ID, 1)
			require.NoError(t, err)
			require.WithinDuration(t, later, details.LastUpdated, time.Second)
		})
	}
}

func TestLastMessages_NewestFirst(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			c, err := s.CreateChatroom(ctx, 1, "chat")
			require.NoError(t, err)

			none, err := s.LastMessages(ctx, c.ID, 2)
			require.NoError(t, err)
			require.Empty(t, none)

			_, err = s.AppendMessage(ctx, c.ID, "hello", model.AuthorUser)
			require.NoError(t, err)
			_, err = s.AppendMessage(ctx, c.ID, "hi there", model.AuthorSystem)
			require.NoError(t, err)

			last, err := s.LastMessages(ctx, c.ID, 2)
			require.NoError(t, err)
			require.Len(t, last, 2)
			require.Equal(t, model.AuthorSystem, last[0].Author)
			require.Equal(t, "hi there", last[0].Text)
			require.Equal(t, model.AuthorUser, last[1].Author)
		})
	}
}
