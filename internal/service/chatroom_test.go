package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/convoplex/chatroom-platform/internal/admission"
	"github.com/convoplex/chatroom-platform/internal/cache"
	"github.com/convoplex/chatroom-platform/internal/genai"
	"github.com/convoplex/chatroom-platform/internal/model"
	"github.com/convoplex/chatroom-platform/internal/queue"
	"github.com/convoplex/chatroom-platform/internal/store"
	"github.com/convoplex/chatroom-platform/internal/worker"
	"github.com/convoplex/chatroom-platform/pkg/logger"
)

type downCache struct{}

func (downCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("cache down")
}
func (downCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.New("cache down")
}
func (downCache) Delete(ctx context.Context, key string) error {
	return errors.New("cache down")
}

type stubGen struct {
	reply string
}

func (s *stubGen) Send(ctx context.Context, history []genai.Turn, newMessage string) (string, error) {
	return s.reply, nil
}

func (s *stubGen) Name() string { return "stub" }

type fixture struct {
	svc   *ChatroomService
	store *store.MemoryStore
	cache *cache.Memory
	queue *queue.MemoryQueue
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	mem := cache.NewMemory()
	st := store.NewMemoryStore()
	q := queue.NewMemoryQueue(64, 3)
	t.Cleanup(q.Close)

	adm, err := admission.NewController(mem, admission.Config{
		FreeDailyLimit: 5,
		ProDailyLimit:  50,
		Timezone:       "UTC",
	}, logger.NewNop())
	require.NoError(t, err)

	return &fixture{
		svc:   NewChatroomService(st, mem, adm, q, cfg, logger.NewNop()),
		store: st,
		cache: mem,
		queue: q,
	}
}

func TestCreateInvalidatesListing(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	// Warm the cache with a listing that predates the new room.
	first, err := f.svc.Create(ctx, 1, "first")
	require.NoError(t, err)

	listed, err := f.svc.List(ctx, 1)
	require.NoError(t, err)
	require.False(t, listed.Cached)
	require.Len(t, listed.Chatrooms, 1)

	cached, err := f.svc.List(ctx, 1)
	require.NoError(t, err)
	require.True(t, cached.Cached)

	second, err := f.svc.Create(ctx, 1, "second")
	require.NoError(t, err)

	// The listing populated before creation must not be served: the new
	// room has to be visible immediately.
	after, err := f.svc.List(ctx, 1)
	require.NoError(t, err)
	require.False(t, after.Cached)
	require.Len(t, after.Chatrooms, 2)

	ids := []int64{after.Chatrooms[0].ID, after.Chatrooms[1].ID}
	require.Contains(t, ids, first.ID)
	require.Contains(t, ids, second.ID)
}

func TestListDegradesWhenCacheDown(t *testing.T) {
	mem := store.NewMemoryStore()
	q := queue.NewMemoryQueue(8, 3)
	defer q.Close()

	adm, err := admission.NewController(cache.NewMemory(), admission.Config{
		FreeDailyLimit: 5, ProDailyLimit: 50,
	}, logger.NewNop())
	require.NoError(t, err)

	svc := NewChatroomService(mem, downCache{}, adm, q, Config{}, logger.NewNop())
	ctx := context.Background()

	_, err = svc.Create(ctx, 1, "room")
	require.NoError(t, err)

	listed, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, listed.Chatrooms, 1)
	require.False(t, listed.Cached)
}

func TestListRecoversFromCorruptCacheEntry(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, 1, "room")
	require.NoError(t, err)

	require.NoError(t, f.cache.Set(ctx, cache.ListingKey(1), []byte("{not json"), time.Minute))

	listed, err := f.svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, listed.Chatrooms, 1)

	// The rebuilt entry replaced the corrupt one.
	data, err := f.cache.Get(ctx, cache.ListingKey(1))
	require.NoError(t, err)
	var rooms []model.Chatroom
	require.NoError(t, json.Unmarshal(data, &rooms))
	require.Len(t, rooms, 1)
}

func TestSendMessageEnforcesQuota(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	room, err := f.svc.Create(ctx, 1, "chat")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		resp, err := f.svc.SendMessage(ctx, 1, room.ID, "hello", nil)
		require.NoError(t, err)
		require.Equal(t, "queued", resp.Status)
		require.NotEmpty(t, resp.JobID)
	}

	_, err = f.svc.SendMessage(ctx, 1, room.ID, "one too many", nil)
	require.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestSendMessageChecksOwnershipBeforeQuota(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	room, err := f.svc.Create(ctx, 1, "chat")
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, 99, room.ID, "not mine", nil)
	require.ErrorIs(t, err, store.ErrNotFound)

	// The denied attempt must not have consumed user 99's quota.
	day := time.Now().UTC().Format("2006-01-02")
	_, err = f.cache.Get(ctx, cache.RateLimitKey(99, day))
	require.ErrorIs(t, err, cache.ErrMiss)
}

func TestSendMessageAdmissionFailPolicy(t *testing.T) {
	newBrokenAdmissionFixture := func(t *testing.T, failOpen bool) (*ChatroomService, *store.MemoryStore) {
		st := store.NewMemoryStore()
		q := queue.NewMemoryQueue(8, 3)
		t.Cleanup(q.Close)

		adm, err := admission.NewController(downCache{}, admission.Config{
			FreeDailyLimit: 5, ProDailyLimit: 50,
		}, logger.NewNop())
		require.NoError(t, err)

		svc := NewChatroomService(st, cache.NewMemory(), adm, q, Config{
			AdmissionFailOpen: failOpen,
		}, logger.NewNop())
		return svc, st
	}

	t.Run("fail closed rejects", func(t *testing.T) {
		svc, st := newBrokenAdmissionFixture(t, false)
		ctx := context.Background()

		room, err := st.CreateChatroom(ctx, 1, "chat")
		require.NoError(t, err)

		_, err = svc.SendMessage(ctx, 1, room.ID, "hello", nil)
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrQuotaExceeded)
	})

	t.Run("fail open admits", func(t *testing.T) {
		svc, st := newBrokenAdmissionFixture(t, true)
		ctx := context.Background()

		room, err := st.CreateChatroom(ctx, 1, "chat")
		require.NoError(t, err)

		resp, err := svc.SendMessage(ctx, 1, room.ID, "hello", nil)
		require.NoError(t, err)
		require.Equal(t, "queued", resp.Status)
	})
}

func TestLastMessageNilWhileReplyPending(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	room, err := f.svc.Create(ctx, 1, "chat")
	require.NoError(t, err)

	msg, err := f.svc.LastMessage(ctx, room.ID, 1)
	require.NoError(t, err)
	require.Nil(t, msg)

	_, err = f.store.AppendMessage(ctx, room.ID, "hello", model.AuthorUser)
	require.NoError(t, err)

	msg, err = f.svc.LastMessage(ctx, room.ID, 1)
	require.NoError(t, err)
	require.Nil(t, msg, "pending turn has no system reply yet")

	_, err = f.store.AppendMessage(ctx, room.ID, "hi there", model.AuthorSystem)
	require.NoError(t, err)

	msg, err = f.svc.LastMessage(ctx, room.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, model.AuthorSystem, msg.Author)
	require.Equal(t, "hi there", msg.Text)
}

// TestSendMessageEndToEnd runs the whole pipeline: admission, queue,
// worker, persistence, cache invalidation, poll.
func TestSendMessageEndToEnd(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	room, err := f.svc.Create(ctx, 1, "greetings")
	require.NoError(t, err)

	pool := worker.NewPool(f.queue, f.store, f.cache, &stubGen{reply: "Hi there"}, worker.Config{
		Workers:           2,
		GenerationTimeout: time.Second,
	}, logger.NewNop())

	workerCtx, stop := context.WithCancel(ctx)
	defer stop()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pool.Run(workerCtx)
	}()

	resp, err := f.svc.SendMessage(ctx, 1, room.ID, "Hello", nil)
	require.NoError(t, err)
	require.Equal(t, "queued", resp.Status)

	// Quota consumed exactly once.
	day := time.Now().UTC().Format("2006-01-02")
	count, err := f.cache.Get(ctx, cache.RateLimitKey(1, day))
	require.NoError(t, err)
	require.Equal(t, "1", string(count))

	require.Eventually(t, func() bool {
		msg, err := f.svc.LastMessage(ctx, room.ID, 1)
		return err == nil && msg != nil && msg.Text == "Hi there"
	}, 2*time.Second, 10*time.Millisecond)

	details, err := f.svc.Details(ctx, room.ID, 1)
	require.NoError(t, err)
	require.Len(t, details.Messages, 2)
	require.Equal(t, model.AuthorUser, details.Messages[0].Author)
	require.Equal(t, "Hello", details.Messages[0].Text)
	require.Equal(t, model.AuthorSystem, details.Messages[1].Author)

	stop()
	<-done
}
