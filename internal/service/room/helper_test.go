package room

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/syncspace/internal/musiccache"
	"github.com/sharetube/syncspace/internal/repository/connection/inmemory"
	roomRedis "github.com/sharetube/syncspace/internal/repository/room/redis"
	"github.com/sharetube/syncspace/internal/resolver"
	"github.com/sharetube/syncspace/internal/workerpool"
	"github.com/stretchr/testify/require"
)

const ytPrefix = "https://youtu.be/"

type fakeYoutube struct {
	details atomic.Int64
}

func (f *fakeYoutube) Source() resolver.Source { return resolver.SourceYoutube }

func (f *fakeYoutube) ValidateURL(rawURL string) bool {
	return strings.HasPrefix(rawURL, ytPrefix)
}

func (f *fakeYoutube) ExtractID(rawURL string) (string, bool) {
	id := strings.TrimPrefix(rawURL, ytPrefix)
	return id, len(id) == 11
}

func (f *fakeYoutube) track(id, title string) *resolver.Track {
	return &resolver.Track{
		ID:       id,
		Title:    title,
		Artist:   "Artist " + id,
		URL:      ytPrefix + id,
		SmallImg: "small-" + id,
		BigImg:   "big-" + id,
		Duration: 200,
		Source:   resolver.SourceYoutube,
	}
}

func (f *fakeYoutube) GetTrackDetails(ctx context.Context, id string) (*resolver.Track, error) {
	f.details.Add(1)
	if id == "notfound123" {
		return nil, resolver.ErrTrackNotFound
	}
	return f.track(id, "Song "+id), nil
}

func (f *fakeYoutube) Search(ctx context.Context, query string) (*resolver.Track, error) {
	return f.track(fmt.Sprintf("q%010d", len(query)), query), nil
}

type fakeConn struct {
	mu     sync.Mutex
	events []Event
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := v.(type) {
	case Event:
		c.events = append(c.events, e)
	case json.RawMessage:
		var ev struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(e, &ev); err != nil {
			return err
		}
		c.events = append(c.events, Event{Type: ev.Type, Data: ev.Data})
	}
	return nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	types := make([]string, len(c.events))
	for i, e := range c.events {
		types[i] = e.Type
	}
	return types
}

func (c *fakeConn) count(eventType string) int {
	n := 0
	for _, t := range c.types() {
		if t == eventType {
			n++
		}
	}
	return n
}

func (c *fakeConn) last(eventType string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Type == eventType {
			return c.events[i].Data, true
		}
	}
	return nil, false
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	svc   *service
	yt    *fakeYoutube
	clock *fakeClock
	rc    *redis.Client
	mr    *miniredis.Miniredis
}

func testConfig() Config {
	return Config{
		Secret:            "test-secret",
		QueueLimit:        20,
		BroadcastInterval: time.Hour,
		SeekSettleDelay:   time.Hour,
		VoteCooldown:      20 * time.Minute,
	}
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { rc.Close() })

	env := newTestEnvOn(t, rc, cfg)
	env.mr = mr
	return env
}

func newTestEnvOn(t *testing.T, rc *redis.Client, cfg Config) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	yt := &fakeYoutube{}
	registry := resolver.NewRegistry(yt)
	pool := workerpool.New(registry, logger, workerpool.Config{Workers: 2})
	t.Cleanup(pool.Close)

	cache := musiccache.New(rc, logger, registry.Sources(), nil)
	repo := roomRedis.NewRepo(rc, logger, time.Hour)
	conns := inmemory.NewRepo(logger)

	svc := NewService(repo, conns, cache, pool, registry, logger, cfg)
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	svc.now = clock.Now
	t.Cleanup(svc.Close)

	return &testEnv{svc: svc, yt: yt, clock: clock, rc: rc}
}

func (e *testEnv) join(t *testing.T, spaceId, userId string) *fakeConn {
	t.Helper()
	conn := &fakeConn{}
	require.NoError(t, e.svc.JoinRoom(context.Background(), &JoinRoomParams{
		Conn:    conn,
		SpaceId: spaceId,
		UserId:  userId,
	}))
	return conn
}

func (e *testEnv) add(t *testing.T, spaceId, userId, videoId string) string {
	t.Helper()
	song, err := e.svc.AddToQueue(context.Background(), &AddToQueueParams{
		SpaceId:    spaceId,
		UserId:     userId,
		TrackInput: TrackInput{URL: ytPrefix + videoId},
	})
	require.NoError(t, err)
	e.clock.Advance(time.Second)
	return song.ID
}

func (e *testEnv) queueIds(t *testing.T, spaceId string) []string {
	t.Helper()
	queue, err := e.svc.GetQueue(context.Background(), &GetQueueParams{SpaceId: spaceId})
	require.NoError(t, err)
	ids := make([]string, len(queue.Songs))
	for i, s := range queue.Songs {
		ids[i] = s.ID
	}
	return ids
}

func (e *testEnv) space(t *testing.T, spaceId string) *space {
	t.Helper()
	e.svc.mu.Lock()
	defer e.svc.mu.Unlock()
	sp, ok := e.svc.spaces[spaceId]
	require.True(t, ok)
	return sp
}
