package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/syncspace/internal/repository/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*repo, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { rc.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRepo(rc, logger, time.Hour), s
}

func addSongs(t *testing.T, r *repo, spaceId string, ids ...string) {
	t.Helper()
	for i, id := range ids {
		_, err := r.AddSong(context.Background(), &room.AddSongParams{
			SpaceId: spaceId,
			Song:    room.Song{ID: id, Title: "song " + id, AddedAt: int64(i)},
			Limit:   20,
		})
		require.NoError(t, err)
	}
}

func queueIds(t *testing.T, entries []room.QueueEntry) []string {
	t.Helper()
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func TestAddSongRespectsLimit(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		n, err := r.AddSong(ctx, &room.AddSongParams{SpaceId: "s1", Song: room.Song{ID: string(rune('a' + i))}, Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, i+1, n)
	}

	_, err := r.AddSong(ctx, &room.AddSongParams{SpaceId: "s1", Song: room.Song{ID: "d"}, Limit: 3})
	assert.ErrorIs(t, err, room.ErrQueueFull)

	length, err := r.GetQueueLength(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, length)
	assert.False(t, s.Exists("song:d"))

	song, err := r.GetSong(ctx, "s1", "a")
	require.NoError(t, err)
	assert.Equal(t, "a", song.ID)
	assert.Greater(t, s.TTL("song:a"), time.Duration(0))
}

func TestGetSongIsScopedToSpace(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := r.AddSong(ctx, &room.AddSongParams{
		SpaceId: "s1",
		Song:    room.Song{ID: "x", ExtractedID: "dQw4w9WgXcQ", Title: "song x", Duration: 212},
		Limit:   20,
	})
	require.NoError(t, err)
	_, err = r.Vote(ctx, &room.VoteParams{SpaceId: "s1", SongId: "x", UserId: "u1", Upvote: true, VotedAt: time.Now()})
	require.NoError(t, err)

	entry, err := r.GetSong(ctx, "s1", "x")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", entry.ExtractedID)
	assert.Equal(t, 212, entry.Duration)
	assert.Equal(t, int64(1), entry.Votes)

	_, err = r.GetSong(ctx, "s2", "x")
	assert.ErrorIs(t, err, room.ErrSongNotFound)

	_, err = r.TakeSong(ctx, &room.RemoveSongParams{SpaceId: "s2", SongId: "x"})
	assert.ErrorIs(t, err, room.ErrSongNotFound)

	entries, err := r.GetQueue(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, queueIds(t, entries))
	assert.Equal(t, "dQw4w9WgXcQ", entries[0].ExtractedID)

	_, err = r.TakeSong(ctx, &room.RemoveSongParams{SpaceId: "s1", SongId: "x"})
	require.NoError(t, err)
	_, err = r.GetSong(ctx, "s1", "x")
	assert.ErrorIs(t, err, room.ErrSongNotFound)
}

func TestVoteToggleAndMove(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	addSongs(t, r, "s1", "x", "y")

	vote := func(songId string, upvote bool) room.VoteOutcome {
		outcome, err := r.Vote(ctx, &room.VoteParams{SpaceId: "s1", SongId: songId, UserId: "u1", Upvote: upvote, VotedAt: time.Now()})
		require.NoError(t, err)
		return outcome
	}
	count := func(songId string) int64 {
		n, err := r.GetVoteCount(ctx, "s1", songId)
		require.NoError(t, err)
		return n
	}

	assert.Equal(t, room.VoteAdded, vote("x", true))
	assert.Equal(t, int64(1), count("x"))

	assert.Equal(t, room.VoteRemoved, vote("x", true), "repeated vote toggles off")
	assert.Equal(t, int64(0), count("x"))

	assert.Equal(t, room.VoteNoop, vote("x", false), "nothing to remove is not an error")
	assert.Equal(t, int64(0), count("x"), "count never goes negative")

	assert.Equal(t, room.VoteAdded, vote("x", true))
	assert.Equal(t, room.VoteMoved, vote("y", true))
	assert.Equal(t, int64(0), count("x"))
	assert.Equal(t, int64(1), count("y"))

	assert.Equal(t, room.VoteRemoved, vote("y", false), "downvote removes the held vote")
	assert.Equal(t, int64(0), count("y"))
}

func TestVoteNoopDownvote(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	addSongs(t, r, "s1", "x")

	outcome, err := r.Vote(ctx, &room.VoteParams{SpaceId: "s1", SongId: "x", UserId: "u1", Upvote: false, VotedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, room.VoteNoop, outcome)
}

func TestVoteCooldown(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()
	addSongs(t, r, "s1", "x", "y")

	params := func(songId string) *room.VoteParams {
		return &room.VoteParams{SpaceId: "s1", SongId: songId, UserId: "u1", Upvote: true, Cooldown: 20 * time.Minute, VotedAt: time.Now()}
	}

	_, err := r.Vote(ctx, params("x"))
	require.NoError(t, err)

	_, err = r.Vote(ctx, params("y"))
	assert.ErrorIs(t, err, room.ErrVoteRateLimited)

	outcome, err := r.Vote(ctx, params("x"))
	require.NoError(t, err, "withdrawing a vote is not rate limited")
	assert.Equal(t, room.VoteRemoved, outcome)

	s.FastForward(21 * time.Minute)

	outcome, err = r.Vote(ctx, params("y"))
	require.NoError(t, err)
	assert.Equal(t, room.VoteAdded, outcome)
}

func TestReorderQueue(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	addSongs(t, r, "s1", "x", "y", "z")

	_, err := r.Vote(ctx, &room.VoteParams{SpaceId: "s1", SongId: "y", UserId: "u1", Upvote: true, VotedAt: time.Now()})
	require.NoError(t, err)

	entries, err := r.ReorderQueue(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "x", "z"}, queueIds(t, entries))
	assert.Equal(t, int64(1), entries[0].Votes)

	_, err = r.Vote(ctx, &room.VoteParams{SpaceId: "s1", SongId: "z", UserId: "u2", Upvote: true, VotedAt: time.Now()})
	require.NoError(t, err)
	_, err = r.Vote(ctx, &room.VoteParams{SpaceId: "s1", SongId: "z", UserId: "u3", Upvote: true, VotedAt: time.Now()})
	require.NoError(t, err)

	_, err = r.ReorderQueue(ctx, "s1")
	require.NoError(t, err)

	entries, err = r.GetQueue(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "y", "x"}, queueIds(t, entries), "order is persisted")

	addSongs(t, r, "s1", "w")
	entries, err = r.ReorderQueue(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "y", "x", "w"}, queueIds(t, entries), "a new song stays behind voted ones")
}

func TestTakeSongKeepsDuplicates(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()
	addSongs(t, r, "s1", "x", "y")

	// same payload pushed twice
	_, err := r.AddSong(ctx, &room.AddSongParams{SpaceId: "s1", Song: room.Song{ID: "x", Title: "song x", AddedAt: 0}})
	require.NoError(t, err)

	song, err := r.TakeSong(ctx, &room.RemoveSongParams{SpaceId: "s1", SongId: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", song.ID)

	entries, err := r.GetQueue(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "x"}, queueIds(t, entries))
	assert.False(t, s.Exists("song:x"))

	err = r.RemoveSong(ctx, &room.RemoveSongParams{SpaceId: "s1", SongId: "missing"})
	assert.ErrorIs(t, err, room.ErrSongNotFound)
}

func TestPopFrontAndEmpty(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()
	addSongs(t, r, "s1", "x", "y", "z")

	song, err := r.PopFront(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "x", song.ID)

	require.NoError(t, r.EmptyQueue(ctx, "s1"))
	assert.False(t, s.Exists("queue:s1"))
	assert.False(t, s.Exists("song:y"))
	assert.False(t, s.Exists("song:z"))

	_, err = r.PopFront(ctx, "s1")
	assert.ErrorIs(t, err, room.ErrQueueEmpty)
}

func TestCurrentAndTimestamp(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()

	_, err := r.GetCurrent(ctx, "s1")
	assert.ErrorIs(t, err, room.ErrCurrentNotFound)

	require.NoError(t, r.SetCurrent(ctx, "s1", &room.Song{ID: "x", Title: "X", Duration: 180}))
	current, err := r.GetCurrent(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "X", current.Title)

	require.NoError(t, r.SetTimestamp(ctx, &room.SetTimestampParams{
		SpaceId:   "s1",
		Timestamp: room.Timestamp{SongID: "x", CurrentTime: 42, IsPlaying: true, Timestamp: 1000, TotalDuration: 180},
		TTL:       10 * time.Second,
	}))
	ts, err := r.GetTimestamp(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 42.0, ts.CurrentTime)

	s.FastForward(11 * time.Second)
	_, err = r.GetTimestamp(ctx, "s1")
	assert.ErrorIs(t, err, room.ErrTimestampNotFound)

	require.NoError(t, r.ClearCurrent(ctx, "s1"))
	_, err = r.GetCurrent(ctx, "s1")
	assert.ErrorIs(t, err, room.ErrCurrentNotFound)
}

func TestSpaceDetailsAndUserInfo(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := r.GetSpaceDetails(ctx, "s1")
	assert.ErrorIs(t, err, room.ErrSpaceDetailsMissing)

	require.NoError(t, r.SetSpaceDetails(ctx, &room.SetSpaceDetailsParams{
		SpaceId: "s1",
		Details: room.SpaceDetails{Name: "Friday", CreatorID: "u1", CreatedAt: 5},
	}))
	details, err := r.GetSpaceDetails(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, room.SpaceDetails{Name: "Friday", CreatorID: "u1", CreatedAt: 5}, details)

	_, err = r.GetUserInfo(ctx, "u1")
	assert.ErrorIs(t, err, room.ErrUserInfoNotFound)

	info := room.UserInfo{UserID: "u1", Name: "Ann", Username: "ann"}
	require.NoError(t, r.SetUserInfo(ctx, &info))
	got, err := r.GetUserInfo(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, info, got)
}

func TestPublishSubscribe(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := r.Subscribe(ctx, "s1")
	require.NoError(t, err)

	require.NoError(t, r.Publish(ctx, "s1", []byte(`{"type":"pause"}`)))

	select {
	case payload := <-events:
		assert.JSONEq(t, `{"type":"pause"}`, string(payload))
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}

	cancel()
	for range events {
	}
}
