package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/syncspace/internal/repository/room"
)

func (r repo) getQueueKey(spaceId string) string {
	return "queue:" + spaceId
}

func (r repo) getSongKey(songId string) string {
	return "song:" + songId
}

func (r repo) getVotesKeyPrefix(spaceId string) string {
	return "votes:" + spaceId + ":"
}

func (r repo) getVotesKey(spaceId, songId string) string {
	return r.getVotesKeyPrefix(spaceId) + songId
}

func (r repo) getUserVoteKey(spaceId, userId string) string {
	return "uservote:" + spaceId + ":" + userId
}

func (r repo) getLastVotedKey(spaceId, userId string) string {
	return "lastVoted-" + spaceId + "-" + userId
}

func (r repo) AddSong(ctx context.Context, params *room.AddSongParams) (int, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	queueKey := r.getQueueKey(params.SpaceId)

	length, err := r.rc.LLen(ctx, queueKey).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}

	if params.Limit > 0 && int(length) >= params.Limit {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrQueueFull)
		return int(length), room.ErrQueueFull
	}

	data, err := json.Marshal(params.Song)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal song: %w", err)
	}

	pipe := r.rc.TxPipeline()
	pipe.RPush(ctx, queueKey, data)
	pipe.Expire(ctx, queueKey, r.expireDuration)

	songKey := r.getSongKey(params.Song.ID)
	r.hSetStruct(ctx, pipe, songKey, params.Song)
	pipe.HSet(ctx, songKey, songSpaceField, params.SpaceId)
	pipe.Expire(ctx, songKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return 0, fmt.Errorf("failed to add song: %w", err)
	}

	return int(length) + 1, nil
}

// songSpaceField ties a song hash to the space whose queue holds the song.
const songSpaceField = "space_id"

// GetSong reads a queued song and its vote count from the song hash without
// scanning the queue.
func (r repo) GetSong(ctx context.Context, spaceId, songId string) (room.QueueEntry, error) {
	r.logger.DebugContext(ctx, "called", "space_id", spaceId, "song_id", songId)

	cmd := r.rc.HGetAll(ctx, r.getSongKey(songId))
	fields, err := cmd.Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.QueueEntry{}, fmt.Errorf("failed to get song: %w", err)
	}
	if fields[songSpaceField] != spaceId {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrSongNotFound)
		return room.QueueEntry{}, room.ErrSongNotFound
	}

	var song room.Song
	if err := cmd.Scan(&song); err != nil {
		return room.QueueEntry{}, fmt.Errorf("failed to decode song: %w", err)
	}

	votes, err := r.GetVoteCount(ctx, spaceId, songId)
	if err != nil {
		return room.QueueEntry{}, err
	}

	return room.QueueEntry{Song: song, Votes: votes}, nil
}

func (r repo) GetQueueLength(ctx context.Context, spaceId string) (int, error) {
	length, err := r.rc.LLen(ctx, r.getQueueKey(spaceId)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}

	return int(length), nil
}

func (r repo) getSongs(ctx context.Context, spaceId string) ([]room.Song, []string, error) {
	raw, err := r.rc.LRange(ctx, r.getQueueKey(spaceId), 0, -1).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read queue: %w", err)
	}

	songs := make([]room.Song, 0, len(raw))
	kept := make([]string, 0, len(raw))
	for _, item := range raw {
		var song room.Song
		if err := json.Unmarshal([]byte(item), &song); err != nil {
			r.logger.WarnContext(ctx, "skipping undecodable queue entry", "space_id", spaceId, "error", err)
			continue
		}
		songs = append(songs, song)
		kept = append(kept, item)
	}

	return songs, kept, nil
}

func (r repo) withVotes(ctx context.Context, spaceId string, songs []room.Song) ([]room.QueueEntry, error) {
	pipe := r.rc.Pipeline()
	cmds := make([]*redis.IntCmd, len(songs))
	for i := range songs {
		cmds[i] = pipe.ZCard(ctx, r.getVotesKey(spaceId, songs[i].ID))
	}

	if len(songs) > 0 {
		if err := r.executePipe(ctx, pipe); err != nil {
			return nil, fmt.Errorf("failed to count votes: %w", err)
		}
	}

	entries := make([]room.QueueEntry, len(songs))
	for i := range songs {
		entries[i] = room.QueueEntry{Song: songs[i], Votes: cmds[i].Val()}
	}

	return entries, nil
}

func (r repo) GetQueue(ctx context.Context, spaceId string) ([]room.QueueEntry, error) {
	r.logger.DebugContext(ctx, "called", "space_id", spaceId)
	songs, _, err := r.getSongs(ctx, spaceId)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	return r.withVotes(ctx, spaceId, songs)
}

// ReorderQueue rewrites the queue as a stable sort by votes descending, then
// by addedAt ascending, and returns the new order.
func (r repo) ReorderQueue(ctx context.Context, spaceId string) ([]room.QueueEntry, error) {
	r.logger.DebugContext(ctx, "called", "space_id", spaceId)
	queueKey := r.getQueueKey(spaceId)

	songs, raw, err := r.getSongs(ctx, spaceId)
	if err != nil {
		return nil, err
	}

	entries, err := r.withVotes(ctx, spaceId, songs)
	if err != nil {
		return nil, err
	}

	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := entries[order[a]], entries[order[b]]
		if ea.Votes != eb.Votes {
			return ea.Votes > eb.Votes
		}
		return ea.AddedAt < eb.AddedAt
	})

	sorted := make([]room.QueueEntry, len(entries))
	values := make([]interface{}, len(entries))
	for i, idx := range order {
		sorted[i] = entries[idx]
		values[i] = raw[idx]
	}

	pipe := r.rc.TxPipeline()
	pipe.Del(ctx, queueKey)
	if len(values) > 0 {
		pipe.RPush(ctx, queueKey, values...)
		pipe.Expire(ctx, queueKey, r.expireDuration)
	}
	// song hashes live as long as the list that holds them
	for i := range sorted {
		pipe.Expire(ctx, r.getSongKey(sorted[i].ID), r.expireDuration)
	}

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, fmt.Errorf("failed to rewrite queue: %w", err)
	}

	return sorted, nil
}

// removeAt deletes the list entry at index by overwriting it with a unique
// sentinel and removing the sentinel, so equal entries elsewhere survive.
func (r repo) removeAt(ctx context.Context, queueKey string, index int) error {
	sentinel := "__removed__:" + uuid.NewString()

	pipe := r.rc.TxPipeline()
	pipe.LSet(ctx, queueKey, int64(index), sentinel)
	pipe.LRem(ctx, queueKey, 1, sentinel)

	return r.executePipe(ctx, pipe)
}

func (r repo) forgetSong(ctx context.Context, spaceId, songId string) {
	if err := r.rc.Del(ctx, r.getSongKey(songId), r.getVotesKey(spaceId, songId)).Err(); err != nil {
		r.logger.WarnContext(ctx, "failed to delete song keys", "song_id", songId, "error", err)
	}
}

// TakeSong removes songId from the queue and returns it.
func (r repo) TakeSong(ctx context.Context, params *room.RemoveSongParams) (room.Song, error) {
	r.logger.DebugContext(ctx, "called", "params", params)

	if _, err := r.GetSong(ctx, params.SpaceId, params.SongId); err != nil {
		return room.Song{}, err
	}

	raw, err := r.rc.LRange(ctx, r.getQueueKey(params.SpaceId), 0, -1).Result()
	if err != nil {
		return room.Song{}, fmt.Errorf("failed to read queue: %w", err)
	}

	for i, item := range raw {
		var song room.Song
		if json.Unmarshal([]byte(item), &song) != nil || song.ID != params.SongId {
			continue
		}

		if err := r.removeAt(ctx, r.getQueueKey(params.SpaceId), i); err != nil {
			r.logger.DebugContext(ctx, "returned", "error", err)
			return room.Song{}, fmt.Errorf("failed to remove song: %w", err)
		}
		r.forgetSong(ctx, params.SpaceId, song.ID)

		return song, nil
	}

	r.logger.DebugContext(ctx, "returned", "error", room.ErrSongNotFound)
	return room.Song{}, room.ErrSongNotFound
}

func (r repo) RemoveSong(ctx context.Context, params *room.RemoveSongParams) error {
	_, err := r.TakeSong(ctx, params)
	return err
}

// PopFront removes and returns the highest ranked song.
func (r repo) PopFront(ctx context.Context, spaceId string) (room.Song, error) {
	r.logger.DebugContext(ctx, "called", "space_id", spaceId)

	for {
		item, err := r.rc.LPop(ctx, r.getQueueKey(spaceId)).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return room.Song{}, room.ErrQueueEmpty
			}
			return room.Song{}, fmt.Errorf("failed to pop song: %w", err)
		}

		var song room.Song
		if err := json.Unmarshal([]byte(item), &song); err != nil {
			r.logger.WarnContext(ctx, "dropping undecodable queue entry", "space_id", spaceId, "error", err)
			continue
		}
		r.forgetSong(ctx, spaceId, song.ID)

		return song, nil
	}
}

func (r repo) EmptyQueue(ctx context.Context, spaceId string) error {
	r.logger.DebugContext(ctx, "called", "space_id", spaceId)

	songs, _, err := r.getSongs(ctx, spaceId)
	if err != nil {
		return err
	}

	keys := make([]string, 0, 2*len(songs)+1)
	keys = append(keys, r.getQueueKey(spaceId))
	for _, song := range songs {
		keys = append(keys, r.getSongKey(song.ID), r.getVotesKey(spaceId, song.ID))
	}

	if err := r.rc.Del(ctx, keys...).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to empty queue: %w", err)
	}

	return nil
}

func (r repo) Vote(ctx context.Context, params *room.VoteParams) (room.VoteOutcome, error) {
	r.logger.DebugContext(ctx, "called", "params", params)

	upvote := "0"
	if params.Upvote {
		upvote = "1"
	}

	res, err := voteScript.Run(ctx, r.rc,
		[]string{
			r.getUserVoteKey(params.SpaceId, params.UserId),
			r.getVotesKey(params.SpaceId, params.SongId),
			r.getLastVotedKey(params.SpaceId, params.UserId),
		},
		params.SongId,
		params.UserId,
		params.VotedAt.UnixMilli(),
		upvote,
		strconv.FormatInt(params.Cooldown.Milliseconds(), 10),
		r.getVotesKeyPrefix(params.SpaceId),
		strconv.FormatInt(r.expireDuration.Milliseconds(), 10),
	).Text()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return "", fmt.Errorf("failed to vote: %w", err)
	}

	if res == "rate_limited" {
		return "", room.ErrVoteRateLimited
	}

	return room.VoteOutcome(res), nil
}

func (r repo) GetVoteCount(ctx context.Context, spaceId, songId string) (int64, error) {
	n, err := r.rc.ZCard(ctx, r.getVotesKey(spaceId, songId)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}

	return n, nil
}
