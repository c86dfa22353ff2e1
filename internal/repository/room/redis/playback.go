package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/syncspace/internal/repository/room"
)

func (r repo) getCurrentKey(spaceId string) string {
	return "current:" + spaceId
}

func (r repo) getTimestampKey(spaceId string) string {
	return "timestamp-" + spaceId
}

func (r repo) SetCurrent(ctx context.Context, spaceId string, song *room.Song) error {
	r.logger.DebugContext(ctx, "called", "space_id", spaceId, "song_id", song.ID)
	data, err := json.Marshal(song)
	if err != nil {
		return fmt.Errorf("failed to marshal current song: %w", err)
	}

	if err := r.rc.Set(ctx, r.getCurrentKey(spaceId), data, r.currentTTL).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to set current song: %w", err)
	}

	return nil
}

func (r repo) GetCurrent(ctx context.Context, spaceId string) (room.Song, error) {
	data, err := r.rc.Get(ctx, r.getCurrentKey(spaceId)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return room.Song{}, room.ErrCurrentNotFound
		}
		return room.Song{}, fmt.Errorf("failed to get current song: %w", err)
	}

	var song room.Song
	if err := json.Unmarshal(data, &song); err != nil {
		return room.Song{}, fmt.Errorf("failed to decode current song: %w", err)
	}

	return song, nil
}

func (r repo) ClearCurrent(ctx context.Context, spaceId string) error {
	r.logger.DebugContext(ctx, "called", "space_id", spaceId)
	if err := r.rc.Del(ctx, r.getCurrentKey(spaceId), r.getTimestampKey(spaceId)).Err(); err != nil {
		return fmt.Errorf("failed to clear current song: %w", err)
	}

	return nil
}

func (r repo) SetTimestamp(ctx context.Context, params *room.SetTimestampParams) error {
	data, err := json.Marshal(params.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	if err := r.rc.Set(ctx, r.getTimestampKey(params.SpaceId), data, params.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set timestamp: %w", err)
	}

	return nil
}

func (r repo) GetTimestamp(ctx context.Context, spaceId string) (room.Timestamp, error) {
	data, err := r.rc.Get(ctx, r.getTimestampKey(spaceId)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return room.Timestamp{}, room.ErrTimestampNotFound
		}
		return room.Timestamp{}, fmt.Errorf("failed to get timestamp: %w", err)
	}

	var ts room.Timestamp
	if err := json.Unmarshal(data, &ts); err != nil {
		return room.Timestamp{}, fmt.Errorf("failed to decode timestamp: %w", err)
	}

	return ts, nil
}
