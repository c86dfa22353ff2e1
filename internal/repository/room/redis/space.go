package redis

import (
	"context"
	"fmt"

	"github.com/sharetube/syncspace/internal/repository/room"
)

func (r repo) getSpaceDetailsKey(spaceId string) string {
	return "space-details-" + spaceId
}

func (r repo) getUserInfoKey(userId string) string {
	return "user-info-" + userId
}

func (r repo) getEventsChannel(spaceId string) string {
	return "space-events:" + spaceId
}

func (r repo) SetSpaceDetails(ctx context.Context, params *room.SetSpaceDetailsParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	key := r.getSpaceDetailsKey(params.SpaceId)

	pipe := r.rc.TxPipeline()
	r.hSetStruct(ctx, pipe, key, params.Details)
	pipe.Expire(ctx, key, r.spaceTTL)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to set space details: %w", err)
	}

	return nil
}

func (r repo) GetSpaceDetails(ctx context.Context, spaceId string) (room.SpaceDetails, error) {
	var details room.SpaceDetails
	if err := r.rc.HGetAll(ctx, r.getSpaceDetailsKey(spaceId)).Scan(&details); err != nil {
		return room.SpaceDetails{}, fmt.Errorf("failed to get space details: %w", err)
	}

	if details.CreatorID == "" && details.Name == "" {
		return room.SpaceDetails{}, room.ErrSpaceDetailsMissing
	}

	return details, nil
}

func (r repo) SetUserInfo(ctx context.Context, info *room.UserInfo) error {
	key := r.getUserInfoKey(info.UserID)

	pipe := r.rc.TxPipeline()
	r.hSetStruct(ctx, pipe, key, info)
	pipe.Expire(ctx, key, r.userInfoTTL)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set user info: %w", err)
	}

	return nil
}

func (r repo) GetUserInfo(ctx context.Context, userId string) (room.UserInfo, error) {
	var info room.UserInfo
	if err := r.rc.HGetAll(ctx, r.getUserInfoKey(userId)).Scan(&info); err != nil {
		return room.UserInfo{}, fmt.Errorf("failed to get user info: %w", err)
	}

	if info.UserID == "" {
		return room.UserInfo{}, room.ErrUserInfoNotFound
	}

	return info, nil
}

func (r repo) Publish(ctx context.Context, spaceId string, payload []byte) error {
	if err := r.rc.Publish(ctx, r.getEventsChannel(spaceId), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish space event: %w", err)
	}

	return nil
}

// Subscribe streams the raw payloads published for spaceId until ctx is done.
func (r repo) Subscribe(ctx context.Context, spaceId string) (<-chan []byte, error) {
	ps := r.rc.Subscribe(ctx, r.getEventsChannel(spaceId))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to space events: %w", err)
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer ps.Close()

		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
