package room

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sharetube/syncspace/internal/metrics"
	"github.com/sharetube/syncspace/internal/repository/connection"
	"github.com/sharetube/syncspace/internal/repository/room"
)

type JoinRoomParams struct {
	Conn    connection.Conn
	SpaceId string
	UserId  string
	Token   string
	// CreatorIdHint names the creator of a space that has none yet. The
	// joiner is used when empty.
	CreatorIdHint string
	SpaceName     string
}

// JoinRoom attaches a socket to a space, creating the space on first join.
// The first user to join an unowned space becomes its creator for the
// space's lifetime unless a creator hint is given. The joiner receives room-info, current-queue, the
// current song and an initial timestamp sync, in that order.
func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) error {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.SpaceId, SpaceIdRule...),
		validation.Field(&params.UserId, UserIdRule...),
		validation.Field(&params.CreatorIdHint, validation.Length(0, 128)),
		validation.Field(&params.SpaceName, validation.Length(0, 100)),
	); err != nil {
		return invalidInput(err)
	}

	info := s.identify(ctx, params.UserId, params.Token)

	for {
		sp, err := s.getOrCreateSpace(ctx, params.SpaceId)
		if err != nil {
			return fmt.Errorf("failed to get space: %w", err)
		}

		sp.mu.Lock()
		if sp.closed {
			// lost a race with the last user leaving
			sp.mu.Unlock()
			continue
		}
		err = s.joinLocked(ctx, sp, params, info)
		sp.mu.Unlock()

		return err
	}
}

func (s *service) joinLocked(ctx context.Context, sp *space, params *JoinRoomParams, info room.UserInfo) error {
	if sp.creatorId == "" {
		sp.creatorId = params.UserId
		if params.CreatorIdHint != "" {
			sp.creatorId = params.CreatorIdHint
		}
		if params.SpaceName != "" {
			sp.name = params.SpaceName
		}
		if err := s.roomRepo.SetSpaceDetails(ctx, &room.SetSpaceDetailsParams{
			SpaceId: sp.id,
			Details: room.SpaceDetails{
				Name:      sp.name,
				CreatorID: sp.creatorId,
				CreatedAt: s.now().UnixMilli(),
			},
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to persist space details", "space_id", sp.id, "error", err)
		}
	}

	if err := s.connRepo.Add(params.Conn, sp.id, params.UserId); err != nil {
		return fmt.Errorf("failed to add connection: %w", err)
	}
	metrics.SocketAttached()
	sp.users[params.UserId] = info

	users := s.usersLocked(sp)
	s.send(ctx, params.Conn, EventRoomInfo, RoomInfo{
		SpaceId:   sp.id,
		Name:      sp.name,
		CreatorId: sp.creatorId,
		IsCreator: sp.creatorId == params.UserId,
		Users:     users,
		State:     string(sp.playback.state),
	})

	queue, err := s.roomRepo.GetQueue(ctx, sp.id)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load queue for joiner", "space_id", sp.id, "error", err)
		queue = []room.QueueEntry{}
	}
	s.send(ctx, params.Conn, EventCurrentQueue, Queue{Songs: queue})

	if sp.playback.song != nil {
		s.send(ctx, params.Conn, EventCurrentSong, s.currentSongLocked(sp))
		ts := sp.playback.timestamp(s.now())
		ts.IsInitialSync = true
		s.send(ctx, params.Conn, EventTimestampSync, ts)
	}

	s.broadcastLocked(ctx, sp, EventUserUpdate, UserUpdate{
		Users:   users,
		Joined:  params.UserId,
		Creator: sp.creatorId,
	})

	s.logger.InfoContext(ctx, "user joined", "space_id", sp.id, "user_id", params.UserId)
	return nil
}

// Disconnect detaches a socket. The space is dropped from memory once its
// last socket leaves; its Redis state is kept for recovery.
func (s *service) Disconnect(ctx context.Context, conn connection.Conn) error {
	member, userGone, spaceEmpty, err := s.connRepo.Remove(conn)
	if err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			return ErrNotJoined
		}
		return err
	}
	metrics.SocketDetached()

	sp, err := s.lockSpace(member.SpaceId)
	if err != nil {
		return nil
	}
	defer sp.mu.Unlock()

	if spaceEmpty && len(s.connRepo.GetUserIds(sp.id)) == 0 {
		s.destroySpaceLocked(ctx, sp)
		return nil
	}

	if userGone {
		delete(sp.users, member.UserId)
		s.broadcastLocked(ctx, sp, EventUserUpdate, UserUpdate{
			Users:   s.usersLocked(sp),
			Left:    member.UserId,
			Creator: sp.creatorId,
		})
	}

	s.logger.InfoContext(ctx, "user left", "space_id", sp.id, "user_id", member.UserId, "user_gone", userGone)
	return nil
}

type GetRoomUsersParams struct {
	SpaceId string
	UserId  string
}

func (s *service) GetRoomUsers(ctx context.Context, params *GetRoomUsersParams) (UserUpdate, error) {
	sp, err := s.lockSpace(params.SpaceId)
	if err != nil {
		return UserUpdate{}, err
	}
	defer sp.mu.Unlock()

	return UserUpdate{Users: s.usersLocked(sp), Creator: sp.creatorId}, nil
}
