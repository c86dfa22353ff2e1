package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sharetube/syncspace/internal/metrics"
	"github.com/sharetube/syncspace/internal/repository/room"
)

type space struct {
	mu sync.Mutex

	id        string
	name      string
	creatorId string
	users     map[string]room.UserInfo
	playback  playback

	loop        *broadcastLoop
	seekGen     int
	seekTimer   *time.Timer
	unsubscribe context.CancelFunc
	closed      bool
}

// getOrCreateSpace returns the in-process space, rebuilding it from Redis
// when this process has not seen it yet.
func (s *service) getOrCreateSpace(ctx context.Context, spaceId string) (*space, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSpaceNotFound
	}
	if sp, ok := s.spaces[spaceId]; ok {
		s.mu.Unlock()
		return sp, nil
	}
	s.mu.Unlock()

	sp, err := s.loadSpace(ctx, spaceId)
	if err != nil {
		return nil, err
	}
	events := s.subscribe(ctx, sp)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.spaces[spaceId]; ok {
		if sp.unsubscribe != nil {
			sp.unsubscribe()
		}
		return existing, nil
	}
	s.spaces[spaceId] = sp
	metrics.SpaceCreated()
	if events != nil {
		s.wg.Add(1)
		go s.relay(sp, events)
	}
	s.logger.InfoContext(ctx, "space created", "space_id", spaceId, "creator_id", sp.creatorId, "recovered", sp.playback.song != nil)

	return sp, nil
}

func (s *service) loadSpace(ctx context.Context, spaceId string) (*space, error) {
	sp := &space{
		id:    spaceId,
		name:  "Space " + spaceId,
		users: make(map[string]room.UserInfo),
	}
	sp.playback.unload()

	details, err := s.roomRepo.GetSpaceDetails(ctx, spaceId)
	switch {
	case err == nil:
		sp.creatorId = details.CreatorID
		if details.Name != "" {
			sp.name = details.Name
		}
	case !errors.Is(err, room.ErrSpaceDetailsMissing):
		return nil, fmt.Errorf("failed to get space details: %w", err)
	}

	current, err := s.roomRepo.GetCurrent(ctx, spaceId)
	switch {
	case err == nil:
		sp.playback.load(&current)
		ts, err := s.roomRepo.GetTimestamp(ctx, spaceId)
		if err == nil && ts.SongID == current.ID {
			sp.playback.pausedAt = sp.playback.clamp(ts.CurrentTime)
			sp.playback.state = StatePaused
		} else if err != nil && !errors.Is(err, room.ErrTimestampNotFound) {
			s.logger.WarnContext(ctx, "failed to recover timestamp", "space_id", spaceId, "error", err)
		}
	case !errors.Is(err, room.ErrCurrentNotFound):
		return nil, fmt.Errorf("failed to get current song: %w", err)
	}

	return sp, nil
}

// destroySpaceLocked drops an empty space, keeping its Redis state so it can
// be recovered.
func (s *service) destroySpaceLocked(ctx context.Context, sp *space) {
	s.snapshotLocked(ctx, sp)
	s.shutdownLocked(sp)

	s.mu.Lock()
	if s.spaces[sp.id] == sp {
		delete(s.spaces, sp.id)
	}
	s.mu.Unlock()

	metrics.SpaceDestroyed()
	s.logger.InfoContext(ctx, "space destroyed", "space_id", sp.id)
}

func (s *service) shutdownLocked(sp *space) {
	if sp.closed {
		return
	}
	sp.closed = true
	sp.stopLoopLocked()
	sp.cancelSeekLocked()
	if sp.unsubscribe != nil {
		sp.unsubscribe()
		sp.unsubscribe = nil
	}
}

func (s *service) usersLocked(sp *space) []User {
	ids := s.connRepo.GetUserIds(sp.id)
	users := make([]User, 0, len(ids))
	for _, id := range ids {
		info, ok := sp.users[id]
		if !ok {
			info = anonymousUser(id)
		}
		users = append(users, User{
			Id:        id,
			Name:      info.Name,
			Username:  info.Username,
			ImageURL:  info.ImageURL,
			IsCreator: id == sp.creatorId,
		})
	}

	return users
}
