package room

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sharetube/syncspace/internal/repository/room"
	"github.com/sharetube/syncspace/internal/workerpool"
)

type AddToQueueParams struct {
	SpaceId string
	UserId  string
	TrackInput
	AutoPlay bool
}

// AddToQueue resolves a track and appends it to the queue. The track is
// resolved outside the space lock; the queue mutation and any advance to
// the new song happen under it.
func (s *service) AddToQueue(ctx context.Context, params *AddToQueueParams) (room.Song, error) {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.SpaceId, SpaceIdRule...),
		validation.Field(&params.UserId, UserIdRule...),
		validation.Field(&params.URL, SongURLRule...),
		validation.Field(&params.Query, QueryRule...),
	); err != nil {
		return room.Song{}, invalidInput(err)
	}

	req, err := s.checkInput(&params.TrackInput)
	if err != nil {
		return room.Song{}, err
	}

	length, err := s.roomRepo.GetQueueLength(ctx, params.SpaceId)
	if err != nil {
		return room.Song{}, fmt.Errorf("failed to get queue length: %w", err)
	}
	if length >= s.cfg.QueueLimit {
		return room.Song{}, ErrQueueFull
	}

	track, err := s.resolve(ctx, req)
	if err != nil {
		return room.Song{}, err
	}

	sp, err := s.lockSpace(params.SpaceId)
	if err != nil {
		return room.Song{}, err
	}
	defer sp.mu.Unlock()

	song := s.newSong(track, params.UserId)
	length, err = s.roomRepo.AddSong(ctx, &room.AddSongParams{
		SpaceId: sp.id,
		Song:    song,
		Limit:   s.cfg.QueueLimit,
	})
	if err != nil {
		return room.Song{}, mapRepoErr(err)
	}

	s.broadcastLocked(ctx, sp, EventSongAdded, SongAdded{Song: song, AddedBy: params.UserId})

	autoPlay := params.AutoPlay && sp.creatorId == params.UserId
	if (length == 1 && sp.playback.song == nil) || autoPlay {
		taken, err := s.roomRepo.TakeSong(ctx, &room.RemoveSongParams{SpaceId: sp.id, SongId: song.ID})
		if err != nil {
			return room.Song{}, mapRepoErr(err)
		}
		if err := s.playSongLocked(ctx, sp, &taken); err != nil {
			return room.Song{}, err
		}
		return song, nil
	}

	s.broadcastQueueLocked(ctx, sp, nil)
	return song, nil
}

type AddBatchToQueueParams struct {
	SpaceId string
	UserId  string
	Items   []TrackInput
}

// AddBatchToQueue resolves an ordered list of tracks and queues as many as
// capacity allows. Items that fail validation, resolution or capacity are
// reported as skipped.
func (s *service) AddBatchToQueue(ctx context.Context, params *AddBatchToQueueParams) (BatchAddResult, error) {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.SpaceId, SpaceIdRule...),
		validation.Field(&params.UserId, UserIdRule...),
		validation.Field(&params.Items, validation.Required, validation.Length(1, 50)),
	); err != nil {
		return BatchAddResult{}, invalidInput(err)
	}

	length, err := s.roomRepo.GetQueueLength(ctx, params.SpaceId)
	if err != nil {
		return BatchAddResult{}, fmt.Errorf("failed to get queue length: %w", err)
	}
	remaining := s.cfg.QueueLimit - length
	if remaining <= 0 {
		return BatchAddResult{}, ErrQueueFull
	}

	result := BatchAddResult{Added: []room.Song{}, Skipped: []SkippedItem{}}
	reqs := make([]*workerpool.TrackRequest, 0, len(params.Items))
	reqIdx := make([]int, 0, len(params.Items))
	for i := range params.Items {
		req, err := s.checkInput(&params.Items[i])
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{Index: i, Reason: err.Error()})
			continue
		}
		if len(reqs) == remaining {
			result.Skipped = append(result.Skipped, SkippedItem{Index: i, Reason: ErrQueueFull.Error()})
			continue
		}
		reqs = append(reqs, req)
		reqIdx = append(reqIdx, i)
	}

	resolved := s.resolveBatch(ctx, reqs)

	sp, err := s.lockSpace(params.SpaceId)
	if err != nil {
		return BatchAddResult{}, err
	}
	defer sp.mu.Unlock()

	for j, r := range resolved {
		if r.err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{Index: reqIdx[j], Reason: r.err.Error()})
			continue
		}

		song := s.newSong(r.track, params.UserId)
		if _, err := s.roomRepo.AddSong(ctx, &room.AddSongParams{
			SpaceId: sp.id,
			Song:    song,
			Limit:   s.cfg.QueueLimit,
		}); err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{Index: reqIdx[j], Reason: mapRepoErr(err).Error()})
			continue
		}

		result.Added = append(result.Added, song)
		s.broadcastLocked(ctx, sp, EventSongAdded, SongAdded{Song: song, AddedBy: params.UserId})
	}

	if len(result.Added) > 0 && length == 0 && sp.playback.song == nil {
		first := result.Added[0]
		taken, err := s.roomRepo.TakeSong(ctx, &room.RemoveSongParams{SpaceId: sp.id, SongId: first.ID})
		if err == nil {
			err = s.playSongLocked(ctx, sp, &taken)
		}
		if err != nil {
			s.logger.WarnContext(ctx, "failed to start first batch song", "space_id", sp.id, "error", err)
		}
	} else if len(result.Added) > 0 {
		s.broadcastQueueLocked(ctx, sp, nil)
	}

	return result, nil
}

type VoteParams struct {
	SpaceId string
	UserId  string
	SongId  string
	Upvote  bool
}

// Vote applies a user's vote and reorders the queue. Non-creators are held
// to the vote cooldown when they place or move a vote.
func (s *service) Vote(ctx context.Context, params *VoteParams) ([]room.QueueEntry, error) {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.SpaceId, SpaceIdRule...),
		validation.Field(&params.UserId, UserIdRule...),
		validation.Field(&params.SongId, SongIdRule...),
	); err != nil {
		return nil, invalidInput(err)
	}

	sp, err := s.lockSpace(params.SpaceId)
	if err != nil {
		return nil, err
	}
	defer sp.mu.Unlock()

	if _, err := s.roomRepo.GetSong(ctx, sp.id, params.SongId); err != nil {
		return nil, mapRepoErr(err)
	}

	cooldown := s.cfg.VoteCooldown
	if sp.creatorId == params.UserId {
		cooldown = 0
	}

	outcome, err := s.roomRepo.Vote(ctx, &room.VoteParams{
		SpaceId:  sp.id,
		SongId:   params.SongId,
		UserId:   params.UserId,
		Upvote:   params.Upvote,
		Cooldown: cooldown,
		VotedAt:  s.now(),
	})
	if err != nil {
		return nil, mapRepoErr(err)
	}

	if outcome == room.VoteNoop {
		queue, err := s.roomRepo.GetQueue(ctx, sp.id)
		if err != nil {
			return nil, fmt.Errorf("failed to get queue: %w", err)
		}
		return queue, nil
	}

	queue, err := s.roomRepo.ReorderQueue(ctx, sp.id)
	if err != nil {
		return nil, fmt.Errorf("failed to reorder queue: %w", err)
	}
	s.broadcastQueueLocked(ctx, sp, queue)

	return queue, nil
}

type RemoveSongParams struct {
	SpaceId string
	UserId  string
	SongId  string
}

func (s *service) RemoveSong(ctx context.Context, params *RemoveSongParams) error {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.SpaceId, SpaceIdRule...),
		validation.Field(&params.UserId, UserIdRule...),
		validation.Field(&params.SongId, SongIdRule...),
	); err != nil {
		return invalidInput(err)
	}

	sp, err := s.lockSpace(params.SpaceId)
	if err != nil {
		return err
	}
	defer sp.mu.Unlock()

	if err := s.requireCreator(sp, params.UserId); err != nil {
		return err
	}

	if err := s.roomRepo.RemoveSong(ctx, &room.RemoveSongParams{SpaceId: sp.id, SongId: params.SongId}); err != nil {
		return mapRepoErr(err)
	}

	s.broadcastQueueLocked(ctx, sp, nil)
	return nil
}

type EmptyQueueParams struct {
	SpaceId string
	UserId  string
}

func (s *service) EmptyQueue(ctx context.Context, params *EmptyQueueParams) error {
	sp, err := s.lockSpace(params.SpaceId)
	if err != nil {
		return err
	}
	defer sp.mu.Unlock()

	if err := s.requireCreator(sp, params.UserId); err != nil {
		return err
	}

	if err := s.roomRepo.EmptyQueue(ctx, sp.id); err != nil {
		return fmt.Errorf("failed to empty queue: %w", err)
	}

	s.broadcastQueueLocked(ctx, sp, []room.QueueEntry{})
	return nil
}

type GetQueueParams struct {
	SpaceId string
	UserId  string
}

func (s *service) GetQueue(ctx context.Context, params *GetQueueParams) (Queue, error) {
	sp, err := s.lockSpace(params.SpaceId)
	if err != nil {
		return Queue{}, err
	}
	defer sp.mu.Unlock()

	queue, err := s.roomRepo.GetQueue(ctx, sp.id)
	if err != nil {
		return Queue{}, fmt.Errorf("failed to get queue: %w", err)
	}

	return Queue{Songs: queue}, nil
}

// broadcastQueueLocked sends the queue to the space, reading it first when
// queue is nil.
func (s *service) broadcastQueueLocked(ctx context.Context, sp *space, queue []room.QueueEntry) {
	if queue == nil {
		var err error
		queue, err = s.roomRepo.GetQueue(ctx, sp.id)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to read queue for broadcast", "space_id", sp.id, "error", err)
			return
		}
	}

	s.broadcastLocked(ctx, sp, EventQueueUpdate, Queue{Songs: queue})
}
