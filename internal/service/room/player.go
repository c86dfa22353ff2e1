package room

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sharetube/syncspace/internal/repository/room"
)

type PlaybackParams struct {
	SpaceId string
	UserId  string
}

// lockForPlayback locks the space and checks the sender may drive playback.
func (s *service) lockForPlayback(params *PlaybackParams) (*space, error) {
	sp, err := s.lockSpace(params.SpaceId)
	if err != nil {
		return nil, err
	}

	if err := s.requireCreator(sp, params.UserId); err != nil {
		sp.mu.Unlock()
		return nil, err
	}

	return sp, nil
}

func (s *service) Play(ctx context.Context, params *PlaybackParams) error {
	sp, err := s.lockForPlayback(params)
	if err != nil {
		return err
	}
	defer sp.mu.Unlock()

	if sp.playback.song == nil {
		return ErrNothingPlaying
	}

	now := s.now()
	if sp.playback.play(now) && !s.seekSuppressedLocked(sp) {
		s.startLoopLocked(sp)
	}

	s.broadcastLocked(ctx, sp, EventPlay, PlaybackChange{
		SongId:      sp.playback.song.ID,
		CurrentTime: sp.playback.elapsed(now),
		ChangedBy:   params.UserId,
	})
	s.syncLocked(ctx, sp, false)

	return nil
}

func (s *service) Pause(ctx context.Context, params *PlaybackParams) error {
	sp, err := s.lockForPlayback(params)
	if err != nil {
		return err
	}
	defer sp.mu.Unlock()

	if sp.playback.song == nil {
		return ErrNothingPlaying
	}

	now := s.now()
	sp.playback.pause(now)
	sp.stopLoopLocked()

	s.broadcastLocked(ctx, sp, EventPause, PlaybackChange{
		SongId:      sp.playback.song.ID,
		CurrentTime: sp.playback.elapsed(now),
		ChangedBy:   params.UserId,
	})
	s.syncLocked(ctx, sp, false)

	return nil
}

type SeekParams struct {
	SpaceId string
	UserId  string
	Time    float64
}

// Seek starts playback at Time seconds, from any state with a current song.
// Periodic broadcasts are held back until the seek settles; one fresh packet
// is sent right away.
func (s *service) Seek(ctx context.Context, params *SeekParams) error {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.Time, SeekTimeRule...),
	); err != nil {
		return invalidInput(err)
	}

	sp, err := s.lockForPlayback(&PlaybackParams{SpaceId: params.SpaceId, UserId: params.UserId})
	if err != nil {
		return err
	}
	defer sp.mu.Unlock()

	if sp.playback.song == nil {
		return ErrNothingPlaying
	}

	now := s.now()
	sp.playback.seek(now, params.Time)
	s.suppressLoopLocked(sp)

	s.broadcastLocked(ctx, sp, EventSeek, PlaybackChange{
		SongId:      sp.playback.song.ID,
		CurrentTime: sp.playback.elapsed(now),
		ChangedBy:   params.UserId,
		ForceSync:   true,
	})
	s.syncLocked(ctx, sp, false)

	return nil
}

// PlayNext advances to the highest ranked song. On an empty queue the space
// goes idle and queue-empty is broadcast; the returned song is then nil.
func (s *service) PlayNext(ctx context.Context, params *PlaybackParams) (*room.Song, error) {
	sp, err := s.lockForPlayback(params)
	if err != nil {
		return nil, err
	}
	defer sp.mu.Unlock()

	song, err := s.roomRepo.PopFront(ctx, sp.id)
	if err != nil {
		if errors.Is(err, room.ErrQueueEmpty) {
			return nil, s.queueEmptyLocked(ctx, sp)
		}
		return nil, fmt.Errorf("failed to pop next song: %w", err)
	}

	if err := s.playSongLocked(ctx, sp, &song); err != nil {
		return nil, err
	}

	return &song, nil
}

type PlaySongParams struct {
	SpaceId string
	UserId  string
	SongId  string
}

// PlaySong takes a specific song out of the queue and plays it now.
func (s *service) PlaySong(ctx context.Context, params *PlaySongParams) (*room.Song, error) {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.SongId, SongIdRule...),
	); err != nil {
		return nil, invalidInput(err)
	}

	sp, err := s.lockForPlayback(&PlaybackParams{SpaceId: params.SpaceId, UserId: params.UserId})
	if err != nil {
		return nil, err
	}
	defer sp.mu.Unlock()

	song, err := s.roomRepo.TakeSong(ctx, &room.RemoveSongParams{SpaceId: sp.id, SongId: params.SongId})
	if err != nil {
		return nil, mapRepoErr(err)
	}

	if err := s.playSongLocked(ctx, sp, &song); err != nil {
		return nil, err
	}

	return &song, nil
}

type GetCurrentSongParams struct {
	SpaceId string
	UserId  string
}

func (s *service) GetCurrentSong(ctx context.Context, params *GetCurrentSongParams) (CurrentSong, error) {
	sp, err := s.lockSpace(params.SpaceId)
	if err != nil {
		return CurrentSong{}, err
	}
	defer sp.mu.Unlock()

	return s.currentSongLocked(sp), nil
}

// playSongLocked makes song current. The song waits at zero for an
// explicit play.
func (s *service) playSongLocked(ctx context.Context, sp *space, song *room.Song) error {
	if err := s.roomRepo.SetCurrent(ctx, sp.id, song); err != nil {
		return fmt.Errorf("failed to set current song: %w", err)
	}

	sp.playback.load(song)
	sp.stopLoopLocked()
	sp.cancelSeekLocked()

	s.broadcastLocked(ctx, sp, EventCurrentSong, s.currentSongLocked(sp))
	s.broadcastLocked(ctx, sp, EventSpaceImageUpdate, SpaceImage{SmallImg: song.SmallImg, BigImg: song.BigImg})
	s.broadcastQueueLocked(ctx, sp, nil)
	s.syncLocked(ctx, sp, false)

	return nil
}

func (s *service) queueEmptyLocked(ctx context.Context, sp *space) error {
	if err := s.roomRepo.ClearCurrent(ctx, sp.id); err != nil {
		return fmt.Errorf("failed to clear current song: %w", err)
	}

	sp.playback.unload()
	sp.stopLoopLocked()
	sp.cancelSeekLocked()

	s.broadcastLocked(ctx, sp, EventQueueEmpty, struct{}{})
	s.broadcastLocked(ctx, sp, EventCurrentSong, s.currentSongLocked(sp))

	return nil
}
