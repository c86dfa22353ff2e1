package room

import (
	"errors"

	"github.com/google/uuid"
	"github.com/sharetube/syncspace/internal/repository/room"
	"github.com/sharetube/syncspace/internal/resolver"
)

// mapRepoErr translates repository sentinels into service sentinels.
func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, room.ErrQueueFull):
		return ErrQueueFull
	case errors.Is(err, room.ErrSongNotFound):
		return ErrSongNotFound
	case errors.Is(err, room.ErrVoteRateLimited):
		return ErrVoteRateLimited
	default:
		return err
	}
}

func (s *service) newSong(track *resolver.Track, addedBy string) room.Song {
	song := room.Song{
		ID:          uuid.NewString(),
		ExtractedID: track.ID,
		Title:       track.Title,
		Artist:      track.Artist,
		Album:       track.Album,
		URL:         track.URL,
		SmallImg:    track.SmallImg,
		BigImg:      track.BigImg,
		Duration:    track.Duration,
		Source:      string(track.Source),
		AddedBy:     addedBy,
		AddedAt:     s.now().UnixMilli(),
	}
	if song.BigImg == "" {
		song.BigImg = song.SmallImg
	}
	if song.SmallImg == "" {
		song.SmallImg = song.BigImg
	}

	return song
}

func (s *service) currentSongLocked(sp *space) CurrentSong {
	return CurrentSong{
		Song:        sp.playback.song,
		State:       string(sp.playback.state),
		CurrentTime: sp.playback.elapsed(s.now()),
	}
}
