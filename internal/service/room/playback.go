package room

import (
	"context"
	"time"

	"github.com/sharetube/syncspace/internal/repository/room"
)

type State string

const (
	// StateIdle means a song may be loaded but has not been started.
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// playback is the authoritative timeline of a space. While playing, the
// position is derived from startedAt; otherwise it is pausedAt.
type playback struct {
	state     State
	song      *room.Song
	startedAt time.Time
	pausedAt  float64
}

func (p *playback) load(song *room.Song) {
	p.song = song
	p.state = StateIdle
	p.pausedAt = 0
	p.startedAt = time.Time{}
}

func (p *playback) unload() {
	p.load(nil)
}

func (p *playback) clamp(t float64) float64 {
	if t < 0 {
		return 0
	}
	if p.song != nil && p.song.Duration > 0 && t > float64(p.song.Duration) {
		return float64(p.song.Duration)
	}
	return t
}

// elapsed is the position in seconds at now.
func (p *playback) elapsed(now time.Time) float64 {
	if p.state != StatePlaying {
		return p.pausedAt
	}
	return p.clamp(now.Sub(p.startedAt).Seconds())
}

func (p *playback) play(now time.Time) bool {
	if p.song == nil || p.state == StatePlaying {
		return false
	}
	p.startedAt = now.Add(-time.Duration(p.pausedAt * float64(time.Second)))
	p.state = StatePlaying
	return true
}

func (p *playback) pause(now time.Time) bool {
	if p.song == nil || p.state != StatePlaying {
		return false
	}
	p.pausedAt = p.elapsed(now)
	p.state = StatePaused
	return true
}

// seek starts playback at t seconds whatever the previous state was.
func (p *playback) seek(now time.Time, t float64) {
	t = p.clamp(t)
	p.pausedAt = t
	p.startedAt = now.Add(-time.Duration(t * float64(time.Second)))
	p.state = StatePlaying
}

func (p *playback) timestamp(now time.Time) TimestampSync {
	ts := TimestampSync{
		CurrentTime: p.elapsed(now),
		IsPlaying:   p.state == StatePlaying,
		Timestamp:   now.UnixMilli(),
	}
	if p.song != nil {
		ts.SongId = p.song.ID
		ts.TotalDuration = p.song.Duration
	}
	return ts
}

type broadcastLoop struct {
	stop chan struct{}
}

func (sp *space) stopLoopLocked() {
	if sp.loop != nil {
		close(sp.loop.stop)
		sp.loop = nil
	}
}

// startLoopLocked starts the periodic timestamp broadcast unless it already
// runs or the space is closed.
func (s *service) startLoopLocked(sp *space) {
	if sp.loop != nil || sp.closed {
		return
	}

	l := &broadcastLoop{stop: make(chan struct{})}
	sp.loop = l

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.cfg.BroadcastInterval)
		defer ticker.Stop()

		for {
			select {
			case <-l.stop:
				return
			case <-ticker.C:
				sp.mu.Lock()
				if sp.loop != l {
					sp.mu.Unlock()
					return
				}
				s.syncLocked(context.Background(), sp, false)
				sp.mu.Unlock()
			}
		}
	}()
}

// suppressLoopLocked pauses the broadcast loop during a seek and resumes it
// after the settle delay. Only the latest seek resumes the loop.
func (s *service) suppressLoopLocked(sp *space) {
	sp.stopLoopLocked()
	sp.cancelSeekLocked()

	gen := sp.seekGen
	sp.seekTimer = time.AfterFunc(s.cfg.SeekSettleDelay, func() {
		sp.mu.Lock()
		defer sp.mu.Unlock()

		if sp.closed || sp.seekGen != gen {
			return
		}
		sp.seekTimer = nil
		if sp.playback.state == StatePlaying {
			s.startLoopLocked(sp)
		}
	})
}

// cancelSeekLocked drops a pending loop resume. A resume that already fired
// and waits for the lock sees the new generation and returns.
func (sp *space) cancelSeekLocked() {
	if sp.seekTimer != nil {
		sp.seekTimer.Stop()
		sp.seekTimer = nil
	}
	sp.seekGen++
}

func (s *service) seekSuppressedLocked(sp *space) bool {
	return sp.seekTimer != nil
}
