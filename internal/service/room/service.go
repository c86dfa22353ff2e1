package room

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sharetube/syncspace/internal/musiccache"
	"github.com/sharetube/syncspace/internal/repository/connection"
	"github.com/sharetube/syncspace/internal/repository/room"
	"github.com/sharetube/syncspace/internal/resolver"
	"github.com/sharetube/syncspace/internal/workerpool"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrVoteRateLimited  = errors.New("vote rate limited")
	ErrQueueFull        = errors.New("queue is full")
	ErrSongNotFound     = errors.New("song not found")
	ErrSpaceNotFound    = errors.New("space not found")
	ErrNotJoined        = errors.New("socket has not joined a space")
	ErrInvalidInput     = errors.New("invalid input")
	ErrNothingPlaying   = errors.New("nothing is playing")
)

type iRoomRepo interface {
	// queue
	AddSong(context.Context, *room.AddSongParams) (int, error)
	GetQueue(context.Context, string) ([]room.QueueEntry, error)
	GetQueueLength(context.Context, string) (int, error)
	ReorderQueue(context.Context, string) ([]room.QueueEntry, error)
	GetSong(ctx context.Context, spaceId, songId string) (room.QueueEntry, error)
	TakeSong(context.Context, *room.RemoveSongParams) (room.Song, error)
	RemoveSong(context.Context, *room.RemoveSongParams) error
	PopFront(context.Context, string) (room.Song, error)
	EmptyQueue(context.Context, string) error
	Vote(context.Context, *room.VoteParams) (room.VoteOutcome, error)
	// playback
	SetCurrent(context.Context, string, *room.Song) error
	GetCurrent(context.Context, string) (room.Song, error)
	ClearCurrent(context.Context, string) error
	SetTimestamp(context.Context, *room.SetTimestampParams) error
	GetTimestamp(context.Context, string) (room.Timestamp, error)
	// space
	SetSpaceDetails(context.Context, *room.SetSpaceDetailsParams) error
	GetSpaceDetails(context.Context, string) (room.SpaceDetails, error)
	SetUserInfo(context.Context, *room.UserInfo) error
	GetUserInfo(context.Context, string) (room.UserInfo, error)
	// fan-out
	Publish(ctx context.Context, spaceId string, payload []byte) error
	Subscribe(ctx context.Context, spaceId string) (<-chan []byte, error)
}

type iConnRepo interface {
	Add(conn connection.Conn, spaceId, userId string) error
	Remove(conn connection.Conn) (connection.Member, bool, bool, error)
	GetMember(conn connection.Conn) (connection.Member, error)
	GetSpaceConns(spaceId string) []connection.Conn
	GetUserIds(spaceId string) []string
}

type iMusicCache interface {
	Search(context.Context, *musiccache.SearchParams) (*musiccache.CachedTrack, musiccache.MatchKind, error)
	GetByTitleArtist(ctx context.Context, source resolver.Source, title, artist string) (*musiccache.CachedTrack, error)
	Store(ctx context.Context, track *resolver.Track, searchQuery string) (*musiccache.CachedTrack, error)
}

type iWorkerPool interface {
	Submit(context.Context, workerpool.Task) (workerpool.Result, error)
}

type iRegistry interface {
	Get(source resolver.Source) (resolver.Resolver, error)
	Detect(rawURL string) (resolver.Resolver, bool)
}

type Config struct {
	Secret            string
	QueueLimit        int
	BroadcastInterval time.Duration
	SeekSettleDelay   time.Duration
	VoteCooldown      time.Duration
	// PlaybackSource is the catalog whose URLs clients can play.
	PlaybackSource resolver.Source
	// InstanceId tags published events; fan-out is off when empty.
	InstanceId string
}

type service struct {
	roomRepo iRoomRepo
	connRepo iConnRepo
	cache    iMusicCache
	pool     iWorkerPool
	registry iRegistry
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time

	mu     sync.Mutex
	spaces map[string]*space
	closed bool
	wg     sync.WaitGroup
}

func NewService(
	roomRepo iRoomRepo,
	connRepo iConnRepo,
	cache iMusicCache,
	pool iWorkerPool,
	registry iRegistry,
	logger *slog.Logger,
	cfg Config,
) *service {
	if cfg.QueueLimit <= 0 {
		cfg.QueueLimit = 20
	}
	if cfg.BroadcastInterval <= 0 {
		cfg.BroadcastInterval = 5 * time.Second
	}
	if cfg.SeekSettleDelay <= 0 {
		cfg.SeekSettleDelay = 2 * time.Second
	}
	if cfg.PlaybackSource == "" {
		cfg.PlaybackSource = resolver.SourceYoutube
	}

	return &service{
		roomRepo: roomRepo,
		connRepo: connRepo,
		cache:    cache,
		pool:     pool,
		registry: registry,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		spaces:   make(map[string]*space),
	}
}

// Close stops every broadcast loop and subscriber and waits for them.
func (s *service) Close() {
	s.mu.Lock()
	s.closed = true
	spaces := make([]*space, 0, len(s.spaces))
	for id, sp := range s.spaces {
		spaces = append(spaces, sp)
		delete(s.spaces, id)
	}
	s.mu.Unlock()

	for _, sp := range spaces {
		sp.mu.Lock()
		s.shutdownLocked(sp)
		sp.mu.Unlock()
	}

	s.wg.Wait()
}

// lockSpace returns the live space locked, or ErrSpaceNotFound.
func (s *service) lockSpace(spaceId string) (*space, error) {
	s.mu.Lock()
	sp, ok := s.spaces[spaceId]
	s.mu.Unlock()
	if !ok {
		return nil, ErrSpaceNotFound
	}

	sp.mu.Lock()
	if sp.closed {
		sp.mu.Unlock()
		return nil, ErrSpaceNotFound
	}

	return sp, nil
}

func (s *service) requireCreator(sp *space, userId string) error {
	if sp.creatorId != userId {
		return ErrPermissionDenied
	}
	return nil
}

// GetMember maps a socket to the space and user it joined as.
func (s *service) GetMember(conn connection.Conn) (connection.Member, error) {
	member, err := s.connRepo.GetMember(conn)
	if err != nil {
		return connection.Member{}, ErrNotJoined
	}

	return member, nil
}
