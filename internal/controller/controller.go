package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/syncspace/internal/musiccache"
	"github.com/sharetube/syncspace/internal/repository/connection"
	"github.com/sharetube/syncspace/internal/repository/room"
	roomService "github.com/sharetube/syncspace/internal/service/room"
	"github.com/sharetube/syncspace/internal/workerpool"
	"github.com/sharetube/syncspace/pkg/validator"
	"github.com/sharetube/syncspace/pkg/wsrouter"
)

type iRoomService interface {
	JoinRoom(context.Context, *roomService.JoinRoomParams) error
	Disconnect(context.Context, connection.Conn) error
	GetMember(connection.Conn) (connection.Member, error)
	GetRoomUsers(context.Context, *roomService.GetRoomUsersParams) (roomService.UserUpdate, error)
	AddToQueue(context.Context, *roomService.AddToQueueParams) (room.Song, error)
	AddBatchToQueue(context.Context, *roomService.AddBatchToQueueParams) (roomService.BatchAddResult, error)
	Vote(context.Context, *roomService.VoteParams) ([]room.QueueEntry, error)
	RemoveSong(context.Context, *roomService.RemoveSongParams) error
	EmptyQueue(context.Context, *roomService.EmptyQueueParams) error
	GetQueue(context.Context, *roomService.GetQueueParams) (roomService.Queue, error)
	Play(context.Context, *roomService.PlaybackParams) error
	Pause(context.Context, *roomService.PlaybackParams) error
	Seek(context.Context, *roomService.SeekParams) error
	PlayNext(context.Context, *roomService.PlaybackParams) (*room.Song, error)
	PlaySong(context.Context, *roomService.PlaySongParams) (*room.Song, error)
	GetCurrentSong(context.Context, *roomService.GetCurrentSongParams) (roomService.CurrentSong, error)
}

type iCache interface {
	Stats(context.Context) (musiccache.Stats, error)
}

type iWorkerPool interface {
	Health() workerpool.Health
}

type iPinger interface {
	Ping(context.Context) *redis.StatusCmd
}

type controller struct {
	roomService iRoomService
	cache       iCache
	pool        iWorkerPool
	redis       iPinger
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	wsmux       *wsrouter.WSRouter
	logger      *slog.Logger
}

func NewController(roomService iRoomService, cache iCache, pool iWorkerPool, redis iPinger, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		cache:       cache,
		pool:        pool,
		redis:       redis,
		validate:    validator.NewValidator(),
		logger:      logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}
