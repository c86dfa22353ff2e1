package controller

import (
	"github.com/sharetube/syncspace/pkg/wsrouter"
)

const (
	typeJoinRoom        = "join-room"
	typeAddToQueue      = "add-to-queue"
	typeAddBatchToQueue = "add-batch-to-queue"
	typeNewVote         = "new-vote"
	typeVote            = "vote"
	typePlay            = "play"
	typePause           = "pause"
	typeSeekPlayback    = "seek-playback"
	typePlayNext        = "play-next"
	typePlayInstant     = "play-instant"
	typeRemoveSong      = "remove-song"
	typeEmptyQueue      = "empty-queue"
	typeGetQueue        = "get-queue"
	typeGetCurrentSong  = "get-current-song"
	typeGetRoomUsers    = "get-room-users"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New(
		wsrouter.WithValidator(c.validateInput),
		wsrouter.WithErrorHandler(c.handleWSError),
	)
	mux.Use(
		c.wsRequestIdWSMw(),
		c.loggerWSMw(),
		c.metricsWSMw(),
		c.requireJoinedWSMw(),
	)

	// session
	wsrouter.Handle(mux, typeJoinRoom, c.handleJoinRoom)
	wsrouter.Handle(mux, typeGetRoomUsers, c.handleGetRoomUsers)

	// queue
	wsrouter.Handle(mux, typeAddToQueue, c.handleAddToQueue)
	wsrouter.Handle(mux, typeAddBatchToQueue, c.handleAddBatchToQueue)
	wsrouter.Handle(mux, typeNewVote, c.handleVote)
	wsrouter.Handle(mux, typeVote, c.handleVote)
	wsrouter.Handle(mux, typeRemoveSong, c.handleRemoveSong)
	wsrouter.Handle(mux, typeEmptyQueue, c.handleEmptyQueue)
	wsrouter.Handle(mux, typeGetQueue, c.handleGetQueue)

	// player
	wsrouter.Handle(mux, typePlay, c.handlePlay)
	wsrouter.Handle(mux, typePause, c.handlePause)
	wsrouter.Handle(mux, typeSeekPlayback, c.handleSeek)
	wsrouter.Handle(mux, typePlayNext, c.handlePlayNext)
	wsrouter.Handle(mux, typePlayInstant, c.handlePlayInstant)
	wsrouter.Handle(mux, typeGetCurrentSong, c.handleGetCurrentSong)

	return mux
}
