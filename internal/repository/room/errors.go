package room

import "errors"

var (
	ErrSongNotFound        = errors.New("song not found")
	ErrQueueFull           = errors.New("queue is full")
	ErrQueueEmpty          = errors.New("queue is empty")
	ErrCurrentNotFound     = errors.New("current song not found")
	ErrTimestampNotFound   = errors.New("timestamp not found")
	ErrSpaceDetailsMissing = errors.New("space details not found")
	ErrUserInfoNotFound    = errors.New("user info not found")
	ErrVoteRateLimited     = errors.New("vote rate limited")
)
