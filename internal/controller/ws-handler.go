package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncspace/internal/resolver"
	roomService "github.com/sharetube/syncspace/internal/service/room"
	"github.com/sharetube/syncspace/pkg/validator"
	"github.com/sharetube/syncspace/pkg/wsrouter"
)

type EmptyInput struct{}

type validationError struct {
	errs []validator.ValidationError
}

func (e validationError) Error() string {
	msgs := make([]string, len(e.errs))
	for i, err := range e.errs {
		msgs[i] = err.Message
	}

	return "invalid input: " + strings.Join(msgs, "; ")
}

func (e validationError) Unwrap() error {
	return roomService.ErrInvalidInput
}

func (c controller) validateInput(input any) error {
	if errs, ok := c.validate.Validate(input); !ok {
		return validationError{errs: errs}
	}

	return nil
}

// publicErrors may be shown to clients as is. Anything else is reported as
// an internal error.
var publicErrors = []error{
	roomService.ErrPermissionDenied,
	roomService.ErrVoteRateLimited,
	roomService.ErrQueueFull,
	roomService.ErrSongNotFound,
	roomService.ErrSpaceNotFound,
	roomService.ErrNotJoined,
	roomService.ErrInvalidInput,
	roomService.ErrNothingPlaying,
	resolver.ErrTrackNotFound,
	resolver.ErrUnsupportedSource,
	resolver.ErrInvalidURL,
	resolver.ErrEmptyQuery,
	wsrouter.ErrUnknownMessageType,
	wsrouter.ErrMalformedMessage,
	errAlreadyJoined,
}

func errorMessage(err error) string {
	for _, target := range publicErrors {
		if errors.Is(err, target) {
			return err.Error()
		}
	}

	return "internal error"
}

// handleWSError answers the sending socket with an error event. The read
// loop keeps running.
func (c controller) handleWSError(ctx context.Context, _ *websocket.Conn, err error) {
	msg := errorMessage(err)
	if msg == "internal error" {
		c.logger.WarnContext(ctx, "websocket handler failed", "error", err)
	}

	c.reply(ctx, roomService.EventError, roomService.ErrorPayload{Message: msg})
}

func (c controller) reply(ctx context.Context, eventType string, data any) {
	conn := c.getConnFromCtx(ctx)
	if conn == nil {
		return
	}

	if err := conn.WriteJSON(roomService.Event{Type: eventType, Data: data}); err != nil {
		c.logger.DebugContext(ctx, "failed to write to socket", "type", eventType, "error", err)
	}
}

type JoinRoomInput struct {
	SpaceId   string `json:"spaceId" validate:"required,max=64"`
	UserId    string `json:"userId" validate:"required,max=128"`
	Token     string `json:"token"`
	CreatorId string `json:"creatorId" validate:"max=128"`
	SpaceName string `json:"spaceName" validate:"max=100"`
}

func (c controller) handleJoinRoom(ctx context.Context, _ *websocket.Conn, input JoinRoomInput) error {
	if err := c.roomService.JoinRoom(ctx, &roomService.JoinRoomParams{
		Conn:          c.getConnFromCtx(ctx),
		SpaceId:       input.SpaceId,
		UserId:        input.UserId,
		Token:         input.Token,
		CreatorIdHint: input.CreatorId,
		SpaceName:     input.SpaceName,
	}); err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}

	return nil
}

func (c controller) handleGetRoomUsers(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	member := c.getMemberFromCtx(ctx)

	users, err := c.roomService.GetRoomUsers(ctx, &roomService.GetRoomUsersParams{
		SpaceId: member.SpaceId,
		UserId:  member.UserId,
	})
	if err != nil {
		return fmt.Errorf("failed to get room users: %w", err)
	}

	c.reply(ctx, roomService.EventUserUpdate, users)
	return nil
}

type TrackInput struct {
	URL       string          `json:"url" validate:"max=2048"`
	Query     string          `json:"query" validate:"max=200"`
	Source    resolver.Source `json:"source" validate:"omitempty,oneof=Youtube Spotify"`
	TrackData *resolver.Track `json:"trackData"`
}

func (in TrackInput) toService() roomService.TrackInput {
	return roomService.TrackInput{
		URL:       in.URL,
		Query:     in.Query,
		Source:    in.Source,
		TrackData: in.TrackData,
	}
}

type AddToQueueInput struct {
	TrackInput
	AutoPlay bool `json:"autoPlay"`
}

func (c controller) handleAddToQueue(ctx context.Context, _ *websocket.Conn, input AddToQueueInput) error {
	member := c.getMemberFromCtx(ctx)

	if _, err := c.roomService.AddToQueue(ctx, &roomService.AddToQueueParams{
		SpaceId:    member.SpaceId,
		UserId:     member.UserId,
		TrackInput: input.toService(),
		AutoPlay:   input.AutoPlay,
	}); err != nil {
		return fmt.Errorf("failed to add to queue: %w", err)
	}

	return nil
}

type AddBatchToQueueInput struct {
	Items []TrackInput `json:"items" validate:"required,min=1,max=50,dive"`
}

func (c controller) handleAddBatchToQueue(ctx context.Context, _ *websocket.Conn, input AddBatchToQueueInput) error {
	member := c.getMemberFromCtx(ctx)

	items := make([]roomService.TrackInput, len(input.Items))
	for i, item := range input.Items {
		items[i] = item.toService()
	}

	result, err := c.roomService.AddBatchToQueue(ctx, &roomService.AddBatchToQueueParams{
		SpaceId: member.SpaceId,
		UserId:  member.UserId,
		Items:   items,
	})
	if err != nil {
		return fmt.Errorf("failed to add batch to queue: %w", err)
	}

	c.reply(ctx, roomService.EventBatchAddCompleted, result)
	return nil
}

type VoteInput struct {
	SongId   string `json:"songId" validate:"required,uuid"`
	VoteType string `json:"voteType" validate:"omitempty,oneof=upvote downvote"`
}

func (c controller) handleVote(ctx context.Context, _ *websocket.Conn, input VoteInput) error {
	member := c.getMemberFromCtx(ctx)

	if _, err := c.roomService.Vote(ctx, &roomService.VoteParams{
		SpaceId: member.SpaceId,
		UserId:  member.UserId,
		SongId:  input.SongId,
		Upvote:  input.VoteType != "downvote",
	}); err != nil {
		return fmt.Errorf("failed to vote: %w", err)
	}

	return nil
}

type SongInput struct {
	SongId string `json:"songId" validate:"required,uuid"`
}

func (c controller) handleRemoveSong(ctx context.Context, _ *websocket.Conn, input SongInput) error {
	member := c.getMemberFromCtx(ctx)

	if err := c.roomService.RemoveSong(ctx, &roomService.RemoveSongParams{
		SpaceId: member.SpaceId,
		UserId:  member.UserId,
		SongId:  input.SongId,
	}); err != nil {
		return fmt.Errorf("failed to remove song: %w", err)
	}

	return nil
}

func (c controller) handleEmptyQueue(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	member := c.getMemberFromCtx(ctx)

	if err := c.roomService.EmptyQueue(ctx, &roomService.EmptyQueueParams{
		SpaceId: member.SpaceId,
		UserId:  member.UserId,
	}); err != nil {
		return fmt.Errorf("failed to empty queue: %w", err)
	}

	return nil
}

func (c controller) handleGetQueue(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	member := c.getMemberFromCtx(ctx)

	queue, err := c.roomService.GetQueue(ctx, &roomService.GetQueueParams{
		SpaceId: member.SpaceId,
		UserId:  member.UserId,
	})
	if err != nil {
		return fmt.Errorf("failed to get queue: %w", err)
	}

	c.reply(ctx, roomService.EventCurrentQueue, queue)
	return nil
}

func (c controller) playbackParams(ctx context.Context) *roomService.PlaybackParams {
	member := c.getMemberFromCtx(ctx)
	return &roomService.PlaybackParams{SpaceId: member.SpaceId, UserId: member.UserId}
}

func (c controller) handlePlay(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	if err := c.roomService.Play(ctx, c.playbackParams(ctx)); err != nil {
		return fmt.Errorf("failed to play: %w", err)
	}

	return nil
}

func (c controller) handlePause(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	if err := c.roomService.Pause(ctx, c.playbackParams(ctx)); err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}

	return nil
}

type SeekInput struct {
	Time *float64 `json:"time" validate:"required,gte=0"`
}

func (c controller) handleSeek(ctx context.Context, _ *websocket.Conn, input SeekInput) error {
	member := c.getMemberFromCtx(ctx)

	if err := c.roomService.Seek(ctx, &roomService.SeekParams{
		SpaceId: member.SpaceId,
		UserId:  member.UserId,
		Time:    *input.Time,
	}); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	return nil
}

func (c controller) handlePlayNext(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	if _, err := c.roomService.PlayNext(ctx, c.playbackParams(ctx)); err != nil {
		return fmt.Errorf("failed to play next: %w", err)
	}

	return nil
}

func (c controller) handlePlayInstant(ctx context.Context, _ *websocket.Conn, input SongInput) error {
	member := c.getMemberFromCtx(ctx)

	if _, err := c.roomService.PlaySong(ctx, &roomService.PlaySongParams{
		SpaceId: member.SpaceId,
		UserId:  member.UserId,
		SongId:  input.SongId,
	}); err != nil {
		return fmt.Errorf("failed to play song: %w", err)
	}

	return nil
}

func (c controller) handleGetCurrentSong(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	member := c.getMemberFromCtx(ctx)

	current, err := c.roomService.GetCurrentSong(ctx, &roomService.GetCurrentSongParams{
		SpaceId: member.SpaceId,
		UserId:  member.UserId,
	})
	if err != nil {
		return fmt.Errorf("failed to get current song: %w", err)
	}

	c.reply(ctx, roomService.EventCurrentSong, current)
	return nil
}
