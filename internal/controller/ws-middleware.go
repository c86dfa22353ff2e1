package controller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncspace/internal/metrics"
	"github.com/sharetube/syncspace/pkg/ctxlogger"
	"github.com/sharetube/syncspace/pkg/wsrouter"
)

var errAlreadyJoined = errors.New("socket has already joined a space")

func (c controller) wsRequestIdWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("ws_request_id", c.generateTimeBasedId()))
			return next(ctx, conn, payload)
		}
	}
}

func (c controller) loggerWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", wsrouter.GetMessageTypeFromCtx(ctx)))
			c.logger.DebugContext(ctx, "websocket message received", "payload", payload)

			start := time.Now()
			err := next(ctx, conn, payload)

			c.logger.InfoContext(ctx, "websocket message handled",
				"processing_time_us", time.Since(start).Microseconds(),
				"error", err,
			)

			return err
		}
	}
}

func (c controller) metricsWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			err := next(ctx, conn, payload)
			metrics.RecordCommand(wsrouter.GetMessageTypeFromCtx(ctx), err)
			return err
		}
	}
}

// requireJoinedWSMw lets join-room through only for fresh sockets and every
// other type only for joined ones. The member is stored in the context.
func (c controller) requireJoinedWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			member, err := c.roomService.GetMember(c.getConnFromCtx(ctx))
			if wsrouter.GetMessageTypeFromCtx(ctx) == typeJoinRoom {
				if err == nil {
					return errAlreadyJoined
				}
				return next(ctx, conn, payload)
			}
			if err != nil {
				return err
			}

			ctx = context.WithValue(ctx, memberCtxKey, member)
			ctx = ctxlogger.AppendCtx(ctx, slog.String("space_id", member.SpaceId))
			ctx = ctxlogger.AppendCtx(ctx, slog.String("user_id", member.UserId))

			return next(ctx, conn, payload)
		}
	}
}
