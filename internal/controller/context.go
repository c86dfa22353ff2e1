package controller

import (
	"context"

	"github.com/sharetube/syncspace/internal/repository/connection"
)

type contextKey int

const (
	connCtxKey contextKey = iota
	memberCtxKey
)

func (c controller) getConnFromCtx(ctx context.Context) connection.Conn {
	conn, ok := ctx.Value(connCtxKey).(connection.Conn)
	if !ok {
		return nil
	}

	return conn
}

func (c controller) getMemberFromCtx(ctx context.Context) connection.Member {
	member, ok := ctx.Value(memberCtxKey).(connection.Member)
	if !ok {
		return connection.Member{}
	}

	return member
}
