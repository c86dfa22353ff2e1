package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sharetube/syncspace/internal/repository/connection"
	roomService "github.com/sharetube/syncspace/internal/service/room"
	"github.com/sharetube/syncspace/internal/workerpool"
)

const (
	maxMessageSize = 64 << 10
	healthTimeout  = 2 * time.Second
)

func (c controller) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		c.logger.DebugContext(r.Context(), "failed to write response", "error", err)
	}
}

type healthResponse struct {
	Status  string            `json:"status"`
	Redis   string            `json:"redis"`
	Workers workerpool.Health `json:"workers"`
}

// healthz reports Redis reachability and worker pool state. It answers 503
// when Redis is down or no worker is running.
func (c controller) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{
		Status:  "ok",
		Redis:   "ok",
		Workers: c.pool.Health(),
	}
	if err := c.redis.Ping(ctx).Err(); err != nil {
		c.logger.WarnContext(ctx, "redis ping failed", "error", err)
		resp.Redis = err.Error()
		resp.Status = "degraded"
	}
	if resp.Workers.Workers == 0 {
		resp.Status = "degraded"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.writeJSON(w, r, status, resp)
}

func (c controller) cacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.cache.Stats(r.Context())
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to read cache stats", "error", err)
		c.writeJSON(w, r, http.StatusInternalServerError, roomService.ErrorPayload{Message: "failed to read cache stats"})
		return
	}

	c.writeJSON(w, r, http.StatusOK, stats)
}

// serveWS upgrades the request and runs the socket's read loop. The socket
// must send join-room before anything else; it is detached when the loop
// ends.
func (c controller) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}
	ws.SetReadLimit(maxMessageSize)

	conn := connection.NewWSConn(ws)
	defer conn.Close()

	ctx := context.WithValue(r.Context(), connCtxKey, conn)
	defer func() {
		if err := c.roomService.Disconnect(context.WithoutCancel(ctx), conn); err != nil && !errors.Is(err, roomService.ErrNotJoined) {
			c.logger.WarnContext(ctx, "failed to disconnect", "error", err)
		}
	}()

	if err := c.wsmux.ServeConn(ctx, ws); err != nil {
		c.logger.InfoContext(ctx, "websocket closed", "error", err)
	}
}
