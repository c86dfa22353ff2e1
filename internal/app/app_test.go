package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *AppConfig {
	return &AppConfig{
		Host:              "127.0.0.1",
		Port:              8080,
		LogLevel:          "INFO",
		QueueLimit:        20,
		BroadcastInterval: 5 * time.Second,
		SeekSettleDelay:   2 * time.Second,
		VoteCooldown:      20 * time.Minute,
		Workers:           2,
		WorkerTaskTimeout: 15 * time.Second,
		RedisHost:         "localhost",
		RedisPort:         6379,
	}
}

func TestAppConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := map[string]func(*AppConfig){
		"zero queue limit":   func(c *AppConfig) { c.QueueLimit = 0 },
		"negative interval":  func(c *AppConfig) { c.BroadcastInterval = -time.Second },
		"zero settle delay":  func(c *AppConfig) { c.SeekSettleDelay = 0 },
		"negative cooldown":  func(c *AppConfig) { c.VoteCooldown = -time.Minute },
		"no workers":         func(c *AppConfig) { c.Workers = 0 },
		"zero task timeout":  func(c *AppConfig) { c.WorkerTaskTimeout = 0 },
		"unknown log level":  func(c *AppConfig) { c.LogLevel = "LOUD" },
		"port out of range":  func(c *AppConfig) { c.Port = 70000 },
		"missing redis host": func(c *AppConfig) { c.RedisHost = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	_, err = newLogger("chatty")
	assert.Error(t, err)
}

func TestAppShutdownClosesSockets(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { rc.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := newApp(context.Background(), validConfig(), logger, rc)

	srv := httptest.NewServer(a.server.Handler)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/v1/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/ws", nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(map[string]any{
		"type": "join-room",
		"data": map[string]any{"spaceId": "space1", "userId": "alice"},
	}))
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Type string `json:"type"`
	}
	require.NoError(t, ws.ReadJSON(&frame))
	assert.Equal(t, "room-info", frame.Type)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.shutdown(ctx))

	// the socket is closed by the server
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}
