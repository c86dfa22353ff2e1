package room

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sharetube/syncspace/internal/metrics"
	"github.com/sharetube/syncspace/internal/repository/connection"
	"github.com/sharetube/syncspace/internal/repository/room"
)

const recoveryTTL = time.Hour

type published struct {
	Instance string          `json:"instance"`
	Event    json.RawMessage `json:"event"`
}

func (s *service) send(ctx context.Context, conn connection.Conn, eventType string, data any) {
	if err := conn.WriteJSON(Event{Type: eventType, Data: data}); err != nil {
		s.logger.DebugContext(ctx, "failed to write to socket", "type", eventType, "error", err)
	}
}

// broadcastLocked delivers an event to every local socket of the space and
// publishes it for other instances.
func (s *service) broadcastLocked(ctx context.Context, sp *space, eventType string, data any) {
	event := Event{Type: eventType, Data: data}
	for _, conn := range s.connRepo.GetSpaceConns(sp.id) {
		if err := conn.WriteJSON(event); err != nil {
			s.logger.DebugContext(ctx, "failed to write to socket", "type", eventType, "error", err)
		}
	}
	metrics.RecordBroadcast(eventType)

	if s.cfg.InstanceId == "" {
		return
	}

	raw, err := json.Marshal(event)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to marshal event", "type", eventType, "error", err)
		return
	}
	payload, err := json.Marshal(published{Instance: s.cfg.InstanceId, Event: raw})
	if err != nil {
		return
	}
	if err := s.roomRepo.Publish(ctx, sp.id, payload); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", "space_id", sp.id, "type", eventType, "error", err)
	}
}

func (s *service) timestampTTL() time.Duration {
	return max(10*s.cfg.BroadcastInterval, time.Minute)
}

func (s *service) storeTimestamp(ctx context.Context, sp *space, ts TimestampSync, ttl time.Duration) {
	if err := s.roomRepo.SetTimestamp(ctx, &room.SetTimestampParams{
		SpaceId: sp.id,
		Timestamp: room.Timestamp{
			SongID:        ts.SongId,
			CurrentTime:   ts.CurrentTime,
			IsPlaying:     ts.IsPlaying,
			Timestamp:     ts.Timestamp,
			TotalDuration: ts.TotalDuration,
		},
		TTL: ttl,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to store timestamp", "space_id", sp.id, "error", err)
	}
}

// syncLocked pushes a fresh timestamp packet to the whole space and caches
// it for joiners and restarts.
func (s *service) syncLocked(ctx context.Context, sp *space, initial bool) {
	if sp.playback.song == nil {
		return
	}

	ts := sp.playback.timestamp(s.now())
	ts.IsInitialSync = initial

	ttl := s.timestampTTL()
	if !ts.IsPlaying {
		ttl = recoveryTTL
	}
	s.storeTimestamp(ctx, sp, ts, ttl)
	s.broadcastLocked(ctx, sp, EventTimestampSync, ts)
}

func (s *service) snapshotLocked(ctx context.Context, sp *space) {
	if sp.playback.song == nil {
		return
	}
	s.storeTimestamp(ctx, sp, sp.playback.timestamp(s.now()), recoveryTTL)
}

func (s *service) subscribe(ctx context.Context, sp *space) <-chan []byte {
	if s.cfg.InstanceId == "" {
		return nil
	}

	subCtx, cancel := context.WithCancel(context.Background())
	events, err := s.roomRepo.Subscribe(subCtx, sp.id)
	if err != nil {
		cancel()
		s.logger.WarnContext(ctx, "space fan-out disabled", "space_id", sp.id, "error", err)
		return nil
	}
	sp.unsubscribe = cancel

	return events
}

// relay re-delivers events published by other instances to local sockets.
func (s *service) relay(sp *space, events <-chan []byte) {
	defer s.wg.Done()

	for payload := range events {
		var msg published
		if err := json.Unmarshal(payload, &msg); err != nil || msg.Instance == s.cfg.InstanceId {
			continue
		}

		for _, conn := range s.connRepo.GetSpaceConns(sp.id) {
			if err := conn.WriteJSON(msg.Event); err != nil {
				s.logger.Debug("failed to relay event", "space_id", sp.id, "error", err)
			}
		}
	}
}
