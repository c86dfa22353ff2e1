package redis

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// voteScript applies one vote atomically. A user holds at most one vote per
// space: voting the held song again or downvoting it removes the vote,
// voting another song moves it there unless the cooldown marker is set.
//
// KEYS: uservote, votes for song, cooldown marker
// ARGV: song id, user id, score, upvote flag, cooldown ms, votes key prefix, uservote ttl ms
var voteScript = redis.NewScript(`
	local current = redis.call('GET', KEYS[1])
	if current == ARGV[1] then
		redis.call('ZREM', KEYS[2], ARGV[2])
		redis.call('DEL', KEYS[1])
		return 'removed'
	end
	if ARGV[4] == '0' then
		return 'noop'
	end
	if ARGV[5] ~= '0' and redis.call('EXISTS', KEYS[3]) == 1 then
		return 'rate_limited'
	end
	if current then
		redis.call('ZREM', ARGV[6] .. current, ARGV[2])
	end
	redis.call('ZADD', KEYS[2], ARGV[3], ARGV[2])
	redis.call('PEXPIRE', KEYS[2], ARGV[7])
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[7])
	if ARGV[5] ~= '0' then
		redis.call('SET', KEYS[3], '1', 'PX', ARGV[5])
	end
	if current then
		return 'moved'
	end
	return 'added'
`)

type repo struct {
	rc             *redis.Client
	logger         *slog.Logger
	expireDuration time.Duration
	currentTTL     time.Duration
	spaceTTL       time.Duration
	userInfoTTL    time.Duration
}

func NewRepo(rc *redis.Client, logger *slog.Logger, expireDuration time.Duration) *repo {
	return &repo{
		rc:             rc,
		logger:         logger,
		expireDuration: expireDuration,
		currentTTL:     expireDuration,
		spaceTTL:       7 * 24 * time.Hour,
		userInfoTTL:    7 * 24 * time.Hour,
	}
}
