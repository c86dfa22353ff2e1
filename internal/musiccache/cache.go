// Package musiccache is a Redis-backed, key-normalizing cache of resolved
// track metadata. Every stored track is reachable through several keys (raw
// query, title, title+artist, catalog id, cross-catalog id) and is listed in
// a per-source search index used for fuzzy lookups.
package musiccache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/syncspace/internal/metrics"
	"github.com/sharetube/syncspace/internal/resolver"
)

const (
	DefaultTTL        = 30 * 24 * time.Hour
	DefaultPopularTTL = 90 * 24 * time.Hour
	defaultIndexLimit = 1000
	defaultScanLimit  = 200
)

type MatchKind string

const (
	MatchNone      MatchKind = "miss"
	MatchCatalogID MatchKind = "catalog_id"
	MatchExact     MatchKind = "exact"
	MatchFuzzy     MatchKind = "fuzzy"
)

type CachedTrack struct {
	resolver.Track
	CachedAt     int64  `json:"cachedAt"`
	SearchQuery  string `json:"searchQuery"`
	HitCount     int64  `json:"hitCount"`
	LastAccessed int64  `json:"lastAccessed"`
}

type Config struct {
	TTL time.Duration
	// PopularTTL is applied to a track's keys once its hit count reaches
	// PopularAfterHits, but only when AutoPromote is set.
	PopularTTL       time.Duration
	PopularAfterHits int64
	AutoPromote      bool
	// IndexLimit bounds each per-source search index.
	IndexLimit int64
	// ScanLimit bounds how many index entries a fuzzy lookup inspects.
	ScanLimit int64
}

func (cfg *Config) withDefaults() Config {
	c := *cfg
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.PopularTTL <= 0 {
		c.PopularTTL = DefaultPopularTTL
	}
	if c.PopularAfterHits <= 0 {
		c.PopularAfterHits = 50
	}
	if c.IndexLimit <= 0 {
		c.IndexLimit = defaultIndexLimit
	}
	if c.ScanLimit <= 0 {
		c.ScanLimit = defaultScanLimit
	}
	return c
}

type Cache struct {
	rc      *redis.Client
	logger  *slog.Logger
	cfg     Config
	sources []resolver.Source
	now     func() time.Time
}

func New(rc *redis.Client, logger *slog.Logger, sources []resolver.Source, cfg *Config) *Cache {
	if cfg == nil {
		cfg = &Config{}
	}

	return &Cache{
		rc:      rc,
		logger:  logger,
		cfg:     cfg.withDefaults(),
		sources: sources,
		now:     time.Now,
	}
}

type SearchParams struct {
	Query     string
	Source    resolver.Source
	CatalogID string
}

func (c *Cache) sourcesFor(source resolver.Source) []resolver.Source {
	if source != "" {
		return []resolver.Source{source}
	}
	return c.sources
}

// Search looks a track up by catalog id, then by exact normalized key, then
// (for free-text queries only) fuzzily. A miss is reported as MatchNone with
// a nil track and nil error.
func (c *Cache) Search(ctx context.Context, params *SearchParams) (*CachedTrack, MatchKind, error) {
	start := c.now()
	c.logger.DebugContext(ctx, "called", "params", params)

	track, kind, err := c.search(ctx, params)

	elapsed := c.now().Sub(start)
	metrics.RecordCacheLookup(string(kind), elapsed)
	c.recordLookup(ctx, kind, elapsed)

	if err != nil {
		c.logger.DebugContext(ctx, "returned", "error", err)
		return nil, MatchNone, err
	}

	return track, kind, nil
}

func (c *Cache) search(ctx context.Context, params *SearchParams) (*CachedTrack, MatchKind, error) {
	sources := c.sourcesFor(params.Source)

	if params.CatalogID != "" {
		for _, source := range sources {
			for _, key := range []string{catalogIdKey(source, params.CatalogID), crossIdKey(source, params.CatalogID)} {
				track, err := c.getAndTouch(ctx, key)
				if err != nil {
					return nil, MatchNone, err
				}
				if track != nil {
					return track, MatchCatalogID, nil
				}
			}
		}
	}

	query := normalizeQuery(params.Query)
	if query == "" {
		return nil, MatchNone, nil
	}

	isURL := resolver.IsURL(params.Query)
	for _, source := range sources {
		keys := []string{queryKey(source, query)}
		if !isURL {
			keys = append(keys, titleKey(source, query))
		}

		for _, key := range keys {
			track, err := c.getAndTouch(ctx, key)
			if err != nil {
				return nil, MatchNone, err
			}
			if track != nil {
				return track, MatchExact, nil
			}
		}
	}

	if isURL {
		return nil, MatchNone, nil
	}

	track, err := c.fuzzySearch(ctx, sources, params.Query)
	if err != nil {
		return nil, MatchNone, err
	}
	if track == nil {
		return nil, MatchNone, nil
	}

	return track, MatchFuzzy, nil
}

// GetByTitleArtist is the lookup used when the caller already knows the
// canonical title and artist of a track.
func (c *Cache) GetByTitleArtist(ctx context.Context, source resolver.Source, title, artist string) (*CachedTrack, error) {
	for _, s := range c.sourcesFor(source) {
		track, err := c.getAndTouch(ctx, titleArtistKey(s, normalizeQuery(title), normalizeQuery(artist)))
		if err != nil {
			return nil, err
		}
		if track != nil {
			metrics.RecordCacheLookup(string(MatchExact), 0)
			return track, nil
		}
	}

	return nil, nil
}

// Store writes track under every key it can be found by and appends it to
// the source's search index in a single transaction.
func (c *Cache) Store(ctx context.Context, track *resolver.Track, searchQuery string) (*CachedTrack, error) {
	c.logger.DebugContext(ctx, "called", "id", track.ID, "source", track.Source, "query", searchQuery)
	if track.ID == "" || track.Source == "" {
		return nil, errors.New("track id and source are required")
	}

	now := c.now().UnixMilli()
	cached := &CachedTrack{
		Track:        *track,
		CachedAt:     now,
		SearchQuery:  searchQuery,
		LastAccessed: now,
	}

	payload, err := json.Marshal(cached)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal track: %w", err)
	}

	w := &indexWrite{
		keys:    keysFor(cached),
		payload: payload,
		ttl:     c.cfg.TTL,
		index:   searchIndexKey(track.Source),
		entry: indexEntry{
			Key:    catalogIdKey(track.Source, track.ID),
			Title:  track.Title,
			Artist: track.Artist,
			Query:  searchQuery,
		},
		score: float64(now),
		limit: c.cfg.IndexLimit,
	}
	if err := w.exec(ctx, c.rc); err != nil {
		c.logger.DebugContext(ctx, "returned", "error", err)
		return nil, fmt.Errorf("failed to write track keys: %w", err)
	}

	if err := c.rc.Incr(ctx, statsKey("writes")).Err(); err != nil {
		c.logger.DebugContext(ctx, "failed to update write counter", "error", err)
	}

	return cached, nil
}

func (c *Cache) getAndTouch(ctx context.Context, key string) (*CachedTrack, error) {
	data, err := c.rc.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var track CachedTrack
	if err := json.Unmarshal(data, &track); err != nil {
		c.logger.WarnContext(ctx, "dropping undecodable cache entry", "key", key, "error", err)
		c.rc.Del(ctx, key)
		return nil, nil
	}

	track.HitCount++
	track.LastAccessed = c.now().UnixMilli()

	if err := c.touch(ctx, &track); err != nil {
		c.logger.DebugContext(ctx, "failed to update hit count", "key", key, "error", err)
	}

	return &track, nil
}

// touch rewrites every key of track with its new bookkeeping, keeping each
// key's remaining TTL.
func (c *Cache) touch(ctx context.Context, track *CachedTrack) error {
	payload, err := json.Marshal(track)
	if err != nil {
		return err
	}

	keys := keysFor(track)
	promote := c.cfg.AutoPromote && track.HitCount >= c.cfg.PopularAfterHits

	pipe := c.rc.TxPipeline()
	for _, key := range keys {
		pipe.SetArgs(ctx, key, payload, redis.SetArgs{Mode: "XX", KeepTTL: true})
		if promote {
			pipe.Expire(ctx, key, c.cfg.PopularTTL)
		}
	}

	_, err = pipe.Exec(ctx)
	if errors.Is(err, redis.Nil) {
		// XX on a key that expired in the meantime
		return nil
	}

	return err
}

func (c *Cache) recordLookup(ctx context.Context, kind MatchKind, elapsed time.Duration) {
	pipe := c.rc.Pipeline()
	pipe.Incr(ctx, statsKey("lookups"))
	pipe.IncrBy(ctx, statsKey("latency_us_total"), elapsed.Microseconds())
	switch kind {
	case MatchNone:
		pipe.Incr(ctx, statsKey("misses"))
	case MatchFuzzy:
		pipe.Incr(ctx, statsKey("hits"))
		pipe.Incr(ctx, statsKey("fuzzy_hits"))
	default:
		pipe.Incr(ctx, statsKey("hits"))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.DebugContext(ctx, "failed to update cache stats", "error", err)
	}
}

type Stats struct {
	Lookups      int64                     `json:"lookups"`
	Hits         int64                     `json:"hits"`
	FuzzyHits    int64                     `json:"fuzzyHits"`
	Misses       int64                     `json:"misses"`
	Writes       int64                     `json:"writes"`
	HitRate      float64                   `json:"hitRate"`
	AvgLatencyMs float64                   `json:"avgLatencyMs"`
	IndexSizes   map[resolver.Source]int64 `json:"indexSizes"`
}

func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	names := []string{"lookups", "hits", "fuzzy_hits", "misses", "writes", "latency_us_total"}
	keys := make([]string, 0, len(names))
	for _, name := range names {
		keys = append(keys, statsKey(name))
	}

	values, err := c.rc.MGet(ctx, keys...).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read cache stats: %w", err)
	}

	counters := make(map[string]int64, len(names))
	for i, v := range values {
		if s, ok := v.(string); ok {
			counters[names[i]], _ = strconv.ParseInt(s, 10, 64)
		}
	}

	stats := Stats{
		Lookups:    counters["lookups"],
		Hits:       counters["hits"],
		FuzzyHits:  counters["fuzzy_hits"],
		Misses:     counters["misses"],
		Writes:     counters["writes"],
		IndexSizes: make(map[resolver.Source]int64, len(c.sources)),
	}
	if stats.Lookups > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Lookups)
		stats.AvgLatencyMs = float64(counters["latency_us_total"]) / float64(stats.Lookups) / 1000
	}

	for _, source := range c.sources {
		size, err := c.rc.ZCard(ctx, searchIndexKey(source)).Result()
		if err != nil {
			return Stats{}, fmt.Errorf("failed to read index size: %w", err)
		}
		stats.IndexSizes[source] = size
	}

	return stats, nil
}
