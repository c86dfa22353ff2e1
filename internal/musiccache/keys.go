package musiccache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/syncspace/internal/resolver"
)

func hash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func queryKey(source resolver.Source, normalized string) string {
	return fmt.Sprintf("music:%s:q:%s", source, hash(normalized))
}

func titleKey(source resolver.Source, normalizedTitle string) string {
	return fmt.Sprintf("music:%s:title:%s", source, hash(normalizedTitle))
}

func titleArtistKey(source resolver.Source, normalizedTitle, normalizedArtist string) string {
	return fmt.Sprintf("music:%s:ta:%s", source, hash(normalizedTitle+"|"+normalizedArtist))
}

func catalogIdKey(source resolver.Source, id string) string {
	return fmt.Sprintf("music:%s:id:%s", source, id)
}

func crossIdKey(source resolver.Source, id string) string {
	return fmt.Sprintf("music:xid:%s:%s", source, id)
}

func searchIndexKey(source resolver.Source) string {
	return fmt.Sprintf("music:index:%s", source)
}

func statsKey(name string) string {
	return "music-stats:" + name
}

// keysFor lists every key a cached track is stored under.
func keysFor(track *CachedTrack) []string {
	seen := make(map[string]struct{})
	keys := make([]string, 0, 5+len(track.CrossRefs))
	add := func(key string) {
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	add(catalogIdKey(track.Source, track.ID))
	if q := normalizeQuery(track.SearchQuery); q != "" {
		add(queryKey(track.Source, q))
	}
	if title := normalizeQuery(track.Title); title != "" {
		add(titleKey(track.Source, title))
		add(titleArtistKey(track.Source, title, normalizeQuery(track.Artist)))
	}
	if track.URL != "" {
		add(queryKey(track.Source, normalizeQuery(track.URL)))
	}
	for source, id := range track.CrossRefs {
		if id != "" && source != track.Source {
			add(crossIdKey(source, id))
		}
	}

	return keys
}

type indexEntry struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Query  string `json:"query"`
}

// indexWrite stores one payload under a set of keys and records it in a
// bounded search index, all inside one MULTI/EXEC.
type indexWrite struct {
	keys    []string
	payload []byte
	ttl     time.Duration
	index   string
	entry   indexEntry
	score   float64
	limit   int64
}

func (w *indexWrite) exec(ctx context.Context, rc *redis.Client) error {
	member, err := json.Marshal(w.entry)
	if err != nil {
		return fmt.Errorf("failed to marshal index entry: %w", err)
	}

	pipe := rc.TxPipeline()
	for _, key := range w.keys {
		pipe.Set(ctx, key, w.payload, w.ttl)
	}
	pipe.ZAdd(ctx, w.index, redis.Z{Score: w.score, Member: string(member)})
	pipe.ZRemRangeByRank(ctx, w.index, 0, -w.limit-1)
	pipe.Expire(ctx, w.index, w.ttl)

	_, err = pipe.Exec(ctx)
	return err
}
