package musiccache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/sharetube/syncspace/internal/resolver"
)

const (
	minTitleOverlap    = 0.6
	minCombinedOverlap = 0.8
	minSimilarity      = 0.85
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "by": {}, "and": {},
	"feat": {}, "ft": {}, "official": {}, "video": {},
	"audio": {}, "lyrics": {}, "lyric": {}, "hd": {},
}

func tokenize(s string) []string {
	s = strings.ToLower(resolver.CleanTitle(s))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if _, ok := stopwords[f]; ok {
			continue
		}
		tokens = append(tokens, f)
	}

	return tokens
}

// normalizeQuery maps equivalent spellings of a query to one string. URLs
// keep their path and query untouched since catalog ids are case sensitive.
func normalizeQuery(s string) string {
	s = strings.TrimSpace(s)
	if resolver.IsURL(s) {
		u, err := url.Parse(s)
		if err != nil {
			return s
		}
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		return strings.TrimSuffix(u.String(), "/")
	}
	return strings.Join(tokenize(s), " ")
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range tokenize(s) {
		set[t] = struct{}{}
	}
	return set
}

func overlap(a, b map[string]struct{}) int {
	n := 0
	for t := range a {
		if _, ok := b[t]; ok {
			n++
		}
	}
	return n
}

func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// matchScore reports whether entry is close enough to query to be served
// as a fuzzy hit, and how close it is.
func matchScore(query string, entry *indexEntry) (float64, bool) {
	q := tokenSet(query)
	if len(q) == 0 {
		return 0, false
	}

	title := tokenSet(entry.Title)
	if len(title) > 0 {
		union := tokenSet(entry.Title + " " + entry.Artist)
		titleOverlap := float64(overlap(title, q)) / float64(len(title))
		combined := float64(overlap(q, union)) / float64(len(q))
		if titleOverlap >= minTitleOverlap && combined >= minCombinedOverlap {
			return (titleOverlap + combined) / 2, true
		}
	}

	nq := normalizeQuery(query)
	best := 0.0
	for _, candidate := range []string{
		entry.Query,
		entry.Title,
		entry.Artist + " " + entry.Title,
		entry.Title + " " + entry.Artist,
	} {
		best = max(best, similarity(nq, normalizeQuery(candidate)))
	}

	return best, best >= minSimilarity
}

type scored struct {
	member string
	entry  indexEntry
	score  float64
}

func (c *Cache) fuzzySearch(ctx context.Context, sources []resolver.Source, query string) (*CachedTrack, error) {
	for _, source := range sources {
		index := searchIndexKey(source)
		members, err := c.rc.ZRevRange(ctx, index, 0, c.cfg.ScanLimit-1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan search index: %w", err)
		}

		candidates := make([]scored, 0)
		for _, m := range members {
			var e indexEntry
			if err := json.Unmarshal([]byte(m), &e); err != nil {
				continue
			}
			if score, ok := matchScore(query, &e); ok {
				candidates = append(candidates, scored{member: m, entry: e, score: score})
			}
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].score > candidates[j].score
		})

		for _, cand := range candidates {
			track, err := c.getAndTouch(ctx, cand.entry.Key)
			if err != nil {
				return nil, err
			}
			if track != nil {
				c.logger.DebugContext(ctx, "fuzzy hit", "query", query, "title", track.Title, "score", cand.score)
				return track, nil
			}

			// entry outlived its payload
			c.rc.ZRem(ctx, index, cand.member)
		}
	}

	return nil, nil
}
