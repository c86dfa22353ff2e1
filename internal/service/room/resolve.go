package room

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sharetube/syncspace/internal/musiccache"
	"github.com/sharetube/syncspace/internal/resolver"
	"github.com/sharetube/syncspace/internal/workerpool"
)

// TrackInput is what a client may send to identify a track.
type TrackInput struct {
	URL       string
	Query     string
	Source    resolver.Source
	TrackData *resolver.Track
}

// checkInput rejects malformed input before anything is resolved or stored.
// A Source names the catalog a free-text query is searched in and must be
// one the registry serves.
func (s *service) checkInput(in *TrackInput) (*workerpool.TrackRequest, error) {
	req := &workerpool.TrackRequest{Source: s.cfg.PlaybackSource}

	if in.Source != "" {
		if _, err := s.registry.Get(in.Source); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}

	switch {
	case strings.TrimSpace(in.URL) != "":
		url := strings.TrimSpace(in.URL)
		r, ok := s.registry.Detect(url)
		if !ok {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, resolver.ErrInvalidURL)
		}
		if _, ok := r.ExtractID(url); !ok {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, resolver.ErrInvalidURL)
		}
		req.URL = url
	case in.TrackData.IsComplete():
		known := *in.TrackData
		req.Known = &known
	case strings.TrimSpace(in.Query) != "":
		req.Query = strings.TrimSpace(in.Query)
		req.SearchSource = in.Source
	default:
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, resolver.ErrEmptyQuery)
	}

	return req, nil
}

func (s *service) lookupCache(ctx context.Context, req *workerpool.TrackRequest) *resolver.Track {
	var (
		hit *musiccache.CachedTrack
		err error
	)

	switch {
	case req.URL != "":
		r, _ := s.registry.Detect(req.URL)
		id, _ := r.ExtractID(req.URL)
		hit, _, err = s.cache.Search(ctx, &musiccache.SearchParams{Query: req.URL, CatalogID: id, Source: r.Source()})
	case req.Known != nil:
		hit, err = s.cache.GetByTitleArtist(ctx, req.Source, req.Known.Title, req.Known.Artist)
	default:
		searchIn := req.SearchSource
		if searchIn == "" {
			searchIn = req.Source
		}
		hit, _, err = s.cache.Search(ctx, &musiccache.SearchParams{Query: req.Query, Source: searchIn})
	}

	if err != nil {
		s.logger.WarnContext(ctx, "cache lookup failed", "error", err)
		return nil
	}
	if hit == nil {
		return nil
	}
	// only tracks from the playback catalog can be queued as is; a cached
	// query hit from another catalog still spares the metadata lookup
	if hit.Source != req.Source {
		if req.URL == "" && req.Known == nil {
			known := hit.Track
			req.Known = &known
		}
		return nil
	}

	track := hit.Track
	return &track
}

func (s *service) storeInCache(ctx context.Context, req *workerpool.TrackRequest, track *resolver.Track) {
	query := req.Query
	if req.URL != "" {
		query = req.URL
	}
	if _, err := s.cache.Store(ctx, track, query); err != nil {
		s.logger.WarnContext(ctx, "failed to cache track", "id", track.ID, "error", err)
	}
}

// resolve turns a request into a playable track: cache first, then the
// worker pool. Successful lookups are written back to the cache.
func (s *service) resolve(ctx context.Context, req *workerpool.TrackRequest) (*resolver.Track, error) {
	if track := s.lookupCache(ctx, req); track != nil {
		return track, nil
	}

	res, err := s.pool.Submit(ctx, workerpool.Task{Type: workerpool.TaskFetchTrack, Track: *req})
	if err != nil {
		return nil, fmt.Errorf("failed to submit resolve task: %w", err)
	}
	if !res.Success {
		if e := res.Err(); e != nil {
			return nil, fmt.Errorf("failed to resolve track: %w", e)
		}
		return nil, fmt.Errorf("failed to resolve track: %s", res.Error)
	}

	track := res.Data.Track
	s.storeInCache(ctx, req, track)

	return track, nil
}

type batchResolved struct {
	track *resolver.Track
	err   error
}

// resolveBatch resolves cache misses in one batch task, keeping input order.
func (s *service) resolveBatch(ctx context.Context, reqs []*workerpool.TrackRequest) []batchResolved {
	out := make([]batchResolved, len(reqs))
	missing := make([]workerpool.TrackRequest, 0, len(reqs))
	missingIdx := make([]int, 0, len(reqs))

	for i, req := range reqs {
		if track := s.lookupCache(ctx, req); track != nil {
			out[i].track = track
			continue
		}
		missing = append(missing, *req)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return out
	}

	res, err := s.pool.Submit(ctx, workerpool.Task{Type: workerpool.TaskBatch, Batch: missing})
	if err == nil && !res.Success {
		err = errors.New(res.Error)
	}
	if err != nil {
		for _, i := range missingIdx {
			out[i].err = fmt.Errorf("failed to resolve track: %w", err)
		}
		return out
	}

	for _, item := range res.Data.Batch {
		i := missingIdx[item.Index]
		if item.Track == nil {
			out[i].err = fmt.Errorf("failed to resolve track: %s", item.Error)
			continue
		}
		out[i].track = item.Track
		s.storeInCache(ctx, reqs[i], item.Track)
	}

	return out
}
