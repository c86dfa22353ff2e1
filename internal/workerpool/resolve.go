package workerpool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sharetube/syncspace/internal/resolver"
	"golang.org/x/sync/errgroup"
)

func (p *Pool) resolveURL(rawURL string) (resolver.Resolver, string, error) {
	r, ok := p.registry.Detect(rawURL)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", resolver.ErrUnsupportedSource, rawURL)
	}

	id, ok := r.ExtractID(rawURL)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", resolver.ErrInvalidURL, rawURL)
	}

	return r, id, nil
}

func (p *Pool) fetchTrack(ctx context.Context, req *TrackRequest) (*resolver.Track, error) {
	target := req.Source

	switch {
	case req.URL != "":
		r, id, err := p.resolveURL(req.URL)
		if err != nil {
			return nil, err
		}

		track, err := r.GetTrackDetails(ctx, id)
		if err != nil {
			return nil, err
		}
		if target == "" || target == track.Source {
			return track, nil
		}

		return p.merge(ctx, track, target)
	case req.Known.IsComplete():
		if target == "" || target == req.Known.Source {
			known := *req.Known
			return &known, nil
		}

		return p.merge(ctx, req.Known, target)
	default:
		query := strings.TrimSpace(req.Query)
		if query == "" && req.Known != nil {
			query = strings.TrimSpace(req.Known.Artist + " " + req.Known.Title)
		}
		if query == "" {
			return nil, resolver.ErrEmptyQuery
		}

		searchIn := req.SearchSource
		if searchIn == "" {
			searchIn = target
		}
		if searchIn == "" {
			searchIn = p.cfg.DefaultSource
		}

		r, err := p.registry.Get(searchIn)
		if err != nil {
			return nil, err
		}

		track, err := r.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		if target == "" || target == track.Source {
			return track, nil
		}

		return p.merge(ctx, track, target)
	}
}

// merge keeps the known metadata and only looks up the id and URL of the
// same track in the target catalog.
func (p *Pool) merge(ctx context.Context, known *resolver.Track, target resolver.Source) (*resolver.Track, error) {
	r, err := p.registry.Get(target)
	if err != nil {
		return nil, err
	}

	hit, err := r.Search(ctx, strings.TrimSpace(known.Artist+" "+known.Title))
	if err != nil {
		return nil, fmt.Errorf("failed to find %s counterpart: %w", target, err)
	}

	merged := *known
	merged.ID = hit.ID
	merged.URL = hit.URL
	merged.Source = hit.Source
	merged.CrossRefs = make(map[resolver.Source]string, len(known.CrossRefs)+1)
	for source, id := range known.CrossRefs {
		merged.CrossRefs[source] = id
	}
	merged.CrossRefs[known.Source] = known.ID
	delete(merged.CrossRefs, hit.Source)

	if merged.SmallImg == "" {
		merged.SmallImg = hit.SmallImg
	}
	if merged.BigImg == "" {
		merged.BigImg = hit.BigImg
	}
	if merged.Duration == 0 {
		merged.Duration = hit.Duration
	}

	return &merged, nil
}

func (p *Pool) verifyAvailability(ctx context.Context, req *TrackRequest) (bool, error) {
	r, id, err := p.resolveURL(req.URL)
	if err != nil {
		return false, err
	}

	if _, err := r.GetTrackDetails(ctx, id); err != nil {
		if errors.Is(err, resolver.ErrTrackNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (p *Pool) extractMetadata(req *TrackRequest) (*Metadata, error) {
	r, id, err := p.resolveURL(req.URL)
	if err != nil {
		return nil, err
	}

	return &Metadata{Source: r.Source(), ID: id, URL: strings.TrimSpace(req.URL)}, nil
}

// batch resolves every request, keeping input order in the output. One
// failing item does not fail the others.
func (p *Pool) batch(ctx context.Context, reqs []TrackRequest) []BatchItem {
	items := make([]BatchItem, len(reqs))

	var g errgroup.Group
	g.SetLimit(p.cfg.BatchParallelism)
	for i := range reqs {
		g.Go(func() error {
			items[i] = p.batchItem(ctx, i, &reqs[i])
			return nil
		})
	}
	_ = g.Wait()

	return items
}

func (p *Pool) batchItem(ctx context.Context, index int, req *TrackRequest) (item BatchItem) {
	item.Index = index
	defer func() {
		if rec := recover(); rec != nil {
			item.Track = nil
			item.Error = fmt.Sprintf("task panicked: %v", rec)
		}
	}()

	track, err := p.fetchTrack(ctx, req)
	if err != nil {
		item.Error = err.Error()
		return item
	}
	item.Track = track

	return item
}
