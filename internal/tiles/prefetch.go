package tiles

import (
	"context"
	"errors"
	"sync"

	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog/log"
)

// Stats summarizes a prefetch run.
type Stats struct {
	Fetched int
	Cached  int
	Missing int
	Failed  int
}

type result struct {
	err    error
	cached bool
}

// Prefetch loads every tile into the cache using concurrency workers. With
// force, cached tiles are downloaded again.
func (c *Cache) Prefetch(ctx context.Context, tiles []maptile.Tile, concurrency int, force bool) Stats {
	if concurrency <= 0 {
		concurrency = 1
	}

	jobs := make(chan maptile.Tile, len(tiles))
	results := make(chan result, len(tiles))

	go func() {
		defer close(jobs)
		for _, t := range tiles {
			select {
			case jobs <- t:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				_, cached, err := c.load(ctx, t, force)
				if err != nil && !errors.Is(err, ErrNotFound) {
					log.Trace().
						Err(err).
						Uint32("z", uint32(t.Z)).
						Uint32("x", t.X).
						Uint32("y", t.Y).
						Msg("Failed to download tile")
				}
				results <- result{err: err, cached: cached}
			}
		}()
	}
	wg.Wait()
	close(results)

	var stats Stats
	for res := range results {
		switch {
		case errors.Is(res.err, ErrNotFound):
			stats.Missing++
		case res.err != nil:
			stats.Failed++
		case res.cached:
			stats.Cached++
		default:
			stats.Fetched++
		}
	}

	return stats
}
