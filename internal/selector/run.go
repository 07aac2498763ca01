package selector

import (
	"context"

	"tileglobe/internal/tile_cache"
)

// Run repeats Select for a still camera until no texture is in flight, so the
// result is the selection a renderer converges to. It returns the final
// result and the number of frames drawn. maxFrames <= 0 means no limit.
func Run(ctx context.Context, sel *Selector, cache *tile_cache.Cache, f Frame, maxFrames int) (Result, int, error) {
	var res Result
	frames := 0
	for {
		cache.Poll()
		res = sel.Select(f, res.Tiles)
		frames++
		if cache.Stats().Pending == 0 || (maxFrames > 0 && frames >= maxFrames) {
			return res, frames, nil
		}
		if _, err := cache.PollWait(ctx); err != nil {
			return res, frames, err
		}
	}
}
