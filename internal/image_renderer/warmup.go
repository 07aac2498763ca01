package image_renderer

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"tileglobe/internal/projection"
)

// Warmup renders every tile of zoom 0..levels for each non-debug source,
// bounded by workers concurrent renders. It returns the number of tiles that
// rendered.
func (r *Renderer) Warmup(ctx context.Context, levels, workers int) int {
	sources := r.sources.GetSources()
	if len(sources) == 0 || levels < 0 {
		return 0
	}

	r.logger.Info("Starting tile warmup", zap.Int("levels", levels), zap.Int("sources", len(sources)))

	if workers <= 0 {
		workers = 1
	}
	workerChan := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var rendered atomic.Int64

	for _, src := range sources {
		if src.Debug {
			continue
		}
		warmupZoom := min(levels, src.MaxZoom)

		for z := 0; z <= warmupZoom; z++ {
			n := uint32(1) << z
			for x := uint32(0); x < n; x++ {
				for y := uint32(0); y < n; y++ {
					if ctx.Err() != nil {
						wg.Wait()
						return int(rendered.Load())
					}
					select {
					case workerChan <- struct{}{}: // Acquire worker slot
					case <-ctx.Done():
						wg.Wait()
						return int(rendered.Load())
					}
					wg.Add(1)

					go func(source string, addr projection.Address) {
						defer wg.Done()
						defer func() { <-workerChan }() // Release worker slot

						if _, err := r.RenderTile(ctx, source, addr); err != nil {
							r.logger.Debug("Warmup tile failed", zap.String("source", source), zap.Stringer("tile", addr), zap.Error(err))
							return
						}
						rendered.Add(1)
					}(src.Name, projection.Address{Zoom: uint32(z), X: x, Y: y})
				}
			}
		}
	}

	wg.Wait()
	r.logger.Info("Tile warmup completed", zap.Int64("tiles", rendered.Load()))
	return int(rendered.Load())
}
