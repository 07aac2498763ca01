package tile_cache

import (
	"context"
	"image"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"tileglobe/internal/mesh"
	"tileglobe/internal/projection"
)

type Options struct {
	Ellipsoid      projection.Ellipsoid
	MeshResolution int
	// Workers bounds concurrent provider fetches.
	Workers int
	// MaxRecords enables least-recently-used eviction when positive. Zero keeps
	// every record for the life of the cache.
	MaxRecords int
	Logger     *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		Ellipsoid:      projection.UnitSphere,
		MeshResolution: mesh.DefaultResolution,
		Workers:        4,
	}
}

type Stats struct {
	Records   int `json:"records"`
	Ready     int `json:"ready"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
	Fetches   int `json:"fetches"`
	Evictions int `json:"evictions"`
}

type completion struct {
	rec *Record
	img image.Image
	err error
}

// Cache owns every tile record. It is not safe for concurrent use: records,
// the arena and the index belong to the goroutine driving frames. Only
// texture fetches run elsewhere and they report back through Poll.
type Cache struct {
	provider Provider
	opts     Options
	log      *zap.Logger

	records []*Record
	free    []Handle
	index   map[projection.Address]Handle
	recent  *lru.Cache[projection.Address, Handle]

	ctx    context.Context
	cancel context.CancelFunc
	slots  chan struct{}
	done   chan completion
	wg     sync.WaitGroup

	fetches   int
	completed int
	ready     int
	failed    int
	evictions int
}

func New(provider Provider, opts Options) *Cache {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Ellipsoid == (projection.Ellipsoid{}) {
		opts.Ellipsoid = projection.UnitSphere
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		provider: provider,
		opts:     opts,
		log:      log,
		index:    make(map[projection.Address]Handle),
		ctx:      ctx,
		cancel:   cancel,
		slots:    make(chan struct{}, opts.Workers),
		done:     make(chan completion, 64),
	}

	if opts.MaxRecords > 0 {
		recent, err := lru.NewWithEvict[projection.Address, Handle](opts.MaxRecords, c.evict)
		if err != nil {
			log.Warn("Record eviction disabled", zap.Int("max_records", opts.MaxRecords), zap.Error(err))
		} else {
			c.recent = recent
		}
	}
	return c
}

// GetOrCreate returns the record for addr, building its mesh and requesting
// its texture on first use. The texture is requested exactly once per record.
func (c *Cache) GetOrCreate(addr projection.Address) *Record {
	if h, ok := c.index[addr]; ok {
		if c.recent != nil {
			c.recent.Get(addr)
		}
		return c.records[h]
	}

	rec := &Record{
		Address: addr,
		Mesh:    mesh.Build(addr, c.opts.Ellipsoid, c.opts.MeshResolution),
		Texture: &Texture{},
	}
	rec.Handle = c.alloc(rec)
	c.index[addr] = rec.Handle
	if c.recent != nil {
		c.recent.Add(addr, rec.Handle)
	}

	c.request(rec)
	return rec
}

func (c *Cache) IsReady(rec *Record) bool {
	return rec != nil && rec.Texture.Ready()
}

// Lookup resolves a handle. It returns nil for evicted records.
func (c *Cache) Lookup(h Handle) *Record {
	if int(h) >= len(c.records) {
		return nil
	}
	return c.records[h]
}

// Peek returns the record for addr without creating it.
func (c *Cache) Peek(addr projection.Address) (*Record, bool) {
	h, ok := c.index[addr]
	if !ok {
		return nil, false
	}
	return c.records[h], true
}

func (c *Cache) Len() int {
	return len(c.index)
}

func (c *Cache) Stats() Stats {
	return Stats{
		Records:   len(c.index),
		Ready:     c.ready,
		Failed:    c.failed,
		Pending:   c.fetches - c.completed,
		Fetches:   c.fetches,
		Evictions: c.evictions,
	}
}

// Poll applies every fetch that finished since the last call and returns how
// many textures became ready. Call it once per frame, before selection.
func (c *Cache) Poll() int {
	n := 0
	for {
		select {
		case res := <-c.done:
			if c.apply(res) {
				n++
			}
		default:
			return n
		}
	}
}

// PollWait blocks until at least one fetch finishes, then behaves like Poll.
// It returns immediately when nothing is in flight.
func (c *Cache) PollWait(ctx context.Context) (int, error) {
	if c.fetches == c.completed {
		return 0, nil
	}
	select {
	case res := <-c.done:
		n := 0
		if c.apply(res) {
			n++
		}
		return n + c.Poll(), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close abandons in-flight fetches and waits for the workers to exit. Fetches
// that never reported back count as completed, so Pending drops to zero.
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
	c.Poll()
	c.completed = c.fetches
}

func (c *Cache) apply(res completion) bool {
	c.completed++
	ok := res.rec.Texture.complete(res.img, res.err)

	if c.Lookup(res.rec.Handle) != res.rec {
		return false
	}
	if res.err != nil {
		c.failed++
		c.log.Debug("Tile texture failed",
			zap.Stringer("tile", res.rec.Address),
			zap.Error(res.err),
		)
		return false
	}
	if ok {
		c.ready++
	}
	return ok
}

func (c *Cache) request(rec *Record) {
	if err := c.ctx.Err(); err != nil {
		rec.Texture.complete(nil, err)
		c.failed++
		return
	}
	c.fetches++
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		select {
		case c.slots <- struct{}{}:
		case <-c.ctx.Done():
			return
		}
		img, err := c.provider.Fetch(c.ctx, rec.Address)
		<-c.slots

		select {
		case c.done <- completion{rec: rec, img: img, err: err}:
		case <-c.ctx.Done():
		}
	}()
}

func (c *Cache) alloc(rec *Record) Handle {
	if n := len(c.free); n > 0 {
		h := c.free[n-1]
		c.free = c.free[:n-1]
		c.records[h] = rec
		return h
	}
	c.records = append(c.records, rec)
	return Handle(len(c.records) - 1)
}

func (c *Cache) evict(addr projection.Address, h Handle) {
	rec := c.records[h]
	delete(c.index, addr)
	c.records[h] = nil
	c.free = append(c.free, h)
	c.evictions++
	switch {
	case rec == nil:
	case rec.Texture.Ready():
		c.ready--
	case rec.Texture.Failed():
		c.failed--
	}
	c.log.Debug("Tile record evicted", zap.Stringer("tile", addr))
}
