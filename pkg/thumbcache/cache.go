/*
Copyright 2026 The Crate Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package thumbcache maps asset files to preview images.

A Cache answers Thumbnail requests without blocking: from memory, from
thumbnails persisted on disk, by decoding texture files directly, or
with a placeholder. Model files are rendered in the background by an
external program; their requests return a "generating" placeholder
until the render lands, after which the same request returns the real
preview.

Persisted thumbnails are named "<hash>_<size>.png", where hash is the
first 12 hex digits of the MD5 of the asset's absolute path and size is
one of the base sizes. Renders are always persisted at the largest base
size, so requests at any size reuse the same file.
*/
package thumbcache // import "crate.dev/pkg/thumbcache"

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"go4.org/syncutil/singleflight"
	"golang.org/x/sync/errgroup"

	"crate.dev/internal/osutil"
	"crate.dev/pkg/asset"
	"crate.dev/pkg/images"
	"crate.dev/pkg/lru"
	"crate.dev/pkg/placeholder"
	"crate.dev/pkg/render"
	"crate.dev/pkg/thumbmeta"
)

// Defaults for the zero values of Options.
const (
	DefaultMaxAge          = 7 * 24 * time.Hour
	DefaultMaxSourceSize   = 500 << 20
	DefaultGenerateTimeout = 60 * time.Second
	DefaultTestTimeout     = 30 * time.Second
	DefaultSettleDelay     = 500 * time.Millisecond
	DefaultMemEntries      = 4096
)

// DefaultBaseSizes are the sizes thumbnails are persisted at, largest first.
var DefaultBaseSizes = []int{256, 128, 100}

// TestOutputName is the file TestRender renders to, in the cache directory.
const TestOutputName = "test_output.png"

var (
	statsVar = expvar.NewMap("thumbcache")

	errTooLarge = errors.New("source file too large")
)

func count(name string) { statsVar.Add(name, 1) }

// Options configure a Cache. The zero value of each field selects its
// default.
type Options struct {
	// CacheDirs are the candidate thumbnail directories, most preferred
	// first. The first one that can be created and written to is used.
	// If empty, osutil.CacheDirs("") is used.
	CacheDirs []string

	// ScratchDir holds per-job staging copies and renderer output.
	// It should be on a local disk. If empty, osutil.ScratchDir is used.
	ScratchDir string

	BaseSizes       []int
	MaxAge          time.Duration // persisted thumbnails older than this are regenerated
	MaxSourceSize   int64         // larger assets are never rendered
	GenerateTimeout time.Duration
	TestTimeout     time.Duration

	// SettleDelay bounds how long a job waits for the renderer's
	// output file to stop growing before decoding it.
	SettleDelay time.Duration

	// MemEntries bounds the number of decoded thumbnails kept in memory.
	MemEntries int

	// NetworkPrefixes are path prefixes of network mounts. Assets under
	// them, and UNC paths, are copied to ScratchDir before rendering.
	NetworkPrefixes []string

	// Renderer renders model files. If nil, or its program cannot be
	// found, models get plain placeholders.
	Renderer *render.Service

	// Index optionally records every generated thumbnail.
	// The Cache does not close it.
	Index *thumbmeta.Index

	// Logger receives progress and failure messages.
	// If nil, the standard logger is used.
	Logger *log.Logger
}

// Cache is a thumbnail cache. It is safe for concurrent use by multiple
// goroutines.
type Cache struct {
	dir        string
	scratch    string
	baseSizes  []int // descending
	maxAge     time.Duration
	maxSource  int64
	genTimeout time.Duration
	tstTimeout time.Duration
	settle     time.Duration
	netPrefix  []string
	renderer   *render.Service
	renderOK   bool
	index      *thumbmeta.Index
	logger     *log.Logger

	ctx    context.Context // canceled by Close
	cancel context.CancelFunc
	flight singleflight.Group
	jobs   sync.WaitGroup

	mu     sync.Mutex
	mem    *lru.Cache[image.Image]    // cache key -> thumbnail
	failed map[string]map[string]bool // extension -> asset path
	badTex map[string]bool            // textures that failed to decode, logged once
	active map[string]uint64          // cache key -> job id
	idle   chan struct{}              // closed while active is empty
	epoch  int                        // incremented by RegenerateAll
	jobID  uint64
	closed bool
}

// New returns a Cache using the first usable directory of
// opts.CacheDirs. It fails only if no directory is usable.
func New(opts Options) (*Cache, error) {
	dirs := opts.CacheDirs
	if len(dirs) == 0 {
		dirs = osutil.CacheDirs("")
	}
	dir, err := osutil.ResolveCacheDir(dirs)
	if err != nil {
		return nil, err
	}
	scratch := opts.ScratchDir
	if scratch == "" {
		if scratch, err = osutil.ScratchDir(); err != nil {
			return nil, err
		}
	} else if err := os.MkdirAll(scratch, 0700); err != nil {
		return nil, fmt.Errorf("thumbcache: creating scratch dir: %w", err)
	}

	c := &Cache{
		dir:        dir,
		scratch:    scratch,
		baseSizes:  append([]int(nil), opts.BaseSizes...),
		maxAge:     orDuration(opts.MaxAge, DefaultMaxAge),
		maxSource:  opts.MaxSourceSize,
		genTimeout: orDuration(opts.GenerateTimeout, DefaultGenerateTimeout),
		tstTimeout: orDuration(opts.TestTimeout, DefaultTestTimeout),
		settle:     orDuration(opts.SettleDelay, DefaultSettleDelay),
		netPrefix:  opts.NetworkPrefixes,
		renderer:   opts.Renderer,
		index:      opts.Index,
		logger:     opts.Logger,
		failed:     make(map[string]map[string]bool),
		badTex:     make(map[string]bool),
		active:     make(map[string]uint64),
		idle:       make(chan struct{}),
	}
	close(c.idle)
	if len(c.baseSizes) == 0 {
		c.baseSizes = append(c.baseSizes, DefaultBaseSizes...)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(c.baseSizes)))
	if c.maxSource <= 0 {
		c.maxSource = DefaultMaxSourceSize
	}
	memEntries := opts.MemEntries
	if memEntries <= 0 {
		memEntries = DefaultMemEntries
	}
	c.mem = lru.New[image.Image](memEntries)
	if c.logger == nil {
		c.logger = log.Default()
	}
	if c.renderer != nil {
		if _, err := c.renderer.LookPath(); err != nil {
			c.logf("thumbcache: %v; model previews disabled", err)
		} else {
			c.renderOK = true
		}
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.logf("thumbcache: using %s (scratch %s)", c.dir, c.scratch)
	return c, nil
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func (c *Cache) logf(format string, args ...any) {
	c.logger.Printf(format, args...)
}

// Dir returns the thumbnail directory in use.
func (c *Cache) Dir() string { return c.dir }

// BaseSize returns the size renders are persisted at.
func (c *Cache) BaseSize() int { return c.baseSizes[0] }

// Close stops accepting generation requests, cancels running jobs and
// waits for them to return.
func (c *Cache) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.jobs.Wait()
	return nil
}

// Thumbnail returns a preview of the asset at path fitting a size×size
// box. It never blocks on rendering and never returns nil: when no
// preview is available yet, it returns a placeholder.
func (c *Cache) Thumbnail(path string, size int) (im image.Image) {
	ext := asset.Ext(path)
	size = max(size, 1)
	defer func() {
		if e := recover(); e != nil {
			c.logf("thumbcache: panic getting thumbnail for %s: %v\n%s", path, e, debug.Stack())
			im = placeholder.New(ext, size, "")
		}
	}()

	hash := asset.Hash(path)
	key := asset.Key(hash, size)
	if im, ok := c.memGet(key); ok {
		count("memHits")
		return im
	}
	// A render is kept in memory at the base size even when it could
	// not be persisted.
	if base := c.baseSizes[0]; size != base {
		if im, ok := c.memGet(asset.Key(hash, base)); ok {
			count("memHits")
			im = images.Scale(im, size)
			c.memAdd(key, im)
			return im
		}
	}
	if im, ok := c.fromDisk(hash, size, c.baseSizes); ok {
		count("diskHits")
		c.memAdd(key, im)
		return im
	}
	if asset.IsTexture(ext) {
		im, err := images.DecodeFile(path, size)
		if err == nil {
			count("textureDecodes")
			c.memAdd(key, im)
			return im
		}
		if c.firstTextureError(path) {
			c.logf("thumbcache: loading texture %s: %v", path, err)
		}
	}
	if asset.Renderable(ext) && c.renderOK && !c.IsFailed(path) {
		if c.startJob(path, hash, key) {
			return placeholder.New(ext, size, placeholder.StatusGenerating)
		}
	}
	count("placeholders")
	return placeholder.New(ext, size, "")
}

func (c *Cache) memGet(key string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mem.Get(key)
}

func (c *Cache) memAdd(key string, im image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem.Add(key, im)
}

// fromDisk returns the persisted thumbnail of the first of sizes that
// is fresh and decodes, scaled to size.
func (c *Cache) fromDisk(hash string, size int, sizes []int) (image.Image, bool) {
	for _, base := range sizes {
		p := filepath.Join(c.dir, asset.FileName(hash, base))
		fi, err := os.Stat(p)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		if time.Since(fi.ModTime()) >= c.maxAge {
			continue
		}
		im, err := images.DecodeFile(p, size)
		if err != nil {
			c.logf("thumbcache: ignoring unreadable %s: %v", p, err)
			continue
		}
		return im, true
	}
	return nil, false
}

// firstTextureError records that the texture at path could not be
// decoded and reports whether this is the first time.
func (c *Cache) firstTextureError(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.badTex[path] {
		return false
	}
	c.badTex[path] = true
	return true
}

// IsFailed reports whether generating a thumbnail for path failed
// earlier in this session.
func (c *Cache) IsFailed(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed[asset.Ext(path)][path]
}

// Pending returns the number of generation jobs in progress.
func (c *Cache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// Active returns the cache keys being generated, sorted.
func (c *Cache) Active() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.active))
	for k := range c.active {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Failed returns the assets whose generation failed this session, by
// extension. The path lists are sorted.
func (c *Cache) Failed() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := make(map[string][]string, len(c.failed))
	for ext, paths := range c.failed {
		l := make([]string, 0, len(paths))
		for p := range paths {
			l = append(l, p)
		}
		sort.Strings(l)
		m[ext] = l
	}
	return m
}

// Idle returns a channel that is closed when no generation is in
// progress. A new channel is returned once another generation starts.
func (c *Cache) Idle() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idle
}

// Wait blocks until no generation is in progress or ctx is done.
func (c *Cache) Wait(ctx context.Context) error {
	select {
	case <-c.Idle():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Prefetch requests thumbnails of size for every path, decoding
// textures with a few goroutines, and waits for the resulting
// generations to finish.
func (c *Cache) Prefetch(ctx context.Context, paths []string, size int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c.Thumbnail(p, size)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return c.Wait(ctx)
}

// RegenerateAll forgets every thumbnail: it empties memory, clears the
// failure and in-progress records, deletes the persisted files and
// wipes the index. Jobs already running finish without updating the
// cache.
func (c *Cache) RegenerateAll() error {
	c.mu.Lock()
	c.epoch++
	c.mem.Clear()
	c.failed = make(map[string]map[string]bool)
	clear(c.badTex)
	if len(c.active) > 0 {
		c.active = make(map[string]uint64)
		close(c.idle)
	}
	c.mu.Unlock()

	ents, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	var g errgroup.Group
	g.SetLimit(8)
	for _, e := range ents {
		name := e.Name()
		if _, _, ok := asset.ParseFileName(name); !ok && name != TestOutputName {
			continue
		}
		g.Go(func() error {
			err := os.Remove(filepath.Join(c.dir, name))
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			return nil
		})
	}
	err = g.Wait()
	if c.index != nil {
		err = errors.Join(err, c.index.Wipe())
	}
	c.logf("thumbcache: cleared all thumbnails in %s", c.dir)
	return err
}

// Prune deletes the persisted thumbnails of indexed assets that no
// longer exist, and returns how many assets were pruned.
// It requires an index.
func (c *Cache) Prune() (int, error) {
	if c.index == nil {
		return 0, errors.New("thumbcache: prune needs an index")
	}
	recs, err := c.index.All()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range recs {
		if _, err := os.Stat(r.Path); !errors.Is(err, os.ErrNotExist) {
			continue
		}
		for _, base := range c.baseSizes {
			err := os.Remove(filepath.Join(c.dir, asset.FileName(r.Hash, base)))
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return n, err
			}
		}
		if err := c.index.Delete(r.Hash); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Info describes the state of a Cache, for diagnostics.
type Info struct {
	Renderer      string
	RendererFound bool
	CacheDir      string
	CacheWritable bool
	ScratchDir    string
	Pending       int
	Failed        int
	MemEntries    int
}

// Info returns diagnostics about c.
func (c *Cache) Info() Info {
	inf := Info{
		CacheDir:      c.dir,
		CacheWritable: osutil.WriteProbe(c.dir) == nil,
		ScratchDir:    c.scratch,
	}
	if c.renderer != nil {
		inf.Renderer = c.renderer.Program()
		inf.RendererFound = c.renderer.Available()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	inf.Pending = len(c.active)
	for _, paths := range c.failed {
		inf.Failed += len(paths)
	}
	inf.MemEntries = c.mem.Len()
	return inf
}
