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

package thumbcache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"crate.dev/pkg/asset"
	"crate.dev/pkg/images"
	"crate.dev/pkg/thumbmeta"
)

// A job generates the thumbnail of one asset for one cache key.
type job struct {
	id    uint64
	epoch int
	path  string
	ext   string
	hash  string
	key   string
}

// result is what a render produces, shared by jobs for the same asset.
type result struct {
	im       image.Image
	rendered bool // false if a fresh persisted file was reused
}

// startJob registers key as in progress and starts generating the
// asset in the background. It reports false if the cache is closed.
func (c *Cache) startJob(path, hash, key string) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if _, ok := c.active[key]; ok {
		c.mu.Unlock()
		return true
	}
	c.jobID++
	j := job{
		id:    c.jobID,
		epoch: c.epoch,
		path:  path,
		ext:   asset.Ext(path),
		hash:  hash,
		key:   key,
	}
	if len(c.active) == 0 {
		c.idle = make(chan struct{})
	}
	c.active[key] = j.id
	c.jobs.Add(1)
	c.mu.Unlock()

	count("generationsStarted")
	go c.run(j)
	return true
}

func (c *Cache) run(j job) {
	defer c.jobs.Done()
	var (
		res *result
		err error
	)
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("panic: %v\n%s", e, debug.Stack())
		}
		c.finish(j, res, err)
	}()
	// Jobs for the same asset at other sizes share one render.
	v, err := c.flight.Do(fmt.Sprintf("%s@%d", j.hash, j.epoch), func() (any, error) {
		return c.produce(j)
	})
	if err == nil {
		res = v.(*result)
	}
}

// finish records the outcome of j and removes its cache key from the
// in-progress set. It runs exactly once per job.
func (c *Cache) finish(j job, res *result, err error) {
	base := c.baseSizes[0]
	name := filepath.Base(j.path)
	switch {
	case err != nil:
		count("generationsFailed")
		c.logf("thumbcache: generating %s failed: %v", name, err)
	case res.rendered:
		count("generationsSucceeded")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if j.epoch == c.epoch {
		if err != nil {
			paths := c.failed[j.ext]
			if paths == nil {
				paths = make(map[string]bool)
				c.failed[j.ext] = paths
			}
			paths[j.path] = true
		} else {
			c.mem.Add(asset.Key(j.hash, base), res.im)
		}
	}
	if c.active[j.key] == j.id {
		delete(c.active, j.key)
		if len(c.active) == 0 {
			close(c.idle)
		}
	}
}

func (c *Cache) currentEpoch() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// produce renders the asset of j at the largest base size and persists
// the result, unless a fresh persisted thumbnail already exists.
func (c *Cache) produce(j job) (res *result, err error) {
	defer func() {
		// Panics must not escape the singleflight call, which would
		// leave duplicate callers waiting forever.
		if e := recover(); e != nil {
			res, err = nil, fmt.Errorf("panic: %v\n%s", e, debug.Stack())
		}
	}()
	base := c.baseSizes[0]
	if im, ok := c.fromDisk(j.hash, base, c.baseSizes[:1]); ok {
		return &result{im: im}, nil
	}

	fi, err := os.Stat(j.path)
	if err != nil {
		return nil, err
	}
	if fi.Size() > c.maxSource {
		return nil, fmt.Errorf("%w (%d MiB)", errTooLarge, fi.Size()>>20)
	}

	work := filepath.Join(c.scratch, uuid.NewString())
	if err := os.MkdirAll(work, 0700); err != nil {
		return nil, err
	}
	defer os.RemoveAll(work)

	in := j.path
	if asset.IsNetworkPath(j.path, c.netPrefix) {
		in = filepath.Join(work, filepath.Base(j.path))
		if err := copyFile(in, j.path); err != nil {
			return nil, fmt.Errorf("staging %s: %w", j.path, err)
		}
	}
	out := filepath.Join(work, asset.FileName(j.hash, base))

	c.logf("thumbcache: generating thumbnail for %s", filepath.Base(j.path))
	start := time.Now()
	if err := c.renderer.Render(c.ctx, in, out, c.genTimeout); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	waitSettled(out, c.settle)

	im, err := images.DecodeFile(out, base)
	if err != nil {
		return nil, fmt.Errorf("generated thumbnail is invalid: %w", err)
	}
	if j.epoch != c.currentEpoch() {
		return &result{im: im, rendered: true}, nil
	}
	dst := filepath.Join(c.dir, asset.FileName(j.hash, base))
	if err := images.WriteFile(dst, im); err != nil {
		// The preview still serves this session from memory.
		c.logf("thumbcache: persisting %s: %v", dst, err)
	}
	if c.index != nil {
		err := c.index.Put(thumbmeta.Record{
			Hash:      j.hash,
			Path:      j.path,
			BaseSize:  base,
			Elapsed:   elapsed,
			Generated: time.Now(),
		})
		if err != nil {
			c.logf("thumbcache: indexing %s: %v", j.path, err)
		}
	}
	c.logf("thumbcache: generated thumbnail for %s in %v", filepath.Base(j.path), elapsed.Round(time.Millisecond))
	return &result{im: im, rendered: true}, nil
}

// waitSettled waits, at most limit, until the size of the file at path
// stops changing.
func waitSettled(path string, limit time.Duration) {
	const step = 50 * time.Millisecond
	deadline := time.Now().Add(limit)
	last := int64(-1)
	for {
		fi, err := os.Stat(path)
		if err == nil && fi.Size() > 0 && fi.Size() == last {
			return
		}
		if err == nil {
			last = fi.Size()
		}
		left := time.Until(deadline)
		if left <= 0 {
			return
		}
		time.Sleep(min(step, left))
	}
}

// copyFile copies src to dst, keeping the modification time.
func copyFile(dst, src string) error {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sf.Close()
	fi, err := sf.Stat()
	if err != nil {
		return err
	}
	df, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(df, sf); err != nil {
		df.Close()
		return err
	}
	if err := df.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, time.Now(), fi.ModTime())
}

// TestResult is the outcome of TestRender.
type TestResult struct {
	Asset   string
	Image   image.Image // fits 100×100
	Elapsed time.Duration
}

// ErrNoModel is returned by TestRender when a directory holds no
// renderable model.
var ErrNoModel = errors.New("thumbcache: no renderable model found")

// TestRender renders one asset synchronously with the shorter test
// timeout, bypassing the cache, and returns the preview scaled to 100
// pixels. If path is a directory, its first renderable model is used.
// Nothing is persisted.
func (c *Cache) TestRender(ctx context.Context, path string) (TestResult, error) {
	res := TestResult{Asset: path}
	if c.renderer == nil {
		return res, errors.New("thumbcache: no renderer configured")
	}
	if fi, err := os.Stat(path); err != nil {
		return res, err
	} else if fi.IsDir() {
		p, err := FirstModel(path)
		if err != nil {
			return res, err
		}
		res.Asset = p
	}

	out := filepath.Join(c.dir, TestOutputName)
	defer os.Remove(out)
	start := time.Now()
	if err := c.renderer.Render(ctx, res.Asset, out, c.tstTimeout); err != nil {
		return res, err
	}
	res.Elapsed = time.Since(start)
	im, err := images.DecodeFile(out, 100)
	if err != nil {
		return res, fmt.Errorf("test image is invalid: %w", err)
	}
	res.Image = im
	return res, nil
}

// FirstModel returns the first regular file in dir, in name order,
// that the renderer previews.
func FirstModel(dir string) (string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range ents {
		if e.Type().IsRegular() && asset.Renderable(asset.Ext(e.Name())) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", ErrNoModel
}
