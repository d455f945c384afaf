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

// Package thumbmeta keeps an index of generated thumbnails: for each
// asset path hash, where the asset lives, the base size it was rendered
// at, and how long the render took.
//
// The index is advisory. The persisted thumbnail files are the source of
// truth for lookups; the index serves listing and pruning.
package thumbmeta // import "crate.dev/pkg/thumbmeta"

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"crate.dev/pkg/lru"
)

const memLRUSize = 1024 // arbitrary

// ErrNotFound is returned by Get when no record exists for a hash.
var ErrNotFound = errors.New("thumbmeta: not found")

const keyPrefix = "thumb:"

// Record describes one generated thumbnail.
type Record struct {
	Hash      string        `json:"hash"`
	Path      string        `json:"path"`
	BaseSize  int           `json:"baseSize"`
	Elapsed   time.Duration `json:"elapsed"`
	Generated time.Time     `json:"generated"`
}

// Index is a mapping from an asset path hash to its Record.
// Index is safe for concurrent use by multiple goroutines.
type Index struct {
	mu  sync.Mutex
	mem *lru.Cache[Record]
	kv  keyValue
}

// keyValue is the storage behind an Index.
type keyValue interface {
	get(key string) ([]byte, error) // ErrNotFound if missing
	set(key string, value []byte) error
	delete(key string) error
	// each calls fn for every key with prefix, in key order.
	each(prefix string, fn func(key string, value []byte) error) error
	wipe() error
	close() error
}

// NewMem returns an Index kept in memory only.
func NewMem() *Index {
	return newIndex(newMemKV())
}

func newIndex(kv keyValue) *Index {
	return &Index{
		mem: lru.New[Record](memLRUSize),
		kv:  kv,
	}
}

// Put stores r, replacing any previous record for r.Hash.
func (ix *Index) Put(r Record) error {
	if r.Hash == "" {
		return errors.New("thumbmeta: record without hash")
	}
	v, err := json.Marshal(r)
	if err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.kv.set(keyPrefix+r.Hash, v); err != nil {
		return err
	}
	ix.mem.Add(r.Hash, r)
	return nil
}

// Get returns the record for hash.
func (ix *Index) Get(hash string) (Record, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if r, ok := ix.mem.Get(hash); ok {
		return r, nil
	}
	v, err := ix.kv.get(keyPrefix + hash)
	if err != nil {
		return Record{}, err
	}
	var r Record
	if err := json.Unmarshal(v, &r); err != nil {
		return Record{}, fmt.Errorf("thumbmeta: invalid record for %q: %v", hash, err)
	}
	ix.mem.Add(hash, r)
	return r, nil
}

// All returns every record, sorted by path.
// Records that fail to decode are skipped.
func (ix *Index) All() ([]Record, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	var all []Record
	err := ix.kv.each(keyPrefix, func(key string, v []byte) error {
		var r Record
		if err := json.Unmarshal(v, &r); err != nil {
			return nil
		}
		all = append(all, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Path < all[j].Path })
	return all, nil
}

// Delete removes the record for hash, if any.
func (ix *Index) Delete(hash string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.mem.Remove(hash)
	return ix.kv.delete(keyPrefix + hash)
}

// Wipe removes all records.
func (ix *Index) Wipe() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.mem.Clear()
	return ix.kv.wipe()
}

// Close releases the storage.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.kv.close()
}

// memKV is an in-memory keyValue.
type memKV struct {
	m map[string][]byte
}

func newMemKV() *memKV { return &memKV{m: make(map[string][]byte)} }

func (kv *memKV) get(key string) ([]byte, error) {
	v, ok := kv.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (kv *memKV) set(key string, value []byte) error {
	kv.m[key] = value
	return nil
}

func (kv *memKV) delete(key string) error {
	delete(kv.m, key)
	return nil
}

func (kv *memKV) each(prefix string, fn func(string, []byte) error) error {
	keys := make([]string, 0, len(kv.m))
	for k := range kv.m {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn(k, kv.m[k]); err != nil {
			return err
		}
	}
	return nil
}

func (kv *memKV) wipe() error {
	kv.m = make(map[string][]byte)
	return nil
}

func (kv *memKV) close() error { return nil }
