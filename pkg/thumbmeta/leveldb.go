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

package thumbmeta

import (
	"fmt"
	"os"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Open returns an Index stored in a leveldb database in dir, creating
// it if needed. A corrupted database is recovered when possible.
//
// leveldb takes an exclusive lock on dir, so dir must be local to this
// process and never the shared thumbnail directory.
func Open(dir string) (*Index, error) {
	kv, err := openLevelDB(dir)
	if err != nil {
		return nil, err
	}
	return newIndex(kv), nil
}

type levelKV struct {
	path      string
	db        *leveldb.DB
	opts      *opt.Options
	writeOpts *opt.WriteOptions
}

func openLevelDB(path string) (*levelKV, error) {
	opts := &opt.Options{
		Filter: filter.NewBloomFilter(10),
	}
	db, err := leveldb.OpenFile(path, opts)
	if errors.IsCorrupted(err) {
		db, err = leveldb.RecoverFile(path, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("thumbmeta: opening %s: %w", path, err)
	}
	return &levelKV{
		path: path,
		db:   db,
		opts: opts,
		// The index can be rebuilt by regenerating, so skip fsyncs.
		writeOpts: &opt.WriteOptions{Sync: false},
	}, nil
}

func (kv *levelKV) get(key string) ([]byte, error) {
	v, err := kv.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return v, err
}

func (kv *levelKV) set(key string, value []byte) error {
	return kv.db.Put([]byte(key), value, kv.writeOpts)
}

func (kv *levelKV) delete(key string) error {
	return kv.db.Delete([]byte(key), kv.writeOpts)
}

func (kv *levelKV) each(prefix string, fn func(string, []byte) error) error {
	it := kv.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer it.Release()
	for it.Next() {
		// The iterator reuses its buffers.
		v := append([]byte(nil), it.Value()...)
		if err := fn(string(it.Key()), v); err != nil {
			return err
		}
	}
	return it.Error()
}

func (kv *levelKV) wipe() error {
	if err := kv.db.Close(); err != nil {
		return err
	}
	if err := os.RemoveAll(kv.path); err != nil {
		return err
	}
	db, err := leveldb.OpenFile(kv.path, kv.opts)
	if err != nil {
		return fmt.Errorf("thumbmeta: error creating %s: %v", kv.path, err)
	}
	kv.db = db
	return nil
}

func (kv *levelKV) close() error {
	return kv.db.Close()
}
