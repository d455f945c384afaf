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
	"path/filepath"
	"testing"
	"time"
)

func testIndex(t *testing.T, ix *Index) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recs := []Record{
		{Hash: "bbbbbbbbbbbb", Path: "/assets/props/crate.fbx", BaseSize: 256, Elapsed: 3 * time.Second, Generated: now},
		{Hash: "aaaaaaaaaaaa", Path: "/assets/chars/hero.obj", BaseSize: 256, Elapsed: 2 * time.Second, Generated: now},
	}
	for _, r := range recs {
		if err := ix.Put(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := ix.Put(Record{Path: "/no/hash"}); err == nil {
		t.Error("Put without hash succeeded")
	}

	got, err := ix.Get("bbbbbbbbbbbb")
	if err != nil {
		t.Fatal(err)
	}
	if got.Path != recs[0].Path || got.Elapsed != recs[0].Elapsed || !got.Generated.Equal(now) {
		t.Errorf("Get = %+v; want %+v", got, recs[0])
	}
	if _, err := ix.Get("cccccccccccc"); err != ErrNotFound {
		t.Errorf("Get missing: err = %v; want ErrNotFound", err)
	}

	all, err := ix.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Path != "/assets/chars/hero.obj" {
		t.Errorf("All = %+v; want both records sorted by path", all)
	}

	if err := ix.Delete("aaaaaaaaaaaa"); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Get("aaaaaaaaaaaa"); err != ErrNotFound {
		t.Errorf("Get after Delete: err = %v", err)
	}

	if err := ix.Wipe(); err != nil {
		t.Fatal(err)
	}
	if all, _ := ix.All(); len(all) != 0 {
		t.Errorf("All after Wipe = %d records", len(all))
	}
	if _, err := ix.Get("bbbbbbbbbbbb"); err != ErrNotFound {
		t.Errorf("Get after Wipe: err = %v", err)
	}
	if err := ix.Put(recs[0]); err != nil {
		t.Errorf("Put after Wipe: %v", err)
	}
}

func TestMemIndex(t *testing.T) {
	ix := NewMem()
	defer ix.Close()
	testIndex(t, ix)
}

func TestLevelDBIndex(t *testing.T) {
	ix, err := Open(filepath.Join(t.TempDir(), "index.leveldb"))
	if err != nil {
		t.Fatal(err)
	}
	defer ix.Close()
	testIndex(t, ix)
}

func TestLevelDBReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index.leveldb")
	ix, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	r := Record{Hash: "0123456789ab", Path: "/assets/rock.ply", BaseSize: 256}
	if err := ix.Put(r); err != nil {
		t.Fatal(err)
	}
	if err := ix.Close(); err != nil {
		t.Fatal(err)
	}

	ix, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer ix.Close()
	got, err := ix.Get(r.Hash)
	if err != nil {
		t.Fatal(err)
	}
	if got.Path != r.Path {
		t.Errorf("Path = %q; want %q", got.Path, r.Path)
	}
}
