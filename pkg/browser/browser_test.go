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

package browser

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"crate.dev/pkg/asset"
	"crate.dev/pkg/host"
)

type fakeThumbs struct {
	mu      sync.Mutex
	asked   map[string]int // path -> size
	pending int
	idle    chan struct{}
	regens  int
}

func newFakeThumbs() *fakeThumbs {
	return &fakeThumbs{asked: make(map[string]int), idle: make(chan struct{})}
}

func (f *fakeThumbs) Thumbnail(path string, size int) image.Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked[path] = size
	return image.NewNRGBA(image.Rect(0, 0, size, size))
}

func (f *fakeThumbs) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

func (f *fakeThumbs) Idle() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.idle
}

func (f *fakeThumbs) setPending(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n == 0 && f.pending > 0 {
		close(f.idle)
	}
	if n > 0 && f.pending == 0 {
		f.idle = make(chan struct{})
	}
	f.pending = n
}

func (f *fakeThumbs) RegenerateAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regens++
	return nil
}

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if strings.HasSuffix(p, "/") {
			if err := os.MkdirAll(p, 0o755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func names(items []Item) []string {
	var l []string
	for _, it := range items {
		l = append(l, it.Name)
	}
	return l
}

func newModel(t *testing.T, opts Options) *Model {
	t.Helper()
	m, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	touch(t,
		filepath.Join(root, "b.obj"),
		filepath.Join(root, "a.FBX"),
		filepath.Join(root, "sub")+"/",
		filepath.Join(root, ".hidden")+"/",
		filepath.Join(root, ".cache.obj"),
		filepath.Join(root, "wood.png"),
		filepath.Join(root, "notes.txt"),
		filepath.Join(root, "fx.bgeo.sc"),
	)
	thumbs := newFakeThumbs()
	m := newModel(t, Options{Root: root, Thumbs: thumbs})

	items, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := names(items), []string{"a.FBX", "b.obj", "fx.bgeo.sc", "sub"}; !reflect.DeepEqual(got, want) {
		t.Errorf("items = %q; want %q", got, want)
	}
	for _, it := range items {
		switch it.Name {
		case "sub":
			if it.Kind != asset.KindDir || it.Thumb != nil {
				t.Errorf("sub = %v, thumb %v; want a directory without thumbnail", it.Kind, it.Thumb)
			}
		default:
			if it.Kind != asset.KindModel {
				t.Errorf("%s kind = %v; want model", it.Name, it.Kind)
			}
			if it.Thumb == nil || it.Thumb.Bounds().Dx() != 100 {
				t.Errorf("%s thumb = %v; want 100px", it.Name, it.Thumb)
			}
		}
	}

	m.SetShowTextures(true)
	m.ZoomIn()
	items, err = m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := names(items), []string{"a.FBX", "b.obj", "fx.bgeo.sc", "sub", "wood.png"}; !reflect.DeepEqual(got, want) {
		t.Errorf("with textures, items = %q; want %q", got, want)
	}
	if size := thumbs.asked[filepath.Join(root, "wood.png")]; size != 120 {
		t.Errorf("texture thumbnail size = %d; want 120", size)
	}
}

func TestPlaceholdersFallback(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.obj"))
	m := newModel(t, Options{Root: root})
	items, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Thumb == nil {
		t.Fatalf("items = %v; want one item with a placeholder", items)
	}
	if got := items[0].Thumb.Bounds().Dx(); got != 100 {
		t.Errorf("placeholder size = %d; want 100", got)
	}
	if _, err := m.Regenerate(); err != nil {
		t.Errorf("Regenerate without a cache: %v", err)
	}
}

func TestZoom(t *testing.T) {
	m := newModel(t, Options{Root: t.TempDir()})
	if m.Zoom() != 1 || m.ThumbSize() != 100 {
		t.Fatalf("initial zoom %v size %d", m.Zoom(), m.ThumbSize())
	}
	for i := 0; i < 10; i++ {
		m.ZoomIn()
	}
	if m.Zoom() != 2 || m.ThumbSize() != 200 {
		t.Errorf("max zoom %v size %d; want 2, 200", m.Zoom(), m.ThumbSize())
	}
	for i := 0; i < 10; i++ {
		m.ZoomOut()
	}
	if m.Zoom() != 0.4 || m.ThumbSize() != 40 {
		t.Errorf("min zoom %v size %d; want 0.4, 40", m.Zoom(), m.ThumbSize())
	}
	// Going back up from the minimum lands on exact steps.
	for i := 0; i < 3; i++ {
		m.ZoomIn()
	}
	if m.ThumbSize() != 100 {
		t.Errorf("size after 3 steps up = %d; want 100", m.ThumbSize())
	}
	m.ZoomIn()
	m.Fit()
	if m.ThumbSize() != 100 {
		t.Errorf("size after Fit = %d; want 100", m.ThumbSize())
	}
}

func TestColumns(t *testing.T) {
	m := newModel(t, Options{Root: t.TempDir()})
	tests := []struct {
		width int
		want  int
	}{
		{0, 1},
		{100, 1},
		{270, 2},
		{269, 1},
		{1000, 8},
	}
	for _, tt := range tests {
		if got := m.Columns(tt.width); got != tt.want {
			t.Errorf("Columns(%d) = %d; want %d", tt.width, got, tt.want)
		}
	}
	m.ZoomIn() // 120 + 20 per cell
	if got := m.Columns(1000); got != 6 {
		t.Errorf("Columns(1000) at 1.2 = %d; want 6", got)
	}
}

func TestNavigation(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "props", "crates")
	touch(t, sub+"/", filepath.Join(root, "file.obj"))
	m := newModel(t, Options{Root: root})

	if err := m.Open(sub); err != nil {
		t.Fatal(err)
	}
	if m.Dir() != sub {
		t.Fatalf("Dir = %q; want %q", m.Dir(), sub)
	}
	if !m.Up() || m.Dir() != filepath.Join(root, "props") {
		t.Errorf("after Up, Dir = %q", m.Dir())
	}
	if !m.Back() || m.Dir() != root {
		t.Errorf("after Back, Dir = %q", m.Dir())
	}
	if err := m.Open(filepath.Join(root, "file.obj")); !errors.Is(err, ErrNotDir) {
		t.Errorf("Open(file) = %v; want ErrNotDir", err)
	}
	if err := m.Open(filepath.Join(root, "missing")); err == nil {
		t.Error("Open(missing) succeeded")
	}
	if m.Dir() != root {
		t.Errorf("failed Open changed Dir to %q", m.Dir())
	}
	if err := m.Open(sub); err != nil {
		t.Fatal(err)
	}
	if err := m.Home(); err != nil || m.Dir() != root {
		t.Errorf("Home: %v, Dir = %q", err, m.Dir())
	}

	top := newModel(t, Options{Root: string(filepath.Separator)})
	if top.Up() {
		t.Errorf("Up from the filesystem root moved to %q", top.Dir())
	}
}

func TestFilter(t *testing.T) {
	items := []Item{{Name: "Crate_A.obj"}, {Name: "barrel.fbx"}, {Name: "crates"}}
	if got, want := names(Filter(items, "CRATE")), []string{"Crate_A.obj", "crates"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Filter = %q; want %q", got, want)
	}
	if got := Filter(items, "  "); len(got) != 3 {
		t.Errorf("blank filter kept %d items; want 3", len(got))
	}
	if got := Filter(items, "zzz"); len(got) != 0 {
		t.Errorf("Filter(zzz) = %q", names(got))
	}
}

func TestRegenerate(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.obj"))
	thumbs := newFakeThumbs()
	m := newModel(t, Options{Root: root, Thumbs: thumbs})
	items, err := m.Regenerate()
	if err != nil {
		t.Fatal(err)
	}
	if thumbs.regens != 1 || len(items) != 1 {
		t.Errorf("regens = %d, items = %d; want 1, 1", thumbs.regens, len(items))
	}
}

type fakeViewer struct{ viewed []string }

func (v *fakeViewer) View(path string) error {
	v.viewed = append(v.viewed, path)
	return nil
}

func TestImportAndView(t *testing.T) {
	var script bytes.Buffer
	v := new(fakeViewer)
	m := newModel(t, Options{
		Root:     t.TempDir(),
		Importer: &host.Importer{Graph: &host.ScriptGraph{W: &script}},
		Viewer:   v,
	})
	it := Item{Name: "a.obj", Path: "/assets/a.obj", Kind: asset.KindModel}
	n, err := m.Import(it)
	if err != nil {
		t.Fatal(err)
	}
	if n.Class() != host.ClassReadGeo || !strings.Contains(script.String(), "file /assets/a.obj") {
		t.Errorf("class %q, script %q", n.Class(), script.String())
	}
	if err := m.View(it); err != nil || !reflect.DeepEqual(v.viewed, []string{"/assets/a.obj"}) {
		t.Errorf("View: %v, viewed %q", err, v.viewed)
	}

	bare := newModel(t, Options{Root: t.TempDir()})
	if _, err := bare.Import(it); !errors.Is(err, ErrNoImporter) {
		t.Errorf("Import without importer = %v", err)
	}
	if err := bare.View(it); !errors.Is(err, ErrNoViewer) {
		t.Errorf("View without viewer = %v", err)
	}
}

func startWatch(t *testing.T, m *Model) <-chan struct{} {
	t.Helper()
	old := PollInterval
	PollInterval = 10 * time.Millisecond
	t.Cleanup(func() { PollInterval = old })

	refreshed := make(chan struct{}, 100)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Watch(ctx, func() { refreshed <- struct{}{} })
	}()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != context.Canceled {
			t.Errorf("Watch = %v; want context.Canceled", err)
		}
	})
	return refreshed
}

func expectRefresh(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("no refresh after %s", what)
	}
}

func TestWatchPending(t *testing.T) {
	thumbs := newFakeThumbs()
	thumbs.setPending(2)
	m := newModel(t, Options{Root: t.TempDir(), Thumbs: thumbs})
	refreshed := startWatch(t, m)

	time.Sleep(50 * time.Millisecond)
	select {
	case <-refreshed:
		t.Fatal("refreshed while generations are pending")
	default:
	}
	thumbs.setPending(0)
	expectRefresh(t, refreshed, "generations drained")

	time.Sleep(50 * time.Millisecond)
	select {
	case <-refreshed:
		t.Error("refreshed again with nothing pending")
	default:
	}

	thumbs.setPending(1)
	time.Sleep(50 * time.Millisecond)
	thumbs.setPending(0)
	expectRefresh(t, refreshed, "second batch drained")
}

func TestWatchDirectory(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	touch(t, sub+"/")
	m := newModel(t, Options{Root: root})
	refreshed := startWatch(t, m)
	time.Sleep(50 * time.Millisecond)

	touch(t, filepath.Join(root, "new.obj"))
	expectRefresh(t, refreshed, "creating a file")

	if err := m.Open(sub); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	for len(refreshed) > 0 {
		<-refreshed
	}
	touch(t, filepath.Join(sub, "other.obj"))
	expectRefresh(t, refreshed, "creating a file after Open")
}
