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

// Package browser holds the state of the asset browser panel: the
// current directory, its listing with thumbnails, zoom and filtering.
// It has no widgets; a front end renders Items and calls the
// navigation methods.
package browser // import "crate.dev/pkg/browser"

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"crate.dev/pkg/asset"
	"crate.dev/pkg/host"
	"crate.dev/pkg/placeholder"
)

// Zoom is kept in tenths so that repeated steps land on exact values.
const (
	zoomDefault = 10
	zoomStep    = 2
	zoomMin     = 4
	zoomMax     = 20
)

// A Thumbnailer returns a thumbnail for an asset. It must never return
// nil and must not block on generation.
type Thumbnailer interface {
	Thumbnail(path string, size int) image.Image
	// Pending returns the number of thumbnails being generated.
	Pending() int
}

// An Idler is a Thumbnailer that can signal when generation drains.
type Idler interface {
	Idle() <-chan struct{}
}

// A Regenerator is a Thumbnailer that can discard its cached thumbnails.
type Regenerator interface {
	RegenerateAll() error
}

// A Viewer opens an asset in an interactive viewer.
type Viewer interface {
	View(path string) error
}

// Placeholders is a Thumbnailer that only draws placeholders. It is
// used when the thumbnail cache could not be started.
type Placeholders struct{}

func (Placeholders) Thumbnail(path string, size int) image.Image {
	return placeholder.New(asset.Ext(path), size, "")
}

func (Placeholders) Pending() int { return 0 }

var (
	ErrNoImporter = errors.New("browser: no host importer")
	ErrNoViewer   = errors.New("browser: no viewer")
	ErrNotDir     = errors.New("browser: not a directory")
)

// An Item is one entry of a listing.
type Item struct {
	Name  string
	Path  string
	Kind  asset.Kind
	Thumb image.Image // nil for directories
}

// Options configure a Model.
type Options struct {
	// Root is the asset root, the Home directory. Required.
	Root string
	// Thumbs provides thumbnails. Nil means Placeholders.
	Thumbs       Thumbnailer
	ShowTextures bool
	// Importer and Viewer are optional.
	Importer *host.Importer
	Viewer   Viewer
}

// Model is the browser state. It is safe for concurrent use.
type Model struct {
	root     string
	thumbs   Thumbnailer
	importer *host.Importer
	viewer   Viewer

	// changed receives a value when the current directory changes.
	changed chan struct{}

	mu           sync.Mutex
	dir          string
	zoom         int // tenths
	showTextures bool
}

// New returns a Model showing opts.Root.
func New(opts Options) (*Model, error) {
	if opts.Root == "" {
		return nil, errors.New("browser: no asset root")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	thumbs := opts.Thumbs
	if thumbs == nil {
		thumbs = Placeholders{}
	}
	return &Model{
		root:         root,
		thumbs:       thumbs,
		importer:     opts.Importer,
		viewer:       opts.Viewer,
		changed:      make(chan struct{}, 1),
		dir:          root,
		zoom:         zoomDefault,
		showTextures: opts.ShowTextures,
	}, nil
}

// Root returns the asset root.
func (m *Model) Root() string { return m.root }

// Dir returns the directory being shown.
func (m *Model) Dir() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dir
}

// Zoom returns the zoom factor, between 0.4 and 2.
func (m *Model) Zoom() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.zoom) / 10
}

// ThumbSize returns the edge length of thumbnails at the current zoom.
func (m *Model) ThumbSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.zoom * 10
}

// Columns returns how many thumbnails fit in a row of the given pixel
// width, at least one.
func (m *Model) Columns(width int) int {
	cell := m.ThumbSize() + 20
	return max(1, (width-30)/cell)
}

func (m *Model) setZoom(z int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zoom = min(zoomMax, max(zoomMin, z))
}

func (m *Model) ZoomIn()  { m.setZoom(m.zoomTenths() + zoomStep) }
func (m *Model) ZoomOut() { m.setZoom(m.zoomTenths() - zoomStep) }

// Fit resets the zoom to 1.
func (m *Model) Fit() { m.setZoom(zoomDefault) }

func (m *Model) zoomTenths() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.zoom
}

// ShowTextures reports whether textures are listed.
func (m *Model) ShowTextures() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.showTextures
}

// SetShowTextures sets whether textures are listed.
func (m *Model) SetShowTextures(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.showTextures = v
}

// Load lists the current directory sorted by name. Entries starting
// with a dot are skipped. Directories and models are always listed,
// textures only when ShowTextures is set. Thumbnails are requested at
// ThumbSize; models not yet generated get a placeholder and start
// generating.
func (m *Model) Load() ([]Item, error) {
	m.mu.Lock()
	dir, size, textures := m.dir, m.zoom*10, m.showTextures
	m.mu.Unlock()

	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var items []Item
	for _, de := range ents {
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		p := filepath.Join(dir, name)
		kind := asset.KindOf(name)
		if isDir(de, p) {
			kind = asset.KindDir
		}
		switch {
		case kind == asset.KindDir:
			items = append(items, Item{Name: name, Path: p, Kind: kind})
			continue
		case kind == asset.KindModel:
		case kind == asset.KindTexture && textures:
		default:
			continue
		}
		items = append(items, Item{Name: name, Path: p, Kind: kind, Thumb: m.thumbs.Thumbnail(p, size)})
	}
	return items, nil
}

// isDir reports whether de is a directory, following symlinks.
func isDir(de os.DirEntry, path string) bool {
	if de.IsDir() {
		return true
	}
	if de.Type()&os.ModeSymlink == 0 {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// Open makes dir the current directory.
func (m *Model) Open(dir string) error {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return ErrNotDir
	}
	m.mu.Lock()
	old := m.dir
	m.dir = dir
	m.mu.Unlock()
	if old != dir {
		select {
		case m.changed <- struct{}{}:
		default:
		}
	}
	return nil
}

// Up moves to the parent directory if it exists. It reports whether
// the directory changed.
func (m *Model) Up() bool {
	parent := filepath.Dir(m.Dir())
	if parent == m.Dir() {
		return false
	}
	return m.Open(parent) == nil
}

// Back is the same as Up.
func (m *Model) Back() bool { return m.Up() }

// Home returns to the asset root.
func (m *Model) Home() error { return m.Open(m.root) }

// Filter returns the items whose name contains text, ignoring case.
// An empty text matches everything.
func Filter(items []Item, text string) []Item {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return items
	}
	var out []Item
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Name), text) {
			out = append(out, it)
		}
	}
	return out
}

// Regenerate discards all cached thumbnails and reloads the listing.
func (m *Model) Regenerate() ([]Item, error) {
	if r, ok := m.thumbs.(Regenerator); ok {
		if err := r.RegenerateAll(); err != nil {
			return nil, err
		}
	}
	return m.Load()
}

// Import creates a read node for it in the host application.
func (m *Model) Import(it Item) (host.Node, error) {
	if m.importer == nil {
		return nil, ErrNoImporter
	}
	return m.importer.Import(it.Path)
}

// View opens it in the interactive viewer.
func (m *Model) View(it Item) error {
	if m.viewer == nil {
		return ErrNoViewer
	}
	return m.viewer.View(it.Path)
}
