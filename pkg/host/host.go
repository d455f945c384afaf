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

// Package host creates read nodes for assets in the node graph of the
// compositing application crate runs inside.
//
// The application's API is reached through the Graph interface.
// ScriptGraph implements it by writing node definitions in the
// application's script syntax, which the application can paste or
// source.
package host // import "crate.dev/pkg/host"

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"crate.dev/pkg/asset"
)

// Node classes created by an Importer.
const (
	ClassReadGeo = "ReadGeo2"
	ClassRead    = "Read"
)

// ErrUnsupported is returned when importing a file that is neither a
// model nor a texture.
var ErrUnsupported = errors.New("host: unsupported file type")

// A Knob is a named node parameter.
type Knob struct {
	Name  string
	Value any // string, bool, int or float64
}

// Node is a node created in a Graph.
type Node interface {
	Class() string
	SetPosition(x, y int) error
}

// Graph is the application's node graph.
type Graph interface {
	CreateNode(class string, knobs []Knob) (Node, error)
	// RootSize returns the project format, used to place new nodes.
	RootSize() (width, height int)
}

// An Importer creates read nodes for assets.
type Importer struct {
	Graph Graph
}

// Import creates the read node suited to the file at path: a geometry
// reader for models, an image reader for textures. The node is placed
// at the center of the project format.
func (im *Importer) Import(path string) (Node, error) {
	ext := asset.Ext(path)
	switch {
	case asset.IsModel(ext):
		return im.create(ClassReadGeo, GeoKnobs(path))
	case asset.IsTexture(ext):
		return im.create(ClassRead, ImageKnobs(path))
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
}

func (im *Importer) create(class string, knobs []Knob) (Node, error) {
	n, err := im.Graph.CreateNode(class, knobs)
	if err != nil {
		return nil, fmt.Errorf("host: creating %s node: %w", class, err)
	}
	w, h := im.Graph.RootSize()
	if err := n.SetPosition(w/2, h/2); err != nil {
		return nil, err
	}
	return n, nil
}

// NodePath returns path as the application expects it: with forward
// slashes only.
func NodePath(path string) string {
	return strings.ReplaceAll(path, `\`, "/")
}

// GeoKnobs returns the knobs of a geometry read node for a model:
// textured display, reloaded on each frame, with localization on.
func GeoKnobs(path string) []Knob {
	return []Knob{
		{"file", NodePath(path)},
		{"display", "textured"},
		{"localizationPolicy", "on"},
		{"read_on_each_frame", true},
	}
}

// ImageKnobs returns the knobs of an image read node for a texture.
func ImageKnobs(path string) []Knob {
	return []Knob{
		{"file", NodePath(path)},
	}
}
