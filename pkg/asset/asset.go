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

// Package asset names and classifies the files shown by the browser:
// 3D models, texture images and directories. It also derives the
// stable path hash that keys every cached thumbnail.
package asset // import "crate.dev/pkg/asset"

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// A Kind is the browser's category for a directory entry.
type Kind int

const (
	KindOther Kind = iota
	KindDir
	KindModel
	KindTexture
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindModel:
		return "model"
	case KindTexture:
		return "texture"
	}
	return "other"
}

// modelExts are the extensions listed as 3D models.
var modelExts = setOf(
	".obj", ".fbx", ".stl", ".ply", ".dae", ".3ds", ".abc", ".usd", ".usda", ".usdc", ".usdz",
	".gltf", ".glb", ".step", ".stp", ".iges", ".igs", ".x3d", ".wrl", ".bgeo", ".bgeo.sc",
	".blend", ".lxo", ".c4d", ".ma", ".mb", ".ifc", ".skp", ".vrml", ".ac", ".ase", ".dxf",
	".spz", ".splat",
)

// renderableExts are the model formats handed to the external renderer
// for a preview.
var renderableExts = setOf(
	".obj", ".fbx", ".stl", ".ply", ".gltf", ".glb", ".abc", ".usd", ".usdc", ".splat",
)

var textureExts = setOf(
	".exr", ".png", ".jpg", ".jpeg", ".tga", ".tif", ".tiff", ".hdr",
)

func setOf(exts ...string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m[e] = true
	}
	return m
}

// Ext returns the lowercased extension of path, including the dot.
// Compound extensions such as ".bgeo.sc" are returned whole.
func Ext(path string) string {
	base := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(base, ".bgeo.sc") && base != ".bgeo.sc" {
		return ".bgeo.sc"
	}
	return filepath.Ext(base)
}

// IsModel reports whether ext (as returned by Ext) is a listed 3D model format.
func IsModel(ext string) bool { return modelExts[ext] }

// IsTexture reports whether ext is a texture image format.
func IsTexture(ext string) bool { return textureExts[ext] }

// Renderable reports whether the external renderer is asked to
// preview files with extension ext.
func Renderable(ext string) bool { return renderableExts[ext] }

// KindOf classifies a file by name only. Use Stat to tell directories apart.
func KindOf(path string) Kind {
	ext := Ext(path)
	switch {
	case IsModel(ext):
		return KindModel
	case IsTexture(ext):
		return KindTexture
	}
	return KindOther
}

// Stat classifies path, looking at the filesystem for directories.
func Stat(path string) (Kind, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return KindOther, err
	}
	if fi.IsDir() {
		return KindDir, nil
	}
	return KindOf(path), nil
}

// HashLen is the number of hex characters kept from the path digest.
const HashLen = 12

// Hash returns the short, stable hash identifying path in the
// thumbnail cache. The path is made absolute with filepath.Abs and
// its backslashes are then replaced by slashes. On Windows, where
// both are separators, "L:\3D\a.obj" and "L:/3D/a.obj" therefore
// share one cache entry. Elsewhere a backslash is an ordinary file
// name character, so the two spellings name different files.
func Hash(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = strings.ReplaceAll(path, `\`, "/")
	sum := md5.Sum([]byte(path))
	return hex.EncodeToString(sum[:])[:HashLen]
}

// Key returns the memory cache key for hash at size pixels.
func Key(hash string, size int) string {
	return hash + "_" + strconv.Itoa(size)
}

// FileName returns the name of the persisted thumbnail for hash at a
// base size.
func FileName(hash string, size int) string {
	return Key(hash, size) + ".png"
}

// ParseFileName is the inverse of FileName. It reports false for any
// name not produced by FileName.
func ParseFileName(name string) (hash string, size int, ok bool) {
	stem, found := strings.CutSuffix(name, ".png")
	if !found || len(stem) < HashLen+2 || stem[HashLen] != '_' {
		return "", 0, false
	}
	hash = stem[:HashLen]
	for _, c := range hash {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return "", 0, false
		}
	}
	size, err := strconv.Atoi(stem[HashLen+1:])
	if err != nil || size <= 0 {
		return "", 0, false
	}
	return hash, size, true
}

// IsNetworkPath reports whether path lives on network storage: a UNC
// path, or one under any of the given prefixes (e.g. a mapped drive
// "L:/"). Comparison ignores case and separator style.
func IsNetworkPath(path string, prefixes []string) bool {
	p := strings.ReplaceAll(path, `\`, "/")
	if strings.HasPrefix(p, "//") {
		return true
	}
	lp := strings.ToLower(p)
	for _, pre := range prefixes {
		pre = strings.ToLower(strings.ReplaceAll(pre, `\`, "/"))
		if pre != "" && strings.HasPrefix(lp, pre) {
			return true
		}
	}
	return false
}
