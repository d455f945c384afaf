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

// Package placeholder draws the synthetic icons shown in place of a
// real preview: a solid square colored by file type, labeled with the
// file extension and an optional status line.
package placeholder // import "crate.dev/pkg/placeholder"

import (
	"image"
	"image/color"
	"image/draw"
	"log"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"crate.dev/pkg/asset"
)

// StatusGenerating annotates assets whose preview is being rendered.
const StatusGenerating = "generating..."

// Font sizes, in points, bounding the label at small and large
// thumbnail sizes.
const (
	minPoints = 8
	maxPoints = 14
)

var (
	colorAlembic = color.NRGBA{0xe6, 0x7e, 0x22, 0xff}
	colorMesh    = color.NRGBA{0xe7, 0x4c, 0x3c, 0xff}
	colorScan    = color.NRGBA{0x2e, 0xcc, 0x71, 0xff}
	colorGLTF    = color.NRGBA{0x34, 0x98, 0xdb, 0xff}
	colorCAD     = color.NRGBA{0x9b, 0x59, 0xb6, 0xff}
	colorScene   = color.NRGBA{0xf3, 0x9c, 0x12, 0xff}
	colorTexture = color.NRGBA{0xf1, 0xc4, 0x0f, 0xff}
	colorOther   = color.NRGBA{0x95, 0xa5, 0xa6, 0xff}
)

var extColor = map[string]color.NRGBA{
	".abc":  colorAlembic,
	".obj":  colorMesh,
	".fbx":  colorMesh,
	".stl":  colorScan,
	".ply":  colorScan,
	".gltf": colorGLTF,
	".glb":  colorGLTF,
	".step": colorCAD,
	".stp":  colorCAD,
	".iges": colorCAD,
	".igs":  colorCAD,
	".3ds":  colorScene,
	".dae":  colorScene,
	".usd":  colorScene,
	".usdc": colorScene,
}

// Color returns the fill color for files with extension ext.
func Color(ext string) color.NRGBA {
	ext = normExt(ext)
	if c, ok := extColor[ext]; ok {
		return c
	}
	if asset.IsTexture(ext) {
		return colorTexture
	}
	return colorOther
}

func normExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Label returns the text drawn on a placeholder.
func Label(ext, status string) string {
	text := strings.ToUpper(strings.ReplaceAll(ext, ".", ""))
	if status != "" {
		text += "\n(" + status + ")"
	}
	return text
}

// Points returns the label font size for a size×size placeholder.
func Points(size int) int {
	return min(max(size/10, minPoints), maxPoints)
}

var (
	fontOnce sync.Once
	goBold   *opentype.Font

	facesMu sync.Mutex
	faces   = map[int]font.Face{}
)

// face returns the bold face at the given point size, or nil if the
// embedded font could not be loaded.
func face(points int) font.Face {
	fontOnce.Do(func() {
		f, err := opentype.Parse(gobold.TTF)
		if err != nil {
			log.Printf("placeholder: parsing Go Bold: %v", err)
			return
		}
		goBold = f
	})
	if goBold == nil {
		return nil
	}
	facesMu.Lock()
	defer facesMu.Unlock()
	if f, ok := faces[points]; ok {
		return f
	}
	f, err := opentype.NewFace(goBold, &opentype.FaceOptions{
		Size:    float64(points),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		log.Printf("placeholder: creating %dpt face: %v", points, err)
		return nil
	}
	faces[points] = f
	return f
}

// New returns a size×size placeholder for files with extension ext
// (with or without the leading dot). A non-empty status is shown in
// parentheses under the extension. New never fails; sizes below one
// pixel are drawn as one pixel.
func New(ext string, size int, status string) *image.NRGBA {
	size = max(size, 1)
	im := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(im, im.Bounds(), image.NewUniform(Color(ext)), image.Point{}, draw.Src)

	ff := face(Points(size))
	if ff == nil {
		return im
	}
	text := Label(ext, status)
	if text == "" {
		return im
	}
	lines := strings.Split(text, "\n")
	// Font faces are not safe for concurrent use.
	facesMu.Lock()
	defer facesMu.Unlock()
	d := &font.Drawer{
		Dst:  im,
		Src:  image.White,
		Face: ff,
	}
	m := ff.Metrics()
	lineHeight := m.Height
	blockHeight := lineHeight * fixed.Int26_6(len(lines))
	y := (fixed.I(size)-blockHeight)/2 + m.Ascent
	for _, line := range lines {
		w := d.MeasureString(line)
		d.Dot = fixed.Point26_6{X: (fixed.I(size) - w) / 2, Y: y}
		d.DrawString(line)
		y += lineHeight
	}
	return im
}
