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

package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func equals(im1, im2 image.Image) bool {
	if im1.Bounds().Dx() != im2.Bounds().Dx() || im1.Bounds().Dy() != im2.Bounds().Dy() {
		return false
	}
	b1, b2 := im1.Bounds(), im2.Bounds()
	for y := 0; y < b1.Dy(); y++ {
		for x := 0; x < b1.Dx(); x++ {
			r1, g1, bl1, a1 := im1.At(b1.Min.X+x, b1.Min.Y+y).RGBA()
			r2, g2, bl2, a2 := im2.At(b2.Min.X+x, b2.Min.Y+y).RGBA()
			if !(r1 == r2 && g1 == g2 && bl1 == bl2 && a1 == a2) {
				return false
			}
		}
	}
	return true
}

// marker returns a 3x2 image with a distinct color per pixel:
//
//	R G B
//	W K Y
func marker() *image.NRGBA {
	im := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	im.Set(0, 0, color.NRGBA{255, 0, 0, 255})
	im.Set(1, 0, color.NRGBA{0, 255, 0, 255})
	im.Set(2, 0, color.NRGBA{0, 0, 255, 255})
	im.Set(0, 1, color.NRGBA{255, 255, 255, 255})
	im.Set(1, 1, color.NRGBA{0, 0, 0, 255})
	im.Set(2, 1, color.NRGBA{255, 255, 0, 255})
	return im
}

func encodePNG(t *testing.T, im image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, im); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRotate(t *testing.T) {
	src := marker()
	red := color.NRGBA{255, 0, 0, 255}
	tests := []struct {
		angle      int
		w, h       int
		redX, redY int
	}{
		{0, 3, 2, 0, 0},
		{90, 2, 3, 0, 2},
		{-90, 2, 3, 1, 0},
		{180, 3, 2, 2, 1},
		{-180, 3, 2, 2, 1},
	}
	for _, tt := range tests {
		got := rotate(src, tt.angle)
		if got.Bounds().Dx() != tt.w || got.Bounds().Dy() != tt.h {
			t.Errorf("rotate(%d) size = %v; want %dx%d", tt.angle, got.Bounds().Size(), tt.w, tt.h)
			continue
		}
		if c := color.NRGBAModel.Convert(got.At(tt.redX, tt.redY)); c != red {
			t.Errorf("rotate(%d) at (%d,%d) = %v; want red", tt.angle, tt.redX, tt.redY, c)
		}
	}
}

func TestRotateRoundTrip(t *testing.T) {
	src := marker()
	if !equals(src, rotate(rotate(src, 90), -90)) {
		t.Error("rotating 90 then -90 did not restore the image")
	}
	if !equals(src, rotate(rotate(src, 180), 180)) {
		t.Error("rotating 180 twice did not restore the image")
	}
}

func TestFlip(t *testing.T) {
	src := marker()
	h := flip(src, FlipHorizontal)
	if c := color.NRGBAModel.Convert(h.At(0, 0)); c != (color.NRGBA{0, 0, 255, 255}) {
		t.Errorf("horizontal flip (0,0) = %v; want blue", c)
	}
	v := flip(src, FlipVertical)
	if c := color.NRGBAModel.Convert(v.At(0, 0)); c != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("vertical flip (0,0) = %v; want white", c)
	}
	if !equals(flip(src, FlipVertical|FlipHorizontal), rotate(src, 180)) {
		t.Error("flipping both ways should equal a 180 rotation")
	}
	if flip(src, 0) != image.Image(src) {
		t.Error("flip with no direction should return its input")
	}
}

func TestForcedRotate(t *testing.T) {
	data := encodePNG(t, marker())
	im, conf, err := Decode(bytes.NewReader(data), &DecodeOpts{Rotate: 90})
	if err != nil {
		t.Fatal(err)
	}
	if !conf.Modified {
		t.Error("Modified = false after a forced rotation")
	}
	if conf.Width != 2 || conf.Height != 3 {
		t.Errorf("config size = %dx%d; want 2x3", conf.Width, conf.Height)
	}
	if !equals(im, rotate(marker(), 90)) {
		t.Error("decoded image does not match rotated source")
	}

	if _, _, err := Decode(bytes.NewReader(data), &DecodeOpts{Rotate: "90"}); err == nil {
		t.Error("expected an error for a non-int Rotate option")
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h         int
		maxW, maxH   int
		wantW, wantH int
	}{
		{512, 256, 100, 100, 100, 50},
		{256, 512, 100, 100, 50, 100},
		{64, 64, 256, 256, 256, 256},
		{1000, 1, 100, 100, 100, 1},
		{300, 200, 150, 200, 150, 100},
		{100, 100, 100, 100, 100, 100},
	}
	for _, tt := range tests {
		src := image.NewNRGBA(image.Rect(0, 0, tt.w, tt.h))
		got := Fit(src, tt.maxW, tt.maxH).Bounds()
		if got.Dx() != tt.wantW || got.Dy() != tt.wantH {
			t.Errorf("Fit(%dx%d, %d, %d) = %dx%d; want %dx%d", tt.w, tt.h, tt.maxW, tt.maxH, got.Dx(), got.Dy(), tt.wantW, tt.wantH)
		}
	}
}

func TestScaleKeepsColor(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	orange := color.NRGBA{230, 126, 34, 255}
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			src.Set(x, y, orange)
		}
	}
	got := Scale(src, 10)
	if got.Bounds().Dx() != 10 || got.Bounds().Dy() != 5 {
		t.Fatalf("Scale size = %v; want 10x5", got.Bounds().Size())
	}
	c := color.NRGBAModel.Convert(got.At(5, 2)).(color.NRGBA)
	if !near(c.R, orange.R) || !near(c.G, orange.G) || !near(c.B, orange.B) || !near(c.A, 255) {
		t.Errorf("center pixel = %v; want %v", c, orange)
	}
}

func near(a, b uint8) bool {
	d := int(a) - int(b)
	return d >= -2 && d <= 2
}

func TestDecodeMaxSize(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 400, 100))
	im, conf, err := Decode(bytes.NewReader(encodePNG(t, src)), &DecodeOpts{MaxWidth: 200, MaxHeight: 200})
	if err != nil {
		t.Fatal(err)
	}
	if conf.Format != "png" {
		t.Errorf("format = %q; want png", conf.Format)
	}
	if !conf.Modified {
		t.Error("Modified = false after a downscale")
	}
	if im.Bounds().Dx() != 200 || im.Bounds().Dy() != 50 {
		t.Errorf("decoded size = %v; want 200x50", im.Bounds().Size())
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrEmpty},
		{"glb", []byte("glTF\x02\x00\x00\x00 binary model payload"), ErrNotImage},
		{"ply", []byte("ply\nformat ascii 1.0\nend_header\n"), ErrNotImage},
		{"truncated png", encodePNG(t, marker())[:20], nil},
		{"garbage", []byte("definitely not pixels"), nil},
		{"exr", []byte("v/1\x01\x02\x00\x00\x00channels"), image.ErrFormat},
		// TGA carries no magic; it is only decoded by extension.
		{"unhinted tga", encodeTGA(4, 2, color.NRGBA{1, 2, 3, 255}), image.ErrFormat},
	}
	for _, tt := range tests {
		_, _, err := Decode(bytes.NewReader(tt.data), nil)
		if err == nil {
			t.Errorf("%s: Decode succeeded; want error", tt.name)
			continue
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v; want %v", tt.name, err, tt.want)
		}
	}
}

func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "albedo.png")
	if err := os.WriteFile(good, encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 64, 32))), 0644); err != nil {
		t.Fatal(err)
	}
	im, err := DecodeFile(good, 100)
	if err != nil {
		t.Fatal(err)
	}
	if im.Bounds().Dx() != 100 || im.Bounds().Dy() != 50 {
		t.Errorf("size = %v; want 100x50", im.Bounds().Size())
	}

	empty := filepath.Join(dir, "empty.png")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeFile(empty, 100); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty file: err = %v; want ErrEmpty", err)
	}
	if _, err := DecodeFile(filepath.Join(dir, "missing.png"), 100); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: err = %v; want not exist", err)
	}
}

// encodeTGA returns an uncompressed 24-bit top-left TGA filled with c.
func encodeTGA(w, h int, c color.NRGBA) []byte {
	hdr := []byte{0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		byte(w), byte(w >> 8), byte(h), byte(h >> 8), 24, 0x20}
	b := bytes.NewBuffer(hdr)
	for i := 0; i < w*h; i++ {
		b.Write([]byte{c.B, c.G, c.R})
	}
	return b.Bytes()
}

// encodeHDR returns a Radiance file of mid grey. w must be below 8 so
// that the scanlines are read as flat pixels.
func encodeHDR(w, h int) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "#?RADIANCE\nFORMAT=32-bit_rle_rgbe\n\n-Y %d +X %d\n", h, w)
	for i := 0; i < w*h; i++ {
		b.Write([]byte{128, 128, 128, 128})
	}
	return b.Bytes()
}

func TestDecodeTextureFormats(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		file   string
		data   []byte
		format string
	}{
		{"albedo.tga", encodeTGA(4, 2, color.NRGBA{200, 40, 10, 255}), "tga"},
		{"ALBEDO.TGA", encodeTGA(4, 2, color.NRGBA{200, 40, 10, 255}), "tga"},
		{"sky.hdr", encodeHDR(4, 2), "hdr"},
	}
	for _, tt := range tests {
		p := filepath.Join(dir, tt.file)
		if err := os.WriteFile(p, tt.data, 0644); err != nil {
			t.Fatal(err)
		}
		im, err := DecodeFile(p, 100)
		if err != nil {
			t.Errorf("%s: %v", tt.file, err)
			continue
		}
		if s := im.Bounds().Size(); s.X != 100 || s.Y != 50 {
			t.Errorf("%s: size = %v; want 100x50", tt.file, s)
		}
	}

	_, c, err := Decode(bytes.NewReader(encodeTGA(4, 2, color.NRGBA{200, 40, 10, 255})), &DecodeOpts{Hint: "image/x-tga"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Format != "tga" || c.Width != 4 || c.Height != 2 {
		t.Errorf("config = %+v; want 4x2 tga", c)
	}
	im, _, err := Decode(bytes.NewReader(encodeTGA(4, 2, color.NRGBA{200, 40, 10, 255})), &DecodeOpts{Hint: "image/x-tga"})
	if err != nil {
		t.Fatal(err)
	}
	got := color.NRGBAModel.Convert(im.At(1, 1)).(color.NRGBA)
	if got != (color.NRGBA{200, 40, 10, 255}) {
		t.Errorf("tga pixel = %v; want {200 40 10 255}", got)
	}

	_, c, err = Decode(bytes.NewReader(encodeHDR(4, 2)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Format != "hdr" {
		t.Errorf("hdr format = %q", c.Format)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "0123456789ab_128.png")
	if err := WriteFile(dst, marker()); err != nil {
		t.Fatal(err)
	}
	im, err := DecodeFile(dst, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !equals(im, marker()) {
		t.Error("round-tripped image differs")
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ents) != 1 {
		t.Errorf("directory has %d entries; want only the written file", len(ents))
	}
}
