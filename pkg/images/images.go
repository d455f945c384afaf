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

// Package images decodes texture files and rendered previews, and
// scales them to thumbnail sizes.
package images // import "crate.dev/pkg/images"

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/nf/cr2"
	"github.com/rwcarlsen/goexif/exif"
	"go4.org/syncutil"
	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"crate.dev/internal/magic"
)

var (
	// ErrNotImage is returned when the data is recognised as something
	// other than an image, e.g. a model file saved with a texture extension.
	ErrNotImage = errors.New("images: not an image")

	// ErrEmpty is returned for zero-length files, such as a preview
	// caught while its writer is still creating it.
	ErrEmpty = errors.New("images: empty file")
)

// A codec decodes one image format.
type codec struct {
	name   string
	decode func(io.Reader) (image.Image, error)
	config func(io.Reader) (image.Config, error)
}

// codecs are the decoders by sniffed MIME type. The format is always
// chosen here, never by image.Decode: TGA has no magic number and its
// registered decoder would claim any input.
var codecs = map[string]codec{
	"image/png":          {"png", png.Decode, png.DecodeConfig},
	"image/jpeg":         {"jpeg", jpeg.Decode, jpeg.DecodeConfig},
	"image/gif":          {"gif", gif.Decode, gif.DecodeConfig},
	"image/bmp":          {"bmp", bmp.Decode, bmp.DecodeConfig},
	"image/tiff":         {"tiff", tiff.Decode, tiff.DecodeConfig},
	"image/webp":         {"webp", webp.Decode, webp.DecodeConfig},
	"image/x-canon-cr2":  {"cr2", cr2.Decode, cr2.DecodeConfig},
	"image/vnd.radiance": {"hdr", rgbe.Decode, rgbe.DecodeConfig},
	"image/x-tga":        {"tga", tga.Decode, tga.DecodeConfig},
}

// hintByExt is the MIME type assumed for files whose header does not
// identify them.
var hintByExt = map[string]string{
	".tga": "image/x-tga",
}

// headerSize is how much of the input is buffered to sniff the format,
// read the image dimensions and the EXIF block.
const headerSize = 2 << 20

// Gate the number of concurrent full-size decodes to limit RAM use.
// This is the maximum number of bytes of uncompressed pixel data
// allocated at once.
const maxDecodeBytes = 256 << 20

var decodeSem = syncutil.NewSem(maxDecodeBytes)

// The FlipDirection type is used by the Flip option in DecodeOpts
// to indicate in which direction to flip an image.
type FlipDirection int

// FlipVertical and FlipHorizontal are two possible FlipDirections
// values to indicate in which direction an image will be flipped.
const (
	FlipVertical FlipDirection = 1 << iota
	FlipHorizontal
)

type DecodeOpts struct {
	// Rotate specifies how to rotate the image, in degrees counter
	// clockwise: one of 0, 90, -90, 180 or -180.
	// If nil, the image is rotated automatically based on EXIF metadata.
	Rotate any

	// Flip specifies how to flip the image.
	// If nil, the image is flipped automatically based on EXIF metadata.
	Flip any

	// MaxWidth and MaxHeight optionally bound the final image's
	// size. The aspect ratio is kept.
	MaxWidth, MaxHeight int

	// Hint is the MIME type to assume when the header is not
	// recognised, typically derived from the file extension.
	Hint string
}

func (opts *DecodeOpts) hint() string {
	if opts == nil {
		return ""
	}
	return opts.Hint
}

// Config is like the standard library's image.Config as used by DecodeConfig.
type Config struct {
	Width, Height int
	Format        string
	Modified      bool // true if Decode rotated, flipped or scaled the image.
}

func (c *Config) setBounds(im image.Image) {
	if im != nil {
		c.Width = im.Bounds().Dx()
		c.Height = im.Bounds().Dy()
	}
}

func (opts *DecodeOpts) forcedRotate() bool {
	return opts != nil && opts.Rotate != nil
}

func (opts *DecodeOpts) forcedFlip() bool {
	return opts != nil && opts.Flip != nil
}

func (opts *DecodeOpts) useEXIF() bool {
	return !(opts.forcedRotate() || opts.forcedFlip())
}

func imageDebug(msg string) {
	if os.Getenv("CRATE_DEBUG_IMAGES") != "" {
		log.Print(msg)
	}
}

// Decode decodes an image from r using the provided decoding options.
// If opts is nil, the defaults are used.
func Decode(r io.Reader, opts *DecodeOpts) (image.Image, Config, error) {
	var c Config
	var hdr bytes.Buffer
	if _, err := io.CopyN(&hdr, r, headerSize); err != nil && err != io.EOF {
		return nil, c, err
	}
	if hdr.Len() == 0 {
		return nil, c, ErrEmpty
	}
	head := hdr.Bytes()
	mime := magic.MIMEType(head)
	cd, ok := codecs[mime]
	if !ok && opts.hint() != "" && (mime == "" || magic.IsImage(mime)) {
		cd, ok = codecs[opts.hint()]
	}
	if !ok {
		if mime != "" && !magic.IsImage(mime) {
			return nil, c, fmt.Errorf("%w (%s)", ErrNotImage, mime)
		}
		if mime == "" {
			mime = "unrecognized data"
		}
		return nil, c, fmt.Errorf("images: %w (%s)", image.ErrFormat, mime)
	}
	format := cd.name

	conf, err := cd.config(bytes.NewReader(head))
	if err != nil {
		return nil, c, err
	}
	// Estimate of the memory needed to hold the decoded pixels.
	ramSize := int64(conf.Width) * int64(conf.Height) * 4
	if err := decodeSem.Acquire(ramSize); err != nil {
		return nil, c, fmt.Errorf("images: %dx%d %s image too large to decode: %v", conf.Width, conf.Height, format, err)
	}
	defer decodeSem.Release(ramSize)

	angle, flipMode, err := orientation(head, format, opts)
	if err != nil {
		return nil, c, err
	}

	im, err := cd.decode(io.MultiReader(bytes.NewReader(head), r))
	if err != nil {
		return nil, c, err
	}
	c.Format = format
	if angle != 0 || flipMode != 0 {
		im = flip(rotate(im, angle), flipMode)
		c.Modified = true
	}
	if opts != nil && (opts.MaxWidth > 0 || opts.MaxHeight > 0) {
		mw, mh := opts.MaxWidth, opts.MaxHeight
		if mw <= 0 {
			mw = im.Bounds().Dx()
		}
		if mh <= 0 {
			mh = im.Bounds().Dy()
		}
		b := im.Bounds()
		if b.Dx() > mw || b.Dy() > mh {
			im = Fit(im, mw, mh)
			c.Modified = true
		}
	}
	c.setBounds(im)
	return im, c, nil
}

// orientation returns the rotation and flip to apply, either forced by
// opts or read from the EXIF Orientation tag of a JPEG header.
func orientation(head []byte, format string, opts *DecodeOpts) (angle int, flipMode FlipDirection, err error) {
	if !opts.useEXIF() {
		if opts.forcedRotate() {
			var ok bool
			angle, ok = opts.Rotate.(int)
			if !ok {
				return 0, 0, fmt.Errorf("Rotate should be an int, not a %T", opts.Rotate)
			}
		}
		if opts.forcedFlip() {
			var ok bool
			flipMode, ok = opts.Flip.(FlipDirection)
			if !ok {
				return 0, 0, fmt.Errorf("Flip should be a FlipDirection, not a %T", opts.Flip)
			}
		}
		return angle, flipMode, nil
	}
	if format != "jpeg" {
		return 0, 0, nil
	}
	ex, err := exif.Decode(bytes.NewReader(head))
	if err != nil {
		imageDebug("No valid EXIF; will not rotate or flip.")
		return 0, 0, nil
	}
	tag, err := ex.Get(exif.Orientation)
	if err != nil {
		imageDebug("No \"Orientation\" tag in EXIF; will not rotate or flip.")
		return 0, 0, nil
	}
	orient, err := tag.Int(0)
	if err != nil {
		return 0, 0, nil
	}
	switch orient {
	case 2:
		flipMode = FlipHorizontal
	case 3:
		angle = 180
	case 4:
		angle = 180
		flipMode = FlipHorizontal
	case 5:
		angle = -90
		flipMode = FlipHorizontal
	case 6:
		angle = -90
	case 7:
		angle = 90
		flipMode = FlipHorizontal
	case 8:
		angle = 90
	}
	return angle, flipMode, nil
}

func rotate(im image.Image, angle int) image.Image {
	b := im.Bounds()
	w, h := b.Dx(), b.Dy()
	var rotated *image.NRGBA
	// trigonometric (i.e counter clock-wise)
	switch angle {
	case 90:
		rotated = image.NewNRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < w; y++ {
			for x := 0; x < h; x++ {
				rotated.Set(x, y, im.At(b.Min.X+w-1-y, b.Min.Y+x))
			}
		}
	case -90:
		rotated = image.NewNRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < w; y++ {
			for x := 0; x < h; x++ {
				rotated.Set(x, y, im.At(b.Min.X+y, b.Min.Y+h-1-x))
			}
		}
	case 180, -180:
		rotated = image.NewNRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				rotated.Set(x, y, im.At(b.Min.X+w-1-x, b.Min.Y+h-1-y))
			}
		}
	default:
		return im
	}
	return rotated
}

// flip returns a copy of im flipped according to the direction(s) in dir.
func flip(im image.Image, dir FlipDirection) image.Image {
	if dir == 0 {
		return im
	}
	b := im.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sx, sy := x, y
			if dir&FlipHorizontal != 0 {
				sx = w - 1 - x
			}
			if dir&FlipVertical != 0 {
				sy = h - 1 - y
			}
			out.Set(x, y, im.At(b.Min.X+sx, b.Min.Y+sy))
		}
	}
	return out
}

// Scale returns im fitted into a size×size box, keeping its aspect
// ratio. The longer side of the result is exactly size pixels.
func Scale(im image.Image, size int) image.Image {
	return Fit(im, size, size)
}

// Fit returns im scaled with a Catmull-Rom filter so that it fits
// maxW×maxH while touching at least one of the bounds. Neither side
// of the result is ever zero.
func Fit(im image.Image, maxW, maxH int) image.Image {
	b := im.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 || maxW <= 0 || maxH <= 0 {
		return im
	}
	var nw, nh int
	if w*maxH >= h*maxW {
		nw = maxW
		nh = (h*maxW + w/2) / w
	} else {
		nh = maxH
		nw = (w*maxH + h/2) / h
	}
	nw, nh = max(nw, 1), max(nh, 1)
	if nw == w && nh == h {
		return im
	}
	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), im, b, draw.Src, nil)
	return dst
}

// DecodeFile decodes the image at path and, if size is positive,
// scales it to fit a size×size box.
func DecodeFile(path string, size int) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	im, _, err := Decode(f, &DecodeOpts{Hint: hintByExt[strings.ToLower(filepath.Ext(path))]})
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	if size > 0 {
		im = Scale(im, size)
	}
	return im, nil
}

// WriteFile encodes im as PNG to path. The data goes to a temporary
// file in the same directory first and is renamed into place, so
// readers never see a partially written file from this process.
func WriteFile(path string, im image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.png")
	if err != nil {
		return err
	}
	if err := png.Encode(tmp, im); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
