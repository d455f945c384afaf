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

// Package magic implements MIME type sniffing of texture and model
// files based on the well-known "magic" number prefixes in the file.
package magic // import "crate.dev/internal/magic"

import (
	"bytes"
	"net/http"
	"strings"
)

// A matchEntry contains rules for matching byte prefix (typically 1KB)
// and, on a match, contains the resulting MIME type.
// A matcher is either a function or an (offset+prefix).
type matchEntry struct {
	// fn specifies a matching function. If set, offset & prefix
	// are not used.
	fn func(prefix []byte) bool

	// offset is how many bytes of the input 1KB to ignore before
	// matching the prefix.
	offset int

	// prefix is the prefix to look for at offset.
	prefix []byte

	// mtype is the resulting MIME type, on a match.
	mtype string
}

// matchTable is a list of matchers to match prefixes against. The
// first matching one wins.
var matchTable = []matchEntry{
	{prefix: []byte{137, 'P', 'N', 'G', '\r', '\n', 26, 10}, mtype: "image/png"},
	{prefix: []byte("\xff\xd8\xff"), mtype: "image/jpeg"},
	{prefix: []byte("GIF87a"), mtype: "image/gif"},
	{prefix: []byte("GIF89a"), mtype: "image/gif"},
	{prefix: []byte("II\x2a\000\x10\000\000\000CR"), mtype: "image/x-canon-cr2"},
	{prefix: []byte{0x49, 0x49, 0x2A, 0}, mtype: "image/tiff"},
	{prefix: []byte{0x4D, 0x4D, 0, 0x2A}, mtype: "image/tiff"},
	{prefix: []byte{0x4D, 0x4D, 0, 0x2B}, mtype: "image/tiff"},
	{prefix: []byte("BM"), mtype: "image/bmp"},
	{offset: 8, prefix: []byte("WEBP"), mtype: "image/webp"},
	{prefix: []byte{0x76, 0x2F, 0x31, 0x01}, mtype: "image/x-exr"},
	{prefix: []byte("#?RADIANCE"), mtype: "image/vnd.radiance"},
	{prefix: []byte("#?RGBE"), mtype: "image/vnd.radiance"},
	{prefix: []byte("8BPS"), mtype: "image/vnd.adobe.photoshop"},

	{prefix: []byte("glTF"), mtype: "model/gltf-binary"},
	{prefix: []byte("Kaydara FBX Binary"), mtype: "application/vnd.autodesk.fbx"},
	{prefix: []byte("ply\n"), mtype: "model/x-ply"},
	{prefix: []byte("ply\r\n"), mtype: "model/x-ply"},
	{prefix: []byte("Ogawa"), mtype: "application/x-alembic"},
	{prefix: []byte("PXR-USDC"), mtype: "model/vnd.usd"},
	{prefix: []byte("#usda "), mtype: "model/vnd.usda"},
	{fn: isASCIISTL, mtype: "model/stl"},
}

// MIMEType returns the MIME type from the data in the provided header
// of the data.
// It returns the empty string if the MIME type can't be determined.
func MIMEType(hdr []byte) string {
	hlen := len(hdr)
	for _, pte := range matchTable {
		if pte.fn != nil {
			if pte.fn(hdr) {
				return pte.mtype
			}
			continue
		}
		plen := pte.offset + len(pte.prefix)
		if hlen >= plen && bytes.Equal(hdr[pte.offset:plen], pte.prefix) {
			return pte.mtype
		}
	}
	t := http.DetectContentType(hdr)
	t = strings.Replace(t, "; charset=utf-8", "", 1)
	if t != "application/octet-stream" && t != "text/plain" {
		return t
	}
	return ""
}

// IsImage reports whether mime is an image type.
func IsImage(mime string) bool {
	return strings.HasPrefix(mime, "image/")
}

// isASCIISTL reports whether prefix looks like an ASCII STL file:
// "solid <name>" followed by a "facet" record.
// Binary STL files carry no magic at all.
func isASCIISTL(prefix []byte) bool {
	if !bytes.HasPrefix(prefix, []byte("solid")) {
		return false
	}
	return bytes.Contains(prefix, []byte("facet"))
}
