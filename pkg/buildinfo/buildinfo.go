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

// Package buildinfo reports the version of the crate binaries.
package buildinfo // import "crate.dev/pkg/buildinfo"

import (
	"flag"
	"runtime"
	"runtime/debug"
	"strings"
)

// GitInfo is either the empty string (the default) or is set to the
// git hash of the most recent commit using the -X linker flag:
//
//	go install -ldflags="-X crate.dev/pkg/buildinfo.GitInfo=$(git rev-parse --short HEAD)" ./cmd/crate
var GitInfo string

// Version returns the git revision the binary was built from, or
// "unknown".
func Version() string {
	if GitInfo != "" {
		return GitInfo
	}
	if rev := vcsRevision(); rev != "" {
		return rev
	}
	return "unknown"
}

// vcsRevision returns the revision stamped by the go command, if any.
func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var rev, dirty string
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			if s.Value == "true" {
				dirty = "+"
			}
		}
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev == "" {
		return ""
	}
	return rev + dirty
}

// Summary returns the version and Go runtime, on one line.
func Summary() string {
	var sb strings.Builder
	sb.WriteString(Version())
	sb.WriteString(", Go ")
	sb.WriteString(runtime.Version())
	sb.WriteString(" ")
	sb.WriteString(runtime.GOOS + "/" + runtime.GOARCH)
	if testingLinked() {
		sb.WriteString(" (testing)")
	}
	return sb.String()
}

// testingLinked reports whether the "testing" package is linked into
// the binary.
func testingLinked() bool {
	return flag.Lookup("test.v") != nil
}
