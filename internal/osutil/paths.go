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

// Package osutil locates the directories crate keeps its files in.
package osutil // import "crate.dev/internal/osutil"

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"go4.org/xdgdir"
)

// HomeDir returns the path to the user's home directory.
// It returns the empty string if the value isn't known.
func HomeDir() string {
	d, err := homedir.Dir()
	if err != nil {
		return ""
	}
	return d
}

// ConfigDir returns the directory holding crate's configuration file.
// $CRATE_CONFIG_DIR overrides the XDG default.
func ConfigDir() string {
	if d := os.Getenv("CRATE_CONFIG_DIR"); d != "" {
		return d
	}
	if d := xdgdir.Config.Path(); d != "" {
		return filepath.Join(d, "crate")
	}
	return filepath.Join(HomeDir(), ".config", "crate")
}

// localCacheDir is the per-user cache directory, used when neither the
// shared nor the temporary thumbnail directory is usable.
func localCacheDir() string {
	if d := xdgdir.Cache.Path(); d != "" {
		return filepath.Join(d, "crate", "thumbnails")
	}
	if h := HomeDir(); h != "" {
		return filepath.Join(h, ".crate_thumbnails")
	}
	return ""
}

// CacheDirs returns the thumbnail directory candidates, most preferred
// first: the shared directory ($CRATE_CACHE_DIR, else shared), a
// directory under the system temporary directory, and one under the
// user's home. Empty candidates are omitted.
func CacheDirs(shared string) []string {
	if d := os.Getenv("CRATE_CACHE_DIR"); d != "" {
		shared = d
	}
	var dirs []string
	for _, d := range []string{shared, filepath.Join(os.TempDir(), "crate_thumbnails"), localCacheDir()} {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// ErrNoCacheDir is returned by ResolveCacheDir when no candidate is usable.
var ErrNoCacheDir = errors.New("osutil: no writable thumbnail directory")

// ResolveCacheDir returns the first of dirs that exists or can be
// created, and passes a write probe. Rejected candidates are logged.
func ResolveCacheDir(dirs []string) (string, error) {
	for i, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			log.Printf("cache dir %s unusable: %v", d, err)
			continue
		}
		if err := WriteProbe(d); err != nil {
			log.Printf("cache dir %s not writable: %v", d, err)
			continue
		}
		if i > 0 {
			log.Printf("using fallback cache dir %s", d)
		}
		return d, nil
	}
	return "", ErrNoCacheDir
}

// WriteProbe checks that files can be created and removed in dir.
func WriteProbe(dir string) error {
	f, err := os.CreateTemp(dir, "test_write-*.tmp")
	if err != nil {
		return err
	}
	name := f.Name()
	_, werr := f.WriteString("test")
	cerr := f.Close()
	rerr := os.Remove(name)
	return errors.Join(werr, cerr, rerr)
}

// ScratchDir returns the local directory for staging copies and
// renderer output, creating it if needed. $CRATE_SCRATCH_DIR overrides
// the default under the system temporary directory.
func ScratchDir() (string, error) {
	d := os.Getenv("CRATE_SCRATCH_DIR")
	if d == "" {
		d = filepath.Join(os.TempDir(), "crate_scratch")
	}
	if err := os.MkdirAll(d, 0700); err != nil {
		return "", fmt.Errorf("creating scratch dir: %w", err)
	}
	return d, nil
}
