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

// The crate command browses 3D assets and manages their thumbnail
// cache.
//
// Usage:
//
//	crate [globalopts] <mode> [commandopts] [commandargs]
//
// Run "crate -help" for the list of modes.
package main // import "crate.dev/cmd/crate"

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"crate.dev/internal/osutil"
	"crate.dev/pkg/browser"
	"crate.dev/pkg/cmdmain"
	"crate.dev/pkg/config"
	"crate.dev/pkg/thumbcache"
	"crate.dev/pkg/thumbmeta"
)

var flagConfig = flag.String("config", "", "configuration file; defaults to $CRATE_CONFIG or crate.json in the config directory")

func main() {
	cmdmain.Main()
}

// A session holds what the modes share: the configuration and, once
// opened, the thumbnail cache and its index.
type session struct {
	conf  *config.Config
	cache *thumbcache.Cache
	index *thumbmeta.Index
}

func newSession() (*session, error) {
	conf, err := config.Load(*flagConfig)
	if err != nil {
		return nil, err
	}
	conf.LogProblems()
	if conf.Path != "" {
		cmdmain.Logf("using config %s", conf.Path)
	}
	return &session{conf: conf}, nil
}

// openCache opens the thumbnail cache, and the index when enabled.
func (s *session) openCache() error {
	if s.cache != nil {
		return nil
	}
	scratch, err := osutil.ScratchDir()
	if err != nil {
		return err
	}
	if s.conf.Index {
		ix, err := thumbmeta.Open(filepath.Join(scratch, "index"))
		if err != nil {
			// Thumbnails still work without the index.
			log.Printf("thumbnail index unavailable: %v", err)
		} else {
			s.index = ix
		}
	}
	var dirs []string
	if s.conf.CacheDir != "" {
		dirs = osutil.CacheDirs(s.conf.CacheDir)
	}
	c, err := thumbcache.New(thumbcache.Options{
		CacheDirs:       dirs,
		ScratchDir:      scratch,
		MaxAge:          s.conf.MaxAge,
		MaxSourceSize:   s.conf.MaxSourceSize,
		GenerateTimeout: s.conf.GenerateTimeout,
		TestTimeout:     s.conf.TestTimeout,
		MemEntries:      s.conf.MemEntries,
		NetworkPrefixes: s.conf.NetworkPrefixes,
		Renderer:        s.conf.Renderer,
		Index:           s.index,
		Logger:          cmdmain.Logger(),
	})
	if err != nil {
		s.closeIndex()
		return fmt.Errorf("starting thumbnail cache: %w", err)
	}
	s.cache = c
	return nil
}

// thumbnailer returns the cache, or placeholders if it cannot start.
func (s *session) thumbnailer() browser.Thumbnailer {
	if err := s.openCache(); err != nil {
		log.Printf("%v; showing placeholders", err)
		return browser.Placeholders{}
	}
	return s.cache
}

func (s *session) closeIndex() {
	if s.index == nil {
		return
	}
	if err := s.index.Close(); err != nil {
		log.Printf("closing thumbnail index: %v", err)
	}
	s.index = nil
}

func (s *session) Close() error {
	var err error
	if s.cache != nil {
		err = s.cache.Close()
		s.cache = nil
	}
	s.closeIndex()
	return err
}

// withCache runs fn with an open cache, closing it afterwards.
func withCache(fn func(*session) error) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.openCache(); err != nil {
		return err
	}
	return fn(s)
}
