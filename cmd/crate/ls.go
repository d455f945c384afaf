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

package main

import (
	"flag"
	"os"
	"path/filepath"
	"slices"

	"crate.dev/pkg/asset"
	"crate.dev/pkg/browser"
	"crate.dev/pkg/cmdmain"
	"crate.dev/pkg/thumbcache"
)

type lsCmd struct {
	textures bool
	filter   string
	width    int
}

func init() {
	cmdmain.RegisterMode("ls", func(flags *flag.FlagSet) cmdmain.CommandRunner {
		cmd := new(lsCmd)
		flags.BoolVar(&cmd.textures, "textures", false, "Also list textures. Defaults to the showTextures setting.")
		flags.StringVar(&cmd.filter, "filter", "", "Only list entries whose name contains this text, ignoring case.")
		flags.IntVar(&cmd.width, "width", 0, "If non-zero, print how many thumbnail columns fit in this many pixels.")
		return cmd
	})
}

func (c *lsCmd) Describe() string {
	return "List a directory of assets with the state of their thumbnails."
}

func (c *lsCmd) Usage() {
	cmdmain.Errorf("Usage: crate [globalopts] ls [lsopts] [dir]\n")
}

func (c *lsCmd) Examples() []string {
	return []string{"", "-textures -filter crate /mnt/assets/props"}
}

func (c *lsCmd) RunCommand(args []string) error {
	if len(args) > 1 {
		return cmdmain.UsageError("at most one directory")
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()
	m, err := browser.New(browser.Options{
		Root:         s.conf.AssetRoot,
		Thumbs:       s.thumbnailer(),
		ShowTextures: c.textures || s.conf.ShowTextures,
	})
	if err != nil {
		return err
	}
	if len(args) == 1 {
		if err := m.Open(args[0]); err != nil {
			return err
		}
	}
	items, err := m.Load()
	if err != nil {
		return err
	}
	items = browser.Filter(items, c.filter)
	cmdmain.Printf("%s\n", m.Dir())
	for _, it := range items {
		cmdmain.Printf("  %-8s %-12s %s\n", it.Kind, s.thumbState(it), it.Name)
	}
	if c.width > 0 {
		cmdmain.Printf("%d columns at %dpx\n", m.Columns(c.width), m.ThumbSize())
	}
	return nil
}

// thumbState describes what the listing shows for it.
func (s *session) thumbState(it browser.Item) string {
	switch it.Kind {
	case asset.KindDir:
		return "-"
	case asset.KindTexture:
		return "decoded"
	}
	if s.cache == nil {
		return "placeholder"
	}
	hash := asset.Hash(it.Path)
	switch {
	case s.cache.IsFailed(it.Path):
		return "failed"
	case slices.Contains(s.cache.Active(), asset.Key(hash, s.cache.BaseSize())):
		return "generating"
	case persisted(s.cache, hash):
		return "cached"
	}
	return "placeholder"
}

func persisted(c *thumbcache.Cache, hash string) bool {
	_, err := os.Stat(filepath.Join(c.Dir(), asset.FileName(hash, c.BaseSize())))
	return err == nil
}
