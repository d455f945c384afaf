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
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"crate.dev/pkg/asset"
	"crate.dev/pkg/cmdmain"
)

type warmCmd struct {
	size      int
	recursive bool
	textures  bool
}

func init() {
	cmdmain.RegisterMode("warm", func(flags *flag.FlagSet) cmdmain.CommandRunner {
		cmd := new(warmCmd)
		flags.IntVar(&cmd.size, "size", 100, "Thumbnail edge length in pixels.")
		flags.BoolVar(&cmd.recursive, "r", false, "Descend into subdirectories.")
		flags.BoolVar(&cmd.textures, "textures", false, "Also decode textures.")
		return cmd
	})
}

func (c *warmCmd) Describe() string {
	return "Generate the thumbnails of every model in directories."
}

func (c *warmCmd) Usage() {
	cmdmain.Errorf("Usage: crate [globalopts] warm [-r] [-size n] <dir> ...\n")
}

func (c *warmCmd) Examples() []string {
	return []string{"-r /mnt/assets/props"}
}

func (c *warmCmd) RunCommand(args []string) error {
	if len(args) == 0 {
		return cmdmain.UsageError("need at least one directory")
	}
	var paths []string
	for _, dir := range args {
		found, err := c.collect(dir)
		if err != nil {
			return err
		}
		paths = append(paths, found...)
	}
	return withCache(func(s *session) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		start := time.Now()
		if err := s.cache.Prefetch(ctx, paths, c.size); err != nil {
			return err
		}
		failed := 0
		for _, p := range paths {
			if s.cache.IsFailed(p) {
				failed++
				cmdmain.Errorf("failed: %s\n", p)
			}
		}
		cmdmain.Printf("%d assets, %d failed, in %v\n", len(paths), failed, time.Since(start).Round(time.Millisecond))
		return nil
	})
}

// collect returns the models (and textures if requested) under dir,
// skipping dot entries.
func (c *warmCmd) collect(dir string) ([]string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	err = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if p != dir && name[0] == '.' {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != dir && !c.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		switch asset.KindOf(name) {
		case asset.KindModel:
			paths = append(paths, p)
		case asset.KindTexture:
			if c.textures {
				paths = append(paths, p)
			}
		}
		return nil
	})
	return paths, err
}
