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
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"crate.dev/pkg/cmdmain"
	"crate.dev/pkg/images"
)

type thumbCmd struct {
	size int
	out  string
	wait time.Duration
}

func init() {
	cmdmain.RegisterMode("thumb", func(flags *flag.FlagSet) cmdmain.CommandRunner {
		cmd := new(thumbCmd)
		flags.IntVar(&cmd.size, "size", 100, "Thumbnail edge length in pixels.")
		flags.StringVar(&cmd.out, "o", "", "Output PNG file. Defaults to <asset name>_thumb.png in the current directory.")
		flags.DurationVar(&cmd.wait, "wait", 2*time.Minute, "How long to wait for the thumbnail to be generated.")
		return cmd
	})
}

func (c *thumbCmd) Describe() string {
	return "Write the thumbnail of an asset to a PNG file, generating it if needed."
}

func (c *thumbCmd) Usage() {
	cmdmain.Errorf("Usage: crate [globalopts] thumb [-size n] [-o file.png] <asset>\n")
}

func (c *thumbCmd) Examples() []string {
	return []string{"-size 200 -o crate.png /mnt/assets/crate.fbx"}
}

func (c *thumbCmd) RunCommand(args []string) error {
	if len(args) != 1 {
		return cmdmain.UsageError("need exactly one asset")
	}
	if c.size <= 0 {
		return cmdmain.UsageError("size must be positive")
	}
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	out := c.out
	if out == "" {
		base := filepath.Base(path)
		out = strings.TrimSuffix(base, filepath.Ext(base)) + "_thumb.png"
	}
	return withCache(func(s *session) error {
		s.cache.Thumbnail(path, c.size)
		ctx, cancel := context.WithTimeout(context.Background(), c.wait)
		defer cancel()
		if err := s.cache.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for %s: %w", filepath.Base(path), err)
		}
		if s.cache.IsFailed(path) {
			cmdmain.Errorf("generating a preview of %s failed; writing a placeholder\n", filepath.Base(path))
		}
		if err := images.WriteFile(out, s.cache.Thumbnail(path, c.size)); err != nil {
			return err
		}
		cmdmain.Printf("%s\n", out)
		return nil
	})
}
