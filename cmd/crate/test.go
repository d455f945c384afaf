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
	"errors"
	"flag"
	"fmt"
	"path/filepath"

	"crate.dev/pkg/cmdmain"
	"crate.dev/pkg/images"
	"crate.dev/pkg/render"
	"crate.dev/pkg/thumbcache"
)

type testCmd struct {
	out string
}

func init() {
	cmdmain.RegisterMode("test", func(flags *flag.FlagSet) cmdmain.CommandRunner {
		cmd := new(testCmd)
		flags.StringVar(&cmd.out, "o", "", "If set, write the rendered preview to this PNG file.")
		return cmd
	})
}

func (c *testCmd) Describe() string {
	return "Check that the renderer works by rendering one model."
}

func (c *testCmd) Usage() {
	cmdmain.Errorf("Usage: crate [globalopts] test [-o file.png] [model or dir]\n")
}

func (c *testCmd) Examples() []string {
	return []string{"", "/mnt/assets/props/crate.obj"}
}

func (c *testCmd) RunCommand(args []string) error {
	if len(args) > 1 {
		return cmdmain.UsageError("at most one model or directory")
	}
	return withCache(func(s *session) error {
		target := s.conf.AssetRoot
		if len(args) == 1 {
			target = args[0]
		}
		target, err := filepath.Abs(target)
		if err != nil {
			return err
		}
		res, err := s.cache.TestRender(context.Background(), target)
		switch {
		case errors.Is(err, thumbcache.ErrNoModel):
			return fmt.Errorf("no model file to test in %s", target)
		case errors.Is(err, render.ErrUnavailable):
			return fmt.Errorf("renderer not found: %w", err)
		case errors.Is(err, render.ErrTimeout):
			return fmt.Errorf("rendering %s timed out", filepath.Base(res.Asset))
		case err != nil:
			var ee *render.ExitError
			if errors.As(err, &ee) && ee.Stderr != "" {
				cmdmain.Errorf("%s\n", ee.Stderr)
			}
			return err
		}
		cmdmain.Printf("rendered %s in %v\n", res.Asset, res.Elapsed.Round(1e6))
		if c.out != "" {
			return images.WriteFile(c.out, res.Image)
		}
		return nil
	})
}
