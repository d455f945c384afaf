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
	"path/filepath"

	"crate.dev/pkg/cmdmain"
	"crate.dev/pkg/host"
)

type importCmd struct {
	width, height int
}

func init() {
	cmdmain.RegisterMode("import", func(flags *flag.FlagSet) cmdmain.CommandRunner {
		cmd := new(importCmd)
		flags.IntVar(&cmd.width, "width", 1920, "Project format width, used to place the nodes.")
		flags.IntVar(&cmd.height, "height", 1080, "Project format height, used to place the nodes.")
		return cmd
	})
}

func (c *importCmd) Describe() string {
	return "Print the node script reading assets into the compositing application."
}

func (c *importCmd) Usage() {
	cmdmain.Errorf("Usage: crate [globalopts] import [-width w -height h] <asset> ...\n")
}

func (c *importCmd) Examples() []string {
	return []string{"/mnt/assets/crate.fbx /mnt/tex/crate_albedo.exr > crate.nk"}
}

func (c *importCmd) RunCommand(args []string) error {
	if len(args) == 0 {
		return cmdmain.UsageError("need at least one asset")
	}
	im := &host.Importer{Graph: &host.ScriptGraph{
		W:      cmdmain.Stdout,
		Width:  c.width,
		Height: c.height,
	}}
	for _, a := range args {
		path, err := filepath.Abs(a)
		if err != nil {
			return err
		}
		if _, err := im.Import(path); err != nil {
			return err
		}
	}
	return nil
}
