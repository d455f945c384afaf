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
)

type viewCmd struct{}

func init() {
	cmdmain.RegisterMode("view", func(flags *flag.FlagSet) cmdmain.CommandRunner {
		return new(viewCmd)
	})
}

func (c *viewCmd) Describe() string {
	return "Open a model in the interactive viewer."
}

func (c *viewCmd) Usage() {
	cmdmain.Errorf("Usage: crate [globalopts] view <model>\n")
}

func (c *viewCmd) RunCommand(args []string) error {
	if len(args) != 1 {
		return cmdmain.UsageError("need exactly one model")
	}
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	return s.conf.Renderer.View(path)
}
