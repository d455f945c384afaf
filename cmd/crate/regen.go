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

	"crate.dev/pkg/cmdmain"
)

type regenCmd struct{}

func init() {
	cmdmain.RegisterMode("regen", func(flags *flag.FlagSet) cmdmain.CommandRunner {
		return new(regenCmd)
	})
}

func (c *regenCmd) Describe() string {
	return "Delete every persisted thumbnail so that they are generated again."
}

func (c *regenCmd) Usage() {
	cmdmain.Errorf("Usage: crate [globalopts] regen\n")
}

func (c *regenCmd) RunCommand(args []string) error {
	if len(args) != 0 {
		return cmdmain.UsageError("regen takes no arguments")
	}
	return withCache(func(s *session) error {
		if err := s.cache.RegenerateAll(); err != nil {
			return err
		}
		cmdmain.Printf("cleared thumbnails in %s\n", s.cache.Dir())
		return nil
	})
}
