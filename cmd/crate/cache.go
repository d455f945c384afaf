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
	"time"

	"crate.dev/pkg/cmdmain"
)

type cacheCmd struct{}

func init() {
	cmdmain.RegisterMode("cache", func(flags *flag.FlagSet) cmdmain.CommandRunner {
		return new(cacheCmd)
	})
}

func (c *cacheCmd) Describe() string {
	return "List or prune the generated thumbnails."
}

func (c *cacheCmd) Usage() {
	cmdmain.Errorf("Usage: crate [globalopts] cache ls|prune\n")
}

func (c *cacheCmd) Examples() []string {
	return []string{"ls", "prune"}
}

func (c *cacheCmd) RunCommand(args []string) error {
	if len(args) != 1 {
		return cmdmain.UsageError("need a cache subcommand")
	}
	switch args[0] {
	case "ls":
		return withCache(cacheList)
	case "prune":
		return withCache(cachePrune)
	}
	return cmdmain.UsageError("unknown cache subcommand " + args[0])
}

func cacheList(s *session) error {
	if s.index == nil {
		return cmdmain.UsageError(`the thumbnail index is disabled; set "index": true in the config`)
	}
	recs, err := s.index.All()
	if err != nil {
		return err
	}
	for _, r := range recs {
		cmdmain.Printf("%s %4d %8v %s  %s\n", r.Hash, r.BaseSize, r.Elapsed.Round(time.Millisecond),
			r.Generated.Local().Format(time.DateTime), r.Path)
	}
	return nil
}

func cachePrune(s *session) error {
	if s.index == nil {
		return cmdmain.UsageError(`the thumbnail index is disabled; set "index": true in the config`)
	}
	n, err := s.cache.Prune()
	if err != nil {
		return err
	}
	cmdmain.Printf("pruned %d thumbnails\n", n)
	return nil
}
