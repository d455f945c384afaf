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
	"fmt"
	"sort"
	"strings"

	"crate.dev/internal/osutil"
	"crate.dev/pkg/buildinfo"
	"crate.dev/pkg/cmdmain"
	"crate.dev/pkg/config"
)

type envCmd struct{}

func init() {
	cmdmain.RegisterMode("env", func(flags *flag.FlagSet) cmdmain.CommandRunner {
		return new(envCmd)
	})
}

func (c *envCmd) Describe() string {
	return "Show configuration and thumbnail cache information."
}

func (c *envCmd) Usage() {
	cmdmain.Errorf("Usage: crate [globalopts] env [key]\n")
}

func (c *envCmd) Examples() []string {
	return []string{"", "cachedir"}
}

func (c *envCmd) RunCommand(args []string) error {
	if len(args) > 1 {
		return cmdmain.UsageError("only 0 or 1 arguments allowed")
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()
	env := s.env()
	if len(args) == 1 {
		v, ok := env[args[0]]
		if !ok {
			return fmt.Errorf("unknown environment key %q", args[0])
		}
		cmdmain.Printf("%s\n", v)
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmdmain.Printf("%s: %s\n", k, env[k])
	}
	return nil
}

func (s *session) env() map[string]string {
	conf := s.conf
	m := map[string]string{
		"version":   buildinfo.Summary(),
		"configdir": osutil.ConfigDir(),
		"config":    conf.Path,
		"assetroot": conf.AssetRoot,
	}
	if conf.Path == "" {
		m["config"] = "(defaults; " + config.DefaultPath() + " not found)"
	}
	if len(conf.NetworkPrefixes) > 0 {
		m["networkprefixes"] = strings.Join(conf.NetworkPrefixes, ", ")
	}
	if err := s.openCache(); err != nil {
		m["cachedir"] = "unavailable: " + err.Error()
		return m
	}
	info := s.cache.Info()
	m["renderer"] = fmt.Sprintf("%s (found: %v)", info.Renderer, info.RendererFound)
	m["cachedir"] = info.CacheDir
	m["cachewritable"] = fmt.Sprint(info.CacheWritable)
	m["scratchdir"] = info.ScratchDir
	m["pending"] = fmt.Sprint(info.Pending)
	m["failed"] = fmt.Sprint(info.Failed)
	m["mementries"] = fmt.Sprint(info.MemEntries)
	return m
}
