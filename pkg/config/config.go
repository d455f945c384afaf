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

/*
Package config loads the crate configuration file.

The file is a JSON object, or a TOML document with the same keys when
its name ends in ".toml". Every key is optional:

	{
	  // Directory the browser opens at and returns to with Home.
	  "assetRoot": "/mnt/assets/library",
	  // Preferred thumbnail directory, usually shared between machines.
	  "cacheDir": "/mnt/assets/.thumbs",
	  // Path prefixes of slow network mounts; sources under them are
	  // copied to local scratch before rendering. UNC paths always are.
	  "networkPrefixes": ["/mnt/assets"],
	  "showTextures": true,
	  // Keep an index of generated thumbnails for "crate cache".
	  "index": true,
	  "maxAgeDays": 7,
	  "maxSourceMB": 500,
	  "generateTimeoutSeconds": 60,
	  "testTimeoutSeconds": 30,
	  "memEntries": 4096,
	  // Passed to render.ServiceFromConfig.
	  "render": {
	    "renderer": "/usr/local/bin/f3d",
	    "rendererArgs": "--up +Z",
	    "maxProcs": 4
	  }
	}

The environment variables CRATE_ASSET_DIR and CRATE_RENDERER override
"assetRoot" and the renderer path. CRATE_CACHE_DIR is applied when the
thumbnail directory is resolved (see internal/osutil).
*/
package config // import "crate.dev/pkg/config"

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go4.org/jsonconfig"

	"crate.dev/internal/osutil"
	"crate.dev/pkg/render"
)

// Defaults for the thumbnail cache.
const (
	DefaultMaxAge          = 7 * 24 * time.Hour
	DefaultMaxSourceSize   = 500 << 20
	DefaultGenerateTimeout = 60 * time.Second
	DefaultTestTimeout     = 30 * time.Second
	DefaultMemEntries      = 4096
)

// Config is a loaded configuration.
type Config struct {
	// Path is the file the configuration was read from, or empty if
	// the defaults are in use.
	Path string

	AssetRoot       string
	CacheDir        string
	NetworkPrefixes []string
	ShowTextures    bool
	Index           bool

	MaxAge          time.Duration
	MaxSourceSize   int64
	GenerateTimeout time.Duration
	TestTimeout     time.Duration
	MemEntries      int

	Renderer *render.Service

	problemsOnce sync.Once
}

// DefaultPath returns the configuration file to load: $CRATE_CONFIG if
// set, else crate.json or crate.toml in the configuration directory,
// whichever exists (crate.json if neither does).
func DefaultPath() string {
	if p := os.Getenv("CRATE_CONFIG"); p != "" {
		return p
	}
	dir := osutil.ConfigDir()
	for _, name := range []string{"crate.json", "crate.toml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, "crate.json")
}

// Load reads the configuration file at path, or at DefaultPath if path
// is empty. A missing file is not an error: the defaults are used.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	obj, err := readFile(path)
	if errors.Is(err, os.ErrNotExist) {
		obj, path = jsonconfig.Obj{}, ""
	} else if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	conf, err := FromObj(obj)
	if err != nil {
		if path != "" {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
		return nil, err
	}
	conf.Path = path
	return conf, nil
}

func readFile(path string) (jsonconfig.Obj, error) {
	if !strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		return jsonconfig.ReadFile(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return jsonconfig.Obj(normalize(m).(map[string]any)), nil
}

// normalize converts a decoded TOML tree to the types a decoded JSON
// tree has, which is what jsonconfig expects: float64 numbers and
// []interface{} lists.
func normalize(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, e := range v {
			v[k] = normalize(e)
		}
		return v
	case []any:
		for i, e := range v {
			v[i] = normalize(e)
		}
		return v
	case []map[string]any:
		l := make([]any, len(v))
		for i, e := range v {
			l[i] = normalize(e)
		}
		return l
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return v
}

// FromObj builds a Config from a parsed configuration object, applying
// the environment overrides.
func FromObj(obj jsonconfig.Obj) (*Config, error) {
	if obj == nil {
		obj = jsonconfig.Obj{}
	}
	conf := &Config{
		AssetRoot:       obj.OptionalString("assetRoot", ""),
		CacheDir:        obj.OptionalString("cacheDir", ""),
		NetworkPrefixes: obj.OptionalList("networkPrefixes"),
		ShowTextures:    obj.OptionalBool("showTextures", true),
		Index:           obj.OptionalBool("index", true),
		MaxAge:          time.Duration(obj.OptionalInt("maxAgeDays", 7)) * 24 * time.Hour,
		MaxSourceSize:   int64(obj.OptionalInt("maxSourceMB", DefaultMaxSourceSize>>20)) << 20,
		GenerateTimeout: time.Duration(obj.OptionalInt("generateTimeoutSeconds", 60)) * time.Second,
		TestTimeout:     time.Duration(obj.OptionalInt("testTimeoutSeconds", 30)) * time.Second,
		MemEntries:      obj.OptionalInt("memEntries", DefaultMemEntries),
	}
	renderConf := obj.OptionalObject("render")
	if err := obj.Validate(); err != nil {
		return nil, err
	}
	if p := os.Getenv("CRATE_RENDERER"); p != "" {
		renderConf["renderer"] = p
	}
	rs, err := render.ServiceFromConfig(renderConf)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	conf.Renderer = rs
	if d := os.Getenv("CRATE_ASSET_DIR"); d != "" {
		conf.AssetRoot = d
	}
	if conf.AssetRoot == "" {
		conf.AssetRoot = osutil.HomeDir()
	}
	return conf, nil
}

// Check reports configuration problems that disable features without
// preventing startup: a missing asset root or renderer.
func (c *Config) Check() []error {
	var errs []error
	if fi, err := os.Stat(c.AssetRoot); err != nil {
		errs = append(errs, fmt.Errorf("asset root %s: %v", c.AssetRoot, err))
	} else if !fi.IsDir() {
		errs = append(errs, fmt.Errorf("asset root %s is not a directory", c.AssetRoot))
	}
	if _, err := c.Renderer.LookPath(); err != nil {
		errs = append(errs, fmt.Errorf("renderer %s: %v; model previews disabled", c.Renderer.Program(), err))
	}
	return errs
}

// LogProblems logs the result of Check. Only the first call logs.
func (c *Config) LogProblems() {
	c.problemsOnce.Do(func() {
		for _, err := range c.Check() {
			log.Printf("config: %v", err)
		}
	})
}
