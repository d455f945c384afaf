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

package host

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// ScriptGraph is a Graph that writes each node, once positioned, to W
// in the application's script syntax.
type ScriptGraph struct {
	W io.Writer

	// Width and Height are the project format. Zero means 1920×1080.
	Width, Height int

	mu    sync.Mutex
	count map[string]int
}

// CreateNode implements Graph.
func (g *ScriptGraph) CreateNode(class string, knobs []Knob) (Node, error) {
	if class == "" || strings.ContainsAny(class, " \t\n{}") {
		return nil, fmt.Errorf("invalid node class %q", class)
	}
	g.mu.Lock()
	if g.count == nil {
		g.count = make(map[string]int)
	}
	g.count[class]++
	name := class + strconv.Itoa(g.count[class])
	g.mu.Unlock()
	return &scriptNode{g: g, class: class, name: name, knobs: knobs}, nil
}

// RootSize implements Graph.
func (g *ScriptGraph) RootSize() (int, int) {
	if g.Width <= 0 || g.Height <= 0 {
		return 1920, 1080
	}
	return g.Width, g.Height
}

type scriptNode struct {
	g     *ScriptGraph
	class string
	name  string
	knobs []Knob
}

func (n *scriptNode) Class() string { return n.class }

func (n *scriptNode) SetPosition(x, y int) error {
	n.g.mu.Lock()
	defer n.g.mu.Unlock()
	bw := bufio.NewWriter(n.g.W)
	fmt.Fprintf(bw, "%s {\n", n.class)
	for _, k := range n.knobs {
		fmt.Fprintf(bw, " %s %s\n", k.Name, knobValue(k.Value))
	}
	fmt.Fprintf(bw, " name %s\n xpos %d\n ypos %d\n}\n", n.name, x, y)
	return bw.Flush()
}

// knobValue formats v as a script word, quoting strings that need it.
func knobValue(v any) string {
	switch v := v.(type) {
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		if v != "" && !strings.ContainsAny(v, " \t\n\"{}[]$;\\") {
			return v
		}
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `[`, `\[`, `$`, `\$`, "\n", `\n`)
		return `"` + r.Replace(v) + `"`
	}
	return fmt.Sprint(v)
}
