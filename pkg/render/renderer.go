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

package render

// Renderer is the interface that wraps the Command method.
//
// Command receives the path of the asset to render and the path of the
// image to write, and returns program and arguments. The program is
// expected to write the image to out and exit with status zero, or to
// exit with an error code.
//
// See F3D.Command for example.
type Renderer interface {
	Command(in, out string) (prog string, args []string)
}

// Viewer is implemented by renderers that can also open an asset in an
// interactive window.
type Viewer interface {
	ViewCommand(path string) (prog string, args []string)
}

// DefaultProgram is the renderer executable used when none is configured.
const DefaultProgram = "f3d"

// F3D is a Renderer using the f3d viewer in offscreen mode.
type F3D struct {
	// Path is the f3d executable. If empty, DefaultProgram is looked up
	// in $PATH.
	Path string

	// Args are appended to every invocation.
	Args []string
}

var (
	_ Renderer = F3D{}
	_ Viewer   = F3D{}
)

func (f F3D) prog() string {
	if f.Path == "" {
		return DefaultProgram
	}
	return f.Path
}

// Command implements the Command method for the Renderer interface.
func (f F3D) Command(in, out string) (string, []string) {
	args := []string{in, "--output", out, "--no-background"}
	return f.prog(), append(args, f.Args...)
}

// ViewCommand implements the Viewer interface.
func (f F3D) ViewCommand(path string) (string, []string) {
	return f.prog(), append([]string{path}, f.Args...)
}
