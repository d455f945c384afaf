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
Package render runs the external program that turns a 3D asset into a
preview image.

(*Service).Render starts the program given by a Renderer with the asset
path and an output image path, and waits for it to exit or time out.
A render succeeds only if the program exits with status zero and the
output file exists and is not empty.

The default Renderer is F3D. See ServiceFromConfig for accepted
configuration.
*/
package render // import "crate.dev/pkg/render"

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"go4.org/jsonconfig"
	"go4.org/syncutil"
	"golang.org/x/time/rate"
)

var (
	// ErrTimeout is returned when the renderer ran longer than allowed
	// and was killed.
	ErrTimeout = errors.New("render: timeout")

	// ErrNoOutput is returned when the renderer exited successfully
	// without writing its output image.
	ErrNoOutput = errors.New("render: no output written")

	// ErrUnavailable is returned when no renderer program is configured
	// or it cannot be found.
	ErrUnavailable = errors.New("render: renderer not available")
)

// ExitError is returned when the renderer exits with a nonzero status.
type ExitError struct {
	Program string
	Code    int
	Stdout  string
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(e.Stdout)
	}
	if msg == "" {
		return fmt.Sprintf("render: %s exited with status %d", filepath.Base(e.Program), e.Code)
	}
	return fmt.Sprintf("render: %s exited with status %d: %s", filepath.Base(e.Program), e.Code, msg)
}

// maxCapture bounds how much of the renderer's stdout and stderr is kept.
const maxCapture = 16 << 10

// A Service runs renderer processes.
type Service struct {
	renderer Renderer
	gate     *syncutil.Gate // of subprocesses; nil means no limit.
	limiter  *rate.Limiter  // of process launches.
}

// ServiceFromConfig builds a new Service from configuration.
// Example expected configuration object (all keys are optional):
//
//	{
//	  // Path or name of the f3d executable.
//	  "renderer": "/usr/local/bin/f3d",
//	  // Extra arguments appended to every render, split like a shell would.
//	  "rendererArgs": "--resolution 512,512 --up +Z",
//	  // Maximum number of renderer processes running at the same time.
//	  // A zero or negative maxProcs means no limit.
//	  "maxProcs": 4,
//	  // Maximum number of renderer launches per second.
//	  // A zero or negative value means no limit.
//	  "launchesPerSecond": 8
//	}
func ServiceFromConfig(conf jsonconfig.Obj) (*Service, error) {
	path := conf.OptionalString("renderer", DefaultProgram)
	extra := conf.OptionalString("rendererArgs", "")
	maxProcs := conf.OptionalInt("maxProcs", 4)
	lps := conf.OptionalInt("launchesPerSecond", 8)
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	args, err := ParseArgs(extra)
	if err != nil {
		return nil, err
	}
	limit := rate.Inf
	if lps > 0 {
		limit = rate.Limit(lps)
	}
	return NewService(F3D{Path: path, Args: args}, maxProcs, limit), nil
}

// NewService builds a new Service. A zero or negative maxProcs means no
// limit on concurrent processes; a launch rate of rate.Inf or zero
// means no limit on process starts.
func NewService(r Renderer, maxProcs int, launches rate.Limit) *Service {
	var g *syncutil.Gate
	if maxProcs > 0 {
		g = syncutil.NewGate(maxProcs)
	}
	if launches <= 0 {
		launches = rate.Inf
	}
	burst := 1
	if maxProcs > 0 {
		burst = maxProcs
	}
	return &Service{
		renderer: r,
		gate:     g,
		limiter:  rate.NewLimiter(launches, burst),
	}
}

// ParseArgs splits a configured argument string the way a POSIX shell
// would, honoring quotes and escapes.
func ParseArgs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	args, err := shellwords.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("render: parsing renderer arguments %q: %v", s, err)
	}
	return args, nil
}

// Program returns the renderer executable as configured.
func (s *Service) Program() string {
	prog, _ := s.renderer.Command("", "")
	return prog
}

// LookPath returns the resolved path of the renderer executable.
func (s *Service) LookPath() (string, error) {
	prog := s.Program()
	if prog == "" {
		return "", ErrUnavailable
	}
	if strings.ContainsRune(prog, os.PathSeparator) || filepath.IsAbs(prog) {
		fi, err := os.Stat(prog)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if fi.IsDir() {
			return "", fmt.Errorf("%w: %s is a directory", ErrUnavailable, prog)
		}
		return prog, nil
	}
	p, err := exec.LookPath(prog)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return p, nil
}

// Available reports whether the renderer executable exists.
func (s *Service) Available() bool {
	_, err := s.LookPath()
	return err == nil
}

// Render runs the renderer on the asset at in, writing the preview
// image to out. A zero or negative timeout means no limit. If the
// process outlives timeout it is killed and ErrTimeout is returned.
func (s *Service) Render(ctx context.Context, in, out string, timeout time.Duration) error {
	if s.gate != nil {
		s.gate.Start()
		defer s.gate.Done()
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	prog, args := s.renderer.Command(in, out)
	cmd := exec.CommandContext(runCtx, prog, args...)
	var stdout, stderr capWriter
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children of the renderer may keep the output pipes open after
	// it is killed.
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if runCtx.Err() != nil && ctx.Err() == nil {
		return ErrTimeout
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return &ExitError{
				Program: prog,
				Code:    ee.ExitCode(),
				Stdout:  stdout.String(),
				Stderr:  stderr.String(),
			}
		}
		return fmt.Errorf("render: running %s: %w", prog, err)
	}
	fi, err := os.Stat(out)
	if err != nil || fi.Size() == 0 {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", ErrNoOutput, msg)
		}
		return ErrNoOutput
	}
	return nil
}

// View starts the renderer's interactive viewer on the asset at path
// and returns without waiting for it to exit.
func (s *Service) View(path string) error {
	v, ok := s.renderer.(Viewer)
	if !ok {
		return fmt.Errorf("render: %T has no interactive viewer", s.renderer)
	}
	prog, args := v.ViewCommand(path)
	cmd := exec.Command(prog, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("render: starting viewer: %w", err)
	}
	go cmd.Wait()
	return nil
}

// capWriter is a bytes.Buffer that silently drops writes beyond maxCapture.
type capWriter struct {
	buf bytes.Buffer
}

func (w *capWriter) Write(p []byte) (int, error) {
	if room := maxCapture - w.buf.Len(); room > 0 {
		if len(p) > room {
			w.buf.Write(p[:room])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}

func (w *capWriter) String() string { return w.buf.String() }
