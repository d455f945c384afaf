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

package cmdmain

import (
	"bytes"
	"errors"
	"flag"
	"os"
	"strings"
	"testing"
)

type echoCmd struct {
	upper bool
	fail  error
}

func (c *echoCmd) Describe() string { return "Print the arguments." }
func (c *echoCmd) Usage()           { Errorf("Usage: crate [globalopts] echo [-upper] <args>\n") }

func (c *echoCmd) RunCommand(args []string) error {
	if c.fail != nil {
		return c.fail
	}
	if len(args) == 0 {
		return UsageError("no arguments")
	}
	s := strings.Join(args, " ")
	if c.upper {
		s = strings.ToUpper(s)
	}
	Printf("%s\n", s)
	return nil
}

var echo = new(echoCmd)

func init() {
	RegisterMode("echo", func(flags *flag.FlagSet) CommandRunner {
		flags.BoolVar(&echo.upper, "upper", false, "Uppercase the output.")
		return echo
	})
}

type exitCode int

// run runs Main with args and returns what it printed and the exit
// code, -1 if it did not exit.
func run(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errb bytes.Buffer
	oldArgs, oldOut, oldErr, oldExit := os.Args, Stdout, Stderr, Exit
	defer func() {
		os.Args, Stdout, Stderr, Exit = oldArgs, oldOut, oldErr, oldExit
		modes["echo"].help = false
		echo.upper = false
	}()
	os.Args = append([]string{"crate"}, args...)
	Stdout, Stderr = &out, &errb
	Exit = func(c int) { panic(exitCode(c)) }

	code = -1
	func() {
		defer func() {
			if r := recover(); r != nil {
				c, ok := r.(exitCode)
				if !ok {
					panic(r)
				}
				code = int(c)
			}
		}()
		Main()
	}()
	return out.String(), errb.String(), code
}

func TestMainRunsMode(t *testing.T) {
	out, _, code := run(t, "echo", "-upper", "hello", "crate")
	if code != -1 {
		t.Fatalf("exit code %d", code)
	}
	if out != "HELLO CRATE\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestMainUsageError(t *testing.T) {
	_, errOut, code := run(t, "echo")
	if code != 1 {
		t.Errorf("exit code = %d; want 1", code)
	}
	if !strings.Contains(errOut, "Usage error: no arguments") || !strings.Contains(errOut, "Usage: crate") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestMainModeError(t *testing.T) {
	echo.fail = errors.New("boom")
	defer func() { echo.fail = nil }()
	_, errOut, code := run(t, "echo", "x")
	if code != 2 || !strings.Contains(errOut, "Error: boom") {
		t.Errorf("code %d, stderr %q", code, errOut)
	}
}

func TestMainUnknownMode(t *testing.T) {
	_, errOut, code := run(t, "nope")
	if code != 1 {
		t.Errorf("exit code = %d; want 1", code)
	}
	if !strings.Contains(errOut, `Unknown mode "nope"`) || !strings.Contains(errOut, "  echo  Print the arguments.") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestModeHelp(t *testing.T) {
	_, errOut, code := run(t, "echo", "-help")
	if code != -1 {
		t.Errorf("exit code = %d", code)
	}
	if !strings.Contains(errOut, "Print the arguments.") || !strings.Contains(errOut, "-upper") {
		t.Errorf("stderr = %q", errOut)
	}
}
