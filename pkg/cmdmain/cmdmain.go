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

// Package cmdmain contains the shared implementation of the crate
// command and its modes.
//
// Each mode registers itself with RegisterMode from an init function;
// Main parses the global flags, picks the mode named by the first
// argument, parses the mode's own flags and runs it.
package cmdmain // import "crate.dev/pkg/cmdmain"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"crate.dev/pkg/buildinfo"

	"go4.org/legal"
)

var (
	FlagVersion = flag.Bool("version", false, "show version")
	FlagHelp    = flag.Bool("help", false, "print usage")
	FlagVerbose = flag.Bool("verbose", false, "extra debug logging")
	FlagLegal   = flag.Bool("legal", false, "show licenses")
)

// PostFlag runs after the global flags are parsed, before the mode.
var PostFlag = func() {}

// Indirections for replacement by tests.
var (
	Stderr io.Writer = os.Stderr
	Stdout io.Writer = os.Stdout
	Exit             = os.Exit
)

var logger = log.New(os.Stderr, "", log.LstdFlags)

// ErrUsage is returned by modes given invalid arguments.
var ErrUsage = UsageError("invalid command")

// A UsageError makes Main print the usage of the mode that returned
// it and exit with status 1.
type UsageError string

func (ue UsageError) Error() string {
	return "Usage error: " + string(ue)
}

// CommandRunner is the type that a command mode should implement.
// A mode may also implement Describe() string, shown in the mode
// list, and Examples() []string.
type CommandRunner interface {
	Usage()
	RunCommand(args []string) error
}

type describer interface {
	Describe() string
}

type exampler interface {
	Examples() []string
}

type mode struct {
	name  string
	cmd   CommandRunner
	flags *flag.FlagSet
	help  bool
}

var modes = make(map[string]*mode)

// RegisterMode adds a mode to the list of modes for the main command.
// It is meant to be called in init() for each mode. makeCmd registers
// the mode's flags on the provided FlagSet.
func RegisterMode(name string, makeCmd func(flags *flag.FlagSet) CommandRunner) {
	if _, dup := modes[name]; dup {
		log.Fatalf("duplicate command %q registered", name)
	}
	m := &mode{
		name:  name,
		flags: flag.NewFlagSet(name+" options", flag.ContinueOnError),
	}
	m.flags.Usage = func() {}
	m.flags.BoolVar(&m.help, "help", false, "Help for this mode.")
	m.cmd = makeCmd(m.flags)
	modes[name] = m
}

// hasOptions reports whether m has flags besides -help.
func (m *mode) hasOptions() bool {
	found := false
	m.flags.VisitAll(func(f *flag.Flag) {
		found = found || f.Name != "help"
	})
	return found
}

func (m *mode) printExamples(cmdName string) {
	if ex, ok := m.cmd.(exampler); ok {
		for _, e := range ex.Examples() {
			Errorf("  %s %s %s\n", cmdName, m.name, e)
		}
	}
}

// printHelp prints the description, usage, options and examples of m.
func (m *mode) printHelp() {
	m.flags.SetOutput(Stderr)
	if des, ok := m.cmd.(describer); ok {
		Errorf("%s\n\n", des.Describe())
	}
	m.cmd.Usage()
	if m.hasOptions() {
		m.flags.PrintDefaults()
	}
	if _, ok := m.cmd.(exampler); ok {
		Errorf("\nExamples:\n")
		m.printExamples(cmdName())
	}
}

// printUsageError prints err with the usage and options of m.
func (m *mode) printUsageError(err error) {
	Errorf("%s\n", err)
	m.cmd.Usage()
	Errorf("\nGlobal options:\n")
	flag.PrintDefaults()
	if m.hasOptions() {
		Errorf("\nMode-specific options for mode %q:\n", m.name)
		m.flags.SetOutput(Stderr)
		m.flags.PrintDefaults()
	}
}

func cmdName() string { return filepath.Base(os.Args[0]) }

func sortedModes() []*mode {
	l := make([]*mode, 0, len(modes))
	for _, m := range modes {
		l = append(l, m)
	}
	sort.Slice(l, func(i, j int) bool { return l[i].name < l[j].name })
	return l
}

// usage prints the global usage, after msg if not empty, and exits.
func usage(msg string) {
	name := cmdName()
	if msg != "" {
		Errorf("Error: %v\n", msg)
	}
	Errorf("\nUsage: %s [globalopts] <mode> [commandopts] [commandargs]\n\nModes:\n\n", name)
	tw := tabwriter.NewWriter(Stderr, 0, 8, 2, ' ', 0)
	for _, m := range sortedModes() {
		desc := ""
		if des, ok := m.cmd.(describer); ok {
			desc = des.Describe()
		}
		fmt.Fprintf(tw, "  %s\t%s\n", m.name, desc)
	}
	tw.Flush()
	Errorf("\nExamples:\n")
	for _, m := range sortedModes() {
		m.printExamples(name)
	}
	Errorf("\nFor mode-specific help:\n\n  %s <mode> -help\n", name)
	Errorf("\nGlobal options:\n")
	flag.PrintDefaults()
	Exit(1)
}

// PrintLicenses prints all the licences registered by go4.org/legal for this program.
func PrintLicenses() {
	for _, text := range legal.Licenses() {
		fmt.Fprintln(Stderr, text)
	}
}

// Main is the core of the crate command: it parses the global flags
// and runs the mode named by the first argument.
func Main() {
	flag.CommandLine.SetOutput(Stderr)
	flag.Usage = func() { usage("") }
	flag.Parse()
	PostFlag()

	switch {
	case *FlagVersion:
		fmt.Fprintf(Stderr, "%s version: %s\n", cmdName(), buildinfo.Summary())
		return
	case *FlagHelp:
		usage("")
		return
	case *FlagLegal:
		PrintLicenses()
		return
	case flag.NArg() == 0:
		usage("No mode given.")
		return
	}

	m, ok := modes[flag.Arg(0)]
	if !ok {
		usage(fmt.Sprintf("Unknown mode %q", flag.Arg(0)))
		return
	}
	m.flags.SetOutput(Stderr)
	err := m.flags.Parse(flag.Args()[1:])
	switch {
	case err == flag.ErrHelp, err == nil && m.help:
		m.printHelp()
		return
	case err != nil:
		err = ErrUsage
	default:
		err = m.cmd.RunCommand(m.flags.Args())
	}

	var ue UsageError
	if errors.As(err, &ue) {
		m.printUsageError(ue)
		Exit(1)
		return
	}
	if err != nil {
		Errorf("Error: %v\n", err)
		Exit(2)
	}
}

// Errorf prints to Stderr, regardless of FlagVerbose.
func Errorf(format string, args ...any) {
	fmt.Fprintf(Stderr, format, args...)
}

// Printf prints to Stdout.
func Printf(format string, args ...any) {
	fmt.Fprintf(Stdout, format, args...)
}

// Logf logs to Stderr if FlagVerbose, and is silent otherwise.
func Logf(format string, v ...any) {
	if !*FlagVerbose {
		return
	}
	logger.SetOutput(Stderr)
	logger.Printf(format, v...)
}

// Logger returns a logger that writes through Logf.
func Logger() *log.Logger {
	return log.New(logfWriter{}, "", 0)
}

type logfWriter struct{}

func (logfWriter) Write(p []byte) (int, error) {
	Logf("%s", p)
	return len(p), nil
}
