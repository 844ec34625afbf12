// Command nominal is the host program for the Nominal scripting
// runtime: it opens a State, installs the prelude builtins, and either
// runs a script file, evaluates a one-line expression, or drops into an
// interactive REPL (spec §6's "host program" role; everything in this
// package is an external collaborator per spec §1, not part of the
// core language runtime in package nominal).
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/peterh/liner"
	"github.com/rs/zerolog"

	"nominal/nominal"
)

func main() {
	var (
		debug     = flag.Bool("debug", false, "also print heap stats with each printed result (once for a file or -e, after every line in the REPL)")
		stackCap  = flag.Int("stack", 0, "value stack capacity (0 selects the runtime default)")
		eval      = flag.String("e", "", "evaluate a single expression and print its result, instead of running a file or REPL")
		logLevel  = flag.String("log-level", "info", "zerolog level for state lifecycle events: debug, info, warn, error, off")
	)
	flag.Parse()

	logger := newLogger(*logLevel)

	opts := []nominal.Option{nominal.WithLogger(logger)}
	if *stackCap > 0 {
		opts = append(opts, nominal.WithStackCapacity(*stackCap))
	}
	s := nominal.NewState(opts...)
	defer s.Close()
	installPrelude(s)

	switch {
	case *eval != "":
		runEval(s, *eval, *debug)
	case flag.NArg() > 0:
		runFile(s, flag.Arg(0), *debug)
	default:
		runREPL(s, *debug)
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if level == "off" {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Logger()
}

func runEval(s *nominal.State, source string, debug bool) {
	v, err := s.Evaluate(source)
	reportResult(s, v, err, debug)
	if err != nil {
		os.Exit(1)
	}
}

// runFile reads path, switching the working directory to its parent so
// relative `import` paths in the script would resolve, then executes it
// (spec §6 do_file). import itself is out of core scope (spec §1); this
// binary does not implement it.
func runFile(s *nominal.State, path string, debug bool) {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open %q: %v\n", path, err)
		os.Exit(1)
	}

	dir := filepath.Dir(path)
	if dir != "." {
		cwd, _ := os.Getwd()
		if err := os.Chdir(dir); err == nil {
			defer os.Chdir(cwd)
		}
	}

	v, err := s.Evaluate(string(source))
	reportResult(s, v, err, debug)
	if err != nil {
		os.Exit(1)
	}
}

// runREPL drives an interactive session with line editing and history
// via liner, reading one top-level statement per line and reporting its
// value after each — the step granularity this runtime's debug mode
// offers, in place of the teacher's per-opcode single-stepper (see
// DESIGN.md).
func runREPL(s *nominal.State, debug bool) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	prompt := color.New(color.FgCyan).Sprint("nominal> ")
	errColor := color.New(color.FgRed)

	fmt.Println("nominal REPL — Ctrl-D or Ctrl-C to exit")
	for {
		input, err := line.Prompt(prompt)
		if err != nil {
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		v, err := s.Evaluate(input)
		if err != nil {
			errColor.Fprintln(os.Stderr, err)
			continue
		}
		if debug {
			fmt.Printf("=> %s  (heap slots: %d)\n", s.ToString(v), s.HeapSlotCount())
		} else {
			fmt.Printf("=> %s\n", s.ToString(v))
		}
	}
}

func reportResult(s *nominal.State, v nominal.Value, err error, debug bool) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(s.ToString(v))
	if debug {
		fmt.Fprintf(os.Stderr, "heap slots: %d, strings interned: %d\n", s.HeapSlotCount(), s.InternedStringCount())
	}
}
