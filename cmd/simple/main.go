// Command simple drives the Simple front end: parse a source file into the
// Sea-of-Nodes graph, or explore programs interactively in a REPL.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/xyproto/env/v2"

	simple "github.com/XmiliaH/Simple"
)

const (
	appName    = "simple"
	promptMain = "==> "
	promptCont = "... "
)

var (
	histPath   = env.Str("SIMPLE_HISTFILE", filepath.Join(env.HomeDir(), ".simple_history"))
	showGraph  = env.Bool("SIMPLE_SHOW_GRAPH")
	colorOut   = env.Bool("SIMPLE_COLOR")
	banner     = fmt.Sprintf("Simple %s REPL\nCtrl+C cancels input, Ctrl+D exits. Type :quit to exit.", simple.Version)
)

func red(s string) string {
	if !colorOut {
		return s
	}
	return "\x1b[31m" + s + "\x1b[0m"
}

func blue(s string) string {
	if !colorOut {
		return s
	}
	return "\x1b[94m" + s + "\x1b[0m"
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch cmd := os.Args[1]; cmd {
	case "run":
		os.Exit(cmdRun(os.Args[2:]))
	case "repl":
		os.Exit(cmdRepl(os.Args[2:]))
	case "version":
		fmt.Println(simple.Version)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", appName, cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Printf(`Simple %s (built %s)

Usage:
  %s run [-graph] <file.smp>   Parse a program and report the graph.
  %s repl                      Start the REPL.
  %s version                   Print the compiled version.

Environment:
  SIMPLE_HISTFILE    REPL history file (default ~/.simple_history)
  SIMPLE_SHOW_GRAPH  Dump GraphViz after every successful run
  SIMPLE_COLOR       Colorize REPL output

`, simple.Version, simple.BuildDate, appName, appName, appName)
}

// -----------------------------------------------------------------------------
// run
// -----------------------------------------------------------------------------

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	graph := fs.Bool("graph", showGraph, "dump GraphViz for the parsed program")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "usage: %s run [-graph] <file.smp>\n", appName)
		return 2
	}
	file := fs.Arg(0)

	src, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, file, err)
		return 1
	}

	p := simple.NewParser(string(src))
	stop, perr := p.Parse()
	if perr != nil {
		fmt.Fprintln(os.Stderr, red(simple.WrapErrorWithName(perr, file, string(src)).Error()))
		return 1
	}

	fmt.Print(simple.Summary(stop))
	if *graph {
		fmt.Print(simple.GenerateDot(p.Sea(), nil, nil))
	}
	return 0
}

// -----------------------------------------------------------------------------
// repl
// -----------------------------------------------------------------------------

func cmdRepl(_ []string) int {
	fmt.Println(banner)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	var lastDot string

	for {
		code, ok := readByParseProbe(ln, promptMain, promptCont)
		if !ok {
			fmt.Println()
			break
		}

		if strings.HasPrefix(strings.TrimSpace(code), ":") {
			switch strings.TrimSpace(strings.ToLower(code)) {
			case ":quit":
				return 0
			case ":dot":
				if lastDot == "" {
					fmt.Println("no graph yet")
				} else {
					fmt.Print(lastDot)
				}
			default:
				fmt.Println("unknown command. Type :quit to exit, :dot for the last graph.")
			}
			continue
		}

		if strings.TrimSpace(code) == "" {
			continue
		}

		p := simple.NewParser(code)
		stop, err := p.Parse()
		if err != nil {
			fmt.Fprintln(os.Stderr, red(simple.WrapErrorWithName(err, "<repl>", code).Error()))
			continue
		}
		lastDot = simple.GenerateDot(p.Sea(), nil, nil)
		fmt.Print(blue(simple.Summary(stop)))
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
	}

	return 0
}

// readByParseProbe accumulates lines until the input parses, or fails with
// a definite (non-incomplete) error; incomplete input keeps prompting.
func readByParseProbe(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder

	for {
		var line string
		var err error
		if b.Len() == 0 {
			line, err = ln.Prompt(prompt)
		} else {
			line, err = ln.Prompt(cont)
		}
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			return src, true
		}
		if _, perr := simple.ParseInteractive(src); simple.IsIncomplete(perr) {
			continue
		}
		return src, true
	}
}
