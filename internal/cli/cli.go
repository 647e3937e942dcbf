// Package cli implements the opgraph command-line interface.
package cli

import (
	"fmt"
	"io"

	"github.com/lonestarx1/opgraph/pkg/llm"
)

// App is the opgraph CLI application.
type App struct {
	stdout   io.Writer
	stderr   io.Writer
	registry *llm.Registry
}

// New creates a CLI application that writes to the given writers.
func New(stdout, stderr io.Writer) *App {
	return &App{
		stdout:   stdout,
		stderr:   stderr,
		registry: llm.NewRegistry(),
	}
}

// SetRegistry overrides the default provider registry (for testing, to
// install mock providers instead of resolving real API keys).
func (a *App) SetRegistry(r *llm.Registry) {
	a.registry = r
}

// Run dispatches to the appropriate subcommand and returns an exit code.
func (a *App) Run(args []string) int {
	if len(args) == 0 {
		a.printUsage()
		return 0
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "version":
		return a.runVersion()
	case "init":
		return a.runInit(cmdArgs)
	case "list":
		return a.runList(cmdArgs)
	case "run":
		return a.runRun(cmdArgs)
	case "trace":
		return a.runTrace(cmdArgs)
	case "cost":
		return a.runCost(cmdArgs)
	case "help", "-h", "--help":
		a.printUsage()
		return 0
	default:
		a.errf("unknown command: %s\n\n", cmd)
		a.printUsage()
		return 1
	}
}

func (a *App) printUsage() {
	a.outf(`opgraph — Build and run AI operation pipelines

Usage: opgraph <command> [flags]

Commands:
  init      Scaffold a new opgraph project
  list      List pipelines available to run
  run       Execute a pipeline
  trace     Inspect execution traces
  cost      View cost breakdown
  version   Print version information
  help      Show this help message

Run 'opgraph <command> -h' for command-specific help.
`)
}

// outf writes to stdout, ignoring write errors (terminal I/O).
func (a *App) outf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.stdout, format, args...)
}

// errf writes to stderr, ignoring write errors (terminal I/O).
func (a *App) errf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.stderr, format, args...)
}
