// Command luxbus-trace is a tool for viewing and analyzing lighting-bus
// wire trace files.
//
// Trace files are created by luxbus-ctl with the -trace flag, or by any
// program that attaches a buslog.FileLogger to the engine.
//
// Usage:
//
//	luxbus-trace <command> [flags] <file.ltrace>
//
// Commands:
//
//	view     View trace file in human-readable format
//	stats    Show statistics about the trace file
//	filter   Filter trace file and write matching events to a new file
//
// Examples:
//
//	# View all events
//	luxbus-trace view session.ltrace
//
//	# View only incoming lines
//	luxbus-trace view -direction in session.ltrace
//
//	# View one load's traffic
//	luxbus-trace view -address 01-1 session.ltrace
//
//	# Summarize a session
//	luxbus-trace stats session.ltrace
//
//	# Extract one session into its own file
//	luxbus-trace filter -session abc12345 -o one.ltrace session.ltrace
package main

import (
	"fmt"
	"os"

	"github.com/luxbus-protocol/luxbus-go/cmd/luxbus-trace/commands"
)

const usage = `luxbus-trace - Lighting Bus Trace Analyzer

Usage:
  luxbus-trace <command> [flags] <file.ltrace>

Commands:
  view     View trace file in human-readable format
  stats    Show statistics about the trace file
  filter   Filter trace file and write matching events to a new file

Use "luxbus-trace <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "view":
		err = commands.RunView(args, os.Stdout)
	case "stats":
		err = commands.RunStats(args, os.Stdout)
	case "filter":
		err = commands.RunFilter(args, os.Stdout)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "luxbus-trace %s: %v\n", cmd, err)
		os.Exit(1)
	}
}
