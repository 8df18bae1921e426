// Command indigo-log is a tool for viewing and analyzing INDIGO protocol
// capture files.
//
// Capture files are created with the -capture flag of indigo-server,
// indigo-ctl, and indigo-simulator.
//
// Usage:
//
//	indigo-log <command> [flags] <file.capture>
//
// Commands:
//
//	view     View capture file in human-readable format
//	export   Export capture file to JSON or CSV format
//	filter   Filter capture file and write to new file
//	stats    Show statistics about the capture file
//
// Examples:
//
//	# View all events
//	indigo-log view session.capture
//
//	# View only XML (driver-side) traffic
//	indigo-log view -encoding xml session.capture
//
//	# View updates for one device
//	indigo-log view -device "CCD Simulator" session.capture
//
//	# Export to JSONL
//	indigo-log export -format jsonl session.capture
//
//	# Filter by connection and save to new file
//	indigo-log filter -conn-id abc12345 -o filtered.capture session.capture
//
//	# Show statistics
//	indigo-log stats session.capture
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/indigo-protocol/indigo-go/cmd/indigo-log/commands"
	"github.com/indigo-protocol/indigo-go/pkg/log"
)

const usage = `indigo-log - INDIGO Protocol Capture Analyzer

Usage:
  indigo-log <command> [flags] <file.capture>

Commands:
  view     View capture file in human-readable format
  export   Export capture file to JSON or CSV format
  filter   Filter capture file and write to new file
  stats    Show statistics about the capture file

Use "indigo-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `indigo-log view - View capture file in human-readable format

Usage:
  indigo-log view [flags] <file.capture>

Flags:
`)
		fs.PrintDefaults()
	}

	direction := fs.String("direction", "", "Filter by direction (in, out)")
	encoding := fs.String("encoding", "", "Filter by encoding (json, xml)")
	category := fs.String("category", "", "Filter by category (message, control, state, error)")
	device := fs.String("device", "", "Filter by device name")
	property := fs.String("property", "", "Filter by property name")
	kind := fs.String("kind", "", "Filter by wire kind (defSwitchVector, setNumberVector, ...)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	filter := log.Filter{
		Device:   *device,
		Property: *property,
		Kind:     *kind,
	}

	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Direction = &d
	}

	if *encoding != "" {
		e, err := commands.ParseEncodingFlag(*encoding)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Encoding = &e
	}

	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Category = &c
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `indigo-log export - Export capture file to JSON or CSV format

Usage:
  indigo-log export [flags] <file.capture>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `indigo-log filter - Filter capture file and write to new file

Usage:
  indigo-log filter [flags] <file.capture>

Flags:
`)
		fs.PrintDefaults()
	}

	output := fs.String("o", "", "Output file (required)")
	connID := fs.String("conn-id", "", "Filter by connection ID")
	device := fs.String("device", "", "Filter by device name")
	property := fs.String("property", "", "Filter by property name")
	kind := fs.String("kind", "", "Filter by wire kind")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	encoding := fs.String("encoding", "", "Filter by encoding (json, xml)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (message, control, state, error)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	opts := commands.FilterOptions{
		Output:    *output,
		ConnID:    *connID,
		Device:    *device,
		Property:  *property,
		Kind:      *kind,
		TimeStart: *timeStart,
		TimeEnd:   *timeEnd,
		Encoding:  *encoding,
		Direction: *direction,
		Category:  *category,
	}

	if err := commands.RunFilter(path, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `indigo-log stats - Show statistics about the capture file

Usage:
  indigo-log stats <file.capture>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
