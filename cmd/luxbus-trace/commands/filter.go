package commands

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/luxbus-protocol/luxbus-go/pkg/buslog"
)

// RunFilter copies matching events into a new trace file.
func RunFilter(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	buildFilter := parseFilterFlags(fs)
	output := fs.String("o", "", "Output trace file (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one trace file, got %d", fs.NArg())
	}
	if *output == "" {
		return fmt.Errorf("-o is required")
	}
	if *output == fs.Arg(0) {
		return fmt.Errorf("output must differ from the input file")
	}

	filter, err := buildFilter()
	if err != nil {
		return err
	}

	reader, err := buslog.NewFilteredReader(fs.Arg(0), filter)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	out, err := os.Create(*output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	encoder := buslog.NewEncoder(out)

	written := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			out.Close()
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			out.Close()
			return fmt.Errorf("failed to write event: %w", err)
		}
		written++
	}

	if err := out.Close(); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote %d events to %s\n", written, *output)
	return nil
}
