package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kolkov/parklock/lock"
)

// versionCommand implements the 'locktorture version' command.
//
// Example:
//
//	locktorture version
//	locktorture version -require v0.1.0
func versionCommand(args []string) {
	if err := printVersion(args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	require := fs.String("require", "", "fail unless compatible with this semantic version")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse version flags: %w", err)
	}

	info := lock.GetInfo()
	fmt.Fprintf(w, "locktorture version %s (wake order %s, handoff %v)\n", info.Version, info.WakeOrder, info.Handoff)

	if *require == "" {
		return nil
	}
	if err := lock.CheckCompatible(*require); err != nil {
		return err
	}
	fmt.Fprintf(w, "compatible with %s\n", *require)
	return nil
}
