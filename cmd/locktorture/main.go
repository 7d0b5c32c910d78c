// Package main implements the locktorture CLI tool.
//
// locktorture exercises the parklock mutex and condition variable under
// load and runs a fixed set of behavioural scenarios against them. It is
// meant for soak testing on new platforms and for reproducing scheduling
// bugs outside of `go test`.
//
// Usage:
//
//	locktorture run -goroutines 16 -iterations 10000   # Stress mutex and cond
//	locktorture scenarios                              # Run all scenarios
//	locktorture scenarios trylock-race notify-all      # Run selected scenarios
//	locktorture version -require v0.1.0                # Check compatibility
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "run":
		runCommand(os.Args[2:])
	case "scenarios":
		scenariosCommand(os.Args[2:])
	case "version", "--version", "-v":
		versionCommand(os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`locktorture - stress and scenario runner for parklock

USAGE:
    locktorture <command> [arguments]

COMMANDS:
    run        Stress the mutex and condition variable
    scenarios  Run behavioural scenarios (all, or the named ones)
    version    Show version information
    help       Show this help message

EXAMPLES:
    # Eight goroutines, 5000 lock/unlock pairs each, owner tracking on
    locktorture run -goroutines 8 -iterations 5000 -track

    # Add timed lock attempts and a producer/consumer pair
    locktorture run -timeout 2ms -items 10000

    # List and run scenarios
    locktorture scenarios -list
    locktorture scenarios wait-timeout

    # Fail unless this build is compatible with v0.1.0
    locktorture version -require v0.1.0

`)
}
