package main

import (
	"fmt"
	"os"
)

const usageText = `drift manages remote development sessions over a shared connection pool.

Usage:
  drift <command> [flags]

Commands:
  profile  manage connection profiles (list, add, rm, show, bookmark)
  config   print configuration (effective or defaults)
  ui       run the terminal workspace against an in-memory demo host
  help     show help

Flags:
  -h, --help   show help

Examples:
  drift profile list
  drift profile add --id build --name build --host build.example.com --user dev --key ~/.ssh/id_ed25519
  drift config --format toml
  drift ui
`

func printUsage() {
	fmt.Fprint(os.Stderr, usageText)
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		return
	}

	wiring := defaultCommandWiring(os.Stdout, os.Stderr)
	commands := buildCommands(wiring)

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
		return
	}

	runner, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
	exitOnErr(args[0], runner.Run(args[1:]), wiring.stderr)
}
