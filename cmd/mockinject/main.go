// Package main implements the mockinject CLI tool.
//
// The mockinject tool makes concrete types mockable per instance without
// interfaces or code changes. It works by:
//
//  1. Parsing Go source files using go/ast
//  2. Inserting an interception hook at the top of every pointer-receiver
//     method
//  3. Linking the inlinemock runtime into a temporary copy of the module
//  4. Building/running/testing the instrumented code
//
// Usage:
//
//	mockinject instrument account.go   # Print the instrumented source
//	mockinject build ./cmd/app         # Build with hooks
//	mockinject run main.go             # Run with hooks
//	mockinject test ./...              # Test with hooks
//
// Tests then register handlers for individual instances through the
// github.com/kolkov/inlinemock/mock package.
package main

import (
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/kolkov/inlinemock/cmd/mockinject/runtime"
	"github.com/kolkov/inlinemock/mock"
)

var log = commonlog.GetLogger("mockinject")

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "instrument":
		instrumentCommand(os.Args[2:])
	case "build":
		buildCommand(os.Args[2:])
	case "run":
		runCommand(os.Args[2:])
	case "test":
		testCommand(os.Args[2:])
	case "version", "--version":
		printVersion()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// loadConfig finds mockinject.toml from dir and configures logging. The
// -v flag raises the log level to debug.
func loadConfig(dir string, verbose bool) *Config {
	cfg, err := FindConfig(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	verbosity := cfg.Log.Verbosity
	if verbose {
		verbosity = max(verbosity, 2)
	}
	var path *string
	if cfg.Log.Path != "" {
		path = &cfg.Log.Path
	}
	commonlog.Configure(verbosity, path)

	if cfg.Dir != "" {
		log.Debugf("loaded %s from %s", ConfigFile, cfg.Dir)
	}
	return cfg
}

func printVersion() {
	info := mock.GetInfo()
	root, dev := runtime.RuntimeSource()

	fmt.Printf("mockinject version %s\n", info.Version)
	fmt.Printf("  runtime:  %s %s\n", runtime.GetRuntimePackagePath(), runtime.RuntimeVersion())
	fmt.Printf("  dispatch: %s\n", info.Dispatch)
	if dev {
		fmt.Printf("  linking:  local checkout %s\n", root)
	}
}

func printUsage() {
	fmt.Print(`mockinject - Inline Mock Hook Injector

USAGE:
    mockinject <command> [arguments]

COMMANDS:
    instrument Instrument Go files and print or write the result
    build      Build Go program with interception hooks
    run        Run Go program with interception hooks
    test       Test Go packages with interception hooks
    version    Show version information
    help       Show this help message

EXAMPLES:
    # Show what would be hooked
    mockinject instrument -plan ./...

    # Write instrumented copies of a package
    mockinject instrument -o /tmp/out ./internal/bank

    # Test packages with hooks in every pointer-receiver method
    mockinject test -v ./...

    # Build a program
    mockinject build -o myapp ./cmd/myapp

CONFIGURATION:
    mockinject.toml, found by walking up from the working directory:

        [instrument]
        types = ["Account"]          # hook only these types (default: all)
        exclude_methods = ["String"] # never hook these methods

        [log]
        verbosity = 2                # 2 = debug

ABOUT:
    Every pointer-receiver method of the instrumented code first asks the
    runtime whether a handler is registered for its receiver. Instances
    without a handler run their own code; registered instances call the
    handler, which may delegate to the original implementation.

    Value receivers and methods of generic types are not hooked.
    Set INLINEMOCK_ROOT to link against a local inlinemock checkout.

FOR MORE INFORMATION:
    Repository: https://github.com/kolkov/inlinemock

`)
}
