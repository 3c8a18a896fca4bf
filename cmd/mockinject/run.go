// run.go implements the 'mockinject run' command.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// runCommand implements the 'mockinject run' command.
//
// This command instruments the module, builds the program temporarily,
// and immediately executes the resulting binary. It acts as a drop-in
// replacement for 'go run'.
//
// Flow:
//  1. Parse arguments (build flags, sources, program arguments)
//  2. Build instrumented binary to temp location
//  3. Execute binary with program arguments
//  4. Forward stdin/stdout/stderr
//  5. Return program's exit code
//
// Example:
//
//	mockinject run main.go
//	mockinject run . arg1 arg2
//	mockinject run ./cmd/app --program-flag=value
func runCommand(args []string) {
	config, programArgs, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	tempBinary, err := buildTemporary(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}

	exitCode := executeBinary(tempBinary, programArgs)
	_ = os.Remove(tempBinary) // Best effort cleanup
	os.Exit(exitCode)
}

// parseRunArgs separates sources from program arguments.
//
// The 'go run' command format is:
//
//	go run [build flags] package [arguments...]
//	go run [build flags] file.go... [arguments...]
//
// Build flags come before sources. With .go files, the first argument
// that is not a .go file starts the program arguments. A package (any
// other non-flag argument) is a single source and everything after it
// belongs to the program.
//
// Returns:
//   - buildConfig for compilation
//   - programArgs to pass to executable
//   - error if parsing fails
func parseRunArgs(args []string) (*buildConfig, []string, error) {
	if len(args) == 0 {
		return nil, nil, fmt.Errorf("no go files or package specified")
	}

	var sourceFiles []string
	var programArgs []string
	var buildFlags []string
	verbose := false

	sawGoFile := false
	inProgramArgs := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if inProgramArgs {
			programArgs = append(programArgs, arg)
			continue
		}

		if filepath.Ext(arg) == ".go" {
			sourceFiles = append(sourceFiles, arg)
			sawGoFile = true
			continue
		}

		// Not a .go file and we've seen .go files: program args start here
		if sawGoFile {
			inProgramArgs = true
			programArgs = append(programArgs, arg)
			continue
		}

		if arg == "-v" {
			verbose = true
			continue
		}

		if strings.HasPrefix(arg, "-") {
			if arg == "-o" || strings.HasPrefix(arg, "-o=") {
				return nil, nil, fmt.Errorf("-o flag is not supported by run")
			}
			flag, next, err := scanFlag(args, i, needsValue)
			if err != nil {
				return nil, nil, err
			}
			buildFlags = append(buildFlags, flag...)
			i = next
			continue
		}

		// A package: the rest belongs to the program
		sourceFiles = append(sourceFiles, arg)
		inProgramArgs = true
	}

	if len(sourceFiles) == 0 {
		return nil, nil, fmt.Errorf("no go files or package specified")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	config := &buildConfig{
		sourceFiles: sourceFiles,
		buildFlags:  buildFlags,
		workDir:     cwd,
		verbose:     verbose,
		outputFile:  "", // Will be set by buildTemporary
	}

	return config, programArgs, nil
}

// buildTemporary builds the instrumented code to a temporary binary.
//
// Returns:
//   - Path to temporary binary
//   - Error if build fails
func buildTemporary(config *buildConfig) (string, error) {
	tempBinary, err := os.CreateTemp("", "mockinject-run-*.exe")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempBinary.Name()
	_ = tempBinary.Close() // Ignore close error on temp file

	config.outputFile = tempPath

	cfg := loadConfig(config.workDir, config.verbose)

	workspace, err := prepareWorkspace(config.workDir, cfg, config.verbose)
	if err != nil {
		_ = os.Remove(tempPath) // Cleanup on error, ignore removal errors
		return "", err
	}
	defer workspace.cleanup()

	if code := workspace.build(config); code != 0 {
		_ = os.Remove(tempPath) // Cleanup on error, ignore removal errors
		return "", fmt.Errorf("go build exited with code %d", code)
	}

	return tempPath, nil
}

// executeBinary runs the instrumented binary with given arguments.
//
// This forwards stdin/stdout/stderr to the child process and
// returns the process exit code.
func executeBinary(binaryPath string, args []string) int {
	cmd := exec.Command(binaryPath, args...)

	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error executing binary: %v\n", err)
		return 1
	}

	return 0
}
