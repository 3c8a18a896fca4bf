// test.go implements the 'mockinject test' command.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kolkov/inlinemock/cmd/mockinject/runtime"
)

// testConfig holds configuration for the test command.
type testConfig struct {
	// Package patterns to test (e.g., "./...", "./internal/...")
	packages []string

	// Test flags to pass to go test (-v, -run, -bench, etc.)
	testFlags []string

	// Working directory
	workDir string

	// Verbose output flag (-v)
	verbose bool
}

// testCommand implements the 'mockinject test' command.
//
// This command instruments the non-test sources of the module and runs
// 'go test' on the instrumented copy. Test files are copied unchanged:
// they are where handlers get registered.
//
// Flow:
//  1. Parse arguments (test flags + package patterns)
//  2. Create temporary workspace mirroring the module
//  3. Instrument non-test sources
//  4. Setup runtime linking (go.mod rewrite + tidy)
//  5. Call 'go test' in the workspace
//  6. Forward test output and exit code
//  7. Cleanup temporary files
//
// Example:
//
//	mockinject test ./...
//	mockinject test -v ./internal/...
//	mockinject test -run=TestDeposit ./bank
func testCommand(args []string) {
	config, err := parseTestArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg := loadConfig(config.workDir, config.verbose)

	workspace, err := prepareWorkspace(config.workDir, cfg, config.verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	exitCode := runTests(workspace, config)
	workspace.cleanup()
	os.Exit(exitCode)
}

// parseTestArgs parses command-line arguments for 'mockinject test'.
//
// The 'go test' command format is:
//
//	go test [build/test flags] [packages] [test binary flags]
//
// We support:
//
//	mockinject test ./...
//	mockinject test -v ./internal/...
//	mockinject test -run=TestFoo -v ./pkg/...
//	mockinject test -cover -coverprofile=c.out ./...
//
// Returns testConfig with parsed arguments.
func parseTestArgs(args []string) (*testConfig, error) {
	config := &testConfig{
		packages:  []string{},
		testFlags: []string{},
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	config.workDir = cwd

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// Handle -v flag specially (we use it too)
		if arg == "-v" {
			config.verbose = true
			config.testFlags = append(config.testFlags, arg)
			continue
		}

		if strings.HasPrefix(arg, "-") {
			flag, next, err := scanFlag(args, i, testFlagNeedsValue)
			if err != nil {
				return nil, err
			}
			config.testFlags = append(config.testFlags, flag...)
			i = next
			continue
		}

		config.packages = append(config.packages, arg)
	}

	// Default: test current directory if no packages specified
	if len(config.packages) == 0 {
		config.packages = []string{"."}
	}

	return config, nil
}

// testFlagNeedsValue returns true if the test flag expects a following value.
func testFlagNeedsValue(flag string) bool {
	// Already has = format (e.g., -run=TestFoo)
	if strings.Contains(flag, "=") {
		return false
	}

	valueFlags := []string{
		"-run", "-skip", "-bench", "-benchtime", "-blockprofile", "-blockprofilerate",
		"-coverprofile", "-covermode", "-coverpkg", "-count", "-cpu", "-cpuprofile",
		"-memprofile", "-memprofilerate", "-mutexprofile", "-mutexprofilefraction",
		"-outputdir", "-parallel", "-timeout", "-trace", "-shuffle",
		// Build flags that may appear
		"-ldflags", "-gcflags", "-tags", "-mod", "-modfile",
	}

	for _, vf := range valueFlags {
		if flag == vf {
			return true
		}
	}

	return false
}

// runTests executes 'go test' in the workspace and returns its exit code.
func runTests(w *workspace, config *testConfig) int {
	args := []string{"test"}
	args = append(args, absOutputFlags(config.testFlags, config.workDir)...)
	args = append(args, runtime.BuildFlags()...)
	args = append(args, w.mapArgs(config.packages)...)

	return w.goCommand(w.srcDir(), args...)
}

// outputFlags write files relative to the directory go test runs in.
var outputFlags = []string{
	"-coverprofile", "-cpuprofile", "-memprofile", "-blockprofile",
	"-mutexprofile", "-trace", "-outputdir",
}

// absOutputFlags makes the values of output flags absolute against
// workDir, so that profiles land next to the user rather than in the
// workspace that is removed afterwards.
func absOutputFlags(flags []string, workDir string) []string {
	out := make([]string, len(flags))
	copy(out, flags)

	for i := 0; i < len(out); i++ {
		name, value, hasValue := strings.Cut(out[i], "=")
		if !slices.Contains(outputFlags, name) {
			continue
		}
		if !hasValue {
			if i+1 >= len(out) {
				break
			}
			i++
			if !filepath.IsAbs(out[i]) {
				out[i] = filepath.Join(workDir, out[i])
			}
			continue
		}
		if !filepath.IsAbs(value) {
			out[i] = name + "=" + filepath.Join(workDir, value)
		}
	}
	return out
}
