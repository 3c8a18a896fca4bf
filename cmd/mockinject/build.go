// build.go implements the 'mockinject build' command.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kolkov/inlinemock/cmd/mockinject/runtime"
)

// buildCommand implements the 'mockinject build' command.
//
// This command instruments the module and builds the requested packages
// from the instrumented copy. It acts as a drop-in replacement for
// 'go build', passing all other flags through.
//
// Flow:
//  1. Parse arguments (packages/files + go build flags)
//  2. Create temporary workspace mirroring the module
//  3. Instrument non-test sources (insert interception hooks)
//  4. Setup runtime linking (go.mod rewrite + tidy)
//  5. Call 'go build' in the workspace
//  6. Cleanup temporary files
//
// Example:
//
//	mockinject build
//	mockinject build -o myapp ./cmd/myapp
//	mockinject build -ldflags="-s -w" .
func buildCommand(args []string) {
	config, err := parseBuildArgs(args)
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
	defer workspace.cleanup()

	if code := workspace.build(config); code != 0 {
		fmt.Fprintf(os.Stderr, "Build failed\n")
		workspace.cleanup()
		os.Exit(code)
	}

	if config.outputFile != "" {
		fmt.Printf("Built successfully: %s\n", config.outputFile)
	}
}

// buildConfig holds configuration for the build command.
type buildConfig struct {
	// Packages or .go files to build
	sourceFiles []string

	// Output binary name (from -o flag)
	outputFile string

	// Additional go build flags
	buildFlags []string

	// Working directory for build
	workDir string

	// Verbose output flag (-v)
	verbose bool
}

// parseBuildArgs parses command-line arguments for 'mockinject build'.
//
// It separates:
//   - Sources (.go files, directories or package patterns)
//   - Output file (-o flag)
//   - Go build flags (everything else)
//
// Returns buildConfig with parsed arguments.
func parseBuildArgs(args []string) (*buildConfig, error) {
	config := &buildConfig{
		sourceFiles: []string{},
		buildFlags:  []string{},
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	config.workDir = cwd

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "-o" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("-o flag requires an argument")
			}
			i++
			config.outputFile = args[i]
			continue
		}

		if strings.HasPrefix(arg, "-o=") {
			config.outputFile = strings.TrimPrefix(arg, "-o=")
			continue
		}

		if arg == "-v" {
			config.verbose = true
			continue
		}

		// A flag value may itself start with '-', e.g. -ldflags "-s -w".
		if strings.HasPrefix(arg, "-") {
			flag, next, err := scanFlag(args, i, needsValue)
			if err != nil {
				return nil, err
			}
			config.buildFlags = append(config.buildFlags, flag...)
			i = next
			continue
		}

		config.sourceFiles = append(config.sourceFiles, arg)
	}

	// Default: build current directory if no sources specified
	if len(config.sourceFiles) == 0 {
		config.sourceFiles = []string{"."}
	}

	return config, nil
}

// needsValue returns true if the flag expects a following value.
func needsValue(flag string) bool {
	valueFlags := []string{
		"-ldflags", "-gcflags", "-asmflags", "-gccgoflags",
		"-tags", "-installsuffix", "-buildmode", "-mod",
		"-modfile", "-overlay", "-pkgdir", "-toolexec",
		"-p", "-coverpkg", "-covermode",
	}

	for _, vf := range valueFlags {
		// Already has = format (e.g., -ldflags=-s)
		if strings.HasPrefix(flag, vf+"=") {
			return false
		}
		if flag == vf {
			return true
		}
	}

	return false
}

// build runs 'go build' on the instrumented code in the workspace and
// returns its exit code.
func (w *workspace) build(config *buildConfig) int {
	args := []string{"build"}

	if config.outputFile != "" {
		outputPath := config.outputFile
		if !filepath.IsAbs(outputPath) {
			outputPath = filepath.Join(config.workDir, outputPath)
		}
		args = append(args, "-o", outputPath)
	}

	args = append(args, config.buildFlags...)
	args = append(args, runtime.BuildFlags()...)
	args = append(args, w.mapArgs(config.sourceFiles)...)

	return w.goCommand(w.srcDir(), args...)
}
