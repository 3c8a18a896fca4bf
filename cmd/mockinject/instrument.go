// instrument.go implements the 'mockinject instrument' command.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/kolkov/inlinemock/cmd/mockinject/instrument"
)

// instrumentConfig holds configuration for the instrument command.
type instrumentConfig struct {
	// Files, directories or ./... patterns
	sources []string

	// Directory for instrumented copies (-o); stdout when empty
	outputDir string

	// Print the YAML plan instead of code (-plan)
	plan bool

	// Verbose output flag (-v)
	verbose bool

	// Working directory
	workDir string
}

// fileResult pairs a source file with its instrumentation result.
type fileResult struct {
	path   string
	result *instrument.InstrumentResult
}

// instrumentCommand implements the 'mockinject instrument' command.
//
// It instruments the given files without building anything, which is
// useful to inspect the generated hooks or to check in instrumented code.
//
// Example:
//
//	mockinject instrument account.go
//	mockinject instrument -plan ./...
//	mockinject instrument -o /tmp/out ./internal/bank
func instrumentCommand(args []string) {
	config, err := parseInstrumentArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg := loadConfig(config.workDir, config.verbose)

	files, err := collectSources(config.sources, config.workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no Go source files found\n")
		os.Exit(1)
	}

	results, instrumentErr := instrumentFiles(files, cfg.Options())

	switch {
	case config.plan:
		err = writePlan(os.Stdout, results)
	case config.outputDir != "":
		err = writeOutputs(results, config)
	default:
		err = printOutputs(os.Stdout, results)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if instrumentErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", reportErrors("instrumentation failed", instrumentErr))
		os.Exit(1)
	}
}

// parseInstrumentArgs parses command-line arguments for
// 'mockinject instrument'.
func parseInstrumentArgs(args []string) (*instrumentConfig, error) {
	config := &instrumentConfig{}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	config.workDir = cwd

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "-o":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("-o flag requires an argument")
			}
			i++
			config.outputDir = args[i]
		case strings.HasPrefix(arg, "-o="):
			config.outputDir = strings.TrimPrefix(arg, "-o=")
		case arg == "-plan":
			config.plan = true
		case arg == "-v":
			config.verbose = true
		case strings.HasPrefix(arg, "-"):
			return nil, fmt.Errorf("unknown flag %s", arg)
		default:
			config.sources = append(config.sources, arg)
		}
	}

	if config.plan && config.outputDir != "" {
		return nil, fmt.Errorf("-plan and -o cannot be combined")
	}

	if len(config.sources) == 0 {
		config.sources = []string{"."}
	}

	return config, nil
}

// collectSources expands files, directories and ./... patterns into a
// sorted list of non-test .go files.
func collectSources(sources []string, workDir string) ([]string, error) {
	var files []string

	for _, src := range sources {
		if strings.HasSuffix(src, "/...") || strings.HasSuffix(src, `\...`) {
			dirs, err := resolvePackagePatterns([]string{src}, workDir)
			if err != nil {
				return nil, err
			}
			found, err := collectGoFiles(dirs, workDir)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
			continue
		}

		found, err := collectGoFiles([]string{src}, workDir)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	slices.Sort(files)
	return slices.Compact(files), nil
}

// instrumentFiles instruments every file and collects all failures.
func instrumentFiles(files []string, opts *instrument.Options) ([]fileResult, error) {
	results := make([]fileResult, 0, len(files))
	var errs error

	for _, path := range files {
		result, err := instrument.InstrumentFile(path, nil, opts)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		log.Debugf("%s: %d hooked, %d skipped", path, result.Stats.Total(), result.Stats.TotalSkipped())
		results = append(results, fileResult{path: path, result: result})
	}

	return results, errs
}

// writePlan prints the plans of all files as one YAML document.
func writePlan(w io.Writer, results []fileResult) error {
	plans := make([]instrument.FilePlan, len(results))
	for i, r := range results {
		plans[i] = r.result.Plan
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(plans); err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	return enc.Close()
}

// writeOutputs writes instrumented copies below config.outputDir,
// keeping paths relative to the working directory.
func writeOutputs(results []fileResult, config *instrumentConfig) error {
	for _, r := range results {
		rel, err := filepath.Rel(config.workDir, r.path)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(r.path)
		}
		outPath := filepath.Join(config.outputDir, rel)

		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Dir(outPath), err)
		}
		if err := os.WriteFile(outPath, []byte(r.result.Code), 0o644); err != nil {
			return fmt.Errorf("failed to write instrumented file %s: %w", outPath, err)
		}

		fmt.Printf("Instrumented: %s -> %s\n", r.path, outPath)
		if config.verbose {
			printStats(rel, &r.result.Stats)
		}
	}
	return nil
}

// printOutputs prints instrumented code. With several files each one is
// preceded by a comment naming it.
func printOutputs(w io.Writer, results []fileResult) error {
	for _, r := range results {
		if len(results) > 1 {
			if _, err := fmt.Fprintf(w, "// %s\n", r.path); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, r.result.Code); err != nil {
			return err
		}
	}
	return nil
}

// resolvePackagePatterns resolves package patterns like "./..." to directories.
func resolvePackagePatterns(patterns []string, workDir string) ([]string, error) {
	var dirs []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		if strings.HasSuffix(pattern, "/...") || strings.HasSuffix(pattern, "\\...") {
			baseDir := strings.TrimSuffix(strings.TrimSuffix(pattern, "/..."), "\\...")
			if baseDir == "." || baseDir == "" {
				baseDir = workDir
			} else if !filepath.IsAbs(baseDir) {
				baseDir = filepath.Join(workDir, baseDir)
			}

			err := filepath.Walk(baseDir, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() {
					return nil
				}
				// Skip hidden, underscore, vendor and testdata directories
				name := info.Name()
				if path != baseDir && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
					name == "vendor" || name == "testdata") {
					return filepath.SkipDir
				}
				hasGo, _ := hasGoFiles(path)
				if hasGo && !seen[path] {
					dirs = append(dirs, path)
					seen[path] = true
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("failed to walk %s: %w", baseDir, err)
			}
		} else {
			dir := pattern
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(workDir, pattern)
			}

			if !seen[dir] {
				dirs = append(dirs, dir)
				seen[dir] = true
			}
		}
	}

	return dirs, nil
}

// hasGoFiles checks if a directory contains any .go files.
func hasGoFiles(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".go") {
			return true, nil
		}
	}

	return false, nil
}

// collectGoFiles finds all non-test .go files from the given sources.
//
// Sources can be:
//   - .go files directly
//   - directories (scans for .go files, not recursive)
//   - "." for current directory
func collectGoFiles(sources []string, workDir string) ([]string, error) {
	var goFiles []string

	for _, src := range sources {
		srcPath := src
		if !filepath.IsAbs(srcPath) {
			srcPath = filepath.Join(workDir, src)
		}

		info, err := os.Stat(srcPath)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", src, err)
		}

		if !info.IsDir() {
			if strings.HasSuffix(srcPath, ".go") {
				goFiles = append(goFiles, srcPath)
			}
			continue
		}

		entries, err := os.ReadDir(srcPath)
		if err != nil {
			return nil, fmt.Errorf("cannot read directory %s: %w", srcPath, err)
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go") {
				goFiles = append(goFiles, filepath.Join(srcPath, name))
			}
		}
	}

	return goFiles, nil
}
