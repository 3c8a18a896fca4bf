// workspace.go implements the temporary build workspace shared by the
// build, run and test commands.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"github.com/kolkov/inlinemock/cmd/mockinject/instrument"
	"github.com/kolkov/inlinemock/cmd/mockinject/runtime"
)

// workspace is an instrumented copy of the module being built.
//
// The whole module is mirrored so that relative package paths and
// patterns given on the command line resolve the same way inside it.
// Non-test sources are instrumented; test files, testdata and vendored
// code are copied unchanged.
type workspace struct {
	// Root directory of workspace (mirror of moduleRoot)
	dir string

	// Root of the module being instrumented
	moduleRoot string

	// Directory the command was started in
	workDir string
}

// createWorkspace creates a temporary workspace for the module containing
// workDir. Without a go.mod, workDir itself is mirrored.
func createWorkspace(workDir string) (*workspace, error) {
	moduleRoot, err := runtime.FindModuleRoot(workDir)
	if err != nil {
		log.Debugf("no module found, using %s: %v", workDir, err)
		moduleRoot = workDir
	}

	dir, err := os.MkdirTemp("", "mockinject-build-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &workspace{
		dir:        dir,
		moduleRoot: moduleRoot,
		workDir:    workDir,
	}, nil
}

// cleanup removes the temporary workspace.
func (w *workspace) cleanup() {
	if w.dir != "" {
		_ = os.RemoveAll(w.dir) // Best effort cleanup, ignore errors
	}
}

// mirror returns the workspace path for a path inside the module.
func (w *workspace) mirror(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.workDir, path)
	}
	rel, err := filepath.Rel(w.moduleRoot, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside module %s", path, w.moduleRoot)
	}
	return filepath.Join(w.dir, rel), nil
}

// srcDir is the workspace counterpart of the starting directory. The go
// command runs there.
func (w *workspace) srcDir() string {
	dir, err := w.mirror(w.workDir)
	if err != nil {
		return w.dir
	}
	return dir
}

// mapArgs rewrites absolute paths inside the module to the workspace.
// Relative arguments already resolve correctly from srcDir.
func (w *workspace) mapArgs(args []string) []string {
	mapped := make([]string, len(args))
	for i, arg := range args {
		mapped[i] = arg
		if filepath.IsAbs(arg) {
			if m, err := w.mirror(arg); err == nil {
				mapped[i] = m
			}
		}
	}
	return mapped
}

// populate copies the module into the workspace and instruments its
// non-test sources. All instrumentation failures are reported together.
func (w *workspace) populate(opts *instrument.Options, verbose bool) (instrument.InstrumentStats, error) {
	var total instrument.InstrumentStats
	var errs error

	walkErr := filepath.WalkDir(w.moduleRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(w.moduleRoot, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(w.dir, rel)

		if d.IsDir() {
			if path != w.moduleRoot && skipDir(path, d.Name()) {
				return filepath.SkipDir
			}
			return os.MkdirAll(dst, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		if shouldInstrument(rel) {
			result, err := instrument.InstrumentFile(path, data, opts)
			if err != nil {
				errs = multierr.Append(errs, err)
			} else {
				data = []byte(result.Code)
				total.Add(result.Stats)
				if verbose && result.Stats.Total() > 0 {
					printStats(rel, &result.Stats)
				}
			}
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		return os.WriteFile(dst, data, info.Mode().Perm())
	})

	if walkErr != nil {
		return total, fmt.Errorf("failed to copy module: %w", walkErr)
	}
	return total, errs
}

// skipDir reports whether a directory is left out of the workspace: hidden
// directories and nested modules.
func skipDir(path, name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, err := os.Stat(filepath.Join(path, "go.mod"))
	return err == nil
}

// shouldInstrument reports whether the file at rel (relative to the
// module root) gets hooks.
func shouldInstrument(rel string) bool {
	if !strings.HasSuffix(rel, ".go") || strings.HasSuffix(rel, "_test.go") {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == "testdata" || part == "vendor" || strings.HasPrefix(part, "_") {
			return false
		}
	}
	return true
}

// setupRuntimeLinking wires the runtime into the workspace go.mod and tidies
// it.
func (w *workspace) setupRuntimeLinking() error {
	if err := runtime.WireModule(w.dir, w.moduleRoot); err != nil {
		return fmt.Errorf("failed to set up go.mod: %w", err)
	}

	if code := w.goCommand(w.dir, "mod", "tidy"); code != 0 {
		return fmt.Errorf("go mod tidy failed with exit code %d", code)
	}
	return nil
}

// goCommand runs the go tool in dir with the standard streams forwarded
// and returns its exit code. Workspaces (go.work) of the original tree do
// not apply to the copy.
func (w *workspace) goCommand(dir string, args ...string) int {
	log.Debugf("go %s (in %s)", strings.Join(args, " "), dir)

	cmd := exec.Command("go", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GOWORK=off")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error executing go: %v\n", err)
		return 1
	}
	return 0
}

// prepareWorkspace runs the shared steps of build, run and test: create,
// populate and link. The caller must call cleanup on the result.
func prepareWorkspace(workDir string, cfg *Config, verbose bool) (*workspace, error) {
	w, err := createWorkspace(workDir)
	if err != nil {
		return nil, err
	}

	stats, err := w.populate(cfg.Options(), verbose)
	if err != nil {
		w.cleanup()
		return nil, reportErrors("instrumentation failed", err)
	}
	if verbose {
		fmt.Printf("Instrumented module %s: %d methods hooked, %d skipped\n",
			w.moduleRoot, stats.Total(), stats.TotalSkipped())
	}

	if err := w.setupRuntimeLinking(); err != nil {
		w.cleanup()
		return nil, err
	}
	return w, nil
}

// reportErrors joins aggregated errors into one message, one per line.
func reportErrors(msg string, err error) error {
	errs := multierr.Errors(err)
	if len(errs) <= 1 {
		return fmt.Errorf("%s: %w", msg, err)
	}
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = "  " + e.Error()
	}
	return fmt.Errorf("%s (%d errors):\n%s", msg, len(errs), strings.Join(lines, "\n"))
}

// printStats prints per-file statistics for -v.
func printStats(name string, stats *instrument.InstrumentStats) {
	fmt.Printf("Instrumented %s:\n", name)
	fmt.Printf("  - %d methods hooked (%d identity, %d finalizer)\n",
		stats.MethodsHooked, stats.IdentityMethods, stats.FinalizerMethods)
	if stats.TotalSkipped() > 0 {
		fmt.Printf("  - %d methods skipped (%d value receivers, %d generic, %d excluded, %d other types, %d bodiless)\n",
			stats.TotalSkipped(),
			stats.ValueReceiversSkipped,
			stats.GenericsSkipped,
			stats.ExcludedSkipped,
			stats.TypesSkipped,
			stats.BodilessSkipped,
		)
	}
}
