// Package runtime links the mock runtime into instrumented modules.
//
// Instrumented code imports github.com/kolkov/inlinemock/mock. The module
// being instrumented usually does not require it, so the copy of its go.mod
// in the build workspace is rewritten to require the runtime. When the
// tool runs from an inlinemock checkout (development mode) the requirement
// is replaced with that checkout.
package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	"golang.org/x/mod/modfile"

	"github.com/kolkov/inlinemock/mock"
)

const (
	// RuntimeModulePath is the module that provides the mock runtime.
	RuntimeModulePath = "github.com/kolkov/inlinemock"

	// RootEnv points at an inlinemock checkout to link against.
	RootEnv = "INLINEMOCK_ROOT"

	// devVersion is required when the runtime is replaced by a checkout.
	devVersion = "v0.0.0"
)

var log = commonlog.GetLogger("mockinject.runtime")

// markerDir identifies an inlinemock checkout. We don't just look for any
// go.mod because that would match the user's project.
var markerDir = filepath.Join("internal", "dispatch", "session")

// GetRuntimePackagePath returns the import path of the runtime API that
// instrumented code imports.
//
// Returns: "github.com/kolkov/inlinemock/mock"
func GetRuntimePackagePath() string {
	return RuntimeModulePath + "/mock"
}

// RuntimeSource reports where the runtime comes from: a local checkout
// (dev is true, root is its directory) or the published module.
func RuntimeSource() (root string, dev bool) {
	root, err := findProjectRoot()
	if err != nil {
		return "", false
	}
	return root, true
}

// RuntimeVersion returns the module version instrumented code requires.
func RuntimeVersion() string {
	return "v" + mock.Version
}

// findProjectRoot finds the root directory of an inlinemock checkout.
//
// Order: $INLINEMOCK_ROOT, the working directory and its parents, then
// the directories around the executable.
func findProjectRoot() (string, error) {
	if env := os.Getenv(RootEnv); env != "" {
		if isProjectRoot(env) {
			return filepath.Abs(env)
		}
		return "", fmt.Errorf("%s=%s is not an inlinemock checkout", RootEnv, env)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		if isProjectRoot(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		candidates := []string{
			exeDir,                             // mockinject in project root
			filepath.Dir(exeDir),               // mockinject in bin/
			filepath.Dir(filepath.Dir(exeDir)), // deeper nesting
		}
		for _, candidate := range candidates {
			if isProjectRoot(candidate) {
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("could not find inlinemock project root")
}

func isProjectRoot(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, markerDir))
	return err == nil && info.IsDir()
}

// FindModuleRoot returns the directory of the go.mod that governs
// startDir, walking up. It returns an error when there is none.
func FindModuleRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no go.mod found in %s or any parent directory", startDir)
		}
		dir = parent
	}
}

// BuildFlags returns additional flags needed for building instrumented code.
//
// The workspace go.mod is rewritten after the copy, so the go command may
// need to update go.sum.
func BuildFlags() []string {
	return []string{"-mod=mod"}
}

// WireModule rewrites the go.mod in workspaceDir so that instrumented code
// can import the runtime.
//
// It:
//   - creates a go.mod ("module instrumented") when the workspace has none
//   - turns relative replace paths into absolute paths against originalDir,
//     since the workspace lives elsewhere
//   - requires the runtime module, replaced by the local checkout in
//     development mode
//   - in published mode, rejects a runtime version the module already
//     requires that is incompatible with this tool
func WireModule(workspaceDir, originalDir string) error {
	path := filepath.Join(workspaceDir, "go.mod")

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		data = []byte("module instrumented\n\ngo 1.24\n")
	case err != nil:
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	f, err := modfile.Parse(path, data, nil)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if f.Module != nil && f.Module.Mod.Path == RuntimeModulePath {
		return fmt.Errorf("cannot instrument the runtime module itself")
	}

	if err := absolutizeReplaces(f, originalDir); err != nil {
		return err
	}

	root, dev := RuntimeSource()
	version := RuntimeVersion()
	if dev {
		version = devVersion
		if err := f.AddReplace(RuntimeModulePath, "", root, ""); err != nil {
			return fmt.Errorf("failed to add replace: %w", err)
		}
		log.Debugf("linking runtime from %s", root)
	} else {
		if err := checkRuntimeRequire(f); err != nil {
			return err
		}
		log.Debugf("linking runtime %s@%s", RuntimeModulePath, version)
	}

	if err := f.AddRequire(RuntimeModulePath, version); err != nil {
		return fmt.Errorf("failed to add require: %w", err)
	}

	f.Cleanup()
	out, err := f.Format()
	if err != nil {
		return fmt.Errorf("failed to format go.mod: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// checkRuntimeRequire fails when f already requires a runtime version this
// tool cannot generate code for.
func checkRuntimeRequire(f *modfile.File) error {
	for _, r := range f.Require {
		if r.Mod.Path != RuntimeModulePath {
			continue
		}
		if err := mock.Compatible(r.Mod.Version); err != nil {
			return fmt.Errorf("module requires %s %s: %w", RuntimeModulePath, r.Mod.Version, err)
		}
	}
	return nil
}

// absolutizeReplaces rewrites local replace targets relative to dir.
func absolutizeReplaces(f *modfile.File, dir string) error {
	replaces := append([]*modfile.Replace(nil), f.Replace...)
	for _, rep := range replaces {
		newPath := rep.New.Path
		if rep.New.Version != "" || !isLocalPath(newPath) || filepath.IsAbs(newPath) {
			continue
		}

		absPath, err := filepath.Abs(filepath.Join(dir, newPath))
		if err != nil {
			return fmt.Errorf("failed to resolve replace %s => %s: %w", rep.Old.Path, newPath, err)
		}
		if err := f.AddReplace(rep.Old.Path, rep.Old.Version, absPath, ""); err != nil {
			return fmt.Errorf("failed to rewrite replace %s: %w", rep.Old.Path, err)
		}
	}
	return nil
}

// isLocalPath checks if a path is a local filesystem path (not a module path).
//
// Local paths start with ./, ../, /, or a drive letter on Windows.
func isLocalPath(path string) bool {
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") {
		return true
	}
	if filepath.IsAbs(path) {
		return true
	}
	// Windows drive letter check (e.g., C:\)
	if len(path) >= 2 && path[1] == ':' {
		return true
	}
	// Paths like "subdir/module": a separator but no dot, so not a module path
	if strings.ContainsAny(path, `/\`) && !strings.Contains(path, ".") {
		return true
	}
	return false
}
