// workspace_test.go tests the build workspace.
package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kolkov/inlinemock/cmd/mockinject/instrument"
)

// newModule creates a small module tree and returns its root.
func newModule(t *testing.T) string {
	t.Helper()
	return newTree(t, map[string]string{
		"go.mod":                  "module example.com/shop\n\ngo 1.24\n",
		"bank/account.go":         bankSrc,
		"bank/account_test.go":    "package bank\n\nfunc (a *Account) testOnly() {}\n",
		"bank/testdata/golden.go": "package golden\n\ntype G struct{}\n\nfunc (g *G) M() {}\n",
		"tools/go.mod":            "module example.com/shop/tools\n",
		"tools/tool.go":           "package tools\n",
		".git/config":             "[core]\n",
		"README.md":               "shop\n",
	})
}

func TestCreateWorkspace(t *testing.T) {
	root := newModule(t)
	workDir := filepath.Join(root, "bank")

	w, err := createWorkspace(workDir)
	if err != nil {
		t.Fatalf("createWorkspace() error: %v", err)
	}
	defer w.cleanup()

	if w.moduleRoot != root {
		t.Errorf("moduleRoot = %q, want %q", w.moduleRoot, root)
	}
	if _, err := os.Stat(w.dir); err != nil {
		t.Errorf("Workspace directory not created: %v", err)
	}
	if w.srcDir() != filepath.Join(w.dir, "bank") {
		t.Errorf("srcDir() = %q, want the mirrored bank directory", w.srcDir())
	}
}

func TestWorkspaceCleanup(t *testing.T) {
	w, err := createWorkspace(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	w.cleanup()

	if _, err := os.Stat(w.dir); !os.IsNotExist(err) {
		t.Errorf("Workspace still exists after cleanup: %v", err)
	}
}

func TestWorkspaceMirror(t *testing.T) {
	root := newModule(t)
	w := &workspace{dir: "/ws", moduleRoot: root, workDir: filepath.Join(root, "bank")}

	got, err := w.mirror("account.go")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/ws", "bank", "account.go"); got != want {
		t.Errorf("mirror(account.go) = %q, want %q", got, want)
	}

	if _, err := w.mirror(filepath.Dir(root)); err == nil {
		t.Error("Expected error for a path outside the module")
	}

	args := w.mapArgs([]string{"./...", filepath.Join(root, "bank"), "/elsewhere/pkg"})
	want := []string{"./...", filepath.Join("/ws", "bank"), "/elsewhere/pkg"}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("mapArgs[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

// TestWorkspacePopulate tests that the module is mirrored with only its
// non-test sources instrumented.
func TestWorkspacePopulate(t *testing.T) {
	root := newModule(t)
	w, err := createWorkspace(root)
	if err != nil {
		t.Fatal(err)
	}
	defer w.cleanup()

	stats, err := w.populate(&instrument.Options{}, false)
	if err != nil {
		t.Fatalf("populate() error: %v", err)
	}
	if stats.MethodsHooked != 1 || stats.ValueReceiversSkipped != 1 {
		t.Errorf("Stats = %+v, want 1 hooked and 1 value receiver skipped", stats)
	}

	read := func(rel string) string {
		t.Helper()
		data, err := os.ReadFile(filepath.Join(w.dir, rel))
		if err != nil {
			t.Fatalf("%s missing from workspace: %v", rel, err)
		}
		return string(data)
	}

	if !strings.Contains(read("bank/account.go"), "__mockMethod_Account_Balance") {
		t.Error("bank/account.go was not instrumented")
	}
	if strings.Contains(read("bank/account_test.go"), "__mock") {
		t.Error("Test file was instrumented")
	}
	if strings.Contains(read("bank/testdata/golden.go"), "__mock") {
		t.Error("testdata was instrumented")
	}
	if read("README.md") != "shop\n" || !strings.Contains(read("go.mod"), "example.com/shop") {
		t.Error("Non-Go files not copied unchanged")
	}

	for _, skipped := range []string{"tools", ".git"} {
		if _, err := os.Stat(filepath.Join(w.dir, skipped)); !os.IsNotExist(err) {
			t.Errorf("%s copied into workspace", skipped)
		}
	}
}

func TestWorkspacePopulate_Errors(t *testing.T) {
	root := newTree(t, map[string]string{
		"go.mod": "module example.com/broken\n",
		"a.go":   "package broken\nfunc (\n",
		"b.go":   "package broken\nvar = 1\n",
	})
	w, err := createWorkspace(root)
	if err != nil {
		t.Fatal(err)
	}
	defer w.cleanup()

	_, err = w.populate(&instrument.Options{}, false)
	var ie *instrument.InstrumentationError
	if !errors.As(err, &ie) {
		t.Fatalf("populate() error = %v, want instrumentation errors", err)
	}
	if msg := reportErrors("instrumentation failed", err).Error(); !strings.Contains(msg, "2 errors") {
		t.Errorf("Report = %s, want both files", msg)
	}
}

func TestShouldInstrument(t *testing.T) {
	tests := []struct {
		rel  string
		want bool
	}{
		{"main.go", true},
		{"bank/account.go", true},
		{"bank/account_test.go", false},
		{"bank/testdata/x.go", false},
		{"vendor/example.com/lib/lib.go", false},
		{"_scratch/x.go", false},
		{"README.md", false},
	}

	for _, tt := range tests {
		if got := shouldInstrument(filepath.FromSlash(tt.rel)); got != tt.want {
			t.Errorf("shouldInstrument(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestReportErrors_Single(t *testing.T) {
	err := reportErrors("instrumentation failed", errors.New("a.go:1:1: boom"))
	if err.Error() != "instrumentation failed: a.go:1:1: boom" {
		t.Errorf("reportErrors() = %q", err.Error())
	}
}

func BenchmarkCreateWorkspace(b *testing.B) {
	dir := b.TempDir()
	for i := 0; i < b.N; i++ {
		w, err := createWorkspace(dir)
		if err != nil {
			b.Fatal(err)
		}
		w.cleanup()
	}
}
