// instrument_test.go tests the 'mockinject instrument' command.
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/kolkov/inlinemock/cmd/mockinject/instrument"
)

const bankSrc = `package bank

type Account struct{ balance int }

func (a *Account) Balance() int { return a.balance }

func (a Account) Copy() Account { return a }
`

// newTree creates files below a temporary directory.
func newTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		writeFile(t, filepath.Join(dir, name), content)
	}
	return dir
}

func TestParseInstrumentArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantSources []string
		wantOutput  string
		wantPlan    bool
		wantErr     bool
	}{
		{name: "default", args: nil, wantSources: []string{"."}},
		{name: "files", args: []string{"a.go", "b.go"}, wantSources: []string{"a.go", "b.go"}},
		{name: "output", args: []string{"-o", "out", "./..."}, wantSources: []string{"./..."}, wantOutput: "out"},
		{name: "output equals", args: []string{"-o=out"}, wantSources: []string{"."}, wantOutput: "out"},
		{name: "plan", args: []string{"-plan", "-v", "."}, wantSources: []string{"."}, wantPlan: true},
		{name: "plan with output", args: []string{"-plan", "-o", "out"}, wantErr: true},
		{name: "missing output", args: []string{"-o"}, wantErr: true},
		{name: "unknown flag", args: []string{"-x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := parseInstrumentArgs(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseInstrumentArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !slices.Equal(config.sources, tt.wantSources) {
				t.Errorf("sources = %v, want %v", config.sources, tt.wantSources)
			}
			if config.outputDir != tt.wantOutput || config.plan != tt.wantPlan {
				t.Errorf("outputDir = %q, plan = %v", config.outputDir, config.plan)
			}
		})
	}
}

func TestCollectSources(t *testing.T) {
	dir := newTree(t, map[string]string{
		"main.go":                "package main\n",
		"main_test.go":           "package main\n",
		"bank/account.go":        bankSrc,
		"bank/sub/ledger.go":     "package sub\n",
		"bank/testdata/fixed.go": "package fixed\n",
		".hidden/x.go":           "package x\n",
		"notes.txt":              "text\n",
	})

	tests := []struct {
		name    string
		sources []string
		want    []string
	}{
		{"current directory", []string{"."}, []string{"main.go"}},
		{"single file", []string{"bank/account.go"}, []string{"bank/account.go"}},
		{"recursive", []string{"./..."}, []string{"bank/account.go", "bank/sub/ledger.go", "main.go"}},
		{"recursive subtree", []string{"./bank/..."}, []string{"bank/account.go", "bank/sub/ledger.go"}},
		{"duplicates removed", []string{"bank", "bank/account.go"}, []string{"bank/account.go"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := collectSources(tt.sources, dir)
			if err != nil {
				t.Fatalf("collectSources() error: %v", err)
			}
			var got []string
			for _, f := range files {
				rel, _ := filepath.Rel(dir, f)
				got = append(got, filepath.ToSlash(rel))
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("collectSources(%v) = %v, want %v", tt.sources, got, tt.want)
			}
		})
	}
}

func TestCollectSources_NonExistent(t *testing.T) {
	if _, err := collectSources([]string{"missing.go"}, t.TempDir()); err == nil {
		t.Error("Expected error for missing source")
	}
}

func TestHasGoFiles(t *testing.T) {
	dir := newTree(t, map[string]string{
		"go/a.go":       "package a\n",
		"nogo/read.txt": "text\n",
	})

	for name, want := range map[string]bool{"go": true, "nogo": false} {
		got, err := hasGoFiles(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("hasGoFiles(%s) error: %v", name, err)
		}
		if got != want {
			t.Errorf("hasGoFiles(%s) = %v, want %v", name, got, want)
		}
	}
}

// TestInstrumentFiles_AggregatesErrors tests that every broken file is
// reported and the good ones are still instrumented.
func TestInstrumentFiles_AggregatesErrors(t *testing.T) {
	dir := newTree(t, map[string]string{
		"good.go":     bankSrc,
		"bad1.go":     "package bank\nfunc (\n",
		"bad2.go":     "package bank\ntype {\n",
		"nomethod.go": "package bank\n",
	})
	files, err := collectSources([]string{"."}, dir)
	if err != nil {
		t.Fatal(err)
	}

	results, err := instrumentFiles(files, &instrument.Options{})
	if err == nil {
		t.Fatal("Expected aggregated error")
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results))
	}

	msg := reportErrors("instrumentation failed", err).Error()
	if !strings.Contains(msg, "bad1.go") || !strings.Contains(msg, "bad2.go") || !strings.Contains(msg, "2 errors") {
		t.Errorf("Report does not name both files:\n%s", msg)
	}
	t.Logf("Report:\n%s", msg)
}

func TestWritePlan(t *testing.T) {
	dir := newTree(t, map[string]string{"bank/account.go": bankSrc})
	files, err := collectSources([]string{"bank"}, dir)
	if err != nil {
		t.Fatal(err)
	}
	results, err := instrumentFiles(files, nil)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := writePlan(&buf, results); err != nil {
		t.Fatalf("writePlan() error: %v", err)
	}

	var plans []instrument.FilePlan
	if err := yaml.Unmarshal(buf.Bytes(), &plans); err != nil {
		t.Fatalf("Plan is not valid YAML: %v\n%s", err, buf.String())
	}
	if len(plans) != 1 || plans[0].Package != "bank" {
		t.Fatalf("Unexpected plan: %+v", plans)
	}
	if len(plans[0].Methods) != 1 || plans[0].Methods[0].Method != "Balance" {
		t.Errorf("Methods = %+v, want Balance", plans[0].Methods)
	}
	if len(plans[0].Skipped) != 1 || plans[0].Skipped[0].Reason != instrument.SkipValueReceiver {
		t.Errorf("Skipped = %+v, want Copy as value receiver", plans[0].Skipped)
	}
	t.Logf("Plan:\n%s", buf.String())
}

func TestWriteOutputs(t *testing.T) {
	dir := newTree(t, map[string]string{"bank/account.go": bankSrc})
	out := t.TempDir()

	files, err := collectSources([]string{"./..."}, dir)
	if err != nil {
		t.Fatal(err)
	}
	results, err := instrumentFiles(files, nil)
	if err != nil {
		t.Fatal(err)
	}

	config := &instrumentConfig{outputDir: out, workDir: dir}
	if err := writeOutputs(results, config); err != nil {
		t.Fatalf("writeOutputs() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(out, "bank", "account.go"))
	if err != nil {
		t.Fatalf("Instrumented copy missing: %v", err)
	}
	if !strings.Contains(string(data), "__mockMethod_Account_Balance") {
		t.Errorf("Copy is not instrumented:\n%s", data)
	}
}

func TestPrintOutputs(t *testing.T) {
	results := []fileResult{
		{path: "a.go", result: &instrument.InstrumentResult{Code: "package a\n"}},
		{path: "b.go", result: &instrument.InstrumentResult{Code: "package b\n"}},
	}

	var buf bytes.Buffer
	if err := printOutputs(&buf, results); err != nil {
		t.Fatal(err)
	}
	want := "// a.go\npackage a\n// b.go\npackage b\n"
	if buf.String() != want {
		t.Errorf("printOutputs() = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	if err := printOutputs(&buf, results[:1]); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "package a\n" {
		t.Errorf("Single file output = %q, want code only", buf.String())
	}
}
