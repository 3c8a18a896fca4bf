// Package instrument implements source-level instrumentation that inserts
// interception hooks into pointer-receiver methods.
//
// This package provides the core functionality of the mockinject tool. It
// parses a Go source file, selects the methods to hook, and rewrites each
// one so that it asks the mock runtime whether the call on its receiver is
// intercepted before running its own body.
//
// Algorithm:
//  1. Parse the Go source file using go/parser
//  2. Walk the declarations to select hookable methods
//  3. Name unnamed receivers and parameters (the prelude must refer to them)
//  4. Insert the hook prelude at the start of each selected body
//  5. Append one method descriptor per hooked method
//  6. Add the mock runtime import (astutil) and format (go/format)
//
// Example Transformation:
//
//	// INPUT (original code):
//	func (a *Account) Deposit(n int) (int, error) {
//		a.balance += n
//		return a.balance, nil
//	}
//
//	// OUTPUT (instrumented code):
//	func (a *Account) Deposit(n int) (int, error) {
//		if __mockCall := mock.Enter(a, __mockMethod_Account_Deposit, n); __mockCall.Replaces() {
//			__mockOut, __mockErr := mock.Exit(__mockCall)
//			return mock.Out[int](__mockOut, 0), mock.Err(__mockOut, 1, __mockErr)
//		}
//		a.balance += n
//		return a.balance, nil
//	}
//
//	var __mockMethod_Account_Deposit *mock.Method
//
//	func init() {
//		__mockMethod_Account_Deposit = &mock.Method{ ... Body: calls a.Deposit ... }
//	}
//
// Descriptors are assigned in init because their bodies call the hooked
// methods, which read the descriptors; a package-level initializer would
// form an initialization cycle.
//
// Thread Safety: InstrumentFile does not share state between calls and may
// be called concurrently on different files.
package instrument

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"io"
	"os"
)

const (
	// MockPackageImportPath is the import path of the mock runtime API.
	// This will be injected into instrumented files.
	MockPackageImportPath = "github.com/kolkov/inlinemock/mock"

	// MockPackageAlias is the default local name of the runtime package.
	MockPackageAlias = "mock"

	// fallbackAlias is used when "mock" is already taken in the file.
	fallbackAlias = "inlinemock"

	// hookMarker is the variable declared by every hook prelude.
	hookMarker = "__mockCall"
)

// Options selects what to instrument.
type Options struct {
	// Types restricts hooking to methods of these receiver type names.
	// Empty means every type in the file.
	Types []string

	// ExcludeMethods lists method names that are never hooked.
	ExcludeMethods []string
}

// InstrumentResult holds the result of instrumentation.
//
//nolint:revive // InstrumentResult is clear and descriptive despite stuttering
type InstrumentResult struct {
	Code  string          // Instrumented source code
	Stats InstrumentStats // Instrumentation statistics
	Plan  FilePlan        // What was hooked and skipped, per method
}

// InstrumentFile instruments a single Go source file with interception
// hooks.
//
// Parameters:
//   - filename: Path to the Go source file (used for error messages)
//   - src: Source code to instrument. Can be:
//   - nil: Read from filename
//   - []byte: Use provided bytes
//   - string: Use provided string
//   - io.Reader: Read from reader
//   - opts: Type and method selection, nil for everything
//
// Returns:
//   - *InstrumentResult: Result containing code, statistics and plan
//   - error: *InstrumentationError for syntax errors, or another error if
//     code generation fails
//
// A file that already carries hooks is returned unchanged with
// Stats.AlreadyInstrumented set. A file without hookable methods is
// returned unchanged too, without the runtime import.
//
//nolint:revive // InstrumentFile is the standard API naming for this operation
func InstrumentFile(filename string, src any, opts *Options) (*InstrumentResult, error) {
	if opts == nil {
		opts = &Options{}
	}

	data, err := readSource(filename, src)
	if err != nil {
		return nil, err
	}

	// Step 1: Parse source file into AST.
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, data, parser.ParseComments)
	if err != nil {
		return nil, syntaxError(filename, err)
	}

	result := &InstrumentResult{
		Code: string(data),
		Plan: FilePlan{File: filename, Package: file.Name.Name},
	}

	if hasHooks(file) {
		result.Stats.AlreadyInstrumented = true
		return result, nil
	}

	// Step 2: Select methods.
	v := newHookVisitor(fset, file, data, opts)
	ast.Walk(v, file)
	if err := v.err; err != nil {
		return nil, err
	}

	result.Stats = v.stats
	result.Plan.Methods = v.planned
	result.Plan.Skipped = v.skipped

	if len(v.hooks) == 0 {
		return result, nil
	}

	// Steps 3-6: Rewrite.
	code, err := rewrite(fset, file, data, v.hooks)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code for %s: %w", filename, err)
	}
	result.Code = code

	return result, nil
}

// hasHooks reports whether a method of file already starts with a hook
// prelude. Mentions of the marker in comments or strings do not count.
func hasHooks(file *ast.File) bool {
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil || fn.Body == nil || len(fn.Body.List) == 0 {
			continue
		}
		ifStmt, ok := fn.Body.List[0].(*ast.IfStmt)
		if !ok {
			continue
		}
		assign, ok := ifStmt.Init.(*ast.AssignStmt)
		if !ok || len(assign.Lhs) != 1 {
			continue
		}
		if id, ok := assign.Lhs[0].(*ast.Ident); ok && id.Name == hookMarker {
			return true
		}
	}
	return false
}

// readSource returns the bytes to parse, following go/parser's conventions
// for the src argument.
func readSource(filename string, src any) ([]byte, error) {
	switch s := src.(type) {
	case nil:
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", filename, err)
		}
		return data, nil
	case []byte:
		return s, nil
	case string:
		return []byte(s), nil
	case io.Reader:
		data, err := io.ReadAll(s)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", filename, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("invalid source type %T for %s", src, filename)
	}
}

// syntaxError converts the first parser error into an InstrumentationError.
func syntaxError(filename string, err error) error {
	var list scanner.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		first := list[0]
		return &InstrumentationError{
			File:       first.Pos.Filename,
			Line:       first.Pos.Line,
			Column:     first.Pos.Column,
			Message:    first.Msg,
			Suggestion: "Fix the syntax error; run 'gofmt -e' to list all of them",
		}
	}
	return fmt.Errorf("failed to parse file %s: %w", filename, err)
}
