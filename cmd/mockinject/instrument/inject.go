// Package instrument - Code generation.
//
// This file implements the second pass: text edits for the hook preludes
// and parameter names, the descriptor block, the runtime import, and final
// formatting.
package instrument

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"path"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/tools/go/ast/astutil"
)

// edit replaces src[off:end] with text. off == end inserts.
type edit struct {
	off, end int
	text     string
}

// rewrite applies the hooks to src and returns formatted code.
//
// Edits are made on the source text rather than the AST so that comments
// stay attached where the author put them. The result is parsed again to
// add the import with astutil, which also validates the generated code.
func rewrite(fset *token.FileSet, file *ast.File, src []byte, hooks []*methodHook) (string, error) {
	alias := runtimeAlias(file)
	tf := fset.File(file.Package)

	var edits []edit
	for _, h := range hooks {
		edits = append(edits, h.renames...)
		off := tf.Offset(h.decl.Body.Lbrace) + 1
		edits = append(edits, edit{off: off, end: off, text: "\n" + prelude(h, alias)})
	}

	out := applyEdits(src, edits)
	out = append(out, descriptors(hooks, alias)...)

	outSet := token.NewFileSet()
	outFile, err := parser.ParseFile(outSet, tf.Name(), out, parser.ParseComments)
	if err != nil {
		return "", fmt.Errorf("generated code does not parse: %w", err)
	}

	name := alias
	if name == MockPackageAlias {
		name = ""
	}
	astutil.AddNamedImport(outSet, outFile, name, MockPackageImportPath)

	var buf bytes.Buffer
	if err := format.Node(&buf, outSet, outFile); err != nil {
		return "", fmt.Errorf("failed to format: %w", err)
	}
	return buf.String(), nil
}

// applyEdits applies non-overlapping edits back to front so earlier offsets
// stay valid.
func applyEdits(src []byte, edits []edit) []byte {
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].off > edits[j].off })

	out := append([]byte(nil), src...)
	for _, e := range edits {
		tail := append([]byte(e.text), out[e.end:]...)
		out = append(out[:e.off], tail...)
	}
	return out
}

// runtimeAlias picks the local name of the runtime package: the existing
// import's name if the file already imports it, "mock" if that name is
// free, otherwise "inlinemock".
func runtimeAlias(file *ast.File) string {
	taken := false
	for _, imp := range file.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		if p == MockPackageImportPath {
			if imp.Name == nil {
				return MockPackageAlias
			}
			if imp.Name.Name != "_" && imp.Name.Name != "." {
				return imp.Name.Name
			}
			continue
		}
		if imp.Name == nil && path.Base(p) == MockPackageAlias {
			taken = true
		}
	}

	if !taken {
		ast.Inspect(file, func(n ast.Node) bool {
			if id, ok := n.(*ast.Ident); ok && id.Name == MockPackageAlias {
				taken = true
			}
			return !taken
		})
	}
	if taken {
		return fallbackAlias
	}
	return MockPackageAlias
}

// prelude returns the statement inserted at the top of a hooked method.
func prelude(h *methodHook, alias string) string {
	enterArgs := []string{h.recv, h.descriptor}
	for _, p := range h.params {
		enterArgs = append(enterArgs, p.name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "if __mockCall := %s.Enter(%s); __mockCall.Replaces() {\n",
		alias, strings.Join(enterArgs, ", "))

	n := len(h.results)
	outs := make([]string, n)
	for i := range outs {
		outs[i] = outExpr(h, alias, i)
	}

	switch {
	case n == 0:
		fmt.Fprintf(&b, "%s.MustExit(__mockCall)\nreturn\n", alias)
	case h.results[n-1] == "error":
		fmt.Fprintf(&b, "__mockOut, __mockErr := %s.Exit(__mockCall)\n", alias)
		outs[n-1] = fmt.Sprintf("%s.Err(__mockOut, %d, __mockErr)", alias, n-1)
		fmt.Fprintf(&b, "return %s\n", strings.Join(outs, ", "))
	default:
		fmt.Fprintf(&b, "__mockOut := %s.MustExit(__mockCall)\n", alias)
		fmt.Fprintf(&b, "return %s\n", strings.Join(outs, ", "))
	}

	b.WriteString("}\n")
	return b.String()
}

func outExpr(h *methodHook, alias string, i int) string {
	if h.kind == kindHash {
		return fmt.Sprintf("%s.HashOut[%s](__mockOut, %d)", alias, h.results[i], i)
	}
	return fmt.Sprintf("%s.Out[%s](__mockOut, %d)", alias, h.results[i], i)
}

// descriptors returns the descriptor variables and the init function that
// assigns them.
func descriptors(hooks []*methodHook, alias string) []byte {
	var b bytes.Buffer

	b.WriteString("\n// Method descriptors for the interception hooks above.\nvar (\n")
	for _, h := range hooks {
		fmt.Fprintf(&b, "%s *%s.Method\n", h.descriptor, alias)
	}
	b.WriteString(")\n\nfunc init() {\n")
	for _, h := range hooks {
		fmt.Fprintf(&b, "%s = &%s.Method{\n", h.descriptor, alias)
		fmt.Fprintf(&b, "Type: %q,\nName: %q,\nNumIn: %d,\nKind: %s.%s,\n",
			h.typeName, h.decl.Name.Name, len(h.params), alias, kindConst(h.kind))
		fmt.Fprintf(&b, "Body: func(__mockSelf any, __mockArgs []any) []any {\n%s},\n", body(h, alias))
		b.WriteString("}\n")
	}
	b.WriteString("}\n")
	return b.Bytes()
}

// body returns the statements of a descriptor's Body: call the method on
// the receiver with typed arguments and box the results.
func body(h *methodHook, alias string) string {
	args := make([]string, len(h.params))
	for i, p := range h.params {
		if p.variadic {
			args[i] = fmt.Sprintf("%s.Arg[[]%s](__mockArgs, %d)...", alias, p.typ, i)
			continue
		}
		args[i] = fmt.Sprintf("%s.Arg[%s](__mockArgs, %d)", alias, p.typ, i)
	}
	call := fmt.Sprintf("__mockSelf.(*%s).%s(%s)", h.typeName, h.decl.Name.Name, strings.Join(args, ", "))

	switch n := len(h.results); n {
	case 0:
		return call + "\nreturn nil\n"
	case 1:
		return "return []any{" + call + "}\n"
	default:
		names := make([]string, n)
		for i := range names {
			names[i] = fmt.Sprintf("__mockR%d", i)
		}
		list := strings.Join(names, ", ")
		return fmt.Sprintf("%s := %s\nreturn []any{%s}\n", list, call, list)
	}
}

func kindConst(kind string) string {
	switch kind {
	case kindFinalizer:
		return "KindFinalizer"
	case kindEquals:
		return "KindEquals"
	case kindHash:
		return "KindHash"
	default:
		return "KindRegular"
	}
}
