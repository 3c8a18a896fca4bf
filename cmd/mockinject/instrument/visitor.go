// Package instrument - Method selection.
//
// This file implements the first pass of the injector: walk the top-level
// declarations, decide which methods get a hook, and record everything the
// second pass needs to emit the prelude and the descriptor.
package instrument

import (
	"fmt"
	"go/ast"
	"go/token"
	"slices"
	"strings"
)

// InstrumentStats tracks instrumentation statistics.
//
// Use Case:
// Enable with -v flag to see what was hooked per file:
//
//	mockinject build -v ./...
//	Instrumented account.go:
//	  - 4 methods hooked (1 identity)
//	  - 2 methods skipped (2 value receivers)
//
// Thread Safety: NOT thread-safe (single-threaded instrumentation).
//
//nolint:revive // InstrumentStats is clear and descriptive despite stuttering
type InstrumentStats struct {
	MethodsHooked    int // Pointer-receiver methods that received a hook
	IdentityMethods  int // Hooked Equal/Hash methods
	FinalizerMethods int // Hooked Finalize methods (never intercepted at runtime)
	ReceiversNamed   int // Unnamed or blank receivers given a name
	ParamsNamed      int // Unnamed or blank parameters given a name

	ValueReceiversSkipped int // Methods with a value receiver
	GenericsSkipped       int // Methods of generic types
	ExcludedSkipped       int // Methods excluded by name
	TypesSkipped          int // Methods of types outside Options.Types
	BodilessSkipped       int // Methods declared without a body

	AlreadyInstrumented bool // File already carried hooks and was left unchanged
}

// Total returns the number of hooked methods.
func (s *InstrumentStats) Total() int {
	return s.MethodsHooked
}

// TotalSkipped returns the number of methods left untouched.
func (s *InstrumentStats) TotalSkipped() int {
	return s.ValueReceiversSkipped + s.GenericsSkipped + s.ExcludedSkipped +
		s.TypesSkipped + s.BodilessSkipped
}

// Add accumulates o into s.
func (s *InstrumentStats) Add(o InstrumentStats) {
	s.MethodsHooked += o.MethodsHooked
	s.IdentityMethods += o.IdentityMethods
	s.FinalizerMethods += o.FinalizerMethods
	s.ReceiversNamed += o.ReceiversNamed
	s.ParamsNamed += o.ParamsNamed
	s.ValueReceiversSkipped += o.ValueReceiversSkipped
	s.GenericsSkipped += o.GenericsSkipped
	s.ExcludedSkipped += o.ExcludedSkipped
	s.TypesSkipped += o.TypesSkipped
	s.BodilessSkipped += o.BodilessSkipped
}

// Static method kinds, spelled like the runtime's mock.Kind constants.
const (
	kindRegular   = "regular"
	kindFinalizer = "finalizer"
	kindEquals    = "equals"
	kindHash      = "hash"
)

// reservedPrefix marks identifiers the injector generates.
const reservedPrefix = "__mock"

// param is one declared parameter, after naming.
type param struct {
	name     string
	typ      string // source text of the type; element type when variadic
	variadic bool
}

// methodHook holds what the rewrite pass needs for one method.
type methodHook struct {
	decl       *ast.FuncDecl
	typeName   string
	recv       string
	params     []param
	results    []string // source text of each result type, names expanded
	kind       string
	descriptor string
	renames    []edit // names given to unnamed or blank receivers and parameters
}

// hookVisitor implements ast.Visitor over the top-level declarations.
//
// Like the rest of the injector it never modifies the AST: the selected
// methods are recorded and the rewrite pass edits the source text.
type hookVisitor struct {
	fset *token.FileSet
	tf   *token.File
	src  []byte
	opts *Options

	hooks   []*methodHook
	used    map[string]bool // descriptor names taken in this file
	planned []MethodPlan
	skipped []SkipPlan
	stats   InstrumentStats
	err     error
}

func newHookVisitor(fset *token.FileSet, file *ast.File, src []byte, opts *Options) *hookVisitor {
	return &hookVisitor{
		fset: fset,
		tf:   fset.File(file.Package),
		src:  src,
		opts: opts,
		used: make(map[string]bool),
	}
}

// Visit implements ast.Visitor. Only *ast.File is descended into, so
// methods are seen once and function literals are never hooked.
func (v *hookVisitor) Visit(node ast.Node) ast.Visitor {
	if v.err != nil {
		return nil
	}
	switch n := node.(type) {
	case *ast.File:
		return v
	case *ast.FuncDecl:
		if n.Recv != nil && len(n.Recv.List) == 1 {
			v.visitMethod(n)
		}
	}
	return nil
}

func (v *hookVisitor) visitMethod(fn *ast.FuncDecl) {
	name := fn.Name.Name
	recv := fn.Recv.List[0]

	typeName, pointer, generic := receiverType(recv.Type)
	skip := func(reason string, counter *int) {
		*counter++
		v.skipped = append(v.skipped, SkipPlan{
			Type:   typeName,
			Method: name,
			Line:   v.fset.Position(fn.Pos()).Line,
			Reason: reason,
		})
	}

	switch {
	case fn.Body == nil:
		skip(SkipNoBody, &v.stats.BodilessSkipped)
		return
	case generic:
		skip(SkipGeneric, &v.stats.GenericsSkipped)
		return
	case !pointer:
		skip(SkipValueReceiver, &v.stats.ValueReceiversSkipped)
		return
	case len(v.opts.Types) > 0 && !slices.Contains(v.opts.Types, typeName):
		skip(SkipType, &v.stats.TypesSkipped)
		return
	case slices.Contains(v.opts.ExcludeMethods, name):
		skip(SkipExcluded, &v.stats.ExcludedSkipped)
		return
	}

	if err := v.checkReserved(fn); err != nil {
		v.err = err
		return
	}

	h := &methodHook{
		decl:       fn,
		typeName:   typeName,
		descriptor: v.descriptorName(typeName, name),
	}

	h.recv = "__mockRecv"
	if len(recv.Names) == 1 && recv.Names[0].Name != "_" {
		h.recv = recv.Names[0].Name
	} else {
		h.renames = append(h.renames, v.nameEdit(recv, 0, h.recv))
		v.stats.ReceiversNamed++
	}

	for _, field := range fn.Type.Params.List {
		typ := field.Type
		p := param{}
		if e, ok := typ.(*ast.Ellipsis); ok {
			p.variadic = true
			typ = e.Elt
		}
		p.typ = v.text(typ)

		if len(field.Names) == 0 {
			p.name = fmt.Sprintf("__mockArg%d", len(h.params))
			h.renames = append(h.renames, v.nameEdit(field, 0, p.name))
			v.stats.ParamsNamed++
			h.params = append(h.params, p)
			continue
		}
		for i, id := range field.Names {
			p.name = id.Name
			if p.name == "_" {
				p.name = fmt.Sprintf("__mockArg%d", len(h.params))
				h.renames = append(h.renames, v.nameEdit(field, i, p.name))
				v.stats.ParamsNamed++
			}
			h.params = append(h.params, p)
		}
	}

	if fn.Type.Results != nil {
		for _, field := range fn.Type.Results.List {
			n := max(len(field.Names), 1)
			for i := 0; i < n; i++ {
				h.results = append(h.results, v.text(field.Type))
			}
		}
	}

	h.kind = staticKind(name, h.params, h.results)
	switch h.kind {
	case kindEquals, kindHash:
		v.stats.IdentityMethods++
	case kindFinalizer:
		v.stats.FinalizerMethods++
	}
	v.stats.MethodsHooked++

	v.hooks = append(v.hooks, h)
	v.planned = append(v.planned, MethodPlan{
		Type:       typeName,
		Method:     name,
		Kind:       h.kind,
		Line:       v.fset.Position(fn.Pos()).Line,
		Params:     len(h.params),
		Results:    len(h.results),
		Descriptor: h.descriptor,
	})
}

// checkReserved rejects declarations that already use generated names.
func (v *hookVisitor) checkReserved(fn *ast.FuncDecl) error {
	var found *ast.Ident
	ast.Inspect(fn, func(n ast.Node) bool {
		if found != nil {
			return false
		}
		if id, ok := n.(*ast.Ident); ok && strings.HasPrefix(id.Name, reservedPrefix) {
			found = id
		}
		return true
	})
	if found == nil {
		return nil
	}
	return NewInstrumentationErrorWithSuggestion(v.fset, found.Pos(),
		fmt.Sprintf("identifier %s uses the reserved prefix %s", found.Name, reservedPrefix),
		"Rename the identifier")
}

// descriptorName returns a descriptor variable name unique in the file.
// (*A).B_C and (*A_B).C share a base name; later ones get a numeric suffix.
func (v *hookVisitor) descriptorName(typeName, method string) string {
	base := fmt.Sprintf("%sMethod_%s_%s", reservedPrefix, typeName, method)
	name := base
	for n := 2; v.used[name]; n++ {
		name = fmt.Sprintf("%s_%d", base, n)
	}
	v.used[name] = true
	return name
}

// nameEdit names the idx-th identifier of field, or inserts a name before
// the type when the field has none.
func (v *hookVisitor) nameEdit(field *ast.Field, idx int, name string) edit {
	if len(field.Names) == 0 {
		off := v.tf.Offset(field.Type.Pos())
		return edit{off: off, end: off, text: name + " "}
	}
	id := field.Names[idx]
	return edit{off: v.tf.Offset(id.Pos()), end: v.tf.Offset(id.End()), text: name}
}

// text returns the source text of node.
func (v *hookVisitor) text(node ast.Node) string {
	return string(v.src[v.tf.Offset(node.Pos()):v.tf.Offset(node.End())])
}

// receiverType returns the base type name of a receiver expression.
func receiverType(expr ast.Expr) (name string, pointer, generic bool) {
	for {
		p, ok := expr.(*ast.ParenExpr)
		if !ok {
			break
		}
		expr = p.X
	}
	if star, ok := expr.(*ast.StarExpr); ok {
		pointer = true
		expr = star.X
	}
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name, pointer, false
	case *ast.IndexExpr:
		name, _, _ = receiverType(t.X)
		return name, pointer, true
	case *ast.IndexListExpr:
		name, _, _ = receiverType(t.X)
		return name, pointer, true
	}
	return "", pointer, false
}

// builtinIntegers are the result types accepted for a hash method.
var builtinIntegers = []string{
	"int", "int8", "int16", "int32", "int64",
	"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
}

// staticKind classifies a method by name and signature. It is stricter
// than the runtime classification, which sees only name and arity: an
// Equal that does not return bool cannot take an identity answer.
func staticKind(name string, params []param, results []string) string {
	switch {
	case name == "Finalize" && len(params) == 0 && len(results) == 0:
		return kindFinalizer
	case (name == "Equal" || name == "Equals") && len(params) == 1 && !params[0].variadic &&
		len(results) == 1 && results[0] == "bool":
		return kindEquals
	case (name == "Hash" || name == "HashCode") && len(params) == 0 &&
		len(results) == 1 && slices.Contains(builtinIntegers, results[0]):
		return kindHash
	}
	return kindRegular
}
