package taint

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/viant/taintage/pyast"
	"github.com/viant/taintage/registry"
)

// Confidence states how certain a call resolution is.
type Confidence int

const (
	Unresolved Confidence = iota
	Heuristic
	Definite
)

func (c Confidence) String() string {
	switch c {
	case Definite:
		return "definite"
	case Heuristic:
		return "heuristic"
	}
	return "unresolved"
}

// ResolvedCall is the outcome of resolving a single call expression.
type ResolvedCall struct {
	Qualified  string
	Confidence Confidence
	Callee     *FunctionDef    // set for definite local calls
	Entry      *registry.Entry // set when the name is a known source or sink
}

// SourceEntry returns the registry source the call resolved to, or nil.
func (r ResolvedCall) SourceEntry() *registry.Entry {
	if r.Entry != nil && r.Entry.Role == registry.RoleSource {
		return r.Entry
	}
	return nil
}

// SinkEntry returns the registry sink the call resolved to, or nil.
func (r ResolvedCall) SinkEntry() *registry.Entry {
	if r.Entry != nil && r.Entry.Role == registry.RoleSink {
		return r.Entry
	}
	return nil
}

// Resolver maps call expressions to registry entries or local definitions
// using a single file's symbol table. Resolution never leaves the file:
// names imported from other project modules stay Unresolved.
type Resolver struct {
	table    *SymbolTable
	registry *registry.Registry
}

// NewResolver builds a resolver over table and reg. Resolution is pure; the
// table is never mutated.
func NewResolver(table *SymbolTable, reg *registry.Registry) *Resolver {
	return &Resolver{table: table, registry: reg}
}

// Resolve classifies the callee of a call node. The shapes map carries value
// shapes of local variables so that method calls on tracked values, such as
// file handles, resolve heuristically.
func (r *Resolver) Resolve(call *sitter.Node, src []byte, shapes map[string]Shape) ResolvedCall {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ResolvedCall{}
	}
	parts := pyast.DottedName(fn, src)
	if parts == nil {
		// callee is itself a call, subscript or lambda
		return ResolvedCall{Qualified: pyast.Text(fn, src)}
	}
	raw := strings.Join(parts, ".")
	qualified := raw
	binding := r.table.Bindings[parts[0]]
	if binding != nil && binding.Kind == KindImport {
		qualified = strings.Join(append([]string{binding.Target}, parts[1:]...), ".")
	}
	if entry := r.registry.Lookup(qualified); entry != nil {
		return ResolvedCall{Qualified: qualified, Confidence: Definite, Entry: entry}
	}
	if qualified != raw {
		if entry := r.registry.Lookup(raw); entry != nil {
			return ResolvedCall{Qualified: raw, Confidence: Definite, Entry: entry}
		}
	}
	if len(parts) == 1 && binding != nil && binding.Kind == KindFunction {
		return ResolvedCall{Qualified: raw, Confidence: Definite, Callee: binding.Def}
	}
	if len(parts) > 1 && shapes != nil && shapes[parts[0]] != ShapeNone {
		return ResolvedCall{Qualified: raw, Confidence: Heuristic}
	}
	return ResolvedCall{Qualified: qualified}
}
