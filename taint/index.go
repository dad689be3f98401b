package taint

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/viant/taintage/pyast"
)

// BindingKind classifies what a module-level name refers to.
type BindingKind string

const (
	KindFunction BindingKind = "function"
	KindClass    BindingKind = "class"
	KindImport   BindingKind = "import"
	KindValue    BindingKind = "value"
)

// Binding records a single module-level name binding.
type Binding struct {
	Name   string
	Kind   BindingKind
	Target string       // fully qualified dotted name for imports
	Def    *FunctionDef // definition for local functions
	Value  *sitter.Node // right-hand side for module values
	Line   int
}

// Param describes one function parameter.
type Param struct {
	Name       string
	HasDefault bool
}

// Decorator retains a decorator's dotted name and its literal string arguments.
type Decorator struct {
	Name string
	Args []string
	Line int
}

// FunctionDef retains enough of a def statement to classify it and descend
// into its body.
type FunctionDef struct {
	Name       string
	Node       *sitter.Node
	Body       *sitter.Node
	Params     []Param
	Decorators []Decorator
	Docstring  string
	Line       int
}

// SymbolTable holds the module-level bindings of a single file. Indexing is
// total: any file that parses yields a table, and constructs the indexer
// cannot classify are recorded as gaps, never as errors.
type SymbolTable struct {
	Path      string
	Bindings  map[string]*Binding
	Functions []*FunctionDef // in source order
	Gaps      []string
}

// Index builds the symbol table for a parsed file in a single pass over its
// top-level statements. Later bindings shadow earlier ones.
func Index(file *pyast.File) *SymbolTable {
	table := &SymbolTable{Path: file.Path, Bindings: map[string]*Binding{}}
	root := file.Root
	for i := 0; i < int(root.NamedChildCount()); i++ {
		table.indexStatement(root.NamedChild(i), file.Source)
	}
	return table
}

func (t *SymbolTable) bind(b *Binding) {
	t.Bindings[b.Name] = b
}

func (t *SymbolTable) gap(format string, args ...interface{}) {
	t.Gaps = append(t.Gaps, fmt.Sprintf(format, args...))
}

func (t *SymbolTable) indexStatement(n *sitter.Node, src []byte) {
	switch n.Type() {
	case "import_statement":
		t.indexImport(n, src)
	case "import_from_statement":
		t.indexImportFrom(n, src)
	case "function_definition":
		t.indexFunction(n, src, nil)
	case "class_definition":
		t.indexClass(n, src)
	case "decorated_definition":
		decorators := extractDecorators(n, src)
		if def := n.ChildByFieldName("definition"); def != nil {
			switch def.Type() {
			case "function_definition":
				t.indexFunction(def, src, decorators)
			case "class_definition":
				t.indexClass(def, src)
			}
		}
	case "expression_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() == "assignment" {
				t.indexAssignment(child, src)
			}
		}
	}
}

// indexImport handles "import a.b.c" and "import numpy as np". Python binds
// the top name of a plain import, so "import a.b.c" binds a to a.
func (t *SymbolTable) indexImport(n *sitter.Node, src []byte) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			module := pyast.Text(child, src)
			head := strings.Split(module, ".")[0]
			t.bind(&Binding{Name: head, Kind: KindImport, Target: head, Line: pyast.Line(n)})
		case "aliased_import":
			module := pyast.Text(child.ChildByFieldName("name"), src)
			alias := pyast.Text(child.ChildByFieldName("alias"), src)
			if alias != "" && module != "" {
				t.bind(&Binding{Name: alias, Kind: KindImport, Target: module, Line: pyast.Line(n)})
			}
		}
	}
}

// indexImportFrom handles "from m import n", "from m import n as y" and
// records star imports as gaps. The module part precedes the import keyword,
// the imported names follow it.
func (t *SymbolTable) indexImportFrom(n *sitter.Node, src []byte) {
	module := ""
	afterImport := false
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == "import" {
			afterImport = true
			continue
		}
		switch child.Type() {
		case "dotted_name":
			if !afterImport {
				module = pyast.Text(child, src)
				continue
			}
			name := pyast.Text(child, src)
			t.bind(&Binding{Name: name, Kind: KindImport, Target: joinModule(module, name), Line: pyast.Line(n)})
		case "relative_import":
			module = pyast.Text(child, src)
		case "aliased_import":
			name := pyast.Text(child.ChildByFieldName("name"), src)
			alias := pyast.Text(child.ChildByFieldName("alias"), src)
			if alias != "" && name != "" {
				t.bind(&Binding{Name: alias, Kind: KindImport, Target: joinModule(module, name), Line: pyast.Line(n)})
			}
		case "wildcard_import":
			t.gap("line %v: star import from %v hides bindings", pyast.Line(n), module)
		}
	}
}

func joinModule(module, name string) string {
	if module == "" {
		return name
	}
	return module + "." + name
}

func (t *SymbolTable) indexFunction(n *sitter.Node, src []byte, decorators []Decorator) {
	name := pyast.Text(n.ChildByFieldName("name"), src)
	if name == "" {
		return
	}
	def := &FunctionDef{
		Name:       name,
		Node:       n,
		Body:       n.ChildByFieldName("body"),
		Params:     extractParams(n.ChildByFieldName("parameters"), src),
		Decorators: decorators,
		Docstring:  extractDocstring(n.ChildByFieldName("body"), src),
		Line:       pyast.Line(n),
	}
	t.bind(&Binding{Name: name, Kind: KindFunction, Def: def, Line: def.Line})
	t.Functions = append(t.Functions, def)
}

func (t *SymbolTable) indexClass(n *sitter.Node, src []byte) {
	name := pyast.Text(n.ChildByFieldName("name"), src)
	if name == "" {
		return
	}
	t.bind(&Binding{Name: name, Kind: KindClass, Line: pyast.Line(n)})
}

func (t *SymbolTable) indexAssignment(n *sitter.Node, src []byte) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil || right == nil {
		return
	}
	switch left.Type() {
	case "identifier":
		t.bind(&Binding{Name: pyast.Text(left, src), Kind: KindValue, Value: right, Line: pyast.Line(n)})
	case "pattern_list", "tuple_pattern":
		for i := 0; i < int(left.NamedChildCount()); i++ {
			target := left.NamedChild(i)
			if target.Type() == "identifier" {
				t.bind(&Binding{Name: pyast.Text(target, src), Kind: KindValue, Line: pyast.Line(n)})
			}
		}
	}
}

func extractParams(parameters *sitter.Node, src []byte) []Param {
	if parameters == nil {
		return nil
	}
	var params []Param
	for i := 0; i < int(parameters.NamedChildCount()); i++ {
		child := parameters.NamedChild(i)
		switch child.Type() {
		case "identifier":
			params = append(params, Param{Name: pyast.Text(child, src)})
		case "typed_parameter":
			if name := child.NamedChild(0); name != nil && name.Type() == "identifier" {
				params = append(params, Param{Name: pyast.Text(name, src)})
			}
		case "default_parameter", "typed_default_parameter":
			params = append(params, Param{Name: pyast.Text(child.ChildByFieldName("name"), src), HasDefault: true})
		case "list_splat_pattern", "dictionary_splat_pattern":
			if name := child.NamedChild(0); name != nil && name.Type() == "identifier" {
				params = append(params, Param{Name: pyast.Text(name, src)})
			}
		}
	}
	return params
}

func extractDecorators(n *sitter.Node, src []byte) []Decorator {
	var decorators []Decorator
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "decorator" {
			continue
		}
		expr := child.NamedChild(0)
		if expr == nil {
			continue
		}
		decorator := Decorator{Line: pyast.Line(child)}
		switch expr.Type() {
		case "identifier", "attribute":
			decorator.Name = strings.Join(pyast.DottedName(expr, src), ".")
		case "call":
			decorator.Name = strings.Join(pyast.DottedName(expr.ChildByFieldName("function"), src), ".")
			if args := expr.ChildByFieldName("arguments"); args != nil {
				for j := 0; j < int(args.NamedChildCount()); j++ {
					arg := args.NamedChild(j)
					if text, ok := pyast.StringLiteral(arg, src); ok {
						decorator.Args = append(decorator.Args, text)
					}
				}
			}
		}
		if decorator.Name != "" {
			decorators = append(decorators, decorator)
		}
	}
	return decorators
}

func extractDocstring(body *sitter.Node, src []byte) string {
	if body == nil {
		return ""
	}
	first := body.NamedChild(0)
	if first == nil || first.Type() != "expression_statement" {
		return ""
	}
	if text, ok := pyast.StringLiteral(first.NamedChild(0), src); ok {
		return text
	}
	return ""
}
