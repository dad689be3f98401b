package taint

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/viant/taintage/pyast"
	"github.com/viant/taintage/registry"
)

const defaultMaxDepth = 8

// Analyzer runs a flow-sensitive forward taint walk over a single file.
// An Analyzer is stateless across files and safe for concurrent use on
// distinct files; the registry it holds is read-only.
type Analyzer struct {
	registry      *registry.Registry
	maxDepth      int
	reportUnknown bool
}

// New creates an analyzer over reg.
func New(reg *registry.Registry, opts ...Option) *Analyzer {
	a := &Analyzer{registry: reg, maxDepth: defaultMaxDepth, reportUnknown: true}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeFile indexes a parsed file and reports every taint flow that reaches
// a registered sink. Module-level code is walked as the implicit entry
// function, then every declared function is walked as a potential entry
// point; definite calls into local helpers descend depth-bounded. The result
// is deterministic for a given file.
func (a *Analyzer) AnalyzeFile(file *pyast.File) ([]*Finding, error) {
	if file.HasSyntaxError() {
		return nil, fmt.Errorf("%v: source contains syntax errors", file.Path)
	}
	table := Index(file)
	w := &walker{
		analyzer: a,
		file:     file,
		table:    table,
		resolver: NewResolver(table, a.registry),
		seen:     map[uint64]bool{},
	}
	w.walkBlock(file.Root, newStore(), 0, map[*FunctionDef]bool{})
	for _, def := range table.Functions {
		w.walkFunction(def)
	}
	return preferConcrete(w.findings), nil
}

// preferConcrete drops unknown-source witnesses at sinks where a concrete
// flow was also found.
func preferConcrete(findings []*Finding) []*Finding {
	concrete := map[string]bool{}
	for _, finding := range findings {
		if finding.Source != unknownSource {
			concrete[fmt.Sprintf("%v:%v:%v", finding.File, finding.Line, finding.Sink)] = true
		}
	}
	result := findings[:0]
	for _, finding := range findings {
		if finding.Source == unknownSource && concrete[fmt.Sprintf("%v:%v:%v", finding.File, finding.Line, finding.Sink)] {
			continue
		}
		result = append(result, finding)
	}
	return result
}

const unknownSource = "unknown"

// wrappers are open-like and path-construction calls that pass taint through.
var wrappers = map[string]Shape{
	"open":               ShapeFileHandle,
	"io.open":            ShapeFileHandle,
	"pathlib.Path":       ShapeNone,
	"os.path.join":       ShapeNone,
	"os.path.abspath":    ShapeNone,
	"os.path.expanduser": ShapeNone,
	"os.path.normpath":   ShapeNone,
}

// converters pass their argument's taint through unchanged.
var converters = map[string]bool{
	"str": true, "bytes": true, "bytearray": true, "os.fsdecode": true,
}

type walker struct {
	analyzer *Analyzer
	file     *pyast.File
	table    *SymbolTable
	resolver *Resolver
	context  Context
	findings []*Finding
	seen     map[uint64]bool
}

func (w *walker) src() []byte {
	return w.file.Source
}

// walkFunction analyzes one declared function as an entry point. Web-route
// handler parameters are seeded as live tainted input, task arguments as
// limited-reach tainted input, everything else as Unknown.
func (w *walker) walkFunction(def *FunctionDef) {
	w.context = classify(def)
	store := newStore()
	for _, param := range def.Params {
		switch w.context.Kind {
		case ContextWebRoute:
			store.set(param.Name, tainted(fmt.Sprintf("route parameter %v", param.Name), def.Line, true))
		case ContextTaskExecution:
			store.set(param.Name, tainted(fmt.Sprintf("task argument %v", param.Name), def.Line, false))
		default:
			store.set(param.Name, unknown())
		}
	}
	if def.Body == nil {
		return
	}
	w.walkBlock(def.Body, store, 0, map[*FunctionDef]bool{def: true})
	w.context = Context{}
}

// walkBlock walks the statements of a block in order and returns the union
// of the labels flowing out of its return statements.
func (w *walker) walkBlock(block *sitter.Node, store *Store, depth int, visited map[*FunctionDef]bool) Label {
	ret := clean()
	for i := 0; i < int(block.NamedChildCount()); i++ {
		ret = union(ret, w.walkStatement(block.NamedChild(i), store, depth, visited))
	}
	return ret
}

func (w *walker) walkStatement(stmt *sitter.Node, store *Store, depth int, visited map[*FunctionDef]bool) Label {
	switch stmt.Type() {
	case "expression_statement":
		for i := 0; i < int(stmt.NamedChildCount()); i++ {
			child := stmt.NamedChild(i)
			switch child.Type() {
			case "assignment":
				w.assign(child, store, depth, visited)
			case "augmented_assignment":
				w.augment(child, store, depth, visited)
			default:
				w.eval(child, store, depth, visited)
			}
		}
	case "if_statement":
		return w.walkIf(stmt, store, depth, visited)
	case "for_statement":
		return w.walkFor(stmt, store, depth, visited)
	case "while_statement":
		return w.walkWhile(stmt, store, depth, visited)
	case "try_statement":
		return w.walkTry(stmt, store, depth, visited)
	case "with_statement":
		return w.walkWith(stmt, store, depth, visited)
	case "return_statement":
		if expr := stmt.NamedChild(0); expr != nil {
			return w.eval(expr, store, depth, visited)
		}
	case "raise_statement", "assert_statement":
		for i := 0; i < int(stmt.NamedChildCount()); i++ {
			w.eval(stmt.NamedChild(i), store, depth, visited)
		}
	}
	return clean()
}

// walkIf analyzes every arm from the pre-state and merges by union; a
// missing else arm unions the pre-state itself.
func (w *walker) walkIf(stmt *sitter.Node, store *Store, depth int, visited map[*FunctionDef]bool) Label {
	w.eval(stmt.ChildByFieldName("condition"), store, depth, visited)
	ret := clean()
	var branches []*Store
	hasElse := false
	if consequence := stmt.ChildByFieldName("consequence"); consequence != nil {
		branch := store.clone()
		ret = union(ret, w.walkBlock(consequence, branch, depth, visited))
		branches = append(branches, branch)
	}
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		child := stmt.NamedChild(i)
		switch child.Type() {
		case "elif_clause":
			w.eval(child.ChildByFieldName("condition"), store, depth, visited)
			if consequence := child.ChildByFieldName("consequence"); consequence != nil {
				branch := store.clone()
				ret = union(ret, w.walkBlock(consequence, branch, depth, visited))
				branches = append(branches, branch)
			}
		case "else_clause":
			hasElse = true
			if body := elseBody(child); body != nil {
				branch := store.clone()
				ret = union(ret, w.walkBlock(body, branch, depth, visited))
				branches = append(branches, branch)
			}
		}
	}
	if !hasElse {
		branches = append(branches, store)
	}
	store.replace(mergeStores(branches...))
	return ret
}

// walkFor binds the loop variable to the iterable's label; the body may run
// zero times, so its outcome is unioned with the pre-state.
func (w *walker) walkFor(stmt *sitter.Node, store *Store, depth int, visited map[*FunctionDef]bool) Label {
	iterable := w.eval(stmt.ChildByFieldName("right"), store, depth, visited)
	branch := store.clone()
	if left := stmt.ChildByFieldName("left"); left != nil {
		w.bindTarget(left, iterable, ShapeNone, branch)
	}
	ret := clean()
	if body := stmt.ChildByFieldName("body"); body != nil {
		ret = union(ret, w.walkBlock(body, branch, depth, visited))
	}
	branches := []*Store{store, branch}
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		if child := stmt.NamedChild(i); child.Type() == "else_clause" {
			if body := elseBody(child); body != nil {
				alt := store.clone()
				ret = union(ret, w.walkBlock(body, alt, depth, visited))
				branches = append(branches, alt)
			}
		}
	}
	store.replace(mergeStores(branches...))
	return ret
}

func (w *walker) walkWhile(stmt *sitter.Node, store *Store, depth int, visited map[*FunctionDef]bool) Label {
	w.eval(stmt.ChildByFieldName("condition"), store, depth, visited)
	branch := store.clone()
	ret := clean()
	if body := stmt.ChildByFieldName("body"); body != nil {
		ret = union(ret, w.walkBlock(body, branch, depth, visited))
	}
	store.replace(mergeStores(store, branch))
	return ret
}

// walkTry treats body, handlers, else and finally as alternative paths.
func (w *walker) walkTry(stmt *sitter.Node, store *Store, depth int, visited map[*FunctionDef]bool) Label {
	ret := clean()
	branches := []*Store{store}
	walkArm := func(block *sitter.Node) {
		if block == nil {
			return
		}
		branch := store.clone()
		ret = union(ret, w.walkBlock(block, branch, depth, visited))
		branches = append(branches, branch)
	}
	walkArm(stmt.ChildByFieldName("body"))
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		child := stmt.NamedChild(i)
		switch child.Type() {
		case "except_clause", "finally_clause", "else_clause":
			walkArm(lastBlock(child))
		}
	}
	store.replace(mergeStores(branches...))
	return ret
}

// walkWith evaluates each context expression and binds its alias, so that
// "with open(path) as f" gives f the handle's label and shape.
func (w *walker) walkWith(stmt *sitter.Node, store *Store, depth int, visited map[*FunctionDef]bool) Label {
	if clause := firstNamedOfType(stmt, "with_clause"); clause != nil {
		for i := 0; i < int(clause.NamedChildCount()); i++ {
			item := clause.NamedChild(i)
			if item.Type() != "with_item" {
				continue
			}
			expr := item.ChildByFieldName("value")
			if expr == nil {
				expr = item.NamedChild(0)
			}
			target := item.ChildByFieldName("alias")
			if expr != nil && expr.Type() == "as_pattern" {
				target = expr.ChildByFieldName("alias")
				expr = expr.NamedChild(0)
			}
			if expr == nil {
				continue
			}
			label, shape := w.evalWithShape(expr, store, depth, visited)
			if name := targetName(target, w.src()); name != "" {
				store.set(name, label)
				store.setShape(name, shape)
			}
		}
	}
	if body := stmt.ChildByFieldName("body"); body != nil {
		return w.walkBlock(body, store, depth, visited)
	}
	return clean()
}

func (w *walker) assign(n *sitter.Node, store *Store, depth int, visited map[*FunctionDef]bool) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil || right == nil {
		// annotation without value, e.g. "x: int"
		return
	}
	label, shape := w.evalWithShape(right, store, depth, visited)
	if label.State == Tainted {
		label = label.withHop(fmt.Sprintf("assigned to %v", pyast.Text(left, w.src())), pyast.Line(n))
	}
	w.bindTarget(left, label, shape, store)
}

func (w *walker) augment(n *sitter.Node, store *Store, depth int, visited map[*FunctionDef]bool) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil || right == nil || left.Type() != "identifier" {
		return
	}
	name := pyast.Text(left, w.src())
	current, _ := store.get(name)
	label := union(current, w.eval(right, store, depth, visited))
	if label.State == Tainted && current.State != Tainted {
		label = label.withHop(fmt.Sprintf("accumulated into %v", name), pyast.Line(n))
	}
	store.set(name, label)
}

func (w *walker) bindTarget(left *sitter.Node, label Label, shape Shape, store *Store) {
	switch left.Type() {
	case "identifier":
		name := pyast.Text(left, w.src())
		store.set(name, label)
		store.setShape(name, shape)
	case "pattern_list", "tuple_pattern", "list_pattern":
		for i := 0; i < int(left.NamedChildCount()); i++ {
			w.bindTarget(left.NamedChild(i), label, ShapeNone, store)
		}
	case "attribute", "subscript":
		// writing into an object or container taints the whole value
		if base := pyast.DottedName(left, w.src()); base != nil {
			if current, ok := store.get(base[0]); ok {
				store.set(base[0], union(current, label))
			}
		}
	}
}

func (w *walker) eval(n *sitter.Node, store *Store, depth int, visited map[*FunctionDef]bool) Label {
	label, _ := w.evalWithShape(n, store, depth, visited)
	return label
}

func (w *walker) evalWithShape(n *sitter.Node, store *Store, depth int, visited map[*FunctionDef]bool) (Label, Shape) {
	if n == nil {
		return clean(), ShapeNone
	}
	switch n.Type() {
	case "identifier":
		name := pyast.Text(n, w.src())
		if label, ok := store.get(name); ok {
			return label, store.shape(name)
		}
		if binding := w.table.Bindings[name]; binding != nil && binding.Kind == KindValue && pyast.IsLiteral(binding.Value) {
			return clean(), ShapeNone
		}
		return unknown(), ShapeNone
	case "string", "concatenated_string":
		label := clean()
		for _, expr := range pyast.Interpolations(n) {
			label = union(label, w.eval(expr, store, depth, visited))
		}
		return label, ShapeNone
	case "integer", "float", "true", "false", "none", "lambda", "ellipsis":
		return clean(), ShapeNone
	case "call":
		return w.evalCall(n, store, depth, visited)
	case "attribute":
		return w.evalAttribute(n, store, depth, visited), ShapeNone
	case "subscript":
		return w.evalSubscript(n, store, depth, visited)
	case "binary_operator", "boolean_operator", "comparison_operator", "conditional_expression":
		label := clean()
		for i := 0; i < int(n.NamedChildCount()); i++ {
			label = union(label, w.eval(n.NamedChild(i), store, depth, visited))
		}
		return label, ShapeNone
	case "parenthesized_expression", "await", "keyword_argument", "unary_operator", "not_operator":
		if n.Type() == "keyword_argument" {
			return w.evalWithShape(n.ChildByFieldName("value"), store, depth, visited)
		}
		return w.evalWithShape(n.NamedChild(int(n.NamedChildCount())-1), store, depth, visited)
	case "list", "tuple", "set", "dictionary", "pair", "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression", "for_in_clause":
		label := clean()
		for i := 0; i < int(n.NamedChildCount()); i++ {
			label = union(label, w.eval(n.NamedChild(i), store, depth, visited))
		}
		return label, ShapeNone
	}
	return unknown(), ShapeNone
}

// evalAttribute recognizes registry source attributes such as request.form
// and otherwise propagates the base object's taint.
func (w *walker) evalAttribute(n *sitter.Node, store *Store, depth int, visited map[*FunctionDef]bool) Label {
	parts := pyast.DottedName(n, w.src())
	if parts != nil {
		if entry := w.sourceFor(parts); entry != nil {
			return tainted(entry.Display, pyast.Line(n), entry.Live)
		}
		if label, ok := store.get(parts[0]); ok && label.State == Tainted {
			return label
		}
		return unknown()
	}
	if object := n.ChildByFieldName("object"); object != nil {
		if label := w.eval(object, store, depth, visited); label.State == Tainted {
			return label
		}
	}
	return unknown()
}

// evalSubscript takes the container's label, so request.files["f"] carries
// the source taint of request.files.
func (w *walker) evalSubscript(n *sitter.Node, store *Store, depth int, visited map[*FunctionDef]bool) (Label, Shape) {
	value := n.ChildByFieldName("value")
	label, shape := w.evalWithShape(value, store, depth, visited)
	if label.State != Tainted {
		return label, ShapeNone
	}
	if parts := pyast.DottedName(value, w.src()); len(parts) > 0 && parts[len(parts)-1] == "files" {
		shape = ShapeUpload
	}
	return label, shape
}

func (w *walker) evalCall(call *sitter.Node, store *Store, depth int, visited map[*FunctionDef]bool) (Label, Shape) {
	line := pyast.Line(call)
	resolved := w.resolver.Resolve(call, w.src(), store.shapes)
	args := callArgs(call)

	if entry := resolved.SourceEntry(); entry != nil {
		for _, arg := range args {
			w.eval(arg, store, depth, visited)
		}
		return tainted(entry.Display, line, entry.Live), ShapeNone
	}
	if entry := resolved.SinkEntry(); entry != nil {
		return w.evalSink(entry, args, store, depth, visited, line), ShapeNone
	}
	if shape, ok := wrappers[resolved.Qualified]; ok {
		label := w.unionArgs(args, store, depth, visited)
		if label.State == Tainted {
			label = label.withHop(fmt.Sprintf("%v(...)", resolved.Qualified), line)
			label.Wrapped = true
			return label, shape
		}
		return clean(), shape
	}
	if converters[resolved.Qualified] {
		return w.unionArgs(args, store, depth, visited), ShapeNone
	}
	if resolved.Callee != nil {
		return w.descend(resolved.Callee, args, store, depth, visited, line), ShapeNone
	}
	if resolved.Confidence == Heuristic {
		if label, shape, ok := w.evalMethod(resolved, args, store, depth, visited, line); ok {
			return label, shape
		}
	}
	// unresolved call: taint passes through and never comes back clean
	label := w.unionArgs(args, store, depth, visited)
	if label.State == Tainted {
		return label.withHop(fmt.Sprintf("through %v(...)", resolved.Qualified), line), ShapeNone
	}
	return unknown(), ShapeNone
}

// evalSink checks every argument of a registered sink call and reports
// findings; the return value stays Clean unless the sink re-exposes input.
func (w *walker) evalSink(entry *registry.Entry, args []*sitter.Node, store *Store, depth int, visited map[*FunctionDef]bool, line int) Label {
	result := clean()
	for i, arg := range args {
		label := w.eval(arg, store, depth, visited)
		w.report(entry, label, line, i)
		if entry.ReExposesInput && label.State == Tainted {
			result = union(result, label.withHop(fmt.Sprintf("re-exposed by %v", entry.Display), line))
		}
	}
	return result
}

// evalMethod handles method calls on values with a tracked shape: reading a
// handle yields the handle's taint, saving an upload taints the saved path.
func (w *walker) evalMethod(resolved ResolvedCall, args []*sitter.Node, store *Store, depth int, visited map[*FunctionDef]bool, line int) (Label, Shape, bool) {
	parts := strings.Split(resolved.Qualified, ".")
	head, method := parts[0], parts[len(parts)-1]
	base, _ := store.get(head)
	switch method {
	case "read", "readline", "readlines":
		if base.State == Tainted {
			label := base.withHop(fmt.Sprintf("%v.%v()", head, method), line)
			label.Heuristic = true
			return label, ShapeNone, true
		}
		return unknown(), ShapeNone, true
	case "save":
		if store.shape(head) == ShapeUpload && base.State == Tainted && len(args) > 0 && args[0].Type() == "identifier" {
			// upload.save(path) makes the path's target attacker controlled
			name := pyast.Text(args[0], w.src())
			label := base.withHop(fmt.Sprintf("%v.save(%v)", head, name), line)
			label.Heuristic = true
			store.set(name, label)
		}
		return clean(), ShapeNone, true
	}
	return clean(), ShapeNone, false
}

// descend walks a definite local callee with argument labels bound to its
// parameters. Depth and recursion bounds degrade the result to Unknown.
func (w *walker) descend(def *FunctionDef, args []*sitter.Node, store *Store, depth int, visited map[*FunctionDef]bool, line int) Label {
	if depth >= w.analyzer.maxDepth || visited[def] {
		return unknown()
	}
	visited[def] = true
	defer delete(visited, def)
	child := newStore()
	pos := 0
	for _, arg := range args {
		label := w.eval(arg, store, depth, visited)
		name := ""
		if arg.Type() == "keyword_argument" {
			name = pyast.Text(arg.ChildByFieldName("name"), w.src())
		} else if pos < len(def.Params) {
			name = def.Params[pos].Name
			pos++
		}
		if name == "" {
			continue
		}
		if label.State == Tainted {
			label = label.withHop(fmt.Sprintf("passed to %v(%v)", def.Name, name), line)
		}
		child.set(name, label)
	}
	for i := pos; i < len(def.Params); i++ {
		if _, ok := child.get(def.Params[i].Name); !ok {
			child.set(def.Params[i].Name, clean())
		}
	}
	if def.Body == nil {
		return unknown()
	}
	ret := w.walkBlock(def.Body, child, depth+1, visited)
	if ret.State == Tainted {
		ret = ret.withHop(fmt.Sprintf("returned from %v()", def.Name), line)
	}
	return ret
}

func (w *walker) unionArgs(args []*sitter.Node, store *Store, depth int, visited map[*FunctionDef]bool) Label {
	label := clean()
	for _, arg := range args {
		label = union(label, w.eval(arg, store, depth, visited))
	}
	return label
}

// sourceFor matches a dotted attribute chain against the registry, trying
// the spelled name first and the import-substituted name second.
func (w *walker) sourceFor(parts []string) *registry.Entry {
	name := strings.Join(parts, ".")
	if entry := w.analyzer.registry.Source(name); entry != nil {
		return entry
	}
	if binding := w.table.Bindings[parts[0]]; binding != nil && binding.Kind == KindImport {
		qualified := strings.Join(append([]string{binding.Target}, parts[1:]...), ".")
		if entry := w.analyzer.registry.Source(qualified); entry != nil {
			return entry
		}
	}
	return nil
}

func (w *walker) report(entry *registry.Entry, label Label, line, arg int) {
	switch label.State {
	case Clean:
		return
	case Unknown:
		if !w.analyzer.reportUnknown {
			return
		}
	}
	source := unknownSource
	sourceLine := 0
	if len(label.Trace) > 0 {
		source = label.Trace[0].Note
		sourceLine = label.Trace[0].Line
	}
	fp := fingerprint(w.file.Path, line, entry.Display, source, sourceLine, arg)
	if w.seen[fp] {
		return
	}
	w.seen[fp] = true
	w.findings = append(w.findings, &Finding{
		File:        w.file.Path,
		Line:        line,
		Sink:        entry.Display,
		Source:      source,
		Trace:       label.Trace,
		Risk:        riskFor(label),
		Context:     w.context,
		Fingerprint: fp,
	})
}

func callArgs(call *sitter.Node) []*sitter.Node {
	list := call.ChildByFieldName("arguments")
	if list == nil {
		return nil
	}
	var args []*sitter.Node
	for i := 0; i < int(list.NamedChildCount()); i++ {
		arg := list.NamedChild(i)
		if arg.Type() == "comment" {
			continue
		}
		args = append(args, arg)
	}
	return args
}

func elseBody(clause *sitter.Node) *sitter.Node {
	if body := clause.ChildByFieldName("body"); body != nil {
		return body
	}
	return firstNamedOfType(clause, "block")
}

func lastBlock(clause *sitter.Node) *sitter.Node {
	var block *sitter.Node
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		if child := clause.NamedChild(i); child.Type() == "block" {
			block = child
		}
	}
	return block
}

func firstNamedOfType(n *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == nodeType {
			return child
		}
	}
	return nil
}

func targetName(target *sitter.Node, src []byte) string {
	if target == nil {
		return ""
	}
	if target.Type() == "identifier" {
		return pyast.Text(target, src)
	}
	if child := target.NamedChild(0); child != nil && child.Type() == "identifier" {
		return pyast.Text(child, src)
	}
	return ""
}
