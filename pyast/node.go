package pyast

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Text returns the source text covered by n.
func Text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return string(src[n.StartByte():n.EndByte()])
}

// Line returns the 1-based line of n.
func Line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// DottedName flattens an identifier or attribute chain into its dotted parts,
// e.g. os.path.join into [os path join]. It returns nil when the chain
// contains anything but identifiers and attributes.
func DottedName(n *sitter.Node, src []byte) []string {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier":
		return []string{Text(n, src)}
	case "attribute":
		object := n.ChildByFieldName("object")
		attribute := n.ChildByFieldName("attribute")
		if object == nil || attribute == nil {
			return nil
		}
		prefix := DottedName(object, src)
		if prefix == nil {
			return nil
		}
		return append(prefix, Text(attribute, src))
	}
	return nil
}

// IsLiteral reports whether n is a constant literal expression. Strings with
// interpolations are not literal.
func IsLiteral(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "string", "concatenated_string":
		return len(Interpolations(n)) == 0
	case "integer", "float", "true", "false", "none":
		return true
	}
	return false
}

// Interpolations returns the embedded expressions of an f-string, if any.
func Interpolations(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	var result []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "interpolation":
			if expr := child.NamedChild(0); expr != nil {
				result = append(result, expr)
			}
		case "string":
			result = append(result, Interpolations(child)...)
		}
	}
	return result
}

// StringLiteral returns the unquoted text of a plain string node.
func StringLiteral(n *sitter.Node, src []byte) (string, bool) {
	if n == nil || n.Type() != "string" {
		return "", false
	}
	text := Text(n, src)
	text = strings.TrimLeft(text, "rRbBuUfF")
	for _, quote := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(text, quote) && strings.HasSuffix(text, quote) && len(text) >= 2*len(quote) {
			return text[len(quote) : len(text)-len(quote)], true
		}
	}
	return text, true
}
