package pyast

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Parser turns Python source into a traversable syntax tree.
// A Parser is not safe for concurrent use; create one per goroutine.
type Parser struct {
	parser *sitter.Parser
}

// NewParser creates a parser configured with the Python grammar.
func NewParser() *Parser {
	p := &Parser{parser: sitter.NewParser()}
	p.parser.SetLanguage(python.GetLanguage())
	return p
}

// File holds a single parsed Python source file.
type File struct {
	Path   string
	Source []byte
	Root   *sitter.Node
	tree   *sitter.Tree
}

// Parse parses source and returns the file wrapper. Syntax errors do not fail
// the parse; callers check HasSyntaxError to decide whether to proceed.
func (p *Parser) Parse(ctx context.Context, source []byte, path string) (*File, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %v: %w", path, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %v", path)
	}
	return &File{Path: path, Source: source, Root: tree.RootNode(), tree: tree}, nil
}

// HasSyntaxError reports whether the tree contains any error node. Legacy
// Python 2 constructs such as print statements surface here as well.
func (f *File) HasSyntaxError() bool {
	return f.Root.HasError()
}

// Close releases the underlying tree.
func (f *File) Close() {
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
}
