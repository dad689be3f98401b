package taint

import (
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/taintage/registry"
)

// firstCall returns the first call expression in the file, depth first.
func firstCall(n *sitter.Node) *sitter.Node {
	if n.Type() == "call" {
		return n
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if call := firstCall(n.NamedChild(i)); call != nil {
			return call
		}
	}
	return nil
}

func TestResolve(t *testing.T) {
	tests := []struct {
		description string
		source      string
		shapes      map[string]Shape
		qualified   string
		confidence  Confidence
		sink        bool
		local       bool
	}{
		{
			description: "plain import sink",
			source:      "import pickle\npickle.load(f)\n",
			qualified:   "pickle.load",
			confidence:  Definite,
			sink:        true,
		},
		{
			description: "aliased import is transparent",
			source:      "import pickle as pk\npk.loads(data)\n",
			qualified:   "pickle.loads",
			confidence:  Definite,
			sink:        true,
		},
		{
			description: "from import sink",
			source:      "from pickle import loads\nloads(data)\n",
			qualified:   "pickle.loads",
			confidence:  Definite,
			sink:        true,
		},
		{
			description: "local function",
			source:      "def helper(x):\n    return x\nhelper(1)\n",
			qualified:   "helper",
			confidence:  Definite,
			local:       true,
		},
		{
			description: "import of a project module stays unresolved",
			source:      "from helpers import fetch\nfetch()\n",
			qualified:   "helpers.fetch",
			confidence:  Unresolved,
		},
		{
			description: "unknown bare name stays unresolved",
			source:      "transform(x)\n",
			qualified:   "transform",
			confidence:  Unresolved,
		},
		{
			description: "method on tracked handle is heuristic",
			source:      "f.read()\n",
			shapes:      map[string]Shape{"f": ShapeFileHandle},
			qualified:   "f.read",
			confidence:  Heuristic,
		},
		{
			description: "method on untracked value stays unresolved",
			source:      "f.read()\n",
			qualified:   "f.read",
			confidence:  Unresolved,
		},
	}
	for _, test := range tests {
		file := parseFile(t, test.source)
		table := Index(file)
		resolver := NewResolver(table, registry.Default())
		call := firstCall(file.Root)
		require.NotNil(t, call, test.description)

		resolved := resolver.Resolve(call, file.Source, test.shapes)
		assert.Equal(t, test.qualified, resolved.Qualified, test.description)
		assert.Equal(t, test.confidence, resolved.Confidence, test.description)
		if test.sink {
			assert.NotNil(t, resolved.SinkEntry(), test.description)
		}
		if test.local {
			require.NotNil(t, resolved.Callee, test.description)
			assert.Equal(t, test.qualified, resolved.Callee.Name, test.description)
		}
	}
}
