package taint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/taintage/registry"
)

func analyze(t *testing.T, source string, opts ...Option) []*Finding {
	t.Helper()
	findings, err := New(registry.Default(), opts...).AnalyzeFile(parseFile(t, source))
	require.NoError(t, err)
	return findings
}

func TestAnalyzeRouteHandler(t *testing.T) {
	source := `import pickle
from flask import app

@app.route("/load")
def load_profile(user_path):
    return pickle.load(open(user_path))
`
	findings := analyze(t, source)
	require.Len(t, findings, 1)
	finding := findings[0]
	assert.Equal(t, "pickle.load", finding.Sink)
	assert.Equal(t, "route parameter user_path", finding.Source)
	assert.Equal(t, High, finding.Risk)
	assert.Equal(t, 6, finding.Line)
	assert.Equal(t, ContextWebRoute, finding.Context.Kind)
	assert.Equal(t, "GET", finding.Context.Method)
	assert.Equal(t, "/load", finding.Context.Path)
	require.Len(t, finding.Trace, 2)
	assert.Equal(t, "open(...)", finding.Trace[1].Note)
}

func TestAnalyzeModuleLevel(t *testing.T) {
	source := `import pickle
import sys

payload = sys.argv[1]
data = pickle.loads(payload)
`
	findings := analyze(t, source)
	require.Len(t, findings, 1)
	finding := findings[0]
	assert.Equal(t, "pickle.loads", finding.Sink)
	assert.Equal(t, "sys.argv", finding.Source)
	assert.Equal(t, High, finding.Risk)
	assert.Equal(t, 5, finding.Line)
	assert.Equal(t, ContextNone, finding.Context.Kind)
}

func TestAnalyzeYamlFromRequest(t *testing.T) {
	source := `import yaml
from flask import Flask, request

app = Flask(__name__)

@app.route("/config", methods=["POST"])
def update_config():
    yaml.load(request.form["data"])
`
	findings := analyze(t, source)
	require.Len(t, findings, 1)
	finding := findings[0]
	assert.Equal(t, "yaml.load", finding.Sink)
	assert.Equal(t, "request.form", finding.Source)
	assert.Equal(t, High, finding.Risk)
	assert.Equal(t, ContextWebRoute, finding.Context.Kind)
}

func TestAnalyzeAliasTransparency(t *testing.T) {
	source := `import pickle as pk

def handler():
    pk.loads(input())
`
	findings := analyze(t, source)
	require.Len(t, findings, 1)
	assert.Equal(t, "pickle.loads", findings[0].Sink)
	assert.Equal(t, "input", findings[0].Source)
	assert.Equal(t, High, findings[0].Risk)
}

func TestAnalyzeBranchUnion(t *testing.T) {
	source := `import pickle

def read_payload(use_stdin):
    data = "{}"
    if use_stdin:
        data = input()
    pickle.loads(data)
`
	findings := analyze(t, source)
	require.Len(t, findings, 1)
	finding := findings[0]
	assert.Equal(t, "input", finding.Source)
	assert.Equal(t, High, finding.Risk)
	assert.Equal(t, ContextFileOperation, finding.Context.Kind)
}

func TestAnalyzeUnresolvedNeverClean(t *testing.T) {
	source := `import pickle

def run():
    raw = transform(input())
    pickle.loads(raw)
`
	findings := analyze(t, source)
	require.Len(t, findings, 1)
	finding := findings[0]
	assert.Equal(t, "input", finding.Source)
	// indirection through an unresolved call lengthens the chain
	assert.Equal(t, Medium, finding.Risk)
}

func TestAnalyzeUnknownPolicy(t *testing.T) {
	source := `import pickle
from helpers import fetch_blob

def load_cache():
    data = fetch_blob()
    pickle.loads(data)
`
	findings := analyze(t, source)
	require.Len(t, findings, 1)
	assert.Equal(t, "unknown", findings[0].Source)
	assert.Equal(t, Low, findings[0].Risk)

	// recall-first reporting is configurable
	assert.Empty(t, analyze(t, source, WithUnknownFindings(false)))
}

func TestAnalyzeInterprocedural(t *testing.T) {
	source := `import pickle
from flask import app

def parse_blob(blob):
    return pickle.loads(blob)

@app.route("/upload")
def upload(data):
    return parse_blob(data)
`
	findings := analyze(t, source)
	require.Len(t, findings, 1)
	finding := findings[0]
	// the sink reports at the callee's line with the caller's context
	assert.Equal(t, 5, finding.Line)
	assert.Equal(t, "route parameter data", finding.Source)
	assert.Equal(t, High, finding.Risk)
	assert.Equal(t, ContextWebRoute, finding.Context.Kind)
}

func TestAnalyzeDepthBound(t *testing.T) {
	source := `import pickle

def leaf():
    return input()

def mid():
    return leaf()

def top():
    pickle.loads(mid())
`
	findings := analyze(t, source)
	require.Len(t, findings, 1)
	assert.Equal(t, "input", findings[0].Source)
	assert.Equal(t, Medium, findings[0].Risk)

	// at the bound the value degrades to Unknown, never Clean
	bounded := analyze(t, source, WithMaxDepth(1))
	require.Len(t, bounded, 1)
	assert.Equal(t, "unknown", bounded[0].Source)
	assert.Equal(t, Low, bounded[0].Risk)
}

func TestAnalyzeRecursion(t *testing.T) {
	source := `import pickle

def loop(x):
    return loop(x)

def run():
    pickle.loads(loop(input()))
`
	findings := analyze(t, source)
	require.Len(t, findings, 1)
	assert.Equal(t, "unknown", findings[0].Source)
	assert.Equal(t, Low, findings[0].Risk)
}

func TestAnalyzeDistinctArguments(t *testing.T) {
	source := `import shelve
import sys

def run():
    first = input()
    second = sys.argv[0]
    shelve.open(first, second)
`
	findings := analyze(t, source)
	require.Len(t, findings, 2)
	sources := []string{findings[0].Source, findings[1].Source}
	assert.Contains(t, sources, "input")
	assert.Contains(t, sources, "sys.argv")
	assert.Equal(t, findings[0].Line, findings[1].Line)
	assert.NotEqual(t, findings[0].Fingerprint, findings[1].Fingerprint)
}

func TestAnalyzeSameSourceDistinctArguments(t *testing.T) {
	source := `import shelve

def run():
    first = input()
    second = input()
    shelve.open(first, second)
`
	findings := analyze(t, source)
	require.Len(t, findings, 2)
	assert.Equal(t, "input", findings[0].Source)
	assert.Equal(t, "input", findings[1].Source)
	assert.Equal(t, findings[0].Line, findings[1].Line)
	assert.NotEqual(t, findings[0].Fingerprint, findings[1].Fingerprint)
}

func TestAnalyzeUploadSave(t *testing.T) {
	source := `import pickle
from flask import request

def save_upload():
    dest = "/tmp/data.bin"
    f = request.files["payload"]
    f.save(dest)
    pickle.load(open(dest))
`
	findings := analyze(t, source)
	require.Len(t, findings, 1)
	finding := findings[0]
	assert.Equal(t, "request.files", finding.Source)
	assert.Equal(t, Medium, finding.Risk)
	assert.Equal(t, ContextFileOperation, finding.Context.Kind)
}

func TestAnalyzeFileReadHeuristic(t *testing.T) {
	source := `import pickle
from flask import app

@app.route("/load/<path>")
def load(path):
    f = open(path)
    pickle.loads(f.read())
`
	findings := analyze(t, source)
	require.Len(t, findings, 1)
	finding := findings[0]
	assert.Equal(t, "route parameter path", finding.Source)
	assert.Equal(t, Medium, finding.Risk)
	notes := make([]string, 0, len(finding.Trace))
	for _, hop := range finding.Trace {
		notes = append(notes, hop.Note)
	}
	assert.Contains(t, notes, "f.read()")
}

func TestAnalyzeReExposingSink(t *testing.T) {
	reg := registry.New(
		&registry.Entry{Name: "pickle.load", Role: registry.RoleSink},
		&registry.Entry{Name: "pickle.loads", Role: registry.RoleSink, ReExposesInput: true},
		&registry.Entry{Name: "input", Role: registry.RoleSource, Live: true},
	)
	source := `import pickle

def run():
    data = pickle.loads(input())
    pickle.load(data)
`
	findings, err := New(reg).AnalyzeFile(parseFile(t, source))
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "pickle.loads", findings[0].Sink)
	assert.Equal(t, "pickle.load", findings[1].Sink)
	assert.Equal(t, "input", findings[1].Source)
}

func TestAnalyzeSinkReturnIsCleanByDefault(t *testing.T) {
	source := `import pickle

def run():
    data = pickle.loads(input())
    pickle.load(data)
`
	findings := analyze(t, source)
	// only the first sink fires: its return does not re-expose input
	require.Len(t, findings, 1)
	assert.Equal(t, "pickle.loads", findings[0].Sink)
}

func TestAnalyzeIdempotence(t *testing.T) {
	source := `import pickle

def run():
    pickle.loads(input())
`
	file := parseFile(t, source)
	analyzer := New(registry.Default())
	first, err := analyzer.AnalyzeFile(file)
	require.NoError(t, err)
	second, err := analyzer.AnalyzeFile(file)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAnalyzeSyntaxError(t *testing.T) {
	_, err := New(registry.Default()).AnalyzeFile(parseFile(t, "def broken(:\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax errors")
}
