package taint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/taintage/pyast"
)

func parseFile(t *testing.T, source string) *pyast.File {
	t.Helper()
	file, err := pyast.NewParser().Parse(context.Background(), []byte(source), "app.py")
	require.NoError(t, err)
	t.Cleanup(file.Close)
	return file
}

func TestIndex(t *testing.T) {
	source := `import pickle
import numpy as np
from flask import request
from yaml import safe_load as load_config
from os import *

CONFIG_PATH = "/etc/app.yaml"

@app.route("/load", methods=["POST"])
def load_profile(user_path, limit=10):
    """Load a stored profile."""
    return user_path

class Cache:
    pass

def load_profile(path):
    return path
`
	table := Index(parseFile(t, source))

	pickleBinding := table.Bindings["pickle"]
	require.NotNil(t, pickleBinding)
	assert.Equal(t, KindImport, pickleBinding.Kind)
	assert.Equal(t, "pickle", pickleBinding.Target)

	np := table.Bindings["np"]
	require.NotNil(t, np)
	assert.Equal(t, "numpy", np.Target)

	request := table.Bindings["request"]
	require.NotNil(t, request)
	assert.Equal(t, "flask.request", request.Target)

	loadConfig := table.Bindings["load_config"]
	require.NotNil(t, loadConfig)
	assert.Equal(t, "yaml.safe_load", loadConfig.Target)

	// star import leaves a gap, never an error
	require.Len(t, table.Gaps, 1)
	assert.Contains(t, table.Gaps[0], "star import")

	configPath := table.Bindings["CONFIG_PATH"]
	require.NotNil(t, configPath)
	assert.Equal(t, KindValue, configPath.Kind)

	cache := table.Bindings["Cache"]
	require.NotNil(t, cache)
	assert.Equal(t, KindClass, cache.Kind)

	// both definitions are walked, the later one wins the binding
	require.Len(t, table.Functions, 2)
	def := table.Bindings["load_profile"].Def
	require.NotNil(t, def)
	assert.Equal(t, KindFunction, table.Bindings["load_profile"].Kind)
	assert.Equal(t, []Param{{Name: "path"}}, def.Params)

	first := table.Functions[0]
	assert.Equal(t, []Param{{Name: "user_path"}, {Name: "limit", HasDefault: true}}, first.Params)
	assert.Equal(t, "Load a stored profile.", first.Docstring)
	require.Len(t, first.Decorators, 1)
	assert.Equal(t, "app.route", first.Decorators[0].Name)
	assert.Equal(t, []string{"/load"}, first.Decorators[0].Args)
}

func TestIndexTotality(t *testing.T) {
	// nothing indexable still yields a usable table
	table := Index(parseFile(t, "x[0] = 1\nprint(x)\n"))
	assert.NotNil(t, table.Bindings)
	assert.Empty(t, table.Functions)
}
