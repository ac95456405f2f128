package ast_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/federator/ast"
)

func TestSymTableMonotonicIndices(t *testing.T) {
	t.Parallel()

	table := ast.NewSymTable()
	base := len(table.Funcs)

	idx1 := table.RegisterFunc(ast.FuncDef{Name: "a"})
	idx2 := table.RegisterFunc(ast.FuncDef{Name: "b"})

	assert.Equal(t, uint64(base), idx1)
	assert.Equal(t, uint64(base+1), idx2)

	f, ok := table.Func(idx1)
	require.True(t, ok)
	assert.Equal(t, "a", f.Name)
}

func TestWorkflowRoundTrip(t *testing.T) {
	t.Parallel()

	table := ast.NewSymTable()
	taskIdx := table.RegisterTask(ast.TaskDef{
		Kind:        ast.TaskCompute,
		Name:        "hello_world.print",
		PackageName: "hello_world",
	})

	wf := ast.New(table)
	result := "r1"
	wf.Graph = []ast.Edge{
		ast.NodeEdge(taskIdx, ast.RestrictedLocs("L1"), nil, &result, 1),
		ast.StopEdge(),
	}

	data, err := wf.Canonical()
	require.NoError(t, err)

	var decoded ast.Workflow
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, wf.ID, decoded.ID)
	assert.Len(t, decoded.Graph, 2)
	assert.Equal(t, ast.EdgeNode, decoded.Graph[0].Kind)
	assert.Equal(t, ast.EdgeStop, decoded.Graph[1].Kind)
}

func TestWorkflowIsPlanned(t *testing.T) {
	t.Parallel()

	table := ast.NewSymTable()
	wf := ast.New(table)
	wf.Graph = []ast.Edge{
		{Kind: ast.EdgeNode, Input: map[string]ast.NodeInput{
			"d1": {Name: ast.Data("D1")},
		}},
	}
	assert.False(t, wf.IsPlanned(), "node with unresolved input must not be planned")

	avail := ast.Available(ast.AccessKind{How: "File", Path: "/data/D1"})
	wf.Graph[0].At = "L1"
	wf.Graph[0].Input["d1"] = ast.NodeInput{Name: ast.Data("D1"), Availability: &avail}
	assert.True(t, wf.IsPlanned())
}

func TestWorkflowCloneDoesNotAlias(t *testing.T) {
	t.Parallel()

	table := ast.NewSymTable()
	wf := ast.New(table)
	wf.Graph = []ast.Edge{{Kind: ast.EdgeNode, Input: map[string]ast.NodeInput{
		"d1": {Name: ast.Data("D1")},
	}}}

	clone := wf.Clone()
	clone.Graph[0].At = "L1"

	assert.Empty(t, wf.Graph[0].At, "mutating the clone must not affect the original")
}
