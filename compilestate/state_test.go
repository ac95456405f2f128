package compilestate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/federator/ast"
	"goa.design/federator/compilestate"
)

func TestTableStateRoundTrip(t *testing.T) {
	t.Parallel()

	table := ast.NewSymTable()
	table.RegisterTask(ast.TaskDef{Name: "hello_world.print"})
	table.Results["r1"] = "L1"

	ts := compilestate.NewTableState(table)
	injected := ts.Inject()

	require.Len(t, injected.Tasks, len(table.Tasks))
	assert.Equal(t, table.Tasks[0].Name, injected.Tasks[0].Name)
	assert.Equal(t, "L1", injected.Results["r1"])
}

func TestTableStateInjectDoesNotAlias(t *testing.T) {
	t.Parallel()

	ts := compilestate.Empty()
	table1 := ts.Inject()
	table1.RegisterTask(ast.TaskDef{Name: "mutated"})

	table2 := ts.Inject()
	assert.Empty(t, table2.Tasks, "mutating one injected table must not affect the stored TableState")
}

func TestCompileStateCloneIsIndependent(t *testing.T) {
	t.Parallel()

	state := compilestate.New()
	state.Offset = 5
	state.Bodies["main"] = []ast.Edge{ast.StopEdge()}

	clone := state.Clone()
	clone.Offset = 10
	clone.Bodies["main"][0].Kind = ast.EdgeNode

	assert.Equal(t, 5, state.Offset)
	assert.Equal(t, ast.EdgeStop, state.Bodies["main"][0].Kind)
}

func TestDataStateExtendVar(t *testing.T) {
	t.Parallel()

	ds := compilestate.NewDataState()
	ds.SetVar("x", "D1")
	ds.ExtendVar("x", "D2")

	set := ds.GetVar("x")
	assert.Len(t, set, 2)
	assert.Contains(t, set, "D1")
	assert.Contains(t, set, "D2")
}
