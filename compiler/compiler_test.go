package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"goa.design/federator/ast"
	"goa.design/federator/compilestate"
	"goa.design/federator/dsl/parser"
)

type fakePackageIndex map[string]parser.PackageMeta

func (f fakePackageIndex) Lookup(pkg string) (parser.PackageMeta, bool) {
	m, ok := f[pkg]
	return m, ok
}

type fakeDataIndex map[string]bool

func (f fakeDataIndex) Known(name string) bool { return f[name] }

func TestCompileSnippetAppendsToMainGraph(t *testing.T) {
	pkgs := fakePackageIndex{"echo.run": {ArgNames: []string{"value"}}}
	data := fakeDataIndex{"input": true}

	state := compilestate.New()
	result, err := CompileSnippet(state, []byte(`let x := echo.run(Data("input"));`), pkgs, data, Options{What: "cell-1"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Edges)
	require.Len(t, state.Bodies[ast.MainFunc], len(result.Edges))
	require.Len(t, state.Table.Tasks, 1)
}

func TestCompileSnippetAcrossTwoCallsPreservesIndices(t *testing.T) {
	pkgs := fakePackageIndex{"echo.run": {}}
	data := fakeDataIndex{"input": true}
	state := compilestate.New()

	_, err := CompileSnippet(state, []byte(`let x := echo.run(Data("input"));`), pkgs, data, Options{})
	require.NoError(t, err)
	firstTaskCount := len(state.Table.Tasks)

	_, err = CompileSnippet(state, []byte(`let y := echo.run(Data("input"));`), pkgs, data, Options{})
	require.NoError(t, err)

	// The second snippet reuses the already-registered task rather than
	// allocating a new index for the same package.function target.
	require.Equal(t, firstTaskCount, len(state.Table.Tasks))
	require.Len(t, state.Table.Vars, 2)
}

func TestCompileSnippetRevertsStateOnSyntaxError(t *testing.T) {
	state := compilestate.New()
	before := len(state.Table.Vars)

	_, err := CompileSnippet(state, []byte(`let := ;`), nil, nil, Options{What: "bad"})
	require.Error(t, err)
	require.Len(t, state.Table.Vars, before)
	require.Empty(t, state.Bodies[ast.MainFunc])
}

func TestCompileOneShotProducesPlannableWorkflowShape(t *testing.T) {
	pkgs := fakePackageIndex{"echo.run": {ArgNames: []string{"value"}}}
	data := fakeDataIndex{"input": true}

	wf, warnings, err := Compile([]byte(`let x := echo.run(Data("input"));`), pkgs, data, Options{What: "main"})
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.NotEmpty(t, wf.Graph)
	require.Equal(t, ast.EdgeNode, wf.Graph[0].Kind)
	require.False(t, wf.IsPlanned(), "a freshly compiled workflow has no location assigned yet")
}
