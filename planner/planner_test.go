package planner

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"goa.design/federator/ast"
	"goa.design/federator/errs"
	"goa.design/federator/infra"
	"goa.design/federator/planner/sessionstore/memstore"
)

type fakeData map[string]map[string]infra.AccessInfo

func (f fakeData) Known(name string) bool { _, ok := f[name]; return ok }

func (f fakeData) Locations(name string) (map[string]infra.AccessInfo, bool) {
	hosts, ok := f[name]
	return hosts, ok
}

type fakeCaps map[string][]string

func (f fakeCaps) Capabilities(_ context.Context, location string) ([]string, error) {
	return f[location], nil
}

func strPtr(s string) *string { return &s }

func newWorkflow(t *testing.T, taskName string, requirements []ast.Capability, edges []ast.Edge) *ast.Workflow {
	t.Helper()
	table := ast.NewSymTable()
	table.RegisterTask(ast.TaskDef{Kind: ast.TaskCompute, Name: taskName, Requirements: requirements})
	wf := ast.New(table)
	wf.Graph = edges
	return wf
}

func TestPlanAssignsLocationAndResolvesDataInput(t *testing.T) {
	edges := []ast.Edge{
		ast.NodeEdge(0, ast.AllLocs(), map[string]ast.NodeInput{"value": {Name: ast.Data("input")}}, strPtr("x"), 1),
		ast.StopEdge(),
	}
	wf := newWorkflow(t, "echo.run", nil, edges)

	data := fakeData{"input": {"loc-a": {How: "file", Path: "/data/input"}}}
	caps := fakeCaps{"loc-a": {"cpu"}}
	p := New(data, caps, []string{"loc-a", "loc-b"})

	require.NoError(t, p.Plan(context.Background(), wf, ""))

	require.Equal(t, "loc-a", wf.Graph[0].At)
	require.True(t, wf.Graph[0].Locs.IsPlanned())
	in := wf.Graph[0].Input["value"]
	require.NotNil(t, in.Availability)
	require.Equal(t, ast.AvailabilityAvailable, in.Availability.Kind)
	require.Equal(t, "loc-a", wf.Table.Results["x"])
	require.True(t, wf.IsPlanned())
}

func TestPlanAmbiguousLocationWhenDatasetHostedEverywhere(t *testing.T) {
	edges := []ast.Edge{
		ast.NodeEdge(0, ast.AllLocs(), map[string]ast.NodeInput{"value": {Name: ast.Data("input")}}, nil, 1),
		ast.StopEdge(),
	}
	wf := newWorkflow(t, "echo.run", nil, edges)

	data := fakeData{"input": {"loc-a": {How: "file"}, "loc-b": {How: "file"}}}
	caps := fakeCaps{"loc-a": {"cpu"}, "loc-b": {"cpu"}}
	p := New(data, caps, []string{"loc-a", "loc-b"})

	err := p.Plan(context.Background(), wf, "")
	require.Error(t, err)
	var pf *errs.PlanFailure
	require.ErrorAs(t, err, &pf)
	require.Equal(t, errs.PlanAmbiguousLocation, pf.Kind)
}

func TestPlanUnsupportedCapabilitiesFails(t *testing.T) {
	edges := []ast.Edge{
		ast.NodeEdge(0, ast.AllLocs(), map[string]ast.NodeInput{"value": {Name: ast.Data("input")}}, nil, 1),
		ast.StopEdge(),
	}
	wf := newWorkflow(t, "gpu.render", []ast.Capability{"gpu"}, edges)

	data := fakeData{"input": {"loc-a": {How: "file"}}}
	caps := fakeCaps{"loc-a": {"cpu"}}
	p := New(data, caps, []string{"loc-a"})

	err := p.Plan(context.Background(), wf, "")
	require.Error(t, err)
	var pf *errs.PlanFailure
	require.ErrorAs(t, err, &pf)
	require.Equal(t, errs.PlanUnsupportedCapabilities, pf.Kind)
}

func TestPlanUnknownDatasetFails(t *testing.T) {
	edges := []ast.Edge{
		ast.NodeEdge(0, ast.AllLocs(), map[string]ast.NodeInput{"value": {Name: ast.Data("missing")}}, nil, 1),
		ast.StopEdge(),
	}
	wf := newWorkflow(t, "echo.run", nil, edges)

	p := New(fakeData{}, fakeCaps{}, []string{"loc-a"})

	err := p.Plan(context.Background(), wf, "")
	require.Error(t, err)
	var pf *errs.PlanFailure
	require.ErrorAs(t, err, &pf)
	require.Equal(t, errs.PlanUnknownDataset, pf.Kind)
}

func TestPlanIntermediateResultAcrossTwoNodesTransfersWhenLocationsDiffer(t *testing.T) {
	table := ast.NewSymTable()
	table.RegisterTask(ast.TaskDef{Kind: ast.TaskCompute, Name: "produce"})
	table.RegisterTask(ast.TaskDef{Kind: ast.TaskCompute, Name: "consume"})
	wf := ast.New(table)
	wf.Graph = []ast.Edge{
		ast.NodeEdge(0, ast.RestrictedLocs("loc-a"), map[string]ast.NodeInput{"value": {Name: ast.Data("input")}}, strPtr("mid"), 1),
		ast.NodeEdge(1, ast.RestrictedLocs("loc-b"), map[string]ast.NodeInput{"value": {Name: ast.IntermediateResult("mid")}}, nil, 2),
		ast.StopEdge(),
	}

	data := fakeData{"input": {"loc-a": {How: "file"}}}
	caps := fakeCaps{"loc-a": {"cpu"}, "loc-b": {"cpu"}}
	p := New(data, caps, []string{"loc-a", "loc-b"})

	require.NoError(t, p.Plan(context.Background(), wf, ""))

	require.Equal(t, "loc-a", wf.Table.Results["mid"])
	in := wf.Graph[1].Input["value"]
	require.NotNil(t, in.Availability)
	require.Equal(t, ast.AvailabilityUnavailable, in.Availability.Kind)
	require.Equal(t, "loc-a", in.Availability.Preprocess.SourceLocation)
	require.Equal(t, "mid", in.Availability.Preprocess.DataName)
}

func TestPlanLoopDefersForwardIntermediateResultThenResolvesOnSecondPass(t *testing.T) {
	table := ast.NewSymTable()
	table.RegisterTask(ast.TaskDef{Kind: ast.TaskCompute, Name: "consume"})
	table.RegisterTask(ast.TaskDef{Kind: ast.TaskCompute, Name: "produce"})
	wf := ast.New(table)
	wf.Graph = []ast.Edge{
		{Kind: ast.EdgeLoop, Cond: 1, Body: 2, Next: 4},
		{Kind: ast.EdgeLinear, Next: 2},
		ast.NodeEdge(0, ast.RestrictedLocs("loc-b"), map[string]ast.NodeInput{"c": {Name: ast.IntermediateResult("carry")}}, nil, 3),
		ast.NodeEdge(1, ast.AllLocs(), map[string]ast.NodeInput{"value": {Name: ast.Data("input")}}, strPtr("carry"), 1),
		ast.StopEdge(),
	}

	data := fakeData{"input": {"loc-a": {How: "file"}}}
	caps := fakeCaps{"loc-a": {"cpu"}, "loc-b": {"cpu"}}
	p := New(data, caps, []string{"loc-a", "loc-b"})

	require.NoError(t, p.Plan(context.Background(), wf, ""))

	require.Equal(t, "loc-a", wf.Table.Results["carry"])
	require.True(t, wf.Graph[3].Locs.IsPlanned(), "producer node should be fully planned")
	require.True(t, wf.Graph[2].Locs.IsPlanned(), "deferred consumer node should be resolved by the second pass")
	in := wf.Graph[2].Input["c"]
	require.NotNil(t, in.Availability)
	require.Equal(t, ast.AvailabilityUnavailable, in.Availability.Kind)
	require.Equal(t, "loc-a", in.Availability.Preprocess.SourceLocation)
}

func TestPlanFailsWithoutSessionWhenProducerIsInAnotherWorkflow(t *testing.T) {
	table := ast.NewSymTable()
	table.RegisterTask(ast.TaskDef{Kind: ast.TaskCompute, Name: "consume"})
	wf := ast.New(table)
	wf.Graph = []ast.Edge{
		ast.NodeEdge(0, ast.RestrictedLocs("loc-b"), map[string]ast.NodeInput{"c": {Name: ast.IntermediateResult("mid")}}, nil, 1),
		ast.StopEdge(),
	}

	p := New(fakeData{}, fakeCaps{"loc-b": {"cpu"}}, []string{"loc-a", "loc-b"})

	err := p.Plan(context.Background(), wf, "")
	require.Error(t, err)
	var pf *errs.PlanFailure
	require.ErrorAs(t, err, &pf)
	require.Equal(t, errs.PlanUnknownIntermediateResult, pf.Kind)
}

func TestPlanSessionStoreCarriesResultLocationAcrossCalls(t *testing.T) {
	store := memstore.New()
	data := fakeData{"input": {"loc-a": {How: "file"}}}
	caps := fakeCaps{"loc-a": {"cpu"}, "loc-b": {"cpu"}}
	p := New(data, caps, []string{"loc-a", "loc-b"}, WithSessionStore(store))

	table1 := ast.NewSymTable()
	table1.RegisterTask(ast.TaskDef{Kind: ast.TaskCompute, Name: "produce"})
	wf1 := ast.New(table1)
	wf1.Graph = []ast.Edge{
		ast.NodeEdge(0, ast.RestrictedLocs("loc-a"), map[string]ast.NodeInput{"value": {Name: ast.Data("input")}}, strPtr("mid"), 1),
		ast.StopEdge(),
	}
	require.NoError(t, p.Plan(context.Background(), wf1, "sess-1"))

	table2 := ast.NewSymTable()
	table2.RegisterTask(ast.TaskDef{Kind: ast.TaskCompute, Name: "consume"})
	wf2 := ast.New(table2)
	wf2.Graph = []ast.Edge{
		ast.NodeEdge(0, ast.RestrictedLocs("loc-b"), map[string]ast.NodeInput{"value": {Name: ast.IntermediateResult("mid")}}, nil, 1),
		ast.StopEdge(),
	}
	require.NoError(t, p.Plan(context.Background(), wf2, "sess-1"))

	in := wf2.Graph[0].Input["value"]
	require.NotNil(t, in.Availability)
	require.Equal(t, ast.AvailabilityUnavailable, in.Availability.Kind)
	require.Equal(t, "loc-a", in.Availability.Preprocess.SourceLocation)
}

func TestPlanPicksRandomHostDeterministicallyForFixedSeed(t *testing.T) {
	edges := []ast.Edge{
		ast.NodeEdge(0, ast.RestrictedLocs("loc-c"), map[string]ast.NodeInput{"value": {Name: ast.Data("input")}}, nil, 1),
		ast.StopEdge(),
	}
	wf := newWorkflow(t, "echo.run", nil, edges)

	data := fakeData{"input": {"loc-a": {How: "file"}, "loc-b": {How: "file"}}}
	caps := fakeCaps{"loc-c": {"cpu"}}
	p := New(data, caps, []string{"loc-c"}, WithRand(rand.New(rand.NewSource(1))))

	require.NoError(t, p.Plan(context.Background(), wf, ""))

	in := wf.Graph[0].Input["value"]
	require.Equal(t, ast.AvailabilityUnavailable, in.Availability.Kind)
	// Seed 1's first Intn(2) is 1: the second of the sorted hosts.
	require.Equal(t, "loc-b", in.Availability.Preprocess.SourceLocation)
}
