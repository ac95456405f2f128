package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"goa.design/federator/ast"
	"goa.design/federator/errs"
	"goa.design/federator/infra"
)

type fakeChecker struct {
	verdict bool
	reasons []string
	err     error
}

func (f *fakeChecker) CheckWorkflow(context.Context, infra.CheckWorkflowRequest) (infra.CheckReply, error) {
	if f.err != nil {
		return infra.CheckReply{}, f.err
	}
	return infra.CheckReply{Verdict: f.verdict, Reasons: f.reasons}, nil
}

func (f *fakeChecker) CheckTask(context.Context, infra.CheckTaskRequest) (infra.CheckReply, error) {
	if f.err != nil {
		return infra.CheckReply{}, f.err
	}
	return infra.CheckReply{Verdict: f.verdict, Reasons: f.reasons}, nil
}

type fakeRegistry struct {
	verdict bool
	reasons []string
	err     error
}

func (f *fakeRegistry) CheckTransfer(context.Context, string, string, infra.TransferCheckRequest) (infra.CheckReply, error) {
	if f.err != nil {
		return infra.CheckReply{}, f.err
	}
	return infra.CheckReply{Verdict: f.verdict, Reasons: f.reasons}, nil
}

func strPtr(s string) *string { return &s }

func planned(taskName, at string) *ast.Workflow {
	table := ast.NewSymTable()
	table.RegisterTask(ast.TaskDef{Kind: ast.TaskCompute, Name: taskName})
	wf := ast.New(table)
	avail := ast.Available(ast.AccessKind{How: "local"})
	wf.Graph = []ast.Edge{
		{
			Kind:   ast.EdgeNode,
			Task:   0,
			Locs:   ast.RestrictedLocs(at),
			At:     at,
			Input:  map[string]ast.NodeInput{"value": {Name: ast.Data("input"), Availability: &avail}},
			Result: strPtr("x"),
			Next:   1,
		},
		ast.StopEdge(),
	}
	return wf
}

func TestConsultApprovesWhenEveryCheckerApproves(t *testing.T) {
	wf := planned("echo.run", "loc-a")
	locations := NewStaticLocations(
		map[string]WorkflowChecker{"loc-a": &fakeChecker{verdict: true}},
		map[string]TransferChecker{},
	)

	err := Consult(context.Background(), wf, locations, "use-case-1")
	require.NoError(t, err)
}

func TestConsultDeniesWhenWorkflowLevelCheckerDenies(t *testing.T) {
	wf := planned("echo.run", "loc-a")
	locations := NewStaticLocations(
		map[string]WorkflowChecker{"loc-a": &fakeChecker{verdict: false, reasons: []string{"policy X"}}},
		map[string]TransferChecker{},
	)

	err := Consult(context.Background(), wf, locations, "use-case-1")
	require.Error(t, err)
	var cf *errs.CheckFailure
	require.ErrorAs(t, err, &cf)
	require.True(t, cf.Denied)
	require.Equal(t, "loc-a", cf.Domain)
	require.Equal(t, []string{"policy X"}, cf.Reasons)
}

func TestConsultPropagatesTransportFailure(t *testing.T) {
	wf := planned("echo.run", "loc-a")
	locations := NewStaticLocations(
		map[string]WorkflowChecker{"loc-a": &fakeChecker{err: errors.New("dial tcp: refused")}},
		map[string]TransferChecker{},
	)

	err := Consult(context.Background(), wf, locations, "use-case-1")
	require.Error(t, err)
	var cf *errs.CheckFailure
	require.ErrorAs(t, err, &cf)
	require.False(t, cf.Denied)
}

func TestConsultSendsTransferCheckForUnavailableInput(t *testing.T) {
	table := ast.NewSymTable()
	table.RegisterTask(ast.TaskDef{Kind: ast.TaskCompute, Name: "consume"})
	wf := ast.New(table)
	avail := ast.Unavailable(ast.TransferRegistryTar("loc-a", "mid"))
	wf.Graph = []ast.Edge{
		{
			Kind:  ast.EdgeNode,
			Task:  0,
			Locs:  ast.RestrictedLocs("loc-b"),
			At:    "loc-b",
			Input: map[string]ast.NodeInput{"value": {Name: ast.IntermediateResult("mid"), Availability: &avail}},
			Next:  1,
		},
		ast.StopEdge(),
	}

	registryCalled := false
	locations := NewStaticLocations(
		map[string]WorkflowChecker{
			"loc-a": &fakeChecker{verdict: true},
			"loc-b": &fakeChecker{verdict: true},
		},
		map[string]TransferChecker{
			"loc-a": &recordingRegistry{verdict: true, called: &registryCalled},
		},
	)

	err := Consult(context.Background(), wf, locations, "use-case-1")
	require.NoError(t, err)
	require.True(t, registryCalled, "expected a transfer check to be sent to the source location's registry")
}

type recordingRegistry struct {
	verdict bool
	called  *bool
}

func (r *recordingRegistry) CheckTransfer(context.Context, string, string, infra.TransferCheckRequest) (infra.CheckReply, error) {
	*r.called = true
	return infra.CheckReply{Verdict: r.verdict}, nil
}
