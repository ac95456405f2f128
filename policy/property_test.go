package policy

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"goa.design/federator/ast"
)

// Exercises spec.md §8's "policy totality" invariant directly: a
// consultation succeeds if and only if every workflow-level checker, every
// task-execute checker, and every transfer checker involved returns
// verdict=true. locationSet fixes the set of locations a round consults so
// the property can enumerate every combination of approve/deny across them.
var locationSet = []string{"loc-a", "loc-b", "loc-c"}

func verdictsFromMask(mask int) map[string]bool {
	verdicts := make(map[string]bool, len(locationSet))
	for i, loc := range locationSet {
		verdicts[loc] = mask&(1<<i) != 0
	}
	return verdicts
}

func allTrue(verdicts map[string]bool) bool {
	for _, v := range verdicts {
		if !v {
			return false
		}
	}
	return true
}

func totalityWorkflow() *ast.Workflow {
	table := ast.NewSymTable()
	table.RegisterTask(ast.TaskDef{Kind: ast.TaskCompute, Name: "echo.run"})
	wf := ast.New(table)
	avail := ast.Available(ast.AccessKind{How: "local"})
	wf.Graph = []ast.Edge{
		{
			Kind:   ast.EdgeNode,
			Task:   0,
			Locs:   ast.RestrictedLocs("loc-a"),
			At:     "loc-a",
			Input:  map[string]ast.NodeInput{"value": {Name: ast.Data("input"), Availability: &avail}},
			Result: strPtr("x"),
			Next:   1,
		},
		ast.StopEdge(),
	}
	return wf
}

type totalityLocations struct {
	verdicts map[string]bool
}

func (l *totalityLocations) All() []string { return locationSet }

func (l *totalityLocations) Checker(location string) (WorkflowChecker, error) {
	return &fakeChecker{verdict: l.verdicts[location]}, nil
}

func (l *totalityLocations) Registry(location string) (TransferChecker, error) {
	return &fakeRegistry{verdict: l.verdicts[location]}, nil
}

func TestConsultSucceedsIffEveryCheckerApproves(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("Consult returns nil error exactly when every location's workflow and task checker returned verdict=true", prop.ForAll(
		func(mask int) bool {
			verdicts := verdictsFromMask(mask)
			locations := &totalityLocations{verdicts: verdicts}
			wf := totalityWorkflow()

			err := Consult(context.Background(), wf, locations, "use-case-1")
			return (err == nil) == allTrue(verdicts)
		},
		gen.IntRange(0, (1<<len(locationSet))-1),
	))

	properties.TestingRun(t)
}
