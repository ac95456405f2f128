// Package policy fans out the policy-consultation checks a planned
// workflow must pass before it may be executed (spec.md §4.5), grounded
// on original_source/brane-drv/src/check.rs's traverse_and_request /
// spawn_requests shape: one workflow-level check per infrastructure
// location, one task-execute check per planned Node, and one transfer
// check per Unavailable input.
package policy

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"goa.design/federator/ast"
	"goa.design/federator/errs"
	"goa.design/federator/infra"
)

// WorkflowChecker is the per-location Checker collaborator dialed to a
// location's delegate (spec.md §4.5 steps 2 and 3a). infra.CheckerClient
// implements this.
type WorkflowChecker interface {
	CheckWorkflow(ctx context.Context, req infra.CheckWorkflowRequest) (infra.CheckReply, error)
	CheckTask(ctx context.Context, req infra.CheckTaskRequest) (infra.CheckReply, error)
}

// TransferChecker is the per-location registry collaborator (spec.md
// §4.5 step 3b). infra.HTTPClient implements this.
type TransferChecker interface {
	CheckTransfer(ctx context.Context, kind, name string, req infra.TransferCheckRequest) (infra.CheckReply, error)
}

// Locations resolves location ids to the collaborators a consultation
// round dispatches to, and enumerates every location that must receive a
// workflow-level check regardless of whether any Node was planned there.
type Locations interface {
	All() []string
	Checker(location string) (WorkflowChecker, error)
	Registry(location string) (TransferChecker, error)
}

// Consult serialises wf once and dispatches every check spec.md §4.5
// requires concurrently, blocking until all have answered. The first
// denial observed (by whichever goroutine reports it first; ordering
// across denials is not guaranteed, matching spec.md §5) is returned as a
// *errs.CheckFailure with Denied=true. Any transport failure aborts the
// whole consultation and is returned as a *errs.CheckFailure with
// Denied=false.
func Consult(ctx context.Context, wf *ast.Workflow, locations Locations, useCase string) error {
	canonical, err := wf.Canonical()
	if err != nil {
		return errs.NewCheckTransportError("workflow", fmt.Errorf("serialise workflow: %w", err))
	}

	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var denial *errs.CheckFailure
	recordDenial := func(domain string, reasons []string) {
		mu.Lock()
		defer mu.Unlock()
		if denial == nil {
			denial = errs.NewCheckerDenied(domain, reasons)
		}
	}

	for _, loc := range locations.All() {
		loc := loc
		g.Go(func() error {
			checker, err := locations.Checker(loc)
			if err != nil {
				return errs.NewCheckTransportError(loc, err)
			}
			reply, err := checker.CheckWorkflow(gctx, infra.CheckWorkflowRequest{UseCase: useCase, Workflow: canonical})
			if err != nil {
				return errs.NewCheckTransportError(loc, err)
			}
			if !reply.Verdict {
				recordDenial(loc, reply.Reasons)
			}
			return nil
		})
	}

	for _, nc := range nodeChecks(wf) {
		nc := nc
		g.Go(func() error {
			checker, err := locations.Checker(nc.at)
			if err != nil {
				return errs.NewCheckTransportError(nc.at, err)
			}
			reply, err := checker.CheckTask(gctx, infra.CheckTaskRequest{UseCase: useCase, Workflow: canonical, TaskID: nc.pc})
			if err != nil {
				return errs.NewCheckTransportError(nc.at, err)
			}
			if !reply.Verdict {
				recordDenial(nc.at, reply.Reasons)
			}
			return nil
		})

		for _, tr := range nc.transfers {
			tr := tr
			g.Go(func() error {
				registry, err := locations.Registry(tr.source)
				if err != nil {
					return errs.NewCheckTransportError(tr.source, err)
				}
				reply, err := registry.CheckTransfer(gctx, tr.kind, tr.name, infra.TransferCheckRequest{
					UseCase:  useCase,
					Workflow: canonical,
					Task:     nc.pc,
				})
				if err != nil {
					return errs.NewCheckTransportError(tr.source, err)
				}
				if !reply.Verdict {
					recordDenial(tr.source, reply.Reasons)
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if denial != nil {
		return denial
	}
	return nil
}

type transferCheck struct {
	source string
	kind   string
	name   string
}

type nodeCheck struct {
	pc        ast.ProgramCounter
	at        string
	transfers []transferCheck
}

// nodeChecks walks every function body of wf (main graph included) and
// collects one nodeCheck per planned Node, each carrying the transfer
// checks its Unavailable inputs require.
func nodeChecks(wf *ast.Workflow) []nodeCheck {
	var out []nodeCheck
	collect := func(funcID string, edges []ast.Edge) {
		for idx, e := range edges {
			if e.Kind != ast.EdgeNode {
				continue
			}
			nc := nodeCheck{pc: ast.ProgramCounter{FuncID: funcID, EdgeIdx: idx}, at: e.At}
			for _, in := range e.Input {
				if in.Availability == nil || in.Availability.Kind != ast.AvailabilityUnavailable {
					continue
				}
				kind := "data"
				if in.Name.IsIntermediateResult() {
					kind = "results"
				}
				nc.transfers = append(nc.transfers, transferCheck{
					source: in.Availability.Preprocess.SourceLocation,
					kind:   kind,
					name:   in.Availability.Preprocess.DataName,
				})
			}
			out = append(out, nc)
		}
	}
	collect(ast.MainFunc, wf.Graph)
	for funcID, body := range wf.Funcs {
		collect(funcID, body)
	}
	return out
}
