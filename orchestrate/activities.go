// Package orchestrate exposes the planner/policy-consultation/execution
// pipeline (spec.md §4.4-§4.6) as a Temporal workflow (SPEC_FULL.md §4.7):
// the core algorithms stay plain Go, called from inside Activities, so
// they remain unit-testable without Temporal in the loop; this package is
// additive durability/suspension-point plumbing around them, mirroring the
// teacher's thin-adapter-over-an-external-client shape (GRPCClientAdapter)
// applied to go.temporal.io/sdk's client/worker/workflow surfaces.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"goa.design/federator/ast"
	"goa.design/federator/errs"
	"goa.design/federator/execclient"
	"goa.design/federator/infra"
	"goa.design/federator/planner"
	"goa.design/federator/policy"
)

// Activities bundles the collaborators every activity method call-throughs
// to. A *Activities value (even a nil one, used only to form typed method
// references inside RunWorkflow) is registered once per worker via
// NewWorker.
type Activities struct {
	Planner    *planner.Planner
	Locations  policy.Locations
	ExecClient *execclient.Client
}

// PlanInput is PlanActivity's argument. Activity arguments/results cross
// the Temporal wire as JSON, so ast.Workflow's existing JSON tags are
// reused directly rather than defining a parallel wire type.
type PlanInput struct {
	Workflow  *ast.Workflow
	SessionID string
}

// PlanOutput is PlanActivity's result.
type PlanOutput struct {
	Workflow *ast.Workflow
}

// PlanActivity runs the planner against in.Workflow in place, returning
// the now-planned workflow. A planning failure (AmbiguousLocation,
// UnsupportedCapabilities, ...) is returned as a non-retryable application
// error, the way spec.md §7 treats PlanFailure: fatal, no partial-plan
// recovery. Only a RegistryRequest failure stays retryable under the
// caller's RetryPolicy.
func (a *Activities) PlanActivity(ctx context.Context, in PlanInput) (PlanOutput, error) {
	if err := a.Planner.Plan(ctx, in.Workflow, in.SessionID); err != nil {
		var pf *errs.PlanFailure
		if errors.As(err, &pf) && pf.Kind != errs.PlanRegistryRequest {
			return PlanOutput{}, temporal.NewNonRetryableApplicationError("orchestrate: plan activity", string(pf.Kind), err)
		}
		return PlanOutput{}, fmt.Errorf("orchestrate: plan activity: %w", err)
	}
	return PlanOutput{Workflow: in.Workflow}, nil
}

// ConsultInput is ConsultActivity's argument.
type ConsultInput struct {
	Workflow *ast.Workflow
	UseCase  string
}

// ConsultActivity fans out the policy consultation for a planned
// workflow. Callers must configure this activity's ActivityOptions with
// RetryPolicy{MaximumAttempts: 1}: spec.md §5 forbids retrying Checker
// calls, and a Temporal activity retry would otherwise resend a denied or
// failed check transparently.
func (a *Activities) ConsultActivity(ctx context.Context, in ConsultInput) error {
	if err := policy.Consult(ctx, in.Workflow, a.Locations, in.UseCase); err != nil {
		return fmt.Errorf("orchestrate: consult activity: %w", err)
	}
	return nil
}

// ExecuteNodeInput is ExecuteNodeActivity's argument: one node's
// already-approved Execute request.
type ExecuteNodeInput struct {
	Request infra.ExecuteRequest
}

// ExecuteNodeOutput is ExecuteNodeActivity's result.
type ExecuteNodeOutput struct {
	Value *ast.FullValue
}

// ExecuteNodeActivity drives one node's execution stream to a terminal
// status via execclient.Client.Run. The activity's StartToCloseTimeout
// should be generous (executions can run for hours): Temporal's own
// heartbeat/cancellation mechanism is the suspension point spec.md §5
// describes for the execution stream, not a short activity timeout. When
// ctx is an activity context it records a heartbeat every 10 seconds
// until Run returns.
func (a *Activities) ExecuteNodeActivity(ctx context.Context, in ExecuteNodeInput) (ExecuteNodeOutput, error) {
	if activity.IsActivity(ctx) {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		done := make(chan struct{})
		defer close(done)
		go func() {
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					activity.RecordHeartbeat(ctx)
				}
			}
		}()
	}
	value, err := a.ExecClient.Run(ctx, in.Request)
	if err != nil {
		return ExecuteNodeOutput{}, fmt.Errorf("orchestrate: execute node activity: %w", err)
	}
	return ExecuteNodeOutput{Value: value}, nil
}
