package orchestrate

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"goa.design/federator/ast"
	"goa.design/federator/infra"
)

// RunWorkflowInput starts one session's plan -> consult -> execute pipeline
// as a durable Temporal workflow. Requests holds one infra.ExecuteRequest
// per planned Node, already ordered for sequential execution by whatever
// built this input (a topological walk of the planned Workflow's Graph).
type RunWorkflowInput struct {
	Workflow  *ast.Workflow
	SessionID string
	UseCase   string
	Requests  []infra.ExecuteRequest
}

// RunWorkflowResult is the final value of the last node executed.
type RunWorkflowResult struct {
	Value *ast.FullValue
}

// RunWorkflow is the Temporal workflow function: Plan, Consult, then
// Execute each request in turn, each step a durable Activity so the
// pipeline survives a worker restart mid-run instead of restarting from
// Plan (spec.md §5's "partial results are discarded" on client-initiated
// cancellation becomes, at this layer, an Activity-scoped retry/resume
// rather than a full pipeline restart).
//
// activities is a typed nil used only so its methods can be passed to
// workflow.ExecuteActivity for name/type resolution; Temporal never
// invokes the receiver directly, only the registered implementation on
// the worker side (see NewWorker), so the nil receiver is never
// dereferenced.
func RunWorkflow(ctx workflow.Context, input RunWorkflowInput) (RunWorkflowResult, error) {
	var activities *Activities

	planCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})
	var planned PlanOutput
	if err := workflow.ExecuteActivity(planCtx, activities.PlanActivity, PlanInput{
		Workflow:  input.Workflow,
		SessionID: input.SessionID,
	}).Get(ctx, &planned); err != nil {
		return RunWorkflowResult{}, fmt.Errorf("orchestrate: plan: %w", err)
	}

	// Checker calls never retry at this layer (spec.md §5): a denial is a
	// terminal decision, not a transient failure to mask with backoff.
	consultCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	if err := workflow.ExecuteActivity(consultCtx, activities.ConsultActivity, ConsultInput{
		Workflow: planned.Workflow,
		UseCase:  input.UseCase,
	}).Get(ctx, nil); err != nil {
		return RunWorkflowResult{}, fmt.Errorf("orchestrate: consult: %w", err)
	}

	execCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 24 * time.Hour,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	var last *ast.FullValue
	for _, req := range input.Requests {
		var out ExecuteNodeOutput
		if err := workflow.ExecuteActivity(execCtx, activities.ExecuteNodeActivity, ExecuteNodeInput{Request: req}).Get(ctx, &out); err != nil {
			return RunWorkflowResult{}, fmt.Errorf("orchestrate: execute node %v: %w", req.CallPC, err)
		}
		if out.Value != nil {
			last = out.Value
		}
	}

	return RunWorkflowResult{Value: last}, nil
}
