package orchestrate

import (
	"context"
	"fmt"

	"github.com/nexus-rpc/sdk-go/nexus"

	"goa.design/federator/ast"
	"goa.design/federator/infra"
	"goa.design/federator/policy"
)

// DelegateCheckInput is the Nexus operation input for a cross-location
// task-execute check (spec.md §4.5 step 3a), issued as a Nexus operation
// rather than a direct gRPC dial when the target location runs its own
// Temporal namespace: the calling workflow starts the operation and lets
// Temporal's Nexus machinery track it like any other durable call,
// instead of the workflow reaching across administrative boundaries
// itself.
type DelegateCheckInput struct {
	Location string             `json:"location"`
	UseCase  string             `json:"use_case"`
	Workflow []byte             `json:"workflow"`
	TaskID   ast.ProgramCounter `json:"task_id"`
}

// DelegateCheckOutput mirrors infra.CheckReply, the uniform verdict shape
// every checker endpoint returns.
type DelegateCheckOutput struct {
	Verdict bool     `json:"verdict"`
	Reasons []string `json:"reasons,omitempty"`
}

// NewCheckTaskOperation builds the Nexus synchronous operation a remote
// namespace's workflow calls to run a task-execute check against one of
// this namespace's locations, resolved through the same policy.Locations
// a local ConsultActivity uses.
func NewCheckTaskOperation(locations policy.Locations) *nexus.SyncOperation[DelegateCheckInput, DelegateCheckOutput] {
	return nexus.NewSyncOperation("check-task", func(ctx context.Context, input DelegateCheckInput, options nexus.StartOperationOptions) (DelegateCheckOutput, error) {
		checker, err := locations.Checker(input.Location)
		if err != nil {
			return DelegateCheckOutput{}, fmt.Errorf("orchestrate: resolve checker for location %q: %w", input.Location, err)
		}
		reply, err := checker.CheckTask(ctx, infra.CheckTaskRequest{
			UseCase:  input.UseCase,
			Workflow: input.Workflow,
			TaskID:   input.TaskID,
		})
		if err != nil {
			return DelegateCheckOutput{}, fmt.Errorf("orchestrate: nexus check-task against %q: %w", input.Location, err)
		}
		return DelegateCheckOutput{Verdict: reply.Verdict, Reasons: reply.Reasons}, nil
	})
}

// DelegateServiceName names the Nexus service that groups every operation
// a location exposes to remote namespaces, the unit nexus-rpc's HTTP
// handler routes on.
const DelegateServiceName = "federator.delegate"

// NewDelegateService registers every cross-location operation this
// namespace exposes. A caller builds an HTTP handler from the returned
// service via nexus.NewHTTPHandler(nexus.HandlerOptions{Service: svc}) and
// mounts it alongside the namespace's other endpoints.
func NewDelegateService(locations policy.Locations) (*nexus.Service, error) {
	svc := nexus.NewService(DelegateServiceName)
	if err := svc.Register(NewCheckTaskOperation(locations)); err != nil {
		return nil, fmt.Errorf("orchestrate: register check-task nexus operation: %w", err)
	}
	return svc, nil
}
