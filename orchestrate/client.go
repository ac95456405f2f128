package orchestrate

import (
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"
)

// NewClient dials the Temporal frontend at hostPort/namespace, instrumenting
// every workflow/activity call with an OTEL tracing interceptor so a run's
// spans join the same trace execclient.Client starts for each node
// (SPEC_FULL.md §4.7's ambient telemetry carried through the orchestration
// layer).
func NewClient(hostPort, namespace string) (client.Client, error) {
	tracingInterceptor, err := opentelemetry.NewTracingInterceptor(opentelemetry.TracerOptions{})
	if err != nil {
		return nil, fmt.Errorf("orchestrate: build tracing interceptor: %w", err)
	}
	c, err := client.Dial(client.Options{
		HostPort:     hostPort,
		Namespace:    namespace,
		Interceptors: []interceptor.ClientInterceptor{tracingInterceptor},
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrate: dial temporal at %q: %w", hostPort, err)
	}
	return c, nil
}

// NewWorker builds a worker polling taskQueue, registering RunWorkflow and
// every Activities method.
func NewWorker(c client.Client, taskQueue string, activities *Activities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(RunWorkflow)
	w.RegisterActivity(activities)
	return w
}
