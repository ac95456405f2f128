// Package execclient drives one planned, approved workflow node's execution
// stream to completion (spec.md §4.6), grounded on
// runtime/toolregistry/executor/executor.go's streaming-consumption shape:
// open the call, subscribe to relayed events, ack/advance as they arrive,
// and hand back the last value seen when the stream ends.
package execclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/codes"

	"goa.design/federator/ast"
	"goa.design/federator/errs"
	"goa.design/federator/infra"
	"goa.design/federator/telemetry"
)

// ExecuteStream is the narrow, Recv-only view of an open Execute call that
// Client needs. *infra.ExecuteStream satisfies this.
type ExecuteStream interface {
	Recv() (infra.ExecuteReply, error)
}

// Starter opens a server-streaming Execute call.
type Starter interface {
	Execute(ctx context.Context, req infra.ExecuteRequest) (ExecuteStream, error)
}

// ExecutionStarter adapts *infra.ExecutionClient to Starter.
type ExecutionStarter struct {
	client *infra.ExecutionClient
}

// NewExecutionStarter wraps an already-dialed execution client.
func NewExecutionStarter(client *infra.ExecutionClient) *ExecutionStarter {
	return &ExecutionStarter{client: client}
}

// Execute implements Starter.
func (s *ExecutionStarter) Execute(ctx context.Context, req infra.ExecuteRequest) (ExecuteStream, error) {
	return s.client.Execute(ctx, req)
}

// Relay publishes a best-effort observability frame for a non-terminal
// status, mirroring the teacher's WithStreamSink forwarding of tool output
// deltas: the canonical result always comes from Run's return value, this
// is purely for live observers (a dashboard, a tail command) and its
// failure never aborts the run.
type Relay interface {
	Publish(ctx context.Context, event string, payload []byte) (string, error)
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for debug relays of Received, Heartbeat,
// and Completed statuses.
func WithLogger(l telemetry.Logger) Option { return func(c *Client) { c.logger = l } }

// WithTracer sets the tracer used to span each Run call.
func WithTracer(t telemetry.Tracer) Option { return func(c *Client) { c.tracer = t } }

// WithRelay configures a Relay to additionally publish every non-terminal
// status as an event, for callers that want a live observability feed.
func WithRelay(r Relay) Option { return func(c *Client) { c.relay = r } }

// Committer promotes an IntermediateResult to a persistent Data entry
// once a run finishes successfully. *infra.HTTPClient implements this via
// Commit (SPEC_FULL.md §4.8).
type Committer interface {
	Commit(ctx context.Context, req infra.CommitRequest) (infra.CommitReply, error)
}

// WithCommit configures Run to promote resultName to dataName via
// committer once the stream terminates with a Finished status. A
// Finished status whose run produced no named result to promote is a
// caller error to configure; WithCommit is opt-in per call site, not
// applied automatically to every Finished status.
func WithCommit(committer Committer, resultName, dataName string) Option {
	return func(c *Client) {
		c.committer = committer
		c.commitResult = resultName
		c.commitData = dataName
	}
}

// Client drives server-streaming executions through a Starter.
type Client struct {
	starter Starter
	logger  telemetry.Logger
	tracer  telemetry.Tracer
	relay   Relay

	committer    Committer
	commitResult string
	commitData   string
}

// New builds a Client. starter is typically an *infra.ExecutionClient.
func New(starter Starter, opts ...Option) *Client {
	c := &Client{
		starter: starter,
		logger:  telemetry.NewNoopLogger(),
		tracer:  telemetry.NewNoopTracer(),
	}
	for _, o := range opts {
		if o != nil {
			o(c)
		}
	}
	return c
}

// relayEvent is the payload published to Relay for each status frame.
type relayEvent struct {
	Status string         `json:"status"`
	Value  *ast.FullValue `json:"value,omitempty"`
}

// Run opens the Execute stream for req and drives it to a terminal status,
// returning the last value seen on success. A non-success terminal status
// (Denied or any *Failed variant) is lifted to an *errs.ExecFailure whose
// Detail carries the status's attached value (spec.md §4.6).
func (c *Client) Run(ctx context.Context, req infra.ExecuteRequest) (*ast.FullValue, error) {
	ctx, span := c.tracer.Start(ctx, "execclient.run")
	defer span.End()

	stream, err := c.starter.Execute(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open execute stream failed")
		return nil, fmt.Errorf("execclient: open execute stream: %w", err)
	}

	var last *ast.FullValue
	for {
		reply, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			if last == nil {
				err := fmt.Errorf("execclient: stream closed before any terminal status")
				span.RecordError(err)
				span.SetStatus(codes.Error, "no terminal status")
				return nil, err
			}
			span.SetStatus(codes.Ok, "stream closed without explicit terminal status")
			return last, nil
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "receive execute reply failed")
			return nil, fmt.Errorf("execclient: receive execute reply: %w", err)
		}

		if reply.Value != nil {
			last = reply.Value
		}

		c.relayNonTerminal(ctx, reply)

		if reply.Status == infra.StatusFailed {
			c.printFailureOutput(ctx, reply.Value)
		}

		if reply.Close || reply.Status.IsTerminal() {
			return c.terminate(ctx, span, reply, last)
		}
	}
}

func (c *Client) terminate(ctx context.Context, span telemetry.Span, reply infra.ExecuteReply, last *ast.FullValue) (*ast.FullValue, error) {
	if reply.Status.IsSuccess() || (reply.Close && !reply.Status.IsTerminal()) {
		span.SetStatus(codes.Ok, "ok")
		if reply.Status == infra.StatusFinished {
			c.commit(ctx)
		}
		return last, nil
	}
	detail := ""
	if reply.Value != nil {
		if b, err := json.Marshal(reply.Value); err == nil {
			detail = string(b)
		}
	}
	err := errs.NewExecFailure(reply.Status.String(), detail)
	span.RecordError(err)
	span.SetStatus(codes.Error, "task ended in a non-success terminal status")
	return nil, err
}

// commit promotes commitResult to commitData once a run finishes, logging
// (not failing the run on) a commit error: the execution already
// succeeded, so a failed promotion is reported but does not retroactively
// turn Run into an error.
func (c *Client) commit(ctx context.Context) {
	if c.committer == nil || c.commitResult == "" {
		return
	}
	if _, err := c.committer.Commit(ctx, infra.CommitRequest{ResultName: c.commitResult, DataName: c.commitData}); err != nil {
		c.logger.Error(ctx, "commit result failed", "result", c.commitResult, "data", c.commitData, "err", err)
	}
}

// relayNonTerminal logs Received/Heartbeat/Completed at debug level and, if
// a Relay is configured, publishes every non-terminal status frame to it.
func (c *Client) relayNonTerminal(ctx context.Context, reply infra.ExecuteReply) {
	switch reply.Status {
	case infra.StatusReceived, infra.StatusHeartbeat, infra.StatusCompleted:
		c.logger.Debug(ctx, "execution status", "status", reply.Status.String())
	}
	if c.relay == nil || reply.Status.IsTerminal() {
		return
	}
	payload, err := json.Marshal(relayEvent{Status: reply.Status.String(), Value: reply.Value})
	if err != nil {
		return
	}
	if _, err := c.relay.Publish(ctx, "execution.status", payload); err != nil {
		c.logger.Warn(ctx, "relay publish failed", "status", reply.Status.String(), "err", err)
	}
}

// printFailureOutput extracts the stdout/stderr carried by a Failed
// status's value and prints them unmodified via the debug logger (spec.md
// §4.6), per original_source's working.rs comment that Failed's value is a
// {code, stdout, stderr} struct.
func (c *Client) printFailureOutput(ctx context.Context, value *ast.FullValue) {
	if value == nil || value.Kind != ast.FullValueStruct {
		return
	}
	if stdout, ok := value.Struct["stdout"]; ok && stdout.Str != "" {
		c.logger.Debug(ctx, stdout.Str, "stream", "stdout")
	}
	if stderr, ok := value.Struct["stderr"]; ok && stderr.Str != "" {
		c.logger.Debug(ctx, stderr.Str, "stream", "stderr")
	}
}
