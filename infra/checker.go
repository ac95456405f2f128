package infra

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"goa.design/federator/ast"
)

// CheckWorkflowRequest is the workflow-level check request (spec.md
// §4.5 step 2): one per location, every location receives the same
// serialised workflow.
type CheckWorkflowRequest struct {
	UseCase  string `json:"use_case"`
	Workflow []byte `json:"workflow"`
}

// CheckTaskRequest is the task-execute check request (spec.md §4.5 step
// 3a): sent to the location a specific Node was planned onto.
type CheckTaskRequest struct {
	UseCase  string              `json:"use_case"`
	Workflow []byte              `json:"workflow"`
	TaskID   ast.ProgramCounter  `json:"task_id"`
}

// CheckReply is the uniform {verdict, reasons} shape every checker
// endpoint (workflow, task, transfer) returns.
type CheckReply struct {
	Verdict bool     `json:"verdict"`
	Reasons []string `json:"reasons"`
}

// CheckerClient wraps a single gRPC connection to one location's
// delegate, exposing CheckWorkflow/CheckTask as ordinary Go methods over
// the hand-written JSON codec (see codec.go and DESIGN.md).
type CheckerClient struct {
	conn *grpc.ClientConn
}

// NewCheckerClient wraps an already-dialed connection to a location's
// delegate; each RPC forces the JSON codec.
func NewCheckerClient(conn *grpc.ClientConn) *CheckerClient {
	return &CheckerClient{conn: conn}
}

// CheckWorkflow invokes the unary CheckWorkflow RPC.
func (c *CheckerClient) CheckWorkflow(ctx context.Context, req CheckWorkflowRequest) (CheckReply, error) {
	var reply CheckReply
	if err := c.conn.Invoke(ctx, "/federator.checker.v1.Checker/CheckWorkflow", &req, &reply, grpc.ForceCodec(jsonCodec{})); err != nil {
		return CheckReply{}, fmt.Errorf("infra: CheckWorkflow RPC: %w", err)
	}
	return reply, nil
}

// CheckTask invokes the unary CheckTask RPC.
func (c *CheckerClient) CheckTask(ctx context.Context, req CheckTaskRequest) (CheckReply, error) {
	var reply CheckReply
	if err := c.conn.Invoke(ctx, "/federator.checker.v1.Checker/CheckTask", &req, &reply, grpc.ForceCodec(jsonCodec{})); err != nil {
		return CheckReply{}, fmt.Errorf("infra: CheckTask RPC: %w", err)
	}
	return reply, nil
}

// CheckerServer is implemented by a location's own delegate process. It
// is declared here only so this module can run a reference/test
// delegate over the same hand-written transport; a real delegate is out
// of scope (spec.md §1 Non-goals).
type CheckerServer interface {
	CheckWorkflow(context.Context, *CheckWorkflowRequest) (*CheckReply, error)
	CheckTask(context.Context, *CheckTaskRequest) (*CheckReply, error)
}

// RegisterCheckerServer wires impl into srv using a hand-written
// grpc.ServiceDesc equivalent to what protoc would emit for a "Checker"
// service with CheckWorkflow/CheckTask unary methods.
func RegisterCheckerServer(srv *grpc.Server, impl CheckerServer) {
	srv.RegisterService(&checkerServiceDesc, impl)
}

var checkerServiceDesc = grpc.ServiceDesc{
	ServiceName: "federator.checker.v1.Checker",
	HandlerType: (*CheckerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CheckWorkflow",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(CheckWorkflowRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(CheckerServer).CheckWorkflow(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/federator.checker.v1.Checker/CheckWorkflow"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(CheckerServer).CheckWorkflow(ctx, req.(*CheckWorkflowRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
		{
			MethodName: "CheckTask",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(CheckTaskRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(CheckerServer).CheckTask(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/federator.checker.v1.Checker/CheckTask"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(CheckerServer).CheckTask(ctx, req.(*CheckTaskRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "federator/checker.proto",
}

// TransferCheckRequest is the HTTP-transported transfer check (spec.md
// §4.5 step 3b): `GET <registry>/(data|results)/check/<name>` with this
// JSON body.
type TransferCheckRequest struct {
	UseCase  string             `json:"use_case"`
	Workflow []byte             `json:"workflow"`
	Task     ast.ProgramCounter `json:"task"`
}

// CheckTransfer performs the transfer check against a location's
// registry HTTP endpoint. kind is "data" or "results". This is a read
// (no side effect at the registry), so it rides GET with a JSON body
// rather than POST, matching the documented `GET .../check/<name>`
// contract above.
func (h *HTTPClient) CheckTransfer(ctx context.Context, kind, name string, req TransferCheckRequest) (CheckReply, error) {
	var reply CheckReply
	path := fmt.Sprintf("/%s/check/%s", kind, name)
	if err := h.getJSONWithBody(ctx, path, req, &reply); err != nil {
		return CheckReply{}, err
	}
	return reply, nil
}
