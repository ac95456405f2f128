package infra

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"

	"goa.design/federator/ast"
)

// TaskStatus enumerates the execution stream's status values (spec.md
// §4.6), numbered to match the discriminants
// original_source/specifications/src/working.rs assigns them (0-18),
// carried here as explicit constants rather than relying on declaration
// order so the wire value is stable regardless of future additions.
type TaskStatus int

const (
	StatusUnknown               TaskStatus = 0
	StatusReceived               TaskStatus = 1
	StatusAuthorized             TaskStatus = 2
	StatusDenied                 TaskStatus = 3
	StatusAuthorizationFailed    TaskStatus = 4
	StatusCreated                TaskStatus = 5
	StatusCreationFailed         TaskStatus = 6
	StatusReady                  TaskStatus = 7
	StatusInitialized            TaskStatus = 8
	StatusInitializationFailed   TaskStatus = 9
	StatusStarted                TaskStatus = 10
	StatusStartingFailed         TaskStatus = 11
	StatusHeartbeat              TaskStatus = 12
	StatusCompleted              TaskStatus = 13
	StatusCompletionFailed       TaskStatus = 14
	StatusFinished               TaskStatus = 15
	StatusStopped                TaskStatus = 16
	StatusDecodingFailed         TaskStatus = 17
	StatusFailed                 TaskStatus = 18
)

// String names a TaskStatus for logging, matching the wire/enum names
// exactly (used in diagnostics and ExecFailure messages).
func (s TaskStatus) String() string {
	switch s {
	case StatusUnknown:
		return "Unknown"
	case StatusReceived:
		return "Received"
	case StatusAuthorized:
		return "Authorized"
	case StatusDenied:
		return "Denied"
	case StatusAuthorizationFailed:
		return "AuthorizationFailed"
	case StatusCreated:
		return "Created"
	case StatusCreationFailed:
		return "CreationFailed"
	case StatusReady:
		return "Ready"
	case StatusInitialized:
		return "Initialized"
	case StatusInitializationFailed:
		return "InitializationFailed"
	case StatusStarted:
		return "Started"
	case StatusStartingFailed:
		return "StartingFailed"
	case StatusHeartbeat:
		return "Heartbeat"
	case StatusCompleted:
		return "Completed"
	case StatusCompletionFailed:
		return "CompletionFailed"
	case StatusFinished:
		return "Finished"
	case StatusStopped:
		return "Stopped"
	case StatusDecodingFailed:
		return "DecodingFailed"
	case StatusFailed:
		return "Failed"
	default:
		return fmt.Sprintf("TaskStatus(%d)", int(s))
	}
}

// IsTerminal reports whether the status ends the execution stream:
// Finished, Stopped, Denied, or any *Failed variant (spec.md §4.6).
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusFinished, StatusStopped, StatusDenied,
		StatusAuthorizationFailed, StatusCreationFailed, StatusInitializationFailed,
		StatusStartingFailed, StatusCompletionFailed, StatusDecodingFailed, StatusFailed:
		return true
	default:
		return false
	}
}

// IsSuccess reports whether the status is a successful terminus.
func (s TaskStatus) IsSuccess() bool { return s == StatusFinished || s == StatusStopped }

// ExecuteRequest starts a workflow execution stream for one task
// invocation (spec.md §6).
type ExecuteRequest struct {
	UseCase  string             `json:"use_case"`
	Workflow []byte             `json:"workflow"`
	CallPC   ast.ProgramCounter `json:"call_pc"`
	TaskDef  ast.TaskDef        `json:"task_def"`
	Input    map[string]ast.NodeInput `json:"input"`
	Result   *string            `json:"result,omitempty"`
	Args     map[string]ast.FullValue `json:"args"`
}

// ExecuteReply is one message on the server-streaming Execute call.
type ExecuteReply struct {
	Status TaskStatus      `json:"status"`
	Value  *ast.FullValue  `json:"value,omitempty"`
	Close  bool            `json:"close,omitempty"`
}

var executeStreamDesc = grpc.StreamDesc{
	StreamName:    "Execute",
	ServerStreams: true,
}

// ExecutionClient dials the central execution endpoint and opens
// server-streaming Execute calls over the JSON codec.
type ExecutionClient struct {
	conn *grpc.ClientConn
}

// NewExecutionClient wraps an established *grpc.ClientConn.
func NewExecutionClient(conn *grpc.ClientConn) *ExecutionClient {
	return &ExecutionClient{conn: conn}
}

// ExecuteStream is the open server-streaming handle returned by Execute.
type ExecuteStream struct {
	stream grpc.ClientStream
}

// Execute opens the stream and sends the initial request.
func (c *ExecutionClient) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteStream, error) {
	stream, err := c.conn.NewStream(ctx, &executeStreamDesc, "/federator.execution.v1.Execution/Execute", grpc.ForceCodec(jsonCodec{}))
	if err != nil {
		return nil, fmt.Errorf("infra: open Execute stream: %w", err)
	}
	if err := stream.SendMsg(&req); err != nil {
		return nil, fmt.Errorf("infra: send Execute request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("infra: close Execute send side: %w", err)
	}
	return &ExecuteStream{stream: stream}, nil
}

// Recv reads the next ExecuteReply, returning io.EOF when the server
// closes the stream (equivalent to a trailing Close message).
func (s *ExecuteStream) Recv() (ExecuteReply, error) {
	var reply ExecuteReply
	if err := s.stream.RecvMsg(&reply); err != nil {
		if errors.Is(err, io.EOF) {
			return ExecuteReply{}, io.EOF
		}
		return ExecuteReply{}, fmt.Errorf("infra: receive ExecuteReply: %w", err)
	}
	return reply, nil
}

// ExecutionServer is implemented by the central execution endpoint. As
// with CheckerServer, this module only declares the interface and
// registration glue for testing against a reference/mock implementation
// of this collaborator (spec.md §1 Non-goals excludes implementing the
// real execution engine).
type ExecutionServer interface {
	Execute(req *ExecuteRequest, stream grpc.ServerStream) error
}

// RegisterExecutionServer wires impl into srv.
func RegisterExecutionServer(srv *grpc.Server, impl ExecutionServer) {
	srv.RegisterService(&executionServiceDesc, impl)
}

var executionServiceDesc = grpc.ServiceDesc{
	ServiceName: "federator.execution.v1.Execution",
	HandlerType: (*ExecutionServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Execute",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				req := new(ExecuteRequest)
				if err := stream.RecvMsg(req); err != nil {
					return err
				}
				return srv.(ExecutionServer).Execute(req, stream)
			},
		},
	},
	Metadata: "federator/execution.proto",
}
