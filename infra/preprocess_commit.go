package infra

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"goa.design/federator/ast"
)

// PreprocessRequest asks a delegate to make a dataset locally available
// (spec.md §6: "invoked implicitly during execution, not by the core").
// This module defines only the client-facing shape; it does not
// implement the delegate itself.
type PreprocessRequest struct {
	UseCase  string             `json:"use_case"`
	Kind     ast.PreprocessKind `json:"kind"`
	Workflow []byte             `json:"workflow"`
	PC       ast.ProgramCounter `json:"pc"`
}

// PreprocessReply carries the resulting local access descriptor.
type PreprocessReply struct {
	Access ast.AccessKind `json:"access"`
}

// PreprocessClient is a thin unary-RPC wrapper. No package in this
// module calls it; execclient does not preprocess Unavailable inputs.
type PreprocessClient struct{ conn *grpc.ClientConn }

// NewPreprocessClient wraps an established connection to a location's
// delegate.
func NewPreprocessClient(conn *grpc.ClientConn) *PreprocessClient {
	return &PreprocessClient{conn: conn}
}

// Preprocess invokes the unary Preprocess RPC.
func (c *PreprocessClient) Preprocess(ctx context.Context, req PreprocessRequest) (PreprocessReply, error) {
	var reply PreprocessReply
	if err := c.conn.Invoke(ctx, "/federator.delegate.v1.Delegate/Preprocess", &req, &reply, grpc.ForceCodec(jsonCodec{})); err != nil {
		return PreprocessReply{}, fmt.Errorf("infra: Preprocess RPC: %w", err)
	}
	return reply, nil
}

// CommitRequest promotes an IntermediateResult to a persistent Data
// entry in the registry after a workflow finishes successfully
// (recovered from original_source/specifications/src/working.rs; see
// SPEC_FULL.md §4.8).
type CommitRequest struct {
	ResultName string `json:"result_name"`
	DataName   string `json:"data_name"`
}

// CommitReply is empty on success; its presence alone signals the
// registry accepted the promotion.
type CommitReply struct{}

// Commit posts req as JSON to the registry's /commit endpoint.
func (h *HTTPClient) Commit(ctx context.Context, req CommitRequest) (CommitReply, error) {
	var reply CommitReply
	if err := h.postJSON(ctx, "/commit", req, &reply); err != nil {
		return CommitReply{}, err
	}
	return reply, nil
}
