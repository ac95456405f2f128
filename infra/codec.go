package infra

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec marshals plain Go request/reply structs as JSON over the
// gRPC wire instead of protobuf. The Checker and Execution services in
// this module have no .proto-derived proto.Message implementations (no
// protoc is ever invoked), so the default protobuf codec cannot serve
// them; registering this codec under the name "json" and passing
// grpc.ForceCodec(jsonCodec{}) on each grpc.ClientConn.Invoke/NewStream
// call lets those calls carry ordinary structs.
type jsonCodec struct{}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return "json" }
