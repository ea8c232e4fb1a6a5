// Package grpc wires the Graph API onto google.golang.org/grpc. No
// protoc-generated stubs are available to this repository, so services
// are registered by hand with a grpc.ServiceDesc and a JSON codec rather
// than fabricated generated code; this keeps the transport genuine gRPC
// over HTTP/2 without inventing protobuf machinery.
package grpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

const codecName = "json"

// jsonCodec marshals gRPC messages as JSON instead of protobuf wire
// format, registered under the "json" content-subtype.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal json rpc payload: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
