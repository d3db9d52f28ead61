package grpcexec

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec replaces the usual protoc-generated proto codec with plain
// JSON, so grpcexec's wire types are the plain Go structs in messages.go
// rather than generated message types. It is registered under
// content-subtype "json"; clients select it with grpc.CallContentSubtype,
// and grpc-go negotiates it on the server from the "application/grpc+json"
// content-type automatically.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return codecName }

const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
