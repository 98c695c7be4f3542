package server

import (
	"encoding/json"
)

// jsonCodec lets connect carry plain Go structs as application/json
// messages. It replaces connect's protojson codec, which only accepts
// generated protobuf types.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
