package accache

import "encoding/json"

// Codec (de)serializes an ActionResult to and from the bytes a Store
// backend actually holds. It exists because the real Remote Execution
// ActionResult message is defined in a .proto schema this module
// deliberately does not vendor (that schema is an external
// collaborator); a production deployment supplies a protobuf-backed
// Codec, while JSONCodec below is the default used by tests and by
// any deployment that does not need wire compatibility with a real
// Bazel client.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec implements Codec on top of the standard library's
// encoding/json.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
