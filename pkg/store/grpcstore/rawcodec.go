package grpcstore

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// rawCodecName is registered as a gRPC content-subtype so invokeRaw can
// forward already-encoded Action Cache request/response bytes without
// this module linking the Remote Execution .proto schema.
const rawCodecName = "raw"

// rawBytes is the (un)marshal target for the raw codec: marshaling
// returns its own bytes unchanged, unmarshaling copies the wire bytes
// into it verbatim.
type rawBytes []byte

type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	b, ok := v.(*rawBytes)
	if !ok {
		return nil, fmt.Errorf("grpcstore: raw codec cannot marshal %T", v)
	}
	return []byte(*b), nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	b, ok := v.(*rawBytes)
	if !ok {
		return fmt.Errorf("grpcstore: raw codec cannot unmarshal into %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}

func (rawCodec) Name() string { return rawCodecName }

func init() {
	encoding.RegisterCodec(rawCodec{})
}
