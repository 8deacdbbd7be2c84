package visionpb

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype this package registers. Clients
// select it per call via grpc.CallContentSubtype(codecName) (see callOpts in
// service.go); a server needs no option, since gRPC picks the registered
// codec from the request's content-subtype. It replaces the default
// protobuf-message codec (our messages are not generated proto.Message
// types, see wire.go).
const codecName = "visionwire"

// wireMessage is implemented by every message type in this package.
type wireMessage interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// codec adapts wireMessage's hand-rolled protowire marshal/unmarshal to
// gRPC's encoding.Codec, the extension point the library exposes for
// non-default wire formats.
type codec struct{}

func (codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("visionpb: cannot marshal %T: not a wireMessage", v)
	}
	return m.Marshal()
}

func (codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("visionpb: cannot unmarshal into %T: not a wireMessage", v)
	}
	return m.Unmarshal(data)
}

func (codec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(codec{})
}
