// Package codec turns envelopes into bytes and back.
//
// The JSON codec is the wire format the front-end runtime speaks natively.
// The binary codec is a compact length-prefixed layout for stream hosts
// where both ends are Go.
package codec

import "github.com/pkg/errors"

type CodecType byte

const (
	CodecTypeJSON   CodecType = 0
	CodecTypeBinary CodecType = 1
)

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType
}

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeBinary:
		return "binary"
	default:
		return "unknown"
	}
}

func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeBinary {
		return &BinaryCodec{}
	}

	return &JSONCodec{}
}

// ByName resolves a codec from its config name ("json" or "binary").
func ByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return &JSONCodec{}, nil
	case "binary":
		return &BinaryCodec{}, nil
	default:
		return nil, errors.Errorf("unknown codec %q", name)
	}
}
