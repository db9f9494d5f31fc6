// Package protocol frames envelopes on byte streams (TCP, stdio pipes).
//
// Message-oriented hosts (WebSocket, pub/sub) need no framing. Stream hosts
// do: a fixed 10-byte header carries the body length so the reader knows
// where one envelope ends and the next begins.
//
//	0      3  4  5  6         10
//	┌──────┬──┬──┬──┬─────────┬───────────────┐
//	│magic │v │ct│mt│ bodyLen │    body ...    │
//	│ ezi  │01│  │  │ uint32  │ bodyLen bytes  │
//	└──────┴──┴──┴──┴─────────┴───────────────┘
//
// The correlation id lives inside the body, not in the header: frames are
// only a delivery unit, matching is done by the client package.
package protocol

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	MagicByte1 byte = 0x65 // 'e'
	MagicByte2 byte = 0x7a // 'z'
	MagicByte3 byte = 0x69 // 'i'
	Version    byte = 0x01
	HeaderSize int  = 10

	// MaxBodyLen bounds a single frame so a corrupt length cannot allocate gigabytes.
	MaxBodyLen uint32 = 16 << 20
)

type MsgType byte

const (
	MsgTypeRequest   MsgType = 0 // front-end → host
	MsgTypeResponse  MsgType = 1 // host → front-end
	MsgTypeHeartbeat MsgType = 2 // keepalive, no body
)

// Mirrored from codec to keep this package import-free.
const (
	CodecTypeJSON   byte = 0
	CodecTypeBinary byte = 1
)

var (
	ErrInvalidMagic = errors.New("protocol: invalid magic number")
	ErrBodyTooLarge = errors.New("protocol: body too large")
)

type Header struct {
	CodecType byte
	MsgType   MsgType
	BodyLen   uint32
}

// Encode writes header and body as one Write call.
// Callers sharing w across goroutines still need their own lock.
func Encode(w io.Writer, h *Header, body []byte) error {
	if uint32(len(body)) > MaxBodyLen {
		return ErrBodyTooLarge
	}
	buf := make([]byte, HeaderSize, HeaderSize+len(body))
	buf[0], buf[1], buf[2] = MagicByte1, MagicByte2, MagicByte3
	buf[3] = Version
	buf[4] = h.CodecType
	buf[5] = byte(h.MsgType)
	binary.BigEndian.PutUint32(buf[6:10], uint32(len(body)))
	buf = append(buf, body...)

	_, err := w.Write(buf)
	return err
}

// Decode reads exactly one frame from r.
func Decode(r io.Reader) (*Header, []byte, error) {
	head := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, nil, err
	}

	if head[0] != MagicByte1 || head[1] != MagicByte2 || head[2] != MagicByte3 {
		return nil, nil, errors.Wrapf(ErrInvalidMagic, "got %x", head[0:3])
	}
	if head[3] != Version {
		return nil, nil, errors.Errorf("protocol: unsupported version %d", head[3])
	}
	if head[4] != CodecTypeJSON && head[4] != CodecTypeBinary {
		return nil, nil, errors.Errorf("protocol: unsupported codec type %d", head[4])
	}
	msgType := MsgType(head[5])
	if msgType != MsgTypeRequest && msgType != MsgTypeResponse && msgType != MsgTypeHeartbeat {
		return nil, nil, errors.Errorf("protocol: unsupported message type %d", head[5])
	}

	bodyLen := binary.BigEndian.Uint32(head[6:10])
	if bodyLen > MaxBodyLen {
		return nil, nil, errors.Wrapf(ErrBodyTooLarge, "%d bytes", bodyLen)
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, err
	}

	return &Header{
		CodecType: head[4],
		MsgType:   msgType,
		BodyLen:   bodyLen,
	}, body, nil
}
