package codec

import (
	"encoding/binary"
	"encoding/json"
	"math"

	"ezi-bridge/message"

	"github.com/pkg/errors"
)

// Envelope kinds, first byte of every binary body.
const (
	kindRequest  byte = 1
	kindResponse byte = 2
	kindEvent    byte = 3
)

var errShortBuffer = errors.New("binary codec: short buffer")

// BinaryCodec lays envelopes out as length-prefixed fields:
//
//	request:  kind(1) | idLen(2) id | funcLen(2) func | argsLen(4) args
//	response: kind(1) | idLen(2) id | resultLen(4) result
//	event:    kind(1) | callbackLen(2) callback | argsLen(4) args
//
// args and result stay JSON; only the envelope is binary.
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	var w writer
	switch msg := v.(type) {
	case *message.Request:
		w.buf = make([]byte, 0, 1+2+len(msg.ID)+2+len(msg.Func)+4+len(msg.Args))
		w.buf = append(w.buf, kindRequest)
		w.string("id", msg.ID)
		w.string("func", msg.Func)
		w.bytes("args", msg.Args)
	case *message.Response:
		w.buf = make([]byte, 0, 1+2+len(msg.ID)+4+len(msg.Result))
		w.buf = append(w.buf, kindResponse)
		w.string("id", msg.ID)
		w.bytes("result", msg.Result)
	case *message.Event:
		w.buf = make([]byte, 0, 1+2+len(msg.Callback)+4+len(msg.Args))
		w.buf = append(w.buf, kindEvent)
		w.string("callback", msg.Callback)
		w.bytes("args", msg.Args)
	default:
		return nil, errors.Errorf("binary codec: unsupported type %T", v)
	}
	if w.err != nil {
		return nil, w.err
	}
	return w.buf, nil
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	if len(data) < 1 {
		return errShortBuffer
	}
	r := &reader{data: data[1:]}

	switch msg := v.(type) {
	case *message.Request:
		if data[0] != kindRequest {
			return errors.Errorf("binary codec: expected request, got kind %d", data[0])
		}
		msg.ID = r.string()
		msg.Func = r.string()
		msg.Args = r.bytes()
	case *message.Response:
		if data[0] != kindResponse {
			return errors.Errorf("binary codec: expected response, got kind %d", data[0])
		}
		msg.ID = r.string()
		msg.Result = r.bytes()
	case *message.Event:
		if data[0] != kindEvent {
			return errors.Errorf("binary codec: expected event, got kind %d", data[0])
		}
		msg.Callback = r.string()
		msg.Args = r.bytes()
	default:
		return errors.Errorf("binary codec: unsupported type %T", v)
	}
	return r.err
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

// writer appends length-prefixed fields and remembers the first field too
// long for its prefix.
type writer struct {
	buf []byte
	err error
}

func (w *writer) string(field, s string) {
	if w.err != nil {
		return
	}
	if len(s) > math.MaxUint16 {
		w.err = errors.Errorf("binary codec: %s is %d bytes, limit %d", field, len(s), math.MaxUint16)
		return
	}
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) bytes(field string, b []byte) {
	if w.err != nil {
		return
	}
	if uint64(len(b)) > math.MaxUint32 {
		w.err = errors.Errorf("binary codec: %s is %d bytes, limit %d", field, len(b), uint64(math.MaxUint32))
		return
	}
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// reader walks a body and remembers the first error, so field reads can be chained.
type reader struct {
	data []byte
	err  error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.data) < n {
		r.err = errShortBuffer
		return nil
	}
	out := r.data[:n]
	r.data = r.data[n:]
	return out
}

func (r *reader) string() string {
	head := r.take(2)
	if head == nil {
		return ""
	}
	return string(r.take(int(binary.BigEndian.Uint16(head))))
}

func (r *reader) bytes() json.RawMessage {
	head := r.take(4)
	if head == nil {
		return nil
	}
	n := int(binary.BigEndian.Uint32(head))
	if n == 0 {
		return nil
	}
	out := make(json.RawMessage, n)
	copy(out, r.take(n))
	return out
}
