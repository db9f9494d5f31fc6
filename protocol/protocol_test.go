package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	body := []byte(`{"id":"windowm.show:1","func":"windowm.show","args":{"winId":1}}`)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &Header{CodecType: CodecTypeJSON, MsgType: MsgTypeRequest}, body))
	require.Equal(t, HeaderSize+len(body), buf.Len())

	header, got, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, CodecTypeJSON, header.CodecType)
	require.Equal(t, MsgTypeRequest, header.MsgType)
	require.Equal(t, uint32(len(body)), header.BodyLen)
	require.Equal(t, body, got)
}

func TestDecodeBackToBackFrames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &Header{MsgType: MsgTypeResponse}, []byte("first")))
	require.NoError(t, Encode(&buf, &Header{MsgType: MsgTypeHeartbeat}, nil))
	require.NoError(t, Encode(&buf, &Header{MsgType: MsgTypeResponse}, []byte("second")))

	_, body, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, "first", string(body))

	header, body, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, MsgTypeHeartbeat, header.MsgType)
	require.Empty(t, body)

	_, body, err = Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, "second", string(body))
}

func TestDecodeInvalidMagic(t *testing.T) {
	frame := []byte{'m', 'r', 'p', Version, CodecTypeJSON, byte(MsgTypeRequest), 0, 0, 0, 0}
	_, _, err := Decode(bytes.NewReader(frame))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidMagic))
}

func TestDecodeInvalidVersion(t *testing.T) {
	frame := []byte{MagicByte1, MagicByte2, MagicByte3, 0xFF, CodecTypeJSON, byte(MsgTypeRequest), 0, 0, 0, 0}
	_, _, err := Decode(bytes.NewReader(frame))
	require.ErrorContains(t, err, "unsupported version")
}

func TestDecodeOversizedLength(t *testing.T) {
	frame := []byte{MagicByte1, MagicByte2, MagicByte3, Version, CodecTypeBinary, byte(MsgTypeResponse), 0, 0, 0, 0}
	binary.BigEndian.PutUint32(frame[6:], MaxBodyLen+1)
	_, _, err := Decode(bytes.NewReader(frame))
	require.True(t, errors.Is(err, ErrBodyTooLarge))
}

func TestDecodeTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &Header{MsgType: MsgTypeResponse}, []byte("truncated")))
	data := buf.Bytes()[:buf.Len()-3]

	_, _, err := Decode(bytes.NewReader(data))
	require.Error(t, err)
}

func TestDecodeLargeBody(t *testing.T) {
	large := make([]byte, 1024*1024)
	for i := range large {
		large[i] = byte(i % 256)
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &Header{CodecType: CodecTypeBinary, MsgType: MsgTypeRequest}, large))

	_, got, err := Decode(&buf)
	require.NoError(t, err)
	require.True(t, bytes.Equal(large, got))
}
