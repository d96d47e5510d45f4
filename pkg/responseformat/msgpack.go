package responseformat

import (
	"bytes"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// NewMsgPackEncoder returns an encoder that honours json struct tags, so a
// type encodes with the same field names in both formats.
func NewMsgPackEncoder(w io.Writer) *msgpack.Encoder {
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	return enc
}

// NewMsgPackDecoder is the decoding counterpart of NewMsgPackEncoder.
func NewMsgPackDecoder(r io.Reader) *msgpack.Decoder {
	dec := msgpack.NewDecoder(r)
	dec.SetCustomStructTag("json")
	return dec
}

// MarshalMsgPack encodes v using json tags.
func MarshalMsgPack(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewMsgPackEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalMsgPack decodes data produced by MarshalMsgPack into v.
func UnmarshalMsgPack(data []byte, v any) error {
	return NewMsgPackDecoder(bytes.NewReader(data)).Decode(v)
}
