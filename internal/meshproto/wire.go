package meshproto

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrWireType is returned when a known field arrives with an unexpected wire type.
var ErrWireType = errors.New("meshproto: unexpected wire type")

// decoder walks the fields of one protobuf message. The first error sticks;
// callers check err once after the loop.
type decoder struct {
	b   []byte
	num protowire.Number
	typ protowire.Type
	err error
}

func newDecoder(b []byte) *decoder {
	return &decoder{b: b}
}

func (d *decoder) next() bool {
	if d.err != nil || len(d.b) == 0 {
		return false
	}
	num, typ, n := protowire.ConsumeTag(d.b)
	if n < 0 {
		d.err = protowire.ParseError(n)
		return false
	}
	d.b = d.b[n:]
	d.num, d.typ = num, typ
	return true
}

func (d *decoder) fail(n int) {
	if d.err == nil {
		d.err = protowire.ParseError(n)
	}
}

func (d *decoder) expect(t protowire.Type) bool {
	if d.typ == t {
		return true
	}
	if d.err == nil {
		d.err = fmt.Errorf("%w: field %d has type %d, want %d", ErrWireType, d.num, d.typ, t)
	}
	return false
}

func (d *decoder) varint() uint64 {
	if !d.expect(protowire.VarintType) {
		return 0
	}
	v, n := protowire.ConsumeVarint(d.b)
	if n < 0 {
		d.fail(n)
		return 0
	}
	d.b = d.b[n:]
	return v
}

func (d *decoder) uint32() uint32 { return uint32(d.varint()) }

func (d *decoder) int32() int32 { return int32(d.varint()) }

func (d *decoder) bool() bool { return protowire.DecodeBool(d.varint()) }

func (d *decoder) fixed32() uint32 {
	if !d.expect(protowire.Fixed32Type) {
		return 0
	}
	v, n := protowire.ConsumeFixed32(d.b)
	if n < 0 {
		d.fail(n)
		return 0
	}
	d.b = d.b[n:]
	return v
}

func (d *decoder) sfixed32() int32 { return int32(d.fixed32()) }

func (d *decoder) float32() float32 { return math.Float32frombits(d.fixed32()) }

// bytes copies the value so decoded messages never alias the read buffer.
func (d *decoder) bytes() []byte {
	if !d.expect(protowire.BytesType) {
		return nil
	}
	v, n := protowire.ConsumeBytes(d.b)
	if n < 0 {
		d.fail(n)
		return nil
	}
	d.b = d.b[n:]
	return append([]byte{}, v...)
}

func (d *decoder) string() string { return string(d.bytes()) }

// message decodes an embedded message field with fn.
func (d *decoder) message(fn func([]byte) error) {
	b := d.bytes()
	if d.err != nil {
		return
	}
	if err := fn(b); err != nil {
		d.err = fmt.Errorf("field %d: %w", d.num, err)
	}
}

func (d *decoder) skip() {
	n := protowire.ConsumeFieldValue(d.num, d.typ, d.b)
	if n < 0 {
		d.fail(n)
		return
	}
	d.b = d.b[n:]
}

func protowireNumber(i int) protowire.Number { return protowire.Number(i) }

// The append helpers follow proto3 rules: zero scalars are omitted.

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	return appendVarint(b, num, uint64(int64(v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendVarint(b, num, protowire.EncodeBool(v))
}

func appendFixed32(b []byte, num protowire.Number, v uint32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, v)
}

func appendFloat32(b []byte, num protowire.Number, v float32) []byte {
	return appendFixed32(b, num, math.Float32bits(v))
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// appendMessage always writes the field, even for an empty message, so oneof
// members survive a round trip.
func appendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}
