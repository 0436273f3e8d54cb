/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

package imsg

import (
	"encoding/binary"

	"github.com/gravwell/privsep/perrors"
)

// Encoder builds a payload using the shared binary codec (§6 of the
// runtime's wire-format contract): little-endian integers, 64-bit
// length-prefixed byte sequences, UTF-8 strings as length-prefixed byte
// arrays, structs as field concatenation, tagged unions as a 32-bit
// discriminant followed by the variant's fields. The unit type encodes as
// the empty byte sequence, so an Encoder that is never written to
// produces a valid empty payload.
type Encoder struct {
	buf []byte
}

// Bytes returns the encoded payload built so far.
func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) PutUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) PutUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) PutInt32(v int32) { e.PutUint32(uint32(v)) }

// PutBytes appends a 64-bit length prefix followed by the raw bytes.
func (e *Encoder) PutBytes(v []byte) {
	e.PutUint64(uint64(len(v)))
	e.buf = append(e.buf, v...)
}

// PutString appends a length-prefixed UTF-8 string.
func (e *Encoder) PutString(v string) { e.PutBytes([]byte(v)) }

// Decoder reads a payload built by Encoder. Decoder methods return
// perrors.ErrInvalidData if the payload is shorter than the field being
// read requires.
type Decoder struct {
	buf []byte
	off int
}

// NewDecoder wraps a received payload for field-by-field decoding.
func NewDecoder(payload []byte) *Decoder {
	return &Decoder{buf: payload}
}

func (d *Decoder) need(n int) error {
	if len(d.buf)-d.off < n {
		return perrors.ErrInvalidData
	}
	return nil
}

func (d *Decoder) Uint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.off : d.off+4])
	d.off += 4
	return v, nil
}

func (d *Decoder) Uint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.buf[d.off : d.off+8])
	d.off += 8
	return v, nil
}

func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

func (d *Decoder) Bytes() ([]byte, error) {
	n, err := d.Uint64()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(d.buf)-d.off) {
		return nil, perrors.ErrInvalidData
	}
	v := d.buf[d.off : d.off+int(n)]
	d.off += int(n)
	return v, nil
}

func (d *Decoder) String() (string, error) {
	b, err := d.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Done reports whether the whole payload has been consumed. A unit-typed
// payload is always Done immediately after construction.
func (d *Decoder) Done() bool { return d.off == len(d.buf) }
