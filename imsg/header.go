/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

package imsg

import "encoding/binary"

const (
	// HeaderSize is the fixed wire size of a Header, native byte order,
	// little-endian on the wire.
	HeaderSize = 16

	// MaxMessage is the largest total frame size (header + payload) the
	// length field can represent.
	MaxMessage = 65535

	// Reserved is the highest message id reserved for the runtime;
	// application ids must be > Reserved.
	Reserved = 10

	// ControlConnect is the internal control message id used solely by
	// the parent to hand a peer-connect file descriptor to a child.
	ControlConnect = 1
)

// Header is the fixed 16-byte frame header shared by every imsg message.
type Header struct {
	ID     uint32
	Length uint16
	Flags  uint16
	PeerID uint32
	PID    int32
}

// encode writes the header in wire order into a 16-byte buffer.
func (h Header) encode() [HeaderSize]byte {
	var b [HeaderSize]byte
	binary.LittleEndian.PutUint32(b[0:4], h.ID)
	binary.LittleEndian.PutUint16(b[4:6], h.Length)
	binary.LittleEndian.PutUint16(b[6:8], h.Flags)
	binary.LittleEndian.PutUint32(b[8:12], h.PeerID)
	binary.LittleEndian.PutUint32(b[12:16], uint32(h.PID))
	return b
}

// decodeHeader parses a 16-byte prefix into a Header.
func decodeHeader(b []byte) Header {
	_ = b[HeaderSize-1] // bounds check hint
	return Header{
		ID:     binary.LittleEndian.Uint32(b[0:4]),
		Length: binary.LittleEndian.Uint16(b[4:6]),
		Flags:  binary.LittleEndian.Uint16(b[6:8]),
		PeerID: binary.LittleEndian.Uint32(b[8:12]),
		PID:    int32(binary.LittleEndian.Uint32(b[12:16])),
	}
}
