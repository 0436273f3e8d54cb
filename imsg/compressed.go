/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

package imsg

import (
	"github.com/gravwell/privsep/fd"
	"github.com/klauspost/compress/snappy"
)

// SendCompressed snappy-compresses payload before handing it to Send. This
// is purely an application-layer convenience: the wire header is
// unaffected, and a receiver that doesn't expect compression would simply
// get back compressed bytes as its payload, so compressed and
// uncompressed ids must not be mixed on the same channel by convention.
func (c *Conn) SendCompressed(id uint32, peerID uint32, flags uint16, payload []byte, f *fd.Owned) error {
	return c.Send(id, peerID, flags, snappy.Encode(nil, payload), f)
}

// DecodeCompressed reverses SendCompressed's framing on a received
// message's payload.
func DecodeCompressed(payload []byte) ([]byte, error) {
	return snappy.Decode(nil, payload)
}
