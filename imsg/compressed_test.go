/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

package imsg

import (
	"bytes"
	"testing"
)

func TestSendCompressedRoundTrip(t *testing.T) {
	a, b := connPair(t)
	defer a.Shutdown()
	defer b.Shutdown()

	payload := bytes.Repeat([]byte("gravwell privsep payload "), 64)
	if err := a.SendCompressed(42, 0, 0, payload, nil); err != nil {
		t.Fatal(err)
	}

	msg, err := b.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if msg == nil {
		t.Fatal("expected a message")
	}
	if bytes.Equal(msg.Payload, payload) {
		t.Fatal("expected the wire payload to be compressed, not equal to the original")
	}

	got, err := DecodeCompressed(msg.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("decompressed payload does not match the original")
	}
}
