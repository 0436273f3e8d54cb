/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

package main

import (
	"fmt"
	"net"
	"os"

	"github.com/gravwell/privsep/imsg"
	"github.com/gravwell/privsep/privsep"
)

// runHello implements the "hello" demo role exercised by spec §8's S1 and
// S3 scenarios: any plain message the parent sends is echoed straight
// back on the same id/peer_id; a message that carries a file descriptor
// is instead treated as a listening socket — hello reads its bound port
// via getsockname and returns the port as a 4-byte payload.
func runHello(c *privsep.Child) error {
	parent := c.Parent()
	for {
		msg, err := parent.Recv()
		if err != nil {
			return err
		}
		if msg == nil {
			return nil
		}

		if msg.FD != nil {
			port, perr := listenerPort(msg.FD.Release())
			if perr != nil {
				return perr
			}
			var enc imsg.Encoder
			enc.PutUint32(uint32(port))
			if err := parent.Send(msg.Header.ID, msg.Header.PeerID, msg.Header.Flags, enc.Bytes(), nil); err != nil {
				return err
			}
			continue
		}

		if err := parent.Send(msg.Header.ID, msg.Header.PeerID, msg.Header.Flags, msg.Payload, nil); err != nil {
			return err
		}
	}
}

// listenerPort takes ownership of rawFd, wraps it as a net.Listener, and
// returns the TCP port it is bound to.
func listenerPort(rawFd int) (int, error) {
	f := os.NewFile(uintptr(rawFd), "privsepd-listener")
	defer f.Close()
	ln, err := net.FileListener(f)
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	addr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("privsepd: unexpected listener address type %T", ln.Addr())
	}
	return addr.Port, nil
}
