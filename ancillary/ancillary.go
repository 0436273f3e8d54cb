/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

// Package ancillary builds and parses SCM_RIGHTS control-message buffers
// for file-descriptor passing over a UNIX stream socket.
package ancillary

import (
	"golang.org/x/sys/unix"
)

// MaxBuf is the ancillary buffer size used for every imsg frame: large
// enough for one SCM_RIGHTS descriptor with room to spare. A receive that
// reports truncation at this size indicates a protocol violation by the
// peer, not a capacity problem worth enlarging for.
const MaxBuf = 128

// Build returns a control-message buffer carrying a single descriptor as
// SCM_RIGHTS, or nil if fd is negative (no FD to attach). The returned
// buffer fits within MaxBuf by construction; callers should refuse to
// attach more than one descriptor through this path, mirroring the core
// protocol's at-most-one-fd invariant.
func Build(fd int) []byte {
	if fd < 0 {
		return nil
	}
	return unix.UnixRights(fd)
}

// Parsed is the result of scanning a received ancillary buffer.
type Parsed struct {
	// FD is the first SCM_RIGHTS descriptor found, or -1 if none.
	FD int
	// Extra holds any additional descriptors found in the same or later
	// SCM_RIGHTS records; the caller must close these (Parse does not
	// close them, since it doesn't own fd.Owned construction).
	Extra []int
	// Parsed carries no truncation flag: Parse does not see the receive
	// flags, only content, so MSG_CTRUNC is checked by the caller of
	// recvmsg (imsg.Conn.Recv treats it as invalid data).
}

// Parse scans a received control-message buffer, classifying
// (SOL_SOCKET, SCM_RIGHTS) records and extracting descriptors in order.
// Unknown (level, type) pairs are ignored; the only classification this
// protocol requires. Per the at-most-one-fd policy, callers should keep
// only the first returned descriptor and close the rest.
func Parse(oob []byte) (Parsed, error) {
	var out Parsed
	out.FD = -1
	if len(oob) == 0 {
		return out, nil
	}
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return out, err
	}
	for _, m := range msgs {
		if m.Header.Level != unix.SOL_SOCKET || m.Header.Type != unix.SCM_RIGHTS {
			continue
		}
		fds, err := unix.ParseUnixRights(&m)
		if err != nil {
			return out, err
		}
		for _, got := range fds {
			if out.FD == -1 {
				out.FD = got
			} else {
				out.Extra = append(out.Extra, got)
			}
		}
	}
	return out, nil
}

// CloseExtra closes every descriptor in Extra, swallowing individual close
// errors: these descriptors were never requested by the caller and an
// error closing one of them changes nothing about how the message itself
// should be handled.
func (p Parsed) CloseExtra() {
	for _, e := range p.Extra {
		_ = unix.Close(e)
	}
}
