/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

package privsep

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// socketpair creates a connected pair of UNIX stream sockets and returns
// the "local" end already wrapped as a *net.UnixConn (owned by this
// process) and the "remote" end as a raw descriptor intended to be handed
// to a child via ForkExec's Files mapping (or closed if brokering failed).
func socketpair() (local *net.UnixConn, remoteFd int, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("socketpair: %w", err)
	}
	localFd, remoteFd := fds[0], fds[1]

	f := os.NewFile(uintptr(localFd), "imsg-local")
	c, err := net.FileConn(f)
	f.Close() // FileConn dup'd it; release our copy of the original descriptor
	if err != nil {
		_ = unix.Close(localFd)
		_ = unix.Close(remoteFd)
		return nil, 0, err
	}
	uc, ok := c.(*net.UnixConn)
	if !ok {
		c.Close()
		_ = unix.Close(remoteFd)
		return nil, 0, fmt.Errorf("socketpair: unexpected conn type %T", c)
	}
	return uc, remoteFd, nil
}

// rawPair creates a connected pair of UNIX stream sockets as two raw,
// independently owned descriptors — used for brokering a direct
// child<->child channel, where neither end is consumed locally; both are
// handed off as SCM_RIGHTS payloads to the two peers.
func rawPair() (a, b int, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("socketpair: %w", err)
	}
	return fds[0], fds[1], nil
}

// wrapUnixConn takes ownership of raw and wraps it as a *net.UnixConn. Used
// on the child side both for the inherited PRIVSEP_FD and for peer
// endpoints delivered by the parent as SCM_RIGHTS descriptors: in both
// cases the caller already owns a bare descriptor number that needs to
// become a conn usable by imsg.New.
func wrapUnixConn(raw int) (*net.UnixConn, error) {
	f := os.NewFile(uintptr(raw), "imsg-peer")
	c, err := net.FileConn(f)
	f.Close() // FileConn dup'd it; release our copy of the original descriptor
	if err != nil {
		return nil, err
	}
	uc, ok := c.(*net.UnixConn)
	if !ok {
		c.Close()
		return nil, fmt.Errorf("wrapUnixConn: unexpected conn type %T", c)
	}
	return uc, nil
}
