/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

// Package fd provides a single-owner wrapper around a raw kernel file
// descriptor, closing it exactly once when ownership ends.
package fd

import (
	"sync"

	"golang.org/x/sys/unix"
)

// Owned is an exclusively-owned raw file descriptor. The zero value is not
// valid; construct with New. At most one Owned is ever live for a given
// descriptor number: Release transfers responsibility to the caller, and
// Close is safe to call more than once.
type Owned struct {
	mu       sync.Mutex
	fd       int
	released bool
	closed   bool
}

// New takes ownership of a raw descriptor.
func New(raw int) *Owned {
	return &Owned{fd: raw}
}

// Fd returns the underlying descriptor number. The caller must not close it
// directly; use Dup if an independent copy is needed.
func (o *Owned) Fd() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fd
}

// Dup duplicates the descriptor via dup(2), returning a new, independently
// owned descriptor. Fails with the underlying errno on resource exhaustion.
func (o *Owned) Dup() (*Owned, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.released || o.closed {
		return nil, unix.EBADF
	}
	nfd, err := unix.Dup(o.fd)
	if err != nil {
		return nil, err
	}
	return New(nfd), nil
}

// IsOpen reports whether the descriptor still refers to an open file, via
// F_GETFD. A closed or never-valid descriptor returns false.
func (o *Owned) IsOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.released || o.closed {
		return false
	}
	_, err := unix.FcntlInt(uintptr(o.fd), unix.F_GETFD, 0)
	return err == nil
}

// SetCloexec sets or clears FD_CLOEXEC on the descriptor.
func (o *Owned) SetCloexec(on bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	flags, err := unix.FcntlInt(uintptr(o.fd), unix.F_GETFD, 0)
	if err != nil {
		return err
	}
	if on {
		flags |= unix.FD_CLOEXEC
	} else {
		flags &^= unix.FD_CLOEXEC
	}
	_, err = unix.FcntlInt(uintptr(o.fd), unix.F_SETFD, flags)
	return err
}

// Release relinquishes ownership without closing the descriptor, returning
// its raw number. Subsequent Close calls are no-ops.
func (o *Owned) Release() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.released = true
	return o.fd
}

// Close closes the descriptor unconditionally, swallowing the error on a
// second call: by the time Close is called twice, whatever held the first
// reference has already treated the descriptor as dead.
func (o *Owned) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.released || o.closed {
		return nil
	}
	o.closed = true
	return unix.Close(o.fd)
}
