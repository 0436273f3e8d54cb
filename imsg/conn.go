/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

// Package imsg implements the typed, length-prefixed message protocol
// (with optional file-descriptor attachment) that privilege-separated
// processes use to talk to each other over a UNIX stream socket. Frames
// are fixed-header, length-prefixed, and carry at most one SCM_RIGHTS
// file descriptor each; a persistent receive buffer absorbs arbitrary
// read chunking so every complete frame is returned exactly once.
//
// Readiness-driven send/recv (what the original design calls the "stream
// extension", C3) needs no separate implementation on top of Go's
// net.UnixConn: ReadMsgUnix/WriteMsgUnix already suspend the calling
// goroutine at readiness boundaries and retry EAGAIN internally, which is
// the exact contract this package depends on.
package imsg

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/gravwell/privsep/ancillary"
	"github.com/gravwell/privsep/fd"
	"github.com/gravwell/privsep/perrors"

	"github.com/gravwell/privsep/log"
)

// Message is a fully assembled, received frame.
type Message struct {
	Header  Header
	FD      *fd.Owned // nil unless the frame carried an SCM_RIGHTS fd
	Payload []byte
}

// Conn is an imsg handler: one stream socket, one shutdown flag, one
// persistent receive buffer. Sends and receives after shutdown fail with
// perrors.ErrNotConnected. The receive buffer is guarded by a
// non-reentrant mutex so concurrent receivers serialize safely, per the
// concurrency model's shared-resource rule; sends take no framer-level
// lock; the kernel socket serializes them.
type Conn struct {
	uc   *net.UnixConn
	name string
	id   uuid.UUID
	lg   *log.Logger

	recvMu  sync.Mutex
	buf     []byte
	pending []*fd.Owned // FDs observed mid-assembly, consumed FIFO per frame

	shutMu   sync.Mutex
	shutdown bool
}

// New wraps an established UNIX stream socket as an imsg handler. name is
// used only for logging.
func New(uc *net.UnixConn, name string, lg *log.Logger) *Conn {
	return &Conn{
		uc:   uc,
		name: name,
		id:   uuid.New(),
		lg:   lg,
		buf:  make([]byte, 0, MaxMessage),
	}
}

func (c *Conn) isShutdown() bool {
	c.shutMu.Lock()
	defer c.shutMu.Unlock()
	return c.shutdown
}

// Shutdown closes the underlying socket out-of-band (without otherwise
// altering Conn state) and marks the handler shut down. Calling Shutdown
// twice is a no-op on the second call, per spec's shutdown-idempotence
// property.
func (c *Conn) Shutdown() error {
	c.shutMu.Lock()
	defer c.shutMu.Unlock()
	if c.shutdown {
		return nil
	}
	c.shutdown = true
	return c.uc.Close()
}

// Send transmits an application message. id must be greater than Reserved;
// application code cannot construct the internal control messages this
// way. f, if non-nil, is attached as a single SCM_RIGHTS descriptor and is
// not closed by Send — ownership stays with the caller.
func (c *Conn) Send(id uint32, peerID uint32, flags uint16, payload []byte, f *fd.Owned) error {
	if id <= Reserved {
		return perrors.ErrReservedID
	}
	return c.send(Header{ID: id, PeerID: peerID, Flags: flags}, payload, f)
}

// SendControlConnect is the internal send path that bypasses the
// reserved-ID check: it is used solely by the parent lifecycle to deliver
// a peer-connect message (header id=ControlConnect, empty payload,
// ancillary fd = the new channel endpoint) to a child.
func (c *Conn) SendControlConnect(peerID uint32, f *fd.Owned) error {
	return c.send(Header{ID: ControlConnect, PeerID: peerID}, nil, f)
}

func (c *Conn) send(h Header, payload []byte, f *fd.Owned) error {
	if c.isShutdown() {
		return perrors.ErrNotConnected
	}
	total := HeaderSize + len(payload)
	if total > MaxMessage {
		return perrors.ErrInvalidData
	}
	h.Length = uint16(total)
	h.PID = int32(os.Getpid())

	hdr := h.encode()
	data := make([]byte, 0, total)
	data = append(data, hdr[:]...)
	data = append(data, payload...)

	var oob []byte
	if f != nil {
		oob = ancillary.Build(f.Fd())
	}

	n, _, err := c.uc.WriteMsgUnix(data, oob, nil)
	if err != nil {
		return err
	}
	if n != len(data) {
		return perrors.ErrShortWrite
	}
	if c.lg != nil {
		c.lg.Debug("imsg send", log.KV("conn", c.id), log.KV("peer", c.name), log.KV("id", h.ID), log.KV("len", h.Length))
	}
	return nil
}

// Recv returns the next complete frame. It returns (nil, nil) when the
// peer has closed the channel cleanly — a normal terminal condition, not
// an error. It returns perrors.ErrNotConnected if the handler has been
// shut down.
func (c *Conn) Recv() (*Message, error) {
	if c.isShutdown() {
		return nil, perrors.ErrNotConnected
	}
	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	for {
		if len(c.buf) >= HeaderSize {
			h := decodeHeader(c.buf)
			if h.Length < HeaderSize || int(h.Length) > MaxMessage {
				return nil, perrors.ErrInvalidData
			}
			if len(c.buf) >= int(h.Length) {
				frame := append([]byte(nil), c.buf[:h.Length]...)
				c.buf = append(c.buf[:0], c.buf[h.Length:]...)
				msg := &Message{Header: h, Payload: frame[HeaderSize:]}
				if len(c.pending) > 0 {
					msg.FD = c.pending[0]
					c.pending = c.pending[1:]
				}
				return msg, nil
			}
		}

		tail := make([]byte, MaxMessage)
		oob := make([]byte, ancillary.MaxBuf)
		n, oobn, flags, _, err := c.uc.ReadMsgUnix(tail, oob)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		if flags&unixMsgCtrunc != 0 {
			return nil, perrors.ErrInvalidData
		}
		c.buf = append(c.buf, tail[:n]...)

		if oobn > 0 {
			parsed, perr := ancillary.Parse(oob[:oobn])
			if perr != nil {
				return nil, perr
			}
			if parsed.FD != -1 {
				c.pending = append(c.pending, fd.New(parsed.FD))
			}
			parsed.CloseExtra()
		}
	}
}
