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
	"os/signal"
	"sync"
	"syscall"

	"github.com/gravwell/privsep/fd"
	"github.com/gravwell/privsep/imsg"
	"github.com/gravwell/privsep/log"
	"github.com/gravwell/privsep/perrors"
	"github.com/gravwell/privsep/topology"
)

// Child is the child-side view of a running process: its own topology
// index, and one imsg channel per peer it is connected to. peers[0] is
// always the parent channel; peers[i] for i>=1 corresponds to topology
// index i and is populated only for indices the child<->child edge set
// connects this child to (spec §3, "Child state").
type Child struct {
	g    *topology.Graph
	lg   *log.Logger
	idx  int
	name string
	pid  int

	mu    sync.Mutex
	peers []*imsg.Conn
}

// NewChild runs the entirety of the child lifecycle described in spec
// §4.7: adopt the inherited parent channel at PRIVSEP_FD, run the privdrop
// sequence (unless disabled), install the SIGPIPE disposition, then block
// until every expected peer delivery from the parent has arrived. It
// returns a ready-to-use Child, or an error if any step — including a
// protocol violation during the peer wait — fails. os.Args[0] is expected
// to be this process's topology name, exactly as the parent set argv[0] at
// exec time.
func NewChild(g *topology.Graph, lg *log.Logger, opts Options) (*Child, error) {
	name := os.Args[0]
	idx := g.IndexOf(name)
	if idx <= 0 {
		return nil, &perrors.InvalidProcessError{Name: name}
	}

	uc, err := adoptParentChannel()
	if err != nil {
		return nil, fmt.Errorf("privsep: adopting parent channel: %w", err)
	}
	parentConn := imsg.New(uc, "parent", lg)

	if !opts.DisablePrivdrop {
		if err := dropPrivileges(opts.Username); err != nil {
			parentConn.Shutdown()
			return nil, err
		}
	}

	// See privsep.Parent.Run: closing an imsg channel must never kill the
	// process, and Go already suppresses SIGPIPE for socket writes, but the
	// disposition is installed explicitly for parity with spec §6.
	signal.Ignore(syscall.SIGPIPE)

	c := &Child{
		g:     g,
		lg:    lg,
		idx:   idx,
		name:  name,
		pid:   os.Getpid(),
		peers: make([]*imsg.Conn, len(g.Processes)),
	}
	c.peers[0] = parentConn

	if err := c.waitForPeers(); err != nil {
		c.Shutdown()
		return nil, err
	}

	if lg != nil {
		lg.Info("child ready", log.KV("name", name), log.KV("pid", c.pid))
	}
	return c, nil
}

// adoptParentChannel wraps the well-known inherited descriptor (spec §6,
// PRIVSEP_FD=4) as a *net.UnixConn after setting FD_CLOEXEC on it: the
// parent leaves it cleared across exec so the child can find it, and the
// child immediately re-establishes FD_CLOEXEC so a hypothetical future
// exec by this process would not leak it, matching spec §5's "FD table"
// rule.
func adoptParentChannel() (*net.UnixConn, error) {
	owned := fd.New(PRIVSEP_FD)
	if err := owned.SetCloexec(true); err != nil {
		owned.Release()
		return nil, err
	}
	return wrapUnixConn(owned.Release())
}

// waitForPeers blocks until a peer-connect control message has arrived for
// every child<->child edge this process participates in, per spec §4.7.
// Any other observation on the parent channel — the wrong id, a missing
// FD, an unexpected peer index, or the channel closing — is a fatal
// protocol violation.
func (c *Child) waitForPeers() error {
	expected := make(map[uint32]bool)
	for _, p := range c.g.PeersOf(c.idx) {
		expected[uint32(p)] = true
	}
	for len(expected) > 0 {
		msg, err := c.peers[0].Recv()
		if err != nil {
			return fmt.Errorf("privsep: waiting for peers: %w", err)
		}
		if msg == nil {
			err := &perrors.TerminatedError{Name: "parent"}
			c.logProtocolViolation(err)
			return err
		}
		if msg.Header.ID != imsg.ControlConnect || msg.FD == nil {
			err := fmt.Errorf("privsep: protocol violation waiting for peers: id=%d has-fd=%v", msg.Header.ID, msg.FD != nil)
			c.logProtocolViolation(err)
			return err
		}
		peerIdx := msg.Header.PeerID
		if !expected[peerIdx] {
			msg.FD.Close()
			err := fmt.Errorf("privsep: protocol violation: unexpected peer index %d", peerIdx)
			c.logProtocolViolation(err)
			return err
		}
		if !msg.FD.IsOpen() {
			err := fmt.Errorf("privsep: protocol violation: fd for peer %d is not open", peerIdx)
			c.logProtocolViolation(err)
			return err
		}
		uc, err := wrapUnixConn(msg.FD.Release())
		if err != nil {
			return fmt.Errorf("privsep: wrapping peer %d channel: %w", peerIdx, err)
		}
		delete(expected, peerIdx)
		c.mu.Lock()
		c.peers[peerIdx] = imsg.New(uc, c.g.Processes[peerIdx].Name, c.lg)
		c.mu.Unlock()
	}
	return nil
}

// logProtocolViolation logs a fatal protocol violation at CRITICAL before
// it propagates up through NewChild/Dispatch to the caller, which is
// expected to treat it as cause for an os.Exit (cmd/privsepd/main.go does
// so via lg.Fatal).
func (c *Child) logProtocolViolation(err error) {
	if c.lg != nil {
		c.lg.Critical("protocol violation", log.KV("name", c.name), log.KVErr(err))
	}
}

// Conn returns the imsg channel for the given topology index: index 0 is
// always the parent, higher indices are child<->child peers. It returns
// nil for an out-of-range index or one this child is not connected to.
func (c *Child) Conn(idx int) *imsg.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx < 0 || idx >= len(c.peers) {
		return nil
	}
	return c.peers[idx]
}

// ConnByName resolves a peer channel by topology name.
func (c *Child) ConnByName(name string) *imsg.Conn {
	return c.Conn(c.g.IndexOf(name))
}

// Parent returns the channel to the parent process.
func (c *Child) Parent() *imsg.Conn { return c.Conn(0) }

// Name returns this process's own topology name.
func (c *Child) Name() string { return c.name }

// Index returns this process's own topology index.
func (c *Child) Index() int { return c.idx }

// PID returns this process's own pid.
func (c *Child) PID() int { return c.pid }

// Shutdown forcibly closes every peer channel's underlying socket, so any
// in-flight Recv on this process unblocks. That Recv returns the socket's
// closed-connection error rather than end-of-stream (nil, nil); a Recv
// started after Shutdown returns perrors.ErrNotConnected.
func (c *Child) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var first error
	for _, conn := range c.peers {
		if conn == nil {
			continue
		}
		if err := conn.Shutdown(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
