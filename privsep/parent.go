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
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/gravwell/privsep/fd"
	"github.com/gravwell/privsep/imsg"
	"github.com/gravwell/privsep/log"
	"github.com/gravwell/privsep/perrors"
	"github.com/gravwell/privsep/topology"
)

// peerInfo is the parent-side view of one topology entry: its name, its
// pid, and its imsg handler (nil for the parent's own slot and for
// entries the parent does not connect to).
type peerInfo struct {
	name string
	pid  int
	conn *imsg.Conn
}

// Parent drives the fork/exec loop and peer brokering described in
// spec §4.6. Construct with NewParent, call Run once, then use Peers/Conn
// to interact with the launched children; SIGCHLD handling itself is
// application-level per spec §1's scope boundary.
type Parent struct {
	g    *topology.Graph
	lg   *log.Logger
	opts Options

	mu    sync.Mutex
	peers []peerInfo

	supervise map[int]SuperviseOptions
}

// NewParent validates the topology and constructs a Parent ready to Run.
func NewParent(g *topology.Graph, lg *log.Logger, opts Options) (*Parent, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &Parent{
		g:         g,
		lg:        lg,
		opts:      opts,
		peers:     make([]peerInfo, len(g.Processes)),
		supervise: make(map[int]SuperviseOptions),
	}, nil
}

// Run forks and execs every connected child, then brokers the configured
// child<->child edges. It returns once the topology is fully wired; it
// does not block waiting for children to exit (use Supervise or SIGCHLD
// handling at the application layer for that).
func (p *Parent) Run() error {
	if !p.opts.DisablePrivdrop && os.Geteuid() != 0 {
		return perrors.ErrPermissionDenied
	}

	self, err := selfExecutable()
	if err != nil {
		return fmt.Errorf("privsep: resolving self executable: %w", err)
	}

	p.mu.Lock()
	p.peers[0] = peerInfo{name: p.g.Processes[0].Name, pid: os.Getpid()}
	p.mu.Unlock()

	var eg errgroup.Group
	for i := 1; i < len(p.g.Processes); i++ {
		i := i
		proc := p.g.Processes[i]
		if !proc.Connect {
			p.mu.Lock()
			p.peers[i] = peerInfo{name: proc.Name, pid: os.Getpid()}
			p.mu.Unlock()
			continue
		}
		eg.Go(func() error {
			info, err := p.spawn(self, i, proc)
			if err != nil {
				return fmt.Errorf("privsep: spawning %q: %w", proc.Name, err)
			}
			p.mu.Lock()
			p.peers[i] = info
			p.mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	// Closing an imsg channel must never terminate the parent; Go's
	// runtime already suppresses SIGPIPE for socket writes (it is only
	// ever delivered for writes to fds 1/2), but install the ignore
	// disposition explicitly for parity with spec §6 and in case some
	// future code path writes to a pipe fd directly.
	signal.Ignore(syscall.SIGPIPE)

	if len(p.peers) != len(p.g.Processes) {
		return fmt.Errorf("privsep: internal error: peer count %d != topology size %d", len(p.peers), len(p.g.Processes))
	}

	return p.broker()
}

// spawn forks and execs one child, wiring its parent-channel end.
func (p *Parent) spawn(self string, idx int, proc topology.Process) (peerInfo, error) {
	local, remoteFd, err := socketpair()
	if err != nil {
		return peerInfo{}, err
	}

	fgFlag := ""
	if p.opts.Foreground {
		fgFlag = "-d"
	}
	argv := []string{proc.Name, fgFlag}
	env := []string{EnvLogFilter + "=" + os.Getenv(EnvLogFilter)}

	attr := &syscall.ProcAttr{
		Env:   env,
		Files: childFiles(remoteFd),
		Sys:   &syscall.SysProcAttr{Setsid: true},
	}

	pid, err := syscall.ForkExec(self, argv, attr)
	// The remote descriptor was dup'd into the child by ForkExec (or the
	// attempt failed outright); either way this process's copy must go.
	_ = syscall.Close(remoteFd)
	if err != nil {
		local.Close()
		return peerInfo{}, err
	}

	conn := imsg.New(local, proc.Name, p.lg)
	if p.lg != nil {
		p.lg.Info("spawned child", log.KV("name", proc.Name), log.KV("pid", pid))
	}
	return peerInfo{name: proc.Name, pid: pid, conn: conn}, nil
}

// childFiles builds the fd-number-exact file mapping for a forked child:
// fd0-2 inherited as-is, fd3 closed (nothing is open between the standard
// descriptors and PRIVSEP_FD), fd4 (PRIVSEP_FD) mapped to the new
// channel's remote end.
func childFiles(remoteFd int) []uintptr {
	const closeSlot = ^uintptr(0)
	files := make([]uintptr, PRIVSEP_FD+1)
	files[0] = uintptr(os.Stdin.Fd())
	files[1] = uintptr(os.Stdout.Fd())
	files[2] = uintptr(os.Stderr.Fd())
	for i := 3; i < PRIVSEP_FD; i++ {
		files[i] = closeSlot
	}
	files[PRIVSEP_FD] = uintptr(remoteFd)
	return files
}

// broker creates one additional socket pair per declared child<->child
// edge and ships each end to its owning peer as a peer-connect control
// message, per spec §4.6. The parent's own copies of both ends are closed
// once handed off.
func (p *Parent) broker() error {
	var eg errgroup.Group
	for _, e := range p.g.Edges() {
		e := e
		eg.Go(func() error {
			return p.brokerEdge(e.Lo, e.Hi)
		})
	}
	return eg.Wait()
}

func (p *Parent) brokerEdge(a, b int) error {
	p.mu.Lock()
	connA, connB := p.peers[a].conn, p.peers[b].conn
	p.mu.Unlock()
	if connA == nil || connB == nil {
		return fmt.Errorf("privsep: edge (%d,%d) references an unconnected peer", a, b)
	}

	left, right, err := rawPair()
	if err != nil {
		return err
	}
	leftOwned := fd.New(left)
	rightOwned := fd.New(right)

	if err := connA.SendControlConnect(uint32(b), leftOwned); err != nil {
		leftOwned.Close()
		rightOwned.Close()
		return fmt.Errorf("privsep: brokering (%d,%d) to %d: %w", a, b, a, err)
	}
	leftOwned.Close()
	if err := connB.SendControlConnect(uint32(a), rightOwned); err != nil {
		rightOwned.Close()
		return fmt.Errorf("privsep: brokering (%d,%d) to %d: %w", a, b, b, err)
	}
	rightOwned.Close()
	return nil
}

// PeerInfo is the parent-side view of one topology entry exposed to
// application code: its name, its pid, and whether the parent holds a
// live channel to it.
type PeerInfo struct {
	Name      string
	PID       int
	Connected bool
}

// Peers returns a snapshot of the current peer table.
func (p *Parent) Peers() []PeerInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PeerInfo, len(p.peers))
	for i, pe := range p.peers {
		out[i] = PeerInfo{Name: pe.name, PID: pe.pid, Connected: pe.conn != nil}
	}
	return out
}

// Conn returns the imsg channel to the named peer, or nil if there is
// none (the parent's own slot, or a child the parent did not connect to).
func (p *Parent) Conn(name string) *imsg.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pe := range p.peers {
		if pe.name == name {
			return pe.conn
		}
	}
	return nil
}

// Close shuts down every live peer channel.
func (p *Parent) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var first error
	for _, pe := range p.peers {
		if pe.conn == nil {
			continue
		}
		if err := pe.conn.Shutdown(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
