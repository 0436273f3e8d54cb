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
	"syscall"
	"time"

	"github.com/gravwell/privsep/log"
)

// SuperviseOptions enables the opt-in auto-restart extension described in
// SPEC_FULL.md: off by default (a child is forked exactly once, matching
// the original design), but available per topology entry for components
// that should come back up after a crash.
type SuperviseOptions struct {
	MaxRestarts    int
	RestartPeriod  time.Duration
	CooldownPeriod time.Duration
}

type restartWindow struct {
	opts  SuperviseOptions
	times []time.Time
}

func newRestartWindow(opts SuperviseOptions) *restartWindow {
	if opts.MaxRestarts <= 0 {
		opts.MaxRestarts = 3
	}
	if opts.RestartPeriod <= 0 {
		opts.RestartPeriod = 10 * time.Minute
	}
	if opts.CooldownPeriod <= 0 {
		opts.CooldownPeriod = time.Minute
	}
	return &restartWindow{opts: opts, times: make([]time.Time, opts.MaxRestarts)}
}

// cooldown returns how long to wait before the next restart attempt,
// adapted from the teacher's manager/process.go restarter: if the oldest
// recorded restart is still within RestartPeriod, the window has been
// exhausted and the caller should wait CooldownPeriod.
func (w *restartWindow) cooldown() time.Duration {
	oldest := w.times[len(w.times)-1]
	if oldest.IsZero() {
		return 0
	}
	if time.Since(oldest) < w.opts.RestartPeriod {
		return w.opts.CooldownPeriod
	}
	return 0
}

func (w *restartWindow) record() {
	for i := len(w.times) - 1; i > 0; i-- {
		w.times[i] = w.times[i-1]
	}
	w.times[0] = time.Now()
}

// EnableSupervision turns on auto-restart for the given topology index.
// It has no effect on index 0 (the parent's own slot).
//
// Supervision is refused for any index with a child<->child edge. restart
// does not re-broker edges: re-brokering would mean sending the surviving
// peer a fresh ControlConnect, but a peer only ever drains ControlConnect
// inside its own one-shot Child.waitForPeers startup loop
// (privsep/child.go), and nothing re-enters it later to absorb a late
// peer-connect message. Auto-restart is therefore restricted to indices
// with no child<->child peers, where restart only has to re-establish the
// parent channel.
func (p *Parent) EnableSupervision(idx int, opts SuperviseOptions) error {
	if idx == 0 {
		return nil
	}
	if len(p.g.PeersOf(idx)) > 0 {
		return fmt.Errorf("privsep: cannot supervise %q: has child<->child edges", p.g.Processes[idx].Name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.supervise[idx] = opts
	return nil
}

// Supervise blocks, reaping exited children via SIGCHLD/wait4 and
// restarting any whose topology index has supervision enabled, until
// stop is closed. Non-supervised children that exit are simply reaped;
// their peer-table entry is left as it was (old pid, old channel), and
// application code is expected to
// notice via Peers() or its own SIGCHLD handling if it needs to react,
// per spec §1's scope boundary ("application code handles SIGCHLD").
func (p *Parent) Supervise(self string, stop <-chan struct{}) error {
	sigchld := make(chan os.Signal, 1)
	signal.Notify(sigchld, syscall.SIGCHLD)
	defer signal.Stop(sigchld)

	windows := make(map[int]*restartWindow)

	for {
		select {
		case <-stop:
			return nil
		case <-sigchld:
			for {
				var status syscall.WaitStatus
				pid, err := syscall.Wait4(-1, &status, syscall.WNOHANG, nil)
				if err != nil || pid <= 0 {
					break
				}
				idx := p.indexForPid(pid)
				if idx < 0 {
					continue
				}
				if p.lg != nil {
					p.lg.Info("child exited", log.KV("name", p.g.Processes[idx].Name), log.KV("pid", pid), log.KV("status", status.ExitStatus()))
				}
				p.mu.Lock()
				opts, supervised := p.supervise[idx]
				p.mu.Unlock()
				if !supervised {
					continue
				}
				w, ok := windows[idx]
				if !ok {
					w = newRestartWindow(opts)
					windows[idx] = w
				}
				if d := w.cooldown(); d > 0 {
					if p.lg != nil {
						p.lg.Warn("restart cooldown", log.KV("name", p.g.Processes[idx].Name), log.KV("duration", d))
					}
					time.Sleep(d)
				}
				w.record()
				if err := p.restart(self, idx); err != nil && p.lg != nil {
					p.lg.Error("restart failed", log.KV("name", p.g.Processes[idx].Name), log.KVErr(err))
				}
			}
		}
	}
}

func (p *Parent) indexForPid(pid int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, pe := range p.peers {
		if pe.pid == pid {
			return i
		}
	}
	return -1
}

// restart respawns the child at idx, replacing its parent-channel entry
// in the peer table. EnableSupervision refuses any index with
// child<->child edges, so PeersOf(idx) is always empty here; there is
// nothing left to re-broker.
func (p *Parent) restart(self string, idx int) error {
	proc := p.g.Processes[idx]
	info, err := p.spawn(self, idx, proc)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.peers[idx] = info
	p.mu.Unlock()
	return nil
}
