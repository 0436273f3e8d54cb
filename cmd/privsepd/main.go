/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

// Command privsepd is a runnable demonstration of the privsep runtime: a
// single binary whose argv[0] decides whether it runs as the privileged
// parent or as one of the topology's children, wired and configured the
// same way the teacher's manager command is (flag-overridable config
// path, start-all, WaitForQuit, graceful Close).
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gravwell/privsep/config"
	"github.com/gravwell/privsep/log"
	"github.com/gravwell/privsep/privsep"
)

const defConfigLoc = `/opt/privsepd/etc/privsepd.cfg`

var cfgFlag = flag.String("config-override", "", "Override config file path")

func main() {
	flag.Parse()

	cfgFile := defConfigLoc
	if *cfgFlag != `` {
		cfgFile = *cfgFlag
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "privsepd: loading config:", err)
		os.Exit(1)
	}

	lg, err := cfg.GetLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "privsepd: building logger:", err)
		os.Exit(1)
	}
	defer lg.Close()
	log.LogHostInfo(lg)

	parentMain := func(p *privsep.Parent) error { return runParent(p, cfg.PidFile) }
	if err := privsep.Dispatch(cfg.Graph, lg, cfg.Opts, parentMain, runChild); err != nil {
		lg.Fatal("privsepd exiting", log.KVErr(err))
	}
}

// runParent takes over once every configured child has been spawned and
// the full connectivity graph is brokered: it writes the configured
// pidfile (if any), waits for a shutdown signal, then closes every peer
// channel and removes the pidfile, the same WaitForQuit-then-Close shape
// as the teacher's manager/main.go.
func runParent(p *privsep.Parent, pidFile string) error {
	if err := privsep.WritePIDFile(pidFile); err != nil {
		return fmt.Errorf("privsepd: writing pidfile: %w", err)
	}
	defer privsep.RemovePIDFile(pidFile)

	waitForQuit()
	return p.Close()
}

// runChild dispatches to the demo role named in the topology. A process
// name with no registered role simply idles on its parent channel until the
// parent tears them down, so an operator can exercise arbitrary topology
// shapes from the config file without every role needing bespoke code.
func runChild(c *privsep.Child) error {
	switch c.Name() {
	case "hello":
		return runHello(c)
	default:
		return idle(c)
	}
}

func idle(c *privsep.Child) error {
	conn := c.Parent()
	for {
		msg, err := conn.Recv()
		if err != nil {
			return err
		}
		if msg == nil {
			return nil
		}
	}
}

// waitForQuit blocks until SIGINT, SIGTERM, or SIGHUP is received — the
// same signal set the teacher's utils.WaitForQuit listens for, reproduced
// here directly since this module does not retain a standalone utils
// package.
func waitForQuit() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	<-sig
}
