/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

// Package config parses the INI-style file that describes a parent
// process's topology and privilege-drop policy, in the same
// size-capped-read/gcfg.ReadStringInto/CheckServiceDisable/Validate shape
// the teacher's manager/config.go uses for its process-supervisor
// configuration.
package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"sort"
	"strings"

	"github.com/gravwell/gcfg"

	"github.com/gravwell/privsep/log"
	"github.com/gravwell/privsep/perrors"
	"github.com/gravwell/privsep/privsep"
	"github.com/gravwell/privsep/topology"
)

const (
	serviceDisablePrefix        = `DISABLE_`
	disableTrue                 = `true`
	maxConfigSize         int64 = 1024 * 1024 * 4
)

// processReadCfg is the gcfg intermediate type for one [Process "name"]
// section.
type processReadCfg struct {
	Connect bool   // parent establishes a direct IPC channel to this process
	Peers   string // space-separated Process names this one connects to directly
}

type global struct {
	Log_File         string
	Log_Level        string
	Pid_File         string // optional; parent writes its own pid here via renameio
	Username         string // privdrop target account; required unless Disable_Privdrop
	Disable_Privdrop bool
	Foreground       bool
}

type cfgType struct {
	Global  global
	Process map[string]*processReadCfg
}

// Config is the parsed, fully validated configuration: a topology graph
// ready to drive a privsep.Parent, the privsep.Options it implies, and
// enough of the raw settings to build a logger.
type Config struct {
	Graph   *topology.Graph
	Opts    privsep.Options
	PidFile string // empty means no pidfile is written

	raw cfgType
}

// Load reads, parses, and validates path. Validation happens entirely
// before any process is spawned, surfacing an unknown peer name, a
// topology that fails topology.Graph.Validate, or user-not-found per
// spec §7's propagation policy: a bad config file never gets as far as a
// fork(2). The "parent" entry is always added by Load itself.
func Load(path string) (*Config, error) {
	fin, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fin.Close()

	fi, err := fin.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() > maxConfigSize {
		return nil, errors.New("config: file far too large")
	}
	data, err := ioutil.ReadAll(fin)
	if err != nil {
		return nil, err
	}

	var raw cfgType
	if err := gcfg.ReadStringInto(&raw, string(data)); err != nil {
		return nil, err
	}
	raw.CheckServiceDisable()

	return build(raw)
}

// CheckServiceDisable lets an operator disable a configured process via
// DISABLE_<NAME>=true in the environment, tried uppercase then lowercase —
// ported verbatim from the teacher's manager/config.go.
func (c *cfgType) CheckServiceDisable() {
	for k := range c.Process {
		envName := serviceDisablePrefix + strings.ToUpper(k)
		if v, ok := os.LookupEnv(envName); ok {
			if strings.ToLower(v) == disableTrue {
				delete(c.Process, k)
			}
			continue
		}
		envName = serviceDisablePrefix + strings.ToLower(k)
		if v, ok := os.LookupEnv(envName); ok && strings.ToLower(v) == disableTrue {
			delete(c.Process, k)
		}
	}
}

// build turns the gcfg intermediate type into a validated topology.Graph
// plus privsep.Options, per spec §4.5/§4.6's preconditions.
func build(raw cfgType) (*Config, error) {
	if len(raw.Process) == 0 {
		return nil, errors.New("config: no processes specified")
	}

	names := make([]string, 0, len(raw.Process))
	for n := range raw.Process {
		if strings.TrimSpace(n) == "" {
			return nil, errors.New("config: process block missing a name")
		}
		if n == "parent" {
			return nil, errors.New(`config: "parent" is reserved and implicit`)
		}
		names = append(names, n)
	}
	sort.Strings(names) // deterministic topology index assignment across runs

	procs := make([]topology.Process, 0, len(names)+1)
	procs = append(procs, topology.Process{Name: "parent", Connect: false})
	index := map[string]int{"parent": 0}
	for _, n := range names {
		index[n] = len(procs)
		procs = append(procs, topology.Process{Name: n, Connect: raw.Process[n].Connect})
	}

	g := topology.New(procs)
	for _, n := range names {
		for _, peer := range strings.Fields(raw.Process[n].Peers) {
			pi, ok := index[peer]
			if !ok {
				return nil, fmt.Errorf("config: process %q names unknown peer %q", n, peer)
			}
			g.Connect(index[n], pi)
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	opts := privsep.Options{
		DisablePrivdrop: raw.Global.Disable_Privdrop,
		Username:        raw.Global.Username,
		Foreground:      raw.Global.Foreground,
	}
	if !opts.DisablePrivdrop {
		if strings.TrimSpace(opts.Username) == "" {
			return nil, perrors.ErrUserNotFound
		}
		if _, err := user.Lookup(opts.Username); err != nil {
			return nil, perrors.ErrUserNotFound
		}
	}

	return &Config{Graph: g, Opts: opts, PidFile: raw.Global.Pid_File, raw: raw}, nil
}

// GetLogger builds the logger described by [Global] Log_File/Log_Level,
// mirroring the teacher's manager/config.go GetLogger exactly: no file
// configured, or an explicit OFF level, yields a discard logger.
func (c *Config) GetLogger() (*log.Logger, error) {
	if c.raw.Global.Log_File == "" {
		return log.NewDiscardLogger(), nil
	}
	ll, err := log.LevelFromString(c.raw.Global.Log_Level)
	if err != nil {
		return nil, err
	}
	if ll == log.OFF {
		return log.NewDiscardLogger(), nil
	}
	l, err := log.NewFile(c.raw.Global.Log_File)
	if err != nil {
		return nil, err
	}
	if err := l.SetLevel(ll); err != nil {
		return nil, err
	}
	return l, nil
}
