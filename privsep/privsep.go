/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

// Package privsep implements the process lifecycle and topology manager
// for a privilege-separation runtime: fork/exec of children from a single
// binary, deterministic IPC-endpoint assignment, parent-mediated
// descriptor passing to form the full child<->child connectivity graph,
// and coordinated privilege drop on the child side.
package privsep

import "os"

// PRIVSEP_FD is the well-known descriptor number at which a child finds
// the parent end of its imsg channel at entry. It is fixed at 4, two
// above stderr (fd 2); fd 3 is left closed in the child (see childFiles).
// The number is fixed by convention rather than passed via environment,
// unlike some privsep implementations that pass the fd number itself
// through an environment variable.
const PRIVSEP_FD = 4

// EnvLogFilter is the single environment variable propagated to a child
// at exec time: an opaque logging-filter string. Named PRIVSEP_LOG rather
// than the original RUST_LOG, since there is no Rust runtime here to
// address; the contract (one opaque filter string, nothing else
// inherited) is unchanged.
const EnvLogFilter = "PRIVSEP_LOG"

// Options configures both Parent and Child behavior.
type Options struct {
	// DisablePrivdrop skips the root-required precondition and the
	// child-side chroot/credential-drop sequence entirely. Intended for
	// development and for components that genuinely need no sandboxing.
	DisablePrivdrop bool

	// Username is the account a child drops privileges to. Required
	// unless DisablePrivdrop is set.
	Username string

	// Foreground controls argv[1] passed to children: "-d" when true,
	// empty otherwise.
	Foreground bool
}

func selfExecutable() (string, error) {
	return os.Executable()
}
