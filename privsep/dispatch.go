/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

package privsep

import (
	"os"

	"github.com/gravwell/privsep/log"
	"github.com/gravwell/privsep/topology"
)

// Dispatch implements spec §2's startup flow: inspect argv[0], and run
// either the child lifecycle (if it names a registered, non-parent
// topology entry) or the parent lifecycle (otherwise — including the
// program's original on-disk invocation, whose argv[0] is a filesystem
// path that never matches a short topology name). parentMain/childMain
// take over once the respective lifecycle has finished establishing the
// process's IPC endpoints; Dispatch returns whatever they return.
func Dispatch(g *topology.Graph, lg *log.Logger, opts Options, parentMain func(*Parent) error, childMain func(*Child) error) error {
	if idx := g.IndexOf(os.Args[0]); idx > 0 {
		c, err := NewChild(g, lg, opts)
		if err != nil {
			return err
		}
		return childMain(c)
	}

	p, err := NewParent(g, lg, opts)
	if err != nil {
		return err
	}
	if err := p.Run(); err != nil {
		return err
	}
	return parentMain(p)
}
