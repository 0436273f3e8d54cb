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

	"github.com/google/renameio"
)

// WritePIDFile atomically writes the parent's own pid to path, following
// the same temp-file-then-rename pattern the teacher uses for its own
// on-disk state (e.g. experiments/gravwell_fetcher/statetracker.go's
// write-then-os.Rename), here via renameio so a crash mid-write never
// leaves a truncated pidfile for a process supervisor to trip over.
func WritePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return renameio.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)
}

// RemovePIDFile removes a pidfile written by WritePIDFile. A missing file
// is not an error: the pidfile may never have been configured.
func RemovePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
