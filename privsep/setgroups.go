//go:build !darwin && !ios

/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

package privsep

import "golang.org/x/sys/unix"

func setSupplementaryGroups(gid int) error {
	if err := unix.Setgroups([]int{gid}); err != nil {
		return &stepError{step: "setgroups", cause: err}
	}
	return nil
}
