//go:build !(linux || freebsd || openbsd || android)

/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

package privsep

import "golang.org/x/sys/unix"

// dropCredentials drops the gid then the uid using the more limited
// setegid/setgid/seteuid/setuid sequence, for platforms without
// setresuid/setresgid (e.g. macOS omits seteuid in this order too, per
// spec §4.7).
func dropCredentials(uid, gid int) error {
	if err := unix.Setegid(gid); err != nil {
		return &stepError{step: "setegid", cause: err}
	}
	if err := unix.Setgid(gid); err != nil {
		return &stepError{step: "setgid", cause: err}
	}
	if !isDarwin {
		if err := unix.Seteuid(uid); err != nil {
			return &stepError{step: "seteuid", cause: err}
		}
	}
	if err := unix.Setuid(uid); err != nil {
		return &stepError{step: "setuid", cause: err}
	}
	return nil
}
