//go:build linux || freebsd || openbsd || android

/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

package privsep

import "golang.org/x/sys/unix"

// dropCredentials drops real/effective/saved uid and gid atomically via
// setresgid/setresuid, the primitive available on Linux, FreeBSD,
// OpenBSD, and Android.
func dropCredentials(uid, gid int) error {
	if err := unix.Setresgid(gid, gid, gid); err != nil {
		return &stepError{step: "setresgid", cause: err}
	}
	if err := unix.Setresuid(uid, uid, uid); err != nil {
		return &stepError{step: "setresuid", cause: err}
	}
	return nil
}
