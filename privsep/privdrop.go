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
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/gravwell/privsep/perrors"
)

// stepError names the specific privdrop step that failed, later
// converted into a perrors.PrivdropError by wrapStep inside
// dropPrivileges.
type stepError struct {
	step  string
	cause error
}

func (e *stepError) Error() string { return e.step + ": " + e.cause.Error() }
func (e *stepError) Unwrap() error  { return e.cause }

// chrootTarget resolves the directory a child chroots into: the
// configured user's home directory if it exists and is a directory,
// otherwise /var/empty, per spec §4.7.
func chrootTarget(u *user.User) string {
	if fi, err := os.Stat(u.HomeDir); err == nil && fi.IsDir() {
		return u.HomeDir
	}
	return "/var/empty"
}

// dropPrivileges runs the full privdrop sequence: chroot, chdir("/"),
// setgroups([gid]) (skipped on platforms where that call is unsupported),
// then the OS-appropriate uid/gid drop. Any failure is wrapped as
// perrors.PrivdropError naming the step.
func dropPrivileges(username string) error {
	u, err := user.Lookup(username)
	if err != nil {
		return perrors.ErrUserNotFound
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return perrors.ErrUserNotFound
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return perrors.ErrUserNotFound
	}

	target := chrootTarget(u)
	if err := unix.Chroot(target); err != nil {
		return wrapStep(&stepError{step: "chroot", cause: err})
	}
	if err := unix.Chdir("/"); err != nil {
		return wrapStep(&stepError{step: "chdir", cause: err})
	}
	if err := setSupplementaryGroups(gid); err != nil {
		return wrapStep(err.(*stepError))
	}
	if err := dropCredentials(uid, gid); err != nil {
		return wrapStep(err.(*stepError))
	}
	return nil
}

func wrapStep(e *stepError) error {
	return &perrors.PrivdropError{Step: e.step, Cause: e.cause}
}
