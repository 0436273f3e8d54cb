//go:build darwin || ios

/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

package privsep

// setSupplementaryGroups is a no-op on darwin/ios: setgroups(2) privilege
// drop is unreliable there (spec §4.7 skips it on these targets), so
// dropPrivileges's chroot plus uid/gid drop (privdrop_other.go) are relied
// on alone.
func setSupplementaryGroups(gid int) error {
	return nil
}
