/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

package imsg

import "golang.org/x/sys/unix"

// unixMsgCtrunc mirrors unix.MSG_CTRUNC; aliased locally so conn.go reads
// the same whether running against the Linux or BSD build of x/sys/unix.
const unixMsgCtrunc = unix.MSG_CTRUNC
