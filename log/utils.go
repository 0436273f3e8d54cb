/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package log

import (
	"fmt"
	"runtime"

	"github.com/crewjam/rfc5424"
	"github.com/shirou/gopsutil/host"
)

// kernelVersion is populated on linux by kernel_linux.go's init; it stays
// empty on every other target.
var kernelVersion string

func KV(name string, value interface{}) (r rfc5424.SDParam) {
	r.Name = name
	switch v := value.(type) {
	case string:
		r.Value = v
	default:
		r.Value = fmt.Sprintf("%v", value)
	}
	return
}

func KVErr(err error) rfc5424.SDParam {
	return KV("error", err)
}

// LogHostInfo logs a single INFO entry naming the OS, architecture,
// kernel release, and platform this process is running under. privdrop's
// behavior (chroot, setresuid/setresgid vs. setuid/setgid, whether
// setgroups is even attempted) varies by target, so this line is logged
// once at startup to make that context part of the record.
func LogHostInfo(lg *Logger) {
	if lg == nil {
		return
	}
	platform, _, version, err := host.PlatformInformation()
	if err != nil {
		lg.Info("host info", KV("os", runtime.GOOS), KV("arch", runtime.GOARCH), KVErr(err))
		return
	}
	lg.Info("host info",
		KV("os", runtime.GOOS),
		KV("arch", runtime.GOARCH),
		KV("kernel", kernelVersion),
		KV("platform", platform),
		KV("platform_version", version),
	)
}
