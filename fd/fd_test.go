/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

package fd

import (
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func tempFD(t *testing.T) *Owned {
	t.Helper()
	p := filepath.Join(t.TempDir(), "fd-test")
	raw, err := unix.Open(p, unix.O_RDWR|unix.O_CREAT, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	return New(raw)
}

func isOpenRaw(raw int) bool {
	_, err := unix.FcntlInt(uintptr(raw), unix.F_GETFD, 0)
	return err == nil
}

func TestIsOpen(t *testing.T) {
	o := tempFD(t)
	if !o.IsOpen() {
		t.Fatal("expected freshly opened descriptor to report open")
	}
	if err := o.Close(); err != nil {
		t.Fatal(err)
	}
	if o.IsOpen() {
		t.Fatal("expected closed descriptor to report not open")
	}
}

func TestDoubleCloseIsNoop(t *testing.T) {
	o := tempFD(t)
	if err := o.Close(); err != nil {
		t.Fatal(err)
	}
	if err := o.Close(); err != nil {
		t.Fatal("second Close should swallow the error, got", err)
	}
}

func TestDup(t *testing.T) {
	o := tempFD(t)
	defer o.Close()

	dup, err := o.Dup()
	if err != nil {
		t.Fatal(err)
	}
	defer dup.Close()

	if dup.Fd() == o.Fd() {
		t.Fatal("Dup returned the same descriptor number")
	}
	if !dup.IsOpen() {
		t.Fatal("duplicated descriptor should be open")
	}

	if err := o.Close(); err != nil {
		t.Fatal(err)
	}
	if !dup.IsOpen() {
		t.Fatal("closing the original must not affect the duplicate")
	}
}

func TestRelease(t *testing.T) {
	o := tempFD(t)
	raw := o.Release()
	defer func() { _ = unix.Close(raw) }()

	if err := o.Close(); err != nil {
		t.Fatal("Close after Release should be a no-op, got", err)
	}
	if !isOpenRaw(raw) {
		t.Fatal("descriptor should still be open after Release, Close must not touch it")
	}
}

func TestSetCloexec(t *testing.T) {
	o := tempFD(t)
	defer o.Close()

	if err := o.SetCloexec(true); err != nil {
		t.Fatal(err)
	}
	flags, err := unix.FcntlInt(uintptr(o.Fd()), unix.F_GETFD, 0)
	if err != nil {
		t.Fatal(err)
	}
	if flags&unix.FD_CLOEXEC == 0 {
		t.Fatal("expected FD_CLOEXEC to be set")
	}

	if err := o.SetCloexec(false); err != nil {
		t.Fatal(err)
	}
	flags, err = unix.FcntlInt(uintptr(o.Fd()), unix.F_GETFD, 0)
	if err != nil {
		t.Fatal(err)
	}
	if flags&unix.FD_CLOEXEC != 0 {
		t.Fatal("expected FD_CLOEXEC to be cleared")
	}
}
