/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

package ancillary

import (
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func socketpair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func tempFile(t *testing.T) int {
	t.Helper()
	p := filepath.Join(t.TempDir(), "ancillary-test")
	raw, err := unix.Open(p, unix.O_RDWR|unix.O_CREAT, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { unix.Close(raw) })
	return raw
}

func TestBuildNegativeFD(t *testing.T) {
	if got := Build(-1); got != nil {
		t.Fatalf("expected nil for a negative fd, got %v", got)
	}
}

func TestBuildAndParseRoundTrip(t *testing.T) {
	a, b := socketpair(t)
	passed := tempFile(t)

	oob := Build(passed)
	if len(oob) == 0 {
		t.Fatal("Build returned empty control message")
	}
	if len(oob) != unix.CmsgSpace(4) {
		t.Fatalf("expected CMSG_SPACE(sizeof(int)) = %d bytes, got %d", unix.CmsgSpace(4), len(oob))
	}

	if err := unix.Sendmsg(a, []byte("x"), oob, nil, 0); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 16)
	obuf := make([]byte, MaxBuf)
	n, oobn, _, _, err := unix.Recvmsg(b, buf, obuf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 data byte, got %d", n)
	}

	parsed, err := Parse(obuf[:oobn])
	if err != nil {
		t.Fatal(err)
	}
	if parsed.FD == -1 {
		t.Fatal("expected a received fd")
	}
	defer unix.Close(parsed.FD)
	if len(parsed.Extra) != 0 {
		t.Fatalf("expected no extra fds, got %v", parsed.Extra)
	}

	// The received descriptor is independent of the sender's: it must be
	// a distinct number.
	if parsed.FD == passed {
		t.Fatal("received fd should be a distinct descriptor number from the sender's")
	}
}

func TestParseEmpty(t *testing.T) {
	parsed, err := Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.FD != -1 {
		t.Fatalf("expected no fd from an empty buffer, got %d", parsed.FD)
	}
	if len(parsed.Extra) != 0 {
		t.Fatalf("expected no extra fds, got %v", parsed.Extra)
	}
}

func TestParseMultipleRightsKeepsFirstClosesRest(t *testing.T) {
	a, b := socketpair(t)
	fd1 := tempFile(t)
	fd2 := tempFile(t)

	// Two separate SCM_RIGHTS records in one control buffer, each
	// carrying one descriptor — exercised the same way a misbehaving
	// peer might construct one.
	oob := append(append([]byte{}, unix.UnixRights(fd1)...), unix.UnixRights(fd2)...)
	if err := unix.Sendmsg(a, []byte("x"), oob, nil, 0); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 16)
	obuf := make([]byte, MaxBuf)
	_, oobn, _, _, err := unix.Recvmsg(b, buf, obuf, 0)
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := Parse(obuf[:oobn])
	if err != nil {
		t.Fatal(err)
	}
	if parsed.FD == -1 {
		t.Fatal("expected a first fd")
	}
	defer unix.Close(parsed.FD)
	if len(parsed.Extra) != 1 {
		t.Fatalf("expected exactly one extra fd, got %v", parsed.Extra)
	}

	parsed.CloseExtra()
	// F_GETFD on a closed descriptor must fail.
	if _, err := unix.FcntlInt(uintptr(parsed.Extra[0]), unix.F_GETFD, 0); err == nil {
		t.Fatal("expected CloseExtra to close the discarded descriptor")
	}
}
