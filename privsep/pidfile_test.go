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
	"path/filepath"
	"testing"
)

func TestWritePIDFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "privsepd.pid")
	if err := WritePIDFile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := fmt.Sprintf("%d\n", os.Getpid())
	if string(data) != want {
		t.Fatalf("pidfile contents = %q, want %q", data, want)
	}
	if err := RemovePIDFile(path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected pidfile to be removed")
	}
}

func TestWritePIDFileEmptyPathIsNoop(t *testing.T) {
	if err := WritePIDFile(""); err != nil {
		t.Fatal(err)
	}
	if err := RemovePIDFile(""); err != nil {
		t.Fatal(err)
	}
}

func TestRemovePIDFileMissingIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.pid")
	if err := RemovePIDFile(path); err != nil {
		t.Fatal(err)
	}
}
