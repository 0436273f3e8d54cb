/*************************************************************************
* Copyright 2017 Gravwell, Inc. All rights reserved.
* Contact: <legal@gravwell.io>
*
* This software may be modified and distributed under the terms of the
* BSD 2-clause license. See the LICENSE file for details.
**************************************************************************/

package perrors

import (
	"errors"
	"testing"
)

func TestPrivdropErrorUnwrap(t *testing.T) {
	cause := errors.New("operation not permitted")
	err := &PrivdropError{Step: "setresuid", Cause: cause}

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to see through PrivdropError to its Cause")
	}
	if got := err.Error(); got == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestInvalidProcessErrorMessage(t *testing.T) {
	err := &InvalidProcessError{Name: "ghost"}
	if got := err.Error(); got != `privsep: invalid process "ghost"` {
		t.Fatalf("Error() = %q", got)
	}
}

func TestTerminatedErrorMessage(t *testing.T) {
	err := &TerminatedError{Name: "hello"}
	if got := err.Error(); got != `privsep: peer "hello" terminated` {
		t.Fatalf("Error() = %q", got)
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrPermissionDenied,
		ErrMissingParent,
		ErrUserNotFound,
		ErrShortWrite,
		ErrInvalidData,
		ErrNotConnected,
		ErrReservedID,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Fatalf("sentinel %v should not match %v", a, b)
			}
		}
	}
}
