package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestClosedErr_Error(t *testing.T) {
	closedErr := NewClosedErr("closed")
	fmt.Println(closedErr.Error())
}

func TestIsClosedErr(t *testing.T) {
	if !IsClosedErr(NewClosedErr("closed")) {
		t.Errorf("IsClosedErr() test-1 failed")
	}

	if IsClosedErr(errors.New("closed")) {
		t.Errorf("IsClosedErr() test-2 failed")
	}
}

func TestIsExhaustedErr(t *testing.T) {
	if !IsExhaustedErr(NewExhaustedErr("no slot within timeout")) {
		t.Errorf("IsExhaustedErr() test-1 failed")
	}

	if IsExhaustedErr(NewClosedErr("closed")) {
		t.Errorf("IsExhaustedErr() test-2 failed")
	}
}

func TestIsDoubleReleaseErr(t *testing.T) {
	if !IsDoubleReleaseErr(NewDoubleReleaseErr("lease released twice")) {
		t.Errorf("IsDoubleReleaseErr() test-1 failed")
	}

	if IsDoubleReleaseErr(errors.New("lease released twice")) {
		t.Errorf("IsDoubleReleaseErr() test-2 failed")
	}
}

func TestConnectErrUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewConnectErr(cause)

	if !IsConnectErr(err) {
		t.Errorf("IsConnectErr() failed")
	}
	if !errors.Is(err, cause) {
		t.Errorf("ConnectErr should unwrap to its cause")
	}
}

func TestProbeErrUnwrap(t *testing.T) {
	cause := errors.New("conn closed")
	err := NewProbeErr(cause)

	if !IsProbeErr(err) {
		t.Errorf("IsProbeErr() failed")
	}
	if !errors.Is(err, cause) {
		t.Errorf("ProbeErr should unwrap to its cause")
	}
}
