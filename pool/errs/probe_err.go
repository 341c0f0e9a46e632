package errs

/*
	A error type for a failed liveness probe on an existing connection
*/
type ProbeErr struct {
	cause error
}

func (e ProbeErr) Error() string {
	return "liveness probe failed: " + e.cause.Error()
}

func (e ProbeErr) Unwrap() error {
	return e.cause
}

func NewProbeErr(cause error) ProbeErr {
	return ProbeErr{
		cause: cause,
	}
}

func IsProbeErr(e error) bool {
	_, ok := e.(ProbeErr)
	return ok
}
