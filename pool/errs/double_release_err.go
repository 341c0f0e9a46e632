package errs

/*
	A error type for releasing a lease more than once

	DoubleReleaseErr signals a caller programming error; the pool logs it
	and leaves its accounting untouched
*/
type DoubleReleaseErr struct {
	msg string
}

func (e DoubleReleaseErr) Error() string {
	return e.msg
}

func NewDoubleReleaseErr(cause string) DoubleReleaseErr {
	return DoubleReleaseErr{
		msg: cause,
	}
}

func IsDoubleReleaseErr(e error) bool {
	_, ok := e.(DoubleReleaseErr)
	return ok
}
