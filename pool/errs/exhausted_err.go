package errs

/*
	A error type for acquiring from a pool at full capacity

	ExhaustedErr is returned when no slot becomes available within
	the acquire timeout, or the waiting caller is canceled
*/
type ExhaustedErr struct {
	msg string
}

func (e ExhaustedErr) Error() string {
	return e.msg
}

func NewExhaustedErr(cause string) ExhaustedErr {
	return ExhaustedErr{
		msg: cause,
	}
}

func IsExhaustedErr(e error) bool {
	_, ok := e.(ExhaustedErr)
	return ok
}
