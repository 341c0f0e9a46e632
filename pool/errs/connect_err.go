package errs

/*
	A error type for a failed dial to the backing store
*/
type ConnectErr struct {
	cause error
}

func (e ConnectErr) Error() string {
	return "connect to store failed: " + e.cause.Error()
}

func (e ConnectErr) Unwrap() error {
	return e.cause
}

func NewConnectErr(cause error) ConnectErr {
	return ConnectErr{
		cause: cause,
	}
}

func IsConnectErr(e error) bool {
	_, ok := e.(ConnectErr)
	return ok
}
