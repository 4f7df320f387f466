package asok

import "fmt"

// ConnectionError is returned when the control socket cannot be reached.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to admin socket %s: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ReadError is returned when the command could not be written or the
// response could not be drained before the peer closed the connection.
type ReadError struct {
	Target string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read from admin socket %s: %v", e.Target, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// MalformedPayloadError reports a response that does not follow the
// "client ls" protocol.
type MalformedPayloadError struct {
	Reason string
	Err    error
}

func (e *MalformedPayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed client ls payload: %s: %v", e.Reason, e.Err)
	}
	return "malformed client ls payload: " + e.Reason
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }
