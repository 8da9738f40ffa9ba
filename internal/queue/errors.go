package queue

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedReply = errors.New("malformed reply")
)

// ProtocolError is returned when a reply from the queue service cannot be
// parsed into the expected shape. It unwraps to ErrMalformedReply.
type ProtocolError struct {
	Op     string
	Reason string
	Reply  string
}

func (e ProtocolError) Error() string {
	return fmt.Sprintf("malformed %s reply: %s", e.Op, e.Reason)
}

func (e ProtocolError) Unwrap() error {
	return ErrMalformedReply
}

func NewProtocolError(op, reason string, reply []byte) ProtocolError {
	return ProtocolError{Op: op, Reason: reason, Reply: string(reply)}
}
