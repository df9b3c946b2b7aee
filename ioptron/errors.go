package ioptron

import "errors"

var (
	ErrNotConnected       = errors.New("mount not connected")
	ErrTimeout            = errors.New("timed out waiting for response")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrCommandRejected    = errors.New("command rejected by mount")
	ErrTransport          = errors.New("transport error")
	ErrInvalidArgument    = errors.New("invalid argument")
)
