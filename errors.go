package mediasoupclient

import "github.com/qdgx/mediasoup-client-go/internal/errs"

type (
	TypeError         = errs.TypeError
	UnsupportedError  = errs.UnsupportedError
	InvalidStateError = errs.InvalidStateError
	TimeoutError      = errs.TimeoutError
	NotFoundError     = errs.NotFoundError
)

var (
	NewTypeError         = errs.NewTypeError
	NewUnsupportedError  = errs.NewUnsupportedError
	NewInvalidStateError = errs.NewInvalidStateError
	NewTimeoutError      = errs.NewTimeoutError
	NewNotFoundError     = errs.NewNotFoundError
)

// ErrQueueClosed fails the commands of a closed transport.
var ErrQueueClosed = errs.ErrQueueClosed
