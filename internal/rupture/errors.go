package rupture

import "errors"

// ErrInvalidArgument is the kind shared by every construction failure.
// Match it with errors.Is; the message of the concrete error tells the
// failures apart.
var ErrInvalidArgument = errors.New("invalid argument")

var ErrSamplingUnsupported = errors.New("rupture: temporal occurrence model does not support sampling")

type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return e.Message
}

func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

func invalid(msg string) error {
	return &InvalidArgumentError{Message: msg}
}
