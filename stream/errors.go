package stream

import "errors"

var (
	// ErrCompilation is wrapped by errors raised synchronously while
	// normalizing, fusing or instantiating a descriptor (an unrecognized
	// element shape, an aggregator generator whose operator is not an
	// Aggregator, and so on).
	ErrCompilation = errors.New("compilation error")

	// ErrUsage is wrapped by errors raised when a constructor is called
	// without the callbacks it requires.
	ErrUsage = errors.New("usage error")
)
