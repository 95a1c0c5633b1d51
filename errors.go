package dircache

import (
	"fmt"
)

// KeyError reports a key rejected by path-safety validation. No filesystem
// state changes when it is returned.
type KeyError struct {
	Key string
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("dircache: invalid key %q: %v", e.Key, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

// ProducerError wraps a failure from the caller's produce function in
// GetOrInsertWith, keeping it distinguishable from cache I/O failures.
type ProducerError struct {
	Err error
}

func (e *ProducerError) Error() string {
	return fmt.Sprintf("dircache: produce value: %v", e.Err)
}

func (e *ProducerError) Unwrap() error { return e.Err }
