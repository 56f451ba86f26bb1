package bean

import (
	"errors"
	"fmt"
)

// UnknownPropertyError is returned when a name is not part of a store's
// defaults. It signals a programming error in the caller.
type UnknownPropertyError struct {
	Store string
	Name  string
}

func (e *UnknownPropertyError) Error() string {
	return fmt.Sprintf("bean: unknown property %q in store %q", e.Name, e.Store)
}

// SerializationError is returned when a value cannot be encoded for
// local persistence.
type SerializationError struct {
	Name string
	Kind string
}

func (e *SerializationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("bean: cannot persist value of kind %s", e.Kind)
	}
	return fmt.Sprintf("bean: cannot persist %q: unsupported kind %s", e.Name, e.Kind)
}

// PersistenceIOError wraps a failure of the local backend.
type PersistenceIOError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceIOError) Error() string {
	return fmt.Sprintf("bean: local %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceIOError) Unwrap() error {
	return e.Err
}

// RemoteSyncError wraps a failure of the synced backend.
type RemoteSyncError struct {
	Op  string
	Err error
}

func (e *RemoteSyncError) Error() string {
	return fmt.Sprintf("bean: sync %s: %v", e.Op, e.Err)
}

func (e *RemoteSyncError) Unwrap() error {
	return e.Err
}

// IsUnknownProperty reports whether err is an UnknownPropertyError.
func IsUnknownProperty(err error) bool {
	var target *UnknownPropertyError
	return errors.As(err, &target)
}
