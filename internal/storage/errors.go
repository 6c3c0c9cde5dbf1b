package storage

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("object not found")
	ErrKeyExists    = errors.New("key already exists")
	ErrInvalidKey   = errors.New("invalid key")
	ErrTooLarge     = errors.New("object too large")
	ErrAccessDenied = errors.New("access denied")
)

// KeyError records the operation and key a storage failure belongs to.
// errors.Is matches the sentinels above through it.
type KeyError struct {
	Op  string
	Key string
	Err error
}

func (e *KeyError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

func keyErr(op, key string, err error) error {
	return &KeyError{Op: op, Key: key, Err: err}
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
