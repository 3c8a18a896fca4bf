package session

import (
	"errors"

	"github.com/kolkov/inlinemock/internal/dispatch/registry"
)

var (
	// ErrNoIdentity is returned by Register for values without a stable
	// identity (structs, strings, numbers, nil, pointers to zero-size types).
	ErrNoIdentity = registry.ErrNoIdentity

	// ErrNilHandler is returned by Register when the handler is nil.
	ErrNilHandler = errors.New("session: nil handler")

	// ErrNoOriginal is returned by OriginalCall.Invoke when the method has no
	// body and cannot be resolved by reflection.
	ErrNoOriginal = errors.New("session: original implementation not available")

	// ErrClosed is returned by Register after Close.
	ErrClosed = errors.New("session: closed")
)
