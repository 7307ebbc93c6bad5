package apkres

import (
	"github.com/pkg/errors"
)

// Error classes returned by the decoders and resolvers. Call sites wrap these
// with context, use errors.Is or errors.Cause to classify.
var (
	// Structural or chunk validation failure, malformed entry or bag.
	ErrBadType = errors.New("bad type")
	// Index outside the declared bounds, or resource absent for the configuration.
	ErrBadIndex = errors.New("bad index")
	// Value of the wrong kind, e.g. a bag where a plain value was requested.
	ErrBadValue = errors.New("bad value")
	// Dynamic reference mapping conflict or missing mapping.
	ErrUnknown = errors.New("unknown error")
	// Archive entry not present.
	ErrNameNotFound = errors.New("name not found")

	ErrNoMemory = errors.New("no memory")
	ErrNoInit   = errors.New("not initialized")
)

// Some samples have manifest in plaintext, this is an error.
// 2c882a2376034ed401be082a42a21f0ac837689e7d3ab6be0afb82f44ca0b859
var ErrPlainTextManifest = errors.New("xml is in plaintext, binary form expected")

// ErrTooManyAttributeRefs is returned by Theme.GetAttribute when an attribute
// chain exceeds maxAttributeHops.
var ErrTooManyAttributeRefs = errors.Wrap(ErrBadIndex, "too many attribute references")

func badType(format string, args ...interface{}) error {
	return errors.Wrapf(ErrBadType, format, args...)
}

func badIndex(format string, args ...interface{}) error {
	return errors.Wrapf(ErrBadIndex, format, args...)
}
