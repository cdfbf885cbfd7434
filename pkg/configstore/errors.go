package configstore

import "errors"

// Sentinel errors returned by configstore operations.
//
// Callers should classify errors with [errors.Is]; operations may wrap one
// of these with additional context via fmt.Errorf("...: %w", err).
var (
	// ErrAlready indicates Open was called on a Store that is already open.
	ErrAlready = errors.New("configstore: already open")

	// ErrNotFound indicates the store file was expected to exist (or an
	// operation found no matching key/slot) but none was available.
	ErrNotFound = errors.New("configstore: not found")

	// ErrInvalid indicates invalid arguments or an invariant violation.
	ErrInvalid = errors.New("configstore: invalid")

	// ErrRange indicates the file is shorter than the minimum header size.
	ErrRange = errors.New("configstore: range")

	// ErrTooBig indicates an operation would exceed the store's max size,
	// or a write would run past a record's payload.
	ErrTooBig = errors.New("configstore: too big")

	// ErrNoSpace indicates the effective max size (after filesystem block
	// overhead is subtracted) is 16 bytes or less.
	ErrNoSpace = errors.New("configstore: no space")

	// ErrCorrupt indicates the on-disk image failed validation (bad
	// signature/version, CRC mismatch, or a malformed record chain). The
	// store refuses to open corrupt files; this is never silently repaired.
	ErrCorrupt = errors.New("configstore: corrupt")

	// ErrIO marks errors that originate from the underlying filesystem
	// (open/read/write/truncate/fsync/rename/lock). The original error is
	// wrapped alongside it and can be matched with errors.Is or errors.As.
	ErrIO = errors.New("configstore: io")

	// ErrClosed indicates an operation was attempted on a Store that has
	// been closed (or was never opened).
	ErrClosed = errors.New("configstore: closed")
)
