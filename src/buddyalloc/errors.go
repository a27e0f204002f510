package buddyalloc

import "errors"

// Error definitions for the recoverable failure kinds this package
// exposes. Header-corruption is not among them: it terminates the
// process directly (see CorruptionExitCode) rather than returning an
// error to the caller.
var (
	// ErrArenaConstructionFailed is returned by NewAllocator when the
	// initial arena reservation could not be made.
	ErrArenaConstructionFailed = errors.New("buddyalloc: arena construction failed")
	// ErrMmapFailed is returned when an oversized request could not be
	// satisfied by the operating system's mmap facility.
	ErrMmapFailed = errors.New("buddyalloc: mmap allocation failed")
	// ErrMunmapFailed is returned when releasing an mmap-backed block
	// failed. The block has already been unlinked from the mmap list
	// by the time this is returned, so it is effectively leaked.
	ErrMunmapFailed = errors.New("buddyalloc: munmap failed during release")
)
