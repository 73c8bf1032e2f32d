package shadercache

import (
	"errors"
	"fmt"
)

// Package errors.
var (
	// ErrNilCompiler is returned when creating a program without a compiler.
	ErrNilCompiler = errors.New("shadercache: compiler is nil")

	// ErrNilModule is returned when creating a program without an IR module.
	ErrNilModule = errors.New("shadercache: IR module is nil")

	// ErrStageMismatch is returned when a key's stage does not match the
	// program it is used with.
	ErrStageMismatch = errors.New("shadercache: key stage does not match program stage")

	// ErrNoKernel is returned when querying a program that has no active
	// kernel selected.
	ErrNoKernel = errors.New("shadercache: no kernel selected")

	// ErrNotUploaded is returned when querying the cache offset of a kernel
	// that has not been uploaded since it last changed.
	ErrNotUploaded = errors.New("shadercache: kernel not uploaded")

	// ErrEmptyKernel is returned when a backend compiler produces a kernel
	// with no machine code.
	ErrEmptyKernel = errors.New("shadercache: compiler produced empty kernel")
)

// CompileError reports that the backend compiler could not produce a
// kernel for a variant key. It is fatal to the calling operation: the
// active kernel selection is left unchanged and no fallback variant is
// attempted.
type CompileError struct {
	Stage Stage
	Key   Key
	Err   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("shadercache: compiling %s variant: %v", e.Stage, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// WriteError reports that writing kernel bytes into the destination
// buffer failed. The upload that produced it was aborted; kernels
// already marked uploaded by the same call keep their offsets, and
// re-uploading them later is a safe no-op.
type WriteError struct {
	Offset uint32
	Size   int
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("shadercache: writing %d kernel bytes at offset %d: %v", e.Size, e.Offset, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// StreamOutputError reports a malformed stream-output declaration
// discovered while binding a declaration to a compiled kernel: an entry
// references an output register the kernel does not produce, or a
// point-size entry has the wrong shape. It indicates a backend or state
// tracker contract violation and is not user-recoverable.
type StreamOutputError struct {
	Entry  int // index into the declared entries
	Reason string
}

func (e *StreamOutputError) Error() string {
	return fmt.Sprintf("shadercache: stream output entry %d: %s", e.Entry, e.Reason)
}
