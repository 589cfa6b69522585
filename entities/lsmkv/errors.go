//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package lsmkv

import (
	"errors"
	"fmt"
)

var (
	// NotFound and Deleted are internal lookup results, they are never
	// returned from the public store surface. An absent key is reported as
	// found == false.
	NotFound = errors.New("not found")
	Deleted  = errors.New("deleted")

	ErrIOFailure            = errors.New("io failure")
	ErrCorruptRecord        = errors.New("corrupt record")
	ErrDirectoryUnavailable = errors.New("directory unavailable")
	ErrEmptyKey             = errors.New("key must not be empty")
	ErrClosed               = errors.New("store is closed")
)

// IOError is returned when a write, flush or read against stable storage did
// not complete. The operation that produced it has not mutated any state.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func NewIOError(op, path string, err error) *IOError {
	return &IOError{Op: op, Path: path, Err: err}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Is(target error) bool {
	return target == ErrIOFailure
}

// CorruptRecordError indicates that the framing of a record is inconsistent
// with the file it was read from, typically a write torn by a crash.
type CorruptRecordError struct {
	Path   string
	Offset int64
	Reason string
}

func NewCorruptRecordError(path string, offset int64, format string,
	args ...interface{},
) *CorruptRecordError {
	return &CorruptRecordError{
		Path:   path,
		Offset: offset,
		Reason: fmt.Sprintf(format, args...),
	}
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt record in %s at offset %d: %s",
		e.Path, e.Offset, e.Reason)
}

func (e *CorruptRecordError) Is(target error) bool {
	return target == ErrCorruptRecord
}

func IsIOFailure(err error) bool {
	return errors.Is(err, ErrIOFailure)
}

func IsCorruptRecord(err error) bool {
	return errors.Is(err, ErrCorruptRecord)
}
