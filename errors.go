// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package loadimage

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalidFormat is matched by all structural format errors.
	ErrInvalidFormat = errors.New("loadimage: invalid format")

	// ErrNoHead is returned when a blob or a replacement image head is missing.
	ErrNoHead = errors.New("loadimage: no image head")

	// ErrTagNotFound is returned when a tag needed for writing is not present.
	ErrTagNotFound = errors.New("loadimage: tag not found")
)

// IsInvalidFormat reports whether err is or wraps a format error.
func IsInvalidFormat(err error) bool {
	return errors.Is(err, ErrInvalidFormat)
}

// FormatError describes structurally invalid input,
// e.g. a missing JPEG SOI marker or a bad TIFF magic number.
type FormatError struct {
	Offset int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("loadimage: invalid format at offset %d: %s", e.Offset, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidFormat) work for all format errors.
func (e *FormatError) Is(target error) bool {
	return target == ErrInvalidFormat
}

func newFormatErrorf(offset int, format string, args ...any) *FormatError {
	return &FormatError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// BoundsError is returned when a read would pass the end of the buffer.
type BoundsError struct {
	Offset int
	Size   int
	Len    int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("loadimage: read of %d bytes at offset %d exceeds buffer length %d", e.Size, e.Offset, e.Len)
}

// UnsupportedTypeError is returned for an Exif tag with an unknown type code.
type UnsupportedTypeError struct {
	Tag  uint16
	Type uint16
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("loadimage: tag 0x%04x has unsupported type %d", e.Tag, e.Type)
}

// Warning is a recoverable problem found while decoding.
// The element in question (a tag, a segment or a directory) was skipped.
type Warning struct {
	Source Source
	Err    error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %v", w.Source, w.Err)
}

// diagnostics collects warnings. It's shared between a decode result and
// the directories it lazily materializes, hence the lock.
type diagnostics struct {
	mu       sync.Mutex
	warnings []Warning
	warnf    func(string, ...any)
}

func newDiagnostics(warnf func(string, ...any)) *diagnostics {
	return &diagnostics{warnf: warnf}
}

func (d *diagnostics) add(source Source, err error) {
	if d == nil || err == nil {
		return
	}
	d.mu.Lock()
	d.warnings = append(d.warnings, Warning{Source: source, Err: err})
	d.mu.Unlock()
	if d.warnf != nil {
		d.warnf("%s: %v", source, err)
	}
}

func (d *diagnostics) addf(source Source, format string, args ...any) {
	d.add(source, fmt.Errorf(format, args...))
}

func (d *diagnostics) list() []Warning {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.warnings) == 0 {
		return nil
	}
	w := make([]Warning, len(d.warnings))
	copy(w, d.warnings)
	return w
}
