// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package loadimage

import (
	"encoding/binary"
	"fmt"
)

const (
	markerSOI   = 0xffd8
	markerAPP0  = 0xffe0
	markerAPP1  = 0xffe1
	markerApp13 = 0xffed
	markerAPP15 = 0xffef
	markerCOM   = 0xfffe

	// DefaultMaxMetaDataSize is the number of leading bytes read when looking for metadata.
	DefaultMaxMetaDataSize = 262144

	// The image head must be longer than the SOI marker (2)
	// plus an APPn marker (2) and its length bytes (2).
	minImageHeadLength = 7
)

// Segment is a JPEG metadata segment.
type Segment struct {
	// The 2 byte marker, e.g. 0xffe1 for APP1.
	Marker uint16
	// Offset of the marker in the blob.
	Offset uint32
	// Length as stored in the segment. It includes the 2 length bytes but not the marker.
	Length uint16
}

// End returns the offset of the first byte after the segment.
func (s Segment) End() int {
	return int(s.Offset) + 2 + int(s.Length)
}

// Name returns the marker name, e.g. "APP1" or "COM".
func (s Segment) Name() string {
	switch {
	case s.Marker == markerCOM:
		return "COM"
	case isAPPn(s.Marker):
		return fmt.Sprintf("APP%d", s.Marker-markerAPP0)
	default:
		return fmt.Sprintf("0x%04x", s.Marker)
	}
}

// SegmentScan is the result of ScanSegments.
type SegmentScan struct {
	// Head is a copy of all bytes from the SOI marker through the last
	// metadata segment, or nil if no metadata segment was found.
	Head []byte

	// Segments in file order.
	Segments []Segment

	// Warnings holds problems that stopped the scan early.
	Warnings []Warning
}

// ScanSegments walks the APPn and COM segments following the JPEG SOI marker
// in the first maxBytes of b. A zero maxBytes means DefaultMaxMetaDataSize.
// Scanning stops at the first marker that is not a metadata marker.
//
// An error is only returned when b does not start with the SOI marker;
// a truncated segment ends the scan with a warning and partial results.
func ScanSegments(b []byte, maxBytes int) (SegmentScan, error) {
	return scanSegments(b, maxBytes, nil)
}

// segmentVisitor is called for each segment with the budgeted buffer.
type segmentVisitor func(b []byte, seg Segment)

func scanSegments(b []byte, maxBytes int, visit segmentVisitor) (SegmentScan, error) {
	var scan SegmentScan

	if maxBytes <= 0 {
		maxBytes = DefaultMaxMetaDataSize
	}
	if len(b) > maxBytes {
		b = b[:maxBytes]
	}

	v := newByteView(b, binary.BigEndian)

	soi, err := v.uint16(0)
	if err != nil || soi != markerSOI {
		return scan, newFormatErrorf(0, "missing JPEG SOI marker")
	}

	offset := 2
	headLength := offset
	maxOffset := v.len() - 4

	for offset < maxOffset {
		marker, _ := v.uint16(offset)
		if !isMetaDataMarker(marker) {
			// Most likely the end of the metadata.
			break
		}

		length, _ := v.uint16(offset + 2)
		seg := Segment{Marker: marker, Offset: uint32(offset), Length: length}
		if length < 2 {
			scan.Warnings = append(scan.Warnings, Warning{Source: JPEG, Err: newFormatErrorf(offset, "invalid %s segment length %d", seg.Name(), length)})
			break
		}
		if seg.End() > v.len() {
			scan.Warnings = append(scan.Warnings, Warning{Source: JPEG, Err: fmt.Errorf("invalid %s segment size: %w", seg.Name(), &BoundsError{Offset: offset, Size: 2 + int(length), Len: v.len()})})
			break
		}

		scan.Segments = append(scan.Segments, seg)

		if visit != nil {
			visit(b, seg)
		}

		offset = seg.End()
		headLength = offset
	}

	if headLength >= minImageHeadLength {
		scan.Head = make([]byte, headLength)
		copy(scan.Head, b[:headLength])
	}

	return scan, nil
}

func isAPPn(marker uint16) bool {
	return marker >= markerAPP0 && marker <= markerAPP15
}

func isMetaDataMarker(marker uint16) bool {
	return isAPPn(marker) || marker == markerCOM
}
