// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package loadimage_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/bep/loadimage"
	qt "github.com/frankban/quicktest"
)

func TestScanSegments(t *testing.T) {
	c := qt.New(t)

	app1 := segment(0xffe1, bytes.Repeat([]byte{'a'}, 20))
	com := segment(0xfffe, []byte("hello"))
	app2 := segment(0xffe2, []byte("ICC_PROFILE\x00"))
	b := jpegWithSegments(t, 8, 8, app1, com, app2)

	scan, err := loadimage.ScanSegments(b, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(scan.Warnings, qt.HasLen, 0)
	c.Assert(scan.Segments, qt.DeepEquals, []loadimage.Segment{
		{Marker: 0xffe1, Offset: 2, Length: 22},
		{Marker: 0xfffe, Offset: 26, Length: 7},
		{Marker: 0xffe2, Offset: 35, Length: 14},
	})
	c.Assert(scan.Head, qt.DeepEquals, b[:headLength(app1, com, app2)])

	var names []string
	for _, seg := range scan.Segments {
		names = append(names, seg.Name())
	}
	c.Assert(names, qt.DeepEquals, []string{"APP1", "COM", "APP2"})
	c.Assert(scan.Segments[2].End(), qt.Equals, len(scan.Head))

	// The head is a copy.
	scan.Head[2] = 0
	c.Assert(b[2], qt.Equals, byte(0xff))
}

func TestScanSegmentsNoMetadata(t *testing.T) {
	c := qt.New(t)

	scan, err := loadimage.ScanSegments([]byte{0xff, 0xd8, 0xff, 0xd9}, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(scan.Segments, qt.HasLen, 0)
	c.Assert(scan.Head, qt.IsNil)

	scan, err = loadimage.ScanSegments(jpegWithSegments(t, 4, 4), 0)
	c.Assert(err, qt.IsNil)
	c.Assert(scan.Segments, qt.HasLen, 0)
	c.Assert(scan.Head, qt.IsNil)
}

func TestScanSegmentsInvalidFormat(t *testing.T) {
	c := qt.New(t)

	for _, b := range [][]byte{nil, {0xff}, []byte("GIF89a"), {0xd8, 0xff, 0xe1, 0x00}} {
		_, err := loadimage.ScanSegments(b, 0)
		c.Assert(err, qt.IsNotNil)
		c.Assert(loadimage.IsInvalidFormat(err), qt.IsTrue)
		var ferr *loadimage.FormatError
		c.Assert(errors.As(err, &ferr), qt.IsTrue)
		c.Assert(ferr.Offset, qt.Equals, 0)
	}
}

func TestScanSegmentsTruncated(t *testing.T) {
	c := qt.New(t)

	c.Run("Segment past end", func(c *qt.C) {
		b := append([]byte{0xff, 0xd8, 0xff, 0xe1, 0x00, 0x64}, make([]byte, 20)...)
		scan, err := loadimage.ScanSegments(b, 0)
		c.Assert(err, qt.IsNil)
		c.Assert(scan.Segments, qt.HasLen, 0)
		c.Assert(scan.Head, qt.IsNil)
		c.Assert(scan.Warnings, qt.HasLen, 1)
		c.Assert(scan.Warnings[0].Source, qt.Equals, loadimage.JPEG)
		var berr *loadimage.BoundsError
		c.Assert(errors.As(scan.Warnings[0].Err, &berr), qt.IsTrue)
		c.Assert(berr.Offset, qt.Equals, 2)
		c.Assert(berr.Size, qt.Equals, 102)
	})

	c.Run("Invalid length", func(c *qt.C) {
		com := segment(0xfffe, []byte("first"))
		b := []byte{0xff, 0xd8}
		b = append(b, com...)
		b = append(b, 0xff, 0xe1, 0x00, 0x01)
		b = append(b, make([]byte, 10)...)
		scan, err := loadimage.ScanSegments(b, 0)
		c.Assert(err, qt.IsNil)
		c.Assert(scan.Segments, qt.HasLen, 1)
		c.Assert(scan.Head, qt.DeepEquals, b[:headLength(com)])
		c.Assert(scan.Warnings, qt.HasLen, 1)
		c.Assert(loadimage.IsInvalidFormat(scan.Warnings[0].Err), qt.IsTrue)
	})
}

func TestScanSegmentsBudget(t *testing.T) {
	c := qt.New(t)

	app1 := segment(0xffe1, make([]byte, 100))
	com := segment(0xfffe, make([]byte, 100))
	b := jpegWithSegments(t, 8, 8, app1, com)

	scan, err := loadimage.ScanSegments(b, headLength(app1)+10)
	c.Assert(err, qt.IsNil)
	c.Assert(scan.Segments, qt.HasLen, 1)
	c.Assert(scan.Head, qt.HasLen, headLength(app1))
	c.Assert(scan.Warnings, qt.HasLen, 1)

	scan, err = loadimage.ScanSegments(b, headLength(app1, com))
	c.Assert(err, qt.IsNil)
	c.Assert(scan.Segments, qt.HasLen, 2)
	c.Assert(scan.Warnings, qt.HasLen, 0)
}

func BenchmarkScanSegments(b *testing.B) {
	data := jpegWithSegments(b, 16, 16,
		segment(0xffe0, []byte("JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")),
		app1Exif(tiff(binary.BigEndian, new(ifd).short(0x0112, 6))),
		segment(0xfffe, []byte("comment")),
	)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := loadimage.ScanSegments(data, 0); err != nil {
			b.Fatal(err)
		}
	}
}
