// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package loadimage_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"testing"

	"github.com/bep/loadimage"
	"github.com/disintegration/imaging"
	qt "github.com/frankban/quicktest"
)

func orientedJPEG(t testing.TB, order byteOrder, o uint16) []byte {
	return jpegWithSegments(t, 8, 4,
		app1Exif(tiff(order, new(ifd).ascii(0x010f, "Canon").short(0x0112, o))),
		app13IPTC(iptcRecord(2, 25, []byte("keyword"))),
	)
}

func TestReplaceHeadRoundTrip(t *testing.T) {
	c := qt.New(t)

	b := orientedJPEG(t, binary.BigEndian, 6)
	md, err := loadimage.ParseMetaData(b, loadimage.MetaOptions{})
	c.Assert(err, qt.IsNil)
	c.Assert(md.ImageHead, qt.IsNotNil)

	blob, err := loadimage.ReplaceHead(loadimage.Blob{Data: b}, md.ImageHead)
	c.Assert(err, qt.IsNil)
	c.Assert(blob.Data, qt.DeepEquals, b)
	c.Assert(blob.ContentType, qt.Equals, "image/jpeg")
}

func TestReplaceHeadNewLength(t *testing.T) {
	c := qt.New(t)

	b := orientedJPEG(t, binary.BigEndian, 6)
	scan, err := loadimage.ScanSegments(b, 0)
	c.Assert(err, qt.IsNil)

	newHead := append([]byte{0xff, 0xd8}, segment(0xfffe, []byte("a new head"))...)
	blob, err := loadimage.ReplaceHead(loadimage.Blob{Data: b, ContentType: "image/x-test"}, newHead)
	c.Assert(err, qt.IsNil)
	c.Assert(blob.ContentType, qt.Equals, "image/x-test")
	c.Assert(blob.Data[:len(newHead)], qt.DeepEquals, newHead)
	c.Assert(blob.Data[len(newHead):], qt.DeepEquals, b[len(scan.Head):])

	scan, err = loadimage.ScanSegments(blob.Data, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(scan.Segments, qt.HasLen, 1)
	c.Assert(scan.Segments[0].Name(), qt.Equals, "COM")

	img, err := imaging.Decode(bytes.NewReader(blob.Data))
	c.Assert(err, qt.IsNil)
	c.Assert(img.Bounds(), qt.Equals, testImage(8, 4).Bounds())
}

func TestReplaceHeadErrors(t *testing.T) {
	c := qt.New(t)

	b := orientedJPEG(t, binary.BigEndian, 6)

	_, err := loadimage.ReplaceHead(loadimage.Blob{}, []byte{0xff, 0xd8})
	c.Assert(err, qt.Equals, loadimage.ErrNoHead)

	_, err = loadimage.ReplaceHead(loadimage.Blob{Data: b}, nil)
	c.Assert(err, qt.Equals, loadimage.ErrNoHead)

	_, err = loadimage.ReplaceHead(loadimage.Blob{Data: jpegWithSegments(t, 4, 4)}, b[:20])
	c.Assert(err, qt.Equals, loadimage.ErrNoHead)

	_, err = loadimage.ReplaceHead(loadimage.Blob{Data: []byte("GIF89a")}, b[:20])
	c.Assert(loadimage.IsInvalidFormat(err), qt.IsTrue)
}

func TestSetOrientation(t *testing.T) {
	c := qt.New(t)

	for _, order := range []byteOrder{binary.BigEndian, binary.LittleEndian} {
		c.Run(order.String(), func(c *qt.C) {
			b := orientedJPEG(c, order, 6)

			blob, err := loadimage.SetOrientation(loadimage.Blob{Data: b}, loadimage.OrientationFlipV)
			c.Assert(err, qt.IsNil)
			c.Assert(blob.Len(), qt.Equals, len(b))

			md, err := loadimage.ParseMetaData(blob.Data, loadimage.MetaOptions{})
			c.Assert(err, qt.IsNil)
			c.Assert(md.Orientation(), qt.Equals, loadimage.OrientationFlipV)
			v, _ := md.Exif.GetByName("Make")
			c.Assert(v, qt.Equals, "Canon")
			c.Assert(md.IPTC.Strings(25), qt.DeepEquals, []string{"keyword"})

			// Only the orientation value changed.
			offset, _ := md.Exif.Offset(loadimage.TagOrientation)
			var diff []int
			for i := range b {
				if b[i] != blob.Data[i] {
					diff = append(diff, i)
				}
			}
			if order == binary.BigEndian {
				c.Assert(diff, qt.DeepEquals, []int{offset + 9})
			} else {
				c.Assert(diff, qt.DeepEquals, []int{offset + 8})
			}

			// The input is left untouched.
			md, err = loadimage.ParseMetaData(b, loadimage.MetaOptions{})
			c.Assert(err, qt.IsNil)
			c.Assert(md.Orientation(), qt.Equals, loadimage.OrientationRotate90)
		})
	}
}

func TestSetOrientationDecoder(t *testing.T) {
	c := qt.New(t)

	b := orientedJPEG(t, binary.LittleEndian, 1)
	img, err := imaging.Decode(bytes.NewReader(b), imaging.AutoOrientation(true))
	c.Assert(err, qt.IsNil)
	c.Assert(img.Bounds(), qt.Equals, image.Rect(0, 0, 8, 4))

	blob, err := loadimage.SetOrientation(loadimage.Blob{Data: b}, loadimage.OrientationRotate90)
	c.Assert(err, qt.IsNil)
	img, err = imaging.Decode(bytes.NewReader(blob.Data), imaging.AutoOrientation(true))
	c.Assert(err, qt.IsNil)
	c.Assert(img.Bounds().Dx(), qt.Equals, 4)
	c.Assert(img.Bounds().Dy(), qt.Equals, 8)
}

func TestWriteOrientationErrors(t *testing.T) {
	c := qt.New(t)

	b := orientedJPEG(t, binary.BigEndian, 6)
	md, err := loadimage.ParseMetaData(b, loadimage.MetaOptions{})
	c.Assert(err, qt.IsNil)

	_, err = loadimage.WriteOrientation(md.ImageHead, md.Exif, 0)
	c.Assert(err, qt.ErrorMatches, `loadimage: invalid orientation 0`)
	_, err = loadimage.WriteOrientation(md.ImageHead, md.Exif, 9)
	c.Assert(err, qt.IsNotNil)
	_, err = loadimage.WriteOrientation(nil, md.Exif, 1)
	c.Assert(err, qt.Equals, loadimage.ErrNoHead)
	_, err = loadimage.WriteOrientation(md.ImageHead, nil, 1)
	c.Assert(errors.Is(err, loadimage.ErrTagNotFound), qt.IsTrue)

	// The head is not modified.
	head := append([]byte(nil), md.ImageHead...)
	_, err = loadimage.WriteOrientation(md.ImageHead, md.Exif, 3)
	c.Assert(err, qt.IsNil)
	c.Assert(md.ImageHead, qt.DeepEquals, head)

	c.Run("No Orientation tag", func(c *qt.C) {
		b := jpegWithSegments(c, 8, 4, app1Exif(tiff(binary.BigEndian, new(ifd).ascii(0x010f, "Canon"))))
		_, err := loadimage.SetOrientation(loadimage.Blob{Data: b}, 6)
		c.Assert(errors.Is(err, loadimage.ErrTagNotFound), qt.IsTrue)
		c.Assert(err, qt.ErrorMatches, `.*Orientation`)
	})

	c.Run("Orientation not a SHORT", func(c *qt.C) {
		b := jpegWithSegments(c, 8, 4, app1Exif(tiff(binary.BigEndian, new(ifd).long(0x0112, 6))))
		_, err := loadimage.SetOrientation(loadimage.Blob{Data: b}, 1)
		var ferr *loadimage.FormatError
		c.Assert(errors.As(err, &ferr), qt.IsTrue)
	})

	c.Run("No Exif", func(c *qt.C) {
		b := jpegWithSegments(c, 8, 4, segment(0xfffe, []byte("just a comment")))
		_, err := loadimage.SetOrientation(loadimage.Blob{Data: b}, 1)
		c.Assert(errors.Is(err, loadimage.ErrTagNotFound), qt.IsTrue)
	})

	c.Run("No head", func(c *qt.C) {
		_, err := loadimage.SetOrientation(loadimage.Blob{Data: jpegWithSegments(c, 8, 4)}, 1)
		c.Assert(err, qt.Equals, loadimage.ErrNoHead)
	})
}
