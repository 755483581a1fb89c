// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package loadimage_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/bep/loadimage"
)

func FuzzParseMetaData(f *testing.F) {
	f.Add(jpegWithSegments(f, 4, 4))
	f.Add(jpegWithSegments(f, 4, 4, app1Exif(fullExif(binary.BigEndian))))
	f.Add(jpegWithSegments(f, 4, 4, app1Exif(fullExif(binary.LittleEndian))))
	f.Add(jpegWithSegments(f, 4, 4, app13IPTC(
		iptcRecord(1, 90, []byte("\x1b%G")),
		iptcRecord(2, 25, []byte("one")),
		iptcRecord(2, 105, []byte("Headline")),
	)))
	f.Add([]byte{0xff, 0xd8, 0xff, 0xe1, 0x00, 0x02})

	f.Fuzz(func(t *testing.T, b []byte) {
		md, err := loadimage.ParseMetaData(b, loadimage.MetaOptions{})
		if err != nil {
			if !loadimage.IsInvalidFormat(err) {
				t.Fatalf("unexpected error: %v", err)
			}
			return
		}

		// Materialize the lazy directories.
		if md.Exif != nil {
			md.Exif.All()
			md.Exif.DateTime(time.UTC)
			md.Exif.LatLong()
		}
		md.IPTC.All()
		md.Warnings()

		if md.ImageHead != nil {
			if _, err := loadimage.ReplaceHead(loadimage.Blob{Data: b}, md.ImageHead); err != nil {
				t.Fatalf("replace head: %v", err)
			}
		}
	})
}
