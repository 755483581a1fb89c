// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package loadimage

import (
	"fmt"
)

// ReplaceHead returns a new Blob with the image head of blob replaced by newHead.
// The old head is found by scanning the segments of blob, so newHead may
// be of a different length. The compressed image data is copied as is.
func ReplaceHead(blob Blob, newHead []byte) (Blob, error) {
	if blob.IsZero() || len(newHead) == 0 {
		return Blob{}, ErrNoHead
	}

	scan, err := scanSegments(blob.Data, blob.Len(), nil)
	if err != nil {
		return Blob{}, err
	}
	if scan.Head == nil {
		return Blob{}, ErrNoHead
	}

	rest := blob.Data[len(scan.Head):]
	b := make([]byte, 0, len(newHead)+len(rest))
	b = append(b, newHead...)
	b = append(b, rest...)

	contentType := blob.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	return Blob{Data: b, ContentType: contentType}, nil
}

// WriteOrientation returns a copy of head with the IFD0 Orientation set to o.
// exif must be decoded from a buffer that starts with head, as
// ParseMetaData does, so its recorded offsets apply to head.
func WriteOrientation(head []byte, exif *ExifData, o Orientation) ([]byte, error) {
	if len(head) == 0 {
		return nil, ErrNoHead
	}
	if !o.IsValid() {
		return nil, fmt.Errorf("loadimage: invalid orientation %d", o)
	}
	if exif == nil {
		return nil, fmt.Errorf("%w: no Exif data", ErrTagNotFound)
	}

	offset, found := exif.Offset(TagOrientation)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrTagNotFound, exif.Name(TagOrientation))
	}

	v := newByteView(head, exif.ByteOrder())

	typ, err := v.uint16(offset + 2)
	if err != nil {
		return nil, fmt.Errorf("loadimage: Orientation entry outside of head: %w", err)
	}
	count, _ := v.uint32(offset + 4)
	if exifType(typ) != exifTypeUnsignedShort || count != 1 {
		return nil, newFormatErrorf(offset, "Orientation has type %d and count %d, expected a single SHORT", typ, count)
	}
	if err := v.check(offset+8, 2); err != nil {
		return nil, fmt.Errorf("loadimage: Orientation value outside of head: %w", err)
	}

	b := make([]byte, len(head))
	copy(b, head)
	exif.ByteOrder().PutUint16(b[offset+8:], uint16(o))

	return b, nil
}

// SetOrientation parses the metadata of blob, writes o to the Exif
// Orientation tag and splices the new head back into the blob.
func SetOrientation(blob Blob, o Orientation) (Blob, error) {
	md, err := ParseMetaData(blob.Data, MetaOptions{
		MaxMetaDataSize: blob.Len(),
		DisableIPTC:     true,
		IncludeExifTags: TagFilter{IFD0: {TagOrientation: true}},
	})
	if err != nil {
		return Blob{}, err
	}
	if md.ImageHead == nil {
		return Blob{}, ErrNoHead
	}

	head, err := WriteOrientation(md.ImageHead, md.Exif, o)
	if err != nil {
		return Blob{}, err
	}

	return ReplaceHead(blob, head)
}
