// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package loadimage

import (
	"bytes"
	"image"
	"io"
	"sync"

	"github.com/disintegration/imaging"
)

// Capabilities describes the image decoder in use.
// It's detected once with DetectCapabilities or set by the caller, and never changes.
type Capabilities struct {
	// AutoOrientation is set if the decoder applies the Exif orientation itself.
	AutoOrientation bool

	// OrientationCropBug is set if the renderer reads oriented source coordinates
	// when cropping. The planner then asks for a full source redraw first.
	OrientationCropBug bool
}

// DecodeFunc decodes the pixels of an image.
type DecodeFunc func(r io.Reader) (image.Image, error)

// ImagingDecoder returns a DecodeFunc backed by imaging.Decode.
func ImagingDecoder(autoOrient bool) DecodeFunc {
	return func(r io.Reader) (image.Image, error) {
		return imaging.Decode(r, imaging.AutoOrientation(autoOrient))
	}
}

// DetectCapabilities decodes a 2x1 JPEG with Exif orientation 6 (rotate 90 CW).
// If decode returns a 1x2 image, it applies the orientation itself.
func DetectCapabilities(decode DecodeFunc) Capabilities {
	img, err := decode(bytes.NewReader(orientationProbe()))
	if err != nil {
		return Capabilities{}
	}
	b := img.Bounds()
	return Capabilities{AutoOrientation: b.Dx() == 1 && b.Dy() == 2}
}

var defaultCapabilities = [2]func() Capabilities{
	sync.OnceValue(func() Capabilities { return DetectCapabilities(ImagingDecoder(false)) }),
	sync.OnceValue(func() Capabilities { return DetectCapabilities(ImagingDecoder(true)) }),
}

func imagingCapabilities(autoOrient bool) Capabilities {
	if autoOrient {
		return defaultCapabilities[1]()
	}
	return defaultCapabilities[0]()
}

var orientationProbe = sync.OnceValue(func() []byte {
	// Big endian Exif with a single IFD0 entry: Orientation (SHORT) = 6.
	app1 := []byte{
		0xff, 0xe1, 0x00, 0x22,
		'E', 'x', 'i', 'f', 0x00, 0x00,
		'M', 'M', 0x00, 0x2a, 0x00, 0x00, 0x00, 0x08,
		0x00, 0x01,
		0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x00, 0x06, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}

	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		return nil
	}
	b := buf.Bytes()

	probe := make([]byte, 0, len(b)+len(app1))
	probe = append(probe, b[:2]...)
	probe = append(probe, app1...)
	probe = append(probe, b[2:]...)
	return probe
})
