// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package loadimage

import (
	"fmt"
	"strconv"
	"strings"
)

// Orientation is the Exif orientation code.
type Orientation int

// The Exif orientation codes, named by the transform that displays the image upright.
const (
	OrientationUnspecified Orientation = iota
	OrientationNormal
	OrientationFlipH
	OrientationRotate180
	OrientationFlipV
	OrientationTranspose
	// OrientationRotate90 rotates 90 degrees clockwise.
	OrientationRotate90
	OrientationTransverse
	// OrientationRotate270 rotates 270 degrees clockwise.
	OrientationRotate270
)

// IsValid reports whether o is one of the codes 1 to 8.
func (o Orientation) IsValid() bool {
	return o >= OrientationNormal && o <= OrientationRotate270
}

// SwapsDimensions reports whether o turns the image a quarter turn,
// i.e. whether width and height trade places.
func (o Orientation) SwapsDimensions() bool {
	return o >= OrientationTranspose && o <= OrientationRotate270
}

func (o Orientation) String() string {
	if o.IsValid() {
		return exifTagValueTexts["Orientation"][int(o)]
	}
	if o == OrientationUnspecified {
		return "Unspecified"
	}
	return fmt.Sprintf("Orientation(%d)", int(o))
}

// Affine is a row major 2x3 affine transform:
//
//	x' = A[0]*x + A[1]*y + A[2]
//	y' = A[3]*x + A[4]*y + A[5]
type Affine [6]float64

// Apply transforms the point (x, y).
func (a Affine) Apply(x, y float64) (float64, float64) {
	return a[0]*x + a[1]*y + a[2], a[3]*x + a[4]*y + a[5]
}

// Matrix returns the transform that maps an image of size w x h, drawn at the
// origin, onto the oriented output surface. The output surface is h x w
// if o swaps dimensions.
func (o Orientation) Matrix(w, h float64) Affine {
	switch o {
	case OrientationFlipH:
		return Affine{-1, 0, w, 0, 1, 0}
	case OrientationRotate180:
		return Affine{-1, 0, w, 0, -1, h}
	case OrientationFlipV:
		return Affine{1, 0, 0, 0, -1, h}
	case OrientationTranspose:
		return Affine{0, 1, 0, 1, 0, 0}
	case OrientationRotate90:
		return Affine{0, -1, h, 1, 0, 0}
	case OrientationTransverse:
		return Affine{0, -1, h, -1, 0, w}
	case OrientationRotate270:
		return Affine{0, 1, 0, -1, 0, w}
	default:
		return Affine{1, 0, 0, 0, 1, 0}
	}
}

// linear returns the linear part of the orientation transform.
func (o Orientation) linear() [4]int {
	m := o.Matrix(0, 0)
	return [4]int{int(m[0]), int(m[1]), int(m[3]), int(m[4])}
}

var orientationsByLinear = func() map[[4]int]Orientation {
	m := make(map[[4]int]Orientation)
	for o := OrientationNormal; o <= OrientationRotate270; o++ {
		m[o.linear()] = o
	}
	return m
}()

// Compose returns the orientation that applies next after o.
func (o Orientation) Compose(next Orientation) Orientation {
	a, b := next.linear(), o.linear()
	p := [4]int{
		a[0]*b[0] + a[1]*b[2], a[0]*b[1] + a[1]*b[3],
		a[2]*b[0] + a[3]*b[2], a[2]*b[1] + a[3]*b[3],
	}
	return orientationsByLinear[p]
}

// Inverse returns the orientation that undoes o.
func (o Orientation) Inverse() Orientation {
	l := o.linear()
	return orientationsByLinear[[4]int{l[0], l[2], l[1], l[3]}]
}

// edges holds crop insets, nil means not set.
type edges struct {
	top, right, bottom, left *float64
}

// toSource maps insets given on the oriented output onto the image before o is applied.
func (e edges) toSource(o Orientation) edges {
	switch o {
	case OrientationFlipH:
		return edges{top: e.top, right: e.left, bottom: e.bottom, left: e.right}
	case OrientationRotate180:
		return edges{top: e.bottom, right: e.left, bottom: e.top, left: e.right}
	case OrientationFlipV:
		return edges{top: e.bottom, right: e.right, bottom: e.top, left: e.left}
	case OrientationTranspose:
		return edges{top: e.left, right: e.bottom, bottom: e.right, left: e.top}
	case OrientationRotate90:
		return edges{top: e.right, right: e.bottom, bottom: e.left, left: e.top}
	case OrientationTransverse:
		return edges{top: e.right, right: e.top, bottom: e.left, left: e.bottom}
	case OrientationRotate270:
		return edges{top: e.left, right: e.top, bottom: e.right, left: e.bottom}
	default:
		return e
	}
}

// OrientationOption selects the orientation to apply when planning.
// The zero value leaves the image as decoded.
type OrientationOption int

// OrientationFromExif applies the orientation stored in the Exif data.
const OrientationFromExif OrientationOption = -1

// ParseOrientationOption parses "", "none", "false", "true", "exif" or a code 1 to 8.
func ParseOrientationOption(s string) (OrientationOption, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "none", "false":
		return 0, nil
	case "true", "exif", "auto":
		return OrientationFromExif, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil || !Orientation(i).IsValid() {
		return 0, fmt.Errorf("invalid orientation %q: must be true, false or 1 to 8", s)
	}
	return OrientationOption(i), nil
}

func (o OrientationOption) String() string {
	switch {
	case o == OrientationFromExif:
		return "exif"
	case o == 0:
		return "none"
	default:
		return strconv.Itoa(int(o))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *OrientationOption) UnmarshalText(text []byte) error {
	v, err := ParseOrientationOption(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (o OrientationOption) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// resolve returns the requested orientation given the decoded Exif orientation.
func (o OrientationOption) resolve(exifOrientation Orientation) Orientation {
	if o == OrientationFromExif {
		return exifOrientation
	}
	return Orientation(o)
}

// effectiveOrientation returns the transform to apply on top of what the decoder
// already did, given the requested orientation and the orientation auto applied by the decoder.
func effectiveOrientation(requested, auto Orientation) Orientation {
	if !auto.IsValid() {
		auto = OrientationNormal
	}
	if requested == auto {
		return OrientationNormal
	}
	required := requested.IsValid() && (requested != OrientationNormal || auto != OrientationNormal)
	if !required {
		return OrientationNormal
	}
	return auto.Inverse().Compose(requested)
}
