// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package loadimage_test

import (
	"testing"

	"github.com/bep/loadimage"
	qt "github.com/frankban/quicktest"
	"gopkg.in/yaml.v3"
)

var allOrientations = []loadimage.Orientation{
	loadimage.OrientationNormal,
	loadimage.OrientationFlipH,
	loadimage.OrientationRotate180,
	loadimage.OrientationFlipV,
	loadimage.OrientationTranspose,
	loadimage.OrientationRotate90,
	loadimage.OrientationTransverse,
	loadimage.OrientationRotate270,
}

func TestOrientation(t *testing.T) {
	c := qt.New(t)

	c.Assert(loadimage.OrientationUnspecified.IsValid(), qt.IsFalse)
	c.Assert(loadimage.Orientation(9).IsValid(), qt.IsFalse)
	for _, o := range allOrientations {
		c.Assert(o.IsValid(), qt.IsTrue)
		c.Assert(o.SwapsDimensions(), qt.Equals, o >= 5)
	}

	c.Assert(loadimage.OrientationRotate90.String(), qt.Equals, "Rotate 90 CW")
	c.Assert(loadimage.OrientationNormal.String(), qt.Equals, "Horizontal (normal)")
	c.Assert(loadimage.OrientationUnspecified.String(), qt.Equals, "Unspecified")
	c.Assert(loadimage.Orientation(9).String(), qt.Equals, "Orientation(9)")
}

func TestOrientationCompose(t *testing.T) {
	c := qt.New(t)

	normal := loadimage.OrientationNormal

	c.Assert(loadimage.OrientationRotate90.Compose(loadimage.OrientationRotate90), qt.Equals, loadimage.OrientationRotate180)
	c.Assert(loadimage.OrientationRotate90.Compose(loadimage.OrientationRotate180), qt.Equals, loadimage.OrientationRotate270)
	c.Assert(loadimage.OrientationFlipH.Compose(loadimage.OrientationFlipV), qt.Equals, loadimage.OrientationRotate180)
	c.Assert(loadimage.OrientationRotate90.Inverse(), qt.Equals, loadimage.OrientationRotate270)
	c.Assert(loadimage.OrientationTranspose.Inverse(), qt.Equals, loadimage.OrientationTranspose)

	for _, a := range allOrientations {
		c.Assert(a.Compose(a.Inverse()), qt.Equals, normal)
		c.Assert(a.Inverse().Compose(a), qt.Equals, normal)
		c.Assert(a.Compose(normal), qt.Equals, a)
		c.Assert(normal.Compose(a), qt.Equals, a)
		for _, b := range allOrientations {
			ab := a.Compose(b)
			c.Assert(ab.IsValid(), qt.IsTrue)
			c.Assert(ab.SwapsDimensions(), qt.Equals, a.SwapsDimensions() != b.SwapsDimensions())
			for _, d := range allOrientations {
				c.Assert(ab.Compose(d), qt.Equals, a.Compose(b.Compose(d)))
			}
		}
	}
}

func TestOrientationMatrix(t *testing.T) {
	c := qt.New(t)

	const w, h = 3.0, 2.0

	x, y := loadimage.OrientationRotate90.Matrix(w, h).Apply(0, 0)
	c.Assert([]float64{x, y}, qt.DeepEquals, []float64{h, 0})
	x, y = loadimage.OrientationRotate270.Matrix(w, h).Apply(0, 0)
	c.Assert([]float64{x, y}, qt.DeepEquals, []float64{0, w})
	x, y = loadimage.OrientationFlipH.Matrix(w, h).Apply(0, 0)
	c.Assert([]float64{x, y}, qt.DeepEquals, []float64{w, 0})

	size := func(o loadimage.Orientation, w, h float64) (float64, float64) {
		if o.SwapsDimensions() {
			return h, w
		}
		return w, h
	}

	corners := [][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}, {1, 0}, {0, 1}}

	for _, a := range allOrientations {
		// The image is mapped onto the output surface.
		ow, oh := size(a, w, h)
		m := a.Matrix(w, h)
		for _, p := range corners[:4] {
			x, y := m.Apply(p[0], p[1])
			c.Assert(x == 0 || x == ow, qt.IsTrue, qt.Commentf("%s %v", a, p))
			c.Assert(y == 0 || y == oh, qt.IsTrue, qt.Commentf("%s %v", a, p))
		}

		// Composing orientations is composing their transforms.
		for _, b := range allOrientations {
			mb := b.Matrix(ow, oh)
			mab := a.Compose(b).Matrix(w, h)
			for _, p := range corners {
				x1, y1 := m.Apply(p[0], p[1])
				x2, y2 := mb.Apply(x1, y1)
				x3, y3 := mab.Apply(p[0], p[1])
				c.Assert([]float64{x2, y2}, qt.DeepEquals, []float64{x3, y3}, qt.Commentf("%s then %s %v", a, b, p))
			}
		}
	}
}

func TestParseOrientationOption(t *testing.T) {
	c := qt.New(t)

	for _, test := range []struct {
		in   string
		want loadimage.OrientationOption
	}{
		{"", 0},
		{"none", 0},
		{"false", 0},
		{" FALSE ", 0},
		{"true", loadimage.OrientationFromExif},
		{"exif", loadimage.OrientationFromExif},
		{"Auto", loadimage.OrientationFromExif},
		{"1", 1},
		{"6", 6},
		{" 8", 8},
	} {
		got, err := loadimage.ParseOrientationOption(test.in)
		c.Assert(err, qt.IsNil, qt.Commentf(test.in))
		c.Assert(got, qt.Equals, test.want, qt.Commentf(test.in))
	}

	for _, in := range []string{"0", "9", "-1", "left", "1.5"} {
		_, err := loadimage.ParseOrientationOption(in)
		c.Assert(err, qt.ErrorMatches, `invalid orientation .*`, qt.Commentf(in))
	}

	c.Assert(loadimage.OrientationFromExif.String(), qt.Equals, "exif")
	c.Assert(loadimage.OrientationOption(0).String(), qt.Equals, "none")
	c.Assert(loadimage.OrientationOption(6).String(), qt.Equals, "6")

	var opts struct {
		A loadimage.OrientationOption `yaml:"a"`
		B loadimage.OrientationOption `yaml:"b"`
		C loadimage.OrientationOption `yaml:"c"`
	}
	c.Assert(yaml.Unmarshal([]byte("a: true\nb: 6\nc: exif\n"), &opts), qt.IsNil)
	c.Assert(opts.A, qt.Equals, loadimage.OrientationFromExif)
	c.Assert(opts.B, qt.Equals, loadimage.OrientationOption(6))
	c.Assert(opts.C, qt.Equals, loadimage.OrientationFromExif)

	b, err := yaml.Marshal(opts)
	c.Assert(err, qt.IsNil)
	c.Assert(string(b), qt.Equals, "a: exif\nb: \"6\"\nc: exif\n")

	c.Assert(yaml.Unmarshal([]byte("a: 10\n"), &opts), qt.IsNotNil)
}
