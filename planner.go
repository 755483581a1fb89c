// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package loadimage

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Image smoothing qualities.
const (
	SmoothingLow    = "low"
	SmoothingMedium = "medium"
	SmoothingHigh   = "high"
)

// GeometryOptions describes how to scale, crop and orient an image.
// All sizes are in pixels of the oriented output.
type GeometryOptions struct {
	MaxWidth  float64 `yaml:"maxWidth" validate:"gte=0"`
	MaxHeight float64 `yaml:"maxHeight" validate:"gte=0"`
	MinWidth  float64 `yaml:"minWidth" validate:"gte=0"`
	MinHeight float64 `yaml:"minHeight" validate:"gte=0"`

	// Size of the source rectangle, before any scaling.
	SourceWidth  float64 `yaml:"sourceWidth" validate:"gte=0"`
	SourceHeight float64 `yaml:"sourceHeight" validate:"gte=0"`

	// Crop insets. Nil means not set, which is different from 0.
	Top    *float64 `yaml:"top" validate:"omitempty,gte=0"`
	Right  *float64 `yaml:"right" validate:"omitempty,gte=0"`
	Bottom *float64 `yaml:"bottom" validate:"omitempty,gte=0"`
	Left   *float64 `yaml:"left" validate:"omitempty,gte=0"`

	// Crop scales and crops the image to exactly MaxWidth x MaxHeight.
	Crop bool `yaml:"crop"`

	// Contain scales the image to fit inside MaxWidth x MaxHeight, keeping the aspect ratio.
	Contain bool `yaml:"contain" validate:"excluded_with=Cover"`

	// Cover scales the image to fill MaxWidth x MaxHeight, keeping the aspect ratio.
	Cover bool `yaml:"cover"`

	// AspectRatio crops the image to the largest box of this width/height ratio.
	AspectRatio float64 `yaml:"aspectRatio" validate:"gte=0"`

	Orientation OrientationOption `yaml:"orientation" validate:"gte=-1,lte=8"`

	// PixelRatio multiplies the output size, e.g. 2 for high density displays.
	PixelRatio float64 `yaml:"pixelRatio" validate:"gte=0"`

	// SourcePixelRatio is the pixel ratio the source was already rendered at.
	SourcePixelRatio float64 `yaml:"sourcePixelRatio" validate:"gte=0"`

	// DownsamplingRatio in (0, 1) scales large reductions in steps of this ratio.
	DownsamplingRatio float64 `yaml:"downsamplingRatio" validate:"gte=0,lte=1"`

	// ImageSmoothingEnabled defaults to true.
	ImageSmoothingEnabled *bool  `yaml:"imageSmoothingEnabled"`
	ImageSmoothingQuality string `yaml:"imageSmoothingQuality" validate:"omitempty,oneof=low medium high"`

	// Surface forces a rendered output even when no other option requires one.
	Surface bool `yaml:"surface"`
}

var geometryValidator = sync.OnceValue(func() *validator.Validate {
	return validator.New()
})

// Validate checks that the options are within range.
func (o GeometryOptions) Validate() error {
	if err := geometryValidator().Struct(o); err != nil {
		return fmt.Errorf("loadimage: invalid geometry options: %w", err)
	}
	return nil
}

// Size is a width and height in pixels.
type Size struct {
	Width  float64
	Height float64
}

// GeometryPlan is the fully resolved transform for one image.
//
// The renderer copies the source rectangle to a DrawWidth x DrawHeight image,
// then applies Orientation, which gives DestWidth x DestHeight.
type GeometryPlan struct {
	SourceX      float64
	SourceY      float64
	SourceWidth  float64
	SourceHeight float64

	DrawWidth  float64
	DrawHeight float64

	DestWidth  float64
	DestHeight float64

	// Orientation is the transform left to apply after decoding.
	Orientation Orientation

	// OutputIsSurface is false if the image can be used as decoded.
	// DestWidth and DestHeight are then only a display size.
	OutputIsSurface bool

	// RedrawFullSource asks the renderer to copy the full source before cropping.
	RedrawFullSource bool

	// DownsampleSteps are intermediate sizes, largest first.
	DownsampleSteps []Size

	ImageSmoothingEnabled bool
	ImageSmoothingQuality string
}

// Plan computes the geometry for an image of the given size as decoded.
// An error is only returned for invalid options.
func Plan(width, height float64, opts GeometryOptions, exifOrientation Orientation, caps Capabilities) (GeometryPlan, error) {
	if err := opts.Validate(); err != nil {
		return GeometryPlan{}, err
	}

	auto := OrientationNormal
	if caps.AutoOrientation {
		auto = exifOrientation
	}
	orientation := effectiveOrientation(opts.Orientation.resolve(exifOrientation), auto)
	swap := orientation.SwapsDimensions()

	var (
		maxWidth, maxHeight       = opts.MaxWidth, opts.MaxHeight
		minWidth, minHeight       = opts.MinWidth, opts.MinHeight
		sourceWidth, sourceHeight = opts.SourceWidth, opts.SourceHeight
		pixelRatio                = opts.PixelRatio
		crop                      = opts.Crop
	)

	scaleByPixelRatio := pixelRatio > 1 && pixelRatio != opts.SourcePixelRatio

	surface := opts.Surface || crop || opts.AspectRatio > 0 || opts.Cover ||
		orientation != OrientationNormal || scaleByPixelRatio

	if opts.AspectRatio > 0 {
		outWidth, outHeight := width, height
		if swap {
			outWidth, outHeight = height, width
		}
		if outWidth/outHeight > opts.AspectRatio {
			maxWidth = outHeight * opts.AspectRatio
			maxHeight = outHeight
		} else {
			maxWidth = outWidth
			maxHeight = outWidth / opts.AspectRatio
		}
		crop = true
	}

	e := edges{top: opts.Top, right: opts.Right, bottom: opts.Bottom, left: opts.Left}
	if swap {
		maxWidth, maxHeight = maxHeight, maxWidth
		minWidth, minHeight = minHeight, minWidth
		sourceWidth, sourceHeight = sourceHeight, sourceWidth
	}
	e = e.toSource(orientation)

	p := GeometryPlan{
		SourceWidth:           width,
		SourceHeight:          height,
		Orientation:           orientation,
		OutputIsSurface:       surface,
		ImageSmoothingEnabled: opts.ImageSmoothingEnabled == nil || *opts.ImageSmoothingEnabled,
		ImageSmoothingQuality: opts.ImageSmoothingQuality,
	}
	if p.ImageSmoothingQuality == "" {
		p.ImageSmoothingQuality = SmoothingLow
	}

	if surface {
		p.SourceX = deref(e.left)
		p.SourceY = deref(e.top)
		if sourceWidth > 0 {
			p.SourceWidth = sourceWidth
			if e.right != nil && e.left == nil {
				p.SourceX = width - sourceWidth - *e.right
			}
		} else {
			p.SourceWidth = width - p.SourceX - deref(e.right)
		}
		if sourceHeight > 0 {
			p.SourceHeight = sourceHeight
			if e.bottom != nil && e.top == nil {
				p.SourceY = height - sourceHeight - *e.bottom
			}
		} else {
			p.SourceHeight = height - p.SourceY - deref(e.bottom)
		}
	}

	destWidth, destHeight := p.SourceWidth, p.SourceHeight

	if surface && maxWidth > 0 && maxHeight > 0 && (crop || opts.Cover) {
		destWidth, destHeight = maxWidth, maxHeight
		diff := p.SourceWidth/p.SourceHeight - maxWidth/maxHeight
		switch {
		case diff < 0:
			p.SourceHeight = maxHeight * p.SourceWidth / maxWidth
			switch {
			case e.top == nil && e.bottom == nil:
				p.SourceY = (height - p.SourceHeight) / 2
			case e.top == nil:
				p.SourceY = height - p.SourceHeight - *e.bottom
			}
		case diff > 0:
			p.SourceWidth = maxWidth * p.SourceHeight / maxHeight
			switch {
			case e.left == nil && e.right == nil:
				p.SourceX = (width - p.SourceWidth) / 2
			case e.left == nil:
				p.SourceX = width - p.SourceWidth - *e.right
			}
		}
	} else {
		if opts.Contain || opts.Cover {
			maxWidth = nonZero(maxWidth, minWidth)
			minWidth = maxWidth
			maxHeight = nonZero(maxHeight, minHeight)
			minHeight = maxHeight
		}

		scaleUp := func() {
			scale := max(nonZero(minWidth, destWidth)/destWidth, nonZero(minHeight, destHeight)/destHeight)
			if scale > 1 {
				destWidth *= scale
				destHeight *= scale
			}
		}
		scaleDown := func() {
			scale := min(nonZero(maxWidth, destWidth)/destWidth, nonZero(maxHeight, destHeight)/destHeight)
			if scale < 1 {
				destWidth *= scale
				destHeight *= scale
			}
		}

		if opts.Cover {
			scaleDown()
			scaleUp()
		} else {
			scaleUp()
			scaleDown()
		}
	}

	if surface && scaleByPixelRatio {
		destWidth *= pixelRatio
		destHeight *= pixelRatio
	}

	if surface && caps.OrientationCropBug && orientation != OrientationNormal {
		p.RedrawFullSource = p.SourceX != 0 || p.SourceY != 0 || p.SourceWidth != width || p.SourceHeight != height
	}

	if ratio := opts.DownsamplingRatio; surface && ratio > 0 && ratio < 1 &&
		destWidth >= 1 && destWidth < p.SourceWidth && destHeight < p.SourceHeight {
		w, h := p.SourceWidth, p.SourceHeight
		for w*ratio > destWidth {
			w *= ratio
			h *= ratio
			p.DownsampleSteps = append(p.DownsampleSteps, Size{Width: w, Height: h})
		}
	}

	p.DrawWidth, p.DrawHeight = destWidth, destHeight
	p.DestWidth, p.DestHeight = destWidth, destHeight
	if swap {
		p.DestWidth, p.DestHeight = destHeight, destWidth
	}

	return p, nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func nonZero(v, fallback float64) float64 {
	if v != 0 {
		return v
	}
	return fallback
}
