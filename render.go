// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package loadimage

import (
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Render applies plan to src.
// If the plan doesn't need a surface, src is returned as is.
func Render(src image.Image, plan GeometryPlan) image.Image {
	if !plan.OutputIsSurface {
		return src
	}

	if plan.RedrawFullSource {
		src = imaging.Clone(src)
	}

	bounds := src.Bounds()
	sr := image.Rect(
		int(plan.SourceX), int(plan.SourceY),
		int(plan.SourceX+plan.SourceWidth), int(plan.SourceY+plan.SourceHeight),
	).Add(bounds.Min).Intersect(bounds)

	scaler := interpolator(plan)

	var cur image.Image = src
	for _, step := range plan.DownsampleSteps {
		dst := image.NewNRGBA(image.Rect(0, 0, surfaceDim(step.Width), surfaceDim(step.Height)))
		scaler.Scale(dst, dst.Bounds(), cur, sr, draw.Src, nil)
		cur, sr = dst, dst.Bounds()
	}

	dst := image.NewNRGBA(image.Rect(0, 0, surfaceDim(plan.DrawWidth), surfaceDim(plan.DrawHeight)))
	scaler.Scale(dst, dst.Bounds(), cur, sr, draw.Src, nil)

	return orient(dst, plan.Orientation)
}

func interpolator(plan GeometryPlan) draw.Interpolator {
	if !plan.ImageSmoothingEnabled {
		return draw.NearestNeighbor
	}
	switch plan.ImageSmoothingQuality {
	case SmoothingHigh:
		return draw.CatmullRom
	case SmoothingMedium:
		return draw.BiLinear
	default:
		return draw.ApproxBiLinear
	}
}

// orient applies o to img. The result matches o.Matrix.
func orient(img *image.NRGBA, o Orientation) *image.NRGBA {
	switch o {
	case OrientationFlipH:
		return imaging.FlipH(img)
	case OrientationRotate180:
		return imaging.Rotate180(img)
	case OrientationFlipV:
		return imaging.FlipV(img)
	case OrientationTranspose:
		return imaging.Transpose(img)
	case OrientationRotate90:
		// imaging rotates counter-clockwise.
		return imaging.Rotate270(img)
	case OrientationTransverse:
		return imaging.Transverse(img)
	case OrientationRotate270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// surfaceDim truncates a planned dimension to whole pixels.
func surfaceDim(f float64) int {
	return max(1, int(f))
}
