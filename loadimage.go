// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Package loadimage reads Exif and IPTC metadata straight from JPEG bytes,
// plans scale, crop and orientation transforms from it, and writes an edited
// metadata head back without re-encoding the image data.
package loadimage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
)

const (
	// EXIF is the Exif tag source.
	EXIF Source = 1 << iota
	// IPTC is the IPTC tag source.
	IPTC
	// JPEG is the JPEG segment structure.
	JPEG
	// IMAGE is the pixel data.
	IMAGE
)

var sourceNames = []struct {
	s    Source
	name string
}{
	{EXIF, "EXIF"},
	{IPTC, "IPTC"},
	{JPEG, "JPEG"},
	{IMAGE, "IMAGE"},
}

// Source is a bitmask and you may combine multiple sources.
type Source uint32

// Remove removes the given source.
func (t Source) Remove(source Source) Source {
	t &= ^source
	return t
}

// Has returns true if the given source is set.
func (t Source) Has(source Source) bool {
	return t&source != 0
}

// IsZero returns true if the source is zero.
func (t Source) IsZero() bool {
	return t == 0
}

func (t Source) String() string {
	var names []string
	for _, sn := range sourceNames {
		if t.Has(sn.s) {
			names = append(names, sn.name)
			t = t.Remove(sn.s)
		}
	}
	if len(names) == 0 || t != 0 {
		return fmt.Sprintf("Source(%d)", uint32(t))
	}
	return strings.Join(names, "|")
}

var errNoFetcher = errors.New("loadimage: no fetcher provided")

// Fetcher turns a URL into a Blob.
// A positive maxBytes asks for a prefix of at most that many bytes;
// implementations may return more.
type Fetcher interface {
	Fetch(ctx context.Context, url string, maxBytes int64) (Blob, error)
}

// MetaOptions configures ParseMetaData.
type MetaOptions struct {
	// The number of leading bytes to search for metadata.
	// Defaults to DefaultMaxMetaDataSize.
	MaxMetaDataSize int

	DisableExif      bool
	DisableIPTC      bool
	DisableImageHead bool

	// DisableMetaDataParsers only scans the segments and the image head.
	DisableMetaDataParsers bool

	// If set, only these Exif tags are decoded.
	IncludeExifTags TagFilter
	// Defaults to DefaultExcludeExifTags.
	ExcludeExifTags TagFilter

	// If set, only these IPTC datasets are decoded.
	IncludeIPTCTags IPTCFilter
	// Defaults to DefaultExcludeIPTCTags.
	ExcludeIPTCTags IPTCFilter

	// Warnf will be called for each warning.
	Warnf func(string, ...any)
}

// MetaData is the result of ParseMetaData.
type MetaData struct {
	// ImageHead is a copy of the bytes from SOI through the last metadata segment.
	ImageHead []byte

	// Segments are the APPn and COM segments in file order.
	Segments []Segment

	// Exif is the first Exif block, nil if none.
	Exif *ExifData

	// IPTC is the first IPTC block, nil if none.
	IPTC *IptcData

	diag *diagnostics
}

// Warnings returns the problems found while decoding.
func (m *MetaData) Warnings() []Warning {
	if m == nil {
		return nil
	}
	return m.diag.list()
}

// Orientation returns the Exif orientation, or OrientationUnspecified.
func (m *MetaData) Orientation() Orientation {
	if m == nil {
		return OrientationUnspecified
	}
	return m.Exif.Orientation()
}

// ParseMetaData reads the metadata segments at the start of the JPEG in b.
//
// A missing SOI marker is returned as a *FormatError.
// If the Exif root is invalid, the error is returned together with the
// MetaData decoded so far. All other problems are warnings.
func ParseMetaData(b []byte, opts MetaOptions) (*MetaData, error) {
	return parseMetaData(b, opts, newDiagnostics(opts.Warnf))
}

func parseMetaData(b []byte, opts MetaOptions, diag *diagnostics) (*MetaData, error) {
	if opts.MaxMetaDataSize <= 0 {
		opts.MaxMetaDataSize = DefaultMaxMetaDataSize
	}

	md := &MetaData{diag: diag}

	var exifErr error

	visit := func(b []byte, seg Segment) {
		if opts.DisableMetaDataParsers {
			return
		}
		switch seg.Marker {
		case markerAPP1:
			if opts.DisableExif || md.Exif != nil || exifErr != nil {
				return
			}
			x, err := decodeExif(b, seg, opts.IncludeExifTags, opts.ExcludeExifTags, diag)
			if err != nil {
				exifErr = err
				diag.add(EXIF, err)
				return
			}
			md.Exif = x
		case markerApp13:
			if opts.DisableIPTC || md.IPTC != nil {
				return
			}
			md.IPTC = decodeIPTC(b, seg, opts.IncludeIPTCTags, opts.ExcludeIPTCTags, diag)
		}
	}

	scan, err := scanSegments(b, opts.MaxMetaDataSize, visit)
	if err != nil {
		return nil, err
	}
	for _, w := range scan.Warnings {
		diag.add(w.Source, w.Err)
	}

	md.Segments = scan.Segments
	if !opts.DisableImageHead {
		md.ImageHead = scan.Head
	}

	return md, exifErr
}

// ParseMetaDataURL fetches the metadata prefix of the JPEG at url and parses it.
func ParseMetaDataURL(ctx context.Context, url string, fetcher Fetcher, opts MetaOptions) (*MetaData, error) {
	if fetcher == nil {
		return nil, errNoFetcher
	}
	maxBytes := opts.MaxMetaDataSize
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMetaDataSize
	}
	blob, err := fetcher.Fetch(ctx, url, int64(maxBytes))
	if err != nil {
		return nil, fmt.Errorf("loadimage: fetch %q: %w", url, err)
	}
	return ParseMetaData(blob.Data, opts)
}

// Options configures Load.
type Options struct {
	// Meta enables metadata parsing and sets Exif, IPTC and ImageHead in the Result.
	// Metadata is always parsed when the orientation is taken from Exif.
	Meta bool

	MetaOptions MetaOptions

	Geometry GeometryOptions

	// AutoOrient makes the default decoder apply the Exif orientation.
	AutoOrient bool

	// Decode decodes the pixels. Defaults to ImagingDecoder(AutoOrient).
	Decode DecodeFunc

	// Capabilities of Decode. Detected once per Loader if not set.
	Capabilities *Capabilities

	// Warnf will be called for each warning.
	Warnf func(string, ...any)
}

// Result is the output of Load.
type Result struct {
	// Image is the transformed image, or the decoded image if no transform was needed.
	Image image.Image

	// The size of the image as stored, before any orientation.
	// A decoder that applies the Exif orientation itself is only
	// accounted for when the metadata was parsed.
	OriginalWidth  int
	OriginalHeight int

	// Set if Options.Meta is set and the metadata was found.
	Exif      *ExifData
	IPTC      *IptcData
	ImageHead []byte

	Plan GeometryPlan

	Warnings []Warning
}

// Loader loads images with a fixed set of options.
// It's safe for concurrent use.
type Loader struct {
	opts   Options
	decode DecodeFunc
	caps   func() Capabilities
}

// NewLoader creates a Loader. The capabilities of a custom Decode
// are detected on first use.
func NewLoader(opts Options) *Loader {
	if opts.Warnf == nil {
		opts.Warnf = opts.MetaOptions.Warnf
	}

	l := &Loader{opts: opts, decode: opts.Decode}

	switch {
	case opts.Capabilities != nil:
		caps := *opts.Capabilities
		l.caps = func() Capabilities { return caps }
	case l.decode == nil:
		autoOrient := opts.AutoOrient
		l.caps = func() Capabilities { return imagingCapabilities(autoOrient) }
	default:
		decode := l.decode
		l.caps = sync.OnceValue(func() Capabilities { return DetectCapabilities(decode) })
	}
	if l.decode == nil {
		l.decode = ImagingDecoder(opts.AutoOrient)
	}

	return l
}

// Load decodes the image in blob, reads its metadata and applies the geometry options.
// Metadata problems are reported as warnings; a pixel decode failure fails the call.
func Load(ctx context.Context, blob Blob, opts Options) (*Result, error) {
	return NewLoader(opts).Load(ctx, blob)
}

// Load decodes the image in blob with the Loader's options.
func (l *Loader) Load(ctx context.Context, blob Blob) (*Result, error) {
	if blob.IsZero() {
		return nil, fmt.Errorf("%w: empty blob", ErrInvalidFormat)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := l.opts
	diag := newDiagnostics(opts.Warnf)
	decode := l.decode
	caps := l.caps()

	var md *MetaData
	if opts.Meta || opts.Geometry.Orientation == OrientationFromExif {
		var err error
		md, err = parseMetaData(blob.Data, opts.MetaOptions, diag)
		if err != nil && md == nil {
			diag.add(JPEG, err)
		}
	}

	img, err := decode(bytes.NewReader(blob.Data))
	if err != nil {
		return nil, fmt.Errorf("loadimage: decode image: %w", err)
	}
	bounds := img.Bounds()

	plan, err := Plan(float64(bounds.Dx()), float64(bounds.Dy()), opts.Geometry, md.Orientation(), caps)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		Image:          Render(img, plan),
		OriginalWidth:  bounds.Dx(),
		OriginalHeight: bounds.Dy(),
		Plan:           plan,
	}
	if caps.AutoOrientation && md.Orientation().SwapsDimensions() {
		res.OriginalWidth, res.OriginalHeight = res.OriginalHeight, res.OriginalWidth
	}
	if opts.Meta && md != nil {
		res.Exif = md.Exif
		res.IPTC = md.IPTC
		res.ImageHead = md.ImageHead
	}
	res.Warnings = diag.list()

	return res, nil
}

// LoadURL fetches the image at url and loads it.
func LoadURL(ctx context.Context, url string, fetcher Fetcher, opts Options) (*Result, error) {
	return NewLoader(opts).LoadURL(ctx, url, fetcher)
}

// LoadURL fetches the image at url and loads it with the Loader's options.
func (l *Loader) LoadURL(ctx context.Context, url string, fetcher Fetcher) (*Result, error) {
	if fetcher == nil {
		return nil, errNoFetcher
	}
	blob, err := fetcher.Fetch(ctx, url, 0)
	if err != nil {
		return nil, fmt.Errorf("loadimage: fetch %q: %w", url, err)
	}
	return l.Load(ctx, blob)
}
