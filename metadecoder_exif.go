// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package loadimage

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	exifHeader            = 0x45786966 // "Exif"
	byteOrderBigEndian    = 0x4d4d
	byteOrderLittleEndian = 0x4949
	tiffMagic             = 0x002a

	// "Exif" (4) + 2 NUL bytes after the marker (2) and length (2).
	exifTIFFHeaderOffset = 10
)

// Well known tag codes.
const (
	TagOrientation       uint16 = 0x0112
	TagThumbnailOffset   uint16 = 0x0201
	TagThumbnailLength   uint16 = 0x0202
	TagDateTime          uint16 = 0x0132
	TagExifIFDPointer    uint16 = 0x8769
	TagGPSIFDPointer     uint16 = 0x8825
	TagInteropIFDPointer uint16 = 0xa005
	TagDateTimeOriginal  uint16 = 0x9003
	TagMakerNote         uint16 = 0x927c
	TagGPSLatitudeRef    uint16 = 0x0001
	TagGPSLatitude       uint16 = 0x0002
	TagGPSLongitudeRef   uint16 = 0x0003
	TagGPSLongitude      uint16 = 0x0004
)

const thumbnailContentTypeJPG = "image/jpeg"

// IFDKind identifies an Exif image file directory.
type IFDKind uint8

const (
	// IFD0 is the main image directory.
	IFD0 IFDKind = iota
	// ExifIFD is the Exif sub directory.
	ExifIFD
	// GPSIFD is the GPS sub directory.
	GPSIFD
	// InteropIFD is the Interoperability sub directory.
	InteropIFD
	// ThumbnailIFD is IFD1, the thumbnail directory.
	ThumbnailIFD
)

var ifdKindNames = [...]string{
	IFD0:         "IFD0",
	ExifIFD:      "Exif",
	GPSIFD:       "GPSInfo",
	InteropIFD:   "Interoperability",
	ThumbnailIFD: "Thumbnail",
}

func (k IFDKind) String() string {
	if int(k) < len(ifdKindNames) {
		return ifdKindNames[k]
	}
	return fmt.Sprintf("IFDKind(%d)", k)
}

// Pointer tags per directory kind.
var exifIFDPointers = map[IFDKind]map[uint16]IFDKind{
	IFD0: {
		TagExifIFDPointer:    ExifIFD,
		TagGPSIFDPointer:     GPSIFD,
		TagInteropIFDPointer: InteropIFD,
	},
	ExifIFD: {
		TagInteropIFDPointer: InteropIFD,
	},
}

// TagFilter selects Exif tags per directory.
// A nil tag map for a kind selects all tags in that directory.
type TagFilter map[IFDKind]map[uint16]bool

// DefaultExcludeExifTags excludes the vendor specific MakerNote.
// Pass an empty, non nil TagFilter to disable it.
var DefaultExcludeExifTags = TagFilter{
	ExifIFD: {TagMakerNote: true},
}

func (f TagFilter) includes(kind IFDKind, tag uint16) bool {
	if f == nil {
		return true
	}
	tags, found := f[kind]
	if !found {
		return false
	}
	return tags == nil || tags[tag]
}

func (f TagFilter) excludes(kind IFDKind, tag uint16) bool {
	if f == nil {
		return false
	}
	return f[kind][tag]
}

func (f TagFilter) includesDirectory(kind IFDKind) bool {
	if f == nil {
		return true
	}
	_, found := f[kind]
	return found
}

// exifType represents the basic tiff tag data types.
type exifType uint16

const (
	exifTypeUnsignedByte  exifType = 1
	exifTypeASCII         exifType = 2
	exifTypeUnsignedShort exifType = 3
	exifTypeUnsignedLong  exifType = 4
	exifTypeUnsignedRat   exifType = 5
	exifTypeUndef         exifType = 7
	exifTypeSignedLong    exifType = 9
	exifTypeSignedRat     exifType = 10
)

// Size in bytes of each supported type.
var exifTypeSize = map[exifType]int{
	exifTypeUnsignedByte:  1,
	exifTypeASCII:         1,
	exifTypeUnsignedShort: 2,
	exifTypeUnsignedLong:  4,
	exifTypeUnsignedRat:   8,
	exifTypeUndef:         1,
	exifTypeSignedLong:    4,
	exifTypeSignedRat:     8,
}

// ExifOptions configures DecodeExif.
type ExifOptions struct {
	// If set, only these tags are decoded.
	IncludeTags TagFilter

	// Tags to skip. Defaults to DefaultExcludeExifTags.
	ExcludeTags TagFilter

	// Warnf will be called for each warning.
	Warnf func(string, ...any)
}

// DecodeExif decodes the Exif data in the APP1 segment seg of b.
// Offsets in seg are absolute offsets in b.
//
// It returns nil and no error if the segment isn't Exif (it may be XMP).
// A bad byte order marker or TIFF magic number is a *FormatError.
func DecodeExif(b []byte, seg Segment, opts ExifOptions) (*ExifData, error) {
	return decodeExif(b, seg, opts.IncludeTags, opts.ExcludeTags, newDiagnostics(opts.Warnf))
}

func decodeExif(b []byte, seg Segment, include, exclude TagFilter, diag *diagnostics) (*ExifData, error) {
	if exclude == nil {
		exclude = DefaultExcludeExifTags
	}

	v := newByteView(b, binary.BigEndian)
	offset := int(seg.Offset)

	header, err := v.uint32(offset + 4)
	if err != nil || header != exifHeader {
		return nil, nil
	}

	tiffOffset := offset + exifTIFFHeaderOffset
	if err := v.check(tiffOffset, 8); err != nil {
		return nil, fmt.Errorf("%w: truncated Exif header: %w", ErrInvalidFormat, err)
	}

	if pad, _ := v.uint16(offset + 8); pad != 0 {
		return nil, newFormatErrorf(offset+8, "missing Exif header padding")
	}

	byteOrderTag, _ := v.uint16(tiffOffset)
	switch byteOrderTag {
	case byteOrderBigEndian:
	case byteOrderLittleEndian:
		v = v.withByteOrder(binary.LittleEndian)
	default:
		return nil, newFormatErrorf(tiffOffset, "invalid byte alignment marker 0x%04x", byteOrderTag)
	}

	if magic, _ := v.uint16(tiffOffset + 2); magic != tiffMagic {
		return nil, newFormatErrorf(tiffOffset+2, "invalid TIFF magic number 0x%04x", magic)
	}

	ifd0Offset, _ := v.uint32(tiffOffset + 4)

	r := &exifReader{
		v:          v,
		tiffOffset: tiffOffset,
		include:    include,
		exclude:    exclude,
		diag:       diag,
	}

	ifd0, next := r.decodeDirectory(IFD0, int(ifd0Offset))

	x := &ExifData{
		TagDirectory: ifd0,
		r:            r,
	}

	if next != 0 && include.includesDirectory(ThumbnailIFD) {
		x.thumbnail = &subDirectory{kind: ThumbnailIFD, offset: next}
	}

	return x, nil
}

// exifReader holds the state shared by all directories of one Exif block.
type exifReader struct {
	v          byteView
	tiffOffset int
	include    TagFilter
	exclude    TagFilter
	diag       *diagnostics
}

func (r *exifReader) shouldHandleTag(kind IFDKind, tag uint16) bool {
	return r.include.includes(kind, tag) && !r.exclude.excludes(kind, tag)
}

func (r *exifReader) warnf(format string, args ...any) {
	r.diag.addf(EXIF, format, args...)
}

// decodeDirectory decodes the directory at offset, relative to the TIFF header.
// It returns the directory and the offset of the next directory, 0 if none.
//
// A directory entry is 12 bytes:
//   - 2 bytes for the tag ID
//   - 2 bytes for the data type
//   - 4 bytes for the number of values of the specified type
//   - 4 bytes for the value itself, if it fits, otherwise for a pointer to
//     another location (relative to the TIFF header) where the data may be found.
func (r *exifReader) decodeDirectory(kind IFDKind, offset int) (*TagDirectory, uint32) {
	dir := newTagDirectory(kind, r)
	dirOffset := r.tiffOffset + offset

	if err := r.v.check(dirOffset, 6); err != nil {
		r.warnf("invalid %s directory offset: %w", kind, err)
		return dir, 0
	}

	numTags, _ := r.v.uint16(dirOffset)
	dirEnd := dirOffset + 2 + 12*int(numTags)
	if err := r.v.check(dirEnd, 4); err != nil {
		r.warnf("invalid %s directory size: %w", kind, err)
		return dir, 0
	}

	pointers := exifIFDPointers[kind]

	for i := range int(numTags) {
		entryOffset := dirOffset + 2 + 12*i
		tag, _ := r.v.uint16(entryOffset)

		if !r.shouldHandleTag(kind, tag) {
			continue
		}

		val, err := r.decodeValue(tag, entryOffset)
		if err != nil {
			r.warnf("%s: %w", kind, err)
			continue
		}

		if subKind, ok := pointers[tag]; ok {
			if ptr, ok := toInt(val); ok && ptr > 0 && r.include.includesDirectory(subKind) {
				dir.subs[tag] = &subDirectory{kind: subKind, offset: uint32(ptr)}
			}
		}

		dir.set(tag, val, entryOffset)
	}

	next, _ := r.v.uint32(dirEnd)

	return dir, next
}

func (r *exifReader) decodeValue(tag uint16, entryOffset int) (any, error) {
	typeCode, _ := r.v.uint16(entryOffset + 2)
	count, _ := r.v.uint32(entryOffset + 4)

	typ := exifType(typeCode)
	size, ok := exifTypeSize[typ]
	if !ok {
		return nil, &UnsupportedTypeError{Tag: tag, Type: typeCode}
	}

	valLen := uint64(size) * uint64(count)
	if valLen > uint64(r.v.len()) {
		return nil, fmt.Errorf("tag 0x%04x: invalid data size: %w", tag, &BoundsError{Offset: entryOffset, Size: int(min(valLen, 1<<31)), Len: r.v.len()})
	}

	dataOffset := entryOffset + 8
	if valLen > 4 {
		ptr, _ := r.v.uint32(entryOffset + 8)
		dataOffset = r.tiffOffset + int(ptr)
	}

	if err := r.v.check(dataOffset, int(valLen)); err != nil {
		return nil, fmt.Errorf("tag 0x%04x: invalid data offset: %w", tag, err)
	}

	switch typ {
	case exifTypeASCII:
		b, _ := r.v.bytes(dataOffset, int(valLen))
		return string(trimAtNull(b)), nil
	case exifTypeUnsignedByte, exifTypeUndef:
		if count == 1 {
			return r.v.uint8(dataOffset)
		}
		return r.v.bytesCopy(dataOffset, int(valLen))
	}

	if count == 1 {
		return r.readScalar(typ, dataOffset)
	}

	values := make([]any, count)
	for i := range values {
		v, err := r.readScalar(typ, dataOffset+i*size)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func (r *exifReader) readScalar(typ exifType, offset int) (any, error) {
	switch typ {
	case exifTypeUnsignedShort:
		return r.v.uint16(offset)
	case exifTypeUnsignedLong:
		return r.v.uint32(offset)
	case exifTypeSignedLong:
		return r.v.int32(offset)
	case exifTypeUnsignedRat:
		return r.v.rational(offset)
	case exifTypeSignedRat:
		return r.v.srational(offset)
	default:
		return nil, fmt.Errorf("exif type %d is not a scalar type", typ)
	}
}

// TagDirectory holds the decoded tags of one Exif IFD.
// Sub directories (Exif, GPS and Interoperability) are decoded on first lookup
// and read from the same buffer, byte order and TIFF header as their parent.
// A TagDirectory is safe for concurrent use.
type TagDirectory struct {
	Kind IFDKind

	r       *exifReader
	tags    []uint16
	entries map[uint16]any
	offsets map[uint16]int
	subs    map[uint16]*subDirectory
}

func newTagDirectory(kind IFDKind, r *exifReader) *TagDirectory {
	return &TagDirectory{
		Kind:    kind,
		r:       r,
		entries: make(map[uint16]any),
		offsets: make(map[uint16]int),
		subs:    make(map[uint16]*subDirectory),
	}
}

func (d *TagDirectory) set(tag uint16, val any, offset int) {
	if _, found := d.entries[tag]; !found {
		d.tags = append(d.tags, tag)
	}
	d.entries[tag] = val
	d.offsets[tag] = offset
}

// Len returns the number of tags in the directory.
func (d *TagDirectory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.tags)
}

// Tags returns the tag codes in the directory, in ascending order.
func (d *TagDirectory) Tags() []uint16 {
	if d == nil {
		return nil
	}
	tags := make([]uint16, len(d.tags))
	copy(tags, d.tags)
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Get returns the value for tag.
// For sub directory pointer tags the value is the sub directory.
func (d *TagDirectory) Get(tag uint16) (any, bool) {
	if d == nil {
		return nil, false
	}
	if sub, found := d.subs[tag]; found {
		return sub.load(d.r), true
	}
	v, found := d.entries[tag]
	return v, found
}

// GetByName returns the value for the tag with the given name, e.g. "Orientation".
func (d *TagDirectory) GetByName(name string) (any, bool) {
	if d == nil {
		return nil, false
	}
	tag, found := exifTagCode(d.Kind, name)
	if !found {
		return nil, false
	}
	return d.Get(tag)
}

// Offset returns the absolute offset of the directory entry for tag
// in the buffer the directory was decoded from.
func (d *TagDirectory) Offset(tag uint16) (int, bool) {
	if d == nil {
		return 0, false
	}
	offset, found := d.offsets[tag]
	return offset, found
}

// Sub returns the sub directory of the given kind, or nil if not present.
func (d *TagDirectory) Sub(kind IFDKind) *TagDirectory {
	if d == nil {
		return nil
	}
	for tag, sub := range d.subs {
		if sub.kind == kind {
			dir, _ := d.Get(tag)
			return dir.(*TagDirectory)
		}
	}
	return nil
}

// Name returns the tag name for tag in this directory.
// A nil directory uses the IFD0 names.
func (d *TagDirectory) Name(tag uint16) string {
	if d == nil {
		return exifTagName(IFD0, tag)
	}
	return exifTagName(d.Kind, tag)
}

// Text returns a human readable value for tag, using the enumerated
// values for tags such as Orientation, Flash and WhiteBalance.
func (d *TagDirectory) Text(tag uint16) string {
	v, found := d.Get(tag)
	if !found {
		return ""
	}
	if texts, found := exifTagValueTexts[d.Name(tag)]; found {
		if i, ok := toInt(v); ok {
			if s, found := texts[i]; found {
				return s
			}
		}
	}
	return toString(v)
}

// All returns all tags keyed by name.
// Sub directories are included as nested maps keyed by the directory name.
func (d *TagDirectory) All() map[string]any {
	m := make(map[string]any)
	if d == nil {
		return m
	}
	for _, tag := range d.tags {
		if sub, found := d.subs[tag]; found {
			m[sub.kind.String()] = sub.load(d.r).All()
			continue
		}
		m[d.Name(tag)] = d.entries[tag]
	}
	return m
}

type subDirectory struct {
	kind   IFDKind
	offset uint32

	once sync.Once
	dir  *TagDirectory
}

func (s *subDirectory) load(r *exifReader) *TagDirectory {
	s.once.Do(func() {
		s.dir, _ = r.decodeDirectory(s.kind, int(s.offset))
		if s.kind == ThumbnailIFD {
			r.attachThumbnail(s.dir)
		}
	})
	return s.dir
}

// attachThumbnail replaces the JPEGInterchangeFormat offset with the thumbnail Blob.
func (r *exifReader) attachThumbnail(dir *TagDirectory) {
	offsetv, found := dir.entries[TagThumbnailOffset]
	if !found {
		return
	}
	lengthv, found := dir.entries[TagThumbnailLength]
	if !found {
		return
	}
	offset, ok1 := toInt(offsetv)
	length, ok2 := toInt(lengthv)
	if !ok1 || !ok2 || length == 0 {
		return
	}
	b, err := r.v.bytesCopy(r.tiffOffset+offset, length)
	if err != nil {
		r.warnf("invalid thumbnail data: %w", err)
		return
	}
	dir.entries[TagThumbnailOffset] = Blob{Data: b, ContentType: thumbnailContentTypeJPG}
}

// ExifData is the decoded Exif block of a JPEG.
// The embedded TagDirectory is IFD0.
type ExifData struct {
	*TagDirectory

	r         *exifReader
	thumbnail *subDirectory
}

// TIFFOffset returns the absolute offset of the TIFF header in the buffer.
// All offsets inside the Exif data are relative to it.
func (x *ExifData) TIFFOffset() int {
	if x == nil {
		return 0
	}
	return x.r.tiffOffset
}

// ByteOrder returns the byte order of the Exif data.
// It's binary.BigEndian, the JPEG byte order, for a nil x.
func (x *ExifData) ByteOrder() binary.ByteOrder {
	if x == nil {
		return binary.BigEndian
	}
	return x.r.v.byteOrder
}

// LittleEndian reports whether the Exif data is stored little endian.
func (x *ExifData) LittleEndian() bool {
	return x.ByteOrder() == binary.LittleEndian
}

// ifd0 returns IFD0, nil if x is nil.
func (x *ExifData) ifd0() *TagDirectory {
	if x == nil {
		return nil
	}
	return x.TagDirectory
}

// The IFD0 accessors below are nil-safe like those of TagDirectory.

// Len returns the number of tags in IFD0.
func (x *ExifData) Len() int { return x.ifd0().Len() }

// Tags returns the IFD0 tag codes in ascending order.
func (x *ExifData) Tags() []uint16 { return x.ifd0().Tags() }

// Get returns the IFD0 value for tag.
func (x *ExifData) Get(tag uint16) (any, bool) { return x.ifd0().Get(tag) }

// GetByName returns the IFD0 value for the tag with the given name.
func (x *ExifData) GetByName(name string) (any, bool) { return x.ifd0().GetByName(name) }

// Offset returns the absolute offset of the IFD0 entry for tag.
func (x *ExifData) Offset(tag uint16) (int, bool) { return x.ifd0().Offset(tag) }

// Name returns the IFD0 name for tag.
func (x *ExifData) Name(tag uint16) string { return x.ifd0().Name(tag) }

// Text returns a human readable IFD0 value for tag.
func (x *ExifData) Text(tag uint16) string { return x.ifd0().Text(tag) }

// Sub returns the sub directory of IFD0 of the given kind, or nil.
func (x *ExifData) Sub(kind IFDKind) *TagDirectory { return x.ifd0().Sub(kind) }

// Exif returns the Exif sub directory, or nil.
func (x *ExifData) Exif() *TagDirectory {
	return x.ifd0().Sub(ExifIFD)
}

// GPS returns the GPS sub directory, or nil.
func (x *ExifData) GPS() *TagDirectory {
	return x.ifd0().Sub(GPSIFD)
}

// Interop returns the Interoperability sub directory, or nil.
// It's usually referenced from the Exif sub directory, but some writers put it in IFD0.
func (x *ExifData) Interop() *TagDirectory {
	if dir := x.Exif().Sub(InteropIFD); dir != nil {
		return dir
	}
	return x.ifd0().Sub(InteropIFD)
}

// Thumbnail returns IFD1, or nil.
func (x *ExifData) Thumbnail() *TagDirectory {
	if x == nil || x.thumbnail == nil {
		return nil
	}
	return x.thumbnail.load(x.r)
}

// ThumbnailData returns the embedded JPEG thumbnail.
func (x *ExifData) ThumbnailData() (Blob, bool) {
	v, found := x.Thumbnail().Get(TagThumbnailOffset)
	if !found {
		return Blob{}, false
	}
	b, ok := v.(Blob)
	return b, ok
}

// Orientation returns the IFD0 Orientation, or OrientationUnspecified.
func (x *ExifData) Orientation() Orientation {
	if x == nil {
		return OrientationUnspecified
	}
	v, found := x.Get(TagOrientation)
	if !found {
		return OrientationUnspecified
	}
	i, _ := toInt(v)
	o := Orientation(i)
	if !o.IsValid() {
		return OrientationUnspecified
	}
	return o
}

// All returns all tags keyed by name, including the thumbnail directory.
func (x *ExifData) All() map[string]any {
	m := x.ifd0().All()
	if thumb := x.Thumbnail(); thumb != nil {
		m[ThumbnailIFD.String()] = thumb.All()
	}
	return m
}

// Warnings returns the problems found so far, including those found
// while lazily decoding sub directories.
func (x *ExifData) Warnings() []Warning {
	if x == nil {
		return nil
	}
	return x.r.diag.list()
}

// DateTime returns DateTimeOriginal from the Exif directory,
// falling back to DateTime in IFD0. The zero time is returned if neither is set.
func (x *ExifData) DateTime(loc *time.Location) (time.Time, error) {
	const layout = "2006:01:02 15:04:05"
	if loc == nil {
		loc = time.Local
	}
	s, found := x.Exif().Get(TagDateTimeOriginal)
	if !found {
		s, found = x.ifd0().Get(TagDateTime)
	}
	if !found {
		return time.Time{}, nil
	}
	return time.ParseInLocation(layout, printableString(toString(s)), loc)
}

// LatLong returns the GPS position in decimal degrees.
func (x *ExifData) LatLong() (lat, long float64, found bool) {
	gps := x.GPS()
	latv, found1 := gps.Get(TagGPSLatitude)
	longv, found2 := gps.Get(TagGPSLongitude)
	if !found1 || !found2 {
		return 0, 0, false
	}
	lat, err1 := toDegrees(latv)
	long, err2 := toDegrees(longv)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	if ref, _ := gps.Get(TagGPSLatitudeRef); toString(ref) == "S" {
		lat = -lat
	}
	if ref, _ := gps.Get(TagGPSLongitudeRef); toString(ref) == "W" {
		long = -long
	}
	return lat, long, true
}
