// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package loadimage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

const (
	iptcTagMarker         = 0x1c
	iptcEnvelopeRecord    = 0x01
	iptcApplicationRecord = 0x02
	ipcCodedCharacterSet  = 90

	tagIPTCObjectPreviewData uint8 = 202
)

// "8BIM" followed by the IPTC-NAA resource ID 0x0404.
var iptcBlockSignature = []byte{'8', 'B', 'I', 'M', 0x04, 0x04}

// IPTCFilter selects IPTC Application Record datasets by number.
type IPTCFilter map[uint8]bool

// DefaultExcludeIPTCTags excludes the binary ObjectPreviewData.
// Pass an empty, non nil IPTCFilter to disable it.
var DefaultExcludeIPTCTags = IPTCFilter{tagIPTCObjectPreviewData: true}

// IPTCOptions configures DecodeIPTC.
type IPTCOptions struct {
	// If set, only these tags are decoded.
	IncludeTags IPTCFilter

	// Tags to skip. Defaults to DefaultExcludeIPTCTags.
	ExcludeTags IPTCFilter

	// Warnf will be called for each warning.
	Warnf func(string, ...any)
}

// DecodeIPTC decodes the IPTC-NAA Application Record in the APP13 segment seg of b.
// It returns nil and no error if the segment has no IPTC block.
// Problems with individual records end the scan with a warning.
func DecodeIPTC(b []byte, seg Segment, opts IPTCOptions) (*IptcData, error) {
	return decodeIPTC(b, seg, opts.IncludeTags, opts.ExcludeTags, newDiagnostics(opts.Warnf)), nil
}

func decodeIPTC(b []byte, seg Segment, include, exclude IPTCFilter, diag *diagnostics) *IptcData {
	if exclude == nil {
		exclude = DefaultExcludeIPTCTags
	}

	v := newByteView(b, binary.BigEndian)

	segStart := int(seg.Offset)
	segEnd := min(seg.End(), v.len())
	if segStart >= segEnd {
		return nil
	}

	i := bytes.Index(b[segStart:segEnd], iptcBlockSignature)
	if i < 0 {
		return nil
	}
	sig := segStart + i

	// The Pascal string resource name is padded to an even length.
	nameLength, err := v.uint8(sig + 7)
	if err != nil {
		diag.add(IPTC, fmt.Errorf("invalid 8BIM header: %w", err))
		return nil
	}
	headerLength := int(nameLength)
	if headerLength%2 != 0 {
		headerLength++
	}
	if headerLength == 0 {
		headerLength = 4
	}

	dataOffset := sig + 8 + headerLength
	dataLength, err := v.uint16(sig + 6 + headerLength)
	if err != nil {
		diag.add(IPTC, fmt.Errorf("invalid IPTC data size: %w", err))
		return nil
	}

	dataEnd := dataOffset + int(dataLength)
	if dataEnd > segEnd {
		diag.add(IPTC, fmt.Errorf("invalid IPTC data size: %w", &BoundsError{Offset: dataOffset, Size: int(dataLength), Len: segEnd}))
		dataEnd = segEnd
	}

	d := &iptcDecoder{
		v:       v,
		include: include,
		exclude: exclude,
		diag:    diag,
		data: &IptcData{
			entries: make(map[uint8]any),
			offsets: make(map[uint8][]int),
			diag:    diag,
		},
	}

	d.decodeRecords(dataOffset, dataEnd)

	return d.data
}

type iptcDecoder struct {
	v       byteView
	include IPTCFilter
	exclude IPTCFilter
	diag    *diagnostics

	charset string
	data    *IptcData
}

func (d *iptcDecoder) shouldHandleTag(tag uint8) bool {
	if d.include != nil && !d.include[tag] {
		return false
	}
	return !d.exclude[tag]
}

// decodeRecords reads the records delimited by 0x1C.
// Each record is:
//   - 1 byte tag marker 0x1C
//   - 1 byte record number
//   - 1 byte dataset number
//   - 2 bytes value length
//   - the value
func (d *iptcDecoder) decodeRecords(offset, end int) {
	for offset+5 <= end {
		marker, _ := d.v.uint8(offset)
		record, _ := d.v.uint8(offset + 1)
		if marker != iptcTagMarker || (record != iptcApplicationRecord && record != iptcEnvelopeRecord) {
			offset++
			continue
		}

		tag, _ := d.v.uint8(offset + 2)
		size, _ := d.v.int16(offset + 3)
		valueOffset := offset + 5

		if size < 0 || valueOffset+int(size) > end {
			d.diag.add(IPTC, fmt.Errorf("dataset %d:%d: invalid size: %w", record, tag, &BoundsError{Offset: valueOffset, Size: int(size), Len: end}))
			return
		}

		b, _ := d.v.bytes(valueOffset, int(size))

		switch {
		case record == iptcEnvelopeRecord:
			if tag == ipcCodedCharacterSet {
				d.charset = resolveCodedCharacterSet(b)
			}
		case d.shouldHandleTag(tag):
			val, err := d.decodeValue(tag, b)
			if err != nil {
				d.diag.add(IPTC, err)
			} else {
				d.data.add(tag, val, offset)
			}
		}

		offset = valueOffset + int(size)
	}
}

func (d *iptcDecoder) decodeValue(tag uint8, b []byte) (any, error) {
	switch iptcFieldDef(tag).format {
	case iptcFormatShort:
		if len(b) != 2 {
			return nil, fmt.Errorf("dataset %d: expected 2 bytes, got %d", tag, len(b))
		}
		return binary.BigEndian.Uint16(b), nil
	case iptcFormatBinary:
		c := make([]byte, len(b))
		copy(c, b)
		return c, nil
	}

	if d.charset == characterSetUTF8 {
		return strings.TrimSpace(string(trimBytesNulls(b))), nil
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(trimBytesNulls(b))
	if err != nil {
		return nil, fmt.Errorf("dataset %d: %w", tag, err)
	}
	return strings.TrimSpace(string(s)), nil
}

// IptcData holds the decoded IPTC Application Record.
// A dataset that occurs more than once has a []any value.
type IptcData struct {
	tags    []uint8
	entries map[uint8]any
	offsets map[uint8][]int
	diag    *diagnostics
}

func (x *IptcData) add(tag uint8, val any, offset int) {
	x.offsets[tag] = append(x.offsets[tag], offset)
	existing, found := x.entries[tag]
	switch {
	case !found:
		x.tags = append(x.tags, tag)
		x.entries[tag] = val
	case len(x.offsets[tag]) == 2:
		x.entries[tag] = []any{existing, val}
	default:
		x.entries[tag] = append(existing.([]any), val)
	}
}

// Len returns the number of datasets.
func (x *IptcData) Len() int {
	if x == nil {
		return 0
	}
	return len(x.tags)
}

// Tags returns the dataset numbers, in ascending order.
func (x *IptcData) Tags() []uint8 {
	if x == nil {
		return nil
	}
	tags := make([]uint8, len(x.tags))
	copy(tags, x.tags)
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Get returns the value for tag.
func (x *IptcData) Get(tag uint8) (any, bool) {
	if x == nil {
		return nil, false
	}
	v, found := x.entries[tag]
	return v, found
}

// GetByName returns the value for the dataset with the given name, e.g. "Keywords".
func (x *IptcData) GetByName(name string) (any, bool) {
	tag, found := iptcCodesByName[name]
	if !found {
		return nil, false
	}
	return x.Get(tag)
}

// Strings returns the value for tag as a list of strings.
func (x *IptcData) Strings(tag uint8) []string {
	v, found := x.Get(tag)
	if !found {
		return nil
	}
	if vv, ok := v.([]any); ok {
		ss := make([]string, len(vv))
		for i, s := range vv {
			ss[i] = toString(s)
		}
		return ss
	}
	return []string{toString(v)}
}

// Offset returns the absolute offset of the first record for tag.
func (x *IptcData) Offset(tag uint8) (int, bool) {
	if x == nil {
		return 0, false
	}
	offsets := x.offsets[tag]
	if len(offsets) == 0 {
		return 0, false
	}
	return offsets[0], true
}

// Offsets returns the absolute offsets of all records for tag.
func (x *IptcData) Offsets(tag uint8) []int {
	if x == nil {
		return nil
	}
	return append([]int(nil), x.offsets[tag]...)
}

// Name returns the dataset name for tag.
func (x *IptcData) Name(tag uint8) string {
	return iptcFieldDef(tag).name
}

// Text returns a human readable value for tag.
// Repeated values are joined with a comma.
func (x *IptcData) Text(tag uint8) string {
	texts := iptcTagValueTexts[x.Name(tag)]
	ss := x.Strings(tag)
	for i, s := range ss {
		if t, found := texts[s]; found {
			ss[i] = t
		}
	}
	return strings.Join(ss, ", ")
}

// All returns all datasets keyed by name.
func (x *IptcData) All() map[string]any {
	m := make(map[string]any)
	if x == nil {
		return m
	}
	for _, tag := range x.tags {
		m[x.Name(tag)] = x.entries[tag]
	}
	return m
}

// Warnings returns the problems found while decoding.
func (x *IptcData) Warnings() []Warning {
	if x == nil {
		return nil
	}
	return x.diag.list()
}

const (
	characterSetUTF8     = "UTF-8"
	characterSetISO88591 = "ISO-8859-1"
)

// resolveCodedCharacterSet resolves the coded character set from the IPTC data
// to be either UTF-8 or ISO-8859-1 or an empty string if it cannot be resolved.
func resolveCodedCharacterSet(b []byte) string {
	const (
		esc           = 0x1B
		percent       = 0x25
		latinCapitalG = 0x47
		dot           = 0x2E
		latinCapitalA = 0x41
		minus         = 0x2D
	)

	if len(b) > 2 && b[0] == esc && b[1] == percent && b[2] == latinCapitalG {
		return characterSetUTF8
	}

	if len(b) > 2 && b[0] == esc && b[1] == dot && b[2] == latinCapitalA {
		return characterSetISO88591
	}

	if len(b) > 4 && b[0] == esc && (b[1] == dot || b[2] == dot || b[3] == dot) && b[4] == latinCapitalA {
		return characterSetISO88591
	}

	if len(b) > 2 && b[0] == esc && b[1] == minus && b[2] == latinCapitalA {
		return characterSetISO88591
	}

	return ""
}
