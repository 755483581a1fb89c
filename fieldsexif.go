// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package loadimage

import (
	"fmt"
	"strconv"
	"strings"
)

// UnknownPrefix is used as prefix for unknown tags.
const UnknownPrefix = "UnknownTag_"

var (
	fieldsTIFF = map[uint16]string{
		0x00fe: "NewSubfileType",
		0x0100: "ImageWidth",
		0x0101: "ImageLength",
		0x0102: "BitsPerSample",
		0x0103: "Compression",
		0x0106: "PhotometricInterpretation",
		0x010e: "ImageDescription",
		0x010f: "Make",
		0x0110: "Model",
		0x0111: "StripOffsets",
		0x0112: "Orientation",
		0x0115: "SamplesPerPixel",
		0x0116: "RowsPerStrip",
		0x0117: "StripByteCounts",
		0x011a: "XResolution",
		0x011b: "YResolution",
		0x011c: "PlanarConfiguration",
		0x0128: "ResolutionUnit",
		0x012d: "TransferFunction",
		0x0131: "Software",
		0x0132: "DateTime",
		0x013b: "Artist",
		0x013e: "WhitePoint",
		0x013f: "PrimaryChromaticities",
		0x0201: "JPEGInterchangeFormat",
		0x0202: "JPEGInterchangeFormatLength",
		0x0211: "YCbCrCoefficients",
		0x0212: "YCbCrSubSampling",
		0x0213: "YCbCrPositioning",
		0x0214: "ReferenceBlackWhite",
		0x8298: "Copyright",
		0x8769: "ExifIFDPointer",
		0x8825: "GPSInfoIFDPointer",
		0x9c9b: "XPTitle",
		0x9c9c: "XPComment",
		0x9c9d: "XPAuthor",
		0x9c9e: "XPKeywords",
		0x9c9f: "XPSubject",
		0xa005: "InteroperabilityIFDPointer",
	}

	fieldsExif = map[uint16]string{
		0x829a: "ExposureTime",
		0x829d: "FNumber",
		0x8822: "ExposureProgram",
		0x8824: "SpectralSensitivity",
		0x8827: "ISOSpeedRatings",
		0x8828: "OECF",
		0x8830: "SensitivityType",
		0x8832: "RecommendedExposureIndex",
		0x9000: "ExifVersion",
		0x9003: "DateTimeOriginal",
		0x9004: "DateTimeDigitized",
		0x9010: "OffsetTime",
		0x9011: "OffsetTimeOriginal",
		0x9012: "OffsetTimeDigitized",
		0x9101: "ComponentsConfiguration",
		0x9102: "CompressedBitsPerPixel",
		0x9201: "ShutterSpeedValue",
		0x9202: "ApertureValue",
		0x9203: "BrightnessValue",
		0x9204: "ExposureBiasValue",
		0x9205: "MaxApertureValue",
		0x9206: "SubjectDistance",
		0x9207: "MeteringMode",
		0x9208: "LightSource",
		0x9209: "Flash",
		0x920a: "FocalLength",
		0x9214: "SubjectArea",
		0x927c: "MakerNote",
		0x9286: "UserComment",
		0x9290: "SubSecTime",
		0x9291: "SubSecTimeOriginal",
		0x9292: "SubSecTimeDigitized",
		0xa000: "FlashpixVersion",
		0xa001: "ColorSpace",
		0xa002: "PixelXDimension",
		0xa003: "PixelYDimension",
		0xa004: "RelatedSoundFile",
		0xa005: "InteroperabilityIFDPointer",
		0xa20b: "FlashEnergy",
		0xa20c: "SpatialFrequencyResponse",
		0xa20e: "FocalPlaneXResolution",
		0xa20f: "FocalPlaneYResolution",
		0xa210: "FocalPlaneResolutionUnit",
		0xa214: "SubjectLocation",
		0xa215: "ExposureIndex",
		0xa217: "SensingMethod",
		0xa300: "FileSource",
		0xa301: "SceneType",
		0xa302: "CFAPattern",
		0xa401: "CustomRendered",
		0xa402: "ExposureMode",
		0xa403: "WhiteBalance",
		0xa404: "DigitalZoomRatio",
		0xa405: "FocalLengthIn35mmFilm",
		0xa406: "SceneCaptureType",
		0xa407: "GainControl",
		0xa408: "Contrast",
		0xa409: "Saturation",
		0xa40a: "Sharpness",
		0xa40b: "DeviceSettingDescription",
		0xa40c: "SubjectDistanceRange",
		0xa420: "ImageUniqueID",
		0xa430: "CameraOwnerName",
		0xa431: "BodySerialNumber",
		0xa432: "LensSpecification",
		0xa433: "LensMake",
		0xa434: "LensModel",
		0xa435: "LensSerialNumber",
	}

	fieldsGPS = map[uint16]string{
		0x00: "GPSVersionID",
		0x01: "GPSLatitudeRef",
		0x02: "GPSLatitude",
		0x03: "GPSLongitudeRef",
		0x04: "GPSLongitude",
		0x05: "GPSAltitudeRef",
		0x06: "GPSAltitude",
		0x07: "GPSTimeStamp",
		0x08: "GPSSatellites",
		0x09: "GPSStatus",
		0x0a: "GPSMeasureMode",
		0x0b: "GPSDOP",
		0x0c: "GPSSpeedRef",
		0x0d: "GPSSpeed",
		0x0e: "GPSTrackRef",
		0x0f: "GPSTrack",
		0x10: "GPSImgDirectionRef",
		0x11: "GPSImgDirection",
		0x12: "GPSMapDatum",
		0x13: "GPSDestLatitudeRef",
		0x14: "GPSDestLatitude",
		0x15: "GPSDestLongitudeRef",
		0x16: "GPSDestLongitude",
		0x17: "GPSDestBearingRef",
		0x18: "GPSDestBearing",
		0x19: "GPSDestDistanceRef",
		0x1a: "GPSDestDistance",
		0x1b: "GPSProcessingMethod",
		0x1c: "GPSAreaInformation",
		0x1d: "GPSDateStamp",
		0x1e: "GPSDifferential",
		0x1f: "GPSHPositioningError",
	}

	fieldsInterop = map[uint16]string{
		0x0001: "InteroperabilityIndex",
		0x0002: "InteroperabilityVersion",
		0x1000: "RelatedImageFileFormat",
		0x1001: "RelatedImageWidth",
		0x1002: "RelatedImageHeight",
	}

	fieldsByKind = map[IFDKind]map[uint16]string{
		IFD0:         fieldsTIFF,
		ExifIFD:      fieldsExif,
		GPSIFD:       fieldsGPS,
		InteropIFD:   fieldsInterop,
		ThumbnailIFD: fieldsTIFF,
	}

	codesByKind = map[IFDKind]map[string]uint16{}
)

// Enumerated tag values keyed by tag name.
var exifTagValueTexts = map[string]map[int]string{
	"Orientation": {
		1: "Horizontal (normal)",
		2: "Mirror horizontal",
		3: "Rotate 180",
		4: "Mirror vertical",
		5: "Mirror horizontal and rotate 270 CW",
		6: "Rotate 90 CW",
		7: "Mirror horizontal and rotate 90 CW",
		8: "Rotate 270 CW",
	},
	"ResolutionUnit": {
		1: "None",
		2: "inches",
		3: "cm",
	},
	"YCbCrPositioning": {
		1: "Centered",
		2: "Co-sited",
	},
	"ExposureProgram": {
		0: "Not Defined",
		1: "Manual",
		2: "Program AE",
		3: "Aperture-priority AE",
		4: "Shutter speed priority AE",
		5: "Creative (Slow speed)",
		6: "Action (High speed)",
		7: "Portrait",
		8: "Landscape",
		9: "Bulb",
	},
	"MeteringMode": {
		0:   "Unknown",
		1:   "Average",
		2:   "Center-weighted average",
		3:   "Spot",
		4:   "Multi-spot",
		5:   "Multi-segment",
		6:   "Partial",
		255: "Other",
	},
	"LightSource": {
		0:   "Unknown",
		1:   "Daylight",
		2:   "Fluorescent",
		3:   "Tungsten (Incandescent)",
		4:   "Flash",
		9:   "Fine Weather",
		10:  "Cloudy",
		11:  "Shade",
		12:  "Daylight Fluorescent",
		13:  "Day White Fluorescent",
		14:  "Cool White Fluorescent",
		15:  "White Fluorescent",
		17:  "Standard Light A",
		18:  "Standard Light B",
		19:  "Standard Light C",
		20:  "D55",
		21:  "D65",
		22:  "D75",
		23:  "D50",
		24:  "ISO Studio Tungsten",
		255: "Other",
	},
	"Flash": {
		0x00: "No Flash",
		0x01: "Fired",
		0x05: "Fired, Return not detected",
		0x07: "Fired, Return detected",
		0x08: "On, Did not fire",
		0x09: "On, Fired",
		0x0d: "On, Return not detected",
		0x0f: "On, Return detected",
		0x10: "Off, Did not fire",
		0x14: "Off, Did not fire, Return not detected",
		0x18: "Auto, Did not fire",
		0x19: "Auto, Fired",
		0x1d: "Auto, Fired, Return not detected",
		0x1f: "Auto, Fired, Return detected",
		0x20: "No flash function",
		0x30: "Off, No flash function",
		0x41: "Fired, Red-eye reduction",
		0x45: "Fired, Red-eye reduction, Return not detected",
		0x47: "Fired, Red-eye reduction, Return detected",
		0x49: "On, Red-eye reduction",
		0x4d: "On, Red-eye reduction, Return not detected",
		0x4f: "On, Red-eye reduction, Return detected",
		0x50: "Off, Red-eye reduction",
		0x58: "Auto, Did not fire, Red-eye reduction",
		0x59: "Auto, Fired, Red-eye reduction",
		0x5d: "Auto, Fired, Red-eye reduction, Return not detected",
		0x5f: "Auto, Fired, Red-eye reduction, Return detected",
	},
	"ColorSpace": {
		0x1:    "sRGB",
		0x2:    "Adobe RGB",
		0xffff: "Uncalibrated",
	},
	"SensingMethod": {
		1: "Not defined",
		2: "One-chip color area",
		3: "Two-chip color area",
		4: "Three-chip color area",
		5: "Color sequential area",
		7: "Trilinear",
		8: "Color sequential linear",
	},
	"CustomRendered": {
		0: "Normal",
		1: "Custom",
	},
	"ExposureMode": {
		0: "Auto",
		1: "Manual",
		2: "Auto bracket",
	},
	"WhiteBalance": {
		0: "Auto",
		1: "Manual",
	},
	"SceneCaptureType": {
		0: "Standard",
		1: "Landscape",
		2: "Portrait",
		3: "Night",
	},
	"GainControl": {
		0: "None",
		1: "Low gain up",
		2: "High gain up",
		3: "Low gain down",
		4: "High gain down",
	},
	"Contrast": {
		0: "Normal",
		1: "Low",
		2: "High",
	},
	"Saturation": {
		0: "Normal",
		1: "Low",
		2: "High",
	},
	"Sharpness": {
		0: "Normal",
		1: "Soft",
		2: "Hard",
	},
	"SubjectDistanceRange": {
		0: "Unknown",
		1: "Macro",
		2: "Close",
		3: "Distant",
	},
	"FileSource": {
		1: "Film Scanner",
		2: "Reflection Print Scanner",
		3: "Digital Camera",
	},
	"GPSAltitudeRef": {
		0: "Above Sea Level",
		1: "Below Sea Level",
	},
}

func init() {
	for kind, fields := range fieldsByKind {
		codes := make(map[string]uint16, len(fields))
		for code, name := range fields {
			codes[name] = code
		}
		codesByKind[kind] = codes
	}
}

// exifTagName returns the name of tag in a directory of the given kind.
// Unknown tags are named UnknownPrefix followed by the hex code.
func exifTagName(kind IFDKind, tag uint16) string {
	if name, found := fieldsByKind[kind][tag]; found {
		return name
	}
	// Some writers put Exif tags in IFD0.
	if kind == IFD0 {
		if name, found := fieldsExif[tag]; found {
			return name
		}
	}
	return fmt.Sprintf("%s0x%04x", UnknownPrefix, tag)
}

// exifTagCode is the inverse of exifTagName.
func exifTagCode(kind IFDKind, name string) (uint16, bool) {
	if code, found := codesByKind[kind][name]; found {
		return code, true
	}
	if kind == IFD0 {
		if code, found := codesByKind[ExifIFD][name]; found {
			return code, true
		}
	}
	if hex, ok := strings.CutPrefix(name, UnknownPrefix+"0x"); ok {
		code, err := strconv.ParseUint(hex, 16, 16)
		if err == nil {
			return uint16(code), true
		}
	}
	return 0, false
}
