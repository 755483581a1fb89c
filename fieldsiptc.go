// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package loadimage

import "fmt"

type iptcFormat uint8

const (
	iptcFormatString iptcFormat = iota
	iptcFormatShort
	iptcFormatBinary
)

type iptcField struct {
	name   string
	format iptcFormat
}

// Application Record (record 2) datasets.
// Source: https://exiftool.org/TagNames/IPTC.html
var iptcFieldMap = map[uint8]iptcField{
	0:   {"RecordVersion", iptcFormatShort},
	3:   {"ObjectType", iptcFormatString},
	4:   {"ObjectAttribute", iptcFormatString},
	5:   {"ObjectName", iptcFormatString},
	7:   {"EditStatus", iptcFormatString},
	8:   {"EditorialUpdate", iptcFormatString},
	10:  {"Urgency", iptcFormatString},
	12:  {"SubjectReference", iptcFormatString},
	15:  {"Category", iptcFormatString},
	20:  {"SupplementalCategories", iptcFormatString},
	22:  {"FixtureIdentifier", iptcFormatString},
	25:  {"Keywords", iptcFormatString},
	26:  {"ContentLocationCode", iptcFormatString},
	27:  {"ContentLocationName", iptcFormatString},
	30:  {"ReleaseDate", iptcFormatString},
	35:  {"ReleaseTime", iptcFormatString},
	37:  {"ExpirationDate", iptcFormatString},
	38:  {"ExpirationTime", iptcFormatString},
	40:  {"SpecialInstructions", iptcFormatString},
	42:  {"ActionAdvised", iptcFormatString},
	45:  {"ReferenceService", iptcFormatString},
	47:  {"ReferenceDate", iptcFormatString},
	50:  {"ReferenceNumber", iptcFormatString},
	55:  {"DateCreated", iptcFormatString},
	60:  {"TimeCreated", iptcFormatString},
	62:  {"DigitalCreationDate", iptcFormatString},
	63:  {"DigitalCreationTime", iptcFormatString},
	65:  {"OriginatingProgram", iptcFormatString},
	70:  {"ProgramVersion", iptcFormatString},
	75:  {"ObjectCycle", iptcFormatString},
	80:  {"Byline", iptcFormatString},
	85:  {"BylineTitle", iptcFormatString},
	90:  {"City", iptcFormatString},
	92:  {"Sublocation", iptcFormatString},
	95:  {"ProvinceState", iptcFormatString},
	100: {"CountryCode", iptcFormatString},
	101: {"CountryName", iptcFormatString},
	103: {"OriginalTransmissionReference", iptcFormatString},
	105: {"Headline", iptcFormatString},
	110: {"Credit", iptcFormatString},
	115: {"Source", iptcFormatString},
	116: {"CopyrightNotice", iptcFormatString},
	118: {"Contact", iptcFormatString},
	120: {"Caption", iptcFormatString},
	121: {"LocalCaption", iptcFormatString},
	122: {"Writer", iptcFormatString},
	125: {"RasterizedCaption", iptcFormatBinary},
	130: {"ImageType", iptcFormatString},
	131: {"ImageOrientation", iptcFormatString},
	135: {"LanguageIdentifier", iptcFormatString},
	150: {"AudioType", iptcFormatString},
	151: {"AudioSamplingRate", iptcFormatString},
	152: {"AudioSamplingResolution", iptcFormatString},
	153: {"AudioDuration", iptcFormatString},
	154: {"AudioOutcue", iptcFormatString},
	184: {"JobID", iptcFormatString},
	185: {"MasterDocumentID", iptcFormatString},
	186: {"ShortDocumentID", iptcFormatString},
	187: {"UniqueDocumentID", iptcFormatString},
	188: {"OwnerID", iptcFormatString},
	200: {"ObjectPreviewFileFormat", iptcFormatShort},
	201: {"ObjectPreviewFileVersion", iptcFormatString},
	202: {"ObjectPreviewData", iptcFormatBinary},
	221: {"Prefs", iptcFormatString},
	225: {"ClassifyState", iptcFormatString},
	228: {"SimilarityIndex", iptcFormatString},
	230: {"DocumentNotes", iptcFormatString},
	231: {"DocumentHistory", iptcFormatString},
	232: {"ExifCameraInfo", iptcFormatString},
	255: {"CatalogSets", iptcFormatString},
}

var iptcCodesByName = func() map[string]uint8 {
	m := make(map[string]uint8, len(iptcFieldMap))
	for code, f := range iptcFieldMap {
		m[f.name] = code
	}
	return m
}()

// Enumerated dataset values keyed by dataset name.
var iptcTagValueTexts = map[string]map[string]string{
	"Urgency": {
		"0": "0 (reserved)",
		"1": "1 (most urgent)",
		"2": "2",
		"3": "3",
		"4": "4",
		"5": "5 (normal urgency)",
		"6": "6",
		"7": "7",
		"8": "8 (least urgent)",
		"9": "9 (user-defined priority)",
	},
	"ObjectCycle": {
		"a": "Morning",
		"p": "Evening",
		"b": "Both Morning and Evening",
	},
	"ImageOrientation": {
		"P": "Portrait",
		"L": "Landscape",
		"S": "Square",
	},
}

func iptcFieldDef(tag uint8) iptcField {
	if f, found := iptcFieldMap[tag]; found {
		return f
	}
	return iptcField{name: fmt.Sprintf("%s%d", UnknownPrefix, tag)}
}
