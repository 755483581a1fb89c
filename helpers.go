// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package loadimage

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

func printableString(s string) string {
	ss := strings.Map(func(r rune) rune {
		if unicode.IsGraphic(r) {
			return r
		}
		return -1
	}, s)

	return strings.TrimSpace(ss)
}

// trimAtNull returns b up to the first NUL byte.
func trimAtNull(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

func trimBytesNulls(b []byte) []byte {
	var lo, hi int
	for lo = 0; lo < len(b) && b[lo] == 0; lo++ {
	}
	for hi = len(b) - 1; hi >= 0 && b[hi] == 0; hi-- {
	}
	if lo > hi {
		return nil
	}
	return b[lo : hi+1]
}

func isUndefined(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

func formatFloat(f float64) string {
	if isUndefined(f) {
		return "undef"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func toString(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case []byte:
		return string(trimBytesNulls(vv))
	case []string:
		return strings.Join(vv, ", ")
	case float64:
		return formatFloat(vv)
	case Blob:
		return fmt.Sprintf("(Binary data %d bytes)", vv.Len())
	case []any:
		var sb strings.Builder
		for i, n := range vv {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(toString(n))
		}
		return sb.String()
	default:
		return fmt.Sprintf("%v", vv)
	}
}

func toFloat64(v any) float64 {
	switch vv := v.(type) {
	case float64:
		return vv
	case uint8:
		return float64(vv)
	case uint16:
		return float64(vv)
	case uint32:
		return float64(vv)
	case int32:
		return float64(vv)
	case int:
		return float64(vv)
	default:
		return 0
	}
}

// toInt converts an integral tag value to int.
// A single element slice is unwrapped.
func toInt(v any) (int, bool) {
	switch vv := v.(type) {
	case uint8:
		return int(vv), true
	case uint16:
		return int(vv), true
	case uint32:
		return int(vv), true
	case int16:
		return int(vv), true
	case int32:
		return int(vv), true
	case int:
		return vv, true
	case []any:
		if len(vv) == 1 {
			return toInt(vv[0])
		}
	}
	return 0, false
}

func parseDegrees(s string) (float64, error) {
	var deg, min, sec float64
	_, err := fmt.Sscanf(s, "%f,%f,%f", &deg, &min, &sec)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %q: %w", s, err)
	}
	return deg + min/60 + sec/3600, nil
}

// toDegrees converts a GPS degrees, minutes, seconds value to decimal degrees.
func toDegrees(v any) (float64, error) {
	switch v := v.(type) {
	case []any:
		if len(v) != 3 {
			return 0, fmt.Errorf("expected 3 values, got %d", len(v))
		}

		deg := toFloat64(v[0])
		min := toFloat64(v[1])
		sec := toFloat64(v[2])

		d := deg + min/60 + sec/3600
		if isUndefined(d) {
			return 0, fmt.Errorf("undefined degree value %v", v)
		}
		return d, nil
	case float64:
		return v, nil
	case string:
		return parseDegrees(v)
	default:
		return 0, fmt.Errorf("unsupported degree type %T", v)
	}
}
