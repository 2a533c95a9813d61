package layout

import (
	"strconv"
	"strings"
)

// This file defines unit helpers between pixels and points.
// The compositor treats one canvas drawing unit as one pixel; font faces are
// created in points, so the conversion happens at that boundary.

// Conversion constants between pt and px. DSL sizes follow the
// typographic 96dpi convention where one point is 4/3 of a pixel.
const (
	PtToPx = 4.0 / 3.0
	PxToPt = 1.0 / PtToPx
)

// The drawing library creates font faces in points where one point spans
// 0.352777 drawing units; with one drawing unit treated as one pixel,
// FacePtPerPx converts a pixel height into the face size that renders at
// that height. This factor is for the drawing boundary only, never for
// DSL lengths.
const FacePtPerPx = 1.0 / 0.352777

// Unit represents the original unit of a size value as written in the DSL.
type Unit int

const (
	UnitNone Unit = iota // unit-less numbers
	UnitPX               // pixels
	UnitPT               // points
)

// UnitToString returns a short string for a Unit value.
func UnitToString(u Unit) string {
	switch u {
	case UnitPX:
		return "px"
	case UnitPT:
		return "pt"
	default:
		return ""
	}
}

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

func (l Length) IsZero() bool { return l.Value == 0 }

// ToPx converts this length to pixels. Unit-less values are taken as pixels.
func (l Length) ToPx() float64 {
	if l.Unit == UnitPT {
		return l.Value * PtToPx
	}
	return l.Value
}

// ToPt converts this length to points.
func (l Length) ToPt() float64 {
	if l.Unit == UnitPT {
		return l.Value
	}
	return l.Value * PxToPt
}

// ParseLength parses a DSL size string ("48", "48px", "36pt") preserving its unit.
func ParseLength(value string) Length {
	v := strings.TrimSpace(strings.ToLower(value))
	if v == "" {
		return Length{}
	}
	unit := UnitNone
	num := v
	switch {
	case strings.HasSuffix(v, "px"):
		unit = UnitPX
		num = strings.TrimSuffix(v, "px")
	case strings.HasSuffix(v, "pt"):
		unit = UnitPT
		num = strings.TrimSuffix(v, "pt")
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return Length{}
	}
	return Length{Value: f, Unit: unit}
}
