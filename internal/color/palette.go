// Package color derives display colors for tags that were created without one.
package color

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// Saturation and lightness of derived colors. Bounding boxes are drawn over
// photographs, so colors stay saturated and mid-bright.
const (
	saturation = 0.65
	lightness  = 0.5
)

// ForTag returns a stable "#rrggbb" color for a tag name. Names that differ
// only in case or surrounding space map to the same color.
func ForTag(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(name))))

	hue := float64(h.Sum32() % 360)
	r, g, b := hslToRGB(hue, saturation, lightness)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// hslToRGB converts a hue in degrees and saturation and lightness in [0,1]
// to 8-bit RGB.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r1, g1, b1 float64
	switch {
	case h < 60:
		r1, g1, b1 = c, x, 0
	case h < 120:
		r1, g1, b1 = x, c, 0
	case h < 180:
		r1, g1, b1 = 0, c, x
	case h < 240:
		r1, g1, b1 = 0, x, c
	case h < 300:
		r1, g1, b1 = x, 0, c
	default:
		r1, g1, b1 = c, 0, x
	}

	return channel(r1 + m), channel(g1 + m), channel(b1 + m)
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
