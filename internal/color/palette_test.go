package color

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var hexColor = regexp.MustCompile(`^#[0-9a-f]{6}$`)

func TestForTag_Format(t *testing.T) {
	for _, name := range []string{"Car", "Heron", "", "🐟 fish"} {
		assert.Regexp(t, hexColor, ForTag(name), name)
	}
}

func TestForTag_Stable(t *testing.T) {
	assert.Equal(t, ForTag("Boat"), ForTag("Boat"))
	assert.Equal(t, ForTag("Boat"), ForTag("  boat "))
	assert.NotEqual(t, ForTag("Boat"), ForTag("Car"))
}

func TestHSLToRGB(t *testing.T) {
	tests := []struct {
		name    string
		h, s, l float64
		r, g, b uint8
	}{
		{"red", 0, 1, 0.5, 255, 0, 0},
		{"green", 120, 1, 0.5, 0, 255, 0},
		{"blue", 240, 1, 0.5, 0, 0, 255},
		{"gray", 200, 0, 0.5, 128, 128, 128},
		{"white", 0, 0, 1, 255, 255, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b := hslToRGB(tt.h, tt.s, tt.l)
			assert.Equal(t, [3]uint8{tt.r, tt.g, tt.b}, [3]uint8{r, g, b})
		})
	}
}
