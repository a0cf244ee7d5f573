package app

import (
	"image/color"
	"math"
)

const (
	ClassicTheme   ColorTheme = "classic"   // Blue to red transition
	GrayscaleTheme ColorTheme = "grayscale" // Black to white transition
	JungleTheme    ColorTheme = "jungle"    // Dark green to yellow transition
	ThermalTheme   ColorTheme = "thermal"   // Black to red to yellow to white
	MarineTheme    ColorTheme = "marine"    // Deep blue to cyan to white

	colorMapSize = 256
)

// ColorTheme is a predefined level-to-color scheme for the trace.
type ColorTheme string

var colorThemes = map[ColorTheme]func(float64) color.Color{
	ClassicTheme: func(level float64) color.Color {
		return HSV{H: 240 - level*240, S: 0.9 + level*0.1, V: 0.4 + math.Pow(level, 0.7)*0.6}.RGB()
	},
	GrayscaleTheme: func(level float64) color.Color {
		v := uint8(math.Round((0.3 + math.Pow(level, 0.7)*0.7) * 255))
		return color.RGBA{R: v, G: v, B: v, A: 255}
	},
	JungleTheme: func(level float64) color.Color {
		return HSV{H: 120 - level*60, S: 1, V: 0.3 + math.Pow(level, 0.6)*0.7}.RGB()
	},
	ThermalTheme: func(level float64) color.Color {
		switch {
		case level < 1.0/3:
			return color.RGBA{R: uint8(level * 3 * 255), A: 255}
		case level < 2.0/3:
			return color.RGBA{R: 255, G: uint8((level - 1.0/3) * 3 * 255), A: 255}
		default:
			return color.RGBA{R: 255, G: 255, B: uint8(min((level-2.0/3)*3, 1) * 255), A: 255}
		}
	},
	MarineTheme: func(level float64) color.Color {
		return HSV{H: 240 - level*60, S: 1 - level*0.8, V: 0.3 + math.Pow(level, 0.6)*0.7}.RGB()
	},
}

// ColorMapper maps a level in [0, 1] to a precomputed theme color
type ColorMapper struct {
	colorMap []color.Color
}

func NewColorMapper(theme ColorTheme) *ColorMapper {
	fn, ok := colorThemes[theme]
	if !ok {
		fn = colorThemes[ClassicTheme]
	}

	cm := ColorMapper{colorMap: make([]color.Color, colorMapSize)}
	for i := range cm.colorMap {
		cm.colorMap[i] = fn(float64(i) / float64(colorMapSize-1))
	}
	return &cm
}

// Color returns the color of a level; levels outside [0, 1] are clamped.
func (cm *ColorMapper) Color(level float64) color.Color {
	if math.IsNaN(level) {
		return cm.colorMap[0]
	}

	index := int(level * float64(colorMapSize-1))
	return cm.colorMap[min(max(index, 0), colorMapSize-1)]
}

// HSV represents a color in HSV color space
type HSV struct {
	H float64 // Hue [0-360]
	S float64 // Saturation [0-1]
	V float64 // Value [0-1]
}

// RGB converts HSV color space to RGB
func (hsv HSV) RGB() color.Color {
	v := min(max(hsv.V, 0), 1)
	if hsv.S <= 0 {
		g := uint8(v * 255)
		return color.RGBA{R: g, G: g, B: g, A: 255}
	}
	s := min(hsv.S, 1)

	h := math.Mod(hsv.H, 360)
	if h < 0 {
		h += 360
	}
	h /= 60

	i := math.Floor(h)
	f := h - i

	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64
	switch int(i) {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}

	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 255}
}
