package animation

import (
	"fmt"
	"math"
	"strings"
)

// ChannelType classifies the function of a fixture channel.
type ChannelType int

const (
	// TypeOther is any channel without color semantics; it fades
	// linearly in every strategy.
	TypeOther ChannelType = iota
	TypeRed
	TypeGreen
	TypeBlue
	TypeWarmWhite
	TypeColdWhite
	TypeColorTemperature
	TypeDimmer
)

var channelTypeNames = map[ChannelType]string{
	TypeOther:            "other",
	TypeRed:              "red",
	TypeGreen:            "green",
	TypeBlue:             "blue",
	TypeWarmWhite:        "warm_white",
	TypeColdWhite:        "cold_white",
	TypeColorTemperature: "color_temp",
	TypeDimmer:           "dimmer",
}

// String returns the configuration name of the channel type.
func (t ChannelType) String() string {
	if name, ok := channelTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ChannelType(%d)", int(t))
}

// ParseChannelType maps a configuration string to a ChannelType.
func ParseChannelType(s string) (ChannelType, error) {
	for t, name := range channelTypeNames {
		if name == strings.ToLower(strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return TypeOther, fmt.Errorf("animation: unknown channel type %q", s)
}

// Default tunable-white range in kelvin.
const (
	DefaultMinKelvin = 2700
	DefaultMaxKelvin = 6500
)

// D65 reference white.
const (
	xn = 0.95047
	yn = 1.0
	zn = 1.08883
)

// lerp linearly interpolates between a and b.
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// clamp01 bounds v to [0, 1].
func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// srgbToLinear removes the sRGB transfer curve.
func srgbToLinear(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

// linearToSrgb applies the sRGB transfer curve.
func linearToSrgb(v float64) float64 {
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*math.Pow(v, 1/2.4) - 0.055
}

// rgbToXYZ converts sRGB in [0,1] to CIE XYZ.
func rgbToXYZ(r, g, b float64) (x, y, z float64) {
	r = srgbToLinear(r)
	g = srgbToLinear(g)
	b = srgbToLinear(b)

	x = 0.4124564*r + 0.3575761*g + 0.1804375*b
	y = 0.2126729*r + 0.7151522*g + 0.0721750*b
	z = 0.0193339*r + 0.1191920*g + 0.9503041*b
	return x, y, z
}

// xyzToRGB converts CIE XYZ to sRGB in [0,1], clamped.
func xyzToRGB(x, y, z float64) (r, g, b float64) {
	r = 3.2404542*x - 1.5371385*y - 0.4985314*z
	g = -0.9692660*x + 1.8760108*y + 0.0415560*z
	b = 0.0556434*x - 0.2040259*y + 1.0572252*z

	r = clamp01(linearToSrgb(r))
	g = clamp01(linearToSrgb(g))
	b = clamp01(linearToSrgb(b))
	return r, g, b
}

// uvPrime computes the CIE u'v' chromaticity of an XYZ triple.
func uvPrime(x, y, z float64) (up, vp float64) {
	denom := x + 15*y + 3*z
	if denom == 0 {
		return 0, 0
	}
	return 4 * x / denom, 9 * y / denom
}

// xyzToLuv converts CIE XYZ to L*u*v*.
func xyzToLuv(x, y, z float64) (l, u, v float64) {
	yr := y / yn
	if yr > 0.008856 {
		l = 116*math.Cbrt(yr) - 16
	} else {
		l = 903.3 * yr
	}

	up, vp := uvPrime(x, y, z)
	upn, vpn := uvPrime(xn, yn, zn)
	u = 13 * l * (up - upn)
	v = 13 * l * (vp - vpn)
	return l, u, v
}

// luvToXYZ converts CIE L*u*v* back to XYZ.
func luvToXYZ(l, u, v float64) (x, y, z float64) {
	if l <= 0 {
		return 0, 0, 0
	}

	if l > 8 {
		t := (l + 16) / 116
		y = yn * t * t * t
	} else {
		y = yn * l / 903.3
	}

	upn, vpn := uvPrime(xn, yn, zn)
	up := u/(13*l) + upn
	vp := v/(13*l) + vpn
	if vp == 0 {
		return 0, y, 0
	}

	x = y * 9 * up / (4 * vp)
	z = y * (12 - 3*up - 20*vp) / (4 * vp)
	return x, y, z
}

// rgbToLuv converts sRGB in [0,1] to L*u*v*.
func rgbToLuv(r, g, b float64) (l, u, v float64) {
	return xyzToLuv(rgbToXYZ(r, g, b))
}

// luvToRGB converts L*u*v* to sRGB in [0,1].
func luvToRGB(l, u, v float64) (r, g, b float64) {
	return xyzToRGB(luvToXYZ(l, u, v))
}

// kelvinToRGB approximates the sRGB color of a black-body radiator,
// using Tanner Helland's curve fit. Valid for roughly 1000-40000K.
func kelvinToRGB(kelvin float64) (r, g, b float64) {
	t := kelvin / 100

	if t <= 66 {
		r = 1
	} else {
		r = clamp255(329.698727446*math.Pow(t-60, -0.1332047592)) / 255
	}

	if t <= 66 {
		g = clamp255(99.4708025861*math.Log(t)-161.1195681661) / 255
	} else {
		g = clamp255(288.1221695283*math.Pow(t-60, -0.0755148492)) / 255
	}

	switch {
	case t >= 66:
		b = 1
	case t <= 19:
		b = 0
	default:
		b = clamp255(138.5177312231*math.Log(t-10)-305.0447927307) / 255
	}
	return r, g, b
}

func clamp255(v float64) float64 {
	return math.Max(0, math.Min(255, v))
}

// channelsToRGB folds a typed channel state (values 0-255) into an
// effective sRGB color in [0,1], blending in white channel output as
// black-body light between minKelvin and maxKelvin.
func channelsToRGB(values map[ChannelType]float64, minKelvin, maxKelvin float64) (r, g, b float64) {
	r = values[TypeRed] / 255
	g = values[TypeGreen] / 255
	b = values[TypeBlue] / 255

	intensity, temp := whiteContribution(values, minKelvin, maxKelvin)
	if intensity > 0 {
		wr, wg, wb := kelvinToRGB(temp)
		r += intensity * wr
		g += intensity * wg
		b += intensity * wb
	}

	// A dedicated color-temperature channel carries its own intensity
	// via the dimmer, already folded in by whiteContribution.
	if _, hasCT := values[TypeColorTemperature]; !hasCT {
		if dimmer, ok := values[TypeDimmer]; ok {
			scale := dimmer / 255
			r *= scale
			g *= scale
			b *= scale
		}
	}

	return clamp01(r), clamp01(g), clamp01(b)
}

// whiteContribution derives the intensity and color temperature of
// the white channel output.
func whiteContribution(values map[ChannelType]float64, minKelvin, maxKelvin float64) (intensity, temp float64) {
	ww, hasWW := values[TypeWarmWhite]
	cw, hasCW := values[TypeColdWhite]
	ct, hasCT := values[TypeColorTemperature]

	switch {
	case hasCT:
		intensity = 1
		if dimmer, ok := values[TypeDimmer]; ok {
			intensity = dimmer / 255
		}
		return intensity, minKelvin + (ct/255)*(maxKelvin-minKelvin)
	case hasWW && hasCW:
		total := ww + cw
		if total == 0 {
			return 0, (minKelvin + maxKelvin) / 2
		}
		return math.Min(total/255, 1), (ww*minKelvin + cw*maxKelvin) / total
	case hasWW:
		return ww / 255, minKelvin
	case hasCW:
		return cw / 255, maxKelvin
	default:
		return 0, 0
	}
}
