package animation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/nerrad567/dmx-core/internal/universe"
)

// zeroStateEpsilon replaces an all-zero endpoint value so color-space
// interpolation has a defined hue to travel from or to. Fading from
// true black would otherwise snap through the color space's origin.
const zeroStateEpsilon = 0.001

// ChannelMapping binds a channel function to one or two DMX channels.
// One index means 8-bit resolution; two mean a 16-bit coarse/fine
// pair in that order.
type ChannelMapping struct {
	Type    ChannelType
	Indexes []int
}

// validate checks index shape and range.
func (m ChannelMapping) validate() error {
	if len(m.Indexes) < 1 || len(m.Indexes) > 2 {
		return fmt.Errorf("animation: mapping for %s needs 1 or 2 channels, got %d", m.Type, len(m.Indexes))
	}
	for _, idx := range m.Indexes {
		if idx < 1 || idx > 512 {
			return fmt.Errorf("animation: channel %d out of range for %s mapping", idx, m.Type)
		}
	}
	return nil
}

// readValue reads the mapping's logical value (0-255, fractional for
// 16-bit pairs) from the store.
func (m ChannelMapping) readValue(store *universe.Store) float64 {
	if len(m.Indexes) == 2 {
		raw := uint16(store.GetChannelValue(m.Indexes[0]))<<8 | uint16(store.GetChannelValue(m.Indexes[1]))
		return float64(raw) / 257
	}
	return float64(store.GetChannelValue(m.Indexes[0]))
}

// writeValue renders the mapping's logical value into the updates map.
func (m ChannelMapping) writeValue(updates map[int]byte, value float64) {
	value = math.Max(0, math.Min(255, value))
	if len(m.Indexes) == 2 {
		raw := uint16(math.Round(value * 257))
		updates[m.Indexes[0]] = byte(raw >> 8)
		updates[m.Indexes[1]] = byte(raw & 0xFF)
		return
	}
	updates[m.Indexes[0]] = byte(math.Round(value))
}

// interpolator computes the frame values at progress t in [0, 1].
type interpolator func(t float64) []float64

// task is one running animation: a frame loop interpolating the
// mapped channels from their start values to the target.
type task struct {
	id       int64
	store    *universe.Store
	mappings []ChannelMapping
	channels []int
	duration time.Duration
	frame    interpolator

	cancel context.CancelFunc
	done   chan struct{}
}

// run drives the frame loop until completion or cancellation. The
// final frame always lands exactly on the target values.
func (tk *task) run(ctx context.Context, frameInterval time.Duration) {
	started := time.Now()
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		progress := 1.0
		if tk.duration > 0 {
			progress = math.Min(1, float64(time.Since(started))/float64(tk.duration))
		}

		tk.apply(progress)
		if progress >= 1 {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// apply writes one interpolated frame to the store.
func (tk *task) apply(progress float64) {
	values := tk.frame(progress)
	updates := make(map[int]byte, len(tk.channels))
	for i, m := range tk.mappings {
		m.writeValue(updates, values[i])
	}
	if err := tk.store.UpdateMultipleValues(updates, "animation", true); err != nil && tk.cancel != nil {
		tk.cancel()
	}
}

// typeIndex locates the first mapping of each channel type.
func typeIndex(mappings []ChannelMapping) map[ChannelType]int {
	idx := make(map[ChannelType]int, len(mappings))
	for i, m := range mappings {
		if m.Type == TypeOther {
			continue
		}
		if _, ok := idx[m.Type]; !ok {
			idx[m.Type] = i
		}
	}
	return idx
}

// applyZeroEpsilon nudges an all-zero endpoint off true zero: for each
// value that is nonzero on the other side, the zero side gets a small
// epsilon so color interpolation has a hue to anchor to.
func applyZeroEpsilon(start, target []float64) {
	allZero := func(vs []float64) bool {
		for _, v := range vs {
			if v != 0 {
				return false
			}
		}
		return true
	}

	switch {
	case allZero(start) && !allZero(target):
		for i, v := range target {
			if v != 0 {
				start[i] = zeroStateEpsilon
			}
		}
	case allZero(target) && !allZero(start):
		for i, v := range start {
			if v != 0 {
				target[i] = zeroStateEpsilon
			}
		}
	}
}

// chooseInterpolator picks the fade strategy from the shape of the
// state change.
func chooseInterpolator(mappings []ChannelMapping, start, target []float64, minKelvin, maxKelvin float64) interpolator {
	idx := typeIndex(mappings)

	rgbChanged := false
	for _, t := range []ChannelType{TypeRed, TypeGreen, TypeBlue} {
		if i, ok := idx[t]; ok && start[i] != target[i] {
			rgbChanged = true
			break
		}
	}

	wwIdx, hasWW := idx[TypeWarmWhite]
	cwIdx, hasCW := idx[TypeColdWhite]
	whiteChanged := (hasWW && start[wwIdx] != target[wwIdx]) || (hasCW && start[cwIdx] != target[cwIdx])

	switch {
	case !rgbChanged && whiteChanged && hasWW && hasCW:
		return tunableWhiteInterpolator(start, target, wwIdx, cwIdx, minKelvin, maxKelvin)
	case !rgbChanged:
		return linearInterpolator(start, target)
	default:
		return mixedInterpolator(start, target, idx)
	}
}

// linearInterpolator fades every mapping independently.
func linearInterpolator(start, target []float64) interpolator {
	return func(t float64) []float64 {
		out := make([]float64, len(start))
		for i := range start {
			out[i] = lerp(start[i], target[i], t)
		}
		return out
	}
}

// tunableWhiteInterpolator fades warm/cold white pairs by
// interpolating total brightness and color temperature separately,
// then re-splitting. Everything else fades linearly.
func tunableWhiteInterpolator(start, target []float64, wwIdx, cwIdx int, minKelvin, maxKelvin float64) interpolator {
	linear := linearInterpolator(start, target)

	startTotal, startTemp := whitePoint(start[wwIdx], start[cwIdx], minKelvin, maxKelvin)
	targetTotal, targetTemp := whitePoint(target[wwIdx], target[cwIdx], minKelvin, maxKelvin)

	return func(t float64) []float64 {
		out := linear(t)

		total := lerp(startTotal, targetTotal, t)
		temp := lerp(startTemp, targetTemp, t)
		ratio := clamp01((temp - minKelvin) / (maxKelvin - minKelvin))

		out[wwIdx] = math.Min(255, total*(1-ratio))
		out[cwIdx] = math.Min(255, total*ratio)
		return out
	}
}

// whitePoint reduces a warm/cold pair to total brightness and a
// weighted color temperature; a dark pair sits at the midpoint so
// fades out of black do not swing the temperature.
func whitePoint(ww, cw, minKelvin, maxKelvin float64) (total, temp float64) {
	total = ww + cw
	if total == 0 {
		return 0, (minKelvin + maxKelvin) / 2
	}
	return total, (ww*minKelvin + cw*maxKelvin) / total
}

// mixedInterpolator fades RGB through L*u*v* for perceptual
// uniformity and everything else linearly.
func mixedInterpolator(start, target []float64, idx map[ChannelType]int) interpolator {
	linear := linearInterpolator(start, target)

	rgbAt := func(vs []float64, t ChannelType) float64 {
		if i, ok := idx[t]; ok {
			return vs[i] / 255
		}
		return 0
	}
	sl, su, sv := rgbToLuv(rgbAt(start, TypeRed), rgbAt(start, TypeGreen), rgbAt(start, TypeBlue))
	tl, tu, tv := rgbToLuv(rgbAt(target, TypeRed), rgbAt(target, TypeGreen), rgbAt(target, TypeBlue))

	return func(t float64) []float64 {
		out := linear(t)

		r, g, b := luvToRGB(lerp(sl, tl, t), lerp(su, tu, t), lerp(sv, tv, t))
		if i, ok := idx[TypeRed]; ok {
			out[i] = math.Round(r * 255)
		}
		if i, ok := idx[TypeGreen]; ok {
			out[i] = math.Round(g * 255)
		}
		if i, ok := idx[TypeBlue]; ok {
			out[i] = math.Round(b * 255)
		}
		return out
	}
}
