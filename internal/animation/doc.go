// Package animation provides time-based channel interpolation on top
// of universe stores: fades between channel states using perceptually
// uniform color interpolation where the state change involves color.
//
// # Architecture
//
// The Engine owns all running animations and an ownership index of
// which animation controls which channel. Starting an animation that
// touches channels owned by another animation cancels the conflicting
// animation synchronously before the new one claims them, so two
// frame loops never write the same channel.
//
// Interpolation strategy is chosen per animation from the shape of
// the state change:
//
//   - Tunable-white only (warm/cold white): total brightness and
//     color temperature are interpolated separately, then re-split
//     into the two white channels. A straight per-channel fade would
//     dip through mid-fade brightness and hue artifacts.
//   - No RGB change: every channel fades linearly.
//   - Mixed: RGB travels through CIE L*u*v* space for a perceptually
//     even sweep; white and intensity channels fade linearly.
//
// # Thread Safety
//
// Engine methods are safe for concurrent use. Frame loops write to
// stores through their public API only.
package animation
