package monoprice

import (
	"fmt"
	"math"
)

// VolumeFraction maps a native volume (0-38) onto 0.0-1.0.
func VolumeFraction(native int) float64 {
	return float64(clamp(native, 0, MaxVolume)) / MaxVolume
}

// VolumeNative maps a 0.0-1.0 level back to the nearest native volume,
// clamped to 0-38. VolumeNative(VolumeFraction(v)) == v for every native v.
func VolumeNative(fraction float64) int {
	switch {
	case math.IsNaN(fraction), fraction <= 0:
		return 0
	case fraction >= 1:
		return MaxVolume
	}
	return clamp(int(math.Round(fraction*MaxVolume)), 0, MaxVolume)
}

// levelVolume is VolumeNative for levels supplied by a caller. Finite
// levels clamp; NaN and the infinities are rejected.
func levelVolume(level float64) (int, error) {
	if math.IsNaN(level) || math.IsInf(level, 0) {
		return 0, fmt.Errorf("%w: volume level %v", ErrInvalidValue, level)
	}
	return VolumeNative(level), nil
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
