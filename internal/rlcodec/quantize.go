package rlcodec

import "math"

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// directionIndex is the reverse-encoding formula: floor((d.deg + 180 +
// 180/n) * n / 360) mod n.
func directionIndex(deg float64, n int) int {
	idx := int(math.Floor((deg + 180 + 180/float64(n)) * float64(n) / 360))
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}

// decodeDirectionDeg inverts directionIndex: dirIdx * 360/n - 180.
func decodeDirectionDeg(idx, n int) float64 {
	return float64(idx)*2*180/float64(n) - 180
}

// speedIndex is the reverse-encoding formula for speed, clamped to range.
func speedIndex(speed, maxPPS float64, n int) int {
	idx := int(math.Round((speed + maxPPS) * float64(n-1) / (2 * maxPPS)))
	return clampInt(idx, 0, n-1)
}

// decodeSpeed inverts speedIndex: idx * 2*maxPPS/(n-1) - maxPPS.
func decodeSpeed(idx, n int, maxPPS float64) float64 {
	return float64(idx)*2*maxPPS/float64(n-1) - maxPPS
}

// sensorIndex is the reverse-encoding formula for the scan direction,
// clamped to range.
func sensorIndex(deg float64, n int) int {
	idx := int(math.Round((deg + 135) * float64(n-1) / 270))
	return clampInt(idx, 0, n-1)
}

// decodeSensorDeg inverts sensorIndex: idx * 270/(n-1) - 135.
func decodeSensorDeg(idx, n int) float64 {
	return float64(idx)*270/float64(n-1) - 135
}
