package systems

import "math"

// clampFloat clamps a float32 value between min and max.
func clampFloat(v, minVal, maxVal float32) float32 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// sqrt32 is math.Sqrt for float32.
func sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}

// randomAngle returns a heading in [0, 2*Pi).
func randomAngle(r float64) float32 {
	return float32(r * 2 * math.Pi)
}
