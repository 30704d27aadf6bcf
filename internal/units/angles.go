package units

import "math"

const radToDeg = 180.0 / math.Pi

// RadiansToDegrees converts an angle in radians to degrees. Non-finite
// inputs pass through as non-finite outputs.
func RadiansToDegrees(rad float64) float64 {
	return rad * radToDeg
}

// DegreesToRadians converts an angle in degrees to radians.
func DegreesToRadians(deg float64) float64 {
	return deg / radToDeg
}

// FeetToMeters converts feet to metres. FGNetFDM reports climb rate and
// NED velocities in feet per second.
func FeetToMeters(ft float64) float64 {
	return ft * 0.3048
}

// MetersToFeet converts metres to feet.
func MetersToFeet(m float64) float64 {
	return m / 0.3048
}
