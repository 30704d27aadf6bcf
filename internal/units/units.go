// Package units provides shared constants and conversions for displaying
// flight dynamics values.
package units

// Speed unit constants
const (
	KT   = "kt"
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid speed unit values
var ValidUnits = []string{KT, MPS, MPH, KMPH, KPH}

const (
	knotToMPS  = 0.514444444444444
	knotToMPH  = 1.15077944802354
	knotToKMPH = 1.852
)

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "kt, mps, mph, kmph, kph"
}

// ConvertSpeed converts an airspeed in knots to the target units.
// FGNetFDM carries calibrated airspeed in knots.
func ConvertSpeed(knots float64, targetUnits string) float64 {
	switch targetUnits {
	case MPS:
		return knots * knotToMPS
	case MPH:
		return knots * knotToMPH
	case KMPH, KPH:
		return knots * knotToKMPH
	default:
		return knots
	}
}

// ConvertToKnots converts a speed in the given units back to knots.
func ConvertToKnots(speed float64, fromUnits string) float64 {
	switch fromUnits {
	case MPS:
		return speed / knotToMPS
	case MPH:
		return speed / knotToMPH
	case KMPH, KPH:
		return speed / knotToKMPH
	default:
		return speed
	}
}
