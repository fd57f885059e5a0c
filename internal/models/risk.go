package models

// RiskLevel is the ordered outcome of a risk assessment.
type RiskLevel string

const (
	RiskNone     RiskLevel = "none"
	RiskElevated RiskLevel = "elevated"
	RiskCrisis   RiskLevel = "crisis"
)

// Severity maps a level onto the none < elevated < crisis ordering.
// Unknown levels rank below none.
func (l RiskLevel) Severity() int {
	switch l {
	case RiskCrisis:
		return 2
	case RiskElevated:
		return 1
	case RiskNone:
		return 0
	}
	return -1
}

// MaxRiskLevel returns the more severe of two levels.
func MaxRiskLevel(a, b RiskLevel) RiskLevel {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// ParseRiskLevel normalizes a stored level string, defaulting to none.
func ParseRiskLevel(s string) RiskLevel {
	switch RiskLevel(s) {
	case RiskElevated:
		return RiskElevated
	case RiskCrisis:
		return RiskCrisis
	default:
		return RiskNone
	}
}
