package entities

// RiskLevel is one of the four ordered severity tiers.
type RiskLevel string

const (
	RiskNormal  RiskLevel = "normal"
	RiskCaution RiskLevel = "caution"
	RiskWarning RiskLevel = "warning"
	RiskDanger  RiskLevel = "danger"
)

// Rank returns the tier's position in the severity ordering, for comparisons.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskCaution:
		return 1
	case RiskWarning:
		return 2
	case RiskDanger:
		return 3
	default:
		return 0
	}
}
