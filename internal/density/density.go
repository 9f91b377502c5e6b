package density

import "fmt"

// Tier is a coarse traffic density classification.
type Tier string

const (
	Low    Tier = "LOW"
	Medium Tier = "MEDIUM"
	High   Tier = "HIGH"
)

// Classifier maps an active track count to a Tier.
type Classifier struct {
	LowMax  int
	HighMax int
}

// NewClassifier validates the thresholds.
func NewClassifier(lowMax, highMax int) (Classifier, error) {
	if lowMax < 0 || highMax < lowMax {
		return Classifier{}, fmt.Errorf("invalid density thresholds: low_max=%d high_max=%d", lowMax, highMax)
	}
	return Classifier{LowMax: lowMax, HighMax: highMax}, nil
}

// Classify returns Low for count <= LowMax, Medium up to HighMax, High above.
func (c Classifier) Classify(activeTracks int) Tier {
	switch {
	case activeTracks <= c.LowMax:
		return Low
	case activeTracks <= c.HighMax:
		return Medium
	default:
		return High
	}
}
