// Package review holds the human-review workflow for candidate sensitive
// pixel regions: machine-detected or manually drawn rectangles, reviewer
// overrides, and the sealed-once acceptance gate.
package review

// RegionSource records where a candidate region came from.
type RegionSource string

const (
	SourceOCR    RegionSource = "ocr"
	SourceManual RegionSource = "manual"
)

// RegionAction is the masking decision for a region.
type RegionAction string

const (
	ActionMask   RegionAction = "mask"
	ActionUnmask RegionAction = "unmask"
)

// Strength is a conservative classification of detector confidence.
type Strength int

const (
	StrengthNone Strength = iota
	StrengthLow
	StrengthMedium
	StrengthHigh
)

func (s Strength) String() string {
	switch s {
	case StrengthLow:
		return "low"
	case StrengthMedium:
		return "medium"
	case StrengthHigh:
		return "high"
	}
	return "none"
}

// StrengthFromConfidence maps a single detector confidence sample to a
// strength band.
func StrengthFromConfidence(c float64) Strength {
	switch {
	case c >= 0.90:
		return StrengthHigh
	case c >= 0.60:
		return StrengthMedium
	default:
		return StrengthLow
	}
}

// AggregateStrength combines confidence samples across frames into one
// rating, driven by the minimum. Pessimism is deliberate: one low-confidence
// sample pulls the whole region down and must never be averaged away.
func AggregateStrength(confidences []float64) Strength {
	if len(confidences) == 0 {
		return StrengthNone
	}
	min := confidences[0]
	for _, c := range confidences[1:] {
		if c < min {
			min = c
		}
	}
	return StrengthFromConfidence(min)
}

// Region is one reviewable rectangle. OCR-sourced regions can never be
// deleted, only overridden; manual regions can be deleted. FrameIndex -1
// means all frames.
type Region struct {
	ID            int
	X, Y          int
	Width, Height int
	Source        RegionSource
	DefaultAction RegionAction
	Reviewer      *RegionAction
	FrameIndex    int
	Strength      Strength
	Zone          Zone
}

// EffectiveAction is the reviewer override when present, else the default.
func (r *Region) EffectiveAction() RegionAction {
	if r.Reviewer != nil {
		return *r.Reviewer
	}
	return r.DefaultAction
}
