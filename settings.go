package vajrastream

import "fmt"

// ============================================================================
// Tone Settings
// ============================================================================

// Duration bounds enforced by the validators, in seconds.
const (
	MinDuration = 1.0
	MaxDuration = 300.0
)

// ToneSettings holds the generation parameters for a tone. Volume, harmonic
// strength, and modulation depth live on a unit scale; duration is seconds.
type ToneSettings struct {
	Frequency        float64 `json:"frequency"`
	Duration         float64 `json:"duration"`
	Volume           float64 `json:"volume"`
	PrayerBowlMode   bool    `json:"prayer_bowl_mode"`
	HarmonicStrength float64 `json:"harmonic_strength"`
	ModulationDepth  float64 `json:"modulation_depth"`
}

// ClampUnit clamps v into [0, 1].
func ClampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampDuration clamps d into [MinDuration, MaxDuration].
func ClampDuration(d float64) float64 {
	if d < MinDuration {
		return MinDuration
	}
	if d > MaxDuration {
		return MaxDuration
	}
	return d
}

// Normalized returns a copy with the unit-scale fields clamped to [0, 1] and
// the duration clamped to its bounds. Out-of-range values are coerced, not
// rejected. Frequency is left untouched; see Validate.
func (s ToneSettings) Normalized() ToneSettings {
	s.Volume = ClampUnit(s.Volume)
	s.HarmonicStrength = ClampUnit(s.HarmonicStrength)
	s.ModulationDepth = ClampUnit(s.ModulationDepth)
	s.Duration = ClampDuration(s.Duration)
	return s
}

// Validate reports whether the settings can be submitted. Frequency is the
// only field that can fail; the bounded fields are coerced by Normalized.
func (s ToneSettings) Validate() error {
	if s.Frequency <= 0 {
		return fmt.Errorf("frequency must be a positive number of hertz, got %g", s.Frequency)
	}
	return nil
}
