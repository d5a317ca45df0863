// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package trigger

const (
	confidenceBaseline     = 0.5
	confidenceSuccessBonus = 0.2
	confidencePayloadBonus = 0.1
	confidenceActionsBonus = 0.1
)

// ConfidenceOf combines a handler result's explicit confidence, success flag,
// payload presence and suggested next actions into a single score in [0,1].
// A missing or broken score must never abort the pipeline, so this function
// never panics: any failure yields the baseline.
func ConfidenceOf(res HandlerResult) (score float64) {
	defer func() {
		if recover() != nil {
			score = confidenceBaseline
		}
	}()

	if res.Confidence != nil {
		return clamp01(*res.Confidence)
	}

	score = confidenceBaseline
	if res.Success {
		score += confidenceSuccessBonus
	}
	if res.Payload != nil {
		score += confidencePayloadBonus
	}
	if len(res.NextActions) > 0 {
		score += confidenceActionsBonus
	}
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
