// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package trigger

import (
	"strings"
)

// Rule is one classification or threshold predicate. Every rule is evaluated
// for every result; rules are not mutually exclusive, so a single result may
// contribute several downstream trigger types.
type Rule struct {
	Name    string
	Emits   string
	Matches func(ctx Context, res HandlerResult) bool
}

// classificationRules test the literal trigger type or the result payload
// variant and map matches into the fixed downstream trigger catalogue.
var classificationRules = []Rule{
	{
		Name:  "training_completion",
		Emits: TypePerformanceAssessment,
		Matches: func(ctx Context, res HandlerResult) bool {
			if strings.Contains(ctx.Type, "training_completion") {
				return true
			}
			tc, ok := res.Payload.(TrainingCompletion)
			return ok && tc.CompletionType == "training"
		},
	},
	{
		Name:  "assessment_completion",
		Emits: TypePerformanceManagement,
		Matches: func(ctx Context, res HandlerResult) bool {
			if strings.Contains(ctx.Type, "assessment_completion") {
				return true
			}
			ac, ok := res.Payload.(AssessmentCompletion)
			return ok && ac.AssessmentType == "performance"
		},
	},
	{
		Name:  "skill_validation",
		Emits: TypeSkillsAnalysisUpdate,
		Matches: func(ctx Context, res HandlerResult) bool {
			if strings.Contains(ctx.Type, "skill") {
				return true
			}
			sv, ok := res.Payload.(SkillValidation)
			return ok && len(sv.ValidatedSkills) > 0
		},
	},
	{
		Name:  "culture_signal",
		Emits: TypeCultureAnalysisUpdate,
		Matches: func(ctx Context, res HandlerResult) bool {
			if strings.Contains(ctx.Type, "culture") {
				return true
			}
			ac, ok := res.Payload.(AssessmentCompletion)
			return ok && ac.AssessmentType == "culture"
		},
	},
	{
		Name:  "compliance_completion",
		Emits: TypeComplianceTracking,
		Matches: func(ctx Context, res HandlerResult) bool {
			if strings.Contains(ctx.Type, "compliance") {
				return true
			}
			if _, ok := res.Payload.(ComplianceCompletion); ok {
				return true
			}
			tc, ok := res.Payload.(TrainingCompletion)
			return ok && tc.CompletionType == "compliance"
		},
	},
	{
		Name:  "certification_completion",
		Emits: TypeCertificationTracking,
		Matches: func(ctx Context, res HandlerResult) bool {
			if strings.Contains(ctx.Type, "certification") {
				return true
			}
			if _, ok := res.Payload.(CertificationCompletion); ok {
				return true
			}
			tc, ok := res.Payload.(TrainingCompletion)
			return ok && tc.CompletionType == "certification"
		},
	},
}

// thresholdRules run numeric checks on the result payload.
var thresholdRules = []Rule{
	{
		Name:  "high_performance",
		Emits: TypeHighPerformanceReward,
		Matches: func(ctx Context, res HandlerResult) bool {
			if score, ok := performanceScore(res); ok {
				return score > 90
			}
			return false
		},
	},
	{
		Name:  "leadership_skills_present",
		Emits: TypeLeadershipDevelopment,
		Matches: func(ctx Context, res HandlerResult) bool {
			tc, ok := res.Payload.(TrainingCompletion)
			return ok && len(tc.LeadershipSkills) > 0
		},
	},
}

// Classify evaluates all classification and threshold rules in order and
// returns the candidate downstream trigger types. The returned slice may
// contain duplicates; the synthesizer deduplicates after pass-through rules.
func Classify(ctx Context, res HandlerResult) []string {
	var out []string
	for _, r := range classificationRules {
		if r.Matches(ctx, res) {
			out = append(out, r.Emits)
		}
	}
	for _, r := range thresholdRules {
		if r.Matches(ctx, res) {
			out = append(out, r.Emits)
		}
	}
	return out
}

// performanceScore extracts a performance score from the payload variants
// that carry one.
func performanceScore(res HandlerResult) (float64, bool) {
	switch p := res.Payload.(type) {
	case TrainingCompletion:
		return p.PerformanceScore, true
	case AssessmentCompletion:
		return p.Score, true
	}
	return 0, false
}
