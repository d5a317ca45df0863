// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package trigger

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Well-known trigger types. Modules may introduce new types at any time; the
// lookup tables below fall back to documented defaults for unknown types.
const (
	TypeTrainingCompletion    = "lxp_training_completion"
	TypeLearningPathCompleted = "lxp_learning_path_completed"
	TypeTrainingAssignment    = "lxp_training_assignment"
	TypeOnboardingCompletion  = "onboarding_completion"
	TypeReviewCompleted       = "performance_review_completed"
	TypeGoalAchieved          = "performance_goal_achieved"
	TypeSkillsGapIdentified   = "skills_gap_identified"
	TypeCultureAssessmentDone = "culture_assessment_complete"
	TypeCandidateHired        = "candidate_hired"
	TypePerformanceAssessment = "performance_assessment_trigger"
	TypePerformanceManagement = "performance_management_trigger"
	TypeSkillsAnalysisUpdate  = "skills_analysis_update"
	TypeCultureAnalysisUpdate = "culture_analysis_update"
	TypeComplianceTracking    = "compliance_tracking_update"
	TypeCertificationTracking = "certification_tracking_update"
	TypeHighPerformanceReward = "high_performance_reward_trigger"
	TypeLeadershipDevelopment = "leadership_development_complete"
)

// Documented defaults for unknown trigger types.
const (
	DefaultPriority = 5
	DefaultUrgency  = UrgencyMedium
	DefaultAction   = "unknown_action"
)

// The tables are data, not logic. Extend them here (or via LoadTableOverrides)
// when a module starts emitting a new trigger type; lookups never fail.
var priorityTable = map[string]int{
	TypeTrainingCompletion:    7,
	TypeLearningPathCompleted: 6,
	TypeTrainingAssignment:    5,
	TypeOnboardingCompletion:  6,
	TypeReviewCompleted:       7,
	TypeGoalAchieved:          6,
	TypeSkillsGapIdentified:   6,
	TypeCultureAssessmentDone: 5,
	TypeCandidateHired:        8,
	TypePerformanceAssessment: 7,
	TypePerformanceManagement: 7,
	TypeSkillsAnalysisUpdate:  5,
	TypeCultureAnalysisUpdate: 5,
	TypeComplianceTracking:    9,
	TypeCertificationTracking: 6,
	TypeHighPerformanceReward: 8,
	TypeLeadershipDevelopment: 7,
}

var urgencyTable = map[string]Urgency{
	TypeTrainingCompletion:    UrgencyHigh,
	TypeLearningPathCompleted: UrgencyMedium,
	TypeTrainingAssignment:    UrgencyMedium,
	TypeOnboardingCompletion:  UrgencyMedium,
	TypeReviewCompleted:       UrgencyHigh,
	TypeGoalAchieved:          UrgencyMedium,
	TypeSkillsGapIdentified:   UrgencyMedium,
	TypeCultureAssessmentDone: UrgencyMedium,
	TypeCandidateHired:        UrgencyHigh,
	TypePerformanceAssessment: UrgencyHigh,
	TypePerformanceManagement: UrgencyHigh,
	TypeSkillsAnalysisUpdate:  UrgencyMedium,
	TypeCultureAnalysisUpdate: UrgencyMedium,
	TypeComplianceTracking:    UrgencyCritical,
	TypeCertificationTracking: UrgencyMedium,
	TypeHighPerformanceReward: UrgencyHigh,
	TypeLeadershipDevelopment: UrgencyHigh,
}

var actionTable = map[string]string{
	TypeTrainingCompletion:    "training_completion_processed",
	TypeLearningPathCompleted: "learning_path_completed",
	TypeTrainingAssignment:    "training_assigned",
	TypeOnboardingCompletion:  "onboarding_processed",
	TypeReviewCompleted:       "performance_review_processed",
	TypeGoalAchieved:          "goal_achievement_processed",
	TypeSkillsGapIdentified:   "skills_gap_processed",
	TypeCultureAssessmentDone: "culture_assessment_processed",
	TypeCandidateHired:        "hire_processed",
	TypePerformanceAssessment: "performance_assessment_started",
	TypePerformanceManagement: "performance_management_started",
	TypeSkillsAnalysisUpdate:  "skills_profile_updated",
	TypeCultureAnalysisUpdate: "culture_profile_updated",
	TypeComplianceTracking:    "compliance_record_updated",
	TypeCertificationTracking: "certification_record_updated",
	TypeHighPerformanceReward: "reward_nomination_created",
	TypeLeadershipDevelopment: "leadership_track_completed",
}

// PriorityOf returns the numeric priority (1..10) for a trigger type,
// DefaultPriority for unknown types.
func PriorityOf(triggerType string) int {
	if p, ok := priorityTable[triggerType]; ok {
		return p
	}
	return DefaultPriority
}

// UrgencyOf returns the urgency tier for a trigger type, DefaultUrgency for
// unknown types.
func UrgencyOf(triggerType string) Urgency {
	if u, ok := urgencyTable[triggerType]; ok {
		return u
	}
	return DefaultUrgency
}

// ActionOf returns the human-readable action label for a trigger type,
// DefaultAction for unknown types.
func ActionOf(triggerType string) string {
	if a, ok := actionTable[triggerType]; ok {
		return a
	}
	return DefaultAction
}

// TableOverrides is the on-disk shape for deployment-specific table entries.
type TableOverrides struct {
	Priority map[string]int     `yaml:"priority"`
	Urgency  map[string]Urgency `yaml:"urgency"`
	Action   map[string]string  `yaml:"action"`
}

// LoadTableOverrides merges entries from a yaml file into the static tables.
// Entries for already-known trigger types replace the built-in values.
// Call once during startup, before the engine serves firings.
func LoadTableOverrides(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read table overrides: %w", err)
	}

	var ov TableOverrides
	if err := yaml.Unmarshal(raw, &ov); err != nil {
		return fmt.Errorf("failed to parse table overrides: %w", err)
	}

	for t, p := range ov.Priority {
		if p < 1 || p > 10 {
			return fmt.Errorf("priority override for %s out of range [1,10]: %d", t, p)
		}
		priorityTable[t] = p
	}
	for t, u := range ov.Urgency {
		if !u.Valid() {
			return fmt.Errorf("invalid urgency override for %s: %s", t, u)
		}
		urgencyTable[t] = u
	}
	for t, a := range ov.Action {
		actionTable[t] = a
	}
	return nil
}
