// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package trigger

import (
	"time"
)

// Urgency is the scheduling tier attached to a trigger.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Valid reports whether u is one of the known urgency tiers.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// Context is the envelope carried into a handler invocation.
// One instance per firing; never mutated after construction.
type Context struct {
	FiringID  string         `json:"firing_id"`
	TenantID  string         `json:"tenant_id"`
	SubjectID string         `json:"subject_id"`
	Type      string         `json:"trigger_type"`
	Payload   map[string]any `json:"payload"`
	Urgency   Urgency        `json:"urgency"`
	Priority  int            `json:"priority"`
	Hop       int            `json:"hop"`
}

// PayloadKind tags a HandlerResult payload variant.
type PayloadKind string

const (
	KindTraining      PayloadKind = "training_completion"
	KindAssessment    PayloadKind = "assessment_completion"
	KindSkill         PayloadKind = "skill_validation"
	KindCompliance    PayloadKind = "compliance_completion"
	KindCertification PayloadKind = "certification_completion"
	KindGeneric       PayloadKind = "generic"
)

// ResultPayload is the tagged union of handler result payloads. The output
// trigger synthesizer matches on Kind() instead of probing optional fields.
type ResultPayload interface {
	Kind() PayloadKind
}

// TrainingCompletion is the result payload for a completed training activity.
// CompletionType distinguishes plain trainings from certification and
// compliance trainings.
type TrainingCompletion struct {
	EmployeeID       string    `json:"employee_id"`
	TrainingID       string    `json:"training_id"`
	CompletionType   string    `json:"completion_type"` // "training" | "certification" | "compliance"
	PerformanceScore float64   `json:"performance_score"`
	LeadershipSkills []string  `json:"leadership_skills,omitempty"`
	CompletedAt      time.Time `json:"completed_at"`
}

func (TrainingCompletion) Kind() PayloadKind { return KindTraining }

// AssessmentCompletion is the result payload for a finished assessment.
type AssessmentCompletion struct {
	EmployeeID     string    `json:"employee_id"`
	AssessmentID   string    `json:"assessment_id"`
	AssessmentType string    `json:"assessment_type"` // "performance" | "culture" | "skills"
	Score          float64   `json:"score"`
	CompletedAt    time.Time `json:"completed_at"`
}

func (AssessmentCompletion) Kind() PayloadKind { return KindAssessment }

// SkillValidation is the result payload for validated employee skills.
type SkillValidation struct {
	EmployeeID      string    `json:"employee_id"`
	ValidatedSkills []string  `json:"validated_skills"`
	Source          string    `json:"source"`
	ValidatedAt     time.Time `json:"validated_at"`
}

func (SkillValidation) Kind() PayloadKind { return KindSkill }

// ComplianceCompletion is the result payload for a compliance requirement
// that has been satisfied.
type ComplianceCompletion struct {
	EmployeeID     string     `json:"employee_id"`
	ComplianceType string     `json:"compliance_type"`
	CompletedAt    time.Time  `json:"completed_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

func (ComplianceCompletion) Kind() PayloadKind { return KindCompliance }

// CertificationCompletion is the result payload for an earned certification.
type CertificationCompletion struct {
	EmployeeID        string    `json:"employee_id"`
	CertificationName string    `json:"certification_name"`
	IssuedBy          string    `json:"issued_by"`
	IssuedAt          time.Time `json:"issued_at"`
}

func (CertificationCompletion) Kind() PayloadKind { return KindCertification }

// Generic carries a handler result that has no dedicated variant.
type Generic struct {
	Data map[string]any `json:"data"`
}

func (Generic) Kind() PayloadKind { return KindGeneric }

// NextAction is a handler-suggested follow-up. TriggerType is optional; when
// set the action is passed through verbatim to the synthesized trigger list.
type NextAction struct {
	Name        string         `json:"name"`
	TriggerType string         `json:"trigger_type,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
}

// HandlerResult is the outcome of one domain handler invocation.
// Exactly one HandlerResult per Context.
type HandlerResult struct {
	Success     bool          `json:"success"`
	Payload     ResultPayload `json:"payload,omitempty"`
	NextActions []NextAction  `json:"next_actions,omitempty"`
	Triggers    []string      `json:"triggers,omitempty"`
	Confidence  *float64      `json:"confidence,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Result is what the engine returns to its caller. Created fresh per firing,
// never mutated after return.
type Result struct {
	Success        bool          `json:"success"`
	Module         string        `json:"module"`
	TriggerType    string        `json:"trigger_type"`
	Action         string        `json:"action"`
	Data           ResultPayload `json:"data,omitempty"`
	NextTriggers   []string      `json:"next_triggers"`
	ProcessingTime time.Duration `json:"processing_time_ms"`
	Confidence     float64       `json:"confidence"`
	Error          string        `json:"error,omitempty"`
}

// OutputPayload is the concrete message synthesized for a downstream module.
type OutputPayload struct {
	Type         string         `json:"trigger_type"`
	SourceModule string         `json:"source_module"`
	SourceAction string         `json:"source_action"`
	SubjectID    string         `json:"subject_id"`
	TenantID     string         `json:"tenant_id"`
	Data         map[string]any `json:"data"`
	Priority     int            `json:"priority"`
	Urgency      Urgency        `json:"urgency"`
	Hop          int            `json:"hop"`
	CreatedAt    time.Time      `json:"created_at"`
}
