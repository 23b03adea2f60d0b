// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by staffcore.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityTalent identifies a talent (consultant) record.
	EntityTalent EntityType = "talent"
	// EntityProject identifies a project record.
	EntityProject EntityType = "project"
	// EntityArea identifies an area (practice/competence group) record.
	EntityArea EntityType = "area"
	// EntityAllocation identifies an allocation record.
	EntityAllocation EntityType = "allocation"
)

// ProjectStatus enumerates the project workflow states.
type ProjectStatus string

// Canonical project statuses.
const (
	ProjectStatusUpcoming   ProjectStatus = "upcoming"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
)

// Valid reports whether the status is one of the canonical values. The empty
// status is accepted and treated as upcoming by the store.
func (s ProjectStatus) Valid() bool {
	switch s {
	case "", ProjectStatusUpcoming, ProjectStatusInProgress, ProjectStatusCompleted:
		return true
	default:
		return false
	}
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Talent is a consultant that can be allocated to projects.
type Talent struct {
	Base
	Name   string   `json:"name"`
	Email  string   `json:"email,omitempty"`
	Skills []string `json:"skills"`
	// Areas is a membership set of Area IDs.
	Areas []string `json:"areas"`
}

// HasSkills reports whether the talent holds every required skill. Matching
// is case-insensitive and ignores surrounding whitespace.
func (t Talent) HasSkills(required []string) bool {
	if len(required) == 0 {
		return true
	}
	held := make(map[string]struct{}, len(t.Skills))
	for _, s := range t.Skills {
		held[normalizeSkill(s)] = struct{}{}
	}
	for _, r := range required {
		if _, ok := held[normalizeSkill(r)]; !ok {
			return false
		}
	}
	return true
}

func normalizeSkill(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Area groups talents (e.g. "Backend", "Data").
type Area struct {
	Base
	Name string `json:"name"`
}

// Project is a client engagement talents are staffed on.
type Project struct {
	Base
	Name   string        `json:"name"`
	Color  string        `json:"color"`
	Status ProjectStatus `json:"status"`
	// StartDate and EndDate bound the assignment window; nil means open.
	StartDate *Date   `json:"start_date,omitempty"`
	EndDate   *Date   `json:"end_date,omitempty"`
	ClientID  *string `json:"client_id,omitempty"`
	// AssignedTalents marks talents as occupied for the whole project window
	// without a dedicated Allocation row.
	AssignedTalents       []string `json:"assigned_talents"`
	IsPaid                bool     `json:"is_paid"`
	ReimbursementRate     *float64 `json:"reimbursement_rate,omitempty"`
	ReimbursementCurrency string   `json:"reimbursement_currency,omitempty"`
	RequiredSkills        []string `json:"required_skills"`
}

// Constrains reports whether the project window limits availability at all.
// A project with neither a start nor an end date never blocks a talent.
func (p Project) Constrains() bool {
	return p.StartDate != nil || p.EndDate != nil
}

// Window returns the project's assignment window. Unset bounds are zero dates.
func (p Project) Window() DateRange {
	var w DateRange
	if p.StartDate != nil {
		w.Start = *p.StartDate
	}
	if p.EndDate != nil {
		w.End = *p.EndDate
	}
	return w
}

// CoversDate reports whether date falls inside the project's (possibly
// open-ended) window. Projects without any dates never cover a date.
func (p Project) CoversDate(date Date) bool {
	if !p.Constrains() {
		return false
	}
	if p.StartDate != nil && date.Before(*p.StartDate) {
		return false
	}
	if p.EndDate != nil && date.After(*p.EndDate) {
		return false
	}
	return true
}

// HasTalent reports whether talentID is listed in AssignedTalents.
func (p Project) HasTalent(talentID string) bool {
	for _, id := range p.AssignedTalents {
		if id == talentID {
			return true
		}
	}
	return false
}

// Allocation is an explicit commitment of one talent to one project over the
// closed interval [StartDate, EndDate].
type Allocation struct {
	Base
	TalentID  string  `json:"talent_id"`
	ProjectID string  `json:"project_id"`
	StartDate Date    `json:"start_date"`
	EndDate   Date    `json:"end_date"`
	Notes     *string `json:"notes,omitempty"`
}

// Range returns the closed date interval covered by the allocation.
func (a Allocation) Range() DateRange {
	return DateRange{Start: a.StartDate, End: a.EndDate}
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the non-blocking warn-level violations.
func (r Result) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityWarn {
			out = append(out, v)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
