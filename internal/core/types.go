package core

import "staffcore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Talent             = domain.Talent
	Area               = domain.Area
	Project            = domain.Project
	ProjectStatus      = domain.ProjectStatus
	Allocation         = domain.Allocation
	Date               = domain.Date
	DateRange          = domain.DateRange
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	ErrNotFound        = domain.ErrNotFound
	ErrReferenced      = domain.ErrReferenced
)

const (
	EntityTalent     = domain.EntityTalent
	EntityArea       = domain.EntityArea
	EntityProject    = domain.EntityProject
	EntityAllocation = domain.EntityAllocation
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
