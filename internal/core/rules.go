package core

import (
	"context"
	"fmt"
	"staffcore/pkg/domain"
)

type (
	Rule        = domain.Rule
	RuleView    = domain.RuleView
	RulesEngine = domain.RulesEngine
)

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set
// and advisory conflict handling.
func NewDefaultRulesEngine() *RulesEngine {
	return NewPolicyRulesEngine(ConflictPolicyAdvisory)
}

// NewPolicyRulesEngine builds the built-in rule set for the given conflict
// policy.
func NewPolicyRulesEngine(policy ConflictPolicy) *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(AllocationRangeRule())
	engine.Register(AllocationOverlapRule(policy))
	engine.Register(ProjectColorUniqueRule())
	return engine
}

// changedAllocations returns the post-change state of created or updated
// allocations.
func changedAllocations(changes []domain.Change) []domain.Allocation {
	var out []domain.Allocation
	for _, change := range changes {
		if change.Entity != domain.EntityAllocation || change.After == nil {
			continue
		}
		if alloc, ok := change.After.(domain.Allocation); ok {
			out = append(out, alloc)
		}
	}
	return out
}

// AllocationRangeRule blocks allocations whose end date precedes the start date.
func AllocationRangeRule() domain.Rule {
	return allocationRangeRule{}
}

type allocationRangeRule struct{}

func (allocationRangeRule) Name() string { return "allocation_range" }

func (r allocationRangeRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, alloc := range changedAllocations(changes) {
		if alloc.Range().Valid() {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("allocation %s has invalid range %s", alloc.ID, alloc.Range()),
			Entity:   domain.EntityAllocation,
			EntityID: alloc.ID,
		})
	}
	return res, nil
}

// AllocationOverlapRule reports allocations that overlap another allocation of
// the same talent. Overlaps warn under the advisory policy and block under
// the strict one.
func AllocationOverlapRule(policy ConflictPolicy) domain.Rule {
	severity := domain.SeverityWarn
	if policy == ConflictPolicyStrict {
		severity = domain.SeverityBlock
	}
	return allocationOverlapRule{severity: severity}
}

type allocationOverlapRule struct {
	severity domain.Severity
}

func (allocationOverlapRule) Name() string { return "allocation_overlap" }

func (r allocationOverlapRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, changed := range changedAllocations(changes) {
		// a later change in the same transaction may have removed it
		current, ok := view.FindAllocation(changed.ID)
		if !ok {
			continue
		}
		for _, conflict := range findConflicts(view, current.TalentID, current.Range(), current.ID) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: r.severity,
				Message: fmt.Sprintf("allocation %s (%s) overlaps allocation %s on %q (%s)",
					current.ID, current.Range(), conflict.Allocation.ID, conflict.ProjectName, conflict.Allocation.Range()),
				Entity:   domain.EntityAllocation,
				EntityID: current.ID,
			})
		}
	}
	return res, nil
}

// ProjectColorUniqueRule blocks two live projects sharing a color.
func ProjectColorUniqueRule() domain.Rule {
	return projectColorUniqueRule{}
}

type projectColorUniqueRule struct{}

func (projectColorUniqueRule) Name() string { return "project_color_unique" }

func (r projectColorUniqueRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	touched := false
	for _, change := range changes {
		if change.Entity == domain.EntityProject && change.After != nil {
			touched = true
			break
		}
	}
	if !touched {
		return res, nil
	}
	owners := make(map[string]string)
	for _, project := range view.ListProjects() {
		color := normalizeColor(project.Color)
		if color == "" {
			continue
		}
		if first, dup := owners[color]; dup {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("project %s reuses color %s of project %s", project.ID, color, first),
				Entity:   domain.EntityProject,
				EntityID: project.ID,
			})
			continue
		}
		owners[color] = project.ID
	}
	return res, nil
}
