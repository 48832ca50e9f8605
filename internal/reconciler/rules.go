package reconciler

import "github.com/qs3c/regflow_go_server/internal/model"

// Partition splits decisions by report owner status.
func Partition(decisions []model.RuleDecision) (approved, rejected, pending []model.RuleDecision) {
	for _, d := range decisions {
		switch model.ParseDecision(string(d.ReportOwnerStatus)) {
		case model.DecisionApproved:
			approved = append(approved, d)
		case model.DecisionRejected:
			rejected = append(rejected, d)
		default:
			pending = append(pending, d)
		}
	}
	return approved, rejected, pending
}

// Eligible reports whether the rule review is at the report owner step, or the
// assignment has already been completed.
func Eligible(a *model.Assignment) bool {
	if a == nil {
		return false
	}
	return a.ContextData.WorkflowStep == model.WorkflowStepTesterApprovedRules ||
		a.Status == model.AssignmentCompleted
}

func isRuleApproval(a *model.Assignment, key model.ReportKey, phase string) bool {
	return a.AssignmentType == model.AssignmentTypeRuleApproval && a.Matches(key, phase)
}

// OpenRuleApproval finds the open Rule Approval assignment for (key, phase).
func OpenRuleApproval(assignments []model.Assignment, key model.ReportKey, phase string) *model.Assignment {
	for i := range assignments {
		a := &assignments[i]
		if isRuleApproval(a, key, phase) && a.Status.IsOpen() {
			return a
		}
	}
	return nil
}

// RuleApprovalContext prefers the open Rule Approval assignment and falls back to any
// Rule Approval assignment for (key, phase).
func RuleApprovalContext(assignments []model.Assignment, key model.ReportKey, phase string) *model.Assignment {
	if a := OpenRuleApproval(assignments, key, phase); a != nil {
		return a
	}
	for i := range assignments {
		a := &assignments[i]
		if isRuleApproval(a, key, phase) {
			return a
		}
	}
	return nil
}
