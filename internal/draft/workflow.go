package draft

import "github.com/ezkiller2517/arkzkh-app/internal/models"

// Action names a workflow transition.
type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

type edge struct {
	from Status
	to   Status
}

// Approved and Rejected have no outgoing edges.
var transitions = map[Action]edge{
	ActionSubmit:  {from: StatusDraft, to: StatusInReview},
	ActionApprove: {from: StatusInReview, to: StatusApproved},
	ActionReject:  {from: StatusInReview, to: StatusRejected},
}

// Next returns the target status of action from current, if that edge exists.
func Next(action Action, current Status) (Status, bool) {
	e, ok := transitions[action]
	if !ok || e.from != current {
		return "", false
	}
	return e.to, true
}

// Source returns the status an action must start from.
func Source(action Action) (Status, bool) {
	e, ok := transitions[action]
	return e.from, ok
}

// CanTransition is the role matrix. isAuthor is only consulted for submit.
func CanTransition(role models.Role, action Action, isAuthor bool) bool {
	switch action {
	case ActionSubmit:
		return role == models.RoleAdmin || (role == models.RoleContributor && isAuthor)
	case ActionApprove, ActionReject:
		return role == models.RoleAdmin || role == models.RoleApprover
	}
	return false
}

// CanEdit is the title/content edit window. It must be evaluated against the
// current stored status on every request.
func CanEdit(role models.Role, status Status) bool {
	switch role {
	case models.RoleAdmin:
		return true
	case models.RoleApprover:
		return status == StatusInReview
	case models.RoleContributor:
		return status == StatusDraft
	}
	return false
}

// CanCreate reports whether role may create new drafts.
func CanCreate(role models.Role) bool {
	return role == models.RoleContributor || role == models.RoleAdmin
}
