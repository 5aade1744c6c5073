package workflow

import (
	"github.com/goliatone/go-iom/pkg/client"
	"github.com/goliatone/go-iom/pkg/model"
)

// Action is a lifecycle action on a document.
type Action string

const (
	ActionSubmit    Action = "submit_for_approval"
	ActionApprove   Action = "approve"
	ActionReject    Action = "reject"
	ActionPublish   Action = "publish"
	ActionArchive   Action = "archive"
	ActionUnarchive Action = "unarchive"
)

// Actions lists every action in display order.
var Actions = []Action{ActionSubmit, ActionApprove, ActionReject, ActionPublish, ActionArchive, ActionUnarchive}

var endpoints = map[Action]string{
	ActionSubmit:    client.ActionSubmitForApproval,
	ActionApprove:   client.ActionSimpleApprove,
	ActionReject:    client.ActionSimpleReject,
	ActionPublish:   client.ActionPublish,
	ActionArchive:   client.ActionArchive,
	ActionUnarchive: client.ActionUnarchive,
}

// Endpoint returns the ioms/{id}/ action path segment.
func (a Action) Endpoint() string {
	return endpoints[a]
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	_, ok := endpoints[a]
	return ok
}

// ParseAction maps an action name or endpoint segment to an Action.
func ParseAction(raw string) (Action, bool) {
	for action, endpoint := range endpoints {
		if raw == string(action) || raw == endpoint {
			return action, true
		}
	}
	return "", false
}

// Actor is the acting user as seen by the state machine.
type Actor struct {
	UserID   int64
	GroupIDs []int64
	IsStaff  bool
}

// ActorFromUser builds an Actor from a user profile.
func ActorFromUser(u model.User) Actor {
	return Actor{UserID: u.ID, GroupIDs: u.GroupIDs(), IsStaff: u.IsStaff}
}

// InGroup reports membership by group identifier.
func (a Actor) InGroup(id int64) bool {
	for _, g := range a.GroupIDs {
		if g == id {
			return true
		}
	}
	return false
}

// archivable are the statuses archive may start from.
var archivable = map[model.Status]bool{
	model.StatusPublished: true,
	model.StatusApproved:  true,
	model.StatusRejected:  true,
	model.StatusCancelled: true,
}

// Available returns the actions actor may take on doc, in display order.
func Available(doc model.Document, tpl model.Template, actor Actor) []Action {
	var out []Action
	for _, action := range Actions {
		if Allowed(doc, tpl, actor, action) {
			out = append(out, action)
		}
	}
	return out
}

// Allowed evaluates one row of the legal-action table.
func Allowed(doc model.Document, tpl model.Template, actor Actor, action Action) bool {
	creator := doc.CreatedBy != 0 && doc.CreatedBy == actor.UserID
	permitted := creator || actor.IsStaff
	approval := tpl.EffectiveApproval()

	switch action {
	case ActionSubmit:
		return doc.Status == model.StatusDraft && approval == model.ApprovalSimple && creator
	case ActionApprove, ActionReject:
		return doc.Status == model.StatusPendingApproval && approval == model.ApprovalSimple && IsDesignatedApprover(tpl, actor)
	case ActionPublish:
		switch doc.Status {
		case model.StatusDraft:
			return approval == model.ApprovalNone && permitted
		case model.StatusApproved:
			return permitted
		}
		return false
	case ActionArchive:
		return archivable[doc.Status] && permitted
	case ActionUnarchive:
		return doc.Status == model.StatusArchived && permitted
	default:
		return false
	}
}

// IsDesignatedApprover reports whether actor is the template's simple
// approver, either as the designated user or as a member of the designated
// group. Groups are compared by identifier.
func IsDesignatedApprover(tpl model.Template, actor Actor) bool {
	if tpl.SimpleApproverUser != nil && *tpl.SimpleApproverUser == actor.UserID {
		return true
	}
	if tpl.SimpleApproverGroup != nil && actor.InGroup(*tpl.SimpleApproverGroup) {
		return true
	}
	return false
}

// CanActOnStep reports whether actor may approve or reject step: it must be
// pending and assigned to the actor or to one of the actor's groups.
func CanActOnStep(step model.ApprovalStep, actor Actor) bool {
	if step.Status != model.StepPending {
		return false
	}
	if step.Approver != nil && *step.Approver == actor.UserID {
		return true
	}
	return step.ApproverGroup != nil && actor.InGroup(*step.ApproverGroup)
}

// Next returns the status an action leads to from status. Unarchive reports
// published as its display status; the server restores the actual
// pre-archive status.
func Next(status model.Status, action Action) (model.Status, bool) {
	switch action {
	case ActionSubmit:
		if status == model.StatusDraft {
			return model.StatusPendingApproval, true
		}
	case ActionApprove:
		if status == model.StatusPendingApproval {
			return model.StatusApproved, true
		}
	case ActionReject:
		if status == model.StatusPendingApproval {
			return model.StatusRejected, true
		}
	case ActionPublish:
		if status == model.StatusDraft || status == model.StatusApproved {
			return model.StatusPublished, true
		}
	case ActionArchive:
		if archivable[status] {
			return model.StatusArchived, true
		}
	case ActionUnarchive:
		if status == model.StatusArchived {
			return model.StatusPublished, true
		}
	}
	return "", false
}

// RequiresComment reports whether the action needs a non-empty comment.
func RequiresComment(action Action) bool {
	return action == ActionReject
}
