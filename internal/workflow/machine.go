package workflow

import (
	"errors"

	"github.com/herbtrace/herbtrace-backend/internal/domain"
)

var (
	ErrAccessDenied      = errors.New("role is not allowed to perform this transition")
	ErrIllegalTransition = errors.New("illegal batch status transition")
	ErrBatchNotFound     = errors.New("batch not found")
)

// stageOrder positions every status on the canonical forward path. approved
// and rejected share a rank: they are alternative outcomes of tested.
var stageOrder = map[domain.BatchStatus]int{
	domain.StatusPending:    0,
	domain.StatusProcessing: 1,
	domain.StatusProcessed:  2,
	domain.StatusTesting:    3,
	domain.StatusTested:     4,
	domain.StatusApproved:   5,
	domain.StatusRejected:   5,
	domain.StatusCompleted:  6,
}

// successors is the legal transition table. rejected and completed are
// terminal. rejected is reachable only from tested; the source data also
// shows rejected batches injected straight from pending, which is treated
// as seed data rather than a workflow transition.
var successors = map[domain.BatchStatus][]domain.BatchStatus{
	domain.StatusPending:    {domain.StatusProcessing},
	domain.StatusProcessing: {domain.StatusProcessed},
	domain.StatusProcessed:  {domain.StatusTesting},
	domain.StatusTesting:    {domain.StatusTested},
	domain.StatusTested:     {domain.StatusApproved, domain.StatusRejected},
	domain.StatusApproved:   {domain.StatusCompleted},
	domain.StatusRejected:   {},
	domain.StatusCompleted:  {},
}

type transition struct {
	from domain.BatchStatus
	to   domain.BatchStatus
}

// transitionOwner maps each legal transition to the single role that drives
// it. Together the four roles cover the whole forward path.
var transitionOwner = map[transition]domain.Role{
	{domain.StatusPending, domain.StatusProcessing}:   domain.RoleCollector,
	{domain.StatusProcessing, domain.StatusProcessed}: domain.RoleProcessor,
	{domain.StatusProcessed, domain.StatusTesting}:    domain.RoleLaboratory,
	{domain.StatusTesting, domain.StatusTested}:       domain.RoleLaboratory,
	{domain.StatusTested, domain.StatusApproved}:      domain.RoleRegulator,
	{domain.StatusTested, domain.StatusRejected}:      domain.RoleRegulator,
	{domain.StatusApproved, domain.StatusCompleted}:   domain.RoleRegulator,
}

// roleStages lists the statuses at which each role may write, in path order.
var roleStages = map[domain.Role][]domain.BatchStatus{
	domain.RoleCollector:  {domain.StatusPending},
	domain.RoleProcessor:  {domain.StatusProcessing},
	domain.RoleLaboratory: {domain.StatusProcessed, domain.StatusTesting},
	domain.RoleRegulator:  {domain.StatusTested, domain.StatusApproved},
}

// IsLegalTransition reports whether to is a legal successor of from.
func IsLegalTransition(from, to domain.BatchStatus) bool {
	for _, s := range successors[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(status domain.BatchStatus) bool {
	return len(successors[status]) == 0
}

// OwnsTransition reports whether role drives the from→to transition.
func OwnsTransition(role domain.Role, from, to domain.BatchStatus) bool {
	owner, ok := transitionOwner[transition{from, to}]
	return ok && owner == role
}

// DesignatedStages returns the statuses role is designated to act on.
func DesignatedStages(role domain.Role) []domain.BatchStatus {
	return roleStages[role]
}

// stageWindow is the [first, last] path positions of a role's stages.
func stageWindow(role domain.Role) (first, last int, ok bool) {
	stages := roleStages[role]
	if len(stages) == 0 {
		return 0, 0, false
	}
	first = stageOrder[stages[0]]
	last = stageOrder[stages[len(stages)-1]]
	return first, last, true
}
