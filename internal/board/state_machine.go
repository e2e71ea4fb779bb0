package board

import (
	"fmt"
)

var sprintTransitions = map[SprintState]map[SprintState]bool{
	SprintPlanned: {
		SprintActive:  true,
		SprintDeleted: true,
	},
	SprintActive: {
		SprintClosed:  true,
		SprintDeleted: true,
	},
	SprintClosed: {
		SprintDeleted: true,
	},
	SprintDeleted: {
		SprintPlanned: true,
	},
}

var epicTransitions = map[EpicStatus]map[EpicStatus]bool{
	EpicActive: {
		EpicOnHold:   true,
		EpicDone:     true,
		EpicArchived: true,
		EpicDeleted:  true,
	},
	EpicOnHold: {
		EpicActive:   true,
		EpicDone:     true,
		EpicArchived: true,
		EpicDeleted:  true,
	},
	EpicDone: {
		EpicArchived: true,
		EpicDeleted:  true,
	},
	EpicArchived: {
		EpicDeleted: true,
	},
	EpicDeleted: {
		EpicActive: true,
	},
}

func IsValidSprintState(s SprintState) bool {
	_, ok := sprintTransitions[s]
	return ok
}

func IsValidEpicStatus(s EpicStatus) bool {
	_, ok := epicTransitions[s]
	return ok
}

func IsValidItemStatus(s ItemStatus) bool {
	switch s {
	case ItemBacklog, ItemTodo, ItemInProgress, ItemInReview, ItemDone:
		return true
	default:
		return false
	}
}

func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

func IsValidVisibility(v Visibility) bool {
	switch v {
	case VisibilityPrivate, VisibilityGroup:
		return true
	default:
		return false
	}
}

func ValidateSprintTransition(from, to SprintState) error {
	if from == to {
		return nil
	}
	next, ok := sprintTransitions[from]
	if !ok || !next[to] {
		return fmt.Errorf("%w: sprint %s -> %s", ErrInvalidStateTransition, from, to)
	}
	return nil
}

func ValidateEpicTransition(from, to EpicStatus) error {
	if from == to {
		return nil
	}
	next, ok := epicTransitions[from]
	if !ok || !next[to] {
		return fmt.Errorf("%w: epic %s -> %s", ErrInvalidStateTransition, from, to)
	}
	return nil
}
