package model

import "fmt"

// OrderStatus 生产订单状态
type OrderStatus string

const (
	StatusPlanned   OrderStatus = "Planned"
	StatusStarted   OrderStatus = "Started"
	StatusCompleted OrderStatus = "Completed"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPlanned, StatusStarted, StatusCompleted:
		return true
	}
	return false
}

// Priority 订单优先级
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// ParsePriority falls back to Medium for an empty value.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case "":
		return PriorityMedium, nil
	case PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s), nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// Action is a lifecycle transition with a stock side effect.
type Action string

const (
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
)

// transitions is the whole lifecycle: there is no way back and no skipping.
var transitions = map[OrderStatus]map[Action]OrderStatus{
	StatusPlanned: {ActionStart: StatusStarted},
	StatusStarted: {ActionComplete: StatusCompleted},
}

// Transition returns the status reached by applying a to from.
func Transition(from OrderStatus, a Action) (OrderStatus, error) {
	if to, ok := transitions[from][a]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: cannot %s an order that is %s", ErrInvalidTransition, a, from)
}

// NextAction is the single legal transition for s, if any.
func NextAction(s OrderStatus) (Action, bool) {
	for a := range transitions[s] {
		return a, true
	}
	return "", false
}
