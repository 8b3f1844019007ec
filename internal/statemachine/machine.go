package statemachine

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careflow-api/pkg/errors"
)

// Table maps a current status to the set of statuses reachable from it.
// A status with no entry (or an empty set) is terminal.
type Table map[string][]string

// Allows reports whether the table permits moving from one status to
// another.
func (t Table) Allows(from, to string) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing edges.
func (t Table) IsTerminal(status string) bool {
	return len(t[status]) == 0
}

// Guard is an entity-specific precondition evaluated after the table
// check, e.g. "completion notes must be non-empty".
type Guard func() error

// Transition records a validated status change, stamped with the actor
// and the evaluation time so callers can set audit fields from it.
type Transition struct {
	From  string
	To    string
	Actor uuid.UUID
	At    time.Time
}

// Machine evaluates guarded transitions for one entity type.
type Machine struct {
	entity string
	table  Table
}

func New(entity string, table Table) *Machine {
	return &Machine{entity: entity, table: table}
}

// Apply validates a requested status change against the table and the
// given preconditions. The table is checked first: a terminal current
// status or an edge not in the table fails with an invalid-transition
// error, and the requested status is never clamped or ignored. Guards
// run only when the edge is legal; the first guard error aborts.
func (m *Machine) Apply(from, to string, actor uuid.UUID, guards ...Guard) (Transition, error) {
	if !m.table.Allows(from, to) {
		return Transition{}, errors.NewInvalidTransition(m.entity, from, to)
	}

	for _, guard := range guards {
		if err := guard(); err != nil {
			return Transition{}, err
		}
	}

	return Transition{
		From:  from,
		To:    to,
		Actor: actor,
		At:    time.Now().UTC(),
	}, nil
}

// IsTerminal reports whether the given status is terminal for this
// machine's entity.
func (m *Machine) IsTerminal(status string) bool {
	return m.table.IsTerminal(status)
}

// Entity returns the entity name used in error messages.
func (m *Machine) Entity() string {
	return m.entity
}
