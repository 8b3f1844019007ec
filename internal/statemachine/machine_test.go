package statemachine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/careflow-api/pkg/errors"
)

func testMachine() *Machine {
	return New("widget", Table{
		"PENDING":  {"ACTIVE", "CANCELLED"},
		"ACTIVE":   {"DONE", "CANCELLED"},
		// DONE and CANCELLED are terminal
	})
}

func TestApplyAllowedTransition(t *testing.T) {
	m := testMachine()
	actor := uuid.New()

	tr, err := m.Apply("PENDING", "ACTIVE", actor)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", tr.From)
	assert.Equal(t, "ACTIVE", tr.To)
	assert.Equal(t, actor, tr.Actor)
	assert.False(t, tr.At.IsZero())
}

func TestApplyRejectsEdgeNotInTable(t *testing.T) {
	m := testMachine()

	_, err := m.Apply("PENDING", "DONE", uuid.New())
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidTransition, errors.KindOf(err))
}

func TestApplyRejectsTerminalStates(t *testing.T) {
	m := testMachine()

	for _, terminal := range []string{"DONE", "CANCELLED"} {
		for _, to := range []string{"PENDING", "ACTIVE", "DONE", "CANCELLED"} {
			_, err := m.Apply(terminal, to, uuid.New())
			require.Error(t, err, "from %s to %s", terminal, to)
			assert.Equal(t, errors.KindInvalidTransition, errors.KindOf(err))
		}
	}
}

func TestApplyRejectsUnknownStatus(t *testing.T) {
	m := testMachine()

	_, err := m.Apply("BOGUS", "ACTIVE", uuid.New())
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidTransition, errors.KindOf(err))
}

func TestGuardFailureAbortsTransition(t *testing.T) {
	m := testMachine()
	guardErr := errors.NewValidation("notes are required")

	_, err := m.Apply("ACTIVE", "DONE", uuid.New(), func() error {
		return guardErr
	})
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
}

func TestGuardsNotRunForIllegalEdge(t *testing.T) {
	m := testMachine()
	ran := false

	_, err := m.Apply("DONE", "ACTIVE", uuid.New(), func() error {
		ran = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, ran, "guard must not run when the edge is illegal")
}

func TestIsTerminal(t *testing.T) {
	m := testMachine()

	assert.True(t, m.IsTerminal("DONE"))
	assert.True(t, m.IsTerminal("CANCELLED"))
	assert.False(t, m.IsTerminal("PENDING"))
	assert.False(t, m.IsTerminal("ACTIVE"))
}
