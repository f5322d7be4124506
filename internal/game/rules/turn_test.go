package rules

import (
	"testing"

	"github.com/corrosion/corrosion-server-go/internal/game/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice sequence.ID = 10
	bob   sequence.ID = 20
	carol sequence.ID = 30
)

func TestTurnStructureNext(t *testing.T) {
	phase, ok := DefaultTurnStructure.Next(PhaseUntap)
	if !ok || phase != PhaseMain {
		t.Fatalf("expected MAIN after UNTAP, got %s (%v)", phase, ok)
	}

	if _, ok := DefaultTurnStructure.Next(PhaseMain); ok {
		t.Fatalf("expected MAIN to be the last phase")
	}

	assert.Panics(t, func() { SinglePhase(PhaseMain).Next(PhaseUntap) })
}

func TestParseTurnStructure(t *testing.T) {
	t.Run("valid names", func(t *testing.T) {
		ts, err := ParseTurnStructure([]string{"untap", " MAIN "})
		require.NoError(t, err)
		assert.Equal(t, DefaultTurnStructure, ts)
	})

	t.Run("unknown phase", func(t *testing.T) {
		_, err := ParseTurnStructure([]string{"UNTAP", "COMBAT"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown phase")
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseTurnStructure(nil)
		assert.Error(t, err)
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := ParseTurnStructure([]string{"MAIN", "MAIN"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "more than once")
	})
}

func TestAdvancePriorityCycle(t *testing.T) {
	ts := SinglePhase(PhaseMain)
	order := []sequence.ID{alice, bob}
	state := PriorityState{Active: alice, Priority: alice, Phase: PhaseMain, Turn: 1}

	expected := []PriorityState{
		{Active: alice, Priority: bob, Phase: PhaseMain, Turn: 1},
		{Active: bob, Priority: bob, Phase: PhaseMain, Turn: 2},
		{Active: bob, Priority: alice, Phase: PhaseMain, Turn: 2},
		{Active: alice, Priority: alice, Phase: PhaseMain, Turn: 3},
	}

	for i, exp := range expected {
		adv := ts.AdvancePriority(order, state, state.Priority)
		state = adv.State
		if state != exp {
			t.Fatalf("pass %d: expected %+v, got %+v", i+1, exp, state)
		}
	}
}

func TestAdvancePriorityPhases(t *testing.T) {
	order := []sequence.ID{alice, bob}
	state := PriorityState{Active: alice, Priority: alice, Phase: PhaseUntap, Turn: 1}

	adv := DefaultTurnStructure.AdvancePriority(order, state, alice)
	assert.False(t, adv.PhaseChanged)
	assert.Equal(t, bob, adv.State.Priority)

	adv = DefaultTurnStructure.AdvancePriority(order, adv.State, bob)
	assert.True(t, adv.PhaseChanged)
	assert.False(t, adv.NewTurn)
	assert.Equal(t, PhaseMain, adv.State.Phase)
	assert.Equal(t, alice, adv.State.Priority, "priority resets to the active player")

	adv = DefaultTurnStructure.AdvancePriority(order, adv.State, alice)
	adv = DefaultTurnStructure.AdvancePriority(order, adv.State, bob)
	assert.True(t, adv.NewTurn)
	assert.True(t, adv.PhaseChanged)
	assert.Equal(t, PriorityState{Active: bob, Priority: bob, Phase: PhaseUntap, Turn: 2}, adv.State)
}

func TestAdvancePriorityThreePlayers(t *testing.T) {
	ts := SinglePhase(PhaseMain)
	order := []sequence.ID{alice, bob, carol}

	// Bob is active, so priority goes bob -> carol -> alice before the window closes.
	state := PriorityState{Active: bob, Priority: bob, Phase: PhaseMain, Turn: 4}

	adv := ts.AdvancePriority(order, state, bob)
	assert.Equal(t, carol, adv.State.Priority)

	adv = ts.AdvancePriority(order, adv.State, carol)
	assert.Equal(t, alice, adv.State.Priority)
	assert.Equal(t, bob, adv.State.Active)

	adv = ts.AdvancePriority(order, adv.State, alice)
	assert.True(t, adv.NewTurn)
	assert.Equal(t, carol, adv.State.Active)
	assert.Equal(t, carol, adv.State.Priority)
	assert.Equal(t, 5, adv.State.Turn)
}

func TestAdvancePrioritySinglePlayer(t *testing.T) {
	ts := SinglePhase(PhaseMain)
	order := []sequence.ID{alice}
	state := PriorityState{Active: alice, Priority: alice, Phase: PhaseMain, Turn: 1}

	adv := ts.AdvancePriority(order, state, alice)
	assert.True(t, adv.NewTurn)
	assert.Equal(t, alice, adv.State.Active)
	assert.Equal(t, 2, adv.State.Turn)
}

func TestAdvancePriorityPanicsOnBrokenOrder(t *testing.T) {
	ts := SinglePhase(PhaseMain)
	order := []sequence.ID{alice, bob}

	assert.Panics(t, func() {
		ts.AdvancePriority(order, PriorityState{Active: alice, Priority: carol, Phase: PhaseMain}, carol)
	})
	assert.Panics(t, func() {
		ts.AdvancePriority(order, PriorityState{Active: carol, Priority: alice, Phase: PhaseMain}, alice)
	})
}
