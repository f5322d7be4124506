package rules

import (
	"fmt"
	"strings"

	"github.com/corrosion/corrosion-server-go/internal/game/sequence"
)

// Phase represents an ordered stage within a turn.
type Phase int

const (
	PhaseUntap Phase = iota
	PhaseMain
)

var phaseNames = map[Phase]string{
	PhaseUntap: "UNTAP",
	PhaseMain:  "MAIN",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// ParsePhase converts a phase name (case-insensitive) into a Phase.
func ParsePhase(name string) (Phase, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for phase, phaseName := range phaseNames {
		if phaseName == name {
			return phase, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", name)
}

// TurnStructure is the linear sequence of phases making up one turn.
type TurnStructure []Phase

// DefaultTurnStructure is untap followed by main.
var DefaultTurnStructure = TurnStructure{PhaseUntap, PhaseMain}

// SinglePhase returns a turn structure consisting of exactly one phase.
func SinglePhase(p Phase) TurnStructure {
	return TurnStructure{p}
}

// ParseTurnStructure builds a turn structure from phase names.
func ParseTurnStructure(names []string) (TurnStructure, error) {
	structure := make(TurnStructure, 0, len(names))
	for _, name := range names {
		phase, err := ParsePhase(name)
		if err != nil {
			return nil, err
		}
		structure = append(structure, phase)
	}
	if err := structure.Validate(); err != nil {
		return nil, err
	}
	return structure, nil
}

// Validate checks that the structure is non-empty and lists each phase once.
func (ts TurnStructure) Validate() error {
	if len(ts) == 0 {
		return fmt.Errorf("turn structure must contain at least one phase")
	}
	seen := make(map[Phase]bool, len(ts))
	for _, p := range ts {
		if seen[p] {
			return fmt.Errorf("phase %s appears more than once", p)
		}
		seen[p] = true
	}
	return nil
}

// First returns the phase every turn begins with.
func (ts TurnStructure) First() Phase {
	return ts[0]
}

// Next returns the phase following p within the same turn.
// The boolean is false when p is the last phase, signalling the turn should advance.
func (ts TurnStructure) Next(p Phase) (Phase, bool) {
	for i, phase := range ts {
		if phase == p {
			if i+1 < len(ts) {
				return ts[i+1], true
			}
			return 0, false
		}
	}
	panic(fmt.Sprintf("phase %s is not part of the turn structure", p))
}

// PriorityState is the turn-tracking portion of a game: who is active, who
// holds priority, which phase is in progress and which turn it is.
type PriorityState struct {
	Active   sequence.ID
	Priority sequence.ID
	Phase    Phase
	Turn     int
}

// Advance describes the outcome of a priority pass.
type Advance struct {
	State        PriorityState
	PhaseChanged bool
	NewTurn      bool
}

// AdvancePriority computes the state after the priority holder passes.
//
// Priority moves to the next player in order. When it would come back around to
// the active player, the active player's window has closed: the game moves to the
// next phase with priority reset to the active player, or, after the last phase,
// the next player in order becomes active and receives priority.
//
// Players remain in order after conceding, so priority can route to them.
// Both the acting and the active player must appear in order; anything else is a
// programming error and panics.
func (ts TurnStructure) AdvancePriority(order []sequence.ID, current PriorityState, acting sequence.ID) Advance {
	n := len(order)
	i := indexOf(order, acting)
	if i < 0 {
		panic(fmt.Sprintf("priority player %d is missing from turn order", acting))
	}
	a := indexOf(order, current.Active)
	if a < 0 {
		panic(fmt.Sprintf("active player %d is missing from turn order", current.Active))
	}

	next := order[(i+1)%n]
	if next != current.Active {
		state := current
		state.Priority = next
		return Advance{State: state}
	}

	if phase, ok := ts.Next(current.Phase); ok {
		state := current
		state.Phase = phase
		state.Priority = current.Active
		return Advance{State: state, PhaseChanged: true}
	}

	nextActive := order[(a+1)%n]
	return Advance{
		State: PriorityState{
			Active:   nextActive,
			Priority: nextActive,
			Phase:    ts.First(),
			Turn:     current.Turn + 1,
		},
		PhaseChanged: current.Phase != ts.First(),
		NewTurn:      true,
	}
}

func indexOf(order []sequence.ID, id sequence.ID) int {
	for i, candidate := range order {
		if candidate == id {
			return i
		}
	}
	return -1
}
