package game

import (
	"fmt"

	"github.com/corrosion/corrosion-server-go/internal/game/mana"
	"github.com/corrosion/corrosion-server-go/internal/game/sequence"
)

// ID identifies players, zones, objects and abilities.
type ID = sequence.ID

// Timestamp orders zone-entry events.
type Timestamp = sequence.Timestamp

// ZoneKind is the category tag of a zone.
type ZoneKind int

const (
	ZoneBattlefield ZoneKind = iota
	ZoneHand
)

func (k ZoneKind) String() string {
	switch k {
	case ZoneBattlefield:
		return "BATTLEFIELD"
	case ZoneHand:
		return "HAND"
	}
	return fmt.Sprintf("ZONE_%d", int(k))
}

// Zone is a container for objects. A hand is permanently bound to one player;
// the battlefield is shared and has no player.
type Zone struct {
	ID     ID
	Kind   ZoneKind
	Player ID
}

// Player describes a player seated in a game. Players are never removed, even
// after conceding.
type Player struct {
	ID   ID
	Name string
	Mana mana.Pool
}

// Details is the closed set of concrete object kinds. Every decision point
// switches over all variants and panics on anything else.
type Details interface {
	isDetails()
	// Kind is a short label used in logs and views.
	Kind() string
}

// Land is a land card. Tapped is only meaningful on the battlefield.
type Land struct {
	Name   string
	Tapped bool
}

func (Land) isDetails()   {}
func (Land) Kind() string { return "LAND" }

// Spell is any non-land card.
type Spell struct {
	Name string
}

func (Spell) isDetails()   {}
func (Spell) Kind() string { return "SPELL" }

// Ability is the closed set of activatable ability kinds.
type Ability interface {
	isAbility()
	Kind() string
}

// ManaAbility taps its source to add one mana of type Produces to the
// activating player's pool. The source must be an untapped land on the battlefield.
type ManaAbility struct {
	Produces mana.ManaType
}

func (ManaAbility) isAbility()   {}
func (ManaAbility) Kind() string { return "MANA" }

// manaAbilityYield is the amount a mana ability adds per activation.
const manaAbilityYield = 1

// Object is an in-play item instance.
//
// Objects do not survive zone changes: moving an object retires its ID and
// creates a new Object with a fresh ID and Timestamp carrying the same owner,
// details and abilities. References to the old ID are invalid afterwards.
type Object struct {
	ID        ID
	Zone      ID
	Owner     ID
	Timestamp Timestamp
	Details   Details
	Abilities map[ID]Ability
}

// Clone returns a copy of the object that shares no mutable state with it.
func (o Object) Clone() Object {
	cp := o
	if o.Abilities != nil {
		cp.Abilities = make(map[ID]Ability, len(o.Abilities))
		for id, ability := range o.Abilities {
			cp.Abilities[id] = ability
		}
	}
	return cp
}

// Name returns the printed name carried by the object's details.
func (o Object) Name() string {
	switch d := o.Details.(type) {
	case Land:
		return d.Name
	case Spell:
		return d.Name
	default:
		panic(fmt.Sprintf("unhandled object details %T", o.Details))
	}
}

// ObjectSpec describes an object to place into a game during setup.
type ObjectSpec struct {
	Zone      ID
	Owner     ID
	Details   Details
	Abilities []Ability
}

// Status is the game's current interaction status.
type Status int

const (
	StatusAwaitingAction Status = iota
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusAwaitingAction:
		return "AWAITING_ACTION"
	case StatusEnded:
		return "ENDED"
	}
	return fmt.Sprintf("STATUS_%d", int(s))
}
