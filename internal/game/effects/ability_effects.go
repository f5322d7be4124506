package effects

import (
	"fmt"

	"github.com/corrosion/corrosion-server-go/internal/game"
	"github.com/google/uuid"
)

func targets(ids []game.ID, id game.ID) bool {
	for _, target := range ids {
		if target == id {
			return true
		}
	}
	return false
}

// LoseAllAbilitiesEffect removes every ability from the target objects.
type LoseAllAbilitiesEffect struct {
	id        string
	targetIDs []game.ID
}

// NewLoseAllAbilitiesEffect creates an effect stripping the abilities of targets.
func NewLoseAllAbilitiesEffect(targetIDs ...game.ID) *LoseAllAbilitiesEffect {
	return &LoseAllAbilitiesEffect{
		id:        uuid.NewString(),
		targetIDs: append([]game.ID(nil), targetIDs...),
	}
}

func (e *LoseAllAbilitiesEffect) ID() string { return e.id }

// Layer identifies the layer in which the effect applies (Layer 6 - Ability)
func (e *LoseAllAbilitiesEffect) Layer() Layer { return LayerAbility }

func (e *LoseAllAbilitiesEffect) AppliesTo(obj game.Object) bool {
	return targets(e.targetIDs, obj.ID)
}

func (e *LoseAllAbilitiesEffect) Apply(obj game.Object) game.Object {
	obj.Abilities = map[game.ID]game.Ability{}
	return obj
}

// SetLandNameEffect renames target lands. Non-land objects are untouched.
type SetLandNameEffect struct {
	id        string
	name      string
	targetIDs []game.ID
}

// NewSetLandNameEffect creates an effect renaming target lands to name.
func NewSetLandNameEffect(name string, targetIDs ...game.ID) *SetLandNameEffect {
	return &SetLandNameEffect{
		id:        uuid.NewString(),
		name:      name,
		targetIDs: append([]game.ID(nil), targetIDs...),
	}
}

func (e *SetLandNameEffect) ID() string { return e.id }

// Layer identifies the layer in which the effect applies (Layer 3 - Text)
func (e *SetLandNameEffect) Layer() Layer { return LayerText }

func (e *SetLandNameEffect) AppliesTo(obj game.Object) bool {
	if !targets(e.targetIDs, obj.ID) {
		return false
	}
	switch obj.Details.(type) {
	case game.Land:
		return true
	case game.Spell:
		return false
	default:
		panic(fmt.Sprintf("unhandled object details %T", obj.Details))
	}
}

func (e *SetLandNameEffect) Apply(obj game.Object) game.Object {
	land := obj.Details.(game.Land)
	land.Name = e.name
	obj.Details = land
	return obj
}
