package effects

import (
	"testing"

	"github.com/corrosion/corrosion-server-go/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoseAllAbilitiesEffect(t *testing.T) {
	effect := NewLoseAllAbilitiesEffect(7, 9)
	require.NotEmpty(t, effect.ID())
	assert.Equal(t, LayerAbility, effect.Layer())

	t.Run("applies to targets only", func(t *testing.T) {
		obj := baseLand()
		assert.True(t, effect.AppliesTo(obj))
		obj.ID = 8
		assert.False(t, effect.AppliesTo(obj))
	})

	t.Run("strips abilities", func(t *testing.T) {
		obj := effect.Apply(baseLand())
		assert.Empty(t, obj.Abilities)
		assert.NotNil(t, obj.Abilities)
	})

	t.Run("each instance has its own id", func(t *testing.T) {
		assert.NotEqual(t, effect.ID(), NewLoseAllAbilitiesEffect(7, 9).ID())
	})
}

func TestSetLandNameEffect(t *testing.T) {
	effect := NewSetLandNameEffect("Island", 7)
	assert.Equal(t, LayerText, effect.Layer())
	assert.NotEqual(t, effect.ID(), NewSetLandNameEffect("Island", 7).ID())

	land := baseLand()
	require.True(t, effect.AppliesTo(land))
	renamed := effect.Apply(land)
	assert.Equal(t, "Island", renamed.Name())
	assert.Equal(t, "Forest", land.Name())

	spell := game.Object{ID: 7, Details: game.Spell{Name: "Shock"}}
	assert.False(t, effect.AppliesTo(spell), "spells keep their names")

	other := baseLand()
	other.ID = 99
	assert.False(t, effect.AppliesTo(other))
}
