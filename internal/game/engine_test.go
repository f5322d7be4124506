package game_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/corrosion/corrosion-server-go/internal/game"
	"github.com/corrosion/corrosion-server-go/internal/game/effects"
	"github.com/corrosion/corrosion-server-go/internal/game/mana"
	"github.com/corrosion/corrosion-server-go/internal/game/rules"
	"github.com/corrosion/corrosion-server-go/internal/game/visibility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memoryRecorder struct {
	mu      sync.Mutex
	records []game.ActionRecord
	err     error
}

func (r *memoryRecorder) RecordAction(_ context.Context, record game.ActionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return r.err
}

func startTestGame(t *testing.T, engine *game.Engine) (string, game.ID, game.ID) {
	t.Helper()
	gameID, err := engine.StartGame([]string{"Alice", "Bob"})
	require.NoError(t, err)
	state, err := engine.State(gameID)
	require.NoError(t, err)
	return gameID, state.TurnOrder[0], state.TurnOrder[1]
}

func TestEngineStartAndPass(t *testing.T) {
	engine := game.NewEngine(zaptest.NewLogger(t), game.EngineConfig{})
	gameID, alice, bob := startTestGame(t, engine)
	ctx := context.Background()

	assert.Equal(t, []string{gameID}, engine.Games())

	require.NoError(t, engine.ProcessAction(ctx, gameID, alice, game.PassPriority{}))

	err := engine.ProcessAction(ctx, gameID, alice, game.PassPriority{})
	reason, ok := game.RejectionReason(err)
	require.True(t, ok)
	assert.Equal(t, game.ReasonNotPriorityHolder, reason)

	require.NoError(t, engine.ProcessAction(ctx, gameID, bob, game.PassPriority{}))
	state, err := engine.State(gameID)
	require.NoError(t, err)
	assert.Equal(t, rules.PhaseMain, state.Phase)
	assert.Equal(t, alice, state.PriorityPlayer)
}

func TestEngineUnknownGame(t *testing.T) {
	engine := game.NewEngine(nil, game.EngineConfig{})
	ctx := context.Background()

	err := engine.ProcessAction(ctx, "missing", 1, game.PassPriority{})
	assert.ErrorIs(t, err, game.ErrGameNotFound)
	_, err = engine.State("missing")
	assert.ErrorIs(t, err, game.ErrGameNotFound)
	_, err = engine.View("missing", 1)
	assert.ErrorIs(t, err, game.ErrGameNotFound)
	assert.ErrorIs(t, engine.EndGame("missing"), game.ErrGameNotFound)
}

func TestEngineMaxGames(t *testing.T) {
	engine := game.NewEngine(zaptest.NewLogger(t), game.EngineConfig{MaxGames: 1})

	first, err := engine.StartGame([]string{"Alice"})
	require.NoError(t, err)
	_, err = engine.StartGame([]string{"Bob"})
	assert.ErrorIs(t, err, game.ErrTooManyGames)

	require.NoError(t, engine.EndGame(first))
	_, err = engine.StartGame([]string{"Bob"})
	assert.NoError(t, err)

	_, err = engine.StartGame(nil)
	assert.Error(t, err)
}

func TestEngineNotificationsAndEvents(t *testing.T) {
	engine := game.NewEngine(zaptest.NewLogger(t), game.EngineConfig{})
	gameID, alice, _ := startTestGame(t, engine)

	var notifications []game.Notification
	engine.SetNotificationHandler(func(n game.Notification) {
		// The handler may call back into the engine.
		_, err := engine.View(n.GameID, n.PlayerID)
		assert.NoError(t, err)
		notifications = append(notifications, n)
	})
	var published []rules.Event
	engine.Events().Subscribe(func(e rules.Event) {
		published = append(published, e)
	})

	objs, err := engine.Seed(gameID, alice, game.ZoneHand, game.ObjectSpec{Details: game.Land{Name: "Forest"}})
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Empty(t, published, "setup events are not published")

	require.NoError(t, engine.ProcessAction(context.Background(), gameID, alice, game.PlayLand{Object: objs[0].ID}))

	require.Len(t, notifications, 1)
	assert.Equal(t, gameID, notifications[0].GameID)
	assert.Equal(t, "PLAY_LAND", notifications[0].Action)
	require.Len(t, published, 1)
	assert.Equal(t, rules.EventZoneChange, published[0].Type)
	assert.Equal(t, gameID, published[0].GameID)
	assert.Equal(t, objs[0].ID, published[0].PreviousID)

	err = engine.ProcessAction(context.Background(), gameID, alice, game.PlayLand{Object: objs[0].ID})
	assert.True(t, game.IsNotAllowed(err))
	assert.Len(t, notifications, 1, "rejections do not notify")
}

func TestEngineRecorder(t *testing.T) {
	t.Run("records accepted and rejected actions", func(t *testing.T) {
		recorder := &memoryRecorder{}
		engine := game.NewEngine(zaptest.NewLogger(t), game.EngineConfig{Recorder: recorder})
		gameID, alice, _ := startTestGame(t, engine)
		ctx := context.Background()

		require.NoError(t, engine.ProcessAction(ctx, gameID, alice, game.PassPriority{}))
		require.Error(t, engine.ProcessAction(ctx, gameID, alice, game.PassPriority{}))

		require.Len(t, recorder.records, 2)
		assert.True(t, recorder.records[0].Accepted)
		assert.Equal(t, alice, recorder.records[0].PlayerID)
		assert.Equal(t, gameID, recorder.records[0].GameID)
		assert.False(t, recorder.records[1].Accepted)
		assert.Contains(t, recorder.records[1].Reason, string(game.ReasonNotPriorityHolder))
	})

	t.Run("recorder failure does not change outcome", func(t *testing.T) {
		recorder := &memoryRecorder{err: errors.New("database unavailable")}
		engine := game.NewEngine(zaptest.NewLogger(t), game.EngineConfig{Recorder: recorder})
		gameID, alice, _ := startTestGame(t, engine)

		assert.NoError(t, engine.ProcessAction(context.Background(), gameID, alice, game.Concede{}))
		state, err := engine.State(gameID)
		require.NoError(t, err)
		assert.Equal(t, game.StatusEnded, state.Status)
	})
}

func TestEngineViewsAndEffects(t *testing.T) {
	var layers []*effects.LayerSystem
	engine := game.NewEngine(zaptest.NewLogger(t), game.EngineConfig{
		Projector: visibility.HiddenHands{},
		NewResolver: func() game.ObjectResolver {
			ls := effects.NewLayerSystem()
			layers = append(layers, ls)
			return ls
		},
	})
	gameID, alice, bob := startTestGame(t, engine)
	require.Len(t, layers, 1)

	hand, err := engine.Seed(gameID, bob, game.ZoneHand, game.ObjectSpec{Details: game.Spell{Name: "Shock"}})
	require.NoError(t, err)
	field, err := engine.Seed(gameID, alice, game.ZoneBattlefield, game.ObjectSpec{
		Details:   game.Land{Name: "Forest"},
		Abilities: []game.Ability{game.ManaAbility{Produces: mana.ManaGreen}},
	})
	require.NoError(t, err)

	view, err := engine.View(gameID, alice)
	require.NoError(t, err)
	assert.NotContains(t, view.Objects, hand[0].ID)
	assert.Contains(t, view.Objects, field[0].ID)

	_, err = engine.View(gameID, 999)
	assert.ErrorIs(t, err, game.ErrPlayerNotFound)

	layers[0].AddEffect(effects.NewSetLandNameEffect("Island", field[0].ID), field[0].Timestamp)
	obj, err := engine.Object(gameID, field[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Island", obj.Name())

	_, err = engine.Object(gameID, 999)
	assert.ErrorIs(t, err, game.ErrObjectNotFound)
}

func TestEngineSerializesConcurrentActions(t *testing.T) {
	engine := game.NewEngine(zaptest.NewLogger(t), game.EngineConfig{})
	gameID, alice, bob := startTestGame(t, engine)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(player game.ID) {
			defer wg.Done()
			if err := engine.ProcessAction(context.Background(), gameID, player, game.PassPriority{}); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}([]game.ID{alice, bob}[i%2])
	}
	wg.Wait()

	state, err := engine.State(gameID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, accepted, 1)
	assert.Equal(t, game.StatusAwaitingAction, state.Status)
	assert.Contains(t, []game.ID{alice, bob}, state.PriorityPlayer)
}
