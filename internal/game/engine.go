package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/corrosion/corrosion-server-go/internal/game/rules"
	"github.com/corrosion/corrosion-server-go/internal/game/sequence"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrGameNotFound is returned for operations on an unknown or ended game.
	ErrGameNotFound = errors.New("game not found")
	// ErrTooManyGames is returned by StartGame once the engine is at capacity.
	ErrTooManyGames = errors.New("too many active games")
	// ErrObjectNotFound is returned by Object for an unknown object ID.
	ErrObjectNotFound = errors.New("object not found")
	// ErrPlayerNotFound is returned when a player is not seated in the game.
	ErrPlayerNotFound = errors.New("player not found")
)

// ActionRecord describes one action attempt, accepted or not.
type ActionRecord struct {
	GameID     string
	PlayerID   ID
	Action     Action
	Accepted   bool
	Reason     string
	Turn       int
	Phase      rules.Phase
	RecordedAt time.Time
}

// ActionRecorder persists action attempts. A failing recorder never changes
// the outcome of the action.
type ActionRecorder interface {
	RecordAction(ctx context.Context, record ActionRecord) error
}

// Notification is delivered to the notification handler after an accepted action.
type Notification struct {
	GameID    string
	PlayerID  ID
	Action    string
	Events    []rules.Event
	Timestamp time.Time
}

// NotificationHandler is a function that handles game notifications.
type NotificationHandler func(notification Notification)

// EngineConfig configures an Engine. Zero values select defaults.
type EngineConfig struct {
	Counters      *sequence.Counters
	TurnStructure rules.TurnStructure
	// MaxGames caps concurrently hosted games; 0 means unlimited.
	MaxGames int
	// NewResolver builds the continuous-effects resolver for each new game.
	NewResolver func() ObjectResolver
	Projector   Projector
	Recorder    ActionRecorder
}

type session struct {
	mu      sync.Mutex
	game    *Game
	pending []rules.Event
}

// Engine hosts many games and serializes the actions submitted to each one.
// It is safe for concurrent use.
type Engine struct {
	logger *zap.Logger
	cfg    EngineConfig
	bus    *rules.EventBus

	mu                  sync.RWMutex
	games               map[string]*session
	notificationHandler NotificationHandler
}

// NewEngine creates an engine. A nil logger disables logging.
func NewEngine(logger *zap.Logger, cfg EngineConfig) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Counters == nil {
		cfg.Counters = sequence.NewCounters()
	}
	if len(cfg.TurnStructure) == 0 {
		cfg.TurnStructure = rules.DefaultTurnStructure
	}
	return &Engine{
		logger: logger,
		cfg:    cfg,
		bus:    rules.NewEventBus(),
		games:  make(map[string]*session),
	}
}

// SetNotificationHandler sets the handler for game notifications.
// The handler runs synchronously after the game lock is released, so it may
// call back into the engine.
func (e *Engine) SetNotificationHandler(handler NotificationHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notificationHandler = handler
}

// Events returns the bus on which every accepted action's events are published.
func (e *Engine) Events() *rules.EventBus {
	return e.bus
}

// StartGame creates a game for the roster and returns its ID.
func (e *Engine) StartGame(players []string) (string, error) {
	sess := &session{}
	opts := []Option{
		WithTurnStructure(e.cfg.TurnStructure),
		WithListener(func(evt rules.Event) {
			sess.pending = append(sess.pending, evt)
		}),
	}
	if e.cfg.NewResolver != nil {
		opts = append(opts, WithResolver(e.cfg.NewResolver()))
	}
	if e.cfg.Projector != nil {
		opts = append(opts, WithProjector(e.cfg.Projector))
	}

	g, err := New(e.cfg.Counters, players, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create game: %w", err)
	}
	sess.game = g

	gameID := uuid.NewString()

	e.mu.Lock()
	if e.cfg.MaxGames > 0 && len(e.games) >= e.cfg.MaxGames {
		e.mu.Unlock()
		return "", ErrTooManyGames
	}
	e.games[gameID] = sess
	e.mu.Unlock()

	e.logger.Info("engine started game",
		zap.String("game_id", gameID),
		zap.Strings("players", players),
		zap.Stringer("phase", g.Phase()),
	)
	return gameID, nil
}

func (e *Engine) session(gameID string) (*session, error) {
	e.mu.RLock()
	sess, ok := e.games[gameID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrGameNotFound)
	}
	return sess, nil
}

// Seed places objects owned by playerID into that player's hand or onto the
// battlefield.
func (e *Engine) Seed(gameID string, playerID ID, zone ZoneKind, specs ...ObjectSpec) ([]Object, error) {
	sess, err := e.session(gameID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	defer func() { sess.pending = nil }()

	g := sess.game
	if _, ok := g.Player(playerID); !ok {
		return nil, fmt.Errorf("player %d: %w", playerID, ErrPlayerNotFound)
	}

	var zoneID ID
	switch zone {
	case ZoneBattlefield:
		zoneID = g.Battlefield()
	case ZoneHand:
		hand, ok := g.HandOf(playerID)
		if !ok {
			panic(fmt.Sprintf("unable to locate hand of player %d", playerID))
		}
		zoneID = hand
	default:
		return nil, fmt.Errorf("cannot seed zone %s", zone)
	}

	created := make([]Object, 0, len(specs))
	for _, spec := range specs {
		spec.Zone = zoneID
		spec.Owner = playerID
		obj, err := g.CreateObject(spec)
		if err != nil {
			return created, fmt.Errorf("failed to seed object: %w", err)
		}
		created = append(created, obj)
	}

	e.logger.Debug("seeded objects",
		zap.String("game_id", gameID),
		zap.Uint64("player_id", uint64(playerID)),
		zap.Stringer("zone", zone),
		zap.Int("count", len(created)),
	)
	return created, nil
}

// ProcessAction applies one action to a game. Rejections are returned as
// *ActionError and leave the game unchanged.
func (e *Engine) ProcessAction(ctx context.Context, gameID string, playerID ID, action Action) error {
	if action == nil {
		return errors.New("action is required")
	}
	sess, err := e.session(gameID)
	if err != nil {
		return err
	}

	out := e.apply(sess, playerID, action)
	applyErr, events := out.err, out.events

	if e.cfg.Recorder != nil {
		record := ActionRecord{
			GameID:     gameID,
			PlayerID:   playerID,
			Action:     action,
			Accepted:   applyErr == nil,
			Turn:       out.turn,
			Phase:      out.phase,
			RecordedAt: time.Now().UTC(),
		}
		if applyErr != nil {
			record.Reason = applyErr.Error()
		}
		if err := e.cfg.Recorder.RecordAction(ctx, record); err != nil {
			e.logger.Warn("failed to record action",
				zap.String("game_id", gameID),
				zap.String("action", action.Name()),
				zap.Error(err),
			)
		}
	}

	if applyErr != nil {
		e.logger.Info("action rejected",
			zap.String("game_id", gameID),
			zap.Uint64("player_id", uint64(playerID)),
			zap.String("action", action.Name()),
			zap.Error(applyErr),
		)
		return applyErr
	}

	e.logger.Debug("action accepted",
		zap.String("game_id", gameID),
		zap.Uint64("player_id", uint64(playerID)),
		zap.String("action", action.Name()),
		zap.Int("events", len(events)),
	)

	for i := range events {
		events[i].GameID = gameID
	}
	e.bus.PublishBatch(events)

	e.mu.RLock()
	handler := e.notificationHandler
	e.mu.RUnlock()
	if handler != nil {
		handler(Notification{
			GameID:    gameID,
			PlayerID:  playerID,
			Action:    action.Name(),
			Events:    events,
			Timestamp: time.Now(),
		})
	}
	return nil
}

type outcome struct {
	err    error
	events []rules.Event
	turn   int
	phase  rules.Phase
}

// apply runs the action under the session lock and drains the events it produced.
func (e *Engine) apply(sess *session, playerID ID, action Action) outcome {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	defer func() { sess.pending = nil }()

	err := sess.game.Apply(playerID, action)
	return outcome{
		err:    err,
		events: sess.pending,
		turn:   sess.game.Turn(),
		phase:  sess.game.Phase(),
	}
}

// State returns the full state of a game.
func (e *Engine) State(gameID string) (State, error) {
	sess, err := e.session(gameID)
	if err != nil {
		return State{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.game.State(), nil
}

// View returns the game as seen by one of its players.
func (e *Engine) View(gameID string, playerID ID) (State, error) {
	sess, err := e.session(gameID)
	if err != nil {
		return State{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if _, ok := sess.game.Player(playerID); !ok {
		return State{}, fmt.Errorf("player %d: %w", playerID, ErrPlayerNotFound)
	}
	return sess.game.ViewAsPlayer(playerID), nil
}

// Object returns the effective view of a single object.
func (e *Engine) Object(gameID string, objectID ID) (Object, error) {
	sess, err := e.session(gameID)
	if err != nil {
		return Object{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	obj, ok := sess.game.ViewObject(objectID)
	if !ok {
		return Object{}, fmt.Errorf("object %d: %w", objectID, ErrObjectNotFound)
	}
	return obj, nil
}

// Games returns the IDs of all hosted games.
func (e *Engine) Games() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.games))
	for id := range e.games {
		ids = append(ids, id)
	}
	return ids
}

// EndGame stops hosting a game and releases its slot.
func (e *Engine) EndGame(gameID string) error {
	e.mu.Lock()
	sess, ok := e.games[gameID]
	if ok {
		delete(e.games, gameID)
	}
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("game %s: %w", gameID, ErrGameNotFound)
	}

	sess.mu.Lock()
	status := sess.game.Status()
	sess.mu.Unlock()

	e.logger.Info("engine ended game",
		zap.String("game_id", gameID),
		zap.Stringer("status", status),
	)
	return nil
}
