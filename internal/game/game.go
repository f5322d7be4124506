package game

import (
	"errors"
	"fmt"

	"github.com/corrosion/corrosion-server-go/internal/game/mana"
	"github.com/corrosion/corrosion-server-go/internal/game/rules"
	"github.com/corrosion/corrosion-server-go/internal/game/sequence"
)

// State is the complete observable state of a game.
//
// A State returned by Game.State or Game.ViewAsPlayer is a deep copy; mutating
// it never affects the game.
type State struct {
	Zones     map[ID]Zone
	Players   map[ID]Player
	Objects   map[ID]Object
	TurnOrder []ID

	ActivePlayer ID
	// PriorityPlayer is sequence.None while no player holds priority.
	PriorityPlayer ID
	Phase          rules.Phase
	Turn           int
	Status         Status
	ConcededBy     ID

	// Hidden counts objects withheld from a player view, keyed by zone.
	// It is nil in the full state.
	Hidden map[ID]int
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	cp := s
	cp.Zones = make(map[ID]Zone, len(s.Zones))
	for id, zone := range s.Zones {
		cp.Zones[id] = zone
	}
	cp.Players = make(map[ID]Player, len(s.Players))
	for id, player := range s.Players {
		cp.Players[id] = player
	}
	cp.Objects = make(map[ID]Object, len(s.Objects))
	for id, object := range s.Objects {
		cp.Objects[id] = object.Clone()
	}
	cp.TurnOrder = append([]ID(nil), s.TurnOrder...)
	if s.Hidden != nil {
		cp.Hidden = make(map[ID]int, len(s.Hidden))
		for id, n := range s.Hidden {
			cp.Hidden[id] = n
		}
	}
	return cp
}

// Game is the authoritative state machine for one match.
//
// A Game is not safe for concurrent use. Exactly one caller may mutate it at a
// time; Engine provides that discipline for hosts running many games.
type Game struct {
	counters  *sequence.Counters
	turns     rules.TurnStructure
	resolver  ObjectResolver
	projector Projector
	listener  rules.Listener

	// Zones are fixed at construction.
	battlefield ID
	hands       map[ID]ID

	state State
}

// Option configures a Game at construction.
type Option func(*Game)

// WithTurnStructure replaces the default untap/main turn structure.
func WithTurnStructure(ts rules.TurnStructure) Option {
	return func(g *Game) {
		g.turns = ts
	}
}

// WithResolver installs the continuous-effects resolver used by ViewObject.
func WithResolver(r ObjectResolver) Option {
	return func(g *Game) {
		g.resolver = r
	}
}

// WithProjector installs the hidden-information projector used by ViewAsPlayer.
func WithProjector(p Projector) Option {
	return func(g *Game) {
		g.projector = p
	}
}

// WithListener registers a callback receiving the rules events produced by
// each accepted action or setup call, after the state has been updated.
func WithListener(l rules.Listener) Option {
	return func(g *Game) {
		g.listener = l
	}
}

// New creates a game for the given roster. One battlefield and one hand per
// player are created; the first player is active and holds priority.
func New(counters *sequence.Counters, roster []string, opts ...Option) (*Game, error) {
	if counters == nil {
		return nil, errors.New("counters are required")
	}
	if len(roster) == 0 {
		return nil, errors.New("at least 1 player required")
	}

	g := &Game{
		counters: counters,
		turns:    rules.DefaultTurnStructure,
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.turns.Validate(); err != nil {
		return nil, fmt.Errorf("invalid turn structure: %w", err)
	}

	g.state = State{
		Zones:     make(map[ID]Zone, len(roster)+1),
		Players:   make(map[ID]Player, len(roster)),
		Objects:   make(map[ID]Object),
		TurnOrder: make([]ID, 0, len(roster)),
		Phase:     g.turns.First(),
		Turn:      1,
		Status:    StatusAwaitingAction,
	}

	battlefield := Zone{ID: counters.NextID(), Kind: ZoneBattlefield}
	g.state.Zones[battlefield.ID] = battlefield
	g.battlefield = battlefield.ID
	g.hands = make(map[ID]ID, len(roster))

	for _, name := range roster {
		player := Player{ID: counters.NextID(), Name: name}
		g.state.Players[player.ID] = player
		g.state.TurnOrder = append(g.state.TurnOrder, player.ID)

		hand := Zone{ID: counters.NextID(), Kind: ZoneHand, Player: player.ID}
		g.state.Zones[hand.ID] = hand
		g.hands[player.ID] = hand.ID
	}

	first := g.state.TurnOrder[0]
	g.state.ActivePlayer = first
	g.state.PriorityPlayer = first

	return g, nil
}

// State returns a deep copy of the full game state.
func (g *Game) State() State {
	return g.state.Clone()
}

// TurnStructure returns the phases of one turn.
func (g *Game) TurnStructure() rules.TurnStructure {
	return append(rules.TurnStructure(nil), g.turns...)
}

// Status returns the current interaction status.
func (g *Game) Status() Status {
	return g.state.Status
}

// ActivePlayer returns the player whose turn is underway.
func (g *Game) ActivePlayer() ID {
	return g.state.ActivePlayer
}

// PriorityPlayer returns the player holding priority, if any.
func (g *Game) PriorityPlayer() (ID, bool) {
	return g.state.PriorityPlayer, g.state.PriorityPlayer != sequence.None
}

// Phase returns the phase in progress.
func (g *Game) Phase() rules.Phase {
	return g.state.Phase
}

// Turn returns the current turn number, starting at 1.
func (g *Game) Turn() int {
	return g.state.Turn
}

// TurnOrder returns the fixed seating order.
func (g *Game) TurnOrder() []ID {
	return append([]ID(nil), g.state.TurnOrder...)
}

// Player looks up a player by ID.
func (g *Game) Player(id ID) (Player, bool) {
	p, ok := g.state.Players[id]
	return p, ok
}

// FindZone returns a zone matching the predicate, if one exists.
func (g *Game) FindZone(pred func(Zone) bool) (Zone, bool) {
	for _, zone := range g.state.Zones {
		if pred(zone) {
			return zone, true
		}
	}
	return Zone{}, false
}

// HandOf returns the ID of the player's hand.
func (g *Game) HandOf(player ID) (ID, bool) {
	hand, ok := g.hands[player]
	return hand, ok
}

// Battlefield returns the ID of the shared battlefield.
func (g *Game) Battlefield() ID {
	return g.battlefield
}

// CreateObject places a new object into an existing zone with a fresh ID and
// timestamp. Each ability receives its own ID.
func (g *Game) CreateObject(spec ObjectSpec) (Object, error) {
	zone, ok := g.state.Zones[spec.Zone]
	if !ok {
		return Object{}, fmt.Errorf("zone %d not found", spec.Zone)
	}
	if _, ok := g.state.Players[spec.Owner]; !ok {
		return Object{}, fmt.Errorf("owner %d not found", spec.Owner)
	}
	if zone.Kind == ZoneHand && zone.Player != spec.Owner {
		return Object{}, fmt.Errorf("hand %d belongs to player %d, not %d", zone.ID, zone.Player, spec.Owner)
	}
	if spec.Details == nil {
		return Object{}, errors.New("object details are required")
	}

	abilities := make(map[ID]Ability, len(spec.Abilities))
	for _, ability := range spec.Abilities {
		switch a := ability.(type) {
		case nil:
			return Object{}, errors.New("ability must not be nil")
		case ManaAbility:
			if _, err := mana.ParseManaType(string(a.Produces)); err != nil {
				return Object{}, fmt.Errorf("invalid mana ability: %w", err)
			}
		default:
			panic(fmt.Sprintf("unhandled ability %T", ability))
		}
		abilities[g.counters.NextID()] = ability
	}

	obj := Object{
		ID:        g.counters.NextID(),
		Zone:      zone.ID,
		Owner:     spec.Owner,
		Timestamp: g.counters.NextTimestamp(),
		Details:   spec.Details,
		Abilities: abilities,
	}
	g.state.Objects[obj.ID] = obj

	evt := rules.NewEvent(rules.EventObjectCreated, spec.Owner, obj.ID)
	evt.ZoneID = zone.ID
	g.emit(evt)

	return obj.Clone(), nil
}

// Apply validates and performs one player action.
//
// Every precondition is checked before anything is mutated, so a rejected
// action (an *ActionError) leaves the game exactly as it was.
func (g *Game) Apply(playerID ID, action Action) error {
	if action == nil {
		panic("nil action")
	}
	if g.state.Status != StatusAwaitingAction {
		return notAllowed(action, ReasonGameOver)
	}
	if _, ok := g.state.Players[playerID]; !ok {
		return notAllowed(action, ReasonUnknownPlayer)
	}

	switch a := action.(type) {
	case Concede:
		return g.concede(playerID)
	case PassPriority:
		return g.passPriority(a, playerID)
	case PlayLand:
		return g.playLand(a, playerID)
	case ActivateAbility:
		return g.activateAbility(a, playerID)
	default:
		panic(fmt.Sprintf("unhandled action %T", action))
	}
}

// checkPriority rejects the action unless playerID currently holds priority.
func (g *Game) checkPriority(action Action, playerID ID) error {
	switch g.state.PriorityPlayer {
	case sequence.None:
		return notAllowed(action, ReasonNoPriority)
	case playerID:
		return nil
	default:
		return notAllowed(action, ReasonNotPriorityHolder)
	}
}

func (g *Game) concede(playerID ID) error {
	g.state.Status = StatusEnded
	g.state.ConcededBy = playerID

	evt := rules.NewEvent(rules.EventPlayerConceded, playerID, sequence.None)
	evt.Turn = g.state.Turn
	g.emit(evt)
	return nil
}

func (g *Game) passPriority(action PassPriority, playerID ID) error {
	if err := g.checkPriority(action, playerID); err != nil {
		return err
	}

	before := rules.PriorityState{
		Active:   g.state.ActivePlayer,
		Priority: g.state.PriorityPlayer,
		Phase:    g.state.Phase,
		Turn:     g.state.Turn,
	}
	adv := g.turns.AdvancePriority(g.state.TurnOrder, before, playerID)

	g.state.ActivePlayer = adv.State.Active
	g.state.PriorityPlayer = adv.State.Priority
	g.state.Phase = adv.State.Phase
	g.state.Turn = adv.State.Turn

	events := []rules.Event{rules.NewEvent(rules.EventPriorityPassed, playerID, sequence.None)}
	if adv.NewTurn {
		evt := rules.NewEvent(rules.EventBeginTurn, adv.State.Active, sequence.None)
		evt.Turn = adv.State.Turn
		events = append(events, evt)
	}
	if adv.PhaseChanged {
		evt := rules.NewEvent(rules.EventPhaseChanged, adv.State.Active, sequence.None)
		evt.Phase = adv.State.Phase
		evt.Turn = adv.State.Turn
		events = append(events, evt)
	}
	g.emit(events...)
	return nil
}

func (g *Game) playLand(action PlayLand, playerID ID) error {
	if err := g.checkPriority(action, playerID); err != nil {
		return err
	}

	handID, ok := g.HandOf(playerID)
	if !ok {
		panic(fmt.Sprintf("unable to locate hand of player %d", playerID))
	}
	battlefieldID := g.Battlefield()

	obj, ok := g.state.Objects[action.Object]
	if !ok {
		return notAllowed(action, ReasonObjectNotFound)
	}
	if obj.Zone != handID {
		return notAllowed(action, ReasonNotInHand)
	}
	switch obj.Details.(type) {
	case Land:
	case Spell:
		return notAllowed(action, ReasonNotALand)
	default:
		panic(fmt.Sprintf("unhandled object details %T", obj.Details))
	}

	moved := g.moveObject(obj, battlefieldID)

	evt := rules.NewEvent(rules.EventZoneChange, playerID, moved.ID)
	evt.PreviousID = obj.ID
	evt.ZoneID = battlefieldID
	g.emit(evt)
	return nil
}

// moveObject retires obj and inserts a replacement with a fresh identity and
// timestamp in the destination zone.
func (g *Game) moveObject(obj Object, zoneID ID) Object {
	delete(g.state.Objects, obj.ID)

	moved := Object{
		ID:        g.counters.NextID(),
		Zone:      zoneID,
		Owner:     obj.Owner,
		Timestamp: g.counters.NextTimestamp(),
		Details:   obj.Details,
		Abilities: obj.Abilities,
	}
	g.state.Objects[moved.ID] = moved
	return moved
}

func (g *Game) activateAbility(action ActivateAbility, playerID ID) error {
	if err := g.checkPriority(action, playerID); err != nil {
		return err
	}

	obj, ok := g.state.Objects[action.Object]
	if !ok {
		return notAllowed(action, ReasonObjectNotFound)
	}
	if obj.Owner != playerID {
		return notAllowed(action, ReasonNotController)
	}
	ability, ok := obj.Abilities[action.Ability]
	if !ok {
		return notAllowed(action, ReasonAbilityNotFound)
	}

	switch ab := ability.(type) {
	case ManaAbility:
		return g.activateManaAbility(action, playerID, obj, ab)
	default:
		panic(fmt.Sprintf("unhandled ability %T", ability))
	}
}

func (g *Game) activateManaAbility(action ActivateAbility, playerID ID, obj Object, ability ManaAbility) error {
	zone, ok := g.state.Zones[obj.Zone]
	if !ok {
		return notAllowed(action, ReasonZoneNotFound)
	}
	switch zone.Kind {
	case ZoneBattlefield:
	case ZoneHand:
		return notAllowed(action, ReasonNotOnBattlefield)
	default:
		panic(fmt.Sprintf("unhandled zone kind %s", zone.Kind))
	}

	var tapped Land
	switch d := obj.Details.(type) {
	case Land:
		if d.Tapped {
			return notAllowed(action, ReasonAlreadyTapped)
		}
		tapped = d
		tapped.Tapped = true
	case Spell:
		return notAllowed(action, ReasonCannotTap)
	default:
		panic(fmt.Sprintf("unhandled object details %T", obj.Details))
	}

	player, ok := g.state.Players[playerID]
	if !ok {
		panic(fmt.Sprintf("player %d is missing their mana pool", playerID))
	}

	obj.Details = tapped
	g.state.Objects[obj.ID] = obj
	player.Mana.Add(ability.Produces, manaAbilityYield)
	g.state.Players[playerID] = player

	activated := rules.NewEvent(rules.EventActivatedAbility, playerID, obj.ID)
	activated.AbilityID = action.Ability
	tappedEvt := rules.NewEvent(rules.EventTapped, playerID, obj.ID)
	added := rules.NewEvent(rules.EventManaAdded, playerID, obj.ID)
	added.Amount = manaAbilityYield
	added.Data = string(ability.Produces)
	g.emit(activated, tappedEvt, added)
	return nil
}

func (g *Game) emit(events ...rules.Event) {
	if g.listener == nil {
		return
	}
	for _, evt := range events {
		if evt.Turn == 0 {
			evt.Turn = g.state.Turn
		}
		g.listener(evt)
	}
}
