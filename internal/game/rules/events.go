package rules

import (
	"sort"
	"sync"

	"github.com/corrosion/corrosion-server-go/internal/game/sequence"
)

// EventType indicates the category of a rules event.
type EventType string

const (
	// Turn events
	EventPriorityPassed EventType = "PRIORITY_PASSED"
	EventPhaseChanged   EventType = "PHASE_CHANGED"
	EventBeginTurn      EventType = "BEGIN_TURN"

	// Zone events
	EventZoneChange    EventType = "ZONE_CHANGE"
	EventObjectCreated EventType = "OBJECT_CREATED"

	// Permanent and player events
	EventTapped           EventType = "TAPPED"
	EventManaAdded        EventType = "MANA_ADDED"
	EventActivatedAbility EventType = "ACTIVATED_ABILITY"
	EventPlayerConceded   EventType = "PLAYER_CONCEDED"
)

// Event represents a state change that other subsystems may react to.
//
// A zone change retires the moved object: ObjectID is the new identity and
// PreviousID the retired one.
type Event struct {
	GameID     string // Set by hosts running many games
	Type       EventType
	PlayerID   sequence.ID // Acting or affected player
	ObjectID   sequence.ID
	PreviousID sequence.ID
	ZoneID     sequence.ID
	AbilityID  sequence.ID
	Amount     int
	Phase      Phase
	Turn       int
	Data       string // Additional string data, e.g. a mana type
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, playerID, objectID sequence.ID) Event {
	return Event{
		Type:     eventType,
		PlayerID: playerID,
		ObjectID: objectID,
	}
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// subscription is a listener with an optional type filter; an empty
// filter matches every event.
type subscription struct {
	filter   EventType
	listener Listener
}

func (s subscription) matches(eventType EventType) bool {
	return s.filter == "" || s.filter == eventType
}

// EventBus is a synchronous publish/subscribe hub. Listeners are called in
// subscription order.
type EventBus struct {
	mu         sync.RWMutex
	subs       map[int]subscription
	nextHandle int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]subscription)}
}

// Subscribe registers a listener for all events and returns a handle, or -1
// for a nil listener.
func (bus *EventBus) Subscribe(listener Listener) int {
	return bus.add(subscription{listener: listener})
}

// SubscribeTyped registers a listener for a single event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, listener Listener) int {
	return bus.add(subscription{filter: eventType, listener: listener})
}

func (bus *EventBus) add(sub subscription) int {
	if sub.listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.subs[handle] = sub
	return handle
}

// Unsubscribe removes the listener identified by handle. Unknown handles
// are ignored.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.subs, handle)
}

// Publish delivers the event to every matching listener.
// Listeners run without the bus lock held, so they may subscribe or
// unsubscribe; such changes take effect from the next event.
func (bus *EventBus) Publish(event Event) {
	for _, listener := range bus.matching(event.Type) {
		listener(event)
	}
}

func (bus *EventBus) matching(eventType EventType) []Listener {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	handles := make([]int, 0, len(bus.subs))
	for handle, sub := range bus.subs {
		if sub.matches(eventType) {
			handles = append(handles, handle)
		}
	}
	sort.Ints(handles)

	out := make([]Listener, len(handles))
	for i, handle := range handles {
		out[i] = bus.subs[handle].listener
	}
	return out
}

// PublishBatch publishes events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}
