package effects

import (
	"sort"
	"sync"

	"github.com/corrosion/corrosion-server-go/internal/game"
	"github.com/google/uuid"
)

// Layer corresponds to the comprehensive rules layers for continuous effects.
type Layer int

const (
	LayerCopy Layer = 1 + iota
	LayerControl
	LayerText
	LayerType
	LayerColor
	LayerAbility
	LayerPowerToughness
)

var layerOrder = []Layer{
	LayerCopy,
	LayerControl,
	LayerText,
	LayerType,
	LayerColor,
	LayerAbility,
	LayerPowerToughness,
}

// ContinuousEffect modifies the effective characteristics of objects.
//
// Apply receives a copy of the object and returns the modified copy; it must
// not retain the value.
type ContinuousEffect interface {
	ID() string
	Layer() Layer
	AppliesTo(game.Object) bool
	Apply(game.Object) game.Object
}

type registration struct {
	id        string
	effect    ContinuousEffect
	timestamp game.Timestamp
	seq       uint64
}

// LayerSystem manages registration and evaluation of continuous effects. It
// implements game.ObjectResolver.
//
// Within a layer effects apply in timestamp order, oldest first. Effects
// sharing a timestamp apply in registration order.
type LayerSystem struct {
	mu      sync.RWMutex
	effects map[Layer]map[string]registration
	index   map[string]Layer
	nextSeq uint64
}

var _ game.ObjectResolver = (*LayerSystem)(nil)

// NewLayerSystem constructs an empty layer system.
func NewLayerSystem() *LayerSystem {
	return &LayerSystem{
		effects: make(map[Layer]map[string]registration),
		index:   make(map[string]Layer),
	}
}

// AddEffect registers a continuous effect with the timestamp of its source
// and returns its identifier.
func (ls *LayerSystem) AddEffect(effect ContinuousEffect, timestamp game.Timestamp) string {
	if effect == nil {
		return ""
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	layer := effect.Layer()
	if layer == 0 {
		layer = LayerPowerToughness
	}

	id := effect.ID()
	if id == "" {
		id = uuid.NewString()
	}

	if _, ok := ls.effects[layer]; !ok {
		ls.effects[layer] = make(map[string]registration)
	}
	ls.nextSeq++
	ls.effects[layer][id] = registration{id: id, effect: effect, timestamp: timestamp, seq: ls.nextSeq}
	ls.index[id] = layer
	return id
}

// RemoveEffect removes a registered effect by ID.
func (ls *LayerSystem) RemoveEffect(id string) {
	if id == "" {
		return
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	layer, ok := ls.index[id]
	if !ok {
		return
	}
	delete(ls.index, id)
	if layerMap, ok := ls.effects[layer]; ok {
		delete(layerMap, id)
		if len(layerMap) == 0 {
			delete(ls.effects, layer)
		}
	}
}

// Len returns the number of registered effects.
func (ls *LayerSystem) Len() int {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return len(ls.index)
}

// Resolve applies every relevant effect to the base object, layer by layer.
func (ls *LayerSystem) Resolve(base game.Object) game.Object {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	obj := base
	for _, layer := range layerOrder {
		for _, reg := range ls.ordered(layer) {
			if reg.effect.AppliesTo(obj) {
				obj = reg.effect.Apply(obj)
			}
		}
	}
	return obj
}

// EffectsFor returns the effects that currently apply to obj, in application order.
func (ls *LayerSystem) EffectsFor(obj game.Object) []ContinuousEffect {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	var result []ContinuousEffect
	for _, layer := range layerOrder {
		for _, reg := range ls.ordered(layer) {
			if reg.effect.AppliesTo(obj) {
				result = append(result, reg.effect)
			}
		}
	}
	return result
}

// ordered returns a layer's effects sorted by timestamp, then registration
// order. Caller holds mu.
func (ls *LayerSystem) ordered(layer Layer) []registration {
	layerEffects := ls.effects[layer]
	if len(layerEffects) == 0 {
		return nil
	}
	regs := make([]registration, 0, len(layerEffects))
	for _, reg := range layerEffects {
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].timestamp != regs[j].timestamp {
			return regs[i].timestamp < regs[j].timestamp
		}
		return regs[i].seq < regs[j].seq
	})
	return regs
}
