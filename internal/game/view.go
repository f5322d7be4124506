package game

// ObjectResolver composes an object's base record with whatever continuous
// effects are active to produce its effective characteristics.
//
// Implementations must not retain or mutate base; they receive a copy.
type ObjectResolver interface {
	Resolve(base Object) Object
}

// Projector redacts a full game state down to what one player may know.
//
// Project receives a deep copy it may modify freely, and must be proportional
// to the number of zones and objects.
type Projector interface {
	Project(full State, viewer ID) State
}

// ResolverFunc adapts a plain function to ObjectResolver.
type ResolverFunc func(Object) Object

func (f ResolverFunc) Resolve(base Object) Object { return f(base) }

// ProjectorFunc adapts a plain function to Projector.
type ProjectorFunc func(State, ID) State

func (f ProjectorFunc) Project(full State, viewer ID) State { return f(full, viewer) }

// ViewObject looks up an object by ID. Without a resolver the stored base
// record is returned unchanged, and callers must not assume it reflects any
// active effects.
func (g *Game) ViewObject(id ID) (Object, bool) {
	obj, ok := g.state.Objects[id]
	if !ok {
		return Object{}, false
	}
	if g.resolver == nil {
		return obj.Clone(), true
	}
	return g.resolver.Resolve(obj.Clone()), true
}

// ViewAsPlayer returns the game as seen by viewer. It never mutates the game.
func (g *Game) ViewAsPlayer(viewer ID) State {
	view := g.state.Clone()
	if g.projector == nil {
		return view
	}
	return g.projector.Project(view, viewer)
}
