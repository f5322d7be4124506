// Package visibility redacts game state down to what a single player may know.
package visibility

import (
	"fmt"

	"github.com/corrosion/corrosion-server-go/internal/game"
)

// HiddenHands hides the contents of every hand except the viewer's own.
// Withheld objects are counted per zone in State.Hidden so clients can still
// render hand sizes. The battlefield is public.
type HiddenHands struct{}

var _ game.Projector = HiddenHands{}

// Project implements game.Projector.
func (HiddenHands) Project(full game.State, viewer game.ID) game.State {
	hidden := make(map[game.ID]int)
	for id, obj := range full.Objects {
		zone, ok := full.Zones[obj.Zone]
		if !ok {
			panic(fmt.Sprintf("object %d references missing zone %d", id, obj.Zone))
		}
		if visible(zone, viewer) {
			continue
		}
		delete(full.Objects, id)
		hidden[zone.ID]++
	}
	full.Hidden = hidden
	return full
}

func visible(zone game.Zone, viewer game.ID) bool {
	switch zone.Kind {
	case game.ZoneBattlefield:
		return true
	case game.ZoneHand:
		return zone.Player == viewer
	default:
		panic(fmt.Sprintf("unhandled zone kind %s", zone.Kind))
	}
}
