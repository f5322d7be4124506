package server

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/corrosion/corrosion-server-go/internal/game"
	"github.com/corrosion/corrosion-server-go/internal/game/mana"
	"github.com/corrosion/corrosion-server-go/internal/game/sequence"
)

var (
	// errBadRequest marks malformed client input.
	errBadRequest = errors.New("bad request")
	// errUnauthenticated marks a missing or wrong seat token.
	errUnauthenticated = errors.New("invalid seat token")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// Request and response payloads travel as generic maps: google.protobuf.Struct
// on gRPC and JSON objects on the WebSocket. Numbers arrive as float64 either way.

func stringField(fields map[string]any, key string) (string, error) {
	v, ok := fields[key]
	if !ok {
		return "", badRequest("%s is required", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", badRequest("%s must be a non-empty string", key)
	}
	return s, nil
}

func idField(fields map[string]any, key string) (game.ID, error) {
	v, ok := fields[key]
	if !ok {
		return sequence.None, badRequest("%s is required", key)
	}
	f, ok := v.(float64)
	if !ok || f < 1 || f != math.Trunc(f) || f > float64(1<<53) {
		return sequence.None, badRequest("%s must be a positive integer", key)
	}
	return game.ID(f), nil
}

func stringsField(fields map[string]any, key string) ([]string, error) {
	raw, ok := fields[key].([]any)
	if !ok || len(raw) == 0 {
		return nil, badRequest("%s must be a non-empty list", key)
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, badRequest("%s entries must be non-empty strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}

// decodeAction parses {"type": "...", "object": n, "ability": n}.
func decodeAction(fields map[string]any) (game.Action, error) {
	kind, err := stringField(fields, "type")
	if err != nil {
		return nil, err
	}
	switch kind {
	case game.Concede{}.Name():
		return game.Concede{}, nil
	case game.PassPriority{}.Name():
		return game.PassPriority{}, nil
	case game.PlayLand{}.Name():
		obj, err := idField(fields, "object")
		if err != nil {
			return nil, err
		}
		return game.PlayLand{Object: obj}, nil
	case game.ActivateAbility{}.Name():
		obj, err := idField(fields, "object")
		if err != nil {
			return nil, err
		}
		ability, err := idField(fields, "ability")
		if err != nil {
			return nil, err
		}
		return game.ActivateAbility{Object: obj, Ability: ability}, nil
	default:
		return nil, badRequest("unknown action type %q", kind)
	}
}

func sortedIDs[V any](m map[game.ID]V) []game.ID {
	ids := make([]game.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func encodeObject(obj game.Object) map[string]any {
	out := map[string]any{
		"id":        uint64(obj.ID),
		"owner":     uint64(obj.Owner),
		"timestamp": uint64(obj.Timestamp),
		"kind":      obj.Details.Kind(),
		"name":      obj.Name(),
	}
	switch d := obj.Details.(type) {
	case game.Land:
		out["tapped"] = d.Tapped
	case game.Spell:
	default:
		panic(fmt.Sprintf("unhandled object details %T", obj.Details))
	}

	abilities := make([]any, 0, len(obj.Abilities))
	for _, id := range sortedIDs(obj.Abilities) {
		ability := obj.Abilities[id]
		entry := map[string]any{"id": uint64(id), "kind": ability.Kind()}
		switch a := ability.(type) {
		case game.ManaAbility:
			entry["produces"] = string(a.Produces)
		default:
			panic(fmt.Sprintf("unhandled ability %T", ability))
		}
		abilities = append(abilities, entry)
	}
	out["abilities"] = abilities
	return out
}

func encodePool(pool mana.Pool) map[string]any {
	out := make(map[string]any, len(mana.Types))
	for _, t := range mana.Types {
		if n := pool.Get(t); n > 0 {
			out[string(t)] = n
		}
	}
	return out
}

// encodeView renders a (possibly redacted) state for clients.
func encodeView(gameID string, state game.State) map[string]any {
	byZone := make(map[game.ID][]any, len(state.Zones))
	for _, id := range sortedIDs(state.Objects) {
		obj := state.Objects[id]
		byZone[obj.Zone] = append(byZone[obj.Zone], encodeObject(obj))
	}

	zones := make([]any, 0, len(state.Zones))
	for _, id := range sortedIDs(state.Zones) {
		zone := state.Zones[id]
		objects := byZone[id]
		if objects == nil {
			objects = []any{}
		}
		entry := map[string]any{
			"id":      uint64(zone.ID),
			"kind":    zone.Kind.String(),
			"objects": objects,
		}
		if zone.Kind == game.ZoneHand {
			entry["player"] = uint64(zone.Player)
		}
		if n := state.Hidden[id]; n > 0 {
			entry["hidden"] = n
		}
		zones = append(zones, entry)
	}

	players := make([]any, 0, len(state.TurnOrder))
	turnOrder := make([]any, 0, len(state.TurnOrder))
	for _, id := range state.TurnOrder {
		p := state.Players[id]
		players = append(players, map[string]any{
			"id":   uint64(p.ID),
			"name": p.Name,
			"mana": encodePool(p.Mana),
		})
		turnOrder = append(turnOrder, uint64(id))
	}

	return map[string]any{
		"game_id":         gameID,
		"status":          state.Status.String(),
		"turn":            state.Turn,
		"phase":           state.Phase.String(),
		"active_player":   uint64(state.ActivePlayer),
		"priority_player": uint64(state.PriorityPlayer),
		"conceded_by":     uint64(state.ConcededBy),
		"turn_order":      turnOrder,
		"players":         players,
		"zones":           zones,
	}
}
