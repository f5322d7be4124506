package mana

import "fmt"

// ManaType represents a type of mana.
type ManaType string

const (
	ManaWhite     ManaType = "WHITE"
	ManaBlue      ManaType = "BLUE"
	ManaBlack     ManaType = "BLACK"
	ManaRed       ManaType = "RED"
	ManaGreen     ManaType = "GREEN"
	ManaColorless ManaType = "COLORLESS"
)

// Types lists every mana type a pool tracks, in display order.
var Types = []ManaType{ManaWhite, ManaBlue, ManaBlack, ManaRed, ManaGreen, ManaColorless}

// ParseManaType converts a mana type name into a ManaType.
func ParseManaType(name string) (ManaType, error) {
	for _, t := range Types {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown mana type %q", name)
}

// Pool is a player's resource pool: one counter per mana type.
//
// Pool is a plain value. Copying it copies the counts, which is what lets a
// game snapshot or a player view hold an independent pool.
type Pool struct {
	White     int
	Blue      int
	Black     int
	Red       int
	Green     int
	Colorless int
}

// counter returns a pointer to the field holding manaType, or nil if unknown.
func (p *Pool) counter(manaType ManaType) *int {
	switch manaType {
	case ManaWhite:
		return &p.White
	case ManaBlue:
		return &p.Blue
	case ManaBlack:
		return &p.Black
	case ManaRed:
		return &p.Red
	case ManaGreen:
		return &p.Green
	case ManaColorless:
		return &p.Colorless
	}
	return nil
}

// Add adds mana of the given type. Non-positive amounts and unknown types are ignored.
func (p *Pool) Add(manaType ManaType, amount int) {
	if amount <= 0 {
		return
	}
	if c := p.counter(manaType); c != nil {
		*c += amount
	}
}

// Get returns the amount of a specific mana type.
func (p Pool) Get(manaType ManaType) int {
	if c := p.counter(manaType); c != nil {
		return *c
	}
	return 0
}

// Spend attempts to spend mana from the pool.
// Returns true if successful, false if insufficient mana.
func (p *Pool) Spend(manaType ManaType, amount int) bool {
	if amount <= 0 {
		return true
	}
	c := p.counter(manaType)
	if c == nil || *c < amount {
		return false
	}
	*c -= amount
	return true
}

// Total returns the total mana count across all types.
func (p Pool) Total() int {
	return p.White + p.Blue + p.Black + p.Red + p.Green + p.Colorless
}

// Empty sets every counter back to zero.
func (p *Pool) Empty() {
	*p = Pool{}
}

// String renders the pool as e.g. "G2 C1", or "empty".
func (p Pool) String() string {
	symbols := map[ManaType]string{
		ManaWhite: "W", ManaBlue: "U", ManaBlack: "B",
		ManaRed: "R", ManaGreen: "G", ManaColorless: "C",
	}
	out := ""
	for _, t := range Types {
		if n := p.Get(t); n > 0 {
			if out != "" {
				out += " "
			}
			out += fmt.Sprintf("%s%d", symbols[t], n)
		}
	}
	if out == "" {
		return "empty"
	}
	return out
}
