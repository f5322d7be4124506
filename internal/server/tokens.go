package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/corrosion/corrosion-server-go/internal/game"
	"golang.org/x/crypto/bcrypt"
)

const seatTokenBytes = 32

// SeatTokens issues and verifies the secrets that bind a connection to one
// player seat. Only bcrypt hashes are retained.
type SeatTokens struct {
	cost int

	mu     sync.RWMutex
	hashes map[string]map[game.ID][]byte
}

// NewSeatTokens creates a token store. A non-positive cost selects bcrypt.DefaultCost.
func NewSeatTokens(cost int) *SeatTokens {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &SeatTokens{
		cost:   cost,
		hashes: make(map[string]map[game.ID][]byte),
	}
}

// Issue creates a fresh token for a seat, replacing any previous one.
func (s *SeatTokens) Issue(gameID string, playerID game.ID) (string, error) {
	raw := make([]byte, seatTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate seat token: %w", err)
	}
	token := hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(token), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash seat token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	seats, ok := s.hashes[gameID]
	if !ok {
		seats = make(map[game.ID][]byte)
		s.hashes[gameID] = seats
	}
	seats[playerID] = hash
	return token, nil
}

// Verify reports whether token belongs to the seat.
func (s *SeatTokens) Verify(gameID string, playerID game.ID, token string) bool {
	if token == "" {
		return false
	}
	s.mu.RLock()
	hash, ok := s.hashes[gameID][playerID]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(token)) == nil
}

// Forget drops every token issued for a game.
func (s *SeatTokens) Forget(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes, gameID)
}
