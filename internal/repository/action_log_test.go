package repository

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/corrosion/corrosion-server-go/internal/config"
	"github.com/corrosion/corrosion-server-go/internal/game"
	"github.com/corrosion/corrosion-server-go/internal/game/rules"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testDatabaseEnv = "CORROSION_TEST_DATABASE_URL"

func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv(testDatabaseEnv)
	if url == "" {
		t.Skipf("%s not set; skipping database test", testDatabaseEnv)
	}
	db, err := NewDB(context.Background(), config.DatabaseConfig{URL: url, MaxConns: 2}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestNewDBConfigErrors(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		_, err := NewDB(context.Background(), config.DatabaseConfig{}, nil)
		assert.ErrorIs(t, err, ErrNoDatabase)
	})

	t.Run("unparseable url", func(t *testing.T) {
		_, err := NewDB(context.Background(), config.DatabaseConfig{URL: "postgres://localhost:notaport/db"}, zaptest.NewLogger(t))
		assert.Error(t, err)
	})
}

func TestActionLogRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewActionLogRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Migrate(ctx))
	require.NoError(t, repo.Migrate(ctx), "migration is idempotent")

	gameID := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, repo.RecordAction(ctx, game.ActionRecord{
		GameID:     gameID,
		PlayerID:   2,
		Action:     game.PlayLand{Object: 9},
		Accepted:   true,
		Turn:       1,
		Phase:      rules.PhaseMain,
		RecordedAt: now,
	}))
	require.NoError(t, repo.RecordAction(ctx, game.ActionRecord{
		GameID:     gameID,
		PlayerID:   4,
		Action:     game.PassPriority{},
		Accepted:   false,
		Reason:     "PASS_PRIORITY not allowed: player does not have priority",
		Turn:       1,
		Phase:      rules.PhaseMain,
		RecordedAt: now.Add(time.Millisecond),
	}))

	entries, err := repo.ListByGame(ctx, gameID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "PLAY_LAND", entries[0].Action)
	assert.Equal(t, game.ID(2), entries[0].PlayerID)
	assert.True(t, entries[0].Accepted)
	assert.Equal(t, "MAIN", entries[0].Phase)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(entries[0].Payload, &payload))
	assert.EqualValues(t, 9, payload["Object"])

	assert.Equal(t, "PASS_PRIORITY", entries[1].Action)
	assert.False(t, entries[1].Accepted)
	assert.Contains(t, entries[1].Reason, "does not have priority")

	empty, err := repo.ListByGame(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, empty)
}
