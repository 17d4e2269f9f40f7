package fixtures

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// TestPreset creates an empty preset row and returns its id.
func TestPreset(t *testing.T, db *pgxpool.Pool) string {
	t.Helper()
	ctx := context.Background()

	id := fmt.Sprintf("preset-%s", uuid.New().String()[:8])
	_, err := db.Exec(ctx, `INSERT INTO presets (id, name) VALUES ($1, $2)`, id, "Test Preset")
	require.NoError(t, err)

	return id
}

// PresetTeam seats a captain on a preset at the given team order with the
// given starting points.
func PresetTeam(t *testing.T, db *pgxpool.Pool, presetID string, teamOrder int, leaderUserID int64, startingPoints int) {
	t.Helper()
	ctx := context.Background()

	_, err := db.Exec(ctx, `
		INSERT INTO preset_teams (preset_id, team_order, leader_user_id, starting_points)
		VALUES ($1, $2, $3, $4)
	`, presetID, teamOrder, leaderUserID, startingPoints)
	require.NoError(t, err)
}

// PresetUser adds a draftable user to a preset's queue at the given
// position.
func PresetUser(t *testing.T, db *pgxpool.Pool, presetID string, queueOrder int, userID int64) {
	t.Helper()
	ctx := context.Background()

	_, err := db.Exec(ctx, `
		INSERT INTO preset_users (preset_id, queue_order, user_id)
		VALUES ($1, $2, $3)
	`, presetID, queueOrder, userID)
	require.NoError(t, err)
}

// FullPreset builds a preset with teamCount teams (consecutive leader
// IDs starting at 101) and userCount draftable users (starting at 1), a
// convenience for tests that just need a populated preset.
func FullPreset(t *testing.T, db *pgxpool.Pool, teamCount, userCount, startingPoints int) string {
	t.Helper()

	presetID := TestPreset(t, db)
	for i := 0; i < teamCount; i++ {
		PresetTeam(t, db, presetID, i+1, int64(101+i), startingPoints)
	}
	for i := 0; i < userCount; i++ {
		PresetUser(t, db, presetID, i+1, int64(1+i))
	}
	return presetID
}

// CleanupTestData removes all test data (call in cleanup).
func CleanupTestData(t *testing.T, db *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	tables := []string{
		"preset_users",
		"preset_teams",
		"presets",
	}

	for _, table := range tables {
		_, err := db.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			t.Logf("Warning: failed to truncate %s: %v", table, err)
		}
	}
}
