package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/draftops/auctioneer/tests/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadPreset_ReturnsTeamsAndUsersInOrder(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	presetID := fixtures.FullPreset(t, db, 2, 3, 100)

	r := NewPresetReader(db, testLogger())
	spec, err := r.LoadPreset(context.Background(), presetID)
	require.NoError(t, err)

	assert.Equal(t, []int64{101, 102}, spec.LeaderIDs)
	assert.Equal(t, []int{100, 100}, spec.StartingPoints)
	assert.Equal(t, []int64{1, 2, 3}, spec.UserIDs)
	assert.Equal(t, presetID, spec.PresetID)
}

func TestLoadPreset_UnknownPresetReturnsNotFound(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)

	r := NewPresetReader(db, testLogger())
	_, err := r.LoadPreset(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrPresetNotFound)
}

func TestLoadPreset_NoTeamsReturnsNotFound(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	presetID := fixtures.TestPreset(t, db)

	r := NewPresetReader(db, testLogger())
	_, err := r.LoadPreset(context.Background(), presetID)
	assert.ErrorIs(t, err, ErrPresetNotFound)
}
