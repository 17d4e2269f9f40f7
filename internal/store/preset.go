// Package store holds the engine's one out-of-core relational dependency:
// a read-only load of a draft preset's teams and user pool at
// auction-creation time. Everything past that point lives in memory in
// internal/auction — this package is never touched again for the
// lifetime of a running auction.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/draftops/auctioneer/internal/auction"
	"github.com/draftops/auctioneer/internal/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PresetReader loads a named preset's team captains, starting points, and
// auction-eligible user pool from Postgres. It performs no writes and no
// caching: three queries per LoadPreset call, read once at
// auction-creation time and never touched again for that auction's
// lifetime.
type PresetReader struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPresetReader(db *pgxpool.Pool, logger *slog.Logger) *PresetReader {
	return &PresetReader{db: db, logger: logger}
}

// ErrPresetNotFound is returned when presetID names no row in presets.
var ErrPresetNotFound = fmt.Errorf("preset not found")

// LoadPreset reads one preset's team roster and draftable user pool and
// returns it as an auction.Spec, ready to hand to Manager.AddAuction.
// Teams are ordered by preset_teams.team_order (dense from 1, matching
// Spec.LeaderIDs' team-id-by-index convention); users are ordered by
// preset_users.queue_order.
func (r *PresetReader) LoadPreset(ctx context.Context, presetID string) (auction.Spec, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM presets WHERE id = $1)`, presetID).Scan(&exists); err != nil {
		metrics.DBQueryTotal.WithLabelValues("select", "presets").Inc()
		return auction.Spec{}, fmt.Errorf("check preset exists: %w", err)
	}
	metrics.DBQueryTotal.WithLabelValues("select", "presets").Inc()
	if !exists {
		return auction.Spec{}, ErrPresetNotFound
	}

	teamRows, err := r.db.Query(ctx, `
		SELECT leader_user_id, starting_points
		FROM preset_teams
		WHERE preset_id = $1
		ORDER BY team_order ASC
	`, presetID)
	if err != nil {
		return auction.Spec{}, fmt.Errorf("query preset teams: %w", err)
	}
	defer teamRows.Close()
	metrics.DBQueryTotal.WithLabelValues("select", "preset_teams").Inc()

	var leaderIDs []int64
	var startingPoints []int
	for teamRows.Next() {
		var leaderID int64
		var points int
		if err := teamRows.Scan(&leaderID, &points); err != nil {
			return auction.Spec{}, fmt.Errorf("scan preset team: %w", err)
		}
		leaderIDs = append(leaderIDs, leaderID)
		startingPoints = append(startingPoints, points)
	}
	if err := teamRows.Err(); err != nil {
		return auction.Spec{}, fmt.Errorf("iterate preset teams: %w", err)
	}
	if len(leaderIDs) == 0 {
		return auction.Spec{}, fmt.Errorf("%w: preset %s has no teams", ErrPresetNotFound, presetID)
	}

	userRows, err := r.db.Query(ctx, `
		SELECT user_id
		FROM preset_users
		WHERE preset_id = $1
		ORDER BY queue_order ASC
	`, presetID)
	if err != nil {
		return auction.Spec{}, fmt.Errorf("query preset users: %w", err)
	}
	defer userRows.Close()
	metrics.DBQueryTotal.WithLabelValues("select", "preset_users").Inc()

	var userIDs []int64
	for userRows.Next() {
		var userID int64
		if err := userRows.Scan(&userID); err != nil {
			return auction.Spec{}, fmt.Errorf("scan preset user: %w", err)
		}
		userIDs = append(userIDs, userID)
	}
	if err := userRows.Err(); err != nil {
		return auction.Spec{}, fmt.Errorf("iterate preset users: %w", err)
	}

	return auction.Spec{
		PresetID:       presetID,
		LeaderIDs:      leaderIDs,
		StartingPoints: startingPoints,
		UserIDs:        userIDs,
	}, nil
}
