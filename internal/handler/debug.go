package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/draftops/auctioneer/internal/auction"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DebugHandler struct {
	manager *auction.Manager
	db      *pgxpool.Pool
	logger  *slog.Logger
}

func NewDebugHandler(manager *auction.Manager, db *pgxpool.Pool, logger *slog.Logger) *DebugHandler {
	return &DebugHandler{
		manager: manager,
		db:      db,
		logger:  logger,
	}
}

// AuctionStats returns one live auction's engine-level statistics: hub
// sink count and bid/timer activity, alongside its public snapshot.
func (h *DebugHandler) AuctionStats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a, ok := h.manager.GetAuction(id)
	if !ok {
		http.Error(w, "auction not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"snapshot":      a.Snapshot(),
		"stats":         a.Stats(),
		"connected_hub": a.Hub().Count(),
	})
}

// AllStats returns combined debug information across every live auction.
func (h *DebugHandler) AllStats(w http.ResponseWriter, r *http.Request) {
	ids := h.manager.ListAuctions()
	out := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		a, ok := h.manager.GetAuction(id)
		if !ok {
			continue
		}
		out = append(out, map[string]interface{}{
			"auction_id":    id,
			"status":        a.Snapshot().Status,
			"connected_hub": a.Hub().Count(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"auction_count": len(ids),
		"auctions":      out,
	})
}

// SeedPreset inserts a small sample preset for local development: two
// captains with 100 starting points each and four draftable users.
// Only available in development and test environments.
func (h *DebugHandler) SeedPreset(w http.ResponseWriter, r *http.Request) {
	env := os.Getenv("ENVIRONMENT")
	if env != "development" && env != "test" && env != "" {
		http.Error(w, "seed only available in development/test", http.StatusForbidden)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	tx, err := h.db.Begin(ctx)
	if err != nil {
		h.logger.Error("failed to start transaction for seed", slog.String("error", err.Error()))
		http.Error(w, "failed to start transaction", http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(ctx)

	const presetID = "seed-preset"
	_, err = tx.Exec(ctx, `
		INSERT INTO presets (id, name) VALUES ($1, 'Seed Preset')
		ON CONFLICT (id) DO NOTHING
	`, presetID)
	if err != nil {
		h.logger.Error("failed to seed preset", slog.String("error", err.Error()))
		http.Error(w, "failed to seed preset: "+err.Error(), http.StatusInternalServerError)
		return
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO preset_teams (preset_id, team_order, leader_user_id, starting_points) VALUES
		($1, 1, 101, 100),
		($1, 2, 102, 100)
		ON CONFLICT (preset_id, team_order) DO NOTHING
	`, presetID)
	if err != nil {
		h.logger.Error("failed to seed preset teams", slog.String("error", err.Error()))
		http.Error(w, "failed to seed preset teams: "+err.Error(), http.StatusInternalServerError)
		return
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO preset_users (preset_id, queue_order, user_id) VALUES
		($1, 1, 1), ($1, 2, 2), ($1, 3, 3), ($1, 4, 4)
		ON CONFLICT (preset_id, queue_order) DO NOTHING
	`, presetID)
	if err != nil {
		h.logger.Error("failed to seed preset users", slog.String("error", err.Error()))
		http.Error(w, "failed to seed preset users: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.logger.Error("failed to commit seed transaction", slog.String("error", err.Error()))
		http.Error(w, "failed to commit transaction", http.StatusInternalServerError)
		return
	}

	h.logger.Info("seed preset created successfully", slog.String("preset_id", presetID))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":   "seed preset created successfully",
		"preset_id": presetID,
	})
}

// ClearSeed removes the seeded preset. Only available in development and
// test environments.
func (h *DebugHandler) ClearSeed(w http.ResponseWriter, r *http.Request) {
	env := os.Getenv("ENVIRONMENT")
	if env != "development" && env != "test" && env != "" {
		http.Error(w, "clear seed only available in development/test", http.StatusForbidden)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	_, err := h.db.Exec(ctx, `DELETE FROM presets WHERE id = 'seed-preset'`)
	if err != nil {
		h.logger.Error("failed to clear seed preset", slog.String("error", err.Error()))
		http.Error(w, "failed to clear seed preset: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.logger.Info("seed preset cleared successfully")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "seed preset cleared",
	})
}
