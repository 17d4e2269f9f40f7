package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/draftops/auctioneer/internal/auction"
	"github.com/draftops/auctioneer/internal/domain"
	"github.com/draftops/auctioneer/internal/gateway"
	"github.com/draftops/auctioneer/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// AdminHandler exposes the operator-facing surface for seating and
// managing live auctions: the /admin/auctions routes.
type AdminHandler struct {
	manager    *auction.Manager
	presets    *store.PresetReader
	dispatcher gateway.InviteDispatcher
	logger     *slog.Logger
	validate   *validator.Validate
}

func NewAdminHandler(manager *auction.Manager, presets *store.PresetReader, dispatcher gateway.InviteDispatcher, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		manager:    manager,
		presets:    presets,
		dispatcher: dispatcher,
		logger:     logger,
		validate:   validator.New(),
	}
}

// CreateAuction loads a preset, seats it as a new running auction, mints
// per-user tokens, and dispatches invites out of band before returning
// the auction id and the tokens keyed by user id.
func (h *AdminHandler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.CreateAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.jsonError(w, "validation error: "+err.Error(), http.StatusBadRequest)
		return
	}

	spec, err := h.presets.LoadPreset(ctx, req.PresetID)
	if err != nil {
		if errors.Is(err, store.ErrPresetNotFound) {
			h.jsonError(w, "preset not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load preset", slog.String("error", err.Error()))
		h.jsonError(w, "failed to load preset", http.StatusInternalServerError)
		return
	}

	auctionID, tokens, err := h.manager.AddAuction(spec)
	if err != nil {
		h.logger.Error("failed to seat auction", slog.String("error", err.Error()), slog.String("preset_id", req.PresetID))
		h.jsonError(w, "failed to seat auction: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp := domain.CreateAuctionResponse{
		AuctionID: auctionID,
		Tokens:    make(map[string]string, len(tokens)),
	}
	for userID, tok := range tokens {
		resp.Tokens[strconv.FormatInt(userID, 10)] = tok
		if err := h.dispatcher.DispatchInvite(ctx, auctionID, userID, tok); err != nil {
			h.logger.Warn("failed to dispatch invite",
				slog.String("error", err.Error()),
				slog.String("auction_id", auctionID),
				slog.Int64("user_id", userID),
			)
		}
	}

	h.logger.Info("auction_created",
		slog.String("auction_id", auctionID),
		slog.String("preset_id", req.PresetID),
		slog.Int("team_count", len(spec.LeaderIDs)),
		slog.Int("user_count", len(spec.UserIDs)),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// GetAuction returns the current public snapshot of a live auction.
func (h *AdminHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, ok := h.manager.GetAuction(id)
	if !ok {
		h.jsonError(w, "auction not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a.Snapshot())
}

// ListAuctions returns the ids of every currently live auction.
func (h *AdminHandler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	ids := h.manager.ListAuctions()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"auctions": ids,
		"total":    len(ids),
	})
}

// RemoveAuction tears down a live auction and stops broadcasting to its
// sockets; the websocket connections themselves are not closed by the
// server.
func (h *AdminHandler) RemoveAuction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, ok := h.manager.GetAuction(id); !ok {
		h.jsonError(w, "auction not found", http.StatusNotFound)
		return
	}

	h.manager.RemoveAuction(id)
	h.logger.Info("auction_removed", slog.String("auction_id", id))

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
