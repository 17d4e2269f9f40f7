package auction

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/draftops/auctioneer/internal/metrics"
	"github.com/draftops/auctioneer/internal/token"
)

// Manager is the process-wide registry of live auctions. It owns
// the shared Token Registry and is the sole place that constructs and
// tears down Auctions, which is what lets an Auction itself stay free of
// any back-reference to its owner — it is handed an onTerminated closure
// at construction instead.
type Manager struct {
	logger *slog.Logger
	cfg    Config
	tokens *token.Registry

	mu       sync.RWMutex
	auctions map[string]*Auction

	nextID atomic.Int64
}

// NewManager returns an empty Manager using cfg as the default
// configuration for auctions that don't override it.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		logger:   logger,
		cfg:      cfg,
		tokens:   token.NewRegistry(),
		auctions: make(map[string]*Auction),
	}
}

// AddAuction mints an auction-id, constructs and starts the Auction, and
// mints one token per user-id — leader role for the given leaderIDs,
// observer for everyone else — returning the token map so the caller can
// dispatch invitations.
func (m *Manager) AddAuction(spec Spec) (string, map[int64]string, error) {
	id := fmt.Sprintf("%d", m.nextID.Add(1))

	leaderSet := make(map[int64]struct{}, len(spec.LeaderIDs))
	for _, id := range spec.LeaderIDs {
		leaderSet[id] = struct{}{}
	}

	allUsers := make([]int64, 0, len(spec.LeaderIDs)+len(spec.UserIDs))
	allUsers = append(allUsers, spec.LeaderIDs...)
	allUsers = append(allUsers, spec.UserIDs...)

	byUser, err := m.tokens.Mint(id, allUsers, leaderSet)
	if err != nil {
		return "", nil, fmt.Errorf("mint tokens: %w", err)
	}

	byToken := make(map[string]token.Info, len(byUser))
	for userID, tok := range byUser {
		role := token.RoleObserver
		if _, ok := leaderSet[userID]; ok {
			role = token.RoleLeader
		}
		byToken[tok] = token.Info{AuctionID: id, UserID: userID, Role: role}
	}

	a := New(id, spec, byToken, m.cfg, m.logger, m.onAuctionTerminated)

	m.mu.Lock()
	m.auctions[id] = a
	m.mu.Unlock()

	a.Run()

	metrics.AuctionsCreatedTotal.Inc()
	metrics.AuctionsActive.Inc()

	m.logger.Info("auction_created",
		slog.String("auction_id", id),
		slog.Int("leaders", len(spec.LeaderIDs)),
		slog.Int("users", len(spec.UserIDs)),
	)

	return id, byUser, nil
}

// GetAuction looks up a live auction by id.
func (m *Manager) GetAuction(auctionID string) (*Auction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.auctions[auctionID]
	return a, ok
}

// GetAuctionByToken resolves a token through the shared Registry and
// returns the Auction it belongs to.
func (m *Manager) GetAuctionByToken(tok string) (*Auction, token.Info, bool) {
	info, ok := m.tokens.Lookup(tok)
	if !ok {
		return nil, token.Info{}, false
	}
	a, ok := m.GetAuction(info.AuctionID)
	if !ok {
		return nil, token.Info{}, false
	}
	return a, info, true
}

// ListAuctions returns every currently registered auction-id. Dropped by
// the distillation but present in the original auction_manager's
// get_all_auctions; kept here for the debug/admin surface.
func (m *Manager) ListAuctions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.auctions))
	for id := range m.auctions {
		ids = append(ids, id)
	}
	return ids
}

// TokensOf mirrors the original's get_auction_tokens.
func (m *Manager) TokensOf(auctionID string) []string {
	return m.tokens.TokensOf(auctionID)
}

// RemoveAuction tears down an auction: stops its goroutine and closes its
// sinks, tears down its tokens, and drops it from the registry. It is
// idempotent against an auction that is already removed (e.g. because it
// is mid-self-termination via onAuctionTerminated).
func (m *Manager) RemoveAuction(auctionID string) {
	m.mu.Lock()
	a, ok := m.auctions[auctionID]
	if ok {
		delete(m.auctions, auctionID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	a.Stop()
	m.tokens.Remove(auctionID)
	metrics.AuctionsActive.Dec()

	m.logger.Info("auction_removed", slog.String("auction_id", auctionID))
}

// onAuctionTerminated is the callback an Auction invokes on itself after
// its terminate-grace elapses, breaking what would otherwise be a
// circular reference between Auction and Manager.
func (m *Manager) onAuctionTerminated(auctionID string) {
	m.RemoveAuction(auctionID)
}

// Shutdown tears down every live auction, for process exit.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.auctions))
	for id := range m.auctions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.RemoveAuction(id)
	}
}
