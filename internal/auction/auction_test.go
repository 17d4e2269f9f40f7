package auction

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/draftops/auctioneer/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingSink struct {
	id string

	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Type string
	Data json.RawMessage
}

func newCapturingSink(id string) *capturingSink { return &capturingSink{id: id} }

func (s *capturingSink) ID() string { return s.id }

func (s *capturingSink) Send(frame []byte) error {
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		return err
	}
	s.mu.Lock()
	s.events = append(s.events, recordedEvent{Type: env.Type, Data: env.Data})
	s.mu.Unlock()
	return nil
}

func (s *capturingSink) eventsOfType(t string) []recordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []recordedEvent
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (s *capturingSink) last(t string) (recordedEvent, bool) {
	evs := s.eventsOfType(t)
	if len(evs) == 0 {
		return recordedEvent{}, false
	}
	return evs[len(evs)-1], true
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastConfig shortens the background timers well below their defaults so
// tests don't wait on a 5-minute WAITING TTL or a 5-second terminate
// grace; only TimerDuration is expected to matter for most assertions.
func fastConfig(timerDuration int) Config {
	cfg := DefaultConfig()
	cfg.TimerDuration = timerDuration
	cfg.WaitingTTL = 2 * time.Minute
	cfg.TerminateGrace = 50 * time.Millisecond
	return cfg
}

func connectAndCapture(t *testing.T, a *Auction, tok string) *capturingSink {
	t.Helper()
	sink := newCapturingSink(tok)
	a.Hub().Add(sink)
	_, err := a.Connect(tok)
	require.NoError(t, err)
	return sink
}

// TestScenario_SimpleSale walks a two-leader auction through a single bid war and sale.
func TestScenario_SimpleSale(t *testing.T) {
	spec := Spec{
		LeaderIDs:      []int64{101, 102},
		StartingPoints: []int{100, 100},
		UserIDs:        []int64{1},
	}
	tokens := map[string]token.Info{
		"tL1": {AuctionID: "x", UserID: 101, Role: token.RoleLeader},
		"tL2": {AuctionID: "x", UserID: 102, Role: token.RoleLeader},
	}
	a := New("x", spec, tokens, fastConfig(2), testLogger(), nil)
	a.Run()
	defer a.Stop()

	s1 := connectAndCapture(t, a, "tL1")
	s2 := connectAndCapture(t, a, "tL2")

	require.Eventually(t, func() bool {
		_, ok := s1.last("next_user")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	statusEv, ok := s2.last("status")
	require.True(t, ok)
	var statusData struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(statusEv.Data, &statusData))
	assert.Equal(t, "in_progress", statusData.Status)

	require.NoError(t, a.PlaceBid("tL1", 10))

	require.Eventually(t, func() bool {
		ev, ok := s1.last("user_sold")
		return ok && len(ev.Data) > 0
	}, 5*time.Second, 10*time.Millisecond)

	snap := a.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	require.Len(t, snap.Teams, 2)
	for _, team := range snap.Teams {
		if team.TeamID == 1 {
			assert.Equal(t, 90, team.Points)
			assert.ElementsMatch(t, []int64{101, 1}, team.MemberIDs)
		}
	}
}

// TestScenario_SlotReservationGuardrail mirrors Scenario C.
func TestScenario_SlotReservationGuardrail(t *testing.T) {
	spec := Spec{
		LeaderIDs:      []int64{101, 102},
		StartingPoints: []int{10, 10},
		UserIDs:        []int64{1, 2, 3, 4},
	}
	tokens := map[string]token.Info{
		"tL1": {AuctionID: "x", UserID: 101, Role: token.RoleLeader},
		"tL2": {AuctionID: "x", UserID: 102, Role: token.RoleLeader},
	}
	a := New("x", spec, tokens, fastConfig(5), testLogger(), nil)
	a.Run()
	defer a.Stop()

	connectAndCapture(t, a, "tL1")
	connectAndCapture(t, a, "tL2")

	// Team 1 acquires users 1 and 2 by winning uncontested bids, bringing
	// its member list to [101,1,2] (3 members) before user 3 comes up.
	for range []int{1, 2} {
		require.NoError(t, a.PlaceBid("tL1", 1))
		a.timerForceExpire(t)
	}

	// Now on user 3: team 1 has 3 members, remaining_slots=2, min_reserve=1,
	// points=10-1-1=8 remaining, max_allowed_bid=8-1=7... recomputed below
	// from the live snapshot rather than hand-derived, to stay robust to
	// the exact points spent above.
	snap := a.Snapshot()
	var team1 Team
	for _, team := range snap.Teams {
		if team.TeamID == 1 {
			team1 = team
		}
	}
	remainingSlots := 5 - len(team1.MemberIDs)
	maxAllowed := team1.Points - (remainingSlots - 1)

	err := a.PlaceBid("tL1", maxAllowed+1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bid too high")

	require.NoError(t, a.PlaceBid("tL1", maxAllowed))
}

// timerForceExpire waits for the live countdown to expire naturally; the
// state machine itself owns timing, so tests simply wait it out rather
// than reaching into internals.
func (a *Auction) timerForceExpire(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return a.Snapshot().CurrentBid == nil
	}, 10*time.Second, 10*time.Millisecond)
}

// TestScenario_SingleTeamShortcut mirrors Scenario E.
func TestScenario_SingleTeamShortcut(t *testing.T) {
	spec := Spec{
		LeaderIDs:      []int64{101, 102},
		StartingPoints: []int{100, 100},
		UserIDs:        []int64{7, 8, 9, 10},
	}
	tokens := map[string]token.Info{
		"tL1": {AuctionID: "x", UserID: 101, Role: token.RoleLeader},
		"tL2": {AuctionID: "x", UserID: 102, Role: token.RoleLeader},
	}
	a := New("x", spec, tokens, fastConfig(60), testLogger(), nil)

	// Hand-seat team 1 to 5 members and team 2 to 2 before starting, to
	// land directly in the shortcut branch without waiting out real bids.
	a.teams[1].MemberIDs = []int64{101, 100, 101, 102, 103}
	a.teams[2].MemberIDs = []int64{102, 104}

	a.Run()
	defer a.Stop()

	sink := connectAndCapture(t, a, "tL1")
	connectAndCapture(t, a, "tL2")

	require.Eventually(t, func() bool {
		_, ok := sink.last("user_sold")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	snap := a.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	for _, team := range snap.Teams {
		if team.TeamID == 2 {
			assert.Len(t, team.MemberIDs, 5)
		}
	}
}

// TestScenario_DuplicateToken mirrors Scenario F.
func TestScenario_DuplicateToken(t *testing.T) {
	spec := Spec{
		LeaderIDs:      []int64{101},
		StartingPoints: []int{100},
		UserIDs:        []int64{1},
	}
	tokens := map[string]token.Info{
		"tL1": {AuctionID: "x", UserID: 101, Role: token.RoleLeader},
	}
	a := New("x", spec, tokens, fastConfig(30), testLogger(), nil)
	a.Run()
	defer a.Stop()

	sinkA := connectAndCapture(t, a, "tL1")

	// Client B reuses A's own token. Mirroring the gateway's handshake
	// order, the duplicate must be rejected by Connect before it is ever
	// registered in the Hub under the same sink id as A — so B's sink is
	// never added at all.
	_, err := a.Connect("tL1")
	assert.ErrorIs(t, err, ErrAlreadyConnected)

	// A's session must remain fully functional: it still receives
	// broadcasts after the rejected duplicate attempt.
	a.Hub().Broadcast("probe", map[string]string{"still": "alive"})
	require.Eventually(t, func() bool {
		return len(sinkA.eventsOfType("probe")) > 0
	}, time.Second, 5*time.Millisecond)
}

func TestPauseResume_PreservesBidContext(t *testing.T) {
	spec := Spec{
		LeaderIDs:      []int64{101, 102},
		StartingPoints: []int{100, 100},
		UserIDs:        []int64{1, 2},
	}
	tokens := map[string]token.Info{
		"tL1": {AuctionID: "x", UserID: 101, Role: token.RoleLeader},
		"tL2": {AuctionID: "x", UserID: 102, Role: token.RoleLeader},
	}
	a := New("x", spec, tokens, fastConfig(10), testLogger(), nil)
	a.Run()
	defer a.Stop()

	connectAndCapture(t, a, "tL1")
	connectAndCapture(t, a, "tL2")

	require.NoError(t, a.PlaceBid("tL1", 5))

	before := a.Snapshot()
	require.NotNil(t, before.CurrentBid)
	assert.Equal(t, 5, *before.CurrentBid)

	a.Disconnect("tL2")

	require.Eventually(t, func() bool {
		return a.Snapshot().Status == StatusWaiting
	}, time.Second, 10*time.Millisecond)

	paused := a.Snapshot()
	require.NotNil(t, paused.CurrentBid)
	assert.Equal(t, 5, *paused.CurrentBid, "pause must not discard in-flight bid context")

	sink := connectAndCapture(t, a, "tL2")

	require.Eventually(t, func() bool {
		return a.Snapshot().Status == StatusInProgress
	}, time.Second, 10*time.Millisecond)

	_ = sink
	resumed := a.Snapshot()
	require.NotNil(t, resumed.CurrentBid)
	assert.Equal(t, 5, *resumed.CurrentBid)
}

// TestBid_RejectsWhenNoCurrentUser exercises the ordered check directly:
// under the single-goroutine model a bid can only ever observe
// status=IN_PROGRESS with no current user in the brief window the source
// called out as an open question — a window this implementation closes
// by making NextUser atomic within one dispatch, so it is tested here as
// a unit on the validation function rather than through the full loop.
func TestBid_RejectsWhenNoCurrentUser(t *testing.T) {
	spec := Spec{
		LeaderIDs:      []int64{101, 102},
		StartingPoints: []int{100, 100},
		UserIDs:        []int64{1},
	}
	tokens := map[string]token.Info{
		"tL1": {AuctionID: "x", UserID: 101, Role: token.RoleLeader},
	}
	a := New("x", spec, tokens, fastConfig(5), testLogger(), nil)
	a.status = StatusInProgress
	a.connected["tL1"] = struct{}{}

	err := a.validateAndApplyBid("tL1", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no user being auctioned")
}

func TestBid_MinIncrementBoundary(t *testing.T) {
	spec := Spec{
		LeaderIDs:      []int64{101, 102},
		StartingPoints: []int{100, 100},
		UserIDs:        []int64{1},
	}
	tokens := map[string]token.Info{
		"tL1": {AuctionID: "x", UserID: 101, Role: token.RoleLeader},
		"tL2": {AuctionID: "x", UserID: 102, Role: token.RoleLeader},
	}
	a := New("x", spec, tokens, fastConfig(30), testLogger(), nil)
	a.Run()
	defer a.Stop()

	connectAndCapture(t, a, "tL1")
	connectAndCapture(t, a, "tL2")

	require.NoError(t, a.PlaceBid("tL1", 5))

	err := a.PlaceBid("tL2", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bid must be at least")

	require.NoError(t, a.PlaceBid("tL2", 6))
}
