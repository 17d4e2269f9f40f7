package auction

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/draftops/auctioneer/internal/broadcast"
	"github.com/draftops/auctioneer/internal/clock"
	"github.com/draftops/auctioneer/internal/token"
)

// tokenBinding is what an Auction privately remembers about one of its
// own tokens, handed to it once by the Manager at creation — the Auction
// never calls back into the shared Registry, which is what keeps it free
// of the circular reference the original source resolved with a lazy
// import (see the back-pointer note in SPEC_FULL.md §9).
type tokenBinding struct {
	userID int64
	role   token.Role
}

// mailboxSize comfortably exceeds any burst of client activity a single
// auction sees — ticks, one bid per leader at a time, connect/disconnect
// churn.
const mailboxSize = 64

// Auction is one live drafting session. All of its fields below the
// run-loop marker are owned exclusively by the goroutine started in Run
// and must never be touched from another goroutine; every external
// interaction goes through the command mailbox.
type Auction struct {
	id       string
	presetID string
	cfg      Config
	logger   *slog.Logger

	hub   *broadcast.Hub
	timer *clock.Timer

	onTerminated func(auctionID string)

	cmds chan command
	done chan struct{}
	wg   sync.WaitGroup

	stopOnce sync.Once

	// --- run-loop-owned state below ---

	status Status

	leaderIDs map[int64]struct{}
	teamOf    map[int64]int64 // leader user id -> team id
	teams     map[int64]*Team // team id -> team

	auctionQueue []int64
	unsoldQueue  []int64

	currentUserID *int64
	currentBid    *int
	currentBidder *int64

	pausedTimer *int
	lastTick    *int
	started     bool

	tokens    map[string]tokenBinding
	connected map[string]struct{}

	ttlGeneration  uint64
	termGeneration uint64
	waitingTimer   *time.Timer
	terminateTimer *time.Timer

	processed atomic.Int64
}

// New constructs an Auction from a Spec and the tokens the Manager has
// already minted for it. The Auction does not start its goroutine until
// Run is called.
func New(id string, spec Spec, tokens map[string]token.Info, cfg Config, logger *slog.Logger, onTerminated func(string)) *Auction {
	if spec.TimerDuration > 0 {
		cfg.TimerDuration = spec.TimerDuration
	}

	a := &Auction{
		id:           id,
		presetID:     spec.PresetID,
		cfg:          cfg,
		logger:       logger.With(slog.String("auction_id", id)),
		hub:          broadcast.New(logger),
		timer:        clock.New(),
		onTerminated: onTerminated,
		cmds:         make(chan command, mailboxSize),
		done:         make(chan struct{}),
		status:       StatusWaiting,
		leaderIDs:    make(map[int64]struct{}, len(spec.LeaderIDs)),
		teamOf:       make(map[int64]int64, len(spec.LeaderIDs)),
		teams:        make(map[int64]*Team, len(spec.LeaderIDs)),
		auctionQueue: append([]int64{}, spec.UserIDs...),
		unsoldQueue:  []int64{},
		tokens:       make(map[string]tokenBinding, len(tokens)),
		connected:    make(map[string]struct{}),
	}

	for i, leaderID := range spec.LeaderIDs {
		teamID := int64(i + 1)
		points := 0
		if i < len(spec.StartingPoints) {
			points = spec.StartingPoints[i]
		}
		a.leaderIDs[leaderID] = struct{}{}
		a.teamOf[leaderID] = teamID
		a.teams[teamID] = &Team{
			TeamID:    teamID,
			LeaderID:  leaderID,
			MemberIDs: []int64{leaderID}, // pre-seated: leader occupies slot 1
			Points:    points,
		}
	}

	for tok, info := range tokens {
		role := token.RoleObserver
		if info.Role == token.RoleLeader {
			role = token.RoleLeader
		}
		a.tokens[tok] = tokenBinding{userID: info.UserID, role: role}
	}

	return a
}

// ID returns the auction's identity.
func (a *Auction) ID() string { return a.id }

// Hub exposes the broadcast hub so the gateway can register/unregister
// client sinks directly without round-tripping every connect/disconnect
// through the mailbox for the sink registration itself (only the
// lifecycle bookkeeping goes through the mailbox).
func (a *Auction) Hub() *broadcast.Hub { return a.hub }

// Run starts the auction's single goroutine, which immediately schedules
// the initial WAITING auto-delete before accepting any mailbox command.
// Callers must call Run exactly once.
func (a *Auction) Run() {
	a.hub.Start()
	a.wg.Add(1)
	go a.loop()
}

func (a *Auction) enqueue(cmd command) {
	select {
	case a.cmds <- cmd:
	case <-a.done:
	}
}

func (a *Auction) request(cmd command) any {
	cmd.reply = make(chan any, 1)
	select {
	case a.cmds <- cmd:
	case <-a.done:
		return ErrAuctionTerminated
	}
	select {
	case res := <-cmd.reply:
		return res
	case <-a.done:
		return ErrAuctionTerminated
	}
}

// Connect performs the handshake lifecycle for an
// already-token-resolved client: duplicate rejection, registration,
// snapshot construction, and (if applicable) the WAITING→IN_PROGRESS
// transition. It returns the INIT payload to send to the new client.
func (a *Auction) Connect(tok string) (InitPayload, error) {
	res := a.request(command{kind: cmdConnect, token: tok})
	switch v := res.(type) {
	case InitPayload:
		return v, nil
	case error:
		return InitPayload{}, v
	default:
		return InitPayload{}, ErrAuctionTerminated
	}
}

// Disconnect removes a token's live connection and, if it belonged to a
// leader whose absence now breaks quorum, drives the pause transition.
func (a *Auction) Disconnect(tok string) {
	a.enqueue(command{kind: cmdDisconnect, token: tok})
}

// PlaceBid runs the full ordered bid-acceptance contract.
func (a *Auction) PlaceBid(tok string, amount int) error {
	res := a.request(command{kind: cmdPlaceBid, token: tok, amount: amount})
	if res == nil {
		return nil
	}
	if err, ok := res.(error); ok {
		return err
	}
	return nil
}

// Snapshot returns a point-in-time copy of the full state, used by the
// admin/debug surface.
func (a *Auction) Snapshot() Snapshot {
	res := a.request(command{kind: cmdSnapshot})
	if snap, ok := res.(Snapshot); ok {
		return snap
	}
	return Snapshot{Status: StatusCompleted}
}

// Stop tears the auction down immediately: stops the run loop (which
// cancels the timer and every pending one-shot on its way out) and drops
// every client sink from the hub. The sinks' underlying connections are
// not closed here. Stop is idempotent; the Manager's RemoveAuction calls
// it, including when the auction self-terminates through onTerminated.
func (a *Auction) Stop() {
	a.stopOnce.Do(func() {
		close(a.done)
		a.hub.Stop()
	})
	a.wg.Wait()
}

func (a *Auction) loop() {
	defer a.wg.Done()

	a.scheduleWaitingTTL()

	for {
		select {
		case <-a.done:
			a.timer.Cancel()
			if a.waitingTimer != nil {
				a.waitingTimer.Stop()
			}
			if a.terminateTimer != nil {
				a.terminateTimer.Stop()
			}
			return
		case cmd := <-a.cmds:
			a.dispatch(cmd)
		}
	}
}

func (a *Auction) dispatch(cmd command) {
	switch cmd.kind {
	case cmdConnect:
		a.handleConnect(cmd)
	case cmdDisconnect:
		a.handleDisconnect(cmd)
	case cmdPlaceBid:
		a.handlePlaceBid(cmd)
	case cmdTimerTick:
		a.handleTimerTick(cmd)
	case cmdTimerExpiry:
		a.handleTimerExpiry()
	case cmdWaitingTTLFire:
		a.handleWaitingTTLFire(cmd)
	case cmdTerminateFire:
		a.handleTerminateFire(cmd)
	case cmdSnapshot:
		a.handleSnapshot(cmd)
	case cmdStop:
		// handled via Stop()/done, nothing to do here.
	}
	a.processed.Add(1)
}

func (a *Auction) reply(cmd command, v any) {
	if cmd.reply == nil {
		return
	}
	cmd.reply <- v
}
