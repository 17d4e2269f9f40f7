package auction

import (
	"fmt"
	"time"

	"github.com/draftops/auctioneer/internal/metrics"
	"github.com/draftops/auctioneer/internal/token"
)

// --- connection lifecycle ---

func (a *Auction) handleConnect(cmd command) {
	if _, live := a.connected[cmd.token]; live {
		a.reply(cmd, ErrAlreadyConnected)
		return
	}
	binding, ok := a.tokens[cmd.token]
	if !ok {
		a.reply(cmd, ErrUnknownToken)
		return
	}

	a.connected[cmd.token] = struct{}{}

	var teamID *int64
	if id, isLeader := a.teamOf[binding.userID]; isLeader {
		teamID = &id
	}

	payload := InitPayload{
		Snapshot: a.snapshotLocked(),
		UserID:   binding.userID,
		TeamID:   teamID,
		IsLeader: binding.role == token.RoleLeader,
	}
	a.reply(cmd, payload)

	if a.status == StatusWaiting && a.allLeadersConnected() {
		a.transitionToInProgress()
	}
}

func (a *Auction) handleDisconnect(cmd command) {
	binding, ok := a.tokens[cmd.token]
	if !ok {
		return
	}
	delete(a.connected, cmd.token)

	if a.status == StatusInProgress && binding.role == token.RoleLeader && !a.allLeadersConnected() {
		a.transitionToWaiting()
	}
}

func (a *Auction) allLeadersConnected() bool {
	for tok, binding := range a.tokens {
		if binding.role != token.RoleLeader {
			continue
		}
		if _, ok := a.connected[tok]; !ok {
			return false
		}
	}
	return true
}

// --- bid acceptance ---

func (a *Auction) handlePlaceBid(cmd command) {
	if err := a.validateAndApplyBid(cmd.token, cmd.amount); err != nil {
		metrics.BidsTotal.WithLabelValues("rejected").Inc()
		a.reply(cmd, err)
		return
	}
	metrics.BidsTotal.WithLabelValues("accepted").Inc()
	a.reply(cmd, nil)
}

func (a *Auction) validateAndApplyBid(tok string, amount int) error {
	if _, live := a.connected[tok]; !live {
		return reject("token not connected")
	}
	binding := a.tokens[tok]
	if binding.role != token.RoleLeader {
		return reject("only leaders can place bids")
	}
	teamID, ok := a.teamOf[binding.userID]
	if !ok {
		return reject("team not found")
	}
	if a.status != StatusInProgress {
		return reject("auction not in progress")
	}
	if a.currentUserID == nil {
		return reject("no user being auctioned")
	}

	team := a.teams[teamID]
	if len(team.MemberIDs) >= a.cfg.MaxTeamSize {
		return reject(fmt.Sprintf("team already has %d members", a.cfg.MaxTeamSize))
	}

	remainingSlots := a.cfg.MaxTeamSize - len(team.MemberIDs)
	minReserve := remainingSlots - 1
	maxAllowedBid := team.Points - minReserve
	if amount > maxAllowedBid {
		return reject(fmt.Sprintf("bid too high (max %d)", maxAllowedBid))
	}

	if amount > team.Points {
		return reject("insufficient points")
	}

	minBid := a.cfg.MinBidIncrement
	if a.currentBid != nil {
		minBid = *a.currentBid + a.cfg.MinBidIncrement
	}
	if amount < minBid {
		return reject(fmt.Sprintf("bid must be at least %d", minBid))
	}

	metrics.BidAmount.WithLabelValues(a.id).Observe(float64(amount))
	a.currentBid = &amount
	a.currentBidder = &teamID
	a.timer.Cancel()
	a.hub.Broadcast("bid_placed", map[string]int64{
		"team_id":   teamID,
		"leader_id": team.LeaderID,
		"amount":    int64(amount),
	})
	a.startTimer(a.cfg.TimerDuration)
	return nil
}

// --- timer-driven transitions ---

func (a *Auction) handleTimerTick(cmd command) {
	remaining := cmd.tick
	a.lastTick = &remaining
	a.hub.Broadcast("timer", map[string]int{"timer": remaining})
}

func (a *Auction) handleTimerExpiry() {
	metrics.TimerExpiriesTotal.Inc()
	if a.currentBid == nil {
		a.unsoldQueue = append(a.unsoldQueue, *a.currentUserID)
		a.hub.Broadcast("user_unsold", struct{}{})
	} else {
		teamID := *a.currentBidder
		team := a.teams[teamID]
		team.Points -= *a.currentBid
		team.MemberIDs = append(team.MemberIDs, *a.currentUserID)
		metrics.UserSoldTotal.Inc()
		a.hub.Broadcast("user_sold", map[string]any{"teams": a.teamsSnapshot()})
	}
	a.nextUser()
}

// nextUser selects the next user up for bidding, invoked on entry to IN_PROGRESS
// and after every sale/pass.
func (a *Auction) nextUser() {
	a.timer.Cancel()

	if incomplete, ok := a.soleIncompleteTeam(); ok {
		a.applySingleTeamShortcut(incomplete)
		return
	}

	if len(a.auctionQueue) == 0 && len(a.unsoldQueue) > 0 {
		a.auctionQueue = a.unsoldQueue
		a.unsoldQueue = nil
	}

	if len(a.auctionQueue) == 0 {
		a.transitionToCompleted()
		return
	}

	head := a.auctionQueue[0]
	a.auctionQueue = a.auctionQueue[1:]
	a.currentUserID = &head
	a.currentBid = nil
	a.currentBidder = nil
	a.lastTick = nil

	a.hub.Broadcast("next_user", map[string]int64{"user_id": head})
	a.hub.Broadcast("queue_update", map[string][]int64{
		"auction_queue": a.auctionQueue,
		"unsold_queue":  a.unsoldQueue,
	})
	a.startTimer(a.cfg.TimerDuration)
}

// soleIncompleteTeam returns the one team with fewer than MaxTeamSize
// members, and ok=true only when exactly one such team exists.
func (a *Auction) soleIncompleteTeam() (*Team, bool) {
	var found *Team
	for id := int64(1); id <= int64(len(a.teams)); id++ {
		team := a.teams[id]
		if len(team.MemberIDs) < a.cfg.MaxTeamSize {
			if found != nil {
				return nil, false
			}
			found = team
		}
	}
	if found == nil {
		return nil, false
	}
	return found, true
}

func (a *Auction) applySingleTeamShortcut(team *Team) {
	combined := append(append([]int64{}, a.auctionQueue...), a.unsoldQueue...)
	a.auctionQueue = nil
	a.unsoldQueue = nil

	need := a.cfg.MaxTeamSize - len(team.MemberIDs)
	taken := combined
	if len(combined) > need {
		taken = combined[:need]
		a.unsoldQueue = append([]int64{}, combined[need:]...)
	}
	team.MemberIDs = append(team.MemberIDs, taken...)
	metrics.UserSoldTotal.Add(float64(len(taken)))

	a.currentUserID = nil
	a.currentBid = nil
	a.currentBidder = nil
	a.lastTick = nil

	a.hub.Broadcast("user_sold", map[string]any{"teams": a.teamsSnapshot()})
	a.hub.Broadcast("queue_update", map[string][]int64{
		"auction_queue": a.auctionQueue,
		"unsold_queue":  a.unsoldQueue,
	})
	a.transitionToCompleted()
}

func (a *Auction) startTimer(initial int) {
	a.timer.Start(initial,
		func(remaining int) { a.enqueue(command{kind: cmdTimerTick, tick: remaining}) },
		func() { a.enqueue(command{kind: cmdTimerExpiry}) },
	)
}

// --- status transitions (authoritative table) ---

func (a *Auction) transitionToInProgress() {
	metrics.AuctionStatusTransitions.WithLabelValues(string(a.status), string(StatusInProgress)).Inc()
	a.cancelWaitingTTL()
	a.status = StatusInProgress
	a.broadcastStatus()

	if !a.started {
		a.started = true
		a.nextUser()
		return
	}

	resumeFrom := a.cfg.TimerDuration
	if a.pausedTimer != nil {
		resumeFrom = *a.pausedTimer
	}
	a.pausedTimer = nil
	a.startTimer(resumeFrom)
}

func (a *Auction) transitionToWaiting() {
	metrics.AuctionStatusTransitions.WithLabelValues(string(a.status), string(StatusWaiting)).Inc()
	if a.timer.Running() && a.lastTick != nil {
		v := *a.lastTick
		a.pausedTimer = &v
	} else {
		a.pausedTimer = nil
	}
	a.timer.Cancel()
	a.status = StatusWaiting
	a.scheduleWaitingTTL()
	a.broadcastStatus()
}

func (a *Auction) transitionToCompleted() {
	metrics.AuctionStatusTransitions.WithLabelValues(string(a.status), string(StatusCompleted)).Inc()
	metrics.AuctionsCompletedTotal.Inc()
	a.currentUserID = nil
	a.currentBid = nil
	a.currentBidder = nil
	a.timer.Cancel()
	a.cancelWaitingTTL()
	a.status = StatusCompleted
	a.scheduleTerminate()
	a.broadcastStatus()
}

func (a *Auction) broadcastStatus() {
	a.hub.Broadcast("status", map[string]string{"status": string(a.status)})
}

// --- one-shot background timers ---

func (a *Auction) scheduleWaitingTTL() {
	if a.waitingTimer != nil {
		a.waitingTimer.Stop()
	}
	a.ttlGeneration++
	gen := a.ttlGeneration
	a.waitingTimer = time.AfterFunc(a.cfg.WaitingTTL, func() {
		a.enqueue(command{kind: cmdWaitingTTLFire, generation: gen})
	})
}

func (a *Auction) cancelWaitingTTL() {
	if a.waitingTimer != nil {
		a.waitingTimer.Stop()
	}
	a.ttlGeneration++
}

func (a *Auction) scheduleTerminate() {
	a.termGeneration++
	gen := a.termGeneration
	a.terminateTimer = time.AfterFunc(a.cfg.TerminateGrace, func() {
		a.enqueue(command{kind: cmdTerminateFire, generation: gen})
	})
}

func (a *Auction) handleWaitingTTLFire(cmd command) {
	if cmd.generation != a.ttlGeneration || a.status != StatusWaiting {
		return
	}
	a.transitionToCompleted()
}

func (a *Auction) handleTerminateFire(cmd command) {
	if cmd.generation != a.termGeneration {
		return
	}
	if a.onTerminated != nil {
		go a.onTerminated(a.id)
	}
}

// --- snapshot construction ---

func (a *Auction) handleSnapshot(cmd command) {
	a.reply(cmd, a.snapshotLocked())
}

func (a *Auction) snapshotLocked() Snapshot {
	return Snapshot{
		Status:        a.status,
		Teams:         a.teamsSnapshot(),
		AuctionQueue:  append([]int64{}, a.auctionQueue...),
		UnsoldQueue:   append([]int64{}, a.unsoldQueue...),
		CurrentUserID: cloneInt64Ptr(a.currentUserID),
		CurrentBid:    cloneIntPtr(a.currentBid),
		CurrentBidder: cloneInt64Ptr(a.currentBidder),
		Timer:         a.currentTimerValue(),
	}
}

func (a *Auction) currentTimerValue() *int {
	if a.timer.Running() {
		return cloneIntPtr(a.lastTick)
	}
	return cloneIntPtr(a.pausedTimer)
}

func (a *Auction) teamsSnapshot() []Team {
	teams := make([]Team, 0, len(a.teams))
	for id := int64(1); id <= int64(len(a.teams)); id++ {
		if team, ok := a.teams[id]; ok {
			teams = append(teams, team.clone())
		}
	}
	return teams
}

func cloneInt64Ptr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
