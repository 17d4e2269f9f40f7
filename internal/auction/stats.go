package auction

// Stats is the shape the admin/debug surface dumps per auction.
type Stats struct {
	AuctionID    string `json:"auction_id"`
	Status       Status `json:"status"`
	Processed    int64  `json:"commands_processed"`
	Sinks        int    `json:"connected_sinks"`
	QueueDepth   int    `json:"queue_depth"`
	UnsoldDepth  int    `json:"unsold_depth"`
	TeamsFull    int    `json:"teams_full"`
	TeamsPartial int    `json:"teams_partial"`
}

// Stats reports cheap, lock-free-from-the-caller's-perspective counters.
// Processed is read via an atomic, Sinks from the hub, and everything
// else from a point-in-time Snapshot, so concurrent mutation may make
// Sinks/queue depths stale by the time they're read — acceptable for a
// debug endpoint.
func (a *Auction) Stats() Stats {
	snap := a.Snapshot()

	full, partial := 0, 0
	for _, team := range snap.Teams {
		if len(team.MemberIDs) >= a.cfg.MaxTeamSize {
			full++
		} else {
			partial++
		}
	}

	return Stats{
		AuctionID:    a.id,
		Status:       snap.Status,
		Processed:    a.processed.Load(),
		Sinks:        a.hub.Count(),
		QueueDepth:   len(snap.AuctionQueue),
		UnsoldDepth:  len(snap.UnsoldQueue),
		TeamsFull:    full,
		TeamsPartial: partial,
	}
}
