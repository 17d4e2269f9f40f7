package auction

import "time"

// Status is one of the three states an Auction's state machine occupies.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Config holds the tunables named in the manager-facing API. All fields
// have sensible defaults via DefaultConfig.
type Config struct {
	TimerDuration   int           // seconds, reset-on-bid countdown length
	WaitingTTL      time.Duration // WAITING auto-delete
	TerminateGrace  time.Duration // COMPLETED self-terminate delay
	MaxTeamSize     int
	MinBidIncrement int
}

// DefaultConfig returns the standard production tunables.
func DefaultConfig() Config {
	return Config{
		TimerDuration:   5,
		WaitingTTL:      300 * time.Second,
		TerminateGrace:  5 * time.Second,
		MaxTeamSize:     5,
		MinBidIncrement: 1,
	}
}

// Team is a captain's roster and point balance. TeamID is dense from 1.
type Team struct {
	TeamID    int64   `json:"team_id"`
	LeaderID  int64   `json:"leader_id"`
	MemberIDs []int64 `json:"member_id_list"`
	Points    int     `json:"points"`
}

func (t Team) clone() Team {
	members := make([]int64, len(t.MemberIDs))
	copy(members, t.MemberIDs)
	return Team{TeamID: t.TeamID, LeaderID: t.LeaderID, MemberIDs: members, Points: t.Points}
}

// Snapshot is the full observable state of an auction at one instant:
// the body of each client's `init` message and of the admin/debug
// snapshot endpoints.
type Snapshot struct {
	Status        Status  `json:"status"`
	Teams         []Team  `json:"teams"`
	AuctionQueue  []int64 `json:"auction_queue"`
	UnsoldQueue   []int64 `json:"unsold_queue"`
	CurrentUserID *int64  `json:"current_user_id"`
	CurrentBid    *int    `json:"current_bid"`
	CurrentBidder *int64  `json:"current_bidder"`
	Timer         *int    `json:"timer"`
}

// InitPayload merges the Snapshot with the connecting client's own
// identity.
type InitPayload struct {
	Snapshot
	UserID   int64  `json:"user_id"`
	TeamID   *int64 `json:"team_id,omitempty"`
	IsLeader bool   `json:"is_leader"`
}

// Spec holds everything AddAuction needs to seat an auction: the
// participating users, which are leaders, and which team each leader
// captains. Non-leader users start unassigned, in AuctionQueue order.
type Spec struct {
	PresetID      string
	TimerDuration int // 0 means "use Config.TimerDuration"

	// LeaderIDs, in team-id order: LeaderIDs[i] captains team i+1.
	LeaderIDs []int64
	// StartingPoints, parallel to LeaderIDs.
	StartingPoints []int
	// UserIDs are the non-leader users to auction, in queue order.
	UserIDs []int64
}
