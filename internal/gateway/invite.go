package gateway

import (
	"context"
	"log/slog"
)

// InviteDispatcher is the out-of-band invitation transport named as an
// external collaborator in the purpose & scope section — a chat bot or
// similar channel that delivers a per-user join link built from a minted
// token. It is out of core; this package only depends on the interface.
type InviteDispatcher interface {
	DispatchInvite(ctx context.Context, auctionID string, userID int64, token string) error
}

// LogDispatcher is the default InviteDispatcher: it logs the invite
// instead of delivering it anywhere, standing in for the unbuilt
// external integration; it never fails the request.
type LogDispatcher struct {
	Logger *slog.Logger
}

func (d *LogDispatcher) DispatchInvite(_ context.Context, auctionID string, userID int64, token string) error {
	d.Logger.Info("invite_dispatched",
		slog.String("auction_id", auctionID),
		slog.Int64("user_id", userID),
		slog.String("token", truncateToken(token)),
	)
	return nil
}

// truncateToken keeps only a token's first 8 chars for logging rather
// than the full value — a token is the credential granting access to an
// entire auction session.
func truncateToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
