package auction

type commandKind int

const (
	cmdConnect commandKind = iota
	cmdDisconnect
	cmdPlaceBid
	cmdTimerTick
	cmdTimerExpiry
	cmdWaitingTTLFire
	cmdTerminateFire
	cmdSnapshot
	cmdStop
)

// command is the single mailbox message shape the Auction's run loop
// consumes. Every state mutation — external or timer-driven — funnels
// through here, which is what makes the per-auction state machine
// single-threaded despite timers and client I/O living on their own
// goroutines.
type command struct {
	kind commandKind

	token  string
	amount int

	// generation guards the one-shot WAITING/terminate timers: a fire
	// command is only honored if it still matches the generation that
	// scheduled it, so a cancelled-then-rescheduled timer can never act
	// on stale state.
	generation uint64

	// tick carries the remaining seconds for cmdTimerTick.
	tick int

	reply chan any
}
