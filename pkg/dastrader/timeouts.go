package dastrader

import "time"

// Timeouts bound every read and wait the protocol performs. The CMD API
// has no framing and no reply-ready signal, so all of these are part of the
// protocol contract, not tuning knobs; see DefaultTimeouts for the values
// the terminal is known to tolerate.
type Timeouts struct {
	// Dial bounds the TCP connect. Short so an unreachable terminal fails
	// fast.
	Dial time.Duration
	// LoginSettle is the wait between sending LOGIN and reading its reply.
	LoginSettle time.Duration
	// LoginRead bounds the read of the login response. Expiring here fails
	// the connect attempt even though the TCP dial succeeded.
	LoginRead time.Duration
	// PerRead bounds each individual socket read.
	PerRead time.Duration
	// DrainRead is the deadline extension applied once bytes start
	// arriving: a read that stays quiet this long ends the accumulation.
	DrainRead time.Duration
	// CommandLocal / CommandRemote bound a whole command read phase,
	// depending on whether the terminal host is local.
	CommandLocal  time.Duration
	CommandRemote time.Duration
	// RemoteGrace is the extra wait before one last read when an expected
	// marker has not shown up on a non-local link.
	RemoteGrace time.Duration
	// PausePoll is how often a paused listener re-checks the pause flag.
	PausePoll time.Duration
	// IdlePoll bounds each listener read attempt.
	IdlePoll time.Duration
	// BulkConnect is the aggregate deadline Registry.ConnectAll enforces
	// across all accounts.
	BulkConnect time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Dial:          time.Second,
		LoginSettle:   100 * time.Millisecond,
		LoginRead:     500 * time.Millisecond,
		PerRead:       150 * time.Millisecond,
		DrainRead:     50 * time.Millisecond,
		CommandLocal:  500 * time.Millisecond,
		CommandRemote: 2 * time.Second,
		RemoteGrace:   500 * time.Millisecond,
		PausePoll:     50 * time.Millisecond,
		IdlePoll:      100 * time.Millisecond,
		BulkConnect:   5 * time.Second,
	}
}
