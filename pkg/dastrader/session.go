// Package dastrader implements the per-account connection engine for the
// DAS Trader CMD API: a line-oriented ASCII protocol over TCP with no
// framing, no correlation ids and advisory-only section markers. Command
// replies and unsolicited push lines share one socket, so a session keeps a
// background listener that is paused while a foreground command runs.
package dastrader

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/model"
	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/parser"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// HandlerKind enumerates the push line classes a handler can subscribe to.
type HandlerKind int

const (
	HandlerPosition HandlerKind = iota
	HandlerOrder
	HandlerTrade
	HandlerAccount
	HandlerQuote
)

// PushHandler receives one raw push line for an account. Handlers run on
// the listener goroutine; a panic is logged and does not stop the loop.
type PushHandler func(accountID, line string)

// Settle delays after writing a command, before the first read. The
// terminal gives no reply-ready signal; mutating commands need longer.
const (
	settleMutating = 200 * time.Millisecond
	settleRead     = 100 * time.Millisecond
	settleDefault  = 500 * time.Microsecond
)

// Session is one TCP connection to the terminal for one brokerage account.
// The transport handle is owned exclusively by the session; at most one
// command is in flight at a time.
type Session struct {
	accountID string
	cred      model.Credential
	t         Timeouts
	log       *zap.SugaredLogger

	mu           sync.Mutex // conn, state, lastErr, listener channels
	conn         net.Conn
	state        State
	lastErr      string
	listenerStop chan struct{}
	listenerDone chan struct{}

	handlerMu sync.RWMutex
	handlers  map[HandlerKind]PushHandler

	cmdMu  sync.Mutex  // serializes SendCommand
	paused atomic.Bool // observed by the listener poll loop
}

func NewSession(accountID string, cred model.Credential, t Timeouts) *Session {
	return &Session{
		accountID: accountID,
		cred:      cred,
		t:         t,
		log:       zap.S().With("account_id", accountID),
		state:     StateDisconnected,
		handlers:  make(map[HandlerKind]PushHandler),
	}
}

func (s *Session) AccountID() string { return s.accountID }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Connected() bool { return s.State() == StateAuthenticated }

// LastError returns the error recorded by the most recent failed connect or
// broken command, empty after a successful connect.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// RegisterHandler subscribes a handler for one push line class. The latest
// registration for a kind wins.
func (s *Session) RegisterHandler(kind HandlerKind, h PushHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handlers[kind] = h
}

// Connect dials the terminal, performs the LOGIN handshake and starts the
// background listener. A failure leaves the session in StateFailed with the
// error recorded; there is no internal retry. The login response is logged
// but not validated: the protocol does not reliably signal a bad login in a
// parseable way.
func (s *Session) Connect(ctx context.Context) error {
	s.setState(StateConnecting)

	dialer := net.Dialer{Timeout: s.t.Dial}
	conn, err := dialer.DialContext(ctx, "tcp", s.cred.Addr())
	if err != nil {
		kind := ErrConnectFailed
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() || errors.Is(err, context.DeadlineExceeded) {
			kind = ErrConnectTimeout
		}
		return s.failConnect(fmt.Errorf("%w: %v", kind, err), nil)
	}

	login := fmt.Sprintf("LOGIN %s %s %s\r\n", s.cred.Username, s.cred.Password, s.cred.Account)
	if _, err := conn.Write([]byte(login)); err != nil {
		return s.failConnect(fmt.Errorf("%w: login write: %v", ErrIO, err), conn)
	}
	time.Sleep(s.t.LoginSettle)

	resp, err := readAvailable(conn, s.t.LoginRead, s.t.DrainRead)
	if err != nil {
		return s.failConnect(fmt.Errorf("%w: login read: %v", ErrIO, err), conn)
	}
	if len(resp) == 0 {
		return s.failConnect(fmt.Errorf("%w: no login response within %s", ErrLoginTimeout, s.t.LoginRead), conn)
	}
	s.log.Infow("login response", "response", truncate(strings.TrimSpace(string(resp)), 200))

	stop := make(chan struct{})
	done := make(chan struct{})
	s.mu.Lock()
	s.conn = conn
	s.state = StateAuthenticated
	s.lastErr = ""
	s.listenerStop = stop
	s.listenerDone = done
	s.mu.Unlock()

	go s.listen(conn, stop, done)
	return nil
}

// Reconnect tears the session down and dials again with the same identity.
func (s *Session) Reconnect(ctx context.Context) error {
	s.Disconnect()
	return s.Connect(ctx)
}

// Disconnect stops the listener, sends a best-effort QUIT and closes the
// transport. Safe to call repeatedly and on a never-connected session.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.state = StateDisconnected
	conn := s.conn
	s.conn = nil
	stop, done := s.listenerStop, s.listenerDone
	s.listenerStop, s.listenerDone = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if conn != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		_, _ = conn.Write([]byte("QUIT\r\n"))
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
}

// SendCommand writes one command line and collects its reply. Execution is
// serialized per session: the listener is paused, bytes left over from a
// prior exchange are discarded, and reads continue until the command's
// expected marker shows up or the link goes quiet within the overall
// timeout. An expected marker that never shows yields ErrResponseMismatch
// together with whatever text did arrive; callers applying state must
// discard that payload.
func (s *Session) SendCommand(ctx context.Context, text string) (string, error) {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	s.mu.Lock()
	conn, state := s.conn, s.state
	s.mu.Unlock()
	if state != StateAuthenticated || conn == nil {
		return "", ErrNotConnected
	}

	cmd := firstWord(text)
	log := s.log.With("cmd", cmd, "cmd_id", uuid.NewString()[:8])

	s.paused.Store(true)
	defer s.paused.Store(false)
	// Let a listener read already in flight run out before touching the
	// socket ourselves.
	time.Sleep(s.t.IdlePoll)

	if stale, err := readAvailable(conn, s.t.DrainRead, s.t.DrainRead); err != nil {
		return "", s.commandBroken(log, fmt.Errorf("drain: %w", err))
	} else if len(stale) > 0 {
		log.Debugw("discarded stale bytes before command", "bytes", len(stale))
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := conn.Write([]byte(text + "\r\n")); err != nil {
		return "", s.commandBroken(log, fmt.Errorf("write: %w", err))
	}
	time.Sleep(settleDelay(text))

	marker := expectedMarker(text)
	local := isLocalHost(s.cred.Host)
	overall := s.t.CommandLocal
	if !local {
		overall = s.t.CommandRemote
	}
	deadline := time.Now().Add(overall)

	var acc []byte
	for {
		chunk, err := readAvailable(conn, s.t.PerRead, s.t.DrainRead)
		acc = append(acc, chunk...)
		if err != nil {
			return "", s.commandBroken(log, fmt.Errorf("read: %w", err))
		}
		if marker != "" && strings.Contains(string(acc), marker) {
			return strings.TrimSpace(string(acc)), nil
		}
		if len(chunk) == 0 && len(acc) > 0 {
			break // link went quiet after delivering something
		}
		if time.Now().After(deadline) {
			break
		}
	}

	reply := strings.TrimSpace(string(acc))
	if marker == "" {
		return reply, nil
	}

	// Marker defined but missing. On a slower link, wait once more and
	// concatenate whatever straggles in; best effort, not a guarantee.
	if !local {
		time.Sleep(s.t.RemoteGrace)
		extra, err := readAvailable(conn, s.t.PerRead, s.t.DrainRead)
		acc = append(acc, extra...)
		if err != nil {
			return "", s.commandBroken(log, fmt.Errorf("grace read: %w", err))
		}
		if strings.Contains(string(acc), marker) {
			return strings.TrimSpace(string(acc)), nil
		}
		reply = strings.TrimSpace(string(acc))
	}

	if len(acc) == 0 {
		return "", fmt.Errorf("%w: no reply to %s within %s", ErrCommandTimeout, cmd, overall)
	}
	log.Warnw("expected marker missing from reply", "marker", marker, "bytes", len(acc))
	return reply, fmt.Errorf("%w: reply to %s lacks %q", ErrResponseMismatch, cmd, marker)
}

// listen drains push lines while no command is running. While paused it
// sleeps and re-checks instead of reading, so it cannot race a command's
// reads.
func (s *Session) listen(conn net.Conn, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}
		if s.State() != StateAuthenticated {
			return
		}
		if s.paused.Load() {
			time.Sleep(s.t.PausePoll)
			continue
		}
		data, err := readAvailable(conn, s.t.IdlePoll, s.t.DrainRead)
		if len(data) > 0 {
			s.dispatch(string(data))
		}
		if err != nil {
			select {
			case <-stop:
			default:
				s.log.Warnw("listener read failed", "error", err)
				s.markBroken(err)
			}
			return
		}
	}
}

// dispatch classifies each non-empty line by its leading sigil and invokes
// the registered handler. Unrecognized lines are dropped.
func (s *Session) dispatch(data string) {
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var kind HandlerKind
		switch {
		case strings.HasPrefix(line, parser.SigilPosition):
			kind = HandlerPosition
		case strings.HasPrefix(line, parser.SigilOrder), strings.HasPrefix(line, parser.SigilOrderAction):
			kind = HandlerOrder
		case strings.HasPrefix(line, parser.SigilTrade):
			kind = HandlerTrade
		case strings.HasPrefix(line, parser.SigilAccountInfo), strings.HasPrefix(line, parser.SigilBuyingPower):
			kind = HandlerAccount
		case strings.HasPrefix(line, parser.SigilQuote):
			kind = HandlerQuote
		default:
			continue
		}
		s.invoke(kind, line)
	}
}

func (s *Session) invoke(kind HandlerKind, line string) {
	s.handlerMu.RLock()
	h := s.handlers[kind]
	s.handlerMu.RUnlock()
	if h == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("push handler panicked", "line", line, "panic", r)
		}
	}()
	h(s.accountID, line)
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) failConnect(err error, conn net.Conn) error {
	if conn != nil {
		_ = conn.Close()
	}
	s.mu.Lock()
	s.state = StateFailed
	s.lastErr = err.Error()
	s.mu.Unlock()
	s.log.Warnw("connect failed", "error", err)
	return err
}

// markBroken flips an authenticated session to Disconnected after an I/O
// failure. A deliberate Disconnect has already left Authenticated, so this
// never clobbers it.
func (s *Session) markBroken(err error) {
	s.mu.Lock()
	if s.state == StateAuthenticated {
		s.state = StateDisconnected
		s.lastErr = err.Error()
	}
	s.mu.Unlock()
}

func (s *Session) commandBroken(log *zap.SugaredLogger, err error) error {
	log.Warnw("command failed", "error", err)
	s.markBroken(err)
	return fmt.Errorf("%w: %v", ErrIO, err)
}

// readAvailable accumulates whatever the socket delivers within window.
// Once bytes start arriving the deadline shrinks to drain, so the call
// returns shortly after the link goes quiet. A deadline expiry is a normal
// empty-handed return, not an error.
func readAvailable(conn net.Conn, window, drain time.Duration) ([]byte, error) {
	var out []byte
	buf := make([]byte, 4096)
	deadline := time.Now().Add(window)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return out, err
		}
		n, err := conn.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
			deadline = time.Now().Add(drain)
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return out, nil
			}
			return out, err
		}
	}
}

// expectedMarker maps a command to the substring its reply must contain,
// empty when the reply carries no known marker. Containment is the only
// correlation this protocol offers.
func expectedMarker(command string) string {
	switch {
	case strings.HasPrefix(command, "GET POSITIONS"):
		return parser.SigilPosition
	case strings.HasPrefix(command, "GET ORDERS"):
		return parser.SigilOrder
	case strings.HasPrefix(command, "GET TRADES"):
		return parser.SigilTrade
	case strings.HasPrefix(command, "GET AccountInfo"):
		return parser.SigilAccountInfo
	case strings.HasPrefix(command, "GET BP"):
		return parser.SigilBuyingPower
	}
	return ""
}

func settleDelay(command string) time.Duration {
	switch {
	case strings.Contains(command, "REPLACE"), strings.Contains(command, "COMPLEXORDER"):
		return settleMutating
	case strings.HasPrefix(command, "GET"), strings.HasPrefix(command, "NEWORDER"), strings.HasPrefix(command, "SL"):
		return settleRead
	}
	return settleDefault
}

func isLocalHost(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i > 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
