package dastrader

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTerminal speaks just enough of the CMD wire dialect for the session
// under test: it acknowledges LOGIN and answers commands from a scripted
// prefix table.
type fakeTerminal struct {
	ln net.Listener

	mu      sync.Mutex
	conn    net.Conn
	login   string
	replies map[string]string
}

func newFakeTerminal(t *testing.T) *fakeTerminal {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeTerminal{ln: ln, replies: make(map[string]string)}
	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeTerminal) credential() model.Credential {
	addr := f.ln.Addr().(*net.TCPAddr)
	return model.Credential{
		Host:     "127.0.0.1",
		Port:     addr.Port,
		Username: "user1",
		Password: "pass1",
		Account:  "ACC1",
	}
}

func (f *fakeTerminal) reply(prefix, response string) {
	f.mu.Lock()
	f.replies[prefix] = response
	f.mu.Unlock()
}

func (f *fakeTerminal) loginLine() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.login
}

func (f *fakeTerminal) push(line string) {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn != nil {
		_, _ = conn.Write([]byte(line))
	}
}

func (f *fakeTerminal) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()
		go f.handle(conn)
	}
}

func (f *fakeTerminal) handle(conn net.Conn) {
	defer conn.Close()
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "LOGIN"):
			f.mu.Lock()
			f.login = line
			f.mu.Unlock()
			_, _ = conn.Write([]byte("#LOGIN SUCCESSED\r\n"))
		case line == "QUIT":
			return
		default:
			f.mu.Lock()
			var resp string
			for prefix, r := range f.replies {
				if strings.HasPrefix(line, prefix) {
					resp = r
					break
				}
			}
			f.mu.Unlock()
			if resp != "" {
				_, _ = conn.Write([]byte(resp))
			}
		}
	}
}

func testTimeouts() Timeouts {
	return Timeouts{
		Dial:          500 * time.Millisecond,
		LoginSettle:   10 * time.Millisecond,
		LoginRead:     300 * time.Millisecond,
		PerRead:       50 * time.Millisecond,
		DrainRead:     20 * time.Millisecond,
		CommandLocal:  300 * time.Millisecond,
		CommandRemote: 600 * time.Millisecond,
		RemoteGrace:   50 * time.Millisecond,
		PausePoll:     5 * time.Millisecond,
		IdlePoll:      20 * time.Millisecond,
		BulkConnect:   2 * time.Second,
	}
}

func TestConnectPerformsLoginHandshake(t *testing.T) {
	f := newFakeTerminal(t)
	sess := NewSession("ACC1", f.credential(), testTimeouts())
	defer sess.Disconnect()

	require.NoError(t, sess.Connect(context.Background()))
	assert.Equal(t, StateAuthenticated, sess.State())
	assert.True(t, sess.Connected())
	assert.Empty(t, sess.LastError())
	assert.Equal(t, "LOGIN user1 pass1 ACC1", f.loginLine())
}

func TestConnectRefused(t *testing.T) {
	// grab a port with nothing listening on it
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	cred := model.Credential{Host: "127.0.0.1", Port: port, Username: "u", Password: "p", Account: "A"}
	sess := NewSession("ACC1", cred, testTimeouts())

	err = sess.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnectFailed), "got %v", err)
	assert.Equal(t, StateFailed, sess.State())
	assert.NotEmpty(t, sess.LastError())
}

func TestConnectLoginTimeout(t *testing.T) {
	// a listener that accepts but never answers LOGIN
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = bufio.NewReader(conn).ReadString('\n') // swallow LOGIN, say nothing
		time.Sleep(time.Second)
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	cred := model.Credential{Host: "127.0.0.1", Port: port, Username: "u", Password: "p", Account: "A"}
	sess := NewSession("ACC1", cred, testTimeouts())

	err = sess.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoginTimeout), "got %v", err)
	assert.Equal(t, StateFailed, sess.State())
}

func TestSendCommandNotConnected(t *testing.T) {
	sess := NewSession("ACC1", model.Credential{Host: "127.0.0.1", Port: 1}, testTimeouts())
	_, err := sess.SendCommand(context.Background(), "GET POSITIONS")
	assert.True(t, errors.Is(err, ErrNotConnected), "got %v", err)
}

func TestSendCommandMarkerBounded(t *testing.T) {
	f := newFakeTerminal(t)
	f.reply("GET POSITIONS", "#POS-BEGIN\r\n%POS AAPL 1 100 150.25 100 150.25 0.00 09:30:15 0.00\r\n#POS-END\r\n")

	sess := NewSession("ACC1", f.credential(), testTimeouts())
	defer sess.Disconnect()
	require.NoError(t, sess.Connect(context.Background()))

	resp, err := sess.SendCommand(context.Background(), "GET POSITIONS")
	require.NoError(t, err)
	assert.Contains(t, resp, "%POS AAPL")
}

func TestSendCommandMismatchedReply(t *testing.T) {
	f := newFakeTerminal(t)
	f.reply("GET POSITIONS", "something unrelated\r\n")

	sess := NewSession("ACC1", f.credential(), testTimeouts())
	defer sess.Disconnect()
	require.NoError(t, sess.Connect(context.Background()))

	resp, err := sess.SendCommand(context.Background(), "GET POSITIONS")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResponseMismatch), "got %v", err)
	// the accumulated text still comes back for diagnostics
	assert.Contains(t, resp, "something unrelated")
	// a mismatch is not an I/O failure, the session stays usable
	assert.True(t, sess.Connected())
}

func TestSendCommandTimeout(t *testing.T) {
	f := newFakeTerminal(t)
	// no scripted reply for GET TRADES

	sess := NewSession("ACC1", f.credential(), testTimeouts())
	defer sess.Disconnect()
	require.NoError(t, sess.Connect(context.Background()))

	_, err := sess.SendCommand(context.Background(), "GET TRADES")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandTimeout), "got %v", err)
}

func TestSendCommandWithoutMarkerReturnsWhateverArrived(t *testing.T) {
	f := newFakeTerminal(t)
	f.reply("NEWORDER", "OK\r\n")

	sess := NewSession("ACC1", f.credential(), testTimeouts())
	defer sess.Disconnect()
	require.NoError(t, sess.Connect(context.Background()))

	resp, err := sess.SendCommand(context.Background(), "NEWORDER tok1 B AAPL 100 150.50")
	require.NoError(t, err)
	assert.Equal(t, "OK", resp)
}

func TestConcurrentCommandsSerialize(t *testing.T) {
	f := newFakeTerminal(t)
	f.reply("GET POSITIONS", "%POS AAPL 1 100 150.25 100 150.25 0.00 09:30:15 0.00\r\n")
	f.reply("GET TRADES", "%TRADE 501 AAPL B 100 150.45 ARCA 09:31:05\r\n")

	sess := NewSession("ACC1", f.credential(), testTimeouts())
	defer sess.Disconnect()
	require.NoError(t, sess.Connect(context.Background()))

	var wg sync.WaitGroup
	results := make([]string, 2)
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0], errs[0] = sess.SendCommand(context.Background(), "GET POSITIONS")
	}()
	go func() {
		defer wg.Done()
		results[1], errs[1] = sess.SendCommand(context.Background(), "GET TRADES")
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Contains(t, results[0], "%POS")
	assert.NotContains(t, results[0], "%TRADE")
	assert.Contains(t, results[1], "%TRADE")
	assert.NotContains(t, results[1], "%POS")
}

func TestPushDispatch(t *testing.T) {
	f := newFakeTerminal(t)
	sess := NewSession("ACC1", f.credential(), testTimeouts())
	defer sess.Disconnect()

	lines := make(chan string, 1)
	sess.RegisterHandler(HandlerPosition, func(accountID, line string) {
		assert.Equal(t, "ACC1", accountID)
		lines <- line
	})

	require.NoError(t, sess.Connect(context.Background()))
	f.push("%POS AAPL 1 100 150.25 100 150.25 0.00 09:30:15 0.00\r\n")

	select {
	case line := <-lines:
		assert.True(t, strings.HasPrefix(line, "%POS"))
	case <-time.After(2 * time.Second):
		t.Fatal("push line never reached the handler")
	}
}

func TestPushHandlerPanicDoesNotKillListener(t *testing.T) {
	f := newFakeTerminal(t)
	sess := NewSession("ACC1", f.credential(), testTimeouts())
	defer sess.Disconnect()

	lines := make(chan string, 2)
	first := true
	sess.RegisterHandler(HandlerPosition, func(accountID, line string) {
		if first {
			first = false
			panic("boom")
		}
		lines <- line
	})

	require.NoError(t, sess.Connect(context.Background()))
	f.push("%POS AAPL 1 100 150.25 100 150.25 0.00 09:30:15 0.00\r\n")
	time.Sleep(100 * time.Millisecond)
	f.push("%POS MSFT 1 10 410.00 10 410.00 0.00 11:00:00 0.00\r\n")

	select {
	case line := <-lines:
		assert.Contains(t, line, "MSFT")
	case <-time.After(2 * time.Second):
		t.Fatal("listener stopped after a handler panic")
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	f := newFakeTerminal(t)
	sess := NewSession("ACC1", f.credential(), testTimeouts())
	require.NoError(t, sess.Connect(context.Background()))

	sess.Disconnect()
	assert.Equal(t, StateDisconnected, sess.State())
	sess.Disconnect() // second call is a no-op

	_, err := sess.SendCommand(context.Background(), "GET POSITIONS")
	assert.True(t, errors.Is(err, ErrNotConnected), "got %v", err)
}

func TestDisconnectNeverConnected(t *testing.T) {
	sess := NewSession("ACC1", model.Credential{Host: "127.0.0.1", Port: 1}, testTimeouts())
	sess.Disconnect() // must not panic or block
	assert.Equal(t, StateDisconnected, sess.State())
}
