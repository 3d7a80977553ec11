package dastrader

import (
	"context"
	"net"
	"testing"

	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectAllIsolatesFailures(t *testing.T) {
	f := newFakeTerminal(t)

	// a port nothing listens on
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadPort := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	r := NewRegistry(testTimeouts())
	r.Add("GOOD", f.credential())
	r.Add("DEAD", model.Credential{Host: "127.0.0.1", Port: deadPort, Username: "u", Password: "p", Account: "A"})
	defer r.DisconnectAll()

	results := r.ConnectAll(context.Background())
	require.Len(t, results, 2)
	assert.True(t, results["GOOD"])
	assert.False(t, results["DEAD"])

	good, ok := r.Get("GOOD")
	require.True(t, ok)
	assert.True(t, good.Connected())

	dead, ok := r.Get("DEAD")
	require.True(t, ok)
	assert.Equal(t, StateFailed, dead.State())
	assert.NotEmpty(t, dead.LastError())
}

func TestAddReplacesSession(t *testing.T) {
	r := NewRegistry(testTimeouts())
	first := r.Add("ACC1", model.Credential{Host: "127.0.0.1", Port: 1})
	second := r.Add("ACC1", model.Credential{Host: "127.0.0.1", Port: 2})

	got, ok := r.Get("ACC1")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.NotSame(t, first, got)
	assert.Len(t, r.All(), 1)
}

func TestRemoveDisconnects(t *testing.T) {
	f := newFakeTerminal(t)
	r := NewRegistry(testTimeouts())
	sess := r.Add("ACC1", f.credential())
	require.NoError(t, sess.Connect(context.Background()))

	r.Remove("ACC1")
	_, ok := r.Get("ACC1")
	assert.False(t, ok)
	assert.Equal(t, StateDisconnected, sess.State())
}
