package dastrader

import (
	"context"
	"sync"

	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/model"
	"go.uber.org/zap"
)

// Registry owns the set of sessions, one per account id.
type Registry struct {
	timeouts Timeouts
	log      *zap.SugaredLogger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(t Timeouts) *Registry {
	return &Registry{
		timeouts: t,
		log:      zap.S().With("component", "registry"),
		sessions: make(map[string]*Session),
	}
}

// Add constructs and stores a session for the account without connecting
// it. Adding an account id twice replaces the stored session.
func (r *Registry) Add(accountID string, cred model.Credential) *Session {
	sess := NewSession(accountID, cred, r.timeouts)
	r.mu.Lock()
	r.sessions[accountID] = sess
	r.mu.Unlock()
	return sess
}

// ConnectAll dials every stored session concurrently under one aggregate
// deadline, so a single unreachable terminal cannot delay the rest. The
// deadline context is passed into each dial, which cancels attempts still
// running when it expires; accounts whose attempt did not finish in time
// are left out of the result map.
func (r *Registry) ConnectAll(ctx context.Context) map[string]bool {
	ctx, cancel := context.WithTimeout(ctx, r.timeouts.BulkConnect)
	defer cancel()

	r.mu.RLock()
	sessions := make(map[string]*Session, len(r.sessions))
	for id, sess := range r.sessions {
		sessions[id] = sess
	}
	r.mu.RUnlock()

	type outcome struct {
		id string
		ok bool
	}
	ch := make(chan outcome, len(sessions))
	for id, sess := range sessions {
		go func(id string, sess *Session) {
			err := sess.Connect(ctx)
			ch <- outcome{id: id, ok: err == nil}
		}(id, sess)
	}

	results := make(map[string]bool, len(sessions))
	for range sessions {
		select {
		case o := <-ch:
			results[o.id] = o.ok
		case <-ctx.Done():
			r.log.Warnw("bulk connect deadline reached",
				"connected", len(results), "total", len(sessions))
			return results
		}
	}
	return results
}

// DisconnectAll tears every session down, continuing past individual
// failures (Disconnect is best-effort by construction).
func (r *Registry) DisconnectAll() {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.RUnlock()
	for _, sess := range sessions {
		sess.Disconnect()
	}
}

func (r *Registry) Get(accountID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[accountID]
	return sess, ok
}

// All returns a copy of the session map.
func (r *Registry) All() map[string]*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Session, len(r.sessions))
	for id, sess := range r.sessions {
		out[id] = sess
	}
	return out
}

// Remove drops the session for an account after disconnecting it.
func (r *Registry) Remove(accountID string) {
	r.mu.Lock()
	sess := r.sessions[accountID]
	delete(r.sessions, accountID)
	r.mu.Unlock()
	if sess != nil {
		sess.Disconnect()
	}
}
