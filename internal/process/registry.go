package process

import (
	"context"
	"sync"
)

// Token is a cooperative cancellation flag shared between the submitter and a
// running job.
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewToken returns a token that is not yet cancelled.
func NewToken() *Token {
	ctx, cancel := context.WithCancel(context.Background())
	return &Token{ctx: ctx, cancel: cancel}
}

// Cancel requests cancellation. It is safe to call more than once.
func (t *Token) Cancel() { t.cancel() }

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool { return t.ctx.Err() != nil }

// Context is done once the token is cancelled.
func (t *Token) Context() context.Context { return t.ctx }

// Registry maps running job IDs to their cancellation tokens. Membership means
// the job can still be cancelled.
type Registry struct {
	mu     sync.Mutex
	tokens map[string]*Token
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]*Token)}
}

// Put registers token under jobID. It returns false, leaving the registry
// unchanged, if jobID is already registered.
func (r *Registry) Put(jobID string, token *Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[jobID]; ok {
		return false
	}
	r.tokens[jobID] = token
	return true
}

// Get returns the token registered under jobID.
func (r *Registry) Get(jobID string) (*Token, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[jobID]
	return t, ok
}

// Take removes and returns the token registered under jobID.
func (r *Registry) Take(jobID string) (*Token, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[jobID]
	if ok {
		delete(r.tokens, jobID)
	}
	return t, ok
}

// Release removes jobID only while it still maps to token, so a finishing job
// never unregisters a newer job that reused its ID.
func (r *Registry) Release(jobID string, token *Token) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tokens[jobID] == token {
		delete(r.tokens, jobID)
	}
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

// CancelAll signals every registered token and empties the registry.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.tokens)
	for id, t := range r.tokens {
		t.Cancel()
		delete(r.tokens, id)
	}
	return n
}
