package interest

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/obdkit/obdkit-go/pkg/log"
	"github.com/obdkit/obdkit-go/pkg/pid"
)

// Token identifies one consumer's demand declaration.
// Tokens are opaque; allocate them with Registry.MakeToken.
type Token string

// ChangeFunc receives the new interested set when it changes.
// The set is a private copy; callbacks may keep it.
type ChangeFunc func(set pid.Set)

// Registry multiplexes N independent demand declarations into one
// change-suppressed union. It is safe for concurrent use.
type Registry struct {
	// pubMu serializes mutation+publish pairs so observers always see
	// union updates in the order they took effect.
	pubMu sync.Mutex

	mu          sync.Mutex
	sets        map[Token]pid.Set
	published   pid.Set
	subscribers map[uint64]ChangeFunc
	nextSubID   uint64

	qmu    sync.Mutex
	qcond  *sync.Cond
	queue  []func()
	closed bool
	wg     sync.WaitGroup

	logger    log.Logger
	sessionID string
}

// NewRegistry creates a registry and starts its deferred-task worker.
// Call Close to stop the worker.
func NewRegistry(logger log.Logger, sessionID string) *Registry {
	r := &Registry{
		sets:        make(map[Token]pid.Set),
		published:   pid.NewSet(),
		subscribers: make(map[uint64]ChangeFunc),
		logger:      log.OrNoop(logger),
		sessionID:   sessionID,
	}
	r.qcond = sync.NewCond(&r.qmu)
	r.wg.Add(1)
	go r.run()
	return r
}

// Close stops the worker after draining any queued clears.
func (r *Registry) Close() {
	r.qmu.Lock()
	if r.closed {
		r.qmu.Unlock()
		return
	}
	r.closed = true
	r.qcond.Broadcast()
	r.qmu.Unlock()
	r.wg.Wait()
}

// MakeToken allocates a fresh, globally-unique token.
// It has no effect on the union.
func (r *Registry) MakeToken() Token {
	return Token(uuid.NewString())
}

// Replace unconditionally overwrites the token's stored set, creating the
// entry if absent, and recomputes the union in the same step. Observers are
// notified only if the union actually changed.
func (r *Registry) Replace(set pid.Set, token Token) {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	r.mu.Lock()
	r.sets[token] = set.Clone()
	changed, union, subs, tokens := r.recomputeLocked()
	r.mu.Unlock()

	if changed {
		r.publish(union, subs, tokens)
	}
}

// Clear schedules removal of the token's entry on the registry's worker.
// The removal is applied at the start of the next processing turn, never
// inline in the calling stack. Clearing an absent token is a no-op.
func (r *Registry) Clear(token Token) {
	r.enqueue(func() {
		r.pubMu.Lock()
		defer r.pubMu.Unlock()

		r.mu.Lock()
		if _, ok := r.sets[token]; !ok {
			r.mu.Unlock()
			return
		}
		delete(r.sets, token)
		changed, union, subs, tokens := r.recomputeLocked()
		r.mu.Unlock()

		if changed {
			r.publish(union, subs, tokens)
		}
	})
}

// Sync blocks until every clear queued before the call has been applied.
// After Close it returns immediately.
func (r *Registry) Sync() {
	done := make(chan struct{})
	if !r.enqueue(func() { close(done) }) {
		return
	}
	<-done
}

// InterestedSet returns a copy of the currently published union.
func (r *Registry) InterestedSet() pid.Set {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.published.Clone()
}

// TokenCount returns the number of tokens with a stored set.
func (r *Registry) TokenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sets)
}

// OnChange registers an observer for interested-set changes and returns a
// cancel func. The observer is not called with the current value.
func (r *Registry) OnChange(fn ChangeFunc) (cancel func()) {
	r.mu.Lock()
	r.nextSubID++
	id := r.nextSubID
	r.subscribers[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subscribers, id)
		r.mu.Unlock()
	}
}

// recomputeLocked folds all live sets into a fresh union and compares it to
// the published value. Caller holds r.mu.
func (r *Registry) recomputeLocked() (changed bool, union pid.Set, subs []ChangeFunc, tokens int) {
	union = pid.NewSet()
	for _, set := range r.sets {
		union = union.Union(set)
	}

	if union.Equal(r.published) {
		return false, nil, nil, 0
	}

	r.published = union
	subs = make([]ChangeFunc, 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		subs = append(subs, fn)
	}
	return true, union, subs, len(r.sets)
}

// publish notifies observers with private copies. Caller holds r.pubMu,
// which keeps notification order consistent with update order.
func (r *Registry) publish(union pid.Set, subs []ChangeFunc, tokens int) {
	params := make([]uint16, 0, len(union))
	for _, id := range union.Sorted() {
		params = append(params, uint16(id))
	}
	r.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: r.sessionID,
		Category:  log.CategoryInterest,
		Interest: &log.InterestEvent{
			Tokens:     tokens,
			Parameters: params,
		},
	})

	for _, fn := range subs {
		fn(union.Clone())
	}
}

// enqueue appends a task for the worker. It reports false after Close.
func (r *Registry) enqueue(task func()) bool {
	r.qmu.Lock()
	if r.closed {
		r.qmu.Unlock()
		return false
	}
	r.queue = append(r.queue, task)
	r.qcond.Signal()
	r.qmu.Unlock()
	return true
}

// run is the single worker applying deferred tasks in FIFO order.
func (r *Registry) run() {
	defer r.wg.Done()

	for {
		r.qmu.Lock()
		for len(r.queue) == 0 && !r.closed {
			r.qcond.Wait()
		}
		if len(r.queue) == 0 && r.closed {
			r.qmu.Unlock()
			return
		}
		task := r.queue[0]
		r.queue = r.queue[1:]
		r.qmu.Unlock()

		task()
	}
}
