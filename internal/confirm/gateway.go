// Package confirm implements the approval protocol between executing
// tools and the user: pending requests are queued per execution context,
// delivered to subscribers, and resolved exactly once by a response, a
// dismissal, a context stop, or a timeout — whichever fires first.
package confirm

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/pipali/pipali/internal/consts"
	"github.com/pipali/pipali/internal/logger"
)

const (
	// timeoutDenialReason is shared by expiry and dismissal so a caller
	// cannot distinguish the two.
	timeoutDenialReason = "no response before the confirmation timed out"

	interruptDenialReason = "the run was stopped before a response arrived"
)

// slot is the single-resolution wait point for one pending request.
// Multiple callers may wait on the same slot when their requests dedup to
// the same semantic key.
type slot struct {
	req     Request
	semKey  uint64
	timer   *time.Timer
	done    chan struct{}
	outcome Outcome
	waiters int
}

// Recorder persists resolved confirmations. It is invoked off the
// registry lock and never affects the outcome.
type Recorder interface {
	RecordConfirmation(requestID, contextKey, operation, selectedOption string, approved bool)
}

// Gateway is the in-memory pending-confirmation registry. It is the only
// mutable state shared across concurrent conversations, so every mutation
// happens under one lock.
type Gateway struct {
	mu       sync.Mutex
	pending  map[string][]*slot // contextKey -> FIFO queue
	byID     map[string]*slot
	bySemKey map[uint64]*slot
	subs     map[int]chan Request
	nextSub  int
	recorder Recorder

	defaultTimeout time.Duration
}

// NewGateway creates an empty registry.
func NewGateway() *Gateway {
	return &Gateway{
		pending:        make(map[string][]*slot),
		byID:           make(map[string]*slot),
		bySemKey:       make(map[uint64]*slot),
		subs:           make(map[int]chan Request),
		defaultTimeout: consts.DefaultConfirmationTimeout,
	}
}

// SetRecorder attaches an audit recorder. Call before the first Request.
func (g *Gateway) SetRecorder(r Recorder) {
	g.mu.Lock()
	g.recorder = r
	g.mu.Unlock()
}

// semanticKey identifies "the same question being asked again" so that
// parallel duplicate requests share one pending entry.
func semanticKey(contextKey, operation, message string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(contextKey)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(operation)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(message)
	return h.Sum64()
}

// Request suspends the caller until the request is resolved. Exactly one
// of response, dismissal, stop, timeout or caller-context cancellation
// produces the outcome; late arrivals of the others are no-ops.
func (g *Gateway) Request(ctx context.Context, contextKey string, req Request) Outcome {
	key := semanticKey(contextKey, req.Operation, req.Message)

	g.mu.Lock()
	if existing, ok := g.bySemKey[key]; ok {
		existing.waiters++
		done := existing.done
		id := existing.req.ID
		g.mu.Unlock()
		logger.Debug("confirm: joining existing request %s (duplicate semantic key)", id)
		return g.wait(ctx, existing, done)
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.ContextKey = contextKey
	req.CreatedAt = time.Now()

	s := &slot{
		req:     req,
		semKey:  key,
		done:    make(chan struct{}),
		waiters: 1,
	}

	timeout := g.defaultTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	s.timer = time.AfterFunc(timeout, func() {
		if g.resolve(s, Outcome{Approved: false, DenialReason: timeoutDenialReason}) {
			logger.Warn("confirm: request %s timed out after %v", req.ID, timeout)
		}
	})

	g.pending[contextKey] = append(g.pending[contextKey], s)
	g.byID[req.ID] = s
	g.bySemKey[key] = s
	g.mu.Unlock()

	logger.Debug("confirm: registered request %s (context=%s, operation=%s)", req.ID, contextKey, req.Operation)
	g.publish(req)

	return g.wait(ctx, s, s.done)
}

// wait blocks until the slot resolves or the caller's context is
// cancelled. A cancelled caller only gets itself an interrupted denial
// while other joiners of a deduplicated slot still wait; the last waiter
// out resolves the slot and removes it from the registry.
func (g *Gateway) wait(ctx context.Context, s *slot, done chan struct{}) Outcome {
	select {
	case <-done:
	case <-ctx.Done():
		g.mu.Lock()
		select {
		case <-done:
			// Resolved while the caller was cancelling.
		default:
			s.waiters--
			if s.waiters > 0 {
				g.mu.Unlock()
				return Outcome{Approved: false, DenialReason: interruptDenialReason}
			}
			g.resolveLocked(s, Outcome{Approved: false, DenialReason: interruptDenialReason})
		}
		g.mu.Unlock()
	}

	g.mu.Lock()
	outcome := s.outcome
	g.mu.Unlock()
	return outcome
}

// resolve applies first-resolution-wins: it reports whether this call won
// and removed the slot from the registry.
func (g *Gateway) resolve(s *slot, outcome Outcome) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolveLocked(s, outcome)
}

func (g *Gateway) resolveLocked(s *slot, outcome Outcome) bool {
	if _, ok := g.byID[s.req.ID]; !ok {
		return false
	}

	s.timer.Stop()
	delete(g.byID, s.req.ID)
	delete(g.bySemKey, s.semKey)

	queue := g.pending[s.req.ContextKey]
	for i, entry := range queue {
		if entry == s {
			g.pending[s.req.ContextKey] = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	if len(g.pending[s.req.ContextKey]) == 0 {
		delete(g.pending, s.req.ContextKey)
	}

	s.outcome = outcome
	close(s.done)

	if g.recorder != nil {
		go g.recorder.RecordConfirmation(
			s.req.ID, s.req.ContextKey, s.req.Operation,
			outcome.SelectedOptionID, outcome.Approved)
	}
	return true
}

// Respond resolves a pending request with the user's selected option.
// Unknown or already-resolved ids return false and change nothing.
func (g *Gateway) Respond(requestID, selectedOptionID, guidance string) bool {
	g.mu.Lock()
	s, ok := g.byID[requestID]
	if !ok {
		g.mu.Unlock()
		logger.Debug("confirm: response for unknown or resolved request %s", requestID)
		return false
	}

	approved := false
	for _, opt := range s.req.Options {
		if opt.ID == selectedOptionID {
			approved = !opt.Denies
			break
		}
	}

	outcome := Outcome{
		Approved:         approved,
		SelectedOptionID: selectedOptionID,
		Guidance:         guidance,
	}
	if !approved {
		outcome.DenialReason = "denied by user"
		if guidance != "" {
			outcome.DenialReason = "denied by user: " + guidance
		}
	}
	won := g.resolveLocked(s, outcome)
	g.mu.Unlock()

	if won {
		logger.Info("confirm: request %s resolved (option=%s, approved=%v)", requestID, selectedOptionID, approved)
	}
	return won
}

// Dismiss removes a request without a decision, e.g. when the user closes
// the prompt. The caller sees a timeout-style denial.
func (g *Gateway) Dismiss(requestID string) bool {
	g.mu.Lock()
	s, ok := g.byID[requestID]
	if !ok {
		g.mu.Unlock()
		return false
	}
	won := g.resolveLocked(s, Outcome{Approved: false, DenialReason: timeoutDenialReason})
	g.mu.Unlock()

	if won {
		logger.Info("confirm: request %s dismissed", requestID)
	}
	return won
}

// ListPending returns a read-only snapshot of the FIFO queue for one
// execution context.
func (g *Gateway) ListPending(contextKey string) []Request {
	g.mu.Lock()
	defer g.mu.Unlock()

	queue := g.pending[contextKey]
	out := make([]Request, len(queue))
	for i, s := range queue {
		out[i] = s.req
	}
	return out
}

// StopContext atomically drains every pending request of a context,
// resolving each as denied-by-interruption. No stale approval can apply
// to a run the user already stopped.
func (g *Gateway) StopContext(contextKey string) int {
	g.mu.Lock()
	queue := append([]*slot(nil), g.pending[contextKey]...)
	drained := 0
	for _, s := range queue {
		if g.resolveLocked(s, Outcome{Approved: false, DenialReason: interruptDenialReason}) {
			drained++
		}
	}
	g.mu.Unlock()

	if drained > 0 {
		logger.Info("confirm: stopped context %s, drained %d pending requests", contextKey, drained)
	}
	return drained
}

// Subscribe registers a push channel receiving every newly-created
// request. The returned cancel func closes the channel so range loops
// over it terminate; calling it more than once is safe.
func (g *Gateway) Subscribe() (<-chan Request, func()) {
	g.mu.Lock()
	id := g.nextSub
	g.nextSub++
	ch := make(chan Request, 64)
	g.subs[id] = ch
	g.mu.Unlock()

	cancel := func() {
		// publish sends under the same lock, so closing after the delete
		// cannot race a send.
		g.mu.Lock()
		if _, ok := g.subs[id]; ok {
			delete(g.subs, id)
			close(ch)
		}
		g.mu.Unlock()
	}
	return ch, cancel
}

// publish fans a new request out to subscribers without ever blocking the
// requesting goroutine.
func (g *Gateway) publish(req Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ch := range g.subs {
		select {
		case ch <- req:
		default:
			logger.Warn("confirm: subscriber channel full, dropping push for %s", req.ID)
		}
	}
}
