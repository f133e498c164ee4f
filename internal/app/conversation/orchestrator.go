// Package conversation coordinates a check-in session: it owns the session
// state, reacts to the realtime channel and the wait-time counter, and applies
// the escalation and read-receipt policies.
//
// All state changes run on one event loop (Run). Public methods enqueue work on
// that loop and wait for it; timer and channel callbacks enqueue work without
// waiting. Ordering between queued work is FIFO.
package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/PabloGalante/farum-sos/internal/app/sessionstate"
	"github.com/PabloGalante/farum-sos/internal/app/waittime"
	"github.com/PabloGalante/farum-sos/internal/clock"
	"github.com/PabloGalante/farum-sos/internal/config"
	"github.com/PabloGalante/farum-sos/internal/domain"
	"github.com/PabloGalante/farum-sos/internal/observability"
)

// ErrStopped is returned by operations issued after Run has returned.
var ErrStopped = errors.New("conversation: orchestrator stopped")

const queueSize = 256

// Policy holds the escalation and display timings.
type Policy struct {
	// AIHelpThreshold is the wait, in seconds, after which AI help is offered.
	AIHelpThreshold int
	ReplyDelay      time.Duration
	ReadSettleDelay time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		AIHelpThreshold: 60,
		ReplyDelay:      500 * time.Millisecond,
		ReadSettleDelay: 3 * time.Second,
	}
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

func WithPolicy(p Policy) Option {
	return func(o *Orchestrator) {
		if p.AIHelpThreshold > 0 {
			o.policy.AIHelpThreshold = p.AIHelpThreshold
		}
		o.policy.ReplyDelay = p.ReplyDelay
		o.policy.ReadSettleDelay = p.ReadSettleDelay
	}
}

// WithScript sets the canned texts shown in conversations.
func WithScript(s config.Script) Option {
	return func(o *Orchestrator) { o.script = s }
}

type Deps struct {
	State     *sessionstate.State
	Counter   *waittime.Counter
	Channel   domain.RealtimeChannel
	Messaging domain.MessagingService
	Clock     clock.Clock
	Metrics   *observability.Metrics
}

type Orchestrator struct {
	state     *sessionstate.State
	counter   *waittime.Counter
	channel   domain.RealtimeChannel
	messaging domain.MessagingService
	clock     clock.Clock
	metrics   *observability.Metrics
	policy    Policy
	script    config.Script

	queue  chan func()
	done   chan struct{}
	hub    *hub
	runCtx context.Context

	// Everything below is owned by the event loop.
	topicsShown  bool
	offerArmed   bool
	offerPending bool
	readTimer    clock.Timer
	readGen      uint64
	pending      []pendingReply
	replies      []*replyRequest
	replyTimer   clock.Timer
	replyGen     uint64
}

// pendingReply is a reply request held back until the session is connected.
type pendingReply struct {
	session domain.SessionID
	text    string
}

// replyRequest is an outstanding reply fetch. Requests are displayed in the
// order they were made, whatever order their fetches finish in.
type replyRequest struct {
	session  domain.SessionID
	text     string
	gen      uint64
	resolved bool
	reply    string
	err      error
}

func New(deps Deps, opts ...Option) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics()
	}

	o := &Orchestrator{
		state:     deps.State,
		counter:   deps.Counter,
		channel:   deps.Channel,
		messaging: deps.Messaging,
		clock:     deps.Clock,
		metrics:   deps.Metrics,
		policy:    DefaultPolicy(),
		script:    config.DefaultScript(),
		queue:     make(chan func(), queueSize),
		done:      make(chan struct{}),
		hub:       newHub(),
		runCtx:    context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes queued work until ctx is cancelled. It must be called exactly once.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.runCtx = ctx
	log := observability.LoggerFromContext(ctx)
	log.Info().Msg("conversation loop started")

	for {
		select {
		case <-ctx.Done():
			close(o.done)
			o.shutdown()
			log.Info().Msg("conversation loop stopped")
			return nil
		case fn := <-o.queue:
			fn()
		}
	}
}

// shutdown releases timers after the loop stopped. Callbacks that still fire
// find o.done closed and drop their work.
func (o *Orchestrator) shutdown() {
	o.teardown()
	o.hub.close()
}

// Subscribe returns a stream of events and a func that ends the subscription.
// Events that do not fit in the buffer are dropped.
func (o *Orchestrator) Subscribe(buffer int) (<-chan Event, func()) {
	return o.hub.subscribe(buffer)
}

// call runs fn on the event loop and waits for it.
func (o *Orchestrator) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	work := func() {
		defer close(finished)
		fn()
	}

	select {
	case o.queue <- work:
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		return ErrStopped
	}
}

// post queues fn without waiting. When the queue is full, as it can be when the
// loop itself triggers a callback, delivery moves to a goroutine.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.queue <- fn:
	case <-o.done:
	default:
		go func() {
			select {
			case o.queue <- fn:
			case <-o.done:
			}
		}()
	}
}

func (o *Orchestrator) publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = o.clock.Now()
	}
	o.hub.publish(ev)
}

func (o *Orchestrator) logger(h domain.SessionID) zerolog.Logger {
	return observability.LoggerFromContext(o.runCtx).With().Str("session_id", string(h)).Logger()
}
