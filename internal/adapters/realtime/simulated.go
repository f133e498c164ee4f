// Package realtime provides the realtime channel to a counselor. The only
// implementation is Simulated, which models connection latency and occasional
// inbound messages with timers.
package realtime

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/PabloGalante/farum-sos/internal/clock"
	"github.com/PabloGalante/farum-sos/internal/domain"
	"github.com/PabloGalante/farum-sos/internal/observability"
)

type State string

const (
	StateUnbound    State = "unbound"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateClosed     State = "closed"
)

const (
	DefaultConnectDelay       = 2 * time.Second
	DefaultInboundInterval    = 15 * time.Second
	DefaultInboundProbability = 0.3
)

// Random is the subset of *rand.Rand the channel draws from.
type Random interface {
	Float64() float64
	IntN(n int) int
}

type Options struct {
	ConnectDelay       time.Duration
	InboundInterval    time.Duration
	InboundProbability float64
	// Candidates are the inbound messages the responder may send.
	Candidates []string
	Random     Random
}

func (o *Options) setDefaults() {
	if o.ConnectDelay <= 0 {
		o.ConnectDelay = DefaultConnectDelay
	}
	if o.InboundInterval <= 0 {
		o.InboundInterval = DefaultInboundInterval
	}
	if o.InboundProbability < 0 {
		o.InboundProbability = 0
	}
	if o.Random == nil {
		o.Random = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
}

// Simulated is a domain.RealtimeChannel that connects after a fixed delay and then,
// on every interval, emits one random candidate message with a fixed probability.
type Simulated struct {
	clock clock.Clock
	opts  Options

	mu           sync.Mutex
	state        State
	sessionID    domain.SessionID
	sink         func(domain.ChannelEvent)
	connectTimer clock.Timer
	tickTimer    clock.Timer
	// gen invalidates callbacks that were already running when their timer was cancelled.
	gen uint64
}

var _ domain.RealtimeChannel = (*Simulated)(nil)

func NewSimulated(clk clock.Clock, opts Options) *Simulated {
	opts.setDefaults()
	return &Simulated{
		clock: clk,
		opts:  opts,
		state: StateUnbound,
	}
}

// Bind closes any current binding and starts connecting for sessionID.
// An empty id leaves the channel unbound and disconnected.
func (s *Simulated) Bind(sessionID domain.SessionID, sink func(domain.ChannelEvent)) {
	s.mu.Lock()
	notify := s.closeLocked()

	if sessionID == "" {
		s.state = StateUnbound
		s.mu.Unlock()
		notify()
		return
	}

	s.state = StateConnecting
	s.sessionID = sessionID
	s.sink = sink
	gen := s.gen
	s.connectTimer = s.clock.AfterFunc(s.opts.ConnectDelay, func() { s.onConnect(gen) })
	s.mu.Unlock()

	notify()

	log := observability.Logger()
	log.Debug().Str("session_id", string(sessionID)).Msg("realtime channel connecting")
}

// Unbind cancels pending timers and closes the channel.
func (s *Simulated) Unbind() {
	s.mu.Lock()
	notify := s.closeLocked()
	s.mu.Unlock()
	notify()
}

// closeLocked cancels timers and moves to Closed. The returned func delivers the
// disconnect notification and must be called without s.mu held.
func (s *Simulated) closeLocked() func() {
	if s.state == StateUnbound && s.sink == nil {
		return func() {}
	}

	if s.connectTimer != nil {
		s.connectTimer.Stop()
		s.connectTimer = nil
	}
	if s.tickTimer != nil {
		s.tickTimer.Stop()
		s.tickTimer = nil
	}
	s.gen++

	wasConnected := s.state == StateConnected
	sink, id := s.sink, s.sessionID
	s.state = StateClosed
	s.sink = nil
	s.sessionID = ""

	if !wasConnected || sink == nil {
		return func() {}
	}
	return func() {
		sink(domain.ChannelEvent{Kind: domain.ChannelDisconnected, SessionID: id})
	}
}

func (s *Simulated) onConnect(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = StateConnected
	s.connectTimer = nil
	s.tickTimer = s.clock.TickFunc(s.opts.InboundInterval, func() { s.onTick(gen) })
	sink, id := s.sink, s.sessionID
	s.mu.Unlock()

	log := observability.Logger()
	log.Debug().Str("session_id", string(id)).Msg("realtime channel connected")

	if sink != nil {
		sink(domain.ChannelEvent{Kind: domain.ChannelConnected, SessionID: id})
	}
}

func (s *Simulated) onTick(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateConnected || len(s.opts.Candidates) == 0 {
		s.mu.Unlock()
		return
	}
	var text string
	if s.opts.Random.Float64() < s.opts.InboundProbability {
		text = s.opts.Candidates[s.opts.Random.IntN(len(s.opts.Candidates))]
	}
	sink, id := s.sink, s.sessionID
	s.mu.Unlock()

	if text == "" || sink == nil {
		return
	}
	sink(domain.ChannelEvent{Kind: domain.ChannelInbound, SessionID: id, Text: text})
}

// Send acknowledges outbound text. The simulation has no remote end, so it
// accepts text in every state.
func (s *Simulated) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	state, id := s.state, s.sessionID
	s.mu.Unlock()

	log := observability.LoggerFromContext(ctx)
	log.Debug().
		Str("session_id", string(id)).
		Str("state", string(state)).
		Int("length", len(text)).
		Msg("realtime channel send")
	return nil
}

func (s *Simulated) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateConnected
}

func (s *Simulated) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Simulated) SessionID() domain.SessionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}
