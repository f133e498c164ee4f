package llm

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/PabloGalante/farum-sos/internal/domain"
)

// MockLLM answers with one of a fixed set of counselor replies after a simulated latency.
type MockLLM struct {
	replies []string
	latency time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewMockLLM(replies []string, latency time.Duration, seed uint64) *MockLLM {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &MockLLM{
		replies: replies,
		latency: latency,
		rnd:     rand.New(rand.NewPCG(seed, seed>>1)),
	}
}

func (m *MockLLM) GenerateReply(ctx context.Context, prompt string, convCtx domain.ConversationContext) (string, error) {
	if m.latency > 0 {
		t := time.NewTimer(m.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}

	if len(m.replies) == 0 {
		return "I'm here to listen.", nil
	}

	m.mu.Lock()
	i := m.rnd.IntN(len(m.replies))
	m.mu.Unlock()
	return m.replies[i], nil
}
