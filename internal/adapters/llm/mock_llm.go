package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/PabloGalante/promptlab/internal/domain"
)

type mockResult struct {
	reply *domain.Reply
	err   error
}

// MockLLM is a scripted domain.ChatModel for local development and tests.
// Queued results are consumed in order; when the queue is empty it echoes the input.
type MockLLM struct {
	mu         sync.Mutex
	queue      []mockResult
	sessionErr error
	gate       chan struct{}
	entered    chan string
	sent       []string
	configs    []domain.SessionConfig
}

func NewMockLLM() *MockLLM {
	return &MockLLM{
		entered: make(chan string, 64),
	}
}

func (m *MockLLM) QueueReply(reply domain.Reply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockResult{reply: &reply})
}

func (m *MockLLM) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockResult{err: err})
}

// FailSessions makes NewSession return err until called again with nil.
func (m *MockLLM) FailSessions(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionErr = err
}

// Hold blocks every request until release is called.
func (m *MockLLM) Hold() (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gate := make(chan struct{})
	m.gate = gate
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gate == gate {
				m.gate = nil
			}
			m.mu.Unlock()
			close(gate)
		})
	}
}

// Entered receives the text of every request as soon as it reaches the model.
func (m *MockLLM) Entered() <-chan string {
	return m.entered
}

// Sent returns every text sent so far, sessions and one-shot requests alike.
func (m *MockLLM) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

// Sessions returns the configuration of every session opened.
func (m *MockLLM) Sessions() []domain.SessionConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SessionConfig(nil), m.configs...)
}

func (m *MockLLM) NewSession(ctx context.Context, cfg domain.SessionConfig) (domain.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessionErr != nil {
		return nil, m.sessionErr
	}
	m.configs = append(m.configs, cfg)
	return &mockSession{llm: m}, nil
}

func (m *MockLLM) Complete(ctx context.Context, text string, useSearch bool) (*domain.Reply, error) {
	return m.next(ctx, text)
}

func (m *MockLLM) next(ctx context.Context, text string) (*domain.Reply, error) {
	m.mu.Lock()
	m.sent = append(m.sent, text)
	gate := m.gate

	var res mockResult
	if len(m.queue) > 0 {
		res = m.queue[0]
		m.queue = m.queue[1:]
	} else {
		res = mockResult{reply: &domain.Reply{Text: fmt.Sprintf("You said %q.", text)}}
	}
	m.mu.Unlock()

	select {
	case m.entered <- text:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res.reply, res.err
}

type mockSession struct {
	llm *MockLLM
}

func (s *mockSession) Send(ctx context.Context, text string) (*domain.Reply, error) {
	return s.llm.next(ctx, text)
}
