package events

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu              sync.RWMutex
	signalEvents    []*SignalEvent
	tradeEvents     []*TradeEvent
	portfolioEvents []*PortfolioEvent
	publishError    error
	closed          bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishSignal records the event and returns any configured error.
func (m *MockPublisher) PublishSignal(ctx context.Context, event *SignalEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishError != nil {
		return m.publishError
	}
	event.Type = TypeSignal
	m.signalEvents = append(m.signalEvents, event)
	return nil
}

// PublishTrade records the event and returns any configured error.
func (m *MockPublisher) PublishTrade(ctx context.Context, event *TradeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishError != nil {
		return m.publishError
	}
	m.tradeEvents = append(m.tradeEvents, event)
	return nil
}

// PublishPortfolio records the event and returns any configured error.
func (m *MockPublisher) PublishPortfolio(ctx context.Context, event *PortfolioEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishError != nil {
		return m.publishError
	}
	event.Type = TypePortfolioUpdate
	m.portfolioEvents = append(m.portfolioEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SignalEvents returns a copy of all recorded signal events.
func (m *MockPublisher) SignalEvents() []*SignalEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*SignalEvent, len(m.signalEvents))
	copy(out, m.signalEvents)
	return out
}

// TradeEvents returns a copy of all recorded trade events.
func (m *MockPublisher) TradeEvents() []*TradeEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*TradeEvent, len(m.tradeEvents))
	copy(out, m.tradeEvents)
	return out
}

// TradeEventsForRequest returns trade events recorded for one request ID,
// in publish order.
func (m *MockPublisher) TradeEventsForRequest(requestID string) []*TradeEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*TradeEvent
	for _, e := range m.tradeEvents {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out
}

// PortfolioEvents returns a copy of all recorded portfolio events.
func (m *MockPublisher) PortfolioEvents() []*PortfolioEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*PortfolioEvent, len(m.portfolioEvents))
	copy(out, m.portfolioEvents)
	return out
}

// SetPublishError configures the mock to fail all publishes.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Reset clears all recorded events and errors.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signalEvents = nil
	m.tradeEvents = nil
	m.portfolioEvents = nil
	m.publishError = nil
	m.closed = false
}
