package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher defines the push-only, fire-and-forget event interface.
// Nothing in the core awaits acknowledgement from observers; a failed
// publish is logged and the trade or signal proceeds regardless.
type Publisher interface {
	// PublishSignal publishes a normalized signal to "signals.{source}".
	PublishSignal(ctx context.Context, event *SignalEvent) error

	// PublishTrade publishes a lifecycle event to "trades.{token}.{phase}".
	PublishTrade(ctx context.Context, event *TradeEvent) error

	// PublishPortfolio publishes a position snapshot to "portfolio.updates".
	PublishPortfolio(ctx context.Context, event *PortfolioEvent) error

	// Close closes the connection to NATS.
	Close() error
}

const (
	// StreamName is the JetStream stream holding all core events.
	StreamName = "MANTIS_EVENTS"

	// StreamRetention is how long events are retained.
	StreamRetention = 7 * 24 * time.Hour
)

// streamSubjects covers every subject the core publishes to.
var streamSubjects = []string{"signals.>", "trades.>", "portfolio.>"}

// JetStreamPublisher publishes core events to NATS JetStream.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists.
func NewPublisher(natsURL string, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("mantis-core"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:     nc,
		js:     js,
		logger: logger,
	}

	if err := publisher.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func (p *JetStreamPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			p.logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	p.logger.Info("creating JetStream stream", "stream", StreamName)

	streamConfig := jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Signal, trade lifecycle, and portfolio events",
		Subjects:    streamSubjects,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}

	_, err = p.js.CreateStream(ctx, streamConfig)
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	p.logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

// PublishSignal publishes a normalized signal event.
func (p *JetStreamPublisher) PublishSignal(ctx context.Context, event *SignalEvent) error {
	event.Type = TypeSignal
	if event.PublishedAt.IsZero() {
		event.PublishedAt = time.Now().UTC()
	}
	subject := fmt.Sprintf("signals.%s", event.Source)
	return p.publish(ctx, subject, event)
}

// PublishTrade publishes a trade lifecycle event.
func (p *JetStreamPublisher) PublishTrade(ctx context.Context, event *TradeEvent) error {
	if event.PublishedAt.IsZero() {
		event.PublishedAt = time.Now().UTC()
	}
	var phase string
	switch event.Type {
	case TypeTradeStarted:
		phase = "started"
	case TypeTradeCompleted:
		phase = "completed"
	case TypeTradeFailed:
		phase = "failed"
	default:
		phase = "update"
	}
	subject := fmt.Sprintf("trades.%s.%s", event.Token, phase)
	return p.publish(ctx, subject, event)
}

// PublishPortfolio publishes a position snapshot.
func (p *JetStreamPublisher) PublishPortfolio(ctx context.Context, event *PortfolioEvent) error {
	event.Type = TypePortfolioUpdate
	if event.PublishedAt.IsZero() {
		event.PublishedAt = time.Now().UTC()
	}
	return p.publish(ctx, "portfolio.updates", event)
}

func (p *JetStreamPublisher) publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = p.js.Publish(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debug("published event", "subject", subject)
	return nil
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
