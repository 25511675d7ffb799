package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itchyny/gojq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"

	"github.com/mantis-trade/mantis/service/events"
)

// tailSignalsCommand streams live signal events from NATS.
func tailSignalsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tail",
		Usage: "Stream live signal events",
		Description: `Subscribes to the signal event stream and prints each event.

Events can be filtered with one or more jq expressions; an event is
printed only when every expression evaluates truthy against it.

Example:
  mantis signals tail --must-jq '.confidence > 0.7' --must-jq '.action == "BUY"'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "Only show events from one source (pumpfun, dexscreener, whalewatch, synthetic)",
			},
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Aliases: []string{"j"},
				Usage:   "jq expression that must evaluate truthy (repeatable)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Stop after this duration (0 = run until interrupted)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw event JSON",
			},
		},
		Action: func(c *cli.Context) error {
			return tailSignals(c)
		},
	}
}

func tailSignals(c *cli.Context) error {
	natsURL := c.String("nats-url")
	source := c.String("source")
	jqFilters := c.StringSlice("must-jq")
	timeout := c.Duration("timeout")
	jsonOutput := c.Bool("json")

	compiled := make([]*gojq.Code, len(jqFilters))
	for i, filter := range jqFilters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return fmt.Errorf("invalid jq filter %q: %w", filter, err)
		}
		compiled[i], err = gojq.Compile(query)
		if err != nil {
			return fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}

	nc, err := nats.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	subject := "signals.>"
	if source != "" {
		subject = fmt.Sprintf("signals.%s", source)
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	cons, err := js.CreateOrUpdateConsumer(ctx, events.StreamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	if !jsonOutput {
		fmt.Fprintf(os.Stderr, "Tailing %s...\n", subject)
		for _, filter := range jqFilters {
			fmt.Fprintf(os.Stderr, "  jq filter: %s\n", filter)
		}
	}

	msgChan := make(chan jetstream.Msg, 10)
	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer consumeCtx.Stop()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case msg := <-msgChan:
			if err := printSignalEvent(msg.Data(), compiled, jsonOutput); err != nil {
				fmt.Fprintf(os.Stderr, "Error handling event: %v\n", err)
			}
			msg.Ack()
		case <-ctx.Done():
			return nil
		case <-interrupt:
			return nil
		}
	}
}

func printSignalEvent(data []byte, filters []*gojq.Code, jsonOutput bool) error {
	var event events.SignalEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to parse event: %w", err)
	}

	if len(filters) > 0 {
		// gojq operates on generic values, so round-trip through a map.
		var generic map[string]any
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("failed to decode event for filtering: %w", err)
		}
		if !matchesAll(generic, filters) {
			return nil
		}
	}

	if jsonOutput {
		out, err := json.Marshal(event)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("[%s] %s %s %s conf=%.2f price=%.8f vol24h=%.0f\n",
		event.Timestamp.Format(time.RFC3339),
		event.Source,
		event.Action,
		event.Symbol,
		event.Confidence,
		event.Price,
		event.Volume24h,
	)
	return nil
}

// matchesAll reports whether every filter evaluates truthy on v.
func matchesAll(v any, filters []*gojq.Code) bool {
	for _, code := range filters {
		iter := code.Run(v)
		matched := false
		for {
			result, ok := iter.Next()
			if !ok {
				break
			}
			if _, isErr := result.(error); isErr {
				continue
			}
			if isTruthy(result) {
				matched = true
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	// Everything else (numbers, strings, objects, arrays) is truthy
	return true
}
