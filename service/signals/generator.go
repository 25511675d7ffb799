package signals

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// syntheticTokens are real, liquid mints so downstream address checks
// and price lookups behave the same as with live data.
var syntheticTokens = []struct {
	symbol  string
	address string
}{
	{"SOL", "So11111111111111111111111111111111111111112"},
	{"USDC", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"},
	{"BONK", "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"},
	{"WIF", "EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm"},
	{"JUP", "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"},
}

// runGenerator emits plausible synthetic signals until ctx ends. It only
// runs when no real source connected within the grace window, and at
// most one instance is ever started per manager.
func (m *Manager) runGenerator(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.FallbackInterval)
	defer ticker.Stop()

	seq := 0
	emit := func() {
		seq++
		token := syntheticTokens[rand.Intn(len(syntheticTokens))]
		action := ActionBuy
		if rand.Float64() < 0.5 {
			action = ActionSell
		}
		volume := 1_000 + rand.Float64()*99_000
		m.deliver(ctx, Signal{
			ID:         fmt.Sprintf("synthetic-%d-%d", seq, time.Now().UnixNano()),
			Symbol:     token.symbol,
			Address:    token.address,
			Action:     action,
			Confidence: confidenceFromVolume(volume),
			Price:      0.000001 + rand.Float64()*10,
			Volume24h:  volume,
			Timestamp:  time.Now().UTC(),
			Source:     SourceSynthetic,
		})
	}

	// First signal immediately so consumers see data as soon as the
	// fallback engages.
	emit()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			emit()
		}
	}
}
