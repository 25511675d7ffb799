package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/mantis-trade/mantis/service/config"
	"github.com/mantis-trade/mantis/service/db"
	"github.com/mantis-trade/mantis/service/events"
	"github.com/mantis-trade/mantis/service/jupiter"
	"github.com/mantis-trade/mantis/service/metrics"
	"github.com/mantis-trade/mantis/service/protect"
	"github.com/mantis-trade/mantis/service/retry"
	"github.com/mantis-trade/mantis/service/solana"
)

// Wrapped SOL, the input mint for BUY orders and output mint for SELL.
const wsolMint = "So11111111111111111111111111111111111111112"

// ChainClient is the on-chain surface the engine needs.
type ChainClient interface {
	SOLBalance(ctx context.Context, owner solanago.PublicKey) (uint64, error)
	TokenBalance(ctx context.Context, owner, mint solanago.PublicKey) (uint64, error)
	SubmitAndConfirm(ctx context.Context, tx *solanago.Transaction) (*solana.SubmitResult, error)
}

// Protector scores and shields a transaction before submission.
type Protector interface {
	AssessRisk(tx *solanago.Transaction, valueUSD, congestion float64) float64
	Protect(ctx context.Context, tx *solanago.Transaction, riskScore float64) *protect.ProtectedTransaction
}

// TradeStore persists trade outcomes.
type TradeStore interface {
	CreateTrade(ctx context.Context, params db.CreateTradeParams) (*db.Trade, error)
}

// Params bundles the engine's collaborators. Wallet may be nil, which
// engages the simulation path outside production. Store, Publisher, and
// Metrics may be nil. Congestion may be nil; risk scoring then assumes a
// calm network.
type Params struct {
	Config     *config.Config
	Aggregator jupiter.Aggregator
	Chain      ChainClient
	Wallet     *solana.Wallet
	Protector  Protector
	Store      TradeStore
	Publisher  events.Publisher
	Executor   *retry.Executor
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Congestion func(ctx context.Context) float64
}

// Engine turns one trade request into exactly one result, emitting
// lifecycle events along the way. Quotes and balance reads go through
// the resilient executor; the submission itself is single-shot, retries
// belong to the caller.
type Engine struct {
	cfg        *config.Config
	aggregator jupiter.Aggregator
	chain      ChainClient
	wallet     *solana.Wallet
	protector  Protector
	store      TradeStore
	publisher  events.Publisher
	exec       *retry.Executor
	metrics    *metrics.Metrics
	logger     *slog.Logger
	congestion func(ctx context.Context) float64
}

func New(p Params) *Engine {
	congestion := p.Congestion
	if congestion == nil {
		congestion = func(context.Context) float64 { return 0 }
	}
	return &Engine{
		cfg:        p.Config,
		aggregator: p.Aggregator,
		chain:      p.Chain,
		wallet:     p.Wallet,
		protector:  p.Protector,
		store:      p.Store,
		publisher:  p.Publisher,
		exec:       p.Executor,
		metrics:    p.Metrics,
		logger:     p.Logger,
		congestion: congestion,
	}
}

// Execute runs one trade request to completion. The returned Result is
// never nil; when it reports failure the same reason is returned as an
// error for callers that branch on it.
func (e *Engine) Execute(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	if req.ID == "" {
		req.ID = fmt.Sprintf("trade-%d", start.UnixNano())
	}

	e.publishStarted(ctx, req)
	e.logger.InfoContext(ctx, "trade started",
		"request_id", req.ID,
		"token", req.Token,
		"side", req.Side,
		"amount", req.Amount,
	)

	if err := e.validate(req); err != nil {
		return e.fail(ctx, req, start, err)
	}

	if e.simulated() {
		result := e.simulate(ctx, req, start)
		e.finish(ctx, req, result)
		return result, nil
	}

	var (
		result *Result
		err    error
	)
	switch req.Side {
	case SideBuy:
		result, err = e.executeBuy(ctx, req, start)
	case SideSell:
		result, err = e.executeSell(ctx, req, start)
	}
	if err != nil {
		return e.fail(ctx, req, start, err)
	}

	e.finish(ctx, req, result)
	return result, nil
}

func (e *Engine) executeBuy(ctx context.Context, req *Request, start time.Time) (*Result, error) {
	owner := e.wallet.PublicKey()

	// Sufficiency is checked before any price lookup so an underfunded
	// wallet costs one read, not three.
	balance, err := retry.Value(ctx, e.exec, "sol_balance", func(ctx context.Context) (uint64, error) {
		return e.chain.SOLBalance(ctx, owner)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	lamportsIn := uint64(req.Amount * float64(solanago.LAMPORTS_PER_SOL))
	if balance < lamportsIn {
		return nil, fmt.Errorf("%w: have %d lamports, need %d", ErrInsufficientBalance, balance, lamportsIn)
	}

	solPriceUSD, err := retry.Value(ctx, e.exec, "price_sol", func(ctx context.Context) (float64, error) {
		return e.aggregator.Price(ctx, wsolMint)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteFailed, err)
	}
	tokenPriceUSD, err := retry.Value(ctx, e.exec, "price_token", func(ctx context.Context) (float64, error) {
		return e.aggregator.Price(ctx, req.Token)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteFailed, err)
	}

	return e.swap(ctx, req, start, swapLeg{
		inputMint:  wsolMint,
		outputMint: req.Token,
		amountIn:   lamportsIn,
		priceUSD:   tokenPriceUSD,
		valueUSD:   req.Amount * solPriceUSD,
	})
}

func (e *Engine) executeSell(ctx context.Context, req *Request, start time.Time) (*Result, error) {
	owner := e.wallet.PublicKey()
	mint := solanago.MustPublicKeyFromBase58(req.Token)

	balance, err := retry.Value(ctx, e.exec, "token_balance", func(ctx context.Context) (uint64, error) {
		return e.chain.TokenBalance(ctx, owner, mint)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	unitsIn := uint64(req.Amount * float64(solanago.LAMPORTS_PER_SOL))
	if balance < unitsIn {
		return nil, fmt.Errorf("%w: have %d units, need %d", ErrInsufficientBalance, balance, unitsIn)
	}

	tokenPriceUSD, err := retry.Value(ctx, e.exec, "price_token", func(ctx context.Context) (float64, error) {
		return e.aggregator.Price(ctx, req.Token)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteFailed, err)
	}

	return e.swap(ctx, req, start, swapLeg{
		inputMint:  req.Token,
		outputMint: wsolMint,
		amountIn:   unitsIn,
		priceUSD:   tokenPriceUSD,
		valueUSD:   req.Amount * tokenPriceUSD,
	})
}

// swapLeg carries the side-specific parameters into the shared
// quote/sign/submit/confirm sequence.
type swapLeg struct {
	inputMint  string
	outputMint string
	amountIn   uint64
	priceUSD   float64
	valueUSD   float64
}

func (e *Engine) swap(ctx context.Context, req *Request, start time.Time, leg swapLeg) (*Result, error) {
	slippageBps := int(req.MaxSlippagePct * 100)

	quote, err := retry.Value(ctx, e.exec, "quote", func(ctx context.Context) (*jupiter.Quote, error) {
		return e.aggregator.GetQuote(ctx, leg.inputMint, leg.outputMint, leg.amountIn, slippageBps)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteFailed, err)
	}

	swapResp, err := retry.Value(ctx, e.exec, "swap_transaction", func(ctx context.Context) (*jupiter.SwapResponse, error) {
		return e.aggregator.GetSwapTransaction(ctx, quote, e.wallet.PublicKey().String())
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSwapFetchFailed, err)
	}

	tx, err := solanago.TransactionFromBase64(swapResp.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSwapFetchFailed, err)
	}
	if err := e.wallet.SignTransaction(tx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	risk := e.protector.AssessRisk(tx, leg.valueUSD, e.congestion(ctx))
	protected := e.protector.Protect(ctx, tx, risk)

	submitted, err := e.chain.SubmitAndConfirm(ctx, protected.Tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	inAmount, err := quote.InAmountUint()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteFailed, err)
	}
	outAmount, err := quote.OutAmountUint()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteFailed, err)
	}
	threshold, err := quote.OtherAmountThresholdUint()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteFailed, err)
	}

	// Fee is the quoted worst-case output minus the realized output,
	// preserved with its sign: a fill better than the threshold yields a
	// negative fee.
	fees := (float64(threshold) - float64(outAmount)) / float64(solanago.LAMPORTS_PER_SOL)
	slippagePct := (float64(inAmount) - float64(outAmount)) / float64(inAmount) * 100

	return &Result{
		RequestID:        req.ID,
		Success:          true,
		Signature:        submitted.Signature.String(),
		Amount:           req.Amount,
		Price:            leg.priceUSD,
		Fees:             fees,
		SlippagePct:      slippagePct,
		ComputeUnits:     submitted.ComputeUnits,
		ProtectionMethod: string(protected.Protection.Method),
		ProcessingTime:   time.Since(start),
	}, nil
}

// fail produces the terminal failure Result, publishes the tradeFailed
// event, and persists the attempt.
func (e *Engine) fail(ctx context.Context, req *Request, start time.Time, cause error) (*Result, error) {
	result := &Result{
		RequestID:      req.ID,
		Success:        false,
		Amount:         req.Amount,
		ProcessingTime: time.Since(start),
		Error:          cause.Error(),
	}
	e.logger.WarnContext(ctx, "trade failed",
		"request_id", req.ID,
		"token", req.Token,
		"side", req.Side,
		"error", cause,
	)
	e.finish(ctx, req, result)
	return result, cause
}

// finish publishes the terminal lifecycle event, records metrics, and
// persists the trade. Persistence and publication failures are logged,
// never surfaced; the result is already decided.
func (e *Engine) finish(ctx context.Context, req *Request, result *Result) {
	if e.metrics != nil {
		status := "completed"
		if !result.Success {
			status = "failed"
		}
		e.metrics.RecordTrade(string(req.Side), status, result.ProcessingTime.Seconds())
	}

	if e.publisher != nil {
		event := &events.TradeEvent{
			Type:        events.TypeTradeCompleted,
			RequestID:   req.ID,
			Token:       req.Token,
			Side:        string(req.Side),
			Amount:      req.Amount,
			Price:       result.Price,
			Fees:        result.Fees,
			SlippagePct: result.SlippagePct,
			Signature:   result.Signature,
			Timestamp:   time.Now().UTC(),
		}
		if !result.Success {
			event.Type = events.TypeTradeFailed
			event.Error = result.Error
		}
		if err := e.publisher.PublishTrade(ctx, event); err != nil {
			e.logger.WarnContext(ctx, "failed to publish trade event",
				"request_id", req.ID,
				"type", event.Type,
				"error", err,
			)
		}
	}

	e.persist(ctx, req, result)
}

func (e *Engine) publishStarted(ctx context.Context, req *Request) {
	if e.publisher == nil {
		return
	}
	event := &events.TradeEvent{
		Type:      events.TypeTradeStarted,
		RequestID: req.ID,
		Token:     req.Token,
		Side:      string(req.Side),
		Amount:    req.Amount,
		Timestamp: time.Now().UTC(),
	}
	if err := e.publisher.PublishTrade(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "failed to publish trade started event",
			"request_id", req.ID,
			"error", err,
		)
	}
}

func (e *Engine) persist(ctx context.Context, req *Request, result *Result) {
	if e.store == nil {
		return
	}

	params := db.CreateTradeParams{
		ID:               req.ID,
		Token:            req.Token,
		Side:             string(req.Side),
		Amount:           req.Amount,
		Price:            result.Price,
		Fees:             result.Fees,
		SlippagePct:      result.SlippagePct,
		ComputeUnits:     int64(result.ComputeUnits),
		Status:           "completed",
		Priority:         req.Priority,
		ProtectionMethod: result.ProtectionMethod,
		ProcessingTime:   result.ProcessingTime,
	}
	if result.Signature != "" {
		sig := result.Signature
		params.Signature = &sig
	}
	if !result.Success {
		params.Status = "failed"
		errMsg := result.Error
		params.Error = &errMsg
	}

	err := e.exec.Do(ctx, "persist_trade", func(ctx context.Context) error {
		_, err := e.store.CreateTrade(ctx, params)
		return err
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to persist trade",
			"request_id", req.ID,
			"error", err,
		)
	}
}
