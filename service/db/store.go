package db

import (
	"context"
	"fmt"
	"time"
)

// Trade is the persisted outcome of one trade request.
// This is a domain model wrapping the "trades" record shape; schema
// ownership belongs to the API layer, the core only reads and writes it.
type Trade struct {
	ID               string
	Token            string
	Side             string // BUY or SELL
	Amount           float64
	Price            float64
	Fees             float64
	SlippagePct      float64
	ComputeUnits     int64
	Signature        *string // nil for failed trades
	Status           string  // completed or failed
	Error            *string // nil for completed trades
	Priority         string
	ProtectionMethod string
	ProcessingTime   time.Duration
	CreatedAt        time.Time
}

// CreateTradeParams contains the parameters for recording a trade outcome.
type CreateTradeParams struct {
	ID               string
	Token            string
	Side             string
	Amount           float64
	Price            float64
	Fees             float64
	SlippagePct      float64
	ComputeUnits     int64
	Signature        *string
	Status           string
	Error            *string
	Priority         string
	ProtectionMethod string
	ProcessingTime   time.Duration
}

// ProtectionUsage is one recorded protection routing decision.
type ProtectionUsage struct {
	ID         int64
	Method     string
	CostSOL    float64
	RiskScore  float64
	Complexity string // simple, standard, complex
	Applied    bool
	CreatedAt  time.Time
}

// RecordProtectionUsageParams contains the parameters for recording usage.
type RecordProtectionUsageParams struct {
	Method     string
	CostSOL    float64
	RiskScore  float64
	Complexity string
	Applied    bool
}

// MethodStats aggregates protection usage for one method.
type MethodStats struct {
	Method       string
	Count        int64
	TotalCostSOL float64
	AppliedRate  float64
}

// Settings are the operator-controlled trading knobs the core reads.
type Settings struct {
	TradingMode    string // live or paper
	MaxPositionSOL float64
	TradingEnabled bool
	UpdatedAt      time.Time
}

// Store provides database operations for the core. All queries go through
// the shared Conn handle so a mid-flight reconnect is picked up
// transparently.
type Store struct {
	conn *Conn
}

// NewStore creates a new Store on the shared connection handle.
func NewStore(conn *Conn) *Store {
	return &Store{conn: conn}
}

// CreateTrade inserts a trade outcome record.
func (s *Store) CreateTrade(ctx context.Context, params CreateTradeParams) (*Trade, error) {
	pool, err := s.conn.Pool()
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO trades (
			id, token, side, amount, price, fees, slippage_pct,
			compute_units, signature, status, error, priority,
			protection_method, processing_time_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at
	`

	trade := &Trade{
		ID:               params.ID,
		Token:            params.Token,
		Side:             params.Side,
		Amount:           params.Amount,
		Price:            params.Price,
		Fees:             params.Fees,
		SlippagePct:      params.SlippagePct,
		ComputeUnits:     params.ComputeUnits,
		Signature:        params.Signature,
		Status:           params.Status,
		Error:            params.Error,
		Priority:         params.Priority,
		ProtectionMethod: params.ProtectionMethod,
		ProcessingTime:   params.ProcessingTime,
	}

	err = pool.QueryRow(ctx, query,
		params.ID, params.Token, params.Side, params.Amount, params.Price,
		params.Fees, params.SlippagePct, params.ComputeUnits, params.Signature,
		params.Status, params.Error, params.Priority, params.ProtectionMethod,
		params.ProcessingTime.Milliseconds(),
	).Scan(&trade.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}

	return trade, nil
}

// GetTrade retrieves a trade by its ID.
func (s *Store) GetTrade(ctx context.Context, id string) (*Trade, error) {
	pool, err := s.conn.Pool()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, token, side, amount, price, fees, slippage_pct,
		       compute_units, signature, status, error, priority,
		       protection_method, processing_time_ms, created_at
		FROM trades
		WHERE id = $1
	`

	var trade Trade
	var processingMs int64
	err = pool.QueryRow(ctx, query, id).Scan(
		&trade.ID, &trade.Token, &trade.Side, &trade.Amount, &trade.Price,
		&trade.Fees, &trade.SlippagePct, &trade.ComputeUnits, &trade.Signature,
		&trade.Status, &trade.Error, &trade.Priority, &trade.ProtectionMethod,
		&processingMs, &trade.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get trade %s: %w", id, err)
	}
	trade.ProcessingTime = time.Duration(processingMs) * time.Millisecond

	return &trade, nil
}

// ListTrades retrieves recent trades, newest first.
func (s *Store) ListTrades(ctx context.Context, limit, offset int32) ([]*Trade, error) {
	pool, err := s.conn.Pool()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, token, side, amount, price, fees, slippage_pct,
		       compute_units, signature, status, error, priority,
		       protection_method, processing_time_ms, created_at
		FROM trades
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var trades []*Trade
	for rows.Next() {
		var trade Trade
		var processingMs int64
		if err := rows.Scan(
			&trade.ID, &trade.Token, &trade.Side, &trade.Amount, &trade.Price,
			&trade.Fees, &trade.SlippagePct, &trade.ComputeUnits, &trade.Signature,
			&trade.Status, &trade.Error, &trade.Priority, &trade.ProtectionMethod,
			&processingMs, &trade.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trade.ProcessingTime = time.Duration(processingMs) * time.Millisecond
		trades = append(trades, &trade)
	}
	return trades, rows.Err()
}

// RecordProtectionUsage inserts one protection routing decision.
func (s *Store) RecordProtectionUsage(ctx context.Context, params RecordProtectionUsageParams) error {
	pool, err := s.conn.Pool()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO protection_usage (method, cost_sol, risk_score, complexity, applied)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = pool.Exec(ctx, query,
		params.Method, params.CostSOL, params.RiskScore, params.Complexity, params.Applied,
	)
	if err != nil {
		return fmt.Errorf("record protection usage: %w", err)
	}
	return nil
}

// ProtectionStats aggregates usage per method: total count, total cost, and
// the fraction of decisions where protection actually applied.
func (s *Store) ProtectionStats(ctx context.Context) ([]*MethodStats, error) {
	pool, err := s.conn.Pool()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT method,
		       COUNT(*),
		       COALESCE(SUM(cost_sol), 0),
		       COALESCE(AVG(CASE WHEN applied THEN 1.0 ELSE 0.0 END), 0)
		FROM protection_usage
		GROUP BY method
		ORDER BY method
	`

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("protection stats: %w", err)
	}
	defer rows.Close()

	var stats []*MethodStats
	for rows.Next() {
		var ms MethodStats
		if err := rows.Scan(&ms.Method, &ms.Count, &ms.TotalCostSOL, &ms.AppliedRate); err != nil {
			return nil, fmt.Errorf("scan protection stats: %w", err)
		}
		stats = append(stats, &ms)
	}
	return stats, rows.Err()
}

// GetSettings reads the operator trading settings. The settings row is
// owned by the API layer; the core only reads it.
func (s *Store) GetSettings(ctx context.Context) (*Settings, error) {
	pool, err := s.conn.Pool()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT trading_mode, max_position_sol, trading_enabled, updated_at
		FROM bot_settings
		LIMIT 1
	`

	var settings Settings
	err = pool.QueryRow(ctx, query).Scan(
		&settings.TradingMode, &settings.MaxPositionSOL,
		&settings.TradingEnabled, &settings.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &settings, nil
}
