package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stratalabs/finsight/internal/metrics"
)

var (
	// ErrUnavailable wraps any backend failure; the dispatcher surfaces it
	// as a tool execution error rather than leaking driver details
	ErrUnavailable = errors.New("data store unavailable")

	// ErrNotFound marks a lookup that matched no rows
	ErrNotFound = errors.New("record not found")
)

// PoolInterface defines the interface for database pool operations
type PoolInterface interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Store is the query collaborator behind the tool handlers
type Store struct {
	pool   PoolInterface
	logger zerolog.Logger
}

// New creates a store over the given pool
func New(pool PoolInterface) *Store {
	return &Store{
		pool:   pool,
		logger: log.With().Str("component", "store").Logger(),
	}
}

// NewWithPool creates a store backed by a pgxpool.Pool
func NewWithPool(pool *pgxpool.Pool) *Store {
	return New(pool)
}

// Transaction is a single financial transaction row
type Transaction struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Symbol          string    `json:"symbol"`
	Amount          float64   `json:"amount"`
	Category        string    `json:"category"`
	RiskScore       float64   `json:"risk_score"`
	TransactionDate time.Time `json:"transaction_date"`
}

// Portfolio holds the portfolio attributes risk analysis needs
type Portfolio struct {
	ID         int64   `json:"id"`
	OwnerID    int64   `json:"owner_id"`
	Name       string  `json:"name"`
	TotalValue float64 `json:"total_value"`
}

// PricePoint is the latest observed price for a symbol
type PricePoint struct {
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Volume     float64   `json:"volume"`
	RecordedAt time.Time `json:"recorded_at"`
}

// MarketAggregate summarizes one symbol over a lookback period
type MarketAggregate struct {
	Symbol        string  `json:"symbol"`
	AveragePrice  float64 `json:"average_price"`
	MinPrice      float64 `json:"min_price"`
	MaxPrice      float64 `json:"max_price"`
	TotalVolume   float64 `json:"total_volume"`
	ChangePercent float64 `json:"change_percent"`
}

// TransactionFilter narrows a transaction query. UserID is mandatory;
// everything else is optional.
type TransactionFilter struct {
	UserID       int64
	Symbol       string
	Category     string
	StartDate    *time.Time
	EndDate      *time.Time
	MinAmount    *float64
	MaxAmount    *float64
	MinRiskScore *float64
	MaxRiskScore *float64
	Limit        int
}

const defaultTransactionLimit = 50

// observeQuery times a query and records it under the given type
func observeQuery(queryType string) func() {
	start := time.Now()
	return func() {
		metrics.RecordDatabaseQuery(queryType, float64(time.Since(start).Milliseconds()))
	}
}

// TransactionsByFilter returns the caller-visible transactions matching the
// filter, newest first
func (s *Store) TransactionsByFilter(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	defer observeQuery("transactions_by_filter")()

	var sb strings.Builder
	sb.WriteString(`SELECT id, user_id, symbol, amount, category, risk_score, transaction_date
		FROM transactions WHERE user_id = $1`)
	args := []interface{}{filter.UserID}

	addClause := func(clause string, value interface{}) {
		args = append(args, value)
		fmt.Fprintf(&sb, " AND %s $%d", clause, len(args))
	}

	if filter.Symbol != "" {
		addClause("symbol =", filter.Symbol)
	}
	if filter.Category != "" {
		addClause("category =", filter.Category)
	}
	if filter.StartDate != nil {
		addClause("transaction_date >=", *filter.StartDate)
	}
	if filter.EndDate != nil {
		addClause("transaction_date <=", *filter.EndDate)
	}
	if filter.MinAmount != nil {
		addClause("amount >=", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		addClause("amount <=", *filter.MaxAmount)
	}
	if filter.MinRiskScore != nil {
		addClause("risk_score >=", *filter.MinRiskScore)
	}
	if filter.MaxRiskScore != nil {
		addClause("risk_score <=", *filter.MaxRiskScore)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY transaction_date DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query transactions: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Symbol, &tx.Amount, &tx.Category, &tx.RiskScore, &tx.TransactionDate); err != nil {
			return nil, fmt.Errorf("%w: scan transaction row: %v", ErrUnavailable, err)
		}
		txns = append(txns, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate transaction rows: %v", ErrUnavailable, err)
	}

	s.logger.Debug().
		Int64("user_id", filter.UserID).
		Int("count", len(txns)).
		Msg("transactions queried")
	return txns, nil
}

// PortfolioByID loads a single portfolio
func (s *Store) PortfolioByID(ctx context.Context, id int64) (*Portfolio, error) {
	defer observeQuery("portfolio_by_id")()

	query := `SELECT id, owner_id, name, total_value FROM portfolios WHERE id = $1`

	var p Portfolio
	err := s.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.OwnerID, &p.Name, &p.TotalValue)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: portfolio %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query portfolio %d: %v", ErrUnavailable, id, err)
	}
	return &p, nil
}

// ReturnSeriesByPortfolio loads the portfolio's daily return series for the
// lookback window, oldest first so drawdown math sees chronological order
func (s *Store) ReturnSeriesByPortfolio(ctx context.Context, portfolioID int64, periodDays int) ([]float64, error) {
	defer observeQuery("return_series")()

	query := `SELECT daily_return FROM portfolio_returns
		WHERE portfolio_id = $1 AND return_date >= NOW() - INTERVAL '1 day' * $2
		ORDER BY return_date ASC`

	rows, err := s.pool.Query(ctx, query, portfolioID, periodDays)
	if err != nil {
		return nil, fmt.Errorf("%w: query return series: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var returns []float64
	for rows.Next() {
		var r float64
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("%w: scan return row: %v", ErrUnavailable, err)
		}
		returns = append(returns, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate return rows: %v", ErrUnavailable, err)
	}
	return returns, nil
}

// LatestPrices returns the most recent price per requested symbol. Symbols
// with no recorded prices are simply absent from the result.
func (s *Store) LatestPrices(ctx context.Context, symbols []string) ([]PricePoint, error) {
	defer observeQuery("latest_prices")()

	query := `SELECT DISTINCT ON (symbol) symbol, price, volume, recorded_at
		FROM market_prices WHERE symbol = ANY($1)
		ORDER BY symbol, recorded_at DESC`

	rows, err := s.pool.Query(ctx, query, symbols)
	if err != nil {
		return nil, fmt.Errorf("%w: query latest prices: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var prices []PricePoint
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.Symbol, &p.Price, &p.Volume, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("%w: scan price row: %v", ErrUnavailable, err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate price rows: %v", ErrUnavailable, err)
	}
	return prices, nil
}

// periodIntervals maps the summary periods the market tool accepts onto
// Postgres interval literals
var periodIntervals = map[string]string{
	"hour":  "1 hour",
	"day":   "1 day",
	"week":  "7 days",
	"month": "30 days",
}

// ValidPeriod reports whether the market summary period is supported
func ValidPeriod(period string) bool {
	_, ok := periodIntervals[period]
	return ok
}

// MarketAggregates summarizes each symbol over the named period. An
// unsupported period is a caller bug upstream validation should have caught.
func (s *Store) MarketAggregates(ctx context.Context, symbols []string, period string) ([]MarketAggregate, error) {
	interval, ok := periodIntervals[period]
	if !ok {
		return nil, fmt.Errorf("unsupported period %q", period)
	}
	defer observeQuery("market_aggregates")()

	query := `SELECT symbol, AVG(price), MIN(price), MAX(price), SUM(volume),
			COALESCE((MAX(price) - MIN(price)) / NULLIF(MIN(price), 0) * 100, 0)
		FROM market_prices
		WHERE symbol = ANY($1) AND recorded_at >= NOW() - $2::interval
		GROUP BY symbol ORDER BY symbol`

	rows, err := s.pool.Query(ctx, query, symbols, interval)
	if err != nil {
		return nil, fmt.Errorf("%w: query market aggregates: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var aggs []MarketAggregate
	for rows.Next() {
		var a MarketAggregate
		if err := rows.Scan(&a.Symbol, &a.AveragePrice, &a.MinPrice, &a.MaxPrice, &a.TotalVolume, &a.ChangePercent); err != nil {
			return nil, fmt.Errorf("%w: scan aggregate row: %v", ErrUnavailable, err)
		}
		aggs = append(aggs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate aggregate rows: %v", ErrUnavailable, err)
	}
	return aggs, nil
}
