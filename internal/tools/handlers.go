package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/stratalabs/finsight/internal/auth"
	"github.com/stratalabs/finsight/internal/risk"
	"github.com/stratalabs/finsight/internal/store"
)

// ToolQueryTransactions and friends are the registered tool names
const (
	ToolQueryTransactions = "query_transactions"
	ToolAnalyzeRisk       = "analyze_risk_metrics"
	ToolMarketSummary     = "get_market_summary"
)

const defaultRiskPeriodDays = 30

// NewQueryTransactionsTool returns the transaction query tool
func NewQueryTransactionsTool(s *store.Store) Descriptor {
	return Descriptor{
		Name:        ToolQueryTransactions,
		Description: "Query financial transactions for a user with optional filters on symbol, date range, amount, risk score, and category",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"user_id": map[string]interface{}{
					"type":        "integer",
					"description": "User whose transactions to query",
				},
				"symbol": map[string]interface{}{
					"type":        "string",
					"description": "Restrict to a single instrument symbol",
				},
				"start_date": map[string]interface{}{
					"type":        "string",
					"format":      "date",
					"description": "Earliest transaction date (YYYY-MM-DD)",
				},
				"end_date": map[string]interface{}{
					"type":        "string",
					"format":      "date",
					"description": "Latest transaction date (YYYY-MM-DD)",
				},
				"min_amount": map[string]interface{}{
					"type":        "number",
					"description": "Minimum transaction amount",
				},
				"max_amount": map[string]interface{}{
					"type":        "number",
					"description": "Maximum transaction amount",
				},
				"min_risk_score": map[string]interface{}{
					"type":        "number",
					"minimum":     0.0,
					"maximum":     1.0,
					"description": "Minimum risk score (0 to 1)",
				},
				"max_risk_score": map[string]interface{}{
					"type":        "number",
					"minimum":     0.0,
					"maximum":     1.0,
					"description": "Maximum risk score (0 to 1)",
				},
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Transaction category",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"minimum":     1.0,
					"maximum":     500.0,
					"description": "Maximum number of rows to return",
				},
			},
			"required": []string{"user_id"},
		},
		Required:    []auth.Permission{auth.PermReadTransactionsAll, auth.PermReadTransactionsOwn},
		OwnedArgs:   []string{"user_id"},
		AllDataPerm: auth.PermReadTransactionsAll,
		Handler: func(ctx context.Context, identity auth.Identity, args map[string]interface{}) (interface{}, error) {
			filter := store.TransactionFilter{
				UserID:       intArg(args, "user_id", identity.CallerID),
				Symbol:       stringArg(args, "symbol"),
				Category:     stringArg(args, "category"),
				StartDate:    dateArg(args, "start_date"),
				EndDate:      dateArg(args, "end_date"),
				MinAmount:    floatPtrArg(args, "min_amount"),
				MaxAmount:    floatPtrArg(args, "max_amount"),
				MinRiskScore: floatPtrArg(args, "min_risk_score"),
				MaxRiskScore: floatPtrArg(args, "max_risk_score"),
				Limit:        int(intArg(args, "limit", 0)),
			}

			txns, err := s.TransactionsByFilter(ctx, filter)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{
				"user_id":      filter.UserID,
				"count":        len(txns),
				"transactions": txns,
			}, nil
		},
	}
}

// NewAnalyzeRiskTool returns the portfolio risk analysis tool
func NewAnalyzeRiskTool(s *store.Store) Descriptor {
	return Descriptor{
		Name:        ToolAnalyzeRisk,
		Description: "Compute volatility, Sharpe ratio, value at risk, and max drawdown for a portfolio over a lookback period",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"portfolio_id": map[string]interface{}{
					"type":        "integer",
					"description": "Portfolio to analyze",
				},
				"period_days": map[string]interface{}{
					"type":        "integer",
					"minimum":     2.0,
					"maximum":     3650.0,
					"description": "Lookback window in days (default 30)",
				},
			},
			"required": []string{"portfolio_id"},
		},
		Required:    []auth.Permission{auth.PermReadRiskMetrics},
		OwnedArgs:   []string{"portfolio_id"},
		AllDataPerm: auth.PermReadPortfoliosAll,
		Handler: func(ctx context.Context, identity auth.Identity, args map[string]interface{}) (interface{}, error) {
			portfolioID := intArg(args, "portfolio_id", 0)
			periodDays := int(intArg(args, "period_days", defaultRiskPeriodDays))

			portfolio, err := s.PortfolioByID(ctx, portfolioID)
			if err != nil {
				return nil, err
			}

			returns, err := s.ReturnSeriesByPortfolio(ctx, portfolioID, periodDays)
			if err != nil {
				return nil, err
			}

			metrics, err := risk.Analyze(returns, portfolio.TotalValue)
			if err != nil {
				return nil, fmt.Errorf("analyze portfolio %d: %w", portfolioID, err)
			}

			return map[string]interface{}{
				"portfolio_id":   portfolio.ID,
				"portfolio_name": portfolio.Name,
				"period_days":    periodDays,
				"metrics":        metrics,
			}, nil
		},
	}
}

// NewMarketSummaryTool returns the market summary tool
func NewMarketSummaryTool(s *store.Store) Descriptor {
	return Descriptor{
		Name:        ToolMarketSummary,
		Description: "Summarize latest prices and period aggregates for a set of market symbols",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"symbols": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Market symbols to summarize",
				},
				"period": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"hour", "day", "week", "month"},
					"description": "Aggregation period (default day)",
				},
			},
			"required": []string{"symbols"},
		},
		Required: []auth.Permission{auth.PermReadMarketData},
		Handler: func(ctx context.Context, identity auth.Identity, args map[string]interface{}) (interface{}, error) {
			symbols := stringSliceArg(args, "symbols")
			if len(symbols) == 0 {
				return nil, fmt.Errorf("no symbols provided")
			}
			period := stringArg(args, "period")
			if period == "" {
				period = "day"
			}

			prices, err := s.LatestPrices(ctx, symbols)
			if err != nil {
				return nil, err
			}
			aggregates, err := s.MarketAggregates(ctx, symbols, period)
			if err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"period":        period,
				"symbols":       symbols,
				"latest_prices": prices,
				"aggregates":    aggregates,
			}, nil
		},
	}
}

// Argument coercion helpers. Validation has already run; these only need to
// handle the decoded shapes JSON produces.

func intArg(args map[string]interface{}, name string, fallback int64) int64 {
	v, ok := args[name]
	if !ok {
		return fallback
	}
	n, ok := asFloat(v)
	if !ok {
		return fallback
	}
	return int64(n)
}

func stringArg(args map[string]interface{}, name string) string {
	s, _ := args[name].(string)
	return s
}

func floatPtrArg(args map[string]interface{}, name string) *float64 {
	v, ok := args[name]
	if !ok {
		return nil
	}
	n, ok := asFloat(v)
	if !ok {
		return nil
	}
	return &n
}

func dateArg(args map[string]interface{}, name string) *time.Time {
	s, ok := args[name].(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func stringSliceArg(args map[string]interface{}, name string) []string {
	switch v := args[name].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
