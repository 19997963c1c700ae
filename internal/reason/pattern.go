package reason

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stratalabs/finsight/internal/risk"
	"github.com/stratalabs/finsight/internal/store"
	"github.com/stratalabs/finsight/internal/tools"
)

// PatternStrategy plans tool calls from fixed regex and keyword rules. It
// is fully deterministic: the same query from the same caller always yields
// the same plan. Used when no LLM gateway is configured, and as the
// fallback path in tests.
type PatternStrategy struct {
	logger zerolog.Logger
}

// NewPatternStrategy creates the deterministic strategy
func NewPatternStrategy() *PatternStrategy {
	return &PatternStrategy{
		logger: log.With().Str("component", "pattern_strategy").Logger(),
	}
}

func (s *PatternStrategy) Name() string { return "pattern" }

var (
	portfolioPattern   = regexp.MustCompile(`(?i)portfolio\s+#?(\d+)`)
	userPattern        = regexp.MustCompile(`(?i)user\s+#?(\d+)`)
	daysPattern        = regexp.MustCompile(`(?i)(\d+)\s*days?`)
	amountOverPattern  = regexp.MustCompile(`(?i)(?:over|above|more than)\s+\$?([\d,]+(?:\.\d+)?)`)
	amountUnderPattern = regexp.MustCompile(`(?i)(?:under|below|less than)\s+\$?([\d,]+(?:\.\d+)?)`)
	limitPattern       = regexp.MustCompile(`(?i)(?:top|first|limit)\s+(\d+)`)
	symbolPattern      = regexp.MustCompile(`\b[A-Z]{2,5}\b`)
)

// Uppercase words that look like tickers but never are
var symbolStopwords = map[string]struct{}{
	"THE": {}, "AND": {}, "FOR": {}, "NOT": {}, "ALL": {}, "ANY": {},
	"VAR": {}, "USD": {}, "EUR": {}, "API": {}, "ID": {}, "OK": {},
	"MY": {}, "ME": {}, "OF": {}, "ON": {}, "IN": {}, "IT": {},
	"IS": {}, "TO": {}, "VS": {}, "TOP": {},
}

var transactionKeywords = []string{
	"transaction", "spending", "purchase", "payment", "bought", "sold", "spent",
}

var riskKeywords = []string{
	"risk", "volatility", "sharpe", "drawdown", "value at risk", "exposure",
}

var marketKeywords = []string{
	"market", "price", "quote", "summary", "trading",
}

var categoryKeywords = []string{
	"groceries", "dining", "travel", "entertainment", "utilities",
	"healthcare", "shopping", "transfer",
}

var defaultMarketSymbols = []string{"AAPL", "MSFT", "GOOGL"}

const helpAnswer = "I can query transactions, analyze portfolio risk, and summarize market data. " +
	"Try: 'show my transactions from last month', 'analyze risk for portfolio 12', " +
	"or 'market summary for AAPL'."

type plannedStep struct {
	thought string
	call    PlannedCall
}

// ProposeNext recomputes the plan from the query and surfaces the step
// after the ones already taken, then the composed answer
func (s *PatternStrategy) ProposeNext(ctx context.Context, rc *RequestContext, history []Step) (Proposal, error) {
	plan, note := s.plan(rc)

	if len(plan) == 0 {
		answer := helpAnswer
		if note != "" {
			answer = note
		}
		return Proposal{Answer: answer}, nil
	}

	if len(history) < len(plan) {
		next := plan[len(history)]
		s.logger.Debug().
			Str("request_id", rc.ID).
			Str("tool", next.call.Tool).
			Int("step", len(history)+1).
			Msg("pattern plan step")
		return Proposal{Thought: next.thought, Call: &next.call}, nil
	}

	answer := s.composeAnswer(history)
	if note != "" {
		answer += " " + note
	}
	return Proposal{Answer: answer}, nil
}

// plan derives the ordered tool call list for the query. The optional note
// is appended to the final answer (for example when a risk request named no
// portfolio).
func (s *PatternStrategy) plan(rc *RequestContext) ([]plannedStep, string) {
	query := rc.Query
	lower := strings.ToLower(query)

	var plan []plannedStep
	var note string

	if containsAny(lower, transactionKeywords) {
		userID := rc.Identity.CallerID
		if m := userPattern.FindStringSubmatch(query); m != nil {
			userID, _ = strconv.ParseInt(m[1], 10, 64)
		}
		args := map[string]interface{}{"user_id": float64(userID)}
		addTransactionFilters(args, query, lower)
		plan = append(plan, plannedStep{
			thought: fmt.Sprintf("Looking up transactions for user %d", userID),
			call:    PlannedCall{Tool: tools.ToolQueryTransactions, Args: args},
		})
	}

	if containsAny(lower, riskKeywords) {
		if m := portfolioPattern.FindStringSubmatch(query); m != nil {
			portfolioID, _ := strconv.ParseInt(m[1], 10, 64)
			args := map[string]interface{}{
				"portfolio_id": float64(portfolioID),
				"period_days":  float64(lookbackDays(lower)),
			}
			plan = append(plan, plannedStep{
				thought: fmt.Sprintf("Analyzing risk metrics for portfolio %d", portfolioID),
				call:    PlannedCall{Tool: tools.ToolAnalyzeRisk, Args: args},
			})
		} else {
			note = "For a risk analysis, name the portfolio, e.g. 'portfolio 12'."
		}
	}

	symbols := extractSymbols(query)
	if containsAny(lower, marketKeywords) || len(symbols) > 0 {
		if len(symbols) == 0 {
			symbols = defaultMarketSymbols
		}
		args := map[string]interface{}{
			"symbols": toInterfaceSlice(symbols),
			"period":  summaryPeriod(lower),
		}
		plan = append(plan, plannedStep{
			thought: fmt.Sprintf("Fetching market summary for %s", strings.Join(symbols, ", ")),
			call:    PlannedCall{Tool: tools.ToolMarketSummary, Args: args},
		})
	}

	return plan, note
}

func addTransactionFilters(args map[string]interface{}, query, lower string) {
	if days := lookbackDaysIfPresent(lower); days > 0 {
		start := time.Now().AddDate(0, 0, -days)
		args["start_date"] = start.Format("2006-01-02")
	}
	if m := amountOverPattern.FindStringSubmatch(query); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			args["min_amount"] = v
		}
	}
	if m := amountUnderPattern.FindStringSubmatch(query); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			args["max_amount"] = v
		}
	}
	switch {
	case strings.Contains(lower, "high risk"):
		args["min_risk_score"] = 0.7
	case strings.Contains(lower, "low risk"):
		args["max_risk_score"] = 0.3
	case strings.Contains(lower, "medium risk"):
		args["min_risk_score"] = 0.3
		args["max_risk_score"] = 0.7
	}
	for _, category := range categoryKeywords {
		if strings.Contains(lower, category) {
			args["category"] = category
			break
		}
	}
	if m := limitPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			args["limit"] = float64(n)
		}
	}
}

// lookbackDays returns the analysis window implied by the query, defaulting
// to 30 days
func lookbackDays(lower string) int {
	if days := lookbackDaysIfPresent(lower); days > 0 {
		return days
	}
	return 30
}

func lookbackDaysIfPresent(lower string) int {
	switch {
	case strings.Contains(lower, "last week"), strings.Contains(lower, "past week"):
		return 7
	case strings.Contains(lower, "last month"), strings.Contains(lower, "past month"):
		return 30
	case strings.Contains(lower, "last year"), strings.Contains(lower, "past year"):
		return 365
	case strings.Contains(lower, "yesterday"):
		return 1
	}
	if m := daysPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 0
}

func summaryPeriod(lower string) string {
	switch {
	case strings.Contains(lower, "hour"):
		return "hour"
	case strings.Contains(lower, "week"):
		return "week"
	case strings.Contains(lower, "month"):
		return "month"
	default:
		return "day"
	}
}

func extractSymbols(query string) []string {
	seen := make(map[string]struct{})
	var symbols []string
	for _, m := range symbolPattern.FindAllString(query, -1) {
		if _, stop := symbolStopwords[m]; stop {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		symbols = append(symbols, m)
	}
	return symbols
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func toInterfaceSlice(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// composeAnswer summarizes the gathered results in plan order
func (s *PatternStrategy) composeAnswer(history []Step) string {
	var parts []string
	for _, step := range history {
		if step.Err != nil {
			parts = append(parts, fmt.Sprintf("The %s call failed: %v.", step.Call.Tool, step.Err))
			continue
		}
		parts = append(parts, describeResult(step))
	}
	if len(parts) == 0 {
		return helpAnswer
	}
	return strings.Join(parts, " ")
}

func describeResult(step Step) string {
	payload, ok := step.Result.(map[string]interface{})
	if !ok {
		return fmt.Sprintf("The %s call completed.", step.Call.Tool)
	}

	switch step.Call.Tool {
	case tools.ToolQueryTransactions:
		count, _ := payload["count"].(int)
		userID, _ := payload["user_id"].(int64)
		return fmt.Sprintf("Found %d transactions for user %d.", count, userID)

	case tools.ToolAnalyzeRisk:
		metrics, ok := payload["metrics"].(*risk.Metrics)
		if !ok {
			return "Risk analysis completed."
		}
		name, _ := payload["portfolio_name"].(string)
		days, _ := payload["period_days"].(int)
		return fmt.Sprintf(
			"Portfolio %s over %d days: volatility %.1f%%, Sharpe %.2f, max drawdown %.1f%%, risk level %s.",
			name, days, metrics.Volatility*100, metrics.SharpeRatio, metrics.MaxDrawdown*100, metrics.RiskLevel)

	case tools.ToolMarketSummary:
		period, _ := payload["period"].(string)
		aggs, _ := payload["aggregates"].([]store.MarketAggregate)
		if len(aggs) == 0 {
			return fmt.Sprintf("No market data found for the requested symbols (%s).", period)
		}
		var lines []string
		for _, a := range aggs {
			lines = append(lines, fmt.Sprintf("%s avg %.2f (range %.2f-%.2f)", a.Symbol, a.AveragePrice, a.MinPrice, a.MaxPrice))
		}
		return fmt.Sprintf("Market summary (%s): %s.", period, strings.Join(lines, "; "))

	default:
		return fmt.Sprintf("The %s call completed.", step.Call.Tool)
	}
}
