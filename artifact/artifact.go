package artifact

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/domgolonka/ai-investment-agent-sub001/core"
)

// ErrNotFound is returned when no report exists for the given run / name
// pair.
var ErrNotFound = errors.New("report not found")

// Store persists the reports of finished runs.
type Store interface {
	Save(runID, name string, data []byte) error
	Get(runID, name string) ([]byte, error)
	// List returns the report names of a run, sorted.
	List(runID string) ([]string, error)
	Delete(runID, name string) error
}

// Report names written by SaveReports.
const (
	ReportMarket       = "market_report.md"
	ReportSentiment    = "sentiment_report.md"
	ReportNews         = "news_report.md"
	ReportFundamentals = "fundamentals_report.md"
	ReportInvestment   = "investment_plan.md"
	ReportTrader       = "trader_plan.md"
	ReportFinal        = "final_trade_decision.md"
	ReportState        = "state.json"
)

// SaveReports writes every non-empty report section of s plus the full state
// as JSON. It returns the names written.
func SaveReports(store Store, runID string, s core.AgentState) ([]string, error) {
	sections := []struct {
		name string
		text string
	}{
		{ReportMarket, s.MarketReport},
		{ReportSentiment, s.SentimentReport},
		{ReportNews, s.NewsReport},
		{ReportFundamentals, s.FundamentalsReport},
		{ReportInvestment, s.InvestmentPlan},
		{ReportTrader, s.TraderPlan},
		{ReportFinal, s.FinalTradeDecision},
	}

	var written []string
	for _, sec := range sections {
		if sec.text == "" {
			continue
		}
		if err := store.Save(runID, sec.name, []byte(sec.text)); err != nil {
			return written, fmt.Errorf("saving %s: %w", sec.name, err)
		}
		written = append(written, sec.name)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return written, fmt.Errorf("encoding state: %w", err)
	}
	if err := store.Save(runID, ReportState, data); err != nil {
		return written, fmt.Errorf("saving %s: %w", ReportState, err)
	}
	return append(written, ReportState), nil
}
