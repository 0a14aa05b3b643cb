package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerline/bookkeeper_backend/models"
	"github.com/ledgerline/bookkeeper_backend/utils"
	"github.com/shopspring/decimal"
)

type CashFlowLine struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

type CashFlowSection struct {
	GroupName string          `json:"group_name"`
	Lines     []CashFlowLine  `json:"lines"`
	Net       decimal.Decimal `json:"net"`
}

type CashFlowResponse struct {
	Period    Period          `json:"period"`
	Operating CashFlowSection `json:"operating"`
	Investing CashFlowSection `json:"investing"`
	Financing CashFlowSection `json:"financing"`

	NetChange     decimal.Decimal `json:"net_change"`
	BeginningCash decimal.Decimal `json:"beginning_cash"`
	EndingCash    decimal.Decimal `json:"ending_cash"`

	// UnreconciledDifference is non-nil when an independent beginning-cash
	// snapshot existed: snapshot - (endingCash - netChange). Zero means the
	// indirect-method reconstruction matches the observed balances.
	UnreconciledDifference *decimal.Decimal `json:"unreconciled_difference,omitempty"`
}

func activityOf(t *models.Transaction) models.CategoryActivity {
	if t.Category == nil {
		return models.CategoryActivityOperating
	}
	return t.Category.Activity
}

func signedAmount(t *models.Transaction) decimal.Decimal {
	if t.Type == models.TransactionTypeIncome {
		return t.Amount
	}
	return t.Amount.Neg()
}

// activitySection groups an activity's transactions by category and labels
// each net line by its direction.
func activitySection(groupName string, transactions []*models.Transaction, inLabel, outLabel, emptyLabel string) CashFlowSection {
	grouped := make(map[string]int)
	nets := make([]CashFlowLine, 0)
	for _, t := range transactions {
		name := categoryNameOf(t)
		idx, ok := grouped[name]
		if !ok {
			nets = append(nets, CashFlowLine{Label: name, Amount: decimal.Zero})
			idx = len(nets) - 1
			grouped[name] = idx
		}
		nets[idx].Amount = nets[idx].Amount.Add(signedAmount(t))
	}

	section := CashFlowSection{GroupName: groupName, Lines: make([]CashFlowLine, 0, len(nets)), Net: decimal.Zero}
	for _, line := range nets {
		label := fmt.Sprintf("%s %s", inLabel, line.Label)
		if line.Amount.IsNegative() {
			label = fmt.Sprintf("%s %s", outLabel, line.Label)
		}
		section.Lines = append(section.Lines, CashFlowLine{Label: label, Amount: line.Amount})
		section.Net = section.Net.Add(line.Amount)
	}
	if len(section.Lines) == 0 {
		section.Lines = append(section.Lines, CashFlowLine{Label: emptyLabel, Amount: decimal.Zero})
	}
	return section
}

// BuildCashFlow decomposes the period's change in cash into operating,
// investing and financing activity (indirect method). endingCash is the
// summed live bank balance; beginningCash is the independent period-start
// snapshot when one exists, otherwise nil and beginning cash is back-solved
// as endingCash - netChange (which makes closure exact by construction).
func BuildCashFlow(period Period, transactions []*models.Transaction, endingCash decimal.Decimal, beginningCash *decimal.Decimal) *CashFlowResponse {
	netProfit := decimal.Zero
	receivable := decimal.Zero
	investing := make([]*models.Transaction, 0)
	financing := make([]*models.Transaction, 0)

	for _, t := range transactions {
		if t.IsInternalTransfer {
			continue
		}
		netProfit = netProfit.Add(signedAmount(t))
		if t.Type == models.TransactionTypeIncome && t.Status == models.TransactionStatusPending {
			receivable = receivable.Add(t.Amount)
		}
		switch activityOf(t) {
		case models.CategoryActivityInvesting:
			investing = append(investing, t)
		case models.CategoryActivityFinancing:
			financing = append(financing, t)
		}
	}

	// An increase in receivables is income recognized without cash received.
	receivableDelta := receivable.Neg()
	operating := CashFlowSection{
		GroupName: "Operating Activities",
		Lines: []CashFlowLine{
			{Label: "Net Profit", Amount: netProfit},
			{Label: "Depreciation & Amortization", Amount: decimal.Zero},
			{Label: "Change in Accounts Receivable", Amount: receivableDelta},
			{Label: "Change in Accounts Payable", Amount: decimal.Zero},
			{Label: "Change in Inventory", Amount: decimal.Zero},
		},
		Net: netProfit.Add(receivableDelta),
	}

	investingSection := activitySection("Investing Activities", investing,
		"Sale of", "Purchase of", "No investing activities")
	financingSection := activitySection("Financing Activities", financing,
		"Proceeds from", "Payment of", "No financing activities")

	netChange := operating.Net.Add(investingSection.Net).Add(financingSection.Net)
	backSolved := endingCash.Sub(netChange)

	response := &CashFlowResponse{
		Period:        period,
		Operating:     operating,
		Investing:     investingSection,
		Financing:     financingSection,
		NetChange:     netChange,
		BeginningCash: backSolved,
		EndingCash:    endingCash,
	}
	if beginningCash != nil {
		diff := beginningCash.Sub(backSolved)
		response.BeginningCash = *beginningCash
		response.UnreconciledDifference = &diff
	}
	return response
}

func GetCashFlowReport(ctx context.Context, granularity models.ReportGranularity, year int, month int) (*CashFlowResponse, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	period, err := ResolvePeriod(granularity, year, month)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("Report:CF:%s:%s:%d:%d", businessId, granularity, year, month)
	if reportCacheEnabled() {
		var cached CashFlowResponse
		if found, err := cacheGet(cacheKey, &cached); err == nil && found {
			return &cached, nil
		}
	}

	started := time.Now()
	transactions, err := models.GetTransactionsInPeriod(ctx, businessId, period.Start, period.End)
	if err != nil {
		return nil, err
	}
	endingCash, err := models.TotalActiveBalance(ctx, businessId)
	if err != nil {
		return nil, err
	}

	// Prefer a real period-start snapshot over algebra when bank sync has
	// recorded one (the day before the period opens).
	var beginningCash *decimal.Decimal
	snapshot, found, err := models.ClosingBalanceOn(ctx, businessId, period.Start.AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}
	if found {
		beginningCash = &snapshot
	}

	response := BuildCashFlow(period, transactions, endingCash, beginningCash)
	logSlowReport(ctx, "cash_flow", started, map[string]any{"rows": len(transactions)})

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, response, reportCacheTTL())
	}
	return response, nil
}
