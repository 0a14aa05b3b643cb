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

type BalanceSheetResponse struct {
	Period             Period          `json:"period"`
	Cash               decimal.Decimal `json:"cash"`
	AccountsReceivable decimal.Decimal `json:"accounts_receivable"`
	TotalCurrentAssets decimal.Decimal `json:"total_current_assets"`
	FixedAssets        decimal.Decimal `json:"fixed_assets"`
	TotalAssets        decimal.Decimal `json:"total_assets"`

	CurrentLiabilities  decimal.Decimal `json:"current_liabilities"`
	LongTermLiabilities decimal.Decimal `json:"long_term_liabilities"`
	TotalLiabilities    decimal.Decimal `json:"total_liabilities"`

	OwnersCapital    decimal.Decimal `json:"owners_capital"`
	RetainedEarnings decimal.Decimal `json:"retained_earnings"`
	TotalEquity      decimal.Decimal `json:"total_equity"`
}

// BuildBalanceSheet assembles a point-in-time snapshot from bank balances and
// the period's transactions. Receivables are approximated from pending income;
// no fixed-asset or liability ledger exists, so those lines stay zero, and
// equity uses the simplified identity owners capital = total assets with the
// period's net profit as retained earnings.
func BuildBalanceSheet(period Period, transactions []*models.Transaction, cash decimal.Decimal) *BalanceSheetResponse {
	receivable := decimal.Zero
	netProfit := decimal.Zero
	for _, t := range transactions {
		if t.IsInternalTransfer {
			continue
		}
		switch t.Type {
		case models.TransactionTypeIncome:
			netProfit = netProfit.Add(t.Amount)
			if t.Status == models.TransactionStatusPending {
				receivable = receivable.Add(t.Amount)
			}
		case models.TransactionTypeExpense:
			netProfit = netProfit.Sub(t.Amount)
		}
	}

	totalCurrent := cash.Add(receivable)
	totalAssets := totalCurrent

	return &BalanceSheetResponse{
		Period:             period,
		Cash:               cash,
		AccountsReceivable: receivable,
		TotalCurrentAssets: totalCurrent,
		FixedAssets:        decimal.Zero,
		TotalAssets:        totalAssets,

		CurrentLiabilities:  decimal.Zero,
		LongTermLiabilities: decimal.Zero,
		TotalLiabilities:    decimal.Zero,

		OwnersCapital:    totalAssets,
		RetainedEarnings: netProfit,
		TotalEquity:      totalAssets.Add(netProfit),
	}
}

func GetBalanceSheetReport(ctx context.Context, granularity models.ReportGranularity, year int, month int) (*BalanceSheetResponse, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	period, err := ResolvePeriod(granularity, year, month)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("Report:BS:%s:%s:%d:%d", businessId, granularity, year, month)
	if reportCacheEnabled() {
		var cached BalanceSheetResponse
		if found, err := cacheGet(cacheKey, &cached); err == nil && found {
			return &cached, nil
		}
	}

	started := time.Now()
	transactions, err := models.GetTransactionsInPeriod(ctx, businessId, period.Start, period.End)
	if err != nil {
		return nil, err
	}
	cash, err := models.TotalActiveBalance(ctx, businessId)
	if err != nil {
		return nil, err
	}

	response := BuildBalanceSheet(period, transactions, cash)
	logSlowReport(ctx, "balance_sheet", started, map[string]any{"rows": len(transactions)})

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, response, reportCacheTTL())
	}
	return response, nil
}
