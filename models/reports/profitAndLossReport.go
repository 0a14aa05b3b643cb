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

type CategoryAmount struct {
	CategoryName string          `json:"category_name"`
	Amount       decimal.Decimal `json:"amount"`
	Percentage   decimal.Decimal `json:"percentage"`
}

type ProfitAndLossResponse struct {
	Period             Period           `json:"period"`
	TotalRevenue       decimal.Decimal  `json:"total_revenue"`
	TotalExpenses      decimal.Decimal  `json:"total_expenses"`
	GrossProfit        decimal.Decimal  `json:"gross_profit"`
	NetProfit          decimal.Decimal  `json:"net_profit"`
	ProfitMargin       decimal.Decimal  `json:"profit_margin"`
	RevenueByCategory  []CategoryAmount `json:"revenue_by_category"`
	ExpensesByCategory []CategoryAmount `json:"expenses_by_category"`
}

const uncategorizedBucket = "Uncategorized"

func categoryNameOf(t *models.Transaction) string {
	if t.Category == nil || t.Category.Name == "" {
		return uncategorizedBucket
	}
	return t.Category.Name
}

var oneHundred = decimal.NewFromInt(100)

// percentageOf returns part/total*100 rounded to 2 places, 0 when total is 0.
func percentageOf(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Mul(oneHundred).DivRound(total, 2)
}

// applyPercentages fills each bucket's share of total at 2 places. Rounding
// each bucket independently lets the column drift away from 100, so the
// residual is folded into the largest bucket, where it is relatively smallest.
func applyPercentages(buckets []CategoryAmount, total decimal.Decimal) {
	if len(buckets) == 0 || total.IsZero() {
		return
	}
	sum := decimal.Zero
	largest := 0
	for i := range buckets {
		buckets[i].Percentage = percentageOf(buckets[i].Amount, total)
		sum = sum.Add(buckets[i].Percentage)
		if buckets[i].Amount.GreaterThan(buckets[largest].Amount) {
			largest = i
		}
	}
	buckets[largest].Percentage = buckets[largest].Percentage.Add(oneHundred.Sub(sum))
}

// groupByCategory sums amounts per category name, preserving the insertion
// order of first occurrence.
func groupByCategory(transactions []*models.Transaction) []CategoryAmount {
	grouped := make(map[string]int)
	buckets := make([]CategoryAmount, 0)
	for _, t := range transactions {
		name := categoryNameOf(t)
		idx, ok := grouped[name]
		if !ok {
			buckets = append(buckets, CategoryAmount{CategoryName: name, Amount: decimal.Zero})
			idx = len(buckets) - 1
			grouped[name] = idx
		}
		buckets[idx].Amount = buckets[idx].Amount.Add(t.Amount)
	}
	return buckets
}

// BuildProfitAndLoss is the pure profit & loss aggregation: it partitions the
// snapshot into revenue and expense buckets by category and sums them.
// Internal transfers contribute nothing. The input is never mutated.
func BuildProfitAndLoss(period Period, transactions []*models.Transaction) *ProfitAndLossResponse {
	income := make([]*models.Transaction, 0)
	expense := make([]*models.Transaction, 0)
	for _, t := range transactions {
		if t.IsInternalTransfer {
			continue
		}
		switch t.Type {
		case models.TransactionTypeIncome:
			income = append(income, t)
		case models.TransactionTypeExpense:
			expense = append(expense, t)
		}
	}

	revenueBuckets := groupByCategory(income)
	expenseBuckets := groupByCategory(expense)

	totalRevenue := decimal.Zero
	for _, b := range revenueBuckets {
		totalRevenue = totalRevenue.Add(b.Amount)
	}
	totalExpenses := decimal.Zero
	for _, b := range expenseBuckets {
		totalExpenses = totalExpenses.Add(b.Amount)
	}
	applyPercentages(revenueBuckets, totalRevenue)
	applyPercentages(expenseBuckets, totalExpenses)

	netProfit := totalRevenue.Sub(totalExpenses)

	// No cost-of-goods ledger exists, so gross profit equals total revenue.
	return &ProfitAndLossResponse{
		Period:             period,
		TotalRevenue:       totalRevenue,
		TotalExpenses:      totalExpenses,
		GrossProfit:        totalRevenue,
		NetProfit:          netProfit,
		ProfitMargin:       percentageOf(netProfit, totalRevenue),
		RevenueByCategory:  revenueBuckets,
		ExpensesByCategory: expenseBuckets,
	}
}

func GetProfitAndLossReport(ctx context.Context, granularity models.ReportGranularity, year int, month int) (*ProfitAndLossResponse, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	period, err := ResolvePeriod(granularity, year, month)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("Report:PL:%s:%s:%d:%d", businessId, granularity, year, month)
	if reportCacheEnabled() {
		var cached ProfitAndLossResponse
		if found, err := cacheGet(cacheKey, &cached); err == nil && found {
			return &cached, nil
		}
	}

	started := time.Now()
	transactions, err := models.GetTransactionsInPeriod(ctx, businessId, period.Start, period.End)
	if err != nil {
		return nil, err
	}

	response := BuildProfitAndLoss(period, transactions)
	logSlowReport(ctx, "profit_and_loss", started, map[string]any{"rows": len(transactions)})

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, response, reportCacheTTL())
	}
	return response, nil
}
