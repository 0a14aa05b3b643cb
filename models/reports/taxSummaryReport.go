package reports

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ledgerline/bookkeeper_backend/models"
	"github.com/ledgerline/bookkeeper_backend/utils"
	"github.com/shopspring/decimal"
)

type QuarterEstimate struct {
	Quarter      string          `json:"quarter"`
	Income       decimal.Decimal `json:"income"`
	Deductible   decimal.Decimal `json:"deductible"`
	EstimatedTax decimal.Decimal `json:"estimated_tax"`

	year int
	q    int
}

type TaxSummaryResponse struct {
	Period  Period          `json:"period"`
	TaxRate decimal.Decimal `json:"tax_rate"`

	TotalIncome          decimal.Decimal   `json:"total_income"`
	TotalExpenses        decimal.Decimal   `json:"total_expenses"`
	TotalDeductible      decimal.Decimal   `json:"total_deductible"`
	NetTaxableIncome     decimal.Decimal   `json:"net_taxable_income"`
	EstimatedTaxSavings  decimal.Decimal   `json:"estimated_tax_savings"`
	DeductionsByCategory []CategoryAmount  `json:"deductions_by_category"`
	Quarters             []QuarterEstimate `json:"quarters"`
	RequiredForms        []string          `json:"required_forms"`

	// LowDeductionWarning flags totals where deductible expenses fall below
	// 30% of total expenses; display hint only.
	LowDeductionWarning bool `json:"low_deduction_warning"`
}

var four = decimal.NewFromInt(4)
var lowDeductionThreshold = decimal.NewFromFloat(0.3)

// BuildTaxSummary computes deduction totals, the categorized deduction
// breakdown, per-quarter estimated tax and the likely-required forms list.
// rate is a percentage (e.g. 25 for 25%). Internal transfers are ignored.
func BuildTaxSummary(period Period, transactions []*models.Transaction, rate decimal.Decimal) *TaxSummaryResponse {
	rateFraction := rate.Div(oneHundred)

	totalIncome := decimal.Zero
	totalExpenses := decimal.Zero
	totalDeductible := decimal.Zero
	deductibles := make([]*models.Transaction, 0)
	quarterIdx := make(map[string]int)
	quarters := make([]QuarterEstimate, 0)

	for _, t := range transactions {
		if t.IsInternalTransfer {
			continue
		}

		key := QuarterKey(t.TransactionDate)
		qi, ok := quarterIdx[key]
		if !ok {
			quarters = append(quarters, QuarterEstimate{
				Quarter:    key,
				Income:     decimal.Zero,
				Deductible: decimal.Zero,
				year:       t.TransactionDate.Year(),
				q:          QuarterOf(t.TransactionDate),
			})
			qi = len(quarters) - 1
			quarterIdx[key] = qi
		}

		switch t.Type {
		case models.TransactionTypeIncome:
			totalIncome = totalIncome.Add(t.Amount)
			quarters[qi].Income = quarters[qi].Income.Add(t.Amount)
		case models.TransactionTypeExpense:
			totalExpenses = totalExpenses.Add(t.Amount)
			if t.TaxDeductible {
				totalDeductible = totalDeductible.Add(t.Amount)
				deductibles = append(deductibles, t)
				quarters[qi].Deductible = quarters[qi].Deductible.Add(t.Amount)
			}
		}
	}

	breakdown := groupByCategory(deductibles)
	applyPercentages(breakdown, totalDeductible)
	sort.SliceStable(breakdown, func(i, j int) bool {
		return breakdown[i].Amount.GreaterThan(breakdown[j].Amount)
	})

	anyQuarterTaxed := false
	for i := range quarters {
		quarters[i].EstimatedTax = quarters[i].Income.Sub(quarters[i].Deductible).
			Mul(rateFraction).DivRound(four, 2)
		if quarters[i].EstimatedTax.IsPositive() {
			anyQuarterTaxed = true
		}
	}
	sort.SliceStable(quarters, func(i, j int) bool {
		if quarters[i].year != quarters[j].year {
			return quarters[i].year < quarters[j].year
		}
		return quarters[i].q < quarters[j].q
	})

	forms := []string{"Form 1040"}
	if totalIncome.IsPositive() {
		forms = append(forms, "Schedule C (Form 1040)")
	}
	if totalDeductible.IsPositive() {
		forms = append(forms, "Schedule A (Form 1040)")
	}
	if anyQuarterTaxed {
		forms = append(forms, "Form 1040-ES")
	}

	return &TaxSummaryResponse{
		Period:               period,
		TaxRate:              rate,
		TotalIncome:          totalIncome,
		TotalExpenses:        totalExpenses,
		TotalDeductible:      totalDeductible,
		NetTaxableIncome:     totalIncome.Sub(totalDeductible),
		EstimatedTaxSavings:  totalDeductible.Mul(rateFraction).Round(2),
		DeductionsByCategory: breakdown,
		Quarters:             quarters,
		RequiredForms:        forms,
		LowDeductionWarning:  totalDeductible.LessThan(totalExpenses.Mul(lowDeductionThreshold)),
	}
}

// GetTaxSummaryReport runs the tax calculator for the period. rateOverride,
// when non-nil, replaces the business's stored flat rate.
func GetTaxSummaryReport(ctx context.Context, granularity models.ReportGranularity, year int, month int, rateOverride *decimal.Decimal) (*TaxSummaryResponse, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	period, err := ResolvePeriod(granularity, year, month)
	if err != nil {
		return nil, err
	}

	rate := decimal.NewFromInt(25)
	business, err := models.GetBusiness(ctx)
	if err == nil && !business.TaxRate.IsZero() {
		rate = business.TaxRate
	}
	if rateOverride != nil {
		if rateOverride.IsNegative() || rateOverride.GreaterThan(oneHundred) {
			return nil, errors.New("tax rate must be between 0 and 100")
		}
		rate = *rateOverride
	}

	cacheKey := fmt.Sprintf("Report:TAX:%s:%s:%d:%d:%s", businessId, granularity, year, month, rate.String())
	if reportCacheEnabled() {
		var cached TaxSummaryResponse
		if found, err := cacheGet(cacheKey, &cached); err == nil && found {
			return &cached, nil
		}
	}

	started := time.Now()
	transactions, err := models.GetTransactionsInPeriod(ctx, businessId, period.Start, period.End)
	if err != nil {
		return nil, err
	}

	response := BuildTaxSummary(period, transactions, rate)
	logSlowReport(ctx, "tax_summary", started, map[string]any{"rows": len(transactions)})

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, response, reportCacheTTL())
	}
	return response, nil
}
