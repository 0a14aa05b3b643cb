package reports_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/ledgerline/bookkeeper_backend/models"
	"github.com/ledgerline/bookkeeper_backend/models/reports"
	"github.com/shopspring/decimal"
)

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func txn(txnType models.TransactionType, categoryName string, activity models.CategoryActivity, amount string, date time.Time) *models.Transaction {
	var category *models.Category
	if categoryName != "" {
		category = &models.Category{Name: categoryName, Activity: activity}
	}
	return &models.Transaction{
		Description:     categoryName,
		Amount:          dec(amount),
		Type:            txnType,
		TransactionDate: date,
		Category:        category,
		Status:          models.TransactionStatusCompleted,
	}
}

func mustPeriod(t *testing.T, granularity models.ReportGranularity, year, month int) reports.Period {
	t.Helper()
	period, err := reports.ResolvePeriod(granularity, year, month)
	if err != nil {
		t.Fatalf("ResolvePeriod(%s, %d, %d): %v", granularity, year, month, err)
	}
	return period
}

func TestResolvePeriodMonth(t *testing.T) {
	p := mustPeriod(t, models.ReportGranularityMonth, 2025, 2)
	if p.Start.Year() != 2025 || p.Start.Month() != time.February || p.Start.Day() != 1 {
		t.Errorf("unexpected start %v", p.Start)
	}
	if p.End.Month() != time.February || p.End.Day() != 28 {
		t.Errorf("unexpected end %v", p.End)
	}
	if p.Label != "February 2025" {
		t.Errorf("unexpected label %q", p.Label)
	}
}

func TestResolvePeriodQuarter(t *testing.T) {
	p := mustPeriod(t, models.ReportGranularityQuarter, 2025, 4)
	if p.Start.Month() != time.April || p.Start.Day() != 1 {
		t.Errorf("unexpected start %v", p.Start)
	}
	if p.End.Month() != time.June || p.End.Day() != 30 {
		t.Errorf("unexpected end %v", p.End)
	}
	if p.Label != "Q2 2025" {
		t.Errorf("unexpected label %q", p.Label)
	}
}

func TestResolvePeriodYear(t *testing.T) {
	p := mustPeriod(t, models.ReportGranularityYear, 2024, 0)
	if p.Start.Month() != time.January || p.Start.Day() != 1 {
		t.Errorf("unexpected start %v", p.Start)
	}
	if p.End.Month() != time.December || p.End.Day() != 31 {
		t.Errorf("unexpected end %v", p.End)
	}
	if p.Label != "2024" {
		t.Errorf("unexpected label %q", p.Label)
	}
}

func TestResolvePeriodRejectsBadInput(t *testing.T) {
	if _, err := reports.ResolvePeriod("week", 2025, 1); err == nil {
		t.Error("expected error for unknown granularity")
	}
	if _, err := reports.ResolvePeriod(models.ReportGranularityMonth, 2025, 13); err == nil {
		t.Error("expected error for month 13")
	}
	if _, err := reports.ResolvePeriod(models.ReportGranularityQuarter, 2025, 0); err == nil {
		t.Error("expected error for month 0")
	}
}

func TestQuarterBucketing(t *testing.T) {
	expected := map[time.Month]int{
		time.January: 1, time.February: 1, time.March: 1,
		time.April: 2, time.May: 2, time.June: 2,
		time.July: 3, time.August: 3, time.September: 3,
		time.October: 4, time.November: 4, time.December: 4,
	}
	for month, quarter := range expected {
		day := time.Date(2025, month, 15, 0, 0, 0, 0, time.UTC)
		if got := reports.QuarterOf(day); got != quarter {
			t.Errorf("QuarterOf(%s) = %d, want %d", month, got, quarter)
		}
	}
	if got := reports.QuarterKey(time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC)); got != "Q2 2025" {
		t.Errorf("QuarterKey = %q, want Q2 2025", got)
	}
}

func exampleTransactions() []*models.Transaction {
	feb := time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC)
	software := txn(models.TransactionTypeExpense, "Software", models.CategoryActivityOperating, "300", feb)
	software.TaxDeductible = true
	return []*models.Transaction{
		txn(models.TransactionTypeIncome, "Sales", models.CategoryActivityOperating, "5000", feb),
		txn(models.TransactionTypeExpense, "Rent", models.CategoryActivityOperating, "2000", feb),
		software,
	}
}

func TestBuildProfitAndLossExample(t *testing.T) {
	period := mustPeriod(t, models.ReportGranularityMonth, 2025, 2)
	report := reports.BuildProfitAndLoss(period, exampleTransactions())

	if !report.TotalRevenue.Equal(dec("5000")) {
		t.Errorf("TotalRevenue = %s, want 5000", report.TotalRevenue)
	}
	if !report.TotalExpenses.Equal(dec("2300")) {
		t.Errorf("TotalExpenses = %s, want 2300", report.TotalExpenses)
	}
	if !report.NetProfit.Equal(dec("2700")) {
		t.Errorf("NetProfit = %s, want 2700", report.NetProfit)
	}
	if !report.ProfitMargin.Equal(dec("54")) {
		t.Errorf("ProfitMargin = %s, want 54", report.ProfitMargin)
	}
	if len(report.RevenueByCategory) != 1 || report.RevenueByCategory[0].CategoryName != "Sales" {
		t.Errorf("unexpected revenue breakdown %+v", report.RevenueByCategory)
	}
	if len(report.ExpensesByCategory) != 2 {
		t.Fatalf("expected 2 expense buckets, got %d", len(report.ExpensesByCategory))
	}
}

func TestBuildProfitAndLossIdempotent(t *testing.T) {
	period := mustPeriod(t, models.ReportGranularityMonth, 2025, 2)
	transactions := exampleTransactions()

	first, err := json.Marshal(reports.BuildProfitAndLoss(period, transactions))
	if err != nil {
		t.Fatal(err)
	}
	second, err := json.Marshal(reports.BuildProfitAndLoss(period, transactions))
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Errorf("outputs differ:\n%s\n%s", first, second)
	}
}

func TestBuildProfitAndLossConservation(t *testing.T) {
	period := mustPeriod(t, models.ReportGranularityYear, 2025, 0)
	day := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	transactions := []*models.Transaction{
		txn(models.TransactionTypeIncome, "Sales", models.CategoryActivityOperating, "1234.56", day),
		txn(models.TransactionTypeIncome, "", models.CategoryActivityOperating, "0.07", day),
		txn(models.TransactionTypeExpense, "Rent", models.CategoryActivityOperating, "999.99", day),
		txn(models.TransactionTypeExpense, "Meals", models.CategoryActivityOperating, "12.34", day),
	}

	report := reports.BuildProfitAndLoss(period, transactions)
	if !report.TotalRevenue.Sub(report.TotalExpenses).Equal(report.NetProfit) {
		t.Errorf("revenue %s - expenses %s != net profit %s",
			report.TotalRevenue, report.TotalExpenses, report.NetProfit)
	}
}

func TestInternalTransfersExcluded(t *testing.T) {
	period := mustPeriod(t, models.ReportGranularityMonth, 2025, 2)
	feb := time.Date(2025, time.February, 5, 0, 0, 0, 0, time.UTC)
	transfer := txn(models.TransactionTypeIncome, "Sales", models.CategoryActivityOperating, "99999", feb)
	transfer.IsInternalTransfer = true
	transactions := append(exampleTransactions(), transfer)

	report := reports.BuildProfitAndLoss(period, transactions)
	if !report.TotalRevenue.Equal(dec("5000")) {
		t.Errorf("transfer leaked into revenue: %s", report.TotalRevenue)
	}
	if !report.NetProfit.Equal(dec("2700")) {
		t.Errorf("transfer leaked into net profit: %s", report.NetProfit)
	}

	tax := reports.BuildTaxSummary(period, transactions, dec("25"))
	if !tax.TotalIncome.Equal(dec("5000")) {
		t.Errorf("transfer leaked into tax income: %s", tax.TotalIncome)
	}
}

func TestBuildProfitAndLossEmptyInput(t *testing.T) {
	period := mustPeriod(t, models.ReportGranularityMonth, 2025, 1)
	report := reports.BuildProfitAndLoss(period, nil)

	if !report.TotalRevenue.IsZero() || !report.TotalExpenses.IsZero() || !report.NetProfit.IsZero() {
		t.Errorf("expected zero totals, got %+v", report)
	}
	if !report.ProfitMargin.IsZero() {
		t.Errorf("ProfitMargin = %s, want 0 when revenue is 0", report.ProfitMargin)
	}
	if len(report.RevenueByCategory) != 0 || len(report.ExpensesByCategory) != 0 {
		t.Errorf("expected empty breakdowns, got %+v", report)
	}
}

func TestBuildBalanceSheet(t *testing.T) {
	period := mustPeriod(t, models.ReportGranularityMonth, 2025, 2)
	feb := time.Date(2025, time.February, 12, 0, 0, 0, 0, time.UTC)
	pending := txn(models.TransactionTypeIncome, "Consulting", models.CategoryActivityOperating, "400", feb)
	pending.Status = models.TransactionStatusPending
	transactions := append(exampleTransactions(), pending)

	report := reports.BuildBalanceSheet(period, transactions, dec("1000"))
	if !report.Cash.Equal(dec("1000")) {
		t.Errorf("Cash = %s, want 1000", report.Cash)
	}
	if !report.AccountsReceivable.Equal(dec("400")) {
		t.Errorf("AccountsReceivable = %s, want 400", report.AccountsReceivable)
	}
	if !report.TotalCurrentAssets.Equal(dec("1400")) {
		t.Errorf("TotalCurrentAssets = %s, want 1400", report.TotalCurrentAssets)
	}
	if !report.TotalAssets.Equal(report.TotalCurrentAssets) {
		t.Errorf("TotalAssets = %s, want %s", report.TotalAssets, report.TotalCurrentAssets)
	}
	if !report.TotalLiabilities.IsZero() {
		t.Errorf("TotalLiabilities = %s, want 0", report.TotalLiabilities)
	}
	// 5400 income - 2300 expenses including the pending receivable
	if !report.RetainedEarnings.Equal(dec("3100")) {
		t.Errorf("RetainedEarnings = %s, want 3100", report.RetainedEarnings)
	}
	if !report.TotalEquity.Equal(report.OwnersCapital.Add(report.RetainedEarnings)) {
		t.Errorf("TotalEquity = %s, want capital %s + retained %s",
			report.TotalEquity, report.OwnersCapital, report.RetainedEarnings)
	}
}

func TestBuildBalanceSheetEmptyInput(t *testing.T) {
	period := mustPeriod(t, models.ReportGranularityMonth, 2025, 1)
	report := reports.BuildBalanceSheet(period, nil, decimal.Zero)
	if !report.TotalAssets.IsZero() || !report.TotalLiabilities.IsZero() || !report.TotalEquity.IsZero() {
		t.Errorf("expected all-zero sheet, got %+v", report)
	}
}

func cashFlowFixture() []*models.Transaction {
	feb := time.Date(2025, time.February, 14, 0, 0, 0, 0, time.UTC)
	pending := txn(models.TransactionTypeIncome, "Consulting", models.CategoryActivityOperating, "1000", feb)
	pending.Status = models.TransactionStatusPending
	return []*models.Transaction{
		txn(models.TransactionTypeIncome, "Sales", models.CategoryActivityOperating, "5000", feb),
		txn(models.TransactionTypeExpense, "Rent", models.CategoryActivityOperating, "2000", feb),
		txn(models.TransactionTypeExpense, "Equipment", models.CategoryActivityInvesting, "3000", feb),
		txn(models.TransactionTypeIncome, "Business Loan", models.CategoryActivityFinancing, "10000", feb),
		pending,
	}
}

func TestBuildCashFlowClosure(t *testing.T) {
	period := mustPeriod(t, models.ReportGranularityMonth, 2025, 2)
	report := reports.BuildCashFlow(period, cashFlowFixture(), dec("20000"), nil)

	// net profit 11000, AR delta -1000, investing -3000, financing +10000
	if !report.Operating.Net.Equal(dec("10000")) {
		t.Errorf("Operating.Net = %s, want 10000", report.Operating.Net)
	}
	if !report.Investing.Net.Equal(dec("-3000")) {
		t.Errorf("Investing.Net = %s, want -3000", report.Investing.Net)
	}
	if !report.Financing.Net.Equal(dec("10000")) {
		t.Errorf("Financing.Net = %s, want 10000", report.Financing.Net)
	}
	if !report.NetChange.Equal(dec("17000")) {
		t.Errorf("NetChange = %s, want 17000", report.NetChange)
	}
	if !report.BeginningCash.Add(report.NetChange).Equal(report.EndingCash) {
		t.Errorf("closure violated: %s + %s != %s",
			report.BeginningCash, report.NetChange, report.EndingCash)
	}
	if report.UnreconciledDifference != nil {
		t.Errorf("expected nil difference without a snapshot, got %s", report.UnreconciledDifference)
	}
}

func TestBuildCashFlowSectionLabels(t *testing.T) {
	period := mustPeriod(t, models.ReportGranularityMonth, 2025, 2)
	report := reports.BuildCashFlow(period, cashFlowFixture(), dec("20000"), nil)

	if len(report.Investing.Lines) != 1 || report.Investing.Lines[0].Label != "Purchase of Equipment" {
		t.Errorf("unexpected investing lines %+v", report.Investing.Lines)
	}
	if len(report.Financing.Lines) != 1 || report.Financing.Lines[0].Label != "Proceeds from Business Loan" {
		t.Errorf("unexpected financing lines %+v", report.Financing.Lines)
	}
}

func TestBuildCashFlowPlaceholderSections(t *testing.T) {
	period := mustPeriod(t, models.ReportGranularityMonth, 2025, 2)
	report := reports.BuildCashFlow(period, exampleTransactions(), dec("500"), nil)

	if len(report.Investing.Lines) != 1 || report.Investing.Lines[0].Label != "No investing activities" {
		t.Errorf("unexpected investing placeholder %+v", report.Investing.Lines)
	}
	if !report.Investing.Lines[0].Amount.IsZero() {
		t.Errorf("placeholder amount = %s, want 0", report.Investing.Lines[0].Amount)
	}
	if len(report.Financing.Lines) != 1 || report.Financing.Lines[0].Label != "No financing activities" {
		t.Errorf("unexpected financing placeholder %+v", report.Financing.Lines)
	}
}

func TestBuildCashFlowUnreconciledDifference(t *testing.T) {
	period := mustPeriod(t, models.ReportGranularityMonth, 2025, 2)
	snapshot := dec("3500")
	report := reports.BuildCashFlow(period, cashFlowFixture(), dec("20000"), &snapshot)

	if !report.BeginningCash.Equal(snapshot) {
		t.Errorf("BeginningCash = %s, want snapshot 3500", report.BeginningCash)
	}
	if report.UnreconciledDifference == nil {
		t.Fatal("expected an unreconciled difference")
	}
	// back-solved beginning cash is 3000, snapshot says 3500
	if !report.UnreconciledDifference.Equal(dec("500")) {
		t.Errorf("UnreconciledDifference = %s, want 500", report.UnreconciledDifference)
	}
}

func TestBuildTaxSummaryQuarterlyEstimate(t *testing.T) {
	period := mustPeriod(t, models.ReportGranularityYear, 2025, 0)
	feb := time.Date(2025, time.February, 20, 0, 0, 0, 0, time.UTC)
	deductible := txn(models.TransactionTypeExpense, "Software", models.CategoryActivityOperating, "2000", feb)
	deductible.TaxDeductible = true
	transactions := []*models.Transaction{
		txn(models.TransactionTypeIncome, "Sales", models.CategoryActivityOperating, "10000", feb),
		deductible,
	}

	report := reports.BuildTaxSummary(period, transactions, dec("25"))
	if !report.NetTaxableIncome.Equal(dec("8000")) {
		t.Errorf("NetTaxableIncome = %s, want 8000", report.NetTaxableIncome)
	}
	if !report.EstimatedTaxSavings.Equal(dec("500")) {
		t.Errorf("EstimatedTaxSavings = %s, want 500", report.EstimatedTaxSavings)
	}
	if len(report.Quarters) != 1 {
		t.Fatalf("expected 1 quarter, got %d", len(report.Quarters))
	}
	q := report.Quarters[0]
	if q.Quarter != "Q1 2025" {
		t.Errorf("Quarter = %q, want Q1 2025", q.Quarter)
	}
	if !q.EstimatedTax.Equal(dec("500")) {
		t.Errorf("EstimatedTax = %s, want 500", q.EstimatedTax)
	}
}

func TestBuildTaxSummaryDeductionBreakdown(t *testing.T) {
	period := mustPeriod(t, models.ReportGranularityYear, 2025, 0)
	mar := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	software := txn(models.TransactionTypeExpense, "Software", models.CategoryActivityOperating, "300", mar)
	software.TaxDeductible = true
	travel := txn(models.TransactionTypeExpense, "Travel", models.CategoryActivityOperating, "700", mar)
	travel.TaxDeductible = true
	transactions := []*models.Transaction{
		software, travel,
		txn(models.TransactionTypeExpense, "Rent", models.CategoryActivityOperating, "2000", mar),
	}

	report := reports.BuildTaxSummary(period, transactions, dec("25"))
	if !report.TotalDeductible.Equal(dec("1000")) {
		t.Errorf("TotalDeductible = %s, want 1000", report.TotalDeductible)
	}
	if len(report.DeductionsByCategory) != 2 {
		t.Fatalf("expected 2 deduction buckets, got %d", len(report.DeductionsByCategory))
	}
	if report.DeductionsByCategory[0].CategoryName != "Travel" {
		t.Errorf("breakdown not sorted descending: %+v", report.DeductionsByCategory)
	}

	sum := decimal.Zero
	for _, b := range report.DeductionsByCategory {
		sum = sum.Add(b.Percentage)
	}
	if sum.Sub(dec("100")).Abs().GreaterThan(dec("0.1")) {
		t.Errorf("percentages sum to %s, want 100 within 0.1", sum)
	}

	// deductible 1000 < 3000 * 0.3 is false, so no warning
	if report.LowDeductionWarning {
		t.Error("unexpected low-deduction warning")
	}
}

func TestBuildTaxSummaryBreakdownPercentagesSumWithManyCategories(t *testing.T) {
	period := mustPeriod(t, models.ReportGranularityYear, 2025, 0)
	mar := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

	// 300 equal buckets each round to 0.33, which would drift the column a
	// full point away from 100 without residual correction.
	transactions := make([]*models.Transaction, 0, 300)
	for i := 0; i < 300; i++ {
		d := txn(models.TransactionTypeExpense, fmt.Sprintf("Category %03d", i),
			models.CategoryActivityOperating, "10", mar)
		d.TaxDeductible = true
		transactions = append(transactions, d)
	}

	report := reports.BuildTaxSummary(period, transactions, dec("25"))
	if len(report.DeductionsByCategory) != 300 {
		t.Fatalf("expected 300 deduction buckets, got %d", len(report.DeductionsByCategory))
	}

	sum := decimal.Zero
	for _, b := range report.DeductionsByCategory {
		sum = sum.Add(b.Percentage)
	}
	if sum.Sub(dec("100")).Abs().GreaterThan(dec("0.1")) {
		t.Errorf("percentages sum to %s, want 100 within 0.1", sum)
	}
}

func TestBuildTaxSummaryLowDeductionWarning(t *testing.T) {
	period := mustPeriod(t, models.ReportGranularityYear, 2025, 0)
	mar := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	small := txn(models.TransactionTypeExpense, "Software", models.CategoryActivityOperating, "100", mar)
	small.TaxDeductible = true
	transactions := []*models.Transaction{
		small,
		txn(models.TransactionTypeExpense, "Rent", models.CategoryActivityOperating, "2000", mar),
	}

	report := reports.BuildTaxSummary(period, transactions, dec("25"))
	if !report.LowDeductionWarning {
		t.Error("expected low-deduction warning when deductible < 30% of expenses")
	}
}

func TestBuildTaxSummaryRequiredForms(t *testing.T) {
	period := mustPeriod(t, models.ReportGranularityYear, 2025, 0)

	empty := reports.BuildTaxSummary(period, nil, dec("25"))
	if len(empty.RequiredForms) != 1 || empty.RequiredForms[0] != "Form 1040" {
		t.Errorf("empty input forms = %v, want just the base form", empty.RequiredForms)
	}
	if !empty.TotalIncome.IsZero() || !empty.TotalDeductible.IsZero() {
		t.Errorf("expected zero totals on empty input, got %+v", empty)
	}
	if len(empty.DeductionsByCategory) != 0 || len(empty.Quarters) != 0 {
		t.Errorf("expected empty breakdowns on empty input, got %+v", empty)
	}

	feb := time.Date(2025, time.February, 20, 0, 0, 0, 0, time.UTC)
	deductible := txn(models.TransactionTypeExpense, "Software", models.CategoryActivityOperating, "2000", feb)
	deductible.TaxDeductible = true
	full := reports.BuildTaxSummary(period, []*models.Transaction{
		txn(models.TransactionTypeIncome, "Sales", models.CategoryActivityOperating, "10000", feb),
		deductible,
	}, dec("25"))

	want := []string{"Form 1040", "Schedule C (Form 1040)", "Schedule A (Form 1040)", "Form 1040-ES"}
	if len(full.RequiredForms) != len(want) {
		t.Fatalf("forms = %v, want %v", full.RequiredForms, want)
	}
	for i := range want {
		if full.RequiredForms[i] != want[i] {
			t.Errorf("forms[%d] = %q, want %q", i, full.RequiredForms[i], want[i])
		}
	}
}

func TestBuildTaxSummaryMultipleQuartersSorted(t *testing.T) {
	period := mustPeriod(t, models.ReportGranularityYear, 2025, 0)
	transactions := []*models.Transaction{
		txn(models.TransactionTypeIncome, "Sales", models.CategoryActivityOperating, "4000",
			time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)),
		txn(models.TransactionTypeIncome, "Sales", models.CategoryActivityOperating, "1000",
			time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)),
		txn(models.TransactionTypeIncome, "Sales", models.CategoryActivityOperating, "2000",
			time.Date(2025, time.May, 15, 0, 0, 0, 0, time.UTC)),
	}

	report := reports.BuildTaxSummary(period, transactions, dec("20"))
	if len(report.Quarters) != 3 {
		t.Fatalf("expected 3 quarters, got %d", len(report.Quarters))
	}
	wantOrder := []string{"Q1 2025", "Q2 2025", "Q4 2025"}
	for i, q := range report.Quarters {
		if q.Quarter != wantOrder[i] {
			t.Errorf("quarters[%d] = %q, want %q", i, q.Quarter, wantOrder[i])
		}
	}
	// Q2: 2000 * 0.20 / 4
	if !report.Quarters[1].EstimatedTax.Equal(dec("100")) {
		t.Errorf("Q2 tax = %s, want 100", report.Quarters[1].EstimatedTax)
	}
}
