package reports

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Sheet1"

// WriteProfitAndLossXlsx renders the report as a spreadsheet. Callers set the
// content type and disposition headers before writing.
func WriteProfitAndLossXlsx(w io.Writer, report *ProfitAndLossResponse) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetCellValue(exportSheet, "A1", "Profit & Loss")
	f.SetCellValue(exportSheet, "B1", report.Period.Label)

	f.SetCellValue(exportSheet, "A3", "Category")
	f.SetCellValue(exportSheet, "B3", "Amount")
	f.SetCellValue(exportSheet, "C3", "Percentage")

	row := 4
	f.SetCellValue(exportSheet, "A"+fmt.Sprint(row), "Revenue")
	row++
	for _, line := range report.RevenueByCategory {
		f.SetCellValue(exportSheet, "A"+fmt.Sprint(row), line.CategoryName)
		f.SetCellValue(exportSheet, "B"+fmt.Sprint(row), line.Amount.InexactFloat64())
		f.SetCellValue(exportSheet, "C"+fmt.Sprint(row), line.Percentage.InexactFloat64())
		row++
	}
	f.SetCellValue(exportSheet, "A"+fmt.Sprint(row), "Total Revenue")
	f.SetCellValue(exportSheet, "B"+fmt.Sprint(row), report.TotalRevenue.InexactFloat64())
	row += 2

	f.SetCellValue(exportSheet, "A"+fmt.Sprint(row), "Expenses")
	row++
	for _, line := range report.ExpensesByCategory {
		f.SetCellValue(exportSheet, "A"+fmt.Sprint(row), line.CategoryName)
		f.SetCellValue(exportSheet, "B"+fmt.Sprint(row), line.Amount.InexactFloat64())
		f.SetCellValue(exportSheet, "C"+fmt.Sprint(row), line.Percentage.InexactFloat64())
		row++
	}
	f.SetCellValue(exportSheet, "A"+fmt.Sprint(row), "Total Expenses")
	f.SetCellValue(exportSheet, "B"+fmt.Sprint(row), report.TotalExpenses.InexactFloat64())
	row += 2

	f.SetCellValue(exportSheet, "A"+fmt.Sprint(row), "Net Profit")
	f.SetCellValue(exportSheet, "B"+fmt.Sprint(row), report.NetProfit.InexactFloat64())
	row++
	f.SetCellValue(exportSheet, "A"+fmt.Sprint(row), "Profit Margin %")
	f.SetCellValue(exportSheet, "B"+fmt.Sprint(row), report.ProfitMargin.InexactFloat64())

	return f.Write(w)
}

// WriteTaxSummaryXlsx renders the tax summary as a spreadsheet.
func WriteTaxSummaryXlsx(w io.Writer, report *TaxSummaryResponse) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetCellValue(exportSheet, "A1", "Tax Summary")
	f.SetCellValue(exportSheet, "B1", report.Period.Label)
	f.SetCellValue(exportSheet, "A2", "Tax Rate %")
	f.SetCellValue(exportSheet, "B2", report.TaxRate.InexactFloat64())

	rows := [][2]any{
		{"Total Income", report.TotalIncome.InexactFloat64()},
		{"Total Expenses", report.TotalExpenses.InexactFloat64()},
		{"Total Deductible", report.TotalDeductible.InexactFloat64()},
		{"Net Taxable Income", report.NetTaxableIncome.InexactFloat64()},
		{"Estimated Tax Savings", report.EstimatedTaxSavings.InexactFloat64()},
	}
	row := 4
	for _, r := range rows {
		f.SetCellValue(exportSheet, "A"+fmt.Sprint(row), r[0])
		f.SetCellValue(exportSheet, "B"+fmt.Sprint(row), r[1])
		row++
	}
	row++

	f.SetCellValue(exportSheet, "A"+fmt.Sprint(row), "Deductions by Category")
	row++
	f.SetCellValue(exportSheet, "A"+fmt.Sprint(row), "Category")
	f.SetCellValue(exportSheet, "B"+fmt.Sprint(row), "Amount")
	f.SetCellValue(exportSheet, "C"+fmt.Sprint(row), "Percentage")
	row++
	for _, line := range report.DeductionsByCategory {
		f.SetCellValue(exportSheet, "A"+fmt.Sprint(row), line.CategoryName)
		f.SetCellValue(exportSheet, "B"+fmt.Sprint(row), line.Amount.InexactFloat64())
		f.SetCellValue(exportSheet, "C"+fmt.Sprint(row), line.Percentage.InexactFloat64())
		row++
	}
	row++

	f.SetCellValue(exportSheet, "A"+fmt.Sprint(row), "Quarterly Estimates")
	row++
	f.SetCellValue(exportSheet, "A"+fmt.Sprint(row), "Quarter")
	f.SetCellValue(exportSheet, "B"+fmt.Sprint(row), "Income")
	f.SetCellValue(exportSheet, "C"+fmt.Sprint(row), "Deductible")
	f.SetCellValue(exportSheet, "D"+fmt.Sprint(row), "Estimated Tax")
	row++
	for _, q := range report.Quarters {
		f.SetCellValue(exportSheet, "A"+fmt.Sprint(row), q.Quarter)
		f.SetCellValue(exportSheet, "B"+fmt.Sprint(row), q.Income.InexactFloat64())
		f.SetCellValue(exportSheet, "C"+fmt.Sprint(row), q.Deductible.InexactFloat64())
		f.SetCellValue(exportSheet, "D"+fmt.Sprint(row), q.EstimatedTax.InexactFloat64())
		row++
	}
	row++

	f.SetCellValue(exportSheet, "A"+fmt.Sprint(row), "Required Forms")
	row++
	for _, form := range report.RequiredForms {
		f.SetCellValue(exportSheet, "A"+fmt.Sprint(row), form)
		row++
	}

	return f.Write(w)
}
