package workflow_test

import (
	"strings"
	"testing"
	"time"

	"github.com/ledgerline/bookkeeper_backend/models"
	"github.com/ledgerline/bookkeeper_backend/workflow"
	"github.com/shopspring/decimal"
)

func TestBuildCategorizePrompt(t *testing.T) {
	vendor := "AWS"
	pending := []*models.Transaction{
		{
			ID:              42,
			Description:     "AWS monthly bill",
			VendorName:      &vendor,
			Amount:          decimal.NewFromInt(120),
			Type:            models.TransactionTypeExpense,
			TransactionDate: time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC),
		},
	}
	categories := []*models.Category{
		{Name: "Software", Type: models.TransactionTypeExpense},
		{Name: "Sales", Type: models.TransactionTypeIncome},
	}

	prompt := workflow.BuildCategorizePrompt(pending, categories)
	for _, want := range []string{
		`"Software" (expense)`,
		`"Sales" (income)`,
		"id=42",
		"AWS monthly bill",
		"STRICT JSON",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestParseSuggestionsRaw(t *testing.T) {
	raw := `[{"transaction_id": 42, "category": "Software", "confidence": 0.92}]`
	suggestions, err := workflow.ParseSuggestions(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(suggestions))
	}
	s := suggestions[0]
	if s.TransactionId != 42 || s.CategoryName != "Software" || s.Confidence != 0.92 {
		t.Errorf("unexpected suggestion %+v", s)
	}
}

func TestParseSuggestionsStripsFences(t *testing.T) {
	raw := "```json\n[{\"transaction_id\": 7, \"category\": \"Rent\", \"confidence\": 0.5}]\n```"
	suggestions, err := workflow.ParseSuggestions(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(suggestions) != 1 || suggestions[0].TransactionId != 7 {
		t.Errorf("unexpected suggestions %+v", suggestions)
	}
}

func TestParseSuggestionsStripsSurroundingText(t *testing.T) {
	raw := "Here are the results:\n[{\"transaction_id\": 1, \"category\": \"Meals\", \"confidence\": 0.8}]\nHope that helps!"
	suggestions, err := workflow.ParseSuggestions(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(suggestions) != 1 || suggestions[0].CategoryName != "Meals" {
		t.Errorf("unexpected suggestions %+v", suggestions)
	}
}

func TestParseSuggestionsRejectsGarbage(t *testing.T) {
	if _, err := workflow.ParseSuggestions("the model refused to answer"); err == nil {
		t.Error("expected error for non-JSON output")
	}
}
