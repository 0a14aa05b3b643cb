package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledgerline/bookkeeper_backend/config"
	"github.com/ledgerline/bookkeeper_backend/models"
	"github.com/ledgerline/bookkeeper_backend/utils"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"
	"gorm.io/gorm"
)

const categorizeBatchSize = 50

// CategorySuggestion is one model verdict for one transaction.
type CategorySuggestion struct {
	TransactionId int     `json:"transaction_id"`
	CategoryName  string  `json:"category"`
	Confidence    float64 `json:"confidence"`
}

func aiModelName() string {
	if v := strings.TrimSpace(os.Getenv("AI_MODEL_NAME")); v != "" {
		return v
	}
	return "gemini-2.5-flash"
}

func aiConfidenceThreshold() decimal.Decimal {
	if v := strings.TrimSpace(os.Getenv("AI_CONFIDENCE_THRESHOLD")); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.IsPositive() && d.LessThanOrEqual(decimal.NewFromInt(1)) {
			return d
		}
	}
	return decimal.NewFromFloat(0.7)
}

// CategorizePendingTransactions asks the model to assign a category to every
// uncategorized transaction awaiting review, in one batched call. A
// transaction whose category was already set (by the user or a prior run) is
// never touched. Returns the number of transactions updated.
func CategorizePendingTransactions(ctx context.Context) (int, error) {
	if !config.AICategorizationEnabled() {
		return 0, errors.New("ai categorization is disabled")
	}
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return 0, errors.New("business id is required")
	}

	db := config.GetDB().WithContext(ctx)

	var pending []*models.Transaction
	if err := db.Where("business_id = ? AND needs_review = ? AND category_id IS NULL", businessId, true).
		Order("transaction_date desc").
		Limit(categorizeBatchSize).
		Find(&pending).Error; err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	categories, err := models.ListCategories(ctx)
	if err != nil {
		return 0, err
	}
	if len(categories) == 0 {
		return 0, errors.New("no categories defined")
	}

	suggestions, err := requestSuggestions(ctx, pending, categories)
	if err != nil {
		return 0, err
	}

	return applySuggestions(db, businessId, pending, categories, suggestions)
}

func requestSuggestions(ctx context.Context, pending []*models.Transaction, categories []*models.Category) ([]CategorySuggestion, error) {
	prompt := BuildCategorizePrompt(pending, categories)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	resp, err := client.Models.GenerateContent(ctx, aiModelName(), contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, errors.New("empty response from model")
	}
	return ParseSuggestions(rawText)
}

// BuildCategorizePrompt renders the strict-JSON instruction block with the
// business's own category taxonomy and the batch of transactions to label.
func BuildCategorizePrompt(pending []*models.Transaction, categories []*models.Category) string {
	var b strings.Builder
	b.WriteString("You are a bookkeeping assistant that categorizes bank transactions for a small business.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Assign each transaction below to exactly one of the predefined categories.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a JSON array of objects, one per transaction.\n\n")
	b.WriteString("Each object must have these fields:\n")
	b.WriteString("- \"transaction_id\": number (copied from the input)\n")
	b.WriteString("- \"category\": string (one of the predefined category names, matched to the transaction's type)\n")
	b.WriteString("- \"confidence\": number between 0 and 1\n\n")

	b.WriteString("Use ONLY the following categories:\n")
	for _, category := range categories {
		fmt.Fprintf(&b, "- %q (%s)\n", category.Name, category.Type)
	}
	b.WriteString("\nTransactions:\n")
	for _, t := range pending {
		vendor := ""
		if t.VendorName != nil {
			vendor = *t.VendorName
		}
		fmt.Fprintf(&b, "- id=%d type=%s amount=%s date=%s description=%q vendor=%q\n",
			t.ID, t.Type, t.Amount.String(), t.TransactionDate.Format("2006-01-02"), t.Description, vendor)
	}

	b.WriteString("\nRules:\n")
	b.WriteString("- An income transaction must get an income category; an expense transaction an expense category.\n")
	b.WriteString("- If no category clearly fits, pick the closest one with a low confidence.\n")
	b.WriteString("- Return ONLY valid raw JSON.\n")
	b.WriteString("- Do NOT wrap the response in code fences.\n")
	b.WriteString("- Do NOT use ```json or any Markdown.\n")
	b.WriteString("- Output must begin with \"[\" and end with \"]\".\n")
	return b.String()
}

// ParseSuggestions decodes the model output, stripping Markdown fences and
// surrounding junk when the model ignored the formatting instructions.
func ParseSuggestions(raw string) ([]CategorySuggestion, error) {
	clean := cleanModelJSON(raw)
	var suggestions []CategorySuggestion
	if err := json.Unmarshal([]byte(clean), &suggestions); err != nil {
		return nil, fmt.Errorf("unmarshal suggestions: %w\nraw response: %s", err, raw)
	}
	return suggestions, nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

func applySuggestions(db *gorm.DB, businessId string, pending []*models.Transaction, categories []*models.Category, suggestions []CategorySuggestion) (int, error) {
	pendingById := make(map[int]*models.Transaction, len(pending))
	for _, t := range pending {
		pendingById[t.ID] = t
	}
	categoryByKey := make(map[string]*models.Category, len(categories))
	for _, category := range categories {
		categoryByKey[strings.ToLower(category.Name)+"|"+string(category.Type)] = category
	}

	threshold := aiConfidenceThreshold()
	one := decimal.NewFromInt(1)
	applied := 0

	for _, suggestion := range suggestions {
		txn, ok := pendingById[suggestion.TransactionId]
		if !ok || txn.CategoryId != nil {
			continue
		}
		category, ok := categoryByKey[strings.ToLower(strings.TrimSpace(suggestion.CategoryName))+"|"+string(txn.Type)]
		if !ok {
			continue
		}

		confidence := decimal.NewFromFloat(suggestion.Confidence)
		if confidence.IsNegative() {
			confidence = decimal.Zero
		}
		if confidence.GreaterThan(one) {
			confidence = one
		}
		needsReview := confidence.LessThan(threshold)

		if err := db.Model(&models.Transaction{}).
			Where("id = ? AND business_id = ? AND category_id IS NULL", txn.ID, businessId).
			Updates(map[string]interface{}{
				"category_id":   category.ID,
				"ai_confidence": confidence,
				"needs_review":  needsReview,
			}).Error; err != nil {
			return applied, err
		}
		txn.CategoryId = &category.ID
		applied++
	}

	return applied, nil
}
