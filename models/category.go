package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ledgerline/bookkeeper_backend/config"
	"github.com/ledgerline/bookkeeper_backend/utils"
)

type Category struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"index;not null" json:"business_id"`
	Name       string          `gorm:"size:255;not null" json:"name" binding:"required"`
	Type       TransactionType `gorm:"size:10;not null" json:"type" binding:"required"`
	Color      string          `gorm:"size:20" json:"color"`
	// Activity drives cash-flow statement grouping. Resolved once at creation
	// (keyword default, user override allowed) so reports never match on names.
	Activity  CategoryActivity `gorm:"size:20;not null;default:operating" json:"activity"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCategory struct {
	Name     string           `json:"name" binding:"required"`
	Type     TransactionType  `json:"type" binding:"required"`
	Color    string           `json:"color"`
	Activity CategoryActivity `json:"activity"`
}

var investingKeywords = []string{"equipment", "property", "investment"}
var financingKeywords = []string{"loan", "capital", "dividend"}

// DefaultActivityForName resolves the cash-flow activity for a new category
// from its display name. Only consulted at creation time.
func DefaultActivityForName(name string) CategoryActivity {
	lower := strings.ToLower(name)
	for _, kw := range investingKeywords {
		if strings.Contains(lower, kw) {
			return CategoryActivityInvesting
		}
	}
	for _, kw := range financingKeywords {
		if strings.Contains(lower, kw) {
			return CategoryActivityFinancing
		}
	}
	return CategoryActivityOperating
}

func (input *NewCategory) validate() error {
	if !input.Type.Valid() {
		return errors.New("category type must be income or expense")
	}
	if input.Activity != "" && !input.Activity.Valid() {
		return errors.New("invalid category activity")
	}
	return nil
}

func ListCategories(ctx context.Context) ([]*Category, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	categories := make([]*Category, 0)
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Category{}).
		Where("business_id = ?", businessId).
		Order("type, name").
		Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func CreateCategory(ctx context.Context, input *NewCategory) (*Category, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&Category{}).
		Where("business_id = ? AND name = ? AND type = ?", businessId, input.Name, input.Type).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("duplicate category name")
	}

	activity := input.Activity
	if activity == "" {
		activity = DefaultActivityForName(input.Name)
	}

	category := Category{
		BusinessId: businessId,
		Name:       input.Name,
		Type:       input.Type,
		Color:      input.Color,
		Activity:   activity,
	}
	if err := db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func UpdateCategory(ctx context.Context, id int, input *NewCategory) (*Category, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var category Category
	if err := db.WithContext(ctx).Where("id = ? AND business_id = ?", id, businessId).Take(&category).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	category.Name = input.Name
	category.Type = input.Type
	category.Color = input.Color
	if input.Activity != "" {
		category.Activity = input.Activity
	}
	if err := db.WithContext(ctx).Save(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func DeleteCategory(ctx context.Context, id int) (bool, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return false, errors.New("business id is required")
	}

	db := config.GetDB()
	var category Category
	if err := db.WithContext(ctx).Where("id = ? AND business_id = ?", id, businessId).Take(&category).Error; err != nil {
		return false, utils.ErrorRecordNotFound
	}

	// Detach transactions first; they fall back to the Uncategorized bucket.
	if err := db.WithContext(ctx).Model(&Transaction{}).
		Where("business_id = ? AND category_id = ?", businessId, id).
		Update("category_id", nil).Error; err != nil {
		return false, err
	}
	if err := db.WithContext(ctx).Delete(&category).Error; err != nil {
		return false, err
	}
	return true, nil
}

// SeedDefaultCategories creates the starter category set for a new business.
func SeedDefaultCategories(ctx context.Context, businessId string) error {
	defaults := []Category{
		{Name: "Sales", Type: TransactionTypeIncome, Color: "#22c55e"},
		{Name: "Consulting", Type: TransactionTypeIncome, Color: "#10b981"},
		{Name: "Interest Income", Type: TransactionTypeIncome, Color: "#14b8a6"},
		{Name: "Rent", Type: TransactionTypeExpense, Color: "#ef4444"},
		{Name: "Software", Type: TransactionTypeExpense, Color: "#f97316"},
		{Name: "Office Supplies", Type: TransactionTypeExpense, Color: "#eab308"},
		{Name: "Travel", Type: TransactionTypeExpense, Color: "#8b5cf6"},
		{Name: "Meals", Type: TransactionTypeExpense, Color: "#ec4899"},
		{Name: "Equipment", Type: TransactionTypeExpense, Color: "#6366f1"},
		{Name: "Loan Payment", Type: TransactionTypeExpense, Color: "#64748b"},
	}

	db := config.GetDB()
	for i := range defaults {
		defaults[i].BusinessId = businessId
		defaults[i].Activity = DefaultActivityForName(defaults[i].Name)
	}
	return db.WithContext(ctx).Create(&defaults).Error
}
