package models

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerline/bookkeeper_backend/config"
	"github.com/ledgerline/bookkeeper_backend/utils"
	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID          int     `gorm:"primary_key" json:"id"`
	BusinessId  string  `gorm:"index;not null" json:"business_id"`
	Description string  `gorm:"size:500;not null" json:"description" binding:"required"`
	VendorName  *string `gorm:"size:255" json:"vendor_name"`
	// Amount is always stored positive; Type determines sign when aggregating.
	Amount             decimal.Decimal   `gorm:"type:decimal(20,4);not null" json:"amount"`
	Type               TransactionType   `gorm:"size:10;not null;index" json:"type" binding:"required"`
	TransactionDate    time.Time         `gorm:"not null;index" json:"transaction_date" binding:"required"`
	CategoryId         *int              `gorm:"index" json:"category_id"`
	Category           *Category         `json:"category,omitempty"`
	Status             TransactionStatus `gorm:"size:20;not null;default:completed" json:"status"`
	TaxDeductible      bool              `gorm:"not null;default:false" json:"tax_deductible"`
	IsInternalTransfer bool              `gorm:"not null;default:false" json:"is_internal_transfer"`
	NeedsReview        bool              `gorm:"not null;default:false" json:"needs_review"`
	// AI categorization confidence in [0,1]; nil when the category was set by a user.
	AiConfidence          *decimal.Decimal  `gorm:"type:decimal(5,4)" json:"ai_confidence"`
	Source                TransactionSource `gorm:"size:20;not null;default:manual" json:"source"`
	BankAccountId         *int              `gorm:"index" json:"bank_account_id"`
	ProviderTransactionId *string           `gorm:"size:255;uniqueIndex" json:"provider_transaction_id"`
	CreatedAt             time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj Transaction) GetId() int {
	return obj.ID
}

// implements CompositeCursor
func (obj Transaction) GetCursor() string {
	return obj.TransactionDate.Format(time.RFC3339)
}

type TransactionsEdge Edge[Transaction]

type TransactionsConnection struct {
	PageInfo *PageInfo           `json:"pageInfo"`
	Edges    []*TransactionsEdge `json:"edges"`
}

type NewTransaction struct {
	Description        string            `json:"description" binding:"required"`
	VendorName         *string           `json:"vendor_name"`
	Amount             decimal.Decimal   `json:"amount"`
	Type               TransactionType   `json:"type" binding:"required"`
	TransactionDate    time.Time         `json:"transaction_date" binding:"required"`
	CategoryId         *int              `json:"category_id"`
	Status             TransactionStatus `json:"status"`
	TaxDeductible      bool              `json:"tax_deductible"`
	IsInternalTransfer bool              `json:"is_internal_transfer"`
	BankAccountId      *int              `json:"bank_account_id"`
	Source             TransactionSource `json:"source"`
}

type TransactionFilter struct {
	FromDate    *MyDateString
	ToDate      *MyDateString
	Type        *TransactionType
	CategoryId  *int
	NeedsReview *bool
	Limit       int
	After       *string
}

// validate input for both create & update. (id = 0 for create)
func (input *NewTransaction) validate(ctx context.Context, businessId string) error {
	if input.Amount.IsNegative() {
		return errors.New("amount must not be negative")
	}
	if !input.Type.Valid() {
		return errors.New("transaction type must be income or expense")
	}
	if input.Status != "" && !input.Status.Valid() {
		return errors.New("invalid transaction status")
	}
	if input.Source != "" && !input.Source.Valid() {
		return errors.New("invalid transaction source")
	}
	db := config.GetDB()
	if input.CategoryId != nil {
		var count int64
		if err := db.WithContext(ctx).Model(&Category{}).
			Where("id = ? AND business_id = ?", *input.CategoryId, businessId).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return errors.New("category not found")
		}
	}
	if input.BankAccountId != nil {
		var count int64
		if err := db.WithContext(ctx).Model(&BankAccount{}).
			Where("id = ? AND business_id = ?", *input.BankAccountId, businessId).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return errors.New("bank account not found")
		}
	}
	return nil
}

func CreateTransaction(ctx context.Context, input *NewTransaction) (*Transaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = TransactionStatusCompleted
	}
	source := input.Source
	if source == "" {
		source = TransactionSourceManual
	}

	transaction := Transaction{
		BusinessId:         businessId,
		Description:        input.Description,
		VendorName:         input.VendorName,
		Amount:             input.Amount,
		Type:               input.Type,
		TransactionDate:    input.TransactionDate,
		CategoryId:         input.CategoryId,
		Status:             status,
		TaxDeductible:      input.TaxDeductible,
		IsInternalTransfer: input.IsInternalTransfer,
		Source:             source,
		BankAccountId:      input.BankAccountId,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&transaction).Error; err != nil {
		return nil, err
	}
	return &transaction, nil
}

func UpdateTransaction(ctx context.Context, id int, input *NewTransaction) (*Transaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var transaction Transaction
	if err := db.WithContext(ctx).Where("id = ? AND business_id = ?", id, businessId).Take(&transaction).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	userChangedCategory := input.CategoryId != nil &&
		(transaction.CategoryId == nil || *transaction.CategoryId != *input.CategoryId)

	transaction.Description = input.Description
	transaction.VendorName = input.VendorName
	transaction.Amount = input.Amount
	transaction.Type = input.Type
	transaction.TransactionDate = input.TransactionDate
	transaction.CategoryId = input.CategoryId
	if input.Status != "" {
		transaction.Status = input.Status
	}
	transaction.TaxDeductible = input.TaxDeductible
	transaction.IsInternalTransfer = input.IsInternalTransfer
	if userChangedCategory {
		// A user decision beats the model; clear review state.
		transaction.AiConfidence = nil
		transaction.NeedsReview = false
	}

	if err := db.WithContext(ctx).Save(&transaction).Error; err != nil {
		return nil, err
	}
	return &transaction, nil
}

func DeleteTransaction(ctx context.Context, id int) (bool, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return false, errors.New("business id is required")
	}

	db := config.GetDB()
	var transaction Transaction
	if err := db.WithContext(ctx).Where("id = ? AND business_id = ?", id, businessId).Take(&transaction).Error; err != nil {
		return false, utils.ErrorRecordNotFound
	}
	if err := db.WithContext(ctx).Delete(&transaction).Error; err != nil {
		return false, err
	}
	return true, nil
}

func PaginateTransaction(ctx context.Context, filter TransactionFilter) (*TransactionsConnection, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = config.SearchLimit
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Transaction{}).Preload("Category").
		Where("business_id = ?", businessId)
	if filter.FromDate != nil {
		dbCtx = dbCtx.Where("transaction_date >= ?", time.Time(*filter.FromDate))
	}
	if filter.ToDate != nil {
		dbCtx = dbCtx.Where("transaction_date <= ?", time.Time(*filter.ToDate))
	}
	if filter.Type != nil {
		dbCtx = dbCtx.Where("type = ?", *filter.Type)
	}
	if filter.CategoryId != nil {
		dbCtx = dbCtx.Where("category_id = ?", *filter.CategoryId)
	}
	if filter.NeedsReview != nil {
		dbCtx = dbCtx.Where("needs_review = ?", *filter.NeedsReview)
	}

	edges, pageInfo, err := FetchPageCompositeCursor[Transaction](dbCtx, limit, filter.After, "transaction_date", "<")
	if err != nil {
		return nil, err
	}

	transactionEdges := make([]*TransactionsEdge, 0, len(edges))
	for i := range edges {
		edge := TransactionsEdge(edges[i])
		transactionEdges = append(transactionEdges, &edge)
	}
	return &TransactionsConnection{PageInfo: pageInfo, Edges: transactionEdges}, nil
}

// BulkSetCategory applies a user categorization to many rows at once.
func BulkSetCategory(ctx context.Context, ids []int, categoryId int) (int64, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return 0, errors.New("business id is required")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&Category{}).
		Where("id = ? AND business_id = ?", categoryId, businessId).
		Count(&count).Error; err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, errors.New("category not found")
	}

	res := db.WithContext(ctx).Model(&Transaction{}).
		Where("business_id = ? AND id IN ?", businessId, utils.UniqueSlice(ids)).
		Updates(map[string]interface{}{
			"category_id":   categoryId,
			"needs_review":  false,
			"ai_confidence": nil,
		})
	return res.RowsAffected, res.Error
}

// GetTransactionsInPeriod loads the reporting snapshot for a date range,
// category preloaded. Internal transfers are included; the pure report
// builders are responsible for excluding them from totals.
func GetTransactionsInPeriod(ctx context.Context, businessId string, start, end time.Time) ([]*Transaction, error) {
	db := config.GetDB()
	transactions := make([]*Transaction, 0)
	if err := db.WithContext(ctx).Model(&Transaction{}).Preload("Category").
		Where("business_id = ? AND transaction_date >= ? AND transaction_date <= ?", businessId, start, end).
		Order("transaction_date, id").
		Find(&transactions).Error; err != nil {
		return nil, err
	}
	return transactions, nil
}
