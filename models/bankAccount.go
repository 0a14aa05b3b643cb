package models

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerline/bookkeeper_backend/config"
	"github.com/ledgerline/bookkeeper_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BankAccount struct {
	ID                int             `gorm:"primary_key" json:"id"`
	BusinessId        string          `gorm:"index;not null" json:"business_id"`
	Name              string          `gorm:"size:255;not null" json:"name" binding:"required"`
	Institution       string          `gorm:"size:255" json:"institution"`
	Mask              string          `gorm:"size:10" json:"mask"`
	CurrentBalance    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_balance"`
	LastSyncedAt      *time.Time      `json:"last_synced_at"`
	ProviderItemId    string          `gorm:"size:255;index" json:"provider_item_id"`
	ProviderAccountId string          `gorm:"size:255;index" json:"provider_account_id"`
	IsActive          *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BankAccountDailyBalance is a per-day closing balance snapshot written by
// bank sync. Reports read it to get an independent beginning-cash figure
// instead of back-solving from today's balance.
type BankAccountDailyBalance struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index:idx_daily_balance,unique;not null" json:"business_id"`
	BankAccountId int             `gorm:"index:idx_daily_balance,unique;not null" json:"bank_account_id"`
	BalanceDate   time.Time       `gorm:"index:idx_daily_balance,unique;not null" json:"balance_date"`
	Balance       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewBankAccount struct {
	Name        string  `json:"name" binding:"required"`
	Institution string  `json:"institution"`
	Mask        string  `json:"mask"`
	IsActive    *bool   `json:"is_active"`
	Balance     *string `json:"balance"`
}

func ListBankAccounts(ctx context.Context) ([]*BankAccount, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	accounts := make([]*BankAccount, 0)
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&BankAccount{}).
		Where("business_id = ?", businessId).
		Order("name").
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func CreateBankAccount(ctx context.Context, input *NewBankAccount) (*BankAccount, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	balance := decimal.Zero
	if input.Balance != nil {
		parsed, err := utils.ParseDecimal(*input.Balance)
		if err != nil {
			return nil, errors.New("invalid balance")
		}
		balance = parsed
	}

	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}

	account := BankAccount{
		BusinessId:     businessId,
		Name:           input.Name,
		Institution:    input.Institution,
		Mask:           input.Mask,
		CurrentBalance: balance,
		IsActive:       isActive,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func DeleteBankAccount(ctx context.Context, id int) (bool, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return false, errors.New("business id is required")
	}

	db := config.GetDB()
	var account BankAccount
	if err := db.WithContext(ctx).Where("id = ? AND business_id = ?", id, businessId).Take(&account).Error; err != nil {
		return false, utils.ErrorRecordNotFound
	}
	if err := db.WithContext(ctx).Delete(&account).Error; err != nil {
		return false, err
	}
	return true, nil
}

// TotalActiveBalance sums current_balance across active accounts;
// the balance sheet's cash line and the cash-flow ending cash.
func TotalActiveBalance(ctx context.Context, businessId string) (decimal.Decimal, error) {
	db := config.GetDB()
	var total decimal.NullDecimal
	if err := db.WithContext(ctx).Model(&BankAccount{}).
		Select("SUM(current_balance)").
		Where("business_id = ? AND is_active = ?", businessId, true).
		Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// ClosingBalanceOn returns the summed closing balance snapshot for the given
// day, and false when no account has a snapshot for it.
func ClosingBalanceOn(ctx context.Context, businessId string, day time.Time) (decimal.Decimal, bool, error) {
	db := config.GetDB()
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	var count int64
	if err := db.WithContext(ctx).Model(&BankAccountDailyBalance{}).
		Where("business_id = ? AND balance_date = ?", businessId, dayStart).
		Count(&count).Error; err != nil {
		return decimal.Zero, false, err
	}
	if count == 0 {
		return decimal.Zero, false, nil
	}

	var total decimal.NullDecimal
	if err := db.WithContext(ctx).Model(&BankAccountDailyBalance{}).
		Select("SUM(balance)").
		Where("business_id = ? AND balance_date = ?", businessId, dayStart).
		Scan(&total).Error; err != nil {
		return decimal.Zero, false, err
	}
	if !total.Valid {
		return decimal.Zero, false, nil
	}
	return total.Decimal, true, nil
}

// RecordDailyBalance upserts today's closing balance snapshot for an account.
func RecordDailyBalance(ctx context.Context, tx *gorm.DB, account *BankAccount, balance decimal.Decimal, day time.Time) error {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	row := BankAccountDailyBalance{
		BusinessId:    account.BusinessId,
		BankAccountId: account.ID,
		BalanceDate:   dayStart,
		Balance:       balance,
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "business_id"}, {Name: "bank_account_id"}, {Name: "balance_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance"}),
	}).Create(&row).Error
}
