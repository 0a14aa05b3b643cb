package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerline/bookkeeper_backend/config"
	"github.com/ledgerline/bookkeeper_backend/utils"
	"github.com/shopspring/decimal"
)

type Business struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name" binding:"required"`
	OwnerName string    `gorm:"size:255" json:"owner_name"`
	Timezone  string    `gorm:"size:100;default:UTC" json:"timezone"`
	// Flat estimated tax rate (percent) used by the tax summary; user adjustable.
	TaxRate   decimal.Decimal `gorm:"type:decimal(5,2);default:25" json:"tax_rate"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBusiness struct {
	Name      string          `json:"name" binding:"required"`
	OwnerName string          `json:"owner_name"`
	Timezone  string          `json:"timezone"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
}

/*
caches:
	Business:$businessId
*/

func GetBusiness(ctx context.Context) (*Business, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	var business Business
	exists, err := config.GetRedisObject("Business:"+businessId, &business)
	if err != nil {
		return nil, err
	}
	if exists {
		return &business, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Business{}).Where("id = ?", businessId).Take(&business).Error; err != nil {
		return nil, err
	}
	_ = config.SetRedisObject("Business:"+businessId, &business, 24*time.Hour)
	return &business, nil
}

func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {
	db := config.GetDB()

	taxRate := input.TaxRate
	if taxRate.IsZero() {
		taxRate = decimal.NewFromInt(25)
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, errors.New("tax rate must be between 0 and 100")
	}

	business := Business{
		ID:        uuid.New(),
		Name:      input.Name,
		OwnerName: input.OwnerName,
		Timezone:  input.Timezone,
		TaxRate:   taxRate,
	}
	if err := db.WithContext(ctx).Create(&business).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

func UpdateBusinessTaxRate(ctx context.Context, taxRate decimal.Decimal) (*Business, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, errors.New("tax rate must be between 0 and 100")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Business{}).Where("id = ?", businessId).
		Update("tax_rate", taxRate).Error; err != nil {
		return nil, err
	}
	if err := config.RemoveRedisKey("Business:" + businessId); err != nil {
		return nil, err
	}
	return GetBusiness(ctx)
}
