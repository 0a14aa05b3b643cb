package models

import (
	"time"
)

type BankFeedStatus string

const (
	BankFeedStatusConnected    BankFeedStatus = "connected"
	BankFeedStatusDisconnected BankFeedStatus = "disconnected"
	BankFeedStatusError        BankFeedStatus = "error"
)

// BankFeedConnection holds a business's link to the bank aggregation provider.
// AuthSecretRef is the provider access token obtained from the link flow;
// the link/token-exchange UI itself is owned by the frontend and provider.
type BankFeedConnection struct {
	ID                int            `gorm:"primary_key" json:"id"`
	BusinessId        string         `gorm:"uniqueIndex;not null" json:"business_id"`
	Status            BankFeedStatus `gorm:"size:20;not null;default:disconnected" json:"status"`
	ProviderItemId    string         `gorm:"size:255" json:"provider_item_id"`
	InstitutionName   string         `gorm:"size:255" json:"institution_name"`
	AuthSecretRef     string         `gorm:"size:512" json:"-"`
	LastSyncAt        *time.Time     `json:"last_sync_at"`
	LastSuccessSyncAt *time.Time     `json:"last_success_sync_at"`
	LastSyncError     string         `gorm:"type:text" json:"last_sync_error"`
	CursorStateJSON   []byte         `gorm:"type:bytea" json:"-"`
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
