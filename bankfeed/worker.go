package bankfeed

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/ledgerline/bookkeeper_backend/config"
	"github.com/ledgerline/bookkeeper_backend/models"
	"github.com/ledgerline/bookkeeper_backend/utils"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrSyncInProgress = errors.New("bank feed sync already running")

const transferPairWindow = 3 * 24 * time.Hour

type feedAccount struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Mask            string      `json:"mask"`
	InstitutionName string      `json:"institution_name"`
	CurrentBalance  json.Number `json:"current_balance"`
	UpdatedAt       string      `json:"updated_at"`
}

type feedTransaction struct {
	ID          string `json:"id"`
	AccountId   string `json:"account_id"`
	Description string `json:"description"`
	Merchant    string `json:"merchant"`
	// Amount is signed on the wire: positive for money in, negative for money out.
	Amount    json.Number `json:"amount"`
	Date      string      `json:"date"`
	Pending   bool        `json:"pending"`
	UpdatedAt string      `json:"updated_at"`
}

// SyncBusiness pulls accounts and transactions from the aggregation provider
// for one business. A redis lock guards against overlapping runs (cron and a
// manual trigger racing each other).
func SyncBusiness(ctx context.Context, businessId string) (*SyncResult, error) {
	locker := config.GetRedisLock()
	lock, err := locker.Obtain(ctx, "lock:bankfeed:"+businessId, 60*time.Second, nil)
	if err == redislock.ErrNotObtained {
		return nil, ErrSyncInProgress
	}
	if err != nil {
		return nil, err
	}
	defer lock.Release(context.Background())

	ctx = utils.SetBusinessIdInContext(ctx, businessId)
	db := config.GetDB().WithContext(ctx)

	var conn models.BankFeedConnection
	if err := db.Where("business_id = ?", businessId).Take(&conn).Error; err != nil {
		return nil, err
	}
	if conn.Status != models.BankFeedStatusConnected {
		return nil, errors.New("bank feed is not connected")
	}

	client, err := newFeedClient(conn.AuthSecretRef)
	if err != nil {
		return nil, err
	}

	cursorState := DecodeCursorState(conn.CursorStateJSON)
	result := &SyncResult{}
	now := time.Now()

	accountsById, accountCount, syncErr := syncAccounts(ctx, db, businessId, &conn, client)
	result.AccountsSynced = accountCount

	if syncErr == nil {
		var txnCount int
		var newCursor CursorEntry
		txnCount, newCursor, syncErr = syncTransactions(ctx, db, businessId, &conn, client, cursorState.Transactions, accountsById)
		result.TransactionsSynced = txnCount
		if syncErr == nil {
			cursorState.Transactions = newCursor
		}
	}

	if syncErr == nil {
		paired, err := pairRecentTransfers(ctx, db, businessId)
		if err != nil {
			syncErr = err
		}
		result.TransfersPaired = paired
	}

	updates := map[string]interface{}{
		"last_sync_at": now,
	}
	if syncErr == nil {
		updates["last_success_sync_at"] = now
		updates["last_sync_error"] = ""
		updates["cursor_state_json"] = EncodeCursorState(cursorState)
	} else {
		updates["last_sync_error"] = syncErr.Error()
	}
	if err := db.Model(&models.BankFeedConnection{}).
		Where("id = ? AND business_id = ?", conn.ID, businessId).
		Updates(updates).Error; err != nil {
		return result, err
	}

	return result, syncErr
}

func syncAccounts(ctx context.Context, db *gorm.DB, businessId string, conn *models.BankFeedConnection, client *feedClient) (map[string]*models.BankAccount, int, error) {
	accountsById := make(map[string]*models.BankAccount)
	count := 0
	nextCursor := ""
	now := time.Now()

	for {
		params := url.Values{}
		params.Set("limit", "100")
		if nextCursor != "" {
			params.Set("cursor", nextCursor)
		}

		resp, err := client.getList(ctx, "/v1/accounts", params)
		if err != nil {
			return accountsById, count, err
		}
		items := resp.Data
		if len(items) == 0 {
			items = resp.Items
		}

		for _, raw := range items {
			var remote feedAccount
			if err := json.Unmarshal(raw, &remote); err != nil {
				continue
			}
			if strings.TrimSpace(remote.ID) == "" {
				continue
			}
			balance, err := decimal.NewFromString(remote.CurrentBalance.String())
			if err != nil {
				balance = decimal.Zero
			}

			var account models.BankAccount
			err = db.Where("business_id = ? AND provider_account_id = ?", businessId, remote.ID).Take(&account).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				account = models.BankAccount{
					BusinessId:        businessId,
					Name:              remote.Name,
					Institution:       remote.InstitutionName,
					Mask:              remote.Mask,
					CurrentBalance:    balance,
					LastSyncedAt:      &now,
					ProviderItemId:    conn.ProviderItemId,
					ProviderAccountId: remote.ID,
				}
				if err := db.Create(&account).Error; err != nil {
					return accountsById, count, err
				}
			} else if err != nil {
				return accountsById, count, err
			} else {
				if err := db.Model(&account).Updates(map[string]interface{}{
					"current_balance": balance,
					"institution":     remote.InstitutionName,
					"mask":            remote.Mask,
					"last_synced_at":  now,
				}).Error; err != nil {
					return accountsById, count, err
				}
				account.CurrentBalance = balance
			}

			if err := models.RecordDailyBalance(ctx, db, &account, balance, now); err != nil {
				return accountsById, count, err
			}

			saved := account
			accountsById[remote.ID] = &saved
			count++
		}

		if resp.NextCursor == "" || resp.NextCursor == nextCursor {
			break
		}
		if resp.HasMore != nil && !*resp.HasMore {
			break
		}
		nextCursor = resp.NextCursor
	}

	return accountsById, count, nil
}

func syncTransactions(ctx context.Context, db *gorm.DB, businessId string, conn *models.BankFeedConnection, client *feedClient, cursor CursorEntry, accountsById map[string]*models.BankAccount) (int, CursorEntry, error) {
	updatedSince := strings.TrimSpace(cursor.UpdatedSince)
	if updatedSince == "" && conn.LastSuccessSyncAt != nil {
		updatedSince = conn.LastSuccessSyncAt.UTC().Format(time.RFC3339)
	}
	if updatedSince == "" {
		updatedSince = time.Now().Add(-30 * 24 * time.Hour).UTC().Format(time.RFC3339)
	}

	nextCursor := strings.TrimSpace(cursor.Cursor)
	total := 0

	for {
		params := url.Values{}
		params.Set("updated_since", updatedSince)
		params.Set("limit", "200")
		if nextCursor != "" {
			params.Set("cursor", nextCursor)
		}

		resp, err := client.getList(ctx, "/v1/transactions", params)
		if err != nil {
			return total, CursorEntry{UpdatedSince: updatedSince, Cursor: nextCursor}, err
		}
		items := resp.Data
		if len(items) == 0 {
			items = resp.Items
		}

		for _, raw := range items {
			var remote feedTransaction
			if err := json.Unmarshal(raw, &remote); err != nil {
				continue
			}
			if err := upsertRemoteTransaction(db, businessId, remote, accountsById); err != nil {
				return total, CursorEntry{UpdatedSince: updatedSince, Cursor: nextCursor}, err
			}
			total++
		}

		if resp.NextCursor == "" || resp.NextCursor == nextCursor {
			break
		}
		if resp.HasMore != nil && !*resp.HasMore {
			break
		}
		nextCursor = resp.NextCursor
	}

	newUpdatedSince := time.Now().UTC().Format(time.RFC3339)
	return total, CursorEntry{UpdatedSince: newUpdatedSince, Cursor: ""}, nil
}

func upsertRemoteTransaction(db *gorm.DB, businessId string, remote feedTransaction, accountsById map[string]*models.BankAccount) error {
	providerId := strings.TrimSpace(remote.ID)
	if providerId == "" {
		return nil
	}

	signed, err := decimal.NewFromString(remote.Amount.String())
	if err != nil {
		return nil
	}
	txnType := models.TransactionTypeIncome
	if signed.IsNegative() {
		txnType = models.TransactionTypeExpense
	}
	status := models.TransactionStatusCompleted
	if remote.Pending {
		status = models.TransactionStatusPending
	}

	date, err := time.Parse("2006-01-02", remote.Date)
	if err != nil {
		date, err = time.Parse(time.RFC3339, remote.Date)
		if err != nil {
			date = time.Now().UTC()
		}
	}

	description := strings.TrimSpace(remote.Description)
	if description == "" {
		description = strings.TrimSpace(remote.Merchant)
	}
	if description == "" {
		description = "Bank transaction"
	}
	var vendor *string
	if v := strings.TrimSpace(remote.Merchant); v != "" {
		vendor = &v
	}
	var bankAccountId *int
	if account, ok := accountsById[remote.AccountId]; ok {
		bankAccountId = &account.ID
	}

	var existing models.Transaction
	err = db.Where("business_id = ? AND provider_transaction_id = ?", businessId, providerId).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row := models.Transaction{
			BusinessId:            businessId,
			Description:           description,
			VendorName:            vendor,
			Amount:                signed.Abs(),
			Type:                  txnType,
			TransactionDate:       date,
			Status:                status,
			NeedsReview:           true,
			Source:                models.TransactionSourceBankSync,
			BankAccountId:         bankAccountId,
			ProviderTransactionId: &providerId,
		}
		return db.Create(&row).Error
	}
	if err != nil {
		return err
	}

	// Re-synced rows refresh provider-owned fields only; category, review
	// state and the transfer flag belong to the user once set.
	return db.Model(&existing).Updates(map[string]interface{}{
		"description":      description,
		"amount":           signed.Abs(),
		"type":             txnType,
		"transaction_date": date,
		"status":           status,
	}).Error
}

// MatchTransferPairs flags equal-amount, opposite-direction transactions on
// different bank accounts dated within three days of each other as internal
// transfers. Matching is greedy in date order; each transaction joins at
// most one pair. Returns the number of pairs flagged.
func MatchTransferPairs(transactions []*models.Transaction) int {
	candidates := make([]*models.Transaction, 0, len(transactions))
	for _, t := range transactions {
		if t.IsInternalTransfer || t.BankAccountId == nil {
			continue
		}
		candidates = append(candidates, t)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].TransactionDate.Before(candidates[j].TransactionDate)
	})

	matched := make(map[int]bool)
	pairs := 0
	for i, out := range candidates {
		if matched[i] || out.Type != models.TransactionTypeExpense {
			continue
		}
		for j, in := range candidates {
			if matched[j] || i == j || in.Type != models.TransactionTypeIncome {
				continue
			}
			if *in.BankAccountId == *out.BankAccountId {
				continue
			}
			if !in.Amount.Equal(out.Amount) {
				continue
			}
			gap := in.TransactionDate.Sub(out.TransactionDate)
			if gap < 0 {
				gap = -gap
			}
			if gap > transferPairWindow {
				continue
			}
			out.IsInternalTransfer = true
			in.IsInternalTransfer = true
			matched[i] = true
			matched[j] = true
			pairs++
			break
		}
	}
	return pairs
}

func pairRecentTransfers(ctx context.Context, db *gorm.DB, businessId string) (int, error) {
	since := time.Now().Add(-30 * 24 * time.Hour)
	var recent []*models.Transaction
	if err := db.Where(
		"business_id = ? AND source = ? AND transaction_date >= ? AND is_internal_transfer = ?",
		businessId, models.TransactionSourceBankSync, since, false,
	).Find(&recent).Error; err != nil {
		return 0, err
	}

	pairs := MatchTransferPairs(recent)
	if pairs == 0 {
		return 0, nil
	}
	for _, t := range recent {
		if !t.IsInternalTransfer {
			continue
		}
		if err := db.Model(&models.Transaction{}).
			Where("id = ? AND business_id = ?", t.ID, businessId).
			Update("is_internal_transfer", true).Error; err != nil {
			return pairs, err
		}
	}
	return pairs, nil
}

// SyncAllConnected runs a sync for every connected business. Used by the
// cron schedule; per-business failures are logged and do not stop the loop.
func SyncAllConnected(ctx context.Context) {
	logger := config.GetLogger()
	db := config.GetDB().WithContext(ctx)

	var connections []models.BankFeedConnection
	if err := db.Where("status = ?", models.BankFeedStatusConnected).Find(&connections).Error; err != nil {
		config.LogError(logger, "bankfeed", "SyncAllConnected", "list connections", nil, err)
		return
	}

	for _, conn := range connections {
		if _, err := SyncBusiness(ctx, conn.BusinessId); err != nil && err != ErrSyncInProgress {
			config.LogError(logger, "bankfeed", "SyncAllConnected", "sync business", conn.BusinessId, err)
		}
	}
}

// Schedule registers the periodic sync on the given cron runner.
func Schedule(c *cron.Cron) error {
	_, err := c.AddFunc(config.BankFeedSyncCron(), func() {
		SyncAllConnected(context.Background())
	})
	return err
}
