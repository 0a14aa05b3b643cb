// backfill-daily-balance writes a closing balance snapshot for every active
// bank account, one row per account per day. Normally bank sync does this on
// each run; this binary covers businesses without a feed connection and gaps
// left by sync outages. Run it from a nightly scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ledgerline/bookkeeper_backend/config"
	"github.com/ledgerline/bookkeeper_backend/models"
)

func main() {
	businessID := flag.String("business-id", "", "Optional: snapshot only one business. If empty, snapshots all.")
	dateFlag := flag.String("date", "", "Snapshot date as YYYY-MM-DD. Defaults to today (UTC).")
	flag.Parse()

	day := time.Now().UTC()
	if strings.TrimSpace(*dateFlag) != "" {
		parsed, err := time.Parse("2006-01-02", strings.TrimSpace(*dateFlag))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -date %q: %v\n", *dateFlag, err)
			os.Exit(2)
		}
		day = parsed
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	query := db.WithContext(ctx).Model(&models.BankAccount{}).Where("is_active = ?", true)
	if strings.TrimSpace(*businessID) != "" {
		query = query.Where("business_id = ?", strings.TrimSpace(*businessID))
	}

	var accounts []models.BankAccount
	if err := query.Find(&accounts).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list bank accounts: %v\n", err)
		os.Exit(1)
	}

	written := 0
	for i := range accounts {
		account := &accounts[i]
		if err := models.RecordDailyBalance(ctx, db, account, account.CurrentBalance, day); err != nil {
			fmt.Fprintf(os.Stderr, "failed to snapshot account %d (%s): %v\n", account.ID, account.Name, err)
			os.Exit(1)
		}
		written++
	}

	fmt.Printf("wrote %d snapshots for %s\n", written, day.Format("2006-01-02"))
}
