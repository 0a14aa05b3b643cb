// recategorize-backfill runs AI categorization over the transactions still
// waiting for review, business by business. The HTTP trigger only covers the
// caller's own business; this binary sweeps everything, so it can be pointed
// at history imported before categorization was enabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ledgerline/bookkeeper_backend/config"
	"github.com/ledgerline/bookkeeper_backend/models"
	"github.com/ledgerline/bookkeeper_backend/utils"
	"github.com/ledgerline/bookkeeper_backend/workflow"
)

func main() {
	businessID := flag.String("business-id", "", "Optional: categorize only one business. If empty, sweeps all.")
	passes := flag.Int("passes", 1, "Batches to run per business (each pass handles one batch)")
	flag.Parse()

	if !config.AICategorizationEnabled() {
		fmt.Fprintln(os.Stderr, "AI categorization is disabled (set ENABLE_AI_CATEGORIZATION=true)")
		os.Exit(2)
	}
	if *passes < 1 {
		fmt.Fprintln(os.Stderr, "-passes must be at least 1")
		os.Exit(2)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	var businessIds []string
	if strings.TrimSpace(*businessID) != "" {
		businessIds = []string{strings.TrimSpace(*businessID)}
	} else if err := db.WithContext(ctx).Model(&models.Business{}).
		Pluck("id", &businessIds).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list businesses: %v\n", err)
		os.Exit(1)
	}

	total := 0
	failed := 0
	for _, id := range businessIds {
		businessCtx := utils.SetBusinessIdInContext(ctx, id)
		for pass := 0; pass < *passes; pass++ {
			applied, err := workflow.CategorizePendingTransactions(businessCtx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "business %s: %v\n", id, err)
				failed++
				break
			}
			total += applied
			if applied == 0 {
				break
			}
		}
	}

	fmt.Printf("categorized %d transactions across %d businesses (%d failed)\n",
		total, len(businessIds), failed)
	if failed > 0 {
		os.Exit(1)
	}
}
