// category-activity-backfill re-resolves the cash-flow activity of existing
// categories from their names. Intended as a one-off migration for rows
// created before the activity column existed; user overrides are kept unless
// -force is set.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ledgerline/bookkeeper_backend/config"
	"github.com/ledgerline/bookkeeper_backend/models"
)

func main() {
	businessID := flag.String("business-id", "", "Optional: backfill only one business. If empty, backfills all.")
	force := flag.Bool("force", false, "Overwrite non-operating activities as well")
	dryRun := flag.Bool("dry-run", false, "Print planned changes without writing")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	query := db.WithContext(ctx).Model(&models.Category{})
	if strings.TrimSpace(*businessID) != "" {
		query = query.Where("business_id = ?", strings.TrimSpace(*businessID))
	}

	var categories []models.Category
	if err := query.Find(&categories).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list categories: %v\n", err)
		os.Exit(1)
	}

	changed := 0
	for _, category := range categories {
		resolved := models.DefaultActivityForName(category.Name)
		if resolved == category.Activity {
			continue
		}
		// A non-operating value that differs from the keyword default was
		// set by hand; leave it alone unless forced.
		if !*force && category.Activity != models.CategoryActivityOperating {
			continue
		}

		fmt.Printf("%s: %q %s -> %s\n", category.BusinessId, category.Name, category.Activity, resolved)
		changed++
		if *dryRun {
			continue
		}
		if err := db.WithContext(ctx).Model(&models.Category{}).
			Where("id = ?", category.ID).
			Update("activity", resolved).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to update category %d: %v\n", category.ID, err)
			os.Exit(1)
		}
	}

	if *dryRun {
		fmt.Printf("dry run: %d categories would change\n", changed)
		return
	}
	fmt.Printf("updated %d categories\n", changed)
}
