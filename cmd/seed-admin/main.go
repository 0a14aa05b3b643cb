// seed-admin creates a business plus its admin user and seeds the default
// category set. Safe to rerun: an existing admin user gets its password and
// role refreshed instead of a duplicate row.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... seed-admin -password <pw>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/ledgerline/bookkeeper_backend/config"
	"github.com/ledgerline/bookkeeper_backend/models"
	"github.com/ledgerline/bookkeeper_backend/utils"
	"gorm.io/gorm"
)

const (
	defaultAdminUsername = "bookkeeperAdmin"
	defaultAdminName     = "Bookkeeper Admin"
)

func main() {
	businessName := flag.String("business-name", "Demo Business", "Business to create or reuse")
	username := flag.String("username", defaultAdminUsername, "Admin username")
	password := flag.String("password", "", "Admin password (required)")
	flag.Parse()

	if strings.TrimSpace(*password) == "" {
		fmt.Fprintln(os.Stderr, "-password is required")
		os.Exit(2)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	var business models.Business
	err := db.WithContext(ctx).Where("name = ?", *businessName).First(&business).Error
	if err == gorm.ErrRecordNotFound {
		business = models.Business{
			ID:       uuid.New(),
			Name:     *businessName,
			Timezone: "UTC",
		}
		if err := db.WithContext(ctx).Create(&business).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create business: %v\n", err)
			os.Exit(1)
		}
		if err := models.SeedDefaultCategories(ctx, business.ID.String()); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed categories: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created business %q (%s) with default categories\n", business.Name, business.ID)
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup business: %v\n", err)
		os.Exit(1)
	}

	hashed, err := utils.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	var existing models.User
	err = db.WithContext(ctx).Where("username = ?", *username).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		user := models.User{
			BusinessId: business.ID.String(),
			Username:   *username,
			Name:       defaultAdminName,
			Password:   string(hashed),
			IsActive:   utils.NewTrue(),
			Role:       models.UserRoleAdmin,
		}
		if err := db.WithContext(ctx).Create(&user).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user %q\n", *username)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
		os.Exit(1)
	}

	if err := db.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", *username).
		Updates(map[string]any{
			"password":  string(hashed),
			"role":      models.UserRoleAdmin,
			"is_active": true,
		}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	_ = existing.RemoveInstanceRedis()
	fmt.Printf("Updated admin user %q\n", *username)
}
