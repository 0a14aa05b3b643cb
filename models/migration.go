package models

import (
	"log"

	"github.com/ledgerline/bookkeeper_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{}, &User{},
		&Category{},
		&BankAccount{}, &BankAccountDailyBalance{},
		&Transaction{},
		&BankFeedConnection{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
