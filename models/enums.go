package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"
)

type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
)

func (t TransactionStatus) Valid() bool {
	return t == TransactionStatusPending || t == TransactionStatusCompleted
}

type TransactionSource string

const (
	TransactionSourceManual   TransactionSource = "manual"
	TransactionSourceImport   TransactionSource = "import"
	TransactionSourceBankSync TransactionSource = "bank_sync"
)

func (t TransactionSource) Valid() bool {
	switch t {
	case TransactionSourceManual, TransactionSourceImport, TransactionSourceBankSync:
		return true
	}
	return false
}

// CategoryActivity classifies a category for cash-flow statement grouping.
// Resolved once when the category is created; the reconciler never inspects
// category names.
type CategoryActivity string

const (
	CategoryActivityOperating CategoryActivity = "operating"
	CategoryActivityInvesting CategoryActivity = "investing"
	CategoryActivityFinancing CategoryActivity = "financing"
)

func (a CategoryActivity) Valid() bool {
	switch a {
	case CategoryActivityOperating, CategoryActivityInvesting, CategoryActivityFinancing:
		return true
	}
	return false
}

type ReportGranularity string

const (
	ReportGranularityMonth   ReportGranularity = "month"
	ReportGranularityQuarter ReportGranularity = "quarter"
	ReportGranularityYear    ReportGranularity = "year"
)

func (g ReportGranularity) Valid() bool {
	switch g {
	case ReportGranularityMonth, ReportGranularityQuarter, ReportGranularityYear:
		return true
	}
	return false
}

type UserRole string

const (
	UserRoleAdmin  UserRole = "A"
	UserRoleOwner  UserRole = "O"
	UserRoleMember UserRole = "M"
)

// MyDateString is a date value bound from request input ("2006-01-02" or
// "2006-01-02T15:04:05") that can be widened to business-timezone day bounds
// before querying.
type MyDateString time.Time

func (t *MyDateString) ParseDateString(str string) error {
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, str); err == nil {
			*t = MyDateString(parsed)
			return nil
		}
	}
	return errors.New("error parsing datetime")
}

func (t *MyDateString) StartOfDayUTCTime(timezone string) error {
	if t == nil {
		return nil
	}

	localTime := time.Time(*t)

	if timezone == "" {
		timezone = "UTC"
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}

	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		0, 0, 0, 0,
		location,
	)
	*t = MyDateString(localTimeInZone.In(time.UTC))
	return nil
}

func (t *MyDateString) EndOfDayUTCTime(timezone string) error {
	if t == nil {
		return nil
	}

	localTime := time.Time(*t)

	if timezone == "" {
		timezone = "UTC"
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}

	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		23, 59, 59, 999,
		location,
	)
	*t = MyDateString(localTimeInZone.In(time.UTC))
	return nil
}

// Value implements the driver.Valuer interface
func (t MyDateString) Value() (driver.Value, error) {
	return time.Time(t), nil
}

// Scan implements the sql.Scanner interface
func (t *MyDateString) Scan(value interface{}) error {
	if value == nil {
		*t = MyDateString(time.Time{})
		return nil
	}
	switch v := value.(type) {
	case time.Time:
		*t = MyDateString(v)
	default:
		return fmt.Errorf("cannot convert %T to MyDateString", value)
	}
	return nil
}
