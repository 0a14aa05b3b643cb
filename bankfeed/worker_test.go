package bankfeed_test

import (
	"testing"
	"time"

	"github.com/ledgerline/bookkeeper_backend/bankfeed"
	"github.com/ledgerline/bookkeeper_backend/models"
	"github.com/shopspring/decimal"
)

func feedTxn(id int, txnType models.TransactionType, amount string, accountId int, date time.Time) *models.Transaction {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		panic(err)
	}
	return &models.Transaction{
		ID:              id,
		Amount:          d,
		Type:            txnType,
		TransactionDate: date,
		BankAccountId:   &accountId,
		Source:          models.TransactionSourceBankSync,
	}
}

func TestMatchTransferPairs(t *testing.T) {
	base := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	out := feedTxn(1, models.TransactionTypeExpense, "500", 1, base)
	in := feedTxn(2, models.TransactionTypeIncome, "500", 2, base.Add(24*time.Hour))
	unrelated := feedTxn(3, models.TransactionTypeExpense, "75", 1, base)

	pairs := bankfeed.MatchTransferPairs([]*models.Transaction{out, in, unrelated})
	if pairs != 1 {
		t.Fatalf("pairs = %d, want 1", pairs)
	}
	if !out.IsInternalTransfer || !in.IsInternalTransfer {
		t.Error("matched pair not flagged")
	}
	if unrelated.IsInternalTransfer {
		t.Error("unrelated transaction flagged")
	}
}

func TestMatchTransferPairsSameAccountRejected(t *testing.T) {
	base := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	out := feedTxn(1, models.TransactionTypeExpense, "500", 1, base)
	in := feedTxn(2, models.TransactionTypeIncome, "500", 1, base)

	if pairs := bankfeed.MatchTransferPairs([]*models.Transaction{out, in}); pairs != 0 {
		t.Errorf("pairs = %d, want 0 for same-account legs", pairs)
	}
	if out.IsInternalTransfer || in.IsInternalTransfer {
		t.Error("same-account legs must not be flagged")
	}
}

func TestMatchTransferPairsWindow(t *testing.T) {
	base := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	out := feedTxn(1, models.TransactionTypeExpense, "500", 1, base)
	late := feedTxn(2, models.TransactionTypeIncome, "500", 2, base.Add(4*24*time.Hour))

	if pairs := bankfeed.MatchTransferPairs([]*models.Transaction{out, late}); pairs != 0 {
		t.Errorf("pairs = %d, want 0 outside the 3-day window", pairs)
	}

	edge := feedTxn(3, models.TransactionTypeIncome, "500", 2, base.Add(3*24*time.Hour))
	if pairs := bankfeed.MatchTransferPairs([]*models.Transaction{out, edge}); pairs != 1 {
		t.Errorf("pairs = %d, want 1 exactly at the window edge", pairs)
	}
}

func TestMatchTransferPairsEachLegUsedOnce(t *testing.T) {
	base := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	out1 := feedTxn(1, models.TransactionTypeExpense, "500", 1, base)
	out2 := feedTxn(2, models.TransactionTypeExpense, "500", 1, base.Add(time.Hour))
	in := feedTxn(3, models.TransactionTypeIncome, "500", 2, base.Add(2*time.Hour))

	pairs := bankfeed.MatchTransferPairs([]*models.Transaction{out1, out2, in})
	if pairs != 1 {
		t.Fatalf("pairs = %d, want 1", pairs)
	}
	flagged := 0
	for _, txn := range []*models.Transaction{out1, out2, in} {
		if txn.IsInternalTransfer {
			flagged++
		}
	}
	if flagged != 2 {
		t.Errorf("flagged = %d legs, want exactly 2", flagged)
	}
}

func TestMatchTransferPairsSkipsManualAndFlagged(t *testing.T) {
	base := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	out := feedTxn(1, models.TransactionTypeExpense, "500", 1, base)
	out.IsInternalTransfer = true
	in := feedTxn(2, models.TransactionTypeIncome, "500", 2, base)

	if pairs := bankfeed.MatchTransferPairs([]*models.Transaction{out, in}); pairs != 0 {
		t.Errorf("pairs = %d, want 0 when a leg is already flagged", pairs)
	}

	noAccount := feedTxn(3, models.TransactionTypeExpense, "200", 1, base)
	noAccount.BankAccountId = nil
	counterpart := feedTxn(4, models.TransactionTypeIncome, "200", 2, base)
	if pairs := bankfeed.MatchTransferPairs([]*models.Transaction{noAccount, counterpart}); pairs != 0 {
		t.Errorf("pairs = %d, want 0 when a leg has no bank account", pairs)
	}
}

func TestCursorStateRoundTrip(t *testing.T) {
	state := bankfeed.CursorState{
		Transactions: bankfeed.CursorEntry{UpdatedSince: "2025-03-01T00:00:00Z", Cursor: "abc"},
	}
	decoded := bankfeed.DecodeCursorState(bankfeed.EncodeCursorState(state))
	if decoded != state {
		t.Errorf("decoded %+v, want %+v", decoded, state)
	}

	if got := bankfeed.DecodeCursorState([]byte("{broken")); got != (bankfeed.CursorState{}) {
		t.Errorf("malformed state should decode to zero value, got %+v", got)
	}
	if got := bankfeed.DecodeCursorState(nil); got != (bankfeed.CursorState{}) {
		t.Errorf("empty state should decode to zero value, got %+v", got)
	}
}
