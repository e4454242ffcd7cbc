package models

import (
	"strconv"
	"time"

	"github.com/ycchuang/sheetbook/internal/store"
)

// Transaction kinds.
const (
	KindIncome  = "Income"
	KindExpense = "Expense"
)

// Transaction is an immutable-once-written ledger entry. There is no update
// or delete path; history tables accumulate.
//
// Transactions table columns:
// date | kind | mainCat | subCat | payment | currency | amountSource |
// amountConverted | note | timestamp | recorder
type Transaction struct {
	Date            time.Time
	Kind            string
	MainCategory    string
	SubCategory     string
	Payment         string
	Currency        string
	AmountSource    float64
	AmountConverted float64
	Note            string
	Timestamp       time.Time
	Recorder        string
}

// TransactionFromRow decodes a Transactions row. Malformed amounts decode as
// zero rather than failing the whole read.
func TransactionFromRow(r store.Row) Transaction {
	t := Transaction{
		Kind:         r.Cell(1),
		MainCategory: r.Cell(2),
		SubCategory:  r.Cell(3),
		Payment:      r.Cell(4),
		Currency:     r.Cell(5),
		Note:         r.Cell(8),
		Recorder:     r.Cell(10),
	}
	t.Date, _ = time.Parse(DateLayout, r.Cell(0))
	t.AmountSource, _ = strconv.ParseFloat(r.Cell(6), 64)
	t.AmountConverted, _ = strconv.ParseFloat(r.Cell(7), 64)
	t.Timestamp, _ = time.Parse(time.RFC3339, r.Cell(9))
	return t
}

// Row encodes the transaction in Transactions column order.
func (t Transaction) Row() store.Row {
	return store.Row{
		t.Date.Format(DateLayout),
		t.Kind,
		t.MainCategory,
		t.SubCategory,
		t.Payment,
		t.Currency,
		formatAmount(t.AmountSource),
		formatAmount(t.AmountConverted),
		t.Note,
		t.Timestamp.Format(time.RFC3339),
		t.Recorder,
	}
}

// Period returns the year-month token of the transaction date.
func (t Transaction) Period() string { return FormatPeriod(t.Date) }

func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
