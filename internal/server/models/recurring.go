package models

import (
	"strconv"
	"strings"

	"github.com/ycchuang/sheetbook/internal/store"
)

// RecurringStatusActive marks a rule the engine should evaluate.
const RecurringStatusActive = "Active"

// RecurringNeverRun is the sentinel written into lastRunPeriod when a rule is
// created. Any token that is not a well-formed period compares unequal to
// every current period, which is all the engine needs.
const RecurringNeverRun = "New"

// RecurringRule is a template for one monthly posting.
//
// Recurring table columns:
// day | kind | mainCat | subCat | payment | currency | amountSource | note |
// lastRunPeriod | status
type RecurringRule struct {
	Day           int
	Kind          string
	MainCategory  string
	SubCategory   string
	Payment       string
	Currency      string
	AmountSource  float64
	Note          string
	LastRunPeriod string
	Status        string
}

// RecurringRuleFromRow decodes a Recurring row. A malformed day decodes as
// zero; the engine skips such rules. An empty status means Active.
func RecurringRuleFromRow(r store.Row) RecurringRule {
	rule := RecurringRule{
		Kind:          r.Cell(1),
		MainCategory:  r.Cell(2),
		SubCategory:   r.Cell(3),
		Payment:       r.Cell(4),
		Currency:      r.Cell(5),
		Note:          r.Cell(7),
		LastRunPeriod: strings.TrimSpace(r.Cell(8)),
		Status:        r.Cell(9),
	}
	rule.Day, _ = strconv.Atoi(strings.TrimSpace(r.Cell(0)))
	rule.AmountSource, _ = strconv.ParseFloat(r.Cell(6), 64)
	if rule.LastRunPeriod == "" {
		rule.LastRunPeriod = RecurringNeverRun
	}
	if rule.Status == "" {
		rule.Status = RecurringStatusActive
	}
	return rule
}

// Row encodes the rule in Recurring column order.
func (r RecurringRule) Row() store.Row {
	return store.Row{
		strconv.Itoa(r.Day),
		r.Kind,
		r.MainCategory,
		r.SubCategory,
		r.Payment,
		r.Currency,
		formatAmount(r.AmountSource),
		r.Note,
		r.LastRunPeriod,
		r.Status,
	}
}

// RecurringColLastRun is the one-based column of the lastRunPeriod marker.
const RecurringColLastRun = 9
