// Package recurring evaluates a book's monthly recurring rules and posts the
// transactions that have come due.
package recurring

import (
	"context"
	"strings"
	"time"

	"github.com/ycchuang/sheetbook/internal/logging"
	"github.com/ycchuang/sheetbook/internal/rates"
	"github.com/ycchuang/sheetbook/internal/server/models"
	"github.com/ycchuang/sheetbook/internal/store"
)

// Recorder is written into the recorder column of every auto-posted
// transaction.
const Recorder = "recurring"

// autoNotePrefix marks auto-posted entries so they are distinguishable from
// manual ones in the ledger.
const autoNotePrefix = "(auto)"

// RateSource supplies the current exchange-rate table.
type RateSource interface {
	Rates(ctx context.Context) rates.Table
}

// Engine walks the Recurring table of a book and posts each due rule.
//
// A rule is due when its lastRunPeriod differs from the current year-month
// and the month has reached the rule's day. The lastRunPeriod marker is
// advanced only after the transaction append succeeded, so a failed append
// leaves the rule due and the next run retries it. The converse race exists
// too: two concurrent runs over the same book can both see a stale marker and
// post the same rule twice. The store offers no compare-and-set to close
// that; runs for one book should not overlap.
type Engine struct {
	store store.Client
	rates RateSource
	log   logging.Logger
	now   func() time.Time
}

func NewEngine(st store.Client, rs RateSource, log logging.Logger) *Engine {
	return &Engine{store: st, rates: rs, log: log, now: time.Now}
}

// RunDue posts every rule of bookRef that is due as of asOf and returns how
// many transactions were created. Rules that fail to post are logged and left
// due; the first error is returned after the remaining rules were tried.
func (e *Engine) RunDue(ctx context.Context, bookRef string, asOf time.Time) (int, error) {
	rows, err := e.store.Read(ctx, bookRef, store.TableRecurring)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	settingRows, err := e.store.Read(ctx, bookRef, store.TableSettings)
	if err != nil {
		return 0, err
	}
	defaultCurrency := models.SettingsFromRows(settingRows).DefaultCurrency

	period := models.FormatPeriod(asOf)
	var (
		posted   int
		firstErr error
		table    rates.Table
	)
	for i, row := range rows {
		rule := models.RecurringRuleFromRow(row)
		if rule.Status != models.RecurringStatusActive {
			continue
		}
		if rule.Day <= 0 || rule.Day > 31 {
			e.log.Warn(ctx, "recurring rule has no usable day, skipping", "book", bookRef, "row", i)
			continue
		}
		if rule.AmountSource == 0 {
			e.log.Warn(ctx, "recurring rule has zero amount, skipping", "book", bookRef, "row", i)
			continue
		}
		if rule.LastRunPeriod == period || asOf.Day() < rule.Day {
			continue
		}

		currency := rule.Currency
		if currency == "" {
			currency = defaultCurrency
		}
		if table == nil {
			table = e.rates.Rates(ctx)
		}
		converted, rate := rates.Convert(rule.AmountSource, currency, defaultCurrency, table)
		if rate == 0 {
			// Leave the rule due so it posts once the rate table knows the
			// currency again.
			e.log.Warn(ctx, "no exchange rate for recurring rule, skipping",
				"book", bookRef, "row", i, "currency", currency)
			continue
		}

		tx := models.Transaction{
			Date:            asOf,
			Kind:            rule.Kind,
			MainCategory:    rule.MainCategory,
			SubCategory:     rule.SubCategory,
			Payment:         rule.Payment,
			Currency:        currency,
			AmountSource:    rule.AmountSource,
			AmountConverted: converted,
			Note:            strings.TrimSpace(autoNotePrefix + " " + rule.Note),
			Timestamp:       e.now(),
			Recorder:        Recorder,
		}
		if err := e.store.Append(ctx, bookRef, store.TableTransactions, tx.Row()); err != nil {
			e.log.Error(ctx, "recurring post failed, rule stays due", "book", bookRef, "row", i, "err", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		posted++

		if err := e.store.UpdateCell(ctx, bookRef, store.TableRecurring, i, models.RecurringColLastRun, period); err != nil {
			// The transaction landed but the marker did not advance; the next
			// run will post this rule a second time.
			e.log.Error(ctx, "recurring marker update failed after post", "book", bookRef, "row", i, "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return posted, firstErr
}
