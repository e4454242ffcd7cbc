package ledger

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ycchuang/sheetbook/internal/common"
	"github.com/ycchuang/sheetbook/internal/logging"
	"github.com/ycchuang/sheetbook/internal/rates"
	"github.com/ycchuang/sheetbook/internal/server/auth"
	"github.com/ycchuang/sheetbook/internal/server/directory"
	"github.com/ycchuang/sheetbook/internal/server/models"
	"github.com/ycchuang/sheetbook/internal/server/recurring"
	"github.com/ycchuang/sheetbook/internal/store"
	"github.com/ycchuang/sheetbook/internal/store/memory"
)

const dirBook = "dir-book"

type fixedRates struct{ table rates.Table }

func (f fixedRates) Rates(ctx context.Context) rates.Table { return f.table }

type nopNotifier struct{}

func (nopNotifier) SendCode(ctx context.Context, to, code, subject string) error { return nil }
func (nopNotifier) SendInvite(ctx context.Context, to, inviter, book string) error {
	return nil
}

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	mem := memory.New()
	log := logging.NewNopLogger()
	rs := fixedRates{table: rates.Table{"TWD": 1, "USD": 32, "JPY": 0.21}}
	dir := directory.NewService(mem, nopNotifier{}, dirBook, 30, log)
	engine := recurring.NewEngine(mem, rs, log)
	return NewService(mem, dir, engine, rs, []byte("test-secret"), time.Hour, log), mem
}

func openSession(t *testing.T, svc *Service, email, bookRef string) *Session {
	t.Helper()
	sess, err := svc.Register(context.Background(), email, "secret1", bookRef, "Book of "+email)
	require.NoError(t, err)
	return sess
}

func TestRegisterOpensSession(t *testing.T) {
	svc, _ := newTestService(t)

	sess := openSession(t, svc, "ann@example.com", "book-a")

	assert.Equal(t, "ann@example.com", sess.Email)
	assert.Equal(t, "ann", sess.Nickname)
	assert.Equal(t, models.PlanTrial, sess.Plan)
	assert.Equal(t, "book-a", sess.Current)
	assert.NotEmpty(t, sess.Token)
	assert.NotEqual(t, sess.ID.String(), "00000000-0000-0000-0000-000000000000")
	require.Len(t, sess.Books, 1)
	assert.Equal(t, models.RoleOwner, sess.Books[0].Role)
}

func TestLoginFailures(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	openSession(t, svc, "ann@example.com", "book-a")

	_, err := svc.Login(ctx, "ann@example.com", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredential)

	_, err = svc.Login(ctx, "ghost@example.com", "secret1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestLoginPostsDueRecurringRules(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	openSession(t, svc, "ann@example.com", "book-a")

	rule := models.RecurringRule{
		Day: 1, Kind: models.KindExpense, MainCategory: "Housing",
		AmountSource: 9000, Note: "rent",
		LastRunPeriod: models.RecurringNeverRun, Status: models.RecurringStatusActive,
	}
	require.NoError(t, mem.Append(ctx, "book-a", store.TableRecurring, rule.Row()))

	sess, err := svc.Login(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)

	txs, err := svc.Transactions(ctx, sess)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "(auto) rent", txs[0].Note)
	assert.Equal(t, recurring.Recorder, txs[0].Recorder)
}

func TestResumeRebuildsSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess := openSession(t, svc, "ann@example.com", "book-a")
	bob := openSession(t, svc, "bob@example.com", "book-b")
	_, err := svc.Invite(ctx, bob, "ann@example.com", models.RoleMember)
	require.NoError(t, err)

	resumed, err := svc.Resume(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", resumed.Email)
	assert.Equal(t, "ann", resumed.Nickname)
	assert.Equal(t, "book-a", resumed.Current)
	assert.Equal(t, sess.Token, resumed.Token)
	assert.NotEqual(t, sess.ID, resumed.ID)
	// Bindings granted after login show up on resume.
	assert.Len(t, resumed.Books, 2)
}

func TestResumeRejectsBadTokens(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	openSession(t, svc, "ann@example.com", "book-a")

	_, err := svc.Resume(ctx, "not-a-token")
	assert.ErrorIs(t, err, common.ErrInvalidCredential)

	forged, err := auth.GenerateToken("ann@example.com", []byte("other-secret"), time.Hour)
	require.NoError(t, err)
	_, err = svc.Resume(ctx, forged)
	assert.ErrorIs(t, err, common.ErrInvalidCredential)

	stale, err := auth.GenerateToken("ann@example.com", []byte("test-secret"), -time.Minute)
	require.NoError(t, err)
	_, err = svc.Resume(ctx, stale)
	assert.ErrorIs(t, err, common.ErrExpired)
}

func TestRecordTransaction(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess := openSession(t, svc, "ann@example.com", "book-a")

	tx, err := svc.RecordTransaction(ctx, sess, TransactionInput{
		Date:         time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC),
		Kind:         models.KindExpense,
		MainCategory: "Food",
		SubCategory:  "Dinner",
		Payment:      "Cash",
		Currency:     "USD",
		Amount:       10,
		Note:         "valentine",
	})
	require.NoError(t, err)
	assert.Equal(t, 10.0, tx.AmountSource)
	assert.Equal(t, 320.0, tx.AmountConverted)
	assert.Equal(t, "ann", tx.Recorder)

	txs, err := svc.Transactions(ctx, sess)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "valentine", txs[0].Note)
}

func TestRecordTransactionDefaultsCurrencyAndDate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess := openSession(t, svc, "ann@example.com", "book-a")

	tx, err := svc.RecordTransaction(ctx, sess, TransactionInput{
		Kind:         models.KindIncome,
		MainCategory: "Income",
		Amount:       100,
	})
	require.NoError(t, err)
	assert.Equal(t, "TWD", tx.Currency)
	assert.Equal(t, 100.0, tx.AmountConverted)
	assert.False(t, tx.Date.IsZero())
}

func TestRecordTransactionValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess := openSession(t, svc, "ann@example.com", "book-a")

	cases := []struct {
		name string
		in   TransactionInput
	}{
		{"unknown kind", TransactionInput{Kind: "Transfer", MainCategory: "Food", Amount: 1}},
		{"zero amount", TransactionInput{Kind: models.KindExpense, MainCategory: "Food"}},
		{"long note", TransactionInput{Kind: models.KindExpense, MainCategory: "Food", Amount: 1, Note: strings.Repeat("x", 21)}},
		{"no category", TransactionInput{Kind: models.KindExpense, Amount: 1}},
		{"unknown currency", TransactionInput{Kind: models.KindExpense, MainCategory: "Food", Amount: 1, Currency: "XYZ"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RecordTransaction(ctx, sess, tc.in)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestMonthlySummary(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess := openSession(t, svc, "ann@example.com", "book-a")

	post := func(day int, kind string, amount float64) {
		_, err := svc.RecordTransaction(ctx, sess, TransactionInput{
			Date: time.Date(2025, 2, day, 0, 0, 0, 0, time.UTC),
			Kind: kind, MainCategory: "Misc", Amount: amount,
		})
		require.NoError(t, err)
	}
	post(1, models.KindIncome, 50000)
	post(5, models.KindExpense, 120.5)
	post(20, models.KindExpense, 79.5)
	// Different month, must not count.
	_, err := svc.RecordTransaction(ctx, sess, TransactionInput{
		Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Kind: models.KindExpense, MainCategory: "Misc", Amount: 999,
	})
	require.NoError(t, err)

	sum, err := svc.MonthlySummary(ctx, sess, "2025-02")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, sum.Income)
	assert.Equal(t, 200.0, sum.Expense)
	assert.Equal(t, 49800.0, sum.Balance)
	assert.Equal(t, 3, sum.Count)

	_, err = svc.MonthlySummary(ctx, sess, "February 2025")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSwitchBook(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ann := openSession(t, svc, "ann@example.com", "book-a")
	bob := openSession(t, svc, "bob@example.com", "book-b")

	// Bob has no binding on ann's book yet.
	err := svc.SwitchBook(ctx, bob, "book-a")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = svc.Invite(ctx, ann, "bob@example.com", models.RoleMember)
	require.NoError(t, err)

	require.NoError(t, svc.SwitchBook(ctx, bob, "book-a"))
	assert.Equal(t, "book-a", bob.Current)
	assert.Len(t, bob.Books, 2)
}

func TestInviteRequiresOwner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ann := openSession(t, svc, "ann@example.com", "book-a")
	bob := openSession(t, svc, "bob@example.com", "book-b")

	_, err := svc.Invite(ctx, ann, "bob@example.com", models.RoleMember)
	require.NoError(t, err)
	require.NoError(t, svc.SwitchBook(ctx, bob, "book-a"))

	// A member cannot share the book further.
	_, err = svc.Invite(ctx, bob, "carol@example.com", models.RoleMember)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestTransferThenUnbind(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ann := openSession(t, svc, "ann@example.com", "book-a")
	bob := openSession(t, svc, "bob@example.com", "book-b")
	_, err := svc.Invite(ctx, ann, "bob@example.com", models.RoleMember)
	require.NoError(t, err)

	// The owner cannot leave while owning.
	err = svc.Unbind(ctx, ann)
	assert.ErrorIs(t, err, common.ErrConflict)

	require.NoError(t, svc.TransferOwnership(ctx, ann, "bob@example.com"))
	if b, ok := ann.Book(); assert.True(t, ok) {
		assert.Equal(t, models.RoleMember, b.Role)
	}

	require.NoError(t, svc.Unbind(ctx, ann))
	assert.Empty(t, ann.Books)
	assert.Empty(t, ann.Current)

	// The new owner can share the book again.
	require.NoError(t, svc.SwitchBook(ctx, bob, "book-a"))
	_, err = svc.Invite(ctx, bob, "ann@example.com", models.RoleMember)
	require.NoError(t, err)
}

func TestRecurringRuleManagement(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess := openSession(t, svc, "ann@example.com", "book-a")

	err := svc.AddRecurringRule(ctx, sess, models.RecurringRule{Day: 0, Kind: models.KindExpense, AmountSource: 1})
	assert.ErrorIs(t, err, common.ErrValidation)
	err = svc.AddRecurringRule(ctx, sess, models.RecurringRule{Day: 5, Kind: "Transfer", AmountSource: 1})
	assert.ErrorIs(t, err, common.ErrValidation)
	err = svc.AddRecurringRule(ctx, sess, models.RecurringRule{Day: 5, Kind: models.KindExpense})
	assert.ErrorIs(t, err, common.ErrValidation)

	require.NoError(t, svc.AddRecurringRule(ctx, sess, models.RecurringRule{
		Day: 5, Kind: models.KindExpense, MainCategory: "Housing", AmountSource: 9000, Note: "rent",
	}))
	require.NoError(t, svc.AddRecurringRule(ctx, sess, models.RecurringRule{
		Day: 10, Kind: models.KindIncome, MainCategory: "Income", AmountSource: 50000,
	}))

	rules, err := svc.ListRecurringRules(ctx, sess)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, models.RecurringNeverRun, rules[0].LastRunPeriod)
	assert.Equal(t, models.RecurringStatusActive, rules[0].Status)

	require.NoError(t, svc.DeleteRecurringRule(ctx, sess, 0))
	rules, err = svc.ListRecurringRules(ctx, sess)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 10, rules[0].Day)
}

func TestSettingsRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess := openSession(t, svc, "ann@example.com", "book-a")

	// Empty sheet serves defaults.
	got, err := svc.Settings(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), got)

	custom := models.Settings{
		Categories:      []models.Category{{Main: "Travel", Subs: []string{"Flights", "Hotels"}}},
		Payments:        []string{"Card", "Cash"},
		Currencies:      []string{"TWD", "USD"},
		DefaultCurrency: "USD",
	}
	require.NoError(t, svc.SaveSettings(ctx, sess, custom))

	got, err = svc.Settings(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, custom, got)
}
