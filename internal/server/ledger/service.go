// Package ledger is the facade the entry points talk to: sessions, recording
// and summarizing transactions, recurring-rule management, settings, and the
// book-sharing operations, all scoped to the caller's current book.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ycchuang/sheetbook/internal/common"
	"github.com/ycchuang/sheetbook/internal/logging"
	"github.com/ycchuang/sheetbook/internal/rates"
	"github.com/ycchuang/sheetbook/internal/server/auth"
	"github.com/ycchuang/sheetbook/internal/server/directory"
	"github.com/ycchuang/sheetbook/internal/server/models"
	"github.com/ycchuang/sheetbook/internal/server/recurring"
	"github.com/ycchuang/sheetbook/internal/store"
)

// MaxNoteLength bounds the free-text note of a transaction, in runes.
const MaxNoteLength = 20

// RateSource supplies the current exchange-rate table.
type RateSource = recurring.RateSource

// Service wires the directory, the recurrence engine and the book store
// behind one session-oriented API.
type Service struct {
	store  store.Client
	dir    *directory.Service
	engine *recurring.Engine
	rates  RateSource
	log    logging.Logger

	secretKey []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

func NewService(st store.Client, dir *directory.Service, engine *recurring.Engine, rs RateSource, secretKey []byte, tokenTTL time.Duration, log logging.Logger) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		store:     st,
		dir:       dir,
		engine:    engine,
		rates:     rs,
		log:       log,
		secretKey: secretKey,
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}

// Login authenticates and opens a session on the user's first book. Due
// recurring rules of that book are posted as part of login; a recurrence
// failure is logged and does not fail the login.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, books, err := s.dir.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	token, err := auth.GenerateToken(user.Email, s.secretKey, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("signing session token: %w", err)
	}
	sess := &Session{
		ID:       uuid.New(),
		Email:    user.Email,
		Nickname: user.Nickname,
		Plan:     user.Plan,
		Books:    books,
		Current:  books[0].BookRef,
		Token:    token,
	}

	if n, err := s.engine.RunDue(ctx, sess.Current, s.now()); err != nil {
		s.log.Warn(ctx, "recurring run at login failed", "book", sess.Current, "err", err)
	} else if n > 0 {
		s.log.Info(ctx, "recurring rules posted at login", "book", sess.Current, "count", n)
	}
	return sess, nil
}

// Resume rebuilds a session from a previously issued token, for clients that
// persist the token across restarts. The account gates and bindings are
// re-checked against the directory, so an account that expired or lost access
// since login cannot resume. No recurring run happens here; that stays a
// login-time side effect.
func (s *Service) Resume(ctx context.Context, token string) (*Session, error) {
	email, err := auth.GetEmailFromToken(token, s.secretKey)
	if err != nil {
		return nil, err
	}
	user, books, err := s.dir.Lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:       uuid.New(),
		Email:    user.Email,
		Nickname: user.Nickname,
		Plan:     user.Plan,
		Books:    books,
		Current:  books[0].BookRef,
		Token:    token,
	}, nil
}

// Register creates the account with its owned book and logs straight in.
func (s *Service) Register(ctx context.Context, email, password, bookRef, bookName string) (*Session, error) {
	if _, err := s.dir.Register(ctx, email, password, bookRef, bookName); err != nil {
		return nil, err
	}
	return s.Login(ctx, email, password)
}

// RequestPasswordReset mails a one-time code to the account.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	return s.dir.RequestPasswordReset(ctx, email)
}

// ResetPassword sets a new password using the mailed code. For an invited
// account this is the activation step that starts its trial.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword, newNickname string) error {
	return s.dir.ResetPassword(ctx, email, code, newPassword, newNickname)
}

// TransactionInput is what a caller supplies to record one entry.
type TransactionInput struct {
	// Date defaults to today when zero.
	Date         time.Time
	Kind         string
	MainCategory string
	SubCategory  string
	Payment      string
	// Currency defaults to the book's default currency when empty.
	Currency string
	Amount   float64
	Note     string
}

// RecordTransaction validates, converts and appends one ledger entry to the
// session's current book, recorded under the session nickname.
func (s *Service) RecordTransaction(ctx context.Context, sess *Session, in TransactionInput) (*models.Transaction, error) {
	if in.Kind != models.KindIncome && in.Kind != models.KindExpense {
		return nil, fmt.Errorf("%w: unknown kind %q", common.ErrValidation, in.Kind)
	}
	if in.Amount == 0 {
		return nil, fmt.Errorf("%w: amount must be non-zero", common.ErrValidation)
	}
	if utf8.RuneCountInString(in.Note) > MaxNoteLength {
		return nil, fmt.Errorf("%w: note longer than %d characters", common.ErrValidation, MaxNoteLength)
	}
	if in.MainCategory == "" {
		return nil, fmt.Errorf("%w: category required", common.ErrValidation)
	}

	settings, err := s.Settings(ctx, sess)
	if err != nil {
		return nil, err
	}
	currency := in.Currency
	if currency == "" {
		currency = settings.DefaultCurrency
	}
	converted, rate := rates.Convert(in.Amount, currency, settings.DefaultCurrency, s.rates.Rates(ctx))
	if rate == 0 {
		return nil, fmt.Errorf("%w: no exchange rate for %s", common.ErrValidation, currency)
	}

	date := in.Date
	if date.IsZero() {
		date = s.now()
	}
	tx := models.Transaction{
		Date:            date,
		Kind:            in.Kind,
		MainCategory:    in.MainCategory,
		SubCategory:     in.SubCategory,
		Payment:         in.Payment,
		Currency:        currency,
		AmountSource:    in.Amount,
		AmountConverted: converted,
		Note:            in.Note,
		Timestamp:       s.now(),
		Recorder:        sess.Nickname,
	}
	if err := s.store.Append(ctx, sess.Current, store.TableTransactions, tx.Row()); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Transactions returns all entries of the current book in sheet order.
func (s *Service) Transactions(ctx context.Context, sess *Session) ([]models.Transaction, error) {
	rows, err := s.store.Read(ctx, sess.Current, store.TableTransactions)
	if err != nil {
		return nil, err
	}
	out := make([]models.Transaction, len(rows))
	for i, r := range rows {
		out[i] = models.TransactionFromRow(r)
	}
	return out, nil
}

// ListBooks returns the session's bindings in directory insertion order.
func (s *Service) ListBooks(sess *Session) []models.Binding {
	return sess.Books
}

// SwitchBook re-authorizes access to ref against the directory and moves the
// session onto it. The session's binding list is refreshed on success.
func (s *Service) SwitchBook(ctx context.Context, sess *Session, ref string) error {
	b, err := s.dir.BindingFor(ctx, sess.Email, ref)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("%w: no access to book", common.ErrUnauthorized)
		}
		return err
	}
	sess.Current = b.BookRef
	for i, existing := range sess.Books {
		if existing.BookRef == b.BookRef {
			sess.Books[i] = b
			return nil
		}
	}
	sess.Books = append(sess.Books, b)
	return nil
}

// RunDueRecurring posts the current book's due rules now.
func (s *Service) RunDueRecurring(ctx context.Context, sess *Session) (int, error) {
	return s.engine.RunDue(ctx, sess.Current, s.now())
}

// AddRecurringRule appends a rule to the current book, marked never-run.
func (s *Service) AddRecurringRule(ctx context.Context, sess *Session, rule models.RecurringRule) error {
	if rule.Day < 1 || rule.Day > 31 {
		return fmt.Errorf("%w: day %d out of range", common.ErrValidation, rule.Day)
	}
	if rule.Kind != models.KindIncome && rule.Kind != models.KindExpense {
		return fmt.Errorf("%w: unknown kind %q", common.ErrValidation, rule.Kind)
	}
	if rule.AmountSource == 0 {
		return fmt.Errorf("%w: amount must be non-zero", common.ErrValidation)
	}
	rule.LastRunPeriod = models.RecurringNeverRun
	rule.Status = models.RecurringStatusActive
	return s.store.Append(ctx, sess.Current, store.TableRecurring, rule.Row())
}

// ListRecurringRules returns the current book's rules in sheet order; the
// slice index is the rowIndex DeleteRecurringRule takes.
func (s *Service) ListRecurringRules(ctx context.Context, sess *Session) ([]models.RecurringRule, error) {
	rows, err := s.store.Read(ctx, sess.Current, store.TableRecurring)
	if err != nil {
		return nil, err
	}
	out := make([]models.RecurringRule, len(rows))
	for i, r := range rows {
		out[i] = models.RecurringRuleFromRow(r)
	}
	return out, nil
}

// DeleteRecurringRule removes the rule at rowIndex from the current book.
func (s *Service) DeleteRecurringRule(ctx context.Context, sess *Session, rowIndex int) error {
	return s.store.DeleteRow(ctx, sess.Current, store.TableRecurring, rowIndex)
}

// Settings returns the current book's settings, default-filled when the
// sheet is sparse or empty.
func (s *Service) Settings(ctx context.Context, sess *Session) (models.Settings, error) {
	rows, err := s.store.Read(ctx, sess.Current, store.TableSettings)
	if err != nil {
		return models.Settings{}, err
	}
	return models.SettingsFromRows(rows), nil
}

// SaveSettings rewrites the whole Settings sheet from the typed settings.
func (s *Service) SaveSettings(ctx context.Context, sess *Session, settings models.Settings) error {
	return s.store.ReplaceAll(ctx, sess.Current, store.TableSettings, settings.Rows())
}

// Summary is the monthly roll-up of a book.
type Summary struct {
	Period  string
	Income  float64
	Expense float64
	Balance float64
	Count   int
}

// MonthlySummary totals the current book's entries for one year-month
// period, in the book's default currency.
func (s *Service) MonthlySummary(ctx context.Context, sess *Session, period string) (Summary, error) {
	if _, err := time.Parse(models.PeriodLayout, period); err != nil {
		return Summary{}, fmt.Errorf("%w: malformed period %q", common.ErrValidation, period)
	}
	txs, err := s.Transactions(ctx, sess)
	if err != nil {
		return Summary{}, err
	}

	income, expense := decimal.Zero, decimal.Zero
	count := 0
	for _, tx := range txs {
		if tx.Period() != period {
			continue
		}
		count++
		amount := decimal.NewFromFloat(tx.AmountConverted)
		switch tx.Kind {
		case models.KindIncome:
			income = income.Add(amount)
		case models.KindExpense:
			expense = expense.Add(amount)
		}
	}
	return Summary{
		Period:  period,
		Income:  income.InexactFloat64(),
		Expense: expense.InexactFloat64(),
		Balance: income.Sub(expense).InexactFloat64(),
		Count:   count,
	}, nil
}

// requireOwner verifies the operator holds the Owner binding on bookRef.
func (s *Service) requireOwner(ctx context.Context, sess *Session, bookRef string) error {
	b, err := s.dir.BindingFor(ctx, sess.Email, bookRef)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("%w: no access to book", common.ErrUnauthorized)
		}
		return err
	}
	if b.Role != models.RoleOwner {
		return fmt.Errorf("%w: owner required", common.ErrUnauthorized)
	}
	return nil
}

// Invite grants another user access to the session's current book. Only the
// book's Owner may invite.
func (s *Service) Invite(ctx context.Context, sess *Session, targetEmail, role string) (directory.InviteResult, error) {
	if err := s.requireOwner(ctx, sess, sess.Current); err != nil {
		return 0, err
	}
	bookName := sess.Current
	if b, ok := sess.Book(); ok {
		bookName = b.BookName
	}
	return s.dir.Invite(ctx, targetEmail, sess.Current, bookName, role, sess.Email)
}

// TransferOwnership hands the current book to another member. Only the Owner
// may transfer, and only away from themself.
func (s *Service) TransferOwnership(ctx context.Context, sess *Session, toEmail string) error {
	if err := s.requireOwner(ctx, sess, sess.Current); err != nil {
		return err
	}
	if err := s.dir.TransferOwnership(ctx, sess.Current, sess.Email, toEmail); err != nil {
		return err
	}
	if b, ok := sess.Book(); ok {
		b.Role = models.RoleMember
		for i := range sess.Books {
			if sess.Books[i].BookRef == sess.Current {
				sess.Books[i] = b
			}
		}
	}
	return nil
}

// Unbind removes the session user from the current book and drops it from
// the session. The remaining first book becomes current.
func (s *Service) Unbind(ctx context.Context, sess *Session) error {
	if err := s.dir.Unbind(ctx, sess.Email, sess.Current); err != nil {
		return err
	}
	kept := sess.Books[:0]
	for _, b := range sess.Books {
		if b.BookRef != sess.Current {
			kept = append(kept, b)
		}
	}
	sess.Books = kept
	if len(sess.Books) > 0 {
		sess.Current = sess.Books[0].BookRef
	} else {
		sess.Current = ""
	}
	return nil
}
