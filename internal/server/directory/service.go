// Package directory manages the Users and Book_Bindings tables living in the
// singleton directory book: credential checks, trial/subscription expiry,
// and the Owner/Member role invariants.
//
// The backing store has no transactions, so every multi-row mutation here is
// a sequence of single writes that can partially fail. The policy throughout
// is: a failed write is assumed not to have happened, intermediate states
// are documented per operation, and retries are made safe through idempotent
// checks rather than locks.
package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ycchuang/sheetbook/internal/common"
	"github.com/ycchuang/sheetbook/internal/cryptox"
	"github.com/ycchuang/sheetbook/internal/logging"
	"github.com/ycchuang/sheetbook/internal/mailer"
	"github.com/ycchuang/sheetbook/internal/server/models"
	"github.com/ycchuang/sheetbook/internal/store"
)

// DefaultTrialDays is the trial window granted at registration and at
// activation of an invited account.
const DefaultTrialDays = 30

// resetCodeValidity bounds how long an issued password-reset code works.
const resetCodeValidity = 15 * time.Minute

type resetCode struct {
	code    string
	expires time.Time
}

// Service is the account and binding directory.
type Service struct {
	store     store.Client
	notifier  mailer.Notifier
	log       logging.Logger
	dirBook   string
	trialDays int
	now       func() time.Time

	// Issued reset codes live in memory only; a restart invalidates them
	// and the user simply requests a new one.
	mu         sync.Mutex
	resetCodes map[string]resetCode
}

func NewService(st store.Client, notifier mailer.Notifier, dirBook string, trialDays int, log logging.Logger) *Service {
	if trialDays <= 0 {
		trialDays = DefaultTrialDays
	}
	return &Service{
		store:      st,
		notifier:   notifier,
		log:        log,
		dirBook:    dirBook,
		trialDays:  trialDays,
		now:        time.Now,
		resetCodes: make(map[string]resetCode),
	}
}

func (s *Service) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// findUser returns the user row and its index, or found=false.
func (s *Service) findUser(ctx context.Context, email string) (int, models.User, bool, error) {
	rows, err := s.store.Read(ctx, s.dirBook, store.TableUsers)
	if err != nil {
		return 0, models.User{}, false, err
	}
	for i, r := range rows {
		if r.Cell(0) == email {
			return i, models.UserFromRow(r), true, nil
		}
	}
	return 0, models.User{}, false, nil
}

// bindingsFor returns the bindings for email in table insertion order,
// together with each binding's row index.
func (s *Service) bindingsFor(ctx context.Context, email string) ([]models.Binding, []int, error) {
	rows, err := s.store.Read(ctx, s.dirBook, store.TableBindings)
	if err != nil {
		return nil, nil, err
	}
	var out []models.Binding
	var idx []int
	for i, r := range rows {
		b := models.BindingFromRow(r)
		if b.Email == email {
			out = append(out, b)
			idx = append(idx, i)
		}
	}
	return out, idx, nil
}

// findBinding locates the single binding matching both email and bookRef.
func (s *Service) findBinding(ctx context.Context, email, bookRef string) (int, models.Binding, bool, error) {
	rows, err := s.store.Read(ctx, s.dirBook, store.TableBindings)
	if err != nil {
		return 0, models.Binding{}, false, err
	}
	for i, r := range rows {
		b := models.BindingFromRow(r)
		if b.Email == email && b.BookRef == bookRef {
			return i, b, true, nil
		}
	}
	return 0, models.Binding{}, false, nil
}

// BindingFor returns the binding granting email access to bookRef, or a
// not-found error. Callers use it to re-authorize book access.
func (s *Service) BindingFor(ctx context.Context, email, bookRef string) (models.Binding, error) {
	_, b, found, err := s.findBinding(ctx, email, bookRef)
	if err != nil {
		return models.Binding{}, err
	}
	if found {
		return b, nil
	}
	// Mirror Authenticate: a user with zero binding rows implicitly owns
	// their originally registered book.
	_, user, userFound, err := s.findUser(ctx, email)
	if err != nil {
		return models.Binding{}, err
	}
	if userFound && user.BookRef == bookRef {
		if all, _, err := s.bindingsFor(ctx, email); err != nil {
			return models.Binding{}, err
		} else if len(all) == 0 {
			return models.Binding{Email: email, BookRef: bookRef, BookName: "My Book", Role: models.RoleOwner}, nil
		}
	}
	return models.Binding{}, fmt.Errorf("%w: no binding for %s on book", common.ErrNotFound, email)
}

// ownerOf returns the Owner binding for a book, if any.
func (s *Service) ownerOf(ctx context.Context, bookRef string) (int, models.Binding, bool, error) {
	rows, err := s.store.Read(ctx, s.dirBook, store.TableBindings)
	if err != nil {
		return 0, models.Binding{}, false, err
	}
	for i, r := range rows {
		b := models.BindingFromRow(r)
		if b.BookRef == bookRef && b.Role == models.RoleOwner {
			return i, b, true, nil
		}
	}
	return 0, models.Binding{}, false, nil
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}

// Register creates a User (plan Trial) and its Owner binding.
//
// The two appends are not atomic. If the binding append fails, the directory
// is left with a user but no binding; the operation is retryable, and a
// retry with matching credentials detects the unbound user and appends only
// the missing binding instead of failing with a duplicate.
func (s *Service) Register(ctx context.Context, email, password, bookRef, bookName string) (*models.User, error) {
	if !validEmail(email) {
		return nil, fmt.Errorf("%w: malformed email %q", common.ErrValidation, email)
	}
	if bookRef == "" {
		return nil, fmt.Errorf("%w: book reference required", common.ErrValidation)
	}
	if err := cryptox.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	_, existing, found, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if found {
		bindings, _, err := s.bindingsFor(ctx, email)
		if err != nil {
			return nil, err
		}
		if len(bindings) > 0 || !cryptox.CheckPassword(existing.PasswordHash, password) {
			return nil, fmt.Errorf("%w: user %s", common.ErrAlreadyExists, email)
		}
		// Retry after a partial registration: the user row landed but the
		// binding append failed. Finish the missing half. A legacy user row
		// may predate the book-reference column, so fall back to the
		// requested book.
		repairRef := existing.BookRef
		if repairRef == "" {
			repairRef = bookRef
		}
		s.log.Info(ctx, "completing partial registration", "email", email, "book", repairRef)
		if err := s.appendBinding(ctx, email, repairRef, bookName, models.RoleOwner); err != nil {
			return nil, err
		}
		return &existing, nil
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	today := s.today()
	user := models.User{
		Email:        email,
		PasswordHash: hash,
		JoinDate:     today,
		Status:       models.StatusActive,
		ExpiryDate:   today.AddDate(0, 0, s.trialDays),
		Plan:         models.PlanTrial,
		Nickname:     models.NicknameFromEmail(email),
		BookRef:      bookRef,
	}
	if err := s.store.Append(ctx, s.dirBook, store.TableUsers, user.Row()); err != nil {
		return nil, err
	}
	if err := s.appendBinding(ctx, email, bookRef, bookName, models.RoleOwner); err != nil {
		// User row exists, binding does not. Surface the store error; the
		// retry path above repairs this state.
		return nil, err
	}
	return &user, nil
}

func (s *Service) appendBinding(ctx context.Context, email, bookRef, bookName, role string) error {
	b := models.Binding{Email: email, BookRef: bookRef, BookName: bookName, Role: role}
	return s.store.Append(ctx, s.dirBook, store.TableBindings, b.Row())
}

// Authenticate verifies credentials and the subscription gate, and returns
// the user with their bindings in directory insertion order. A user with no
// binding rows gets a synthesized Owner binding to their originally
// registered book.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, []models.Binding, error) {
	_, user, found, err := s.findUser(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, fmt.Errorf("%w: user %s", common.ErrNotFound, email)
	}
	if cryptox.IsResetRequired(user.PasswordHash) {
		return nil, nil, common.ErrResetRequired
	}
	if !cryptox.CheckPassword(user.PasswordHash, password) {
		return nil, nil, fmt.Errorf("%w: wrong password", common.ErrInvalidCredential)
	}
	if err := s.subscriptionGate(user); err != nil {
		return nil, nil, err
	}
	bindings, err := s.booksOf(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return &user, bindings, nil
}

// Lookup loads a user and their bindings without a credential check. It
// applies the same account gates as Authenticate and backs session resume,
// where possession of a valid token stands in for the password.
func (s *Service) Lookup(ctx context.Context, email string) (*models.User, []models.Binding, error) {
	_, user, found, err := s.findUser(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, fmt.Errorf("%w: user %s", common.ErrNotFound, email)
	}
	if cryptox.IsResetRequired(user.PasswordHash) {
		return nil, nil, common.ErrResetRequired
	}
	if err := s.subscriptionGate(user); err != nil {
		return nil, nil, err
	}
	bindings, err := s.booksOf(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return &user, bindings, nil
}

// subscriptionGate enforces account expiry. Only VIP bypasses it; Trial and
// Dev are both subject to it.
func (s *Service) subscriptionGate(user models.User) error {
	if user.Plan == models.PlanVIP {
		return nil
	}
	if user.ExpiryDate.IsZero() {
		return fmt.Errorf("%w: malformed expiry date", common.ErrValidation)
	}
	if s.today().After(user.ExpiryDate) {
		return fmt.Errorf("%w: since %s", common.ErrExpired, user.ExpiryDate.Format(models.DateLayout))
	}
	return nil
}

// booksOf lists the user's bindings in directory insertion order. A user
// with no binding rows gets a synthesized Owner binding to their originally
// registered book.
func (s *Service) booksOf(ctx context.Context, user models.User) ([]models.Binding, error) {
	bindings, _, err := s.bindingsFor(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if len(bindings) == 0 {
		bindings = []models.Binding{{
			Email:    user.Email,
			BookRef:  user.BookRef,
			BookName: "My Book",
			Role:     models.RoleOwner,
		}}
	}
	return bindings, nil
}

// InviteResult distinguishes a created binding from the benign
// already-a-member outcome.
type InviteResult int

const (
	InviteCreated InviteResult = iota
	InviteAlreadyMember
)

// Invite grants targetEmail access to a book. A target with no account gets
// a Pending user row whose password hash is the reset-required sentinel;
// their trial starts when they activate, not now.
//
// Inviting an existing member is idempotent. An Owner invite first verifies
// no Owner binding exists for the book. That check-then-append is not atomic
// against the store: two concurrent Owner invites can still both pass the
// check and produce two Owner rows. This is a documented consistency gap of
// the unlocked backing store, not something this method papers over.
func (s *Service) Invite(ctx context.Context, targetEmail, bookRef, bookName, role, operatorEmail string) (InviteResult, error) {
	if !validEmail(targetEmail) {
		return 0, fmt.Errorf("%w: malformed email %q", common.ErrValidation, targetEmail)
	}
	if role != models.RoleOwner && role != models.RoleMember {
		return 0, fmt.Errorf("%w: unknown role %q", common.ErrValidation, role)
	}

	_, _, found, err := s.findUser(ctx, targetEmail)
	if err != nil {
		return 0, err
	}
	if !found {
		today := s.today()
		pending := models.User{
			Email:        targetEmail,
			PasswordHash: cryptox.ResetRequiredSentinel,
			JoinDate:     today,
			Status:       models.StatusPending,
			ExpiryDate:   today,
			Plan:         models.PlanTrial,
			Nickname:     models.NicknameFromEmail(targetEmail),
			BookRef:      bookRef,
		}
		if err := s.store.Append(ctx, s.dirBook, store.TableUsers, pending.Row()); err != nil {
			return 0, err
		}
	}

	if _, _, bound, err := s.findBinding(ctx, targetEmail, bookRef); err != nil {
		return 0, err
	} else if bound {
		return InviteAlreadyMember, nil
	}

	if role == models.RoleOwner {
		if _, _, hasOwner, err := s.ownerOf(ctx, bookRef); err != nil {
			return 0, err
		} else if hasOwner {
			return 0, common.ErrOwnerExists
		}
	}

	if err := s.appendBinding(ctx, targetEmail, bookRef, bookName, role); err != nil {
		return 0, err
	}

	// Best effort only: the binding above survives a failed notification.
	inviterName := operatorEmail
	if _, op, ok, err := s.findUser(ctx, operatorEmail); err == nil && ok {
		inviterName = op.Nickname
	}
	if err := s.notifier.SendInvite(ctx, targetEmail, inviterName, bookName); err != nil {
		s.log.Warn(ctx, "invite notification failed", "to", targetEmail, "err", err)
	}
	return InviteCreated, nil
}

// TransferOwnership flips fromEmail to Member and toEmail to Owner on one
// book. The two cell updates are separate writes: a crash between them
// leaves the book with zero Owners, recoverable only by manual inspection.
// The update order (demote first) is chosen so the failure mode is a
// missing Owner rather than two of them.
func (s *Service) TransferOwnership(ctx context.Context, bookRef, fromEmail, toEmail string) error {
	fromIdx, from, found, err := s.findBinding(ctx, fromEmail, bookRef)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s has no binding for book", common.ErrNotFound, fromEmail)
	}
	if from.Role != models.RoleOwner {
		return fmt.Errorf("%w: %s is not the owner", common.ErrConflict, fromEmail)
	}
	toIdx, _, found, err := s.findBinding(ctx, toEmail, bookRef)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s has no binding for book", common.ErrNotFound, toEmail)
	}

	if err := s.store.UpdateCell(ctx, s.dirBook, store.TableBindings, fromIdx, models.BindingColRole, models.RoleMember); err != nil {
		return err
	}
	if err := s.store.UpdateCell(ctx, s.dirBook, store.TableBindings, toIdx, models.BindingColRole, models.RoleOwner); err != nil {
		s.log.Error(ctx, "ownership transfer half-applied, book has no owner",
			"book", bookRef, "from", fromEmail, "to", toEmail, "err", err)
		return err
	}
	return nil
}

// Unbind removes the single binding matching email and bookRef. An Owner
// cannot unbind itself; ownership must be transferred first.
func (s *Service) Unbind(ctx context.Context, email, bookRef string) error {
	idx, b, found, err := s.findBinding(ctx, email, bookRef)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: no binding for %s on book", common.ErrNotFound, email)
	}
	if b.Role == models.RoleOwner {
		return common.ErrOwnerCannotLeave
	}
	return s.store.DeleteRow(ctx, s.dirBook, store.TableBindings, idx)
}

// RequestPasswordReset issues a one-time numeric code and mails it to the
// account. The code is required by ResetPassword and lapses after a short
// validity window. Unlike invite mail, a failed send here is an error: the
// caller cannot proceed without the code.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	_, _, found, err := s.findUser(ctx, email)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: user %s", common.ErrNotFound, email)
	}

	code, err := common.MakeVerificationCode(6)
	if err != nil {
		return fmt.Errorf("generating reset code: %w", err)
	}
	s.mu.Lock()
	s.resetCodes[email] = resetCode{code: code, expires: s.now().Add(resetCodeValidity)}
	s.mu.Unlock()

	return s.notifier.SendCode(ctx, email, code, "Password reset")
}

// consumeResetCode validates and invalidates a code in one step.
func (s *Service) consumeResetCode(email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	issued, ok := s.resetCodes[email]
	if !ok || issued.code != code {
		return fmt.Errorf("%w: wrong reset code", common.ErrInvalidCredential)
	}
	if s.now().After(issued.expires) {
		delete(s.resetCodes, email)
		return fmt.Errorf("%w: reset code expired", common.ErrExpired)
	}
	delete(s.resetCodes, email)
	return nil
}

// ResetPassword replaces the stored hash after verifying the one-time code
// from RequestPasswordReset. When the prior hash was the reset-required
// sentinel this is the activation of an invited account, so the trial window
// starts now: join date today, expiry today plus the trial length, status
// Active. A non-empty newNickname also updates the display name.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword, newNickname string) error {
	if err := cryptox.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if err := s.consumeResetCode(email, code); err != nil {
		return err
	}
	idx, user, found, err := s.findUser(ctx, email)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: user %s", common.ErrNotFound, email)
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	wasPending := cryptox.IsResetRequired(user.PasswordHash)

	if err := s.store.UpdateCell(ctx, s.dirBook, store.TableUsers, idx, models.UserColPasswordHash, hash); err != nil {
		return err
	}
	if wasPending {
		today := s.today()
		expiry := today.AddDate(0, 0, s.trialDays)
		if err := s.store.UpdateCell(ctx, s.dirBook, store.TableUsers, idx, models.UserColJoinDate, today.Format(models.DateLayout)); err != nil {
			return err
		}
		if err := s.store.UpdateCell(ctx, s.dirBook, store.TableUsers, idx, models.UserColExpiryDate, expiry.Format(models.DateLayout)); err != nil {
			return err
		}
		if err := s.store.UpdateCell(ctx, s.dirBook, store.TableUsers, idx, models.UserColStatus, models.StatusActive); err != nil {
			return err
		}
	}
	if newNickname != "" {
		if err := s.store.UpdateCell(ctx, s.dirBook, store.TableUsers, idx, models.UserColNickname, newNickname); err != nil {
			return err
		}
	}
	return nil
}
