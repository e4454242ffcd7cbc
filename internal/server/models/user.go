// Package models holds the typed records for every table in the system and
// the codecs that map them to and from loosely-typed store rows. Rows coming
// back from the store may be short or carry malformed cells; decoding fills
// absent columns with defaults so everything above this package sees complete
// records.
package models

import (
	"strings"
	"time"

	"github.com/ycchuang/sheetbook/internal/store"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// PeriodLayout is the wire format for year-month period tokens.
const PeriodLayout = "2006-01"

// FormatPeriod returns the period token for t.
func FormatPeriod(t time.Time) string { return t.Format(PeriodLayout) }

// Account status values.
const (
	StatusActive  = "Active"
	StatusPending = "Pending"
)

// Subscription plans. Only PlanVIP bypasses the expiry gate.
const (
	PlanTrial = "Trial"
	PlanVIP   = "VIP"
	PlanDev   = "Dev"
)

// User is a directory identity record.
//
// Users table columns:
// email | passwordHash | joinDate | status | expiryDate | plan | nickname | bookRef
//
// bookRef is the book the user registered with; it backs the fallback
// binding synthesized when no binding rows exist.
type User struct {
	Email        string
	PasswordHash string
	JoinDate     time.Time
	Status       string
	ExpiryDate   time.Time
	Plan         string
	Nickname     string
	BookRef      string
}

// NicknameFromEmail derives the default display name: the local part of the
// address.
func NicknameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

// UserFromRow decodes a Users row, default-filling absent columns. An empty
// nickname falls back to the email local part; an empty status means Active
// (rows written before the status column existed).
func UserFromRow(r store.Row) User {
	u := User{
		Email:        r.Cell(0),
		PasswordHash: r.Cell(1),
		Status:       r.Cell(3),
		Plan:         r.Cell(5),
		Nickname:     r.Cell(6),
		BookRef:      r.Cell(7),
	}
	u.JoinDate, _ = time.Parse(DateLayout, r.Cell(2))
	u.ExpiryDate, _ = time.Parse(DateLayout, r.Cell(4))
	if u.Status == "" {
		u.Status = StatusActive
	}
	if u.Plan == "" {
		u.Plan = PlanTrial
	}
	if u.Nickname == "" {
		u.Nickname = NicknameFromEmail(u.Email)
	}
	return u
}

// Row encodes the user in Users column order.
func (u User) Row() store.Row {
	return store.Row{
		u.Email,
		u.PasswordHash,
		u.JoinDate.Format(DateLayout),
		u.Status,
		u.ExpiryDate.Format(DateLayout),
		u.Plan,
		u.Nickname,
		u.BookRef,
	}
}

// One-based Users column numbers, for UpdateCell calls.
const (
	UserColPasswordHash = 2
	UserColJoinDate     = 3
	UserColStatus       = 4
	UserColExpiryDate   = 5
	UserColPlan         = 6
	UserColNickname     = 7
)
