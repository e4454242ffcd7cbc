package ledger

import (
	"github.com/google/uuid"

	"github.com/ycchuang/sheetbook/internal/server/models"
)

// Session is the explicit per-login state every facade operation takes. It is
// created by Login or Register and destroyed by discarding it; there is no
// server-side session table.
type Session struct {
	ID       uuid.UUID
	Email    string
	Nickname string
	Plan     string
	// Books lists the caller's bindings in directory insertion order.
	Books []models.Binding
	// Current is the book reference operations act on.
	Current string
	// Token is the signed proof of this login, for callers that carry the
	// session across a wire.
	Token string
}

// Book returns the binding for the session's current book.
func (s *Session) Book() (models.Binding, bool) {
	for _, b := range s.Books {
		if b.BookRef == s.Current {
			return b, true
		}
	}
	return models.Binding{}, false
}
