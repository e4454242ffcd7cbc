package models

import "github.com/ycchuang/sheetbook/internal/store"

// Binding roles.
const (
	RoleOwner  = "Owner"
	RoleMember = "Member"
)

// Binding is the (user, book, role) relation granting access to a book.
//
// Book_Bindings table columns: email | bookRef | bookName | role
type Binding struct {
	Email    string
	BookRef  string
	BookName string
	Role     string
}

// BindingFromRow decodes a Book_Bindings row. An absent role defaults to
// Member, never Owner.
func BindingFromRow(r store.Row) Binding {
	b := Binding{
		Email:    r.Cell(0),
		BookRef:  r.Cell(1),
		BookName: r.Cell(2),
		Role:     r.Cell(3),
	}
	if b.Role == "" {
		b.Role = RoleMember
	}
	return b
}

// Row encodes the binding in Book_Bindings column order.
func (b Binding) Row() store.Row {
	return store.Row{b.Email, b.BookRef, b.BookName, b.Role}
}

// BindingColRole is the one-based column of the role cell, for the two
// UpdateCell calls an ownership transfer makes.
const BindingColRole = 4
