package models

import "github.com/ycchuang/sheetbook/internal/store"

// Category is one main category with its ordered subcategories.
type Category struct {
	Main string
	Subs []string
}

// Settings is the typed view of the sparse Settings table: column lists of
// categories, payment methods and currencies, plus a single default-currency
// cell carried on the first row.
//
// Settings table columns: mainCat | subCat | paymentMethod | currency | defaultCurrency
type Settings struct {
	Categories      []Category
	Payments        []string
	Currencies      []string
	DefaultCurrency string
}

// DefaultSettings matches what a fresh book falls back to when its Settings
// table is empty or sparse.
func DefaultSettings() Settings {
	return Settings{
		Categories:      []Category{{Main: "Income", Subs: []string{"Salary"}}, {Main: "Food", Subs: []string{"Breakfast"}}},
		Payments:        []string{"Cash"},
		Currencies:      []string{"TWD"},
		DefaultCurrency: "TWD",
	}
}

// SettingsFromRows decodes the sparse Settings table, filling every absent
// piece with defaults and keeping list order as stored.
func SettingsFromRows(rows []store.Row) Settings {
	var s Settings
	seenSub := make(map[string]map[string]bool)
	catIndex := make(map[string]int)
	for _, r := range rows {
		main, sub := r.Cell(0), r.Cell(1)
		if main != "" {
			i, ok := catIndex[main]
			if !ok {
				i = len(s.Categories)
				catIndex[main] = i
				s.Categories = append(s.Categories, Category{Main: main})
				seenSub[main] = make(map[string]bool)
			}
			if sub != "" && !seenSub[main][sub] {
				seenSub[main][sub] = true
				s.Categories[i].Subs = append(s.Categories[i].Subs, sub)
			}
		}
		if p := r.Cell(2); p != "" && !contains(s.Payments, p) {
			s.Payments = append(s.Payments, p)
		}
		if c := r.Cell(3); c != "" && !contains(s.Currencies, c) {
			s.Currencies = append(s.Currencies, c)
		}
		if d := r.Cell(4); d != "" && s.DefaultCurrency == "" {
			s.DefaultCurrency = d
		}
	}

	def := DefaultSettings()
	if len(s.Categories) == 0 {
		s.Categories = def.Categories
	}
	if len(s.Payments) == 0 {
		s.Payments = def.Payments
	}
	if len(s.Currencies) == 0 {
		s.Currencies = def.Currencies
	}
	if s.DefaultCurrency == "" || !contains(s.Currencies, s.DefaultCurrency) {
		s.DefaultCurrency = s.Currencies[0]
	}
	return s
}

// Rows encodes the settings back into the sparse columnar layout: categories
// expand to one row per (main, sub) pair, the other lists fill their own
// columns top-down, and the default currency rides on row 0.
func (s Settings) Rows() []store.Row {
	var cats [][2]string
	for _, c := range s.Categories {
		if len(c.Subs) == 0 {
			cats = append(cats, [2]string{c.Main, ""})
			continue
		}
		for _, sub := range c.Subs {
			cats = append(cats, [2]string{c.Main, sub})
		}
	}

	n := max(len(cats), max(len(s.Payments), len(s.Currencies)))
	if n == 0 {
		n = 1
	}
	rows := make([]store.Row, n)
	for i := range rows {
		row := store.Row{"", "", "", "", ""}
		if i < len(cats) {
			row[0], row[1] = cats[i][0], cats[i][1]
		}
		if i < len(s.Payments) {
			row[2] = s.Payments[i]
		}
		if i < len(s.Currencies) {
			row[3] = s.Currencies[i]
		}
		if i == 0 {
			row[4] = s.DefaultCurrency
		}
		rows[i] = row
	}
	return rows
}

// Subcategories returns the subcategory list for a main category, or nil.
func (s Settings) Subcategories(main string) []string {
	for _, c := range s.Categories {
		if c.Main == main {
			return c.Subs
		}
	}
	return nil
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
