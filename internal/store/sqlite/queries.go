package sqlite

const (
	querySchema = `
		CREATE TABLE IF NOT EXISTS sheet_rows (
			book TEXT NOT NULL,
			tbl  TEXT NOT NULL,
			pos  INTEGER NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (book, tbl, pos)
		)`

	queryReadRows = `
		SELECT data FROM sheet_rows
		WHERE book = ? AND tbl = ?
		ORDER BY pos`

	queryNextPos = `
		SELECT COALESCE(MAX(pos) + 1, 0) FROM sheet_rows
		WHERE book = ? AND tbl = ?`

	queryInsertRow = `
		INSERT INTO sheet_rows (book, tbl, pos, data) VALUES (?, ?, ?, ?)`

	queryDeleteTable = `
		DELETE FROM sheet_rows WHERE book = ? AND tbl = ?`

	queryRowAt = `
		SELECT pos, data FROM sheet_rows
		WHERE book = ? AND tbl = ?
		ORDER BY pos LIMIT 1 OFFSET ?`

	queryUpdateRow = `
		UPDATE sheet_rows SET data = ?
		WHERE book = ? AND tbl = ? AND pos = ?`

	queryDeleteRow = `
		DELETE FROM sheet_rows
		WHERE book = ? AND tbl = ? AND pos = ?`
)
