// Package sheets implements store.Client against a Google-Sheets-style
// values REST API. The book reference is the spreadsheet ID (or a full URL,
// from which the ID is extracted); tables are worksheets addressed by title.
//
// Authentication to the service is reduced to a static bearer token here;
// credential loading and token refresh happen outside this module.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ycchuang/sheetbook/internal/logging"
	"github.com/ycchuang/sheetbook/internal/store"
)

// Config carries the connection settings for the values API.
type Config struct {
	// BaseURL is the API root, e.g. "https://sheets.googleapis.com".
	BaseURL string
	// Token is sent as a bearer token on every request.
	Token string
	// Timeout bounds every single store call, retries included.
	Timeout time.Duration
	// HTTPClient is optional; http.DefaultClient when nil.
	HTTPClient *http.Client
}

type Client struct {
	cfg  Config
	http *http.Client
	log  logging.Logger
}

var _ store.Client = (*Client)(nil)

func New(cfg Config, log logging.Logger) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: hc, log: log}
}

// bookID extracts the spreadsheet ID from a book reference that may be a
// full document URL.
func bookID(book string) string {
	if !strings.HasPrefix(book, "http") {
		return book
	}
	const marker = "/spreadsheets/d/"
	i := strings.Index(book, marker)
	if i < 0 {
		return book
	}
	rest := book[i+len(marker):]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

// columnLetter converts a one-based column number to A1 letters.
func columnLetter(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

type valueRange struct {
	Values [][]any `json:"values"`
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.status, e.body)
}

// do runs one API call under the client timeout, retrying transient
// failures (network errors, 429, 5xx) with exponential backoff.
func (c *Client) do(ctx context.Context, method, requestURL string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var out []byte
	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, requestURL, rdr)
		if err != nil {
			return err
		}
		if c.cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return retry.RetryableError(&httpStatusError{status: resp.StatusCode, body: string(b)})
		}
		if resp.StatusCode >= 400 {
			return &httpStatusError{status: resp.StatusCode, body: string(b)}
		}
		out = b
		return nil
	})
	return out, err
}

func (c *Client) valuesURL(book, rng string, params url.Values) string {
	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(bookID(book)), url.PathEscape(rng))
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Read fetches all rows of a table. A range-parse failure means the
// worksheet does not exist, which is reported as an empty table, not an
// error. The header row is dropped.
func (c *Client) Read(ctx context.Context, book, table string) ([]store.Row, error) {
	b, err := c.do(ctx, http.MethodGet, c.valuesURL(book, table, url.Values{"majorDimension": {"ROWS"}}), nil)
	if err != nil {
		if isMissingRange(err) {
			c.log.Debug(ctx, "worksheet missing, treating as empty", "book", bookID(book), "table", table)
			return nil, nil
		}
		return nil, store.Unavailable("read", book, table, err)
	}

	var vr valueRange
	if err := json.Unmarshal(b, &vr); err != nil {
		return nil, store.Unavailable("read", book, table, err)
	}
	if len(vr.Values) <= 1 {
		return nil, nil
	}
	rows := make([]store.Row, 0, len(vr.Values)-1)
	for _, v := range vr.Values[1:] {
		row := make(store.Row, len(v))
		for i, cell := range v {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// isMissingRange recognizes the API's answer for a worksheet that does not
// exist yet: HTTP 400 with an "Unable to parse range" message.
func isMissingRange(err error) bool {
	var se *httpStatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.status == http.StatusBadRequest && strings.Contains(se.body, "Unable to parse range")
}

func (c *Client) Append(ctx context.Context, book, table string, row store.Row) error {
	body, err := json.Marshal(valueRange{Values: [][]any{toAny(row)}})
	if err != nil {
		return store.Unavailable("append", book, table, err)
	}
	u := c.valuesURL(book, table+":append", url.Values{"valueInputOption": {"USER_ENTERED"}})
	if _, err := c.do(ctx, http.MethodPost, u, body); err != nil {
		return store.Unavailable("append", book, table, err)
	}
	return nil
}

// ReplaceAll clears the data region below the header and rewrites it.
func (c *Client) ReplaceAll(ctx context.Context, book, table string, rows []store.Row) error {
	clearURL := c.valuesURL(book, table+"!A2:ZZ:clear", nil)
	if _, err := c.do(ctx, http.MethodPost, clearURL, []byte("{}")); err != nil {
		return store.Unavailable("replaceAll", book, table, err)
	}
	if len(rows) == 0 {
		return nil
	}
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = toAny(r)
	}
	body, err := json.Marshal(valueRange{Values: values})
	if err != nil {
		return store.Unavailable("replaceAll", book, table, err)
	}
	u := c.valuesURL(book, table+"!A2", url.Values{"valueInputOption": {"USER_ENTERED"}})
	if _, err := c.do(ctx, http.MethodPut, u, body); err != nil {
		return store.Unavailable("replaceAll", book, table, err)
	}
	return nil
}

func (c *Client) UpdateCell(ctx context.Context, book, table string, rowIndex, col int, value string) error {
	cell := fmt.Sprintf("%s!%s%d", table, columnLetter(col), rowIndex+2)
	body, err := json.Marshal(valueRange{Values: [][]any{{value}}})
	if err != nil {
		return store.Unavailable("updateCell", book, table, err)
	}
	u := c.valuesURL(book, cell, url.Values{"valueInputOption": {"USER_ENTERED"}})
	if _, err := c.do(ctx, http.MethodPut, u, body); err != nil {
		return store.Unavailable("updateCell", book, table, err)
	}
	return nil
}

// DeleteRow removes one data row. The values API cannot delete rows by
// title, so the worksheet ID is resolved first and the deletion goes through
// batchUpdate.
func (c *Client) DeleteRow(ctx context.Context, book, table string, rowIndex int) error {
	sheetID, err := c.sheetID(ctx, book, table)
	if err != nil {
		return err
	}
	reqBody := map[string]any{
		"requests": []any{
			map[string]any{
				"deleteDimension": map[string]any{
					"range": map[string]any{
						"sheetId":    sheetID,
						"dimension":  "ROWS",
						"startIndex": rowIndex + 1,
						"endIndex":   rowIndex + 2,
					},
				},
			},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return store.Unavailable("deleteRow", book, table, err)
	}
	u := fmt.Sprintf("%s/v4/spreadsheets/%s:batchUpdate",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(bookID(book)))
	if _, err := c.do(ctx, http.MethodPost, u, body); err != nil {
		return store.Unavailable("deleteRow", book, table, err)
	}
	return nil
}

func (c *Client) sheetID(ctx context.Context, book, table string) (int64, error) {
	u := fmt.Sprintf("%s/v4/spreadsheets/%s?fields=sheets.properties",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(bookID(book)))
	b, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, store.Unavailable("deleteRow", book, table, err)
	}
	var meta struct {
		Sheets []struct {
			Properties struct {
				SheetID int64  `json:"sheetId"`
				Title   string `json:"title"`
			} `json:"properties"`
		} `json:"sheets"`
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return 0, store.Unavailable("deleteRow", book, table, err)
	}
	for _, s := range meta.Sheets {
		if s.Properties.Title == table {
			return s.Properties.SheetID, nil
		}
	}
	return 0, store.NewError("deleteRow", book, table, fmt.Errorf("worksheet %q not found", table))
}

func toAny(row store.Row) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
