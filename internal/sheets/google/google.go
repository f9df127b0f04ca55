package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"duka/internal/core"
	ports "duka/internal/sheets"
)

// Client appends ledger rows to a Google spreadsheet, one sheet per year.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base name without year (e.g. "Ledger"); the year is prefixed per row.
	ledgerBase string
	loc        *time.Location

	mu     sync.Mutex
	sheets map[string]bool // sheet titles known to exist
}

// Ensure interface conformance
var _ ports.LedgerWriter = (*Client)(nil)

// New wraps an existing Sheets service.
func New(svc *gsheet.Service, spreadsheetID, ledgerBase string, loc *time.Location) *Client {
	if strings.TrimSpace(ledgerBase) == "" {
		ledgerBase = "Ledger"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		ledgerBase:    strings.TrimSpace(ledgerBase),
		loc:           loc,
		sheets:        map[string]bool{},
	}
}

// NewFromEnv creates a Sheets client using environment variables and a
// service account.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_SHEET_NAME (default "Ledger"), SHOP_TIMEZONE
// (default "Africa/Nairobi").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	zone := strings.TrimSpace(os.Getenv("SHOP_TIMEZONE"))
	if zone == "" {
		zone = "Africa/Nairobi"
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("invalid SHOP_TIMEZONE %q: %w", zone, err)
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, spreadsheetID, os.Getenv("GOOGLE_SHEET_NAME"), loc), nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	credentialsJSON, err := serviceAccountCredentials()
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func serviceAccountCredentials() ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendTransactions writes txs below the existing rows of the sheet for
// their year, creating the sheet with a header row when missing. The
// returned reference lists the updated ranges.
func (c *Client) AppendTransactions(ctx context.Context, txs []core.Transaction) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(txs) == 0 {
		return "", nil
	}

	years, byYear := ports.GroupByYear(txs, c.loc)
	refs := make([]string, 0, len(years))
	for _, year := range years {
		sheet := yearPrefixedName(c.ledgerBase, year)
		if err := c.ensureSheet(ctx, sheet); err != nil {
			return strings.Join(refs, ","), err
		}

		values := make([][]any, 0, len(byYear[year]))
		for _, tx := range byYear[year] {
			values = append(values, ports.Row(tx, c.loc))
		}
		resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, a1(sheet, "A:I"), &gsheet.ValueRange{Values: values}).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return strings.Join(refs, ","), fmt.Errorf("append to sheet %s: %w", sheet, err)
		}
		ref := a1(sheet, "A:I")
		if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
			ref = resp.Updates.UpdatedRange
		}
		refs = append(refs, ref)
	}
	return strings.Join(refs, ","), nil
}

// ensureSheet creates the sheet with a header row unless it already exists.
func (c *Client) ensureSheet(ctx context.Context, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sheets[title] {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			c.sheets[sh.Properties.Title] = true
		}
	}
	if c.sheets[title] {
		return nil
	}

	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create sheet %s: %w", title, err)
	}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, a1(title, "A1:I1"), &gsheet.ValueRange{Values: [][]any{ports.Header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header to %s: %w", title, err)
	}

	slog.InfoContext(ctx, "Created ledger sheet", "sheet", title)
	c.sheets[title] = true
	return nil
}

// a1 quotes the sheet title for A1 notation.
func a1(sheet, rng string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + rng
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
