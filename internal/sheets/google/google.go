// Package google mirrors journal rows into a Google Sheet. Rows are
// appended to per-year tabs ("2024 Fuel"); nothing is ever read back.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"carnote/internal/core"
	"carnote/internal/ports"
)

// Default tab base names; the record year is prefixed.
const (
	ExpensesSheet = "Expenses"
	FuelSheet     = "Fuel"
	ServiceSheet  = "Service"
)

const defaultSheetCacheTTL = 10 * time.Minute

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	expensesBase string
	fuelBase     string
	serviceBase  string

	// known tab titles, refreshed when expired
	mu                 sync.Mutex
	knownSheets        map[string]bool
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

var _ ports.JournalMirror = (*Client)(nil)

// Options configures New. ClientOptions, when set, replace the credential
// lookup entirely.
type Options struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	ClientOptions   []goption.ClientOption
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	clientOpts := opts.ClientOptions
	if len(clientOpts) == 0 {
		creds, err := loadCredentials(ctx, opts)
		if err != nil {
			return nil, err
		}
		clientOpts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully", "spreadsheet_id", spreadsheetID)
	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		expensesBase:       ExpensesSheet,
		fuelBase:           FuelSheet,
		serviceBase:        ServiceSheet,
		knownSheets:        map[string]bool{},
		cacheValidDuration: defaultSheetCacheTTL,
	}, nil
}

// loadCredentials prefers inline JSON, then the file, then
// GOOGLE_APPLICATION_CREDENTIALS.
func loadCredentials(ctx context.Context, opts Options) ([]byte, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func (c *Client) AppendExpense(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	return c.appendRow(ctx, yearPrefixedName(c.expensesBase, e.Date.Year()), expenseHeader, expenseRow(e))
}

func (c *Client) AppendFuel(ctx context.Context, f core.FuelRecord) (string, error) {
	if err := f.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	return c.appendRow(ctx, yearPrefixedName(c.fuelBase, f.Date.Year()), fuelHeader, fuelRow(f))
}

func (c *Client) AppendService(ctx context.Context, r core.ServiceRecord, templateTitle string) (string, error) {
	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	return c.appendRow(ctx, yearPrefixedName(c.serviceBase, r.Date.Year()), serviceHeader, serviceRow(r, templateTitle))
}

func (c *Client) appendRow(ctx context.Context, sheet string, header, row []any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if err := c.ensureSheet(ctx, sheet, header); err != nil {
		return "", err
	}

	rng := fmt.Sprintf("%s!A:%s", quoteSheet(sheet), columnLetter(len(row)))
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{row}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to append to sheet %s: %w", sheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	slog.DebugContext(ctx, "Row appended to Google Sheets", "sheet", sheet, "range", ref, "row", rowNumber(ref))
	return ref, nil
}

// ensureSheet creates the tab with a header row the first time it is used.
func (c *Client) ensureSheet(ctx context.Context, title string, header []any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Now().After(c.cacheExpiresAt) {
		resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("list sheets: %w", err)
		}
		c.knownSheets = make(map[string]bool, len(resp.Sheets))
		for _, s := range resp.Sheets {
			if s.Properties != nil {
				c.knownSheets[s.Properties.Title] = true
			}
		}
		c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	}
	if c.knownSheets[title] {
		return nil
	}

	add := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, add).Context(ctx).Do(); err != nil {
		return fmt.Errorf("create sheet %s: %w", title, err)
	}

	headerRange := fmt.Sprintf("%s!A1:%s1", quoteSheet(title), columnLetter(len(header)))
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, headerRange, &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header of %s: %w", title, err)
	}

	c.knownSheets[title] = true
	slog.InfoContext(ctx, "Created sheet", "title", title)
	return nil
}

// invalidateSheetCache forces the next append to re-read the tab list.
func (c *Client) invalidateSheetCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheExpiresAt = time.Time{}
}
