package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"finboard/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Header is the first row written to the target sheet.
var Header = []any{"Date", "Kind", "Description", "Category", "Amount", "Source"}

// Exporter rewrites a single sheet with the current transaction collections.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// New creates an Exporter using service account credentials from the environment.
// Reads GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, sheetName string) (*Exporter, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	credentialsJSON, err := serviceAccountJSON(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, sheetName), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Exporter {
	if sheetName == "" {
		sheetName = "Transactions"
	}
	return &Exporter{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

func serviceAccountJSON(ctx context.Context) ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read service account credentials", "path", file, "size", len(b))
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Export clears the sheet and writes the header followed by every transaction.
func (e *Exporter) Export(ctx context.Context, views core.Views) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}

	_, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, e.rangeOf("A:F"), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear sheet %s: %w", e.sheetName, err)
	}

	vr := &gsheet.ValueRange{Values: Rows(views)}
	_, err = e.svc.Spreadsheets.Values.Update(e.spreadsheetID, e.rangeOf("A1"), vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write sheet %s: %w", e.sheetName, err)
	}
	return nil
}

func (e *Exporter) rangeOf(cells string) string {
	return quoteSheetName(e.sheetName) + "!" + cells
}

// quoteSheetName wraps names containing anything but letters, digits and
// underscores in single quotes, doubling embedded quotes.
func quoteSheetName(name string) string {
	plain := true
	for _, r := range name {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			plain = false
			break
		}
	}
	if plain {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// Rows renders the header and the combined collection in its published order.
func Rows(views core.Views) [][]any {
	rows := make([][]any, 0, len(views.All)+1)
	rows = append(rows, Header)
	for _, tx := range views.All {
		rows = append(rows, []any{
			tx.Date.String(),
			string(tx.Kind),
			textCell(tx.Description),
			textCell(tx.Category),
			tx.Amount.StringFixed(2),
			textCell(tx.Source),
		})
	}
	return rows
}

// textCell keeps upstream text literal under USER_ENTERED: a leading
// formula character gets the sheet's quote prefix.
func textCell(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@':
		return "'" + s
	}
	return s
}
