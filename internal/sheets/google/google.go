package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"zetafin/internal/core"
	"zetafin/internal/export"
	"zetafin/internal/log"
	ports "zetafin/internal/sheets"
)

// Header is written to row 1 of an empty sheet.
var Header = append([]any{"id"}, headerCells()...)

func headerCells() []any {
	out := make([]any, len(export.CSVHeader))
	for i, h := range export.CSVHeader {
		out[i] = h
	}
	return out
}

// lastColumn is the column letter of the final cell in a mirrored row.
const lastColumn = "H"

// valuesAPI is the subset of the Sheets values service the mirror uses.
type valuesAPI interface {
	Get(ctx context.Context, rng string) ([][]any, error)
	Update(ctx context.Context, rng string, rows [][]any) error
	Clear(ctx context.Context, rng string) error
}

type Client struct {
	values        valuesAPI
	spreadsheetID string
	sheetName     string
	userID        string
	logger        *log.Logger
}

var _ ports.Mirror = (*Client)(nil)

// Options configure a Sheets mirror.
type Options struct {
	SpreadsheetID      string
	SheetName          string
	UserID             string
	ServiceAccountJSON string
	ServiceAccountFile string
	Logger             *log.Logger
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	logger := opts.Logger.WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&serviceValues{svc: svc, spreadsheetID: opts.SpreadsheetID}, opts, logger), nil
}

func newClient(values valuesAPI, opts Options, logger *log.Logger) *Client {
	sheet := strings.TrimSpace(opts.SheetName)
	if sheet == "" {
		sheet = "Transactions"
	}
	return &Client{
		values:        values,
		spreadsheetID: opts.SpreadsheetID,
		sheetName:     sheet,
		userID:        opts.UserID,
		logger:        logger,
	}
}

// newSheetsService initializes a Sheets service from inline JSON or a
// credentials file. Inline JSON wins when both are set.
func newSheetsService(ctx context.Context, opts Options, logger *log.Logger) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(opts.ServiceAccountJSON) != "":
		logger.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(opts.ServiceAccountJSON)
	case strings.TrimSpace(opts.ServiceAccountFile) != "":
		logger.InfoContext(ctx, "Reading credentials from file", "path", opts.ServiceAccountFile)
		b, err := os.ReadFile(opts.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

// RowValues is the mirrored row for tx: the id followed by the CSV export cells.
func RowValues(tx core.Transaction, userID string) []any {
	cells := export.Row(tx, userID)
	row := make([]any, 0, len(cells)+1)
	row = append(row, tx.ID.Normalize().String())
	for _, c := range cells {
		row = append(row, c)
	}
	return row
}

// findRow returns the 1-based row holding id in column A, or 0.
func findRow(colA [][]any, id core.ID) int {
	want := id.Normalize()
	for i, row := range colA {
		if len(row) == 0 {
			continue
		}
		if core.NormalizeID(fmt.Sprint(row[0])) == want {
			return i + 1
		}
	}
	return 0
}

func (c *Client) rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", c.sheetName, row, lastColumn, row)
}

func (c *Client) Upsert(ctx context.Context, tx core.Transaction) (string, error) {
	if tx.ID.IsZero() {
		return "", fmt.Errorf("upsert: missing id: %w", core.ErrValidation)
	}
	colA, err := c.values.Get(ctx, c.sheetName+"!A:A")
	if err != nil {
		return "", fmt.Errorf("read ids from %s: %w", c.sheetName, err)
	}

	row := findRow(colA, tx.ID)
	if row == 0 {
		if len(colA) == 0 {
			if err := c.values.Update(ctx, c.rowRange(1), [][]any{Header}); err != nil {
				return "", fmt.Errorf("write header in %s: %w", c.sheetName, err)
			}
			colA = [][]any{{"id"}}
		}
		row = len(colA) + 1
	}

	ref := c.rowRange(row)
	if err := c.values.Update(ctx, ref, [][]any{RowValues(tx, c.userID)}); err != nil {
		return "", fmt.Errorf("write %s: %w", ref, err)
	}
	c.logger.DebugContext(ctx, "Mirrored transaction", log.FieldEntityID, tx.ID.String(), log.FieldSheetsRef, ref)
	return ref, nil
}

func (c *Client) Remove(ctx context.Context, id core.ID) error {
	colA, err := c.values.Get(ctx, c.sheetName+"!A:A")
	if err != nil {
		return fmt.Errorf("read ids from %s: %w", c.sheetName, err)
	}
	row := findRow(colA, id)
	if row == 0 {
		return nil
	}
	ref := c.rowRange(row)
	if err := c.values.Clear(ctx, ref); err != nil {
		return fmt.Errorf("clear %s: %w", ref, err)
	}
	c.logger.DebugContext(ctx, "Cleared mirrored transaction", log.FieldEntityID, id.String(), log.FieldSheetsRef, ref)
	return nil
}

// serviceValues adapts the generated Sheets client to valuesAPI.
type serviceValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (s *serviceValues) Get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *serviceValues) Update(ctx context.Context, rng string, rows [][]any) error {
	vr := &gsheet.ValueRange{Values: rows}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

func (s *serviceValues) Clear(ctx context.Context, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}
