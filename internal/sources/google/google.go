package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/sources"
)

// Options configures the Sheets source.
type Options struct {
	SpreadsheetID     string
	TransactionsSheet string
	BudgetsSheet      string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
}

// Client reads transactions and budgets from a spreadsheet. The first row of
// each sheet is a header; columns are matched by name so their order does
// not matter. The spreadsheet has no revision counter, so Snapshot always
// reports revision 0.
type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	transactionsSheet string
	budgetsSheet      string
}

// Ensure interface conformance
var _ sources.Store = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(opts.TransactionsSheet) == "" {
		return nil, errors.New("missing transactions sheet name")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{
		svc:               svc,
		spreadsheetID:     strings.TrimSpace(opts.SpreadsheetID),
		transactionsSheet: strings.TrimSpace(opts.TransactionsSheet),
		budgetsSheet:      strings.TrimSpace(opts.BudgetsSheet),
	}, nil
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		credentialsJSON = []byte(opts.CredentialsJSON)
	case strings.TrimSpace(opts.CredentialsFile) != "":
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials")
	}

	log.FromContext(ctx).WithComponent(log.ComponentSheets).InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsReadonlyScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Snapshot implements sources.TransactionReader
func (c *Client) Snapshot(ctx context.Context) (sources.Snapshot, error) {
	if c.svc == nil {
		return sources.Snapshot{}, errors.New("sheets service not initialized")
	}
	ranges := []string{fmt.Sprintf("%s!A:Z", c.transactionsSheet)}
	if c.budgetsSheet != "" {
		ranges = append(ranges, fmt.Sprintf("%s!A:C", c.budgetsSheet))
	}
	resp, err := c.svc.Spreadsheets.Values.BatchGet(c.spreadsheetID).
		Ranges(ranges...).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return sources.Snapshot{}, fmt.Errorf("read %v: %w", ranges, err)
	}

	snap := sources.Snapshot{Budgets: core.Budgets{}}
	if len(resp.ValueRanges) > 0 {
		snap.Records = parseTransactions(resp.ValueRanges[0].Values)
	}
	if len(resp.ValueRanges) > 1 {
		snap.Budgets = parseBudgets(resp.ValueRanges[1].Values)
	}
	return snap, nil
}

// Revision implements sources.Revisioner
func (c *Client) Revision(context.Context) (int64, error) {
	return 0, nil
}

// Import implements sources.TransactionWriter
func (c *Client) Import(context.Context, []sources.Record, core.Budgets, sources.ImportMode) (int64, error) {
	return 0, sources.ErrReadOnly
}

// DeleteTransaction implements sources.TransactionWriter
func (c *Client) DeleteTransaction(context.Context, string) (int64, error) {
	return 0, sources.ErrReadOnly
}

// SetBudget implements sources.BudgetStore
func (c *Client) SetBudget(context.Context, string, string, decimal.Decimal) (int64, error) {
	return 0, sources.ErrReadOnly
}

// DeleteBudget implements sources.BudgetStore
func (c *Client) DeleteBudget(context.Context, string, string) (int64, error) {
	return 0, sources.ErrReadOnly
}
