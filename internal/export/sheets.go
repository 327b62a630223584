// Package export appends transactions to a Google Sheets spreadsheet, one
// sheet per calendar year.
package export

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tally/internal/config"
	"tally/internal/core"
)

// Appender is the capability the export worker needs.
type Appender interface {
	AppendTransaction(ctx context.Context, tx core.Transaction, categoryName string) error
}

type SheetsClient struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

var _ Appender = (*SheetsClient)(nil)

// NewSheetsClient authenticates with a service account taken from the
// configuration, either as an inline JSON key or a key file path.
func NewSheetsClient(ctx context.Context, cfg *config.Config) (*SheetsClient, error) {
	if cfg.GoogleSpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	var opts []goption.ClientOption
	switch {
	case cfg.GoogleServiceAccountKey != "":
		opts = append(opts, goption.WithCredentialsJSON([]byte(cfg.GoogleServiceAccountKey)))
	case cfg.GoogleServiceAccount != "":
		opts = append(opts, goption.WithCredentialsFile(cfg.GoogleServiceAccount))
	default:
		return nil, errors.New("missing service account credentials")
	}
	opts = append(opts, goption.WithScopes(gsheet.SpreadsheetsScope))

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	base := cfg.GoogleSheetName
	if base == "" {
		base = "Transactions"
	}

	return &SheetsClient{
		svc:           svc,
		spreadsheetID: cfg.GoogleSpreadsheetID,
		sheetBase:     base,
	}, nil
}

// AppendTransaction writes one row to the sheet for the transaction's year.
func (c *SheetsClient) AppendTransaction(ctx context.Context, tx core.Transaction, categoryName string) error {
	sheet := yearPrefixedName(c.sheetBase, tx.Date.Year())
	values := &gsheet.ValueRange{
		Values: [][]interface{}{{
			tx.Date.Key(),
			tx.Description,
			tx.Amount.Units(),
			string(tx.Type),
			categoryName,
		}},
	}

	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, sheet+"!A:E", values).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to sheet %q: %w", sheet, err)
	}
	return nil
}

// yearPrefixedName returns "<year> <base>" unless the base already carries a
// year prefix.
func yearPrefixedName(base string, year int) string {
	prefix := strconv.Itoa(year) + " "
	if strings.HasPrefix(base, prefix) {
		return base
	}
	return prefix + base
}
