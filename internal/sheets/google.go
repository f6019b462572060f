package sheets

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// GoogleStore implements TabularStore against the Google Sheets API
// using a service-account credential.
type GoogleStore struct {
	service *sheets.Service
}

func NewGoogleStore(ctx context.Context, credentialsFile string) (*GoogleStore, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return &GoogleStore{service: srv}, nil
}

// TestConnection reads a single cell to verify access to a spreadsheet.
func (g *GoogleStore) TestConnection(ctx context.Context, spreadsheetID string) error {
	_, err := g.service.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

func (g *GoogleStore) ReadRow(ctx context.Context, spreadsheetID, a1Range string) ([]any, error) {
	resp, err := g.service.Spreadsheets.Values.Get(spreadsheetID, a1Range).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	return resp.Values[0], nil
}

func (g *GoogleStore) ReadColumn(ctx context.Context, spreadsheetID, a1Range string) ([]string, error) {
	resp, err := g.service.Spreadsheets.Values.Get(spreadsheetID, a1Range).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	column := make([]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		if len(row) == 0 {
			column = append(column, "")
			continue
		}
		column = append(column, fmt.Sprintf("%v", row[0]))
	}
	return column, nil
}

func (g *GoogleStore) UpdateRange(ctx context.Context, spreadsheetID, a1Range string, row []any) error {
	valueRange := &sheets.ValueRange{Values: [][]any{row}}
	_, err := g.service.Spreadsheets.Values.Update(spreadsheetID, a1Range, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (g *GoogleStore) AppendRow(ctx context.Context, spreadsheetID, a1Range string, row []any) error {
	valueRange := &sheets.ValueRange{Values: [][]any{row}}
	_, err := g.service.Spreadsheets.Values.Append(spreadsheetID, a1Range, valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}
