package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/noah-isme/backend-importadora/internal/obs"
)

var (
	// ErrNotFound is returned when no ledger row matches the client.
	ErrNotFound = errors.New("ledger: client not found")
	// ErrNotConfigured is returned when the ledger source has no spreadsheet.
	ErrNotConfigured = errors.New("ledger: source not configured")
	// ErrMalformedSheet is returned when required header columns are missing.
	ErrMalformedSheet = errors.New("ledger: malformed sheet")
)

// Header names expected in the first row of the ledger range.
const (
	ColumnClient     = "cliente"
	ColumnBlocked    = "bloqueado"
	ColumnTermDays   = "dias_credito"
	ColumnDisclosure = "desglose_iva"
)

// Record is one client row of the ledger.
type Record struct {
	ClientName     string
	BlockedFlag    string
	TermDays       int
	DisclosureFlag string
}

// DisclosureEnabled interprets the tax-disclosure column.
func (r Record) DisclosureEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(r.DisclosureFlag)) {
	case "si", "sí", "true", "1", "yes":
		return true
	default:
		return false
	}
}

// Source looks up a client's ledger row by display name.
type Source interface {
	Lookup(ctx context.Context, clientName string) (Record, error)
}

// SheetsSource reads the ledger from a Google Sheets range on every lookup.
type SheetsSource struct {
	Service       *sheets.Service
	SpreadsheetID string
	Range         string
	Logger        zerolog.Logger
}

// NewSheetsSource authenticates with a service-account credentials file.
func NewSheetsSource(ctx context.Context, credentialsFile, spreadsheetID, readRange string, opts ...option.ClientOption) (*SheetsSource, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(credentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	opts = append(opts, option.WithScopes(sheets.SpreadsheetsReadonlyScope))
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ledger: create sheets service: %w", err)
	}
	if strings.TrimSpace(readRange) == "" {
		readRange = "Clientes!A:D"
	}
	return &SheetsSource{Service: srv, SpreadsheetID: spreadsheetID, Range: readRange}, nil
}

// Lookup fetches the range and returns the first row matching clientName.
func (s *SheetsSource) Lookup(ctx context.Context, clientName string) (Record, error) {
	if s == nil || s.Service == nil {
		obs.Count(obs.LedgerLookupTotal, "skipped")
		return Record{}, ErrNotConfigured
	}
	resp, err := s.Service.Spreadsheets.Values.Get(s.SpreadsheetID, s.Range).Context(ctx).Do()
	if err != nil {
		obs.Count(obs.LedgerLookupTotal, "error")
		return Record{}, fmt.Errorf("ledger: read range: %w", err)
	}
	rec, err := FindRecord(resp.Values, clientName)
	switch {
	case errors.Is(err, ErrNotFound):
		obs.Count(obs.LedgerLookupTotal, "not_found")
	case err != nil:
		obs.Count(obs.LedgerLookupTotal, "error")
	default:
		obs.Count(obs.LedgerLookupTotal, "ok")
	}
	return rec, err
}

// FindRecord scans sheet rows (header first) for the client, comparing trimmed
// names case-insensitively.
func FindRecord(rows [][]interface{}, clientName string) (Record, error) {
	want := strings.TrimSpace(clientName)
	if want == "" {
		return Record{}, ErrNotFound
	}
	if len(rows) == 0 {
		return Record{}, ErrNotFound
	}
	idx, err := headerIndex(rows[0])
	if err != nil {
		return Record{}, err
	}
	for _, row := range rows[1:] {
		name := cell(row, idx[ColumnClient])
		if !strings.EqualFold(strings.TrimSpace(name), want) {
			continue
		}
		return Record{
			ClientName:     strings.TrimSpace(name),
			BlockedFlag:    cell(row, idx[ColumnBlocked]),
			TermDays:       parseDays(cell(row, idx[ColumnTermDays])),
			DisclosureFlag: cell(row, idx[ColumnDisclosure]),
		}, nil
	}
	return Record{}, ErrNotFound
}

func headerIndex(header []interface{}) (map[string]int, error) {
	idx := map[string]int{ColumnBlocked: -1, ColumnTermDays: -1, ColumnDisclosure: -1}
	found := false
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(fmt.Sprint(h)))
		if key == ColumnClient {
			found = true
		}
		idx[key] = i
	}
	if !found {
		return nil, fmt.Errorf("%w: missing %q column", ErrMalformedSheet, ColumnClient)
	}
	return idx, nil
}

func cell(row []interface{}, i int) string {
	if i < 0 || i >= len(row) || row[i] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

func parseDays(v string) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
		return int(f)
	}
	return 0
}
