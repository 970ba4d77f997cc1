package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/backend-importadora/internal/credit"
	"github.com/noah-isme/backend-importadora/internal/fx"
	"github.com/noah-isme/backend-importadora/internal/ledger"
	"github.com/noah-isme/backend-importadora/internal/money"
	"github.com/noah-isme/backend-importadora/internal/obs"
	"github.com/noah-isme/backend-importadora/internal/pricing"
)

var (
	// ErrInvalidInput indicates the session payload is unusable.
	ErrInvalidInput = errors.New("settlement: invalid input")
	// ErrRateUnavailable is returned when a total that needs conversion has no rate.
	ErrRateUnavailable = errors.New("settlement: exchange rate unavailable")
)

// Warning messages attached to results when a collaborator failed.
const (
	WarnRateUnavailable   = "exchange rate unavailable; converted totals cannot be computed"
	WarnLedgerUnavailable = "client ledger unavailable; credit and tax disclosure disabled"
)

// Shipping is the delivery metadata chosen for the session.
type Shipping struct {
	AddressLabel string `json:"addressLabel,omitempty"`
	Method       string `json:"method,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// Billing is the invoicing metadata used when an invoice is requested.
type Billing struct {
	LegalName string `json:"legalName,omitempty"`
	TaxID     string `json:"taxId,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Session is the explicit per-request configuration of a pricing computation.
type Session struct {
	ClientName   string
	Items        []pricing.LineItem
	Preferred    money.Currency
	WantsInvoice bool
	Payment      credit.Payment
	Shipping     Shipping
	Billing      Billing
}

// Result is what every consumer (quote, order, document) renders.
type Result struct {
	Summary  pricing.Summary `json:"summary"`
	Credit   credit.Decision `json:"credit"`
	Warnings []string        `json:"warnings,omitempty"`
}

// RequireAvailable returns ErrRateUnavailable when the grand total is missing.
func (r Result) RequireAvailable() error {
	if !r.Summary.Available() {
		return ErrRateUnavailable
	}
	return nil
}

// Service computes settlement results from a session and its external lookups.
type Service struct {
	FX            fx.Gateway
	Ledger        ledger.Source
	Logger        zerolog.Logger
	LedgerTimeout time.Duration
	Now           func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ledgerTimeout() time.Duration {
	if s.LedgerTimeout > 0 {
		return s.LedgerTimeout
	}
	return 5 * time.Second
}

// Validate checks the cart before any lookup is attempted.
func (sess Session) Validate() error {
	if len(sess.Items) == 0 {
		return fmt.Errorf("%w: cart is empty", ErrInvalidInput)
	}
	for i, it := range sess.Items {
		if err := it.Validate(); err != nil {
			return fmt.Errorf("%w: item %d: %v", ErrInvalidInput, i, err)
		}
	}
	return nil
}

// Compute runs the FX and ledger lookups concurrently, then assembles the summary.
// Lookup failures degrade the result. Invalid input is an error, and so is a
// caller that went away while the lookups ran.
func (s *Service) Compute(ctx context.Context, sess Session) (Result, error) {
	if err := sess.Validate(); err != nil {
		return Result{}, err
	}

	var (
		quote     *fx.Quote
		record    ledger.Record
		ledgerErr error
		g         errgroup.Group
	)
	g.Go(func() error {
		quote = s.fetchRate(ctx)
		return context.Cause(ctx)
	})
	g.Go(func() error {
		record, ledgerErr = s.lookupClient(ctx, sess.ClientName)
		return context.Cause(ctx)
	})
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("settlement: compute aborted: %w", err)
	}

	var warnings []string
	terms := credit.Ineligible()
	tax := pricing.TaxProfile{WantsInvoice: sess.WantsInvoice}
	if ledgerErr == nil {
		terms = credit.Evaluate(record.BlockedFlag, record.TermDays)
		tax.DisclosureEnabled = record.DisclosureEnabled()
	} else {
		warnings = append(warnings, WarnLedgerUnavailable)
	}

	in := pricing.Input{Items: sess.Items, Preferred: sess.Preferred, Tax: tax}
	if quote != nil {
		rate := quote.Rate
		in.Rate = &rate
		in.RateDate = quote.AsOf
	}
	summary := pricing.NewAssembler().Assemble(in)
	obs.Count(obs.SettlementComputationsTotal, string(summary.State))
	if summary.State == pricing.StateUnavailable {
		warnings = append(warnings, WarnRateUnavailable)
	}

	return Result{
		Summary:  summary,
		Credit:   credit.Decide(terms, sess.Payment, s.now()),
		Warnings: warnings,
	}, nil
}

func (s *Service) fetchRate(ctx context.Context) *fx.Quote {
	if s.FX == nil {
		return nil
	}
	quote, err := s.FX.FetchDailyRate(ctx)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("fx_rate_unavailable")
		return nil
	}
	return quote
}

func (s *Service) lookupClient(ctx context.Context, clientName string) (ledger.Record, error) {
	if strings.TrimSpace(clientName) == "" {
		return ledger.Record{}, ledger.ErrNotFound
	}
	if s.Ledger == nil {
		return ledger.Record{}, ledger.ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, s.ledgerTimeout())
	defer cancel()
	rec, err := s.Ledger.Lookup(ctx, clientName)
	if err != nil {
		s.Logger.Warn().Err(err).Str("client", clientName).Msg("ledger_lookup_failed")
		return ledger.Record{}, err
	}
	return rec, nil
}
