package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-importadora/internal/money"
)

// State is the lifecycle of a summary computation.
type State string

const (
	StateIdle        State = "idle"
	StateComputing   State = "computing"
	StateReady       State = "ready"
	StateUnavailable State = "unavailable"
)

// MixedCurrencyNote is attached to every summary whose cart mixes currencies.
const MixedCurrencyNote = "MXN-priced lines can only be settled in MXN"

// Input is everything a summary depends on. Nothing else is read.
type Input struct {
	Items     []LineItem
	Preferred money.Currency
	// Rate is the raw reference rate (MXN per USD); nil when the gateway failed.
	Rate     *decimal.Decimal
	RateDate time.Time
	Tax      TaxProfile
}

// Line is a priced cart line as shown on screen and on the document.
type Line struct {
	ProductName    string         `json:"productName"`
	Presentation   string         `json:"presentation"`
	PackagingLabel string         `json:"packagingLabel,omitempty"`
	Quantity       int            `json:"quantity"`
	UnitPrice      money.Amount   `json:"unitPrice"`
	Currency       money.Currency `json:"currency"`
	Total          money.Amount   `json:"total"`
}

// Summary is the single financial view of a cart. Every consumer renders it as is.
type Summary struct {
	State             State          `json:"state"`
	PreferredCurrency money.Currency `json:"preferredCurrency"`
	Lines             []Line         `json:"lines"`
	NativeUSD         money.Amount   `json:"nativeUSD"`
	NativeMXN         money.Amount   `json:"nativeMXN"`
	Rate              *money.Amount  `json:"rate"`
	RateDate          string         `json:"rateDate,omitempty"`
	GrandTotal        *money.Amount  `json:"grandTotal"`
	Mixed             bool           `json:"mixed"`
	MixedCurrencyNote string         `json:"mixedCurrencyNote,omitempty"`
	Invoice           bool           `json:"invoice"`
	Breakdowns        []Breakdown    `json:"breakdowns,omitempty"`
}

// Available reports whether the grand total could be computed.
func (s Summary) Available() bool {
	return s.State == StateReady && s.GrandTotal != nil
}

// Assembler drives Idle -> Computing -> Ready|Unavailable for one session.
// Instances are not shared between requests.
type Assembler struct {
	state        State
	OnTransition func(from, to State)
}

// NewAssembler returns an assembler in the Idle state.
func NewAssembler() *Assembler {
	return &Assembler{state: StateIdle}
}

// State returns the state reached by the last Assemble call.
func (a *Assembler) State() State {
	if a.state == "" {
		return StateIdle
	}
	return a.state
}

func (a *Assembler) transition(next State) {
	prev := a.State()
	a.state = next
	if a.OnTransition != nil && prev != next {
		a.OnTransition(prev, next)
	}
}

// Assemble recomputes the summary from scratch.
func (a *Assembler) Assemble(in Input) Summary {
	a.transition(StateComputing)

	preferred := money.ParseCurrency(string(in.Preferred))
	items := Normalize(in.Items)
	buckets := Bucket(items)

	var rate *decimal.Decimal
	if in.Rate != nil && in.Rate.IsPositive() {
		r := TruncateRate(*in.Rate)
		if r.IsPositive() {
			rate = &r
		}
	}

	out := Summary{
		PreferredCurrency: preferred,
		Lines:             make([]Line, 0, len(items)),
		NativeUSD:         money.NewAmount(money.Round2(buckets.USD)),
		NativeMXN:         money.NewAmount(money.Round2(buckets.MXN)),
		Mixed:             buckets.Mixed(),
		Invoice:           in.Tax.WantsInvoice,
	}
	for _, it := range items {
		out.Lines = append(out.Lines, Line{
			ProductName:    it.ProductName,
			Presentation:   it.Presentation,
			PackagingLabel: it.PackagingLabel,
			Quantity:       it.Quantity,
			UnitPrice:      money.NewAmount(it.UnitPrice),
			Currency:       it.Currency,
			Total:          money.NewAmount(money.Round2(it.Total())),
		})
	}
	if out.Mixed {
		out.MixedCurrencyNote = MixedCurrencyNote
	}
	if rate != nil {
		out.Rate = money.AmountPtr(*rate)
		if !in.RateDate.IsZero() {
			out.RateDate = in.RateDate.Format(time.DateOnly)
		}
	}

	total, ok := Combine(buckets, preferred, rate)
	if ok {
		out.GrandTotal = money.AmountPtr(total)
	}
	if in.Tax.Discloses() {
		out.Breakdowns = chargedBreakdowns(buckets, preferred, out.GrandTotal)
	}

	if ok {
		out.State = StateReady
	} else {
		out.State = StateUnavailable
	}
	a.transition(out.State)
	return out
}

// chargedBreakdowns decomposes each bucket actually charged: the single combined
// bucket under MXN preference, otherwise each non-empty native bucket.
func chargedBreakdowns(b Buckets, preferred money.Currency, grand *money.Amount) []Breakdown {
	var out []Breakdown
	if preferred == money.MXN {
		if grand != nil && grand.IsPositive() {
			out = append(out, Decompose(money.MXN, grand.Decimal))
		}
		return out
	}
	if b.USD.IsPositive() {
		out = append(out, Decompose(money.USD, b.USD))
	}
	if b.MXN.IsPositive() {
		out = append(out, Decompose(money.MXN, b.MXN))
	}
	return out
}
