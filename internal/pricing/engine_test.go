package pricing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-importadora/internal/money"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func item(name string, qty int, price string, currency money.Currency) LineItem {
	return LineItem{ProductName: name, Presentation: "10kg", Quantity: qty, UnitPrice: dec(price), Currency: currency}
}

func TestBucketIsOrderIndependent(t *testing.T) {
	items := []LineItem{
		item("limon", 3, "12.40", money.USD),
		item("aguacate", 2, "310.55", money.MXN),
		item("mango", 7, "9.99", "usd"),
		item("papaya", 1, "45", ""),
		item("chile", 4, "88.10", " mxn "),
	}
	want := Bucket(items)
	require.True(t, want.USD.Equal(dec("152.13")), want.USD.String())
	require.True(t, want.MXN.Equal(dec("973.50")), want.MXN.String())

	reversed := make([]LineItem, len(items))
	for i := range items {
		reversed[len(items)-1-i] = items[i]
	}
	got := Bucket(reversed)
	require.True(t, want.USD.Equal(got.USD))
	require.True(t, want.MXN.Equal(got.MXN))

	rotated := append(append([]LineItem{}, items[2:]...), items[:2]...)
	got = Bucket(rotated)
	require.True(t, want.USD.Equal(got.USD))
	require.True(t, want.MXN.Equal(got.MXN))
}

func TestBucketUnknownCurrencyDefaultsToUSD(t *testing.T) {
	b := Bucket([]LineItem{item("x", 1, "10", "EUR")})
	require.True(t, b.USD.Equal(dec("10")))
	require.True(t, b.MXN.IsZero())
	require.False(t, b.Mixed())
}

func TestLineItemValidate(t *testing.T) {
	require.NoError(t, item("limon", 1, "1", money.USD).Validate())
	require.ErrorIs(t, item("limon", 0, "1", money.USD).Validate(), ErrInvalidItem)
	require.ErrorIs(t, item("limon", 1, "0", money.USD).Validate(), ErrInvalidItem)
	require.ErrorIs(t, item(" ", 1, "1", money.USD).Validate(), ErrInvalidItem)
}

func TestCombineSingleCurrencyPassthrough(t *testing.T) {
	b := Buckets{USD: dec("450"), MXN: decimal.Zero}
	total, ok := Combine(b, money.USD, nil)
	require.True(t, ok)
	require.Equal(t, "450.00", total.StringFixed(2))

	_, ok = Combine(b, money.MXN, nil)
	require.False(t, ok, "converting USD into MXN needs a rate")

	total, ok = Combine(b, money.MXN, decPtr("18.23"))
	require.True(t, ok)
	require.Equal(t, "8203.50", total.StringFixed(2))
}

func TestCombinePreferredUSDDividesPesos(t *testing.T) {
	b := Buckets{USD: dec("100"), MXN: dec("1823")}
	total, ok := Combine(b, money.USD, decPtr("18.23"))
	require.True(t, ok)
	require.Equal(t, "200.00", total.StringFixed(2))

	_, ok = Combine(b, money.USD, nil)
	require.False(t, ok)
}

func TestDecomposeRoundTrips(t *testing.T) {
	for cents := int64(1); cents < 500_000; cents += 997 {
		total := decimal.New(cents, -2)
		br := Decompose(money.MXN, total)
		require.True(t, br.Subtotal.Add(br.Tax.Decimal).Equal(total), "total %s", total)
		require.True(t, br.Total.Equal(total))
	}
}

func TestTaxProfileOnlyDisclosesWithInvoice(t *testing.T) {
	require.False(t, TaxProfile{}.Discloses())
	require.False(t, TaxProfile{DisclosureEnabled: true}.Discloses())
	require.False(t, TaxProfile{WantsInvoice: true}.Discloses())
	require.True(t, TaxProfile{WantsInvoice: true, DisclosureEnabled: true}.Discloses())
}

func TestAssembleUSDCartWithoutInvoice(t *testing.T) {
	a := NewAssembler()
	require.Equal(t, StateIdle, a.State())

	s := a.Assemble(Input{
		Items:     []LineItem{item("uva", 2, "225.00", money.USD)},
		Preferred: money.USD,
	})
	require.Equal(t, StateReady, a.State())
	require.Equal(t, StateReady, s.State)
	require.NotNil(t, s.GrandTotal)
	require.Equal(t, "450.00", s.GrandTotal.Fixed())
	require.Empty(t, s.Breakdowns)
	require.False(t, s.Mixed)
	require.Empty(t, s.MixedCurrencyNote)
}

func TestAssembleUSDCartWithDisclosure(t *testing.T) {
	s := NewAssembler().Assemble(Input{
		Items:     []LineItem{item("uva", 2, "225.00", money.USD)},
		Preferred: money.USD,
		Tax:       TaxProfile{WantsInvoice: true, DisclosureEnabled: true},
	})
	require.Equal(t, "450.00", s.GrandTotal.Fixed())
	require.Len(t, s.Breakdowns, 1)
	br := s.Breakdowns[0]
	require.Equal(t, money.USD, br.Currency)
	require.Equal(t, "387.93", br.Subtotal.Fixed())
	require.Equal(t, "62.07", br.Tax.Fixed())
	require.Equal(t, "450.00", br.Total.Fixed())
}

func TestAssembleMixedCartPreferredMXN(t *testing.T) {
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	s := NewAssembler().Assemble(Input{
		Items: []LineItem{
			item("limon", 1, "100", money.USD),
			item("chile", 1, "100", money.MXN),
		},
		Preferred: money.MXN,
		Rate:      decPtr("18.237"),
		RateDate:  asOf,
	})
	require.Equal(t, StateReady, s.State)
	require.Equal(t, "18.23", s.Rate.Fixed())
	require.Equal(t, "2026-03-02", s.RateDate)
	require.Equal(t, "1923.00", s.GrandTotal.Fixed())
	require.True(t, s.Mixed)
	require.Equal(t, MixedCurrencyNote, s.MixedCurrencyNote)
}

func TestAssembleRateUnavailableIsNotZero(t *testing.T) {
	var transitions []State
	a := NewAssembler()
	a.OnTransition = func(_, to State) { transitions = append(transitions, to) }

	s := a.Assemble(Input{
		Items:     []LineItem{item("limon", 1, "100", money.USD)},
		Preferred: money.MXN,
	})
	require.Equal(t, StateUnavailable, s.State)
	require.Nil(t, s.GrandTotal)
	require.Nil(t, s.Rate)
	require.False(t, s.Available())
	require.Equal(t, []State{StateComputing, StateUnavailable}, transitions)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Contains(t, decoded, "grandTotal")
	require.Nil(t, decoded["grandTotal"])
}

func TestAssembleRecoversOnceRateArrives(t *testing.T) {
	a := NewAssembler()
	in := Input{Items: []LineItem{item("limon", 1, "100", money.USD)}, Preferred: money.MXN}
	require.Equal(t, StateUnavailable, a.Assemble(in).State)

	in.Rate = decPtr("17.5")
	s := a.Assemble(in)
	require.Equal(t, StateReady, a.State())
	require.Equal(t, "1750.00", s.GrandTotal.Fixed())
}

func TestDisclosureNeverChangesTotals(t *testing.T) {
	items := []LineItem{
		item("limon", 3, "12.37", money.USD),
		item("chile", 5, "77.10", money.MXN),
	}
	for _, preferred := range []money.Currency{money.USD, money.MXN} {
		base := Input{Items: items, Preferred: preferred, Rate: decPtr("19.4471")}
		plain := NewAssembler().Assemble(base)
		base.Tax = TaxProfile{WantsInvoice: true, DisclosureEnabled: true}
		disclosed := NewAssembler().Assemble(base)

		require.Equal(t, plain.GrandTotal.Fixed(), disclosed.GrandTotal.Fixed(), preferred)
		require.Equal(t, plain.NativeUSD.Fixed(), disclosed.NativeUSD.Fixed())
		require.Equal(t, plain.NativeMXN.Fixed(), disclosed.NativeMXN.Fixed())
		require.NotEmpty(t, disclosed.Breakdowns)
		for _, br := range disclosed.Breakdowns {
			require.True(t, br.Subtotal.Add(br.Tax.Decimal).Equal(br.Total.Decimal))
		}
	}
}

func TestChargedBucketsFollowPreference(t *testing.T) {
	items := []LineItem{
		item("limon", 1, "100", money.USD),
		item("chile", 1, "100", money.MXN),
	}
	tax := TaxProfile{WantsInvoice: true, DisclosureEnabled: true}

	mxn := NewAssembler().Assemble(Input{Items: items, Preferred: money.MXN, Rate: decPtr("18.237"), Tax: tax})
	require.Len(t, mxn.Breakdowns, 1)
	require.Equal(t, money.MXN, mxn.Breakdowns[0].Currency)
	require.Equal(t, "1923.00", mxn.Breakdowns[0].Total.Fixed())

	usd := NewAssembler().Assemble(Input{Items: items, Preferred: money.USD, Rate: decPtr("18.237"), Tax: tax})
	require.Len(t, usd.Breakdowns, 2)
	require.Equal(t, money.USD, usd.Breakdowns[0].Currency)
	require.Equal(t, "100.00", usd.Breakdowns[0].Total.Fixed())
	require.Equal(t, money.MXN, usd.Breakdowns[1].Currency)
	require.Equal(t, "100.00", usd.Breakdowns[1].Total.Fixed())
}

func TestSummaryJSONRoundTripPreservesFigures(t *testing.T) {
	s := NewAssembler().Assemble(Input{
		Items:     []LineItem{item("uva", 2, "225.00", money.USD)},
		Preferred: money.USD,
		Tax:       TaxProfile{WantsInvoice: true, DisclosureEnabled: true},
	})
	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var back Summary
	require.NoError(t, json.Unmarshal(raw, &back))
	again, err := json.Marshal(back)
	require.NoError(t, err)
	require.JSONEq(t, string(raw), string(again))
}
