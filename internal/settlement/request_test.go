package settlement

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-importadora/internal/credit"
	"github.com/noah-isme/backend-importadora/internal/money"
)

func TestDecodeSessionNormalises(t *testing.T) {
	body := `{
		"items": [
			{"productName": " Limón ", "presentation": "20kg", "quantity": 2, "unitPrice": "225.00", "currency": "usd"},
			{"productName": "Chile", "presentation": "10kg", "quantity": 1, "unitPrice": 100, "currency": "MXN"},
			{"productName": "Papaya", "quantity": 1, "unitPrice": "5"}
		],
		"preferredCurrency": "mxn",
		"wantsInvoice": true,
		"payment": "credit",
		"shipping": {"addressLabel": "Bodega 4", "method": "flete"}
	}`
	sess, err := DecodeSession(strings.NewReader(body), "Frutas del Norte")
	require.NoError(t, err)
	require.Equal(t, "Frutas del Norte", sess.ClientName)
	require.Equal(t, money.MXN, sess.Preferred)
	require.Equal(t, credit.PaymentCredit, sess.Payment)
	require.True(t, sess.WantsInvoice)
	require.Len(t, sess.Items, 3)
	require.Equal(t, "Limón", sess.Items[0].ProductName)
	require.Equal(t, money.USD, sess.Items[0].Currency)
	require.Equal(t, money.MXN, sess.Items[1].Currency)
	require.Equal(t, money.USD, sess.Items[2].Currency)
	require.Equal(t, "Bodega 4", sess.Shipping.AddressLabel)
}

func TestDecodeSessionBodyClientWins(t *testing.T) {
	sess, err := DecodeSession(strings.NewReader(`{"clientName":"Mercado Central","items":[{"productName":"x","quantity":1,"unitPrice":"1"}]}`), "Otro")
	require.NoError(t, err)
	require.Equal(t, "Mercado Central", sess.ClientName)
}

func TestDecodeSessionRejects(t *testing.T) {
	cases := map[string]string{
		"empty cart":     `{"items": []}`,
		"zero quantity":  `{"items": [{"productName":"x","quantity":0,"unitPrice":"1"}]}`,
		"zero price":     `{"items": [{"productName":"x","quantity":1,"unitPrice":"0"}]}`,
		"missing name":   `{"items": [{"quantity":1,"unitPrice":"1"}]}`,
		"bad currency":   `{"preferredCurrency":"EUR","items": [{"productName":"x","quantity":1,"unitPrice":"1"}]}`,
		"unknown field":  `{"foo":1,"items": [{"productName":"x","quantity":1,"unitPrice":"1"}]}`,
		"not json":       `nope`,
		"negative price": `{"items": [{"productName":"x","quantity":1,"unitPrice":"-3"}]}`,
		"price scale":    `{"items": [{"productName":"x","quantity":1,"unitPrice":"0.00001"}]}`,
		"price too big":  `{"items": [{"productName":"x","quantity":1,"unitPrice":"10000000000"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSession(strings.NewReader(body), "")
			require.ErrorIs(t, err, ErrInvalidInput)
			var reqErr *RequestError
			require.True(t, errors.As(err, &reqErr))
		})
	}
}

func TestDecodeSessionUnitPriceScale(t *testing.T) {
	sess, err := DecodeSession(strings.NewReader(`{"items": [{"productName":"x","quantity":1,"unitPrice":"12.34560"}]}`), "")
	require.NoError(t, err)
	require.Equal(t, "12.3456", sess.Items[0].UnitPrice.String())

	_, err = DecodeSession(strings.NewReader(`{"items": [{"productName":"x","quantity":1,"unitPrice":"12.34567"}]}`), "")
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, "scale", reqErr.Fields[0].Rule)
}
