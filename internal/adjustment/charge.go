package adjustment

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	accountsPrefix = "/accounts/"
	chargesSuffix  = "/adjustments"
)

// WriteFunc encodes a request body.
type WriteFunc = func(*xml.Encoder) error

// ReadFunc decodes a response body.
type ReadFunc = func(*xml.Decoder) error

// Transport performs a single request against the billing API. path is
// relative to the versioned API base. A nil write sends no body; a nil read
// discards the response body. Non-2xx responses are reported as errors.
type Transport interface {
	Perform(ctx context.Context, method, path string, write WriteFunc, read ReadFunc) (int, error)
}

// ChargesPath returns the adjustments resource of an account. The account code
// is form-encoded, with spaces written as %20 so the result is a valid path
// segment. Escapes use uppercase hex ("%2F"), which servers treat the same as
// the lowercase form.
func ChargesPath(accountCode string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(accountCode), "+", "%20")
	return accountsPrefix + escaped + chargesSuffix
}

// ChargeParams describes a charge to post against an account.
type ChargeParams struct {
	AmountInCents  int
	Quantity       int
	Description    string
	Currency       string
	AccountingCode string
}

// CreateCharge posts a new charge in the default currency against accountCode.
// The returned adjustment has no id: the POST response body is not read.
func CreateCharge(ctx context.Context, t Transport, accountCode string, amountInCents, quantity int, description string) (Adjustment, error) {
	return Charge(ctx, t, accountCode, ChargeParams{
		AmountInCents: amountInCents,
		Quantity:      quantity,
		Description:   description,
	})
}

// Charge posts a charge built from params. Empty Currency keeps the default.
// Transport failures are returned as is; nothing is retried.
func Charge(ctx context.Context, t Transport, accountCode string, params ChargeParams) (Adjustment, error) {
	if strings.TrimSpace(accountCode) == "" {
		return Adjustment{}, fmt.Errorf("%w: account code is required", ErrInvalidCharge)
	}
	if t == nil {
		return Adjustment{}, errors.New("adjustment: transport not configured")
	}

	b := NewBuilder().
		AmountInCents(params.AmountInCents).
		Quantity(params.Quantity).
		StartDate(time.Now().UTC()).
		Description(params.Description)
	if params.Currency != "" {
		b.Currency(params.Currency)
	}
	if params.AccountingCode != "" {
		b.AccountingCode(params.AccountingCode)
	}
	adj := b.Build()

	if _, err := t.Perform(ctx, http.MethodPost, ChargesPath(accountCode), adj.WriteXML, nil); err != nil {
		return Adjustment{}, fmt.Errorf("adjustment: charge account %q: %w", accountCode, err)
	}
	return adj, nil
}

// ListForAccount fetches the adjustments recorded on an account.
func ListForAccount(ctx context.Context, t Transport, accountCode string, opts ...ReadOption) ([]Adjustment, error) {
	if strings.TrimSpace(accountCode) == "" {
		return nil, fmt.Errorf("%w: account code is required", ErrInvalidCharge)
	}
	if t == nil {
		return nil, errors.New("adjustment: transport not configured")
	}

	var items []Adjustment
	read := func(dec *xml.Decoder) error {
		for {
			tok, err := dec.Token()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			start, ok := tok.(xml.StartElement)
			if !ok || start.Name.Local != rootElement {
				continue
			}
			adj, err := ReadXML(dec, opts...)
			if err != nil {
				return err
			}
			items = append(items, adj)
		}
	}
	if _, err := t.Perform(ctx, http.MethodGet, ChargesPath(accountCode), nil, read); err != nil {
		return nil, fmt.Errorf("adjustment: list account %q: %w", accountCode, err)
	}
	return items, nil
}
