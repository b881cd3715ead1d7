// Package adjustment models one-off charges and credits on a billing account and
// the XML plumbing used to create and read them through the billing API.
package adjustment

import (
	"errors"
	"time"
)

// DefaultCurrency is applied to every freshly built adjustment.
const DefaultCurrency = "USD"

// DefaultQuantity is applied to every freshly built adjustment.
const DefaultQuantity = 1

// ErrNoID is returned when comparing adjustments that were never read back
// from the billing API.
var ErrNoID = errors.New("adjustment: comparison requires a server-assigned id")

// ErrInvalidCharge indicates the charge request failed validation.
var ErrInvalidCharge = errors.New("adjustment: invalid charge")

// ErrDuplicateRequest indicates the idempotency key was already used.
var ErrDuplicateRequest = errors.New("adjustment: duplicate charge request")

// Adjustment is a single billing line item. Values are read-only once built;
// use Builder to assemble one.
type Adjustment struct {
	id             string
	hasID          bool
	amountInCents  int
	quantity       int
	startDate      time.Time
	hasStartDate   bool
	endDate        time.Time
	hasEndDate     bool
	description    string
	currency       string
	accountingCode string
	hasAccounting  bool
}

// New returns an adjustment carrying the fresh-construction defaults.
func New() Adjustment {
	return Adjustment{quantity: DefaultQuantity, currency: DefaultCurrency}
}

// ID returns the server-assigned identifier, if any.
func (a Adjustment) ID() (string, bool) { return a.id, a.hasID }

// AmountInCents returns the unit amount. Negative values are credits.
func (a Adjustment) AmountInCents() int { return a.amountInCents }

// Quantity returns the unit multiplier.
func (a Adjustment) Quantity() int { return a.quantity }

// StartDate returns when the adjustment takes effect.
func (a Adjustment) StartDate() (time.Time, bool) { return a.startDate, a.hasStartDate }

// EndDate returns when the adjustment stops applying, if it does.
func (a Adjustment) EndDate() (time.Time, bool) { return a.endDate, a.hasEndDate }

// Description returns the invoice text.
func (a Adjustment) Description() string { return a.description }

// Currency returns the ISO 4217 code.
func (a Adjustment) Currency() string { return a.currency }

// AccountingCode returns the external ledger code, if any.
func (a Adjustment) AccountingCode() (string, bool) { return a.accountingCode, a.hasAccounting }

// Equal reports whether both adjustments carry the same id. Adjustments that
// have not been read back from the API have no identity and yield ErrNoID.
func (a Adjustment) Equal(other Adjustment) (bool, error) {
	if !a.hasID || !other.hasID {
		return false, ErrNoID
	}
	return a.id == other.id, nil
}

func (a Adjustment) String() string {
	return "Billing Adjustment: " + a.id
}

// Builder assembles an Adjustment incrementally, as done while parsing.
type Builder struct {
	adj Adjustment
}

// NewBuilder starts from the fresh-construction defaults.
func NewBuilder() *Builder {
	return &Builder{adj: New()}
}

func (b *Builder) ID(id string) *Builder {
	b.adj.id, b.adj.hasID = id, true
	return b
}

func (b *Builder) AmountInCents(amount int) *Builder {
	b.adj.amountInCents = amount
	return b
}

func (b *Builder) Quantity(qty int) *Builder {
	b.adj.quantity = qty
	return b
}

func (b *Builder) StartDate(t time.Time) *Builder {
	b.adj.startDate, b.adj.hasStartDate = t, true
	return b
}

func (b *Builder) EndDate(t time.Time) *Builder {
	b.adj.endDate, b.adj.hasEndDate = t, true
	return b
}

func (b *Builder) Description(desc string) *Builder {
	b.adj.description = desc
	return b
}

func (b *Builder) Currency(code string) *Builder {
	b.adj.currency = code
	return b
}

func (b *Builder) AccountingCode(code string) *Builder {
	b.adj.accountingCode, b.adj.hasAccounting = code, true
	return b
}

// Build returns a copy of the assembled adjustment.
func (b *Builder) Build() Adjustment {
	return b.adj
}
