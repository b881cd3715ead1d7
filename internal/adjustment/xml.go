package adjustment

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const rootElement = "adjustment"

// Element names read from API responses. The write side uses
// unit_amount_in_cents for the amount; both names are part of the wire contract.
const (
	elemID             = "id"
	elemStartDate      = "start_date"
	elemEndDate        = "end_date"
	elemAmountInCents  = "amount_in_cents"
	elemUnitAmount     = "unit_amount_in_cents"
	elemQuantity       = "quantity"
	elemDescription    = "description"
	elemCurrency       = "currency"
	elemAccountingCode = "accounting_code"
)

// MarshalXML writes the request form of the adjustment. Server-owned fields
// (id, start_date, end_date) are never sent.
func (a Adjustment) MarshalXML(enc *xml.Encoder, start xml.StartElement) error {
	start = xml.StartElement{Name: xml.Name{Local: rootElement}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	fields := []struct {
		name  string
		value string
	}{
		{elemUnitAmount, strconv.Itoa(a.amountInCents)},
		{elemDescription, a.description},
		{elemQuantity, strconv.Itoa(a.quantity)},
		{elemCurrency, a.currency},
		{elemAccountingCode, a.accountingCode},
	}
	for _, f := range fields {
		if err := enc.EncodeElement(f.value, xml.StartElement{Name: xml.Name{Local: f.name}}); err != nil {
			return fmt.Errorf("adjustment: write %s: %w", f.name, err)
		}
	}
	return enc.EncodeToken(start.End())
}

// WriteXML encodes the adjustment request body onto enc.
func (a Adjustment) WriteXML(enc *xml.Encoder) error {
	return enc.Encode(a)
}

// ReadOption customises ReadXML.
type ReadOption func(*readConfig)

type readConfig struct {
	logger *slog.Logger
}

// WithLogger routes lenient-parse diagnostics to logger.
func WithLogger(logger *slog.Logger) ReadOption {
	return func(c *readConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Parse reads a single adjustment document from r.
func Parse(r io.Reader, opts ...ReadOption) (Adjustment, error) {
	return ReadXML(xml.NewDecoder(r), opts...)
}

// ReadXML consumes tokens until the first </adjustment> end tag and returns the
// adjustment built from the recognised child elements. Termination matches on
// the element name only, not on nesting depth. Unparseable numbers and dates are
// skipped and the field keeps its previous value. Unknown elements are ignored.
func ReadXML(dec *xml.Decoder, opts ...ReadOption) (Adjustment, error) {
	cfg := readConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	b := NewBuilder()
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Adjustment{}, fmt.Errorf("adjustment: read xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == rootElement {
				return b.Build(), nil
			}
		case xml.StartElement:
			if err := readField(dec, t, b, cfg.logger); err != nil {
				return Adjustment{}, err
			}
		}
	}
	return b.Build(), nil
}

func readField(dec *xml.Decoder, start xml.StartElement, b *Builder, logger *slog.Logger) error {
	name := start.Name.Local
	switch name {
	case elemID, elemStartDate, elemEndDate, elemAmountInCents, elemQuantity,
		elemDescription, elemCurrency, elemAccountingCode:
	default:
		return nil
	}

	var text string
	if err := dec.DecodeElement(&text, &start); err != nil {
		return fmt.Errorf("adjustment: read %s: %w", name, err)
	}

	switch name {
	case elemID:
		b.ID(text)
	case elemDescription:
		b.Description(text)
	case elemCurrency:
		b.Currency(text)
	case elemAccountingCode:
		b.AccountingCode(text)
	case elemStartDate:
		if t, ok := ParseDate(text); ok {
			b.StartDate(t)
		} else {
			logger.Debug("adjustment: ignoring malformed date", slog.String("element", name), slog.String("value", text))
		}
	case elemEndDate:
		if t, ok := ParseDate(text); ok {
			b.EndDate(t)
		} else {
			logger.Debug("adjustment: ignoring malformed date", slog.String("element", name), slog.String("value", text))
		}
	case elemAmountInCents:
		if n, ok := parseInt(text); ok {
			b.AmountInCents(n)
		} else {
			logger.Debug("adjustment: ignoring malformed integer", slog.String("element", name), slog.String("value", text))
		}
	case elemQuantity:
		if n, ok := parseInt(text); ok {
			b.Quantity(n)
		} else {
			logger.Debug("adjustment: ignoring malformed integer", slog.String("element", name), slog.String("value", text))
		}
	}
	return nil
}

// ParseDate accepts the loose timestamp formats the billing API and its
// clients emit. Values without a zone are read as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseInt accepts 32-bit signed integers with surrounding whitespace.
func parseInt(s string) (int, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, false
	}
	return int(n), true
}
