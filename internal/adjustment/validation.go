package adjustment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/currency"
)

// ChargeInput is a charge request as accepted by the service layer.
type ChargeInput struct {
	AccountCode    string `json:"account_code" validate:"required,max=50"`
	AmountInCents  int    `json:"amount_in_cents"`
	Quantity       int    `json:"quantity" validate:"min=1"`
	Description    string `json:"description" validate:"max=255"`
	Currency       string `json:"currency" validate:"omitempty,billing_currency"`
	AccountingCode string `json:"accounting_code" validate:"max=20"`
	IdempotencyKey string `json:"idempotency_key" validate:"max=255"`
}

func (in ChargeInput) normalize() ChargeInput {
	in.AccountCode = strings.TrimSpace(in.AccountCode)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.AccountingCode = strings.TrimSpace(in.AccountingCode)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	return in
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("billing_currency", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		if len(code) != 3 {
			return false
		}
		_, err := currency.ParseISO(code)
		return err == nil
	})
	return v
}

func validateInput(v *validator.Validate, in ChargeInput) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidCharge, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidCharge, strings.Join(msgs, "; "))
}
