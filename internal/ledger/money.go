package ledger

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// Amounts are two-decimal monetary strings. Anything else is rejected before
// a transaction is opened.
var amountPattern = regexp.MustCompile(`^\d+\.\d{2}$`)

// ValidationError rejects malformed input before any mutation.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// ValidateAmount checks the two-decimal format without mutating anything.
// Services use it to reject bad input before creating records.
func ValidateAmount(raw string) error {
	_, err := parseAmount(raw)
	return err
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if !amountPattern.MatchString(raw) {
		return decimal.Zero, &ValidationError{
			Field:  "amount",
			Value:  raw,
			Reason: "must be a non-negative value with exactly two decimal places",
		}
	}
	amt, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Value: raw, Reason: err.Error()}
	}
	return amt, nil
}
