package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solterra/solterra/internal/shared"
)

const maxInstallments = 360

// GenerateSchedule expands a total value into count equal installments due
// monthly from firstDue. Values are rounded to cents; any rounding remainder
// is accepted rather than folded into the last installment, so every invoice
// of a plan carries the same amount.
func GenerateSchedule(totalValue decimal.Decimal, count int, firstDue time.Time) ([]InstallmentSpec, error) {
	if count < 1 || count > maxInstallments {
		return nil, fmt.Errorf("%w: installment count must be between 1 and %d", shared.ErrValidation, maxInstallments)
	}
	if !totalValue.IsPositive() {
		return nil, fmt.Errorf("%w: total value must be positive", shared.ErrValidation)
	}

	value := totalValue.Div(decimal.NewFromInt(int64(count))).Round(2)

	specs := make([]InstallmentSpec, 0, count)
	for i := 0; i < count; i++ {
		specs = append(specs, InstallmentSpec{
			Number:  i + 1,
			Value:   value,
			DueDate: addMonths(firstDue, i),
		})
	}
	return specs, nil
}

// addMonths advances a date by n calendar months, clamping the day to the
// last day of the target month (Jan 31 + 1 month = Feb 28/29, not Mar 2/3).
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	last := target.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d, 0, 0, 0, 0, t.Location())
}
