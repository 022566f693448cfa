package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerateScheduleTwelveEqualInstallments(t *testing.T) {
	specs, err := GenerateSchedule(decimal.NewFromInt(12000), 12, date(2024, time.January, 15))
	require.NoError(t, err)
	require.Len(t, specs, 12)

	for i, spec := range specs {
		require.Equal(t, i+1, spec.Number)
		require.True(t, spec.Value.Equal(decimal.NewFromInt(1000)), "installment %d value %s", spec.Number, spec.Value)
		require.Equal(t, date(2024, time.January+time.Month(i), 15), spec.DueDate)
	}
	require.Equal(t, date(2024, time.December, 15), specs[11].DueDate)
}

func TestGenerateScheduleRoundsToCents(t *testing.T) {
	specs, err := GenerateSchedule(decimal.NewFromInt(100), 3, date(2024, time.March, 1))
	require.NoError(t, err)
	require.Len(t, specs, 3)
	for _, spec := range specs {
		require.Equal(t, "33.33", spec.Value.StringFixed(2))
	}
}

func TestGenerateScheduleClampsEndOfMonth(t *testing.T) {
	specs, err := GenerateSchedule(decimal.NewFromInt(3000), 3, date(2024, time.January, 31))
	require.NoError(t, err)
	require.Equal(t, date(2024, time.January, 31), specs[0].DueDate)
	require.Equal(t, date(2024, time.February, 29), specs[1].DueDate)
	require.Equal(t, date(2024, time.March, 31), specs[2].DueDate)
}

func TestGenerateScheduleStrictlyIncreasingDates(t *testing.T) {
	specs, err := GenerateSchedule(decimal.NewFromInt(36000), 36, date(2023, time.October, 30))
	require.NoError(t, err)
	for i := 1; i < len(specs); i++ {
		require.True(t, specs[i].DueDate.After(specs[i-1].DueDate))
	}
}

func TestGenerateScheduleDeterministic(t *testing.T) {
	first, err := GenerateSchedule(decimal.NewFromFloat(45999.90), 48, date(2024, time.May, 10))
	require.NoError(t, err)
	second, err := GenerateSchedule(decimal.NewFromFloat(45999.90), 48, date(2024, time.May, 10))
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestGenerateScheduleRejectsInvalidInput(t *testing.T) {
	_, err := GenerateSchedule(decimal.NewFromInt(1000), 0, date(2024, time.January, 1))
	require.Error(t, err)

	_, err = GenerateSchedule(decimal.NewFromInt(1000), 361, date(2024, time.January, 1))
	require.Error(t, err)

	_, err = GenerateSchedule(decimal.Zero, 12, date(2024, time.January, 1))
	require.Error(t, err)

	_, err = GenerateSchedule(decimal.NewFromInt(-500), 12, date(2024, time.January, 1))
	require.Error(t, err)
}
