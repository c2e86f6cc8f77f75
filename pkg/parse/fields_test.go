package parse

import (
	"testing"

	"github.com/raterudder/gukk/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastIndication(t *testing.T) {
	t.Run("Trailing Letter", func(t *testing.T) {
		n, d := LastIndication("Последнее показание 123 от 18.02.2025г")
		require.NotNil(t, n)
		require.NotNil(t, d)
		assert.Equal(t, int64(123), *n)
		assert.Equal(t, "18.02.2025", *d)
	})

	t.Run("Cyrillic Date", func(t *testing.T) {
		n, d := LastIndication("Последнее показание 77 от 05.фев.2025г")
		require.NotNil(t, n)
		require.NotNil(t, d)
		assert.Equal(t, int64(77), *n)
		assert.Equal(t, "05.фев.2025", *d)
	})

	t.Run("No Trailing Letter", func(t *testing.T) {
		n, d := LastIndication("Предыдущие показания: 4567 от 01.12.2024")
		require.NotNil(t, n)
		assert.Equal(t, int64(4567), *n)
		assert.Equal(t, "01.12.2024", *d)
	})

	t.Run("First Match Wins", func(t *testing.T) {
		n, d := LastIndication(
			"Счетчик поверен",
			"Последнее показание 10 от 01.01.2025г",
			"Последнее показание 20 от 01.02.2025г",
		)
		require.NotNil(t, n)
		assert.Equal(t, int64(10), *n)
		assert.Equal(t, "01.01.2025", *d)
	})

	t.Run("No Match", func(t *testing.T) {
		n, d := LastIndication("Показания не передавались", "")
		assert.Nil(t, n)
		assert.Nil(t, d)

		n, d = LastIndication()
		assert.Nil(t, n)
		assert.Nil(t, d)
	})

	t.Run("Info Shapes", func(t *testing.T) {
		n, d := LastIndicationFromInfo(types.SingleInfo("Последнее показание 7 от 02.03.2025г"))
		require.NotNil(t, n)
		assert.Equal(t, int64(7), *n)
		assert.Equal(t, "02.03.2025", *d)

		n, _ = LastIndicationFromInfo(types.MultiInfo("x", "Последнее показание 8 от 02.03.2025"))
		require.NotNil(t, n)
		assert.Equal(t, int64(8), *n)

		n, d = LastIndicationFromInfo(types.MeterInfo{})
		assert.Nil(t, n)
		assert.Nil(t, d)
	})
}

func TestClassifyDetail(t *testing.T) {
	tests := []struct {
		label string
		want  DetailKind
	}{
		{"Задолженность (основные услуги)", DetailDebt},
		{"Задолженность (основные услуги) на 01.02.2025", DetailDebt},
		{"Переплата (основные услуги)", DetailCredit},
		{"Начисление за январь 2025 (основные услуги)", DetailCharged},
		{"Оплачиваемая площадь", DetailArea},
		{"Оплачиваемая площадь, м2", DetailArea},
		{"Задолженность (пени)", DetailUnknown},
		{"Итого к оплате", DetailUnknown},
		{"", DetailUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyDetail(tt.label), tt.want.String())
		})
	}
}

func TestDetail(t *testing.T) {
	t.Run("Debt And Charge", func(t *testing.T) {
		d := Detail([]DetailRow{
			{Name: "Задолженность (основные услуги)", Value: "1234.56"},
			{Name: "Начисление за февраль 2025 (основные услуги)", Value: "6543.21"},
			{Name: "Пени", Value: "1.00"},
		})
		require.True(t, d.Balance.Valid)
		assert.True(t, decimal.RequireFromString("1234.56").Equal(d.Balance.Decimal))
		require.True(t, d.Charged.Valid)
		assert.True(t, decimal.RequireFromString("6543.21").Equal(d.Charged.Decimal))
		assert.False(t, d.Area.Valid, "area should stay null without a matching row")
		assert.True(t, d.HasBalance)
		assert.True(t, d.HasCharged)
		assert.False(t, d.HasArea)
	})

	t.Run("Credit And Area", func(t *testing.T) {
		d := Detail([]DetailRow{
			{Name: "Переплата (основные услуги)", Value: "-15.5"},
			{Name: "Оплачиваемая площадь", Value: "99.99"},
		})
		assert.True(t, decimal.RequireFromString("-15.5").Equal(d.Balance.Decimal))
		assert.True(t, decimal.RequireFromString("99.99").Equal(d.Area.Decimal))
		assert.False(t, d.Charged.Valid)
	})

	t.Run("Unparseable Value", func(t *testing.T) {
		d := Detail([]DetailRow{
			{Name: "Задолженность (основные услуги)", Value: "нет данных"},
		})
		assert.False(t, d.Balance.Valid)
		assert.True(t, d.HasBalance, "the row was present even though it didn't parse")
	})
}
