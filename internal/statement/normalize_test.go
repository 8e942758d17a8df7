package statement

import (
	"errors"
	"math"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRow(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		want   Transaction
	}{
		{
			name:   "convenience store purchase",
			fields: []string{"2024/05/10 12:30:00", "500", "-", "コンビニ 弁当", "セブン-イレブン"},
			want: Transaction{
				Date:            civil.Date{Year: 2024, Month: 5, Day: 10},
				Time:            civil.Time{Hour: 12, Minute: 30},
				Description:     "コンビニ 弁当 - セブン-イレブン",
				Amount:          -500,
				Merchant:        "セブン-イレブン",
				Type:            TransactionTypePayment,
				GuessedCategory: "食費",
			},
		},
		{
			name:   "thousands separator and placeholder",
			fields: []string{"2024/05/10 12:30:00", "1,234", "-", "支払い", "書店"},
			want: Transaction{
				Date:            civil.Date{Year: 2024, Month: 5, Day: 10},
				Time:            civil.Time{Hour: 12, Minute: 30},
				Description:     "支払い - 書店",
				Amount:          -1234,
				Merchant:        "書店",
				Type:            TransactionTypePayment,
				GuessedCategory: "教育",
			},
		},
		{
			name:   "top-up is a positive charge",
			fields: []string{"2024-5-1 9:05:07", "-", "3,000", "チャージ", "銀行口座"},
			want: Transaction{
				Date:            civil.Date{Year: 2024, Month: 5, Day: 1},
				Time:            civil.Time{Hour: 9, Minute: 5, Second: 7},
				Description:     "チャージ - 銀行口座",
				Amount:          3000,
				Merchant:        "銀行口座",
				Type:            TransactionTypeCharge,
				GuessedCategory: DefaultCategory,
			},
		},
		{
			name:   "currency symbols stripped",
			fields: []string{"2024/06/02 08:00:00", "¥1,200円", "", "電車 定期", ""},
			want: Transaction{
				Date:            civil.Date{Year: 2024, Month: 6, Day: 2},
				Time:            civil.Time{Hour: 8},
				Description:     "電車 定期",
				Amount:          -1200,
				Type:            TransactionTypePayment,
				GuessedCategory: "交通費",
			},
		},
		{
			name:   "outgoing wins when both amounts populated",
			fields: []string{"2024/06/02 08:00:00", "800", "200", "カフェ", "スターバックス"},
			want: Transaction{
				Date:            civil.Date{Year: 2024, Month: 6, Day: 2},
				Time:            civil.Time{Hour: 8},
				Description:     "カフェ - スターバックス",
				Amount:          -800,
				Merchant:        "スターバックス",
				Type:            TransactionTypePayment,
				GuessedCategory: "食費",
			},
		},
		{
			name:   "non-numeric amount reads as zero",
			fields: []string{"2024/06/02 08:00:00", "abc", "150", "送金", "友人"},
			want: Transaction{
				Date:            civil.Date{Year: 2024, Month: 6, Day: 2},
				Time:            civil.Time{Hour: 8},
				Description:     "送金 - 友人",
				Amount:          150,
				Merchant:        "友人",
				Type:            TransactionTypePayment,
				GuessedCategory: DefaultCategory,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRow(sampleHeader, tt.fields)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRow_RefundKeywordWithZeroIncoming(t *testing.T) {
	for _, content := range []string{"返金", "注文キャンセル", "支払い取消", "取り消し"} {
		t.Run(content, func(t *testing.T) {
			tx, err := NormalizeRow(sampleHeader, []string{"2024/05/10 12:30:00", "300", "-", content, "ショップ"})
			require.NoError(t, err)
			assert.Equal(t, TransactionTypeRefund, tx.Type)
		})
	}
}

func TestNormalizeRow_OversizedAmounts(t *testing.T) {
	for _, raw := range []string{"18446744073709551116", "9223372036854775808", "1e30"} {
		t.Run("outgoing "+raw, func(t *testing.T) {
			tx, err := NormalizeRow(sampleHeader, []string{"2024/05/10 12:30:00", raw, "-", "x", "y"})
			require.NoError(t, err)
			assert.Zero(t, tx.Amount)
		})
		t.Run("outgoing with incoming "+raw, func(t *testing.T) {
			tx, err := NormalizeRow(sampleHeader, []string{"2024/05/10 12:30:00", raw, "500", "x", "y"})
			require.NoError(t, err)
			assert.Equal(t, int64(500), tx.Amount)
		})
		t.Run("incoming "+raw, func(t *testing.T) {
			tx, err := NormalizeRow(sampleHeader, []string{"2024/05/10 12:30:00", "-", raw, "x", "y"})
			require.NoError(t, err)
			assert.Zero(t, tx.Amount)
		})
	}
}

func TestNormalizeRow_TypeIgnoresMerchant(t *testing.T) {
	tx, err := NormalizeRow(sampleHeader, []string{"2024/05/10 12:30:00", "300", "-", "お支払い", "入金センター"})
	require.NoError(t, err)
	assert.Equal(t, TransactionTypePayment, tx.Type)
	assert.Equal(t, "お支払い - 入金センター", tx.Description)

	tx, err = NormalizeRow(sampleHeader, []string{"2024/05/10 12:30:00", "300", "-", "キャンセル", "返金ストア"})
	require.NoError(t, err)
	assert.Equal(t, TransactionTypeRefund, tx.Type)
}

func TestNormalizeRow_Errors(t *testing.T) {
	t.Run("insufficient fields", func(t *testing.T) {
		_, err := NormalizeRow(sampleHeader, []string{"2024/05/10 12:30:00", "500", "-", "x"})

		var insufficient *InsufficientFieldsError
		require.True(t, errors.As(err, &insufficient))
		assert.Equal(t, 4, insufficient.Got)
		assert.Equal(t, MinFields, insufficient.Want)
	})

	for _, raw := range []string{"2024年5月10日", "2024/05/10", "10/05/2024 12:30:00", "2024/02/30 10:00:00", "2024/05/10 25:00:00", ""} {
		t.Run("bad date "+raw, func(t *testing.T) {
			_, err := NormalizeRow(sampleHeader, []string{raw, "500", "-", "x", "y"})

			var dateErr *DateParseError
			require.True(t, errors.As(err, &dateErr))
			assert.Equal(t, raw, dateErr.Raw)
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{"500", 500},
		{"1,234", 1234},
		{"１２", 0},
		{"-", 0},
		{"", 0},
		{" 2,000 ", 2000},
		{"￥3，500", 3500},
		{"$12.99", 12},
		{"-700", 700},
		{"n/a", 0},
		{"9223372036854775807", math.MaxInt64},
		{"9223372036854775807.9", math.MaxInt64},
		{"9223372036854775808", 0},
		{"18446744073709551116", 0},
		{"123456789012345678901234", 0},
		{"1e30", 0},
		{"-1e30", 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, parseAmount(tt.raw))
		})
	}
}

func TestGuessCategory(t *testing.T) {
	assert.Equal(t, "食費", GuessCategory("コンビニ 弁当 - セブン-イレブン", DefaultKeywordRules))
	assert.Equal(t, "交通費", GuessCategory("Suica チャージ", DefaultKeywordRules))
	assert.Equal(t, DefaultCategory, GuessCategory("不明な支払い", DefaultKeywordRules))

	rules := []KeywordRule{{"弁当", "ランチ"}, {"コンビニ", "食費"}}
	assert.Equal(t, "ランチ", GuessCategory("コンビニ 弁当", rules), "first matching rule wins")
}
