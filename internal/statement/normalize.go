package statement

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// MinFields is the smallest number of fields a data row may carry.
const MinFields = 5

// TransactionType tags what kind of wallet movement a row records.
type TransactionType string

const (
	TransactionTypePayment TransactionType = "payment"
	TransactionTypeCharge  TransactionType = "charge"
	TransactionTypeRefund  TransactionType = "refund"
)

// Transaction is one normalized statement row.
// Amount is negative for money leaving the account.
type Transaction struct {
	Date            civil.Date      `json:"date"`
	Time            civil.Time      `json:"time"`
	Description     string          `json:"description"`
	Amount          int64           `json:"amount"`
	Merchant        string          `json:"merchant"`
	Type            TransactionType `json:"transaction_type"`
	GuessedCategory string          `json:"guessed_category"`
}

var dateTimePattern = regexp.MustCompile(`^(\d{4})[/-](\d{1,2})[/-](\d{1,2})\s+(\d{1,2}):(\d{1,2}):(\d{1,2})$`)

var amountCleaner = strings.NewReplacer(
	",", "",
	"，", "",
	"¥", "",
	"￥", "",
	"円", "",
	"$", "",
	" ", "",
	"\u3000", "",
)

// NormalizeRow converts one tokenized row into a Transaction using the
// column positions found in header.
func NormalizeRow(header, fields []string) (Transaction, error) {
	return normalizeFields(LocateColumns(header), fields, DefaultKeywordRules)
}

func normalizeFields(cols Columns, fields []string, rules []KeywordRule) (Transaction, error) {
	if len(fields) < MinFields {
		return Transaction{}, &InsufficientFieldsError{Got: len(fields), Want: MinFields}
	}

	date, tm, err := parseDateTime(field(fields, cols.Date))
	if err != nil {
		return Transaction{}, err
	}

	outgoing := parseAmount(field(fields, cols.Outgoing))
	incoming := parseAmount(field(fields, cols.Incoming))

	amount := incoming
	if outgoing != 0 {
		amount = -outgoing
	}

	content := field(fields, cols.Content)
	merchant := field(fields, cols.Counterparty)
	description := composeDescription(content, merchant)

	return Transaction{
		Date:            date,
		Time:            tm,
		Description:     description,
		Amount:          amount,
		Merchant:        merchant,
		Type:            ClassifyType(content),
		GuessedCategory: GuessCategory(description, rules),
	}, nil
}

func parseDateTime(raw string) (civil.Date, civil.Time, error) {
	m := dateTimePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return civil.Date{}, civil.Time{}, &DateParseError{Raw: raw}
	}

	n := make([]int, len(m)-1)
	for i, s := range m[1:] {
		v, err := strconv.Atoi(s)
		if err != nil {
			return civil.Date{}, civil.Time{}, &DateParseError{Raw: raw}
		}
		n[i] = v
	}

	date := civil.Date{Year: n[0], Month: time.Month(n[1]), Day: n[2]}
	tm := civil.Time{Hour: n[3], Minute: n[4], Second: n[5]}
	if !date.IsValid() || !tm.IsValid() {
		return civil.Date{}, civil.Time{}, &DateParseError{Raw: raw}
	}
	return date, tm, nil
}

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// parseAmount is lenient: placeholders, unparseable values and magnitudes
// beyond int64 read as zero. The sign comes from the column, so the
// magnitude is returned.
func parseAmount(raw string) int64 {
	s := amountCleaner.Replace(strings.TrimSpace(raw))
	if s == "" || s == "-" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	d = d.Abs().Truncate(0)
	if d.GreaterThan(maxAmount) {
		return 0
	}
	return d.IntPart()
}

func composeDescription(content, merchant string) string {
	switch {
	case content != "" && merchant != "":
		return content + " - " + merchant
	case content != "":
		return content
	default:
		return merchant
	}
}
