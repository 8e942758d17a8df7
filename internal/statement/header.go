package statement

import "strings"

// Required header substrings. A header field matches when it contains one.
const (
	ColumnDate         = "取引日"
	ColumnOutgoing     = "出金金額"
	ColumnIncoming     = "入金金額"
	ColumnContent      = "取引内容"
	ColumnCounterparty = "取引先"
)

// RequiredColumns lists the header substrings in validation order.
var RequiredColumns = []string{
	ColumnDate,
	ColumnOutgoing,
	ColumnIncoming,
	ColumnContent,
	ColumnCounterparty,
}

// Columns holds the field index of each required column, or -1 when absent.
type Columns struct {
	Date         int
	Outgoing     int
	Incoming     int
	Content      int
	Counterparty int
}

// ValidateHeader checks that every required column is present.
func ValidateHeader(header []string) error {
	var missing []string
	for _, col := range RequiredColumns {
		if columnIndex(header, col) < 0 {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Columns: missing}
	}
	return nil
}

// LocateColumns finds the first header field containing each required substring.
func LocateColumns(header []string) Columns {
	return Columns{
		Date:         columnIndex(header, ColumnDate),
		Outgoing:     columnIndex(header, ColumnOutgoing),
		Incoming:     columnIndex(header, ColumnIncoming),
		Content:      columnIndex(header, ColumnContent),
		Counterparty: columnIndex(header, ColumnCounterparty),
	}
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.Contains(h, name) {
			return i
		}
	}
	return -1
}

// field returns fields[i], or "" when i is out of range.
func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}
