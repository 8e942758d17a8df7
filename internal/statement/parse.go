package statement

// ParseResult holds the rows that normalized and the rows that did not.
type ParseResult struct {
	Transactions []Transaction
	Errors       []*RowError
	TotalRows    int
}

// Parser normalizes whole statement files with a given keyword dictionary.
type Parser struct {
	rules []KeywordRule
}

// NewParser returns a Parser using rules, or DefaultKeywordRules when rules is empty.
func NewParser(rules []KeywordRule) *Parser {
	if len(rules) == 0 {
		rules = DefaultKeywordRules
	}
	return &Parser{rules: rules}
}

// Parse runs Parser with the default keyword dictionary.
func Parse(content string) (*ParseResult, error) {
	return NewParser(nil).Parse(content)
}

// Parse tokenizes content, validates its header and normalizes every data row.
//
// Row failures are collected with their row number and do not stop the batch.
// The call fails as a whole when the file has no data rows, when a required
// column is missing, or when every data row fails.
func (p *Parser) Parse(content string) (*ParseResult, error) {
	lines := SplitLines(content)
	if len(lines) < 2 {
		return nil, ErrEmptyOrHeaderOnly
	}

	header := SplitLine(lines[0])
	if err := ValidateHeader(header); err != nil {
		return nil, err
	}
	cols := LocateColumns(header)

	result := &ParseResult{TotalRows: len(lines) - 1}
	for i, line := range lines[1:] {
		tx, err := normalizeFields(cols, SplitLine(line), p.rules)
		if err != nil {
			// i is 0-based over data rows; the header is row 1.
			result.Errors = append(result.Errors, &RowError{Row: i + 2, Err: err})
			continue
		}
		result.Transactions = append(result.Transactions, tx)
	}

	if len(result.Transactions) == 0 {
		return nil, &AllRowsFailedError{Errors: result.Errors}
	}

	return result, nil
}
