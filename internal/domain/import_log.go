package domain

import "time"

// ImportRunSummary accumulates the outcome of one import run.
// Parse failures and persistence failures are tallied separately;
// Failed is their sum.
type ImportRunSummary struct {
	TotalRows     int      `json:"total_rows"`
	Succeeded     int      `json:"succeeded"`
	Failed        int      `json:"failed"`
	ParseFailed   int      `json:"parse_failed"`
	PersistFailed int      `json:"persist_failed"`
	Skipped       int      `json:"skipped"`
	Errors        []string `json:"errors,omitempty"`
}

// AddParseError records a row that could not be normalized.
func (s *ImportRunSummary) AddParseError(msg string) {
	s.ParseFailed++
	s.Failed++
	s.Errors = append(s.Errors, msg)
}

// AddPersistError records a draft the store rejected.
func (s *ImportRunSummary) AddPersistError(msg string) {
	s.PersistFailed++
	s.Failed++
	s.Errors = append(s.Errors, msg)
}

// ImportLog is the audit record written once per import attempt.
type ImportLog struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Filename          string    `json:"filename"`
	SourceType        string    `json:"source_type"`
	TotalRecords      int       `json:"total_records"`
	SuccessfulImports int       `json:"successful_imports"`
	FailedImports     int       `json:"failed_imports"`
	Errors            []string  `json:"errors,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewImportLog builds the audit record for a finished run.
func NewImportLog(userID, filename, sourceType string, s ImportRunSummary) *ImportLog {
	return &ImportLog{
		UserID:            userID,
		Filename:          filename,
		SourceType:        sourceType,
		TotalRecords:      s.TotalRows,
		SuccessfulImports: s.Succeeded,
		FailedImports:     s.Failed,
		Errors:            s.Errors,
	}
}
