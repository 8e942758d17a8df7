package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/student-finance/internal/objectstore"
	"github.com/dvloznov/student-finance/internal/pipeline"
	"github.com/dvloznov/student-finance/internal/statement"
)

// Importer runs a statement import.
type Importer interface {
	Import(ctx context.Context, req pipeline.ImportRequest) (*pipeline.ImportResult, error)
}

// NewImportHandler returns a JobHandler that runs import jobs through importer.
// Statement errors that reject the whole file are marked Permanent.
func NewImportHandler(importer Importer) JobHandler {
	return func(ctx context.Context, job Job) error {
		j, ok := job.(*ImportStatementJob)
		if !ok {
			return Permanent(fmt.Errorf("unsupported job type %q", job.GetType()))
		}

		filename := j.Filename
		if filename == "" {
			filename = objectstore.Filename(j.SourceURI)
		}

		result, err := importer.Import(ctx, pipeline.ImportRequest{
			UserID:     j.UserID,
			Filename:   filename,
			SourceType: objectstore.SourceType(j.SourceURI),
			SourceURI:  j.SourceURI,
		})
		if result != nil {
			summary := result.Summary
			j.Summary = &summary
			if result.ImportLog != nil {
				j.ImportLogID = result.ImportLog.ID
			}
		}
		if err != nil {
			if statement.IsFatal(err) {
				return Permanent(err)
			}
			return err
		}
		return nil
	}
}
