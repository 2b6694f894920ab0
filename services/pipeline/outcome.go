package pipeline

import (
	"github.com/customeros/mailsorter/dto"
	"github.com/customeros/mailsorter/internal/models"
)

const (
	StageFetch      = "fetch"
	StageExtract    = "extract"
	StageCategorize = "categorize"
	StageLabel      = "label"
)

type result int

const (
	resultAdvanced result = iota
	// precondition not met or record moved by someone else
	resultSkipped
	resultFailed
)

type outcome struct {
	record *models.EmailRecord
	result result
	err    error
}

func advanced(record *models.EmailRecord) outcome {
	return outcome{record: record, result: resultAdvanced}
}

func skipped(record *models.EmailRecord, reason error) outcome {
	return outcome{record: record, result: resultSkipped, err: reason}
}

func failed(record *models.EmailRecord, err error) outcome {
	return outcome{record: record, result: resultFailed, err: err}
}

func fold(stage string, outcomes []outcome) dto.StageReport {
	report := dto.StageReport{Stage: stage, Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.result {
		case resultAdvanced:
			report.Advanced++
		case resultSkipped:
			report.Skipped++
		case resultFailed:
			report.Failed++
		}
	}
	return report
}

func advancedRecords(outcomes []outcome) []*models.EmailRecord {
	var out []*models.EmailRecord
	for _, o := range outcomes {
		if o.result == resultAdvanced {
			out = append(out, o.record)
		}
	}
	return out
}
