package dto

import "time"

// StageReport aggregates the per-record outcomes of one stage.
type StageReport struct {
	Stage    string `json:"stage"`
	Total    int    `json:"total"`
	Advanced int    `json:"advanced"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
}

type PipelineSummary struct {
	Owner      string        `json:"owner"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Fetched    int           `json:"fetched"`
	Labeled    int           `json:"labeled"`
	Stages     []StageReport `json:"stages"`
	Message    string        `json:"message"`
}

type EmailsLabeled struct {
	Owner    string          `json:"owner"`
	EmailIds []string        `json:"emailIds"`
	Summary  PipelineSummary `json:"summary"`
}
