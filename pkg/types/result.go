package types

import "time"

// Status is the terminal state of an import run.
type Status string

const (
	// StatusComplete means every document was imported and foreign keys
	// were added.
	StatusComplete Status = "complete"

	// StatusWithoutConstraints means the data is committed but the
	// foreign-key retrofit failed.
	StatusWithoutConstraints Status = "without_constraints"

	// StatusFailed means the main pass failed; see the returned error.
	StatusFailed Status = "failed"
)

// ImportResult summarizes an import run.
type ImportResult struct {
	RunID       string        `json:"run_id"`
	Files       []string      `json:"files"`
	Rows        int64         `json:"rows"`
	Tables      int           `json:"tables"`
	Constraints int           `json:"constraints"`
	Status      Status        `json:"status"`
	Elapsed     time.Duration `json:"elapsed"`
}
