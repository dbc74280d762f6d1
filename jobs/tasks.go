package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrityScan runs the trial-balance integrity sweep.
	TaskLedgerIntegrityScan = "ledger:integrity-scan"
)

// IntegrityScanPayload scopes an integrity sweep. A nil organisation list
// means every organisation with posted activity.
type IntegrityScanPayload struct {
	FiscalYear   int      `json:"fiscal_year"`
	FiscalPeriod int      `json:"fiscal_period"`
	Organisation []string `json:"organisations,omitempty"`
}

// NewIntegrityScanTask constructs an Asynq task. A zero year/period is
// resolved to the current fiscal month at execution time.
func NewIntegrityScanTask(payload IntegrityScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrityScan, data), nil
}
