// internal/tasks/remindscan/models.go
package remindscan

// Eval outcomes for a single transaction.
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeErrored = "errored"
)

// EvalResult is the isolated result of evaluating one transaction. A failed
// transaction reports here instead of aborting the scan.
type EvalResult struct {
	TransactionID string
	Outcome       string
	IntentsQueued int
	Err           error
}

// ScanSummary aggregates one full scanner pass for the run log line.
type ScanSummary struct {
	Agents         int
	AgentsSkipped  int
	Transactions   int
	IntentsCreated int
	Skipped        int
	Errors         int
}
