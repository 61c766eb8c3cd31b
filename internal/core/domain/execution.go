package domain

// RunStatus is the lifecycle of the shared execution record:
// idle -> running -> completed -> running -> ...
type RunStatus string

const (
	RunIdle      RunStatus = "idle"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
)

// ExecutionResult is the outcome of one sandboxed run. Failures of the
// gateway itself are carried in Error; a non-zero exit of the sandboxed
// program is a normal completion with its output in Stderr.
type ExecutionResult struct {
	Stdout      string `json:"stdout"`
	Stderr      string `json:"stderr"`
	Error       string `json:"error,omitempty"`
	TriggeredBy string `json:"triggeredBy,omitempty"`
}

// RunState is the current-state record replicated to every room
// participant. Last writer wins per field; it is not a log.
type RunState struct {
	Status      RunStatus        `json:"status"`
	TriggeredBy string           `json:"triggeredBy,omitempty"`
	Result      *ExecutionResult `json:"result,omitempty"`
	// Lease identifies the outstanding run. A completed write is accepted
	// only when it carries the lease of the running write it concludes.
	Lease string `json:"lease,omitempty"`
}
