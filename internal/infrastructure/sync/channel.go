package sync

import (
	"encoding/json"

	"synccode/internal/core/domain"
	"synccode/internal/core/ports"
	"synccode/pkg/utils"

	"go.uber.org/zap"
)

// Shared keys of the per-room replicated record.
const (
	KeyLanguage    = "config.language"
	KeyStatus      = "execution.status"
	KeyTriggeredBy = "execution.triggeredBy"
	KeyResult      = "execution.result"
	KeyLease       = "execution.lease"
)

// ExecutionChannel is one participant's view of the shared execution record.
// The current-state keys are last-writer-wins and carry no history; the
// result log is append-only and replayable, so observers never reconstruct
// history from transitions they happened to catch.
//
// A completed write is accepted only when it carries the lease id of the
// running write it concludes. Two concurrent runs still both execute (there
// is no mutual exclusion), but the loser's completion is dropped from the
// shared state instead of being misattributed.
type ExecutionChannel struct {
	state    ports.SharedMap
	log      ports.ResultLog
	identity string
	logger   *zap.SugaredLogger
}

func NewExecutionChannel(state ports.SharedMap, log ports.ResultLog, identity string, logger *zap.SugaredLogger) *ExecutionChannel {
	return &ExecutionChannel{
		state:    state,
		log:      log,
		identity: identity,
		logger:   logger,
	}
}

// StartRun announces a run to the room and returns the lease that the
// matching CompleteRun must present.
func (c *ExecutionChannel) StartRun() string {
	lease := utils.GenerateLeaseID()

	// Attribution and lease go out before the status flip so that anyone
	// reacting to the running transition already sees them.
	c.state.Set(KeyTriggeredBy, c.identity)
	c.state.Set(KeyResult, "")
	c.state.Set(KeyLease, lease)
	c.state.Set(KeyStatus, string(domain.RunRunning))

	return lease
}

// CompleteRun publishes the result of the run identified by lease. A stale
// lease means another run superseded this one; its completion is dropped
// from the current state but the run itself already happened.
func (c *ExecutionChannel) CompleteRun(lease string, result domain.ExecutionResult) error {
	current, _ := c.state.Get(KeyLease)
	if current != lease {
		c.logger.Warnw("dropping completion with stale lease",
			"lease", lease,
			"current", current,
		)
		return domain.ErrLeaseMismatch
	}

	result.TriggeredBy = c.identity

	encoded, err := json.Marshal(result)
	if err != nil {
		return err
	}

	c.state.Set(KeyResult, string(encoded))
	c.state.Set(KeyStatus, string(domain.RunCompleted))
	c.log.Append(result)

	return nil
}

// SetLanguage publishes the room's language selection.
func (c *ExecutionChannel) SetLanguage(language string) {
	c.state.Set(KeyLanguage, language)
}

// Language reads the room's language selection, defaulting to python.
func (c *ExecutionChannel) Language() string {
	language, ok := c.state.Get(KeyLanguage)
	if !ok || language == "" {
		return "python"
	}
	return language
}

// Snapshot reads the current run state.
func (c *ExecutionChannel) Snapshot() domain.RunState {
	state := domain.RunState{Status: domain.RunIdle}

	if status, ok := c.state.Get(KeyStatus); ok && status != "" {
		state.Status = domain.RunStatus(status)
	}
	if triggeredBy, ok := c.state.Get(KeyTriggeredBy); ok {
		state.TriggeredBy = triggeredBy
	}
	if lease, ok := c.state.Get(KeyLease); ok {
		state.Lease = lease
	}
	if raw, ok := c.state.Get(KeyResult); ok && raw != "" {
		var result domain.ExecutionResult
		if err := json.Unmarshal([]byte(raw), &result); err == nil {
			state.Result = &result
		}
	}

	return state
}

// History replays every completed result, including those published before
// this participant joined.
func (c *ExecutionChannel) History() []domain.ExecutionResult {
	return c.log.Entries()
}

// Watch observes the channel: onRunning fires when a run starts, with the
// identity that triggered it; onCompleted fires once per appended result in
// log order. The returned function detaches both observers.
func (c *ExecutionChannel) Watch(onRunning func(triggeredBy string), onCompleted func(domain.ExecutionResult)) func() {
	unsubState := c.state.Subscribe(func(key, value string) {
		if key != KeyStatus || value != string(domain.RunRunning) {
			return
		}
		if onRunning != nil {
			triggeredBy, _ := c.state.Get(KeyTriggeredBy)
			onRunning(triggeredBy)
		}
	})

	unsubLog := c.log.Subscribe(func(result domain.ExecutionResult) {
		if onCompleted != nil {
			onCompleted(result)
		}
	})

	return func() {
		unsubState()
		unsubLog()
	}
}
