// Package executor runs compiled commands against the external transcoder
// in dependency order. Independent operations run concurrently under a
// bounded worker limit; transient failures are retried with backoff; an
// operation whose dependency failed is skipped, never run.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/clipforge/clipforge/pkg/types"
	"github.com/sirupsen/logrus"
)

// Executor schedules one plan's compiled commands.
type Executor struct {
	runner     Runner
	workers    int
	maxRetries int
	backoff    time.Duration
	log        *logrus.Logger
}

// New creates an executor. workers bounds concurrently running transcoder
// processes; maxRetries applies to transient failures only.
func New(runner Runner, workers, maxRetries int, backoff time.Duration, log *logrus.Logger) *Executor {
	if workers <= 0 {
		workers = 1
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &Executor{
		runner:     runner,
		workers:    workers,
		maxRetries: maxRetries,
		backoff:    backoff,
		log:        log,
	}
}

type opState struct {
	cmd     types.CompiledCommand
	status  types.Status
	pending int // unfinished dependencies
	result  types.ExecutionResult
}

// Execute runs every command and returns one result per command, in input
// order. It returns only after every operation reached a terminal status.
// Cancelling ctx stops new submissions, terminates in-flight processes, and
// marks unstarted operations skipped; completed artifacts are kept.
func (e *Executor) Execute(ctx context.Context, cmds []types.CompiledCommand) []types.ExecutionResult {
	states := make(map[string]*opState, len(cmds))
	dependents := make(map[string][]string)
	order := make([]string, 0, len(cmds))

	for _, cmd := range cmds {
		id := cmd.Operation.ID
		order = append(order, id)
		states[id] = &opState{
			cmd:     cmd,
			status:  types.StatusPending,
			pending: len(cmd.Operation.DependsOn),
			result:  types.ExecutionResult{OperationID: id, Status: types.StatusPending},
		}
		for _, dep := range cmd.Operation.DependsOn {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		sem      = make(chan struct{}, e.workers)
		finished = make(chan string, len(cmds))
	)

	start := func(id string) {
		st := states[id]
		st.status = types.StatusRunning
		st.result.Status = types.StatusRunning
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result := e.runOne(ctx, st.cmd)

			mu.Lock()
			st.status = result.Status
			st.result = result
			mu.Unlock()
			finished <- id
		}()
	}

	// skip marks an operation and everything downstream of it skipped.
	var skip func(id, reason string)
	skip = func(id, reason string) {
		st := states[id]
		if st.status.Terminal() || st.status == types.StatusRunning {
			return
		}
		st.status = types.StatusSkipped
		st.result = types.ExecutionResult{
			OperationID: id,
			Status:      types.StatusSkipped,
			ErrorDetail: reason,
		}
		for _, dep := range dependents[id] {
			skip(dep, "dependency "+id+" skipped")
		}
	}

	mu.Lock()
	running := 0
	for _, id := range order {
		if states[id].pending == 0 {
			start(id)
			running++
		}
	}

	for running > 0 {
		mu.Unlock()
		id := <-finished
		mu.Lock()
		running--

		st := states[id]
		for _, depID := range dependents[id] {
			depSt := states[depID]
			if depSt.status != types.StatusPending {
				continue
			}
			switch st.status {
			case types.StatusOK:
				depSt.pending--
				if depSt.pending == 0 {
					if ctx.Err() != nil {
						skip(depID, "run canceled")
					} else {
						start(depID)
						running++
					}
				}
			default:
				skip(depID, "dependency "+id+" "+string(st.status))
			}
		}
	}

	// Anything still pending had an unfinished dependency chain or was cut
	// off by cancellation.
	for _, id := range order {
		if states[id].status == types.StatusPending {
			skip(id, "run canceled")
		}
	}
	mu.Unlock()

	wg.Wait()

	results := make([]types.ExecutionResult, 0, len(order))
	for _, id := range order {
		results = append(results, states[id].result)
	}
	return results
}

// runOne executes a single command with bounded retries on transient
// failures.
func (e *Executor) runOne(ctx context.Context, cmd types.CompiledCommand) types.ExecutionResult {
	id := cmd.Operation.ID
	result := types.ExecutionResult{
		OperationID: id,
		OutputPath:  cmd.OutputPath,
	}

	delay := e.backoff
	for attempt := 1; ; attempt++ {
		result.Attempts = attempt
		err := e.runner.Run(ctx, cmd)
		if err == nil {
			result.Status = types.StatusOK
			e.log.WithField("operation", id).Debug("operation complete")
			return result
		}

		result.ErrorDetail = err.Error()
		if ctx.Err() != nil || !IsTransient(err) || attempt > e.maxRetries {
			result.Status = types.StatusFailed
			e.log.WithField("operation", id).WithError(err).Warn("operation failed")
			return result
		}

		e.log.WithField("operation", id).WithError(err).
			Infof("transient failure, retrying in %s (attempt %d/%d)", delay, attempt, e.maxRetries+1)
		select {
		case <-ctx.Done():
			result.Status = types.StatusFailed
			result.ErrorDetail = ctx.Err().Error()
			return result
		case <-time.After(delay):
		}
		delay *= 2
	}
}
