// Package executor drives a single scan task through its lifecycle:
// fetch the repository, run the requested scanners, submit results and
// report the terminal status. Failures stay confined to the task (or to
// a single scanner within it) and never reach the agent loop.
package executor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/scanio-agent/internal/models"
	"github.com/scan-io-git/scanio-agent/internal/scanner"
)

// ConsoleAPI is the slice of the console client the executor needs.
type ConsoleAPI interface {
	UpdateTaskStatus(ctx context.Context, taskID string, status models.TaskStatus) error
	SubmitResult(ctx context.Context, taskID string, result *models.ScanResult) error
}

// RepoFetcher materializes and releases task working directories.
type RepoFetcher interface {
	Fetch(ctx context.Context, repoURL, commitRef string) (string, error)
	Cleanup(workdir string)
}

// Executor runs tasks with at-most-one active execution per task id.
type Executor struct {
	console  ConsoleAPI
	fetcher  RepoFetcher
	registry *scanner.Registry
	logger   hclog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(console ConsoleAPI, fetcher RepoFetcher, registry *scanner.Registry, logger hclog.Logger) *Executor {
	return &Executor{
		console:  console,
		fetcher:  fetcher,
		registry: registry,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// InFlight returns the ids of tasks currently executing, sorted.
func (e *Executor) InFlight() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.inflight))
	for id := range e.inflight {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Execute runs the task to a terminal state. Re-delivery of a task id
// that is already executing is a no-op and returns false.
func (e *Executor) Execute(ctx context.Context, task models.Task) bool {
	if !e.acquire(task.ID) {
		e.logger.Warn("task already in flight, ignoring duplicate delivery", "taskID", task.ID)
		return false
	}
	defer e.release(task.ID)

	status := e.run(ctx, task)
	if err := e.console.UpdateTaskStatus(ctx, task.ID, status); err != nil {
		e.logger.Error("failed to report terminal task status", "taskID", task.ID, "status", status, "error", err)
	}
	e.logger.Info("task finished", "taskID", task.ID, "status", status)
	return true
}

func (e *Executor) acquire(taskID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.inflight[taskID]; ok {
		return false
	}
	e.inflight[taskID] = struct{}{}
	return true
}

func (e *Executor) release(taskID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, taskID)
}

// run executes fetch -> scan -> report and returns the terminal status.
// The working directory is released on every exit path.
func (e *Executor) run(ctx context.Context, task models.Task) models.TaskStatus {
	// Best-effort; a console that misses the running transition still
	// receives the terminal one.
	if err := e.console.UpdateTaskStatus(ctx, task.ID, models.TaskStatusRunning); err != nil {
		e.logger.Warn("failed to mark task running", "taskID", task.ID, "error", err)
	}

	workdir, err := e.fetcher.Fetch(ctx, task.RepositoryURL, task.CommitRef)
	if err != nil {
		e.logger.Error("repository fetch failed", "taskID", task.ID, "repository", task.RepositoryURL, "error", err)
		return models.TaskStatusFailed
	}
	defer e.fetcher.Cleanup(workdir)

	scanCtx := ctx
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, time.Duration(task.Timeout)*time.Second)
		defer cancel()
	}

	results := e.scan(scanCtx, task, workdir)
	if len(results) == 0 {
		e.logger.Error("all scanners failed", "taskID", task.ID, "scanners", task.Scanners)
		return models.TaskStatusFailed
	}

	for _, result := range results {
		if err := e.console.SubmitResult(ctx, task.ID, result); err != nil {
			// No durable outbox: after retries are exhausted the result
			// is dropped and only the log remains.
			e.logger.Error("failed to submit scan result, dropping it", "taskID", task.ID, "scanner", result.Scanner, "error", err)
		}
	}
	return models.TaskStatusCompleted
}

// scan runs each requested scanner sequentially against workdir and
// returns the successful results. One ScanResult per scanner; a failed
// scanner is logged and skipped without aborting its siblings.
func (e *Executor) scan(ctx context.Context, task models.Task, workdir string) []*models.ScanResult {
	var results []*models.ScanResult
	for _, name := range task.Scanners {
		runner, ok := e.registry.Get(name)
		if !ok {
			e.logger.Warn("scanner not supported by this agent", "taskID", task.ID, "scanner", name)
			continue
		}

		result, err := runner.Run(ctx, workdir)
		if err != nil {
			e.logger.Error("scanner failed", "taskID", task.ID, "scanner", name, "error", err)
			continue
		}
		result.TaskID = task.ID
		results = append(results, result)
	}
	return results
}
