package executor

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/scanio-agent/internal/models"
	"github.com/scan-io-git/scanio-agent/internal/scanner"
)

type fakeConsole struct {
	mu        sync.Mutex
	statuses  map[string][]models.TaskStatus
	submitted []*models.ScanResult
	submitErr error
	updateErr error
}

func newFakeConsole() *fakeConsole {
	return &fakeConsole{statuses: make(map[string][]models.TaskStatus)}
}

func (f *fakeConsole) UpdateTaskStatus(_ context.Context, taskID string, status models.TaskStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[taskID] = append(f.statuses[taskID], status)
	return f.updateErr
}

func (f *fakeConsole) SubmitResult(_ context.Context, _ string, result *models.ScanResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, result)
	return nil
}

func (f *fakeConsole) taskStatuses(taskID string) []models.TaskStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TaskStatus(nil), f.statuses[taskID]...)
}

func (f *fakeConsole) submittedResults() []*models.ScanResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.ScanResult(nil), f.submitted...)
}

type fakeFetcher struct {
	base string
	err  error

	mu      sync.Mutex
	fetched []string
	cleaned []string
}

func (f *fakeFetcher) Fetch(_ context.Context, _, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	dir, err := os.MkdirTemp(f.base, "task-")
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.fetched = append(f.fetched, dir)
	f.mu.Unlock()
	return dir, nil
}

func (f *fakeFetcher) Cleanup(workdir string) {
	os.RemoveAll(workdir)
	f.mu.Lock()
	f.cleaned = append(f.cleaned, workdir)
	f.mu.Unlock()
}

type fakeRunner struct {
	name    string
	err     error
	release chan struct{} // when set, Run blocks until closed
}

func (r *fakeRunner) Name() string { return r.name }

func (r *fakeRunner) Run(ctx context.Context, _ string) (*models.ScanResult, error) {
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &models.ScanResult{
		Scanner:  r.name,
		Findings: []models.Finding{{Scanner: r.name, Severity: models.SeverityLow, Confidence: models.ConfidenceLow, RuleID: "R1", Message: "m"}},
	}, nil
}

func newTestExecutor(t *testing.T, console *fakeConsole, fetcher *fakeFetcher, runners ...scanner.Runner) *Executor {
	t.Helper()
	if fetcher.base == "" {
		fetcher.base = t.TempDir()
	}
	return New(console, fetcher, scanner.NewRegistry(runners...), hclog.NewNullLogger())
}

func TestExecuteHappyPath(t *testing.T) {
	console := newFakeConsole()
	fetcher := &fakeFetcher{}
	exec := newTestExecutor(t, console, fetcher, &fakeRunner{name: "bandit"})

	task := models.Task{ID: "t-1", RepositoryURL: "https://example/repo.git", Scanners: []string{"bandit"}}
	assert.True(t, exec.Execute(context.Background(), task))

	assert.Equal(t, []models.TaskStatus{models.TaskStatusRunning, models.TaskStatusCompleted}, console.taskStatuses("t-1"))

	submitted := console.submittedResults()
	require.Len(t, submitted, 1)
	assert.Equal(t, "t-1", submitted[0].TaskID)
	assert.Equal(t, "bandit", submitted[0].Scanner)
	require.Len(t, fetcher.cleaned, 1)
	assert.NoDirExists(t, fetcher.cleaned[0])
}

func TestExecuteFetchFailure(t *testing.T) {
	console := newFakeConsole()
	fetcher := &fakeFetcher{err: errors.New("authentication required")}
	exec := newTestExecutor(t, console, fetcher, &fakeRunner{name: "bandit"})

	task := models.Task{ID: "t-1", RepositoryURL: "https://example/private.git", Scanners: []string{"bandit"}}
	assert.True(t, exec.Execute(context.Background(), task))

	// No scanner ran, nothing was submitted, terminal status is failed.
	assert.Empty(t, console.submittedResults())
	assert.Equal(t, []models.TaskStatus{models.TaskStatusRunning, models.TaskStatusFailed}, console.taskStatuses("t-1"))
}

func TestExecutePartialSuccess(t *testing.T) {
	console := newFakeConsole()
	fetcher := &fakeFetcher{}
	exec := newTestExecutor(t, console, fetcher,
		&fakeRunner{name: "bandit"},
		&fakeRunner{name: "semgrep", err: &scanner.ScanError{Scanner: "semgrep", Kind: scanner.ErrKindExec, Err: errors.New("not installed")}},
	)

	task := models.Task{ID: "t-1", RepositoryURL: "https://example/repo.git", Scanners: []string{"bandit", "semgrep"}}
	assert.True(t, exec.Execute(context.Background(), task))

	// One scanner failing does not fail the task; only the successful
	// scanner's result is submitted.
	submitted := console.submittedResults()
	require.Len(t, submitted, 1)
	assert.Equal(t, "bandit", submitted[0].Scanner)

	statuses := console.taskStatuses("t-1")
	assert.Equal(t, models.TaskStatusCompleted, statuses[len(statuses)-1])
}

func TestExecuteAllScannersFail(t *testing.T) {
	console := newFakeConsole()
	fetcher := &fakeFetcher{}
	exec := newTestExecutor(t, console, fetcher,
		&fakeRunner{name: "bandit", err: errors.New("boom")},
	)

	task := models.Task{ID: "t-1", RepositoryURL: "https://example/repo.git", Scanners: []string{"bandit"}}
	assert.True(t, exec.Execute(context.Background(), task))

	assert.Empty(t, console.submittedResults())
	statuses := console.taskStatuses("t-1")
	assert.Equal(t, models.TaskStatusFailed, statuses[len(statuses)-1])
}

func TestExecuteUnknownScanner(t *testing.T) {
	console := newFakeConsole()
	fetcher := &fakeFetcher{}
	exec := newTestExecutor(t, console, fetcher, &fakeRunner{name: "bandit"})

	task := models.Task{ID: "t-1", RepositoryURL: "https://example/repo.git", Scanners: []string{"bandit", "codeql"}}
	assert.True(t, exec.Execute(context.Background(), task))

	// The unsupported scanner is skipped; the supported one still counts.
	submitted := console.submittedResults()
	require.Len(t, submitted, 1)
	statuses := console.taskStatuses("t-1")
	assert.Equal(t, models.TaskStatusCompleted, statuses[len(statuses)-1])
}

func TestExecuteDuplicateDeliveryIsNoOp(t *testing.T) {
	console := newFakeConsole()
	fetcher := &fakeFetcher{}
	release := make(chan struct{})
	exec := newTestExecutor(t, console, fetcher, &fakeRunner{name: "bandit", release: release})

	task := models.Task{ID: "t-1", RepositoryURL: "https://example/repo.git", Scanners: []string{"bandit"}}

	done := make(chan bool, 1)
	go func() {
		done <- exec.Execute(context.Background(), task)
	}()

	// Wait for the first delivery to actually be in flight.
	require.Eventually(t, func() bool {
		inflight := exec.InFlight()
		return len(inflight) == 1 && inflight[0] == "t-1"
	}, 2*time.Second, 5*time.Millisecond)

	assert.False(t, exec.Execute(context.Background(), task))

	close(release)
	assert.True(t, <-done)
	assert.Empty(t, exec.InFlight())

	// Exactly one execution submitted results.
	assert.Len(t, console.submittedResults(), 1)
}

func TestExecuteCleansUpOnSubmitFailure(t *testing.T) {
	console := newFakeConsole()
	console.submitErr = errors.New("console unreachable")
	fetcher := &fakeFetcher{}
	exec := newTestExecutor(t, console, fetcher, &fakeRunner{name: "bandit"})

	task := models.Task{ID: "t-1", RepositoryURL: "https://example/repo.git", Scanners: []string{"bandit"}}
	assert.True(t, exec.Execute(context.Background(), task))

	// Dropped result is logged, the task still completes and the
	// working directory is released.
	statuses := console.taskStatuses("t-1")
	assert.Equal(t, models.TaskStatusCompleted, statuses[len(statuses)-1])
	require.Len(t, fetcher.cleaned, 1)
	assert.NoDirExists(t, fetcher.cleaned[0])
}
