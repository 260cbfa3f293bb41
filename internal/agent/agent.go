// Package agent implements the top-level scheduler: register once, then
// heartbeat and poll on fixed cadences, dispatching each accepted task to
// the executor on its own goroutine so a slow scan never stalls the loop.
package agent

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/scanio-agent/internal/console"
	"github.com/scan-io-git/scanio-agent/internal/identity"
	"github.com/scan-io-git/scanio-agent/internal/models"
	"github.com/scan-io-git/scanio-agent/pkg/shared/config"
)

// ConsoleAPI is the slice of the console client the loop needs.
type ConsoleAPI interface {
	Register(ctx context.Context, req console.RegisterRequest) (*identity.Identity, error)
	Heartbeat(ctx context.Context, id identity.Identity, status string, currentTasks []string) error
	PollTasks(ctx context.Context, id identity.Identity) ([]models.Task, error)
}

// Dispatcher runs tasks without blocking the loop.
type Dispatcher interface {
	Execute(ctx context.Context, task models.Task) bool
	InFlight() []string
}

// IdentityStore persists the agent identity across restarts.
type IdentityStore interface {
	Load() (*identity.Identity, error)
	Save(id *identity.Identity) error
}

// Agent ties the identity store, console client and executor together.
type Agent struct {
	cfg          *config.Agent
	store        IdentityStore
	client       ConsoleAPI
	dispatcher   Dispatcher
	capabilities []string
	logger       hclog.Logger

	wg sync.WaitGroup
}

func New(cfg *config.Agent, store IdentityStore, client ConsoleAPI, dispatcher Dispatcher, capabilities []string, logger hclog.Logger) *Agent {
	return &Agent{
		cfg:          cfg,
		store:        store,
		client:       client,
		dispatcher:   dispatcher,
		capabilities: capabilities,
		logger:       logger,
	}
}

// Run registers the agent if needed and drives the heartbeat/poll cycle
// until ctx is cancelled. Shutdown is hard: in-flight tasks are
// abandoned and reconciled by the console's own timeout policy.
func (a *Agent) Run(ctx context.Context) error {
	id, err := a.ensureRegistered(ctx)
	if err != nil {
		return err
	}

	a.logger.Info("agent starting", "agentID", id.ID, "agentName", id.Name, "capabilities", a.capabilities)

	heartbeat := time.NewTicker(a.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	poll := time.NewTicker(a.cfg.PollInterval)
	defer poll.Stop()

	// Announce liveness right away instead of waiting a full interval.
	a.sendHeartbeat(ctx, *id)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("agent shutting down")
			a.wg.Wait()
			return nil
		case <-heartbeat.C:
			a.sendHeartbeat(ctx, *id)
		case <-poll.C:
			a.pollAndDispatch(ctx, *id)
		}
	}
}

// ensureRegistered loads the persisted identity or registers with the
// console, retrying with exponential backoff. Only registration failure
// is loop-blocking: without an identity no heartbeat or poll traffic is
// attempted.
func (a *Agent) ensureRegistered(ctx context.Context) (*identity.Identity, error) {
	id, err := a.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load agent identity: %w", err)
	}
	if id != nil && id.Registered {
		a.logger.Info("loaded existing identity, skipping registration", "agentID", id.ID, "agentName", id.Name)
		return id, nil
	}

	name := a.cfg.Name
	if name == "" {
		name = fmt.Sprintf("agent-%s", uuid.NewString()[:8])
	}

	hostname, _ := os.Hostname()
	req := console.RegisterRequest{
		AgentName:    name,
		Capabilities: a.capabilities,
		SystemInfo: console.SystemInfo{
			Platform: fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
			Hostname: hostname,
			Scanners: a.capabilities,
		},
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = a.cfg.RegisterMaxElapsed

	operation := func() error {
		registered, err := a.client.Register(ctx, req)
		if err != nil {
			a.logger.Warn("registration failed, will retry", "error", err)
			return err
		}
		id = registered
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		return nil, fmt.Errorf("failed to register agent: %w", err)
	}

	id.ConsoleURL = a.cfg.ConsoleURL
	if err := a.store.Save(id); err != nil {
		return nil, fmt.Errorf("failed to persist agent identity: %w", err)
	}
	a.logger.Info("registration persisted", "agentID", id.ID, "agentName", id.Name)
	return id, nil
}

func (a *Agent) sendHeartbeat(ctx context.Context, id identity.Identity) {
	current := a.dispatcher.InFlight()
	status := "idle"
	if len(current) > 0 {
		status = "scanning"
	}
	if err := a.client.Heartbeat(ctx, id, status, current); err != nil {
		a.logger.Warn("heartbeat failed", "error", err)
	}
}

// pollAndDispatch fetches pending tasks and hands each to the executor
// on its own goroutine. Duplicate deliveries are rejected by the
// executor's in-flight guard.
func (a *Agent) pollAndDispatch(ctx context.Context, id identity.Identity) {
	tasks, err := a.client.PollTasks(ctx, id)
	if err != nil {
		a.logger.Warn("task poll failed", "error", err)
		return
	}

	for _, task := range tasks {
		if task.ID == "" {
			a.logger.Error("task is missing an id, skipping", "repository", task.RepositoryURL)
			continue
		}

		a.logger.Info("accepted task", "taskID", task.ID, "repository", task.RepositoryURL, "scanners", task.Scanners)
		a.wg.Add(1)
		go func(task models.Task) {
			defer a.wg.Done()
			a.dispatcher.Execute(ctx, task)
		}(task)
	}
}
