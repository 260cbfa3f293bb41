// Package scanner wraps external static-analysis tools behind a uniform
// Runner capability. Each runner invokes its tool as a subprocess scoped
// to a checked-out source tree and normalizes the tool's native output
// into the common finding model. Adding a scanner means adding a Runner
// and registering it; the executor never knows tool specifics.
package scanner

import (
	"context"
	"sort"

	"github.com/scan-io-git/scanio-agent/internal/models"
)

// Runner is the uniform capability implemented once per supported tool.
// Run must not mutate targetDir.
type Runner interface {
	Name() string
	Run(ctx context.Context, targetDir string) (*models.ScanResult, error)
}

// Registry holds the runners available on this agent, keyed by name.
type Registry struct {
	runners map[string]Runner
}

func NewRegistry(runners ...Runner) *Registry {
	r := &Registry{runners: make(map[string]Runner)}
	for _, runner := range runners {
		r.Register(runner)
	}
	return r
}

func (r *Registry) Register(runner Runner) {
	r.runners[runner.Name()] = runner
}

// Get returns the runner for name, or false when the scanner is not
// supported by this agent.
func (r *Registry) Get(name string) (Runner, bool) {
	runner, ok := r.runners[name]
	return runner, ok
}

// Names returns the sorted scanner names; used as the agent's
// capabilities list during registration.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.runners))
	for name := range r.runners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
