package fetcher

import (
	"context"
	"fmt"
	"os"

	"github.com/gitsight/go-vcsurl"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/scanio-agent/pkg/shared/config"
)

// FetchError wraps any failure to materialize a task's source tree.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch repository %q: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher materializes task source trees into ephemeral working
// directories under the configured workspace. Each Fetch gets its own
// directory, so concurrent tasks never collide.
type Fetcher struct {
	workspace string
	auth      transport.AuthMethod
	cfg       *config.GitClient
	logger    hclog.Logger
}

// New initializes a Fetcher with authentication set up from the config.
func New(workspace string, cfg *config.GitClient, logger hclog.Logger) (*Fetcher, error) {
	auth, err := setupAuth(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up git authentication: %w", err)
	}

	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace %q: %w", workspace, err)
	}

	return &Fetcher{
		workspace: workspace,
		auth:      auth,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Fetch clones repoURL into a fresh working directory and checks out
// commitRef when given, otherwise the default branch tip. On any failure
// the directory is removed before the error is returned. Retrying is the
// caller's decision; Fetch never retries on its own.
func (f *Fetcher) Fetch(ctx context.Context, repoURL, commitRef string) (string, error) {
	workdir, err := os.MkdirTemp(f.workspace, "scanio-task-")
	if err != nil {
		return "", &FetchError{URL: repoURL, Err: fmt.Errorf("failed to create working directory: %w", err)}
	}

	repoName := repoURL
	if info, err := vcsurl.Parse(repoURL); err == nil {
		repoName = info.Name
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	// A pinned ref may be outside the shallow window, so clone full
	// history when one is requested.
	depth := f.cfg.Depth
	if commitRef != "" {
		depth = 0
	}

	f.logger.Debug("starting repository fetch", "repository", repoName, "cloneURL", repoURL, "ref", commitRef, "targetFolder", workdir)
	repo, err := git.PlainCloneContext(ctx, workdir, false, &git.CloneOptions{
		Auth:  f.auth,
		URL:   repoURL,
		Depth: depth,
	})
	if err != nil {
		f.Cleanup(workdir)
		return "", &FetchError{URL: repoURL, Err: err}
	}

	if commitRef != "" {
		if err := checkoutRef(repo, commitRef); err != nil {
			f.Cleanup(workdir)
			return "", &FetchError{URL: repoURL, Err: err}
		}
	}

	f.logger.Info("repository fetched", "repository", repoName, "ref", commitRef, "targetFolder", workdir)
	return workdir, nil
}

// Cleanup removes a working directory returned by Fetch. Safe to call
// more than once.
func (f *Fetcher) Cleanup(workdir string) {
	if workdir == "" {
		return
	}
	if err := os.RemoveAll(workdir); err != nil {
		f.logger.Error("failed to remove working directory", "targetFolder", workdir, "error", err)
	}
}

// checkoutRef resolves a revision (commit hash, tag or branch) and checks
// it out with a forced worktree reset.
func checkoutRef(repo *git.Repository, ref string) error {
	w, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("error accessing worktree: %w", err)
	}

	h, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return fmt.Errorf("error resolving revision %q: %w", ref, err)
	}

	if err := w.Checkout(&git.CheckoutOptions{
		Hash:  *h,
		Force: true,
	}); err != nil {
		return fmt.Errorf("error occurred during checkout: %w", err)
	}
	return nil
}
