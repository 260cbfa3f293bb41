package scanner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/hashicorp/go-hclog"
)

// toolOutput captures one subprocess invocation.
type toolOutput struct {
	stdout   []byte
	stderr   []byte
	exitCode int
}

// runTool executes an external scanner binary with a hard timeout.
// A non-zero exit code is not an error here; scanners conventionally use
// it to signal "issues found" and the caller decides based on whether the
// output parses. Exceeding the timeout kills the process and returns a
// timeout-kind ScanError.
func runTool(ctx context.Context, logger hclog.Logger, scannerName string, timeout time.Duration, bin string, args ...string) (*toolOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("running command", "cmd", cmd.Args)
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		logger.Error("command timed out", "cmd", bin, "elapsed", elapsed)
		return nil, &ScanError{Scanner: scannerName, Kind: ErrKindTimeout, Err: ctx.Err()}
	}

	out := &toolOutput{
		stdout: stdout.Bytes(),
		stderr: stderr.Bytes(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.exitCode = exitErr.ExitCode()
		} else {
			logger.Error("command failed to start", "cmd", bin, "error", err)
			return nil, &ScanError{Scanner: scannerName, Kind: ErrKindExec, Err: err}
		}
	}

	logger.Debug("command completed", "cmd", bin, "exitCode", out.exitCode, "elapsed", elapsed)
	return out, nil
}
