package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunToolCapturesOutputAndExitCode(t *testing.T) {
	out, err := runTool(context.Background(), hclog.NewNullLogger(), "test", time.Minute,
		"sh", "-c", "echo findings; exit 1")
	require.NoError(t, err)

	assert.Equal(t, 1, out.exitCode)
	assert.Equal(t, "findings\n", string(out.stdout))
}

func TestRunToolMissingBinary(t *testing.T) {
	_, err := runTool(context.Background(), hclog.NewNullLogger(), "test", time.Minute,
		"definitely-not-a-real-scanner-binary")
	require.Error(t, err)

	var scanErr *ScanError
	require.True(t, errors.As(err, &scanErr))
	assert.Equal(t, ErrKindExec, scanErr.Kind)
}

func TestRunToolTimeoutKillsProcess(t *testing.T) {
	start := time.Now()
	_, err := runTool(context.Background(), hclog.NewNullLogger(), "test", 50*time.Millisecond,
		"sh", "-c", "sleep 5")
	require.Error(t, err)

	var scanErr *ScanError
	require.True(t, errors.As(err, &scanErr))
	assert.Equal(t, ErrKindTimeout, scanErr.Kind)
	assert.Less(t, time.Since(start), 3*time.Second)
}
