package shell

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner_Success(t *testing.T) {
	out, err := ExecRunner{}.Run(context.Background(), Command{
		Path:  "/bin/sh",
		Args:  []string{"-c", "cat; echo done"},
		Stdin: []byte("hello\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello\ndone\n", string(out))
}

func TestExecRunner_CombinesStderr(t *testing.T) {
	out, err := ExecRunner{}.Run(context.Background(), Command{
		Path: "/bin/sh",
		Args: []string{"-c", "echo oops 1>&2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "oops\n", string(out))
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), Command{
		Path: "/bin/sh",
		Args: []string{"-c", "echo broken; exit 3"},
	})
	require.Error(t, err)

	var procErr *ExternalProcessError
	require.True(t, errors.As(err, &procErr))
	assert.Equal(t, 3, procErr.ExitCode)
	assert.Equal(t, []string{"/bin/sh", "-c", "echo broken; exit 3"}, procErr.Command)
	assert.Equal(t, "broken\n", string(procErr.Output))
	assert.Contains(t, procErr.Error(), "exit status 3")
}

func TestExecRunner_MissingBinary(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), Command{Path: "/nonexistent/tool"})
	require.Error(t, err)

	var procErr *ExternalProcessError
	assert.False(t, errors.As(err, &procErr))
}

func TestExecRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExecRunner{}.Run(ctx, Command{Path: "/bin/sh", Args: []string{"-c", "sleep 5"}})
	assert.ErrorIs(t, err, context.Canceled)
}
