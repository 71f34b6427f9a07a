package scenario

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_CapturesOutput(t *testing.T) {
	requireShell(t)
	sc := &Scenario{
		Name:    "echo",
		Command: []string{"sh", "-c", `echo "to stdout $GREETING"; echo "to stderr" >&2; exit 4`},
		Env:     map[string]string{"GREETING": "hi"},
	}

	out, err := ExecRunner{}.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, "to stdout hi\n", string(out.Stdout))
	assert.Equal(t, "to stderr\n", string(out.Stderr))
	assert.Equal(t, 4, out.ExitCode)
	assert.Positive(t, out.Duration)
}

func TestExecRunner_IsolatedEnvironment(t *testing.T) {
	requireShell(t)
	t.Setenv("TRACECHECK_LEAK", "leaked")
	sc := &Scenario{Name: "env", Command: []string{"sh", "-c", `echo "[$TRACECHECK_LEAK]"`}}

	out, err := ExecRunner{}.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(out.Stdout))

	out, err = ExecRunner{InheritEnv: true}.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, "[leaked]\n", string(out.Stdout))
}

func TestExecRunner_Timeout(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := ExecRunner{InheritEnv: true}.Run(ctx, &Scenario{Name: "slow", Command: []string{"sh", "-c", "exec sleep 5"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecRunner_MissingBinary(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), &Scenario{Name: "nope", Command: []string{"definitely-not-a-real-binary-xyz"}})
	require.Error(t, err)
}
