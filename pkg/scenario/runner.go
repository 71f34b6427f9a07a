// Runner abstraction and the local process implementation
// ExecRunner captures stdout and stderr separately and honours context cancellation
package scenario

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"time"
)

const waitDelay = 2 * time.Second

// Output is what a runner captured from one command execution.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Combined returns stdout followed by stderr as lossily decoded text.
func (o Output) Combined() string {
	var b bytes.Buffer
	b.Write(o.Stdout)
	if len(o.Stdout) > 0 && len(o.Stderr) > 0 && o.Stdout[len(o.Stdout)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.Write(o.Stderr)
	return string(bytes.ToValidUTF8(b.Bytes(), []byte("�")))
}

// Runner executes a scenario's command and captures its output. A non-zero
// exit is reported through Output.ExitCode, not as an error; errors mean
// the command could not be run at all.
type Runner interface {
	Run(ctx context.Context, sc *Scenario) (Output, error)
}

// ExecRunner runs commands directly on the host. It provides no isolation
// and exists for local development and for tests; container runners
// implement Runner elsewhere.
type ExecRunner struct {
	// InheritEnv passes the host environment through before scenario env.
	InheritEnv bool
}

// Run starts the command and waits for it, honouring ctx cancellation.
func (r ExecRunner) Run(ctx context.Context, sc *Scenario) (Output, error) {
	cmd := exec.CommandContext(ctx, sc.Command[0], sc.Command[1:]...) //nolint:gosec // running the scenario command is the point
	cmd.Dir = sc.Dir
	cmd.Env = r.environ(sc.Env)
	// Grandchildren holding the output pipes must not outlive cancellation.
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	out := Output{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, fmt.Errorf("command %q: %w", sc.Command[0], ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("command %q: %w", sc.Command[0], err)
	}
	return out, nil
}

func (r ExecRunner) environ(extra map[string]string) []string {
	// A non-nil empty slice keeps exec from falling back to the host env.
	env := make([]string, 0, len(extra))
	if r.InheritEnv {
		env = append(env, os.Environ()...)
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
