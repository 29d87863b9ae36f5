// Package exec runs a child process with resolved secrets injected into its
// environment.
package exec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/rs/zerolog"
)

// Option configures a Runner.
type Option func(*Runner)

// WithStdio replaces the standard streams the child inherits.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdin = stdin
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithEnviron sets the environment the injected variables are layered on.
// The default is the current process environment.
func WithEnviron(environ []string) Option {
	return func(r *Runner) {
		r.environ = environ
	}
}

// Runner starts child processes. The zero value is not usable; call
// NewRunner.
type Runner struct {
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	environ []string
}

// NewRunner creates a Runner inheriting the parent's streams and
// environment unless an option says otherwise.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		environ: os.Environ(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run executes command with env layered over the runner's environment and
// waits for it to exit. SIGINT, SIGTERM and SIGHUP received meanwhile are
// forwarded to the child. A non-zero exit comes back as an *exec.ExitError;
// use ExitCode to extract the status.
func (r *Runner) Run(ctx context.Context, command []string, env map[string]string) error {
	if len(command) == 0 {
		return fmt.Errorf("command must not be empty")
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Env = mergeEnv(r.environ, env)
	cmd.Stdin = r.stdin
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	zerolog.Ctx(ctx).Debug().
		Str("command", command[0]).
		Int("injected", len(env)).
		Msg("starting child process")

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting command %q: %w", command[0], err)
	}

	cleanup := ForwardSignals(ctx, cmd.Process)
	defer cleanup()

	return cmd.Wait()
}

// Run executes command with a default Runner.
func Run(ctx context.Context, command []string, env map[string]string) error {
	return NewRunner().Run(ctx, command, env)
}

// ExitCode returns the exit status carried by an error from Run: 0 for nil,
// the child's status for an *exec.ExitError and 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return 1
}

// mergeEnv layers additional over current and returns sorted KEY=VALUE
// entries. Neither input is mutated.
func mergeEnv(current []string, additional map[string]string) []string {
	vars := make(map[string]string, len(current)+len(additional))
	for _, entry := range current {
		key, value, _ := strings.Cut(entry, "=")
		if key != "" {
			vars[key] = value
		}
	}

	maps.Copy(vars, additional)

	result := make([]string, 0, len(vars))
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		result = append(result, k+"="+vars[k])
	}

	return result
}
