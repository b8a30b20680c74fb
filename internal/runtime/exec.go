package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/cruciblehq/pybox/internal/fault"
)

// Bytes of standard error retained from a build step.
//
// pip can write megabytes of progress to stderr; only the end of it is useful
// in an error message.
const stderrTail = 8 << 10

var execCounter atomic.Uint64

// Returns a process ID unique within this daemon or CLI invocation.
func nextExecID() string {
	return fmt.Sprintf("pybox-exec-%d", execCounter.Add(1))
}

// Output of a command execution inside a container.
type ExecResult struct {
	ExitCode int    // Exit code of the process.
	Stdout   string // Captured standard output.
	Stderr   string // Trailing part of standard error.
}

// One process started inside a build container.
type execSpec struct {
	args    []string  // Argument vector, args[0] is resolved through PATH.
	env     []string  // Entries merged over the container's environment.
	workdir string    // Working directory, or empty for the image default.
	stdin   io.Reader // Optional input, closed in the process on EOF.
	stdout  io.Writer // Nil discards.
	stderr  io.Writer // Nil discards.
}

// Runs a shell command inside the container.
//
// The command is passed to the shell as "shell -c command". Environment
// entries and the working directory override the container's spec for this
// execution only. A non-zero exit code is reported in the result, not as an
// error.
func (c *Container) Exec(ctx context.Context, shell, command string, env []string, workdir string) (*ExecResult, error) {
	var stdout bytes.Buffer
	stderr := &tailBuffer{limit: stderrTail}

	code, err := c.exec(ctx, execSpec{
		args:    []string{shell, "-c", command},
		env:     env,
		workdir: workdir,
		stdout:  &stdout,
		stderr:  stderr,
	})
	if err != nil {
		return nil, err
	}

	return &ExecResult{ExitCode: code, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// Attaches a process to the container's task and waits for its exit code.
//
// Cancelling ctx kills the process. The process is deleted on every path.
func (c *Container) exec(ctx context.Context, es execSpec) (int, error) {
	task, proc, err := c.prepare(ctx, es)
	if err != nil {
		return 0, fault.Wrap(ErrRuntime, err)
	}

	// The shim keeps both ends of the stdin FIFO open, so EOF on the reader
	// has to be forwarded explicitly.
	var eof <-chan struct{}
	stdin := es.stdin
	if stdin != nil {
		r := &eofReader{r: stdin, eof: make(chan struct{})}
		stdin, eof = r, r.eof
	}

	process, err := task.Exec(ctx, nextExecID(), proc, cio.NewCreator(
		cio.WithStreams(stdin, orDiscard(es.stdout), orDiscard(es.stderr)),
	))
	if err != nil {
		return 0, fault.Wrap(ErrRuntime, err)
	}
	defer process.Delete(context.WithoutCancel(ctx))

	exited, err := process.Wait(ctx)
	if err != nil {
		return 0, fault.Wrap(ErrRuntime, err)
	}
	if err := process.Start(ctx); err != nil {
		return 0, fault.Wrap(ErrRuntime, err)
	}

	if eof != nil {
		go func() {
			select {
			case <-eof:
				process.CloseIO(ctx, containerd.WithStdinCloser)
			case <-ctx.Done():
			}
		}()
	}

	select {
	case st := <-exited:
		code, _, err := st.Result()
		if err != nil {
			return 0, fault.Wrap(ErrRuntime, err)
		}
		return int(code), nil
	case <-ctx.Done():
		process.Kill(context.WithoutCancel(ctx), syscall.SIGKILL)
		return 0, ctx.Err()
	}
}

// Loads the running task and derives the exec's process from the
// container's own spec.
func (c *Container) prepare(ctx context.Context, es execSpec) (containerd.Task, *specs.Process, error) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return nil, nil, err
	}
	task, err := ctr.Task(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	spec, err := ctr.Spec(ctx)
	if err != nil {
		return nil, nil, err
	}

	proc := *spec.Process
	proc.Terminal = false
	proc.Args = es.args
	if len(es.env) > 0 {
		proc.Env = mergeEnv(proc.Env, es.env)
	}
	if es.workdir != "" {
		proc.Cwd = es.workdir
	}
	return task, &proc, nil
}

// Merges override entries on top of a base environment.
//
// The result is sorted by key. Entries without "=" are dropped.
func mergeEnv(base, overrides []string) []string {
	vars := make(map[string]string, len(base)+len(overrides))
	for _, entry := range slices.Concat(base, overrides) {
		if k, v, ok := strings.Cut(entry, "="); ok {
			vars[k] = v
		}
	}

	env := make([]string, 0, len(vars))
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		env = append(env, k+"="+vars[k])
	}
	return env
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// Reader that closes eof the first time the wrapped reader is exhausted.
type eofReader struct {
	r    io.Reader
	once sync.Once
	eof  chan struct{}
}

func (e *eofReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err == io.EOF {
		e.once.Do(func() { close(e.eof) })
	}
	return n, err
}

// Writer that keeps only the last limit bytes written to it.
type tailBuffer struct {
	buf       []byte
	limit     int
	truncated bool
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = slices.Delete(t.buf, 0, over)
		t.truncated = true
	}
	return len(p), nil
}

// Returns the retained bytes, prefixed with "..." when output was dropped.
func (t *tailBuffer) String() string {
	if t.truncated {
		return "..." + string(t.buf)
	}
	return string(t.buf)
}
