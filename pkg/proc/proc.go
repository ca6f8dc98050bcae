// Package proc is the shared subprocess abstraction. Agent invocations,
// git commands, verification gate commands, and tracker CLI calls all run
// through it, so every spawn site gets the same timeout, capture, and
// streaming behavior.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Command describes one subprocess invocation. Stdin, when non-empty, is
// delivered on the process's standard input at spawn time; there is no
// further interactive input.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string
	Stdin   string
	Timeout time.Duration

	// Stream receives combined stdout/stderr as it is produced, for live
	// observability. The output is still captured in the Result.
	Stream io.Writer
}

// Result is the outcome of a completed subprocess.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Output returns the combined captured output, stderr after stdout.
func (r *Result) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Run executes the command and waits for it to exit. A non-zero exit is
// not an error: it is reported through Result.ExitCode so callers can
// decide. The returned error covers spawn failures and context expiry.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Name == "" {
		return nil, fmt.Errorf("empty command")
	}

	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	proc := exec.CommandContext(runCtx, cmd.Name, cmd.Args...)
	proc.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		proc.Env = cmd.Env
	}
	if cmd.Stdin != "" {
		proc.Stdin = strings.NewReader(cmd.Stdin)
	}

	var stdout, stderr bytes.Buffer
	if cmd.Stream != nil {
		stream := &syncWriter{w: cmd.Stream}
		proc.Stdout = io.MultiWriter(&stdout, stream)
		proc.Stderr = io.MultiWriter(&stderr, stream)
	} else {
		proc.Stdout = &stdout
		proc.Stderr = &stderr
	}

	start := time.Now()
	err := proc.Run()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if ctxErr := runCtx.Err(); ctxErr != nil {
				return result, fmt.Errorf("command %s timed out: %w", cmd.Name, ctxErr)
			}
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("failed to run %s: %w", cmd.Name, err)
	}

	return result, nil
}

// syncWriter serializes writes from the stdout and stderr pipes onto one
// destination.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// LineWriter prefixes each output line before forwarding it, which keeps
// interleaved agent output attributable when streamed to a shared log.
type LineWriter struct {
	Prefix string
	Sink   io.Writer

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLineWriter creates a LineWriter forwarding to sink.
func NewLineWriter(prefix string, sink io.Writer) *LineWriter {
	return &LineWriter{Prefix: prefix, Sink: sink}
}

func (l *LineWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf.Write(p)
	for {
		line, err := l.buf.ReadString('\n')
		if err != nil {
			// Partial line: keep it buffered for the next write.
			l.buf.WriteString(line)
			break
		}
		if _, err := fmt.Fprintf(l.Sink, "%s%s", l.Prefix, line); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Flush writes any buffered partial line.
func (l *LineWriter) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.buf.Len() == 0 {
		return nil
	}
	_, err := fmt.Fprintf(l.Sink, "%s%s\n", l.Prefix, l.buf.String())
	l.buf.Reset()
	return err
}
