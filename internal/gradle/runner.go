package gradle

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
)

// maxOutputLine bounds a single captured output line. Gradle can print very
// long lines (classpath dumps, R8 traces); bufio.Scanner's default 64KB token
// limit is not enough.
const maxOutputLine = 10 * 1024 * 1024

// errWait marks a process that started but could not be waited on cleanly,
// as opposed to one that never started.
var errWait = errors.New("gradle wrapper terminated abnormally")

// ExecRunner is the production ProcessRunner backed by os/exec. Output lines
// are logged as they arrive and buffered for classification. Both pipes are
// drained to EOF before Wait returns the exit code.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, spec CommandSpec) (*ExecResult, error) {
	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	slog.Debug("Gradle invocation started", "wrapper", spec.Path, "dir", spec.Dir, "args", spec.Args)

	var mu sync.Mutex
	var lines []string
	var wg sync.WaitGroup
	wg.Add(2)

	collect := func(r io.Reader, level slog.Level) {
		defer wg.Done()
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxOutputLine)
		for sc.Scan() {
			line := sc.Text()
			slog.Log(ctx, level, "gradle", "line", line)
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
		}
		if err := sc.Err(); err != nil {
			// The stream must reach EOF or the child blocks on a full pipe
			// and Wait never returns.
			slog.Warn("Gradle output capture truncated", "error", err)
			io.Copy(io.Discard, r) //nolint:errcheck
		}
	}
	go collect(stdout, slog.LevelDebug)
	go collect(stderr, slog.LevelWarn)

	wg.Wait()
	err = cmd.Wait()

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("%w: %w", errWait, err)
		}
	}
	return &ExecResult{ExitCode: exitCode, Lines: lines}, nil
}
