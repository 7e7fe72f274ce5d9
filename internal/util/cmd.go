package util

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// CmdSpec describes a subprocess to run.
type CmdSpec struct {
	Path    string   // Binary path
	Args    []string // Arguments
	Env     []string // Optional environment variables (KEY=VALUE). If nil, inherit.
	Dir     string   // Working directory; empty = inherit.
	Verbose bool     // Log every output line at debug level

	StdoutLine    func(string) // Called for each stdout line (if non-nil)
	StderrLine    func(string) // Called for each stderr line (if non-nil)
	CaptureStdout bool         // When false and StdoutLine is set, stdout is not buffered
}

// CmdResult contains captured output and exit status.
type CmdResult struct {
	Stdout []byte
	Stderr []byte
	Code   int
	Err    error
}

// ErrCommandFailed wraps every non-zero exit returned by Run.
var ErrCommandFailed = errors.New("command failed")

// CmdRunner runs subprocesses. Tests substitute a fake.
type CmdRunner interface {
	Run(ctx context.Context, spec CmdSpec) (CmdResult, error)
}

// ExecRunner runs real subprocesses through os/exec.
type ExecRunner struct {
	Log zerolog.Logger
}

// NewDefaultRunner returns an ExecRunner that logs nothing.
func NewDefaultRunner() *ExecRunner {
	return &ExecRunner{Log: zerolog.Nop()}
}

// Run executes the command. Stderr is always captured; stdout is captured
// unless a StdoutLine callback is set and CaptureStdout is false.
// On non-zero exit it returns an error wrapping ErrCommandFailed, while also
// populating CmdResult.Code and captured buffers.
func (r *ExecRunner) Run(ctx context.Context, spec CmdSpec) (CmdResult, error) {
	var stdoutBuf, stderrBuf bytes.Buffer

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	if spec.Env != nil {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return CmdResult{Code: -1, Err: err}, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return CmdResult{Code: -1, Err: err}, err
	}

	log := r.Log.With().Str("bin", spec.Path).Logger()
	log.Debug().Str("cmd", shellQuote(spec.Path, spec.Args)).Msg("exec")

	if err := cmd.Start(); err != nil {
		return CmdResult{Code: -1, Err: err}, err
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		capture := spec.CaptureStdout || spec.StdoutLine == nil
		scanLines(stdoutPipe, func(line string) {
			if spec.StdoutLine != nil {
				spec.StdoutLine(line)
			}
			if spec.Verbose {
				log.Debug().Str("stream", "stdout").Msg(line)
			}
			if capture {
				stdoutBuf.WriteString(line)
				stdoutBuf.WriteByte('\n')
			}
		}, log)
	}()

	go func() {
		defer wg.Done()
		scanLines(stderrPipe, func(line string) {
			if spec.StderrLine != nil {
				spec.StderrLine(line)
			}
			if spec.Verbose {
				log.Debug().Str("stream", "stderr").Msg(line)
			}
			stderrBuf.WriteString(line)
			stderrBuf.WriteByte('\n')
		}, log)
	}()

	// Readers must drain before Wait closes the pipes.
	wg.Wait()
	waitErr := cmd.Wait()

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	res := CmdResult{
		Stdout: stdoutBuf.Bytes(),
		Stderr: stderrBuf.Bytes(),
		Code:   code,
		Err:    waitErr,
	}

	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("%w (exit %d): %w", ErrCommandFailed, code, ctxErr)
		}
		return res, fmt.Errorf("%w (exit %d): %w", ErrCommandFailed, code, waitErr)
	}
	return res, nil
}

func scanLines(r io.Reader, fn func(string), log zerolog.Logger) {
	sc := bufio.NewScanner(r)
	// yt-dlp --dump-json can print 500KB+ on one line
	const maxCapacity = 4 * 1024 * 1024
	sc.Buffer(make([]byte, 0, 64*1024), maxCapacity)
	for sc.Scan() {
		fn(sc.Text())
	}
	if err := sc.Err(); err != nil {
		// Exit status still reflects the real failure.
		log.Debug().Err(err).Msg("output scan error")
		_, _ = io.Copy(io.Discard, r)
	}
}

// LastLines returns up to n trailing non-empty lines of b, joined by "; ".
// Used to turn captured stderr into a short error message.
func LastLines(b []byte, n int) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	var out []string
	for i := len(lines) - 1; i >= 0 && len(out) < n; i-- {
		l := strings.TrimSpace(lines[i])
		if l != "" {
			out = append([]string{l}, out...)
		}
	}
	return strings.Join(out, "; ")
}

// shellQuote returns a printable shell-like command string for logging.
func shellQuote(path string, args []string) string {
	b := &strings.Builder{}
	b.WriteString(quote(path))
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(quote(a))
	}
	return b.String()
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " \t\n\"'\\$`(){}[]*&;|<>?!") {
		return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
	}
	return s
}
