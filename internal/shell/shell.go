// Package shell runs commands in one long-lived interactive bash process so
// environment variables, working directory, and shell-level state persist
// across calls. Each command's output is framed by a unique sentinel token
// printed after the command completes, which also carries the exit code and
// the working directory the command left behind.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultTimeoutMs is applied when a call does not specify a timeout.
	DefaultTimeoutMs = 120_000

	// maxOutputChars caps the output returned from a single command.
	maxOutputChars = 30_000

	// interruptGrace is how long a timed-out command gets to react to
	// SIGINT before the whole shell is force-killed.
	interruptGrace = 500 * time.Millisecond

	// closeDeadline bounds the graceful shutdown in Close.
	closeDeadline = 5 * time.Second

	envPrefix = "TETHER"
)

// CommandResult is the outcome of one Run call.
type CommandResult struct {
	Output    string
	ExitCode  int
	Cwd       string
	Timestamp time.Time
	ElapsedMs int64
	TimedOut  bool
}

// Session owns one persistent bash subprocess. The process is spawned
// lazily on first use and respawned transparently after a timeout kill.
// All Run calls on a session are serialized by a mutex; a session must not
// be shared across agent sessions.
type Session struct {
	mu     sync.Mutex
	cwd    string
	env    []string
	logger *zap.Logger

	cmd    *exec.Cmd
	pid    int
	stdin  io.WriteCloser
	out    *bufio.Reader
	outPR  *os.File
	exited chan struct{}
}

// NewSession creates a shell session rooted at cwd (the process working
// directory if empty). Environment overrides are applied on top of the
// current environment with TETHER* variables stripped, so subprocesses
// don't believe they are inside another tether session.
func NewSession(cwd string, env map[string]string, logger *zap.Logger) *Session {
	if cwd == "" {
		cwd, _ = os.Getwd()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		cwd:    cwd,
		env:    buildEnv(env),
		logger: logger,
	}
}

func buildEnv(overrides map[string]string) []string {
	env := make([]string, 0, len(os.Environ())+len(overrides))
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, envPrefix) {
			continue
		}
		env = append(env, kv)
	}
	for k, v := range overrides {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

// spawn starts (or restarts) the bash subprocess. Caller must hold mu.
func (s *Session) spawn() error {
	cmd := exec.Command("bash", "--norc", "--noprofile")
	cmd.Dir = s.cwd
	cmd.Env = s.env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	// stderr is merged into stdout through a single pipe so the sentinel
	// reader sees every line the command produces.
	pr, pw, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("failed to create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		stdin.Close()
		pr.Close()
		pw.Close()
		return fmt.Errorf("failed to start shell: %w", err)
	}
	pw.Close()

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	s.cmd = cmd
	s.pid = cmd.Process.Pid
	s.stdin = stdin
	s.outPR = pr
	s.out = bufio.NewReader(pr)
	s.exited = exited

	s.logger.Debug("shell spawned",
		zap.Int("pid", s.pid),
		zap.String("cwd", s.cwd))

	// Last-resort cleanup when a session is dropped without Close: signal
	// the pid directly instead of going through exec.Cmd, which can fail
	// once the surrounding scheduling machinery has already shut down.
	runtime.SetFinalizer(s, nil)
	runtime.SetFinalizer(s, func(sess *Session) {
		if sess.cmd != nil && sess.alive() {
			_ = syscall.Kill(sess.pid, syscall.SIGTERM)
		}
	})

	return nil
}

// ensureAlive spawns the subprocess if it is missing or dead. Caller must
// hold mu.
func (s *Session) ensureAlive() error {
	if s.cmd != nil && s.alive() {
		return nil
	}
	s.discard()
	return s.spawn()
}

func (s *Session) alive() bool {
	if s.exited == nil {
		return false
	}
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// discard drops the current process handles without waiting. Caller must
// hold mu.
func (s *Session) discard() {
	if s.stdin != nil {
		s.stdin.Close()
		s.stdin = nil
	}
	if s.outPR != nil {
		s.outPR.Close()
		s.outPR = nil
	}
	s.cmd = nil
	s.out = nil
	s.exited = nil
}

type sentinelFrame struct {
	output   string
	exitCode int
	cwd      string
	err      error
}

// Run executes command in the persistent shell and returns its combined
// output, exit code, and the working directory it left behind. On timeout
// the command is interrupted, the shell is killed and marked for respawn,
// and a normal result with TimedOut=true and ExitCode=-1 is returned.
func (s *Session) Run(ctx context.Context, command string, timeoutMs int) (*CommandResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timeoutMs <= 0 {
		timeoutMs = DefaultTimeoutMs
	}

	if err := s.ensureAlive(); err != nil {
		return nil, err
	}

	token := fmt.Sprintf("___TETHER_%s___", strings.ReplaceAll(uuid.NewString(), "-", ""))
	start := time.Now()

	// The printf puts the sentinel on its own line even when the command
	// does not end with a newline.
	wrapped := fmt.Sprintf("%s\n__tether_ec=$?\nprintf '\\n%s%%s %%s\\n' \"$__tether_ec\" \"$(pwd)\"\n",
		command, token)

	if _, err := io.WriteString(s.stdin, wrapped); err != nil {
		s.discard()
		return nil, fmt.Errorf("failed to write command to shell: %w", err)
	}

	frames := make(chan sentinelFrame, 1)
	go readUntilSentinel(s.out, token, frames)

	timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
	defer timer.Stop()

	var frame sentinelFrame
	timedOut := false
	select {
	case frame = <-frames:
	case <-timer.C:
		timedOut = true
	case <-ctx.Done():
		timedOut = true
	}

	result := &CommandResult{
		Timestamp: start,
		ElapsedMs: time.Since(start).Milliseconds(),
		Cwd:       s.cwd,
		ExitCode:  -1,
		TimedOut:  timedOut,
	}

	if timedOut {
		s.killTimedOut()
		result.Output = truncateOutput(frameOutputSoFar(frames))
		s.logger.Warn("shell command timed out",
			zap.String("command", command),
			zap.Int("timeoutMs", timeoutMs))
		return result, nil
	}

	if frame.err != nil {
		// EOF before the sentinel means the process died mid-command.
		s.discard()
		result.Output = truncateOutput(frame.output)
		return result, nil
	}

	s.cwd = frame.cwd
	result.Output = truncateOutput(frame.output)
	result.ExitCode = frame.exitCode
	result.Cwd = frame.cwd
	result.ElapsedMs = time.Since(start).Milliseconds()
	return result, nil
}

// readUntilSentinel consumes the merged output stream line by line until a
// line containing token appears, then parses the exit code and working
// directory from it.
func readUntilSentinel(r *bufio.Reader, token string, frames chan<- sentinelFrame) {
	var output strings.Builder
	for {
		line, err := r.ReadString('\n')
		if strings.Contains(line, token) {
			after := strings.SplitN(line, token, 2)[1]
			fields := strings.SplitN(strings.TrimSpace(after), " ", 2)
			// The wrapper printed one guard newline before the token;
			// it is not part of the command's output.
			frame := sentinelFrame{
				output:   strings.TrimSuffix(output.String(), "\n"),
				exitCode: -1,
			}
			if len(fields) > 0 {
				if ec, convErr := strconv.Atoi(fields[0]); convErr == nil {
					frame.exitCode = ec
				}
			}
			if len(fields) > 1 {
				frame.cwd = fields[1]
			}
			frames <- frame
			return
		}
		output.WriteString(line)
		if err != nil {
			frames <- sentinelFrame{output: output.String(), err: err}
			return
		}
	}
}

// frameOutputSoFar drains a frame that may have raced in just after the
// timeout fired, so its output is not silently lost.
func frameOutputSoFar(frames <-chan sentinelFrame) string {
	select {
	case frame := <-frames:
		return frame.output
	default:
		return ""
	}
}

// killTimedOut escalates signal severity against a stuck command: SIGINT
// first, then SIGKILL after a short grace period. The process is discarded
// either way; the next Run respawns transparently. Caller must hold mu.
func (s *Session) killTimedOut() {
	if s.cmd == nil || !s.alive() {
		s.discard()
		return
	}

	_ = s.cmd.Process.Signal(syscall.SIGINT)
	select {
	case <-s.exited:
	case <-time.After(interruptGrace):
		_ = s.cmd.Process.Kill()
	}
	s.discard()
}

// Restart force-kills the current shell so the next command spawns a fresh
// one. Use this to recover from corrupted shell state, e.g. a command that
// broke the sentinel protocol. If the tracked working directory no longer
// exists it is reset to the home directory so the respawn cannot fail.
func (s *Session) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil && s.alive() {
		_ = s.cmd.Process.Kill()
		select {
		case <-s.exited:
		case <-time.After(2 * time.Second):
		}
	}
	s.discard()

	if info, err := os.Stat(s.cwd); err != nil || !info.IsDir() {
		home, err := os.UserHomeDir()
		if err == nil {
			s.cwd = home
		}
	}

	s.logger.Debug("shell restarted", zap.String("cwd", s.cwd))
}

// Cwd returns the tracked working directory.
func (s *Session) Cwd() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

// Close terminates the shell gracefully, falling back to a forced kill if
// it does not exit within a short deadline. Called once at session
// teardown.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	runtime.SetFinalizer(s, nil)

	if s.cmd == nil || !s.alive() {
		s.discard()
		return nil
	}

	_ = s.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-s.exited:
	case <-time.After(closeDeadline):
		_ = s.cmd.Process.Kill()
	}
	s.discard()

	s.logger.Debug("shell closed")
	return nil
}

func truncateOutput(output string) string {
	if len(output) <= maxOutputChars {
		return output
	}
	return output[:maxOutputChars] +
		fmt.Sprintf("\n... [output truncated at %d chars]", maxOutputChars)
}
