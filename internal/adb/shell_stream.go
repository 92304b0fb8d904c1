package adb

import (
	"bytes"
	"strings"
)

// oneShotShell runs a single command line against the backend shell once,
// on start, and closes itself — used for both "shell:<cmd>" (non-empty
// cmd) and "exec:<cmd>" per the dispatcher.
type oneShotShell struct {
	backend Backend
	cmd     string
	sender  Sender
	metrics Metrics
	ran     bool
}

func newOneShotShell(backend Backend, cmd string, sender Sender, metrics Metrics) *oneShotShell {
	return &oneShotShell{backend: backend, cmd: cmd, sender: sender, metrics: metrics}
}

// Start runs the command once OKAY for the OPEN has been sent.
func (s *oneShotShell) Start() {
	s.run()
}

func (s *oneShotShell) run() {
	if s.ran {
		return
	}
	s.ran = true
	if s.metrics != nil {
		s.metrics.IncrementShellCommands()
	}

	result, err := s.backend.ShellExecute("", s.cmd)
	if err != nil {
		s.sender.Send([]byte(err.Error() + "\n"))
		s.sender.Close()
		return
	}
	if len(result.Stdout) > 0 {
		s.sender.Send(result.Stdout)
	}
	if len(result.Stderr) > 0 {
		s.sender.Send(result.Stderr)
	}
	s.sender.Close()
}

// Deliver is a no-op: a one-shot shell never reads from the stream, it
// only produces output before closing.
func (s *oneShotShell) Deliver(payload []byte) {}

// Close is a no-op: nothing is held open once run() has completed.
func (s *oneShotShell) Close() {}

const (
	ctrlC = 0x03
	ctrlD = 0x04
)

// interactiveShell implements the line-buffered prompt session opened by
// a bare "shell:" with no command. Inbound bytes accumulate until a CR or
// LF terminates a line; Ctrl-C discards the buffer and Ctrl-D closes the
// stream, matching a minimal TTY-less shell.
type interactiveShell struct {
	backend Backend
	sender  Sender
	metrics Metrics
	cwd     string
	buf     bytes.Buffer
}

const shellPrompt = "$ "

func newInteractiveShell(backend Backend, sender Sender, metrics Metrics) *interactiveShell {
	return &interactiveShell{backend: backend, sender: sender, metrics: metrics, cwd: "/"}
}

// Start sends the initial prompt once OKAY for the OPEN has been sent.
func (s *interactiveShell) Start() {
	s.sender.Send([]byte(shellPrompt))
}

func (s *interactiveShell) Deliver(payload []byte) {
	for _, b := range payload {
		switch b {
		case ctrlC:
			s.buf.Reset()
			s.sender.Send([]byte("^C\r\n" + shellPrompt))
		case ctrlD:
			s.sender.Close()
			return
		case '\r', '\n':
			s.submitLine()
		default:
			s.buf.WriteByte(b)
		}
	}
}

func (s *interactiveShell) submitLine() {
	line := s.buf.String()
	s.buf.Reset()

	if strings.TrimSpace(line) == "exit" {
		s.sender.Send([]byte("exit\r\n"))
		s.sender.Close()
		return
	}

	if s.metrics != nil {
		s.metrics.IncrementShellCommands()
	}
	result, err := s.backend.ShellExecute(s.cwd, line)
	if err != nil {
		s.sender.Send([]byte(crlf(err.Error()) + "\r\n" + shellPrompt))
		return
	}
	s.cwd = result.NewCwd

	var out bytes.Buffer
	out.WriteString(crlf(string(result.Stdout)))
	out.WriteString(crlf(string(result.Stderr)))
	out.WriteString(shellPrompt)
	s.sender.Send(out.Bytes())
}

// Close releases nothing extra: an interactive shell holds no background
// worker or backend handle beyond the cwd string.
func (s *interactiveShell) Close() {}

// crlf translates bare LF to CR-LF, matching the interactive-mode-only
// newline translation called for in the stream spec (one-shot output is
// sent raw).
func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}
