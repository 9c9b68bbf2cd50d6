package oracle

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/notnil/chess"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/quiet-aggression/internal/board"
)

// UCIOption configures a UCIEngine before launch.
type UCIOption func(*UCIEngine)

// WithDepth sets the search depth budget for go commands.
func WithDepth(depth int) UCIOption {
	return func(e *UCIEngine) {
		if depth > 0 {
			e.depth = depth
		}
	}
}

// WithTimeout sets the overall deadline for reading a bestmove response.
// If the engine hasn't responded within this duration after "go", the
// engine is sent "stop" and the forced bestmove is read.
func WithTimeout(d time.Duration) UCIOption {
	return func(e *UCIEngine) { e.timeout = d }
}

// WithEngineOption queues a "setoption" command to send during handshake.
func WithEngineOption(name, value string) UCIOption {
	return func(e *UCIEngine) {
		e.options = append(e.options, engineOption{name: name, value: value})
	}
}

// engineOption is a name/value pair sent via "setoption name <n> value <v>".
type engineOption struct {
	name  string
	value string
}

// UCIEngine implements Oracle by delegating to a UCI engine subprocess.
// The process is exclusively owned by this instance and must be released
// with Close when the instance is discarded.
type UCIEngine struct {
	enginePath string
	depth      int
	timeout    time.Duration
	options    []engineOption

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	scanner *bufio.Scanner

	mu     sync.Mutex
	closed bool

	// exited is closed when the process exits; used by isAlive.
	exited chan struct{}
}

// NewUCIEngine spawns the engine process, performs the UCI handshake
// (uci -> uciok, setoptions, isready -> readyok), and returns a ready oracle.
func NewUCIEngine(enginePath string, opts ...UCIOption) (*UCIEngine, error) {
	e := &UCIEngine{
		enginePath: enginePath,
		depth:      10,
		timeout:    10 * time.Second,
	}
	for _, o := range opts {
		o(e)
	}

	if err := e.start(); err != nil {
		return nil, fmt.Errorf("uci oracle: start engine: %w", err)
	}

	if err := e.handshake(); err != nil {
		e.Close()
		return nil, fmt.Errorf("uci oracle: handshake: %w", err)
	}

	return e, nil
}

// Name returns the oracle name.
func (e *UCIEngine) Name() string { return "uci" }

// Evaluate runs a depth-bounded search and returns the white-POV score.
func (e *UCIEngine) Evaluate(s *board.State) (Score, error) {
	resp, err := e.query(s)
	if err != nil {
		return Score{}, err
	}
	return resp.score, nil
}

// BestMove runs a depth-bounded search and returns the principal move with
// its score. The returned move is matched against the legal-move set; an
// engine reply that is not legal is reported as an error.
func (e *UCIEngine) BestMove(s *board.State) (*chess.Move, Score, error) {
	resp, err := e.query(s)
	if err != nil {
		return nil, Score{}, err
	}
	if resp.bestMove == "" || resp.bestMove == "(none)" {
		return nil, resp.score, fmt.Errorf("engine returned no move")
	}
	m := s.FindMove(resp.bestMove)
	if m == nil {
		return nil, resp.score, fmt.Errorf("engine move %q is not legal", resp.bestMove)
	}
	return m, resp.score, nil
}

// Close sends "quit" to the engine and waits for process exit. If the
// process does not exit within 3 seconds, it is forcefully killed.
func (e *UCIEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	// Send quit while stdin is still open and before marking closed.
	if e.stdin != nil {
		fmt.Fprintf(e.stdin, "quit\n")
	}
	e.closed = true
	e.mu.Unlock()

	if e.stdin != nil {
		e.stdin.Close()
	}

	if e.exited != nil {
		select {
		case <-e.exited:
			// Process already exited.
		case <-time.After(3 * time.Second):
			log.Warn().Msg("uci oracle: engine did not exit within 3s, killing")
			if e.cmd != nil && e.cmd.Process != nil {
				e.cmd.Process.Kill()
			}
			<-e.exited
		}
	}
	return nil
}

// start launches the engine subprocess and starts a goroutine to track exit.
func (e *UCIEngine) start() error {
	e.cmd = exec.Command(e.enginePath)

	var err error
	e.stdin, err = e.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := e.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	e.scanner = bufio.NewScanner(stdout)
	e.exited = make(chan struct{})

	if err := e.cmd.Start(); err != nil {
		return fmt.Errorf("start process: %w", err)
	}

	go func() {
		e.cmd.Wait()
		close(e.exited)
	}()

	return nil
}

// handshake performs the UCI initialization sequence.
func (e *UCIEngine) handshake() error {
	e.send("uci")
	if err := e.readUntil("uciok"); err != nil {
		return fmt.Errorf("waiting for uciok: %w", err)
	}

	for _, opt := range e.options {
		if opt.value != "" {
			e.send(fmt.Sprintf("setoption name %s value %s", opt.name, opt.value))
		} else {
			e.send(fmt.Sprintf("setoption name %s", opt.name))
		}
	}

	e.send("isready")
	if err := e.readUntil("readyok"); err != nil {
		return fmt.Errorf("waiting for readyok: %w", err)
	}

	return nil
}

// engineResponse holds the parsed bestmove line and the score from the
// deepest info line preceding it.
type engineResponse struct {
	bestMove string
	score    Score
}

// query sends position + go to the engine and reads the bestmove response.
func (e *UCIEngine) query(s *board.State) (engineResponse, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return engineResponse{}, fmt.Errorf("engine is closed")
	}
	e.mu.Unlock()

	if !e.isAlive() {
		return engineResponse{}, fmt.Errorf("engine process is not running")
	}

	e.send(fmt.Sprintf("position fen %s", s.FEN()))
	e.send(fmt.Sprintf("go depth %d", e.depth))

	resp, err := e.readBestMove()
	if err != nil {
		return engineResponse{}, fmt.Errorf("reading engine response: %w", err)
	}

	// UCI scores are from the side to move; normalize to white POV.
	if s.SideToMove() == chess.Black {
		resp.score = negate(resp.score)
	}
	return resp, nil
}

// readBestMove reads lines from the engine, tracking score info lines until
// bestmove arrives. If the timeout is exceeded, it sends "stop" and reads
// one more time.
func (e *UCIEngine) readBestMove() (engineResponse, error) {
	type result struct {
		resp engineResponse
		err  error
	}

	ch := make(chan result, 1)
	go func() {
		var resp engineResponse

		for e.scanner.Scan() {
			line := e.scanner.Text()

			if strings.HasPrefix(line, "info ") {
				if sc, ok := parseInfoScore(line); ok {
					resp.score = sc
				}
				continue
			}

			if strings.HasPrefix(line, "bestmove") {
				fields := strings.Fields(line)
				if len(fields) >= 2 {
					resp.bestMove = fields[1]
				}
				ch <- result{resp: resp}
				return
			}

			// Skip id/option/other lines.
		}

		if err := e.scanner.Err(); err != nil {
			ch <- result{err: fmt.Errorf("scanner: %w", err)}
		} else {
			ch <- result{err: fmt.Errorf("engine closed stdout unexpectedly")}
		}
	}()

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-time.After(e.timeout):
		e.send("stop")
		// Give the engine a short grace period to emit bestmove after stop.
		select {
		case r := <-ch:
			return r.resp, r.err
		case <-time.After(2 * time.Second):
			return engineResponse{}, fmt.Errorf("engine did not respond to stop within 2s")
		}
	}
}

// parseInfoScore extracts "score cp N" or "score mate N" from an info line.
func parseInfoScore(line string) (Score, bool) {
	fields := strings.Fields(line)
	for i := 0; i < len(fields)-2; i++ {
		if fields[i] != "score" {
			continue
		}
		v, err := strconv.Atoi(fields[i+2])
		if err != nil {
			return Score{}, false
		}
		switch fields[i+1] {
		case "cp":
			return Score{CP: intPtr(v)}, true
		case "mate":
			return Score{Mate: intPtr(v)}, true
		}
	}
	return Score{}, false
}

// negate flips a score to the other side's point of view.
func negate(s Score) Score {
	out := Score{}
	if s.CP != nil {
		out.CP = intPtr(-*s.CP)
	}
	if s.Mate != nil {
		out.Mate = intPtr(-*s.Mate)
	}
	return out
}

// send writes a command line to the engine's stdin.
func (e *UCIEngine) send(line string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.stdin == nil {
		return
	}
	fmt.Fprintf(e.stdin, "%s\n", line)
}

// readUntil reads lines from the engine until the expected line is seen.
// Lines not matching are ignored (id, option, info lines, etc).
func (e *UCIEngine) readUntil(expected string) error {
	deadline := time.After(e.timeout)
	ch := make(chan string, 1)
	errCh := make(chan error, 1)

	go func() {
		for e.scanner.Scan() {
			line := e.scanner.Text()
			if line == expected {
				ch <- line
				return
			}
		}
		if err := e.scanner.Err(); err != nil {
			errCh <- err
		} else {
			errCh <- fmt.Errorf("engine closed stdout before sending %q", expected)
		}
	}()

	select {
	case <-ch:
		return nil
	case err := <-errCh:
		return err
	case <-deadline:
		return fmt.Errorf("timeout waiting for %q", expected)
	}
}

// isAlive reports whether the engine process is still running.
func (e *UCIEngine) isAlive() bool {
	if e.exited == nil {
		return false
	}
	select {
	case <-e.exited:
		return false
	default:
		return true
	}
}
