// Package smt provides scoped solver sessions backed by the external z3
// binary. A Session accumulates declarations and assertions in push/pop
// scopes and materializes them as an SMT-LIB2 script piped to a fresh z3
// process on every check, so no solver state ever outlives or leaks
// between logical checks and sessions are safe to use from exactly one
// goroutine each.
package smt

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Result is the solver verdict for a check.
type Result int

const (
	Unknown Result = iota
	Sat
	Unsat
)

func (r Result) String() string {
	switch r {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// Sort is the SMT sort of a declared variable.
type Sort int

const (
	SortReal Sort = iota
	SortInt
	SortBool
	SortString
)

func (s Sort) String() string { return s.smtName() }

func (s Sort) smtName() string {
	switch s {
	case SortReal:
		return "Real"
	case SortInt:
		return "Int"
	case SortBool:
		return "Bool"
	default:
		return "String"
	}
}

// Options configures a Session.
type Options struct {
	// Binary is the z3 executable; resolved via PATH when not absolute.
	// Defaults to "z3".
	Binary string
	// Timeout bounds a single check including process startup.
	// Defaults to 10s.
	Timeout time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Session is a scoped constraint set. It is not safe for concurrent use;
// create one session per logical check (or per worker) instead of sharing.
type Session struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger

	decls  map[string]Sort
	order  []string   // declaration order, for stable scripts
	stack  [][]string // assertion scopes; stack[0] is the base scope
}

// NewSession creates a session. The binary is validated lazily on the
// first check so sessions can be built in environments without z3 (the
// check then reports Unknown with an error).
func NewSession(opts Options) *Session {
	if opts.Binary == "" {
		opts.Binary = "z3"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Session{
		binary:  opts.Binary,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		decls:   make(map[string]Sort),
		stack:   [][]string{nil},
	}
}

// Declare registers a constant of the given sort. Redeclaration with the
// same sort is a no-op.
func (s *Session) Declare(name string, sort Sort) {
	if _, ok := s.decls[name]; ok {
		return
	}
	s.decls[name] = sort
	s.order = append(s.order, name)
}

// Assert adds a formula (an SMT-LIB2 boolean term) to the current scope.
func (s *Session) Assert(formula string) {
	top := len(s.stack) - 1
	s.stack[top] = append(s.stack[top], formula)
}

// Push opens a new assertion scope.
func (s *Session) Push() {
	s.stack = append(s.stack, nil)
}

// Pop discards the innermost scope. Popping the base scope is a bug and
// panics.
func (s *Session) Pop() {
	if len(s.stack) == 1 {
		panic("smt: pop on base scope")
	}
	s.stack = s.stack[:len(s.stack)-1]
}

// Check runs a satisfiability check over all assertions in scope.
// Solver failures (missing binary, timeout, malformed output) return
// Unknown alongside the error; callers downgrade these to warnings.
func (s *Session) Check(ctx context.Context) (Result, error) {
	out, err := s.run(ctx, s.script(false))
	if err != nil {
		recordCheck(Unknown, err)
		return Unknown, err
	}
	res, err := parseVerdict(out)
	recordCheck(res, err)
	return res, err
}

// Solve checks satisfiability and, on sat, extracts a model assigning a
// concrete value to every declared constant.
func (s *Session) Solve(ctx context.Context) (Result, Model, error) {
	out, err := s.run(ctx, s.script(true))
	if err != nil {
		recordCheck(Unknown, err)
		return Unknown, nil, err
	}
	res, err := parseVerdict(out)
	recordCheck(res, err)
	if err != nil || res != Sat {
		return res, nil, err
	}
	model, err := parseModel(out)
	if err != nil {
		return Sat, nil, fmt.Errorf("parsing model: %w", err)
	}
	return Sat, model, nil
}

// script renders the current session state as an SMT-LIB2 script.
func (s *Session) script(withModel bool) string {
	var b strings.Builder
	if withModel {
		b.WriteString("(set-option :produce-models true)\n")
	}
	for _, name := range s.order {
		fmt.Fprintf(&b, "(declare-const %s %s)\n", name, s.decls[name].smtName())
	}
	for _, scope := range s.stack {
		for _, f := range scope {
			fmt.Fprintf(&b, "(assert %s)\n", f)
		}
	}
	b.WriteString("(check-sat)\n")
	if withModel {
		b.WriteString("(get-model)\n")
	}
	return b.String()
}

func (s *Session) run(ctx context.Context, script string) (string, error) {
	binary, err := resolveBinary(s.binary)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, "-in", "-smt2")
	cmd.Stdin = strings.NewReader(script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("solver timeout after %s", s.timeout)
	}
	out := stdout.String()
	// z3 exits non-zero on script errors but still prints a verdict for
	// unsat cores and some warnings; only fail when no verdict is present.
	if runErr != nil && !hasVerdict(out) {
		s.logger.Debug("solver failed", "error", runErr, "stderr", stderr.String())
		return "", fmt.Errorf("solver: %v: %s", runErr, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// resolveBinary validates and resolves the z3 executable path. Paths with
// whitespace are rejected, and the basename must be z3 (optionally
// suffixed, e.g. z3-4.13) to avoid running arbitrary commands from
// configuration.
func resolveBinary(binary string) (string, error) {
	if strings.ContainsAny(binary, " \t") {
		return "", fmt.Errorf("invalid solver binary %q: whitespace not allowed", binary)
	}
	base := filepath.Base(binary)
	if base != "z3" && !strings.HasPrefix(base, "z3-") && !strings.HasPrefix(base, "z3.") {
		return "", fmt.Errorf("unsupported solver binary %q: expected z3", binary)
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("resolving solver binary: %w", err)
	}
	return path, nil
}

func hasVerdict(out string) bool {
	for _, line := range strings.Split(out, "\n") {
		switch strings.TrimSpace(line) {
		case "sat", "unsat", "unknown":
			return true
		}
	}
	return false
}

func parseVerdict(out string) (Result, error) {
	for _, line := range strings.Split(out, "\n") {
		switch strings.TrimSpace(line) {
		case "sat":
			return Sat, nil
		case "unsat":
			return Unsat, nil
		case "unknown":
			return Unknown, nil
		}
	}
	return Unknown, fmt.Errorf("no verdict in solver output: %q", firstLine(out))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var symbolSanitizer = regexp.MustCompile(`[^A-Za-z0-9_]`)

// SymbolFor converts a Form.Field reference into a legal SMT-LIB symbol.
// Callers keep the reverse mapping; the sanitization is stable so the
// mapping is one-to-one for distinct references without dots elsewhere.
func SymbolFor(ref string) string {
	sym := symbolSanitizer.ReplaceAllString(ref, "_")
	if sym == "" || (sym[0] >= '0' && sym[0] <= '9') {
		sym = "v_" + sym
	}
	return sym
}
