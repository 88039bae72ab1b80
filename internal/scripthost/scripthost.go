// Package scripthost runs user-authored JavaScript inside a sandboxed
// goja VM for the script node kinds. Compiled programs are cached by
// source text, the same compile-and-cache shape internal/expr uses for CEL
// expressions. Three independent guards bound a run: a wall-clock timeout
// enforced by interrupting the VM from a watchdog goroutine, a call-stack
// depth cap enforced by goja itself, and a static statement-count cap
// enforced by walking the parsed AST before the VM ever runs (goja has no
// dynamic per-statement execution hook, so a runaway loop is caught by the
// timeout guard rather than the statement cap).
package scripthost

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"

	"github.com/flowrt/flowrt/internal/node"
)

const (
	// DefaultTimeout bounds how long a single script invocation may run
	// before the VM is interrupted.
	DefaultTimeout = 5000 * time.Millisecond

	// DefaultMaxStatements bounds the number of statement nodes a script's
	// parsed AST may contain.
	DefaultMaxStatements = 10000

	// DefaultMaxCallStackSize bounds JavaScript call recursion depth.
	DefaultMaxCallStackSize = 64
)

// Host runs sandboxed scripts under a shared set of resource guards.
type Host struct {
	Timeout          time.Duration
	MaxStatements    int
	MaxCallStackSize int
	Logger           node.Logger

	mu      sync.Mutex
	cache   map[string]*goja.Program
	counted map[string]int
}

// New creates a Host with the given logger and default resource guards.
func New(logger node.Logger) *Host {
	return &Host{
		Timeout:          DefaultTimeout,
		MaxStatements:    DefaultMaxStatements,
		MaxCallStackSize: DefaultMaxCallStackSize,
		Logger:           logger,
		cache:            make(map[string]*goja.Program),
		counted:          make(map[string]int),
	}
}

var _ node.ScriptHost = (*Host)(nil)

// ErrStatementBudgetExceeded is returned when a script's parsed statement
// count exceeds the host's cap.
type ErrStatementBudgetExceeded struct {
	Count int
	Limit int
}

func (e *ErrStatementBudgetExceeded) Error() string {
	return fmt.Sprintf("script has %d statements, exceeding the cap of %d", e.Count, e.Limit)
}

// Run compiles (or reuses a cached compile of) source and executes it
// against input and the node's persistent state map. The source runs as a
// top-level script (a bare "return" statement does not compile), and its
// final expression value becomes the result; a result of null or undefined
// signals the caller to suppress emission rather than emit a null payload.
func (h *Host) Run(ctx context.Context, source string, input interface{}, state map[string]interface{}) (interface{}, error) {
	prog, err := h.compile(source)
	if err != nil {
		return nil, err
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(h.maxCallStackSize())

	if err := vm.Set("input", input); err != nil {
		return nil, fmt.Errorf("bind input: %w", err)
	}
	if state == nil {
		state = make(map[string]interface{})
	}
	if err := vm.Set("state", state); err != nil {
		return nil, fmt.Errorf("bind state: %w", err)
	}
	logFn := func(args ...interface{}) {
		if h.Logger != nil {
			h.Logger.Info("script log", "args", args)
		}
	}
	if err := vm.Set("log", logFn); err != nil {
		return nil, fmt.Errorf("bind log: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, h.timeout())
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-runCtx.Done():
			vm.Interrupt(runCtx.Err())
		case <-done:
		}
	}()

	value, runErr := vm.RunProgram(prog)
	close(done)

	if runErr != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("script run: %w", ctx.Err())
		}
		return nil, fmt.Errorf("script run: %w", runErr)
	}

	if value == nil || goja.IsNull(value) || goja.IsUndefined(value) {
		return nil, nil
	}
	return value.Export(), nil
}

func (h *Host) timeout() time.Duration {
	if h.Timeout <= 0 {
		return DefaultTimeout
	}
	return h.Timeout
}

func (h *Host) maxCallStackSize() int {
	if h.MaxCallStackSize <= 0 {
		return DefaultMaxCallStackSize
	}
	return h.MaxCallStackSize
}

func (h *Host) maxStatements() int {
	if h.MaxStatements <= 0 {
		return DefaultMaxStatements
	}
	return h.MaxStatements
}

func (h *Host) compile(source string) (*goja.Program, error) {
	h.mu.Lock()
	if prog, ok := h.cache[source]; ok {
		h.mu.Unlock()
		return prog, nil
	}
	h.mu.Unlock()

	count, err := countStatements(source)
	if err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if count > h.maxStatements() {
		return nil, &ErrStatementBudgetExceeded{Count: count, Limit: h.maxStatements()}
	}

	prog, err := goja.Compile("script", source, false)
	if err != nil {
		return nil, fmt.Errorf("compile script: %w", err)
	}

	h.mu.Lock()
	h.cache[source] = prog
	h.counted[source] = count
	h.mu.Unlock()

	return prog, nil
}

// countStatements parses source and counts every statement node in its
// body, recursing into blocks, conditionals, loops, and function bodies.
func countStatements(source string) (int, error) {
	program, err := parser.ParseFile(nil, "script", source, 0)
	if err != nil {
		return 0, err
	}

	count := 0
	var walkStmt func(ast.Statement)
	walkStmt = func(s ast.Statement) {
		if s == nil {
			return
		}
		count++
		switch n := s.(type) {
		case *ast.BlockStatement:
			for _, inner := range n.List {
				walkStmt(inner)
			}
		case *ast.IfStatement:
			walkStmt(n.Consequent)
			if n.Alternate != nil {
				walkStmt(n.Alternate)
			}
		case *ast.ForStatement:
			walkStmt(n.Body)
		case *ast.ForInStatement:
			walkStmt(n.Body)
		case *ast.ForOfStatement:
			walkStmt(n.Body)
		case *ast.WhileStatement:
			walkStmt(n.Body)
		case *ast.DoWhileStatement:
			walkStmt(n.Body)
		case *ast.TryStatement:
			if n.Body != nil {
				walkStmt(n.Body)
			}
			if n.Catch != nil && n.Catch.Body != nil {
				walkStmt(n.Catch.Body)
			}
			if n.Finally != nil {
				walkStmt(n.Finally)
			}
		case *ast.LabelledStatement:
			walkStmt(n.Statement)
		case *ast.SwitchStatement:
			for _, c := range n.Body {
				for _, inner := range c.Consequent {
					walkStmt(inner)
				}
			}
		case *ast.FunctionDeclaration:
			if n.Function != nil && n.Function.Body != nil {
				walkStmt(n.Function.Body)
			}
		}
	}

	for _, s := range program.Body {
		walkStmt(s)
	}
	return count, nil
}

// ClearCache empties the compile cache, forcing every script to be
// re-parsed and re-counted on next use.
func (h *Host) ClearCache() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cache = make(map[string]*goja.Program)
	h.counted = make(map[string]int)
}
