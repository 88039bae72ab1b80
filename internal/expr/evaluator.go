// Package expr evaluates boolean CEL expressions for the logic.expression
// node kind.
// Programs are compiled once and cached by normalized expression string,
// with a "$.field" -> "output.field" rewrite applied first for ergonomics.
package expr

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

// Evaluator compiles and caches CEL programs keyed by their (normalized)
// source expression.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// New creates an evaluator with an empty compile cache.
func New() *Evaluator {
	return &Evaluator{cache: make(map[string]cel.Program)}
}

// EvalBool compiles (or reuses a cached compile of) expr and evaluates it
// against the given output payload and shared context map, requiring a
// boolean result.
func (e *Evaluator) EvalBool(expr string, output interface{}, ctxVars map[string]interface{}) (bool, error) {
	normalized := strings.ReplaceAll(expr, "$.", "output.")

	prg, err := e.program(normalized)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"output": output,
		"ctx":    ctxVars,
	})
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return boolean, got %T", out.Value())
	}
	return result, nil
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.cache[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("output", cel.DynType),
		cel.Variable("ctx", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}

	prg, err = env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create CEL program: %w", err)
	}

	e.mu.Lock()
	e.cache[expr] = prg
	e.mu.Unlock()

	return prg, nil
}

// ClearCache empties the compile cache.
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]cel.Program)
}

// CacheSize reports how many distinct expressions are currently cached.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
