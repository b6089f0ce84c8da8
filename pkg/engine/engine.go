// Package engine evaluates the floor-plan DSL. It wraps zygomys in a
// sandboxed environment and produces a plan.Plan from user source code.
//
// A plan source is a sequence of forms:
//
//	(defaults :thickness 0.2 :height 2.5 :texture-a "bricks" :texture-b "painted")
//	(texture "marble" :uri "textures/marble.jpg" :length-scale 0.01 :height-scale 0.01)
//	(opening "door-1" :kind :door :width 0.9 :height 2.1 :offset 0.5)
//	(wall "south" :from (vec2 0 0) :to (vec2 4 0) :openings (list "door-1"))
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/chazu/wallforge/pkg/plan"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning represents a non-fatal warning produced during evaluation,
// such as an unknown keyword or a redefined wall.
type EvalWarning struct {
	Line    int
	Col     int
	Message string
	Subject string // wall, opening or texture the warning concerns
}

func (w EvalWarning) String() string {
	return w.Message
}

// EvalResult bundles the full output of an evaluation for use by UI bindings.
type EvalResult struct {
	Plan       *plan.Plan
	Errors     []EvalError
	Warnings   []EvalWarning
	Generation uint64
}

// Engine wraps the zygomys interpreter for plan evaluation.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	mu         sync.Mutex
	generation uint64
}

// NewEngine creates a new Engine instance.
func NewEngine() *Engine {
	return &Engine{}
}

// Generation returns the number of evaluations started so far.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// Evaluate takes plan source code and produces a new Plan.
//
// Return semantics:
//   - On success: returns plan + nil errors + nil error
//   - On parse/eval failure: returns nil plan + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*plan.Plan, []EvalError, error) {
	res, err := e.Run(source)
	if err != nil {
		return nil, nil, err
	}
	return res.Plan, res.Errors, nil
}

// Run is Evaluate returning the warnings and generation as well. The
// plan's Version is set to the generation of the evaluation that built it.
func (e *Engine) Run(source string) (EvalResult, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		res := e.evaluate(source)
		res.Generation = gen
		if res.Plan != nil {
			res.Plan.Version = gen
		}
		ch <- evalResult{res: res}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) EvalResult {
	// Empty source is a valid program that produces an empty plan.
	if strings.TrimSpace(source) == "" {
		return EvalResult{Plan: plan.New()}
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	b := newPlanBuilder()
	registerBuiltins(env, b)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return EvalResult{Errors: parseZygomysError(err)}
	}
	if _, err := env.Run(); err != nil {
		return EvalResult{Errors: parseZygomysError(err), Warnings: b.warnings}
	}

	return EvalResult{Plan: b.finish(), Warnings: b.warnings}
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		m := re.FindStringSubmatchIndex(msg)
		if m == nil {
			continue
		}
		line, _ := strconv.Atoi(msg[m[2]:m[3]])
		detail := strings.TrimSpace(msg[m[4]:m[5]])
		// Builtin errors put the location after the message; keep it whole.
		if m[0] > 0 || detail == "" {
			detail = strings.TrimSpace(msg)
		}
		return []EvalError{{Line: line, Message: detail}}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
