package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chazu/wallforge/pkg/engine"
	"github.com/chazu/wallforge/pkg/kernel"
	"github.com/chazu/wallforge/pkg/plan"
	"github.com/chazu/wallforge/pkg/tessellate"
	"github.com/chazu/wallforge/pkg/texture"
	"github.com/chazu/wallforge/pkg/wall"
)

// colorPalette is a default palette used to tell walls apart in the viewer.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App runs the source → plan → walls → meshes pipeline shared by the CLI
// and the preview server.
type App struct {
	engine  *engine.Engine
	workers int
	logger  *slog.Logger
	loader  *texture.Loader
	catalog texture.Library // coverings a plan may use without defining them
}

// NewApp creates a new App with a fresh engine.
func NewApp() *App {
	return &App{
		engine: engine.NewEngine(),
		logger: slog.Default(),
	}
}

// MeshData is the JSON-serializable mesh format sent to the viewer.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	UVs      []float32 `json:"uvs,omitempty"`
	Indices  []uint32  `json:"indices"`
	Lines    bool      `json:"lines,omitempty"`
	PartName string    `json:"partName"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable error or warning for the viewer.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Wall    string `json:"wall,omitempty"`
	Message string `json:"message"`
}

// WallData summarizes one built wall.
type WallData struct {
	ID     string  `json:"id"`
	Angle  float64 `json:"angle"`
	Panels int     `json:"panels"`
}

// EvalResult is the full result returned to the viewer.
type EvalResult struct {
	Version  uint64          `json:"version"`
	Walls    []WallData      `json:"walls"`
	Meshes   []MeshData      `json:"meshes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// Compiled is the intermediate output of a pipeline run, before meshes are
// flattened for the viewer.
type Compiled struct {
	Eval       engine.EvalResult
	Validation plan.ValidationResult
	Results    []wall.Result
}

// Assemblies returns the walls that built successfully.
func (c *Compiled) Assemblies() []*kernel.Assembly {
	return wall.Assemblies(c.Results)
}

// Compile evaluates source and builds every wall of the resulting plan. Eval
// errors stop the pipeline; validation errors and failed walls do not stop
// the other walls. The returned error is fatal (timeout, panic, superseded).
func (a *App) Compile(ctx context.Context, source string) (*Compiled, error) {
	res, err := a.engine.Run(source)
	if err != nil {
		return nil, err
	}
	c := &Compiled{Eval: res}
	if len(res.Errors) > 0 || res.Plan == nil {
		return c, nil
	}

	for _, key := range a.catalog.Keys() {
		if _, ok := res.Plan.Textures.Lookup(key); !ok {
			d, _ := a.catalog.Lookup(key)
			res.Plan.Textures = res.Plan.Textures.With(key, d)
		}
	}

	c.Validation = plan.ValidateAll(res.Plan)

	var opts []wall.Option
	if a.workers > 0 {
		opts = append(opts, wall.WithWorkers(a.workers))
	}
	if a.loader != nil {
		opts = append(opts, wall.WithLoader(a.loader))
	}
	c.Results = wall.BuildPlan(ctx, res.Plan, opts...)
	return c, nil
}

// Evaluate takes plan source and returns mesh data + errors.
// This is the primary binding called by the viewer.
func (a *App) Evaluate(source string) EvalResult {
	res, err := a.EvaluateContext(context.Background(), source)
	if err != nil {
		a.logger.Error("evaluate", slog.Any("err", err))
		res.Errors = append(res.Errors, EvalErrorData{Message: err.Error()})
	}
	return res
}

// EvaluateContext is Evaluate reporting fatal errors separately, so callers
// can drop superseded results.
func (a *App) EvaluateContext(ctx context.Context, source string) (EvalResult, error) {
	result := EvalResult{
		Walls:    []WallData{},
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}

	c, err := a.Compile(ctx, source)
	if err != nil {
		return result, err
	}
	return c.result(), nil
}

// result flattens a compiled plan into the viewer format.
func (c *Compiled) result() EvalResult {
	result := EvalResult{
		Walls:    []WallData{},
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}
	result.Version = c.Eval.Generation

	for _, e := range c.Eval.Errors {
		result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
	}
	for _, w := range c.Eval.Warnings {
		result.Warnings = append(result.Warnings, EvalErrorData{Line: w.Line, Col: w.Col, Wall: w.Subject, Message: w.Message})
	}
	if len(c.Eval.Errors) > 0 {
		return result
	}

	reported := make(map[plan.WallID]bool)
	for _, e := range c.Validation.Errors {
		reported[e.WallID] = true
		result.Errors = append(result.Errors, EvalErrorData{Wall: string(e.WallID), Message: validationMessage(e.OpeningID, e.Message)})
	}
	for _, w := range c.Validation.Warnings {
		result.Warnings = append(result.Warnings, EvalErrorData{Wall: string(w.WallID), Message: validationMessage(w.OpeningID, w.Message)})
	}

	for i, r := range c.Results {
		if r.Err != nil {
			if !reported[r.WallID] {
				result.Errors = append(result.Errors, EvalErrorData{Wall: string(r.WallID), Message: r.Err.Error()})
			}
			continue
		}
		for _, w := range r.Assembly.Warnings {
			result.Warnings = append(result.Warnings, EvalErrorData{Wall: string(r.WallID), Message: w.Subject + ": " + w.Message})
		}

		meshes, err := tessellate.TessellateWith([]*kernel.Assembly{r.Assembly}, tessellate.Options{Helpers: true})
		if err != nil {
			result.Errors = append(result.Errors, EvalErrorData{Wall: string(r.WallID), Message: "tessellation failed: " + err.Error()})
			continue
		}

		result.Walls = append(result.Walls, WallData{ID: string(r.WallID), Angle: r.Assembly.Angle, Panels: r.Assembly.PanelCount()})
		color := colorPalette[i%len(colorPalette)]
		for _, m := range meshes {
			result.Meshes = append(result.Meshes, MeshData{
				Vertices: m.Vertices,
				Normals:  m.Normals,
				UVs:      m.UVs,
				Indices:  m.Indices,
				Lines:    m.Mode == kernel.ModeLines,
				PartName: m.PartName,
				Color:    color,
			})
		}
	}

	return result
}

// EvaluateJSON is EvaluateContext encoded for the wire. Superseded
// evaluations return engine.ErrSuperseded and no payload.
func (a *App) EvaluateJSON(ctx context.Context, source string) ([]byte, error) {
	res, err := a.EvaluateContext(ctx, source)
	if errors.Is(err, engine.ErrSuperseded) {
		return nil, err
	}
	if err != nil {
		res.Errors = append(res.Errors, EvalErrorData{Message: err.Error()})
	}
	return json.Marshal(res)
}

func validationMessage(opening plan.OpeningID, msg string) string {
	if opening == "" {
		return msg
	}
	return fmt.Sprintf("opening %s: %s", opening, msg)
}

// summary formats a one-line description of a compiled plan for the CLI.
func (c *Compiled) summary() string {
	var sb strings.Builder
	built := len(c.Assemblies())
	fmt.Fprintf(&sb, "%d walls built", built)
	if failed := len(wall.Failed(c.Results)); failed > 0 {
		fmt.Fprintf(&sb, ", %d failed", failed)
	}
	if n := len(c.Validation.Warnings) + len(c.Eval.Warnings); n > 0 {
		fmt.Fprintf(&sb, ", %d warnings", n)
	}
	return sb.String()
}
