package wall

import (
	"errors"
	"fmt"

	"github.com/chazu/wallforge/pkg/kernel"
	"github.com/chazu/wallforge/pkg/plan"
)

// Fatal input errors. A wall failing with one of these produces no assembly.
var (
	ErrDegenerateWall   = errors.New("wall: endpoints coincide")
	ErrInvalidThickness = errors.New("wall: thickness must be positive")
	ErrInvalidHeight    = errors.New("wall: height must be positive")
	ErrTriangulation    = kernel.ErrTriangulation
)

// Stage names the pipeline step a BuildError happened in.
type Stage string

const (
	StageValidate    Stage = "validate"
	StageNormalize   Stage = "normalize"
	StageOutline     Stage = "outline"
	StageCut         Stage = "cut"
	StageTriangulate Stage = "triangulate"
	StageAssemble    Stage = "assemble"
	StageFinalize    Stage = "finalize"
)

// BuildError is the fatal failure of one wall's build.
type BuildError struct {
	WallID plan.WallID
	Stage  Stage
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("wall %s: %s: %v", e.WallID, e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

func buildErr(id plan.WallID, stage Stage, err error) *BuildError {
	return &BuildError{WallID: id, Stage: stage, Err: err}
}
