package plan

import "fmt"

// ValidationSeverity indicates whether a validation finding blocks a build
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks the wall's build
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	WallID    WallID             // which wall has the problem (empty if plan-level)
	OpeningID OpeningID          // which opening, if any
	Message   string             // human-readable description
	Severity  ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	switch {
	case e.WallID == "" && e.OpeningID == "":
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	case e.OpeningID == "":
		return fmt.Sprintf("[%s] wall %s: %s", e.Severity, e.WallID, e.Message)
	case e.WallID == "":
		return fmt.Sprintf("[%s] opening %s: %s", e.Severity, e.OpeningID, e.Message)
	}
	return fmt.Sprintf("[%s] wall %s opening %s: %s", e.Severity, e.WallID, e.OpeningID, e.Message)
}

// ValidationWarning describes a non-blocking advisory finding.
type ValidationWarning struct {
	WallID    WallID
	OpeningID OpeningID
	Message   string
}

// ValidationResult bundles errors (blocking) and warnings (advisory) from
// all validation tiers.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// OK reports whether no blocking errors were found.
func (r ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// ErrorsFor returns the blocking errors attached to one wall.
func (r ValidationResult) ErrorsFor(id WallID) []ValidationError {
	var errs []ValidationError
	for _, e := range r.Errors {
		if e.WallID == id {
			errs = append(errs, e)
		}
	}
	return errs
}

// Validate runs the Tier 1 structural checks on the plan and returns a
// slice of findings. An empty slice means the plan is structurally sound.
// Validate never mutates the plan.
func Validate(p *Plan) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateIDs(p)...)
	errs = append(errs, validateOrder(p)...)
	errs = append(errs, validateReferences(p)...)
	errs = append(errs, validateSharedOpenings(p)...)
	return errs
}

// ValidateAll runs all validation tiers (structural, geometric, joints) and
// returns a ValidationResult with separated errors and warnings.
func ValidateAll(p *Plan) ValidationResult {
	tier1 := Validate(p)
	tier2Errs, tier2Warnings := validateGeometry(p)
	tier3Warnings := validateJoints(p)

	var result ValidationResult
	for _, e := range tier1 {
		if e.Severity == SeverityWarning {
			result.Warnings = append(result.Warnings, ValidationWarning{
				WallID:    e.WallID,
				OpeningID: e.OpeningID,
				Message:   e.Message,
			})
		} else {
			result.Errors = append(result.Errors, e)
		}
	}

	result.Errors = append(result.Errors, tier2Errs...)
	result.Warnings = append(result.Warnings, tier2Warnings...)
	result.Warnings = append(result.Warnings, tier3Warnings...)

	return result
}

// validateIDs checks that every wall and opening has a non-empty ID that
// matches the key it is stored under.
func validateIDs(p *Plan) []ValidationError {
	var errs []ValidationError

	for _, id := range p.Order {
		w := p.Walls[id]
		if w == nil {
			continue // reported by validateOrder
		}
		if w.ID == "" {
			errs = append(errs, ValidationError{
				Message:  "wall has an empty ID",
				Severity: SeverityError,
			})
		} else if w.ID != id {
			errs = append(errs, ValidationError{
				WallID:   id,
				Message:  fmt.Sprintf("wall stored under %q carries ID %q", id, w.ID),
				Severity: SeverityError,
			})
		}
	}

	for key, o := range p.Openings {
		if o == nil {
			continue
		}
		if o.ID == "" {
			errs = append(errs, ValidationError{
				Message:  "opening has an empty ID",
				Severity: SeverityError,
			})
		} else if o.ID != key {
			errs = append(errs, ValidationError{
				OpeningID: key,
				Message:   fmt.Sprintf("opening stored under %q carries ID %q", key, o.ID),
				Severity:  SeverityError,
			})
		}
	}

	return errs
}

// validateOrder checks that Order and Walls describe the same set.
func validateOrder(p *Plan) []ValidationError {
	var errs []ValidationError
	seen := make(map[WallID]bool, len(p.Order))

	for _, id := range p.Order {
		if seen[id] {
			errs = append(errs, ValidationError{
				WallID:   id,
				Message:  "wall listed twice in plan order",
				Severity: SeverityError,
			})
			continue
		}
		seen[id] = true
		if _, ok := p.Walls[id]; !ok {
			errs = append(errs, ValidationError{
				WallID:   id,
				Message:  "plan order references a wall that does not exist",
				Severity: SeverityError,
			})
		}
	}
	for id := range p.Walls {
		if !seen[id] {
			errs = append(errs, ValidationError{
				WallID:   id,
				Message:  "wall missing from plan order",
				Severity: SeverityError,
			})
		}
	}

	return errs
}

// validateReferences checks that every opening referenced by a wall exists.
func validateReferences(p *Plan) []ValidationError {
	var errs []ValidationError

	for _, w := range p.OrderedWalls() {
		for _, oid := range w.Openings {
			if _, ok := p.Openings[oid]; !ok {
				errs = append(errs, ValidationError{
					WallID:    w.ID,
					OpeningID: oid,
					Message:   "wall references an opening that does not exist",
					Severity:  SeverityError,
				})
			}
		}
	}

	return errs
}

// validateSharedOpenings warns when one opening is cut into several walls.
// Each wall gets its own copy of the hole, which is rarely intended.
func validateSharedOpenings(p *Plan) []ValidationError {
	var errs []ValidationError
	owner := make(map[OpeningID]WallID)

	for _, w := range p.OrderedWalls() {
		for _, oid := range w.Openings {
			first, exists := owner[oid]
			if !exists {
				owner[oid] = w.ID
				continue
			}
			if first == w.ID {
				errs = append(errs, ValidationError{
					WallID:    w.ID,
					OpeningID: oid,
					Message:   "opening listed twice on the same wall",
					Severity:  SeverityWarning,
				})
				continue
			}
			errs = append(errs, ValidationError{
				WallID:    w.ID,
				OpeningID: oid,
				Message:   fmt.Sprintf("opening is also cut into wall %s", first),
				Severity:  SeverityWarning,
			})
		}
	}

	return errs
}
