package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/wallforge/pkg/plan"
	"github.com/chazu/wallforge/pkg/texture"
	v2 "github.com/deadsy/sdfx/vec/v2"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites plan source before passing it to zygomys:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal), so
//     keywords never collide with user variables.
//
//  2. Kebab-case to underscore: normal-map -> normal_map. zygomys reads a
//     hyphen inside an identifier as subtraction.
//
//  3. ; line comments become // comments.
//
// String literals are copied untouched.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		switch {
		case b[i] == '"':
			j := skipQuoted(b, i, '"', true)
			result = append(result, b[i:j]...)
			i = j
			continue
		case b[i] == '`':
			j := skipQuoted(b, i, '`', false)
			result = append(result, b[i:j]...)
			i = j
			continue
		case b[i] == ';':
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		case b[i] == ':' && i+1 < len(b) && b[i+1] == '=':
			result = append(result, b[i], b[i+1])
			i += 2
			continue
		case b[i] == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			result = append(result, '"')
			result = append(result, kwPrefix...)
			result = append(result, b[i+1:j]...)
			result = append(result, '"')
			i = j
			continue
		case b[i] == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

// skipQuoted returns the index just past the literal opening at b[start].
func skipQuoted(b []byte, start int, quote byte, escapes bool) int {
	i := start + 1
	for i < len(b) && b[i] != quote {
		if escapes && b[i] == '\\' && i+1 < len(b) {
			i++
		}
		i++
	}
	if i < len(b) {
		i++
	}
	return i
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec2 wraps a plan point.
type sexpVec2 struct {
	vec v2.Vec
}

func (v *sexpVec2) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec2 %g %g)", v.vec.X, v.vec.Y)
}
func (v *sexpVec2) Type() *zygo.RegisteredType { return nil }

// sexpNormalMap wraps a normal map description until a texture consumes it.
type sexpNormalMap struct {
	nm texture.NormalMap
}

func (n *sexpNormalMap) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(normal-map :uri %q)", n.nm.URI)
}
func (n *sexpNormalMap) Type() *zygo.RegisteredType { return nil }

// sexpTexture is returned by `texture` and names the registered slot key.
type sexpTexture struct {
	key string
}

func (t *sexpTexture) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(texture %q)", t.key)
}
func (t *sexpTexture) Type() *zygo.RegisteredType { return nil }

// sexpOpeningRef is returned by `opening` and can be listed in a wall's
// :openings.
type sexpOpeningRef struct {
	id plan.OpeningID
}

func (o *sexpOpeningRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(opening %q)", o.id)
}
func (o *sexpOpeningRef) Type() *zygo.RegisteredType { return nil }

// sexpWallRef is returned by `wall`.
type sexpWallRef struct {
	id plan.WallID
}

func (w *sexpWallRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(wall %q)", w.id)
}
func (w *sexpWallRef) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string and returns its
// name without the prefix.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			i++
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i += 2
		} else {
			result.kw[name] = zygo.SexpNull
			i++
		}
	}
	return result
}

// unknown returns the keywords not in allowed, sorted.
func (pa kwArgs) unknown(allowed ...string) []string {
	ok := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		ok[a] = true
	}
	var out []string
	for k := range pa.kw {
		if !ok[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// float reads the keyword key into dst when present.
func (pa kwArgs) float(form, key string, dst *float64) (bool, error) {
	v, ok := pa.kw[key]
	if !ok {
		return false, nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return false, fmt.Errorf("%s: %s: %w", form, key, err)
	}
	*dst = f
	return true, nil
}

// str reads the keyword key into dst when present. Keywords are accepted
// in place of strings.
func (pa kwArgs) str(form, key string, dst *string) (bool, error) {
	v, ok := pa.kw[key]
	if !ok {
		return false, nil
	}
	s, err := toKeywordString(v)
	if err != nil {
		return false, fmt.Errorf("%s: %s: %w", form, key, err)
	}
	*dst = s
	return true, nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

// toBool extracts a boolean. A bare keyword with no value counts as true.
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return true, nil
		}
	}
	return false, fmt.Errorf("expected boolean, got %T (%s)", s, s.SexpString(nil))
}

// toVec2 extracts a point from a sexpVec2.
func toVec2(s zygo.Sexp) (v2.Vec, error) {
	if v, ok := s.(*sexpVec2); ok {
		return v.vec, nil
	}
	return v2.Vec{}, fmt.Errorf("expected vec2, got %T (%s)", s, s.SexpString(nil))
}

// toOpeningID accepts an opening reference or an opening ID string.
func toOpeningID(s zygo.Sexp) (plan.OpeningID, error) {
	switch v := s.(type) {
	case *sexpOpeningRef:
		return v.id, nil
	case *zygo.SexpStr:
		return plan.OpeningID(v.S), nil
	}
	return "", fmt.Errorf("expected opening or opening id, got %T (%s)", s, s.SexpString(nil))
}

// toTextureKey accepts a texture reference, a slot key string, or a keyword.
func toTextureKey(s zygo.Sexp) (string, error) {
	if t, ok := s.(*sexpTexture); ok {
		return t.key, nil
	}
	return toKeywordString(s)
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Plan builder
// ---------------------------------------------------------------------------

// wallDraft records which wall settings the source gave explicitly, so that
// a later (defaults ...) form still applies to the rest.
type wallDraft struct {
	wall                     *plan.Wall
	hasThickness, hasHeight  bool
	hasTextureA, hasTextureB bool
}

// planBuilder accumulates the plan while builtins run.
type planBuilder struct {
	p        *plan.Plan
	drafts   map[plan.WallID]*wallDraft
	warnings []EvalWarning
}

func newPlanBuilder() *planBuilder {
	return &planBuilder{p: plan.New(), drafts: make(map[plan.WallID]*wallDraft)}
}

func (b *planBuilder) warn(subject, format string, args ...any) {
	b.warnings = append(b.warnings, EvalWarning{Subject: subject, Message: fmt.Sprintf(format, args...)})
}

func (b *planBuilder) warnUnknown(form, subject string, pa kwArgs, allowed ...string) {
	for _, k := range pa.unknown(allowed...) {
		b.warn(subject, "%s: unknown keyword :%s ignored", form, k)
	}
}

// finish applies plan defaults to every wall that did not set its own.
func (b *planBuilder) finish() *plan.Plan {
	d := b.p.Defaults
	for _, id := range b.p.Order {
		dr := b.drafts[id]
		if !dr.hasThickness {
			dr.wall.Thickness = d.Thickness
		}
		if !dr.hasHeight {
			dr.wall.Height = d.Height
		}
		if !dr.hasTextureA {
			dr.wall.TextureA = d.TextureA
		}
		if !dr.hasTextureB {
			dr.wall.TextureB = d.TextureB
		}
	}
	return b.p
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the plan DSL into a zygomys environment. The
// builtins populate b during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *planBuilder) {

	// -----------------------------------------------------------------------
	// (vec2 4 0)
	// -----------------------------------------------------------------------
	env.AddFunction("vec2", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("vec2 requires exactly 2 arguments, got %d", len(args))
		}
		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec2: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec2: y: %w", err)
		}
		return &sexpVec2{vec: v2.Vec{X: x, Y: y}}, nil
	})

	// -----------------------------------------------------------------------
	// (defaults :units "m" :thickness 0.2 :height 2.5
	//           :texture-a "bricks" :texture-b "painted")
	// -----------------------------------------------------------------------
	env.AddFunction("defaults", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		d := &b.p.Defaults
		if _, err := pa.str("defaults", "units", &d.Units); err != nil {
			return zygo.SexpNull, err
		}
		if _, err := pa.float("defaults", "thickness", &d.Thickness); err != nil {
			return zygo.SexpNull, err
		}
		if _, err := pa.float("defaults", "height", &d.Height); err != nil {
			return zygo.SexpNull, err
		}
		for key, dst := range map[string]*string{"texture-a": &d.TextureA, "texture-b": &d.TextureB} {
			if v, ok := pa.kw[key]; ok {
				k, err := toTextureKey(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("defaults: %s: %w", key, err)
				}
				*dst = k
			}
		}
		b.warnUnknown("defaults", "", pa, "units", "thickness", "height", "texture-a", "texture-b")
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (normal-map :uri "textures/bricks-normal.jpg"
	//             :length-scale 0.01 :height-scale 0.01 :scale 0.8)
	//
	// Registered as "normal_map"; the preprocessor rewrites the hyphen.
	// -----------------------------------------------------------------------
	env.AddFunction("normal_map", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		nm := texture.NormalMap{}
		if _, err := pa.str("normal-map", "uri", &nm.URI); err != nil {
			return zygo.SexpNull, err
		}
		if nm.URI == "" {
			return zygo.SexpNull, fmt.Errorf("normal-map requires :uri")
		}
		var scale float64
		hasScale, err := pa.float("normal-map", "scale", &scale)
		if err != nil {
			return zygo.SexpNull, err
		}
		if hasScale {
			nm.ScaleX, nm.ScaleY = scale, scale
		}
		for key, dst := range map[string]*float64{
			"length-scale": &nm.LengthRepeatScale,
			"height-scale": &nm.HeightRepeatScale,
			"scale-x":      &nm.ScaleX,
			"scale-y":      &nm.ScaleY,
		} {
			if _, err := pa.float("normal-map", key, dst); err != nil {
				return zygo.SexpNull, err
			}
		}
		b.warnUnknown("normal-map", nm.URI, pa, "uri", "scale", "length-scale", "height-scale", "scale-x", "scale-y")
		return &sexpNormalMap{nm: nm}, nil
	})

	// -----------------------------------------------------------------------
	// (texture "marble" :name "Marble" :uri "textures/marble.jpg"
	//          :length-scale 0.01 :height-scale 0.01 :normal (normal-map ...))
	// -----------------------------------------------------------------------
	env.AddFunction("texture", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("texture requires a slot key")
		}
		key, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("texture: key: %w", err)
		}
		if key == "" || key == texture.None {
			return zygo.SexpNull, fmt.Errorf("texture: %q is reserved", key)
		}

		d := texture.Descriptor{Name: key}
		if _, err := pa.str("texture", "name", &d.Name); err != nil {
			return zygo.SexpNull, err
		}
		if _, err := pa.str("texture", "uri", &d.URI); err != nil {
			return zygo.SexpNull, err
		}
		if d.URI == "" {
			return zygo.SexpNull, fmt.Errorf("texture %s requires :uri", key)
		}
		if _, err := pa.float("texture", "length-scale", &d.LengthRepeatScale); err != nil {
			return zygo.SexpNull, err
		}
		if _, err := pa.float("texture", "height-scale", &d.HeightRepeatScale); err != nil {
			return zygo.SexpNull, err
		}
		if v, ok := pa.kw["normal"]; ok {
			nm, ok := v.(*sexpNormalMap)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("texture: normal: expected normal-map, got %T (%s)", v, v.SexpString(nil))
			}
			n := nm.nm
			d.Normal = &n
		}
		b.warnUnknown("texture", key, pa, "name", "uri", "length-scale", "height-scale", "normal")

		if _, exists := b.p.Textures.Lookup(key); exists {
			b.warn(key, "texture %s redefined", key)
		}
		b.p.Textures = b.p.Textures.With(key, d)
		return &sexpTexture{key: key}, nil
	})

	// -----------------------------------------------------------------------
	// (opening "door-1" :kind :door :width 0.9 :height 2.1 :altitude 0 :offset 0.5)
	// -----------------------------------------------------------------------
	env.AddFunction("opening", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("opening requires an id")
		}
		id, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("opening: id: %w", err)
		}

		o := &plan.Opening{ID: plan.OpeningID(id), Offset: 0.5}
		var kind string
		if _, err := pa.str("opening", "kind", &kind); err != nil {
			return zygo.SexpNull, err
		}
		if o.Kind, err = plan.ParseOpeningKind(kind); err != nil {
			return zygo.SexpNull, fmt.Errorf("opening %s: %w", id, err)
		}
		for key, dst := range map[string]*float64{
			"width":    &o.Width,
			"height":   &o.Height,
			"altitude": &o.Altitude,
			"offset":   &o.Offset,
		} {
			if _, err := pa.float("opening", key, dst); err != nil {
				return zygo.SexpNull, err
			}
		}
		b.warnUnknown("opening", id, pa, "kind", "width", "height", "altitude", "offset")

		if b.p.Opening(o.ID) != nil {
			b.warn(id, "opening %s redefined", id)
		}
		b.p.AddOpening(o)
		return &sexpOpeningRef{id: o.ID}, nil
	})

	// -----------------------------------------------------------------------
	// (wall "south" :from (vec2 0 0) :to (vec2 4 0) :thickness 0.2 :height 2.5
	//       :openings (list "door-1" (opening "win-1" ...))
	//       :texture-a "bricks" :texture-b "painted" :selected true)
	// -----------------------------------------------------------------------
	env.AddFunction("wall", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("wall requires an id")
		}
		id, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("wall: id: %w", err)
		}

		w := &plan.Wall{ID: plan.WallID(id)}
		dr := &wallDraft{wall: w}
		for _, end := range []struct {
			key string
			dst *v2.Vec
		}{{"from", &w.From}, {"to", &w.To}} {
			v, ok := pa.kw[end.key]
			if !ok {
				return zygo.SexpNull, fmt.Errorf("wall %s requires :%s", id, end.key)
			}
			if *end.dst, err = toVec2(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("wall %s: %s: %w", id, end.key, err)
			}
		}
		if dr.hasThickness, err = pa.float("wall", "thickness", &w.Thickness); err != nil {
			return zygo.SexpNull, err
		}
		if dr.hasHeight, err = pa.float("wall", "height", &w.Height); err != nil {
			return zygo.SexpNull, err
		}
		if v, ok := pa.kw["texture-a"]; ok {
			if w.TextureA, err = toTextureKey(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("wall %s: texture-a: %w", id, err)
			}
			dr.hasTextureA = true
		}
		if v, ok := pa.kw["texture-b"]; ok {
			if w.TextureB, err = toTextureKey(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("wall %s: texture-b: %w", id, err)
			}
			dr.hasTextureB = true
		}
		if v, ok := pa.kw["selected"]; ok {
			if w.Selected, err = toBool(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("wall %s: selected: %w", id, err)
			}
		}
		if v, ok := pa.kw["openings"]; ok {
			items, err := sexpListToSlice(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("wall %s: openings: %w", id, err)
			}
			for _, item := range items {
				oid, err := toOpeningID(item)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("wall %s: opening entry: %w", id, err)
				}
				w.Openings = append(w.Openings, oid)
			}
		}
		b.warnUnknown("wall", id, pa, "from", "to", "thickness", "height", "texture-a", "texture-b", "selected", "openings")

		if b.p.Wall(w.ID) != nil {
			b.warn(id, "wall %s redefined", id)
		}
		b.p.AddWall(w)
		b.drafts[w.ID] = dr
		return &sexpWallRef{id: w.ID}, nil
	})
}
