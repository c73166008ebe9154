// Package schema checks entry bytes against CUE record-type definitions.
//
// Record types declare their content schema as closed CUE definitions
// (e.g. #ProjectMeta). An entry is well-formed when its JSON unifies with the
// definition and the result is concrete; unknown fields fail because
// definitions are closed.
package schema

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
)

// Schema is a compiled set of CUE definitions.
// Check is safe for concurrent use.
type Schema struct {
	mu  sync.Mutex
	ctx *cue.Context
	v   cue.Value
}

// Compile parses CUE source holding record-type definitions.
func Compile(src string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %s", errors.Details(err, nil))
	}
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("compile schema: %s", errors.Details(err, nil))
	}
	return &Schema{ctx: ctx, v: v}, nil
}

// MustCompile is like Compile but panics on error.
// Use only for schemas embedded in the binary.
func MustCompile(src string) *Schema {
	s, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return s
}

// Has reports whether the definition exists.
func (s *Schema) Has(def string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.LookupPath(cue.ParsePath(def)).Exists()
}

// Check validates JSON bytes against a definition such as "#ProjectMeta".
func (s *Schema) Check(def string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.v.LookupPath(cue.ParsePath(def))
	if !d.Exists() {
		return fmt.Errorf("schema: definition %s not found", def)
	}

	expr, err := cuejson.Extract(def, data)
	if err != nil {
		return fmt.Errorf("schema: %s: %w", def, err)
	}
	val := s.ctx.BuildExpr(expr)
	if err := val.Err(); err != nil {
		return fmt.Errorf("schema: %s: %s", def, errors.Details(err, nil))
	}

	if err := d.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema: %s: %s", def, errors.Details(err, nil))
	}
	return nil
}
