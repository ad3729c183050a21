package payload

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// definitions maps each kind to its CUE definition in schema.cue.
var definitions = map[Kind]string{
	KindJob:     "#JobPosting",
	KindExtend:  "#JobExtension",
	KindProject: "#Project",
	KindFunding: "#Contribution",
}

// ValidationError reports a payload that does not satisfy its schema.
type ValidationError struct {
	Kind    Kind
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("invalid %s payload", e.Kind)
	}
	return fmt.Sprintf("invalid %s payload: %s", e.Kind, e.Details[0])
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validator checks payloads against the embedded CUE schema.
//
// A cue.Context is not safe for concurrent use, so Validate serializes
// callers with a mutex.
type Validator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile payload schema: %w", err)
	}
	for kind, def := range definitions {
		if !schema.LookupPath(cue.ParsePath(def)).Exists() {
			return nil, fmt.Errorf("compile payload schema: missing %s for kind %q", def, kind)
		}
	}
	return &Validator{ctx: ctx, schema: schema}, nil
}

// Validate returns a *ValidationError if p violates its kind's schema.
func (v *Validator) Validate(p Payload) error {
	if p == nil {
		return &ValidationError{Details: []string{"payload is required"}}
	}
	def, ok := definitions[p.Kind()]
	if !ok {
		return &ValidationError{Kind: p.Kind(), Details: []string{"unknown kind"}}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	schema := v.schema.LookupPath(cue.ParsePath(def))
	value := v.ctx.Encode(Normalize(p))
	if err := value.Err(); err != nil {
		return &ValidationError{Kind: p.Kind(), Details: []string{err.Error()}}
	}

	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Kind: p.Kind(), Details: details(err)}
	}
	return nil
}

// details flattens a CUE error list into one message per violation.
func details(err error) []string {
	var out []string
	for _, e := range cueerrors.Errors(err) {
		out = append(out, e.Error())
	}
	if len(out) == 0 {
		out = append(out, err.Error())
	}
	return out
}
