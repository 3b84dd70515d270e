package config

import (
	"embed"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/pkg/errors"
)

//go:embed schema.cue
var schemaFS embed.FS

// Validator checks architecture files against the embedded CUE schema
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator compiles the embedded schema
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := schemaFS.ReadFile("schema.cue")
	if err != nil {
		return nil, errors.Wrap(err, "loading embedded schema")
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, errors.Wrap(schema.Err(), "compiling schema")
	}

	return &Validator{ctx: ctx, schema: schema}, nil
}

// ValidateJSON unifies JSON bytes with the #Arch definition
func (v *Validator) ValidateJSON(data []byte) error {
	value := v.ctx.CompileBytes(data)
	if value.Err() != nil {
		return errors.Wrap(value.Err(), "compiling architecture as CUE")
	}

	arch := v.schema.LookupPath(cue.ParsePath("#Arch"))
	if arch.Err() != nil {
		return errors.Wrap(arch.Err(), "looking up #Arch definition")
	}

	unified := arch.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return errors.Errorf("architecture does not match schema: %s", cueerrors.Details(err, nil))
	}
	return nil
}
